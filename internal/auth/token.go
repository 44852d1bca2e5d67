package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"

	"github.com/example/naijago/internal/models"
)

var ErrInvalidToken = errors.New("invalid session token")

type Claims struct {
	Email string
	Role  models.Role
}

// Issuer mints and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

func (i *Issuer) Issue(user models.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.Email,
		"role": string(user.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(i.ttl).Unix(),
	})
	return token.SignedString(i.secret)
}

func (i *Issuer) Parse(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	email, _ := mc["sub"].(string)
	role, _ := mc["role"].(string)
	if email == "" {
		return Claims{}, ErrInvalidToken
	}
	return Claims{Email: email, Role: models.Role(role)}, nil
}
