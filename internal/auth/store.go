package auth

import (
	"errors"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/example/naijago/internal/models"
)

// The credential store is a deliberate local simulation: accounts live in
// memory for the lifetime of the process and nothing here is a security
// boundary. It exists to drive the selection auth gate in the booking flow.

const (
	minPasswordLen = 5
	maxPasswordLen = 72 // bcrypt input limit
	hashCost       = 10
)

var (
	ErrFieldIsEmpty          = errors.New("field is empty")
	ErrUnknownEmail          = errors.New("unknown email")
	ErrWrongPassword         = errors.New("wrong password")
	ErrEmailRegistered       = errors.New("email already registered")
	ErrVehicleDetailsMissing = errors.New("all vehicle details are required for drivers")
)

type SignupParams struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Role     models.Role

	VehicleMake  string
	VehicleModel string
	VehicleYear  string
	LicensePlate string
}

type record struct {
	user models.User
	hash []byte
}

type Store struct {
	mu    sync.RWMutex
	users map[string]*record
}

func NewStore() *Store {
	return &Store{users: make(map[string]*record)}
}

func (s *Store) Signup(p SignupParams) (models.User, error) {
	if err := validateSignup(p); err != nil {
		return models.User{}, err
	}
	email := normalizeEmail(p.Email)

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), hashCost)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{Name: p.Name, Email: email, Phone: p.Phone, Role: p.Role}
	if p.Role == models.RoleDriver {
		user.DriverDetails = &models.DriverDetails{
			VehicleMake:  p.VehicleMake,
			VehicleModel: p.VehicleModel,
			VehicleYear:  p.VehicleYear,
			LicensePlate: p.LicensePlate,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[email]; exists {
		return models.User{}, ErrEmailRegistered
	}
	s.users[email] = &record{user: user, hash: hash}
	return user, nil
}

func (s *Store) Login(email, password string) (models.User, error) {
	email = normalizeEmail(email)
	s.mu.RLock()
	rec, ok := s.users[email]
	s.mu.RUnlock()
	if !ok {
		return models.User{}, ErrUnknownEmail
	}
	if err := bcrypt.CompareHashAndPassword(rec.hash, []byte(password)); err != nil {
		return models.User{}, ErrWrongPassword
	}
	return rec.user, nil
}

func (s *Store) Get(email string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[normalizeEmail(email)]
	if !ok {
		return models.User{}, false
	}
	return rec.user, true
}

// UpdateDriverDetails replaces the stored vehicle details, keeping any
// existing payout details unless new ones are supplied.
func (s *Store) UpdateDriverDetails(email string, d models.DriverDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[normalizeEmail(email)]
	if !ok {
		return ErrUnknownEmail
	}
	if d.Payout == nil && rec.user.DriverDetails != nil {
		d.Payout = rec.user.DriverDetails.Payout
	}
	rec.user.DriverDetails = &d
	return nil
}

func (s *Store) UpdatePayoutDetails(email string, p models.PayoutDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[normalizeEmail(email)]
	if !ok {
		return ErrUnknownEmail
	}
	if rec.user.DriverDetails == nil {
		rec.user.DriverDetails = &models.DriverDetails{}
	}
	rec.user.DriverDetails.Payout = &p
	return nil
}

func validateSignup(p SignupParams) error {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Phone) == "" {
		return ErrFieldIsEmpty
	}
	if err := validateEmail(p.Email); err != nil {
		return err
	}
	if len(p.Password) < minPasswordLen || len(p.Password) > maxPasswordLen {
		return errors.New("password must be 5-72 characters")
	}
	if p.Role != models.RoleRider && p.Role != models.RoleDriver {
		return errors.New("role must be rider or driver")
	}
	if p.Role == models.RoleDriver {
		if p.VehicleMake == "" || p.VehicleModel == "" || p.VehicleYear == "" || p.LicensePlate == "" {
			return ErrVehicleDetailsMissing
		}
	}
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrFieldIsEmpty
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || !strings.Contains(email[at:], ".") {
		return errors.New("invalid email address")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
