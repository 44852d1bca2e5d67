package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/naijago/internal/auth"
	"github.com/example/naijago/internal/booking"
	"github.com/example/naijago/internal/driversim"
	"github.com/example/naijago/internal/models"
)

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var p auth.SignupParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := s.users.Signup(p)
	if err != nil {
		writeError(w, authStatus(err), err)
		return
	}
	s.issueSession(w, r, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := s.users.Login(body.Email, body.Password)
	if err != nil {
		writeError(w, authStatus(err), err)
		return
	}
	s.issueSession(w, r, user)
}

func (s *Server) issueSession(w http.ResponseWriter, r *http.Request, user models.User) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	// logging in mid-booking attaches the user to the guest's session, so a
	// search started before login survives it
	s.sessionFor(sessionKey(r)).Authenticate(user)
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

// handleLogout ends the session: any in-flight booking is discarded with its
// timers and the history ledger is emptied.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	key := sessionKey(r)
	sess := s.sessionFor(key)
	sess.Reset()
	sess.ClearUser()
	if err := s.ledgerFor(key).Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sess := s.bookingSession(r)
	if err := sess.Search(req); err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sess.Snapshot())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.bookingSession(r).Snapshot())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sess := s.bookingSession(r)
	if err := sess.SelectOption(body.Index); err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	sess := s.bookingSession(r)
	if err := sess.Confirm(); err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleCancelConfirm(w http.ResponseWriter, r *http.Request) {
	sess := s.bookingSession(r)
	if err := sess.CancelConfirm(); err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// handleComplete finishes whichever booking is active: rides carry an
// optional rating, couriers must have reached Delivered.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rating   int    `json:"rating"`
		Comments string `json:"comments"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	sess := s.bookingSession(r)
	var err error
	if sess.State() == booking.StateActiveCourier {
		err = sess.CompleteCourier()
	} else {
		err = sess.CompleteRide(body.Rating, body.Comments)
	}
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := s.bookingSession(r)
	sess.Reset()
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ledgerFor(sessionKey(r)).List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleHistoryClear(w http.ResponseWriter, r *http.Request) {
	if err := s.ledgerFor(sessionKey(r)).Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDriverOnline(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.requireDriver(w, r)
	if !ok {
		return
	}
	loop := s.loopFor(claims.Email)
	loop.GoOnline()
	writeJSON(w, http.StatusOK, loop.Dashboard())
}

func (s *Server) handleDriverOffline(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.requireDriver(w, r)
	if !ok {
		return
	}
	loop := s.loopFor(claims.Email)
	loop.GoOffline()
	writeJSON(w, http.StatusOK, loop.Dashboard())
}

func (s *Server) handleDriverDashboard(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.requireDriver(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.loopFor(claims.Email).Dashboard())
}

func (s *Server) handleDriverAccept(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.requireDriver(w, r)
	if !ok {
		return
	}
	loop := s.loopFor(claims.Email)
	if err := loop.Accept(mux.Vars(r)["id"]); err != nil {
		writeError(w, driverStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, loop.Dashboard())
}

func (s *Server) handleDriverDecline(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.requireDriver(w, r)
	if !ok {
		return
	}
	loop := s.loopFor(claims.Email)
	if err := loop.Decline(mux.Vars(r)["id"]); err != nil {
		writeError(w, driverStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, loop.Dashboard())
}

func (s *Server) handleDriverVehicle(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.requireDriver(w, r)
	if !ok {
		return
	}
	var d models.DriverDetails
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.users.UpdateDriverDetails(claims.Email, d); err != nil {
		writeError(w, authStatus(err), err)
		return
	}
	user, _ := s.users.Get(claims.Email)
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleDriverPayouts(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.requireDriver(w, r)
	if !ok {
		return
	}
	var p models.PayoutDetails
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.users.UpdatePayoutDetails(claims.Email, p); err != nil {
		writeError(w, authStatus(err), err)
		return
	}
	user, _ := s.users.Get(claims.Email)
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func metricsHandler() http.Handler { return promhttp.Handler() }

// bookingSession resolves the caller's session and, when logged in, attaches
// their user record so option selection is unlocked.
func (s *Server) bookingSession(r *http.Request) *booking.Session {
	sess := s.sessionFor(sessionKey(r))
	if claims, ok := claimsFromContext(r.Context()); ok {
		if user, found := s.users.Get(claims.Email); found {
			sess.Authenticate(user)
		}
	}
	return sess
}

// sessionKey identifies the caller's booking session. A client-held guest
// session header wins so a flow started before login survives it; otherwise
// the token identity, then the remote address.
func sessionKey(r *http.Request) string {
	if guest := r.Header.Get("X-Guest-Session"); guest != "" {
		return "guest:" + guest
	}
	if claims, ok := claimsFromContext(r.Context()); ok {
		return claims.Email
	}
	return "addr:" + remoteIP(r)
}

func (s *Server) requireDriver(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("login required"))
		return auth.Claims{}, false
	}
	if claims.Role != models.RoleDriver {
		writeError(w, http.StatusForbidden, errors.New("driver account required"))
		return auth.Claims{}, false
	}
	return claims, true
}

func writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case booking.IsValidation(err), errors.Is(err, booking.ErrNoSuchOption):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, booking.ErrAuthRequired):
		writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, booking.ErrInvalidState), errors.Is(err, booking.ErrNotDelivered):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func authStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnknownEmail), errors.Is(err, auth.ErrWrongPassword):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrEmailRegistered):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func driverStatus(err error) int {
	if errors.Is(err, driversim.ErrNoSuchRequest) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
