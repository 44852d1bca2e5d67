package booking

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/example/naijago/internal/clock"
	"github.com/example/naijago/internal/history"
	"github.com/example/naijago/internal/models"
	"github.com/example/naijago/internal/observability"
	"github.com/example/naijago/internal/provider"
)

const providerCallTimeout = 30 * time.Second

// Event is emitted on every externally visible lifecycle change. Sinks fan
// events out to websocket streams and the kafka publisher.
type Event struct {
	Type   string         `json:"type"`
	At     time.Time      `json:"at"`
	Detail map[string]any `json:"detail,omitempty"`
}

type Sink func(Event)

// Options configures a session; zero values get sensible defaults.
type Options struct {
	Clock       clock.Clock
	Logger      *slog.Logger
	Sink        Sink
	RideTick    time.Duration
	CourierTick time.Duration
}

// Session owns one user's booking lifecycle. All transitions are atomic
// under the session mutex; timers and provider calls run on background
// goroutines that re-enter under the mutex and are invalidated by an epoch
// counter when the owning state is exited.
type Session struct {
	id       string
	provider provider.Client
	ledger   history.Ledger
	clk      clock.Clock
	logger   *slog.Logger
	sink     Sink

	rideTick    time.Duration
	courierTick time.Duration

	mu        sync.Mutex
	state     State
	user      *models.User
	request   *models.BookingRequest
	results   *models.SearchResults
	searchErr string
	selection *models.Selection
	ride      *models.ActiveRide
	courier   *models.ActiveCourier
	scheduled *models.ScheduledRide

	epoch uint64
	stop  chan struct{}
}

func NewSession(id string, p provider.Client, ledger history.Ledger, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RideTick <= 0 {
		opts.RideTick = 15 * time.Second
	}
	if opts.CourierTick <= 0 {
		opts.CourierTick = 3 * time.Second
	}
	return &Session{
		id:          id,
		provider:    p,
		ledger:      ledger,
		clk:         opts.Clock,
		logger:      opts.Logger.With("session", id),
		sink:        opts.Sink,
		rideTick:    opts.RideTick,
		courierTick: opts.CourierTick,
		state:       StateIdle,
	}
}

// Authenticate attaches a logged-in user to the session, unlocking option
// selection.
func (s *Session) Authenticate(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uu := u
	s.user = &uu
}

func (s *Session) ClearUser() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Search validates the request and kicks off an asynchronous provider call.
// Allowed from Idle and ResultsReady only, so a session never has two
// provider calls in flight.
func (s *Session) Search(req models.BookingRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != StateIdle && s.state != StateResultsReady {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.stopTimersLocked()
	s.epoch++
	epoch := s.epoch
	r := req
	s.request = &r
	s.results = nil
	s.searchErr = ""
	s.selection = nil
	s.state = StateSearching
	s.mu.Unlock()

	s.emit(Event{Type: "search_started", Detail: map[string]any{
		"service": string(req.Service),
		"pickup":  req.Pickup,
		"dropoff": req.Dropoff,
	}})

	go s.runSearch(epoch, r)
	return nil
}

func (s *Session) runSearch(epoch uint64, req models.BookingRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), providerCallTimeout)
	defer cancel()
	results, err := s.provider.GenerateOptions(ctx, req)

	s.mu.Lock()
	if s.epoch != epoch || s.state != StateSearching {
		s.mu.Unlock()
		return
	}
	outcome := "ok"
	if err != nil {
		s.searchErr = provider.ErrUnavailable.Error()
		outcome = "error"
		s.logger.Warn("options search failed", "error", err)
	} else {
		res := results
		s.results = &res
	}
	s.state = StateResultsReady
	s.mu.Unlock()

	observability.SearchesTotal.WithLabelValues(string(req.Service), outcome).Inc()
	s.emit(Event{Type: "results_ready", Detail: map[string]any{"outcome": outcome}})
}

// SelectOption records the chosen option and moves to ConfirmPending. For
// ride results index addresses the option list; for a courier quote it is
// ignored. Requires an authenticated session.
func (s *Session) SelectOption(index int) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return ErrAuthRequired
	}
	if s.state != StateResultsReady || s.results == nil {
		s.mu.Unlock()
		return ErrInvalidState
	}

	var sel models.Selection
	if s.results.CourierQuote != nil {
		q := *s.results.CourierQuote
		sel = models.Selection{Kind: models.SelectionCourier, Courier: &q}
	} else {
		if index < 0 || index >= len(s.results.RideOptions) {
			s.mu.Unlock()
			return ErrNoSuchOption
		}
		opt := s.results.RideOptions[index]
		sel = models.Selection{Kind: models.SelectionRide, Ride: &opt}
	}
	s.selection = &sel
	s.state = StateConfirmPending
	s.mu.Unlock()

	s.emit(Event{Type: "option_selected", Detail: map[string]any{"kind": string(sel.Kind)}})
	return nil
}

// Confirm commits the pending selection: scheduled rides go straight to a
// terminal confirmation, immediate rides become active with an async driver
// fetch, courier quotes become an active delivery with its stage ladder.
func (s *Session) Confirm() error {
	s.mu.Lock()
	if s.state != StateConfirmPending || s.selection == nil || s.request == nil {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.epoch++
	epoch := s.epoch
	sel := *s.selection
	s.selection = nil

	var ev Event
	switch {
	case sel.Kind == models.SelectionRide && s.request.Scheduled:
		s.scheduled = &models.ScheduledRide{Option: *sel.Ride, Request: *s.request}
		s.state = StateScheduled
		ev = Event{Type: "ride_scheduled", Detail: map[string]any{
			"date": s.request.ScheduledDate,
			"time": s.request.ScheduledTime,
		}}
	case sel.Kind == models.SelectionRide:
		s.ride = &models.ActiveRide{
			Option:         *sel.Ride,
			FetchingDriver: true,
			ETAMinutes:     models.ETAMinutes(sel.Ride.ETA),
		}
		s.state = StateActiveRide
		observability.BookingsActive.Inc()
		go s.fetchDriver(epoch)
		ev = Event{Type: "ride_confirmed", Detail: map[string]any{"type": sel.Ride.Type}}
	default:
		s.courier = &models.ActiveCourier{Quote: *sel.Courier, Stage: models.StageConfirmed}
		s.state = StateActiveCourier
		observability.BookingsActive.Inc()
		s.startCourierTickerLocked(epoch)
		ev = Event{Type: "courier_confirmed", Detail: map[string]any{"tracking_id": sel.Courier.TrackingID}}
	}
	s.mu.Unlock()

	s.emit(ev)
	return nil
}

// CancelConfirm discards the pending selection and returns to the results.
func (s *Session) CancelConfirm() error {
	s.mu.Lock()
	if s.state != StateConfirmPending {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.selection = nil
	s.state = StateResultsReady
	s.mu.Unlock()

	s.emit(Event{Type: "confirmation_cancelled"})
	return nil
}

func (s *Session) fetchDriver(epoch uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), providerCallTimeout)
	defer cancel()
	profile, err := s.provider.GenerateDriverProfile(ctx)

	s.mu.Lock()
	if s.epoch != epoch || s.ride == nil {
		s.mu.Unlock()
		return
	}
	s.ride.FetchingDriver = false
	if err != nil {
		// the ride continues without driver details
		s.mu.Unlock()
		s.logger.Warn("driver profile fetch failed", "error", err)
		s.emit(Event{Type: "driver_unavailable"})
		return
	}
	p := profile
	s.ride.Driver = &p
	if s.ride.ETAMinutes > 0 {
		s.startRideTickerLocked(epoch)
	}
	s.mu.Unlock()

	s.emit(Event{Type: "driver_assigned", Detail: map[string]any{"name": p.Name, "vehicle": p.Vehicle}})
}

func (s *Session) startRideTickerLocked(epoch uint64) {
	tk := s.clk.NewTicker(s.rideTick)
	stopCh := make(chan struct{})
	s.stop = stopCh
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-tk.Chan():
				if s.tickRideETA(epoch) {
					return
				}
			}
		}
	}()
}

func (s *Session) tickRideETA(epoch uint64) (done bool) {
	s.mu.Lock()
	if s.epoch != epoch || s.ride == nil {
		s.mu.Unlock()
		return true
	}
	if s.ride.ETAMinutes > 0 {
		s.ride.ETAMinutes--
	}
	remaining := s.ride.ETAMinutes
	s.mu.Unlock()

	s.emit(Event{Type: "ride_eta", Detail: map[string]any{"minutes": remaining}})
	return remaining == 0
}

func (s *Session) startCourierTickerLocked(epoch uint64) {
	tk := s.clk.NewTicker(s.courierTick)
	stopCh := make(chan struct{})
	s.stop = stopCh
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-tk.Chan():
				if s.advanceCourier(epoch) {
					return
				}
			}
		}
	}()
}

func (s *Session) advanceCourier(epoch uint64) (done bool) {
	s.mu.Lock()
	if s.epoch != epoch || s.courier == nil {
		s.mu.Unlock()
		return true
	}
	s.courier.Stage = s.courier.Stage.Next()
	stage := s.courier.Stage
	s.mu.Unlock()

	s.emit(Event{Type: "courier_stage", Detail: map[string]any{"stage": stage.String()}})
	return stage == models.StageDelivered
}

// CompleteRide records the finished ride in history and resets to Idle.
// A rating of 0 means the user skipped rating; that is allowed.
func (s *Session) CompleteRide(rating int, comments string) error {
	s.mu.Lock()
	if s.state != StateActiveRide || s.ride == nil {
		s.mu.Unlock()
		return ErrInvalidState
	}
	if rating < 0 || rating > 5 {
		s.mu.Unlock()
		return invalid("rating must be between 0 (skip) and 5")
	}
	entry := models.HistoryEntry{
		ID:       strconv.FormatInt(s.clk.Now().UnixNano(), 10),
		Date:     s.clk.Now().Format("Jan 2, 2006"),
		Service:  models.ServiceRide,
		Pickup:   s.request.Pickup,
		Dropoff:  s.request.Dropoff,
		Fare:     s.ride.Option.Fare,
		RideType: s.ride.Option.Type,
	}
	if s.ride.Driver != nil {
		entry.DriverName = s.ride.Driver.Name
	}
	s.resetLocked()
	s.mu.Unlock()

	observability.BookingsCompletedTotal.WithLabelValues("ride").Inc()
	s.appendHistory(entry)

	detail := map[string]any{"rating": rating}
	if comments != "" {
		detail["comments"] = comments
	}
	s.emit(Event{Type: "ride_completed", Detail: detail})
	return nil
}

// CompleteCourier records the finished delivery and resets to Idle. It is
// rejected until the stage ladder has reached Delivered.
func (s *Session) CompleteCourier() error {
	s.mu.Lock()
	if s.state != StateActiveCourier || s.courier == nil {
		s.mu.Unlock()
		return ErrInvalidState
	}
	if s.courier.Stage != models.StageDelivered {
		s.mu.Unlock()
		return ErrNotDelivered
	}
	entry := models.HistoryEntry{
		ID:         strconv.FormatInt(s.clk.Now().UnixNano(), 10),
		Date:       s.clk.Now().Format("Jan 2, 2006"),
		Service:    models.ServiceCourier,
		Pickup:     s.request.Pickup,
		Dropoff:    s.request.Dropoff,
		Fare:       s.courier.Quote.Fare,
		TrackingID: s.courier.Quote.TrackingID,
	}
	s.resetLocked()
	s.mu.Unlock()

	observability.BookingsCompletedTotal.WithLabelValues("courier").Inc()
	s.appendHistory(entry)
	s.emit(Event{Type: "courier_completed", Detail: map[string]any{"tracking_id": entry.TrackingID}})
	return nil
}

// Reset discards all in-flight data from any state without touching history.
func (s *Session) Reset() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
	s.emit(Event{Type: "reset"})
}

// resetLocked cancels timers, invalidates outstanding async work, and
// returns to Idle. Caller holds the mutex.
func (s *Session) resetLocked() {
	s.stopTimersLocked()
	s.epoch++
	if s.ride != nil || s.courier != nil {
		observability.BookingsActive.Dec()
	}
	s.request = nil
	s.results = nil
	s.searchErr = ""
	s.selection = nil
	s.ride = nil
	s.courier = nil
	s.scheduled = nil
	s.state = StateIdle
}

func (s *Session) stopTimersLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

func (s *Session) appendHistory(entry models.HistoryEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.ledger.Append(ctx, entry); err != nil {
		s.logger.Warn("history append failed", "error", err, "entry_id", entry.ID)
	}
}

func (s *Session) emit(ev Event) {
	if s.sink == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = s.clk.Now()
	}
	s.sink(ev)
}

func validateRequest(req models.BookingRequest) error {
	if strings.TrimSpace(req.Pickup) == "" || strings.TrimSpace(req.Dropoff) == "" {
		return invalid("pickup and dropoff are required")
	}
	switch req.Service {
	case models.ServiceRide:
		if req.Scheduled && (req.ScheduledDate == "" || req.ScheduledTime == "") {
			return invalid("scheduled rides need both a date and a time")
		}
	case models.ServiceCourier:
		if strings.TrimSpace(req.PackageNote) == "" {
			return invalid("package details are required for courier deliveries")
		}
	default:
		return invalid("unknown service kind")
	}
	return nil
}
