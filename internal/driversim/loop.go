// Package driversim simulates the driver side of the marketplace: while a
// driver is online it periodically generates incoming ride requests, expires
// the ones that go unanswered, and keeps daily earnings and trip tallies.
package driversim

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/example/naijago/internal/clock"
	"github.com/example/naijago/internal/models"
	"github.com/example/naijago/internal/observability"
)

var ErrNoSuchRequest = errors.New("request no longer available")

// Rand is the randomness used to decide whether a tick produces a request
// and to pick trip endpoints. Seedable for deterministic tests.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// NewRand returns a Rand seeded for reproducible sequences.
func NewRand(seed int64) Rand {
	return rand.New(rand.NewSource(seed))
}

var lagosSpots = []string{
	"Ikeja", "Lekki Phase 1", "Victoria Island", "Surulere", "Yaba",
	"Ikoyi", "Ajah", "Festac Town", "Maryland", "Apapa",
}

// Dashboard is the driver's view of their day.
type Dashboard struct {
	Online        bool                   `json:"online"`
	Requests      []models.DriverRequest `json:"requests"`
	EarningsToday int                    `json:"earnings_today"`
	TripsToday    int                    `json:"trips_today"`
}

type Options struct {
	Clock      clock.Clock
	Rand       Rand
	Logger     *slog.Logger
	Tick       time.Duration
	RequestTTL time.Duration
	Chance     float64
	// OnRequest is called off-lock for every generated request.
	OnRequest func(models.DriverRequest)
}

// Loop holds a single driver's simulated request feed.
type Loop struct {
	mu       sync.Mutex
	online   bool
	requests []models.DriverRequest
	earnings int
	trips    int
	nextID   int
	stop     chan struct{}

	clk       clock.Clock
	rnd       Rand
	logger    *slog.Logger
	tick      time.Duration
	ttl       time.Duration
	chance    float64
	onRequest func(models.DriverRequest)
}

func NewLoop(opts Options) *Loop {
	l := &Loop{
		clk:       opts.Clock,
		rnd:       opts.Rand,
		logger:    opts.Logger,
		tick:      opts.Tick,
		ttl:       opts.RequestTTL,
		chance:    opts.Chance,
		onRequest: opts.OnRequest,
	}
	if l.clk == nil {
		l.clk = clock.System()
	}
	if l.rnd == nil {
		l.rnd = NewRand(time.Now().UnixNano())
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.tick <= 0 {
		l.tick = 5 * time.Second
	}
	if l.ttl <= 0 {
		l.ttl = 30 * time.Second
	}
	if l.chance == 0 {
		l.chance = 0.4
	}
	return l
}

// GoOnline starts the request feed. No-op if already online.
func (l *Loop) GoOnline() {
	l.mu.Lock()
	if l.online {
		l.mu.Unlock()
		return
	}
	l.online = true
	stop := make(chan struct{})
	l.stop = stop
	tk := l.clk.NewTicker(l.tick)
	l.mu.Unlock()

	go func() {
		defer tk.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tk.Chan():
				l.Tick()
			}
		}
	}()
}

// GoOffline stops the feed and clears any pending requests.
func (l *Loop) GoOffline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.online {
		return
	}
	l.online = false
	close(l.stop)
	l.stop = nil
	l.requests = nil
}

// Tick expires stale requests and maybe generates a new one. Exported so
// tests and callers can drive the feed without the wall clock.
func (l *Loop) Tick() {
	l.mu.Lock()
	if !l.online {
		l.mu.Unlock()
		return
	}
	now := l.clk.Now()
	kept := l.requests[:0]
	for _, r := range l.requests {
		if r.ExpiresAt.After(now) {
			kept = append(kept, r)
		}
	}
	l.requests = kept

	var generated *models.DriverRequest
	if l.rnd.Float64() < l.chance {
		r := l.generateLocked(now)
		l.requests = append([]models.DriverRequest{r}, l.requests...)
		generated = &r
	}
	l.mu.Unlock()

	if generated != nil {
		observability.DriverRequestsGenerated.Inc()
		l.logger.Debug("generated driver request", "id", generated.ID, "fare", generated.Fare)
		if l.onRequest != nil {
			l.onRequest(*generated)
		}
	}
}

func (l *Loop) generateLocked(now time.Time) models.DriverRequest {
	pi := l.rnd.Intn(len(lagosSpots))
	di := (pi + 1 + l.rnd.Intn(len(lagosSpots)-1)) % len(lagosSpots)
	pickup, dropoff := lagosSpots[pi], lagosSpots[di]
	fare := 500 + l.rnd.Intn(45)*100
	l.nextID++
	return models.DriverRequest{
		ID:        fmt.Sprintf("req-%d-%d", now.UnixNano(), l.nextID),
		Pickup:    pickup,
		Dropoff:   dropoff,
		Fare:      fmt.Sprintf("₦%d", fare),
		ExpiresAt: now.Add(l.ttl),
	}
}

// Accept removes the request and credits its fare to today's earnings. The
// driver keeps receiving new requests; accepting does not start a tracked
// trip.
func (l *Loop) Accept(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, r := range l.requests {
		if r.ID == id {
			l.requests = append(l.requests[:i], l.requests[i+1:]...)
			l.earnings += models.FareAmount(r.Fare)
			l.trips++
			observability.DriverRequestsAccepted.Inc()
			return nil
		}
	}
	return ErrNoSuchRequest
}

// Decline removes the request without payment.
func (l *Loop) Decline(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, r := range l.requests {
		if r.ID == id {
			l.requests = append(l.requests[:i], l.requests[i+1:]...)
			return nil
		}
	}
	return ErrNoSuchRequest
}

func (l *Loop) Dashboard() Dashboard {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := Dashboard{Online: l.online, EarningsToday: l.earnings, TripsToday: l.trips}
	if len(l.requests) > 0 {
		d.Requests = make([]models.DriverRequest, len(l.requests))
		copy(d.Requests, l.requests)
	}
	return d
}
