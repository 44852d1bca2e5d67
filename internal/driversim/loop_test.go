package driversim

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/naijago/internal/clock"
	"github.com/example/naijago/internal/models"
)

// fixedRand always returns the same values so each Tick either always or
// never generates a request.
type fixedRand struct {
	f float64
	n int
}

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) Intn(n int) int   { return r.n % n }

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *manualClock) NewTicker(d time.Duration) clock.Ticker {
	return &idleTicker{ch: make(chan time.Time)}
}

type idleTicker struct{ ch chan time.Time }

func (t *idleTicker) Chan() <-chan time.Time { return t.ch }
func (t *idleTicker) Stop()                  {}

func newTestLoop(rnd Rand) (*Loop, *manualClock) {
	clk := &manualClock{now: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)}
	l := NewLoop(Options{
		Clock:      clk,
		Rand:       rnd,
		Tick:       5 * time.Second,
		RequestTTL: 30 * time.Second,
		Chance:     0.4,
	})
	return l, clk
}

func TestOfflineTickIsNoop(t *testing.T) {
	l, _ := newTestLoop(fixedRand{f: 0})
	l.Tick()
	if d := l.Dashboard(); d.Online || len(d.Requests) != 0 {
		t.Fatalf("offline tick changed state: %+v", d)
	}
}

func TestTickGeneratesByChance(t *testing.T) {
	always, _ := newTestLoop(fixedRand{f: 0}) // 0 < 0.4, always generate
	always.GoOnline()
	defer always.GoOffline()
	always.Tick()
	always.Tick()
	if d := always.Dashboard(); len(d.Requests) != 2 {
		t.Fatalf("got %d requests, want 2", len(d.Requests))
	}

	never, _ := newTestLoop(fixedRand{f: 0.99}) // 0.99 >= 0.4, never generate
	never.GoOnline()
	defer never.GoOffline()
	never.Tick()
	never.Tick()
	if d := never.Dashboard(); len(d.Requests) != 0 {
		t.Fatalf("got %d requests, want 0", len(d.Requests))
	}
}

func TestRequestsHaveDistinctEndpoints(t *testing.T) {
	l, _ := newTestLoop(NewRand(42))
	l.GoOnline()
	defer l.GoOffline()
	for i := 0; i < 50; i++ {
		l.Tick()
	}
	for _, r := range l.Dashboard().Requests {
		if r.Pickup == r.Dropoff {
			t.Fatalf("request %s has pickup == dropoff (%s)", r.ID, r.Pickup)
		}
		if models.FareAmount(r.Fare) <= 0 {
			t.Fatalf("request %s has bad fare %q", r.ID, r.Fare)
		}
	}
}

func TestRequestsExpire(t *testing.T) {
	l, clk := newTestLoop(fixedRand{f: 0})
	l.GoOnline()
	defer l.GoOffline()

	l.Tick()
	if len(l.Dashboard().Requests) != 1 {
		t.Fatal("expected one pending request")
	}

	// move past the 30s TTL; next tick also generates a fresh request
	clk.advance(31 * time.Second)
	l.Tick()
	d := l.Dashboard()
	if len(d.Requests) != 1 {
		t.Fatalf("got %d requests after expiry, want 1 fresh", len(d.Requests))
	}
	if !d.Requests[0].ExpiresAt.After(clk.Now()) {
		t.Fatal("surviving request is itself expired")
	}
}

func TestAcceptCreditsEarningsWithoutStartingTrip(t *testing.T) {
	l, _ := newTestLoop(fixedRand{f: 0, n: 3})
	l.GoOnline()
	defer l.GoOffline()

	l.Tick()
	req := l.Dashboard().Requests[0]
	if err := l.Accept(req.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	d := l.Dashboard()
	if len(d.Requests) != 0 {
		t.Fatal("accepted request still pending")
	}
	if d.TripsToday != 1 {
		t.Fatalf("trips = %d, want 1", d.TripsToday)
	}
	if d.EarningsToday <= 0 {
		t.Fatalf("earnings = %d, want fare credited", d.EarningsToday)
	}
	if !d.Online {
		t.Fatal("accepting must keep the driver online for more requests")
	}

	if err := l.Accept(req.ID); !errors.Is(err, ErrNoSuchRequest) {
		t.Fatalf("double accept: got %v", err)
	}
}

func TestDeclineRemovesWithoutPay(t *testing.T) {
	l, _ := newTestLoop(fixedRand{f: 0})
	l.GoOnline()
	defer l.GoOffline()

	l.Tick()
	req := l.Dashboard().Requests[0]
	if err := l.Decline(req.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}
	d := l.Dashboard()
	if len(d.Requests) != 0 || d.EarningsToday != 0 || d.TripsToday != 0 {
		t.Fatalf("decline credited the driver: %+v", d)
	}
	if err := l.Decline(req.ID); !errors.Is(err, ErrNoSuchRequest) {
		t.Fatalf("double decline: got %v", err)
	}
}

func TestGoOfflineClearsPending(t *testing.T) {
	l, _ := newTestLoop(fixedRand{f: 0})
	l.GoOnline()
	l.Tick()
	l.Accept(l.Dashboard().Requests[0].ID)
	l.GoOffline()

	d := l.Dashboard()
	if d.Online || len(d.Requests) != 0 {
		t.Fatalf("offline dashboard: %+v", d)
	}
	if d.TripsToday != 1 {
		t.Fatal("tallies must survive going offline")
	}

	// tick while offline must not generate
	l.Tick()
	if len(l.Dashboard().Requests) != 0 {
		t.Fatal("offline loop generated a request")
	}
}
