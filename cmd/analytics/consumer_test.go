package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeStats implements StatsUpdater for tests
type fakeStats struct {
	failIncr  int // number of times to fail IncrEventCount before succeeding
	failSet   int // number of times to fail SetLastEvent before succeeding
	incrCalls int
	setCalls  int
}

func (f *fakeStats) IncrEventCount(ctx context.Context, eventType string) error {
	f.incrCalls++
	if f.incrCalls <= f.failIncr {
		return errors.New("incr fail")
	}
	return nil
}

func (f *fakeStats) SetLastEvent(ctx context.Context, session, eventType string, at time.Time) error {
	f.setCalls++
	if f.setCalls <= f.failSet {
		return errors.New("hset fail")
	}
	return nil
}

func TestUpdateStatsWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeStats{failIncr: 1, failSet: 1}
	ev := bookingEvent{Session: "s1", Type: "ride_completed", At: time.Now()}
	start := time.Now()
	if err := updateStatsWithRetry(context.Background(), f, ev, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.incrCalls < 2 || f.setCalls < 2 {
		t.Fatalf("expected retries, got incr=%d set=%d", f.incrCalls, f.setCalls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
}

func TestUpdateStatsWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeStats{failIncr: 5}
	ev := bookingEvent{Session: "s1", Type: "reset", At: time.Now()}
	if err := updateStatsWithRetry(context.Background(), f, ev, 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
}
