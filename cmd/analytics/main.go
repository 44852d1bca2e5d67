// The analytics binary consumes booking lifecycle events from Kafka and
// maintains running counters in Redis for dashboards.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/naijago/internal/logging"
)

var (
	eventsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analytics_events_consumed_total",
		Help: "Total booking events consumed",
	})
	eventsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analytics_events_invalid_total",
		Help: "Total invalid events received",
	})
	redisUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analytics_redis_updates_total",
		Help: "Total successful redis updates",
	})
	redisErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analytics_redis_errors_total",
		Help: "Total redis errors",
	})
)

func init() {
	prometheus.MustRegister(eventsConsumed, eventsInvalid, redisUpdates, redisErrors)
}

// bookingEvent mirrors the payload published by the API server.
type bookingEvent struct {
	Session string         `json:"session"`
	Type    string         `json:"type"`
	At      time.Time      `json:"at"`
	Detail  map[string]any `json:"detail,omitempty"`
}

func main() {
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	logger := logging.NewLogger(os.Getenv("LOG_LEVEL"))

	brokers := []string{"localhost:9092"}
	if env := os.Getenv("KAFKA_BROKERS"); env != "" {
		brokers = brokers[:0]
		for _, b := range strings.Split(env, ",") {
			if s := strings.TrimSpace(b); s != "" {
				brokers = append(brokers, s)
			}
		}
	}
	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "booking-events"
	}
	group := os.Getenv("KAFKA_GROUP")
	if group == "" {
		group = "naijago-analytics"
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	rc := redis.NewClient(&redis.Options{Addr: redisAddr, Password: os.Getenv("REDIS_PASSWORD")})
	stats := &redisStats{c: rc}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	logger.Info("analytics consuming", "topic", topic, "brokers", brokers, "group", group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down")
				return
			}
			logger.Error("kafka read error", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		eventsConsumed.Inc()

		var ev bookingEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.Type == "" {
			eventsInvalid.Inc()
			logger.Warn("invalid event", "error", err)
			continue
		}

		if err := updateStatsWithRetry(ctx, stats, ev, 3, 200*time.Millisecond); err != nil {
			redisErrors.Inc()
			logger.Error("redis update failed", "session", ev.Session, "type", ev.Type, "error", err)
			continue
		}
		redisUpdates.Inc()
	}
}

// StatsUpdater is the subset of redis operations the consumer needs, small
// enough to fake in tests.
type StatsUpdater interface {
	IncrEventCount(ctx context.Context, eventType string) error
	SetLastEvent(ctx context.Context, session, eventType string, at time.Time) error
}

type redisStats struct{ c *redis.Client }

func (r *redisStats) IncrEventCount(ctx context.Context, eventType string) error {
	return r.c.HIncrBy(ctx, "booking:event_counts", eventType, 1).Err()
}

func (r *redisStats) SetLastEvent(ctx context.Context, session, eventType string, at time.Time) error {
	return r.c.HSet(ctx, "booking:session:"+session, map[string]interface{}{
		"last_event": eventType,
		"last_at":    at.Format(time.RFC3339),
	}).Err()
}

// updateStatsWithRetry applies both updates with retry and doubling backoff.
func updateStatsWithRetry(ctx context.Context, su StatsUpdater, ev bookingEvent, attempts int, delay time.Duration) error {
	for i := 0; i < attempts; i++ {
		if err := su.IncrEventCount(ctx, ev.Type); err != nil {
			if i == attempts-1 {
				return err
			}
			time.Sleep(delay)
			delay *= 2
			continue
		}
		if err := su.SetLastEvent(ctx, ev.Session, ev.Type, ev.At); err != nil {
			if i == attempts-1 {
				return err
			}
			time.Sleep(delay)
			delay *= 2
			continue
		}
		return nil
	}
	return nil
}
