// Package httpapi exposes the booking lifecycle over HTTP and websockets.
package httpapi

import (
	"database/sql"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/example/naijago/internal/auth"
	"github.com/example/naijago/internal/booking"
	"github.com/example/naijago/internal/config"
	"github.com/example/naijago/internal/driversim"
	"github.com/example/naijago/internal/events"
	"github.com/example/naijago/internal/history"
	"github.com/example/naijago/internal/models"
	"github.com/example/naijago/internal/provider"
)

type Server struct {
	cfg      config.ServerConfig
	logger   *slog.Logger
	users    *auth.Store
	tokens   *auth.Issuer
	provider provider.Client
	events   *events.Publisher
	hub      *StreamHub
	redis    *redis.Client
	pg       *sql.DB
	mux      *mux.Router

	mu       sync.Mutex
	sessions map[string]*booking.Session
	ledgers  map[string]history.Ledger
	loops    map[string]*driversim.Loop
}

// NewServer wires the API from config: Gemini when an API key is set with a
// deterministic stub otherwise, and redis/postgres/kafka each optional.
func NewServer(cfg config.ServerConfig, logger *slog.Logger) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		users:    auth.NewStore(),
		tokens:   auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
		hub:      NewStreamHub(logger),
		mux:      mux.NewRouter(),
		sessions: make(map[string]*booking.Session),
		ledgers:  make(map[string]history.Ledger),
		loops:    make(map[string]*driversim.Loop),
	}

	if cfg.ProviderAPIKey != "" {
		s.provider = provider.NewGeminiClient(cfg.ProviderEndpoint, cfg.ProviderModel, cfg.ProviderAPIKey, logger)
	} else {
		logger.Info("no provider API key configured, using stub options")
		s.provider = provider.NewStub(0)
	}

	if cfg.RedisAddr != "" {
		s.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	}
	if cfg.PGDSN != "" {
		db, err := history.OpenPostgres(cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		s.pg = db
	}
	if len(cfg.KafkaBrokers) > 0 {
		s.events = events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	}

	s.registerMiddleware()
	s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Close releases external connections.
func (s *Server) Close() error {
	if s.events != nil {
		_ = s.events.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.pg != nil {
		return s.pg.Close()
	}
	return nil
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/signup", s.handleSignup).Methods("POST")
	api.HandleFunc("/auth/login", s.handleLogin).Methods("POST")
	api.HandleFunc("/auth/logout", s.handleLogout).Methods("POST")

	api.HandleFunc("/booking", s.handleSnapshot).Methods("GET")
	api.HandleFunc("/booking/search", s.handleSearch).Methods("POST")
	api.HandleFunc("/booking/select", s.handleSelect).Methods("POST")
	api.HandleFunc("/booking/confirm", s.handleConfirm).Methods("POST")
	api.HandleFunc("/booking/cancel", s.handleCancelConfirm).Methods("POST")
	api.HandleFunc("/booking/complete", s.handleComplete).Methods("POST")
	api.HandleFunc("/booking/reset", s.handleReset).Methods("POST")

	api.HandleFunc("/history", s.handleHistoryList).Methods("GET")
	api.HandleFunc("/history", s.handleHistoryClear).Methods("DELETE")

	api.HandleFunc("/driver/online", s.handleDriverOnline).Methods("POST")
	api.HandleFunc("/driver/offline", s.handleDriverOffline).Methods("POST")
	api.HandleFunc("/driver/dashboard", s.handleDriverDashboard).Methods("GET")
	api.HandleFunc("/driver/requests/{id}/accept", s.handleDriverAccept).Methods("POST")
	api.HandleFunc("/driver/requests/{id}/decline", s.handleDriverDecline).Methods("POST")
	api.HandleFunc("/driver/vehicle", s.handleDriverVehicle).Methods("PUT")
	api.HandleFunc("/driver/payouts", s.handleDriverPayouts).Methods("PUT")

	s.mux.HandleFunc("/ws", s.handleWS)
	s.mux.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
	s.mux.Handle("/metrics", metricsHandler())
}

// sessionFor returns the booking session for a key, creating it on first use
// with the backing ledger picked from configured stores.
func (s *Server) sessionFor(key string) *booking.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[key]; ok {
		return sess
	}
	sess := booking.NewSession(key, s.provider, s.ledgerForLocked(key), booking.Options{
		Logger:      s.logger,
		Sink:        s.sinkFor(key),
		RideTick:    s.cfg.RideTick,
		CourierTick: s.cfg.CourierTick,
	})
	s.sessions[key] = sess
	return sess
}

// ledgerFor returns the history ledger for a key, shared between the booking
// session and the history endpoints.
func (s *Server) ledgerFor(key string) history.Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledgerForLocked(key)
}

func (s *Server) ledgerForLocked(key string) history.Ledger {
	if l, ok := s.ledgers[key]; ok {
		return l
	}
	var l history.Ledger
	switch {
	case s.redis != nil:
		l = history.NewRedisLedger(s.redis, key)
	case s.pg != nil:
		l = history.NewPostgresLedger(s.pg, key)
	default:
		l = history.NewMemoryLedger()
	}
	s.ledgers[key] = l
	return l
}

// sinkFor fans lifecycle events out to the session's websocket streams and,
// when configured, to kafka.
func (s *Server) sinkFor(key string) booking.Sink {
	var kafkaSink booking.Sink
	if s.events != nil {
		kafkaSink = s.events.Sink(key)
	}
	return func(ev booking.Event) {
		s.hub.Send(key, ev)
		if kafkaSink != nil {
			kafkaSink(ev)
		}
	}
}

// loopFor returns the driver's request feed, creating it on first use.
func (s *Server) loopFor(email string) *driversim.Loop {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loop, ok := s.loops[email]; ok {
		return loop
	}
	loop := driversim.NewLoop(driversim.Options{
		Logger:     s.logger.With("driver", email),
		Tick:       s.cfg.DriverSimTick,
		RequestTTL: s.cfg.DriverRequestTTL,
		Chance:     s.cfg.DriverRequestChance,
		OnRequest: func(req models.DriverRequest) {
			s.hub.Send(email, map[string]any{"type": "driver_request", "request": req})
		},
	})
	s.loops[email] = loop
	return loop
}
