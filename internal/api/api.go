// Package api provides HTTP handlers and the main API server logic for
// Veerkracht.
//
// It exposes RESTful endpoints for running the orchestration pipeline,
// managing the seed corpus, and reading the audit trail. The API wires the
// store, genai, hitl, and orchestrator modules together.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/VeerkrachtLab/veerkracht/internal/audit"
	"github.com/VeerkrachtLab/veerkracht/internal/genai"
	"github.com/VeerkrachtLab/veerkracht/internal/hitl"
	"github.com/VeerkrachtLab/veerkracht/internal/orchestrator"
	"github.com/VeerkrachtLab/veerkracht/internal/store"
)

// Default server configuration.
const (
	DefaultAddr           = ":8080"
	DefaultRequestTimeout = 30 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the listen address (e.g. ":8080").
	Addr string
	// DBDriver selects the store backend: "postgres", "sqlite3", or empty
	// for the in-memory store.
	DBDriver string
	// Orchestrator overrides the default pipeline calibration.
	Orchestrator *orchestrator.Config
}

// Option configures the API server via functional options.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithDBDriver selects the store backend driver.
func WithDBDriver(driver string) Option {
	return func(o *Opts) { o.DBDriver = driver }
}

// WithOrchestratorConfig overrides the pipeline calibration.
func WithOrchestratorConfig(cfg orchestrator.Config) Option {
	return func(o *Opts) { o.Orchestrator = &cfg }
}

// Server bundles the HTTP handlers with their collaborators.
type Server struct {
	st   store.Store
	orch *orchestrator.Orchestrator
}

// NewServer creates an API server around an existing store and orchestrator.
func NewServer(st store.Store, orch *orchestrator.Orchestrator) *Server {
	return &Server{st: st, orch: orch}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/orchestrate", s.orchestrateHandler)
	mux.HandleFunc("/seeds", s.seedsHandler)
	mux.HandleFunc("/seeds/", s.seedsHandler)
	mux.HandleFunc("/audit", s.auditHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run builds the full module stack from options and serves HTTP until the
// listener fails.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, notifierOpts []hitl.Option, apiOpts []Option) error {
	var o Opts
	for _, opt := range apiOpts {
		opt(&o)
	}
	if o.Addr == "" {
		o.Addr = DefaultAddr
	}

	st, err := buildStore(o.DBDriver, storeOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	// A missing provider key is not fatal: the pipeline degrades to its
	// symbolic and template strategies.
	var client genai.ClientInterface
	if c, cerr := genai.NewClient(genaiOpts...); cerr != nil {
		slog.Warn("api.Run: genai client unavailable, running without generation", "error", cerr)
	} else {
		client = c
	}

	// Same for the on-call pager: escalation tickets still persist without it.
	var notifier hitl.Notifier
	if n, nerr := hitl.NewTwilioNotifier(notifierOpts...); nerr != nil {
		slog.Warn("api.Run: notifier unavailable, escalations will not page", "error", nerr)
	} else {
		notifier = n
	}

	cfg := orchestrator.DefaultConfig()
	if o.Orchestrator != nil {
		cfg = *o.Orchestrator
	}
	orch := orchestrator.New(st, client, hitl.NewStoreQueue(st, notifier), audit.NewStoreSink(st), cfg)

	srv := &http.Server{
		Addr:              o.Addr,
		Handler:           NewServer(st, orch).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       DefaultRequestTimeout,
		WriteTimeout:      DefaultRequestTimeout,
	}
	slog.Info("Veerkracht API running", "addr", o.Addr, "db_driver", o.DBDriver)
	return srv.ListenAndServe()
}

func buildStore(driver string, opts []store.Option) (store.Store, error) {
	switch driver {
	case "postgres":
		return store.NewPostgresStore(opts...)
	case "sqlite3", "sqlite":
		return store.NewSQLiteStore(opts...)
	case "":
		slog.Warn("api.buildStore: no database driver configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
