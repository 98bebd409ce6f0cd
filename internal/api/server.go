package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/scout/internal/audit"
	"github.com/nexus-trading/scout/internal/checks"
	"github.com/nexus-trading/scout/internal/model"
	"github.com/nexus-trading/scout/internal/moonshot"
	"github.com/nexus-trading/scout/internal/observability"
	"github.com/nexus-trading/scout/internal/risk"
	"github.com/nexus-trading/scout/internal/rules"
	"github.com/nexus-trading/scout/internal/scan"
	"github.com/nexus-trading/scout/internal/store"
)

// Error codes of the JSON error envelope.
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// APIError is the body of the error envelope {"error": {...}}.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Deps are the collaborators served over HTTP. Models is required; nil
// engines fall back to their defaults and nil Metrics/Health disable those routes.
type Deps struct {
	Models         store.ModelStore
	CheckModels    store.CheckModelStore
	DefaultModelID string

	Evaluator *model.Evaluator
	Checks    *checks.Evaluator
	Risk      *risk.Engine
	Moon      *moonshot.Engine
	Enricher  *scan.Enricher
	Rules     *rules.Registry

	Metrics *observability.Metrics
	Health  *observability.Health
	Alerts  *audit.Trail
}

// Server exposes scoring over HTTP.
type Server struct {
	deps   Deps
	router *mux.Router
}

// NewServer wires the routes.
func NewServer(d Deps) *Server {
	if d.Rules == nil {
		d.Rules = rules.Default()
	}
	if d.Evaluator == nil {
		var opts []model.Option
		if d.Metrics != nil {
			opts = append(opts, model.WithFaultObserver(d.Metrics.RuleFault))
		}
		d.Evaluator = model.NewEvaluator(d.Rules, opts...)
	}
	if d.Checks == nil {
		d.Checks = checks.NewEvaluator(nil)
	}
	if d.Risk == nil {
		d.Risk = risk.New(risk.DefaultConfig())
	}
	if d.Moon == nil {
		d.Moon = moonshot.New(moonshot.DefaultConfig())
	}
	if d.Enricher == nil {
		var obs scan.Observer
		if d.Metrics != nil {
			obs = d.Metrics
		}
		d.Enricher = scan.NewEnricher(d.Risk, d.Moon, nil, obs)
	}

	s := &Server{deps: d, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) routes() {
	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/evaluate", s.handleEvaluate).Methods(http.MethodPost)
	v1.HandleFunc("/check", s.handleCheck).Methods(http.MethodPost)
	v1.HandleFunc("/risk", s.handleRisk).Methods(http.MethodPost)
	v1.HandleFunc("/moonshot", s.handleMoonshot).Methods(http.MethodPost)
	v1.HandleFunc("/models", s.handleListModels).Methods(http.MethodGet)
	v1.HandleFunc("/models/{id}", s.handleGetModel).Methods(http.MethodGet)
	v1.HandleFunc("/models/{id}", s.handlePutModel).Methods(http.MethodPut)
	v1.HandleFunc("/check-models", s.handleListCheckModels).Methods(http.MethodGet)
	v1.HandleFunc("/rules", s.handleRules).Methods(http.MethodGet)
	v1.HandleFunc("/alerts", s.handleAlerts).Methods(http.MethodGet)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics.Handler()).Methods(http.MethodGet)
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "no route for "+r.URL.Path)
	})
}

// Handler returns the router wrapped with CORS for origins (all when empty).
func (s *Server) Handler(origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(s.router)
}

// Config configures the HTTP listener.
type Config struct {
	Addr         string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ListenAndServe serves until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, cfg Config) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(cfg.CORSOrigins),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("api: listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("api: shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("api: encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]APIError{"error": {Code: code, Message: message}})
}

// decode reads a JSON body with numbers kept as json.Number.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
