// Package server is the thin HTTP adapter over the simulation core. Handlers
// translate between HTTP and core calls; no business rules live here.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	openrouterx "github.com/openvend/vendsim/pkg/openrouter"
	contractx "github.com/openvend/vendsim/sim/contract"
	executorx "github.com/openvend/vendsim/sim/executor"
	gatewayx "github.com/openvend/vendsim/sim/gateway"
	orchestratorx "github.com/openvend/vendsim/sim/orchestrator"
)

type Config struct {
	Addr            string        `split_words:"true" default:":8080"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
}

type Server struct {
	router *chi.Mux
	http   *http.Server

	store    contractx.Store
	orch     *orchestratorx.Orchestrator
	executor *executorx.Executor
	chat     *gatewayx.ChatService
	models   *openrouterx.ModelsClient
}

func New(
	cfg Config,
	store contractx.Store,
	orch *orchestratorx.Orchestrator,
	executor *executorx.Executor,
	chat *gatewayx.ChatService,
	models *openrouterx.ModelsClient,
) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		store:    store,
		orch:     orch,
		executor: executor,
		chat:     chat,
		models:   models,
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	s.routes()

	s.http = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/models", s.handleModels)
		r.Post("/chat", s.handleChat)

		r.Route("/simulations", func(r chi.Router) {
			r.Post("/", s.handleStartSimulation)
			r.Post("/{id}/step", s.handleStepSimulation)
			r.Get("/{id}/logs", s.handleSimulationLogs)
		})

		r.Route("/vending", func(r chi.Router) {
			r.Get("/inventory", s.handleInventory)
			r.Get("/balance", s.handleBalance)
			r.Get("/transactions", s.handleTransactions)
			r.Post("/purchase", s.handlePurchase)
		})
	})
}

// Handler exposes the routed mux for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response failed")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"detail": message})
}
