package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/adam-wood/llm-council/agents"
	"github.com/adam-wood/llm-council/api/handlers"
	"github.com/adam-wood/llm-council/config"
	"github.com/adam-wood/llm-council/council"
	"github.com/adam-wood/llm-council/internal/metrics"
	"github.com/adam-wood/llm-council/llm/openrouter"
	"github.com/adam-wood/llm-council/prompt"
	"github.com/adam-wood/llm-council/store"
)

// Server bundles the API server and the metrics server.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpServer    *http.Server
	metricsServer *http.Server
}

// NewServer wires the whole service together.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	collector := metrics.NewCollector("llm_council")

	provider := openrouter.New(openrouter.Config{
		APIKey:  cfg.OpenRouter.APIKey,
		BaseURL: cfg.OpenRouter.BaseURL,
		Timeout: cfg.OpenRouter.Timeout,
		Referer: cfg.OpenRouter.Referer,
		Title:   cfg.OpenRouter.Title,
	}, logger)
	client := metrics.InstrumentClient(provider, collector)

	dataDir := cfg.Council.DataDir
	agentStore := agents.NewStore(dataDir, logger)
	promptStore := prompt.NewStore(dataDir, logger)
	convStore := store.NewConversationStore(dataDir, logger)

	orchestrator := council.New(client, agentStore, promptStore, council.Config{
		Models:        cfg.Council.Models,
		ChairmanModel: cfg.Council.ChairmanModel,
		TitleModel:    cfg.Council.TitleModel,
	}, logger)
	instrumented := instrumentCouncil(orchestrator, collector)

	convHandler := handlers.NewConversationHandler(convStore, instrumented, cfg.Council.TitleTimeout, logger)
	agentHandler := handlers.NewAgentHandler(agentStore, logger)
	promptHandler := handlers.NewPromptHandler(promptStore, logger)
	modelHandler := handlers.NewModelHandler(cfg.Council.Models, cfg.Council.ChairmanModel)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", handlers.HandleRoot)

	mux.HandleFunc("GET /api/conversations", convHandler.HandleList)
	mux.HandleFunc("POST /api/conversations", convHandler.HandleCreate)
	mux.HandleFunc("GET /api/conversations/{id}", convHandler.HandleGet)
	mux.HandleFunc("DELETE /api/conversations/{id}", convHandler.HandleDelete)
	mux.HandleFunc("POST /api/conversations/{id}/message", convHandler.HandleMessage)
	mux.HandleFunc("POST /api/conversations/{id}/message/stream", convHandler.HandleMessageStream)

	mux.HandleFunc("GET /api/agents", agentHandler.HandleList)
	mux.HandleFunc("POST /api/agents", agentHandler.HandleCreate)
	mux.HandleFunc("POST /api/agents/initialize", agentHandler.HandleInitialize)
	mux.HandleFunc("GET /api/agents/chairman", agentHandler.HandleGetChairman)
	mux.HandleFunc("PUT /api/agents/chairman/{agent_id}", agentHandler.HandleSetChairman)
	mux.HandleFunc("GET /api/agents/{agent_id}", agentHandler.HandleGet)
	mux.HandleFunc("PUT /api/agents/{agent_id}", agentHandler.HandleUpdate)
	mux.HandleFunc("DELETE /api/agents/{agent_id}", agentHandler.HandleDelete)

	mux.HandleFunc("GET /api/models", modelHandler.HandleModels)

	mux.HandleFunc("GET /api/prompts", promptHandler.HandleGet)
	mux.HandleFunc("PUT /api/prompts/{stage}", promptHandler.HandleUpdate)
	mux.HandleFunc("DELETE /api/prompts/{stage}", promptHandler.HandleReset)
	mux.HandleFunc("DELETE /api/prompts", promptHandler.HandleResetAll)

	handler := Chain(mux,
		Recovery(logger),
		RequestLogger(logger),
		Metrics(collector),
		CORS(cfg.Server.AllowedOrigins),
		JWTAuth(cfg.Auth, logger),
		RateLimit(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
	)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))

	return &Server{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:        fmt.Sprintf(":%d", cfg.Server.HTTPPort),
			Handler:     handler,
			ReadTimeout: cfg.Server.ReadTimeout,
			// WriteTimeout stays at the configured value, zero by default:
			// SSE responses outlive any sane fixed deadline.
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		metricsServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
			Handler: metricsMux,
		},
	}, nil
}

// Start runs both listeners and blocks until the API server stops.
func (s *Server) Start() error {
	go func() {
		s.logger.Info("metrics server listening", zap.String("addr", s.metricsServer.Addr))
		if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	s.logger.Info("API server listening",
		zap.String("addr", s.httpServer.Addr),
		zap.Bool("auth_disabled", s.cfg.Auth.Disabled))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains both listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.metricsServer.Shutdown(ctx); err != nil {
		s.logger.Warn("metrics server shutdown failed", zap.Error(err))
	}
	return s.httpServer.Shutdown(ctx)
}
