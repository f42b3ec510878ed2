// Package gateway is the composition root: it wires the config, the sqlite
// stores, the tool dispatcher, the agent loop, and the job engine together
// into one process, and exposes a minimal HTTP surface (health + metrics)
// for an operator to observe it.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/nexus-core/internal/agent"
	"github.com/haasonsaas/nexus-core/internal/agent/providers"
	"github.com/haasonsaas/nexus-core/internal/config"
	"github.com/haasonsaas/nexus-core/internal/dispatch"
	"github.com/haasonsaas/nexus-core/internal/jobs"
	toolsfacts "github.com/haasonsaas/nexus-core/internal/tools/facts"
	toolsjobs "github.com/haasonsaas/nexus-core/internal/tools/jobs"
	toolsreminders "github.com/haasonsaas/nexus-core/internal/tools/reminders"
	"github.com/haasonsaas/nexus-core/internal/observability"
	"github.com/haasonsaas/nexus-core/internal/tasks"
)

// Server is the running process: the job scheduler's tick loop plus an
// HTTP listener for health checks and Prometheus scraping. Start/Stop
// manage both.
type Server struct {
	config *config.Config
	logger *slog.Logger

	jobStore  jobs.Store
	taskStore tasks.Store

	jobService  *jobs.Service
	taskService *tasks.Service
	registry    *dispatch.Registry
	scheduler   *jobs.Scheduler
	turnRunner  *agent.TurnRunner

	metrics *observability.Metrics
	tracer  *observability.Tracer
	tracerShutdown func(context.Context) error

	httpServer   *http.Server
	httpListener net.Listener

	startTime time.Time
}

// NewServer builds every collaborator from cfg but does not start the tick
// loop or the HTTP listener; call Start for that.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("gateway: nil config")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx := context.Background()

	jobStore, err := openJobStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}

	taskStore, err := openTaskStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}

	metrics := observability.NewMetrics()

	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
		ServiceName:    cfg.Observability.Tracing.ServiceName,
		ServiceVersion: cfg.Observability.Tracing.ServiceVersion,
		Environment:    cfg.Observability.Tracing.Environment,
		Endpoint:       cfg.Observability.Tracing.Endpoint,
		SamplingRate:   cfg.Observability.Tracing.SamplingRate,
		EnableInsecure: cfg.Observability.Tracing.Insecure,
		Attributes:     cfg.Observability.Tracing.Attributes,
	})

	jobCfg := jobs.Config{
		AllowEveryMinute: len(cfg.Jobs.CronAllowEveryMinute) > 0,
		EveryMinuteAllow: cfg.Jobs.CronAllowEveryMinute,
		DailyCapPerOwner: cfg.Jobs.JobsPerCallerPerDay,
	}
	jobService := jobs.NewService(jobStore, jobCfg, nil)
	taskService := tasks.NewService(taskStore, nil)

	registry := dispatch.NewRegistry()

	obsLogger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	eventStore := observability.NewMemoryEventStore(0)
	recorder := observability.NewEventRecorder(eventStore, obsLogger)

	turnRunner, err := buildTurnRunner(cfg, registry, metrics, tracer, obsLogger, recorder)
	if err != nil {
		return nil, fmt.Errorf("build agent loop: %w", err)
	}

	jobExecutor := newAgentJobExecutor(turnRunner, logger)

	registry.Register(toolsjobs.NewScheduleTool(jobService, jobExecutor))
	registry.Register(toolsreminders.NewSetTool(jobService))
	registry.Register(toolsreminders.NewListTool(jobService))
	registry.Register(toolsreminders.NewCancelTool(jobService))
	registry.Register(toolsfacts.NewExtractTool(10))

	scheduler := jobs.NewScheduler(jobStore, jobExecutor,
		jobs.WithLogger(logger.With("component", "scheduler")),
		jobs.WithTickInterval(time.Duration(cfg.Jobs.SchedulerTickSeconds)*time.Second),
		jobs.WithMetrics(metrics),
	)

	return &Server{
		config:         cfg,
		logger:         logger,
		jobStore:       jobStore,
		taskStore:      taskStore,
		jobService:     jobService,
		taskService:    taskService,
		registry:       registry,
		scheduler:      scheduler,
		turnRunner:     turnRunner,
		metrics:        metrics,
		tracer:         tracer,
		tracerShutdown: shutdown,
	}, nil
}

func openJobStore(ctx context.Context, cfg *config.Config) (jobs.Store, error) {
	if cfg.Database.URL == "" {
		return jobs.NewMemoryStore(), nil
	}
	return jobs.OpenSQLiteStore(ctx, cfg.Database.URL)
}

func openTaskStore(ctx context.Context, cfg *config.Config) (tasks.Store, error) {
	if cfg.Database.URL == "" {
		return tasks.NewMemoryStore(), nil
	}
	return tasks.OpenSQLiteStore(ctx, cfg.Database.URL)
}

func buildTurnRunner(cfg *config.Config, registry *dispatch.Registry, metrics *observability.Metrics, tracer *observability.Tracer, logger *observability.Logger, recorder *observability.EventRecorder) (*agent.TurnRunner, error) {
	provider, model, err := buildLLMProvider(cfg)
	if err != nil {
		return nil, err
	}
	chat := agent.NewChatClient(provider, model)

	planner := agent.NewPlanner(chat, nil, nil)
	executor := agent.NewActionExecutor(registry)
	validator := agent.NewValidator()
	classifier := agent.NewModeClassifier(chat)

	turnCfg := agent.TurnConfig{
		Planner:       planner,
		Executor:      executor,
		Validator:     validator,
		Writer:        chat,
		Classifier:    classifier,
		Recorder:      recorder,
		Logger:        logger,
		MaxIterations: cfg.Agent.MaxAgentIterations,
		Tracer:        tracer,
		Metrics:       metrics,
	}
	return agent.NewTurnRunner(turnCfg), nil
}

// buildLLMProvider picks the configured default provider. Only anthropic
// and openai are wired, matching internal/agent/providers' trimmed set.
func buildLLMProvider(cfg *config.Config) (agent.LLMProvider, string, error) {
	name := cfg.LLM.DefaultProvider
	providerCfg, ok := cfg.LLM.Providers[name]
	if !ok {
		return nil, "", fmt.Errorf("gateway: no llm provider configured for %q", name)
	}

	switch name {
	case "anthropic":
		provider, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       providerCfg.APIKey,
			BaseURL:      providerCfg.BaseURL,
			DefaultModel: providerCfg.DefaultModel,
		})
		if err != nil {
			return nil, "", err
		}
		return provider, providerCfg.DefaultModel, nil
	case "openai":
		return providers.NewOpenAIProvider(providerCfg.APIKey), providerCfg.DefaultModel, nil
	default:
		return nil, "", fmt.Errorf("gateway: unsupported llm provider %q", name)
	}
}

// Start begins the job scheduler's tick loop and the HTTP listener.
func (s *Server) Start(ctx context.Context) error {
	s.startTime = time.Now()
	s.scheduler.Start(ctx)
	return s.startHTTPServer()
}

// Stop halts the tick loop, closes the HTTP listener, and flushes the
// tracer.
func (s *Server) Stop(ctx context.Context) error {
	s.scheduler.Stop()
	s.stopHTTPServer(ctx)
	if s.tracerShutdown != nil {
		return s.tracerShutdown(ctx)
	}
	return nil
}

func (s *Server) startHTTPServer() error {
	if s.config.Server.MetricsPort == 0 {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.MetricsPort)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.httpServer = server
	s.httpListener = listener

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	s.logger.Info("gateway http server listening", "addr", addr)
	return nil
}

func (s *Server) stopHTTPServer(ctx context.Context) {
	if s.httpServer == nil {
		return
	}
	shutdownCtx := ctx
	if shutdownCtx == nil {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http server shutdown error", "error", err)
	}
	s.httpServer = nil
	s.httpListener = nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","uptime_seconds":%d}`, int(time.Since(s.startTime).Seconds()))
}

// JobService exposes the job CRUD surface for a CLI or other embedder.
func (s *Server) JobService() *jobs.Service { return s.jobService }

// TaskService exposes the task-session surface for a CLI or other embedder.
func (s *Server) TaskService() *tasks.Service { return s.taskService }

// Registry exposes the tool dispatcher for a CLI or other embedder.
func (s *Server) Registry() *dispatch.Registry { return s.registry }
