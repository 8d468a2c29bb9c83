// Package server wires the assistant components together and serves the
// HTTP surface.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"

	appconfig "github.com/tiempoactualizado/mail-assistant/internal/config"
	"github.com/tiempoactualizado/mail-assistant/internal/mail_service"
	"github.com/tiempoactualizado/mail-assistant/internal/memory_service"
	"github.com/tiempoactualizado/mail-assistant/internal/models"
	"github.com/tiempoactualizado/mail-assistant/internal/models/anthropic"
	"github.com/tiempoactualizado/mail-assistant/internal/models/openai"
	"github.com/tiempoactualizado/mail-assistant/internal/orchestrator"
	"github.com/tiempoactualizado/mail-assistant/internal/storage_manager"
	"github.com/tiempoactualizado/mail-assistant/internal/summarizer"
	"github.com/tiempoactualizado/mail-assistant/internal/tools"
	"github.com/tiempoactualizado/mail-assistant/internal/tools/weather"
	"github.com/tiempoactualizado/mail-assistant/pkg/logger"
	"github.com/tiempoactualizado/mail-assistant/pkg/metrics"
)

// replier generates one reply per identity. Implemented by the orchestrator.
type replier interface {
	Reply(ctx context.Context, identity, text string) string
}

// inboxProcessor drives one inbox poll. Implemented by the mail processor.
type inboxProcessor interface {
	ProcessInbox(ctx context.Context) ([]string, error)
}

// Server encapsulates all assistant components and lifecycle management.
type Server struct {
	cfg     *appconfig.AppConfig
	log     logger.Logger
	metrics *metrics.Metrics

	replier   replier
	processor inboxProcessor // nil when Gmail is not configured
	router    chi.Router

	cancel context.CancelFunc
}

// New creates a new Server instance with all components initialized.
func New(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		log:     log,
		metrics: metrics.NewMetrics(cfg.Metrics.EnableHttpMetrics, cfg.Metrics.EnableJobMetrics, log),
	}

	storageManager, err := s.createStorageManager(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage manager: %w", err)
	}

	llmModel, err := s.createLLMModel()
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM model: %w", err)
	}

	memoryStore := memory_service.New(memory_service.Config{
		FileProvider: storageManager.GetProvider("conversations"),
		Summarizer: summarizer.New(summarizer.Config{
			Model:  llmModel,
			Logger: log,
		}),
		Logger:              log,
		Metrics:             s.metrics,
		CompactionThreshold: cfg.Memory.CompactionThreshold,
		RetainedTail:        cfg.Memory.RetainedTail,
	})

	registry, err := s.createToolRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to create tool registry: %w", err)
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Model:          llmModel,
		Memory:         memoryStore,
		Tools:          registry,
		Logger:         log,
		Metrics:        s.metrics,
		RecentWindow:   cfg.Memory.RecentWindow,
		IncludeSummary: cfg.Memory.IncludeSummary,
		TurnTimeout:    cfg.LLM.TurnTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	s.replier = orch

	if cfg.Gmail.Enabled() {
		s.processor, err = s.createMailProcessor(orch)
		if err != nil {
			return nil, fmt.Errorf("failed to create mail processor: %w", err)
		}
	} else {
		log.Info("Email processing disabled (missing GMAIL_ACCESS_TOKEN)")
	}

	s.router = s.routes()

	return s, nil
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	defer cancel()

	s.setupGracefulShutdown()

	if s.cfg.Metrics.ExposeMetrics {
		_, stopMetrics := s.metrics.Listen(s.cfg.Metrics.Port)
		defer stopMetrics()
	}

	httpServer := &http.Server{
		Addr:           fmt.Sprintf(":%d", s.cfg.HTTP.Port),
		Handler:        s.router,
		ReadTimeout:    s.cfg.HTTP.ReadTimeout(),
		WriteTimeout:   s.cfg.HTTP.WriteTimeout(),
		IdleTimeout:    s.cfg.HTTP.IdleTimeout(),
		MaxHeaderBytes: s.cfg.HTTP.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", logger.IntField("port", s.cfg.HTTP.Port))
		errChan <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("HTTP server shutdown error", logger.ErrorField(err))
		return err
	}

	s.log.Info("HTTP server stopped")
	return nil
}

// setupGracefulShutdown sets up signal handling for graceful shutdown.
func (s *Server) setupGracefulShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		s.log.Info("Received shutdown signal", logger.StringField("signal", sig.String()))

		if s.cancel != nil {
			s.cancel()
		}

		// Give processes time to shutdown gracefully, then force exit
		time.AfterFunc(30*time.Second, func() {
			s.log.Warn("Force exiting due to timeout")
			os.Exit(1)
		})
	}()
}

// createStorageManager creates a storage manager based on configuration.
func (s *Server) createStorageManager(ctx context.Context) (*storage_manager.StorageManager, error) {
	cfg := &s.cfg.Storage

	switch cfg.Backend {
	case appconfig.StorageLocal:
		s.log.Info("Using local file-based storage", logger.StringField("directory", cfg.LocalDir))

		// 0750 needed for directory traversal
		if err := os.MkdirAll(cfg.LocalDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}

		return storage_manager.New(storage_manager.Config{
			Backend: storage_manager.BackendLocal,
			LocalConfig: &storage_manager.LocalConfig{
				BaseDir: cfg.LocalDir,
			},
		})

	case appconfig.StorageS3:
		s.log.Info("Using S3-based storage",
			logger.StringField("bucket", cfg.S3Bucket),
			logger.StringField("prefix", cfg.S3Prefix),
			logger.StringField("region", cfg.S3Region))

		configOptions := []func(*awsconfig.LoadOptions) error{}
		if cfg.S3Profile != "" {
			configOptions = append(configOptions, awsconfig.WithSharedConfigProfile(cfg.S3Profile))
		}
		if cfg.S3Region != "" {
			configOptions = append(configOptions, awsconfig.WithRegion(cfg.S3Region))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOptions...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		return storage_manager.New(storage_manager.Config{
			Backend: storage_manager.BackendS3,
			S3Config: &storage_manager.S3Config{
				Bucket: cfg.S3Bucket,
				Prefix: cfg.S3Prefix,
				Client: s3.NewFromConfig(awsCfg),
			},
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend: %s (must be 'local' or 's3')", cfg.Backend)
	}
}

// createLLMModel creates a completion model based on the configured provider.
func (s *Server) createLLMModel() (models.CompletionModel, error) {
	provider := strings.ToLower(s.cfg.LLM.Provider)

	switch provider {
	case appconfig.ProviderClaude:
		s.log.Info("Initializing Claude model",
			logger.StringField("model", s.cfg.Anthropic.Model))
		return anthropic.NewClaudeModel(anthropic.Config{
			APIKey:    s.cfg.Anthropic.APIKey,
			ModelName: s.cfg.Anthropic.Model,
			Logger:    s.log,
		})

	case appconfig.ProviderOpenAI:
		s.log.Info("Initializing OpenAI model",
			logger.StringField("model", s.cfg.OpenAI.Model))
		return openai.New(openai.Config{
			APIKey:    s.cfg.OpenAI.APIKey,
			ModelName: s.cfg.OpenAI.Model,
			BaseURL:   s.cfg.OpenAI.BaseURL,
			Logger:    s.log,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// createToolRegistry creates the tool registry available to the model.
func (s *Server) createToolRegistry() (*tools.Registry, error) {
	weatherTool, err := weather.New(weather.Config{
		BaseURL: s.cfg.Weather.BaseURL,
		Timeout: s.cfg.Weather.Timeout,
		Logger:  s.log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create weather tool: %w", err)
	}

	return tools.NewRegistry(s.log, s.metrics, weatherTool)
}

// createMailProcessor creates the Gmail-backed inbox processor.
func (s *Server) createMailProcessor(orch replier) (*mail_service.Processor, error) {
	provider, err := mail_service.NewGmailProvider(mail_service.GmailConfig{
		HTTPClient:    mail_service.NewStaticTokenClient(s.cfg.Gmail.AccessToken),
		BaseURL:       s.cfg.Gmail.BaseURL,
		TargetAddress: s.cfg.Gmail.TargetAddress,
		LabelName:     s.cfg.Gmail.LabelName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail provider: %w", err)
	}

	return mail_service.NewProcessor(mail_service.ProcessorConfig{
		Provider:     provider,
		Replier:      orch,
		Logger:       s.log,
		Metrics:      s.metrics,
		MaxResults:   s.cfg.Gmail.MaxResults,
		ReplySubject: s.cfg.Gmail.ReplySubject,
	})
}
