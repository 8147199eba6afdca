package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"github.com/noah-isme/payscore/internal/app"
	"github.com/noah-isme/payscore/internal/erpnext"
	"github.com/noah-isme/payscore/internal/insights"
	"github.com/noah-isme/payscore/internal/scoring"
	scoringhttp "github.com/noah-isme/payscore/internal/scoring/http"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	// Best effort; the environment wins over the file.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	erpClient := erpnext.NewClient(cfg.ERPNextURL, cfg.ERPNextAPIKey, cfg.ERPNextAPISecret, cfg.ERPNextTimeout)
	if err := erpClient.Ping(ctx); err != nil {
		logger.Warn("erpnext ping", slog.Any("error", err))
	}

	var analyzer *scoring.AIAnalyzer
	if cfg.ScoringEngine == app.EngineAI {
		aiClient := openai.NewClient(cfg.OpenAIAPIKey)
		analyzer = scoring.NewAIAnalyzer(aiClient, cfg.OpenAIModel, cfg.AITimeout, logger)
	}

	insightSvc := insights.NewService()
	scoringSvc := scoring.NewService(
		erpClient,
		scoring.NewNormalizer(),
		scoring.NewRuleEngine(cfg.MinTransactions),
		analyzer,
		insightSvc,
		scoring.Options{
			UseAI:          cfg.ScoringEngine == app.EngineAI,
			ScoreWindow:    cfg.ScoreWindow(),
			FollowUpWindow: cfg.FollowUpWindow(),
			MaxConcurrency: cfg.AIMaxConcurrency,
			TopK:           cfg.AITopK,
		},
		logger,
	)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		CustomersHandler: scoringhttp.NewHandler(logger, scoringSvc, erpClient),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", cfg.AppAddr),
			slog.String("engine", cfg.ScoringEngine))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
