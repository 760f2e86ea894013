package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/quote-compare/internal/common"
	"github.com/joseph-ayodele/quote-compare/internal/llm"
	"github.com/joseph-ayodele/quote-compare/internal/llm/gemini"
	"github.com/joseph-ayodele/quote-compare/internal/llm/openai"
	"github.com/joseph-ayodele/quote-compare/internal/ocr"
	"github.com/joseph-ayodele/quote-compare/internal/pipeline"
	"github.com/joseph-ayodele/quote-compare/internal/repository"
)

var rootCmd = &cobra.Command{
	Use:   "quotes",
	Short: "Extract insurance quote fields from PDFs into a comparison table",
	Long: `quotes reads insurance quote PDFs, asks a language model for the fields of
a spreadsheet template and collects the answers into a comparison workbook.

Configuration is read from the environment (LLM_PROVIDER, GEMINI_API_KEY,
OPENAI_API_KEY, DB_URL, AUTH_CONFIG, ...).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, batchCmd, hashPasswordCmd)
}

func newLogger(cfg *common.Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
	return logger
}

// app holds the shared extraction wiring of serve and batch.
type app struct {
	cfg       *common.Config
	logger    *slog.Logger
	db        *repository.DB
	jobs      repository.ExtractJobRepository
	reader    *ocr.Extractor
	processor *pipeline.Processor
}

func newApp(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*app, error) {
	fe, err := newFieldExtractor(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	db, err := repository.Open(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	jobs := repository.NewExtractJobRepository(db, logger)

	reader := ocr.NewExtractor(ocr.Config{
		Pdftoppm:      cfg.PDF.Pdftoppm,
		DPI:           cfg.PDF.DPI,
		MinTextChars:  cfg.PDF.MinTextChars,
		MaxImagePages: cfg.PDF.MaxImagePages,
		CacheEntries:  cfg.PDF.CacheEntries,
	}, logger)
	if !reader.RendererAvailable() {
		logger.Warn("ocr.renderer.unavailable", "binary", cfg.PDF.Pdftoppm,
			"hint", "scanned PDFs will fail until poppler-utils is installed")
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		jobs:      jobs,
		reader:    reader,
		processor: pipeline.NewProcessor(logger, reader, fe, jobs),
	}, nil
}

func (a *app) Close() {
	a.db.Close(a.logger)
}

func newFieldExtractor(ctx context.Context, cfg *common.Config, logger *slog.Logger) (llm.FieldExtractor, error) {
	switch cfg.LLM.Provider {
	case common.ProviderOpenAI:
		logger.Info("llm.provider", "provider", cfg.LLM.Provider, "model", cfg.LLM.OpenAIModel)
		return openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.OpenAIAPIKey,
			BaseURL:     cfg.LLM.OpenAIBaseURL,
			Model:       cfg.LLM.OpenAIModel,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger), nil
	default:
		logger.Info("llm.provider", "provider", cfg.LLM.Provider, "model", cfg.LLM.GeminiModel)
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.LLM.GeminiAPIKey,
			Model:       cfg.LLM.GeminiModel,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
		if err != nil {
			return nil, common.NewAppError("CONFIG_ERROR", "gemini client", fmt.Errorf("%w: %v", common.ErrConfig, err))
		}
		return c, nil
	}
}
