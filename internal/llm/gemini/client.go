package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/joseph-ayodele/quote-compare/internal/common"
	"github.com/joseph-ayodele/quote-compare/internal/llm"
)

// Config for the Gemini client.
type Config struct {
	APIKey      string
	Model       string // default gemini-2.5-flash
	Temperature float32
	Timeout     time.Duration // per-request deadline; 0 leaves the SDK default
}

// generator is the part of *genai.Models we use.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Client struct {
	cfg    Config
	models generator
	logger *slog.Logger
}

// NewClient dials the Gemini API.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing GEMINI_API_KEY")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return newClient(cfg, c.Models, logger), nil
}

func newClient(cfg Config, models generator, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, models: models, logger: logger}
}

// Extract implements llm.FieldExtractor with one GenerateContent call.
func (c *Client) Extract(ctx context.Context, req llm.Request) (llm.Response, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
	}
	start := time.Now()

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"provider", "gemini",
		"model", c.cfg.Model,
		"file", req.FileName,
		"fields", len(req.Fields),
		"text_len", len(req.Text),
		"images", len(req.Images),
	)

	content := &genai.Content{Role: genai.RoleUser, Parts: parts(req)}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(c.cfg.Temperature),
	}

	res, err := c.models.GenerateContent(ctx, c.cfg.Model, []*genai.Content{content}, cfg)
	if err != nil {
		c.logger.Error("llm.extract.api_error",
			"req_id", rid, "file", req.FileName, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Response{Model: c.cfg.Model}, llm.RequestError(req.FileName, err)
	}

	out := llm.Response{Model: c.cfg.Model}
	if res != nil {
		out.Text = res.Text()
		if res.ModelVersion != "" {
			out.Model = res.ModelVersion
		}
		if env, mErr := json.Marshal(res); mErr == nil {
			out.Envelope = env
		} else {
			c.logger.Warn("llm.extract.envelope_encode_error", "req_id", rid, "error", mErr)
		}
	}

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"file", req.FileName,
		"model", out.Model,
		"text_len", len(out.Text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func parts(req llm.Request) []*genai.Part {
	out := []*genai.Part{{Text: llm.BuildPrompt(req.Fields)}}
	if strings.TrimSpace(req.Text) != "" {
		return append(out, &genai.Part{Text: llm.BuildTextPayload(req.Text)})
	}
	for _, img := range req.Images {
		out = append(out, &genai.Part{InlineData: &genai.Blob{MIMEType: img.MIMEType, Data: img.Data}})
	}
	return out
}
