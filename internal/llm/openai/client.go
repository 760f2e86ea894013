package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/quote-compare/internal/common"
	"github.com/joseph-ayodele/quote-compare/internal/llm"
)

// Extract implements llm.FieldExtractor with one chat/completions call.
// Text documents go as a text part; scanned ones as image_url data URLs.
func (c *Client) Extract(ctx context.Context, req llm.Request) (llm.Response, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
		ctx = common.WithRequestID(ctx, rid)
	}
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"provider", "openai",
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"file", req.FileName,
		"fields", len(req.Fields),
		"text_len", len(req.Text),
		"images", len(req.Images),
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(llm.BuildFieldsJSONSchema(req.Fields))},
			{"role": "user", "content": userContent(req)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, _, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "file", req.FileName, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Response{Envelope: raw, Model: c.cfg.Model}, llm.RequestError(req.FileName, err)
	}

	var cc struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Response{Envelope: raw, Model: c.cfg.Model}, llm.RequestError(req.FileName, fmt.Errorf("decode openai response: %w", err))
	}

	out := llm.Response{Envelope: raw, Model: c.cfg.Model}
	if cc.Model != "" {
		out.Model = cc.Model
	}
	if len(cc.Choices) > 0 {
		out.Text = cc.Choices[0].Message.Content
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

func userContent(req llm.Request) []map[string]any {
	parts := []map[string]any{
		{"type": "text", "text": llm.BuildPrompt(req.Fields)},
	}
	if strings.TrimSpace(req.Text) != "" {
		return append(parts, map[string]any{"type": "text", "text": llm.BuildTextPayload(req.Text)})
	}
	for _, img := range req.Images {
		url := "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
		parts = append(parts, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": url},
		})
	}
	return parts
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
