package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/quote-compare/internal/common"
	"github.com/joseph-ayodele/quote-compare/internal/compare"
	"github.com/joseph-ayodele/quote-compare/internal/llm"
)

// ParseStage sends one extraction request and normalizes the reply.
type ParseStage struct {
	Extractor  llm.FieldExtractor
	Normalizer *llm.Normalizer
	Logger     *slog.Logger
}

func NewParseStage(fe llm.FieldExtractor, logger *slog.Logger) *ParseStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParseStage{Extractor: fe, Normalizer: llm.NewNormalizer(logger), Logger: logger}
}

// parsed is the successful result of the parse stage.
type parsed struct {
	Row    compare.Row
	Report llm.NormalizeReport
	Raw    string
	Model  string
}

// Request performs the single model call for a document.
func (p *ParseStage) Request(ctx context.Context, fileName string, fields []string, in payload) (llm.Response, error) {
	resp, err := p.Extractor.Extract(ctx, llm.Request{
		FileName: fileName,
		Fields:   fields,
		Text:     in.Text,
		Images:   in.Images,
	})
	if err != nil {
		var de *common.DocumentError
		if !errors.As(err, &de) {
			err = llm.RequestError(fileName, err)
		}
		return resp, err
	}
	return resp, nil
}

// Normalize reconciles a reply against fields.
func (p *ParseStage) Normalize(resp llm.Response, fields []string, fileName string) (parsed, error) {
	raw := rawText(resp)
	row, rep, err := p.Normalizer.Normalize(resp, fields, fileName)
	if err != nil {
		return parsed{Raw: raw, Model: resp.Model}, err
	}
	return parsed{Row: row, Report: rep, Raw: raw, Model: resp.Model}, nil
}

func rawText(resp llm.Response) string {
	if text, _, err := llm.ResponseText(resp); err == nil {
		return text
	}
	return string(resp.Envelope)
}
