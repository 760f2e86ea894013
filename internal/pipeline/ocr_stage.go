package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/quote-compare/constants"
	"github.com/joseph-ayodele/quote-compare/internal/common"
	"github.com/joseph-ayodele/quote-compare/internal/llm"
	"github.com/joseph-ayodele/quote-compare/internal/ocr"
)

// DocumentReader is the part of *ocr.Extractor the pipeline needs.
type DocumentReader interface {
	ExtractText(data []byte) string
	NeedsImages(text string) bool
	RenderPages(ctx context.Context, data []byte, maxPages int) ([]ocr.PageImage, error)
	MaxImagePages() int
	PageCount(data []byte) int
}

// payload is what the request stage sends for one document.
type payload struct {
	Text     string
	Images   []llm.Image
	Method   string
	Pages    int
	Status   constants.JobStatus
	Warnings []string
}

// OCRStage picks the text layer or falls back to rendered page images.
type OCRStage struct {
	Reader DocumentReader
	Logger *slog.Logger
}

func NewOCRStage(reader DocumentReader, logger *slog.Logger) *OCRStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRStage{Reader: reader, Logger: logger}
}

// Run returns the text payload when the text layer is long enough, otherwise
// up to MaxImagePages page images. A render failure is fatal only when there
// is no text at all; short text is then sent with a warning.
func (s *OCRStage) Run(ctx context.Context, doc Document) (payload, error) {
	text := s.Reader.ExtractText(doc.Data)
	if !s.Reader.NeedsImages(text) {
		return payload{
			Text:   text,
			Method: constants.MethodText,
			Pages:  s.Reader.PageCount(doc.Data),
			Status: constants.JobStatusTextExtracted,
		}, nil
	}

	s.Logger.Info("pipeline.ocr.image_fallback",
		"file", doc.FileName,
		"text_chars", len([]rune(text)),
		"max_pages", s.Reader.MaxImagePages(),
	)
	pages, err := s.Reader.RenderPages(ctx, doc.Data, s.Reader.MaxImagePages())
	if err != nil {
		if strings.TrimSpace(text) != "" {
			s.Logger.Warn("pipeline.ocr.render_failed_using_text", "file", doc.FileName, "error", err)
			de := common.NewDocumentError(doc.FileName, common.StageRender, "", err)
			w := "画像変換に失敗したため短いテキストで抽出しました: " + err.Error()
			if h := de.Hint(); h != "" {
				w += " (" + h + ")"
			}
			return payload{
				Text:     text,
				Method:   constants.MethodText,
				Pages:    s.Reader.PageCount(doc.Data),
				Status:   constants.JobStatusTextExtracted,
				Warnings: []string{w},
			}, nil
		}
		return payload{Method: constants.MethodImage}, common.NewDocumentError(doc.FileName, common.StageRender, "", err)
	}

	images := make([]llm.Image, 0, len(pages))
	for _, p := range pages {
		images = append(images, llm.Image{MIMEType: p.MIMEType, Data: p.Data})
	}
	return payload{
		Images: images,
		Method: constants.MethodImage,
		Pages:  len(images),
		Status: constants.JobStatusImageFallback,
	}, nil
}
