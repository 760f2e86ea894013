package ocr

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// pageTextReader returns the embedded text of every page, in order.
type pageTextReader func(data []byte) ([]string, error)

// ExtractText returns the embedded text of a PDF, pages joined by a blank
// line. It never fails: a corrupt PDF or one without a text layer gives "".
func (e *Extractor) ExtractText(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	hash := ContentHash(data)
	text, hit, _ := e.texts.do(hash, func() (string, error) {
		start := time.Now()
		pages, err := e.readText(data)
		if err != nil {
			e.logger.Warn("ocr.pdf_text.failed", "hash", hash[:12], "error", err)
			return "", nil
		}
		text := joinPages(pages)
		e.logger.Debug("ocr.pdf_text.ok",
			"hash", hash[:12],
			"pages", len(pages),
			"chars", len([]rune(text)),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return text, nil
	})
	if hit {
		e.logger.Debug("ocr.pdf_text.cache_hit", "hash", hash[:12])
	}
	return text
}

func joinPages(pages []string) string {
	var b strings.Builder
	for _, p := range pages {
		p = Normalize(p)
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p)
	}
	return strings.TrimSpace(b.String())
}

// readPDFPages reads page text with ledongthuc/pdf, which panics on some
// malformed inputs.
func readPDFPages(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}
