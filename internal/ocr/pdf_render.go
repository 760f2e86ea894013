package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/joseph-ayodele/quote-compare/constants"
	"github.com/joseph-ayodele/quote-compare/internal/common"
)

// PageCount returns the number of pages in a PDF.
func PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	return n, nil
}

// RenderPages rasterizes at most maxPages leading pages as JPEG.
// maxPages <= 0 uses the configured cap. A missing pdftoppm binary yields
// an error wrapping common.ErrRendererUnavailable; any other rendering
// problem wraps common.ErrRender.
func (e *Extractor) RenderPages(ctx context.Context, data []byte, maxPages int) ([]PageImage, error) {
	if maxPages <= 0 {
		maxPages = e.cfg.MaxImagePages
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", common.ErrRender)
	}
	hash := ContentHash(data)
	key := hash + ":" + strconv.Itoa(maxPages)
	pages, hit, err := e.renders.do(key, func() ([]PageImage, error) {
		return e.render(ctx, data, hash, maxPages)
	})
	if err != nil {
		return nil, err
	}
	if hit {
		e.logger.Debug("ocr.pdf_render.cache_hit", "hash", hash[:12], "pages", len(pages))
	}
	out := make([]PageImage, len(pages))
	copy(out, pages)
	return out, nil
}

func (e *Extractor) render(ctx context.Context, data []byte, hash string, maxPages int) ([]PageImage, error) {
	start := time.Now()

	last := maxPages
	if n, err := PageCount(data); err != nil {
		e.logger.Debug("ocr.pdf_render.page_count_unknown", "hash", hash[:12], "error", err)
	} else if n > 0 && n < last {
		last = n
	}

	tmpDir, err := os.MkdirTemp(e.cfg.TempDir, "qc-pp-*")
	if err != nil {
		return nil, fmt.Errorf("%w: temp dir: %v", common.ErrRender, err)
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.logger.Warn("ocr.pdf_render.cleanup_failed", "dir", path, "error", err)
		}
	}(tmpDir)

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, fmt.Errorf("%w: write input: %v", common.ErrRender, err)
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -jpeg -r 150 -f 1 -l 3 <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm,
		"-jpeg", "-r", strconv.Itoa(e.cfg.DPI),
		"-f", "1", "-l", strconv.Itoa(last),
		in, prefix,
	)
	if err != nil {
		if isMissingBinary(err) {
			e.logger.Error("ocr.pdf_render.unavailable", "binary", e.cfg.Pdftoppm, "error", err)
			return nil, fmt.Errorf("%w: %s: %v", common.ErrRendererUnavailable, e.cfg.Pdftoppm, err)
		}
		msg := strings.TrimSpace(truncate(string(errb), 512))
		return nil, fmt.Errorf("%w: %v: %s", common.ErrRender, err, msg)
	}

	// collect generated images (page-1.jpg, page-2.jpg or zero padded page-01.jpg ...)
	matches, _ := filepath.Glob(prefix + "-*.jpg")
	type numbered struct {
		page int
		path string
	}
	var files []numbered
	for _, m := range matches {
		base := strings.TrimSuffix(filepath.Base(m), ".jpg")
		n, err := strconv.Atoi(base[strings.LastIndexByte(base, '-')+1:])
		if err != nil {
			continue
		}
		files = append(files, numbered{page: n, path: m})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].page < files[j].page })
	if len(files) > maxPages {
		files = files[:maxPages]
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: pdftoppm produced no images", common.ErrRender)
	}

	out := make([]PageImage, 0, len(files))
	for _, f := range files {
		b, err := os.ReadFile(f.path)
		if err != nil {
			return nil, fmt.Errorf("%w: read page %d: %v", common.ErrRender, f.page, err)
		}
		out = append(out, PageImage{Page: f.page, MIMEType: constants.MIMEJPEG, Data: b})
	}

	e.logger.Info("ocr.pdf_render.ok",
		"hash", hash[:12],
		"pages", len(out),
		"dpi", e.cfg.DPI,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func isMissingBinary(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// PageCount is the best-effort page count of data; 0 when unknown.
func (e *Extractor) PageCount(data []byte) int {
	n, err := PageCount(data)
	if err != nil {
		return 0
	}
	return n
}
