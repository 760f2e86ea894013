package ocr

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os/exec"
	"unicode/utf8"
)

type Config struct {
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"
	DPI      int    // rasterization DPI for the image fallback, default 150

	MinTextChars  int // below this many runes the PDF is treated as scanned
	MaxImagePages int // pages sent to the model on image fallback, default 3
	CacheEntries  int // per-cache bound, default 64

	TempDir string // scratch space for pdftoppm output; "" -> os.TempDir()
}

// PageImage is one rasterized PDF page.
type PageImage struct {
	Page     int
	MIMEType string
	Data     []byte
}

// Extractor pulls text out of PDFs and renders pages for the image fallback.
// Both steps are memoized by content hash.
type Extractor struct {
	cfg      Config
	runner   Runner
	readText pageTextReader
	texts    *memo[string]
	renders  *memo[[]PageImage]
	logger   *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 150
	}
	if cfg.MinTextChars < 0 {
		cfg.MinTextChars = 0
	}
	if cfg.MaxImagePages <= 0 {
		cfg.MaxImagePages = 3
	}
	if cfg.CacheEntries <= 0 {
		cfg.CacheEntries = 64
	}
	return &Extractor{
		cfg:      cfg,
		runner:   execRunner{logger: logger},
		readText: readPDFPages,
		texts:    newMemo[string](cfg.CacheEntries),
		renders:  newMemo[[]PageImage](cfg.CacheEntries),
		logger:   logger,
	}
}

// WithRunner swaps the command runner, mainly for tests.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// NeedsImages reports whether text is too short to send on its own.
func (e *Extractor) NeedsImages(text string) bool {
	return utf8.RuneCountInString(text) < e.cfg.MinTextChars
}

// MaxImagePages is the configured page cap for the image fallback.
func (e *Extractor) MaxImagePages() int {
	return e.cfg.MaxImagePages
}

// RendererAvailable reports whether the pdftoppm binary can be found.
func (e *Extractor) RendererAvailable() bool {
	_, err := exec.LookPath(e.cfg.Pdftoppm)
	return err == nil
}

// ContentHash is the hex SHA-256 of b.
func ContentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
