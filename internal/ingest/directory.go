package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/quote-compare/internal/ocr"
	"github.com/joseph-ayodele/quote-compare/internal/pipeline"
)

type FileResult struct {
	Path         string
	HashHex      string
	Deduplicated bool
	Err          string
}

type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Loaded       uint32
	Deduplicated uint32
	Failed       uint32
}

// Options controls LoadDirectory.
type Options struct {
	SkipHidden bool
	// Recursive walks subdirectories; otherwise only root's own entries are read.
	Recursive bool
	// MaxBytes skips larger files; 0 means no limit.
	MaxBytes int64
}

// LoadDirectory walks root in lexical order and loads every quote document
// (see AllowedExt) as a pipeline.Document. Byte-identical files are loaded
// once. Per-file problems are reported in the results, not as an error.
func LoadDirectory(ctx context.Context, root string, opts Options, logger *slog.Logger) ([]pipeline.Document, []FileResult, DirStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, nil, DirStats{}, errors.New("root path is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, DirStats{}, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, nil, DirStats{}, fmt.Errorf("%s is not a directory", root)
	}

	var (
		docs    []pipeline.Document
		results []FileResult
		stats   DirStats
		seen    = map[string]string{}
	)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil // continue walking
		}
		if opts.SkipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		if opts.MaxBytes > 0 {
			if fi, err := d.Info(); err == nil && fi.Size() > opts.MaxBytes {
				results = append(results, FileResult{Path: path, Err: fmt.Sprintf("file exceeds %d bytes", opts.MaxBytes)})
				stats.Failed++
				return nil
			}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			results = append(results, FileResult{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		hex := ocr.ContentHash(data)
		if first, dup := seen[hex]; dup {
			logger.Info("ingest.dedup", "path", path, "same_as", first)
			results = append(results, FileResult{Path: path, HashHex: hex, Deduplicated: true})
			stats.Deduplicated++
			return nil
		}
		seen[hex] = path

		docs = append(docs, pipeline.Document{FileName: filepath.Base(path), Data: data})
		results = append(results, FileResult{Path: path, HashHex: hex})
		stats.Loaded++
		return nil
	})
	if err != nil {
		return docs, results, stats, fmt.Errorf("walk: %w", err)
	}

	logger.Info("ingest.directory.ok",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"loaded", stats.Loaded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return docs, results, stats, nil
}
