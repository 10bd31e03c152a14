package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/hoard/internal/layout"
	"github.com/mesh-intelligence/hoard/pkg/types"
)

// Source is the part of the image store that export reads from.
type Source interface {
	Root() string
	Walk(ctx context.Context, f types.Filter, fn func(types.EntityInfo) error) error
}

// ExportOptions controls Export.
type ExportOptions struct {
	Filter types.Filter
	// SkipExisting leaves files that already exist in the destination alone.
	SkipExisting bool
	// DryRun counts what would be copied without writing.
	DryRun bool
	Logger *slog.Logger
}

// ExportReport summarizes an export.
type ExportReport struct {
	Entities int   `json:"entities" yaml:"entities"`
	Files    int   `json:"files" yaml:"files"`
	Skipped  int   `json:"skipped" yaml:"skipped"`
	Bytes    int64 `json:"bytes" yaml:"bytes"`
}

// Export copies every image, metadata sidecar and prompt file of the entities
// matching opts.Filter from src into dst, keyed by their path relative to the
// source root. Files the store does not recognize are left behind.
func Export(ctx context.Context, src Source, dst FileStore, opts ExportOptions) (ExportReport, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	var report ExportReport
	err := src.Walk(ctx, opts.Filter, func(info types.EntityInfo) error {
		report.Entities++
		for _, v := range info.Variants {
			entries, err := os.ReadDir(v.Path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", v.Path, err)
			}
			for _, e := range entries {
				if e.IsDir() || !layout.IsVariantContent(e.Name()) {
					continue
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				full := filepath.Join(v.Path, e.Name())
				rel, err := filepath.Rel(src.Root(), full)
				if err != nil {
					return err
				}
				key := filepath.ToSlash(rel)

				if opts.SkipExisting {
					ok, err := dst.Exists(ctx, key)
					if err != nil {
						return fmt.Errorf("checking %s: %w", key, err)
					}
					if ok {
						report.Skipped++
						log.Debug("export skip", "key", key)
						continue
					}
				}
				n, err := copyFile(ctx, dst, full, key, opts.DryRun)
				if err != nil {
					return err
				}
				report.Files++
				report.Bytes += n
				log.Debug("exported", "key", key, "bytes", n, "dry_run", opts.DryRun)
			}
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	log.Info("export finished",
		"entities", report.Entities,
		"files", report.Files,
		"skipped", report.Skipped,
		"bytes", report.Bytes)
	return report, nil
}

func copyFile(ctx context.Context, dst FileStore, src, key string, dryRun bool) (int64, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if dryRun {
		info, err := f.Stat()
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	}

	w, err := dst.Write(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", key, err)
	}
	n, err := io.Copy(w, f)
	if err != nil {
		abort(w, err)
		return 0, fmt.Errorf("copying %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("finishing %s: %w", key, err)
	}
	return n, nil
}

// abort discards a partially written file when the writer supports it, and
// closes it otherwise.
func abort(w io.WriteCloser, cause error) {
	if a, ok := w.(interface{ Abort(error) }); ok {
		a.Abort(cause)
		return
	}
	w.Close()
}
