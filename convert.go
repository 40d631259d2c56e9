package lsifq

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jward/lsifq/internal/blob"
	"github.com/jward/lsifq/internal/graph"
	"github.com/jward/lsifq/internal/lsif"
	"github.com/jward/lsifq/internal/store"
)

// Convert writes the dump at dumpPath into a SQLite database at outPath.
//
// FormatGraph creates a new database and fails if outPath exists.
// FormatBlob appends a build version tagged by WithVersionTag, or by the
// current time when unset, to outPath. An existing file must already be a
// blob database.
func Convert(ctx context.Context, dumpPath, outPath, format string, opts ...Option) error {
	o := buildOptions(opts)
	switch format {
	case FormatGraph:
		return convertGraph(ctx, dumpPath, outPath, o)
	case FormatBlob:
		return convertBlob(ctx, dumpPath, outPath, o)
	default:
		return fmt.Errorf("lsifq: convert: %w: %q", ErrUnknownFormat, format)
	}
}

func convertGraph(ctx context.Context, dumpPath, outPath string, o *options) error {
	if _, err := os.Stat(outPath); err == nil {
		return fmt.Errorf("lsifq: convert: %s already exists", outPath)
	}
	f, err := os.Open(dumpPath)
	if err != nil {
		return fmt.Errorf("lsifq: convert: %w", err)
	}
	defer f.Close()

	s, err := store.NewStore(outPath)
	if err != nil {
		return fmt.Errorf("lsifq: convert: %w", err)
	}
	defer s.Close()
	if err := s.Migrate(FormatGraph); err != nil {
		return fmt.Errorf("lsifq: convert: %w", err)
	}

	w := store.NewWriter(s)
	var n int
	err = graph.Scan(ctx, f, func(e *lsif.Element) error {
		n++
		return w.Add(e)
	})
	if err != nil {
		return fmt.Errorf("lsifq: convert %s: %w", dumpPath, err)
	}
	if err := w.Commit(); err != nil {
		return fmt.Errorf("lsifq: convert: commit: %w", err)
	}
	o.log.Info("converted dump", "dump", dumpPath, "out", outPath, "format", FormatGraph, "elements", n)
	return nil
}

func convertBlob(ctx context.Context, dumpPath, outPath string, o *options) error {
	if _, err := os.Stat(outPath); err == nil {
		format, err := storeFormat(outPath)
		if err != nil && !errors.Is(err, store.ErrUnknownFormat) {
			return fmt.Errorf("lsifq: convert: %w", err)
		}
		if format != FormatBlob {
			return fmt.Errorf("lsifq: convert: %s is not a blob database", outPath)
		}
	}

	g, err := graph.LoadFile(ctx, dumpPath, o.log)
	if err != nil {
		return fmt.Errorf("lsifq: convert %s: %w", dumpPath, err)
	}
	s, err := store.NewStore(outPath)
	if err != nil {
		return fmt.Errorf("lsifq: convert: %w", err)
	}
	defer s.Close()
	if err := s.Migrate(FormatBlob); err != nil {
		return fmt.Errorf("lsifq: convert: %w", err)
	}
	tag := o.versionTag
	if tag == "" {
		tag = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if _, err := blob.Write(ctx, s, g, tag, o.log); err != nil {
		return fmt.Errorf("lsifq: convert: %w", err)
	}
	return nil
}
