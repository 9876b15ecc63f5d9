package discovery

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/workers"

	"golang.org/x/sync/errgroup"
)

// Config configures a directory scan.
type Config struct {
	// Workers is the number of parallel stat workers (0 = auto).
	Workers int
	// SkipHidden skips files and directories starting with ".".
	SkipHidden bool
	// IncludeDocuments keeps files that are not image, video or audio.
	// The default scan ingests recognized media only.
	IncludeDocuments bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:    workers.ForIO(4),
		SkipHidden: true,
	}
}

// Finding is one ingestable file discovered under a scan root.
type Finding struct {
	Path     string
	Size     int64
	Category mediatypes.Category
}

// Scan walks the given roots and returns ingestable files in a
// deterministic order. Unreadable subtrees are logged and skipped
// rather than failing the whole scan.
func Scan(ctx context.Context, cfg Config, roots ...string) ([]Finding, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = workers.ForIO(4)
	}

	paths := make(chan string, 256)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(paths)
		for _, root := range roots {
			if err := walkRoot(gctx, cfg, root, paths); err != nil {
				return err
			}
		}
		return nil
	})

	var mu sync.Mutex
	var findings []Finding

	for i := 0; i < cfg.Workers; i++ {
		g.Go(func() error {
			for path := range paths {
				f, ok := examine(cfg, path)
				if !ok {
					continue
				}
				mu.Lock()
				findings = append(findings, f)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(findings, func(i, j int) bool { return findings[i].Path < findings[j].Path })

	logging.Debug("scan found %d ingestable files under %d root(s)", len(findings), len(roots))
	return findings, nil
}

func walkRoot(ctx context.Context, cfg Config, root string, paths chan<- string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("scan: skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if cfg.SkipHidden && path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		select {
		case paths <- path:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func examine(cfg Config, path string) (Finding, bool) {
	info, err := os.Stat(path)
	if err != nil {
		logging.Warn("scan: cannot stat %s: %v", path, err)
		return Finding{}, false
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return Finding{}, false
	}

	category := mediatypes.Categorize(path, "")
	if category == mediatypes.CategoryDocument && !cfg.IncludeDocuments {
		return Finding{}, false
	}

	return Finding{Path: path, Size: info.Size(), Category: category}, true
}
