package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"go/parser"
	"go/token"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/leapstack-labs/allowuntil/pkg/gate"
	cache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
)

// predicate validation results are memoized because projects tend to reuse
// the same predicate across many directives.
const (
	predicateCacheTTL     = 10 * time.Minute
	predicateCacheCleanup = 30 * time.Minute
)

// FileResult is the outcome of scanning one file. A file with Errors must
// not be cached: its problems have to surface again on the next run.
type FileResult struct {
	Path   string      // path as walked
	Hash   string      // content hash, for incremental re-scans
	Gates  []gate.Gate // directives found, in source order
	Errors []*Error    // parse failures and malformed directives
}

// Scanner extracts gate declarations from Go source.
type Scanner struct {
	logger *slog.Logger
	preds  *cache.Cache
}

// New creates a Scanner. A nil logger discards log output.
func New(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scanner{
		logger: logger,
		preds:  cache.New(predicateCacheTTL, predicateCacheCleanup),
	}
}

// validatePredicate checks predicate syntax once per distinct predicate
// string, caching both successes and failures.
func (s *Scanner) validatePredicate(pred string) error {
	if v, ok := s.preds.Get(pred); ok {
		if err, failed := v.(error); failed {
			return err
		}
		return nil
	}
	if _, err := gate.ParsePredicate(pred); err != nil {
		s.preds.Set(pred, err, cache.DefaultExpiration)
		return err
	}
	s.preds.Set(pred, true, cache.DefaultExpiration)
	return nil
}

// SkipDir reports whether a directory should be excluded from the walk.
// Hidden, underscore-prefixed, vendor and testdata directories never
// contribute gates; extra names come from configuration.
func SkipDir(name string, extra []string) bool {
	if name != "." && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
		return true
	}
	switch name {
	case "vendor", "testdata", "node_modules":
		return true
	}
	for _, e := range extra {
		if name == e {
			return true
		}
	}
	return false
}

// ListGoFiles walks root and returns every Go file eligible for scanning,
// sorted for deterministic processing.
func ListGoFiles(root string, exclude []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != root && SkipDir(d.Name(), exclude) {
				return filepath.SkipDir
			}
			return nil
		}
		// Same file rules as the go tool: dot and underscore files are
		// not part of the build, so their directives cannot gate it.
		name := d.Name()
		if strings.HasSuffix(name, ".go") &&
			!strings.HasPrefix(name, ".") &&
			!strings.HasPrefix(name, "_") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ScanFile parses one Go file and extracts its gates. When src is nil the
// file is read from disk. Parse failures and malformed directives are
// collected as positioned errors on the result; the caller decides how to
// surface them, but any of them must fail the check run.
func (s *Scanner) ScanFile(path string, src []byte) FileResult {
	if src == nil {
		content, err := os.ReadFile(path) //nolint:gosec // G304: path comes from a validated walk
		if err != nil {
			return FileResult{Path: path, Errors: []*Error{{
				Pos: gate.Position{File: path},
				Msg: err.Error(),
			}}}
		}
		src = content
	}

	result := FileResult{Path: path, Hash: computeHash(src)}

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		result.Errors = []*Error{{
			Pos: gate.Position{File: path},
			Msg: err.Error(),
		}}
		return result
	}

	result.Gates, result.Errors = s.extract(fset, f, path)
	if len(result.Gates) > 0 {
		s.logger.Debug("scanned file", "path", path, "gates", len(result.Gates))
	}
	return result
}

// ScanDir scans every eligible Go file under root in parallel. Results come
// back sorted by path; per-file errors stay on their results rather than
// aborting at the first one, so a run reports everything at once.
func (s *Scanner) ScanDir(ctx context.Context, root string, exclude []string) ([]FileResult, error) {
	files, err := ListGoFiles(root, exclude)
	if err != nil {
		return nil, err
	}

	results := make([]FileResult, len(files))

	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range files {
		eg.Go(func() error {
			results[i] = s.ScanFile(path, nil)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// computeHash generates a SHA256 hash of content.
func computeHash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:8]) // Use first 8 bytes for brevity
}

// Hash exposes the scanner's content hash for callers that read file
// contents themselves.
func Hash(content []byte) string {
	return computeHash(content)
}
