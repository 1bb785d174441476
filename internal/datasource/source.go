// Package datasource discovers, validates, and reads SQLite databases for
// the tree explorer. Discovery scans a directory for candidate files,
// validation checks the file header and openability, and selection takes
// the freshest valid candidate.
package datasource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// sqliteHeader is the 16-byte magic every SQLite 3 file starts with.
const sqliteHeader = "SQLite format 3\x00"

// validateConcurrency bounds parallel candidate validation.
const validateConcurrency = 4

// DataSource describes one candidate database file.
type DataSource struct {
	// Path is the absolute path to the file.
	Path string `json:"path"`
	// ModTime is the file's last modification time.
	ModTime time.Time `json:"mod_time"`
	// Size is the file size in bytes.
	Size int64 `json:"size"`
	// Valid reports whether the file passed validation.
	Valid bool `json:"valid"`
	// ValidationError describes why validation failed.
	ValidationError string `json:"validation_error,omitempty"`
	// TableCount is the number of user tables (set during validation).
	TableCount int `json:"table_count"`
}

// String returns a human-readable description of the candidate.
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (mod=%s, tables=%d, %s)",
		s.Path, s.ModTime.Format(time.RFC3339), s.TableCount, status)
}

// Discover finds SQLite candidates (*.db, *.sqlite, *.sqlite3) directly
// under dir, validates them concurrently, and returns them sorted freshest
// first. An empty dir means the current directory. Journal and backup
// artifacts are skipped.
func Discover(ctx context.Context, dir string) ([]DataSource, error) {
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var sources []DataSource
	for _, e := range entries {
		if e.IsDir() || !isCandidateName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		sources = append(sources, DataSource{
			Path:    filepath.Join(dir, e.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(validateConcurrency)
	for i := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			// Validation outcome lands on the candidate itself; only
			// cancellation aborts discovery.
			_ = ValidateSource(&sources[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(sources, func(i, j int) bool {
		if !sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].ModTime.After(sources[j].ModTime)
		}
		return sources[i].Path < sources[j].Path
	})
	return sources, nil
}

func isCandidateName(name string) bool {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, "-wal"),
		strings.HasSuffix(lower, "-shm"),
		strings.HasSuffix(lower, "-journal"),
		strings.Contains(lower, ".backup"):
		return false
	}
	switch filepath.Ext(lower) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// ValidateSource checks the candidate's file header and that its table
// catalog can be read. The result is recorded on the candidate; the
// returned error mirrors ValidationError for callers validating a single
// file.
func ValidateSource(s *DataSource) error {
	fail := func(err error) error {
		s.Valid = false
		s.ValidationError = err.Error()
		return err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return fail(err)
	}
	header := make([]byte, len(sqliteHeader))
	n, err := f.Read(header)
	f.Close()
	if err != nil || n < len(sqliteHeader) {
		return fail(fmt.Errorf("file too short for a SQLite header"))
	}
	if string(header) != sqliteHeader {
		return fail(fmt.Errorf("not a SQLite database"))
	}

	src, err := NewSQLiteSource(s.Path)
	if err != nil {
		return fail(err)
	}
	defer src.Close()

	s.TableCount = len(src.Entities())
	if s.TableCount == 0 {
		return fail(fmt.Errorf("database has no tables"))
	}
	s.Valid = true
	s.ValidationError = ""
	return nil
}

// SelectBestSource returns the first valid candidate of a Discover result,
// which by its ordering is the freshest one.
func SelectBestSource(sources []DataSource) (DataSource, bool) {
	for _, s := range sources {
		if s.Valid {
			return s, true
		}
	}
	return DataSource{}, false
}

// OpenBest discovers candidates under dir and opens the freshest valid
// one.
func OpenBest(ctx context.Context, dir string) (*SQLiteSource, DataSource, error) {
	if dir == "" {
		dir = "."
	}
	sources, err := Discover(ctx, dir)
	if err != nil {
		return nil, DataSource{}, err
	}
	best, ok := SelectBestSource(sources)
	if !ok {
		return nil, DataSource{}, fmt.Errorf("no usable SQLite database under %s", dir)
	}
	src, err := NewSQLiteSource(best.Path)
	if err != nil {
		return nil, DataSource{}, err
	}
	return src, best, nil
}
