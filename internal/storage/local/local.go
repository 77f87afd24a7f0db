// Package local stores job packages and their auto-save companions in a
// directory tree. A package "<dir>/<base>.lqaboss" has its companion at
// "<dir>/<base>.json".
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/l10nmonster/lqa-boss-sub001/internal/apperr"
	"github.com/l10nmonster/lqa-boss-sub001/internal/job"
	"github.com/l10nmonster/lqa-boss-sub001/internal/storage"
	"github.com/l10nmonster/lqa-boss-sub001/internal/walkwalk"
)

// Name is the registry name of this backend.
const Name = "local"

// Store is a directory-rooted backend. IDs are slash-separated paths
// relative to the root; absolute paths inside the root are accepted too.
type Store struct {
	root   string
	logger *slog.Logger
}

var _ storage.Backend = (*Store)(nil)

// New opens a store rooted at dir, which must exist.
func New(dir string, logger *slog.Logger) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("local root: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("local root %s is not a directory", abs)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{root: abs, logger: logger.With("backend", Name)}, nil
}

func (s *Store) Name() string { return Name }

func (s *Store) Capabilities() storage.Capabilities {
	return storage.Capabilities{RequiresAuth: false, CanSave: true}
}

// Root returns the absolute root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) resolve(id string) (string, error) {
	if filepath.IsAbs(id) {
		rel, err := filepath.Rel(s.root, id)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", apperr.New(apperr.CodeNotFound, "path outside root: "+id, nil)
		}
		id = rel
	}
	clean := filepath.Clean(string(filepath.Separator) + filepath.FromSlash(id))
	return filepath.Join(s.root, clean), nil
}

func (s *Store) LoadFile(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.New(apperr.CodeNotFound, "no package "+id, err)
		}
		return nil, err
	}
	return b, nil
}

func (s *Store) companionPath(id, name string) (string, error) {
	p, err := s.resolve(id)
	if err != nil {
		return "", err
	}
	if name == "" {
		name = filepath.Base(p)
	}
	return filepath.Join(filepath.Dir(p), storage.CompanionName(name)), nil
}

func (s *Store) SaveFile(ctx context.Context, id string, j *job.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.companionPath(id, "")
	if err != nil {
		return err
	}
	if err := writeJSONAtomic(p, j); err != nil {
		return fmt.Errorf("write companion %s: %w", p, err)
	}
	s.logger.Debug("storage.saved", "id", id, "companion", p, "units", len(j.TUs))
	return nil
}

func (s *Store) LoadAutoSaveData(ctx context.Context, id, name string) (*job.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.companionPath(id, name)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, apperr.New(apperr.CodeAutoSaveUnavailable, "read "+p, err)
	}
	j, err := job.Parse(b)
	if err != nil {
		return nil, apperr.New(apperr.CodeAutoSaveUnavailable, "parse "+p, err)
	}
	return j, nil
}

func (s *Store) ListFiles(ctx context.Context, location string) ([]storage.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.resolve(location)
	if err != nil {
		return nil, err
	}
	files, err := walkwalk.Collect(dir, walkwalk.Options{Exts: []string{storage.PackageExt}})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	out := make([]storage.FileInfo, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(s.root, f.AbsPath)
		if err != nil {
			continue
		}
		out = append(out, storage.FileInfo{
			ID:        filepath.ToSlash(rel),
			Name:      filepath.Base(f.AbsPath),
			Size:      f.Size,
			UpdatedAt: f.ModTime,
		})
	}
	return out, nil
}
