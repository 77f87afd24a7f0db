// Package session is the top-level state of one review: the backend it
// talks to, the open package, its reconciler and the notices it raises.
//
// Every backend call is awaited before the reconciler is touched, so a
// failed call never leaves the snapshots half-updated.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/l10nmonster/lqa-boss-sub001/internal/apperr"
	"github.com/l10nmonster/lqa-boss-sub001/internal/archive"
	"github.com/l10nmonster/lqa-boss-sub001/internal/delta"
	"github.com/l10nmonster/lqa-boss-sub001/internal/job"
	"github.com/l10nmonster/lqa-boss-sub001/internal/notice"
	"github.com/l10nmonster/lqa-boss-sub001/internal/reconcile"
	"github.com/l10nmonster/lqa-boss-sub001/internal/storage"
)

// ErrSaveInFlight is returned by Save while another save has not returned.
var ErrSaveInFlight = errors.New("session: save already in progress")

// Session is safe for concurrent use.
type Session struct {
	ID uuid.UUID

	backend     storage.Backend
	hooks       notice.Hooks
	logger      *slog.Logger
	rec         *reconcile.Reconciler
	now         func() time.Time
	archiveOpts []archive.Option

	mu       sync.Mutex
	pkg      *archive.Package
	fileID   string
	fileName string
	lastURL  string

	saving atomic.Bool
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHooks adds notice hooks.
func WithHooks(h ...notice.Hook) Option {
	return func(s *Session) { s.hooks = append(s.hooks, h...) }
}

// WithClock overrides the time source used to stamp saves.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithArchiveOptions passes options through to archive.Load.
func WithArchiveOptions(opts ...archive.Option) Option {
	return func(s *Session) { s.archiveOpts = append(s.archiveOpts, opts...) }
}

// New returns a session bound to backend.
func New(backend storage.Backend, opts ...Option) *Session {
	s := &Session{
		ID:      uuid.New(),
		backend: backend,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.ID.String(), "backend", backend.Name())
	s.rec = reconcile.New(s.logger)
	return s
}

func (s *Session) notify(ctx context.Context, level notice.Level, code, msg string, attrs map[string]any) {
	err := s.hooks.Notify(ctx, notice.Notice{Level: level, Code: code, Message: msg, At: s.now(), Attrs: attrs})
	if err != nil {
		s.logger.Warn("session.notice.failed", "error", err)
	}
}

// Open loads package id from the backend and replaces the open job. name is
// the package's file name; when empty the last element of id is used. On
// error the previously open job stays in place.
func (s *Session) Open(ctx context.Context, id, name string) error {
	if name == "" {
		name = path.Base(id)
	}
	data, err := s.backend.LoadFile(ctx, id)
	if err != nil {
		s.notify(ctx, notice.Error, apperr.CodeOf(err), fmt.Sprintf("could not load %s", name), map[string]any{"error": err.Error()})
		return fmt.Errorf("load %s: %w", id, err)
	}
	opts := append([]archive.Option{archive.WithLogger(s.logger)}, s.archiveOpts...)
	pkg, err := archive.Load(data, opts...)
	if err != nil {
		s.notify(ctx, notice.Error, apperr.CodeInvalidArchive, fmt.Sprintf("%s is not a valid job package", name), map[string]any{"error": err.Error()})
		return err
	}
	for _, w := range pkg.Warnings {
		s.notify(ctx, notice.Warning, apperr.CodeOf(w), w.Error(), nil)
	}

	saved, err := s.backend.LoadAutoSaveData(ctx, id, name)
	if err != nil {
		s.logger.Warn("session.autosave.unavailable", "id", id, "error", err)
		s.notify(ctx, notice.Warning, apperr.CodeAutoSaveUnavailable,
			"saved changes could not be read; starting from the package", map[string]any{"error": err.Error()})
		saved = nil
	}

	edited := 0
	s.mu.Lock()
	if saved != nil {
		// The merge counts against source-filled targets. The notice counts
		// against the shipped ones, so a saved target equal to the source of
		// an untranslated unit is still reported as edited.
		merged, _ := delta.ApplyLoadedTranslations(pkg.Job, saved)
		s.rec.SetupThreeState(pkg.Archived, merged)
		edited = delta.EditedCount(pkg.Archived, saved)
	} else {
		s.rec.SetupTwoState(pkg.Job)
	}
	prev := s.pkg
	s.pkg, s.fileID, s.fileName = pkg, id, name
	s.mu.Unlock()
	prev.Release()

	s.logger.Info("session.opened", "id", id, "units", len(pkg.Job.TUs), "status", s.rec.Status())
	if edited > 0 {
		s.notify(ctx, notice.Info, "", fmt.Sprintf("found %d edited translations", edited), map[string]any{"edited": edited})
	}
	return nil
}

// OpenURL opens the package named by a deep link of the form
// "...?file=<id>[&name=<file name>]". A link equal to the last one processed
// is skipped and reported as false.
func (s *Session) OpenURL(ctx context.Context, raw string) (bool, error) {
	s.mu.Lock()
	if raw == s.lastURL {
		s.mu.Unlock()
		return false, nil
	}
	s.lastURL = raw
	s.mu.Unlock()

	u, err := url.Parse(raw)
	if err != nil {
		return false, fmt.Errorf("parse deep link: %w", err)
	}
	q := u.Query()
	id := q.Get("file")
	if id == "" {
		return false, apperr.New(apperr.CodeNotFound, "deep link has no file parameter", nil)
	}
	if err := s.Open(ctx, id, q.Get("name")); err != nil {
		return false, err
	}
	return true, nil
}

// Update replaces a unit of the edit buffer. See reconcile.UpdateTranslationUnit.
func (s *Session) Update(tu *job.TU) (bool, error) {
	return s.rec.UpdateTranslationUnit(tu)
}

// Edit sets the target of unit guid.
func (s *Session) Edit(guid string, ntgt job.Parts) (bool, error) {
	tu, ok := s.rec.Unit(guid)
	if !ok {
		return false, apperr.New(apperr.CodeNotFound, "unknown unit "+guid, nil)
	}
	tu.NTgt = ntgt.Clone()
	return s.rec.UpdateTranslationUnit(tu)
}

// Annotate replaces the review annotations of unit guid. When the package
// ships a quality model, categories and severities must belong to it.
func (s *Session) Annotate(guid string, qa []job.Annotation) (bool, error) {
	tu, ok := s.rec.Unit(guid)
	if !ok {
		return false, apperr.New(apperr.CodeNotFound, "unknown unit "+guid, nil)
	}
	if pkg := s.Package(); pkg != nil && pkg.Quality != nil {
		m := pkg.Quality
		for i, a := range qa {
			if _, ok := m.Weight(a.Severity); !ok {
				return false, fmt.Errorf("annotation %d: unknown severity %q", i, a.Severity)
			}
			if !m.HasCategory(a.Category) {
				return false, fmt.Errorf("annotation %d: unknown category %q", i, a.Category)
			}
		}
	}
	tu.QA = append([]job.Annotation(nil), qa...)
	tu.TS = s.now().UnixMilli()
	return s.rec.UpdateTranslationUnit(tu)
}

// SelectCandidate picks candidate index for unit guid.
func (s *Session) SelectCandidate(guid string, index int) bool {
	return s.rec.SelectCandidate(guid, index)
}

// Save persists the units that differ from the original as the package's
// auto-save companion. It returns ErrSaveInFlight while another Save runs,
// and does nothing when the job is already saved. Edits made while the save
// is in flight keep the job unsaved. On failure a PERSIST_FAILURE error is
// returned and the edit buffer keeps its status.
func (s *Session) Save(ctx context.Context) error {
	if !s.backend.Capabilities().CanSave {
		return apperr.New(apperr.CodeUnsupported, s.backend.Name()+" cannot save", nil)
	}
	if !s.saving.CompareAndSwap(false, true) {
		return ErrSaveInFlight
	}
	defer s.saving.Store(false)

	s.mu.Lock()
	id := s.fileID
	s.mu.Unlock()
	if id == "" || !s.rec.Ready() {
		return apperr.New(apperr.CodeNotFound, "no job open", nil)
	}
	if !reconcile.IsTransitionAllowed(s.rec.Status(), reconcile.StatusSaved) {
		return nil
	}

	current := s.rec.Current()
	payload := delta.Payload(current, delta.Persistable(s.rec.Original(), current))
	payload.UpdatedAt = s.now().UTC().Format(time.RFC3339)

	if err := s.backend.SaveFile(ctx, id, payload); err != nil {
		perr := apperr.New(apperr.CodePersistFailure, "save "+id, err)
		s.logger.Error("session.save.failed", "id", id, "error", err)
		s.notify(ctx, notice.Error, apperr.CodePersistFailure, "saving failed; your edits are kept, try again", map[string]any{"error": err.Error()})
		return perr
	}
	if !s.rec.CommitSave(current, payload) {
		s.logger.Info("session.saved.stale", "id", id, "units", len(payload.TUs), "status", s.rec.Status())
	} else {
		s.logger.Info("session.saved", "id", id, "units", len(payload.TUs))
	}
	s.notify(ctx, notice.Info, "", fmt.Sprintf("saved %d translations", len(payload.TUs)), map[string]any{"units": len(payload.TUs)})
	return nil
}

// Close releases the open package and drops all snapshots.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pkg.Release()
	s.pkg, s.fileID, s.fileName = nil, "", ""
	s.rec.Reset()
}

// Status returns the file status of the open job.
func (s *Session) Status() reconcile.FileStatus { return s.rec.Status() }

// Reconciler exposes the snapshot owner for read access.
func (s *Session) Reconciler() *reconcile.Reconciler { return s.rec }

// Package returns the open package, or nil.
func (s *Session) Package() *archive.Package {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pkg
}

// File returns the ID and name of the open package.
func (s *Session) File() (id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileID, s.fileName
}
