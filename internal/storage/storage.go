// Package storage defines the contract every persistence backend fulfils
// and a registry to construct backends by name.
//
// A backend serves job packages (LoadFile, ListFiles) and, when it can
// save, keeps one auto-save companion per package holding the last
// persisted changes.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/l10nmonster/lqa-boss-sub001/internal/apperr"
	"github.com/l10nmonster/lqa-boss-sub001/internal/job"
	"github.com/l10nmonster/lqa-boss-sub001/internal/sortutil"
)

// Capabilities advertises what a backend supports.
type Capabilities struct {
	RequiresAuth bool
	CanSave      bool
}

// FileInfo describes one listed package.
type FileInfo struct {
	ID        string
	Name      string
	Size      int64
	UpdatedAt time.Time
}

// Backend is the storage contract.
type Backend interface {
	Name() string
	Capabilities() Capabilities
	// LoadFile returns the raw package bytes of id.
	LoadFile(ctx context.Context, id string) ([]byte, error)
	// SaveFile persists j as the auto-save companion of id. Each call either
	// fully succeeds or leaves the previous companion in place. Backends
	// without CanSave return ErrUnsupported.
	SaveFile(ctx context.Context, id string, j *job.Job) error
	// LoadAutoSaveData returns the companion of package id whose file name
	// is name, or (nil, nil) when there is none.
	LoadAutoSaveData(ctx context.Context, id, name string) (*job.Job, error)
	// ListFiles lists packages at location.
	ListFiles(ctx context.Context, location string) ([]FileInfo, error)
}

// ErrUnsupported is returned for operations outside a backend's capabilities.
var ErrUnsupported = apperr.ErrUnsupported

// PackageExt is the file extension of job packages.
const PackageExt = ".lqaboss"

// CompanionName maps a package file name to its auto-save companion name:
// "<base>.lqaboss" becomes "<base>.json".
func CompanionName(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if strings.EqualFold(path.Ext(base), PackageExt) {
		base = base[:len(base)-len(PackageExt)]
	}
	return base + ".json"
}

// IsPackage reports whether name carries the package extension.
func IsPackage(name string) bool {
	return strings.EqualFold(path.Ext(name), PackageExt)
}

// Factory constructs a backend.
type Factory func(ctx context.Context) (Backend, error)

// Registry maps backend names to factories.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = f
}

// Names lists registered backends in order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortutil.Keys(r.factories)
}

// Open constructs the named backend.
func (r *Registry) Open(ctx context.Context, name string) (Backend, error) {
	r.mu.Lock()
	f, ok := r.factories[strings.ToLower(name)]
	r.mu.Unlock()
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound,
			fmt.Sprintf("unknown backend %q (have %s)", name, strings.Join(r.Names(), ", ")), nil)
	}
	return f(ctx)
}
