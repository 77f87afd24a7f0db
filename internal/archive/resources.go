package archive

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/l10nmonster/lqa-boss-sub001/internal/apperr"
	"github.com/l10nmonster/lqa-boss-sub001/internal/sortutil"
)

const handleScheme = "lqaboss-res://"

// Resources holds page images extracted from a package. Each image is
// addressed by a handle that stays valid until Release.
type Resources struct {
	mu       sync.Mutex
	scope    string
	blobs    map[string][]byte
	released bool
}

func newResources() *Resources {
	return &Resources{scope: uuid.NewString(), blobs: make(map[string][]byte)}
}

func (r *Resources) add(name string, data []byte) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[name] = data
	return r.handle(name)
}

func (r *Resources) handle(name string) string {
	return handleScheme + r.scope + "/" + name
}

// Handle returns the handle for an image member name.
func (r *Resources) Handle(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.blobs[name]; !ok || r.released {
		return "", false
	}
	return r.handle(name), true
}

// Open returns the image bytes behind handle. Handles from another package
// or from a released one fail with a NOT_FOUND error.
func (r *Resources) Open(handle string) ([]byte, error) {
	if r == nil {
		return nil, apperr.New(apperr.CodeNotFound, "no resources", nil)
	}
	prefix := handleScheme + r.scope + "/"
	if !strings.HasPrefix(handle, prefix) {
		return nil, apperr.New(apperr.CodeNotFound, "unknown resource "+handle, nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil, apperr.New(apperr.CodeNotFound, "resource released "+handle, nil)
	}
	b, ok := r.blobs[strings.TrimPrefix(handle, prefix)]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "unknown resource "+handle, nil)
	}
	return b, nil
}

// Names lists the extracted image names in order.
func (r *Resources) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortutil.Keys(r.blobs)
}

// Bytes returns the total size of the held images.
func (r *Resources) Bytes() int64 {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, b := range r.blobs {
		n += int64(len(b))
	}
	return n
}

// Release revokes every handle and drops the image bytes. Safe to call more
// than once and on a nil receiver.
func (r *Resources) Release() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = true
	r.blobs = map[string][]byte{}
}

// Released reports whether Release has been called.
func (r *Resources) Released() bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}
