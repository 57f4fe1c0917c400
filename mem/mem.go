package mem

import (
	"context"
	"sync"

	"github.com/libopenstorage/keylist"
)

const (
	// Name of the backend
	Name = "mem"
)

// Backend keeps blobs in process memory. It is meant for tests and for
// callers that only need the store semantics without durability.
type Backend struct {
	mu    sync.RWMutex
	blobs map[keylist.Identity][]byte
}

// New returns an empty in-memory backend. config is ignored.
func New(
	config map[string]interface{},
) (keylist.Backend, error) {
	return NewBackend(), nil
}

// NewBackend returns an empty in-memory backend.
func NewBackend() *Backend {
	return &Backend{blobs: make(map[keylist.Identity][]byte)}
}

func (b *Backend) String() string {
	return Name
}

func (b *Backend) Get(_ context.Context, id keylist.Identity) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	blob, ok := b.blobs[id]
	if !ok {
		return nil, keylist.ErrNotFound
	}
	return copyBytes(blob), nil
}

func (b *Backend) Put(_ context.Context, id keylist.Identity, blob []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[id] = copyBytes(blob)
	return nil
}

func (b *Backend) Delete(_ context.Context, id keylist.Identity) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, id)
	return nil
}

// Exists reports whether a blob is stored for id.
func (b *Backend) Exists(id keylist.Identity) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.blobs[id]
	return ok
}

// Len returns the number of stored blobs.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.blobs)
}

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func init() {
	if err := keylist.Register(Name, New); err != nil {
		panic(err.Error())
	}
}
