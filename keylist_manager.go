package keylist

import (
	"fmt"
	"sort"
	"sync"
)

var (
	backends = make(map[string]BackendInit)
	sealers  = make(map[string]SealerInit)
	lock     sync.RWMutex
)

// NewBackend returns a new instance of the Backend registered under name.
// config is a map of key value pairs used to connect and authenticate with
// the backend.
func NewBackend(
	name string,
	config map[string]interface{},
) (Backend, error) {
	lock.RLock()
	defer lock.RUnlock()

	if bInit, exists := backends[name]; exists {
		return bInit(config)
	}
	return nil, ErrNotSupported
}

// Register adds a new Backend
func Register(name string, bInit BackendInit) error {
	lock.Lock()
	defer lock.Unlock()
	if _, exists := backends[name]; exists {
		return fmt.Errorf("keylist backend %v is already"+
			" registered", name)
	}
	backends[name] = bInit
	return nil
}

// NewSealer returns a new instance of the Sealer registered under name.
func NewSealer(
	name string,
	config map[string]interface{},
) (Sealer, error) {
	lock.RLock()
	defer lock.RUnlock()

	if sInit, exists := sealers[name]; exists {
		return sInit(config)
	}
	return nil, ErrNotSupported
}

// RegisterSealer adds a new Sealer
func RegisterSealer(name string, sInit SealerInit) error {
	lock.Lock()
	defer lock.Unlock()
	if _, exists := sealers[name]; exists {
		return fmt.Errorf("keylist sealer %v is already"+
			" registered", name)
	}
	sealers[name] = sInit
	return nil
}

// Backends lists the names of the registered backends.
func Backends() []string {
	lock.RLock()
	defer lock.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sealers lists the names of the registered sealers.
func Sealers() []string {
	lock.RLock()
	defer lock.RUnlock()
	names := make([]string, 0, len(sealers))
	for name := range sealers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
