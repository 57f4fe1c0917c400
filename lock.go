package keylist

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const lockStripes = 64

// stripedLock serializes writers per (backend, identity) inside the process.
// Distinct identities may share a stripe, which only costs parallelism.
type stripedLock []*sync.Mutex

func newStripedLock(n int) stripedLock {
	stripes := make(stripedLock, n)
	for i := range stripes {
		stripes[i] = &sync.Mutex{}
	}
	return stripes
}

func (s stripedLock) get(backend string, id Identity) *sync.Mutex {
	d := xxhash.New()
	_, _ = d.WriteString(backend)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(id.Service)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(id.Account)
	return s[d.Sum64()%uint64(len(s))]
}

var identityLocks = newStripedLock(lockStripes)
