package kvdb

import (
	"context"
	"errors"
	"strings"

	"github.com/libopenstorage/keylist"
	kv "github.com/portworx/kvdb"
)

const (
	// Name of the backend
	Name = "kvdb"
	// KvdbKey is the config key holding an initialized kvdb.Kvdb.
	KvdbKey = "KVDB"
	// PrefixKey is the config key for the key prefix under which blobs live.
	PrefixKey = "KEYLIST_KVDB_PREFIX"
	// DefaultPrefix is used when PrefixKey is not set.
	DefaultPrefix = "keylist/"
)

var (
	ErrKvdbNotSet     = errors.New("KVDB Key not set")
	ErrInvalidKvdb    = errors.New("KVDB Key does not hold a kvdb.Kvdb")
	ErrInvalidAccount = errors.New("Account cannot contain '/' for the kvdb backend")
)

type kvdbBackend struct {
	client kv.Kvdb
	prefix string
}

// New returns a backend storing each blob as the value of the key
// <prefix><service>/<account> in the kvdb passed under KvdbKey.
func New(
	config map[string]interface{},
) (keylist.Backend, error) {
	kvdbIntf, exists := config[KvdbKey]
	if !exists {
		return nil, ErrKvdbNotSet
	}
	kvClient, ok := kvdbIntf.(kv.Kvdb)
	if !ok || kvClient == nil {
		return nil, ErrInvalidKvdb
	}
	prefix := DefaultPrefix
	if p, ok := config[PrefixKey].(string); ok && p != "" {
		prefix = p
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
	}
	return &kvdbBackend{
		client: kvClient,
		prefix: prefix,
	}, nil
}

func (v *kvdbBackend) String() string {
	return Name
}

func (v *kvdbBackend) key(id keylist.Identity) (string, error) {
	if strings.Contains(id.Account, "/") {
		return "", ErrInvalidAccount
	}
	return v.prefix + id.Service + "/" + id.Account, nil
}

func (v *kvdbBackend) Get(_ context.Context, id keylist.Identity) ([]byte, error) {
	key, err := v.key(id)
	if err != nil {
		return nil, err
	}
	kvp, err := v.client.Get(key)
	if err == kv.ErrNotFound {
		return nil, keylist.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return kvp.Value, nil
}

func (v *kvdbBackend) Put(_ context.Context, id keylist.Identity, blob []byte) error {
	key, err := v.key(id)
	if err != nil {
		return err
	}
	_, err = v.client.Put(key, blob, 0)
	return err
}

func (v *kvdbBackend) Delete(_ context.Context, id keylist.Identity) error {
	key, err := v.key(id)
	if err != nil {
		return err
	}
	if _, err := v.client.Delete(key); err != nil && err != kv.ErrNotFound {
		return err
	}
	return nil
}

func init() {
	if err := keylist.Register(Name, New); err != nil {
		panic(err.Error())
	}
}
