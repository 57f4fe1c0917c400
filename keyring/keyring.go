package keyring

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/libopenstorage/keylist"
	"github.com/zalando/go-keyring"
)

const (
	// Name of the backend
	Name = "keyring"
)

// keyringBackend stores each blob as one generic password item of the OS keyring
// (macOS Keychain, Secret Service, Windows Credential Manager). The item is
// keyed by the identity's service and account; the blob is base64 encoded
// since the keyring only holds text.
//
// Windows limits an item to 2560 bytes, which bounds the size of a record.
type keyringBackend struct{}

// New returns the OS keyring backend. config is ignored.
func New(
	config map[string]interface{},
) (keylist.Backend, error) {
	return &keyringBackend{}, nil
}

func (k *keyringBackend) String() string {
	return Name
}

func (k *keyringBackend) Get(_ context.Context, id keylist.Identity) ([]byte, error) {
	encoded, err := keyring.Get(id.Service, id.Account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, keylist.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("keyring item %v is not base64: %v", id, err)
	}
	return blob, nil
}

// Put overwrites the item in place; the keyring has no delete-then-add
// window.
func (k *keyringBackend) Put(_ context.Context, id keylist.Identity, blob []byte) error {
	return keyring.Set(id.Service, id.Account, base64.StdEncoding.EncodeToString(blob))
}

func (k *keyringBackend) Delete(_ context.Context, id keylist.Identity) error {
	err := keyring.Delete(id.Service, id.Account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func init() {
	if err := keylist.Register(Name, New); err != nil {
		panic(err.Error())
	}
}
