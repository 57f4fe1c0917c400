package keylist

import (
	"context"
	"fmt"
)

const (
	// DefaultService is the service half of the identity used when none is given.
	DefaultService = "io.openstorage.keylist"
	// DefaultAccount is the account half of the identity used when none is given.
	DefaultAccount = "owners"
)

// Identity names the single credential record a Store operates on. Backends
// treat it as an opaque (service, account) pair.
type Identity struct {
	Service string
	Account string
}

// DefaultIdentity returns the identity built from DefaultService and DefaultAccount.
func DefaultIdentity() Identity {
	return Identity{Service: DefaultService, Account: DefaultAccount}
}

func (id Identity) String() string {
	return fmt.Sprintf("%s/%s", id.Service, id.Account)
}

// Validate returns ErrInvalidIdentity if either half of the identity is empty.
func (id Identity) Validate() error {
	if id.Service == "" || id.Account == "" {
		return ErrInvalidIdentity
	}
	return nil
}

// Reader is implemented by backends that can return the blob stored for an
// identity.
type Reader interface {
	// String representation of the backend
	String() string

	// Get returns the blob stored for id. It returns ErrNotFound when no
	// blob exists.
	Get(ctx context.Context, id Identity) ([]byte, error)
}

// Backend is a durable store holding at most one opaque blob per identity.
type Backend interface {
	Reader

	// Put stores blob for id, replacing any blob already stored.
	Put(ctx context.Context, id Identity, blob []byte) error

	// Delete removes the blob stored for id. Deleting an identity that has
	// no blob is not an error.
	Delete(ctx context.Context, id Identity) error
}

// Codec converts a Record to and from its serialized form.
type Codec interface {
	// Encode serializes rec. Failures wrap ErrEncodingFailed.
	Encode(rec Record) ([]byte, error)
	// Decode parses blob. Failures wrap ErrDecodingFailed.
	Decode(blob []byte) (Record, error)
}

// Sealer encrypts an encoded Record before it is handed to a Backend and
// decrypts it on the way back. Implementations bind the ciphertext to the
// identity where the underlying KMS allows it.
type Sealer interface {
	// String representation of the sealer
	String() string

	Seal(ctx context.Context, id Identity, plain []byte) ([]byte, error)

	Open(ctx context.Context, id Identity, sealed []byte) ([]byte, error)
}

// BackendInit builds a Backend from a config map. String values missing from
// the map are usually looked up in the environment.
type BackendInit func(
	config map[string]interface{},
) (Backend, error)

// SealerInit builds a Sealer from a config map.
type SealerInit func(
	config map[string]interface{},
) (Sealer, error)
