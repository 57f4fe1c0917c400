// Package envelope implements envelope encryption of records: the record is
// encrypted locally with a fresh AES-256-GCM data key, and the data key is
// wrapped by a KMS. Only the wrapped key is stored, next to the ciphertext.
package envelope

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/libopenstorage/keylist"
	"github.com/pkg/errors"
)

// KeySize is the size of the data keys, in bytes.
const KeySize = 32

var (
	json = jsoniter.ConfigCompatibleWithStandardLibrary

	ErrInvalidEnvelope = errors.New("invalid envelope")
	ErrInvalidKeySize  = errors.New("data key must be 32 bytes")
)

// KeySource issues and unwraps data keys. Implementations bind the wrapped
// key to id where the KMS supports it.
type KeySource interface {
	// GenerateKey returns a new data key and its wrapped form.
	GenerateKey(ctx context.Context, id keylist.Identity) (plain, wrapped []byte, err error)
	// UnwrapKey returns the data key wrapped in wrapped.
	UnwrapKey(ctx context.Context, id keylist.Identity, wrapped []byte) ([]byte, error)
}

type envelope struct {
	Key  []byte `json:"key"`
	Data []byte `json:"data"`
}

// Seal encrypts plain under a new data key from ks and returns the envelope.
// The identity is authenticated along with the data.
func Seal(ctx context.Context, ks KeySource, id keylist.Identity, plain []byte) ([]byte, error) {
	dek, wrapped, err := ks.GenerateKey(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "generate data key")
	}
	defer zero(dek)

	data, err := encrypt(plain, dek, []byte(id.String()))
	if err != nil {
		return nil, err
	}
	return json.Marshal(&envelope{Key: wrapped, Data: data})
}

// Open decrypts an envelope produced by Seal for the same identity.
func Open(ctx context.Context, ks KeySource, id keylist.Identity, sealed []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(sealed, &env); err != nil {
		return nil, errors.Wrap(ErrInvalidEnvelope, err.Error())
	}
	if len(env.Key) == 0 || len(env.Data) == 0 {
		return nil, ErrInvalidEnvelope
	}

	dek, err := ks.UnwrapKey(ctx, id, env.Key)
	if err != nil {
		return nil, errors.Wrap(err, "unwrap data key")
	}
	defer zero(dek)

	return decrypt(env.Data, dek, []byte(id.String()))
}

// NewKey returns a random data key.
func NewKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

type sealer struct {
	name string
	ks   KeySource
}

// NewSealer returns a keylist.Sealer named name doing envelope encryption
// with keys from ks.
func NewSealer(name string, ks KeySource) keylist.Sealer {
	return &sealer{name: name, ks: ks}
}

func (s *sealer) String() string {
	return s.name
}

func (s *sealer) Seal(ctx context.Context, id keylist.Identity, plain []byte) ([]byte, error) {
	return Seal(ctx, s.ks, id, plain)
}

func (s *sealer) Open(ctx context.Context, id keylist.Identity, sealed []byte) ([]byte, error) {
	return Open(ctx, s.ks, id, sealed)
}

// encrypt encrypts data with key and returns nonce||ciphertext.
func encrypt(data, key, additional []byte) ([]byte, error) {
	gcm, err := getGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, data, additional), nil
}

// decrypt reverses encrypt.
func decrypt(cipherData, key, additional []byte) ([]byte, error) {
	gcm, err := getGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(cipherData) < nonceSize {
		return nil, errors.Wrap(ErrInvalidEnvelope, "ciphertext too short")
	}

	nonce, cipherData := cipherData[:nonceSize], cipherData[nonceSize:]
	return gcm.Open(nil, nonce, cipherData, additional)
}

// getGCM returns AES in Galois/Counter Mode for key.
func getGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(c)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
