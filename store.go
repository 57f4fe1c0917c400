package keylist

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Store keeps, for every owner key, an ordered list of distinct strings. All
// owners share one blob in the backend, stored under the Store's identity.
// Every call reads the blob afresh; nothing is cached between calls.
//
// Mutations of the same backend and identity are serialized within the
// process. Writers in other processes are not coordinated with.
type Store struct {
	backend Backend
	id      Identity
	codec   Codec
	sealer  Sealer
	log     logrus.FieldLogger
}

// Option configures a Store.
type Option func(*Store)

// WithCodec replaces the default JSONCodec.
func WithCodec(c Codec) Option {
	return func(s *Store) {
		s.codec = c
	}
}

// WithSealer encrypts the encoded record before it reaches the backend.
func WithSealer(sealer Sealer) Option {
	return func(s *Store) {
		s.sealer = sealer
	}
}

// WithLogger sets the logger. The default is logrus.StandardLogger().
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// MutateFunc derives the next Record from the current one. It returns false
// when nothing changed, in which case no write is made. rec is a private copy
// and may be modified.
//
// fn runs under the identity lock, which is not reentrant and may be shared
// with other identities. fn must not call back into any Store.
type MutateFunc func(rec Record) (Record, bool)

// New returns a Store for id on backend.
func New(backend Backend, id Identity, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	if err := id.Validate(); err != nil {
		return nil, err
	}
	s := &Store{
		backend: backend,
		id:      id,
		codec:   NewJSONCodec(),
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.codec == nil {
		s.codec = NewJSONCodec()
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	return s, nil
}

// NewFromConfig builds the backend registered under name from config and
// returns a Store for id on it.
func NewFromConfig(
	name string,
	id Identity,
	config map[string]interface{},
	opts ...Option,
) (*Store, error) {
	backend, err := NewBackend(name, config)
	if err != nil {
		return nil, err
	}
	return New(backend, id, opts...)
}

func (s *Store) String() string {
	if s.sealer != nil {
		return s.backend.String() + "+" + s.sealer.String()
	}
	return s.backend.String()
}

// Identity returns the identity the Store reads and writes.
func (s *Store) Identity() Identity {
	return s.id
}

// SaveList replaces owner's list with values, keeping their order and any
// duplicates. An empty values removes the owner.
func (s *Store) SaveList(ctx context.Context, values []string, owner string) error {
	if owner == "" {
		return ErrInvalidOwner
	}
	s.logger("save", owner).Debugf("Saving %d values", len(values))
	return s.Update(ctx, func(rec Record) (Record, bool) {
		if len(values) == 0 && !rec.Has(owner) {
			return rec, false
		}
		return rec.WithList(owner, values), true
	})
}

// ReadList returns owner's values in insertion order. An owner that was never
// written yields an empty list.
func (s *Store) ReadList(ctx context.Context, owner string) ([]string, error) {
	if owner == "" {
		return nil, ErrInvalidOwner
	}
	rec, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return rec.List(owner), nil
}

// Lookup is ReadList for callers that require the owner to exist: it
// returns ErrItemNotFound for an absent owner.
func (s *Store) Lookup(ctx context.Context, owner string) ([]string, error) {
	if owner == "" {
		return nil, ErrInvalidOwner
	}
	rec, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	if !rec.Has(owner) {
		return nil, ErrItemNotFound
	}
	return rec.List(owner), nil
}

// AddValue appends value to owner's list unless it is already there. Values
// are compared byte for byte.
func (s *Store) AddValue(ctx context.Context, value, owner string) error {
	if owner == "" {
		return ErrInvalidOwner
	}
	s.logger("add", owner).Debug("Adding value")
	return s.Update(ctx, func(rec Record) (Record, bool) {
		return rec.WithValue(owner, value)
	})
}

// RemoveValue removes the first occurrence of value from owner's list. An
// owner left without values is removed, and the blob is deleted once no
// owner remains.
func (s *Store) RemoveValue(ctx context.Context, value, owner string) error {
	if owner == "" {
		return ErrInvalidOwner
	}
	s.logger("remove", owner).Debug("Removing value")
	return s.Update(ctx, func(rec Record) (Record, bool) {
		return rec.WithoutValue(owner, value)
	})
}

// ContainsAny reports whether owner's list holds at least one of values.
func (s *Store) ContainsAny(ctx context.Context, values []string, owner string) (bool, error) {
	if owner == "" {
		return false, ErrInvalidOwner
	}
	if len(values) == 0 {
		return false, nil
	}
	rec, err := s.read(ctx)
	if err != nil {
		return false, err
	}
	return rec.ContainsAny(owner, values), nil
}

// ClearOwner removes owner and all its values.
func (s *Store) ClearOwner(ctx context.Context, owner string) error {
	if owner == "" {
		return ErrInvalidOwner
	}
	s.logger("clear", owner).Debug("Clearing owner")
	return s.Update(ctx, func(rec Record) (Record, bool) {
		return rec.WithoutOwner(owner)
	})
}

// ClearAll deletes the blob, dropping every owner.
func (s *Store) ClearAll(ctx context.Context) error {
	mu := identityLocks.get(s.backend.String(), s.id)
	mu.Lock()
	defer mu.Unlock()

	s.logger("clear-all", "").Debug("Clearing all owners")
	return s.delete(ctx)
}

// AllOwners returns every owner key currently stored. The order is not
// significant.
func (s *Store) AllOwners(ctx context.Context) ([]string, error) {
	rec, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return rec.Owners(), nil
}

// View returns a copy of the whole record.
func (s *Store) View(ctx context.Context) (Record, error) {
	return s.read(ctx)
}

// Update runs one read-modify-write cycle over the whole record. The blob is
// deleted instead of written when the resulting record has no owners.
func (s *Store) Update(ctx context.Context, fn MutateFunc) error {
	mu := identityLocks.get(s.backend.String(), s.id)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.read(ctx)
	if err != nil {
		return err
	}
	next, changed := fn(rec)
	if !changed {
		return nil
	}
	return s.write(ctx, next)
}

func (s *Store) read(ctx context.Context) (Record, error) {
	blob, err := s.backend.Get(ctx, s.id)
	if errors.Is(err, ErrNotFound) {
		return Record{}, nil
	} else if err != nil {
		s.logger("read", "").WithError(err).Warn("Failed to read blob")
		return nil, newBackendError(OpRead, s.backend, s.id, err)
	}

	if s.sealer != nil {
		blob, err = s.sealer.Open(ctx, s.id, blob)
		if err != nil {
			return nil, errors.Wrapf(ErrDecodingFailed, "%s open: %v", s.sealer, err)
		}
	}

	rec, err := s.codec.Decode(blob)
	if err != nil {
		if !errors.Is(err, ErrDecodingFailed) {
			err = errors.Wrap(ErrDecodingFailed, err.Error())
		}
		return nil, err
	}
	return rec.Compact(), nil
}

func (s *Store) write(ctx context.Context, rec Record) error {
	rec = rec.Compact()
	if rec.Len() == 0 {
		s.logger("write", "").Debug("Record is empty, deleting blob")
		return s.delete(ctx)
	}

	blob, err := s.codec.Encode(rec)
	if err != nil {
		if !errors.Is(err, ErrEncodingFailed) {
			err = errors.Wrap(ErrEncodingFailed, err.Error())
		}
		return err
	}

	if s.sealer != nil {
		blob, err = s.sealer.Seal(ctx, s.id, blob)
		if err != nil {
			return errors.Wrapf(ErrEncodingFailed, "%s seal: %v", s.sealer, err)
		}
	}

	if err := s.backend.Put(ctx, s.id, blob); err != nil {
		s.logger("write", "").WithError(err).Warn("Failed to write blob")
		return newBackendError(OpWrite, s.backend, s.id, err)
	}
	return nil
}

func (s *Store) delete(ctx context.Context) error {
	err := s.backend.Delete(ctx, s.id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.logger("delete", "").WithError(err).Warn("Failed to delete blob")
		return newBackendError(OpDelete, s.backend, s.id, err)
	}
	return nil
}

func (s *Store) logger(op, owner string) logrus.FieldLogger {
	fields := logrus.Fields{
		"backend": s.backend.String(),
		"service": s.id.Service,
		"account": s.id.Account,
		"op":      op,
	}
	if owner != "" {
		fields["owner"] = owner
	}
	return s.log.WithFields(fields)
}
