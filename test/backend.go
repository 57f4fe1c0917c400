package test

import (
	"context"
	"testing"

	"github.com/pborman/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libopenstorage/keylist"
)

type backendTest struct {
	b     keylist.Backend
	id    keylist.Identity
	other keylist.Identity
}

// NewIdentity returns an identity with a unique service name, so that test
// runs against a shared backend do not see each other's blobs.
func NewIdentity() keylist.Identity {
	return keylist.Identity{
		Service: "io.openstorage.keylist.test." + uuid.New(),
		Account: "owners",
	}
}

// RunForBackend checks the Backend contract against b.
func RunForBackend(b keylist.Backend, t *testing.T) {
	bt := &backendTest{
		b:     b,
		id:    NewIdentity(),
		other: NewIdentity(),
	}

	bt.TestGetAbsent(t)
	bt.TestPutGet(t)
	bt.TestOverwrite(t)
	bt.TestIsolation(t)
	bt.TestDelete(t)
}

func (a *backendTest) TestGetAbsent(t *testing.T) {
	_, err := a.b.Get(context.Background(), a.id)
	assert.ErrorIs(t, err, keylist.ErrNotFound, "Expected Get of an absent identity to fail with ErrNotFound")
}

func (a *backendTest) TestPutGet(t *testing.T) {
	blob := []byte(`{"u1":["apple","banana"]}`)
	err := a.b.Put(context.Background(), a.id, blob)
	require.NoError(t, err, "Unexpected error on Put")

	got, err := a.b.Get(context.Background(), a.id)
	require.NoError(t, err, "Unexpected error on Get")
	assert.Equal(t, blob, got, "Unexpected blob")
}

func (a *backendTest) TestOverwrite(t *testing.T) {
	blob := []byte("\x00binary\xffblob\n")
	err := a.b.Put(context.Background(), a.id, blob)
	require.NoError(t, err, "Unexpected error on Put")

	got, err := a.b.Get(context.Background(), a.id)
	require.NoError(t, err, "Unexpected error on Get")
	assert.Equal(t, blob, got, "Expected Put to replace the previous blob")
}

func (a *backendTest) TestIsolation(t *testing.T) {
	_, err := a.b.Get(context.Background(), a.other)
	assert.ErrorIs(t, err, keylist.ErrNotFound, "Expected other identity to be untouched")
}

func (a *backendTest) TestDelete(t *testing.T) {
	err := a.b.Delete(context.Background(), a.id)
	assert.NoError(t, err, "Expected Delete to succeed")

	_, err = a.b.Get(context.Background(), a.id)
	assert.ErrorIs(t, err, keylist.ErrNotFound, "Expected Get after Delete to fail with ErrNotFound")

	// Delete of an absent identity should also succeed
	err = a.b.Delete(context.Background(), a.id)
	assert.NoError(t, err, "Unexpected error on second Delete")
}

// RunForSealer checks that s round-trips data and binds it to the identity.
func RunForSealer(s keylist.Sealer, t *testing.T) {
	ctx := context.Background()
	id := NewIdentity()
	plain := []byte(`{"u1":["apple","香蕉",""]}`)

	sealed, err := s.Seal(ctx, id, plain)
	require.NoError(t, err, "Unexpected error on Seal")
	assert.NotEqual(t, plain, sealed, "Expected sealed data to differ from plain data")

	opened, err := s.Open(ctx, id, sealed)
	require.NoError(t, err, "Unexpected error on Open")
	assert.Equal(t, plain, opened, "Unexpected opened data")

	_, err = s.Open(ctx, NewIdentity(), sealed)
	assert.Error(t, err, "Expected Open under another identity to fail")

	_, err = s.Open(ctx, id, []byte("not sealed"))
	assert.Error(t, err, "Expected Open of garbage to fail")
}
