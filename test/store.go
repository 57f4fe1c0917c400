package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libopenstorage/keylist"
)

type storeTest struct {
	b keylist.Backend
	s *keylist.Store
}

// RunForStore runs the store scenarios on top of b, each with a fresh
// identity.
func RunForStore(b keylist.Backend, t *testing.T, opts ...keylist.Option) {
	newStore := func() *storeTest {
		s, err := keylist.New(b, NewIdentity(), opts...)
		require.NoError(t, err, "Unable to create store")
		return &storeTest{b: b, s: s}
	}

	newStore().TestSaveAndRead(t)
	newStore().TestReadAbsent(t)
	newStore().TestAddValue(t)
	newStore().TestRemoveValue(t)
	newStore().TestRemoveLastValue(t)
	newStore().TestContainsAny(t)
	newStore().TestClearOwner(t)
	newStore().TestClearAll(t)
	newStore().TestIsolation(t)
}

func (a *storeTest) TestSaveAndRead(t *testing.T) {
	ctx := context.Background()
	defer a.s.ClearAll(ctx)

	values := []string{"apple", "banana", "orange"}
	require.NoError(t, a.s.SaveList(ctx, values, "u1"))

	got, err := a.s.ReadList(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, values, got, "Expected list to round-trip in order")

	// overwrite
	require.NoError(t, a.s.SaveList(ctx, []string{"three", "four", "five"}, "u1"))
	got, err = a.s.ReadList(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"three", "four", "five"}, got)

	// text that must survive the codec
	special := []string{"", "日本語", "emoji 🍎", `quote " and \ backslash`, "tab\tnewline\n"}
	require.NoError(t, a.s.SaveList(ctx, special, "u1"))
	got, err = a.s.ReadList(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, special, got)
}

func (a *storeTest) TestReadAbsent(t *testing.T) {
	ctx := context.Background()

	got, err := a.s.ReadList(ctx, "nobody")
	require.NoError(t, err, "Expected read of an unknown owner to succeed")
	assert.Empty(t, got)

	owners, err := a.s.AllOwners(ctx)
	require.NoError(t, err)
	assert.Empty(t, owners)

	_, err = a.s.Lookup(ctx, "nobody")
	assert.ErrorIs(t, err, keylist.ErrItemNotFound)
}

func (a *storeTest) TestAddValue(t *testing.T) {
	ctx := context.Background()
	defer a.s.ClearAll(ctx)

	require.NoError(t, a.s.AddValue(ctx, "x", "u2"))
	require.NoError(t, a.s.AddValue(ctx, "x", "u2"))
	got, err := a.s.ReadList(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got, "Expected AddValue to be idempotent")

	require.NoError(t, a.s.AddValue(ctx, "X", "u2"))
	require.NoError(t, a.s.AddValue(ctx, "", "u2"))
	got, err = a.s.ReadList(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "X", ""}, got, "Expected case sensitive comparison")
}

func (a *storeTest) TestRemoveValue(t *testing.T) {
	ctx := context.Background()
	defer a.s.ClearAll(ctx)

	require.NoError(t, a.s.SaveList(ctx, []string{"apple", "banana", "orange"}, "u1"))
	require.NoError(t, a.s.RemoveValue(ctx, "banana", "u1"))
	got, err := a.s.ReadList(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"apple", "orange"}, got)

	// second remove is a no-op
	require.NoError(t, a.s.RemoveValue(ctx, "banana", "u1"))
	got, err = a.s.ReadList(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"apple", "orange"}, got)

	// unknown owner is a no-op
	require.NoError(t, a.s.RemoveValue(ctx, "apple", "nobody"))

	// only the first occurrence goes
	require.NoError(t, a.s.SaveList(ctx, []string{"a", "b", "a"}, "dup"))
	require.NoError(t, a.s.RemoveValue(ctx, "a", "dup"))
	got, err = a.s.ReadList(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, got)
}

func (a *storeTest) TestRemoveLastValue(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, a.s.SaveList(ctx, []string{"only"}, "u3"))
	require.NoError(t, a.s.RemoveValue(ctx, "only", "u3"))

	owners, err := a.s.AllOwners(ctx)
	require.NoError(t, err)
	assert.NotContains(t, owners, "u3")

	got, err := a.s.ReadList(ctx, "u3")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = a.b.Get(ctx, a.s.Identity())
	assert.ErrorIs(t, err, keylist.ErrNotFound, "Expected blob to be deleted with its last owner")
}

func (a *storeTest) TestContainsAny(t *testing.T) {
	ctx := context.Background()
	defer a.s.ClearAll(ctx)

	ok, err := a.s.ContainsAny(ctx, []string{"a"}, "u1")
	require.NoError(t, err)
	assert.False(t, ok, "Expected false for an owner never written")

	require.NoError(t, a.s.SaveList(ctx, []string{"a", "b"}, "u1"))

	ok, err = a.s.ContainsAny(ctx, nil, "u1")
	require.NoError(t, err)
	assert.False(t, ok, "Expected false for no values")

	ok, err = a.s.ContainsAny(ctx, []string{"z", "b"}, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.s.ContainsAny(ctx, []string{"z", "B"}, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func (a *storeTest) TestClearOwner(t *testing.T) {
	ctx := context.Background()
	defer a.s.ClearAll(ctx)

	require.NoError(t, a.s.SaveList(ctx, []string{"a"}, "u1"))
	require.NoError(t, a.s.SaveList(ctx, []string{"b"}, "u2"))

	require.NoError(t, a.s.ClearOwner(ctx, "u1"))
	owners, err := a.s.AllOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, owners)

	require.NoError(t, a.s.ClearOwner(ctx, "u2"))
	_, err = a.b.Get(ctx, a.s.Identity())
	assert.ErrorIs(t, err, keylist.ErrNotFound, "Expected blob to be deleted with its last owner")

	// clearing an absent owner is fine
	require.NoError(t, a.s.ClearOwner(ctx, "u2"))
}

func (a *storeTest) TestClearAll(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, a.s.SaveList(ctx, []string{"a"}, "u1"))
	require.NoError(t, a.s.SaveList(ctx, []string{"b"}, "u2"))
	require.NoError(t, a.s.ClearAll(ctx))

	owners, err := a.s.AllOwners(ctx)
	require.NoError(t, err)
	assert.Empty(t, owners)

	// twice is fine
	require.NoError(t, a.s.ClearAll(ctx))
}

func (a *storeTest) TestIsolation(t *testing.T) {
	ctx := context.Background()
	defer a.s.ClearAll(ctx)

	require.NoError(t, a.s.SaveList(ctx, []string{"b1", "b2"}, "B"))

	require.NoError(t, a.s.SaveList(ctx, []string{"a1", "a2"}, "A"))
	require.NoError(t, a.s.AddValue(ctx, "a3", "A"))
	require.NoError(t, a.s.RemoveValue(ctx, "a1", "A"))
	require.NoError(t, a.s.RemoveValue(ctx, "a2", "A"))
	require.NoError(t, a.s.RemoveValue(ctx, "a3", "A"))
	require.NoError(t, a.s.SaveList(ctx, []string{"a4"}, "A"))
	require.NoError(t, a.s.ClearOwner(ctx, "A"))

	got, err := a.s.ReadList(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2"}, got, "Expected mutations of A to leave B untouched")
}
