package keylist_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libopenstorage/keylist"
	"github.com/libopenstorage/keylist/mem"
	"github.com/libopenstorage/keylist/mock"
	"github.com/libopenstorage/keylist/test"
)

var testID = keylist.Identity{Service: "io.openstorage.keylist.test", Account: "owners"}

func TestStoreOnMem(t *testing.T) {
	test.RunForStore(mem.NewBackend(), t)
}

func TestNew(t *testing.T) {
	_, err := keylist.New(nil, testID)
	assert.Equal(t, keylist.ErrNilBackend, err)

	_, err = keylist.New(mem.NewBackend(), keylist.Identity{Service: "svc"})
	assert.Equal(t, keylist.ErrInvalidIdentity, err)

	s, err := keylist.New(mem.NewBackend(), keylist.DefaultIdentity())
	require.NoError(t, err)
	assert.Equal(t, keylist.DefaultIdentity(), s.Identity())
	assert.Equal(t, mem.Name, s.String())
}

func TestNewFromConfig(t *testing.T) {
	s, err := keylist.NewFromConfig(mem.Name, testID, nil)
	require.NoError(t, err)
	assert.Equal(t, mem.Name, s.String())

	_, err = keylist.NewFromConfig("notfound", testID, nil)
	assert.Equal(t, keylist.ErrNotSupported, err)
}

func TestInvalidOwner(t *testing.T) {
	ctx := context.Background()
	s, err := keylist.New(mem.NewBackend(), testID)
	require.NoError(t, err)

	assert.Equal(t, keylist.ErrInvalidOwner, s.SaveList(ctx, []string{"a"}, ""))
	assert.Equal(t, keylist.ErrInvalidOwner, s.AddValue(ctx, "a", ""))
	assert.Equal(t, keylist.ErrInvalidOwner, s.RemoveValue(ctx, "a", ""))
	assert.Equal(t, keylist.ErrInvalidOwner, s.ClearOwner(ctx, ""))
	_, err = s.ReadList(ctx, "")
	assert.Equal(t, keylist.ErrInvalidOwner, err)
	_, err = s.ContainsAny(ctx, []string{"a"}, "")
	assert.Equal(t, keylist.ErrInvalidOwner, err)
}

func TestSaveEmptyList(t *testing.T) {
	ctx := context.Background()
	b := mem.NewBackend()
	s, err := keylist.New(b, testID)
	require.NoError(t, err)

	require.NoError(t, s.SaveList(ctx, []string{}, "u1"))
	got, err := s.ReadList(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, b.Exists(testID), "Expected no blob for an empty list")

	require.NoError(t, s.SaveList(ctx, []string{"a"}, "u1"))
	require.NoError(t, s.SaveList(ctx, nil, "u1"))
	assert.False(t, b.Exists(testID), "Expected blob to go with the last owner")
}

func TestAddDuplicateDoesNotWrite(t *testing.T) {
	ctrl := gomock.NewController(t)
	b := mock.NewMockBackend(ctrl)
	b.EXPECT().String().Return("mock").AnyTimes()
	b.EXPECT().
		Get(gomock.Any(), testID).
		Return([]byte(`{"u2":["x"]}`), nil).
		Times(1)

	s, err := keylist.New(b, testID)
	require.NoError(t, err)
	require.NoError(t, s.AddValue(context.Background(), "x", "u2"))
}

func TestRemoveMissingDoesNotWrite(t *testing.T) {
	ctrl := gomock.NewController(t)
	b := mock.NewMockBackend(ctrl)
	b.EXPECT().String().Return("mock").AnyTimes()
	b.EXPECT().
		Get(gomock.Any(), testID).
		Return([]byte(`{"u1":["a"]}`), nil).
		Times(2)

	s, err := keylist.New(b, testID)
	require.NoError(t, err)
	require.NoError(t, s.RemoveValue(context.Background(), "b", "u1"))
	require.NoError(t, s.RemoveValue(context.Background(), "a", "nobody"))
}

func TestRemoveLastValueDeletesBlob(t *testing.T) {
	ctrl := gomock.NewController(t)
	b := mock.NewMockBackend(ctrl)
	b.EXPECT().String().Return("mock").AnyTimes()
	gomock.InOrder(
		b.EXPECT().
			Get(gomock.Any(), testID).
			Return([]byte(`{"u3":["only"]}`), nil),
		b.EXPECT().
			Delete(gomock.Any(), testID).
			Return(nil),
	)

	s, err := keylist.New(b, testID)
	require.NoError(t, err)
	require.NoError(t, s.RemoveValue(context.Background(), "only", "u3"))
}

func TestRemoveKeepsOtherOwners(t *testing.T) {
	ctrl := gomock.NewController(t)
	b := mock.NewMockBackend(ctrl)
	b.EXPECT().String().Return("mock").AnyTimes()
	b.EXPECT().
		Get(gomock.Any(), testID).
		Return([]byte(`{"u3":["only"],"u4":["b"]}`), nil)
	b.EXPECT().
		Put(gomock.Any(), testID, []byte(`{"u4":["b"]}`)).
		Return(nil)

	s, err := keylist.New(b, testID)
	require.NoError(t, err)
	require.NoError(t, s.RemoveValue(context.Background(), "only", "u3"))
}

func TestBackendErrors(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	b := mock.NewMockBackend(ctrl)
	b.EXPECT().String().Return("mock").AnyTimes()
	s, err := keylist.New(b, testID)
	require.NoError(t, err)

	readErr := keylist.NewStatusError(-25300, errors.New("keychain unavailable"))
	b.EXPECT().Get(gomock.Any(), testID).Return(nil, readErr)
	_, err = s.ReadList(ctx, "u1")
	assert.ErrorIs(t, err, keylist.ErrBackendRead)
	assert.ErrorIs(t, err, readErr)
	var be *keylist.BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "-25300", be.Code)
	assert.Equal(t, keylist.OpRead, be.Op)

	writeErr := errors.New("disk full")
	b.EXPECT().Get(gomock.Any(), testID).Return(nil, keylist.ErrNotFound)
	b.EXPECT().Put(gomock.Any(), testID, gomock.Any()).Return(writeErr)
	err = s.AddValue(ctx, "a", "u1")
	assert.ErrorIs(t, err, keylist.ErrBackendWrite)
	assert.ErrorIs(t, err, writeErr)
	assert.NotErrorIs(t, err, keylist.ErrBackendRead)

	deleteErr := errors.New("denied")
	b.EXPECT().Delete(gomock.Any(), testID).Return(deleteErr)
	err = s.ClearAll(ctx)
	assert.ErrorIs(t, err, keylist.ErrBackendDelete)

	b.EXPECT().Delete(gomock.Any(), testID).Return(keylist.ErrNotFound)
	assert.NoError(t, s.ClearAll(ctx), "Expected not found on delete to be ignored")
}

func TestCorruptBlob(t *testing.T) {
	ctx := context.Background()
	b := mem.NewBackend()
	require.NoError(t, b.Put(ctx, testID, []byte("not json")))
	s, err := keylist.New(b, testID)
	require.NoError(t, err)

	_, err = s.ReadList(ctx, "u1")
	assert.ErrorIs(t, err, keylist.ErrDecodingFailed)

	err = s.AddValue(ctx, "a", "u1")
	assert.ErrorIs(t, err, keylist.ErrDecodingFailed)

	// a corrupt record can still be cleared
	require.NoError(t, s.ClearAll(ctx))
	assert.False(t, b.Exists(testID))
}

func TestBlobWithUnusableOwner(t *testing.T) {
	ctx := context.Background()
	b := mem.NewBackend()
	require.NoError(t, b.Put(ctx, testID, []byte(`{"":["a"],"u1":[null,"b"]}`)))
	s, err := keylist.New(b, testID)
	require.NoError(t, err)

	_, err = s.AllOwners(ctx)
	assert.ErrorIs(t, err, keylist.ErrDecodingFailed)
	_, err = s.ReadList(ctx, "u1")
	assert.ErrorIs(t, err, keylist.ErrDecodingFailed)
}

func TestEncodingFailed(t *testing.T) {
	ctx := context.Background()
	b := mem.NewBackend()
	s, err := keylist.New(b, testID)
	require.NoError(t, err)

	err = s.AddValue(ctx, "\xff\xfe", "u1")
	assert.ErrorIs(t, err, keylist.ErrEncodingFailed)
	assert.False(t, b.Exists(testID))
}

func TestEmptyListsInBlobAreDropped(t *testing.T) {
	ctx := context.Background()
	b := mem.NewBackend()
	require.NoError(t, b.Put(ctx, testID, []byte(`{"u1":[],"u2":["a"]}`)))
	s, err := keylist.New(b, testID)
	require.NoError(t, err)

	owners, err := s.AllOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, owners)
}

func TestSealer(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	sealer := mock.NewMockSealer(ctrl)
	sealer.EXPECT().String().Return("rot").AnyTimes()
	sealer.EXPECT().
		Seal(gomock.Any(), testID, []byte(`{"u1":["a"]}`)).
		Return([]byte("sealed"), nil)
	sealer.EXPECT().
		Open(gomock.Any(), testID, []byte("sealed")).
		Return([]byte(`{"u1":["a"]}`), nil)

	b := mem.NewBackend()
	s, err := keylist.New(b, testID, keylist.WithSealer(sealer))
	require.NoError(t, err)
	assert.Equal(t, "mem+rot", s.String())

	require.NoError(t, s.AddValue(ctx, "a", "u1"))
	blob, err := b.Get(ctx, testID)
	require.NoError(t, err)
	assert.Equal(t, []byte("sealed"), blob)

	got, err := s.ReadList(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)

	sealer.EXPECT().
		Open(gomock.Any(), testID, []byte("sealed")).
		Return(nil, errors.New("wrong key"))
	_, err = s.ReadList(ctx, "u1")
	assert.ErrorIs(t, err, keylist.ErrDecodingFailed)

	sealer.EXPECT().
		Open(gomock.Any(), testID, []byte("sealed")).
		Return([]byte(`{"u1":["a"]}`), nil)
	sealer.EXPECT().
		Seal(gomock.Any(), testID, gomock.Any()).
		Return(nil, errors.New("kms down"))
	err = s.AddValue(ctx, "b", "u1")
	assert.ErrorIs(t, err, keylist.ErrEncodingFailed)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	s, err := keylist.New(mem.NewBackend(), testID)
	require.NoError(t, err)

	err = s.Update(ctx, func(rec keylist.Record) (keylist.Record, bool) {
		rec["u1"] = []string{"a", "b"}
		rec["u2"] = []string{"c"}
		return rec, true
	})
	require.NoError(t, err)

	rec, err := s.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, keylist.Record{"u1": {"a", "b"}, "u2": {"c"}}, rec)

	// the view is a copy
	rec["u1"][0] = "changed"
	got, err := s.ReadList(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	b := mem.NewBackend()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// separate handles for the same identity share the identity lock
			s, err := keylist.New(b, testID)
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, s.AddValue(ctx, fmt.Sprintf("v%d", i), "u1"))
		}(i)
	}
	wg.Wait()

	s, err := keylist.New(b, testID)
	require.NoError(t, err)
	got, err := s.ReadList(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got, 20, "Expected no lost updates")
}
