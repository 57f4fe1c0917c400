package keylist

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopBackend struct{}

func (nopBackend) String() string { return "nop" }

func (nopBackend) Get(context.Context, Identity) ([]byte, error) { return nil, ErrNotFound }

func (nopBackend) Put(context.Context, Identity, []byte) error { return nil }

func (nopBackend) Delete(context.Context, Identity) error { return nil }

func TestRegister(t *testing.T) {
	bInit := func(map[string]interface{}) (Backend, error) {
		return nopBackend{}, nil
	}
	require.NoError(t, Register("nop-test", bInit))
	assert.Error(t, Register("nop-test", bInit), "Expected duplicate registration to fail")
	assert.Contains(t, Backends(), "nop-test")

	b, err := NewBackend("nop-test", nil)
	require.NoError(t, err)
	assert.Equal(t, "nop", b.String())

	_, err = NewBackend("notfound", nil)
	assert.Equal(t, ErrNotSupported, err)
}

type nopSealer struct{}

func (nopSealer) String() string { return "nop" }

func (nopSealer) Seal(_ context.Context, _ Identity, plain []byte) ([]byte, error) { return plain, nil }

func (nopSealer) Open(_ context.Context, _ Identity, sealed []byte) ([]byte, error) { return sealed, nil }

func TestRegisterSealer(t *testing.T) {
	sInit := func(map[string]interface{}) (Sealer, error) {
		return nopSealer{}, nil
	}
	require.NoError(t, RegisterSealer("nop-test", sInit))
	assert.Error(t, RegisterSealer("nop-test", sInit), "Expected duplicate registration to fail")
	assert.Contains(t, Sealers(), "nop-test")

	s, err := NewSealer("nop-test", nil)
	require.NoError(t, err)
	assert.Equal(t, "nop", s.String())

	_, err = NewSealer("notfound", nil)
	assert.Equal(t, ErrNotSupported, err)
	assert.NotContains(t, Sealers(), "notfound")
}

func TestRegistryListsAreSorted(t *testing.T) {
	bInit := func(map[string]interface{}) (Backend, error) {
		return nopBackend{}, nil
	}
	require.NoError(t, Register("zz-sorted-test", bInit))
	require.NoError(t, Register("aa-sorted-test", bInit))

	names := Backends()
	assert.True(t, sort.StringsAreSorted(names), "Expected sorted names, got %v", names)
	assert.Subset(t, names, []string{"aa-sorted-test", "zz-sorted-test"})
	assert.True(t, sort.StringsAreSorted(Sealers()))
}

func TestBackendError(t *testing.T) {
	id := Identity{Service: "svc", Account: "acct"}
	err := newBackendError(OpWrite, nopBackend{}, id, NewStatusError(403, assert.AnError))
	assert.ErrorIs(t, err, ErrBackendWrite)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, "nop write of svc/acct failed with code 403: "+assert.AnError.Error(), err.Error())
	assert.Equal(t, "403", CodeOf(err))

	assert.Nil(t, NewStatusError(500, nil))
	assert.Equal(t, "", CodeOf(assert.AnError))
}
