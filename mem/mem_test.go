package mem

import (
	"testing"

	"github.com/libopenstorage/keylist"
	"github.com/libopenstorage/keylist/test"
	"github.com/stretchr/testify/require"
)

func TestAll(t *testing.T) {
	test.RunForBackend(NewBackend(), t)
}

func TestStore(t *testing.T) {
	test.RunForStore(NewBackend(), t)
}

func TestRegistered(t *testing.T) {
	b, err := keylist.NewBackend(Name, nil)
	require.NoError(t, err)
	require.Equal(t, Name, b.String())
}
