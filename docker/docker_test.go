package docker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libopenstorage/keylist"
)

var testID = keylist.Identity{Service: "io.openstorage.keylist", Account: "owners"}

func TestNew(t *testing.T) {
	t.Setenv(DockerSecretPathKey, "")

	testCases := []struct {
		name string
		cfg  map[string]interface{}
		path string
	}{
		{
			name: "config is not provided",
			path: DockerSecretPath,
		},
		{
			name: "empty config",
			cfg:  map[string]interface{}{},
			path: DockerSecretPath,
		},
		{
			name: "custom path",
			cfg:  map[string]interface{}{DockerSecretPathKey: "/tmp/secrets"},
			path: "/tmp/secrets",
		},
	}

	for _, tc := range testCases {
		b, err := New(tc.cfg)
		require.NoError(t, err, tc.name)
		require.NotNil(t, b, tc.name)
		assert.Equal(t, tc.path, b.(*dockerBackend).path, tc.name)
	}

	t.Setenv(DockerSecretPathKey, "/env/secrets")
	b, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, "/env/secrets", b.(*dockerBackend).path)
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b, err := New(map[string]interface{}{DockerSecretPathKey: dir})
	require.NoError(t, err)

	_, err = b.Get(ctx, testID)
	assert.Equal(t, keylist.ErrNotFound, err)

	secretPath := filepath.Join(dir, "io.openstorage.keylist_owners")
	require.NoError(t, os.WriteFile(secretPath, nil, 0400))
	_, err = b.Get(ctx, testID)
	assert.Equal(t, keylist.ErrNotFound, err, "Expected an empty secret to read as absent")

	require.NoError(t, os.Remove(secretPath))
	require.NoError(t, os.WriteFile(secretPath, []byte(`{"u1":["a","b"]}`), 0400))
	blob, err := b.Get(ctx, testID)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"u1":["a","b"]}`), blob)
}

func TestReadOnlyStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "io.openstorage.keylist_owners"),
		[]byte(`{"u1":["a","b"]}`),
		0400,
	))
	b, err := New(map[string]interface{}{DockerSecretPathKey: dir})
	require.NoError(t, err)
	s, err := keylist.New(b, testID)
	require.NoError(t, err)

	got, err := s.ReadList(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	ok, err := s.ContainsAny(ctx, []string{"z", "b"}, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	err = s.AddValue(ctx, "c", "u1")
	assert.ErrorIs(t, err, keylist.ErrBackendWrite)
	assert.ErrorIs(t, err, keylist.ErrNotSupported)

	err = s.ClearAll(ctx)
	assert.ErrorIs(t, err, keylist.ErrBackendDelete)
}
