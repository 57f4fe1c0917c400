package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pborman/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"

	"github.com/libopenstorage/keylist"
	"github.com/libopenstorage/keylist/test"
)

func TestAll(t *testing.T) {
	b := NewWithService(afs.New(), "mem://localhost/keylist-"+uuid.New())
	test.RunForBackend(b, t)
}

func TestStore(t *testing.T) {
	b, err := keylist.NewBackend(Name, map[string]interface{}{
		URLKey: "mem://localhost/keylist-" + uuid.New(),
	})
	require.NoError(t, err)
	test.RunForStore(b, t)
}

func TestOnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b, err := New(map[string]interface{}{URLKey: "file://" + dir})
	require.NoError(t, err)

	id := keylist.Identity{Service: "svc", Account: "acct"}
	require.NoError(t, b.Put(ctx, id, []byte(`{"u1":["a"]}`)))

	onDisk, err := os.ReadFile(filepath.Join(dir, "svc", "acct"))
	require.NoError(t, err)
	assert.Equal(t, `{"u1":["a"]}`, string(onDisk))

	entries, err := os.ReadDir(filepath.Join(dir, "svc"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "Expected temporary file to be moved into place")

	require.NoError(t, b.Delete(ctx, id))
	_, err = os.Stat(filepath.Join(dir, "svc", "acct"))
	assert.True(t, os.IsNotExist(err))
}

func TestDefaultURL(t *testing.T) {
	os.Unsetenv(URLKey)
	b, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultURL, b.(*fileBackend).base)

	os.Setenv(URLKey, "mem://localhost/env")
	defer os.Unsetenv(URLKey)
	b, err = New(nil)
	require.NoError(t, err)
	assert.Equal(t, "mem://localhost/env", b.(*fileBackend).base)
}
