package file

import (
	"bytes"
	"context"
	"os"

	"github.com/libopenstorage/keylist"
	"github.com/pborman/uuid"
	"github.com/viant/afs"
	afsfile "github.com/viant/afs/file"
	"github.com/viant/afs/url"
)

const (
	// Name of the backend
	Name = "file"
	// URLKey is the config key (and env var) for the base URL under which
	// blobs are kept. Any scheme registered with afs works, file:// and
	// mem:// included.
	URLKey = "KEYLIST_FILE_URL"
	// DefaultURL is used when URLKey is not set.
	DefaultURL = "file:///var/lib/osd/keylist"
)

type fileBackend struct {
	fs   afs.Service
	base string
}

// New returns a backend keeping each blob in its own file at
// <base>/<service>/<account>.
func New(
	config map[string]interface{},
) (keylist.Backend, error) {
	base := getParam(config, URLKey)
	if base == "" {
		base = DefaultURL
	}
	return NewWithService(afs.New(), base), nil
}

// NewWithService returns a file backend on an existing afs service.
func NewWithService(fs afs.Service, base string) keylist.Backend {
	return &fileBackend{
		fs:   fs,
		base: base,
	}
}

func (f *fileBackend) String() string {
	return Name
}

func (f *fileBackend) location(id keylist.Identity) string {
	return url.Join(f.base, id.Service, id.Account)
}

func (f *fileBackend) Get(ctx context.Context, id keylist.Identity) ([]byte, error) {
	location := f.location(id)
	exists, err := f.fs.Exists(ctx, location)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, keylist.ErrNotFound
	}
	blob, err := f.fs.DownloadWithURL(ctx, location)
	if err != nil {
		if exists, _ = f.fs.Exists(ctx, location); !exists {
			return nil, keylist.ErrNotFound
		}
		return nil, err
	}
	return blob, nil
}

// Put writes the blob next to its final location and moves it into place, so
// readers see either the old or the new blob.
func (f *fileBackend) Put(ctx context.Context, id keylist.Identity, blob []byte) error {
	dir := url.Join(f.base, id.Service)
	if err := f.fs.Create(ctx, dir, afsfile.DefaultDirOsMode, true); err != nil {
		if exists, _ := f.fs.Exists(ctx, dir); !exists {
			return err
		}
	}
	tmp := url.Join(dir, "."+id.Account+"."+uuid.New())
	if err := f.fs.Upload(ctx, tmp, os.FileMode(0600), bytes.NewReader(blob)); err != nil {
		return err
	}
	if err := f.fs.Move(ctx, tmp, f.location(id)); err != nil {
		_ = f.fs.Delete(ctx, tmp)
		return err
	}
	return nil
}

func (f *fileBackend) Delete(ctx context.Context, id keylist.Identity) error {
	location := f.location(id)
	exists, err := f.fs.Exists(ctx, location)
	if err != nil || !exists {
		return err
	}
	return f.fs.Delete(ctx, location)
}

func getParam(config map[string]interface{}, name string) string {
	if value, ok := config[name]; ok {
		if s, ok := value.(string); ok && s != "" {
			return s
		}
	}
	return os.Getenv(name)
}

func init() {
	if err := keylist.Register(Name, New); err != nil {
		panic(err.Error())
	}
}
