package docker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/libopenstorage/keylist"
)

const (
	// Name of the backend
	Name = "docker"
	// DockerSecretPathKey overrides the directory docker mounts secrets in.
	DockerSecretPathKey = "DOCKER_SECRET_PATH"
	DockerSecretPath    = "/run/secrets/"
)

// dockerBackend reads blobs from docker secrets, which are mounted read only
// into the container as <service>_<account>. Records are provisioned with
// `docker secret create`.
type dockerBackend struct {
	path string
}

func New(
	secretConfig map[string]interface{},
) (keylist.Backend, error) {
	path := DockerSecretPath
	if p, ok := secretConfig[DockerSecretPathKey].(string); ok && p != "" {
		path = p
	} else if p := os.Getenv(DockerSecretPathKey); p != "" {
		path = p
	}
	return &dockerBackend{path: path}, nil
}

func (d *dockerBackend) String() string {
	return Name
}

func (d *dockerBackend) secretPath(id keylist.Identity) string {
	return filepath.Join(d.path, id.Service+"_"+id.Account)
}

func (d *dockerBackend) Get(_ context.Context, id keylist.Identity) ([]byte, error) {
	secretPath := d.secretPath(id)
	blob, err := os.ReadFile(secretPath)
	if os.IsNotExist(err) {
		return nil, keylist.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("unable to read docker secret %v: %v", secretPath, err)
	}
	if len(blob) == 0 {
		return nil, keylist.ErrNotFound
	}
	return blob, nil
}

func (d *dockerBackend) Put(context.Context, keylist.Identity, []byte) error {
	return keylist.ErrNotSupported
}

func (d *dockerBackend) Delete(context.Context, keylist.Identity) error {
	return keylist.ErrNotSupported
}

func init() {
	if err := keylist.Register(Name, New); err != nil {
		panic(err.Error())
	}
}
