package vault

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/libopenstorage/keylist"
	"github.com/libopenstorage/keylist/vault/utils"
	"github.com/sirupsen/logrus"
)

const (
	// Name of the backend
	Name = "vault"
	// BackendPathKey is the KV secrets engine mount.
	BackendPathKey = "VAULT_BACKEND_PATH"
	// BackendVersionKey forces the KV engine version ("1" or "2"). When not
	// set the version is read from the mount options.
	BackendVersionKey = "VAULT_BACKEND_VERSION"
	// CooldownPeriodKey is how long the backend refuses calls after vault
	// denied access and logging in again did not help. "0" disables it.
	CooldownPeriodKey = "VAULT_COOLDOWN_PERIOD"

	DefaultBackendPath    = "secret/"
	defaultCooldownPeriod = 5 * time.Minute

	kvVersion1 = "1"
	kvVersion2 = "2"

	blobField = "blob"
)

var (
	ErrInvalidBackendVersion = errors.New(BackendVersionKey + " must be 1 or 2")
	ErrInCooldown            = errors.New("vault client is in cooldown")
	ErrMissingBlob           = errors.New("vault secret has no " + blobField + " field")

	confCooldownPeriod = defaultCooldownPeriod
)

// kvStore is the part of the KV v1 and v2 clients the backend needs.
type kvStore interface {
	get(ctx context.Context, secretPath string) (map[string]interface{}, error)
	put(ctx context.Context, secretPath string, data map[string]interface{}) error
	delete(ctx context.Context, secretPath string) error
}

type kvV1 struct{ kv *api.KVv1 }

func (k kvV1) get(ctx context.Context, p string) (map[string]interface{}, error) {
	s, err := k.kv.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.Data, nil
}

func (k kvV1) put(ctx context.Context, p string, data map[string]interface{}) error {
	return k.kv.Put(ctx, p, data)
}

func (k kvV1) delete(ctx context.Context, p string) error {
	return k.kv.Delete(ctx, p)
}

type kvV2 struct{ kv *api.KVv2 }

func (k kvV2) get(ctx context.Context, p string) (map[string]interface{}, error) {
	s, err := k.kv.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.Data, nil
}

func (k kvV2) put(ctx context.Context, p string, data map[string]interface{}) error {
	_, err := k.kv.Put(ctx, p, data)
	return err
}

// delete removes every version along with the metadata.
func (k kvV2) delete(ctx context.Context, p string) error {
	return k.kv.DeleteMetadata(ctx, p)
}

type vaultBackend struct {
	mu       sync.RWMutex
	client   *api.Client
	kv       kvStore
	mount    string
	version  string
	autoAuth bool
	config   map[string]interface{}
	cooldown time.Time
}

// New returns a backend storing each blob base64 encoded in the field "blob"
// of the KV secret <mount>/<service>/<account>.
func New(
	secretConfig map[string]interface{},
) (keylist.Backend, error) {
	client, config, err := utils.NewClient(secretConfig)
	if err != nil {
		return nil, err
	}

	token, autoAuth, err := utils.Authenticate(client, secretConfig)
	if err != nil {
		utils.CloseIdleConnections(config)
		return nil, err
	}
	client.SetToken(token)

	if err := setCooldownPeriod(secretConfig); err != nil {
		return nil, err
	}

	mount := utils.GetVaultParam(secretConfig, BackendPathKey)
	if mount == "" {
		mount = DefaultBackendPath
	}
	mount = strings.Trim(mount, "/")

	version := utils.GetVaultParam(secretConfig, BackendVersionKey)
	if version == "" {
		if version, err = mountVersion(client, mount); err != nil {
			return nil, err
		}
	}

	v := &vaultBackend{
		client:   client,
		mount:    mount,
		version:  version,
		autoAuth: autoAuth,
		config:   secretConfig,
	}
	switch version {
	case kvVersion1:
		v.kv = kvV1{client.KVv1(mount)}
	case kvVersion2:
		v.kv = kvV2{client.KVv2(mount)}
	default:
		return nil, ErrInvalidBackendVersion
	}
	return v, nil
}

func (v *vaultBackend) String() string {
	return Name
}

func (v *vaultBackend) secretPath(id keylist.Identity) string {
	return path.Join(id.Service, id.Account)
}

func (v *vaultBackend) Get(ctx context.Context, id keylist.Identity) ([]byte, error) {
	var data map[string]interface{}
	err := v.call(func() (err error) {
		data, err = v.kv.get(ctx, v.secretPath(id))
		return err
	})
	if errors.Is(err, api.ErrSecretNotFound) {
		return nil, keylist.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, keylist.ErrNotFound
	}

	encoded, ok := data[blobField].(string)
	if !ok {
		return nil, ErrMissingBlob
	}
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("vault secret %v is not base64: %v", id, err)
	}
	return blob, nil
}

// Put writes a new secret version; KV writes replace the secret atomically.
func (v *vaultBackend) Put(ctx context.Context, id keylist.Identity, blob []byte) error {
	data := map[string]interface{}{
		blobField: base64.StdEncoding.EncodeToString(blob),
	}
	return v.call(func() error {
		return v.kv.put(ctx, v.secretPath(id), data)
	})
}

func (v *vaultBackend) Delete(ctx context.Context, id keylist.Identity) error {
	err := v.call(func() error {
		return v.kv.delete(ctx, v.secretPath(id))
	})
	if errors.Is(err, api.ErrSecretNotFound) {
		return nil
	}
	return err
}

// call runs fn, logging in again once if vault denies access with an expired
// token. A second denial starts the cooldown, during which calls fail fast.
func (v *vaultBackend) call(fn func() error) error {
	if v.inCooldown() {
		return ErrInCooldown
	}
	err := fn()
	if !v.autoAuth || !utils.IsPermissionDenied(err) {
		return statusError(err)
	}

	logrus.WithField("mount", v.mount).Warn("vault denied access, renewing token")
	if renewErr := v.renewToken(); renewErr != nil {
		logrus.WithError(renewErr).Warn("vault token renewal failed")
		v.startCooldown()
		return statusError(err)
	}
	if err = fn(); utils.IsPermissionDenied(err) {
		v.startCooldown()
	}
	return statusError(err)
}

func (v *vaultBackend) renewToken() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	token, err := utils.GetAuthToken(v.client, v.config)
	if err != nil {
		return err
	}
	v.client.SetToken(token)
	return nil
}

func (v *vaultBackend) inCooldown() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return !v.cooldown.IsZero() && time.Now().Before(v.cooldown)
}

func (v *vaultBackend) startCooldown() {
	if confCooldownPeriod <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cooldown = time.Now().Add(confCooldownPeriod)
}

// mountVersion reads the KV version from the mount's options.
func mountVersion(client *api.Client, mount string) (string, error) {
	mounts, err := client.Sys().ListMountsWithContext(context.TODO())
	if err != nil {
		return "", err
	}
	m, ok := mounts[mount+"/"]
	if !ok {
		return "", fmt.Errorf("vault mount %s/ not found", mount)
	}
	if m.Options != nil && m.Options["version"] == kvVersion2 {
		return kvVersion2, nil
	}
	return kvVersion1, nil
}

func setCooldownPeriod(config map[string]interface{}) error {
	value := utils.GetVaultParam(config, CooldownPeriodKey)
	if value == "" {
		confCooldownPeriod = defaultCooldownPeriod
		return nil
	}
	if value == "0" {
		confCooldownPeriod = 0
		return nil
	}
	period, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %v", CooldownPeriodKey, err)
	}
	confCooldownPeriod = period
	return nil
}

func statusError(err error) error {
	var respErr *api.ResponseError
	if errors.As(err, &respErr) {
		return keylist.NewStatusError(respErr.StatusCode, err)
	}
	return err
}

func init() {
	if err := keylist.Register(Name, New); err != nil {
		panic(err.Error())
	}
}
