package vaulttransit

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/vault/api"
	"github.com/libopenstorage/keylist"
	"github.com/libopenstorage/keylist/vault/utils"
	"github.com/libopenstorage/keylist/vaulttransit/client/transit"
	"github.com/sirupsen/logrus"
)

const (
	// Name of the sealer
	Name = "vault-transit"
	// EncryptionKey names the transit key. A default key is created when
	// it is not set.
	EncryptionKey = "VAULT_ENCRYPTION_KEY"
	// TransitPathKey is the transit engine mount.
	TransitPathKey = "VAULT_TRANSIT_PATH"

	defaultEncryptionKey = "keylist-encryption-key"
)

type transitSealer struct {
	mu       sync.Mutex
	client   *api.Client
	transit  *transit.VaultTransit
	key      transit.SecretKey
	autoAuth bool
	config   map[string]interface{}
}

func init() {
	if err := keylist.RegisterSealer(Name, New); err != nil {
		panic(err.Error())
	}
}

// New returns a sealer that has vault's transit engine encrypt the record.
// The identity is passed as associated data, so a sealed record only opens
// under the identity it was sealed for.
func New(
	secretConfig map[string]interface{},
) (keylist.Sealer, error) {
	client, config, err := utils.NewClient(secretConfig)
	if err != nil {
		return nil, err
	}

	token, autoAuth, err := utils.Authenticate(client, secretConfig)
	if token == "" {
		utils.CloseIdleConnections(config)
		if err == nil {
			err = utils.ErrVaultTokenNotSet
		}
		return nil, err
	}
	client.SetToken(token)

	transitClient, err := transit.New(client.Logical())
	if err != nil {
		return nil, err
	}

	mount := strings.Trim(utils.GetVaultParam(secretConfig, TransitPathKey), "/")
	key, err := ensureEncryptionKey(
		context.Background(),
		transitClient,
		transit.SecretKey{
			Name:  utils.GetVaultParam(secretConfig, EncryptionKey),
			Mount: mount,
		},
	)
	if err != nil {
		return nil, err
	}

	return &transitSealer{
		client:   client,
		transit:  transitClient,
		key:      key,
		autoAuth: autoAuth,
		config:   secretConfig,
	}, nil
}

func (v *transitSealer) String() string {
	return Name
}

func (v *transitSealer) Seal(ctx context.Context, id keylist.Identity, plain []byte) ([]byte, error) {
	var cipher string
	err := v.call(func() (err error) {
		cipher, err = v.transit.Encrypt(ctx, v.key,
			base64.StdEncoding.EncodeToString(plain), associatedData(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return []byte(cipher), nil
}

func (v *transitSealer) Open(ctx context.Context, id keylist.Identity, sealed []byte) ([]byte, error) {
	var encoded string
	err := v.call(func() (err error) {
		encoded, err = v.transit.Decrypt(ctx, v.key, string(sealed), associatedData(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	plain, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("transit returned invalid plaintext: %v", err)
	}
	return plain, nil
}

// call runs fn and, when the token came from a login and vault denies it,
// logs in again and retries once.
func (v *transitSealer) call(fn func() error) error {
	err := fn()
	if !v.autoAuth || !utils.IsPermissionDenied(err) {
		return err
	}
	if renewErr := v.renewToken(); renewErr != nil {
		logrus.WithError(renewErr).Warn("vault transit token renewal failed")
		return err
	}
	return fn()
}

func (v *transitSealer) renewToken() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	token, err := utils.GetAuthToken(v.client, v.config)
	if err != nil {
		return fmt.Errorf("get auth token: %s", err)
	}
	v.client.SetToken(token)
	return nil
}

func associatedData(id keylist.Identity) string {
	return base64.StdEncoding.EncodeToString([]byte(id.String()))
}

// ensureEncryptionKey creates the default encryption key when none is
// configured, or checks that the configured one exists.
func ensureEncryptionKey(ctx context.Context, c *transit.VaultTransit, key transit.SecretKey) (transit.SecretKey, error) {
	if key.Name == "" {
		key.Name = defaultEncryptionKey
		if _, err := c.Create(ctx, key, ""); err != nil {
			return key, err
		}
		return key, nil
	}

	if _, err := c.Read(ctx, key); err != nil {
		return key, err
	}
	return key, nil
}
