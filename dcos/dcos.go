package dcos

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/libopenstorage/keylist"
	api "github.com/portworx/dcos-secrets"
	"github.com/sirupsen/logrus"
)

// Keys for the config to initialize the DC/OS secrets client
const (
	EnvSecretsUsername   = "DCOS_SECRETS_USERNAME"
	EnvSecretsPassword   = "DCOS_SECRETS_PASSWORD"
	EnvSecretsCACertFile = "DCOS_SECRETS_CA_CERT_FILE"
	EnvDCOSClusterURL    = "DCOS_CLUSTER_URL"
	// EnvSecretStore selects the secret store, the cluster default when empty.
	EnvSecretStore = "DCOS_SECRET_STORE"
)

const (
	// Name of the backend
	Name = "dcos"
)

var (
	// ErrMissingCredentials returned when either of the creds are missing
	ErrMissingCredentials = errors.New("Username and password are required to authenticate")
)

var (
	// This is used for testing so that in tests we can override the newClient function
	// to have custom behavior.
	newClient = newSecretsClient
)

type dcosBackend struct {
	sync.Mutex
	client       api.DCOSSecrets
	store        string
	secretConfig map[string]interface{}
}

// New returns a backend keeping each blob, base64 encoded, as the DC/OS
// secret <service>/<account>.
func New(
	secretConfig map[string]interface{},
) (keylist.Backend, error) {
	client, err := newClient(secretConfig)
	if err != nil {
		return nil, err
	}
	return &dcosBackend{
		client:       client,
		store:        getConfigParam(secretConfig, EnvSecretStore),
		secretConfig: secretConfig,
	}, nil
}

func newSecretsClient(
	secretConfig map[string]interface{},
) (api.DCOSSecrets, error) {
	clientConfig := getClientConfig(secretConfig)
	token, err := getAuthToken(clientConfig, secretConfig)
	if err != nil {
		return nil, err
	}
	clientConfig.ACSToken = token
	return api.NewClient(clientConfig)
}

func getClientConfig(secretConfig map[string]interface{}) api.Config {
	config := api.NewDefaultConfig()

	url := getConfigParam(secretConfig, EnvDCOSClusterURL)
	if url != "" {
		config.ClusterURL = url
	}

	caCertFile := getConfigParam(secretConfig, EnvSecretsCACertFile)
	if caCertFile != "" {
		config.CACertFile = caCertFile
	} else {
		config.Insecure = true
	}

	return config
}

func getAuthToken(clientConfig api.Config, secretConfig map[string]interface{}) (string, error) {
	username := getConfigParam(secretConfig, EnvSecretsUsername)
	if username == "" {
		return "", ErrMissingCredentials
	}
	password := getConfigParam(secretConfig, EnvSecretsPassword)
	if password == "" {
		return "", ErrMissingCredentials
	}

	tokenConfig := api.DefaultTokenConfig()
	tokenConfig.Username = username
	tokenConfig.Password = password
	tokenConfig.Config = clientConfig

	token, err := api.GenerateACSToken(tokenConfig)
	if err != nil {
		return "", err
	} else if token == "" {
		return "", fmt.Errorf("Error generating authentication token")
	}
	return token, nil
}

func (d *dcosBackend) String() string {
	return Name
}

func (d *dcosBackend) Get(_ context.Context, id keylist.Identity) ([]byte, error) {
	var secret *api.Secret
	err := d.call(func(client api.DCOSSecrets) error {
		var err error
		secret, err = client.GetSecret(d.store, secretPath(id))
		return err
	})
	if isNotFound(err) {
		return nil, keylist.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	if secret == nil || secret.Value == "" {
		return nil, keylist.ErrNotFound
	}
	blob, err := base64.StdEncoding.DecodeString(secret.Value)
	if err != nil {
		return nil, fmt.Errorf("dcos secret %v is not base64: %v", id, err)
	}
	return blob, nil
}

func (d *dcosBackend) Put(_ context.Context, id keylist.Identity, blob []byte) error {
	secret := &api.Secret{
		Value: base64.StdEncoding.EncodeToString(blob),
	}
	return d.call(func(client api.DCOSSecrets) error {
		return client.CreateOrUpdateSecret(d.store, secretPath(id), secret)
	})
}

func (d *dcosBackend) Delete(_ context.Context, id keylist.Identity) error {
	err := d.call(func(client api.DCOSSecrets) error {
		return client.DeleteSecret(d.store, secretPath(id))
	})
	if isNotFound(err) {
		return nil
	}
	return err
}

// call runs fn, logging in again and retrying once when the ACS token has
// expired.
func (d *dcosBackend) call(fn func(api.DCOSSecrets) error) error {
	d.Lock()
	client := d.client
	d.Unlock()

	err := fn(client)
	if !isTokenExpired(err) {
		return err
	}
	logrus.WithField("backend", Name).Info("dcos token expired, logging in again")
	client, err = newClient(d.secretConfig)
	if err != nil {
		return err
	}
	d.Lock()
	d.client = client
	d.Unlock()
	return fn(client)
}

// secretPath returns the path of the secret for id. Paths may not start
// with a slash.
func secretPath(id keylist.Identity) string {
	return strings.TrimLeft(id.Service, "/") + "/" + id.Account
}

func getConfigParam(secretConfig map[string]interface{}, key string) string {
	if valueInterface, exists := secretConfig[key]; exists {
		if value, ok := valueInterface.(string); ok {
			return value
		}
	}
	return os.Getenv(key)
}

func isTokenExpired(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Unauthorized")
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "not found")
}

func init() {
	if err := keylist.Register(Name, New); err != nil {
		panic(err.Error())
	}
}
