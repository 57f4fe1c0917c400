package dcos

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	api "github.com/portworx/dcos-secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libopenstorage/keylist"
	"github.com/libopenstorage/keylist/dcos/mock"
	"github.com/libopenstorage/keylist/test"
)

var testID = keylist.Identity{Service: "io.openstorage.keylist", Account: "owners"}

// memSecrets is a DC/OS secrets client over a map, keyed by store and path.
type memSecrets struct {
	sync.Mutex
	secrets map[string]string
}

func (m *memSecrets) UpdateACSToken(token string) {}

func (m *memSecrets) GetSecret(store, key string) (*api.Secret, error) {
	m.Lock()
	defer m.Unlock()
	value, ok := m.secrets[store+":"+key]
	if !ok {
		return nil, secretNotFound()
	}
	return &api.Secret{Value: value}, nil
}

func (m *memSecrets) CreateSecret(store, key string, secret *api.Secret) error {
	m.Lock()
	defer m.Unlock()
	if _, ok := m.secrets[store+":"+key]; ok {
		return errors.New("API Error: Secret already exists")
	}
	m.secrets[store+":"+key] = secret.Value
	return nil
}

func (m *memSecrets) UpdateSecret(store, key string, secret *api.Secret) error {
	m.Lock()
	defer m.Unlock()
	if _, ok := m.secrets[store+":"+key]; !ok {
		return secretNotFound()
	}
	m.secrets[store+":"+key] = secret.Value
	return nil
}

func (m *memSecrets) CreateOrUpdateSecret(store, key string, secret *api.Secret) error {
	if err := m.CreateSecret(store, key, secret); err != nil {
		return m.UpdateSecret(store, key, secret)
	}
	return nil
}

func (m *memSecrets) DeleteSecret(store, key string) error {
	m.Lock()
	defer m.Unlock()
	if _, ok := m.secrets[store+":"+key]; !ok {
		return secretNotFound()
	}
	delete(m.secrets, store+":"+key)
	return nil
}

func (m *memSecrets) RevokeSecret(store, key string) error {
	return api.ErrNotImplemented
}

func (m *memSecrets) RenewSecret(store, key string, duration int64) error {
	return api.ErrNotImplemented
}

func secretNotFound() error {
	return api.NewAPIError([]byte(`{"title":"Not Found","description":"Secret not found"}`))
}

func TestAll(t *testing.T) {
	b := &dcosBackend{client: &memSecrets{secrets: make(map[string]string)}}
	test.RunForBackend(b, t)
}

func TestStore(t *testing.T) {
	b := &dcosBackend{
		client: &memSecrets{secrets: make(map[string]string)},
		store:  "keylist",
	}
	test.RunForStore(b, t)
}

func TestFailOnMissingCredentials(t *testing.T) {
	t.Setenv(EnvSecretsUsername, "")
	t.Setenv(EnvSecretsPassword, "")

	_, err := New(map[string]interface{}{})
	assert.Equal(t, ErrMissingCredentials, err)

	_, err = New(map[string]interface{}{EnvSecretsUsername: "username"})
	assert.Equal(t, ErrMissingCredentials, err)

	_, err = New(map[string]interface{}{EnvSecretsPassword: "password"})
	assert.Equal(t, ErrMissingCredentials, err)
}

func TestSecretLayout(t *testing.T) {
	ctx := context.Background()
	mockClient := mock.NewMockDCOSSecrets(gomock.NewController(t))
	b := &dcosBackend{client: mockClient, store: "custom_store"}

	mockClient.EXPECT().
		CreateOrUpdateSecret("custom_store", "io.openstorage.keylist/owners", gomock.Eq(&api.Secret{
			Value: "eyJ1MSI6WyJhIl19",
		})).
		Return(nil).
		Times(1)
	require.NoError(t, b.Put(ctx, testID, []byte(`{"u1":["a"]}`)))

	mockClient.EXPECT().
		GetSecret("custom_store", "io.openstorage.keylist/owners").
		Return(&api.Secret{Value: "eyJ1MSI6WyJhIl19"}, nil).
		Times(1)
	blob, err := b.Get(ctx, testID)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"u1":["a"]}`), blob)
}

func TestGetErrors(t *testing.T) {
	ctx := context.Background()
	mockClient := mock.NewMockDCOSSecrets(gomock.NewController(t))
	b := &dcosBackend{client: mockClient}

	mockClient.EXPECT().
		GetSecret("", "io.openstorage.keylist/owners").
		Return(nil, errors.New("Get secret error")).
		Times(1)
	_, err := b.Get(ctx, testID)
	assert.EqualError(t, err, "Get secret error")

	mockClient.EXPECT().
		GetSecret("", "io.openstorage.keylist/owners").
		Return(nil, nil).
		Times(1)
	_, err = b.Get(ctx, testID)
	assert.Equal(t, keylist.ErrNotFound, err)

	mockClient.EXPECT().
		GetSecret("", "io.openstorage.keylist/owners").
		Return(&api.Secret{Value: "%%%"}, nil).
		Times(1)
	_, err = b.Get(ctx, testID)
	assert.Error(t, err, "Expected a value that is not base64 to fail")

	mockClient.EXPECT().
		DeleteSecret("", "io.openstorage.keylist/owners").
		Return(secretNotFound()).
		Times(1)
	assert.NoError(t, b.Delete(ctx, testID), "Expected not found on delete to be ignored")
}

func TestTokenExpired(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	expired := mock.NewMockDCOSSecrets(ctrl)
	fresh := mock.NewMockDCOSSecrets(ctrl)

	logins := 0
	defer func(fn func(map[string]interface{}) (api.DCOSSecrets, error)) {
		newClient = fn
	}(newClient)
	newClient = func(secretConfig map[string]interface{}) (api.DCOSSecrets, error) {
		logins++
		assert.Equal(t, "username", secretConfig[EnvSecretsUsername])
		return fresh, nil
	}

	b := &dcosBackend{
		client:       expired,
		secretConfig: map[string]interface{}{EnvSecretsUsername: "username"},
	}
	expired.EXPECT().
		DeleteSecret("", "io.openstorage.keylist/owners").
		Return(api.NewAPIError([]byte("Unauthorized"))).
		Times(1)
	fresh.EXPECT().
		DeleteSecret("", "io.openstorage.keylist/owners").
		Return(nil).
		Times(2)

	require.NoError(t, b.Delete(ctx, testID))
	require.NoError(t, b.Delete(ctx, testID))
	assert.Equal(t, 1, logins, "Expected the new client to be kept")
}
