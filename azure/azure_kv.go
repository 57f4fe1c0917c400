package azure

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/keyvault/2016-10-01/keyvault"
	"github.com/Azure/go-autorest/autorest"
	"github.com/Azure/go-autorest/autorest/to"
	"github.com/libopenstorage/keylist"
	"github.com/sirupsen/logrus"
)

const (
	// Name of the backend
	Name       = "azure-kv"
	AzureCloud = "AzurePublicCloud"

	AzureTenantIDKey     = "AZURE_TENANT_ID"
	AzureClientIDKey     = "AZURE_CLIENT_ID"
	AzureClientSecretKey = "AZURE_CLIENT_SECRET"
	AzureCertPathKey     = "AZURE_CLIENT_CERT_PATH"
	AzureCertPasswordKey = "AZURE_CLIENT_CERT_PASSWORD"
	AzureEnvironmentKey  = "AZURE_ENVIRONMENT"
	AzureVaultURLKey     = "AZURE_VAULT_URL"

	maxSecretName = 127
)

var (
	ErrAzureTenantIDNotSet = errors.New("AZURE_TENANT_ID not set.")
	ErrAzureClientIDNotSet = errors.New("AZURE_CLIENT_ID not set.")
	ErrAzureSecretIDNotSet = errors.New("AZURE_CLIENT_SECRET or AZURE_CLIENT_CERT_PATH not set.")
	ErrAzureVaultURLNotSet = errors.New("AZURE_VAULT_URL not set.")
	ErrAzureConfigMissing  = errors.New("AzureConfig is not provided")
	ErrAzureAuthentication = errors.New("Azure authentication failed")
)

type azureBackend struct {
	kv      keyvault.BaseClient
	baseURL string
}

// New returns a backend keeping each blob, base64 encoded, as the current
// version of a Key Vault secret named after the identity.
func New(
	secretConfig map[string]interface{},
) (keylist.Backend, error) {
	if len(secretConfig) == 0 {
		return nil, ErrAzureConfigMissing
	}
	tenantID := getAzureKVParams(secretConfig, AzureTenantIDKey)
	if tenantID == "" {
		return nil, ErrAzureTenantIDNotSet
	}
	clientID := getAzureKVParams(secretConfig, AzureClientIDKey)
	if clientID == "" {
		return nil, ErrAzureClientIDNotSet
	}
	secretID := getAzureKVParams(secretConfig, AzureClientSecretKey)
	certPath := getAzureKVParams(secretConfig, AzureCertPathKey)
	if secretID == "" && certPath == "" {
		return nil, ErrAzureSecretIDNotSet
	}
	certPassword := getAzureKVParams(secretConfig, AzureCertPasswordKey)
	envName := getAzureKVParams(secretConfig, AzureEnvironmentKey)
	if envName == "" {
		envName = AzureCloud
	}
	vaultURL := getAzureKVParams(secretConfig, AzureVaultURLKey)
	if vaultURL == "" {
		return nil, ErrAzureVaultURLNotSet
	}

	client, err := getAzureVaultClient(clientID, secretID, certPath, certPassword, tenantID, envName)
	if err != nil {
		logrus.WithError(err).Error("azure key vault authentication failed")
		return nil, ErrAzureAuthentication
	}
	return NewWithClient(client, vaultURL), nil
}

// NewWithClient returns an azure-kv backend on an existing client.
func NewWithClient(kv keyvault.BaseClient, vaultURL string) keylist.Backend {
	return &azureBackend{
		kv:      kv,
		baseURL: vaultURL,
	}
}

func (az *azureBackend) String() string {
	return Name
}

func (az *azureBackend) Get(ctx context.Context, id keylist.Identity) ([]byte, error) {
	// an empty version reads the current one
	secretResp, err := az.kv.GetSecret(ctx, az.baseURL, secretName(id), "")
	if isNotFound(err) {
		return nil, keylist.ErrNotFound
	} else if err != nil {
		return nil, statusError(err)
	}
	if secretResp.Value == nil {
		return nil, keylist.ErrNotFound
	}
	blob, err := base64.StdEncoding.DecodeString(*secretResp.Value)
	if err != nil {
		return nil, fmt.Errorf("key vault secret %v is not base64: %v", id, err)
	}
	return blob, nil
}

// Put adds a new version of the secret, which becomes the current one.
func (az *azureBackend) Put(ctx context.Context, id keylist.Identity, blob []byte) error {
	_, err := az.kv.SetSecret(ctx, az.baseURL, secretName(id), keyvault.SecretSetParameters{
		Value:       to.StringPtr(base64.StdEncoding.EncodeToString(blob)),
		ContentType: to.StringPtr("application/octet-stream;base64"),
	})
	return statusError(err)
}

// Delete deletes the secret and, on vaults with soft delete, tries to purge
// it so the name can be set again. A failed purge is only logged.
func (az *azureBackend) Delete(ctx context.Context, id keylist.Identity) error {
	name := secretName(id)
	_, err := az.kv.DeleteSecret(ctx, az.baseURL, name)
	if isNotFound(err) {
		return nil
	} else if err != nil {
		return statusError(err)
	}
	if _, err := az.kv.PurgeDeletedSecret(ctx, az.baseURL, name); err != nil && !isNotFound(err) {
		logrus.WithError(err).WithField("secret", name).Warn("azure key vault purge failed")
	}
	return nil
}

// secretName maps id to a Key Vault secret name, which may only hold
// alphanumerics and dashes.
func secretName(id keylist.Identity) string {
	sanitize := func(s string) string {
		return strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
				return r
			}
			return '-'
		}, s)
	}
	name := sanitize(id.Service) + "--" + sanitize(id.Account)
	if len(name) > maxSecretName {
		name = name[:maxSecretName]
	}
	return name
}

func isNotFound(err error) bool {
	var de autorest.DetailedError
	if errors.As(err, &de) {
		return de.StatusCode == http.StatusNotFound
	}
	return false
}

func statusError(err error) error {
	var de autorest.DetailedError
	if errors.As(err, &de) && de.StatusCode != nil {
		return keylist.NewStatusError(de.StatusCode, err)
	}
	return err
}

func init() {
	if err := keylist.Register(Name, New); err != nil {
		panic(err.Error())
	}
}
