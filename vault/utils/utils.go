package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/vault/api"
	"github.com/hashicorp/vault/api/auth/approle"
	"github.com/hashicorp/vault/api/auth/kubernetes"
)

const (
	vaultAddressPrefix = "http"

	// AuthMethodKey selects how the client obtains a token when VAULT_TOKEN
	// is not set.
	AuthMethodKey = "VAULT_AUTH_METHOD"
	// AuthMethodKubernetes logs in with the pod's service account token.
	AuthMethodKubernetes = "kubernetes"
	// AuthMethodAppRole logs in with a role id and secret id.
	AuthMethodAppRole = "approle"

	AuthKubernetesRole      = "VAULT_AUTH_KUBERNETES_ROLE"
	AuthKubernetesTokenPath = "VAULT_AUTH_KUBERNETES_TOKEN_PATH"
	AuthKubernetesMountPath = "VAULT_AUTH_KUBERNETES_MOUNT_PATH"

	AuthAppRoleRoleID    = "VAULT_APPROLE_ROLE_ID"
	AuthAppRoleSecretID  = "VAULT_APPROLE_SECRET_ID"
	AuthAppRoleMountPath = "VAULT_APPROLE_MOUNT_PATH"

	defaultKubernetesTokenPath = "/var/run/secrets/kubernetes.io/serviceaccount/token"
)

var (
	ErrVaultTokenNotSet    = errors.New("VAULT_TOKEN not set.")
	ErrVaultAddressNotSet  = errors.New("VAULT_ADDR not set.")
	ErrInvalidSkipVerify   = errors.New("VAULT_SKIP_VERIFY is invalid")
	ErrKubernetesRole      = errors.New(AuthKubernetesRole + " not set")
	ErrAppRoleIDNotSet     = errors.New(AuthAppRoleRoleID + " not set")
	ErrAuthMethodUnknown   = errors.New("unknown auth method")
	ErrInvalidVaultAddress = errors.New("VAULT_ADDRESS is invalid. " +
		"Should be of the form http(s)://<ip>:<port>")
)

// GetVaultParam returns the string value of name from config, falling back to
// the environment variable of the same name.
func GetVaultParam(config map[string]interface{}, name string) string {
	if value, exists := config[name]; exists {
		if s, ok := value.(string); ok {
			return s
		}
	}
	return os.Getenv(name)
}

// IsValidAddr checks that address looks like http(s)://host.
func IsValidAddr(address string) error {
	// Vault fails if address is not in correct format
	if !strings.HasPrefix(address, vaultAddressPrefix) {
		return ErrInvalidVaultAddress
	}
	return nil
}

// ConfigureTLS applies the VAULT_* TLS settings from config to the client
// config.
func ConfigureTLS(config *api.Config, secretConfig map[string]interface{}) error {
	tlsConfig := api.TLSConfig{}
	skipVerify := GetVaultParam(secretConfig, api.EnvVaultInsecure)
	if skipVerify != "" {
		insecure, err := strconv.ParseBool(skipVerify)
		if err != nil {
			return ErrInvalidSkipVerify
		}
		tlsConfig.Insecure = insecure
	}

	tlsConfig.CACert = GetVaultParam(secretConfig, api.EnvVaultCACert)
	tlsConfig.CAPath = GetVaultParam(secretConfig, api.EnvVaultCAPath)
	tlsConfig.ClientCert = GetVaultParam(secretConfig, api.EnvVaultClientCert)
	tlsConfig.ClientKey = GetVaultParam(secretConfig, api.EnvVaultClientKey)
	tlsConfig.TLSServerName = GetVaultParam(secretConfig, api.EnvVaultTLSServerName)

	return config.ConfigureTLS(&tlsConfig)
}

// NewClient builds a vault client from config: address, TLS and namespace.
// The returned client has no token yet; see Authenticate.
func NewClient(secretConfig map[string]interface{}) (*api.Client, *api.Config, error) {
	// DefaultConfig uses the environment variables if present.
	config := api.DefaultConfig()
	if len(secretConfig) == 0 && config.Error != nil {
		return nil, nil, config.Error
	}

	address := GetVaultParam(secretConfig, api.EnvVaultAddress)
	if address == "" {
		return nil, nil, ErrVaultAddressNotSet
	}
	if err := IsValidAddr(address); err != nil {
		return nil, nil, err
	}
	config.Address = address

	if err := ConfigureTLS(config, secretConfig); err != nil {
		return nil, nil, err
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, nil, err
	}
	if namespace := GetVaultParam(secretConfig, api.EnvVaultNamespace); namespace != "" {
		client.SetNamespace(namespace)
	}
	return client, config, nil
}

// Authenticate returns the token to use: VAULT_TOKEN when given, otherwise a
// token obtained through VAULT_AUTH_METHOD. autoAuth reports whether the
// token came from a login and can be renewed by logging in again.
func Authenticate(client *api.Client, config map[string]interface{}) (token string, autoAuth bool, err error) {
	if token = GetVaultParam(config, api.EnvVaultToken); token != "" {
		return token, false, nil
	}
	if GetVaultParam(config, AuthMethodKey) == "" {
		return "", false, ErrVaultTokenNotSet
	}
	token, err = GetAuthToken(client, config)
	return token, true, err
}

// GetAuthToken logs in with the configured auth method and returns the client
// token.
func GetAuthToken(client *api.Client, config map[string]interface{}) (string, error) {
	var (
		authMethod api.AuthMethod
		err        error
	)
	switch method := GetVaultParam(config, AuthMethodKey); method {
	case AuthMethodKubernetes:
		authMethod, err = kubernetesAuth(config)
	case AuthMethodAppRole:
		authMethod, err = appRoleAuth(config)
	default:
		return "", fmt.Errorf("%w: %q", ErrAuthMethodUnknown, method)
	}
	if err != nil {
		return "", err
	}

	secret, err := client.Auth().Login(context.TODO(), authMethod)
	if err != nil {
		return "", err
	}
	if secret == nil || secret.Auth == nil || secret.Auth.ClientToken == "" {
		return "", ErrVaultTokenNotSet
	}
	return secret.Auth.ClientToken, nil
}

func kubernetesAuth(config map[string]interface{}) (api.AuthMethod, error) {
	role := GetVaultParam(config, AuthKubernetesRole)
	if role == "" {
		return nil, ErrKubernetesRole
	}
	tokenPath := GetVaultParam(config, AuthKubernetesTokenPath)
	if tokenPath == "" {
		tokenPath = defaultKubernetesTokenPath
	}
	opts := []kubernetes.LoginOption{kubernetes.WithServiceAccountTokenPath(tokenPath)}
	if mountPath := GetVaultParam(config, AuthKubernetesMountPath); mountPath != "" {
		opts = append(opts, kubernetes.WithMountPath(mountPath))
	}
	return kubernetes.NewKubernetesAuth(role, opts...)
}

func appRoleAuth(config map[string]interface{}) (api.AuthMethod, error) {
	roleID := GetVaultParam(config, AuthAppRoleRoleID)
	if roleID == "" {
		return nil, ErrAppRoleIDNotSet
	}
	secretID := &approle.SecretID{FromString: GetVaultParam(config, AuthAppRoleSecretID)}
	var opts []approle.LoginOption
	if mountPath := GetVaultParam(config, AuthAppRoleMountPath); mountPath != "" {
		opts = append(opts, approle.WithMountPath(mountPath))
	}
	return approle.NewAppRoleAuth(roleID, secretID, opts...)
}

// IsPermissionDenied reports whether err is vault's answer to an expired or
// revoked token.
func IsPermissionDenied(err error) bool {
	var respErr *api.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusForbidden {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "permission denied")
}

// CloseIdleConnections releases the connections held by a client that is
// being discarded.
func CloseIdleConnections(config *api.Config) {
	if config == nil || config.HttpClient == nil {
		return
	}
	if tr, ok := config.HttpClient.Transport.(*http.Transport); ok {
		tr.CloseIdleConnections()
	}
}
