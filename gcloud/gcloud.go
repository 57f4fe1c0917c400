package gcloud

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/libopenstorage/keylist"
	"github.com/libopenstorage/keylist/pkg/envelope"
	"golang.org/x/oauth2/google"
	cloudkms "google.golang.org/api/cloudkms/v1"
	"google.golang.org/api/option"
)

const (
	// Name of the sealer
	Name = "gcloud-kms"
	// GoogleKmsResourceKey corresponds to the symmetric crypto key resource id
	// projects/<p>/locations/<l>/keyRings/<r>/cryptoKeys/<k>
	GoogleKmsResourceKey = "GOOGLE_KMS_RESOURCE_ID"
	// GoogleKmsEndpointKey overrides the Cloud KMS endpoint.
	GoogleKmsEndpointKey = "GOOGLE_KMS_ENDPOINT"
)

var (
	// ErrGoogleKmsResourceKeyNotProvided is returned when GOOGLE_KMS_RESOURCE_ID is not provided
	ErrGoogleKmsResourceKeyNotProvided = errors.New("Google KMS crypto key resource ID is not provided")
)

type gcloudKeySource struct {
	kms     *cloudkms.Service
	keyName string
}

// New returns a sealer doing envelope encryption: data keys are generated
// locally and wrapped by the Cloud KMS crypto key, with the identity as
// additional authenticated data. Credentials are the application default
// credentials.
func New(
	secretConfig map[string]interface{},
) (keylist.Sealer, error) {
	keyName := getParam(secretConfig, GoogleKmsResourceKey)
	if keyName == "" {
		return nil, ErrGoogleKmsResourceKeyNotProvided
	}

	ctx := context.Background()
	client, err := google.DefaultClient(ctx, cloudkms.CloudPlatformScope)
	if err != nil {
		return nil, err
	}
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if endpoint := getParam(secretConfig, GoogleKmsEndpointKey); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	cloudkmsService, err := cloudkms.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return NewWithService(cloudkmsService, keyName), nil
}

// NewWithService returns a gcloud-kms sealer on an existing Cloud KMS service.
func NewWithService(kms *cloudkms.Service, keyName string) keylist.Sealer {
	return envelope.NewSealer(Name, &gcloudKeySource{
		kms:     kms,
		keyName: keyName,
	})
}

func (g *gcloudKeySource) GenerateKey(ctx context.Context, id keylist.Identity) ([]byte, []byte, error) {
	dek, err := envelope.NewKey()
	if err != nil {
		return nil, nil, err
	}
	req := &cloudkms.EncryptRequest{
		Plaintext:                   base64.StdEncoding.EncodeToString(dek),
		AdditionalAuthenticatedData: aad(id),
	}
	resp, err := g.kms.Projects.Locations.KeyRings.CryptoKeys.
		Encrypt(g.keyName, req).Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("encryption request failed: %v", err)
	}
	wrapped, err := base64.StdEncoding.DecodeString(resp.Ciphertext)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode ciphertext: %v", err)
	}
	return dek, wrapped, nil
}

func (g *gcloudKeySource) UnwrapKey(ctx context.Context, id keylist.Identity, wrapped []byte) ([]byte, error) {
	req := &cloudkms.DecryptRequest{
		Ciphertext:                  base64.StdEncoding.EncodeToString(wrapped),
		AdditionalAuthenticatedData: aad(id),
	}
	resp, err := g.kms.Projects.Locations.KeyRings.CryptoKeys.
		Decrypt(g.keyName, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("decryption request failed: %v", err)
	}
	dek, err := base64.StdEncoding.DecodeString(resp.Plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode decrypted string: %v", err)
	}
	return dek, nil
}

func aad(id keylist.Identity) string {
	return base64.StdEncoding.EncodeToString([]byte(id.String()))
}

func getParam(config map[string]interface{}, name string) string {
	if v, ok := config[name].(string); ok && v != "" {
		return v
	}
	return os.Getenv(name)
}

func init() {
	if err := keylist.RegisterSealer(Name, New); err != nil {
		panic(err.Error())
	}
}
