package ibm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	ibm "github.com/IBM/keyprotect-go-client"
	"github.com/libopenstorage/keylist"
	"github.com/libopenstorage/keylist/pkg/envelope"
	"github.com/sirupsen/logrus"
)

const (
	// Name of the sealer
	Name = "ibm-kp"
	// IbmServiceApiKey is the service ID API Key
	IbmServiceApiKey = "IBM_SERVICE_API_KEY"
	// IbmInstanceIdKey is the Key Protect Service's Instance ID
	IbmInstanceIdKey = "IBM_INSTANCE_ID"
	// IbmBaseUrlKey is the Key Protect Service's Base URL
	IbmBaseUrlKey = "IBM_BASE_URL"
	// IbmTokenUrlKey is the Key Protect Service's Token URL
	IbmTokenUrlKey = "IBM_TOKEN_URL"
	// IbmCustomerRootKey is the Customer Root Key used for obtaining DEKs
	IbmCustomerRootKey = "IBM_CUSTOMER_ROOT_KEY"
	// kpClientTimeout is the http client timeout in seconds
	kpClientTimeout = 10
)

var (
	// ErrIbmServiceApiKeyNotSet is returned when IBM_SERVICE_API_KEY is not set
	ErrIbmServiceApiKeyNotSet = errors.New("IBM_SERVICE_API_KEY not set.")
	// ErrIbmInstanceIdKeyNotSet is returned when IBM_INSTANCE_ID is not set
	ErrIbmInstanceIdKeyNotSet = errors.New("IBM_INSTANCE_ID not set.")
	// ErrCRKNotProvided is returned when Customer Root Key is not provided.
	ErrCRKNotProvided = errors.New("IBM Customer Root Key not provided. Cannot perform Key Protect operations.")
)

// KeyProtect is the part of the Key Protect client used to wrap data keys.
type KeyProtect interface {
	WrapCreateDEK(ctx context.Context, id string, additionalAuthData *[]string) ([]byte, []byte, error)
	Unwrap(ctx context.Context, id string, cipherText []byte, additionalAuthData *[]string) ([]byte, error)
}

type ibmKeySource struct {
	kp  KeyProtect
	crk string
}

// New returns a sealer doing envelope encryption with data keys created and
// wrapped by the Key Protect root key. The identity is passed as additional
// authentication data.
func New(
	secretConfig map[string]interface{},
) (keylist.Sealer, error) {
	crk := getIbmParam(secretConfig, IbmCustomerRootKey)
	if crk == "" {
		return nil, ErrCRKNotProvided
	}

	serviceApiKey := getIbmParam(secretConfig, IbmServiceApiKey)
	if serviceApiKey == "" {
		return nil, ErrIbmServiceApiKeyNotSet
	}

	instanceId := getIbmParam(secretConfig, IbmInstanceIdKey)
	if instanceId == "" {
		return nil, ErrIbmInstanceIdKeyNotSet
	}

	baseUrl := getIbmParam(secretConfig, IbmBaseUrlKey)
	if baseUrl == "" {
		baseUrl = ibm.DefaultBaseURL
	}

	tokenUrl := getIbmParam(secretConfig, IbmTokenUrlKey)
	if tokenUrl == "" {
		tokenUrl = ibm.DefaultTokenURL
	}

	cc := ibm.ClientConfig{
		BaseURL:    baseUrl,
		APIKey:     serviceApiKey,
		TokenURL:   tokenUrl,
		InstanceID: instanceId,
		Verbose:    ibm.VerboseAll,
		Timeout:    kpClientTimeout,
	}
	kp, err := ibm.NewWithLogger(cc, nil, logrus.StandardLogger())
	if err != nil {
		return nil, err
	}
	return NewWithClient(kp, crk), nil
}

// NewWithClient returns an ibm-kp sealer on an existing Key Protect client.
func NewWithClient(kp KeyProtect, crk string) keylist.Sealer {
	return envelope.NewSealer(Name, &ibmKeySource{
		kp:  kp,
		crk: crk,
	})
}

func (i *ibmKeySource) GenerateKey(ctx context.Context, id keylist.Identity) ([]byte, []byte, error) {
	encodedDek, wrapped, err := i.kp.WrapCreateDEK(ctx, i.crk, aad(id))
	if err != nil {
		return nil, nil, handleError(err)
	}
	dek, err := base64.StdEncoding.DecodeString(string(encodedDek))
	if err != nil {
		return nil, nil, err
	}
	return dek, wrapped, nil
}

func (i *ibmKeySource) UnwrapKey(ctx context.Context, id keylist.Identity, wrapped []byte) ([]byte, error) {
	encodedDek, err := i.kp.Unwrap(ctx, i.crk, wrapped, aad(id))
	if err != nil {
		return nil, handleError(err)
	}
	return base64.StdEncoding.DecodeString(string(encodedDek))
}

func aad(id keylist.Identity) *[]string {
	return &[]string{id.Service, id.Account}
}

func getIbmParam(secretConfig map[string]interface{}, name string) string {
	if value, ok := secretConfig[name].(string); ok {
		return value
	}
	return os.Getenv(name)
}

func handleError(err error) error {
	// Strip the keys and CRK from the error Output
	// An example error looks like this
	// Post https://keyprotect.us-south.bluemix.net/api/v2/keys/<crk>?action=wrap: net/http: request canceled while waiting for connection (Client.Timeout exceeded while awaiting headers)""
	if strings.Contains(err.Error(), "api/v2/keys") {
		errTokens := strings.Split(err.Error(), "?")
		if len(errTokens) > 1 {
			return fmt.Errorf("ibm error: %v", errTokens[1])
		}
		// unable to parse the errors
		return fmt.Errorf("ibm error: cannot perform requested action")
	}
	return err
}

func init() {
	if err := keylist.RegisterSealer(Name, New); err != nil {
		panic(err.Error())
	}
}
