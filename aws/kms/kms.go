package kms

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go/aws"
	awskms "github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"
	"github.com/libopenstorage/keylist"
	"github.com/libopenstorage/keylist/aws/utils"
	"github.com/libopenstorage/keylist/pkg/envelope"
)

const (
	// Name of the sealer
	Name = "aws-kms"
	// CMKKey names the customer master key wrapping the data keys.
	CMKKey = "AWS_CMK"

	contextService = "keylist:service"
	contextAccount = "keylist:account"
)

var (
	// ErrCMKNotProvided is returned when CMK is not provided.
	ErrCMKNotProvided = errors.New("AWS CMK not provided. Cannot perform KMS operations.")
)

type kmsKeySource struct {
	client kmsiface.KMSAPI
	cmk    string
}

// New returns a sealer doing envelope encryption with data keys from AWS
// KMS. The identity is the encryption context of every data key.
func New(
	secretConfig map[string]interface{},
) (keylist.Sealer, error) {
	cmk := utils.GetParam(CMKKey, secretConfig)
	if cmk == "" {
		return nil, ErrCMKNotProvided
	}
	sess, err := utils.NewSession(secretConfig)
	if err != nil {
		return nil, err
	}
	return NewWithClient(awskms.New(sess), cmk), nil
}

// NewWithClient returns an aws-kms sealer on an existing KMS client.
func NewWithClient(client kmsiface.KMSAPI, cmk string) keylist.Sealer {
	return envelope.NewSealer(Name, &kmsKeySource{
		client: client,
		cmk:    cmk,
	})
}

func (k *kmsKeySource) GenerateKey(ctx context.Context, id keylist.Identity) ([]byte, []byte, error) {
	out, err := k.client.GenerateDataKeyWithContext(ctx, &awskms.GenerateDataKeyInput{
		KeyId:             aws.String(k.cmk),
		KeySpec:           aws.String(awskms.DataKeySpecAes256),
		EncryptionContext: encryptionContext(id),
	})
	if err != nil {
		return nil, nil, err
	}
	return out.Plaintext, out.CiphertextBlob, nil
}

func (k *kmsKeySource) UnwrapKey(ctx context.Context, id keylist.Identity, wrapped []byte) ([]byte, error) {
	out, err := k.client.DecryptWithContext(ctx, &awskms.DecryptInput{
		KeyId:             aws.String(k.cmk),
		CiphertextBlob:    wrapped,
		EncryptionContext: encryptionContext(id),
	})
	if err != nil {
		return nil, err
	}
	return out.Plaintext, nil
}

func encryptionContext(id keylist.Identity) map[string]*string {
	return map[string]*string{
		contextService: aws.String(id.Service),
		contextAccount: aws.String(id.Account),
	}
}

func init() {
	if err := keylist.RegisterSealer(Name, New); err != nil {
		panic(err.Error())
	}
}
