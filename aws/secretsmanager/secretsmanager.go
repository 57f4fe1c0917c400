package secretsmanager

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	sm "github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"github.com/libopenstorage/keylist"
	"github.com/libopenstorage/keylist/aws/utils"
)

const (
	// Name of the backend
	Name = "aws-secrets-manager"
	// KmsKeyIDKey optionally names the KMS key protecting secrets created by
	// the backend. AWS uses the account default key when it is not set.
	KmsKeyIDKey = "AWS_SECRETS_MANAGER_KMS_KEY_ID"
)

type awsSecretsMgr struct {
	scm      secretsmanageriface.SecretsManagerAPI
	kmsKeyID string
}

// New returns a backend keeping each blob as the binary value of the secret
// <service>/<account>.
func New(
	secretConfig map[string]interface{},
) (keylist.Backend, error) {
	sess, err := utils.NewSession(secretConfig)
	if err != nil {
		return nil, err
	}
	return NewWithClient(sm.New(sess), utils.GetParam(KmsKeyIDKey, secretConfig)), nil
}

// NewWithClient returns a backend on an existing Secrets Manager client.
func NewWithClient(scm secretsmanageriface.SecretsManagerAPI, kmsKeyID string) keylist.Backend {
	return &awsSecretsMgr{
		scm:      scm,
		kmsKeyID: kmsKeyID,
	}
}

func (a *awsSecretsMgr) String() string {
	return Name
}

func (a *awsSecretsMgr) Get(ctx context.Context, id keylist.Identity) ([]byte, error) {
	out, err := a.scm.GetSecretValueWithContext(ctx, &sm.GetSecretValueInput{
		SecretId: aws.String(secretID(id)),
	})
	if isCode(err, sm.ErrCodeResourceNotFoundException) {
		return nil, keylist.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	if out.SecretBinary != nil {
		return out.SecretBinary, nil
	}
	if out.SecretString != nil {
		return []byte(aws.StringValue(out.SecretString)), nil
	}
	return nil, keylist.ErrNotFound
}

// Put stores a new secret version. The first write creates the secret.
func (a *awsSecretsMgr) Put(ctx context.Context, id keylist.Identity, blob []byte) error {
	err := a.putValue(ctx, id, blob)
	if !isCode(err, sm.ErrCodeResourceNotFoundException) {
		return err
	}

	input := &sm.CreateSecretInput{
		Name:         aws.String(secretID(id)),
		SecretBinary: blob,
	}
	if a.kmsKeyID != "" {
		input.KmsKeyId = aws.String(a.kmsKeyID)
	}
	_, err = a.scm.CreateSecretWithContext(ctx, input)
	if isCode(err, sm.ErrCodeResourceExistsException) {
		// created by someone else in the meantime
		return a.putValue(ctx, id, blob)
	}
	return err
}

func (a *awsSecretsMgr) putValue(ctx context.Context, id keylist.Identity, blob []byte) error {
	_, err := a.scm.PutSecretValueWithContext(ctx, &sm.PutSecretValueInput{
		SecretId:     aws.String(secretID(id)),
		SecretBinary: blob,
	})
	return err
}

// Delete removes the secret right away, without the recovery window, so the
// name can be created again by the next write.
func (a *awsSecretsMgr) Delete(ctx context.Context, id keylist.Identity) error {
	_, err := a.scm.DeleteSecretWithContext(ctx, &sm.DeleteSecretInput{
		SecretId:                   aws.String(secretID(id)),
		ForceDeleteWithoutRecovery: aws.Bool(true),
	})
	if isCode(err, sm.ErrCodeResourceNotFoundException) {
		return nil
	}
	return err
}

func secretID(id keylist.Identity) string {
	return id.Service + "/" + id.Account
}

func isCode(err error, code string) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == code
}

func init() {
	if err := keylist.Register(Name, New); err != nil {
		panic(err.Error())
	}
}
