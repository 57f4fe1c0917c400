package utils

import (
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	sc "github.com/libopenstorage/keylist/aws/credentials"
)

const (
	// AwsAccessKey corresponds to AWS credential AWS_ACCESS_KEY_ID
	AwsAccessKey = "AWS_ACCESS_KEY_ID"
	// AwsSecretAccessKey corresponds to AWS credential AWS_SECRET_ACCESS_KEY
	AwsSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	// AwsTokenKey corresponds to AWS credential AWS_SECRET_TOKEN_KEY
	AwsTokenKey = "AWS_SECRET_TOKEN_KEY"
	// AwsRegionKey defines the AWS region
	AwsRegionKey = "AWS_REGION"
	// AwsEndpointKey overrides the service endpoint, e.g. for a local stack.
	AwsEndpointKey = "AWS_ENDPOINT"
	// AwsConfigKey passes a ready *aws.Config; the other keys are then ignored.
	AwsConfigKey = "AWS_CONFIG"
)

var (
	// ErrAWSRegionNotProvided is returned when region is not provided.
	ErrAWSRegionNotProvided = errors.New("AWS Region not provided. Cannot perform secret operations.")
	// ErrAWSCredsNotProvided is returned when aws credentials are not provided
	ErrAWSCredsNotProvided = errors.New("aws credentials not provided")
	// ErrAWSConfigWrongType is returned when AwsConfigKey does not hold an *aws.Config.
	ErrAWSConfigWrongType = errors.New(AwsConfigKey + " is not an *aws.Config")
)

// AuthKeys returns the static credentials found in params. They are all
// optional; missing ones are returned empty.
func AuthKeys(params map[string]interface{}) (string, string, string, error) {
	accessKey, err := getAuthKey(AwsAccessKey, params)
	if err != nil {
		return "", "", "", err
	}

	secretKey, err := getAuthKey(AwsSecretAccessKey, params)
	if err != nil {
		return "", "", "", err
	}

	secretToken, err := getAuthKey(AwsTokenKey, params)
	if err != nil {
		return "", "", "", err
	}

	return accessKey, secretKey, secretToken, nil
}

// GetParam returns the string value of key from params, falling back to the
// environment variable of the same name.
func GetParam(key string, params map[string]interface{}) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return os.Getenv(key)
}

// NewSession builds an AWS session from params: AwsConfigKey when set,
// otherwise region, credentials and endpoint from the other keys.
func NewSession(params map[string]interface{}) (*session.Session, error) {
	if params == nil {
		return nil, ErrAWSCredsNotProvided
	}
	if v, ok := params[AwsConfigKey]; ok {
		config, ok := v.(*aws.Config)
		if !ok || config == nil {
			return nil, ErrAWSConfigWrongType
		}
		return session.NewSession(config)
	}

	region := GetParam(AwsRegionKey, params)
	if region == "" {
		return nil, ErrAWSRegionNotProvided
	}

	id, secret, token, err := AuthKeys(params)
	if err != nil {
		return nil, err
	}
	creds, err := sc.NewAWSCredentials(id, secret, token)
	if err != nil {
		return nil, err
	}
	awsCreds, err := creds.Get()
	if err != nil {
		return nil, err
	}

	config := aws.NewConfig().
		WithRegion(region).
		WithCredentials(awsCreds)
	if endpoint := GetParam(AwsEndpointKey, params); endpoint != "" {
		config = config.WithEndpoint(endpoint)
	}
	return session.NewSession(config)
}

func getAuthKey(key string, params map[string]interface{}) (string, error) {
	val, ok := params[key]
	valueStr := ""
	if ok {
		valueStr, ok = val.(string)
		if !ok {
			return "", fmt.Errorf("Authentication error. Invalid value for %v", key)
		}
	}
	return valueStr, nil
}
