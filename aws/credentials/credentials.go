package credentials

import (
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/credentials/ec2rolecreds"
	"github.com/aws/aws-sdk-go/aws/ec2metadata"
	"github.com/aws/aws-sdk-go/aws/session"
)

// AWSCredentials hands out credentials, refreshing them when expired.
type AWSCredentials interface {
	Get() (*credentials.Credentials, error)
}

type awsCred struct {
	creds *credentials.Credentials
}

// metadataURL is probed to decide whether the EC2 role provider is worth
// adding to the chain.
var metadataURL = "http://169.254.169.254/latest/meta-data/"

// NewAWSCredentials returns static credentials when id and secret are set,
// and otherwise the chain env, shared file and, on EC2, the instance role.
func NewAWSCredentials(id, secret, token string) (AWSCredentials, error) {
	var creds *credentials.Credentials
	if id != "" && secret != "" {
		creds = credentials.NewStaticCredentials(id, secret, token)
	} else {
		providers := []credentials.Provider{
			&credentials.EnvProvider{},
			&credentials.SharedCredentialsProvider{},
		}
		if onEC2() {
			sess, err := session.NewSession()
			if err != nil {
				return nil, err
			}
			providers = append(providers, &ec2rolecreds.EC2RoleProvider{
				Client: ec2metadata.New(sess),
			})
		}
		creds = credentials.NewChainCredentials(providers)
	}
	if _, err := creds.Get(); err != nil {
		return nil, err
	}
	return &awsCred{creds}, nil
}

func (a *awsCred) Get() (*credentials.Credentials, error) {
	if a.creds.IsExpired() {
		// Refresh the credentials
		if _, err := a.creds.Get(); err != nil {
			return nil, err
		}
	}
	return a.creds, nil
}

func onEC2() bool {
	client := http.Client{Timeout: 2 * time.Second}
	res, err := client.Get(metadataURL)
	if err != nil {
		return false
	}
	res.Body.Close()
	return true
}
