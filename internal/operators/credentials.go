package operators

import (
	"context"
	"fmt"

	"github.com/BartekS5/sparkify/pkg/storage"
)

// DefaultCredentialsID names the AWS identity used for staging.
const DefaultCredentialsID = "aws_credentials"

// Credentials is an AWS access key pair with an optional session token.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// CredentialProvider resolves a named identity to credentials.
type CredentialProvider interface {
	Credentials(ctx context.Context, id string) (Credentials, error)
}

// StaticCredentials serves fixed credentials by id.
type StaticCredentials map[string]Credentials

func (s StaticCredentials) Credentials(_ context.Context, id string) (Credentials, error) {
	c, ok := s[id]
	if !ok {
		return Credentials{}, fmt.Errorf("no credentials for %q", id)
	}
	return c, nil
}

// AWSCredentials resolves identities through the AWS SDK. Profiles maps an
// id to a shared-config profile; ids without a mapping use Options as is,
// which falls back to the SDK default chain.
type AWSCredentials struct {
	Options  storage.Options
	Profiles map[string]string
}

func (a AWSCredentials) Credentials(ctx context.Context, id string) (Credentials, error) {
	opts := a.Options
	if p, ok := a.Profiles[id]; ok {
		opts.Profile = p
		opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken = "", "", ""
	}

	cfg, err := storage.AWSConfig(ctx, opts)
	if err != nil {
		return Credentials{}, err
	}
	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to retrieve credentials for %q: %w", id, err)
	}
	return Credentials{
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.SessionToken,
	}, nil
}
