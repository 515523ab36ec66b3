// Package aws adapts AWS Secrets Manager (for secrets) and SSM Parameter
// Store (for configs) to the provider.SecretStore/provider.ConfigStore
// contracts. Grounded directly on the teacher-adjacent example's
// config.LoadDefaultConfig + secretsmanager.NewFromConfig shape.
package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/microscaler/secret-manager-controller/internal/provider"
)

// Spec carries the fields api/v1alpha1.AWSProviderSpec resolves to.
type Spec struct {
	Region  string
	RoleARN string
}

// Provider is the AWS-backed provider.Provider.
type Provider struct {
	secrets *SecretStore
	configs *ConfigStore
}

// New loads the default AWS config for region and constructs the
// Secrets Manager and SSM Parameter Store clients.
func New(ctx context.Context, spec Spec) (*Provider, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(spec.Region)}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return &Provider{
		secrets: &SecretStore{client: secretsmanager.NewFromConfig(cfg)},
		configs: &ConfigStore{client: ssm.NewFromConfig(cfg)},
	}, nil
}

func (p *Provider) Secrets() provider.SecretStore { return p.secrets }
func (p *Provider) Configs() provider.ConfigStore { return p.configs }

// SecretStore implements provider.SecretStore against AWS Secrets Manager.
type SecretStore struct {
	client *secretsmanager.Client
}

func (s *SecretStore) Get(ctx context.Context, name string) (string, bool, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(name)})
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("getting secret %s: %w", name, err)
	}
	if out.SecretString == nil {
		return "", true, nil
	}
	return *out.SecretString, true, nil
}

func (s *SecretStore) CreateOrUpdate(ctx context.Context, name, value string) (bool, error) {
	current, ok, err := s.Get(ctx, name)
	if err != nil {
		return false, err
	}
	if ok && current == value {
		return false, nil
	}

	if !ok {
		_, err = s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
			Name:         aws.String(name),
			SecretString: aws.String(value),
		})
		if err != nil {
			return false, fmt.Errorf("creating secret %s: %w", name, err)
		}
		return true, nil
	}

	_, err = s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(value),
	})
	if err != nil {
		return false, fmt.Errorf("updating secret %s: %w", name, err)
	}
	return true, nil
}

func (s *SecretStore) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{SecretId: aws.String(name)})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("deleting secret %s: %w", name, err)
	}
	return nil
}

func (s *SecretStore) Enable(ctx context.Context, name string) (bool, error) {
	_, ok, err := s.Get(ctx, name)
	if err != nil || !ok {
		return ok, err
	}
	_, err = s.client.RestoreSecret(ctx, &secretsmanager.RestoreSecretInput{SecretId: aws.String(name)})
	if err != nil {
		return true, fmt.Errorf("enabling secret %s: %w", name, err)
	}
	return true, nil
}

// Disable schedules name for deletion with DeleteSecret's default recovery
// window, as Secrets Manager has no disabled state; Enable cancels that with
// RestoreSecret. A secret still disabled when the window ends is deleted.
func (s *SecretStore) Disable(ctx context.Context, name string) (bool, error) {
	_, ok, err := s.Get(ctx, name)
	if err != nil || !ok {
		return ok, err
	}
	_, err = s.client.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{SecretId: aws.String(name)})
	if err != nil {
		return true, fmt.Errorf("disabling secret %s: %w", name, err)
	}
	return true, nil
}

// ConfigStore implements provider.ConfigStore against SSM Parameter Store.
type ConfigStore struct {
	client *ssm.Client
}

func (c *ConfigStore) Get(ctx context.Context, key string) (string, bool, error) {
	out, err := c.client.GetParameter(ctx, &ssm.GetParameterInput{Name: aws.String(key)})
	if err != nil {
		if isParameterNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("getting parameter %s: %w", key, err)
	}
	return aws.ToString(out.Parameter.Value), true, nil
}

func (c *ConfigStore) CreateOrUpdate(ctx context.Context, key, value string) (bool, error) {
	current, ok, err := c.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if ok && current == value {
		return false, nil
	}

	_, err = c.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(key),
		Value:     aws.String(value),
		Type:      ssmtypes.ParameterTypeSecureString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("putting parameter %s: %w", key, err)
	}
	return true, nil
}

func (c *ConfigStore) Delete(ctx context.Context, key string) error {
	_, err := c.client.DeleteParameter(ctx, &ssm.DeleteParameterInput{Name: aws.String(key)})
	if err != nil && !isParameterNotFound(err) {
		return fmt.Errorf("deleting parameter %s: %w", key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *smtypes.ResourceNotFoundException
	return errors.As(err, &nf)
}

func isParameterNotFound(err error) bool {
	var nf *ssmtypes.ParameterNotFound
	return errors.As(err, &nf)
}
