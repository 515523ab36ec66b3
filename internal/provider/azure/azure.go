// Package azure adapts Azure Key Vault (secrets) and Azure App
// Configuration (configs) to the provider contracts. No pack example
// touches Azure; this follows the official azure-sdk-for-go client
// construction shape (azidentity credential, azcore-based typed client per
// service) rather than any repo-specific idiom.
package azure

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azappconfig"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"github.com/microscaler/secret-manager-controller/internal/provider"
)

// Spec carries the fields api/v1alpha1.AzureProviderSpec resolves to.
type Spec struct {
	VaultName        string
	AppConfigEndpoint string
}

// Provider is the Azure-backed provider.Provider.
type Provider struct {
	secrets *SecretStore
	configs *ConfigStore
}

// New builds a Key Vault secrets client and, when AppConfigEndpoint is
// set, an App Configuration client, both authenticated via
// DefaultAzureCredential.
func New(spec Spec) (*Provider, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("acquiring azure credential: %w", err)
	}

	vaultURL := fmt.Sprintf("https://%s.vault.azure.net/", spec.VaultName)
	secretsClient, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating key vault client: %w", err)
	}

	p := &Provider{secrets: &SecretStore{client: secretsClient}}

	if spec.AppConfigEndpoint != "" {
		configClient, err := azappconfig.NewClient(spec.AppConfigEndpoint, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("creating app configuration client: %w", err)
		}
		p.configs = &ConfigStore{client: configClient}
	}

	return p, nil
}

func (p *Provider) Secrets() provider.SecretStore { return p.secrets }

func (p *Provider) Configs() provider.ConfigStore {
	if p.configs == nil {
		return nil
	}
	return p.configs
}

// SecretStore implements provider.SecretStore against Azure Key Vault.
// Key Vault versions every write; "" (the implicit latest version) is
// always read/set, matching the cross-provider "latest version
// exclusively" contract.
type SecretStore struct {
	client *azsecrets.Client
}

func (s *SecretStore) Get(ctx context.Context, name string) (string, bool, error) {
	resp, err := s.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("getting secret %s: %w", name, err)
	}
	if resp.Value == nil {
		return "", true, nil
	}
	return *resp.Value, true, nil
}

func (s *SecretStore) CreateOrUpdate(ctx context.Context, name, value string) (bool, error) {
	current, ok, err := s.Get(ctx, name)
	if err != nil {
		return false, err
	}
	if ok && current == value {
		return false, nil
	}

	_, err = s.client.SetSecret(ctx, name, azsecrets.SetSecretParameters{Value: &value}, nil)
	if err != nil {
		return false, fmt.Errorf("setting secret %s: %w", name, err)
	}
	return true, nil
}

func (s *SecretStore) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteSecret(ctx, name, nil)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("deleting secret %s: %w", name, err)
	}
	return nil
}

func (s *SecretStore) Enable(ctx context.Context, name string) (bool, error) {
	return s.setEnabled(ctx, name, true)
}

func (s *SecretStore) Disable(ctx context.Context, name string) (bool, error) {
	return s.setEnabled(ctx, name, false)
}

func (s *SecretStore) setEnabled(ctx context.Context, name string, enabled bool) (bool, error) {
	_, ok, err := s.Get(ctx, name)
	if err != nil || !ok {
		return ok, err
	}

	_, err = s.client.UpdateSecretProperties(ctx, name, "", azsecrets.UpdateSecretPropertiesParameters{
		SecretAttributes: &azsecrets.SecretAttributes{Enabled: &enabled},
	}, nil)
	if err != nil {
		return true, fmt.Errorf("updating secret %s enabled=%v: %w", name, enabled, err)
	}
	return true, nil
}

// ConfigStore implements provider.ConfigStore against Azure App
// Configuration.
type ConfigStore struct {
	client *azappconfig.Client
}

func (c *ConfigStore) Get(ctx context.Context, key string) (string, bool, error) {
	resp, err := c.client.GetSetting(ctx, key, nil)
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("getting setting %s: %w", key, err)
	}
	if resp.Value == nil {
		return "", true, nil
	}
	return *resp.Value, true, nil
}

func (c *ConfigStore) CreateOrUpdate(ctx context.Context, key, value string) (bool, error) {
	current, ok, err := c.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if ok && current == value {
		return false, nil
	}

	_, err = c.client.SetSetting(ctx, key, &value, nil)
	if err != nil {
		return false, fmt.Errorf("setting %s: %w", key, err)
	}
	return true, nil
}

func (c *ConfigStore) Delete(ctx context.Context, key string) error {
	_, err := c.client.DeleteSetting(ctx, key, nil)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("deleting setting %s: %w", key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == 404
	}
	return false
}
