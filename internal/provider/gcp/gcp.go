// Package gcp adapts GCP Secret Manager (secrets) to the provider
// contracts. It has no config store: Configs() returns nil.
package gcp

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/microscaler/secret-manager-controller/internal/provider"
)

// Spec carries the fields api/v1alpha1.GCPProviderSpec resolves to.
type Spec struct {
	ProjectID           string
	CredentialsJSONPath string
}

// Provider is the GCP-backed provider.Provider. It has no config store.
type Provider struct {
	secrets *SecretStore
}

// New builds a Secret Manager client, optionally authenticating with an
// explicit credentials file when CredentialsJSONPath is set (otherwise
// Application Default Credentials are used).
func New(ctx context.Context, spec Spec) (*Provider, error) {
	var opts []option.ClientOption
	if spec.CredentialsJSONPath != "" {
		opts = append(opts, option.WithCredentialsFile(spec.CredentialsJSONPath))
	}

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating secret manager client: %w", err)
	}

	return &Provider{secrets: &SecretStore{client: client, projectID: spec.ProjectID}}, nil
}

func (p *Provider) Secrets() provider.SecretStore { return p.secrets }
func (p *Provider) Configs() provider.ConfigStore { return nil }

// SecretStore implements provider.SecretStore against GCP Secret Manager.
// GCP versions every write; "latest" is always read, matching the
// cross-provider "latest version exclusively" contract.
type SecretStore struct {
	client    *secretmanager.Client
	projectID string
}

func (s *SecretStore) secretPath(name string) string {
	return fmt.Sprintf("projects/%s/secrets/%s", s.projectID, name)
}

func (s *SecretStore) versionPath(name, version string) string {
	return fmt.Sprintf("%s/versions/%s", s.secretPath(name), version)
}

func (s *SecretStore) Get(ctx context.Context, name string) (string, bool, error) {
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: s.versionPath(name, "latest"),
	})
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("accessing secret %s: %w", name, err)
	}
	return string(resp.Payload.Data), true, nil
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
		_, err = s.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
			Parent:   fmt.Sprintf("projects/%s", s.projectID),
			SecretId: name,
			Secret: &secretmanagerpb.Secret{
				Replication: &secretmanagerpb.Replication{
					Replication: &secretmanagerpb.Replication_Automatic_{
						Automatic: &secretmanagerpb.Replication_Automatic{},
					},
				},
			},
		})
		if err != nil {
			return false, fmt.Errorf("creating secret %s: %w", name, err)
		}
	}

	_, err = s.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent:  s.secretPath(name),
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	})
	if err != nil {
		return false, fmt.Errorf("adding secret version for %s: %w", name, err)
	}
	return true, nil
}

func (s *SecretStore) Delete(ctx context.Context, name string) error {
	err := s.client.DeleteSecret(ctx, &secretmanagerpb.DeleteSecretRequest{Name: s.secretPath(name)})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("deleting secret %s: %w", name, err)
	}
	return nil
}

func (s *SecretStore) Enable(ctx context.Context, name string) (bool, error) {
	return s.setLatestVersionEnabled(ctx, name, true)
}

func (s *SecretStore) Disable(ctx context.Context, name string) (bool, error) {
	return s.setLatestVersionEnabled(ctx, name, false)
}

func (s *SecretStore) setLatestVersionEnabled(ctx context.Context, name string, enabled bool) (bool, error) {
	_, ok, err := s.Get(ctx, name)
	if err != nil || !ok {
		return ok, err
	}

	var toggleErr error
	if enabled {
		_, toggleErr = s.client.EnableSecretVersion(ctx, &secretmanagerpb.EnableSecretVersionRequest{
			Name: s.versionPath(name, "latest"),
		})
	} else {
		_, toggleErr = s.client.DisableSecretVersion(ctx, &secretmanagerpb.DisableSecretVersionRequest{
			Name: s.versionPath(name, "latest"),
		})
	}
	if toggleErr != nil {
		return true, fmt.Errorf("toggling secret %s enabled=%v: %w", name, enabled, toggleErr)
	}
	return true, nil
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
