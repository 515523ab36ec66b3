// Package provider defines the capability sets the sync engine drives and
// the real GCP/AWS/Azure adapters (plus a test double) that implement
// them. Semantics are identical across backends: the adapter exposes
// "latest version" exclusively, even where the backend naturally versions
// writes underneath (GCP Secret Manager, Azure Key Vault).
package provider

import "context"

// SecretStore is the capability set a sync target must provide for secret
// values. Grounded on the teacher's git.Client two-method interface with a
// single real implementation — generalized here to three real
// implementations plus a test double.
type SecretStore interface {
	// CreateOrUpdate writes value under name, creating it if absent.
	// changed reports whether the stored value differed (or didn't
	// exist) before the call.
	CreateOrUpdate(ctx context.Context, name, value string) (changed bool, err error)
	// Get returns the current value, or ok=false if name does not exist.
	Get(ctx context.Context, name string) (value string, ok bool, err error)
	Delete(ctx context.Context, name string) error
	// Enable/Disable toggle a secret's accessibility without deleting
	// it. existed reports whether name was present before the call.
	Enable(ctx context.Context, name string) (existed bool, err error)
	Disable(ctx context.Context, name string) (existed bool, err error)
}

// ConfigStore is the capability set for non-secret configuration values
// (spec.configs), kept distinct from SecretStore because not every
// provider exposes one (the adapter's Configs() returns nil and the
// discovery layer falls back to merging .properties into secrets).
type ConfigStore interface {
	CreateOrUpdate(ctx context.Context, key, value string) (changed bool, err error)
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Delete(ctx context.Context, key string) error
}

// Provider bundles the stores available for one configured destination.
// ConfigStore is nil when the backend (or this adapter) does not expose
// one.
type Provider interface {
	Secrets() SecretStore
	Configs() ConfigStore
}
