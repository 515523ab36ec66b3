// Package fake is an in-memory provider.Provider used by sync engine
// tests, the same role the teacher's agent package fills with a mockable
// git.Client seam behind its single real implementation.
package fake

import (
	"context"
	"sync"

	"github.com/microscaler/secret-manager-controller/internal/provider"
)

// Provider is an in-memory provider.Provider. Construct it with New; the
// zero value has no stores.
type Provider struct {
	secrets *Store
	configs *Store
	// NoConfigStore makes Configs() return nil, exercising the
	// no-config-store code path.
	NoConfigStore bool
}

// New returns a ready-to-use in-memory Provider.
func New() *Provider {
	return &Provider{secrets: NewStore(), configs: NewStore()}
}

func (p *Provider) Secrets() provider.SecretStore { return p.secrets }

func (p *Provider) Configs() provider.ConfigStore {
	if p.NoConfigStore {
		return nil
	}
	return p.configs
}

// SecretsStore exposes the underlying Store for assertions in tests.
func (p *Provider) SecretsStore() *Store { return p.secrets }

// ConfigsStore exposes the underlying Store for assertions in tests.
func (p *Provider) ConfigsStore() *Store { return p.configs }

// Store is a mutex-guarded map implementing both provider.SecretStore and
// provider.ConfigStore (their shapes differ only in Enable/Disable, which
// Store also provides so it can double as either).
type Store struct {
	mu       sync.Mutex
	values   map[string]string
	disabled map[string]bool
}

func NewStore() *Store {
	return &Store{values: map[string]string{}, disabled: map[string]bool{}}
}

func (s *Store) Get(_ context.Context, name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[name]
	return v, ok, nil
}

func (s *Store) CreateOrUpdate(_ context.Context, name, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.values[name]
	if ok && current == value {
		return false, nil
	}
	s.values[name] = value
	return true, nil
}

func (s *Store) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, name)
	delete(s.disabled, name)
	return nil
}

func (s *Store) Enable(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.values[name]
	delete(s.disabled, name)
	return existed, nil
}

func (s *Store) Disable(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.values[name]
	if existed {
		s.disabled[name] = true
	}
	return existed, nil
}

// IsDisabled reports whether name was last toggled via Disable, for test
// assertions.
func (s *Store) IsDisabled(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disabled[name]
}

// Snapshot returns a copy of the current values for test assertions.
func (s *Store) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
