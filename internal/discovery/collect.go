package discovery

import (
	"context"
	"fmt"
	"os"

	smcsops "github.com/microscaler/secret-manager-controller/internal/sops"
)

// CollectOptions controls how a Triplet's files are routed once parsed.
type CollectOptions struct {
	// KeyMaterial is the GPG private key to use when decrypting
	// SOPS-encrypted files. Empty means "no key available".
	KeyMaterial string
	// ConfigsEnabled mirrors spec.configs.enabled: when true and the
	// provider exposes a config store, .properties entries are routed to
	// Configs instead of merged into Secrets.
	ConfigsEnabled bool
	HasConfigStore bool
}

// Collected holds the flat key/value maps produced from one Triplet.
type Collected struct {
	Secrets map[string]string
	Configs map[string]string
}

// Collect reads, decrypts as needed, and flattens the files named by t,
// merging results per spec.md §4.8's per-extension rules.
func Collect(ctx context.Context, t Triplet, opts CollectOptions) (Collected, error) {
	result := Collected{Secrets: map[string]string{}, Configs: map[string]string{}}

	if t.EnvPath != "" {
		values, err := collectDotenv(ctx, t.EnvPath, opts.KeyMaterial)
		if err != nil {
			return result, fmt.Errorf("collecting %s: %w", t.EnvPath, err)
		}
		mergeInto(result.Secrets, values)
	}

	if t.YAMLPath != "" {
		values, err := collectYAML(ctx, t.YAMLPath, opts.KeyMaterial)
		if err != nil {
			return result, fmt.Errorf("collecting %s: %w", t.YAMLPath, err)
		}
		mergeInto(result.Secrets, values)
	}

	if t.PropsPath != "" {
		raw, err := os.ReadFile(t.PropsPath)
		if err != nil {
			return result, fmt.Errorf("reading %s: %w", t.PropsPath, err)
		}
		values, err := ParseProperties(raw)
		if err != nil {
			return result, fmt.Errorf("parsing %s: %w", t.PropsPath, err)
		}

		if opts.ConfigsEnabled && opts.HasConfigStore {
			mergeInto(result.Configs, values)
		} else {
			mergeInto(result.Secrets, values)
		}
	}

	return result, nil
}

func collectDotenv(ctx context.Context, path, keyMaterial string) (map[string]string, error) {
	content, err := decryptIfNeeded(ctx, path, keyMaterial)
	if err != nil {
		return nil, err
	}
	return ParseDotenv(content)
}

func collectYAML(ctx context.Context, path, keyMaterial string) (map[string]string, error) {
	content, err := decryptIfNeeded(ctx, path, keyMaterial)
	if err != nil {
		return nil, err
	}
	return FlattenYAML(content)
}

func decryptIfNeeded(ctx context.Context, path, keyMaterial string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !smcsops.IsEncrypted(raw) {
		return raw, nil
	}
	return smcsops.Decrypt(ctx, path, raw, keyMaterial)
}

func mergeInto(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}
