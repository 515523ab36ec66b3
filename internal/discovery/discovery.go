// Package discovery walks an acquired artifact tree in raw mode, locating
// the per-environment (and optionally per-service) triplets of secret and
// config files that feed the sync engine.
package discovery

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

const (
	envFileName        = "application.secrets.env"
	yamlFileName       = "application.secrets.yaml"
	propertiesFileName = "application.properties"
)

// Triplet groups the (up to three) files discovered for one environment
// under one optional service layer. Any of the three may be absent; a
// Triplet with all three empty is never returned by Discover.
type Triplet struct {
	// Service is "" when the repository has no <service>/ layer.
	Service     string
	Environment string
	EnvPath     string
	YAMLPath    string
	PropsPath   string
}

// Discover walks root (the artifact directory joined with any configured
// basePath) looking for profiles/<environment>/ directories, optionally
// nested one level under <service>/. Ground: the same filepath.WalkDir-
// and-relative-path bookkeeping the sync engine this was adapted from
// uses to walk a source tree.
func Discover(root string) ([]Triplet, error) {
	byKey := map[string]*Triplet{}
	var order []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		name := d.Name()
		if name != envFileName && name != yamlFileName && name != propertiesFileName {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		service, environment, ok := parseProfilePath(rel, name)
		if !ok {
			return nil
		}

		key := service + "\x00" + environment
		t, exists := byKey[key]
		if !exists {
			t = &Triplet{Service: service, Environment: environment}
			byKey[key] = t
			order = append(order, key)
		}

		switch name {
		case envFileName:
			t.EnvPath = path
		case yamlFileName:
			t.YAMLPath = path
		case propertiesFileName:
			t.PropsPath = path
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering profile files under %s: %w", root, err)
	}

	triplets := make([]Triplet, 0, len(order))
	for _, key := range order {
		triplets = append(triplets, *byKey[key])
	}
	return triplets, nil
}

// parseProfilePath matches either "profiles/<environment>/<name>" or
// "<service>/profiles/<environment>/<name>", returning the service
// (empty for the first form), the environment, and whether rel matched
// one of those two shapes.
func parseProfilePath(rel, name string) (service, environment string, ok bool) {
	parts := strings.Split(rel, "/")
	if len(parts) < 1 || parts[len(parts)-1] != name {
		return "", "", false
	}
	parts = parts[:len(parts)-1]

	switch len(parts) {
	case 2:
		if parts[0] != "profiles" {
			return "", "", false
		}
		return "", parts[1], true
	case 3:
		if parts[1] != "profiles" {
			return "", "", false
		}
		return parts[0], parts[2], true
	default:
		return "", "", false
	}
}
