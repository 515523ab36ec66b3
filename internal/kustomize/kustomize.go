// Package kustomize runs `kustomize build` over an acquired artifact and
// extracts Secret data entries from its rendered output.
package kustomize

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"
)

// Entry is one decoded Secret data entry. Name is the data key as rendered;
// prefix/suffix projection is applied later by the sync engine.
type Entry struct {
	Name  string
	Value string
}

type secretDoc struct {
	Kind string            `json:"kind"`
	Data map[string]string `json:"data"`
}

// Build runs `kustomize build <artifactRoot>/<kustomizePath>` with its
// working directory set to artifactRoot, exactly as the native git client
// this was adapted from shells out to an external binary with cmd.Dir set
// and combined output captured for error reporting.
func Build(ctx context.Context, artifactRoot, kustomizePath string) ([]Entry, error) {
	target := kustomizePath
	if target == "" {
		target = "."
	}

	cmd := exec.CommandContext(ctx, "kustomize", "build", target)
	cmd.Dir = artifactRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("kustomize build %s: %s: %w", filepath.Join(artifactRoot, target), strings.TrimSpace(stderr.String()), err)
	}

	return ExtractSecretEntries(stdout.Bytes())
}

// ExtractSecretEntries splits a multi-document YAML stream and, for every
// document with kind: Secret, base64-decodes each data entry.
func ExtractSecretEntries(rendered []byte) ([]Entry, error) {
	var entries []Entry

	for _, doc := range splitYAMLDocuments(rendered) {
		if len(bytes.TrimSpace(doc)) == 0 {
			continue
		}

		var parsed secretDoc
		if err := yaml.Unmarshal(doc, &parsed); err != nil {
			return nil, fmt.Errorf("parsing rendered document: %w", err)
		}
		if parsed.Kind != "Secret" {
			continue
		}

		for key, encoded := range parsed.Data {
			decoded, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return nil, fmt.Errorf("decoding secret data key %q: %w", key, err)
			}
			entries = append(entries, Entry{Name: key, Value: string(decoded)})
		}
	}

	return entries, nil
}

// splitYAMLDocuments splits a multi-document YAML stream on "---"
// separator lines, the idiomatic manual-splitter pairing for
// sigs.k8s.io/yaml (which has no multi-document Decoder of its own, unlike
// go.yaml.in/yaml/v3's Decode-until-io.EOF loop).
func splitYAMLDocuments(rendered []byte) [][]byte {
	lines := bytes.Split(rendered, []byte("\n"))

	var docs [][]byte
	var current bytes.Buffer
	for _, line := range lines {
		trimmed := bytes.TrimSpace(line)
		if bytes.Equal(trimmed, []byte("---")) {
			docs = append(docs, current.Bytes())
			current = bytes.Buffer{}
			continue
		}
		current.Write(line)
		current.WriteByte('\n')
	}
	docs = append(docs, current.Bytes())
	return docs
}
