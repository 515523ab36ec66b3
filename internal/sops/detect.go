package sops

import (
	"bytes"
	"encoding/json"

	"sigs.k8s.io/yaml"
)

// IsEncrypted reports whether content looks like a SOPS-encrypted file, by
// any of: a top-level "sops" mapping (YAML or JSON), the literal substrings
// "sops_version"/"sops_encrypted", or the pair "ENC[" + "AES256_GCM".
func IsEncrypted(content []byte) bool {
	if hasTopLevelSopsKeyYAML(content) {
		return true
	}
	if hasTopLevelSopsKeyJSON(content) {
		return true
	}
	if bytes.Contains(content, []byte("sops_version")) || bytes.Contains(content, []byte("sops_encrypted")) {
		return true
	}
	if bytes.Contains(content, []byte("ENC[")) && bytes.Contains(content, []byte("AES256_GCM")) {
		return true
	}
	return false
}

func hasTopLevelSopsKeyYAML(content []byte) bool {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return false
	}
	_, ok := doc["sops"]
	return ok
}

func hasTopLevelSopsKeyJSON(content []byte) bool {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return false
	}
	_, ok := doc["sops"]
	return ok
}

// InputType is the shape SOPS should treat the ciphertext/plaintext as.
type InputType string

const (
	InputDotenv InputType = "dotenv"
	InputYAML   InputType = "yaml"
	InputJSON   InputType = "json"
)

// DetectInputType resolves the SOPS --input-type for a file, preferring
// extension, then known filename patterns, then a content heuristic. The
// same type is used for --output-type: the shape must be preserved so the
// downstream parser receives what it expects.
func DetectInputType(filePath string, content []byte) InputType {
	if t, ok := typeFromExtension(filePath); ok {
		return t
	}
	if t, ok := typeFromFilenamePattern(filePath); ok {
		return t
	}
	return typeFromContentHeuristic(content)
}

func typeFromExtension(filePath string) (InputType, bool) {
	switch {
	case hasSuffix(filePath, ".env"):
		return InputDotenv, true
	case hasSuffix(filePath, ".yaml"), hasSuffix(filePath, ".yml"):
		return InputYAML, true
	case hasSuffix(filePath, ".json"):
		return InputJSON, true
	}
	return "", false
}

func typeFromFilenamePattern(filePath string) (InputType, bool) {
	base := baseName(filePath)
	switch base {
	case "application.secrets.env":
		return InputDotenv, true
	case "application.secrets.yaml", "application.secrets.yml":
		return InputYAML, true
	}
	return "", false
}

func typeFromContentHeuristic(content []byte) InputType {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return InputJSON
	}
	if bytes.Contains(trimmed, []byte("=")) && !bytes.HasPrefix(trimmed, []byte("sops:")) {
		return InputDotenv
	}
	return InputYAML
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
