package sops

import "testing"

func TestIsEncrypted(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    bool
	}{
		{"yaml sops key", "foo: bar\nsops:\n  kms: []\n", true},
		{"json sops key", `{"foo":"bar","sops":{"kms":[]}}`, true},
		{"sops_version substring", "# sops_version: 3.8.1\nfoo: bar\n", true},
		{"enc and aes pair", "foo: ENC[AES256_GCM,data:abc,iv:def]\n", true},
		{"plain yaml", "foo: bar\nbaz: qux\n", false},
		{"plain json", `{"foo":"bar"}`, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := IsEncrypted([]byte(tc.content))
			if got != tc.want {
				t.Errorf("IsEncrypted(%q) = %v, want %v", tc.content, got, tc.want)
			}
		})
	}
}

func TestIsEncrypted_ENCAndAESBothRequired(t *testing.T) {
	both := "password: ENC[AES256_GCM,data:xxxx,iv:yyyy,tag:zzzz,type:str]\n"
	if !IsEncrypted([]byte(both)) {
		t.Errorf("expected ENC[...] + AES256_GCM pair to be detected as encrypted")
	}
}

func TestDetectInputType(t *testing.T) {
	cases := []struct {
		name     string
		path     string
		content  string
		expected InputType
	}{
		{"env extension", "secrets.env", "FOO=bar", InputDotenv},
		{"yaml extension", "secrets.yaml", "foo: bar", InputYAML},
		{"yml extension", "secrets.yml", "foo: bar", InputYAML},
		{"json extension", "secrets.json", `{"foo":"bar"}`, InputJSON},
		{"known filename pattern dotenv", "application.secrets.env", "FOO=bar", InputDotenv},
		{"known filename pattern yaml", "application.secrets.yaml", "foo: bar", InputYAML},
		{"no extension, json content", "ciphertext", `{"foo":"bar"}`, InputJSON},
		{"no extension, dotenv content", "ciphertext", "FOO=bar\nBAZ=qux", InputDotenv},
		{"no extension, yaml fallback", "ciphertext", "foo:\n  bar: baz", InputYAML},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectInputType(tc.path, []byte(tc.content))
			if got != tc.expected {
				t.Errorf("DetectInputType(%q, %q) = %v, want %v", tc.path, tc.content, got, tc.expected)
			}
		})
	}
}
