//go:build integration

package sops

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"
)

// TestDecrypt_RealSops exercises Decrypt against a real sops/gpg toolchain.
// Run with:
//
//	SOPS_TEST_KEY_FILE=/tmp/test-key.asc SOPS_TEST_CIPHERTEXT=/tmp/secret.enc.yaml go test ./internal/sops -tags integration -run TestDecrypt_RealSops -v
func TestDecrypt_RealSops(t *testing.T) {
	if _, err := exec.LookPath("sops"); err != nil {
		t.Skip("sops binary not available")
	}
	if _, err := exec.LookPath("gpg"); err != nil {
		t.Skip("gpg binary not available")
	}

	keyFile := os.Getenv("SOPS_TEST_KEY_FILE")
	ciphertextFile := os.Getenv("SOPS_TEST_CIPHERTEXT")
	if keyFile == "" || ciphertextFile == "" {
		t.Skip("SOPS_TEST_KEY_FILE or SOPS_TEST_CIPHERTEXT not set")
	}

	keyMaterial, err := os.ReadFile(keyFile)
	if err != nil {
		t.Fatalf("reading key file: %v", err)
	}
	ciphertext, err := os.ReadFile(ciphertextFile)
	if err != nil {
		t.Fatalf("reading ciphertext file: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	plaintext, err := Decrypt(ctx, ciphertextFile, ciphertext, string(keyMaterial))
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if len(plaintext) == 0 {
		t.Errorf("expected non-empty plaintext")
	}
}
