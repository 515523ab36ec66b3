package sops

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// gpgHome is an ephemeral GPG home directory scoped to a single decryption
// call. Callers must always invoke Close, including on panic-recovery
// paths, so the private key material never outlives the call.
type gpgHome struct {
	dir string
}

// newGPGHome creates a fresh GPG home directory, imports keyMaterial (an
// ASCII-armored private key), and sets ownertrust to ultimate for every
// fingerprint found in the resulting keyring.
func newGPGHome(ctx context.Context, keyMaterial string) (*gpgHome, error) {
	dir := filepath.Join(os.TempDir(), "gpg-home-"+uuid.New().String())
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating gpg home: %w", err)
	}

	h := &gpgHome{dir: dir}

	if err := h.importKey(ctx, keyMaterial); err != nil {
		h.Close()
		return nil, err
	}
	if err := h.trustAllKeys(ctx); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

// Close removes the GPG home directory. Safe to call multiple times.
func (h *gpgHome) Close() {
	if h == nil {
		return
	}
	_ = os.RemoveAll(h.dir)
}

// env returns the GNUPGHOME/GNUPG_TRUST_MODEL environment additions that
// must accompany any sops child process using this home.
func (h *gpgHome) env() []string {
	return []string{
		"GNUPGHOME=" + h.dir,
		"GNUPG_TRUST_MODEL=always",
	}
}

func (h *gpgHome) importKey(ctx context.Context, keyMaterial string) error {
	cmd := exec.CommandContext(ctx, "gpg", "--homedir", h.dir, "--batch", "--pinentry-mode", "loopback", "--import")
	cmd.Stdin = strings.NewReader(keyMaterial)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("importing gpg key: %s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return nil
}

func (h *gpgHome) trustAllKeys(ctx context.Context) error {
	fingerprints, err := h.listFingerprints(ctx)
	if err != nil {
		return err
	}
	if len(fingerprints) == 0 {
		return fmt.Errorf("no secret key fingerprints found after import")
	}

	var trustInput strings.Builder
	for _, fpr := range fingerprints {
		trustInput.WriteString(fpr)
		trustInput.WriteString(":6:\n")
	}

	cmd := exec.CommandContext(ctx, "gpg", "--homedir", h.dir, "--import-ownertrust")
	cmd.Stdin = strings.NewReader(trustInput.String())
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("setting ownertrust: %s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return nil
}

func (h *gpgHome) listFingerprints(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "gpg", "--homedir", h.dir, "--list-secret-keys", "--with-colons")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("listing imported keys: %w", err)
	}

	var fingerprints []string
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Split(line, ":")
		if len(fields) > 9 && fields[0] == "fpr" {
			fingerprints = append(fingerprints, fields[9])
		}
	}
	return fingerprints, nil
}
