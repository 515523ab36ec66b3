package artifact

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFluxRevisionKey(t *testing.T) {
	tests := []struct {
		name   string
		branch string
		sha    string
		want   string
	}{
		{
			name:   "standard sha1 revision",
			branch: "main",
			sha:    "7680da431ea59ae7d3f4fdbb903a0f4509da9078",
			want:   "main-sha-7680da4",
		},
		{
			name:   "branch with slash gets sanitized",
			branch: "feature/foo",
			sha:    "abcdef0123456789",
			want:   "feature_foo-sha-abcdef0",
		},
		{
			name:   "short sha shorter than 7 chars is kept as-is",
			branch: "main",
			sha:    "abc",
			want:   "main-sha-abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FluxRevisionKey(tt.branch, tt.sha); got != tt.want {
				t.Errorf("FluxRevisionKey(%q, %q) = %q, want %q", tt.branch, tt.sha, got, tt.want)
			}
		})
	}
}

func TestArgoRepoHash_DeterministicPerInput(t *testing.T) {
	a := ArgoRepoHash("ns1", "app1", "HEAD")
	b := ArgoRepoHash("ns1", "app1", "HEAD")
	c := ArgoRepoHash("ns1", "app1", "main")

	if a != b {
		t.Fatalf("expected identical hash for identical inputs, got %q vs %q", a, b)
	}
	if a == c {
		t.Fatalf("expected different hash for different targetRevision")
	}
	if len(a) != 32 {
		t.Fatalf("expected 32-char md5 hex digest, got %d chars", len(a))
	}
}

func TestSanitizePathComponent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"main", "main"},
		{"feature/foo", "feature_foo"},
		{"a b/c", "a_b_c"},
		{"already-safe_123", "already-safe_123"},
	}
	for _, tt := range tests {
		if got := SanitizePathComponent(tt.in); got != tt.want {
			t.Errorf("SanitizePathComponent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsNonEmptyDir(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	if err := os.Mkdir(empty, 0755); err != nil {
		t.Fatal(err)
	}
	if IsNonEmptyDir(empty) {
		t.Fatal("expected empty directory to report false")
	}

	nonEmpty := filepath.Join(dir, "nonempty")
	if err := os.Mkdir(nonEmpty, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nonEmpty, "file.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if !IsNonEmptyDir(nonEmpty) {
		t.Fatal("expected non-empty directory to report true")
	}

	if IsNonEmptyDir(filepath.Join(dir, "missing")) {
		t.Fatal("expected missing directory to report false")
	}
}

func TestCleanup_KeepsOnlyThreeNewest(t *testing.T) {
	base := t.TempDir()
	parent := filepath.Join(base, "flux-artifact", "ns1", "app1")
	if err := os.MkdirAll(parent, 0755); err != nil {
		t.Fatal(err)
	}

	names := []string{"rev-a", "rev-b", "rev-c", "rev-d", "rev-e"}
	now := time.Now()
	for i, n := range names {
		dir := filepath.Join(parent, n)
		if err := os.Mkdir(dir, 0755); err != nil {
			t.Fatal(err)
		}
		// Stagger mtimes so ordering is deterministic: rev-e is newest.
		mtime := now.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(dir, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}

	if err := Cleanup(base, "flux-artifact", "ns1", "app1"); err != nil {
		t.Fatalf("Cleanup returned error: %v", err)
	}

	entries, err := os.ReadDir(parent)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != keepNewest {
		t.Fatalf("expected %d directories remaining, got %d", keepNewest, len(entries))
	}

	remaining := make(map[string]bool)
	for _, e := range entries {
		remaining[e.Name()] = true
	}
	for _, want := range []string{"rev-c", "rev-d", "rev-e"} {
		if !remaining[want] {
			t.Errorf("expected %s to survive cleanup, remaining=%v", want, remaining)
		}
	}
}

func TestCleanup_IdempotentOnAlreadyPrunedDirectory(t *testing.T) {
	base := t.TempDir()
	parent := filepath.Join(base, "flux-artifact", "ns1", "app1")
	if err := os.MkdirAll(filepath.Join(parent, "only-one"), 0755); err != nil {
		t.Fatal(err)
	}

	if err := Cleanup(base, "flux-artifact", "ns1", "app1"); err != nil {
		t.Fatal(err)
	}
	if err := Cleanup(base, "flux-artifact", "ns1", "app1"); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(parent)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected single directory to survive repeated cleanup, got %d", len(entries))
	}
}

func TestCleanup_MissingParentIsNoOp(t *testing.T) {
	base := t.TempDir()
	if err := Cleanup(base, "flux-artifact", "missing-ns", "missing-name"); err != nil {
		t.Fatalf("expected no error for missing parent, got %v", err)
	}
}
