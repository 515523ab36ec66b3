package gcp

import "testing"

func TestSecretStore_PathHelpers(t *testing.T) {
	s := &SecretStore{projectID: "my-project"}

	if got, want := s.secretPath("db-password"), "projects/my-project/secrets/db-password"; got != want {
		t.Errorf("secretPath() = %q, want %q", got, want)
	}
	if got, want := s.versionPath("db-password", "latest"), "projects/my-project/secrets/db-password/versions/latest"; got != want {
		t.Errorf("versionPath() = %q, want %q", got, want)
	}
}
