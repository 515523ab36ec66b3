package artifact

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// initLocalRepo creates a throwaway git repository with one commit on its
// default branch, entirely on disk — no network access required.
func initLocalRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "file.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("file.txt"); err != nil {
		t.Fatal(err)
	}
	_, err = wt.Commit("initial", &gogit.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Unix(0, 0)},
	})
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestReuseCachedWorkingCopy_MissingDirectory(t *testing.T) {
	if reuseCachedWorkingCopy(filepath.Join(t.TempDir(), "missing"), "HEAD") {
		t.Fatal("expected false for missing cache directory")
	}
}

func TestReuseCachedWorkingCopy_MatchingHead(t *testing.T) {
	dir := initLocalRepo(t)
	if !reuseCachedWorkingCopy(dir, "HEAD") {
		t.Fatal("expected cached copy to be reusable when HEAD matches targetRevision")
	}
}

func TestReuseCachedWorkingCopy_UnresolvableRevisionFalls(t *testing.T) {
	dir := initLocalRepo(t)
	if reuseCachedWorkingCopy(dir, "does-not-exist") {
		t.Fatal("expected false when targetRevision cannot be resolved")
	}
}

func TestArgoPath_Layout(t *testing.T) {
	got := ArgoPath("/tmp/smc", "ns1", "app1", "abc123")
	want := filepath.Join("/tmp/smc", "argocd-repo", "ns1", "app1", "abc123")
	if got != want {
		t.Errorf("ArgoPath() = %q, want %q", got, want)
	}
}
