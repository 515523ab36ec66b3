// Package gitutil clones and fetches git working copies for the ArgoCD
// artifact fetcher. It is a trimmed adaptation of the teacher's go-git
// client: same clone/fetch/checkout shape and the same ref-resolution
// fallback chain, generalized from "agent sync target" to "ArgoCD cache
// directory".
package gitutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	gogitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Result holds the outcome of a clone or fetch-and-checkout operation.
type Result struct {
	Commit string
	Ref    string
}

// CloneOrFetch clones repoURL into path if empty, or fetches and checks out
// revision if path already holds a clone. auth may be nil for anonymous
// access (the ambient case: ArgoCD itself owns repo credentials; this
// fetcher assumes the same public/ambient-credential reachability ArgoCD
// has, since spec.md defines no separate auth surface for SMC's ArgoCD
// source).
func CloneOrFetch(ctx context.Context, repoURL, revision, path string, auth transport.AuthMethod) (Result, error) {
	if isCloned(path) {
		return fetchAndCheckout(ctx, repoURL, revision, path, auth)
	}
	return cloneAndCheckout(ctx, repoURL, revision, path, auth)
}

func isCloned(path string) bool {
	_, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil
}

func cloneAndCheckout(ctx context.Context, repoURL, revision, path string, auth transport.AuthMethod) (Result, error) {
	// First attempt: shallow clone scoped to the named branch/tag, mirroring
	// the teacher's cheap-path clone. If the revision isn't a branch/tag
	// ref (e.g. a bare commit SHA), fall back to a deeper clone.
	repo, err := gogit.PlainCloneContext(ctx, path, false, &gogit.CloneOptions{
		URL:           repoURL,
		Auth:          auth,
		Depth:         1,
		ReferenceName: plumbing.NewBranchReferenceName(revision),
		SingleBranch:  true,
	})
	if err != nil {
		_ = os.RemoveAll(path)
		repo, err = gogit.PlainCloneContext(ctx, path, false, &gogit.CloneOptions{
			URL:   repoURL,
			Auth:  auth,
			Depth: 50,
		})
		if err != nil {
			return Result{}, fmt.Errorf("git clone %s: %w", repoURL, err)
		}
		if ferr := fetchRevision(ctx, repo, revision, auth); ferr != nil {
			return Result{}, ferr
		}
	}

	return checkoutRevision(repo, revision)
}

func fetchAndCheckout(ctx context.Context, repoURL, revision, path string, auth transport.AuthMethod) (Result, error) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return Result{}, fmt.Errorf("opening repo at %s: %w", path, err)
	}

	if err := ensureRemoteURL(repo, repoURL); err != nil {
		return Result{}, err
	}

	if err := fetchRevision(ctx, repo, revision, auth); err != nil {
		return Result{}, err
	}

	return checkoutRevision(repo, revision)
}

func fetchRevision(ctx context.Context, repo *gogit.Repository, revision string, auth transport.AuthMethod) error {
	err := repo.FetchContext(ctx, &gogit.FetchOptions{
		Auth:  auth,
		Force: true,
		Tags:  gogit.AllTags,
		RefSpecs: []gogitconfig.RefSpec{
			gogitconfig.RefSpec("+refs/heads/*:refs/remotes/origin/*"),
			gogitconfig.RefSpec("+refs/tags/*:refs/tags/*"),
		},
	})
	if err != nil && err != gogit.NoErrAlreadyUpToDate {
		return fmt.Errorf("git fetch origin %s: %w", revision, err)
	}
	return nil
}

func ensureRemoteURL(repo *gogit.Repository, desiredURL string) error {
	remote, err := repo.Remote("origin")
	if err != nil {
		return fmt.Errorf("getting origin remote: %w", err)
	}
	urls := remote.Config().URLs
	if len(urls) > 0 && urls[0] == desiredURL {
		return nil
	}
	if err := repo.DeleteRemote("origin"); err != nil {
		return fmt.Errorf("deleting origin remote: %w", err)
	}
	if _, err := repo.CreateRemote(&gogitconfig.RemoteConfig{Name: "origin", URLs: []string{desiredURL}}); err != nil {
		return fmt.Errorf("creating origin remote: %w", err)
	}
	return nil
}

func checkoutRevision(repo *gogit.Repository, revision string) (Result, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return Result{}, fmt.Errorf("getting worktree: %w", err)
	}

	hash, err := ResolveRevision(repo, revision)
	if err != nil {
		return Result{}, err
	}

	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return Result{}, fmt.Errorf("checkout %s: %w", revision, err)
	}

	return Result{Commit: hash.String(), Ref: revision}, nil
}

// ResolveRevision tries, in order: full commit SHA, tag, refs/tags/,
// refs/remotes/origin/, then whatever go-git itself can resolve. This is
// the teacher's exact fallback chain from internal/git/client.go:resolveRef.
func ResolveRevision(repo *gogit.Repository, revision string) (plumbing.Hash, error) {
	if plumbing.IsHash(revision) {
		return plumbing.NewHash(revision), nil
	}

	if tagRef, err := repo.Tag(revision); err == nil {
		return tagRef.Hash(), nil
	}

	if resolved, err := repo.ResolveRevision(plumbing.Revision("refs/tags/" + revision)); err == nil {
		return *resolved, nil
	}

	if resolved, err := repo.ResolveRevision(plumbing.Revision("refs/remotes/origin/" + revision)); err == nil {
		return *resolved, nil
	}

	resolved, err := repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("cannot resolve revision %q: %w", revision, err)
	}
	return *resolved, nil
}

// RevParse returns the commit hash ref resolves to in the repository at
// path. The ArgoCD fetcher compares the hashes of HEAD and targetRevision to
// decide whether a cached working copy already matches.
func RevParse(path, ref string) (string, error) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return "", fmt.Errorf("opening repo at %s: %w", path, err)
	}
	hash, err := ResolveRevision(repo, ref)
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}
