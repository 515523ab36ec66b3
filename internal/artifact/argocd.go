package artifact

import (
	"context"
	"fmt"
	"os"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/microscaler/secret-manager-controller/internal/errs"
	"github.com/microscaler/secret-manager-controller/internal/gitutil"
)

// ApplicationGVK identifies the ArgoCD CRD this fetcher reads.
var ApplicationGVK = schema.GroupVersionKind{
	Group:   "argoproj.io",
	Version: "v1alpha1",
	Kind:    "Application",
}

const defaultTargetRevision = "HEAD"

// FetchArgoCD resolves the Application named by sourceRef, reuses a cached
// working copy when it already matches targetRevision, and otherwise clones
// or fetches+checks out the revision into the repoHash-scoped cache.
func FetchArgoCD(ctx context.Context, c client.Client, basePath string, namespace, name string, sourceName, sourceNamespace string) (Outcome, error) {
	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(ApplicationGVK)

	if err := c.Get(ctx, types.NamespacedName{Namespace: sourceNamespace, Name: sourceName}, obj); err != nil {
		if apierrors.IsNotFound(err) {
			return Outcome{AwaitChange: true, Reason: "Application not found"}, nil
		}
		return Outcome{}, errs.New(errs.ClassSourceFailed, "getting Application", err)
	}

	repoURL, found, _ := unstructured.NestedString(obj.Object, "spec", "source", "repoURL")
	if !found || repoURL == "" {
		return Outcome{}, errs.New(errs.ClassSourceFailed, "Application spec.source.repoURL is missing", nil)
	}
	targetRevision, _, _ := unstructured.NestedString(obj.Object, "spec", "source", "targetRevision")
	if targetRevision == "" {
		targetRevision = defaultTargetRevision
	}

	repoHash := ArgoRepoHash(namespace, name, targetRevision)
	cachePath := ArgoPath(basePath, namespace, name, repoHash)

	if reuseCachedWorkingCopy(cachePath, targetRevision) {
		return Outcome{Path: cachePath}, nil
	}

	_ = os.RemoveAll(cachePath)
	if err := os.MkdirAll(cachePath, 0755); err != nil {
		return Outcome{}, errs.New(errs.ClassSourceFailed, "creating ArgoCD cache directory", err)
	}

	if _, err := gitutil.CloneOrFetch(ctx, repoURL, targetRevision, cachePath, nil); err != nil {
		_ = os.RemoveAll(cachePath)
		return Outcome{}, errs.New(errs.ClassSourceFailed, fmt.Sprintf("cloning %s at %s", repoURL, targetRevision), err)
	}

	if err := Cleanup(basePath, "argocd-repo", namespace, name); err != nil {
		return Outcome{}, errs.New(errs.ClassSourceFailed, "pruning stale working copies", err)
	}

	return Outcome{Path: cachePath}, nil
}

// reuseCachedWorkingCopy reports whether cachePath already holds a clone
// checked out to targetRevision, per spec.md §4.5 step 3: compare
// `rev-parse HEAD` against `rev-parse <targetRevision>`.
func reuseCachedWorkingCopy(cachePath, targetRevision string) bool {
	if !IsNonEmptyDir(cachePath) {
		return false
	}
	head, err := gitutil.RevParse(cachePath, "HEAD")
	if err != nil {
		return false
	}
	want, err := gitutil.RevParse(cachePath, targetRevision)
	if err != nil {
		return false
	}
	return head == want
}
