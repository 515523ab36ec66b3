package artifact

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/microscaler/secret-manager-controller/internal/errs"
)

// GitRepositoryGVK identifies the Flux source-controller CRD this fetcher
// reads. Kept as a variable (not api-imported) because the core does not
// own, and should not vendor, the Flux API types — it reads only the
// handful of fields it needs via unstructured.Unstructured.
var GitRepositoryGVK = schema.GroupVersionKind{
	Group:   "source.toolkit.fluxcd.io",
	Version: "v1beta2",
	Kind:    "GitRepository",
}

const downloadTimeout = 60 * time.Second

var revisionRe = regexp.MustCompile(`^(.+)@sha(?:1|256):([0-9a-fA-F]+)$`)

// FetchFlux resolves the GitRepository named by sourceRef, downloads and
// verifies its artifact, extracts it into the revision-scoped cache, and
// returns the extracted tree's path.
func FetchFlux(ctx context.Context, c client.Client, basePath string, namespace, name string, sourceName, sourceNamespace string, suspendGitPulls bool) (Outcome, error) {
	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(GitRepositoryGVK)

	if err := c.Get(ctx, types.NamespacedName{Namespace: sourceNamespace, Name: sourceName}, obj); err != nil {
		if apierrors.IsNotFound(err) {
			return Outcome{AwaitChange: true, Reason: "GitRepository not found"}, nil
		}
		return Outcome{}, errs.New(errs.ClassSourceFailed, "getting GitRepository", err)
	}

	if err := reconcileSuspend(ctx, c, obj, suspendGitPulls); err != nil {
		return Outcome{}, err
	}

	if outcome, done, err := checkReady(obj); done {
		return outcome, err
	}

	artifactURL, revision, digest, err := readArtifact(obj)
	if err != nil {
		return Outcome{}, errs.New(errs.ClassSourceFailed, "reading GitRepository status.artifact", err)
	}

	revisionKey := deriveFluxRevisionKey(revision)
	cachePath := FluxPath(basePath, namespace, name, revisionKey)

	if IsNonEmptyDir(cachePath) {
		return Outcome{Path: cachePath}, nil
	}

	if err := os.MkdirAll(cachePath, 0755); err != nil {
		return Outcome{}, errs.New(errs.ClassArtifactCorrupt, "creating cache directory", err)
	}

	normalizedURL := normalizeArtifactURL(artifactURL)
	tarPath := filepath.Join(cachePath, "artifact.tar.gz")

	if err := downloadArtifact(ctx, normalizedURL, tarPath, digest); err != nil {
		_ = os.RemoveAll(cachePath)
		return Outcome{}, err
	}

	if err := extractTarGz(tarPath, cachePath); err != nil {
		_ = os.RemoveAll(cachePath)
		return Outcome{}, err
	}

	_ = os.Remove(tarPath)

	if !IsNonEmptyDir(cachePath) {
		_ = os.RemoveAll(cachePath)
		return Outcome{}, errs.New(errs.ClassExtractionFailed, "extracted artifact tree is empty", nil)
	}

	if err := Cleanup(basePath, "flux-artifact", namespace, name); err != nil {
		return Outcome{}, errs.New(errs.ClassExtractionFailed, "pruning stale revisions", err)
	}

	return Outcome{Path: cachePath}, nil
}

// deriveFluxRevisionKey parses a revision of form "<branch>@sha1:<hex>" or
// "<branch>@sha256:<hex>"; if neither pattern matches, the entire string is
// treated as the branch with no sha component.
func deriveFluxRevisionKey(revision string) string {
	if m := revisionRe.FindStringSubmatch(revision); m != nil {
		return FluxRevisionKey(m[1], m[2])
	}
	return SanitizePathComponent(revision)
}

// normalizeArtifactURL applies the Kubernetes-FQDN quirks the Flux
// source-controller's artifact URLs are sometimes subject to.
func normalizeArtifactURL(u string) string {
	u = strings.ReplaceAll(u, "./", "/")
	return strings.TrimSuffix(u, ".")
}

func reconcileSuspend(ctx context.Context, c client.Client, obj *unstructured.Unstructured, suspendGitPulls bool) error {
	current, _, _ := unstructured.NestedBool(obj.Object, "spec", "suspend")
	if current == suspendGitPulls {
		return nil
	}
	patch := client.MergeFrom(obj.DeepCopy())
	if err := unstructured.SetNestedField(obj.Object, suspendGitPulls, "spec", "suspend"); err != nil {
		return errs.New(errs.ClassSourceFailed, "setting GitRepository spec.suspend", err)
	}
	if err := c.Patch(ctx, obj, patch); err != nil {
		return errs.New(errs.ClassSourceFailed, "patching GitRepository spec.suspend", err)
	}
	return nil
}

// checkReady inspects status.conditions[Ready]. done=true means the caller
// should return immediately with (outcome, err); done=false means the
// GitRepository is ready and the caller should continue to the artifact.
func checkReady(obj *unstructured.Unstructured) (Outcome, bool, error) {
	conditions, found, _ := unstructured.NestedSlice(obj.Object, "status", "conditions")
	if !found {
		return Outcome{AwaitChange: true, Reason: "GitRepository has no status yet"}, true, nil
	}

	for _, c := range conditions {
		cond, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		if cond["type"] != "Ready" {
			continue
		}
		if cond["status"] == "True" {
			return Outcome{}, false, nil
		}
		if reconciling, _ := findCondition(conditions, "Reconciling"); reconciling == "True" {
			return Outcome{AwaitChange: true, Reason: "GitRepository is reconciling"}, true, nil
		}
		reason, _ := cond["reason"].(string)
		return Outcome{}, true, errs.New(errs.ClassSourceFailed, fmt.Sprintf("GitRepository not ready: %s", reason), nil)
	}

	return Outcome{AwaitChange: true, Reason: "GitRepository has no Ready condition yet"}, true, nil
}

func findCondition(conditions []interface{}, condType string) (string, bool) {
	for _, c := range conditions {
		cond, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		if cond["type"] == condType {
			status, _ := cond["status"].(string)
			return status, true
		}
	}
	return "", false
}

func readArtifact(obj *unstructured.Unstructured) (url, revision, digest string, err error) {
	url, found, _ := unstructured.NestedString(obj.Object, "status", "artifact", "url")
	if !found || url == "" {
		return "", "", "", fmt.Errorf("status.artifact.url is missing")
	}
	revision, _, _ = unstructured.NestedString(obj.Object, "status", "artifact", "revision")
	digest, _, _ = unstructured.NestedString(obj.Object, "status", "artifact", "digest")
	return url, revision, digest, nil
}

// downloadArtifact streams url to destPath, enforcing the 60s total
// timeout, content-length match, gzip magic bytes, and optional sha256
// digest check.
func downloadArtifact(ctx context.Context, url, destPath, wantDigest string) error {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errs.New(errs.ClassArtifactCorrupt, "building download request", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errs.New(errs.ClassArtifactCorrupt, "downloading artifact", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errs.New(errs.ClassArtifactCorrupt, fmt.Sprintf("artifact download returned HTTP %d", resp.StatusCode), nil)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return errs.New(errs.ClassArtifactCorrupt, "creating local artifact file", err)
	}
	defer f.Close()

	h := sha256.New()
	written, err := io.Copy(io.MultiWriter(f, h), resp.Body)
	if err != nil {
		return errs.New(errs.ClassArtifactCorrupt, "streaming artifact download", err)
	}

	if resp.ContentLength > 0 && written != resp.ContentLength {
		return errs.New(errs.ClassArtifactCorrupt, fmt.Sprintf("downloaded %d bytes, expected %d", written, resp.ContentLength), nil)
	}
	if written == 0 {
		return errs.New(errs.ClassArtifactCorrupt, "downloaded artifact is empty", nil)
	}

	if err := verifyMagicBytes(destPath); err != nil {
		return err
	}

	if wantDigest != "" {
		if err := verifyDigest(destPath, wantDigest, h); err != nil {
			return err
		}
	}

	return nil
}

func verifyMagicBytes(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errs.New(errs.ClassArtifactCorrupt, "reopening artifact for magic-byte check", err)
	}
	defer f.Close()

	magic := make([]byte, 2)
	if _, err := io.ReadFull(f, magic); err != nil {
		return errs.New(errs.ClassArtifactCorrupt, "reading magic bytes", err)
	}
	if magic[0] != 0x1f || magic[1] != 0x8b {
		return errs.New(errs.ClassArtifactCorrupt, "artifact is not gzip (bad magic bytes)", nil)
	}
	return nil
}

func verifyDigest(path, wantDigest string, h interface{ Sum([]byte) []byte }) error {
	want := strings.TrimPrefix(wantDigest, "sha256:")
	got := hex.EncodeToString(h.Sum(nil))
	if got != want {
		return errs.New(errs.ClassArtifactCorrupt, fmt.Sprintf("digest mismatch: got %s, want %s", got, want), nil)
	}
	return nil
}

// extractTarGz extracts the gzip-compressed tar archive at srcPath into
// destDir, refusing any entry whose normalized path would escape destDir.
func extractTarGz(srcPath, destDir string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return errs.New(errs.ClassExtractionFailed, "opening artifact archive", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return errs.New(errs.ClassExtractionFailed, "opening gzip stream", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errs.New(errs.ClassExtractionFailed, "reading tar entry", err)
		}

		target := filepath.Join(destDir, hdr.Name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) && target != filepath.Clean(destDir) {
			return errs.New(errs.ClassExtractionFailed, fmt.Sprintf("tar entry %q escapes extraction root", hdr.Name), nil)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return errs.New(errs.ClassExtractionFailed, "creating directory from tar entry", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return errs.New(errs.ClassExtractionFailed, "creating parent directory", err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode&0777))
			if err != nil {
				return errs.New(errs.ClassExtractionFailed, "creating file from tar entry", err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return errs.New(errs.ClassExtractionFailed, "writing file from tar entry", err)
			}
			out.Close()
		default:
			// Symlinks, devices, etc. are skipped; secret-bearing trees
			// have no legitimate use for them.
		}
	}
}
