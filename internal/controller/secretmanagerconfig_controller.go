package controller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	secretmanagerv1alpha1 "github.com/microscaler/secret-manager-controller/api/v1alpha1"
	"github.com/microscaler/secret-manager-controller/internal/artifact"
	"github.com/microscaler/secret-manager-controller/internal/backoff"
	"github.com/microscaler/secret-manager-controller/internal/discovery"
	"github.com/microscaler/secret-manager-controller/internal/errs"
	"github.com/microscaler/secret-manager-controller/internal/kustomize"
	"github.com/microscaler/secret-manager-controller/internal/provider"
	"github.com/microscaler/secret-manager-controller/internal/provider/aws"
	"github.com/microscaler/secret-manager-controller/internal/provider/azure"
	"github.com/microscaler/secret-manager-controller/internal/provider/gcp"
	"github.com/microscaler/secret-manager-controller/internal/sops"
	"github.com/microscaler/secret-manager-controller/internal/status"
	"github.com/microscaler/secret-manager-controller/internal/sync"
	"github.com/microscaler/secret-manager-controller/internal/validate"
)

const (
	// AnnotationReconcile, when written by an external collaborator,
	// triggers one reconciliation; the controller clears it afterward so
	// the next write is detectable again.
	AnnotationReconcile = "secret-management.microscaler.io/reconcile"
	// AnnotationParseErrors counts consecutive reconcileInterval parse
	// failures, surfaced alongside the parseErrorsTotal metric.
	AnnotationParseErrors = "secret-management.microscaler.io/duration-parsing-errors"

	defaultReconcileInterval = time.Minute
	validationRequeue        = 5 * time.Minute
	sopsRetryRequeue         = 30 * time.Second
)

// SecretManagerConfigReconciler reconciles a SecretManagerConfig object.
type SecretManagerConfigReconciler struct {
	client.Client
	Scheme   *runtime.Scheme
	Recorder record.EventRecorder

	// BasePath is the root of the on-disk artifact cache (SMC_BASE_PATH).
	BasePath string
	// KeyStore holds the GPG key the Key Watcher (C7) maintains.
	KeyStore *sops.KeyStore
	// Backoff tracks consecutive failures per SMC for C2-governed requeues.
	Backoff *backoff.Tracker
}

// +kubebuilder:rbac:groups=secret-management.microscaler.io,resources=secretmanagerconfigs,verbs=get;list;watch;update;patch
// +kubebuilder:rbac:groups=secret-management.microscaler.io,resources=secretmanagerconfigs/status,verbs=get;update;patch
// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch
// +kubebuilder:rbac:groups=source.toolkit.fluxcd.io,resources=gitrepositories,verbs=get;patch
// +kubebuilder:rbac:groups=argoproj.io,resources=applications,verbs=get

func (r *SecretManagerConfigReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	log := logf.FromContext(ctx)

	var smc secretmanagerv1alpha1.SecretManagerConfig
	if err := r.Get(ctx, req.NamespacedName, &smc); err != nil {
		return ctrl.Result{}, client.IgnoreNotFound(err)
	}

	// --- Step 1: suspend ---
	if smc.Spec.Suspend {
		if err := status.PatchPhase(ctx, r.Client, &smc, "Suspended", "spec.suspend is true"); err != nil {
			return ctrl.Result{}, err
		}
		return ctrl.Result{}, nil
	}

	// --- Step 2: validate ---
	if err := validate.Validate(&smc.Spec); err != nil {
		log.Error(err, "validation failed")
		if perr := status.PatchPhase(ctx, r.Client, &smc, "Failed", err.Error()); perr != nil {
			return ctrl.Result{}, perr
		}
		return ctrl.Result{RequeueAfter: validationRequeue}, nil
	}

	// --- Step 3: reconcile interval ---
	interval, err := parseInterval(smc.Spec.ReconcileInterval)
	if err != nil {
		observeParseError(req.Name, req.Namespace)
		if aerr := r.bumpParseErrorAnnotation(ctx, &smc); aerr != nil {
			log.Error(aerr, "failed to record parse-error annotation")
		}
		delay := r.Backoff.RecordFailure(req.NamespacedName)
		return ctrl.Result{RequeueAfter: delay}, nil
	}

	// --- Step 4: artifact pipeline ---
	outcome, err := r.fetchArtifact(ctx, &smc)
	if err != nil {
		if class := errs.ClassOf(err); class == errs.ClassArtifactCorrupt || class == errs.ClassExtractionFailed {
			if cerr := r.purgeArtifactCache(&smc); cerr != nil {
				log.Error(cerr, "failed to purge artifact cache after corrupt/unextractable artifact")
			}
		}
		if perr := status.PatchPhase(ctx, r.Client, &smc, phaseForArtifactError(err), err.Error()); perr != nil {
			return ctrl.Result{}, perr
		}
		delay := r.Backoff.RecordFailure(req.NamespacedName)
		return ctrl.Result{RequeueAfter: delay}, nil
	}
	if outcome.AwaitChange {
		if perr := status.PatchPhase(ctx, r.Client, &smc, "Pending", outcome.Reason); perr != nil {
			return ctrl.Result{}, perr
		}
		// The periodic timer must still fire even on a terminal
		// AwaitChange outcome.
		return ctrl.Result{RequeueAfter: interval}, nil
	}

	// --- Step 5: sync ---
	prov, providerLabel, err := newProvider(ctx, &smc.Spec)
	if err != nil {
		if perr := status.PatchPhase(ctx, r.Client, &smc, "Failed", err.Error()); perr != nil {
			return ctrl.Result{}, perr
		}
		delay := r.Backoff.RecordFailure(req.NamespacedName)
		return ctrl.Result{RequeueAfter: delay}, nil
	}

	// hasConfigStore reflects the provider's actual runtime capability
	// (e.g. an Azure provider with no appConfigEndpoint has Configs() ==
	// nil even though spec.provider.azure is set), so discovery routing
	// and the sync-side fallback below always agree.
	hasConfigStore := prov.Configs() != nil

	collected, collectFailures, sopsStatus, err := r.collectValues(ctx, &smc, outcome.Path, hasConfigStore)
	if err != nil {
		if perr := status.PatchPhase(ctx, r.Client, &smc, "Failed", err.Error()); perr != nil {
			return ctrl.Result{}, perr
		}
		delay := r.Backoff.RecordFailure(req.NamespacedName)
		return ctrl.Result{RequeueAfter: delay}, nil
	}

	syncOpts := sync.Options{
		Prefix:        smc.Spec.Secrets.Prefix,
		Suffix:        smc.Spec.Secrets.Suffix,
		DiffDiscovery: boolOrDefault(smc.Spec.DiffDiscovery, true),
		TriggerUpdate: boolOrDefault(smc.Spec.TriggerUpdate, true),
		ProviderLabel: providerLabel,
		MetricName:    smc.Name,
		MetricNS:      smc.Namespace,
	}

	secretsResult := sync.Sync(ctx, prov.Secrets(), collected.Secrets, previousState(smc.Status.Sync.Secrets), syncOpts)

	var propsResult sync.Result
	routeConfigsToSecrets := !(smc.Spec.Configs != nil && smc.Spec.Configs.Enabled && hasConfigStore)
	if !routeConfigsToSecrets {
		propsResult = sync.Sync(ctx, prov.Configs(), collected.Configs, previousState(smc.Status.Sync.Properties), syncOpts)
	}

	reconciled := secretsResult.Reconciled + propsResult.Reconciled
	allFailures := append(append([]sync.KeyFailure{}, secretsResult.Failures...), propsResult.Failures...)
	for _, cf := range collectFailures {
		allFailures = append(allFailures, sync.KeyFailure{Key: cf.service, Projected: cf.service, Err: cf.err, Transient: cf.transient})
	}

	phase, description := sync.SummarizePhase(sync.Result{Reconciled: reconciled, Failures: allFailures})

	if err := status.PatchSyncCounts(
		ctx, r.Client, &smc,
		time.Now(),
		interval,
		toSyncStateEntries(secretsResult.State),
		toSyncStateEntries(propsResult.State),
		reconciled,
		sopsStatus,
	); err != nil {
		return ctrl.Result{}, err
	}
	if err := status.PatchPhase(ctx, r.Client, &smc, phase, description); err != nil {
		return ctrl.Result{}, err
	}

	// --- Step 6: success bookkeeping ---
	if phase == "Ready" {
		r.Backoff.Reset(req.NamespacedName)
		if err := r.clearParseErrorAnnotation(ctx, req.NamespacedName); err != nil {
			log.Error(err, "failed to clear parse-error annotation")
		}
		if err := r.clearReconcileAnnotation(ctx, req.NamespacedName); err != nil {
			log.Error(err, "failed to clear manual-trigger annotation")
		}
		return ctrl.Result{RequeueAfter: interval}, nil
	}

	if phase == "Retrying" {
		return ctrl.Result{RequeueAfter: sopsRetryRequeue}, nil
	}

	// PartialFailure: continue on the normal timer rather than escalating
	// backoff, since remaining services did reconcile successfully.
	return ctrl.Result{RequeueAfter: interval}, nil
}

func (r *SecretManagerConfigReconciler) fetchArtifact(ctx context.Context, smc *secretmanagerv1alpha1.SecretManagerConfig) (artifact.Outcome, error) {
	basePath := r.BasePath
	if basePath == "" {
		basePath = artifact.DefaultBasePath
	}

	switch smc.Spec.SourceRef.Kind {
	case "GitRepository":
		return artifact.FetchFlux(ctx, r.Client, basePath, smc.Namespace, smc.Name, smc.Spec.SourceRef.Name, smc.Spec.SourceRef.Namespace, smc.Spec.SuspendGitPulls)
	case "Application":
		return artifact.FetchArgoCD(ctx, r.Client, basePath, smc.Namespace, smc.Name, smc.Spec.SourceRef.Name, smc.Spec.SourceRef.Namespace)
	default:
		return artifact.Outcome{}, errs.New(errs.ClassValidation, fmt.Sprintf("unsupported sourceRef.kind %q", smc.Spec.SourceRef.Kind), nil)
	}
}

// purgeArtifactCache prunes stale cached revisions for smc back down to the
// retention limit, so a corrupt or unextractable download doesn't linger
// indefinitely alongside good revisions. Mirrors the retention step
// FetchFlux/FetchArgoCD already run after a successful fetch.
func (r *SecretManagerConfigReconciler) purgeArtifactCache(smc *secretmanagerv1alpha1.SecretManagerConfig) error {
	basePath := r.BasePath
	if basePath == "" {
		basePath = artifact.DefaultBasePath
	}
	kindDir := "flux-artifact"
	if smc.Spec.SourceRef.Kind == "Application" {
		kindDir = "argocd-repo"
	}
	return artifact.Cleanup(basePath, kindDir, smc.Namespace, smc.Name)
}

func phaseForArtifactError(err error) string {
	switch errs.ClassOf(err) {
	case errs.ClassSourceNotReady:
		return "Pending"
	default:
		return "Failed"
	}
}

// collectFailure records one service/environment combination that could
// not be read or decrypted, without aborting the rest of the sync pass.
type collectFailure struct {
	service   string
	err       error
	transient bool
}

// collectValues runs the raw-discovery or kustomize extraction path
// (spec.md §4.8) and returns the flattened secrets/configs maps, any
// per-service failures, and the SOPS sub-status to report, if SOPS
// decryption was exercised at all during this pass. hasConfigStore is the
// provider's actual runtime config-store capability (prov.Configs() != nil),
// not a type-based guess, so routing here agrees with the sync-side
// routeConfigsToSecrets check in Reconcile.
func (r *SecretManagerConfigReconciler) collectValues(ctx context.Context, smc *secretmanagerv1alpha1.SecretManagerConfig, artifactPath string, hasConfigStore bool) (discovery.Collected, []collectFailure, *secretmanagerv1alpha1.SOPSStatus, error) {
	if smc.Spec.Secrets.KustomizePath != "" {
		entries, err := kustomize.Build(ctx, artifactPath, smc.Spec.Secrets.KustomizePath)
		if err != nil {
			return discovery.Collected{}, nil, nil, errs.New(errs.ClassExtractionFailed, fmt.Sprintf("kustomize build at %s", smc.Spec.Secrets.KustomizePath), err)
		}
		secrets := make(map[string]string, len(entries))
		for _, e := range entries {
			secrets[e.Name] = e.Value
		}
		return discovery.Collected{Secrets: secrets, Configs: map[string]string{}}, nil, nil, nil
	}

	root := artifactPath
	if smc.Spec.Secrets.BasePath != "" {
		root = strings.TrimSuffix(artifactPath, "/") + "/" + strings.TrimPrefix(smc.Spec.Secrets.BasePath, "/")
	}

	triplets, err := discovery.Discover(root)
	if err != nil {
		return discovery.Collected{}, nil, nil, errs.New(errs.ClassExtractionFailed, fmt.Sprintf("discovering secret files under %s", root), err)
	}

	opts := discovery.CollectOptions{
		KeyMaterial:    r.KeyStore.Read(),
		ConfigsEnabled: smc.Spec.Configs != nil && smc.Spec.Configs.Enabled,
		HasConfigStore: hasConfigStore,
	}

	aggregate := discovery.Collected{Secrets: map[string]string{}, Configs: map[string]string{}}
	var failures []collectFailure
	var sopsStatus *secretmanagerv1alpha1.SOPSStatus

	for _, t := range triplets {
		if t.Environment != smc.Spec.Secrets.Environment {
			continue
		}

		if observed := r.observeSOPS(t); observed != nil {
			sopsStatus = observed
		}

		collected, cerr := discovery.Collect(ctx, t, opts)
		if cerr != nil {
			var sopsErr *sops.Error
			transient := false
			reason := "ParseError"
			if errors.As(cerr, &sopsErr) {
				transient = sopsErr.Transient
				reason = string(sopsErr.Reason)
				sopsStatus = &secretmanagerv1alpha1.SOPSStatus{
					DecryptionStatus:      decryptionStatusFor(transient),
					LastDecryptionAttempt: now(),
					LastDecryptionError:   sopsErr.Remediation,
					SOPSKeyAvailable:      r.KeyStore.Read() != "",
					SOPSKeyNamespace:      r.KeyStore.Namespace(),
				}
			}
			failures = append(failures, collectFailure{
				service:   serviceLabel(t),
				err:       errs.New(classFor(reason, transient), cerr.Error(), cerr),
				transient: transient,
			})
			continue
		}

		mergeStrings(aggregate.Secrets, collected.Secrets)
		mergeStrings(aggregate.Configs, collected.Configs)
	}

	return aggregate, failures, sopsStatus, nil
}

func classFor(reason string, transient bool) errs.Class {
	if reason == "ParseError" {
		return errs.ClassParseError
	}
	if transient {
		return errs.ClassDecryptionTransient
	}
	return errs.ClassDecryptionPermanent
}

func decryptionStatusFor(transient bool) string {
	if transient {
		return "TransientFailure"
	}
	return "PermanentFailure"
}

// observeSOPS reports a Succeeded SOPS status when t names at least one
// encrypted file that decrypt will be attempted against; nil means no
// encrypted content was found in this triplet.
func (r *SecretManagerConfigReconciler) observeSOPS(t discovery.Triplet) *secretmanagerv1alpha1.SOPSStatus {
	for _, path := range []string{t.EnvPath, t.YAMLPath} {
		if path == "" {
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil || !sops.IsEncrypted(content) {
			continue
		}
		return &secretmanagerv1alpha1.SOPSStatus{
			DecryptionStatus:      "Succeeded",
			LastDecryptionAttempt: now(),
			SOPSKeyAvailable:      r.KeyStore.Read() != "",
			SOPSKeyNamespace:      r.KeyStore.Namespace(),
		}
	}
	return nil
}

func serviceLabel(t discovery.Triplet) string {
	if t.Service == "" {
		return t.Environment
	}
	return t.Service + "/" + t.Environment
}

func mergeStrings(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}

func newProvider(ctx context.Context, spec *secretmanagerv1alpha1.SecretManagerConfigSpec) (provider.Provider, string, error) {
	p := spec.Provider
	switch {
	case p.GCP != nil:
		prov, err := gcp.New(ctx, gcp.Spec{ProjectID: p.GCP.ProjectID})
		if err != nil {
			return nil, "", errs.New(errs.ClassProviderPermanent, "constructing GCP provider", err)
		}
		return prov, "gcp", nil
	case p.AWS != nil:
		prov, err := aws.New(ctx, aws.Spec{Region: p.AWS.Region})
		if err != nil {
			return nil, "", errs.New(errs.ClassProviderPermanent, "constructing AWS provider", err)
		}
		return prov, "aws", nil
	case p.Azure != nil:
		appConfigEndpoint := ""
		if spec.Configs != nil {
			appConfigEndpoint = spec.Configs.AppConfigEndpoint
		}
		prov, err := azure.New(azure.Spec{VaultName: p.Azure.VaultName, AppConfigEndpoint: appConfigEndpoint})
		if err != nil {
			return nil, "", errs.New(errs.ClassProviderPermanent, "constructing Azure provider", err)
		}
		return prov, "azure", nil
	default:
		return nil, "", errs.New(errs.ClassValidation, "no provider configured", nil)
	}
}

func previousState(entries map[string]secretmanagerv1alpha1.SyncStateEntry) map[string]sync.State {
	out := make(map[string]sync.State, len(entries))
	for k, v := range entries {
		out[k] = sync.State{UpdateCount: v.UpdateCount, LastHash: v.LastHash}
	}
	return out
}

func toSyncStateEntries(states map[string]sync.State) map[string]secretmanagerv1alpha1.SyncStateEntry {
	out := make(map[string]secretmanagerv1alpha1.SyncStateEntry, len(states))
	for k, v := range states {
		out[k] = secretmanagerv1alpha1.SyncStateEntry{UpdateCount: v.UpdateCount, LastHash: v.LastHash}
	}
	return out
}

func boolOrDefault(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// parseInterval parses spec.md §4.2's `^\d+[smhd]$` duration format; "d"
// is not one of time.ParseDuration's units, so it's converted by hand.
func parseInterval(s string) (time.Duration, error) {
	if s == "" {
		return defaultReconcileInterval, nil
	}
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("parsing day interval %q: %w", s, err)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func (r *SecretManagerConfigReconciler) bumpParseErrorAnnotation(ctx context.Context, smc *secretmanagerv1alpha1.SecretManagerConfig) error {
	base := smc.DeepCopy()
	count := 0
	if v, ok := smc.Annotations[AnnotationParseErrors]; ok {
		count, _ = strconv.Atoi(v)
	}
	if smc.Annotations == nil {
		smc.Annotations = map[string]string{}
	}
	smc.Annotations[AnnotationParseErrors] = strconv.Itoa(count + 1)
	return r.Patch(ctx, smc, client.MergeFrom(base))
}

func (r *SecretManagerConfigReconciler) clearParseErrorAnnotation(ctx context.Context, key types.NamespacedName) error {
	return r.clearAnnotation(ctx, key, AnnotationParseErrors)
}

func (r *SecretManagerConfigReconciler) clearReconcileAnnotation(ctx context.Context, key types.NamespacedName) error {
	return r.clearAnnotation(ctx, key, AnnotationReconcile)
}

// clearAnnotation re-fetches the object before patching, matching the
// teacher's clearRequestedRefIfCaughtUp guard against racing a concurrent
// reconcile's status patch.
func (r *SecretManagerConfigReconciler) clearAnnotation(ctx context.Context, key types.NamespacedName, annotation string) error {
	var fresh secretmanagerv1alpha1.SecretManagerConfig
	if err := r.Get(ctx, key, &fresh); err != nil {
		return client.IgnoreNotFound(err)
	}
	if _, ok := fresh.Annotations[annotation]; !ok {
		return nil
	}
	base := fresh.DeepCopy()
	delete(fresh.Annotations, annotation)
	return r.Patch(ctx, &fresh, client.MergeFrom(base))
}

func now() *metav1.Time {
	t := metav1.Now()
	return &t
}

// SetupWithManager sets up the controller with the Manager. Either a spec
// edit or an annotation change (manual-trigger request, bookkeeping clear)
// is enough to warrant a reconcile; status-only patches are not.
func (r *SecretManagerConfigReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&secretmanagerv1alpha1.SecretManagerConfig{}, builder.WithPredicates(annotationOrGenerationChanged{})).
		WithOptions(controller.Options{MaxConcurrentReconciles: 5}).
		Named("secretmanagerconfig").
		Complete(r)
}
