// Package status patches SecretManagerConfig.Status via JSON merge patch,
// mirroring the teacher's setCondition/patchStatus pair in
// internal/controller/stoker_controller.go: replace-or-append a condition
// preserving LastTransitionTime across unchanged-status updates, and patch
// through client.MergeFrom(base) to avoid resourceVersion conflicts between
// overlapping reconciles.
package status

import (
	"context"
	"reflect"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	secretmanagerv1alpha1 "github.com/microscaler/secret-manager-controller/api/v1alpha1"
)

// ConditionReady is the sole condition type SecretManagerConfig maintains.
const ConditionReady = "Ready"

// PatchPhase updates status.phase and status.description, and maintains the
// Ready condition (True only when phase is Ready). It is a no-op when phase
// and description already match the current status, matching spec.md §4.11's
// "MUST be a no-op when current phase and description already match" rule.
func PatchPhase(ctx context.Context, c client.Client, smc *secretmanagerv1alpha1.SecretManagerConfig, phase, description string) error {
	if smc.Status.Phase == phase && smc.Status.Description == description {
		return nil
	}

	base := smc.DeepCopy()
	smc.Status.Phase = phase
	smc.Status.Description = description
	smc.Status.ObservedGeneration = smc.Generation

	conditionStatus := metav1.ConditionFalse
	reason := phase
	if phase == "Ready" {
		conditionStatus = metav1.ConditionTrue
	}
	setCondition(smc, ConditionReady, conditionStatus, reason, description)

	return c.Status().Patch(ctx, smc, client.MergeFrom(base))
}

// PatchSyncCounts records the outcome of a completed sync pass: per-key
// state for secrets and properties, the reconciled count, reconcile
// timestamps, and (when sopsStatus is non-nil) the decryption subsystem's
// status. It is a no-op when phase is already Ready, the reconciled count
// is unchanged, AND the per-key sync-state maps (updateCount/lastHash) are
// unchanged — a key's value can change (bumping updateCount/lastHash)
// without moving the total reconciled count, so the scalar count alone
// cannot decide this, per spec.md §4.11 and invariant 5.
func PatchSyncCounts(
	ctx context.Context,
	c client.Client,
	smc *secretmanagerv1alpha1.SecretManagerConfig,
	now time.Time,
	reconcileInterval time.Duration,
	secrets, properties map[string]secretmanagerv1alpha1.SyncStateEntry,
	reconciled int,
	sopsStatus *secretmanagerv1alpha1.SOPSStatus,
) error {
	if smc.Status.Phase == "Ready" &&
		int(smc.Status.SecretsSynced) == reconciled &&
		reflect.DeepEqual(smc.Status.Sync.Secrets, secrets) &&
		reflect.DeepEqual(smc.Status.Sync.Properties, properties) {
		return nil
	}

	base := smc.DeepCopy()

	smc.Status.Sync.Secrets = secrets
	smc.Status.Sync.Properties = properties
	smc.Status.SecretsSynced = int32(reconciled)

	last := metav1.NewTime(now)
	next := metav1.NewTime(now.Add(reconcileInterval))
	smc.Status.LastReconcileTime = &last
	smc.Status.NextReconcileTime = &next

	if sopsStatus != nil {
		smc.Status.SOPS = *sopsStatus
	}

	return c.Status().Patch(ctx, smc, client.MergeFrom(base))
}

// setCondition replaces the existing condition of condType, or appends a new
// one. LastTransitionTime only advances when Status actually flips, mirroring
// the teacher's setCondition.
func setCondition(smc *secretmanagerv1alpha1.SecretManagerConfig, condType string, status metav1.ConditionStatus, reason, message string) {
	condition := metav1.Condition{
		Type:               condType,
		Status:             status,
		ObservedGeneration: smc.Generation,
		LastTransitionTime: metav1.Now(),
		Reason:             reason,
		Message:            message,
	}

	for i, existing := range smc.Status.Conditions {
		if existing.Type != condType {
			continue
		}
		if existing.Status != status {
			smc.Status.Conditions[i] = condition
		} else {
			smc.Status.Conditions[i].Reason = reason
			smc.Status.Conditions[i].Message = message
			smc.Status.Conditions[i].ObservedGeneration = smc.Generation
		}
		return
	}
	smc.Status.Conditions = append(smc.Status.Conditions, condition)
}
