// Package sync reconciles an artifact-derived flat key/value mapping
// against a provider.SecretStore/provider.ConfigStore, one key at a time.
// Structural ground: the teacher's internal/syncengine (walk, diff, count
// added/modified/deleted, return a SyncResult) generalized from "walk a
// file tree" to "iterate a discovered key set".
package sync

import (
	"context"
	"fmt"

	"github.com/microscaler/secret-manager-controller/internal/errs"
)

// Store is the subset of provider.SecretStore/provider.ConfigStore that
// Sync actually drives. Both capability sets satisfy it structurally, so
// one engine reconciles either a SecretStore or a ConfigStore without an
// adapter shim.
type Store interface {
	CreateOrUpdate(ctx context.Context, name, value string) (changed bool, err error)
	Get(ctx context.Context, name string) (value string, ok bool, err error)
}

// State is the previous per-key sync bookkeeping the engine needs to
// preserve updateCount across reconciliations, mirroring
// api/v1alpha1.SyncStateEntry.
type State struct {
	UpdateCount int64
	LastHash    string
}

// Options configures one Sync call.
type Options struct {
	Prefix         string
	Suffix         string
	DiffDiscovery  bool
	TriggerUpdate  bool
	ProviderLabel  string // "gcp", "aws", or "azure" for metrics
	MetricName     string
	MetricNS       string
}

// Result is the aggregate outcome of one Sync call.
type Result struct {
	// State, keyed by projected name, for persisting into
	// api/v1alpha1.SyncStatus.
	State map[string]State
	// Reconciled is the count of keys successfully handled, including
	// no-ops.
	Reconciled int
	// Failures holds one entry per key that could not be reconciled,
	// partitioned by whether the underlying error is transient.
	Failures []KeyFailure
}

// KeyFailure records one key's reconciliation failure.
type KeyFailure struct {
	Key       string
	Projected string
	Err       error
	Transient bool
}

// Sync reconciles store against values (the artifact-derived flat
// mapping), returning aggregate counts and any per-key failures. One
// failing key never aborts the rest of the batch, matching spec.md §4.9's
// "one failing key does not abort the service" requirement.
func Sync(ctx context.Context, store Store, values map[string]string, previous map[string]State, opts Options) Result {
	result := Result{State: make(map[string]State, len(values))}

	for key, value := range values {
		projected := ProjectedName(opts.Prefix, key, opts.Suffix)

		state, op, err := syncOne(ctx, store, projected, value, previous[projected], opts)
		if err != nil {
			result.Failures = append(result.Failures, KeyFailure{
				Key:       key,
				Projected: projected,
				Err:       err,
				Transient: errs.IsTransient(err),
			})
			continue
		}

		result.State[projected] = state
		result.Reconciled++
		observeKeyOperation(opts.MetricName, opts.MetricNS, opts.ProviderLabel, op)
	}

	observeKeysReconciled(opts.MetricName, opts.MetricNS, result.Reconciled)
	return result
}

func syncOne(ctx context.Context, store Store, projected, value string, prevState State, opts Options) (State, string, error) {
	if !opts.DiffDiscovery {
		changed, err := store.CreateOrUpdate(ctx, projected, value)
		if err != nil {
			return State{}, "", errs.New(errs.ClassProviderTransient, fmt.Sprintf("writing %s", projected), err)
		}
		state := nextState(prevState, changed)
		if changed {
			state.LastHash = hashValue(value)
		}
		return state, opFor(changed, prevState), nil
	}

	current, ok, err := store.Get(ctx, projected)
	if err != nil {
		return State{}, "", errs.New(errs.ClassProviderTransient, fmt.Sprintf("reading %s", projected), err)
	}

	if !ok {
		if _, err := store.CreateOrUpdate(ctx, projected, value); err != nil {
			return State{}, "", errs.New(errs.ClassProviderTransient, fmt.Sprintf("creating %s", projected), err)
		}
		return State{UpdateCount: 1, LastHash: hashValue(value)}, OpCreate, nil
	}

	if current == value {
		return State{UpdateCount: prevState.UpdateCount, LastHash: hashValue(value)}, OpNoChange, nil
	}

	if !opts.TriggerUpdate {
		// Drift detected but writes are disabled: preserve prior state,
		// still counted as reconciled (observed, not written).
		return prevState, OpNoChange, nil
	}

	if _, err := store.CreateOrUpdate(ctx, projected, value); err != nil {
		return State{}, "", errs.New(errs.ClassProviderTransient, fmt.Sprintf("updating %s", projected), err)
	}
	return State{UpdateCount: prevState.UpdateCount + 1, LastHash: hashValue(value)}, OpUpdate, nil
}

func nextState(prev State, changed bool) State {
	if !changed {
		return State{UpdateCount: prev.UpdateCount, LastHash: prev.LastHash}
	}
	return State{UpdateCount: prev.UpdateCount + 1}
}

func opFor(changed bool, prev State) string {
	if !changed {
		return OpNoChange
	}
	if prev.UpdateCount == 0 {
		return OpCreate
	}
	return OpUpdate
}

// hashValue is a cheap content fingerprint (64-bit FNV-1a) for
// SyncStateEntry.LastHash. The hash is only recorded: writes are decided by
// comparing against the provider's current value, so it is not
// cryptographic.
func hashValue(value string) string {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(value); i++ {
		h ^= uint64(value[i])
		h *= 1099511628211
	}
	return fmt.Sprintf("%016x", h)
}

// SummarizePhase maps a Result to the phase/description the status
// reporter should patch: Retrying when every failure is transient;
// PartialFailure as soon as any failure is not transient.
func SummarizePhase(result Result) (phase, description string) {
	if len(result.Failures) == 0 {
		return "Ready", fmt.Sprintf("%d keys reconciled", result.Reconciled)
	}

	for _, f := range result.Failures {
		if !f.Transient {
			return "PartialFailure", fmt.Sprintf("%d of %d keys failed to reconcile", len(result.Failures), result.Reconciled+len(result.Failures))
		}
	}
	return "Retrying", fmt.Sprintf("%d of %d keys pending transient retry", len(result.Failures), result.Reconciled+len(result.Failures))
}
