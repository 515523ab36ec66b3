package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/microscaler/secret-manager-controller/internal/errs"
	"github.com/microscaler/secret-manager-controller/internal/provider/fake"
)

func baseOpts() Options {
	return Options{
		DiffDiscovery: true,
		TriggerUpdate: true,
		ProviderLabel: "fake",
		MetricName:    "test",
		MetricNS:      "default",
	}
}

func TestSync_CreatesNewKeys(t *testing.T) {
	store := fake.NewStore()
	result := Sync(context.Background(), store, map[string]string{"FOO": "bar"}, nil, baseOpts())

	if result.Reconciled != 1 || len(result.Failures) != 0 {
		t.Fatalf("Sync() = %+v, want 1 reconciled, 0 failures", result)
	}
	state, ok := result.State["FOO"]
	if !ok || state.UpdateCount != 1 {
		t.Errorf("State[FOO] = %+v, want UpdateCount=1", state)
	}
	if got, _, _ := store.Get(context.Background(), "FOO"); got != "bar" {
		t.Errorf("store value = %q, want bar", got)
	}
}

func TestSync_NoOpWhenValueUnchanged(t *testing.T) {
	store := fake.NewStore()
	ctx := context.Background()
	if _, err := store.CreateOrUpdate(ctx, "FOO", "bar"); err != nil {
		t.Fatal(err)
	}

	previous := map[string]State{"FOO": {UpdateCount: 3}}
	result := Sync(ctx, store, map[string]string{"FOO": "bar"}, previous, baseOpts())

	if result.Reconciled != 1 {
		t.Fatalf("expected 1 reconciled, got %d", result.Reconciled)
	}
	if result.State["FOO"].UpdateCount != 3 {
		t.Errorf("expected UpdateCount preserved at 3, got %d", result.State["FOO"].UpdateCount)
	}
}

func TestSync_UpdatesChangedValueWhenTriggerUpdateTrue(t *testing.T) {
	store := fake.NewStore()
	ctx := context.Background()
	if _, err := store.CreateOrUpdate(ctx, "FOO", "old"); err != nil {
		t.Fatal(err)
	}

	previous := map[string]State{"FOO": {UpdateCount: 1}}
	opts := baseOpts()
	result := Sync(ctx, store, map[string]string{"FOO": "new"}, previous, opts)

	if result.State["FOO"].UpdateCount != 2 {
		t.Errorf("expected UpdateCount incremented to 2, got %d", result.State["FOO"].UpdateCount)
	}
	if v, _, _ := store.Get(ctx, "FOO"); v != "new" {
		t.Errorf("store value = %q, want new", v)
	}
}

func TestSync_DriftNotWrittenWhenTriggerUpdateFalse(t *testing.T) {
	store := fake.NewStore()
	ctx := context.Background()
	if _, err := store.CreateOrUpdate(ctx, "FOO", "old"); err != nil {
		t.Fatal(err)
	}

	previous := map[string]State{"FOO": {UpdateCount: 1}}
	opts := baseOpts()
	opts.TriggerUpdate = false
	result := Sync(ctx, store, map[string]string{"FOO": "new"}, previous, opts)

	if result.Reconciled != 1 {
		t.Fatalf("expected drift to still count as reconciled, got %d", result.Reconciled)
	}
	if v, _, _ := store.Get(ctx, "FOO"); v != "old" {
		t.Errorf("expected store value unchanged at old, got %q", v)
	}
	if result.State["FOO"].UpdateCount != 1 {
		t.Errorf("expected UpdateCount preserved at 1, got %d", result.State["FOO"].UpdateCount)
	}
}

type erroringStore struct{}

func (erroringStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("boom")
}
func (erroringStore) CreateOrUpdate(context.Context, string, string) (bool, error) {
	return false, errors.New("boom")
}
func (erroringStore) Delete(context.Context, string) error                { return nil }
func (erroringStore) Enable(context.Context, string) (bool, error)        { return false, nil }
func (erroringStore) Disable(context.Context, string) (bool, error)       { return false, nil }

func TestSync_OneFailingKeyDoesNotAbortBatch(t *testing.T) {
	result := Sync(context.Background(), erroringStore{}, map[string]string{"A": "1", "B": "2"}, nil, baseOpts())

	if result.Reconciled != 0 {
		t.Errorf("expected 0 reconciled, got %d", result.Reconciled)
	}
	if len(result.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %d: %+v", len(result.Failures), result.Failures)
	}
}

func TestSummarizePhase(t *testing.T) {
	ready := Result{Reconciled: 3}
	if phase, _ := SummarizePhase(ready); phase != "Ready" {
		t.Errorf("expected Ready, got %s", phase)
	}

	transientOnly := Result{
		Reconciled: 2,
		Failures:   []KeyFailure{{Transient: true, Err: errs.New(errs.ClassProviderTransient, "x", nil)}},
	}
	if phase, _ := SummarizePhase(transientOnly); phase != "Retrying" {
		t.Errorf("expected Retrying, got %s", phase)
	}

	withPermanent := Result{
		Reconciled: 2,
		Failures: []KeyFailure{
			{Transient: true},
			{Transient: false},
		},
	}
	if phase, _ := SummarizePhase(withPermanent); phase != "PartialFailure" {
		t.Errorf("expected PartialFailure, got %s", phase)
	}
}
