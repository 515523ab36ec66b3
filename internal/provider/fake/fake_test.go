package fake

import (
	"context"
	"testing"
)

func TestStore_CreateOrUpdate_ReportsChangedCorrectly(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	changed, err := s.CreateOrUpdate(ctx, "k", "v1")
	if err != nil || !changed {
		t.Fatalf("first write: changed=%v err=%v, want changed=true", changed, err)
	}

	changed, err = s.CreateOrUpdate(ctx, "k", "v1")
	if err != nil || changed {
		t.Fatalf("no-op write: changed=%v err=%v, want changed=false", changed, err)
	}

	changed, err = s.CreateOrUpdate(ctx, "k", "v2")
	if err != nil || !changed {
		t.Fatalf("update write: changed=%v err=%v, want changed=true", changed, err)
	}
}

func TestStore_EnableDisable_ReportExistence(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if existed, err := s.Disable(ctx, "missing"); err != nil || existed {
		t.Fatalf("Disable(missing) = (%v, %v), want (false, nil)", existed, err)
	}

	if _, err := s.CreateOrUpdate(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}

	existed, err := s.Disable(ctx, "k")
	if err != nil || !existed {
		t.Fatalf("Disable(k) = (%v, %v), want (true, nil)", existed, err)
	}
	if !s.IsDisabled("k") {
		t.Error("expected k to be marked disabled")
	}

	existed, err = s.Enable(ctx, "k")
	if err != nil || !existed {
		t.Fatalf("Enable(k) = (%v, %v), want (true, nil)", existed, err)
	}
	if s.IsDisabled("k") {
		t.Error("expected k to no longer be disabled")
	}
}

func TestProvider_NoConfigStore(t *testing.T) {
	p := New()
	p.NoConfigStore = true
	if p.Configs() != nil {
		t.Error("expected Configs() to report nil when NoConfigStore is set")
	}
}
