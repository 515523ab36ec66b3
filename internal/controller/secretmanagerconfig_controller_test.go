package controller

import (
	"context"
	"testing"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	secretmanagerv1alpha1 "github.com/microscaler/secret-manager-controller/api/v1alpha1"
	"github.com/microscaler/secret-manager-controller/internal/backoff"
	"github.com/microscaler/secret-manager-controller/internal/sops"
)

func newTestReconciler(objs ...client.Object) *SecretManagerConfigReconciler {
	scheme := runtime.NewScheme()
	_ = secretmanagerv1alpha1.AddToScheme(scheme)

	builder := fake.NewClientBuilder().
		WithScheme(scheme).
		WithStatusSubresource(&secretmanagerv1alpha1.SecretManagerConfig{}).
		WithObjects(objs...)

	return &SecretManagerConfigReconciler{
		Client:   builder.Build(),
		Scheme:   scheme,
		Recorder: record.NewFakeRecorder(20),
		BasePath: "/tmp/smc-controller-test",
		KeyStore: sops.NewKeyStore(),
		Backoff:  &backoff.Tracker{},
	}
}

func TestReconcile_SuspendedSetsPhaseAndSkipsPipeline(t *testing.T) {
	smc := &secretmanagerv1alpha1.SecretManagerConfig{
		ObjectMeta: metav1.ObjectMeta{Name: "suspended", Namespace: "default", Generation: 1},
		Spec: secretmanagerv1alpha1.SecretManagerConfigSpec{
			Suspend: true,
		},
	}

	r := newTestReconciler(smc)

	res, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Name: "suspended", Namespace: "default"}})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if res.RequeueAfter != 0 {
		t.Errorf("RequeueAfter = %v, want 0 for a suspended resource", res.RequeueAfter)
	}

	var fresh secretmanagerv1alpha1.SecretManagerConfig
	if err := r.Get(context.Background(), types.NamespacedName{Name: "suspended", Namespace: "default"}, &fresh); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if fresh.Status.Phase != "Suspended" {
		t.Errorf("Phase = %q, want Suspended", fresh.Status.Phase)
	}
}

func TestReconcile_ValidationFailureRequeuesAtFixedInterval(t *testing.T) {
	smc := &secretmanagerv1alpha1.SecretManagerConfig{
		ObjectMeta: metav1.ObjectMeta{Name: "invalid", Namespace: "default", Generation: 1},
		Spec: secretmanagerv1alpha1.SecretManagerConfigSpec{
			SourceRef: secretmanagerv1alpha1.SourceRef{Kind: "GitRepository", Name: "repo"},
			// Empty sourceRef.namespace and no provider: validate.Validate
			// rejects this (the namespace check fires first).
			Secrets: secretmanagerv1alpha1.SecretsSpec{Environment: "prod"},
		},
	}

	r := newTestReconciler(smc)

	res, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Name: "invalid", Namespace: "default"}})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if res.RequeueAfter != validationRequeue {
		t.Errorf("RequeueAfter = %v, want %v", res.RequeueAfter, validationRequeue)
	}

	var fresh secretmanagerv1alpha1.SecretManagerConfig
	if err := r.Get(context.Background(), types.NamespacedName{Name: "invalid", Namespace: "default"}, &fresh); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if fresh.Status.Phase != "Failed" {
		t.Errorf("Phase = %q, want Failed", fresh.Status.Phase)
	}
}

func TestReconcile_MissingObjectIsIgnored(t *testing.T) {
	r := newTestReconciler()

	res, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Name: "gone", Namespace: "default"}})
	if err != nil {
		t.Fatalf("Reconcile() error = %v, want nil for a deleted object", err)
	}
	if res != (ctrl.Result{}) {
		t.Errorf("Result = %+v, want zero value", res)
	}
}

func TestParseInterval(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "", want: defaultReconcileInterval},
		{in: "5m", want: 5 * time.Minute},
		{in: "2d", want: 48 * time.Hour},
		{in: "not-a-duration", wantErr: true},
	}

	for _, tc := range cases {
		got, err := parseInterval(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseInterval(%q) error = nil, want error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseInterval(%q) error = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseInterval(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
