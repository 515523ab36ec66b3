package sops

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestExtractKey_PrefersPrivateKeyField(t *testing.T) {
	secret := &corev1.Secret{
		Data: map[string][]byte{
			"key":         []byte("second-choice"),
			"private-key": []byte("first-choice"),
		},
	}
	key, ok := extractKey(secret)
	if !ok || key != "first-choice" {
		t.Fatalf("extractKey() = (%q, %v), want (%q, true)", key, ok, "first-choice")
	}
}

func TestExtractKey_FallsBackThroughPreferenceOrder(t *testing.T) {
	secret := &corev1.Secret{
		Data: map[string][]byte{
			"gpg-key": []byte("only-this-one"),
		},
	}
	key, ok := extractKey(secret)
	if !ok || key != "only-this-one" {
		t.Fatalf("extractKey() = (%q, %v), want (%q, true)", key, ok, "only-this-one")
	}
}

func TestExtractKey_NoRecognizedField(t *testing.T) {
	secret := &corev1.Secret{Data: map[string][]byte{"unrelated": []byte("x")}}
	if _, ok := extractKey(secret); ok {
		t.Fatalf("expected extractKey to report false for a secret with no recognized field")
	}
}

func TestExtractKey_StringDataFallback(t *testing.T) {
	secret := &corev1.Secret{StringData: map[string]string{"key": "armored-text"}}
	key, ok := extractKey(secret)
	if !ok || key != "armored-text" {
		t.Fatalf("extractKey() = (%q, %v), want (%q, true)", key, ok, "armored-text")
	}
}

func TestKeyWatcher_PreflightRBAC_Succeeds(t *testing.T) {
	clientset := fake.NewClientset()
	w := NewKeyWatcher(clientset, NewKeyStore(), "smc-system", logr.Discard())

	if err := w.preflightRBAC(context.Background()); err != nil {
		t.Fatalf("preflightRBAC() = %v, want nil", err)
	}
}

func TestKeyWatcher_HandleUpsert_IgnoresUnwatchedNames(t *testing.T) {
	store := NewKeyStore()
	w := NewKeyWatcher(fake.NewClientset(), store, "smc-system", logr.Discard())

	w.handleUpsert(&corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "some-other-secret", Namespace: "default"},
		Data:       map[string][]byte{"private-key": []byte("should-not-load")},
	})

	if got := store.Read(); got != "" {
		t.Fatalf("expected unwatched secret name to be ignored, store = %q", got)
	}
}

func TestKeyWatcher_HandleUpsert_LoadsWatchedSecret(t *testing.T) {
	store := NewKeyStore()
	w := NewKeyWatcher(fake.NewClientset(), store, "smc-system", logr.Discard())

	w.handleUpsert(&corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "sops-private-key", Namespace: "team-a"},
		Data:       map[string][]byte{"private-key": []byte("team-a-key")},
	})

	if got := store.Read(); got != "team-a-key" {
		t.Fatalf("store.Read() = %q, want %q", got, "team-a-key")
	}
}

func TestKeyWatcher_HandleDelete_FallsBackToControllerNamespace(t *testing.T) {
	ctx := context.Background()
	clientset := fake.NewClientset(&corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "sops-private-key", Namespace: "smc-system"},
		Data:       map[string][]byte{"private-key": []byte("fallback-key")},
	})
	store := NewKeyStore()
	store.Replace("team-a-key", "team-a")
	w := NewKeyWatcher(clientset, store, "smc-system", logr.Discard())

	w.handleDelete(ctx, &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "sops-private-key", Namespace: "team-a"},
	})

	if got := store.Read(); got != "fallback-key" {
		t.Fatalf("store.Read() after delete = %q, want fallback to controller namespace key %q", got, "fallback-key")
	}
}

func TestKeyWatcher_HandleDelete_ClearsWhenNoFallback(t *testing.T) {
	ctx := context.Background()
	clientset := fake.NewClientset()
	store := NewKeyStore()
	store.Replace("team-a-key", "team-a")
	w := NewKeyWatcher(clientset, store, "smc-system", logr.Discard())

	w.handleDelete(ctx, &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "sops-private-key", Namespace: "team-a"},
	})

	if got := store.Read(); got != "" {
		t.Fatalf("store.Read() after delete with no fallback = %q, want empty", got)
	}
}
