package sops

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/cache"
)

// keyFieldPreference lists, in priority order, the data keys a SOPS private
// key Secret may carry its key material under.
var keyFieldPreference = []string{"private-key", "key", "gpg-key"}

// watchedSecretNames are the Secret names this watcher reacts to, in any
// namespace.
var watchedSecretNames = map[string]bool{
	"sops-private-key": true,
	"sops-gpg-key":      true,
	"gpg-key":           true,
}

const rbacPreflightRetries = 10
const rbacPreflightDelay = time.Second

// KeyWatcher is a manager.Runnable that watches every namespace for a
// Secret named sops-private-key/sops-gpg-key/gpg-key and keeps a KeyStore
// updated with whatever key material it last observed. There is
// deliberately no namespace precedence: the most recent watch event wins,
// matching the same "last writer" behavior across namespaces that the
// controller this is copied from exhibits for any other cluster-wide
// watched resource.
type KeyWatcher struct {
	clientset        kubernetes.Interface
	store            *KeyStore
	controllerNS     string
	log              logr.Logger
}

// NewKeyWatcher constructs a watcher. controllerNamespace is consulted as a
// fallback source of key material when a watched Secret is deleted
// elsewhere.
func NewKeyWatcher(clientset kubernetes.Interface, store *KeyStore, controllerNamespace string, log logr.Logger) *KeyWatcher {
	return &KeyWatcher{
		clientset:    clientset,
		store:        store,
		controllerNS: controllerNamespace,
		log:          log.WithName("sops-keywatcher"),
	}
}

// Start implements manager.Runnable. It blocks preflighting list permission,
// then runs the informer until ctx is cancelled.
func (w *KeyWatcher) Start(ctx context.Context) error {
	if err := w.preflightRBAC(ctx); err != nil {
		w.log.Error(err, "aborting key watcher: no permission to list secrets cluster-wide")
		return nil
	}

	listWatch := &cache.ListWatch{
		ListFunc: func(options metav1.ListOptions) (runtime.Object, error) {
			options.FieldSelector = fields.Everything().String()
			return w.clientset.CoreV1().Secrets(metav1.NamespaceAll).List(ctx, options)
		},
		WatchFunc: func(options metav1.ListOptions) (watch.Interface, error) {
			return w.clientset.CoreV1().Secrets(metav1.NamespaceAll).Watch(ctx, options)
		},
	}

	_, informer := cache.NewInformer(listWatch, &corev1.Secret{}, 0, cache.ResourceEventHandlerFuncs{
		AddFunc: func(obj interface{}) {
			w.handleUpsert(obj)
		},
		UpdateFunc: func(_, newObj interface{}) {
			w.handleUpsert(newObj)
		},
		DeleteFunc: func(obj interface{}) {
			w.handleDelete(ctx, obj)
		},
	})

	informer.Run(ctx.Done())
	return nil
}

func (w *KeyWatcher) preflightRBAC(ctx context.Context) error {
	var lastErr error
	for i := 0; i < rbacPreflightRetries; i++ {
		_, lastErr = w.clientset.CoreV1().Secrets(metav1.NamespaceAll).List(ctx, metav1.ListOptions{Limit: 1})
		if lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rbacPreflightDelay):
		}
	}
	return fmt.Errorf("listing secrets after %d attempts: %w", rbacPreflightRetries, lastErr)
}

func (w *KeyWatcher) handleUpsert(obj interface{}) {
	secret, ok := obj.(*corev1.Secret)
	if !ok || !watchedSecretNames[secret.Name] {
		return
	}

	key, ok := extractKey(secret)
	if !ok {
		w.log.Info("watched secret has no recognized key field", "namespace", secret.Namespace, "name", secret.Name)
		return
	}
	w.store.Replace(key, secret.Namespace)
	w.log.Info("loaded sops key material", "namespace", secret.Namespace, "name", secret.Name)
}

func (w *KeyWatcher) handleDelete(ctx context.Context, obj interface{}) {
	secret, ok := obj.(*corev1.Secret)
	if !ok {
		if tombstone, isTombstone := obj.(cache.DeletedFinalStateUnknown); isTombstone {
			secret, ok = tombstone.Obj.(*corev1.Secret)
		}
	}
	if !ok || !watchedSecretNames[secret.Name] {
		return
	}

	if w.controllerNS != "" && w.controllerNS != secret.Namespace {
		if fallback, ferr := w.clientset.CoreV1().Secrets(w.controllerNS).Get(ctx, secret.Name, metav1.GetOptions{}); ferr == nil {
			if key, ok := extractKey(fallback); ok {
				w.store.Replace(key, w.controllerNS)
				w.log.Info("reloaded sops key material from controller namespace after delete", "namespace", w.controllerNS, "name", secret.Name)
				return
			}
		}
	}

	w.store.Replace("", "")
	w.log.Info("cleared sops key material", "namespace", secret.Namespace, "name", secret.Name)
}

func extractKey(secret *corev1.Secret) (string, bool) {
	for _, field := range keyFieldPreference {
		if raw, ok := secret.Data[field]; ok && len(raw) > 0 {
			return string(raw), true
		}
	}
	for _, field := range keyFieldPreference {
		if raw, ok := secret.StringData[field]; ok && raw != "" {
			return raw, true
		}
	}
	return "", false
}
