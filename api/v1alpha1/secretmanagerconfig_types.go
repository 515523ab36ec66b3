package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ============================================================
// Source reference
// ============================================================

// SourceRef identifies the GitOps source that delivers the secret artifact.
type SourceRef struct {
	// kind selects the GitOps source type.
	// +kubebuilder:validation:Enum=GitRepository;Application
	// +kubebuilder:validation:Required
	Kind string `json:"kind"`

	// name is the name of the GitRepository or Application object.
	// +kubebuilder:validation:Required
	// +kubebuilder:validation:MinLength=1
	Name string `json:"name"`

	// namespace is the namespace of the GitRepository or Application object.
	// +kubebuilder:validation:Required
	// +kubebuilder:validation:MinLength=1
	Namespace string `json:"namespace"`
}

// ============================================================
// Provider (tagged union — exactly one of gcp/aws/azure)
// ============================================================

// ProviderConfig selects exactly one destination provider.
// The controller ignores any sibling "type" discriminator field on the wire;
// the provider is determined solely by which of gcp/aws/azure is set.
type ProviderConfig struct {
	// gcp configures GCP Secret Manager / Parameter Manager as the destination.
	// +optional
	GCP *GCPProviderSpec `json:"gcp,omitempty"`

	// aws configures AWS Secrets Manager as the destination.
	// +optional
	AWS *AWSProviderSpec `json:"aws,omitempty"`

	// azure configures Azure Key Vault / App Configuration as the destination.
	// +optional
	Azure *AzureProviderSpec `json:"azure,omitempty"`
}

// ProviderAuthSpec optionally overrides default credential discovery.
type ProviderAuthSpec struct {
	// secretRef points to a Secret holding provider credentials.
	// When omitted the adapter falls back to ambient credentials
	// (workload identity, IRSA, instance metadata).
	// +optional
	SecretRef *SecretKeyRef `json:"secretRef,omitempty"`
}

// GCPProviderSpec configures the GCP destination.
type GCPProviderSpec struct {
	// projectId is the GCP project hosting the destination store.
	// +kubebuilder:validation:Required
	ProjectID string `json:"projectId"`

	// auth optionally overrides default credential discovery.
	// +optional
	Auth *ProviderAuthSpec `json:"auth,omitempty"`
}

// AWSProviderSpec configures the AWS destination.
type AWSProviderSpec struct {
	// region is the AWS region hosting the destination store.
	// +kubebuilder:validation:Required
	Region string `json:"region"`

	// auth optionally overrides default credential discovery.
	// +optional
	Auth *ProviderAuthSpec `json:"auth,omitempty"`
}

// AzureProviderSpec configures the Azure destination.
type AzureProviderSpec struct {
	// vaultName is the Azure Key Vault name hosting the destination store.
	// +kubebuilder:validation:Required
	VaultName string `json:"vaultName"`

	// auth optionally overrides default credential discovery.
	// +optional
	Auth *ProviderAuthSpec `json:"auth,omitempty"`
}

// ============================================================
// Secrets processing hints
// ============================================================

// SecretsSpec configures how secret material is located and shaped.
type SecretsSpec struct {
	// environment selects the profile directory to discover files under
	// (e.g. "dev", "staging", "prod").
	// +kubebuilder:validation:Required
	Environment string `json:"environment"`

	// kustomizePath, when set, switches processing to kustomize mode:
	// "kustomize build" is run against this path (relative to the artifact
	// root) and emitted Secret documents are the source of key/value pairs.
	// +optional
	KustomizePath string `json:"kustomizePath,omitempty"`

	// basePath narrows raw-mode file discovery to a subdirectory of the
	// artifact root. Ignored in kustomize mode.
	// +optional
	BasePath string `json:"basePath,omitempty"`

	// prefix is prepended to every projected secret name.
	// +optional
	Prefix string `json:"prefix,omitempty"`

	// suffix is appended to every projected secret name.
	// +optional
	Suffix string `json:"suffix,omitempty"`
}

// ============================================================
// Config store processing hints
// ============================================================

// ConfigsSpec configures routing of application.properties entries to a
// config store instead of the secret store.
type ConfigsSpec struct {
	// enabled turns on config-store routing for discovered .properties files.
	// +optional
	Enabled bool `json:"enabled,omitempty"`

	// store selects which config store capability to use.
	// +kubebuilder:validation:Enum=SecretManager;ParameterManager
	// +optional
	Store string `json:"store,omitempty"`

	// parameterPath is the GCP Parameter Manager path prefix, when store is
	// ParameterManager.
	// +optional
	ParameterPath string `json:"parameterPath,omitempty"`

	// appConfigEndpoint is the Azure App Configuration endpoint, used when
	// the provider is azure.
	// +optional
	AppConfigEndpoint string `json:"appConfigEndpoint,omitempty"`
}

// ============================================================
// Top-level spec
// ============================================================

// SecretManagerConfigSpec defines the desired state of SecretManagerConfig.
type SecretManagerConfigSpec struct {
	// sourceRef identifies the GitOps source delivering the secret artifact.
	// +kubebuilder:validation:Required
	SourceRef SourceRef `json:"sourceRef"`

	// provider selects exactly one destination (gcp, aws, or azure).
	// +kubebuilder:validation:Required
	Provider ProviderConfig `json:"provider"`

	// secrets configures secret discovery and projection.
	// +kubebuilder:validation:Required
	Secrets SecretsSpec `json:"secrets"`

	// configs optionally routes .properties files to a config store.
	// +optional
	Configs *ConfigsSpec `json:"configs,omitempty"`

	// reconcileInterval is how often the controller reconciles absent any
	// triggering event. Format is a Go-style duration string (e.g. "1m").
	// +kubebuilder:default="1m"
	// +optional
	ReconcileInterval string `json:"reconcileInterval,omitempty"`

	// gitRepositoryPullInterval is how often Flux is asked to pull the
	// source repository. Only meaningful for GitRepository sources.
	// +kubebuilder:default="5m"
	// +optional
	GitRepositoryPullInterval string `json:"gitRepositoryPullInterval,omitempty"`

	// diffDiscovery enables fetching the current provider value before
	// deciding whether a write is needed.
	// +kubebuilder:default=true
	// +optional
	DiffDiscovery *bool `json:"diffDiscovery,omitempty"`

	// triggerUpdate allows the controller to write changed values to the
	// provider. When false, drift is logged but never written.
	// +kubebuilder:default=true
	// +optional
	TriggerUpdate *bool `json:"triggerUpdate,omitempty"`

	// suspend halts all reconciliation when true.
	// +optional
	Suspend bool `json:"suspend,omitempty"`

	// suspendGitPulls mirrors onto the GitRepository's spec.suspend field
	// without halting provider sync from the existing cached artifact.
	// +optional
	SuspendGitPulls bool `json:"suspendGitPulls,omitempty"`
}

// ============================================================
// Status types
// ============================================================

// SyncStateEntry records how many times a single provider key has been
// written, and the hash of the value last observed from the artifact.
type SyncStateEntry struct {
	// updateCount is the number of times this key has been created or
	// updated by the controller. Monotonically non-decreasing.
	UpdateCount int64 `json:"updateCount"`

	// lastHash is a 64-bit FNV-1a hex fingerprint of the last value synced
	// for this key. It is recorded only; provider reads are not skipped.
	// +optional
	LastHash string `json:"lastHash,omitempty"`
}

// SyncStatus summarizes the outcome of the most recent sync pass.
type SyncStatus struct {
	// secrets maps projected secret name to its sync state.
	// +optional
	Secrets map[string]SyncStateEntry `json:"secrets,omitempty"`

	// properties maps projected config key to its sync state.
	// +optional
	Properties map[string]SyncStateEntry `json:"properties,omitempty"`
}

// SOPSStatus reports the state of the decryption subsystem.
type SOPSStatus struct {
	// decryptionStatus summarizes the last decryption attempt.
	// +kubebuilder:validation:Enum=NotApplicable;Succeeded;TransientFailure;PermanentFailure
	// +optional
	DecryptionStatus string `json:"decryptionStatus,omitempty"`

	// lastDecryptionAttempt is when decryption was last attempted.
	// +optional
	LastDecryptionAttempt *metav1.Time `json:"lastDecryptionAttempt,omitempty"`

	// lastDecryptionError is the remediation-oriented message from the last
	// failed decryption attempt.
	// +optional
	LastDecryptionError string `json:"lastDecryptionError,omitempty"`

	// sopsKeyAvailable reports whether a GPG key is currently loaded.
	// +optional
	SOPSKeyAvailable bool `json:"sopsKeyAvailable,omitempty"`

	// sopsKeyNamespace is the namespace the active key was last loaded from.
	// +optional
	SOPSKeyNamespace string `json:"sopsKeyNamespace,omitempty"`

	// sopsKeyLastChecked is when the key watcher last observed a key event.
	// +optional
	SOPSKeyLastChecked *metav1.Time `json:"sopsKeyLastChecked,omitempty"`
}

// SecretManagerConfigStatus defines the observed state of SecretManagerConfig.
type SecretManagerConfigStatus struct {
	// observedGeneration is the most recent generation observed by the
	// controller. Never exceeds metadata.generation.
	// +optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`

	// phase is a coarse summary of reconciliation state.
	// +kubebuilder:validation:Enum=Pending;Started;Cloning;Updating;Retrying;PartialFailure;Failed;Ready;Suspended
	// +optional
	Phase string `json:"phase,omitempty"`

	// description is a human-readable elaboration of phase.
	// +optional
	Description string `json:"description,omitempty"`

	// secretsSynced is the count of keys successfully reconciled
	// (including no-ops) in the most recent sync pass.
	// +optional
	SecretsSynced int32 `json:"secretsSynced,omitempty"`

	// lastReconcileTime is when the most recent reconcile attempt completed.
	// +optional
	LastReconcileTime *metav1.Time `json:"lastReconcileTime,omitempty"`

	// nextReconcileTime is when the controller expects to reconcile next,
	// absent an intervening trigger.
	// +optional
	NextReconcileTime *metav1.Time `json:"nextReconcileTime,omitempty"`

	// sync holds per-key update accounting.
	// +optional
	Sync SyncStatus `json:"sync,omitzero"`

	// sops reports the state of the decryption subsystem.
	// +optional
	SOPS SOPSStatus `json:"sops,omitzero"`

	// conditions represent the current state of the SecretManagerConfig
	// resource. Exactly one condition of type Ready is maintained.
	// +listType=map
	// +listMapKey=type
	// +optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// ============================================================
// Root objects
// ============================================================

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:storageversion
// +kubebuilder:resource:shortName=smc
// +kubebuilder:printcolumn:name="Phase",type="string",JSONPath=`.status.phase`
// +kubebuilder:printcolumn:name="Description",type="string",JSONPath=`.status.description`
// +kubebuilder:printcolumn:name="Ready",type="string",JSONPath=`.status.conditions[?(@.type=="Ready")].status`

// SecretManagerConfig is the Schema for the secretmanagerconfigs API.
type SecretManagerConfig struct {
	metav1.TypeMeta `json:",inline"`

	// +optional
	metav1.ObjectMeta `json:"metadata,omitzero"`

	// spec defines the desired state of SecretManagerConfig.
	// +required
	Spec SecretManagerConfigSpec `json:"spec"`

	// status defines the observed state of SecretManagerConfig.
	// +optional
	Status SecretManagerConfigStatus `json:"status,omitzero"`
}

// +kubebuilder:object:root=true

// SecretManagerConfigList contains a list of SecretManagerConfig.
type SecretManagerConfigList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitzero"`
	Items           []SecretManagerConfig `json:"items"`
}

func init() {
	SchemeBuilder.Register(&SecretManagerConfig{}, &SecretManagerConfigList{})
}
