package validate

import (
	"testing"

	secretmanagerv1alpha1 "github.com/microscaler/secret-manager-controller/api/v1alpha1"
)

func validSpec() *secretmanagerv1alpha1.SecretManagerConfigSpec {
	return &secretmanagerv1alpha1.SecretManagerConfigSpec{
		SourceRef: secretmanagerv1alpha1.SourceRef{
			Kind:      "GitRepository",
			Name:      "app-secrets",
			Namespace: "flux-system",
		},
		Provider: secretmanagerv1alpha1.ProviderConfig{
			GCP: &secretmanagerv1alpha1.GCPProviderSpec{ProjectID: "my-project-1"},
		},
		Secrets: secretmanagerv1alpha1.SecretsSpec{
			Environment: "prod",
			Prefix:      "myapp",
		},
		ReconcileInterval:        "1m",
		GitRepositoryPullInterval: "5m",
	}
}

func TestValidate_AcceptsWellFormedSpec(t *testing.T) {
	if err := Validate(validSpec()); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_RejectsBadSourceRefKind(t *testing.T) {
	spec := validSpec()
	spec.SourceRef.Kind = "Deployment"
	if err := Validate(spec); err == nil {
		t.Fatal("expected error for invalid sourceRef.kind")
	}
}

func TestValidate_RejectsOversizedSourceRefName(t *testing.T) {
	spec := validSpec()
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	spec.SourceRef.Name = string(long)
	if err := Validate(spec); err == nil {
		t.Fatal("expected error for oversized sourceRef.name")
	}
}

func TestValidate_RejectsNonDNS1123Namespace(t *testing.T) {
	spec := validSpec()
	spec.SourceRef.Namespace = "Not_Valid"
	if err := Validate(spec); err == nil {
		t.Fatal("expected error for invalid sourceRef.namespace")
	}
}

func TestValidate_RejectsBadEnvironment(t *testing.T) {
	spec := validSpec()
	spec.Secrets.Environment = "-bad"
	if err := Validate(spec); err == nil {
		t.Fatal("expected error for invalid secrets.environment")
	}
}

func TestValidate_RejectsBadPrefix(t *testing.T) {
	spec := validSpec()
	spec.Secrets.Prefix = "has a space"
	if err := Validate(spec); err == nil {
		t.Fatal("expected error for invalid secrets.prefix")
	}
}

func TestValidate_RejectsControlCharInBasePath(t *testing.T) {
	spec := validSpec()
	spec.Secrets.BasePath = "path/with/\x00null"
	if err := Validate(spec); err == nil {
		t.Fatal("expected error for control character in basePath")
	}
}

func TestValidate_RejectsNoProviderSet(t *testing.T) {
	spec := validSpec()
	spec.Provider = secretmanagerv1alpha1.ProviderConfig{}
	if err := Validate(spec); err == nil {
		t.Fatal("expected error when no provider is set")
	}
}

func TestValidate_RejectsMultipleProvidersSet(t *testing.T) {
	spec := validSpec()
	spec.Provider.AWS = &secretmanagerv1alpha1.AWSProviderSpec{Region: "us-east-1"}
	if err := Validate(spec); err == nil {
		t.Fatal("expected error when more than one provider is set")
	}
}

func TestValidate_RejectsBadGCPProjectID(t *testing.T) {
	spec := validSpec()
	spec.Provider.GCP.ProjectID = "AB"
	if err := Validate(spec); err == nil {
		t.Fatal("expected error for invalid gcp.projectId")
	}
}

func TestValidate_AcceptsAWSRegionVariants(t *testing.T) {
	regions := []string{"us-east-1", "us-gov-west-1", "us-iso-east-1", "us-isob-east-1", "cn-north-1", "local"}
	for _, region := range regions {
		spec := validSpec()
		spec.Provider.GCP = nil
		spec.Provider.AWS = &secretmanagerv1alpha1.AWSProviderSpec{Region: region}
		if err := Validate(spec); err != nil {
			t.Errorf("Validate() with region %q error = %v, want nil", region, err)
		}
	}
}

func TestValidate_RejectsBadAzureVaultName(t *testing.T) {
	spec := validSpec()
	spec.Provider.GCP = nil
	spec.Provider.Azure = &secretmanagerv1alpha1.AzureProviderSpec{VaultName: "bad--name"}
	if err := Validate(spec); err == nil {
		t.Fatal("expected error for vault name with consecutive dashes")
	}
}

func TestValidate_RejectsMalformedInterval(t *testing.T) {
	spec := validSpec()
	spec.ReconcileInterval = "1x"
	if err := Validate(spec); err == nil {
		t.Fatal("expected error for malformed reconcileInterval")
	}
}

func TestValidate_RejectsIntervalBelowMinimum(t *testing.T) {
	spec := validSpec()
	spec.ReconcileInterval = "30s"
	if err := Validate(spec); err == nil {
		t.Fatal("expected error for reconcileInterval below 60s")
	}
}

func TestValidate_AcceptsEmptyOptionalIntervals(t *testing.T) {
	spec := validSpec()
	spec.ReconcileInterval = ""
	spec.GitRepositoryPullInterval = ""
	if err := Validate(spec); err != nil {
		t.Fatalf("Validate() error = %v, want nil for empty intervals", err)
	}
}
