// Package validate enforces the syntactic rules spec.md §4.2 places on a
// SecretManagerConfig's spec before the controller does any network I/O.
// Validation fails fast on the first violation, mirroring reposync_controller's
// use of k8s.io/apimachinery/pkg/util/validation for DNS1123 checks
// (nan-yu-kpt-config-sync's pkg/reconcilermanager/controllers/reposync_controller.go),
// wrapped in the controller's own errs.Class taxonomy so the reconciler can
// treat every failure here as ClassValidation, a permanent (non-transient)
// class.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"

	secretmanagerv1alpha1 "github.com/microscaler/secret-manager-controller/api/v1alpha1"
	"github.com/microscaler/secret-manager-controller/internal/errs"
)

var (
	environmentRe = regexp.MustCompile(`^[a-z0-9]([-a-z0-9_.]*[a-z0-9])?$`)
	affixRe       = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	gcpProjectRe  = regexp.MustCompile(`^[a-z][a-z0-9-]{4,28}[a-z0-9]$`)
	azureVaultRe  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]{1,22}[a-zA-Z0-9]$`)
	intervalRe    = regexp.MustCompile(`^(\d+)([smhd])$`)

	// awsRegionRes covers standard, GovCloud, ISO, and China partitions;
	// validAWSRegion also accepts the "local" pseudo-region LocalStack and
	// similar tooling use.
	awsRegionRes = []*regexp.Regexp{
		regexp.MustCompile(`^[a-z]{2}-[a-z]+-\d$`),   // standard, e.g. us-east-1
		regexp.MustCompile(`^us-gov-[a-z]+-\d$`),     // GovCloud
		regexp.MustCompile(`^us-iso[b]?-[a-z]+-\d$`), // ISO / ISOB
		regexp.MustCompile(`^cn-[a-z]+-\d$`),         // China
	}
)

// Validate checks spec against every rule in spec.md §4.2, in order,
// returning an *errs.Error classed ClassValidation describing the first
// violation found. A nil return means spec is syntactically well-formed.
func Validate(spec *secretmanagerv1alpha1.SecretManagerConfigSpec) error {
	if err := validateSourceRef(spec.SourceRef); err != nil {
		return err
	}
	if err := validateSecrets(spec.Secrets); err != nil {
		return err
	}
	if err := validateProvider(spec.Provider); err != nil {
		return err
	}
	if err := validateInterval("reconcileInterval", spec.ReconcileInterval); err != nil {
		return err
	}
	if err := validateInterval("gitRepositoryPullInterval", spec.GitRepositoryPullInterval); err != nil {
		return err
	}
	return nil
}

func invalid(field, reason string) error {
	return errs.New(errs.ClassValidation, fmt.Sprintf("%s: %s", field, reason), nil)
}

func validateSourceRef(ref secretmanagerv1alpha1.SourceRef) error {
	if ref.Kind != "GitRepository" && ref.Kind != "Application" {
		return invalid("sourceRef.kind", fmt.Sprintf("must be GitRepository or Application, got %q", ref.Kind))
	}
	if len(ref.Name) > 253 {
		return invalid("sourceRef.name", "exceeds 253 characters")
	}
	if msgs := validation.IsDNS1123Subdomain(ref.Name); len(msgs) > 0 {
		return invalid("sourceRef.name", strings.Join(msgs, "; "))
	}
	if len(ref.Namespace) > 63 {
		return invalid("sourceRef.namespace", "exceeds 63 characters")
	}
	if msgs := validation.IsDNS1123Label(ref.Namespace); len(msgs) > 0 {
		return invalid("sourceRef.namespace", strings.Join(msgs, "; "))
	}
	return nil
}

func validateSecrets(s secretmanagerv1alpha1.SecretsSpec) error {
	if len(s.Environment) > 63 || !environmentRe.MatchString(s.Environment) {
		return invalid("secrets.environment", fmt.Sprintf("must match %s and be <= 63 characters", environmentRe.String()))
	}
	if s.Prefix != "" && (len(s.Prefix) > 255 || !affixRe.MatchString(s.Prefix)) {
		return invalid("secrets.prefix", fmt.Sprintf("must match %s and be <= 255 characters", affixRe.String()))
	}
	if s.Suffix != "" && (len(s.Suffix) > 255 || !affixRe.MatchString(s.Suffix)) {
		return invalid("secrets.suffix", fmt.Sprintf("must match %s and be <= 255 characters", affixRe.String()))
	}
	if err := validatePath("secrets.basePath", s.BasePath); err != nil {
		return err
	}
	if err := validatePath("secrets.kustomizePath", s.KustomizePath); err != nil {
		return err
	}
	return nil
}

func validatePath(field, value string) error {
	if value == "" {
		return nil
	}
	if len(value) > 4096 {
		return invalid(field, "exceeds 4096 characters")
	}
	for _, r := range value {
		if r == 0 || (r < 0x20 && r != '\t') {
			return invalid(field, "contains a NUL or control character")
		}
	}
	return nil
}

func validateProvider(p secretmanagerv1alpha1.ProviderConfig) error {
	set := 0
	if p.GCP != nil {
		set++
		if !gcpProjectRe.MatchString(p.GCP.ProjectID) {
			return invalid("provider.gcp.projectId", fmt.Sprintf("must match %s", gcpProjectRe.String()))
		}
	}
	if p.AWS != nil {
		set++
		if !validAWSRegion(p.AWS.Region) {
			return invalid("provider.aws.region", "must be a standard, GovCloud, ISO, China, or local region")
		}
	}
	if p.Azure != nil {
		set++
		if !azureVaultRe.MatchString(p.Azure.VaultName) || strings.Contains(p.Azure.VaultName, "--") {
			return invalid("provider.azure.vaultName", fmt.Sprintf("must match %s with no consecutive dashes", azureVaultRe.String()))
		}
	}
	if set != 1 {
		return invalid("provider", fmt.Sprintf("exactly one of gcp, aws, azure must be set, found %d", set))
	}
	return nil
}

func validAWSRegion(region string) bool {
	if region == "local" {
		return true
	}
	for _, re := range awsRegionRes {
		if re.MatchString(region) {
			return true
		}
	}
	return false
}

func validateInterval(field, value string) error {
	if value == "" {
		return nil
	}
	m := intervalRe.FindStringSubmatch(value)
	if m == nil {
		return invalid(field, fmt.Sprintf("must match %s", intervalRe.String()))
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return invalid(field, "numeric component is not a valid integer")
	}
	seconds := n * unitSecondsFactor(m[2])
	if seconds < 60 {
		return invalid(field, "must be at least 60 seconds")
	}
	return nil
}

func unitSecondsFactor(unit string) int {
	switch unit {
	case "s":
		return 1
	case "m":
		return 60
	case "h":
		return 3600
	case "d":
		return 86400
	default:
		return 1
	}
}
