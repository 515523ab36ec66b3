package sops

import "strings"

// Reason is a closed classification of why a SOPS decryption failed.
type Reason string

const (
	ReasonKeyNotFound         Reason = "KeyNotFound"
	ReasonWrongKey            Reason = "WrongKey"
	ReasonInvalidKeyFormat    Reason = "InvalidKeyFormat"
	ReasonUnsupportedFormat   Reason = "UnsupportedFormat"
	ReasonCorruptedFile       Reason = "CorruptedFile"
	ReasonNetworkTimeout      Reason = "NetworkTimeout"
	ReasonProviderUnavailable Reason = "ProviderUnavailable"
	ReasonPermissionDenied    Reason = "PermissionDenied"
	ReasonUnknown             Reason = "Unknown"
)

// remediation carries a fixed, human-readable next step per reason, used in
// status and metrics labels.
var remediation = map[Reason]string{
	ReasonKeyNotFound:         "no matching decryption key is available; import the GPG key referenced by this file's sops metadata",
	ReasonWrongKey:            "the loaded key does not match this file's recipients; verify the correct key is loaded",
	ReasonInvalidKeyFormat:    "the GPG key material is malformed; re-export the ASCII-armored private key",
	ReasonUnsupportedFormat:   "the file's declared type is not supported by this SOPS build",
	ReasonCorruptedFile:       "the ciphertext file appears corrupted or was not produced by sops",
	ReasonNetworkTimeout:      "the key provider timed out; this will be retried automatically",
	ReasonProviderUnavailable: "the key provider was unreachable; this will be retried automatically",
	ReasonPermissionDenied:    "the key provider denied access; verify credentials and retry",
	ReasonUnknown:             "an unclassified sops failure occurred; inspect the recorded message for detail",
}

// transient reports whether Reason should drive a short retry rather than a
// permanent failure.
var transient = map[Reason]bool{
	ReasonNetworkTimeout:      true,
	ReasonProviderUnavailable: true,
	ReasonPermissionDenied:    true,
	ReasonUnknown:             true,
}

// Error is the decryption failure type returned by Decrypt.
type Error struct {
	Reason      Reason
	Message     string
	Transient   bool
	Remediation string
}

func (e *Error) Error() string {
	return string(e.Reason) + ": " + e.Message
}

// classify maps a SOPS child process's exit code and stderr text to a
// Reason, trying the exit code first and falling back to
// message substrings — matching the table in the decryption design note.
func classify(exitCode int, message string) *Error {
	lower := strings.ToLower(message)

	switch {
	case exitCode == 3 && (strings.Contains(lower, "no decryption key") || strings.Contains(lower, "key not found")):
		return newError(ReasonKeyNotFound, message)
	case exitCode == 4 && (strings.Contains(lower, "wrong key") || strings.Contains(lower, "decryption failed")) && (strings.Contains(lower, "key") || strings.Contains(lower, "gpg")):
		return newError(ReasonWrongKey, message)
	case exitCode == 6 && (strings.Contains(lower, "invalid key") || strings.Contains(lower, "malformed key")):
		return newError(ReasonInvalidKeyFormat, message)
	case exitCode == 5 && (strings.Contains(lower, "unsupported format") || strings.Contains(lower, "unknown file type")):
		return newError(ReasonUnsupportedFormat, message)
	case exitCode == 2 && (strings.Contains(lower, "corrupt") || strings.Contains(lower, "invalid file")):
		return newError(ReasonCorruptedFile, message)
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out"):
		return newError(ReasonNetworkTimeout, message)
	case strings.Contains(lower, "unavailable") || strings.Contains(lower, "connection refused"):
		return newError(ReasonProviderUnavailable, message)
	case strings.Contains(lower, "permission denied") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "forbidden"):
		return newError(ReasonPermissionDenied, message)
	default:
		return newError(ReasonUnknown, message)
	}
}

func newError(reason Reason, message string) *Error {
	return &Error{
		Reason:      reason,
		Message:     message,
		Transient:   transient[reason],
		Remediation: remediation[reason],
	}
}
