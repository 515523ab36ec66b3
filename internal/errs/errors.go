// Package errs defines the typed error taxonomy shared across the
// reconciler and its subsystems. Errors the controller acts on are *Error
// values carrying a Class, so call sites can decide retry behavior with
// ClassOf/IsTransient instead of string-matching messages.
package errs

import "fmt"

// Class identifies the broad category of a reconcile-time failure.
type Class string

const (
	ClassValidation         Class = "Validation"
	ClassSourceMissing      Class = "SourceMissing"
	ClassSourceNotReady     Class = "SourceNotReady"
	ClassSourceFailed       Class = "SourceFailed"
	ClassArtifactCorrupt    Class = "ArtifactCorrupt"
	ClassExtractionFailed   Class = "ExtractionFailed"
	ClassDecryptionTransient Class = "DecryptionTransient"
	ClassDecryptionPermanent Class = "DecryptionPermanent"
	ClassProviderTransient   Class = "ProviderTransient"
	ClassProviderPermanent   Class = "ProviderPermanent"
	ClassParseError          Class = "ParseError"
)

// transientClasses is the set of classes that should drive a backoff-based
// retry rather than surfacing a terminal failure.
var transientClasses = map[Class]bool{
	ClassSourceNotReady:      true,
	ClassSourceFailed:        true,
	ClassDecryptionTransient: true,
	ClassProviderTransient:   true,
}

// Error is a classified reconcile error. Wrap any underlying error with
// New to attach a class and a short, remediation-oriented message.
type Error struct {
	Class   Class
	Message string
	Err     error
}

func New(class Class, message string, cause error) *Error {
	return &Error{Class: class, Message: message, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether this error's class warrants a retry with
// backoff rather than being treated as a terminal configuration problem.
func (e *Error) Transient() bool {
	return transientClasses[e.Class]
}

// ClassOf extracts the Class of err, returning "" if err is not a *Error
// (or does not wrap one).
func ClassOf(err error) Class {
	var ce *Error
	for err != nil {
		if c, ok := err.(*Error); ok {
			ce = c
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if ce == nil {
		return ""
	}
	return ce.Class
}

// IsTransient reports whether err is a classified error whose class is
// transient. Unclassified errors are treated as non-transient so unknown
// failures surface rather than retry silently forever.
func IsTransient(err error) bool {
	var ce *Error
	if e, ok := err.(*Error); ok {
		ce = e
	}
	if ce == nil {
		return false
	}
	return ce.Transient()
}
