package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedInput      = errors.New("malformed input")
	ErrIdentityUnreachable = errors.New("identity unreachable")
	ErrInvalidDID          = errors.New("invalid did")
	ErrKeyNotFound         = errors.New("verification key not found")
	ErrSignatureInvalid    = errors.New("signature invalid")
	ErrExpired             = errors.New("credential expired")
	ErrNotFound            = errors.New("not found")
	ErrWriteConflict       = errors.New("write conflict")
	ErrPolicyDenied        = errors.New("registration denied by policy")
)

// VerificationError wraps one of the sentinel errors above with the
// human-readable reason surfaced to callers. Use errors.Is against the
// sentinels to branch; use Reason for display.
type VerificationError struct {
	Kind   error
	Reason string
}

func (e *VerificationError) Error() string {
	if e.Reason == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
}

func (e *VerificationError) Unwrap() error {
	return e.Kind
}

func NewVerificationError(kind error, format string, args ...any) *VerificationError {
	return &VerificationError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Retryable reports whether the caller may usefully retry the failed
// operation. Only resolver reachability and log write races qualify;
// cryptographic and shape failures are terminal.
func Retryable(err error) bool {
	return errors.Is(err, ErrIdentityUnreachable) || errors.Is(err, ErrWriteConflict)
}
