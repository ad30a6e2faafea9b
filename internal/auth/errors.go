package auth

import "errors"

// Verification failures. All of them surface to clients as 401.
var (
	ErrMissingToken      = errors.New("missing token")
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenBadSignature = errors.New("token signature invalid")
	ErrTokenExpired      = errors.New("token expired")
)

// ErrInsufficientRole means the caller is authenticated but not permitted. Surfaces as 403.
var ErrInsufficientRole = errors.New("insufficient role")

// Issuance failures.
var (
	ErrUnknownRole    = errors.New("unknown role")
	ErrInvalidSubject = errors.New("invalid subject")
	ErrInvalidTTL     = errors.New("invalid ttl")
)

// Login failures. ErrAuthenticationFailed is the only one a client ever sees; it wraps one of
// the other two so logs keep the internal cause.
var (
	ErrCredentialNotFound   = errors.New("credential not found")
	ErrCredentialMismatch   = errors.New("credential mismatch")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// ErrWeakSecret rejects signing secrets that are short or well-known placeholders.
var ErrWeakSecret = errors.New("weak signing secret")

var reasons = []struct {
	err   error
	label string
}{
	{ErrMissingToken, "missing_token"},
	{ErrTokenMalformed, "malformed"},
	{ErrTokenBadSignature, "bad_signature"},
	{ErrTokenExpired, "expired"},
	{ErrInsufficientRole, "insufficient_role"},
	{ErrUnknownRole, "unknown_role"},
	{ErrInvalidSubject, "invalid_subject"},
	{ErrInvalidTTL, "invalid_ttl"},
	{ErrCredentialNotFound, "credential_not_found"},
	{ErrCredentialMismatch, "credential_mismatch"},
	{ErrAuthenticationFailed, "authentication_failed"},
	{ErrWeakSecret, "weak_secret"},
}

// Reason returns a stable label for err, suitable for logs and metric attributes.
// The most specific sentinel in the chain wins.
func Reason(err error) string {
	if err == nil {
		return "ok"
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.label
		}
	}
	return "internal"
}
