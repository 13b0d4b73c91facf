package access

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced to API consumers alongside error categories.
const (
	TextCodeInvalidCreds      = "INVALID_CREDENTIALS"
	TextCodeAccountLocked     = "ACCOUNT_LOCKED"
	TextCodeAccountInactive   = "ACCOUNT_INACTIVE"
	TextCodeTokenExpired      = "TOKEN_EXPIRED"
	TextCodeTokenSignature    = "TOKEN_SIGNATURE_INVALID"
	TextCodeTokenMalformed    = "TOKEN_MALFORMED"
	TextCodeTokenKindMismatch = "TOKEN_KIND_MISMATCH"
	TextCodeUnauthenticated   = "UNAUTHENTICATED"
	TextCodeMissingPermission = "MISSING_PERMISSION"
	TextCodeRoleCycle         = "ROLE_CYCLE_DETECTED"
	TextCodeSubjectNotFound   = "SUBJECT_NOT_FOUND"
	TextCodeUnknownStrategy   = "UNKNOWN_STRATEGY"
	TextCodeEmptyPassword     = "EMPTY_PASSWORD"
	TextCodeImmutableClaim    = "IMMUTABLE_CLAIM_MUTATED"
)

// ErrInvalidCredentials is the uniform failure for any credential mismatch.
// The message never distinguishes a wrong secret from an unknown identifier,
// to avoid identifier enumeration.
var ErrInvalidCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountLocked is returned while a subject is inside its lockout window.
var ErrAccountLocked = goerrors.New("account temporarily locked after repeated failures", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeAccountLocked).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountInactive is returned when the subject exists but cannot authenticate.
var ErrAccountInactive = goerrors.New("account is not active", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountInactive).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned when a token is past its expiry plus leeway.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenSignature is returned when a token signature does not verify.
var ErrTokenSignature = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenSignature).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for structurally invalid tokens.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryBadInput).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenKindMismatch is returned when a token of one kind is presented
// where another is required (e.g. an access token on the refresh path).
var ErrTokenKindMismatch = goerrors.New("token kind not valid for this operation", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenKindMismatch).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthenticated is the guard's decision when no subject is present.
var ErrUnauthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrMissingPermission is the guard's decision when the resolved permission
// set does not satisfy the requirement.
var ErrMissingPermission = goerrors.New("missing required permission", goerrors.CategoryAuthz).
	WithTextCode(TextCodeMissingPermission).
	WithCode(goerrors.CodeForbidden)

// ErrRoleCycle indicates catalog corruption: a role inherits from itself
// through its parent chain. Surfaced as an operational alert, not a
// per-request user error.
var ErrRoleCycle = goerrors.New("role inheritance cycle detected", goerrors.CategoryInternal).
	WithTextCode(TextCodeRoleCycle).
	WithCode(goerrors.CodeInternal)

// ErrSubjectNotFound is the error we return for non found subjects.
var ErrSubjectNotFound = goerrors.New("subject not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeSubjectNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrUnknownStrategy is returned when a caller asks the registry for a
// strategy kind that was never registered. Caller error, not sniffing.
var ErrUnknownStrategy = goerrors.New("unknown authentication strategy", goerrors.CategoryBadInput).
	WithTextCode(TextCodeUnknownStrategy).
	WithCode(goerrors.CodeBadRequest)

// ErrImmutableClaimMutation is returned when a claims decorator touches a
// registered or identity claim it must leave alone.
var ErrImmutableClaimMutation = goerrors.New("immutable claim mutated", goerrors.CategoryInternal).
	WithTextCode(TextCodeImmutableClaim).
	WithCode(goerrors.CodeInternal)

// ErrNoEmptyString rejects empty secrets before hashing.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// IsAccountLocked will check for lockout errors.
func IsAccountLocked(err error) bool {
	return goerrors.Is(err, ErrAccountLocked)
}

// IsTokenExpiredError will check for expired tokens, including legacy
// string-matched errors coming from JWT middleware.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for malformed token errors.
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
