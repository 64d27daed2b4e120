// Package errors defines the core's single tagged error type and the
// machine-readable codes carried by every failure the library can return.
package errors

import "fmt"

// Code is the machine-readable identity of an AuraError. It is stable
// across releases; Message is for humans and may change.
type Code string

// QR / presentation codec codes.
const (
	CodeParseError      Code = "QR_PARSE_ERROR"
	CodeValidationError Code = "QR_VALIDATION_ERROR"
	CodeExpired         Code = "QR_EXPIRED"
	CodeNonceError      Code = "QR_NONCE_ERROR"
)

// Crypto codes.
const (
	CodeSignatureError       Code = "SIGNATURE_ERROR"
	CodeSignatureFailed      Code = "SIGNATURE_VERIFICATION_FAILED"
	CodePublicKeyError       Code = "PUBLIC_KEY_ERROR"
	CodeEncodingError        Code = "ENCODING_ERROR"
)

// Registry / network codes.
const (
	CodeTimeout         Code = "NETWORK_TIMEOUT"
	CodeNodeUnavailable Code = "NETWORK_NODE_UNAVAILABLE"
	CodeAPIError        Code = "NETWORK_API_ERROR"
	CodeRetryExhausted  Code = "NETWORK_RETRY_EXHAUSTED"
)

// Credential status codes.
const (
	CodeRevoked           Code = "CREDENTIAL_REVOKED"
	CodeCredentialExpired Code = "CREDENTIAL_EXPIRED"
	CodeNotFound          Code = "CREDENTIAL_NOT_FOUND"
	CodeSuspended         Code = "CREDENTIAL_SUSPENDED"
	CodePending           Code = "CREDENTIAL_PENDING"
)

// DID codes.
const (
	CodeDIDResolutionError Code = "DID_RESOLUTION_ERROR"
	CodeInvalidDID         Code = "DID_INVALID"
	CodeDIDNotFound        Code = "DID_NOT_FOUND"
)

// Cache / sync codes.
const (
	CodeCacheReadFailed         Code = "CACHE_READ_FAILED"
	CodeCacheWriteFailed        Code = "CACHE_WRITE_FAILED"
	CodeSyncError               Code = "SYNC_ERROR"
	CodeOfflineModeUnavailable  Code = "OFFLINE_MODE_UNAVAILABLE"
	CodeQuotaExceeded           Code = "CACHE_QUOTA_EXCEEDED"
)

// Configuration codes.
const CodeConfigurationError Code = "CONFIGURATION_ERROR"

// Policy codes (verifier orchestrator, §4.5 policy stage).
const CodePolicyError Code = "POLICY_ERROR"

// AuraError is the single root error type returned or captured throughout
// the core. Detail carries kind-specific structured fields (e.g. Expired
// carries expirationTime/currentTime) without needing a Go type per kind.
type AuraError struct {
	Code    Code
	Message string
	Detail  map[string]interface{}
}

// New creates an AuraError with no detail.
func New(code Code, message string) *AuraError {
	return &AuraError{Code: code, Message: message}
}

// Newf creates an AuraError with a formatted message.
func Newf(code Code, format string, args ...interface{}) *AuraError {
	return &AuraError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail returns a copy of e with the given key/value merged into Detail.
func (e *AuraError) WithDetail(key string, value interface{}) *AuraError {
	detail := make(map[string]interface{}, len(e.Detail)+1)
	for k, v := range e.Detail {
		detail[k] = v
	}
	detail[key] = value
	return &AuraError{Code: e.Code, Message: e.Message, Detail: detail}
}

// Error implements the error interface.
func (e *AuraError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is allows errors.Is(err, &AuraError{Code: X}) style matching on Code alone.
func (e *AuraError) Is(target error) bool {
	t, ok := target.(*AuraError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf extracts the machine code from err if it is (or wraps) an
// *AuraError, and "" otherwise.
func CodeOf(err error) Code {
	var ae *AuraError
	if a, ok := err.(*AuraError); ok {
		ae = a
	} else if u, ok := err.(interface{ Unwrap() error }); ok {
		return CodeOf(u.Unwrap())
	}
	if ae == nil {
		return ""
	}
	return ae.Code
}

// NewExpired builds the Expired kind's detail payload per spec §7.
func NewExpired(expirationTime, currentTime int64, toleranceSeconds int64) *AuraError {
	withinTolerance := toleranceSeconds > 0 && currentTime-expirationTime <= toleranceSeconds
	return &AuraError{
		Code:    CodeExpired,
		Message: "presentation has expired",
		Detail: map[string]interface{}{
			"expirationTime":      expirationTime,
			"currentTime":         currentTime,
			"timeSinceExpiration": currentTime - expirationTime,
			"withinTolerance":     withinTolerance,
		},
	}
}
