// Package errors provides the typed error taxonomy for the embed relay.
// Every failure surfaced to a caller carries a Kind, a stable error code,
// an HTTP status and an actionable suggestion, so callers branch on
// structure instead of error strings.
package errors

import (
	stderrors "errors"
	"net/http"
)

// Kind classifies a relay failure.
type Kind int

const (
	// KindUnknown is the zero value; errors that are not RelayErrors report it.
	KindUnknown Kind = iota
	// KindInvalidToken indicates the identity token is missing or malformed.
	KindInvalidToken
	// KindInvalidRequest indicates a missing or invalid request parameter.
	KindInvalidRequest
	// KindCredentialExchange indicates STS rejected the web identity token.
	KindCredentialExchange
	// KindIdentityRegionResolution indicates the QuickSight identity region could not be derived.
	KindIdentityRegionResolution
	// KindDashboardNotFound indicates no dashboard matched the requested name.
	KindDashboardNotFound
	// KindUserNotRegistered indicates the caller has no QuickSight user in the namespace.
	KindUserNotRegistered
	// KindEmbedURL indicates QuickSight refused to mint an embed URL.
	KindEmbedURL
	// KindRegistration indicates registering the QuickSight user failed.
	KindRegistration
	// KindRateLimited indicates the caller exceeded the request rate.
	KindRateLimited
	// KindUpstreamService is the catch-all for unclassified AWS failures.
	KindUpstreamService
)

// Error codes returned to clients.
const (
	ErrCodeInvalidToken             = "INVALID_TOKEN"
	ErrCodeInvalidRequest           = "INVALID_REQUEST"
	ErrCodeCredentialExchange       = "CREDENTIAL_EXCHANGE_FAILED"
	ErrCodeIdentityRegionResolution = "IDENTITY_REGION_UNRESOLVED"
	ErrCodeDashboardNotFound        = "DASHBOARD_NOT_FOUND"
	ErrCodeUserNotRegistered        = "USER_NOT_REGISTERED"
	ErrCodeEmbedURL                 = "EMBED_URL_FAILED"
	ErrCodeRegistration             = "REGISTRATION_FAILED"
	ErrCodeRateLimited              = "RATE_LIMITED"
	ErrCodeUpstreamService          = "UPSTREAM_SERVICE_ERROR"
	ErrCodeInternal                 = "INTERNAL_ERROR"
)

var kindCodes = map[Kind]string{
	KindInvalidToken:             ErrCodeInvalidToken,
	KindInvalidRequest:           ErrCodeInvalidRequest,
	KindCredentialExchange:       ErrCodeCredentialExchange,
	KindIdentityRegionResolution: ErrCodeIdentityRegionResolution,
	KindDashboardNotFound:        ErrCodeDashboardNotFound,
	KindUserNotRegistered:        ErrCodeUserNotRegistered,
	KindEmbedURL:                 ErrCodeEmbedURL,
	KindRegistration:             ErrCodeRegistration,
	KindRateLimited:              ErrCodeRateLimited,
	KindUpstreamService:          ErrCodeUpstreamService,
}

var kindStatus = map[Kind]int{
	KindInvalidToken:             http.StatusUnauthorized,
	KindInvalidRequest:           http.StatusBadRequest,
	KindCredentialExchange:       http.StatusForbidden,
	KindIdentityRegionResolution: http.StatusBadGateway,
	KindDashboardNotFound:        http.StatusNotFound,
	KindUserNotRegistered:        http.StatusForbidden,
	KindEmbedURL:                 http.StatusBadGateway,
	KindRegistration:             http.StatusBadGateway,
	KindRateLimited:              http.StatusTooManyRequests,
	KindUpstreamService:          http.StatusBadGateway,
}

// String returns a snake_case name for the kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidToken:
		return "invalid_token"
	case KindInvalidRequest:
		return "invalid_request"
	case KindCredentialExchange:
		return "credential_exchange"
	case KindIdentityRegionResolution:
		return "identity_region_resolution"
	case KindDashboardNotFound:
		return "dashboard_not_found"
	case KindUserNotRegistered:
		return "user_not_registered"
	case KindEmbedURL:
		return "embed_url"
	case KindRegistration:
		return "registration"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstreamService:
		return "upstream_service"
	default:
		return "unknown"
	}
}

// Code returns the client-facing error code for the kind.
func (k Kind) Code() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return ErrCodeInternal
}

// StatusCode returns the HTTP status used when the kind reaches a client.
func (k Kind) StatusCode() int {
	if status, ok := kindStatus[k]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RelayError is implemented by every classified relay failure.
type RelayError interface {
	error
	Unwrap() error              // Original error
	Kind() Kind                 // Taxonomy entry
	Code() string               // Error code (e.g., "INVALID_TOKEN")
	StatusCode() int            // HTTP status for transport adapters
	Suggestion() string         // Actionable fix suggestion
	Context() map[string]string // Additional context (operation, region, ...)
}

type relayError struct {
	kind       Kind
	message    string
	suggestion string
	context    map[string]string
	cause      error
}

func (e *relayError) Error() string {
	return e.message
}

func (e *relayError) Unwrap() error {
	return e.cause
}

func (e *relayError) Kind() Kind {
	return e.kind
}

func (e *relayError) Code() string {
	return e.kind.Code()
}

func (e *relayError) StatusCode() int {
	return e.kind.StatusCode()
}

func (e *relayError) Suggestion() string {
	return e.suggestion
}

func (e *relayError) Context() map[string]string {
	return e.context
}

// New creates a RelayError of the given kind. The suggestion defaults to
// the entry in Suggestions for the kind's code.
func New(kind Kind, message string, cause error) RelayError {
	return &relayError{
		kind:       kind,
		message:    message,
		suggestion: Suggestions[kind.Code()],
		context:    make(map[string]string),
		cause:      cause,
	}
}

// WithSuggestion returns a copy of err with the suggestion replaced.
func WithSuggestion(err RelayError, suggestion string) RelayError {
	return &relayError{
		kind:       err.Kind(),
		message:    err.Error(),
		suggestion: suggestion,
		context:    copyContext(err.Context(), 0),
		cause:      err.Unwrap(),
	}
}

// WithContext adds context to an error and returns a new RelayError.
// The original error is not modified.
func WithContext(err RelayError, key, value string) RelayError {
	ctx := copyContext(err.Context(), 1)
	ctx[key] = value

	return &relayError{
		kind:       err.Kind(),
		message:    err.Error(),
		suggestion: err.Suggestion(),
		context:    ctx,
		cause:      err.Unwrap(),
	}
}

func copyContext(src map[string]string, extra int) map[string]string {
	dst := make(map[string]string, len(src)+extra)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// AsRelayError finds the first RelayError in err's chain.
func AsRelayError(err error) (RelayError, bool) {
	if err == nil {
		return nil, false
	}
	var re RelayError
	if stderrors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// KindOf returns the Kind of the first RelayError in err's chain,
// or KindUnknown.
func KindOf(err error) Kind {
	if re, ok := AsRelayError(err); ok {
		return re.Kind()
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// GetCode extracts the error code from an error.
// Returns empty string if err is not a RelayError.
func GetCode(err error) string {
	if re, ok := AsRelayError(err); ok {
		return re.Code()
	}
	return ""
}

// StatusCode returns the HTTP status for err, 500 for unclassified errors.
func StatusCode(err error) int {
	return KindOf(err).StatusCode()
}
