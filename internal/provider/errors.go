package provider

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes a provider failure for retry classification. This
// replaces the source system's string-prefix matching (providers return
// normalized error strings there) with a structured discriminator, per the
// retry-classifier design note: keep errors structured and classify by
// kind rather than by substring.
type Kind int

const (
	KindUnknown Kind = iota
	KindHTTP
	KindNamed
	KindNetwork
)

// NetworkKind enumerates the recognized network-level failure shapes.
type NetworkKind string

const (
	NetRefused    NetworkKind = "econnrefused"
	NetClosed     NetworkKind = "closed"
	NetTimeout    NetworkKind = "timeout"
	NetUnprocessed NetworkKind = "unprocessed"
)

// Named error strings a provider can report in lieu of an HTTP status,
// matching the recognized prefixes in spec §6.
const (
	NameRateLimitError    = "rate_limit_error"
	NameRateLimitExceeded = "rate_limit_exceeded"
	NameOverloadedError   = "overloaded_error"
	NameServerError       = "server_error"
	NameResourceExhausted = "RESOURCE_EXHAUSTED"
	NameInternal          = "INTERNAL"
	NameUnavailable       = "UNAVAILABLE"
)

// ProviderError is a structured failure from an LLM provider call. Turn
// engine retry logic classifies by Kind/Status/Name rather than by
// inspecting Message text.
type ProviderError struct {
	Kind    Kind
	Status  int         // meaningful when Kind == KindHTTP
	Name    string      // meaningful when Kind == KindNamed
	Net     NetworkKind // meaningful when Kind == KindNetwork
	Message string
	Cause   error
}

func (e *ProviderError) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	case KindNamed:
		return fmt.Sprintf("%s: %s", e.Name, e.Message)
	case KindNetwork:
		return fmt.Sprintf("HTTP request failed: %s: %s", e.Message, e.Net)
	default:
		return e.Message
	}
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// HTTPError builds a ProviderError from an HTTP status code.
func HTTPError(status int, message string, cause error) *ProviderError {
	return &ProviderError{Kind: KindHTTP, Status: status, Message: message, Cause: cause}
}

// NamedError builds a ProviderError from a provider-specific named error.
func NamedError(name, message string, cause error) *ProviderError {
	return &ProviderError{Kind: KindNamed, Name: name, Message: message, Cause: cause}
}

// NetworkError builds a ProviderError from a network-level failure.
func NetworkError(net NetworkKind, message string, cause error) *ProviderError {
	return &ProviderError{Kind: KindNetwork, Net: net, Message: message, Cause: cause}
}

// retryableHTTPStatus are the HTTP statuses spec §4.5/§6 lists as
// retryable.
var retryableHTTPStatus = map[int]bool{
	408: true, 429: true, 500: true, 502: true, 503: true, 504: true,
}

// retryableNames are the provider-named errors spec §4.5/§6 lists as
// retryable.
var retryableNames = map[string]bool{
	NameRateLimitError:    true,
	NameRateLimitExceeded: true,
	NameOverloadedError:   true,
	NameServerError:       true,
	NameResourceExhausted: true,
	NameInternal:          true,
	NameUnavailable:       true,
}

// retryableNetwork are the network-level failures spec §4.5/§6 lists as
// retryable. :unprocessed is included per Design Notes open question (a):
// treated as retryable, a judgement call, not a certainty across provider
// SDKs.
var retryableNetwork = map[NetworkKind]bool{
	NetRefused:     true,
	NetClosed:      true,
	NetTimeout:     true,
	NetUnprocessed: true,
}

// IsRetryable reports whether err is a transient provider failure per the
// classification rules in spec §4.5/§6/§7.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		switch pe.Kind {
		case KindHTTP:
			return retryableHTTPStatus[pe.Status]
		case KindNamed:
			return retryableNames[pe.Name]
		case KindNetwork:
			return retryableNetwork[pe.Net]
		default:
			return false
		}
	}
	// Fall back to the legacy string-prefix convention (spec §6) for
	// providers that return a plain error rather than *ProviderError.
	return classifyLegacyString(err) != nil
}

// classifyLegacyString recognizes the literal prefixes spec §6 lists, plus
// an "HTTP <status>:" prefix for any status in retryableHTTPStatus, for
// providers implemented against the plain-error convention rather than
// constructing a *ProviderError directly.
func classifyLegacyString(err error) *ProviderError {
	if err == nil {
		return nil
	}
	s := err.Error()
	var status int
	if _, scanErr := fmt.Sscanf(s, "HTTP %d:", &status); scanErr == nil && retryableHTTPStatus[status] {
		return HTTPError(status, s, err)
	}
	switch {
	case strings.HasPrefix(s, "HTTP 408:"):
		return HTTPError(408, s, err)
	case strings.HasPrefix(s, "HTTP 429:"):
		return HTTPError(429, s, err)
	case strings.HasPrefix(s, "HTTP 5xx:"):
		return HTTPError(500, s, err)
	case strings.HasPrefix(s, NameRateLimitError+":"):
		return NamedError(NameRateLimitError, s, err)
	case strings.HasPrefix(s, NameRateLimitExceeded+":"):
		return NamedError(NameRateLimitExceeded, s, err)
	case strings.HasPrefix(s, NameOverloadedError+":"):
		return NamedError(NameOverloadedError, s, err)
	case strings.HasPrefix(s, NameServerError+":"):
		return NamedError(NameServerError, s, err)
	case strings.HasPrefix(s, NameResourceExhausted+":"):
		return NamedError(NameResourceExhausted, s, err)
	case strings.HasPrefix(s, NameInternal+":"):
		return NamedError(NameInternal, s, err)
	case strings.HasPrefix(s, NameUnavailable+":"):
		return NamedError(NameUnavailable, s, err)
	case strings.HasPrefix(s, "HTTP request failed:"):
		switch {
		case strings.HasSuffix(s, ":econnrefused"):
			return NetworkError(NetRefused, s, err)
		case strings.HasSuffix(s, ":closed"):
			return NetworkError(NetClosed, s, err)
		case strings.HasSuffix(s, ":timeout"):
			return NetworkError(NetTimeout, s, err)
		case strings.HasSuffix(s, ":unprocessed"):
			return NetworkError(NetUnprocessed, s, err)
		}
	}
	return nil
}
