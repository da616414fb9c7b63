package provider

import (
	"errors"
	"testing"
)

func TestIsRetryableStructured(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"http 408", HTTPError(408, "timeout", nil), true},
		{"http 429", HTTPError(429, "rate limited", nil), true},
		{"http 500", HTTPError(500, "server error", nil), true},
		{"http 400", HTTPError(400, "bad request", nil), false},
		{"http 404", HTTPError(404, "not found", nil), false},
		{"named rate_limit_error", NamedError(NameRateLimitError, "slow down", nil), true},
		{"named overloaded_error", NamedError(NameOverloadedError, "busy", nil), true},
		{"named unknown", NamedError("some_other_error", "nope", nil), false},
		{"network refused", NetworkError(NetRefused, "dial tcp", nil), true},
		{"network closed", NetworkError(NetClosed, "eof", nil), true},
		{"network timeout", NetworkError(NetTimeout, "deadline exceeded", nil), true},
		{"network unprocessed", NetworkError(NetUnprocessed, "unclassified", nil), true},
		{"unknown kind", &ProviderError{Kind: KindUnknown, Message: "???"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsRetryableLegacyStringPrefixes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"HTTP 408 prefix", errors.New("HTTP 408: request timeout"), true},
		{"HTTP 429 prefix", errors.New("HTTP 429: too many requests"), true},
		{"HTTP 5xx prefix", errors.New("HTTP 5xx: internal error"), true},
		{"rate_limit_error prefix", errors.New("rate_limit_error: slow down"), true},
		{"rate_limit_exceeded prefix", errors.New("rate_limit_exceeded: quota"), true},
		{"overloaded_error prefix", errors.New("overloaded_error: busy"), true},
		{"server_error prefix", errors.New("server_error: oops"), true},
		{"RESOURCE_EXHAUSTED prefix", errors.New("RESOURCE_EXHAUSTED: quota"), true},
		{"INTERNAL prefix", errors.New("INTERNAL: panic"), true},
		{"UNAVAILABLE prefix", errors.New("UNAVAILABLE: down"), true},
		{"network econnrefused suffix", errors.New("HTTP request failed: dial tcp:econnrefused"), true},
		{"network closed suffix", errors.New("HTTP request failed: stream:closed"), true},
		{"network timeout suffix", errors.New("HTTP request failed: ctx:timeout"), true},
		{"network unprocessed suffix", errors.New("HTTP request failed: body:unprocessed"), true},
		{"unrecognized plain error", errors.New("something went wrong"), false},
		{"HTTP 400 not retryable prefix", errors.New("HTTP 400: bad request"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Errorf("IsRetryable(%q) = %v, want %v", tc.err.Error(), got, tc.want)
			}
		})
	}
}

func TestClassifyLegacyStringNil(t *testing.T) {
	if got := classifyLegacyString(nil); got != nil {
		t.Errorf("classifyLegacyString(nil) = %v, want nil", got)
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	pe := HTTPError(500, "boom", cause)
	if !errors.Is(pe, cause) {
		t.Error("expected errors.Is to find wrapped cause")
	}
}

func TestProviderErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *ProviderError
		want string
	}{
		{"http", HTTPError(429, "slow down", nil), "HTTP 429: slow down"},
		{"named", NamedError(NameOverloadedError, "busy", nil), "overloaded_error: busy"},
		{"network", NetworkError(NetTimeout, "deadline", nil), "HTTP request failed: deadline: timeout"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Errorf("Error() = %q, want %q", got, tc.want)
			}
		})
	}
}
