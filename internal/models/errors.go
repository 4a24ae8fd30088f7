package models

import (
	"errors"
	"fmt"
	"strings"
)

// FailureKind classifies why an acquisition did not produce data.
type FailureKind string

const (
	// FailureNetwork is a timeout or connection error.
	FailureNetwork FailureKind = "network"
	// FailureHTTPStatus is a non-2xx response.
	FailureHTTPStatus FailureKind = "http_status"
	// FailureNotFound means a structural anchor was absent.
	FailureNotFound FailureKind = "not_found"
	// FailureAuthentication means the login did not complete.
	FailureAuthentication FailureKind = "authentication"
	// FailureConfiguration means the browser binary or credentials are missing.
	FailureConfiguration FailureKind = "configuration"
)

// Sentinels for errors.Is checks against a *FetchError.
var (
	ErrNetwork        = errors.New("network failure")
	ErrHTTPStatus     = errors.New("http status failure")
	ErrNotFound       = errors.New("not found")
	ErrAuthentication = errors.New("authentication failure")
	ErrConfiguration  = errors.New("configuration failure")
)

// FetchError is the tagged failure value returned by every acquisition entry point.
// None of its kinds are fatal to the process.
type FetchError struct {
	Kind       FailureKind
	Op         string // e.g. "fetch_quote", "resolve_ticker", "fetch_ratios"
	Ticker     string
	URL        string
	StatusCode int
	Detail     string
	Err        error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Ticker != "" {
		fmt.Fprintf(&b, " %s", e.Ticker)
	}
	fmt.Fprintf(&b, ": %s", e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels. HTTP status failures also count as network failures.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == FailureNetwork || e.Kind == FailureHTTPStatus
	case ErrHTTPStatus:
		return e.Kind == FailureHTTPStatus
	case ErrNotFound:
		return e.Kind == FailureNotFound
	case ErrAuthentication:
		return e.Kind == FailureAuthentication
	case ErrConfiguration:
		return e.Kind == FailureConfiguration
	}
	return false
}

// NewFetchError builds a FetchError of the given kind.
func NewFetchError(kind FailureKind, op, ticker, detail string, err error) *FetchError {
	return &FetchError{
		Kind:   kind,
		Op:     op,
		Ticker: ticker,
		Detail: detail,
		Err:    err,
	}
}

// KindOf returns the failure kind carried by err, or "" if err is not a FetchError.
func KindOf(err error) FailureKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
