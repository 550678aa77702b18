package imap

import (
	"context"
	"io"
	"net"
	"strings"

	"github.com/pkg/errors"
)

var errNoIdleSupport = errors.New("connection does not support idle")

// Kind buckets provider errors into the categories the rest of the service
// acts on. Classification happens once, at the connection adapter; everything
// above it switches on Kind instead of matching error strings.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindThrottled
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindThrottled:
		return "throttled"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// SyncError wraps a provider error with its classification and the operation
// that produced it.
type SyncError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *SyncError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	return &SyncError{Kind: classifyKind(err), Op: op, Err: err}
}

func classifyKind(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindNetwork
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}

	msg := strings.ToLower(err.Error())

	authMarkers := []string{
		"authentication failed",
		"authenticationfailed",
		"invalid credentials",
		"login failed",
		"username and password not accepted",
		"authorization failed",
	}
	for _, marker := range authMarkers {
		if strings.Contains(msg, marker) {
			return KindAuth
		}
	}

	throttleMarkers := []string{
		"too many simultaneous connections",
		"too many connections",
		"rate limit",
		"throttl",
		"temporarily unavailable",
		"try again later",
	}
	for _, marker := range throttleMarkers {
		if strings.Contains(msg, marker) {
			return KindThrottled
		}
	}

	networkMarkers := []string{
		"connection reset",
		"connection refused",
		"broken pipe",
		"i/o timeout",
		"use of closed network connection",
		"no such host",
		"network is unreachable",
		"connection closed",
	}
	for _, marker := range networkMarkers {
		if strings.Contains(msg, marker) {
			return KindNetwork
		}
	}

	return KindUnknown
}

// KindOf extracts the classification from any error in the chain.
// Unclassified errors report KindUnknown.
func KindOf(err error) Kind {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Kind
	}
	return KindUnknown
}

func IsAuthError(err error) bool {
	return KindOf(err) == KindAuth
}

func IsThrottled(err error) bool {
	return KindOf(err) == KindThrottled
}

func IsNetworkError(err error) bool {
	return KindOf(err) == KindNetwork
}

// sessionBroken reports whether the session that produced err is unusable
// and must be closed instead of returned to the pool. Providers drop the
// connection after both network faults and rejected authentication.
func sessionBroken(err error) bool {
	return IsAuthError(err) || IsNetworkError(err)
}

// IsRetryable reports whether another attempt could plausibly succeed.
// Auth failures never are: retrying bad credentials only burns provider
// goodwill and can trigger lockouts.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindThrottled, KindNetwork:
		return true
	default:
		return false
	}
}
