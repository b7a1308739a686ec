// Package resilience provides retry with backoff and transient-error
// classification for the store and catalog paths.
package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// IsTransient reports whether an error is safe to retry: pool-acquire
// deadlines, network timeouts, connection resets, DNS hiccups.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// A store acquire that ran out its deadline is the canonical
	// transient failure in this system.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String heuristics for errors wrapped beyond recognition by
	// driver layers.
	msg := strings.ToLower(err.Error())
	patterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"i/o timeout",
		"timeout: context deadline exceeded",
		"conn busy",
		"pool exhausted",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
