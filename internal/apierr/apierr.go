// internal/apierr/apierr.go
package apierr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

// StatusError is returned when an upstream answers with an unexpected HTTP status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server %d: %s", e.Code, e.Body)
}

// NewStatusError builds a StatusError, truncating the body to limit bytes.
func NewStatusError(code int, body []byte, limit int) *StatusError {
	return &StatusError{Code: code, Body: Truncate(string(body), limit)}
}

// IsTransient reports whether err looks like temporary upstream unavailability:
// timeouts, refused or dropped connections, HTTP 5xx, or a "server 5xx"
// message raised by one of our own clients. Bad schemes and unknown hosts are
// permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 && se.Code < 600
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	for _, errno := range []error{syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED, syscall.EPIPE} {
		if errors.Is(err, errno) {
			return true
		}
	}
	var op *net.OpError
	if errors.As(err, &op) && op.Op == "dial" {
		return true
	}

	msg := err.Error()
	for _, marker := range []string{"Server 5", "server 5", "HTTP 5", "5xx"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Truncate cuts s to n bytes.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
