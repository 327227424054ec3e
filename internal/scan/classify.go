package scan

import (
	"context"
	stderrors "errors"
	"strings"
	"syscall"
)

// Status is the outcome of probing one address.
type Status string

const (
	StatusOpen        Status = "open"
	StatusTimeout     Status = "timeout"
	StatusRefused     Status = "refused"
	StatusUnreachable Status = "unreachable"
	StatusError       Status = "error"
)

// AllStatuses lists every status in display order.
var AllStatuses = []Status{StatusOpen, StatusTimeout, StatusRefused, StatusUnreachable, StatusError}

// ParseStatus maps a status name to a Status.
func ParseStatus(s string) (Status, bool) {
	for _, st := range AllStatuses {
		if string(st) == strings.ToLower(strings.TrimSpace(s)) {
			return st, true
		}
	}
	return "", false
}

// classify maps a dial error to a probe status. Anything that isn't a plain
// network outcome is StatusError.
func classify(err error) Status {
	if err == nil {
		return StatusOpen
	}

	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, syscall.ETIMEDOUT) {
		return StatusTimeout
	}
	if stderrors.Is(err, syscall.ECONNREFUSED) {
		return StatusRefused
	}
	if stderrors.Is(err, syscall.EHOSTUNREACH) || stderrors.Is(err, syscall.ENETUNREACH) || stderrors.Is(err, syscall.EHOSTDOWN) {
		return StatusUnreachable
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"):
		return StatusTimeout
	case strings.Contains(errStr, "connection refused"):
		return StatusRefused
	case strings.Contains(errStr, "no route to host"),
		strings.Contains(errStr, "network is unreachable"),
		strings.Contains(errStr, "host is down"):
		return StatusUnreachable
	}
	return StatusError
}
