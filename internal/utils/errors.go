package utils

import (
	"context"
	"errors"
	"net"
	"strings"
)

// IsRecoverableError reports whether delivering to a log sink may succeed on
// a later attempt: network failures, timeouts and 5xx answers from a sink.
func IsRecoverableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Define recoverable errors by message prefix
	recoverableErrors := []string{
		"sink returned status 5",
		"failed to upload to S3",
		"failed to insert audit records",
	}

	for _, recoverable := range recoverableErrors {
		if strings.HasPrefix(err.Error(), recoverable) {
			return true
		}
	}
	return false
}
