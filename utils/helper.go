package utils

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"shop-api/logger"
)

// GenerateSKU returns a random product SKU of the form SKU-XXXXXXXX.
func GenerateSKU() string {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 8)
	for i := range code {
		code[i] = chars[rand.Intn(len(chars))]
	}
	return "SKU-" + string(code)
}

func isRecoverableError(err error) bool {
	// Check if the error is a network error that is temporary or due to a timeout.
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "temporarily unavailable") ||
		strings.Contains(msg, "connection refused") {
		return true
	}
	return false
}

// RetryWithExponentialBackoff runs operation until it succeeds, fails with a
// non-recoverable error, or maxRetries attempts were made.
func RetryWithExponentialBackoff(operation func() error, maxRetries int, initialDelay time.Duration) error {
	delay := initialDelay
	var err error

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if !isRecoverableError(err) {
			return err
		}
		if i == maxRetries-1 {
			break
		}

		logger.Warn.Printf("Attempt %d failed: %v. Retrying in %v...", i+1, err, delay)

		// Apply jitter: add a random duration between 0 and half the current delay.
		jitter := time.Duration(0)
		if half := int64(delay / 2); half > 0 {
			jitter = time.Duration(rand.Int63n(half))
		}
		time.Sleep(delay + jitter)
		delay *= 2 // Exponential backoff.
	}
	// After exhausting retries, return an error wrapping the last failure.
	return fmt.Errorf("operation failed after %d attempts: %w", maxRetries, err)
}
