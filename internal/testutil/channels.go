// Package testutil holds helpers shared by workflow tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Common test timeout constants.
const (
	// DefaultTestTimeout is the standard timeout for most async test operations.
	DefaultTestTimeout = 5 * time.Second

	// ShortTestTimeout is for operations expected to complete quickly.
	ShortTestTimeout = 1 * time.Second
)

// WaitForChannel waits for a value on the channel or fails after timeout.
func WaitForChannel[T any](t *testing.T, ch <-chan T, timeout time.Duration, msg string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		require.Fail(t, msg)
		var zero T
		return zero
	}
}
