package testutil

import (
	"testing"
	"time"
)

// RequireEventually polls condition until it holds or fails the test after timeout
func RequireEventually(t *testing.T, condition func() bool, timeout, interval time.Duration, msgAndArgs ...any) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			if len(msgAndArgs) > 0 {
				t.Fatalf("condition not met within %s: %v", timeout, msgAndArgs)
			}
			t.Fatalf("condition not met within %s", timeout)
		}
		time.Sleep(interval)
	}
}
