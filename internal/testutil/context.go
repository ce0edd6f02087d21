// Package testutil provides helpers shared by the liveprof tests.
package testutil

import (
	"context"
	"testing"
	"time"
)

// NewTestContext returns a context that times out after 30 seconds and is
// cancelled when the test ends.
func NewTestContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
