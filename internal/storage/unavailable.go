package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/coral-mesh/liveprof/pkg/profiledata"
)

// Unavailable is the storage of a profiler whose storage configuration is
// broken. Every save fails with the configuration error.
type Unavailable struct {
	err error
}

// NewUnavailable creates a storage that always fails with err.
func NewUnavailable(err error) *Unavailable {
	return &Unavailable{err: err}
}

// Save implements liveprof.Storage.
func (u *Unavailable) Save(context.Context, string, string, time.Time, profiledata.Data) error {
	return fmt.Errorf("storage unavailable: %w", u.err)
}

// Err returns the configuration error.
func (u *Unavailable) Err() error {
	return u.err
}
