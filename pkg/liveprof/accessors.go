package liveprof

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/liveprof/pkg/backend"
	"github.com/coral-mesh/liveprof/pkg/profiledata"
)

// Settings changed while a session is enabled apply to the next session.

func (p *Profiler) SetApp(app string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.app = app
}

func (p *Profiler) App() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.app
}

func (p *Profiler) SetLabel(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.label = label
}

func (p *Profiler) Label() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.label
}

// SetTimestamp fixes the timestamp stored with profiles. The zero time
// restores the default of using the session start.
func (p *Profiler) SetTimestamp(ts time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timestamp = ts
}

func (p *Profiler) Timestamp() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timestamp
}

// SetDivider sets the reciprocal of the own-label sampling rate. Values below
// 1 are rejected and the previous value is kept.
func (p *Profiler) SetDivider(divider int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if divider < 1 {
		p.logger.Warn().Int("divider", divider).Msg("Ignoring invalid divider")
		return fmt.Errorf("%w: got %d", ErrInvalidDivider, divider)
	}
	p.divider = divider
	return nil
}

func (p *Profiler) Divider() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.divider
}

// SetTotalDivider sets the reciprocal of the aggregate sampling rate. Values
// below 1 are rejected and the previous value is kept.
func (p *Profiler) SetTotalDivider(totalDivider int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if totalDivider < 1 {
		p.logger.Warn().Int("total_divider", totalDivider).Msg("Ignoring invalid total divider")
		return fmt.Errorf("%w: got %d", ErrInvalidDivider, totalDivider)
	}
	p.totalDivider = totalDivider
	return nil
}

func (p *Profiler) TotalDivider() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalDivider
}

func (p *Profiler) SetStorage(s Storage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.storage = s
}

func (p *Profiler) SetLogger(logger zerolog.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger = logger.With().Str("component", "liveprof").Logger()
}

func (p *Profiler) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Backend returns the selected backend, or nil when none is available.
func (p *Profiler) Backend() backend.Variant {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backend
}

// Candidates returns the backends probed at construction.
func (p *Profiler) Candidates() []backend.Variant {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]backend.Variant(nil), p.candidates...)
}

// LastProfileData returns a copy of the last capture handed to the storage.
func (p *Profiler) LastProfileData() profiledata.Data {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastData.Clone()
}

// SessionID returns the id of the current or last session, or "" before the
// first one.
func (p *Profiler) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session.id == uuid.Nil {
		return ""
	}
	return p.session.id.String()
}
