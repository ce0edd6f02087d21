// Package liveprof decides, for a fraction of executions of a program, whether
// to profile the execution, and drives the profiling session from enable to
// persistence.
//
// A Profiler is created once by the owner of the monitored scope:
//
//	p := liveprof.New(liveprof.Config{App: "billing", Storage: store})
//	defer p.Close(ctx)
//
//	err := p.Run(ctx, func(ctx context.Context) error {
//		return handle(ctx, req)
//	})
//
// Start rolls the dice. If the session is enabled the selected backend starts
// capturing and a finalizer bound to ctx guarantees End runs once, even when
// the caller never calls it. End normalizes the capture into profiledata.Data
// and hands it to the Storage.
package liveprof

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/liveprof/internal/metrics"
	"github.com/coral-mesh/liveprof/pkg/backend"
	"github.com/coral-mesh/liveprof/pkg/profiledata"
)

const (
	// DefaultApp is the application name used when none is configured.
	DefaultApp = "Default"

	// DefaultDivider profiles one execution in a thousand under its own label.
	DefaultDivider = 1000

	// DefaultTotalDivider profiles one of ten thousand remaining executions
	// under AggregateLabel.
	DefaultTotalDivider = 10000
)

// Storage persists finished profiles.
type Storage interface {
	Save(ctx context.Context, app, label string, ts time.Time, data profiledata.Data) error
}

// State is the lifecycle state of the profiling session.
type State int

const (
	Idle State = iota
	Enabled
	Ended
)

func (s State) String() string {
	switch s {
	case Enabled:
		return "enabled"
	case Ended:
		return "ended"
	default:
		return "idle"
	}
}

// Config contains the profiler settings. Zero values select the defaults.
type Config struct {
	// App is the application name (default: DefaultApp).
	App string

	// Label groups profiles of the same kind of execution
	// (default: base name of the executable).
	Label string

	// Timestamp is stored with every profile. Zero means the instant the
	// session was enabled.
	Timestamp time.Time

	// Divider is the reciprocal of the own-label sampling rate.
	Divider int

	// TotalDivider is the reciprocal of the aggregate sampling rate.
	TotalDivider int

	// Backend forces a backend kind. Empty selects the first available one.
	Backend backend.Kind

	// Backends configures the default candidates.
	Backends backend.Options

	// Storage receives finished profiles.
	Storage Storage

	// Logger is the logger instance (optional, defaults to zerolog.Nop()).
	Logger zerolog.Logger
}

// session is the snapshot taken when a session is enabled.
type session struct {
	id        uuid.UUID
	app       string
	label     string
	timestamp time.Time
	started   time.Time
}

// Profiler is the live profiling session controller. It owns a single
// session slot and is safe for concurrent use.
type Profiler struct {
	mu sync.Mutex

	logger     zerolog.Logger
	candidates []backend.Variant
	backend    backend.Variant
	rng        Rand
	reg        prometheus.Registerer
	metrics    *metrics.Session
	now        func() time.Time

	app          string
	label        string
	timestamp    time.Time
	divider      int
	totalDivider int
	storage      Storage

	state         State
	session       session
	samplingStart time.Time
	stopFinalizer func() bool
	lastData      profiledata.Data
}

// New creates a profiler and detects its backend.
func New(cfg Config, opts ...Option) *Profiler {
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	p := &Profiler{
		logger:       logger.With().Str("component", "liveprof").Logger(),
		now:          time.Now,
		app:          cfg.App,
		label:        cfg.Label,
		timestamp:    cfg.Timestamp,
		divider:      cfg.Divider,
		totalDivider: cfg.TotalDivider,
		storage:      cfg.Storage,
	}
	if p.app == "" {
		p.app = DefaultApp
	}
	if p.label == "" {
		p.label = DefaultLabel()
	}
	if p.divider < 1 {
		p.divider = DefaultDivider
	}
	if p.totalDivider < 1 {
		p.totalDivider = DefaultTotalDivider
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.candidates == nil {
		p.candidates = backend.Defaults(cfg.Backends)
	}
	if p.rng == nil {
		p.rng = clockSeededRand()
	}
	p.metrics = metrics.NewSession(p.reg)
	p.backend = p.selectBackend(cfg.Backend)

	return p
}

// DefaultLabel returns the base name of the running executable.
func DefaultLabel() string {
	if exe, err := os.Executable(); err == nil {
		return filepath.Base(exe)
	}
	if len(os.Args) > 0 {
		return filepath.Base(os.Args[0])
	}
	return DefaultApp
}

func (p *Profiler) selectBackend(kind backend.Kind) backend.Variant {
	if kind != "" {
		if v, ok := backend.Find(p.candidates, kind); ok && v.Available() {
			return v
		}
		p.logger.Warn().
			Str("backend", string(kind)).
			Msg("Requested profiling backend is not available, falling back to detection")
	}

	v := backend.Detect(p.candidates)
	if v == nil {
		p.logger.Warn().Msg("No profiling backend available, profiling disabled")
	}
	return v
}

// Start decides whether this execution is profiled and, if so, begins the
// capture. It is a no-op when a session is already enabled or no backend is
// available. The session is ended automatically when ctx is done; a ctx that
// is already done leaves the profiler Idle.
func (p *Profiler) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Enabled || p.backend == nil {
		return nil
	}
	// The finalizer would end a session begun on a done context at once.
	if ctx.Err() != nil {
		return nil
	}

	decision := decide(p.rng, p.divider, p.totalDivider)
	p.metrics.Decided(decision.String())
	if decision == Skip {
		return nil
	}

	s := session{
		id:        uuid.New(),
		app:       p.app,
		label:     p.label,
		timestamp: p.timestamp,
		started:   p.now(),
	}
	if decision == Aggregate {
		s.label = AggregateLabel
	}
	if s.timestamp.IsZero() {
		s.timestamp = s.started
	}

	kind := p.backend.Kind()
	if err := p.begin(); err != nil {
		p.logger.Error().
			Err(err).
			Str("backend", string(kind)).
			Msg("Failed to begin profiling")
		p.metrics.Finished(string(kind), metrics.ResultBeginError, 0)
		return fmt.Errorf("failed to begin %s profiling: %w", kind, err)
	}

	p.session = s
	p.state = Enabled
	p.metrics.Began()

	id := s.id
	p.stopFinalizer = context.AfterFunc(ctx, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.session.id != id {
			return
		}
		_ = p.endLocked(context.WithoutCancel(ctx))
	})

	p.logger.Debug().
		Str("session_id", id.String()).
		Str("backend", string(kind)).
		Str("label", s.label).
		Msg("Profiling session enabled")

	return nil
}

// End stops the enabled session and persists its capture. It is a no-op when
// no session is enabled, so calling it twice persists at most once.
func (p *Profiler) End(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.endLocked(ctx)
}

func (p *Profiler) endLocked(ctx context.Context) error {
	if p.state != Enabled {
		return nil
	}
	p.state = Ended
	p.clearFinalizer()

	s := p.session
	kind := string(p.backend.Kind())
	logger := p.logger.With().Str("session_id", s.id.String()).Str("backend", kind).Logger()

	data, err := p.collect()
	elapsed := p.now().Sub(s.started)
	if err == nil && data == nil {
		err = errors.New("backend returned no data")
	}
	if err == nil {
		err = data.Validate()
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Discarding invalid profile capture")
		p.metrics.Finished(kind, metrics.ResultInvalid, elapsed)
		return fmt.Errorf("%w: %w", ErrInvalidCapture, err)
	}

	if len(data) == 0 {
		p.metrics.Finished(kind, metrics.ResultEmpty, elapsed)
		return ErrEmptyCapture
	}

	p.lastData = data.Clone()

	if err := p.save(ctx, s, data); err != nil {
		logger.Error().
			Err(err).
			Str("app", s.app).
			Str("label", s.label).
			Msg("Failed to persist profile")
		p.metrics.Finished(kind, metrics.ResultPersistError, elapsed)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	p.metrics.Finished(kind, metrics.ResultPersisted, elapsed)
	return nil
}

// Reset stops the enabled session and discards its capture. Nothing is
// persisted and the profiler returns to Idle.
func (p *Profiler) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Enabled {
		return nil
	}
	p.clearFinalizer()

	kind := string(p.backend.Kind())
	_, err := p.collect()
	p.state = Idle
	p.metrics.Finished(kind, metrics.ResultReset, p.now().Sub(p.session.started))
	p.session = session{}

	if err != nil {
		p.logger.Warn().Err(err).Str("backend", kind).Msg("Failed to stop backend on reset")
		return fmt.Errorf("failed to stop %s backend: %w", kind, err)
	}
	return nil
}

// Run profiles fn as one execution: it starts a session, runs fn and ends the
// session, also when fn panics. Profiling failures are logged by Start and End
// and never fail fn; Run returns fn's error.
func (p *Profiler) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	_ = p.Start(ctx)
	defer func() {
		_ = p.End(ctx)
	}()

	return fn(ctx)
}

// Close ends the enabled session, if any, and closes the storage when it
// holds resources.
func (p *Profiler) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.endLocked(ctx)
	if errors.Is(err, ErrEmptyCapture) {
		err = nil
	}

	if c, ok := p.storage.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close storage: %w", cerr))
		}
	}
	return err
}

// Use selects the backend for the next sessions.
func (p *Profiler) Use(v backend.Variant) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Enabled {
		p.logger.Warn().
			Str("current", string(p.backend.Kind())).
			Msg("Ignoring backend change while profiling is enabled")
		return ErrBackendConflict
	}

	switch v.(type) {
	case nil, backend.Profiler, backend.Sampler:
	default:
		return fmt.Errorf("unsupported backend variant %T", v)
	}
	p.backend = v
	return nil
}

// UseKind selects the candidate of the given kind.
func (p *Profiler) UseKind(kind backend.Kind) error {
	v, ok := backend.Find(p.candidates, kind)
	if !ok {
		return fmt.Errorf("backend %q is not a candidate", kind)
	}
	if !v.Available() {
		return fmt.Errorf("backend %q is not available", kind)
	}
	return p.Use(v)
}

func (p *Profiler) begin() error {
	switch b := p.backend.(type) {
	case backend.Profiler:
		return b.Begin()
	case backend.Sampler:
		started, err := b.BeginSampling()
		if err != nil {
			return err
		}
		p.samplingStart = started
		return nil
	default:
		return fmt.Errorf("unsupported backend variant %T", b)
	}
}

func (p *Profiler) collect() (profiledata.Data, error) {
	switch b := p.backend.(type) {
	case backend.Profiler:
		return b.End()
	case backend.Sampler:
		samples, err := b.EndSampling()
		if err != nil {
			return nil, err
		}
		return profiledata.Aggregate(samples, p.samplingStart), nil
	default:
		return nil, fmt.Errorf("unsupported backend variant %T", b)
	}
}

func (p *Profiler) save(ctx context.Context, s session, data profiledata.Data) (err error) {
	if p.storage == nil {
		return errors.New("no storage configured")
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("storage panicked: %v", r)
		}
	}()
	return p.storage.Save(ctx, s.app, s.label, s.timestamp, data)
}

func (p *Profiler) clearFinalizer() {
	if p.stopFinalizer != nil {
		p.stopFinalizer()
		p.stopFinalizer = nil
	}
}
