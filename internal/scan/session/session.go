// Package session owns the device session lifecycle: connect, login,
// configure, start, continuous acquisition, and the retry policy around
// all of it. One Manager drives exactly one device link; there is no
// parallelism between frame acquisition and output assembly.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/layerscan/internal/monitoring"
	"github.com/banshee-data/layerscan/internal/scan"
	"github.com/banshee-data/layerscan/internal/timeutil"
)

// State is the session lifecycle state.
type State int

const (
	Disconnected State = iota
	Connected
	Configured
	Measuring
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Configured:
		return "configured"
	case Measuring:
		return "measuring"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Sentinel errors classifying session failures. The supervisor chooses
// the backoff from these; neither is ever surfaced as fatal.
var (
	// ErrConnectFailed marks an unreachable device link.
	ErrConnectFailed = errors.New("connect failed")

	// ErrScanTimeout marks a frame read failure mid-session. The whole
	// session is torn down; partial repair is never attempted.
	ErrScanTimeout = errors.New("scan read timed out")
)

// EchoFilter selects which returns the device reports per direction.
type EchoFilter int

const (
	FirstEcho EchoFilter = 0
	AllEchoes EchoFilter = 1
	LastEcho  EchoFilter = 2
)

// DataConfig is the scan-data channel configuration written to the
// device during session setup.
type DataConfig struct {
	OutputChannel  int // bitmask of echo channels to emit
	Remission      bool
	Resolution     int
	Encoder        int
	Position       bool
	DeviceName     bool
	Comment        bool
	Timestamp      bool
	OutputInterval int // 1 = every scan
}

// DefaultDataConfig is the configuration applied to every session:
// all three echo channels with remission, timestamps on, every scan.
func DefaultDataConfig() DataConfig {
	return DataConfig{
		OutputChannel:  7,
		Remission:      true,
		Timestamp:      true,
		OutputInterval: 1,
	}
}

// DeviceLink abstracts the wire-level device protocol. Implementations
// decode telegrams into ScanFrames; this package never sees raw bytes.
type DeviceLink interface {
	// Connect establishes the transport. It must be safe to call again
	// after Disconnect.
	Connect(ctx context.Context) error

	// Login authenticates for configuration access.
	Login() error

	// ScanConfig reads the device scan configuration.
	ScanConfig() (scan.Config, error)

	// OutputRange reads the configured measurement output range.
	OutputRange() (scan.OutputRange, error)

	// SetScanDataConfig writes the data-channel configuration.
	SetScanDataConfig(cfg DataConfig) error

	// SetEchoFilter selects the echo filter.
	SetEchoFilter(f EchoFilter) error

	// EnableRangingApplication activates the ranging application.
	EnableRangingApplication() error

	// SaveConfig persists the configuration on the device.
	SaveConfig() error

	// StartDevice logs out and re-enables the system after configuration.
	StartDevice() error

	// StartMeasurement starts the laser and motor.
	StartMeasurement() error

	// ScanContinuous enables or disables continuous scan output.
	ScanContinuous(enable bool) error

	// NextFrame blocks until the next scan frame arrives or the link's
	// own read timeout elapses.
	NextFrame() (*scan.ScanFrame, error)

	// Disconnect tears the transport down. Must be idempotent.
	Disconnect() error
}

// Observer consumes the frames of one measuring session.
type Observer interface {
	Observe(f *scan.ScanFrame)
}

// ObserverFactory builds a fresh Observer for each session from the
// timing derived off the device configuration. Synchronization state
// never survives a teardown, so the factory is invoked per session.
type ObserverFactory func(timing scan.Timing) Observer

// Config tunes the Manager. Zero values take the documented defaults.
type Config struct {
	// ConnectBackoff is the wait between failed connect attempts.
	// Default 1s. Retries are unbounded.
	ConnectBackoff time.Duration

	// ReadFailBackoff is the wait after a mid-session read failure
	// before the state machine restarts from Disconnected. Default 10s.
	ReadFailBackoff time.Duration

	// Clock defaults to the real clock.
	Clock timeutil.Clock

	// Stats may be nil.
	Stats *scan.SessionStats
}

// Manager drives the session state machine:
//
//	Disconnected -> Connected -> Configured -> Measuring
//
// An outer supervisory loop re-enters the machine from Disconnected on
// any teardown. Disconnection always happens before a new connect
// attempt, regardless of which exit path triggered the teardown.
type Manager struct {
	link        DeviceLink
	newObserver ObserverFactory
	cfg         Config
	clock       timeutil.Clock

	mu    sync.Mutex
	state State
}

// NewManager creates a session manager for the given link.
func NewManager(link DeviceLink, newObserver ObserverFactory, cfg Config) *Manager {
	if cfg.ConnectBackoff == 0 {
		cfg.ConnectBackoff = time.Second
	}
	if cfg.ReadFailBackoff == 0 {
		cfg.ReadFailBackoff = 10 * time.Second
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Manager{
		link:        link,
		newObserver: newObserver,
		cfg:         cfg,
		clock:       clock,
		state:       Disconnected,
	}
}

// State returns the current lifecycle state. Safe for concurrent use.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Run executes the supervisory loop until ctx is cancelled. Failures
// are logged and retried indefinitely; the only return value is the
// context's error.
func (m *Manager) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := m.runSession(ctx)
		if err == nil || ctx.Err() != nil {
			continue
		}

		switch {
		case errors.Is(err, ErrConnectFailed):
			monitoring.Logf("session: %v; retrying in %s", err, m.cfg.ConnectBackoff)
			m.clock.Sleep(m.cfg.ConnectBackoff)
		case errors.Is(err, ErrScanTimeout):
			monitoring.Logf("session: %v; reinitializing in %s", err, m.cfg.ReadFailBackoff)
			m.clock.Sleep(m.cfg.ReadFailBackoff)
		default:
			monitoring.Logf("session: %v; reinitializing in %s", err, m.cfg.ReadFailBackoff)
			m.clock.Sleep(m.cfg.ReadFailBackoff)
		}
	}
}

// runSession walks the state machine once: connect, configure, start,
// then acquire frames until failure or cancellation. The link is
// released on every exit path before the next connect attempt.
func (m *Manager) runSession(ctx context.Context) error {
	m.setState(Disconnected)

	if m.cfg.Stats != nil {
		m.cfg.Stats.AddConnectAttempt()
	}
	if err := m.link.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	defer func() {
		if err := m.link.Disconnect(); err != nil {
			monitoring.Logf("session: disconnect: %v", err)
		}
		m.setState(Disconnected)
	}()
	m.setState(Connected)

	timing, err := m.configure()
	if err != nil {
		return err
	}
	m.setState(Configured)

	if err := m.start(); err != nil {
		return err
	}
	m.setState(Measuring)
	if m.cfg.Stats != nil {
		m.cfg.Stats.AddSession()
	}
	monitoring.Logf("session: measuring (scan_time=%.3fs)", timing.ScanTime)

	observer := m.newObserver(timing)
	return m.measure(ctx, observer)
}

// configure logs in, reads the scan configuration and applies the
// data-channel setup. Timing fields for the session's records are
// derived here, once.
func (m *Manager) configure() (scan.Timing, error) {
	var timing scan.Timing

	if err := m.link.Login(); err != nil {
		return timing, fmt.Errorf("login: %w", err)
	}

	cfg, err := m.link.ScanConfig()
	if err != nil {
		return timing, fmt.Errorf("read scan config: %w", err)
	}
	rng, err := m.link.OutputRange()
	if err != nil {
		return timing, fmt.Errorf("read output range: %w", err)
	}
	monitoring.Logf("session: device config: frequency=%.0f sectors=%d resolution=%.0f start=%.0f stop=%.0f",
		cfg.ScanFrequency, cfg.NumSectors, cfg.AngularResolution, cfg.StartAngle, cfg.StopAngle)

	timing = scan.DeriveTiming(cfg.ScanFrequency, rng.AngularResolution)

	if err := m.link.SetScanDataConfig(DefaultDataConfig()); err != nil {
		return timing, fmt.Errorf("set scan data config: %w", err)
	}
	if err := m.link.SetEchoFilter(AllEchoes); err != nil {
		return timing, fmt.Errorf("set echo filter: %w", err)
	}
	if err := m.link.EnableRangingApplication(); err != nil {
		return timing, fmt.Errorf("enable ranging application: %w", err)
	}
	if err := m.link.SaveConfig(); err != nil {
		return timing, fmt.Errorf("save config: %w", err)
	}
	return timing, nil
}

// start brings the device out of configuration mode into continuous
// measurement.
func (m *Manager) start() error {
	if err := m.link.StartDevice(); err != nil {
		return fmt.Errorf("start device: %w", err)
	}
	if err := m.link.StartMeasurement(); err != nil {
		return fmt.Errorf("start measurement: %w", err)
	}
	if err := m.link.ScanContinuous(true); err != nil {
		return fmt.Errorf("enable continuous scan: %w", err)
	}
	return nil
}

// measure is the inner acquisition loop. Each frame is fully observed
// before the next read begins, so the combined cloud of a cycle always
// follows the per-layer outputs of its constituent frames.
func (m *Manager) measure(ctx context.Context, observer Observer) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := m.link.NextFrame()
		if err != nil {
			if m.cfg.Stats != nil {
				m.cfg.Stats.AddTimeout()
			}
			return fmt.Errorf("%w: %v", ErrScanTimeout, err)
		}
		observer.Observe(frame)
	}
}
