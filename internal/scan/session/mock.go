package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/banshee-data/layerscan/internal/scan"
)

// MockLink implements DeviceLink with configurable behaviour for tests
// and for dev mode, where it replays a canned cycle of frames forever.
type MockLink struct {
	mu sync.Mutex

	// ConnectFailures is the number of leading Connect calls to fail.
	ConnectFailures int

	// Frames are handed out by NextFrame in order. When Loop is set the
	// sequence repeats forever; otherwise NextFrame fails once the
	// frames are exhausted, simulating a scan timeout.
	Frames []*scan.ScanFrame
	Loop   bool

	// FailAfter, when > 0, fails the FailAfter+1st read of the current
	// connection regardless of remaining frames.
	FailAfter int

	// FrameDelay paces NextFrame in dev mode so the loop does not spin.
	FrameDelay time.Duration

	// DeviceConfig is returned by ScanConfig. Zero value gets a 50 Hz,
	// 0.25 degree configuration matching the fixed sweep geometry.
	DeviceConfig scan.Config

	connectCalls int
	reads        int
	next         int
	connected    bool

	// Calls records the configuration commands in invocation order.
	Calls []string
}

var errMockExhausted = errors.New("mock link: no more frames")

func (m *MockLink) record(name string) {
	m.Calls = append(m.Calls, name)
}

// ConnectCalls returns how many times Connect has been invoked.
func (m *MockLink) ConnectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectCalls
}

func (m *MockLink) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectCalls++
	if m.connectCalls <= m.ConnectFailures {
		return errors.New("mock link: connection refused")
	}
	m.connected = true
	m.reads = 0
	return nil
}

func (m *MockLink) Login() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("login")
	return nil
}

func (m *MockLink) ScanConfig() (scan.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("scan-config")
	cfg := m.DeviceConfig
	if cfg.ScanFrequency == 0 {
		cfg = scan.Config{
			ScanFrequency:     5000, // 50 Hz in 1/100 Hz units
			NumSectors:        1,
			AngularResolution: 2500, // 0.25 deg in 1/10000 deg units
			StartAngle:        -1375000,
			StopAngle:         1375000,
		}
	}
	return cfg, nil
}

func (m *MockLink) OutputRange() (scan.OutputRange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("output-range")
	cfg := m.DeviceConfig
	if cfg.AngularResolution == 0 {
		cfg.AngularResolution = 2500
		cfg.StartAngle = -1375000
		cfg.StopAngle = 1375000
	}
	return scan.OutputRange{
		AngularResolution: cfg.AngularResolution,
		StartAngle:        cfg.StartAngle,
		StopAngle:         cfg.StopAngle,
	}, nil
}

func (m *MockLink) SetScanDataConfig(cfg DataConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("set-scan-data-config")
	return nil
}

func (m *MockLink) SetEchoFilter(f EchoFilter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("set-echo-filter")
	return nil
}

func (m *MockLink) EnableRangingApplication() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("enable-ranging")
	return nil
}

func (m *MockLink) SaveConfig() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("save-config")
	return nil
}

func (m *MockLink) StartDevice() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("start-device")
	return nil
}

func (m *MockLink) StartMeasurement() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("start-measurement")
	return nil
}

func (m *MockLink) ScanContinuous(enable bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("scan-continuous")
	return nil
}

func (m *MockLink) NextFrame() (*scan.ScanFrame, error) {
	if m.FrameDelay > 0 {
		time.Sleep(m.FrameDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, errors.New("mock link: not connected")
	}
	if m.FailAfter > 0 && m.reads >= m.FailAfter {
		return nil, errMockExhausted
	}
	if m.next >= len(m.Frames) {
		if !m.Loop || len(m.Frames) == 0 {
			return nil, errMockExhausted
		}
		m.next = 0
	}
	f := m.Frames[m.next]
	m.next++
	m.reads++
	return f, nil
}

func (m *MockLink) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}
