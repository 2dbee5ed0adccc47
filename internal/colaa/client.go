package colaa

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/banshee-data/layerscan/internal/scan"
	"github.com/banshee-data/layerscan/internal/scan/session"
)

// Default connection parameters for the device's command channel.
const (
	DefaultPort        = 2111
	DefaultReadTimeout = 5 * time.Second
)

// loginPayload authenticates as authorized client. The password hash is
// fixed across the device family.
const loginPayload = "sMN SetAccessMode 03 F4724744"

// Config holds the client's connection parameters.
type Config struct {
	Host        string
	Port        int           // default 2111
	ReadTimeout time.Duration // per-telegram read deadline, default 5s
}

// Client is the TCP implementation of session.DeviceLink.
// Not safe for concurrent use; the session manager is the only caller.
type Client struct {
	cfg  Config
	conn net.Conn
	r    *bufio.Reader
}

var _ session.DeviceLink = (*Client)(nil)

// NewClient creates a client. The connection is established by Connect.
func NewClient(cfg Config) *Client {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	return &Client{cfg: cfg}
}

// Connect dials the device command channel.
func (c *Client) Connect(ctx context.Context) error {
	addr := net.JoinHostPort(c.cfg.Host, fmt.Sprintf("%d", c.cfg.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	c.conn = conn
	c.r = bufio.NewReader(conn)
	return nil
}

// Disconnect closes the connection. Idempotent.
func (c *Client) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.r = nil
	return err
}

var errNotConnected = errors.New("colaa: not connected")

// request sends a command telegram and reads telegrams until the reply
// matching wantPrefix arrives. Unsolicited scan-data telegrams that
// slip in between are discarded.
func (c *Client) request(payload, wantPrefix string) (*fieldReader, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}
	if err := c.conn.SetDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(frameTelegram(payload)); err != nil {
		return nil, fmt.Errorf("write %q: %w", payload, err)
	}
	for {
		reply, err := readTelegram(c.r)
		if err != nil {
			return nil, fmt.Errorf("read reply to %q: %w", payload, err)
		}
		if strings.HasPrefix(reply, "sSN LMDscandata") {
			continue
		}
		if !strings.HasPrefix(reply, wantPrefix) {
			return nil, fmt.Errorf("unexpected reply %q to %q", reply, payload)
		}
		r := newFieldReader(reply)
		// Skip the answer type and command name.
		if err := r.skip(2); err != nil {
			return nil, err
		}
		return r, nil
	}
}

// Login authenticates for configuration access.
func (c *Client) Login() error {
	_, err := c.request(loginPayload, "sAN SetAccessMode")
	return err
}

// ScanConfig reads the device scan configuration.
func (c *Client) ScanConfig() (scan.Config, error) {
	var cfg scan.Config
	r, err := c.request("sRN LMPscancfg", "sRA LMPscancfg")
	if err != nil {
		return cfg, err
	}
	freq, err := r.uint(32)
	if err != nil {
		return cfg, err
	}
	sectors, err := r.uint(16)
	if err != nil {
		return cfg, err
	}
	res, err := r.uint(32)
	if err != nil {
		return cfg, err
	}
	start, err := r.int32()
	if err != nil {
		return cfg, err
	}
	stop, err := r.int32()
	if err != nil {
		return cfg, err
	}
	cfg = scan.Config{
		ScanFrequency:     float64(freq),
		NumSectors:        int(sectors),
		AngularResolution: float64(res),
		StartAngle:        float64(start),
		StopAngle:         float64(stop),
	}
	return cfg, nil
}

// OutputRange reads the configured measurement output range.
func (c *Client) OutputRange() (scan.OutputRange, error) {
	var rng scan.OutputRange
	r, err := c.request("sRN LMPoutputRange", "sRA LMPoutputRange")
	if err != nil {
		return rng, err
	}
	// Number of range sectors; always 1 on this device family.
	if _, err := r.uint(16); err != nil {
		return rng, err
	}
	res, err := r.uint(32)
	if err != nil {
		return rng, err
	}
	start, err := r.int32()
	if err != nil {
		return rng, err
	}
	stop, err := r.int32()
	if err != nil {
		return rng, err
	}
	rng = scan.OutputRange{
		AngularResolution: float64(res),
		StartAngle:        float64(start),
		StopAngle:         float64(stop),
	}
	return rng, nil
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SetScanDataConfig writes the data-channel configuration.
func (c *Client) SetScanDataConfig(cfg session.DataConfig) error {
	payload := fmt.Sprintf("sWN LMDscandatacfg %02X 00 %d %d 0 %02X 00 %d %d %d %d +%d",
		cfg.OutputChannel,
		b2i(cfg.Remission),
		cfg.Resolution,
		cfg.Encoder,
		b2i(cfg.Position),
		b2i(cfg.DeviceName),
		b2i(cfg.Comment),
		b2i(cfg.Timestamp),
		cfg.OutputInterval,
	)
	_, err := c.request(payload, "sWA LMDscandatacfg")
	return err
}

// SetEchoFilter selects which echoes the device reports.
func (c *Client) SetEchoFilter(f session.EchoFilter) error {
	_, err := c.request(fmt.Sprintf("sWN FREchoFilter %d", int(f)), "sWA FREchoFilter")
	return err
}

// EnableRangingApplication activates the ranging application.
func (c *Client) EnableRangingApplication() error {
	_, err := c.request("sWN SetActiveApplications 1 RANG 1", "sWA SetActiveApplications")
	return err
}

// SaveConfig persists the configuration on the device.
func (c *Client) SaveConfig() error {
	_, err := c.request("sMN mEEwriteall", "sAN mEEwriteall")
	return err
}

// StartDevice logs out and re-enables the system after configuration.
func (c *Client) StartDevice() error {
	_, err := c.request("sMN Run", "sAN Run")
	return err
}

// StartMeasurement starts the laser and motor.
func (c *Client) StartMeasurement() error {
	_, err := c.request("sMN LMCstartmeas", "sAN LMCstartmeas")
	return err
}

// ScanContinuous enables or disables continuous scan-data output.
func (c *Client) ScanContinuous(enable bool) error {
	_, err := c.request(fmt.Sprintf("sEN LMDscandata %d", b2i(enable)), "sEA LMDscandata")
	return err
}

// NextFrame blocks until the next scan-data telegram arrives, bounded
// by the read timeout.
func (c *Client) NextFrame() (*scan.ScanFrame, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}
	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
			return nil, err
		}
		payload, err := readTelegram(c.r)
		if err != nil {
			return nil, fmt.Errorf("read scan data: %w", err)
		}
		if !strings.HasPrefix(payload, "sSN LMDscandata") {
			continue
		}
		frame, err := ParseScanData(payload)
		if err != nil {
			return nil, fmt.Errorf("parse scan data: %w", err)
		}
		frame.Timestamp = time.Now()
		return frame, nil
	}
}
