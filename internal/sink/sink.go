// Package sink defines the output surface for published scan records
// and provides the in-repo implementations: a log sink, an asynchronous
// UDP JSON forwarder, and a fan-out combinator. Records are addressed
// by named channels (scan_layer_2, scan_layer_2_multi, ..., cloud).
package sink

import (
	"github.com/banshee-data/layerscan/internal/monitoring"
	"github.com/banshee-data/layerscan/internal/scan"
)

// Sink receives the three output projections. Implementations must not
// retain the records' slices beyond the call unless they copy them; the
// acquisition loop reuses nothing, but downstream consumers may.
type Sink interface {
	PublishScan(channel string, rec *scan.ScanRecord) error
	PublishMultiEcho(channel string, rec *scan.MultiEchoRecord) error
	PublishCloud(channel string, rec *scan.CloudRecord) error
	Close() error
}

// Multi fans records out to several sinks. A failing sink is logged
// and does not prevent delivery to the others.
type Multi []Sink

func (m Multi) PublishScan(channel string, rec *scan.ScanRecord) error {
	for _, s := range m {
		if err := s.PublishScan(channel, rec); err != nil {
			monitoring.Logf("sink: publish scan on %s failed: %v", channel, err)
		}
	}
	return nil
}

func (m Multi) PublishMultiEcho(channel string, rec *scan.MultiEchoRecord) error {
	for _, s := range m {
		if err := s.PublishMultiEcho(channel, rec); err != nil {
			monitoring.Logf("sink: publish multi-echo on %s failed: %v", channel, err)
		}
	}
	return nil
}

func (m Multi) PublishCloud(channel string, rec *scan.CloudRecord) error {
	for _, s := range m {
		if err := s.PublishCloud(channel, rec); err != nil {
			monitoring.Logf("sink: publish cloud on %s failed: %v", channel, err)
		}
	}
	return nil
}

func (m Multi) Close() error {
	var firstErr error
	for _, s := range m {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Log is a Sink that logs one-line summaries of published records.
// Useful in dev mode and as a safe default when no transport is
// configured.
type Log struct{}

func (Log) PublishScan(channel string, rec *scan.ScanRecord) error {
	monitoring.Logf("scan %s: layer=%d samples=%d", channel, rec.Layer, len(rec.Ranges))
	return nil
}

func (Log) PublishMultiEcho(channel string, rec *scan.MultiEchoRecord) error {
	monitoring.Logf("multi-echo %s: layer=%d echoes=%d", channel, rec.Layer, len(rec.Ranges))
	return nil
}

func (Log) PublishCloud(channel string, rec *scan.CloudRecord) error {
	monitoring.Logf("cloud %s: id=%s %dx%d", channel, rec.CloudID, rec.Height, rec.Width)
	return nil
}

func (Log) Close() error { return nil }
