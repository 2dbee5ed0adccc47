package scan

import "github.com/banshee-data/layerscan/internal/monitoring"

// Sink receives the published output projections. Publish errors are
// logged and never stop the acquisition loop.
type Sink interface {
	PublishScan(channel string, rec *ScanRecord) error
	PublishMultiEcho(channel string, rec *MultiEchoRecord) error
	PublishCloud(channel string, rec *CloudRecord) error
}

// LayerSynchronizer maps incoming frames to canonical layer rows,
// tracks cycle state and decides when the combined cloud is published.
//
// A frame for slot 0 arms a new cycle: all row cursors are rewound and
// the synced flag is set, discarding any partially filled cloud from an
// incomplete prior cycle. While synced, every frame is written into its
// row; a slot-3 frame publishes the combined cloud. The flag stays set
// after publishing, so a second slot-3 frame without an intervening
// slot-0 reset republishes the (possibly stale) buffer. That matches
// the device driver this bridge replaces; see DESIGN.md.
//
// Per-layer outputs are published for every frame regardless of the
// synced state.
type LayerSynchronizer struct {
	assembler *OutputAssembler
	buffer    *PointCloudBuffer
	sink      Sink
	stats     *SessionStats
	synced    bool
}

// NewLayerSynchronizer creates a synchronizer publishing to the given
// sink. stats may be nil.
func NewLayerSynchronizer(assembler *OutputAssembler, buffer *PointCloudBuffer, sink Sink, stats *SessionStats) *LayerSynchronizer {
	return &LayerSynchronizer{
		assembler: assembler,
		buffer:    buffer,
		sink:      sink,
		stats:     stats,
	}
}

// Synced reports whether a cycle start has been observed and cloud
// writes are armed.
func (s *LayerSynchronizer) Synced() bool { return s.synced }

// Classify returns the canonical row for a frame's layer.
func (s *LayerSynchronizer) Classify(f *ScanFrame) Slot {
	return SlotFor(f.Layer)
}

// Observe processes one frame: per-layer outputs always, cloud-row
// write only while synced, combined cloud publish when the last slot
// arrives in a synced span.
func (s *LayerSynchronizer) Observe(f *ScanFrame) {
	slot := s.Classify(f)
	if s.stats != nil {
		s.stats.AddFrame(slot, f)
	}

	if slot == SlotFirst {
		s.buffer.ResetAll()
		s.synced = true
	}

	if err := s.sink.PublishScan(ScanChannel(slot), s.assembler.ToSingleEcho(f)); err != nil {
		monitoring.Logf("publish %s failed: %v", ScanChannel(slot), err)
	}
	if err := s.sink.PublishMultiEcho(MultiEchoChannel(slot), s.assembler.ToMultiEcho(f)); err != nil {
		monitoring.Logf("publish %s failed: %v", MultiEchoChannel(slot), err)
	}

	if !s.synced {
		return
	}

	s.assembler.WriteCloudRow(s.buffer, slot, f)

	if slot == SlotLast {
		cloud := s.assembler.AssembleCloud(s.buffer, f)
		if err := s.sink.PublishCloud(CloudChannel, cloud); err != nil {
			monitoring.Logf("publish %s failed: %v", CloudChannel, err)
		}
		if s.stats != nil {
			s.stats.AddCloud()
		}
	}
}
