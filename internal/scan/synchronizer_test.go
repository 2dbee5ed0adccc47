package scan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSink records every published record in order.
type captureSink struct {
	scans      []string // channel names in publish order
	multis     []string
	clouds     []*CloudRecord
	cloudAfter []int // number of frames observed when each cloud arrived
	frames     int
	failScans  bool
}

func (c *captureSink) PublishScan(channel string, rec *ScanRecord) error {
	if c.failScans {
		return errors.New("sink down")
	}
	c.scans = append(c.scans, channel)
	return nil
}

func (c *captureSink) PublishMultiEcho(channel string, rec *MultiEchoRecord) error {
	c.multis = append(c.multis, channel)
	return nil
}

func (c *captureSink) PublishCloud(channel string, rec *CloudRecord) error {
	c.clouds = append(c.clouds, rec)
	c.cloudAfter = append(c.cloudAfter, c.frames)
	return nil
}

var slotLayers = [NumLayers]LayerID{Layer2, Layer3, Layer1, Layer4}

func frameForSlot(slot Slot, r float32) *ScanFrame {
	return &ScanFrame{
		Layer:             slotLayers[slot],
		ScanFrequency:     5000,
		AngularResolution: 2500,
		StartAngle:        -1375000,
		Echoes: []Echo{{
			Ranges:      []float32{r, r},
			Intensities: []float32{1, 1},
		}},
	}
}

func newTestSynchronizer(sink Sink) *LayerSynchronizer {
	a := NewOutputAssembler("laser", DeriveTiming(5000, 2500))
	return NewLayerSynchronizer(a, NewPointCloudBuffer(2), sink, nil)
}

func observeSlots(s *LayerSynchronizer, c *captureSink, slots []Slot) {
	for _, slot := range slots {
		c.frames++
		s.Observe(frameForSlot(slot, 10))
	}
}

func TestPerLayerOutputsAlwaysEmitted(t *testing.T) {
	t.Parallel()

	c := &captureSink{}
	s := newTestSynchronizer(c)

	// Start mid-cycle: no slot-0 frame seen yet, so no cloud may be
	// produced, but every frame still gets both per-layer outputs.
	observeSlots(s, c, []Slot{1, 2, 3, 1, 2})

	assert.Len(t, c.scans, 5)
	assert.Len(t, c.multis, 5)
	assert.Empty(t, c.clouds)
	assert.False(t, s.Synced())
}

func TestCycleEmitsOneCloud(t *testing.T) {
	t.Parallel()

	c := &captureSink{}
	s := newTestSynchronizer(c)

	observeSlots(s, c, []Slot{0, 1, 2, 3})

	require.Len(t, c.clouds, 1)
	assert.Equal(t, []int{4}, c.cloudAfter, "cloud follows the per-layer outputs of its cycle")
	assert.Equal(t, []string{"scan_layer_2", "scan_layer_3", "scan_layer_1", "scan_layer_4"}, c.scans)
	assert.True(t, s.Synced(), "synced stays armed after a publish")
}

func TestMissingCycleStartRepublishesStaleCloud(t *testing.T) {
	t.Parallel()

	// No fresh slot-0 between the two slot-3 frames: the second pass
	// rewrites rows 1..3 in place and republishes the buffer as-is.
	c := &captureSink{}
	s := newTestSynchronizer(c)

	observeSlots(s, c, []Slot{0, 1, 2, 3, 1, 2, 3})

	require.Len(t, c.clouds, 2)
	assert.Equal(t, []int{4, 7}, c.cloudAfter)
}

func TestDroppedCycleStartFullSequence(t *testing.T) {
	t.Parallel()

	// The stale republish from the missed reset, then a fresh slot-0
	// re-arms a normal cycle; no frame is skipped at the boundary.
	c := &captureSink{}
	s := newTestSynchronizer(c)

	observeSlots(s, c, []Slot{0, 1, 2, 3, 1, 2, 3, 0, 1, 2, 3})

	require.Len(t, c.clouds, 3)
	assert.Equal(t, []int{4, 7, 11}, c.cloudAfter)
	assert.Len(t, c.scans, 11)
	assert.Len(t, c.multis, 11)
}

func TestCloudCountNeverExceedsSyncedLastSlotFrames(t *testing.T) {
	t.Parallel()

	sequences := [][]Slot{
		{3, 3, 3},
		{1, 2, 3},
		{0, 3, 3, 3},
		{0, 1, 2, 3, 0, 1, 2, 3},
		{2, 3, 0, 1, 2, 3},
	}
	for _, seq := range sequences {
		c := &captureSink{}
		s := newTestSynchronizer(c)

		syncedLast := 0
		for _, slot := range seq {
			wasArmed := s.Synced() || slot == SlotFirst
			if slot == SlotLast && wasArmed {
				syncedLast++
			}
			c.frames++
			s.Observe(frameForSlot(slot, 10))
		}
		assert.LessOrEqual(t, len(c.clouds), syncedLast, "sequence %v", seq)
	}
}

func TestUnsyncedFramesDoNotTouchBuffer(t *testing.T) {
	t.Parallel()

	c := &captureSink{}
	a := NewOutputAssembler("laser", DeriveTiming(5000, 2500))
	buf := NewPointCloudBuffer(2)
	s := NewLayerSynchronizer(a, buf, c, nil)

	s.Observe(frameForSlot(1, 10))
	s.Observe(frameForSlot(3, 10))

	for row := Slot(0); row < NumLayers; row++ {
		assert.Equal(t, make([]float32, 2*cloudFields), buf.Row(row), "row %d", row)
	}
}

func TestUnknownLayerArmsSlotZero(t *testing.T) {
	t.Parallel()

	// An unmapped layer code classifies to slot 0 and therefore arms a
	// new cycle. Documented hazard, preserved deliberately.
	c := &captureSink{}
	s := newTestSynchronizer(c)

	s.Observe(&ScanFrame{
		Layer:  LayerID(0xBEEF),
		Echoes: []Echo{{Ranges: []float32{1}, Intensities: []float32{1}}},
	})

	assert.True(t, s.Synced())
	assert.Equal(t, []string{"scan_layer_2"}, c.scans)
}

func TestSinkErrorsDoNotStopObservation(t *testing.T) {
	t.Parallel()

	c := &captureSink{failScans: true}
	s := newTestSynchronizer(c)

	observeSlots(s, c, []Slot{0, 1, 2, 3})

	// Scan publishes failed, but multi-echo and cloud still flowed.
	assert.Empty(t, c.scans)
	assert.Len(t, c.multis, 4)
	assert.Len(t, c.clouds, 1)
}

func TestStatsCounting(t *testing.T) {
	t.Parallel()

	c := &captureSink{}
	a := NewOutputAssembler("laser", DeriveTiming(5000, 2500))
	stats := NewSessionStats()
	s := NewLayerSynchronizer(a, NewPointCloudBuffer(2), c, stats)

	observeSlots(s, c, []Slot{0, 1, 2, 3})

	snap := stats.GetSnapshot()
	assert.Equal(t, int64(4), snap.Frames)
	assert.Equal(t, [NumLayers]int64{1, 1, 1, 1}, snap.SlotFrames)
	assert.Equal(t, int64(1), snap.Clouds)
}
