package scan

import (
	"math"

	"github.com/google/uuid"
)

// OutputAssembler builds the three output projections from incoming
// frames. The timing fields are computed once per session from the
// device configuration and reused for every record.
type OutputAssembler struct {
	frameID string
	timing  Timing
}

// NewOutputAssembler creates an assembler stamping records with the
// given frame identifier and session timing.
func NewOutputAssembler(frameID string, timing Timing) *OutputAssembler {
	return &OutputAssembler{frameID: frameID, timing: timing}
}

func degToRad(centideg float64) float64 {
	return centideg / 10000.0 * math.Pi / 180.0
}

func (a *OutputAssembler) header(f *ScanFrame) RecordHeader {
	return RecordHeader{FrameID: a.frameID, Stamp: f.Timestamp}
}

// ToSingleEcho projects a frame to its single-echo record, selecting
// the primary return per angular bin (the frame's own echo ordering
// puts it first).
func (a *OutputAssembler) ToSingleEcho(f *ScanFrame) *ScanRecord {
	rec := &ScanRecord{
		RecordHeader:   a.header(f),
		Layer:          f.Layer,
		AngleMin:       degToRad(f.StartAngle),
		AngleMax:       degToRad(f.StopAngle),
		AngleIncrement: degToRad(f.AngularResolution),
		ScanTime:       a.timing.ScanTime,
		TimeIncrement:  a.timing.TimeIncrement,
		RangeMin:       RangeMin,
		RangeMax:       RangeMax,
	}
	if len(f.Echoes) > 0 {
		rec.Ranges = append([]float32(nil), f.Echoes[0].Ranges...)
		rec.Intensities = append([]float32(nil), f.Echoes[0].Intensities...)
	}
	return rec
}

// ToMultiEcho projects a frame to its multi-echo record, preserving
// every return per angular bin in delivery order.
func (a *OutputAssembler) ToMultiEcho(f *ScanFrame) *MultiEchoRecord {
	rec := &MultiEchoRecord{
		RecordHeader:   a.header(f),
		Layer:          f.Layer,
		AngleMin:       degToRad(f.StartAngle),
		AngleMax:       degToRad(f.StopAngle),
		AngleIncrement: degToRad(f.AngularResolution),
		ScanTime:       a.timing.ScanTime,
		TimeIncrement:  a.timing.TimeIncrement,
		RangeMin:       RangeMin,
		RangeMax:       RangeMax,
		Ranges:         make([][]float32, len(f.Echoes)),
		Intensities:    make([][]float32, len(f.Echoes)),
	}
	for i, e := range f.Echoes {
		rec.Ranges[i] = append([]float32(nil), e.Ranges...)
		rec.Intensities[i] = append([]float32(nil), e.Intensities...)
	}
	return rec
}

// WriteCloudRow converts the frame's primary-echo polar samples to
// Cartesian points and writes them into the row for the given slot.
// The row cursor is rewound first, so a repeated frame for the same
// slot overwrites that row in place. Rows other than the given slot
// are never touched.
func (a *OutputAssembler) WriteCloudRow(buf *PointCloudBuffer, row Slot, f *ScanFrame) {
	if len(f.Echoes) == 0 {
		return
	}
	buf.ResetRow(row)

	startDeg := f.StartAngle / 10000.0
	stepDeg := f.AngularResolution / 10000.0
	elevation := f.Layer.Elevation()
	primary := f.Echoes[0]

	for i, r := range primary.Ranges {
		azimuth := startDeg + float64(i)*stepDeg
		x, y, z := SphericalToCartesian(float64(r), azimuth, elevation)
		var intensity float32
		if i < len(primary.Intensities) {
			intensity = primary.Intensities[i]
		}
		buf.WriteSample(row, float32(x), float32(y), float32(z), intensity)
	}
}

// AssembleCloud returns a publish-ready snapshot of the full buffer as
// the combined cloud record for one cycle. The points are copied so the
// record stays stable while the buffer is rewritten by the next cycle.
func (a *OutputAssembler) AssembleCloud(buf *PointCloudBuffer, f *ScanFrame) *CloudRecord {
	return &CloudRecord{
		RecordHeader: a.header(f),
		CloudID:      uuid.NewString(),
		Height:       NumLayers,
		Width:        buf.Width(),
		Points:       buf.Snapshot(),
	}
}
