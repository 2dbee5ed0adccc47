package scan

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(layer LayerID, ranges []float32) *ScanFrame {
	intensities := make([]float32, len(ranges))
	for i := range intensities {
		intensities[i] = float32(100 + i)
	}
	return &ScanFrame{
		Layer:             layer,
		ScanFrequency:     5000,
		AngularResolution: 2500,
		StartAngle:        -1375000,
		StopAngle:         1375000,
		Echoes:            []Echo{{Ranges: ranges, Intensities: intensities}},
		Timestamp:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestToSingleEcho(t *testing.T) {
	t.Parallel()

	timing := DeriveTiming(5000, 2500)
	a := NewOutputAssembler("laser", timing)
	f := testFrame(Layer2, []float32{1, 2, 3})

	rec := a.ToSingleEcho(f)

	want := &ScanRecord{
		RecordHeader:   RecordHeader{FrameID: "laser", Stamp: f.Timestamp},
		Layer:          Layer2,
		AngleMin:       -137.5 * math.Pi / 180.0,
		AngleMax:       137.5 * math.Pi / 180.0,
		AngleIncrement: 0.25 * math.Pi / 180.0,
		ScanTime:       timing.ScanTime,
		TimeIncrement:  timing.TimeIncrement,
		RangeMin:       RangeMin,
		RangeMax:       RangeMax,
		Ranges:         []float32{1, 2, 3},
		Intensities:    []float32{100, 101, 102},
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("single-echo record mismatch (-want +got):\n%s", diff)
	}

	// The record owns its slices; mutating it must not touch the frame.
	rec.Ranges[0] = 99
	assert.Equal(t, float32(1), f.Echoes[0].Ranges[0])
}

func TestToMultiEchoPreservesEchoOrder(t *testing.T) {
	t.Parallel()

	a := NewOutputAssembler("laser", DeriveTiming(5000, 2500))
	f := testFrame(Layer3, []float32{1, 2})
	f.Echoes = append(f.Echoes, Echo{
		Ranges:      []float32{10, 20},
		Intensities: []float32{5, 6},
	})

	rec := a.ToMultiEcho(f)

	require.Len(t, rec.Ranges, 2)
	assert.Equal(t, []float32{1, 2}, rec.Ranges[0])
	assert.Equal(t, []float32{10, 20}, rec.Ranges[1])
	assert.Equal(t, []float32{5, 6}, rec.Intensities[1])
	assert.Equal(t, Layer3, rec.Layer)
}

func TestWriteCloudRowGeometry(t *testing.T) {
	t.Parallel()

	a := NewOutputAssembler("laser", DeriveTiming(5000, 2500))
	buf := NewPointCloudBuffer(3)

	// Layer3 is the zero-elevation plane; start the sweep at 0 deg
	// with 90 deg steps so the geometry is easy to reason about.
	f := &ScanFrame{
		Layer:             Layer3,
		StartAngle:        0,
		AngularResolution: 900000, // 90 deg
		Echoes: []Echo{{
			Ranges:      []float32{1, 1, 1},
			Intensities: []float32{10, 20, 30},
		}},
	}

	a.WriteCloudRow(buf, 1, f)

	row := buf.Row(1)
	// Sample 0 at azimuth 0: straight ahead (+Y).
	assert.InDelta(t, 0, row[0], 1e-6)
	assert.InDelta(t, 1, row[1], 1e-6)
	assert.InDelta(t, 0, row[2], 1e-6)
	assert.Equal(t, float32(10), row[3])
	// Sample 1 at azimuth 90: +X.
	assert.InDelta(t, 1, row[4], 1e-6)
	assert.InDelta(t, 0, row[5], 1e-6)
	assert.Equal(t, float32(20), row[7])
	// Sample 2 at azimuth 180: -Y.
	assert.InDelta(t, 0, row[8], 1e-6)
	assert.InDelta(t, -1, row[9], 1e-6)
}

func TestWriteCloudRowElevation(t *testing.T) {
	t.Parallel()

	a := NewOutputAssembler("laser", DeriveTiming(5000, 2500))
	buf := NewPointCloudBuffer(1)

	f := &ScanFrame{
		Layer:             Layer1, // +5 deg plane
		StartAngle:        0,
		AngularResolution: 2500,
		Echoes:            []Echo{{Ranges: []float32{10}, Intensities: []float32{1}}},
	}
	a.WriteCloudRow(buf, 2, f)

	row := buf.Row(2)
	wantZ := 10 * math.Sin(5*math.Pi/180)
	assert.InDelta(t, wantZ, row[2], 1e-5)
}

func TestWriteCloudRowOverwritesOnRepeat(t *testing.T) {
	t.Parallel()

	a := NewOutputAssembler("laser", DeriveTiming(5000, 2500))
	buf := NewPointCloudBuffer(2)

	f := testFrame(Layer4, []float32{1, 2})
	a.WriteCloudRow(buf, 3, f)
	first := append([]float32(nil), buf.Row(3)...)

	g := testFrame(Layer4, []float32{5, 6})
	a.WriteCloudRow(buf, 3, g)

	assert.NotEqual(t, first, buf.Row(3))
}

func TestAssembleCloud(t *testing.T) {
	t.Parallel()

	a := NewOutputAssembler("laser", DeriveTiming(5000, 2500))
	buf := NewPointCloudBuffer(2)
	f := testFrame(Layer4, []float32{1, 2})

	cloud := a.AssembleCloud(buf, f)

	assert.Equal(t, NumLayers, cloud.Height)
	assert.Equal(t, 2, cloud.Width)
	assert.Equal(t, "laser", cloud.FrameID)
	assert.NotEmpty(t, cloud.CloudID)
	require.Len(t, cloud.Points, NumLayers*2*cloudFields)

	// Distinct emissions get distinct identifiers.
	other := a.AssembleCloud(buf, f)
	assert.NotEqual(t, cloud.CloudID, other.CloudID)

	// The published points are a stable copy.
	buf.WriteSample(0, 42, 42, 42, 42)
	assert.Equal(t, float32(0), cloud.Points[0])
}
