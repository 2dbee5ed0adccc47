// Package scan contains the core types and cycle-assembly logic for the
// multi-layer scan bridge: per-layer frames arriving from the device are
// classified into canonical layer rows, projected into single-echo and
// multi-echo records, and aggregated into one combined point cloud per
// scan cycle.
package scan

import "time"

// Fixed geometry of the sensor's angular sweep. Each layer covers 275
// degrees at 0.25 degree resolution, giving 1101 samples per layer.
const (
	NumLayers            = 4
	AngularSpanDeg       = 275.0
	AngularResolutionDeg = 0.25
	ScanWidth            = 1101 // 275/0.25 + 1

	// Valid measurement range in meters.
	RangeMin = 0.2
	RangeMax = 64.0

	// The device reports up to three returns per angular direction.
	MaxEchoes = 3
)

// LayerID is the layer angle code carried in the scan-data header, in
// centidegrees two's complement.
type LayerID uint16

const (
	Layer1 LayerID = 500    // +5.00 deg
	Layer2 LayerID = 250    // +2.50 deg
	Layer3 LayerID = 0      // 0.00 deg
	Layer4 LayerID = 0xFF06 // -2.50 deg
)

// Elevation returns the layer plane elevation in degrees.
func (l LayerID) Elevation() float64 {
	return float64(int16(l)) / 100.0
}

// Echo holds one return channel's samples across the angular sweep.
// Ranges are in meters; intensities are raw remission values.
type Echo struct {
	Ranges      []float32
	Intensities []float32
}

// ScanFrame is one layer's scan as delivered by the device link.
// Immutable once received. Angular fields use raw device units:
// 1/10000 degree for angles and resolution, 1/100 Hz for frequency.
type ScanFrame struct {
	Layer             LayerID
	ScanFrequency     float64
	AngularResolution float64
	StartAngle        float64
	StopAngle         float64
	Echoes            []Echo // ordered as delivered; Echoes[0] is the primary return
	Timestamp         time.Time
}

// Samples returns the number of angular samples in the primary echo.
func (f *ScanFrame) Samples() int {
	if len(f.Echoes) == 0 {
		return 0
	}
	return len(f.Echoes[0].Ranges)
}

// Config is the device scan configuration read back during session setup.
type Config struct {
	ScanFrequency     float64 // 1/100 Hz
	NumSectors        int
	AngularResolution float64 // 1/10000 deg
	StartAngle        float64 // 1/10000 deg
	StopAngle         float64 // 1/10000 deg
}

// OutputRange is the device's configured measurement output range.
type OutputRange struct {
	AngularResolution float64 // 1/10000 deg
	StartAngle        float64 // 1/10000 deg
	StopAngle         float64 // 1/10000 deg
}

// Timing holds the per-record timing fields derived once per session
// from the scan configuration and output range.
type Timing struct {
	ScanTime      float64 // seconds per sweep
	TimeIncrement float64 // seconds between adjacent angular samples
}

// DeriveTiming computes record timing from the device scan frequency
// (1/100 Hz units) and the output-range angular resolution (1/10000 deg
// units).
func DeriveTiming(scanFrequency, angularResolution float64) Timing {
	scanTime := 100.0 / scanFrequency
	return Timing{
		ScanTime:      scanTime,
		TimeIncrement: (angularResolution / 10000.0) / 360.0 / scanTime,
	}
}
