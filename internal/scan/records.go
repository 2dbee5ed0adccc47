package scan

import "time"

// RecordHeader carries the fields common to all published records.
type RecordHeader struct {
	FrameID string    `json:"frame_id"`
	Stamp   time.Time `json:"stamp"`
}

// ScanRecord is the single-echo projection of one layer's frame.
// Angles are in radians.
type ScanRecord struct {
	RecordHeader
	Layer          LayerID   `json:"layer"`
	AngleMin       float64   `json:"angle_min"`
	AngleMax       float64   `json:"angle_max"`
	AngleIncrement float64   `json:"angle_increment"`
	ScanTime       float64   `json:"scan_time"`
	TimeIncrement  float64   `json:"time_increment"`
	RangeMin       float64   `json:"range_min"`
	RangeMax       float64   `json:"range_max"`
	Ranges         []float32 `json:"ranges"`
	Intensities    []float32 `json:"intensities"`
}

// MultiEchoRecord preserves all echoes per angular bin. Ranges and
// Intensities are indexed [echo][bin], in the frame's own echo order.
type MultiEchoRecord struct {
	RecordHeader
	Layer          LayerID     `json:"layer"`
	AngleMin       float64     `json:"angle_min"`
	AngleMax       float64     `json:"angle_max"`
	AngleIncrement float64     `json:"angle_increment"`
	ScanTime       float64     `json:"scan_time"`
	TimeIncrement  float64     `json:"time_increment"`
	RangeMin       float64     `json:"range_min"`
	RangeMax       float64     `json:"range_max"`
	Ranges         [][]float32 `json:"ranges"`
	Intensities    [][]float32 `json:"intensities"`
}

// CloudRecord is the combined point cloud for one completed cycle:
// Height rows (one per layer slot) by Width angular samples, with
// Points holding x, y, z, intensity interleaved row-major.
type CloudRecord struct {
	RecordHeader
	CloudID string    `json:"cloud_id"`
	Height  int       `json:"height"`
	Width   int       `json:"width"`
	Points  []float32 `json:"points"`
}
