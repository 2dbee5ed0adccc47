package scan

// cloudFields is the number of float32 fields per cloud sample:
// x, y, z, intensity.
const cloudFields = 4

// PointCloudBuffer is a preallocated buffer for one combined cloud:
// NumLayers rows by width angular samples, each cell holding
// (x, y, z, intensity) as float32. Each row has its own write cursor;
// writes advance the cursor and silently stop at the end of the row so
// an over-long frame can never spill into the next layer's row.
//
// The buffer is exclusively owned by the single acquisition loop; it is
// not safe for concurrent use.
type PointCloudBuffer struct {
	width  int
	data   []float32
	cursor [NumLayers]int
}

// NewPointCloudBuffer allocates a buffer with the given number of
// angular samples per row. A width of 0 defaults to ScanWidth.
func NewPointCloudBuffer(width int) *PointCloudBuffer {
	if width <= 0 {
		width = ScanWidth
	}
	return &PointCloudBuffer{
		width: width,
		data:  make([]float32, NumLayers*width*cloudFields),
	}
}

// Width returns the number of angular samples per row.
func (b *PointCloudBuffer) Width() int { return b.width }

// ResetAll rewinds every row cursor to the start of its row. Called at
// cycle start; previously written samples are left in place and simply
// overwritten by the new cycle.
func (b *PointCloudBuffer) ResetAll() {
	for i := range b.cursor {
		b.cursor[i] = 0
	}
}

// ResetRow rewinds a single row's cursor to the start of its row.
func (b *PointCloudBuffer) ResetRow(row Slot) {
	b.cursor[row] = 0
}

// WriteSample writes one (x, y, z, intensity) sample at the row's
// cursor and advances it. Samples past the end of the row are dropped.
func (b *PointCloudBuffer) WriteSample(row Slot, x, y, z, intensity float32) {
	i := b.cursor[row]
	if i >= b.width {
		return
	}
	off := (int(row)*b.width + i) * cloudFields
	b.data[off] = x
	b.data[off+1] = y
	b.data[off+2] = z
	b.data[off+3] = intensity
	b.cursor[row] = i + 1
}

// Row returns the raw float32 cells of one row. The returned slice
// aliases the buffer; callers must not retain it across writes.
func (b *PointCloudBuffer) Row(row Slot) []float32 {
	off := int(row) * b.width * cloudFields
	return b.data[off : off+b.width*cloudFields]
}

// Snapshot returns a copy of the full buffer contents, row-major.
func (b *PointCloudBuffer) Snapshot() []float32 {
	out := make([]float32, len(b.data))
	copy(out, b.data)
	return out
}
