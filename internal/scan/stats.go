package scan

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/layerscan/internal/monitoring"
)

// maxRangeSamples bounds the per-interval list of frame range means so
// the stats collector cannot grow without limit between log calls.
const maxRangeSamples = 4096

// SessionStats tracks acquisition counters with thread-safe operations.
// The acquisition loop is single-threaded but the HTTP status endpoint
// reads concurrently.
type SessionStats struct {
	mu              sync.Mutex
	frameCount      int64
	slotCounts      [NumLayers]int64
	cloudCount      int64
	timeoutCount    int64
	connectAttempts int64
	sessionCount    int64
	rangeMeans      []float64
	lastReset       time.Time
}

// NewSessionStats creates a stats collector.
func NewSessionStats() *SessionStats {
	return &SessionStats{lastReset: time.Now()}
}

// AddFrame records one classified frame and the mean of its finite
// primary-echo ranges.
func (st *SessionStats) AddFrame(slot Slot, f *ScanFrame) {
	var mean float64
	var n int
	if len(f.Echoes) > 0 {
		for _, r := range f.Echoes[0].Ranges {
			if r >= RangeMin && r <= RangeMax {
				mean += float64(r)
				n++
			}
		}
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.frameCount++
	st.slotCounts[slot]++
	if n > 0 && len(st.rangeMeans) < maxRangeSamples {
		st.rangeMeans = append(st.rangeMeans, mean/float64(n))
	}
}

// AddCloud records one published combined cloud.
func (st *SessionStats) AddCloud() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.cloudCount++
}

// AddTimeout records one scan read failure.
func (st *SessionStats) AddTimeout() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.timeoutCount++
}

// AddConnectAttempt records one connect attempt against the device.
func (st *SessionStats) AddConnectAttempt() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.connectAttempts++
}

// AddSession records one session reaching the measuring state.
func (st *SessionStats) AddSession() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessionCount++
}

// Snapshot is a point-in-time copy of the counters for the status
// endpoint.
type Snapshot struct {
	Frames          int64            `json:"frames"`
	SlotFrames      [NumLayers]int64 `json:"slot_frames"`
	Clouds          int64            `json:"clouds"`
	Timeouts        int64            `json:"timeouts"`
	ConnectAttempts int64            `json:"connect_attempts"`
	Sessions        int64            `json:"sessions"`
	RangeMean       float64          `json:"range_mean_m"`
	RangeStdDev     float64          `json:"range_stddev_m"`
}

// GetSnapshot returns current counters without resetting them.
func (st *SessionStats) GetSnapshot() Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snapshotLocked()
}

func (st *SessionStats) snapshotLocked() Snapshot {
	s := Snapshot{
		Frames:          st.frameCount,
		SlotFrames:      st.slotCounts,
		Clouds:          st.cloudCount,
		Timeouts:        st.timeoutCount,
		ConnectAttempts: st.connectAttempts,
		Sessions:        st.sessionCount,
	}
	if len(st.rangeMeans) > 0 {
		s.RangeMean = stat.Mean(st.rangeMeans, nil)
	}
	// StdDev needs at least two samples to be finite.
	if len(st.rangeMeans) > 1 {
		s.RangeStdDev = stat.StdDev(st.rangeMeans, nil)
	}
	return s
}

// LogStats logs a one-line summary and resets the interval range
// samples. Cumulative counters are left running.
func (st *SessionStats) LogStats() {
	st.mu.Lock()
	s := st.snapshotLocked()
	elapsed := time.Since(st.lastReset)
	st.rangeMeans = st.rangeMeans[:0]
	st.lastReset = time.Now()
	st.mu.Unlock()

	monitoring.Logf(
		"scan stats: frames=%d (by slot %v) clouds=%d timeouts=%d connects=%d sessions=%d range_mean=%.2fm range_stddev=%.2f interval=%s",
		s.Frames, s.SlotFrames, s.Clouds, s.Timeouts, s.ConnectAttempts, s.Sessions,
		s.RangeMean, s.RangeStdDev, elapsed.Round(time.Second),
	)
}
