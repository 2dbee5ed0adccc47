package colaa

import (
	"fmt"
	"strings"

	"github.com/banshee-data/layerscan/internal/scan"
)

/*
SCAN DATA TELEGRAM LAYOUT (sSN LMDscandata)

Header fields after the answer type and command name, in order:

	version, device number, serial number, status (2 fields),
	telegram counter, scan counter, time since startup (us),
	time of transmission (us), input status (2), output status (2),
	layer angle (centidegrees, two's complement; identifies the layer
	on multi-layer devices), scan frequency (1/100 Hz),
	measurement frequency (100 Hz units), encoder count followed by
	2 fields per encoder

Then the 16-bit measurement channels: a channel count followed by one
block per channel:

	content label (DIST1..DIST3 for ranges in mm, RSSI1..RSSI3 for
	remission), scale factor (IEEE-754 bits), scale offset (IEEE-754
	bits), start angle (1/10000 deg, two's complement), angular step
	(1/10000 deg), sample count, then the samples as 16-bit hex

Trailing blocks (8-bit channels, position, timestamp) are ignored; the
frame is complete once the 16-bit channels are consumed.
*/

// ParseScanData decodes one scan-data telegram payload into a frame.
// DISTn and RSSIn channels with the same index are paired into one
// echo; echoes are ordered by channel index, so the primary return is
// first.
func ParseScanData(payload string) (*scan.ScanFrame, error) {
	r := newFieldReader(payload)
	if err := r.skip(2); err != nil { // sSN LMDscandata
		return nil, err
	}
	// version, device number, serial, status (2), telegram counter,
	// scan counter, time since startup, time of transmission,
	// input status (2), output status (2)
	if err := r.skip(13); err != nil {
		return nil, err
	}

	layer, err := r.uint(16)
	if err != nil {
		return nil, fmt.Errorf("layer angle: %w", err)
	}
	freq, err := r.uint(32)
	if err != nil {
		return nil, fmt.Errorf("scan frequency: %w", err)
	}
	if err := r.skip(1); err != nil { // measurement frequency
		return nil, err
	}

	encoders, err := r.uint(16)
	if err != nil {
		return nil, fmt.Errorf("encoder count: %w", err)
	}
	if err := r.skip(int(encoders) * 2); err != nil {
		return nil, err
	}

	channels, err := r.uint(16)
	if err != nil {
		return nil, fmt.Errorf("channel count: %w", err)
	}
	if channels == 0 {
		return nil, fmt.Errorf("scan data without measurement channels")
	}

	frame := &scan.ScanFrame{
		Layer:         scan.LayerID(layer),
		ScanFrequency: float64(freq),
	}

	for ch := 0; ch < int(channels); ch++ {
		if err := parseChannel(r, frame); err != nil {
			return nil, fmt.Errorf("channel %d: %w", ch, err)
		}
	}
	return frame, nil
}

// parseChannel decodes one 16-bit measurement channel block into the
// frame's echo for the channel's index.
func parseChannel(r *fieldReader, frame *scan.ScanFrame) error {
	content, err := r.next()
	if err != nil {
		return err
	}
	scaleFactor, err := r.float32()
	if err != nil {
		return fmt.Errorf("scale factor: %w", err)
	}
	scaleOffset, err := r.float32()
	if err != nil {
		return fmt.Errorf("scale offset: %w", err)
	}
	startAngle, err := r.int32()
	if err != nil {
		return fmt.Errorf("start angle: %w", err)
	}
	step, err := r.uint(16)
	if err != nil {
		return fmt.Errorf("angular step: %w", err)
	}
	count, err := r.uint(16)
	if err != nil {
		return fmt.Errorf("sample count: %w", err)
	}

	values := make([]float32, int(count))
	for i := range values {
		v, err := r.uint(16)
		if err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
		values[i] = float32(v)*scaleFactor + scaleOffset
	}

	echoIdx, isDist, err := channelIndex(content)
	if err != nil {
		return err
	}
	for len(frame.Echoes) <= echoIdx {
		frame.Echoes = append(frame.Echoes, scan.Echo{})
	}

	if isDist {
		// Ranges arrive in millimeters.
		ranges := make([]float32, len(values))
		for i, v := range values {
			ranges[i] = v / 1000.0
		}
		frame.Echoes[echoIdx].Ranges = ranges
		// Angular fields follow the first range channel.
		if echoIdx == 0 {
			frame.StartAngle = float64(startAngle)
			frame.AngularResolution = float64(step)
			frame.StopAngle = float64(startAngle) + float64(step)*float64(int(count)-1)
		}
	} else {
		frame.Echoes[echoIdx].Intensities = values
	}
	return nil
}

// channelIndex maps a channel content label to its echo index and
// whether it carries ranges (DIST) or remission (RSSI).
func channelIndex(content string) (int, bool, error) {
	var isDist bool
	switch {
	case strings.HasPrefix(content, "DIST"):
		isDist = true
	case strings.HasPrefix(content, "RSSI"):
		isDist = false
	default:
		return 0, false, fmt.Errorf("unknown channel content %q", content)
	}
	if len(content) != 5 || content[4] < '1' || content[4] > '0'+scan.MaxEchoes {
		return 0, false, fmt.Errorf("unsupported channel content %q", content)
	}
	return int(content[4]-'1'), isDist, nil
}
