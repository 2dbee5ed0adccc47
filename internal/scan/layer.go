package scan

import "fmt"

// Slot is a canonical row index for one layer of the combined cloud.
// The device interleaves layers in the fixed sweep order Layer2,
// Layer3, Layer1, Layer4; slot 0 marks the start of a cycle and slot 3
// its end.
type Slot int

const (
	SlotFirst Slot = 0
	SlotLast  Slot = NumLayers - 1
)

// slotLayerNumbers maps a slot to the device layer number used in the
// output channel names.
var slotLayerNumbers = [NumLayers]int{2, 3, 1, 4}

// SlotFor maps a layer angle code to its canonical cloud row. Unknown
// codes map to slot 0, matching the device driver this bridge replaces;
// a malformed header therefore overwrites row 0 rather than dropping
// the frame (see DESIGN.md).
func SlotFor(id LayerID) Slot {
	switch id {
	case Layer2:
		return 0
	case Layer3:
		return 1
	case Layer1:
		return 2
	case Layer4:
		return 3
	}
	return 0
}

// ScanChannel returns the single-echo output channel name for a slot.
func ScanChannel(s Slot) string {
	return fmt.Sprintf("scan_layer_%d", slotLayerNumbers[s])
}

// MultiEchoChannel returns the multi-echo output channel name for a slot.
func MultiEchoChannel(s Slot) string {
	return ScanChannel(s) + "_multi"
}

// CloudChannel is the output channel name for the combined cloud.
const CloudChannel = "cloud"
