// Package colaa implements the ASCII variant of the device's command
// protocol over TCP. It provides the real DeviceLink used by the scan
// bridge: session commands are request/reply telegrams, and continuous
// scan output arrives as unsolicited scan-data telegrams decoded into
// ScanFrames.
//
// TELEGRAM FRAMING:
// Every telegram is wrapped in a single STX (0x02) byte and terminated
// by ETX (0x03). The payload is a space-separated list of ASCII fields;
// numeric fields are unsigned hexadecimal, with 32-bit two's complement
// for signed angles and IEEE-754 bit patterns for scale factors.
package colaa

import (
	"bufio"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	stx = 0x02
	etx = 0x03
)

// frameTelegram wraps a payload in STX/ETX framing.
func frameTelegram(payload string) []byte {
	buf := make([]byte, 0, len(payload)+2)
	buf = append(buf, stx)
	buf = append(buf, payload...)
	buf = append(buf, etx)
	return buf
}

// readTelegram reads the next telegram payload from r, stripping the
// framing bytes. Garbage before the STX is discarded.
func readTelegram(r *bufio.Reader) (string, error) {
	raw, err := r.ReadBytes(etx)
	if err != nil {
		return "", err
	}
	raw = raw[:len(raw)-1]
	if i := strings.IndexByte(string(raw), stx); i >= 0 {
		raw = raw[i+1:]
	}
	return string(raw), nil
}

// fieldReader walks the space-separated fields of one telegram payload.
type fieldReader struct {
	fields []string
	pos    int
}

func newFieldReader(payload string) *fieldReader {
	return &fieldReader{fields: strings.Fields(payload)}
}

func (r *fieldReader) remaining() int {
	return len(r.fields) - r.pos
}

func (r *fieldReader) next() (string, error) {
	if r.pos >= len(r.fields) {
		return "", fmt.Errorf("telegram truncated at field %d", r.pos)
	}
	f := r.fields[r.pos]
	r.pos++
	return f, nil
}

func (r *fieldReader) skip(n int) error {
	if r.pos+n > len(r.fields) {
		return fmt.Errorf("telegram truncated skipping %d fields at %d", n, r.pos)
	}
	r.pos += n
	return nil
}

// uint parses the next field as unsigned hex of at most bits width.
func (r *fieldReader) uint(bits int) (uint64, error) {
	f, err := r.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(f, 16, bits)
	if err != nil {
		return 0, fmt.Errorf("field %d %q: %w", r.pos-1, f, err)
	}
	return v, nil
}

// int32 parses the next field as 32-bit two's complement hex.
func (r *fieldReader) int32() (int32, error) {
	v, err := r.uint(32)
	if err != nil {
		return 0, err
	}
	return int32(uint32(v)), nil
}

// float32 parses the next field as an IEEE-754 bit pattern.
func (r *fieldReader) float32() (float32, error) {
	v, err := r.uint(32)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(v)), nil
}
