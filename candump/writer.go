package candump

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/brutella/can"
)

const (
	// BaseTimestamp is the epoch second the first frame is stamped with.
	BaseTimestamp = 1706000000.0
	// DefaultInterface is the SocketCAN interface written into each line.
	DefaultInterface = "vcan0"

	// ExtendedFlag marks a 29 bit identifier in Frame.ID, as SocketCAN does.
	ExtendedFlag uint32 = 0x80000000
	extendedMask uint32 = 0x1FFFFFFF
	standardMask uint32 = 0x7FF
)

// NewFrame packs data into a classic CAN frame.
func NewFrame(id uint32, extended bool, data []byte) can.Frame {
	var payload [maxPayload]uint8
	n := copy(payload[:], data)
	if extended {
		id = id&extendedMask | ExtendedFlag
	} else {
		id &= standardMask
	}
	return can.Frame{ID: id, Length: uint8(n), Data: payload}
}

// FormatFrame renders one candump log line without the trailing newline:
// "(1706000000.000000) vcan0 123#DEADBEEF".
func FormatFrame(ts float64, iface string, f can.Frame) string {
	var id string
	if f.ID&ExtendedFlag != 0 {
		id = fmt.Sprintf("%08X", f.ID&extendedMask)
	} else {
		id = fmt.Sprintf("%03X", f.ID&standardMask)
	}
	return fmt.Sprintf("(%.6f) %s %s#%s", ts, iface, id, strings.ToUpper(hex.EncodeToString(f.Data[:f.Length])))
}

// ParseLine reads a line produced by FormatFrame.
func ParseLine(line string) (ts float64, iface string, f can.Frame, err error) {
	fields := strings.Fields(line)
	if len(fields) != 3 || !strings.HasPrefix(fields[0], "(") || !strings.HasSuffix(fields[0], ")") {
		return 0, "", f, fmt.Errorf("malformed candump line %q", line)
	}
	ts, err = strconv.ParseFloat(strings.Trim(fields[0], "()"), 64)
	if err != nil {
		return 0, "", f, fmt.Errorf("timestamp: %w", err)
	}
	idHex, dataHex, ok := strings.Cut(fields[2], "#")
	if !ok {
		return 0, "", f, fmt.Errorf("missing '#' in %q", fields[2])
	}
	id, err := strconv.ParseUint(idHex, 16, 32)
	if err != nil {
		return 0, "", f, fmt.Errorf("id: %w", err)
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return 0, "", f, fmt.Errorf("data: %w", err)
	}
	if len(data) > maxPayload {
		return 0, "", f, fmt.Errorf("data length %d exceeds %d", len(data), maxPayload)
	}
	return ts, fields[1], NewFrame(uint32(id), len(idHex) > 3, data), nil
}

// Writer appends candump log lines to an underlying stream.
type Writer struct {
	w     *bufio.Writer
	iface string
	lines int
}

// NewWriter writes lines tagged with iface. An empty iface uses vcan0.
func NewWriter(w io.Writer, iface string) *Writer {
	if iface == "" {
		iface = DefaultInterface
	}
	return &Writer{w: bufio.NewWriter(w), iface: iface}
}

// WriteFrame writes one frame stamped ts seconds since the epoch.
func (w *Writer) WriteFrame(ts float64, f can.Frame) error {
	if _, err := w.w.WriteString(FormatFrame(ts, w.iface, f) + "\n"); err != nil {
		return err
	}
	w.lines++
	return nil
}

// Lines returns how many frames were written.
func (w *Writer) Lines() int { return w.lines }

// Flush writes buffered lines to the underlying stream.
func (w *Writer) Flush() error { return w.w.Flush() }
