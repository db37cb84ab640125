// Package candump turns a DBC signal catalog into a replayable candump log.
// Every signal gets a waveform chosen from its name and unit, values are
// quantised to the signal resolution and encoded into classic CAN frames.
package candump

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	einride "go.einride.tech/can"
	"go.einride.tech/can/pkg/dbc"
	"go.einride.tech/can/pkg/descriptor"
)

const (
	// maxPayload is the classic CAN data length.
	maxPayload = 8
	// cycleTimeAttribute is the message attribute carrying the send period in ms.
	cycleTimeAttribute = "GenMsgCycleTime"
	independentSignals = "VECTOR__INDEPENDENT_SIG_MSG"
)

// Catalog is the set of messages parsed from a DBC file.
type Catalog struct {
	Messages []*Message
	// Skipped lists messages that cannot be emitted as classic CAN frames.
	Skipped []string
}

// Message is one CAN frame definition.
type Message struct {
	ID        uint32
	Name      string
	Length    uint8
	Extended  bool
	CycleTime time.Duration
	Signals   []*Signal
}

// Signal is one physical value packed into a message.
type Signal struct {
	Name string
	Unit string
	// Min and Max bound every emitted physical value: the declared range
	// intersected with what the raw bit field can represent.
	Min  float64
	Max  float64
	Role Role

	desc *descriptor.Signal
}

// LoadCatalog reads and parses a DBC file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dbc: %w", err)
	}
	return ParseCatalog(path, data)
}

// ParseCatalog parses DBC text. name is only used in error positions.
func ParseCatalog(name string, data []byte) (*Catalog, error) {
	p := dbc.NewParser(name, data)
	if err := p.Parse(); err != nil {
		return nil, fmt.Errorf("parse dbc %s: %w", name, err)
	}
	cycles := map[dbc.MessageID]time.Duration{}
	var defs []*dbc.MessageDef
	for _, def := range p.Defs() {
		switch d := def.(type) {
		case *dbc.MessageDef:
			defs = append(defs, d)
		case *dbc.AttributeValueForObjectDef:
			if string(d.AttributeName) != cycleTimeAttribute || d.ObjectType != dbc.ObjectTypeMessage {
				continue
			}
			ms := float64(d.IntValue)
			if ms == 0 {
				ms = d.FloatValue
			}
			if ms > 0 {
				cycles[d.MessageID] = time.Duration(ms * float64(time.Millisecond))
			}
		}
	}

	cat := &Catalog{}
	for _, d := range defs {
		if string(d.Name) == independentSignals {
			continue
		}
		msg, err := newMessage(d, cycles[d.MessageID])
		if err != nil {
			cat.Skipped = append(cat.Skipped, fmt.Sprintf("%s: %v", d.Name, err))
			continue
		}
		cat.Messages = append(cat.Messages, msg)
	}
	return cat, nil
}

func newMessage(d *dbc.MessageDef, cycle time.Duration) (*Message, error) {
	if d.Size > maxPayload {
		return nil, fmt.Errorf("payload of %d bytes exceeds classic CAN", d.Size)
	}
	msg := &Message{
		ID:        d.MessageID.ToCAN(),
		Name:      string(d.Name),
		Length:    uint8(d.Size),
		Extended:  d.MessageID.IsExtended(),
		CycleTime: cycle,
	}
	for i := range d.Signals {
		s, err := newSignal(&d.Signals[i], msg.Length)
		if err != nil {
			return nil, err
		}
		msg.Signals = append(msg.Signals, s)
	}
	return msg, nil
}

func newSignal(sd *dbc.SignalDef, length uint8) (*Signal, error) {
	if sd.Size == 0 || sd.Size > 64 {
		return nil, fmt.Errorf("signal %s: invalid length %d", sd.Name, sd.Size)
	}
	scale := sd.Factor
	if scale == 0 {
		scale = 1
	}
	desc := &descriptor.Signal{
		Name:        string(sd.Name),
		Start:       uint8(sd.StartBit),
		Length:      uint8(sd.Size),
		IsBigEndian: sd.IsBigEndian,
		IsSigned:    sd.IsSigned,
		Offset:      sd.Offset,
		Scale:       scale,
		Min:         sd.Minimum,
		Max:         sd.Maximum,
		Unit:        sd.Unit,
	}
	if !fits(desc, length) {
		return nil, fmt.Errorf("signal %s: bits %d..+%d do not fit %d bytes", sd.Name, sd.StartBit, sd.Size, length)
	}
	s := &Signal{Name: desc.Name, Unit: desc.Unit, desc: desc}
	s.Min, s.Max = s.bounds()
	s.Role = DetectRole(s.Name, s.Unit)
	return s, nil
}

// fits reports whether the bit field lies inside a payload of length bytes.
// Big endian start bits follow the DBC convention of naming the MSB.
func fits(d *descriptor.Signal, length uint8) bool {
	limit := int(length) * 8
	if !d.IsBigEndian {
		return int(d.Start)+int(d.Length) <= limit
	}
	msb := int(d.Start)/8*8 + (7 - int(d.Start)%8)
	return msb+int(d.Length) <= limit
}

// rawRange returns the representable raw values. For 64 bit fields the
// upper bound is the largest float64 that still converts to the integer type.
func (s *Signal) rawRange() (lo, hi float64) {
	n := s.desc.Length
	if s.desc.IsSigned {
		if n >= 64 {
			return math.MinInt64, math.Nextafter(math.MaxInt64, 0)
		}
		return -float64(int64(1) << (n - 1)), float64(int64(1)<<(n-1) - 1)
	}
	if n >= 64 {
		return 0, math.Nextafter(math.MaxUint64, 0)
	}
	return 0, float64(uint64(1)<<n - 1)
}

// bounds intersects the declared range with the representable one. A
// declared [0|0] range means unspecified.
func (s *Signal) bounds() (lo, hi float64) {
	rlo, rhi := s.rawRange()
	lo = s.desc.Offset + rlo*s.desc.Scale
	hi = s.desc.Offset + rhi*s.desc.Scale
	if lo > hi {
		lo, hi = hi, lo
	}
	if s.desc.Min == 0 && s.desc.Max == 0 {
		return lo, hi
	}
	dlo, dhi := s.desc.Min, s.desc.Max
	if dlo > dhi {
		dlo, dhi = dhi, dlo
	}
	clo, chi := math.Max(lo, dlo), math.Min(hi, dhi)
	if clo > chi {
		return lo, hi
	}
	return clo, chi
}

// Resolution is the physical value of one raw step.
func (s *Signal) Resolution() float64 { return math.Abs(s.desc.Scale) }

// Descriptor exposes the encoding descriptor.
func (s *Signal) Descriptor() *descriptor.Signal { return s.desc }

// Quantize returns the raw value nearest to v whose physical value lies
// within [Min, Max], together with that physical value.
func (s *Signal) Quantize(v float64) (raw, physical float64) {
	v = math.Max(s.Min, math.Min(s.Max, v))
	off, scale := s.desc.Offset, s.desc.Scale
	raw = math.Round((v - off) / scale)
	eps := 1e-9 * math.Max(1, math.Abs(scale))
	for _, r := range []float64{raw, raw - 1, raw + 1} {
		p := off + r*scale
		if p >= s.Min-eps && p <= s.Max+eps {
			return r, p
		}
	}
	return raw, off + raw*scale
}

// Encode writes v into data and returns the physical value actually encoded.
func (s *Signal) Encode(data *einride.Data, v float64) float64 {
	raw, physical := s.Quantize(v)
	rlo, rhi := s.rawRange()
	raw = math.Max(rlo, math.Min(rhi, raw))
	if s.desc.IsSigned {
		s.desc.MarshalSigned(data, int64(raw))
	} else {
		s.desc.MarshalUnsigned(data, uint64(raw))
	}
	return physical
}

// Decode reads the physical value of s from data. Scale and offset apply
// to every length, single bit fields included.
func (s *Signal) Decode(data einride.Data) float64 {
	var raw float64
	if s.desc.IsSigned {
		raw = float64(s.desc.UnmarshalSigned(data))
	} else {
		raw = float64(s.desc.UnmarshalUnsigned(data))
	}
	return s.desc.Offset + raw*s.desc.Scale
}

// RateHz derives the generation rate from the cycle time, defaulting to
// 20 Hz and clamped to [1, 100] Hz.
func (m *Message) RateHz() float64 {
	rate := defaultRateHz
	if m.CycleTime > 0 {
		rate = float64(time.Second) / float64(m.CycleTime)
	}
	return math.Max(minRateHz, math.Min(maxRateHz, rate))
}

// Encode packs values by signal name. Missing signals are encoded as their
// lower bound.
func (m *Message) Encode(values map[string]float64) einride.Data {
	var data einride.Data
	for _, s := range m.Signals {
		v, ok := values[s.Name]
		if !ok {
			v = s.Min
		}
		s.Encode(&data, v)
	}
	return data
}

// Signal returns the named signal.
func (m *Message) Signal(name string) (*Signal, bool) {
	for _, s := range m.Signals {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return nil, false
}

// Message returns the named message.
func (c *Catalog) Message(name string) (*Message, bool) {
	for _, m := range c.Messages {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}
