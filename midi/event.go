package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
	CC      uint8 = 0xB0
)

// Event is a MIDI event flowing through the processor network.
// Channel is 0-based as on the wire.
type Event struct {
	Tick     int64 // absolute transport tick
	Type     uint8 // NoteOn, NoteOff, CC
	Channel  uint8
	Note     uint8 // note or controller number
	Velocity uint8 // velocity or controller value
	Duration int64 // note length in ticks, NoteOn only
}

// Message encodes e as a gomidi message. Unknown types yield nil.
func (e Event) Message() gomidi.Message {
	ch := e.Channel & 0x0F
	switch e.Type {
	case NoteOn:
		return gomidi.NoteOn(ch, e.Note, e.Velocity)
	case NoteOff:
		return gomidi.NoteOff(ch, e.Note)
	case CC:
		return gomidi.ControlChange(ch, e.Note, e.Velocity)
	}
	return nil
}

func (e Event) String() string {
	var kind string
	switch e.Type {
	case NoteOn:
		kind = "on"
	case NoteOff:
		kind = "off"
	case CC:
		kind = "cc"
	default:
		kind = fmt.Sprintf("0x%02X", e.Type)
	}
	return fmt.Sprintf("%s ch=%d n=%d v=%d @%d", kind, e.Channel+1, e.Note, e.Velocity, e.Tick)
}

// ControlChange is a decoded CC message with a 1-based channel.
type ControlChange struct {
	Channel    uint8 // 1-16
	Controller uint8 // 0-127
	Value      uint8 // 0-127
}

// Normalized maps Value onto [0,1].
func (c ControlChange) Normalized() float64 {
	return float64(c.Value) / 127
}

// ParseCC decodes raw bytes as a Control Change message.
// Anything else, including truncated or malformed input, reports false.
func ParseCC(data []byte) (ControlChange, bool) {
	if len(data) < 3 || data[0]>>4 != 0xB {
		return ControlChange{}, false
	}
	var ch, cc, val uint8
	if !gomidi.Message(data[:3]).GetControlChange(&ch, &cc, &val) {
		return ControlChange{}, false
	}
	return ControlChange{Channel: ch + 1, Controller: cc, Value: val}, true
}
