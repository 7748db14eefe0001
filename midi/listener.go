package midi

import (
	"fmt"
	"sync/atomic"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Raw is a MIDI message as received, tagged with the port it came from.
type Raw struct {
	Port string
	Data []byte
}

// Listener forwards every message from an input port into a channel.
// The gomidi callback never blocks: when the channel is full the message is dropped and counted.
type Listener struct {
	id       string
	inPort   drivers.In
	stopFunc func()
	out      chan<- Raw
	dropped  atomic.Uint64
}

// NewListener starts listening on inPort and sends messages to out.
func NewListener(id string, inPort drivers.In, out chan<- Raw) (*Listener, error) {
	l := &Listener{
		id:     id,
		inPort: inPort,
		out:    out,
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			l.deliver(msg)
		})
		if err != nil {
			return nil, fmt.Errorf("open input %s: %w", id, err)
		}
		l.stopFunc = stop
	}

	return l, nil
}

func (l *Listener) deliver(msg []byte) {
	data := make([]byte, len(msg))
	copy(data, msg)
	select {
	case l.out <- Raw{Port: l.id, Data: data}:
	default:
		l.dropped.Add(1)
	}
}

func (l *Listener) ID() string {
	return l.id
}

// Dropped returns how many messages were discarded because the mailbox was full.
func (l *Listener) Dropped() uint64 {
	return l.dropped.Load()
}

func (l *Listener) Close() error {
	if l.stopFunc != nil {
		l.stopFunc()
		l.stopFunc = nil
	}
	return nil
}
