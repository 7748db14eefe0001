package midi

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// PortEvent is emitted when a watched input port appears or disappears
type PortEvent struct {
	Type PortEventType
	Name string
	In   drivers.In
}

type PortEventType int

const (
	PortConnected PortEventType = iota
	PortDisconnected
)

// PortWatcher polls for input ports whose names match one of the wanted names
type PortWatcher struct {
	wanted   []string
	seen     map[string]drivers.In
	mu       sync.RWMutex
	events   chan PortEvent
	pollRate time.Duration

	// list is swapped in tests
	list func() []drivers.In
}

// NewPortWatcher watches for ports containing any of names (case-insensitive)
func NewPortWatcher(names []string) *PortWatcher {
	return &PortWatcher{
		wanted:   names,
		seen:     make(map[string]drivers.In),
		events:   make(chan PortEvent, 16),
		pollRate: time.Second,
		list:     listInPorts,
	}
}

// listInPorts asks the driver for ports with a timeout (CoreMIDI can hang)
func listInPorts() []drivers.In {
	ch := make(chan []drivers.In, 1)
	go func() {
		ch <- gomidi.GetInPorts()
	}()
	select {
	case ins := <-ch:
		return ins
	case <-time.After(3 * time.Second):
		return nil
	}
}

// Events returns a channel of port connect/disconnect events
func (w *PortWatcher) Events() <-chan PortEvent {
	return w.events
}

// Connected returns the names of currently present ports
func (w *PortWatcher) Connected() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	names := make([]string, 0, len(w.seen))
	for name := range w.seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run starts the polling loop (blocking - run in goroutine)
func (w *PortWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollRate)
	defer ticker.Stop()

	w.scan()

	for {
		select {
		case <-ctx.Done():
			close(w.events)
			return
		case <-ticker.C:
			w.scan()
		}
	}
}

func (w *PortWatcher) matches(name string) bool {
	name = strings.ToLower(name)
	for _, want := range w.wanted {
		if want != "" && strings.Contains(name, strings.ToLower(want)) {
			return true
		}
	}
	return false
}

func (w *PortWatcher) scan() {
	present := make(map[string]drivers.In)
	for _, in := range w.list() {
		if w.matches(in.String()) {
			present[in.String()] = in
		}
	}

	w.mu.Lock()
	var events []PortEvent
	for name, in := range present {
		if _, ok := w.seen[name]; !ok {
			w.seen[name] = in
			events = append(events, PortEvent{Type: PortConnected, Name: name, In: in})
		}
	}
	for name := range w.seen {
		if _, ok := present[name]; !ok {
			delete(w.seen, name)
			events = append(events, PortEvent{Type: PortDisconnected, Name: name})
		}
	}
	w.mu.Unlock()

	for _, e := range events {
		w.events <- e
	}
}
