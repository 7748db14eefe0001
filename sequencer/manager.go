package sequencer

import (
	"context"
	"errors"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"

	"go-epg/debug"
	"go-epg/midi"
	"go-epg/project"
)

// ErrStopped is returned by Call once the run loop has exited
var ErrStopped = errors.New("sequencer: manager stopped")

// Saver persists project snapshots. *project.Store implements it.
type Saver interface {
	Save(p *project.Project) (string, error)
}

// Intervals of the run loop
const (
	tickInterval = time.Millisecond
	uiFPS        = 30

	// maxCatchUp bounds the wall time replayed in one tick. Anything
	// beyond it (sleep, debugger pause) is dropped instead of played.
	maxCatchUp = 50 * time.Millisecond
)

// Manager runs a Session on one goroutine. MIDI input and commands from
// other goroutines reach the session only through its mailboxes.
type Manager struct {
	session *Session
	saver   Saver

	autoSave time.Duration
	input    chan midi.Raw
	commands chan func(*Session)
	done     chan struct{}

	mu       sync.RWMutex
	state    State
	lastSave time.Time
	saveErr  error

	// Notify TUI of updates
	UpdateChan chan struct{}

	logger *charmlog.Logger
}

// NewManager wraps s. saver may be nil to disable auto-save.
func NewManager(s *Session, saver Saver, autoSave time.Duration) *Manager {
	m := &Manager{
		session:    s,
		saver:      saver,
		autoSave:   autoSave,
		input:      make(chan midi.Raw, 256),
		commands:   make(chan func(*Session), 32),
		done:       make(chan struct{}),
		UpdateChan: make(chan struct{}, 1),
		logger:     debug.Logger("manager"),
	}
	m.state = s.State()
	return m
}

// Input is the mailbox MIDI listeners write raw messages to
func (m *Manager) Input() chan<- midi.Raw {
	return m.input
}

// Do queues fn to run on the session goroutine. It does not wait for fn.
func (m *Manager) Do(fn func(*Session)) {
	select {
	case m.commands <- fn:
	case <-m.done:
	}
}

// Call runs fn on the session goroutine and waits for it to finish
func (m *Manager) Call(ctx context.Context, fn func(*Session)) error {
	finished := make(chan struct{})
	wrapped := func(s *Session) {
		defer close(finished)
		fn(s)
	}
	select {
	case m.commands <- wrapped:
	case <-m.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-m.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the latest snapshot published by the run loop
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Run owns the session until ctx is cancelled. The transport advances by
// wall-clock time while playing; a final save is made on exit.
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.done)

	ticker := time.NewTicker(tickInterval)
	uiTicker := time.NewTicker(time.Second / uiFPS)
	defer ticker.Stop()
	defer uiTicker.Stop()

	var saveC <-chan time.Time
	if m.saver != nil && m.autoSave > 0 {
		saveTicker := time.NewTicker(m.autoSave)
		defer saveTicker.Stop()
		saveC = saveTicker.C
	}

	last := time.Now()
	var elapsed time.Duration
	wasPlaying := m.session.Playing()

	for {
		select {
		case <-ctx.Done():
			m.session.Stop()
			m.flushSave()
			m.publish()
			return nil

		case raw := <-m.input:
			m.session.HandleMIDI(raw.Data)

		case fn := <-m.commands:
			fn(m.session)

		case now := <-ticker.C:
			playing := m.session.Playing()
			if playing && !wasPlaying {
				elapsed = 0
			} else if playing {
				elapsed = m.advance(elapsed + now.Sub(last))
			}
			wasPlaying = playing
			last = now

		case <-saveC:
			m.flushSave()

		case <-uiTicker.C:
			m.publish()
		}
	}
}

// advance plays the whole ticks in elapsed and returns the remainder.
// A lag above maxCatchUp is cut down to it first.
func (m *Manager) advance(elapsed time.Duration) time.Duration {
	if elapsed > maxCatchUp {
		m.logger.Warn("transport fell behind, skipping", "lag", elapsed, "skipped", elapsed-maxCatchUp)
		elapsed = maxCatchUp
	}
	clock := m.session.Clock()
	if ticks := clock.Ticks(elapsed); ticks > 0 {
		m.session.Advance(ticks)
		elapsed -= time.Duration(ticks) * clock.TickDuration()
	}
	return elapsed
}

// flushSave writes a snapshot if the session changed since the last one
func (m *Manager) flushSave() {
	if m.saver == nil || !m.session.Dirty() {
		return
	}
	start := time.Now()
	filename, err := m.saver.Save(m.session.Snapshot())

	m.mu.Lock()
	m.saveErr = err
	if err == nil {
		m.lastSave = start
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("auto-save failed", "err", err)
		return
	}
	m.session.ClearDirty()
	debug.Log("save", "wrote %s in %v", filename, debug.Since(start))
}

// publish copies the session state for readers and wakes the TUI
func (m *Manager) publish() {
	st := m.session.State()

	m.mu.Lock()
	st.LastSave = m.lastSave
	if m.saveErr != nil {
		st.Err = m.saveErr
	}
	m.state = st
	m.mu.Unlock()

	select {
	case m.UpdateChan <- struct{}{}:
	default:
	}
}
