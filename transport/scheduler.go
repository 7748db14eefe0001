// Package transport advances the tick clock and drives pattern playback.
package transport

import (
	"time"

	charmlog "github.com/charmbracelet/log"

	"go-epg/debug"
	"go-epg/pattern"
)

// Patterns is what the scheduler drives every tick
type Patterns interface {
	Scan(queue []pattern.Scheduled)
	Run(transportPosition int64)
}

// Clock converts between wall time and ticks
type Clock struct {
	PPQN int
	BPM  int
}

// TickDuration is the wall-clock length of one tick
func (c Clock) TickDuration() time.Duration {
	if c.PPQN <= 0 || c.BPM <= 0 {
		return 0
	}
	return time.Minute / time.Duration(c.BPM*c.PPQN)
}

// Ticks converts d to whole ticks
func (c Clock) Ticks(d time.Duration) int64 {
	td := c.TickDuration()
	if td <= 0 {
		return 0
	}
	return int64(d / td)
}

// Scheduler owns only the tick counter and the lookahead buffer
type Scheduler struct {
	arrangement *Arrangement
	patterns    Patterns
	logger      *charmlog.Logger

	tick      int64
	lookahead []pattern.Scheduled
}

// NewScheduler creates a scheduler reading steps from arrangement and driving patterns
func NewScheduler(arrangement *Arrangement, patterns Patterns, logger *charmlog.Logger) *Scheduler {
	if logger == nil {
		logger = debug.Logger("transport")
	}
	return &Scheduler{
		arrangement: arrangement,
		patterns:    patterns,
		logger:      logger,
	}
}

// Tick returns the current transport position
func (s *Scheduler) Tick() int64 {
	return s.tick
}

// Lookahead returns the queue built by the last Advance
func (s *Scheduler) Lookahead() []pattern.Scheduled {
	return append([]pattern.Scheduled(nil), s.lookahead...)
}

// Reset rewinds to tick 0 and clears the lookahead
func (s *Scheduler) Reset() {
	s.tick = 0
	s.lookahead = s.lookahead[:0]
	s.patterns.Run(0)
}

// Advance moves the transport forward by ticks. Every step starting in the
// window [old, old+ticks) is queued, handed to Scan and then Run is called
// with the new position. The pulses (velocity > 0) of the window are returned.
func (s *Scheduler) Advance(ticks int64) []pattern.Scheduled {
	if ticks <= 0 {
		return nil
	}
	from := s.tick
	to := from + ticks

	s.lookahead = s.arrangement.Window(s.lookahead[:0], from, to)
	s.patterns.Scan(s.lookahead)
	s.tick = to
	s.patterns.Run(to)

	var triggered []pattern.Scheduled
	for _, e := range s.lookahead {
		if e.Step.Velocity > 0 {
			triggered = append(triggered, e)
		}
	}
	if len(triggered) > 0 {
		debug.LogEvery(64, "transport", "window [%d,%d) queued=%d triggered=%d", from, to, len(s.lookahead), len(triggered))
	}
	return triggered
}

// AdvanceTo moves the transport to target; targets behind the current tick are ignored
func (s *Scheduler) AdvanceTo(target int64) []pattern.Scheduled {
	return s.Advance(target - s.tick)
}
