package transport

import (
	"go-epg/pattern"
)

// Track is the step list of one pattern, looped every Duration ticks
type Track struct {
	Steps    []pattern.Step
	Duration int64
}

// Arrangement holds one track per pattern, in pattern order
type Arrangement struct {
	tracks []Track
}

func NewArrangement() *Arrangement {
	return &Arrangement{}
}

func (a *Arrangement) CreateTrack() {
	a.tracks = append(a.tracks, Track{})
}

// UpdateTrack replaces the steps of track i; unknown tracks are ignored
func (a *Arrangement) UpdateTrack(i int, steps []pattern.Step, duration int64) {
	if i < 0 || i >= len(a.tracks) {
		return
	}
	a.tracks[i] = Track{
		Steps:    append([]pattern.Step(nil), steps...),
		Duration: duration,
	}
}

func (a *Arrangement) DeleteTrack(i int) {
	if i < 0 || i >= len(a.tracks) {
		return
	}
	a.tracks = append(a.tracks[:i], a.tracks[i+1:]...)
}

func (a *Arrangement) Reset() {
	a.tracks = nil
}

func (a *Arrangement) Len() int {
	return len(a.tracks)
}

// Track returns track i
func (a *Arrangement) Track(i int) (Track, bool) {
	if i < 0 || i >= len(a.tracks) {
		return Track{}, false
	}
	return a.tracks[i], true
}

// Window appends to dst every step occurrence whose absolute start lies in
// [from, to), ordered by tick and then track.
func (a *Arrangement) Window(dst []pattern.Scheduled, from, to int64) []pattern.Scheduled {
	start := len(dst)
	for ti, tr := range a.tracks {
		if tr.Duration <= 0 {
			continue
		}
		for _, st := range tr.Steps {
			// first loop k with k*Duration + st.Start >= from
			k := ceilDiv(from-st.Start, tr.Duration)
			for tick := k*tr.Duration + st.Start; tick < to; tick += tr.Duration {
				dst = append(dst, pattern.Scheduled{Track: ti, Tick: tick, Step: st})
			}
		}
	}
	sortScheduled(dst[start:])
	return dst
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a > 0) == (b > 0) {
		q++
	}
	return q
}

// sortScheduled is an insertion sort; windows hold a handful of events
func sortScheduled(s []pattern.Scheduled) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && less(s[j], s[j-1]); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func less(a, b pattern.Scheduled) bool {
	if a.Tick != b.Tick {
		return a.Tick < b.Tick
	}
	return a.Track < b.Track
}
