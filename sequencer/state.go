package sequencer

import (
	"strconv"
	"time"

	"go-epg/param"
	"go-epg/remote"
)

// State is a read-only copy of the session for views
type State struct {
	Name     string
	Playing  bool
	BPM      int
	Tick     int64
	Learning bool
	Selected int

	Patterns    []PatternState
	Assignments []AssignmentState
	Stats       remote.Stats

	LastSave time.Time
	Err      error
}

// PatternState is one pattern as shown in a view
type PatternState struct {
	Name     string
	Steps    int
	Pulses   int
	Rotation int
	Channel  int
	Euclid   []bool
	Step     int // playhead step
	IsOn     bool
	Selected bool
	Params   []ParamState
}

// ParamState is one parameter of a pattern node
type ParamState struct {
	Key     string
	Label   string
	Value   int
	Remote  remote.State
	Binding remote.Binding
}

// AssignmentState is one row of the assignment table
type AssignmentState struct {
	Pattern    string
	Param      string
	Channel    uint8
	Controller uint8
}

// State builds a snapshot of the session
func (s *Session) State() State {
	st := State{
		Name:     s.name,
		Playing:  s.playing,
		BPM:      s.clock.BPM,
		Tick:     s.scheduler.Tick(),
		Learning: s.router.Learning(),
		Selected: s.engine.Selected(),
		Stats:    s.router.Stats(),
		Err:      s.sendErr,
	}

	stepTicks := s.engine.Timing().StepDuration()
	for i, p := range s.engine.Patterns() {
		ps := PatternState{
			Name:     p.Name,
			Steps:    p.Steps,
			Pulses:   p.Pulses,
			Rotation: p.Rotation,
			Channel:  p.Channel,
			Euclid:   p.Euclid,
			IsOn:     p.IsOn,
			Selected: p.Selected,
		}
		if stepTicks > 0 {
			ps.Step = int(p.Position / stepTicks)
		}
		if t, ok := s.Track(i); ok {
			for _, prm := range t.Node.Params() {
				ps.Params = append(ps.Params, paramState(prm))
			}
		}
		st.Patterns = append(st.Patterns, ps)
	}

	for _, a := range s.router.Assignments() {
		as := AssignmentState{Param: a.Param.Key(), Channel: a.Channel, Controller: a.Controller}
		if i := s.patternOf(a.Param); i >= 0 {
			as.Pattern = patternLabel(st.Patterns[i].Name, i)
		}
		st.Assignments = append(st.Assignments, as)
	}
	return st
}

func paramState(p *param.Param) ParamState {
	return ParamState{
		Key:     p.Key(),
		Label:   p.Label(),
		Value:   p.Value(),
		Remote:  p.RemoteState(),
		Binding: p.RemoteData(),
	}
}

func (s *Session) patternOf(p remote.Parameter) int {
	for i, t := range s.tracks {
		for _, prm := range t.Node.Params() {
			if remote.Parameter(prm) == p {
				return i
			}
		}
	}
	return -1
}

func patternLabel(name string, i int) string {
	if name != "" {
		return name
	}
	return "#" + strconv.Itoa(i+1)
}
