package sequencer

import (
	"sort"

	charmlog "github.com/charmbracelet/log"

	"go-epg/debug"
	"go-epg/graph"
	"go-epg/midi"
	"go-epg/param"
	"go-epg/pattern"
	"go-epg/project"
	"go-epg/remote"
	"go-epg/transport"
)

// BPM bounds
const (
	MinBPM = 20
	MaxBPM = 300
)

// Sender delivers events to a MIDI out port. *midi.Output implements it.
type Sender interface {
	Send(portName string, events []midi.Event) error
}

// Options configures a Session
type Options struct {
	Name       string
	Timing     pattern.Timing
	BPM        int
	Pitch      uint8
	Sender     Sender
	OutputPort string
	View       remote.View
}

// Session composes the graph, the pattern engine, the transport and the
// remote router of one project. It is not safe for concurrent use; Manager
// runs it on a single goroutine.
type Session struct {
	name  string
	clock transport.Clock

	graph       *graph.Graph
	arrangement *transport.Arrangement
	engine      *pattern.Engine
	scheduler   *transport.Scheduler
	router      *remote.Router

	output *graph.Node
	tracks []*Track

	sender  Sender
	port    string
	pending []midi.Event // note-offs not yet due

	playing bool
	dirty   bool
	sendErr error

	logger *charmlog.Logger
}

// NewSession creates an empty session with a single output node
func NewSession(opts Options) *Session {
	if opts.Timing.PPQN <= 0 || opts.Timing.StepsPerBeat <= 0 {
		opts.Timing = pattern.Timing{PPQN: 480, StepsPerBeat: 4}
	}
	if opts.BPM == 0 {
		opts.BPM = 120
	}
	if opts.Pitch == 0 {
		opts.Pitch = pattern.DefaultPitch
	}

	s := &Session{
		name:   opts.Name,
		clock:  transport.Clock{PPQN: opts.Timing.PPQN, BPM: clampBPM(opts.BPM)},
		sender: opts.Sender,
		port:   opts.OutputPort,
		logger: debug.Logger("session"),
	}
	s.arrangement = transport.NewArrangement()
	s.engine = pattern.NewEngine(opts.Timing, s.arrangement, pattern.AutoSaveFunc(s.markDirty), nil)
	s.engine.SetPitch(opts.Pitch)
	s.engine.SetOnUpdate(s.onPatternUpdate)
	s.scheduler = transport.NewScheduler(s.arrangement, s.engine, nil)

	routerOpts := []remote.Option{remote.WithAutoSave(s.markDirty)}
	if opts.View != nil {
		routerOpts = append(routerOpts, remote.WithView(opts.View))
	}
	s.router = remote.NewRouter(routerOpts...)

	s.graph = graph.New(nil)
	s.output = s.graph.AddNode(graph.KindOutput, "out")
	return s
}

func clampBPM(bpm int) int {
	return max(MinBPM, min(MaxBPM, bpm))
}

func (s *Session) markDirty() { s.dirty = true }

func (s *Session) Name() string                    { return s.name }
func (s *Session) Graph() *graph.Graph             { return s.graph }
func (s *Session) Engine() *pattern.Engine         { return s.engine }
func (s *Session) Router() *remote.Router          { return s.router }
func (s *Session) Scheduler() *transport.Scheduler { return s.scheduler }
func (s *Session) Clock() transport.Clock          { return s.clock }
func (s *Session) Output() *graph.Node             { return s.output }
func (s *Session) Playing() bool                   { return s.playing }

// Dirty reports whether anything worth saving changed since ClearDirty
func (s *Session) Dirty() bool { return s.dirty }
func (s *Session) ClearDirty() { s.dirty = false }

// SendErr returns the last error reported by the sender
func (s *Session) SendErr() error { return s.sendErr }

// Track returns the track of pattern i
func (s *Session) Track(i int) (*Track, bool) {
	if i < 0 || i >= len(s.tracks) {
		return nil, false
	}
	return s.tracks[i], true
}

func (s *Session) trackIndex(t *Track) int {
	for i, tr := range s.tracks {
		if tr == t {
			return i
		}
	}
	return -1
}

func (s *Session) onPatternUpdate(i int) {
	if i < 0 || i >= len(s.tracks) {
		return
	}
	if p, ok := s.engine.Pattern(i); ok {
		s.tracks[i].sync(p)
	}
}

// CreatePattern adds a pattern, its graph node wired to the output, and
// registers the node's parameters for remote control.
func (s *Session) CreatePattern(spec pattern.Spec) int {
	i := s.engine.Create(spec)
	p, _ := s.engine.Pattern(i)
	n := s.graph.AddNode(graph.KindPattern, p.Name, newTrackParams(p)...)
	s.attach(n)
	s.graph.Connect(n.ID(), s.output.ID())
	return i
}

// attach appends a track for n and hooks its parameters to the engine
func (s *Session) attach(n *graph.Node) *Track {
	t := newTrack(n)
	s.tracks = append(s.tracks, t)

	set := func(apply func(i, v int) error) func(*param.Param, int) {
		return func(p *param.Param, v int) {
			i := s.trackIndex(t)
			if i < 0 {
				s.logger.Warn("change on detached track", "param", p.Key(), "value", v)
				return
			}
			if err := apply(i, v); err != nil {
				s.logger.Error("pattern update failed", "param", p.Key(), "value", v, "err", err)
			}
		}
	}
	t.steps.OnChange = set(s.engine.SetSteps)
	t.pulses.OnChange = set(s.engine.SetPulses)
	t.rotation.OnChange = set(s.engine.SetRotation)

	if p, ok := s.engine.Pattern(len(s.tracks) - 1); ok {
		t.sync(p)
	}
	s.router.RegisterProcessor(n)
	return t
}

// DeletePattern removes pattern i with its node and assignments
func (s *Session) DeletePattern(i int) error {
	t, ok := s.Track(i)
	if !ok {
		return pattern.ErrNoPattern
	}
	if err := s.engine.Delete(i); err != nil {
		return err
	}
	s.router.UnregisterProcessor(t.Node)
	s.graph.RemoveNode(t.Node.ID())
	s.tracks = append(s.tracks[:i], s.tracks[i+1:]...)
	return nil
}

// DeleteSelected removes the selected pattern, if any
func (s *Session) DeleteSelected() {
	if i := s.engine.Selected(); i >= 0 {
		s.DeletePattern(i)
	}
}

// SelectNext moves the pattern selection by delta, wrapping around
func (s *Session) SelectNext(delta int) {
	n := s.engine.Len()
	if n == 0 {
		return
	}
	i := s.engine.Selected()
	if i < 0 {
		i = 0
	} else {
		i = ((i+delta)%n + n) % n
	}
	s.engine.Select(i)
}

// AdjustSelected adds delta to a parameter of the selected pattern
func (s *Session) AdjustSelected(key string, delta int) {
	t, ok := s.Track(s.engine.Selected())
	if !ok {
		return
	}
	if p := t.Node.Param(key); p != nil {
		p.Set(p.Value() + delta)
	}
}

// SetBPM changes the tempo, clamped to [MinBPM, MaxBPM]
func (s *Session) SetBPM(bpm int) {
	bpm = clampBPM(bpm)
	if bpm == s.clock.BPM {
		return
	}
	s.clock.BPM = bpm
	s.markDirty()
}

// Play starts the transport from tick 0
func (s *Session) Play() {
	if s.playing {
		return
	}
	s.scheduler.Reset()
	s.playing = true
	s.logger.Info("play", "bpm", s.clock.BPM)
}

// Stop halts the transport, discards queued note-ons and releases held notes
func (s *Session) Stop() {
	if !s.playing {
		return
	}
	s.playing = false
	for _, n := range s.graph.Nodes() {
		n.PullOutput()
	}
	offs := s.pending
	s.pending = nil
	s.send(offs)
	s.logger.Info("stop", "tick", s.scheduler.Tick())
}

// Advance runs the transport for ticks and sends every event that became
// due: note-ons of triggered steps and note-offs of earlier ones.
func (s *Session) Advance(ticks int64) []midi.Event {
	if !s.playing || ticks <= 0 {
		return nil
	}
	for _, e := range s.scheduler.Advance(ticks) {
		t, ok := s.Track(e.Track)
		if !ok {
			continue
		}
		p, _ := s.engine.Pattern(e.Track)
		ch := uint8(p.Channel) & 0x0F
		t.Node.Emit(midi.Event{
			Tick:     e.Tick,
			Type:     midi.NoteOn,
			Channel:  ch,
			Note:     e.Step.Pitch,
			Velocity: e.Step.Velocity,
			Duration: e.Step.Duration,
		})
		s.pending = append(s.pending, midi.Event{
			Tick:    e.Tick + e.Step.Duration,
			Type:    midi.NoteOff,
			Channel: ch,
			Note:    e.Step.Pitch,
		})
	}

	for _, n := range s.graph.Nodes() {
		if n.Kind() == graph.KindThru {
			n.Forward()
		}
	}
	events := s.output.PullOutput()
	events = append(events, s.takeDue(s.scheduler.Tick())...)
	sortEvents(events)
	s.send(events)
	return events
}

// takeDue removes and returns the note-offs with a tick before now
func (s *Session) takeDue(now int64) []midi.Event {
	var due []midi.Event
	kept := s.pending[:0]
	for _, e := range s.pending {
		if e.Tick < now {
			due = append(due, e)
		} else {
			kept = append(kept, e)
		}
	}
	s.pending = kept
	return due
}

// sortEvents orders by tick; at equal ticks note-offs come first so a
// retriggered note is not cut short.
func sortEvents(events []midi.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Tick != events[j].Tick {
			return events[i].Tick < events[j].Tick
		}
		return events[i].Type == midi.NoteOff && events[j].Type != midi.NoteOff
	})
}

func (s *Session) send(events []midi.Event) {
	if s.sender == nil || len(events) == 0 {
		return
	}
	if err := s.sender.Send(s.port, events); err != nil {
		if s.sendErr == nil {
			s.logger.Error("send failed", "port", s.port, "err", err)
		}
		s.sendErr = err
		return
	}
	s.sendErr = nil
}

// HandleMIDI routes raw input bytes through the remote router
func (s *Session) HandleMIDI(data []byte) {
	s.router.HandleMessage(data)
}

// ToggleLearn flips remote learn mode
func (s *Session) ToggleLearn() {
	s.router.ToggleLearnMode(!s.router.Learning())
}

// LearnSelected selects parameter key of the selected pattern as the learn target
func (s *Session) LearnSelected(key string) {
	t, ok := s.Track(s.engine.Selected())
	if !ok {
		return
	}
	if p := t.Node.Param(key); p != nil {
		s.router.SelectParameter(p)
	}
}

// UnassignSelected drops the CC binding of parameter key of the selected pattern
func (s *Session) UnassignSelected(key string) {
	t, ok := s.Track(s.engine.Selected())
	if !ok {
		return
	}
	if p := t.Node.Param(key); p != nil {
		s.router.UnassignParameter(p)
	}
}

// Snapshot captures the session as a project
func (s *Session) Snapshot() *project.Project {
	p := &project.Project{
		Version:     project.Version,
		Name:        s.name,
		BPM:         s.clock.BPM,
		Patterns:    s.engine.Data(),
		Remote:      s.router.Data(),
		Connections: s.graph.Connections(),
	}
	for _, n := range s.graph.Nodes() {
		nd := project.NodeData{ID: n.ID(), Kind: n.Kind(), Name: n.Name()}
		for _, prm := range n.Params() {
			if nd.Params == nil {
				nd.Params = make(map[string]int)
			}
			nd.Params[prm.Key()] = prm.Value()
		}
		p.Nodes = append(p.Nodes, nd)
	}
	return p
}

// Restore replaces the session contents with p. Node ids are kept so that
// remote assignments resolve; missing connections fall back to wiring every
// pattern straight to the output.
func (s *Session) Restore(p *project.Project) {
	if s.playing {
		s.Stop()
	}
	s.router.Reset()
	s.tracks = nil
	s.graph = graph.New(nil)
	s.name = p.Name
	if p.BPM > 0 {
		s.clock.BPM = clampBPM(p.BPM)
	}

	s.engine.SetData(p.Patterns)

	var patternIDs []string
	outputID := ""
	for _, nd := range p.Nodes {
		switch nd.Kind {
		case graph.KindPattern:
			patternIDs = append(patternIDs, nd.ID)
		case graph.KindOutput:
			if outputID == "" {
				outputID = nd.ID
			}
		case graph.KindThru:
			s.graph.AddNodeWithID(nd.ID, graph.KindThru, nd.Name)
		}
	}
	if outputID != "" {
		s.output = s.graph.AddNodeWithID(outputID, graph.KindOutput, "out")
	} else {
		s.output = s.graph.AddNode(graph.KindOutput, "out")
	}

	for i := 0; i < s.engine.Len(); i++ {
		pat, _ := s.engine.Pattern(i)
		params := newTrackParams(pat)
		var n *graph.Node
		if i < len(patternIDs) {
			n = s.graph.AddNodeWithID(patternIDs[i], graph.KindPattern, pat.Name, params...)
		} else {
			n = s.graph.AddNode(graph.KindPattern, pat.Name, params...)
		}
		s.attach(n)
	}

	connected := 0
	for _, c := range p.Connections {
		if s.graph.Connect(c.SourceID, c.DestinationID) {
			connected++
		}
	}
	if connected == 0 {
		for _, t := range s.tracks {
			s.graph.Connect(t.Node.ID(), s.output.ID())
		}
	}

	s.router.SetData(p.Remote)
	s.dirty = false
	s.logger.Info("restored project", "name", p.Name, "patterns", s.engine.Len(), "assignments", len(s.router.Assignments()))
}
