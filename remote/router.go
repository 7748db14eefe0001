// Package remote binds MIDI Continuous Controllers to processor parameters.
//
// Assigning a CC that is already bound to another parameter moves it to the
// new parameter. Reassigning a parameter to a different CC drops its old
// binding. Each key therefore maps to at most one parameter and each
// parameter holds at most one assignment.
package remote

import (
	charmlog "github.com/charmbracelet/log"

	"go-epg/debug"
	"go-epg/midi"
)

// Mode selects how incoming CC messages are handled
type Mode int

const (
	ModeNormal Mode = iota // CC values drive assigned parameters
	ModeLearn              // next CC binds the selected parameter, then back to normal
)

func (m Mode) String() string {
	if m == ModeLearn {
		return "learn"
	}
	return "normal"
}

// Key is the composite (channel, controller) lookup key
type Key struct {
	Channel    uint8 // 1-16
	Controller uint8 // 0-127
}

// Assignment binds a parameter to a CC
type Assignment struct {
	Param      Parameter
	Channel    uint8
	Controller uint8
}

func (a Assignment) key() Key {
	return Key{Channel: a.Channel, Controller: a.Controller}
}

// Stats counts what happened to incoming messages
type Stats struct {
	Dispatched int // CC applied to a parameter
	Unmatched  int // CC with no assignment
	Ignored    int // not a CC, malformed, or learn mode without selection
	Learned    int // assignments created by learn mode
}

type registered struct {
	processor Processor
	params    []Parameter
}

// Router owns the assignment table. It is not safe for concurrent use:
// feed it from the goroutine that owns the rest of the session.
type Router struct {
	mode        Mode
	selected    Parameter
	assignments []Assignment
	lookup      map[Key]Parameter
	processors  []registered

	view   View
	saver  func()
	logger *charmlog.Logger
	stats  Stats
}

// Option configures a Router
type Option func(*Router)

// WithView sets the presentation collaborator
func WithView(v View) Option {
	return func(r *Router) { r.view = v }
}

// WithAutoSave sets a callback run after every mutation of the assignment table
func WithAutoSave(fn func()) Option {
	return func(r *Router) { r.saver = fn }
}

// WithLogger overrides the "remote" debug logger
func WithLogger(l *charmlog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

func NewRouter(opts ...Option) *Router {
	r := &Router{
		lookup: make(map[Key]Parameter),
		view:   nopView{},
		saver:  func() {},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = debug.Logger("remote")
	}
	return r
}

func (r *Router) Mode() Mode                   { return r.mode }
func (r *Router) Learning() bool               { return r.mode == ModeLearn }
func (r *Router) SelectedParameter() Parameter { return r.selected }
func (r *Router) Stats() Stats                 { return r.stats }

// Assignments returns the table in creation order
func (r *Router) Assignments() []Assignment {
	return append([]Assignment(nil), r.assignments...)
}

// Lookup returns the parameter bound to (channel, controller)
func (r *Router) Lookup(channel, controller uint8) (Parameter, bool) {
	p, ok := r.lookup[Key{Channel: channel, Controller: controller}]
	return p, ok
}

// AssignmentOf returns the binding of p
func (r *Router) AssignmentOf(p Parameter) (Assignment, bool) {
	for _, a := range r.assignments {
		if a.Param == p {
			return a, true
		}
	}
	return Assignment{}, false
}

// HandleMessage routes one raw MIDI message according to the current mode.
// Anything that is not a Control Change is ignored.
func (r *Router) HandleMessage(data []byte) {
	cc, ok := midi.ParseCC(data)
	if !ok {
		r.stats.Ignored++
		debug.LogEvery(100, "remote", "ignored non-CC message % X", data)
		return
	}
	if r.mode == ModeLearn {
		r.handleLearn(cc)
		return
	}
	r.handleNormal(cc)
}

func (r *Router) handleNormal(cc midi.ControlChange) {
	p, ok := r.lookup[Key{Channel: cc.Channel, Controller: cc.Controller}]
	if !ok {
		r.stats.Unmatched++
		r.logger.Debug("no assignment", "channel", cc.Channel, "controller", cc.Controller)
		return
	}
	r.stats.Dispatched++
	p.SetNormalized(cc.Normalized())
}

func (r *Router) handleLearn(cc midi.ControlChange) {
	if r.selected == nil {
		r.stats.Ignored++
		return
	}
	p := r.selected
	r.DeselectParameter()
	r.AssignParameter(p, cc.Channel, cc.Controller)
	r.stats.Learned++
	r.logger.Info("learned", "param", p.Key(), "channel", cc.Channel, "controller", cc.Controller)
	r.ToggleLearnMode(false)
}

// ToggleLearnMode switches between learn and normal handling. Any pending
// selection is dropped and every registered parameter gets an enter/exit hint.
// On exit, bound parameters end up back in the assigned state.
func (r *Router) ToggleLearnMode(enabled bool) {
	if enabled {
		r.mode = ModeLearn
	} else {
		r.mode = ModeNormal
	}
	r.DeselectParameter()
	r.view.ToggleVisibility(enabled)

	state := StateExit
	if enabled {
		state = StateEnter
	}
	for _, reg := range r.processors {
		for _, p := range reg.params {
			p.SetRemoteState(state)
			if _, bound := r.AssignmentOf(p); bound && !enabled {
				p.SetRemoteState(StateAssigned)
			}
		}
	}
	r.logger.Debug("learn mode", "enabled", enabled)
}

// SelectParameter marks p as the target of the next learned CC
func (r *Router) SelectParameter(p Parameter) {
	if p == nil {
		return
	}
	r.DeselectParameter()
	r.selected = p
	p.SetRemoteState(StateSelected)
}

// DeselectParameter drops the pending selection, if any
func (r *Router) DeselectParameter() {
	if r.selected == nil {
		return
	}
	r.selected.SetRemoteState(StateDeselected)
	r.selected = nil
}

// AssignParameter binds p to (channel, controller). An identical existing
// assignment makes this a no-op; a different binding of p or of the key is
// evicted first.
func (r *Router) AssignParameter(p Parameter, channel, controller uint8) {
	if p == nil || channel < 1 || channel > 16 || controller > 127 {
		r.logger.Debug("invalid assignment ignored", "channel", channel, "controller", controller)
		return
	}
	key := Key{Channel: channel, Controller: controller}
	for _, a := range r.assignments {
		if a.Param == p && a.key() == key {
			return
		}
	}

	if _, ok := r.AssignmentOf(p); ok {
		r.unassign(p)
	}
	if prev, ok := r.lookup[key]; ok {
		r.unassign(prev)
	}

	r.assignments = append(r.assignments, Assignment{Param: p, Channel: channel, Controller: controller})
	r.lookup[key] = p

	p.SetRemoteData(Binding{Channel: channel, Controller: controller})
	p.SetRemoteState(StateAssigned)
	r.view.AddParameter(p)
	r.logger.Debug("assign", "param", p.Key(), "channel", channel, "controller", controller)
	r.saver()
}

// UnassignParameter removes p's assignment; nothing happens when it has none
func (r *Router) UnassignParameter(p Parameter) {
	if r.unassign(p) {
		r.saver()
	}
}

func (r *Router) unassign(p Parameter) bool {
	for i, a := range r.assignments {
		if a.Param != p {
			continue
		}
		r.assignments = append(r.assignments[:i], r.assignments[i+1:]...)
		if r.lookup[a.key()] == p {
			delete(r.lookup, a.key())
		}
		p.SetRemoteData(Binding{})
		p.SetRemoteState(StateUnassigned)
		r.view.RemoveParameter(p)
		r.logger.Debug("unassign", "param", p.Key(), "channel", a.Channel, "controller", a.Controller)
		return true
	}
	return false
}

// RegisterProcessor makes p's MIDI-controllable parameters available.
// Processors without controllable parameters, or already registered, are skipped.
func (r *Router) RegisterProcessor(p Processor) {
	if p == nil || r.indexOf(p.ID()) >= 0 {
		return
	}
	var params []Parameter
	for _, param := range p.Parameters() {
		if param.MIDIControllable() {
			params = append(params, param)
		}
	}
	if len(params) == 0 {
		return
	}
	r.processors = append(r.processors, registered{processor: p, params: params})
	if r.mode == ModeLearn {
		for _, param := range params {
			param.SetRemoteState(StateEnter)
		}
	}
	r.view.CreateGroup(p)
	r.logger.Debug("register processor", "id", p.ID(), "params", len(params))
}

// UnregisterProcessor forgets p and drops the assignments of its parameters
func (r *Router) UnregisterProcessor(p Processor) {
	if p == nil {
		return
	}
	i := r.indexOf(p.ID())
	if i < 0 {
		return
	}
	reg := r.processors[i]
	r.processors = append(r.processors[:i], r.processors[i+1:]...)

	changed := false
	for _, param := range reg.params {
		if r.selected == param {
			r.DeselectParameter()
		}
		if r.unassign(param) {
			changed = true
		}
	}
	r.view.DeleteGroup(reg.processor)
	r.logger.Debug("unregister processor", "id", p.ID())
	if changed {
		r.saver()
	}
}

func (r *Router) indexOf(id string) int {
	for i, reg := range r.processors {
		if reg.processor.ID() == id {
			return i
		}
	}
	return -1
}

// Processors returns the registered processors in registration order
func (r *Router) Processors() []Processor {
	out := make([]Processor, len(r.processors))
	for i, reg := range r.processors {
		out[i] = reg.processor
	}
	return out
}

// ControllableParameters returns the retained parameters of the processor with id
func (r *Router) ControllableParameters(id string) []Parameter {
	if i := r.indexOf(id); i >= 0 {
		return append([]Parameter(nil), r.processors[i].params...)
	}
	return nil
}

// Clear removes every assignment. Registered processors stay registered.
func (r *Router) Clear() {
	for len(r.assignments) > 0 {
		r.unassign(r.assignments[len(r.assignments)-1].Param)
	}
	r.lookup = make(map[Key]Parameter)
	r.saver()
}

// Reset clears assignments and unregisters every processor
func (r *Router) Reset() {
	r.Clear()
	r.DeselectParameter()
	for _, reg := range r.processors {
		r.view.DeleteGroup(reg.processor)
	}
	r.processors = nil
}

// Data is one snapshot record
type Data struct {
	ProcessorID     string  `json:"processorID"`
	ParamKey        string  `json:"paramKey"`
	ParamRemoteData Binding `json:"paramRemoteData"`
}

// Data exports the assignment table in creation order
func (r *Router) Data() []Data {
	var out []Data
	for _, a := range r.assignments {
		id, ok := r.ownerOf(a.Param)
		if !ok {
			continue
		}
		out = append(out, Data{
			ProcessorID:     id,
			ParamKey:        a.Param.Key(),
			ParamRemoteData: Binding{Channel: a.Channel, Controller: a.Controller},
		})
	}
	return out
}

func (r *Router) ownerOf(p Parameter) (string, bool) {
	for _, reg := range r.processors {
		for _, param := range reg.params {
			if param == p {
				return reg.processor.ID(), true
			}
		}
	}
	return "", false
}

// SetData replaces the assignment table. Records are resolved against the
// registered processors; unresolvable ones are skipped.
func (r *Router) SetData(data []Data) {
	r.Clear()
	skipped := 0
	for _, d := range data {
		p := r.resolve(d.ProcessorID, d.ParamKey)
		if p == nil {
			skipped++
			continue
		}
		r.AssignParameter(p, d.ParamRemoteData.Channel, d.ParamRemoteData.Controller)
	}
	if skipped > 0 {
		r.logger.Warn("skipped unresolved assignments", "count", skipped)
	}
}

func (r *Router) resolve(processorID, key string) Parameter {
	i := r.indexOf(processorID)
	if i < 0 {
		return nil
	}
	for _, p := range r.processors[i].params {
		if p.Key() == key {
			return p
		}
	}
	return nil
}
