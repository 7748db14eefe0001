// Package pattern holds the euclidean pattern engine: per-track rhythms, their
// step events and the on/off playback state driven by the transport.
package pattern

import (
	"errors"

	charmlog "github.com/charmbracelet/log"

	"go-epg/debug"
	"go-epg/euclid"
)

// ErrNoPattern is returned for an index that does not name a pattern
var ErrNoPattern = errors.New("pattern: no such pattern")

// Arrangement receives the step events of each pattern's track
type Arrangement interface {
	CreateTrack()
	UpdateTrack(index int, steps []Step, duration int64)
	DeleteTrack(index int)
	Reset()
}

// AutoSaver is told after every mutation
type AutoSaver interface {
	AutoSave()
}

// AutoSaveFunc adapts a func to AutoSaver
type AutoSaveFunc func()

func (f AutoSaveFunc) AutoSave() { f() }

// Engine owns the patterns of a project
type Engine struct {
	timing      Timing
	pitch       uint8
	arrangement Arrangement
	saver       AutoSaver
	logger      *charmlog.Logger

	patterns []*Pattern
	selected int
	lastRun  int64 // transport position of the previous Run

	onUpdate func(index int)
}

// NewEngine creates an engine. saver and logger may be nil.
func NewEngine(t Timing, arrangement Arrangement, saver AutoSaver, logger *charmlog.Logger) *Engine {
	if logger == nil {
		logger = debug.Logger("epg")
	}
	if saver == nil {
		saver = AutoSaveFunc(func() {})
	}
	return &Engine{
		timing:      t,
		pitch:       DefaultPitch,
		arrangement: arrangement,
		saver:       saver,
		logger:      logger,
		selected:    -1,
	}
}

// SetPitch sets the note used for newly generated step events
func (e *Engine) SetPitch(pitch uint8) {
	e.pitch = pitch & 0x7F
}

// SetOnUpdate registers a callback run after a pattern is regenerated
func (e *Engine) SetOnUpdate(fn func(index int)) {
	e.onUpdate = fn
}

func (e *Engine) Timing() Timing { return e.timing }

// Len returns the number of patterns
func (e *Engine) Len() int { return len(e.patterns) }

// Pattern returns a copy of pattern i
func (e *Engine) Pattern(i int) (Pattern, bool) {
	if i < 0 || i >= len(e.patterns) {
		return Pattern{}, false
	}
	return e.patterns[i].clone(), true
}

// Patterns returns copies of every pattern
func (e *Engine) Patterns() []Pattern {
	out := make([]Pattern, len(e.patterns))
	for i, p := range e.patterns {
		out[i] = p.clone()
	}
	return out
}

// Create adds a pattern with its own track and selects it
func (e *Engine) Create(spec Spec) int {
	if spec.Steps == 0 {
		spec.Steps = 16
	}
	if spec.Pulses == 0 {
		spec.Pulses = 4
	}
	p := &Pattern{
		Steps:    spec.Steps,
		Pulses:   spec.Pulses,
		Rotation: spec.Rotation,
		Channel:  len(e.patterns),
		Name:     spec.Name,
		Position: spec.Position,
		CanvasX:  spec.CanvasX,
		CanvasY:  spec.CanvasY,
	}
	p.clampSettings()

	e.patterns = append(e.patterns, p)
	index := len(e.patterns) - 1
	e.arrangement.CreateTrack()
	e.update(index)
	e.selectIndex(index)
	e.logger.Debug("create pattern", "index", index, "steps", p.Steps, "pulses", p.Pulses)
	e.saver.AutoSave()
	return index
}

// update regenerates the euclid sequence, duration and step events of pattern i
func (e *Engine) update(i int) {
	p := e.patterns[i]
	p.Euclid = euclid.Pattern(p.Steps, p.Pulses, p.Rotation)
	p.Duration = e.timing.Duration(p.Steps)
	if p.Duration > 0 {
		p.Position %= p.Duration
	}
	e.arrangement.UpdateTrack(i, StepEvents(p.Euclid, e.timing, e.pitch), p.Duration)
	if e.onUpdate != nil {
		e.onUpdate(i)
	}
}

// Select marks pattern i as selected; -1 clears the selection
func (e *Engine) Select(i int) error {
	if i < -1 || i >= len(e.patterns) {
		return ErrNoPattern
	}
	e.selectIndex(i)
	return nil
}

func (e *Engine) selectIndex(i int) {
	for j, p := range e.patterns {
		p.Selected = j == i
	}
	e.selected = i
}

// Selected returns the selected index, -1 when none
func (e *Engine) Selected() int {
	return e.selected
}

// Delete removes pattern i and its track; the selection is cleared
func (e *Engine) Delete(i int) error {
	if i < 0 || i >= len(e.patterns) {
		return ErrNoPattern
	}
	e.arrangement.DeleteTrack(i)
	e.patterns = append(e.patterns[:i], e.patterns[i+1:]...)
	e.selectIndex(-1)
	e.logger.Debug("delete pattern", "index", i)
	e.saver.AutoSave()
	return nil
}

// DeleteSelected removes the selected pattern; a no-op when nothing is selected
func (e *Engine) DeleteSelected() {
	if e.selected < 0 {
		return
	}
	e.Delete(e.selected)
}

func (e *Engine) get(i int) (*Pattern, error) {
	if i < 0 || i >= len(e.patterns) {
		return nil, ErrNoPattern
	}
	return e.patterns[i], nil
}

// SetSteps sets the step count (1-64), pulling pulses and rotation down to it
func (e *Engine) SetSteps(i, steps int) error {
	p, err := e.get(i)
	if err != nil {
		return err
	}
	p.Steps = steps
	p.clampSettings()
	e.update(i)
	e.saver.AutoSave()
	return nil
}

// SetPulses sets the onset count, clamped to [0, steps]
func (e *Engine) SetPulses(i, pulses int) error {
	p, err := e.get(i)
	if err != nil {
		return err
	}
	p.Pulses = pulses
	p.clampSettings()
	e.update(i)
	e.saver.AutoSave()
	return nil
}

// SetRotation sets the rotation, clamped to [0, steps]
func (e *Engine) SetRotation(i, rotation int) error {
	p, err := e.get(i)
	if err != nil {
		return err
	}
	p.Rotation = rotation
	p.clampSettings()
	e.update(i)
	e.saver.AutoSave()
	return nil
}

// SetName renames pattern i
func (e *Engine) SetName(i int, name string) error {
	p, err := e.get(i)
	if err != nil {
		return err
	}
	p.Name = name
	e.update(i)
	e.saver.AutoSave()
	return nil
}

// SetCanvas stores the presentation position; nothing is regenerated
func (e *Engine) SetCanvas(i int, x, y float64) error {
	p, err := e.get(i)
	if err != nil {
		return err
	}
	p.CanvasX, p.CanvasY = x, y
	e.saver.AutoSave()
	return nil
}

// Scan switches a pattern on for every upcoming pulse in queue and
// records where it should switch off again. Call before Run.
func (e *Engine) Scan(queue []Scheduled) {
	for _, s := range queue {
		if s.Step.Velocity == 0 || s.Track < 0 || s.Track >= len(e.patterns) {
			continue
		}
		p := e.patterns[s.Track]
		if p.Duration <= 0 {
			continue
		}
		p.IsOn = true
		p.OffPosition = (p.Position + s.Step.Duration) % p.Duration
	}
}

// Run moves every pattern's playhead to transportPosition and switches off
// patterns whose off position was passed since the previous Run. A move of
// a whole loop or more passes every position.
func (e *Engine) Run(transportPosition int64) {
	travelled := transportPosition - e.lastRun
	e.lastRun = transportPosition
	for _, p := range e.patterns {
		if p.Duration <= 0 {
			continue
		}
		p.Position = transportPosition % p.Duration
		if p.IsOn && (travelled >= p.Duration || offReached(p.LastPosition, p.OffPosition, p.Position)) {
			p.IsOn = false
		}
		p.LastPosition = p.Position
	}
}

// Data is the snapshot record of one pattern
type Data struct {
	Steps    int     `json:"steps"`
	Pulses   int     `json:"pulses"`
	Rotation int     `json:"rotation"`
	Channel  int     `json:"channel"`
	Name     string  `json:"name"`
	Position int64   `json:"position"`
	Duration int64   `json:"duration"`
	CanvasX  float64 `json:"canvasX"`
	CanvasY  float64 `json:"canvasY"`
}

// Data exports every pattern in order
func (e *Engine) Data() []Data {
	out := make([]Data, len(e.patterns))
	for i, p := range e.patterns {
		out[i] = Data{
			Steps:    p.Steps,
			Pulses:   p.Pulses,
			Rotation: p.Rotation,
			Channel:  p.Channel,
			Name:     p.Name,
			Position: p.Position,
			Duration: p.Duration,
			CanvasX:  p.CanvasX,
			CanvasY:  p.CanvasY,
		}
	}
	return out
}

// SetData replaces every pattern with data. Settings are clamped and the
// derived fields (euclid, duration, tracks) recomputed. Nothing is selected.
func (e *Engine) SetData(data []Data) {
	e.arrangement.Reset()
	e.patterns = make([]*Pattern, 0, len(data))
	e.selected = -1
	for _, d := range data {
		p := &Pattern{
			Steps:    d.Steps,
			Pulses:   d.Pulses,
			Rotation: d.Rotation,
			Channel:  d.Channel,
			Name:     d.Name,
			Position: max(0, d.Position),
			CanvasX:  d.CanvasX,
			CanvasY:  d.CanvasY,
		}
		p.clampSettings()
		e.patterns = append(e.patterns, p)
		e.arrangement.CreateTrack()
		e.update(len(e.patterns) - 1)
	}
	e.logger.Debug("restore patterns", "count", len(data))
}
