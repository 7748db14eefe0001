package remote

// State is the remote-control hint shown on a parameter
type State string

const (
	StateEnter      State = "enter"      // learn mode switched on
	StateExit       State = "exit"       // learn mode switched off
	StateSelected   State = "selected"   // waiting for a CC to bind to
	StateDeselected State = "deselected" // no longer waiting
	StateAssigned   State = "assigned"
	StateUnassigned State = "unassigned"
)

// Binding is the (channel, controller) half of an assignment.
// The zero Binding means "not bound"; channel is 1-16 when set.
type Binding struct {
	Channel    uint8 `json:"channel"`
	Controller uint8 `json:"controller"`
}

// IsZero reports whether b is unset
func (b Binding) IsZero() bool {
	return b.Channel == 0
}

// Parameter is a processor parameter that can be driven by a CC.
type Parameter interface {
	Key() string
	MIDIControllable() bool
	SetNormalized(v float64)
	SetRemoteState(s State)
	SetRemoteData(b Binding)
}

// Processor owns parameters and is identified by a stable id.
type Processor interface {
	ID() string
	Parameters() []Parameter
}

// View receives presentation updates. All methods are optional hints.
type View interface {
	ToggleVisibility(learn bool)
	CreateGroup(p Processor)
	DeleteGroup(p Processor)
	AddParameter(p Parameter)
	RemoveParameter(p Parameter)
}

type nopView struct{}

func (nopView) ToggleVisibility(bool)     {}
func (nopView) CreateGroup(Processor)     {}
func (nopView) DeleteGroup(Processor)     {}
func (nopView) AddParameter(Parameter)    {}
func (nopView) RemoveParameter(Parameter) {}
