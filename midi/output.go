package midi

import (
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// Output sends events to named out ports, opening them lazily.
type Output struct {
	defaultPort string
	senders     map[string]func(gomidi.Message) error
	mu          sync.RWMutex

	// open resolves a port name to a send func; swapped in tests
	open func(name string) (func(gomidi.Message) error, error)
}

// NewOutput creates an output with the given default port name
func NewOutput(defaultPort string) *Output {
	return &Output{
		defaultPort: defaultPort,
		senders:     make(map[string]func(gomidi.Message) error),
		open:        openPort,
	}
}

func openPort(name string) (func(gomidi.Message) error, error) {
	port, err := gomidi.FindOutPort(name)
	if err != nil {
		return nil, err
	}
	return gomidi.SendTo(port)
}

// SetDefaultPort sets the port used when Send gets an empty name
func (o *Output) SetDefaultPort(portName string) {
	o.mu.Lock()
	o.defaultPort = portName
	o.mu.Unlock()
}

// sender returns a sender for the given port name, lazily opening it
func (o *Output) sender(portName string) (func(gomidi.Message) error, error) {
	o.mu.RLock()
	if portName == "" {
		portName = o.defaultPort
	}
	if portName == "" {
		o.mu.RUnlock()
		return nil, nil
	}
	if sender, ok := o.senders[portName]; ok {
		o.mu.RUnlock()
		return sender, nil
	}
	o.mu.RUnlock()

	o.mu.Lock()
	defer o.mu.Unlock()

	// Double-check after acquiring write lock
	if sender, ok := o.senders[portName]; ok {
		return sender, nil
	}

	sender, err := o.open(portName)
	if err != nil {
		return nil, err
	}
	o.senders[portName] = sender
	return sender, nil
}

// Send writes events to portName (or the default port). Without any port it is a no-op.
func (o *Output) Send(portName string, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	send, err := o.sender(portName)
	if err != nil || send == nil {
		return err
	}
	for _, e := range events {
		msg := e.Message()
		if msg == nil {
			continue
		}
		if err := send(msg); err != nil {
			return err
		}
	}
	return nil
}

// Close forgets opened senders. Ports themselves are closed with the driver.
func (o *Output) Close() {
	o.mu.Lock()
	o.senders = make(map[string]func(gomidi.Message) error)
	o.mu.Unlock()
}
