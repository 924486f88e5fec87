package game

import (
	"fmt"
	"sync"
)

// Control message types.
const (
	ControlSet   = "set"
	ControlReset = "reset"
	ControlPause = "pause"
	ControlStep  = "step"
)

// Control is one request from a frame driver collaborator, e.g. a web
// viewer client. Value is loosely typed and validated when applied.
type Control struct {
	Type  string `json:"type"`
	Key   string `json:"key,omitempty"`
	Value any    `json:"value,omitempty"`
}

// Pending is the drained content of a Mailbox.
type Pending struct {
	Params map[string]any
	Keys   []string // order of first arrival
	Reset  bool
	Pause  *bool
	Step   bool
}

// Empty reports whether nothing was posted.
func (p Pending) Empty() bool {
	return len(p.Keys) == 0 && !p.Reset && p.Pause == nil && !p.Step
}

// Mailbox collects controls from any goroutine. Repeated sets of one key
// keep only the latest value; the frame loop drains it once per frame.
type Mailbox struct {
	mu      sync.Mutex
	pending Pending
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Post records c. Unknown control types are rejected.
func (m *Mailbox) Post(c Control) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &m.pending
	switch c.Type {
	case ControlSet:
		if c.Key == "" {
			return fmt.Errorf("set control: missing key")
		}
		if p.Params == nil {
			p.Params = make(map[string]any)
		}
		if _, seen := p.Params[c.Key]; !seen {
			p.Keys = append(p.Keys, c.Key)
		}
		p.Params[c.Key] = c.Value
	case ControlReset:
		p.Reset = true
	case ControlPause:
		paused, ok := c.Value.(bool)
		if !ok {
			return fmt.Errorf("pause control: value %v is not a bool", c.Value)
		}
		p.Pause = &paused
	case ControlStep:
		p.Step = true
	default:
		return fmt.Errorf("unknown control type %q", c.Type)
	}
	return nil
}

// Drain returns everything posted since the last call and clears the box.
func (m *Mailbox) Drain() Pending {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.pending
	m.pending = Pending{}
	return p
}
