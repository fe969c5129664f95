// Package hud implements the state machine behind the on-screen
// notification: entrance, reveal, expansion, auto-dismiss and exit.
//
// A Machine is not safe for concurrent use. Inputs and timer callbacks must
// be serialized by the caller.
package hud

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/batthud/pkg/accessory"
	"github.com/charlie0129/batthud/pkg/alert"
	"github.com/charlie0129/batthud/pkg/clock"
)

// State is the state of the HUD.
type State string

const (
	Hidden    State = "hidden"
	Progress  State = "progress"
	Revealed  State = "revealed"
	Detailed  State = "detailed"
	Dismissed State = "dismissed"
)

// States returns every state in cycle order.
func States() []State {
	return []State{Hidden, Progress, Revealed, Detailed, Dismissed}
}

// Visible reports whether the HUD shows content in s.
func (s State) Visible() bool {
	return s == Revealed || s == Detailed
}

const (
	DefaultDismissAfter = 5 * time.Second
	DefaultEntrance     = 600 * time.Millisecond
	DefaultExit         = 400 * time.Millisecond
)

// Options hold the durations the machine waits for.
type Options struct {
	// DismissAfter is how long a timeout alert stays before dismissing.
	DismissAfter time.Duration
	// Entrance is the length of the progress phase. Zero reveals at once.
	Entrance time.Duration
	// Exit is the length of the dismiss animation. Zero hides at once.
	Exit time.Duration
}

// DefaultOptions returns the default durations.
func DefaultOptions() Options {
	return Options{
		DismissAfter: DefaultDismissAfter,
		Entrance:     DefaultEntrance,
		Exit:         DefaultExit,
	}
}

// Frame is an immutable snapshot handed to the renderer.
type Frame struct {
	State    State              `json:"state"`
	Visible  bool               `json:"visible"`
	Timeline TimelineDescriptor `json:"timeline"`
	Title    string             `json:"title,omitempty"`
	Subtitle string             `json:"subtitle,omitempty"`
	Icon     string             `json:"icon,omitempty"`
	Kind     alert.Kind         `json:"kind,omitempty"`
	Device   *accessory.Record  `json:"device,omitempty"`
	Hovered  bool               `json:"hovered"`
	At       time.Time          `json:"at"`
}

// Machine is the HUD state machine.
type Machine struct {
	clock    clock.Clock
	opts     Options
	listener func(Frame)

	state   State
	event   *alert.Event
	hovered bool

	dismiss  *pausableTimer
	entrance clock.Timer
	exit     clock.Timer

	stopped bool
}

// New returns a hidden Machine. listener, if not nil, is called with a new
// Frame after every change.
func New(c clock.Clock, opts Options, listener func(Frame)) *Machine {
	if c == nil {
		c = clock.Real{}
	}
	if opts.DismissAfter <= 0 {
		opts.DismissAfter = DefaultDismissAfter
	}
	if opts.Entrance < 0 {
		opts.Entrance = 0
	}
	if opts.Exit < 0 {
		opts.Exit = 0
	}
	return &Machine{
		clock:    c,
		opts:     opts,
		listener: listener,
		state:    Hidden,
	}
}

// SetOptions replaces the durations. Timers already armed keep their
// original deadlines.
func (m *Machine) SetOptions(opts Options) {
	if opts.DismissAfter <= 0 {
		opts.DismissAfter = DefaultDismissAfter
	}
	m.opts = opts
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Kind returns the kind of the alert on screen, or "" when hidden.
func (m *Machine) Kind() alert.Kind {
	if m.event == nil {
		return ""
	}
	return m.event.Kind
}

// DismissPending reports whether an auto-dismiss timer is armed, paused or
// not.
func (m *Machine) DismissPending() bool {
	return m.dismiss != nil && m.dismiss.Active()
}

// Open shows an alert of kind. From hidden the entrance runs first. When
// something is already on screen only the content and the dismiss timer
// are refreshed.
func (m *Machine) Open(kind alert.Kind, ev alert.Event) {
	if m.stopped {
		return
	}
	ev.Kind = kind
	m.event = &ev

	from := m.state
	switch m.state {
	case Hidden:
		if m.opts.Entrance > 0 {
			m.state = Progress
			m.entrance = m.clock.AfterFunc(m.opts.Entrance, m.onEntranceDone)
		} else {
			m.state = Revealed
		}
	case Progress:
		// Entrance continues.
	case Revealed, Detailed:
		m.state = Revealed
	case Dismissed:
		m.stopTimer(&m.exit)
		m.state = Revealed
	}

	m.armDismiss()

	logrus.WithFields(logrus.Fields{
		"kind": kind,
		"from": from,
		"to":   m.state,
	}).Debug("hud open")

	m.notify()
}

func (m *Machine) onEntranceDone() {
	m.entrance = nil
	if m.stopped || m.state != Progress {
		return
	}
	m.transition(Revealed)
}

// armDismiss cancels any dismiss timer and arms a new one if the current
// kind times out. A timer armed while hovered starts paused.
func (m *Machine) armDismiss() {
	m.cancelDismiss()
	if m.event == nil || !m.event.Kind.Timeout() {
		return
	}
	m.dismiss = newPausableTimer(m.clock, m.opts.DismissAfter, m.hovered, m.onDismissTimer)
}

func (m *Machine) cancelDismiss() {
	if m.dismiss != nil {
		m.dismiss.Stop()
		m.dismiss = nil
	}
}

func (m *Machine) onDismissTimer() {
	m.dismiss = nil
	logrus.Debug("hud auto-dismiss")
	m.SetState(Dismissed)
}

// SetState requests a transition. Combinations that make no sense for the
// current state are ignored.
func (m *Machine) SetState(to State) {
	if m.stopped {
		return
	}

	switch to {
	case Detailed:
		if m.state != Progress && m.state != Revealed {
			return
		}
		m.stopTimer(&m.entrance)
		m.cancelDismiss()
		m.transition(Detailed)
	case Revealed:
		if m.state != Detailed {
			return
		}
		m.transition(Revealed)
		m.armDismiss()
	case Dismissed:
		if m.state != Progress && m.state != Revealed && m.state != Detailed {
			return
		}
		m.stopTimer(&m.entrance)
		m.cancelDismiss()
		if m.opts.Exit <= 0 {
			m.hide()
			return
		}
		m.transition(Dismissed)
		m.exit = m.clock.AfterFunc(m.opts.Exit, m.onExitDone)
	case Hidden:
		if m.state == Hidden {
			return
		}
		m.stopTimer(&m.entrance)
		m.stopTimer(&m.exit)
		m.cancelDismiss()
		m.hide()
	}
}

func (m *Machine) onExitDone() {
	m.exit = nil
	if m.stopped || m.state != Dismissed {
		return
	}
	m.hide()
}

// hide also forgets the hover. The renderer window is gone and will not
// report the pointer leaving.
func (m *Machine) hide() {
	m.event = nil
	m.hovered = false
	m.transition(Hidden)
}

// Click handles a click from the renderer. Only detailed and dismissed are
// meaningful targets.
func (m *Machine) Click(to State) {
	if to != Detailed && to != Dismissed {
		logrus.WithField("to", to).Debug("ignoring click with unsupported target")
		return
	}
	m.SetState(to)
}

// Hover pauses the dismiss timer while the pointer is over the HUD and
// resumes it with the time that was left once the pointer leaves.
func (m *Machine) Hover(hovered bool) {
	if m.stopped || m.hovered == hovered {
		return
	}
	m.hovered = hovered
	if m.dismiss != nil {
		if hovered {
			m.dismiss.Pause()
		} else {
			m.dismiss.Resume()
		}
	}
	logrus.WithFields(logrus.Fields{
		"hovered":   hovered,
		"remaining": m.remaining(),
	}).Trace("hud hover")
}

func (m *Machine) remaining() time.Duration {
	if m.dismiss == nil {
		return 0
	}
	return m.dismiss.Remaining()
}

func (m *Machine) transition(to State) {
	from := m.state
	m.state = to
	logrus.WithFields(logrus.Fields{
		"from": from,
		"to":   to,
	}).Debug("hud state changed")
	m.notify()
}

func (m *Machine) stopTimer(t *clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// Snapshot returns the current frame.
func (m *Machine) Snapshot() Frame {
	f := Frame{
		State:    m.state,
		Visible:  m.state.Visible(),
		Timeline: Timeline(m.state),
		Hovered:  m.hovered,
		At:       m.clock.Now(),
	}
	if m.event != nil {
		c := m.event.Content()
		f.Title = c.Title
		f.Subtitle = c.Subtitle
		f.Icon = c.Icon
		f.Kind = m.event.Kind
		if m.event.Device != nil {
			d := *m.event.Device
			f.Device = &d
		}
	}
	return f
}

func (m *Machine) notify() {
	if m.listener != nil {
		m.listener(m.Snapshot())
	}
}

// Stop cancels every timer. The machine ignores all input afterwards.
func (m *Machine) Stop() {
	if m.stopped {
		return
	}
	m.stopped = true
	m.stopTimer(&m.entrance)
	m.stopTimer(&m.exit)
	m.cancelDismiss()
}
