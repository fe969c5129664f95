// Package scheduler decides which detected alerts reach the HUD.
package scheduler

import (
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/batthud/pkg/alert"
	"github.com/charlie0129/batthud/pkg/hud"
)

// HUD is the part of the HUD state machine the scheduler drives.
type HUD interface {
	Open(kind alert.Kind, ev alert.Event)
	State() hud.State
	Kind() alert.Kind
}

// SoundPlayer plays sound effects. The scheduler only forwards requests.
type SoundPlayer interface {
	Play(s alert.Sound)
}

// Preferences are the user's alert settings.
type Preferences interface {
	AlertEnabled(k alert.Kind) bool
	SoundEnabled() bool
}

// Decision records what the scheduler did with an event.
type Decision struct {
	Shown  bool        `json:"shown"`
	Reason string      `json:"reason"`
	Sound  alert.Sound `json:"sound,omitempty"`
}

const (
	ReasonShown      = "shown"
	ReasonReplaced   = "replaced"
	ReasonUnknown    = "unknown kind"
	ReasonDisabled   = "disabled"
	ReasonCooledDown = "cooled down"
	ReasonOutranked  = "outranked by visible alert"
)

// Scheduler applies suppression and priority rules to alerts.
type Scheduler struct {
	hud   HUD
	sound SoundPlayer
	prefs Preferences
}

// New returns a Scheduler. sound and prefs may be nil, in which case no
// sound is forwarded and every kind is enabled.
func New(h HUD, sound SoundPlayer, prefs Preferences) *Scheduler {
	return &Scheduler{
		hud:   h,
		sound: sound,
		prefs: prefs,
	}
}

// Handle decides whether ev is shown and, if so, forwards the sound hint
// and opens the HUD.
func (s *Scheduler) Handle(ev alert.Event) Decision {
	d := s.decide(ev)

	entry := logrus.WithFields(logrus.Fields{
		"kind":   ev.Kind,
		"shown":  d.Shown,
		"reason": d.Reason,
	})
	if !d.Shown {
		entry.Debug("alert suppressed")
		return d
	}
	entry.Info("showing alert")

	if ev.Kind.Sound() != alert.SoundNone && (s.prefs == nil || s.prefs.SoundEnabled()) {
		d.Sound = ev.Kind.Sound()
		if s.sound != nil {
			s.sound.Play(d.Sound)
		}
	}

	s.hud.Open(ev.Kind, ev)
	return d
}

func (s *Scheduler) decide(ev alert.Event) Decision {
	if !ev.Kind.Valid() {
		return Decision{Reason: ReasonUnknown}
	}
	if s.prefs != nil && !s.prefs.AlertEnabled(ev.Kind) {
		return Decision{Reason: ReasonDisabled}
	}
	if ev.Kind == alert.DeviceOverheating && (ev.Thermal == nil || ev.Cooling()) {
		return Decision{Reason: ReasonCooledDown}
	}

	state := s.hud.State()
	onScreen := state != hud.Hidden && state != hud.Dismissed
	if !onScreen {
		return Decision{Shown: true, Reason: ReasonShown}
	}

	if ev.Kind.Trigger() {
		return Decision{Shown: true, Reason: ReasonReplaced}
	}

	current := s.hud.Kind()
	if ev.Kind.Attributes().Priority >= current.Attributes().Priority {
		return Decision{Shown: true, Reason: ReasonReplaced}
	}

	return Decision{Reason: ReasonOutranked}
}
