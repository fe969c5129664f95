// Package alert defines the fixed set of alerts the HUD can show.
package alert

import (
	"fmt"
	"strings"
)

// Kind is one of the fixed alert kinds.
type Kind string

const (
	UserInitiated     Kind = "userInitiated"
	UserLaunched      Kind = "userLaunched"
	ChargingBegan     Kind = "chargingBegan"
	ChargingStopped   Kind = "chargingStopped"
	ChargingComplete  Kind = "chargingComplete"
	PercentThreshold  Kind = "percentThreshold"
	DeviceConnected   Kind = "deviceConnected"
	DeviceRemoved     Kind = "deviceRemoved"
	DeviceOverheating Kind = "deviceOverheating"
)

// Sound is a hint for the external sound player. The empty Sound means
// nothing should be played.
type Sound string

const (
	SoundNone       Sound = ""
	SoundConnect    Sound = "connect"
	SoundDisconnect Sound = "disconnect"
	SoundComplete   Sound = "complete"
	SoundLowBattery Sound = "lowBattery"
	SoundWarning    Sound = "warning"
)

// Attributes control how an alert of a kind is scheduled.
//
// Timeout alerts dismiss themselves. Trigger alerts replace whatever is on
// screen. Priority orders non-trigger alerts against each other.
type Attributes struct {
	Timeout  bool  `json:"timeout"`
	Trigger  bool  `json:"trigger"`
	Sound    Sound `json:"sound,omitempty"`
	Priority int   `json:"priority"`
}

var kinds = map[Kind]Attributes{
	UserInitiated:     {Timeout: false, Trigger: false, Priority: 100},
	UserLaunched:      {Timeout: true, Trigger: false, Priority: 10},
	ChargingBegan:     {Timeout: true, Trigger: true, Sound: SoundConnect, Priority: 60},
	ChargingStopped:   {Timeout: true, Trigger: true, Sound: SoundDisconnect, Priority: 60},
	ChargingComplete:  {Timeout: true, Trigger: true, Sound: SoundComplete, Priority: 60},
	PercentThreshold:  {Timeout: true, Trigger: false, Sound: SoundLowBattery, Priority: 70},
	DeviceConnected:   {Timeout: true, Trigger: true, Sound: SoundConnect, Priority: 40},
	DeviceRemoved:     {Timeout: true, Trigger: true, Sound: SoundDisconnect, Priority: 40},
	DeviceOverheating: {Timeout: true, Trigger: false, Sound: SoundWarning, Priority: 80},
}

// Kinds returns every alert kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		UserInitiated,
		UserLaunched,
		ChargingBegan,
		ChargingStopped,
		ChargingComplete,
		PercentThreshold,
		DeviceConnected,
		DeviceRemoved,
		DeviceOverheating,
	}
}

// Attributes returns the scheduling attributes of k. Unknown kinds get the
// zero value: no timeout, no trigger, no sound.
func (k Kind) Attributes() Attributes {
	return kinds[k]
}

func (k Kind) Timeout() bool { return kinds[k].Timeout }
func (k Kind) Trigger() bool { return kinds[k].Trigger }
func (k Kind) Sound() Sound  { return kinds[k].Sound }

// Valid reports whether k is one of the fixed kinds.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// ParseKind parses a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown alert kind %q", s)
}
