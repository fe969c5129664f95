// Package accessory tracks nearby Bluetooth accessories: their connection
// state, battery level and proximity.
package accessory

import (
	"fmt"
	"strings"
	"time"
)

// ConnectionState is the connection state of an accessory.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connected
)

func (s ConnectionState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ConnectionState) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "connected":
		*s = Connected
	case "disconnected":
		*s = Disconnected
	default:
		return fmt.Errorf("unknown connection state %q", string(b))
	}
	return nil
}

// Category is the kind of accessory, used to pick an icon.
type Category string

const (
	Headphones Category = "headphones"
	Speaker    Category = "speaker"
	Keyboard   Category = "keyboard"
	Mouse      Category = "mouse"
	Trackpad   Category = "trackpad"
	Gamepad    Category = "gamepad"
	Watch      Category = "watch"
	Phone      Category = "phone"
	Tablet     Category = "tablet"
	Computer   Category = "computer"
	Pencil     Category = "pencil"
	Other      Category = "other"
)

var categoryAliases = map[string]Category{
	"headphones":      Headphones,
	"headphone":       Headphones,
	"headset":         Headphones,
	"earbuds":         Headphones,
	"airpods":         Headphones,
	"speaker":         Speaker,
	"speakers":        Speaker,
	"keyboard":        Keyboard,
	"mouse":           Mouse,
	"trackpad":        Trackpad,
	"gamepad":         Gamepad,
	"game controller": Gamepad,
	"joystick":        Gamepad,
	"watch":           Watch,
	"phone":           Phone,
	"smartphone":      Phone,
	"tablet":          Tablet,
	"computer":        Computer,
	"laptop":          Computer,
	"desktop":         Computer,
	"pencil":          Pencil,
	"stylus":          Pencil,
}

// ParseCategory maps a device type string as reported by the system to a
// Category. Unknown strings map to Other.
func ParseCategory(s string) Category {
	key := strings.ToLower(strings.TrimSpace(s))
	if c, ok := categoryAliases[key]; ok {
		return c
	}
	return Other
}

// Bucket is a coarse distance derived from signal strength.
type Bucket string

const (
	Proximate Bucket = "proximate"
	Near      Bucket = "near"
	Far       Bucket = "far"
)

// Thresholds partition RSSI (dBm) into distance buckets. A reading at or
// above Proximate is proximate, at or above Near is near, anything else
// (including no reading) is far.
type Thresholds struct {
	Proximate int `json:"proximate"`
	Near      int `json:"near"`
}

// DefaultThresholds are used when no configuration overrides them.
var DefaultThresholds = Thresholds{Proximate: -50, Near: -70}

// Distance returns the bucket for rssi.
func (t Thresholds) Distance(rssi *int) Bucket {
	if rssi == nil {
		return Far
	}
	switch {
	case *rssi >= t.Proximate:
		return Proximate
	case *rssi >= t.Near:
		return Near
	default:
		return Far
	}
}

// Record is what the tracker knows about one accessory.
type Record struct {
	Address         string          `json:"address"`
	Name            string          `json:"name"`
	ConnectionState ConnectionState `json:"connectionState"`
	BatteryPercent  *int            `json:"batteryPercent,omitempty"`
	RSSI            *int            `json:"rssi,omitempty"`
	Distance        Bucket          `json:"distance"`
	Category        Category        `json:"category"`
	LastUpdated     time.Time       `json:"lastUpdated"`
}

// clone returns a deep copy so callers never share the optional fields.
func (r Record) clone() Record {
	if r.BatteryPercent != nil {
		v := *r.BatteryPercent
		r.BatteryPercent = &v
	}
	if r.RSSI != nil {
		v := *r.RSSI
		r.RSSI = &v
	}
	return r
}

// Snapshot is one poll of the accessory source. Addresses are as reported
// by the system, not normalized.
type Snapshot struct {
	Devices   []Record  `json:"devices"`
	Timestamp time.Time `json:"timestamp"`
}
