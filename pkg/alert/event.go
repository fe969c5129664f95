package alert

import (
	"fmt"
	"math"
	"time"

	"github.com/charlie0129/batthud/pkg/accessory"
	"github.com/charlie0129/batthud/pkg/power"
)

// Event is a single alert produced by the detector. It is passed by value
// and never modified after creation. PreviousThermal is the state Thermal
// replaced.
type Event struct {
	Kind            Kind                `json:"kind"`
	Device          *accessory.Record   `json:"device,omitempty"`
	Threshold       *int                `json:"threshold,omitempty"`
	Thermal         *power.ThermalState `json:"thermal,omitempty"`
	PreviousThermal *power.ThermalState `json:"previousThermal,omitempty"`
	Percentage      *float64            `json:"percentage,omitempty"`
	Timestamp       time.Time           `json:"timestamp"`
}

// Cooling reports whether a thermal event moves toward optimal.
func (e Event) Cooling() bool {
	if e.Thermal == nil {
		return false
	}
	if *e.Thermal == power.Optimal {
		return true
	}
	return e.PreviousThermal != nil && *e.Thermal < *e.PreviousThermal
}

// Content is what the renderer shows for an event.
type Content struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Icon     string `json:"icon"`
}

// Content returns the presentation of e.
func (e Event) Content() Content {
	pct := ""
	if e.Percentage != nil {
		pct = fmt.Sprintf("%d%%", int(math.Round(*e.Percentage)))
	}

	switch e.Kind {
	case ChargingBegan:
		return Content{Title: "Charging", Subtitle: pct, Icon: "battery.bolt"}
	case ChargingStopped:
		return Content{Title: "Not Charging", Subtitle: pct, Icon: batteryIcon(e.Percentage)}
	case ChargingComplete:
		return Content{Title: "Fully Charged", Subtitle: pct, Icon: "battery.100.bolt"}
	case PercentThreshold:
		sub := pct
		if e.Threshold != nil {
			sub = fmt.Sprintf("%d%% Remaining", *e.Threshold)
		}
		return Content{Title: "Low Battery", Subtitle: sub, Icon: "battery.0"}
	case DeviceOverheating:
		sub := ""
		if e.Thermal != nil {
			sub = "Thermal State: " + e.Thermal.String()
		}
		return Content{Title: "Device Overheating", Subtitle: sub, Icon: "thermometer.high"}
	case DeviceConnected, DeviceRemoved:
		title, icon := "Accessory", deviceIcon(accessory.Other)
		sub := "Connected"
		if e.Kind == DeviceRemoved {
			sub = "Disconnected"
		}
		if e.Device != nil {
			if e.Device.Name != "" {
				title = e.Device.Name
			}
			icon = deviceIcon(e.Device.Category)
			if e.Kind == DeviceConnected && e.Device.BatteryPercent != nil {
				sub = fmt.Sprintf("Connected, %d%%", *e.Device.BatteryPercent)
			}
		}
		return Content{Title: title, Subtitle: sub, Icon: icon}
	case UserLaunched:
		return Content{Title: "batthud", Subtitle: "Running in the Menu Bar", Icon: "sparkles"}
	default:
		return Content{Title: "Battery", Subtitle: pct, Icon: batteryIcon(e.Percentage)}
	}
}

func batteryIcon(pct *float64) string {
	if pct == nil {
		return "battery.100"
	}
	switch {
	case *pct >= 88:
		return "battery.100"
	case *pct >= 63:
		return "battery.75"
	case *pct >= 38:
		return "battery.50"
	case *pct >= 13:
		return "battery.25"
	default:
		return "battery.0"
	}
}

var categoryIcons = map[accessory.Category]string{
	accessory.Headphones: "headphones",
	accessory.Speaker:    "hifispeaker",
	accessory.Keyboard:   "keyboard",
	accessory.Mouse:      "computermouse",
	accessory.Trackpad:   "rectangle.and.hand.point.up.left",
	accessory.Gamepad:    "gamecontroller",
	accessory.Watch:      "applewatch",
	accessory.Phone:      "iphone",
	accessory.Tablet:     "ipad",
	accessory.Computer:   "laptopcomputer",
	accessory.Pencil:     "applepencil",
}

func deviceIcon(c accessory.Category) string {
	if icon, ok := categoryIcons[c]; ok {
		return icon
	}
	return "wave.3.right"
}
