// Package notify forwards alerts to an MQTT broker.
package notify

import (
	"encoding/json"
	"time"

	"github.com/charlie0129/batthud/pkg/alert"
)

const (
	// DefaultTopic receives every detected alert.
	DefaultTopic = "batthud/alerts"
	// TopicSystem receives lifecycle events.
	TopicSystem = "batthud/system"
)

// Publisher publishes alerts.
type Publisher interface {
	// Publish sends an alert. A failure must not stop the daemon.
	Publish(ev alert.Event) error
	// PublishSystem sends a lifecycle event.
	PublishSystem(ev SystemEvent) error
	Close() error
}

// SystemEvent is a lifecycle event such as STARTUP or SHUTDOWN.
type SystemEvent struct {
	Timestamp time.Time
	Event     string
	Reason    string
	Version   string
}

// Payload is the JSON body published for an alert.
type Payload struct {
	Alert AlertPayload `json:"alert"`
}

type AlertPayload struct {
	Timestamp  string   `json:"timestamp"`
	Kind       string   `json:"kind"`
	Title      string   `json:"title"`
	Subtitle   string   `json:"subtitle,omitempty"`
	Icon       string   `json:"icon,omitempty"`
	Device     string   `json:"device,omitempty"`
	Address    string   `json:"address,omitempty"`
	Threshold  *int     `json:"threshold,omitempty"`
	Thermal    string   `json:"thermal,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
}

// FormatPayload creates the JSON payload for an alert.
func FormatPayload(ev alert.Event) ([]byte, error) {
	c := ev.Content()
	p := AlertPayload{
		Timestamp:  ev.Timestamp.UTC().Format(time.RFC3339),
		Kind:       string(ev.Kind),
		Title:      c.Title,
		Subtitle:   c.Subtitle,
		Icon:       c.Icon,
		Threshold:  ev.Threshold,
		Percentage: ev.Percentage,
	}
	if ev.Device != nil {
		p.Device = ev.Device.Name
		p.Address = ev.Device.Address
	}
	if ev.Thermal != nil {
		p.Thermal = ev.Thermal.String()
	}
	return json.Marshal(Payload{Alert: p})
}

type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	Version   string `json:"version,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a lifecycle event.
func FormatSystemPayload(ev SystemEvent) ([]byte, error) {
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
			Event:     ev.Event,
			Reason:    ev.Reason,
			Version:   ev.Version,
		},
	})
}
