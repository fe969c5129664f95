package gui

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/batthud/pkg/events"
	"github.com/charlie0129/batthud/pkg/hud"
)

const (
	idleTitle    = "🔋"
	offlineTitle = "🚫 Offline"
)

// titleFor renders a frame into the menu bar title and tooltip.
func titleFor(f hud.Frame) (string, string) {
	if !f.Visible || f.Title == "" {
		return idleTitle, "batthud"
	}
	title := f.Title
	if f.Subtitle != "" {
		title = fmt.Sprintf("%s · %s", f.Title, f.Subtitle)
	}
	tooltip := title
	if f.State == hud.Detailed && f.Device != nil {
		tooltip = fmt.Sprintf("%s (%s)", title, f.Device.Address)
	}
	return title, tooltip
}

// mirror applies the HUD stream to the tray. setTitle is swapped out in
// tests.
type mirror struct {
	setTitle func(title, tooltip string)
	last     hud.Frame
}

func (m *mirror) offline() {
	m.last = hud.Frame{}
	m.setTitle(offlineTitle, "batthud daemon is not reachable")
}

func (m *mirror) handle(env events.Envelope) {
	switch env.Type {
	case events.HUDInit, events.HUDFrame:
		f, err := events.DecodeAs[hud.Frame](env)
		if err != nil {
			logrus.WithError(err).WithField("type", env.Type).Error("failed to decode hud frame")
			return
		}
		m.last = f
		m.setTitle(titleFor(f))
	case events.Alert:
		logrus.WithField("data", string(env.Data)).Debug("alert decision")
	default:
		logrus.WithField("type", env.Type).Debug("ignoring unknown envelope")
	}
}
