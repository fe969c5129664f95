// Package settings stores user preferences as string key/value pairs.
package settings

import (
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/batthud/pkg/alert"
)

// Store is a persistent key/value store.
type Store interface {
	// Get returns the value of key. ok is false when the key was never set.
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Close() error
}

// Well-known keys.
const (
	KeySoundEnabled        = "sound.enabled"
	KeyLastLaunchedVersion = "version.lastLaunched"
)

// AlertEnabledKey returns the key toggling alerts of kind k.
func AlertEnabledKey(k alert.Kind) string {
	return "alert." + string(k) + ".enabled"
}

// Preferences reads typed preferences from a Store.
type Preferences struct {
	store Store
}

func NewPreferences(s Store) *Preferences {
	return &Preferences{store: s}
}

// AlertEnabled reports whether alerts of kind k are shown. Unset or
// unreadable values count as enabled.
func (p *Preferences) AlertEnabled(k alert.Kind) bool {
	return p.boolOr(AlertEnabledKey(k), true)
}

func (p *Preferences) SetAlertEnabled(k alert.Kind, enabled bool) error {
	return p.store.Set(AlertEnabledKey(k), strconv.FormatBool(enabled))
}

// SoundEnabled reports whether sound hints are forwarded.
func (p *Preferences) SoundEnabled() bool {
	return p.boolOr(KeySoundEnabled, true)
}

func (p *Preferences) SetSoundEnabled(enabled bool) error {
	return p.store.Set(KeySoundEnabled, strconv.FormatBool(enabled))
}

// LastLaunchedVersion returns the version recorded by the previous launch,
// or "" on first launch.
func (p *Preferences) LastLaunchedVersion() string {
	v, _, err := p.store.Get(KeyLastLaunchedVersion)
	if err != nil {
		logrus.WithError(err).Warn("failed to read last launched version")
		return ""
	}
	return v
}

// RecordLaunch stores version as the last launched one and reports whether
// it differs from the previous value.
func (p *Preferences) RecordLaunch(version string) (bool, error) {
	if p.LastLaunchedVersion() == version {
		return false, nil
	}
	return true, p.store.Set(KeyLastLaunchedVersion, version)
}

func (p *Preferences) boolOr(key string, def bool) bool {
	v, ok, err := p.store.Get(key)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"key": key,
		}).WithError(err).Warn("failed to read setting")
		return def
	}
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"key":   key,
			"value": v,
		}).Warn("ignoring malformed boolean setting")
		return def
	}
	return b
}
