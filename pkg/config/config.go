package config

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrInvalid is returned when a configuration value is out of range.
var ErrInvalid = errors.New("invalid configuration")

type Config interface {
	PowerPollInterval() time.Duration
	DevicePollInterval() time.Duration
	Thresholds() []int
	DebounceInterval() time.Duration
	DismissInterval() time.Duration
	EntranceDuration() time.Duration
	ExitDuration() time.Duration
	RSSIProximate() int
	RSSINear() int
	ChargeLimit() int
	EstimatorWindow() int
	ProfilerTimeout() time.Duration
	BLEScanWindow() time.Duration
	MQTTBroker() string
	MQTTTopic() string
	SettingsPath() string
	AllowNonRootAccess() bool

	SetChargeLimit(int) error
	SetAllowNonRootAccess(bool)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
	// Validate checks every value and returns an error wrapping ErrInvalid.
	Validate() error

	LogrusFields() logrus.Fields
}
