package config

import (
	"bytes"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/charlie0129/batthud/pkg/alert"
	"github.com/charlie0129/batthud/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		PowerPollInterval:  ptr.To("5s"),
		DevicePollInterval: ptr.To("15s"),
		Thresholds:         append([]int(nil), alert.DefaultThresholds...),
		DebounceInterval:   ptr.To("2s"),
		DismissInterval:    ptr.To("5s"),
		EntranceDuration:   ptr.To("600ms"),
		ExitDuration:       ptr.To("400ms"),
		RSSIProximate:      ptr.To(-50),
		RSSINear:           ptr.To(-70),
		ChargeLimit:        ptr.To(100),
		EstimatorWindow:    ptr.To(60),
		ProfilerTimeout:    ptr.To("10s"),
		// BLE scanning needs Bluetooth permission, so it is opt-in.
		BLEScanWindow:      ptr.To("0s"),
		MQTTBroker:         ptr.To(""),
		MQTTTopic:          ptr.To("batthud/alerts"),
		SettingsPath:       ptr.To("/var/lib/batthud/settings.db"),
		AllowNonRootAccess: ptr.To(false),
	}
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

// NewFile loads and validates the config at configPath. A missing or empty
// file yields the defaults.
func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
		c:        &RawFileConfig{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

type RawFileConfig struct {
	PowerPollInterval  *string `json:"powerPollInterval,omitempty" yaml:"powerPollInterval,omitempty"`
	DevicePollInterval *string `json:"devicePollInterval,omitempty" yaml:"devicePollInterval,omitempty"`
	Thresholds         []int   `json:"thresholds,omitempty" yaml:"thresholds,omitempty,flow"`
	DebounceInterval   *string `json:"debounceInterval,omitempty" yaml:"debounceInterval,omitempty"`
	DismissInterval    *string `json:"dismissInterval,omitempty" yaml:"dismissInterval,omitempty"`
	EntranceDuration   *string `json:"entranceDuration,omitempty" yaml:"entranceDuration,omitempty"`
	ExitDuration       *string `json:"exitDuration,omitempty" yaml:"exitDuration,omitempty"`
	RSSIProximate      *int    `json:"rssiProximate,omitempty" yaml:"rssiProximate,omitempty"`
	RSSINear           *int    `json:"rssiNear,omitempty" yaml:"rssiNear,omitempty"`
	ChargeLimit        *int    `json:"chargeLimit,omitempty" yaml:"chargeLimit,omitempty"`
	EstimatorWindow    *int    `json:"estimatorWindow,omitempty" yaml:"estimatorWindow,omitempty"`
	ProfilerTimeout    *string `json:"profilerTimeout,omitempty" yaml:"profilerTimeout,omitempty"`
	BLEScanWindow      *string `json:"bleScanWindow,omitempty" yaml:"bleScanWindow,omitempty"`
	MQTTBroker         *string `json:"mqttBroker,omitempty" yaml:"mqttBroker,omitempty"`
	MQTTTopic          *string `json:"mqttTopic,omitempty" yaml:"mqttTopic,omitempty"`
	SettingsPath       *string `json:"settingsPath,omitempty" yaml:"settingsPath,omitempty"`
	AllowNonRootAccess *bool   `json:"allowNonRootAccess,omitempty" yaml:"allowNonRootAccess,omitempty"`
}

// NewRawFileConfigFromConfig returns the effective values of c with every
// field set.
func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	rawConfig := &RawFileConfig{
		PowerPollInterval:  ptr.To(c.PowerPollInterval().String()),
		DevicePollInterval: ptr.To(c.DevicePollInterval().String()),
		Thresholds:         c.Thresholds(),
		DebounceInterval:   ptr.To(c.DebounceInterval().String()),
		DismissInterval:    ptr.To(c.DismissInterval().String()),
		EntranceDuration:   ptr.To(c.EntranceDuration().String()),
		ExitDuration:       ptr.To(c.ExitDuration().String()),
		RSSIProximate:      ptr.To(c.RSSIProximate()),
		RSSINear:           ptr.To(c.RSSINear()),
		ChargeLimit:        ptr.To(c.ChargeLimit()),
		EstimatorWindow:    ptr.To(c.EstimatorWindow()),
		ProfilerTimeout:    ptr.To(c.ProfilerTimeout().String()),
		BLEScanWindow:      ptr.To(c.BLEScanWindow().String()),
		MQTTBroker:         ptr.To(c.MQTTBroker()),
		MQTTTopic:          ptr.To(c.MQTTTopic()),
		SettingsPath:       ptr.To(c.SettingsPath()),
		AllowNonRootAccess: ptr.To(c.AllowNonRootAccess()),
	}

	return rawConfig, nil
}

// duration parses v, or def when v is unset. Values are checked by
// Validate, so a parse failure here falls back to the default.
func duration(v, def *string) time.Duration {
	if v != nil {
		if d, err := time.ParseDuration(*v); err == nil {
			return d
		}
	}
	d, _ := time.ParseDuration(*def)
	return d
}

func (f *File) PowerPollInterval() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return duration(f.c.PowerPollInterval, defaultFileConfig.PowerPollInterval)
}

func (f *File) DevicePollInterval() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return duration(f.c.DevicePollInterval, defaultFileConfig.DevicePollInterval)
}

func (f *File) Thresholds() []int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var thresholds []int

	if f.c.Thresholds != nil {
		thresholds = f.c.Thresholds
	} else {
		thresholds = defaultFileConfig.Thresholds
	}

	return append([]int(nil), thresholds...)
}

func (f *File) DebounceInterval() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return duration(f.c.DebounceInterval, defaultFileConfig.DebounceInterval)
}

func (f *File) DismissInterval() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return duration(f.c.DismissInterval, defaultFileConfig.DismissInterval)
}

func (f *File) EntranceDuration() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return duration(f.c.EntranceDuration, defaultFileConfig.EntranceDuration)
}

func (f *File) ExitDuration() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return duration(f.c.ExitDuration, defaultFileConfig.ExitDuration)
}

func (f *File) RSSIProximate() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.c.RSSIProximate, *defaultFileConfig.RSSIProximate)
}

func (f *File) RSSINear() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.c.RSSINear, *defaultFileConfig.RSSINear)
}

func (f *File) ChargeLimit() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.c.ChargeLimit, *defaultFileConfig.ChargeLimit)
}

func (f *File) EstimatorWindow() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.c.EstimatorWindow, *defaultFileConfig.EstimatorWindow)
}

func (f *File) ProfilerTimeout() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return duration(f.c.ProfilerTimeout, defaultFileConfig.ProfilerTimeout)
}

func (f *File) BLEScanWindow() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return duration(f.c.BLEScanWindow, defaultFileConfig.BLEScanWindow)
}

func (f *File) MQTTBroker() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.c.MQTTBroker, *defaultFileConfig.MQTTBroker)
}

func (f *File) MQTTTopic() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.c.MQTTTopic, *defaultFileConfig.MQTTTopic)
}

func (f *File) SettingsPath() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.c.SettingsPath, *defaultFileConfig.SettingsPath)
}

func (f *File) AllowNonRootAccess() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.c.AllowNonRootAccess, *defaultFileConfig.AllowNonRootAccess)
}

func (f *File) SetChargeLimit(i int) error {
	if i <= 0 || i > 100 {
		return pkgerrors.Wrapf(ErrInvalid, "charge limit must be in (0, 100], got %d", i)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.ChargeLimit = &i

	return nil
}

func (f *File) SetAllowNonRootAccess(b bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.AllowNonRootAccess = &b
}

// Validate checks the effective configuration.
func (f *File) Validate() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return validate(f.c)
}

func validate(c *RawFileConfig) error {
	durations := []struct {
		name     string
		v, def   *string
		positive bool
	}{
		{"powerPollInterval", c.PowerPollInterval, defaultFileConfig.PowerPollInterval, true},
		{"devicePollInterval", c.DevicePollInterval, defaultFileConfig.DevicePollInterval, true},
		{"debounceInterval", c.DebounceInterval, defaultFileConfig.DebounceInterval, false},
		{"dismissInterval", c.DismissInterval, defaultFileConfig.DismissInterval, true},
		{"entranceDuration", c.EntranceDuration, defaultFileConfig.EntranceDuration, false},
		{"exitDuration", c.ExitDuration, defaultFileConfig.ExitDuration, false},
		{"profilerTimeout", c.ProfilerTimeout, defaultFileConfig.ProfilerTimeout, true},
		{"bleScanWindow", c.BLEScanWindow, defaultFileConfig.BLEScanWindow, false},
	}
	for _, d := range durations {
		if d.v == nil {
			continue
		}
		v, err := time.ParseDuration(*d.v)
		if err != nil {
			return pkgerrors.Wrapf(ErrInvalid, "%s: %v", d.name, err)
		}
		if d.positive && v <= 0 {
			return pkgerrors.Wrapf(ErrInvalid, "%s must be positive, got %s", d.name, v)
		}
		if v < 0 {
			return pkgerrors.Wrapf(ErrInvalid, "%s must not be negative, got %s", d.name, v)
		}
	}

	if c.Thresholds != nil {
		if err := alert.ValidateThresholds(c.Thresholds); err != nil {
			return pkgerrors.Wrapf(ErrInvalid, "thresholds: %v", err)
		}
	}

	proximate := ptr.Deref(c.RSSIProximate, *defaultFileConfig.RSSIProximate)
	near := ptr.Deref(c.RSSINear, *defaultFileConfig.RSSINear)
	if near >= proximate {
		return pkgerrors.Wrapf(ErrInvalid, "rssiNear (%d) must be below rssiProximate (%d)", near, proximate)
	}

	if limit := ptr.Deref(c.ChargeLimit, *defaultFileConfig.ChargeLimit); limit <= 0 || limit > 100 {
		return pkgerrors.Wrapf(ErrInvalid, "chargeLimit must be in (0, 100], got %d", limit)
	}

	if w := ptr.Deref(c.EstimatorWindow, *defaultFileConfig.EstimatorWindow); w < 2 {
		return pkgerrors.Wrapf(ErrInvalid, "estimatorWindow must be at least 2, got %d", w)
	}

	return nil
}

// Load reads and validates the file. On error the previous configuration
// is kept.
func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		// If the file is empty, return the empty config.
		// Do not make f.c a nil.
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	err = dec.Decode(&conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}

	if err := validate(&conf); err != nil {
		return pkgerrors.Wrapf(err, "config file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := yaml.NewEncoder(fp)
	enc.SetIndent(2)
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return enc.Close()
}

func (f *File) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"powerPollInterval":  f.PowerPollInterval(),
		"devicePollInterval": f.DevicePollInterval(),
		"thresholds":         f.Thresholds(),
		"debounceInterval":   f.DebounceInterval(),
		"dismissInterval":    f.DismissInterval(),
		"rssiProximate":      f.RSSIProximate(),
		"rssiNear":           f.RSSINear(),
		"chargeLimit":        f.ChargeLimit(),
		"bleScanWindow":      f.BLEScanWindow(),
		"mqttBroker":         f.MQTTBroker(),
		"allowNonRootAccess": f.AllowNonRootAccess(),
	}
}
