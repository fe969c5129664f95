package daemon

import (
	"github.com/charlie0129/batthud/pkg/accessory"
	"github.com/charlie0129/batthud/pkg/config"
	"github.com/charlie0129/batthud/pkg/detector"
	"github.com/charlie0129/batthud/pkg/hud"
)

func hudOptions(conf config.Config) hud.Options {
	return hud.Options{
		DismissAfter: conf.DismissInterval(),
		Entrance:     conf.EntranceDuration(),
		Exit:         conf.ExitDuration(),
	}
}

func rssiThresholds(conf config.Config) accessory.Thresholds {
	return accessory.Thresholds{
		Proximate: conf.RSSIProximate(),
		Near:      conf.RSSINear(),
	}
}

// EngineOptionsFromConfig maps the tunables in conf onto engine options.
// Collaborators such as the clock and preferences are left for the caller.
func EngineOptionsFromConfig(conf config.Config) EngineOptions {
	return EngineOptions{
		Detector: detector.Options{
			Thresholds:  conf.Thresholds(),
			Debounce:    conf.DebounceInterval(),
			ChargeLimit: conf.ChargeLimit(),
		},
		HUD:             hudOptions(conf),
		EstimatorWindow: conf.EstimatorWindow(),
		RSSI:            rssiThresholds(conf),
		PollInterval:    conf.PowerPollInterval(),
	}
}

// ApplyOptionsFromConfig returns what a reload of conf changes at runtime.
func ApplyOptionsFromConfig(conf config.Config) ApplyOptions {
	return ApplyOptions{
		Thresholds:  conf.Thresholds(),
		Debounce:    conf.DebounceInterval(),
		ChargeLimit: conf.ChargeLimit(),
		HUD:         hudOptions(conf),
		RSSI:        rssiThresholds(conf),
	}
}
