package client

import (
	"encoding/json"
	"strconv"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/batthud/pkg/accessory"
	"github.com/charlie0129/batthud/pkg/alert"
	"github.com/charlie0129/batthud/pkg/config"
	"github.com/charlie0129/batthud/pkg/daemon"
	"github.com/charlie0129/batthud/pkg/estimator"
	"github.com/charlie0129/batthud/pkg/hud"
	"github.com/charlie0129/batthud/pkg/power"
	"github.com/charlie0129/batthud/pkg/smc"
)

func getJSON[T any](c *Client, path, what string) (*T, error) {
	ret, err := c.Get(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get %s", what)
	}

	var v T
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal %s", what)
	}
	return &v, nil
}

func (c *Client) GetHUD() (*hud.Frame, error) {
	return getJSON[hud.Frame](c, "/hud", "hud frame")
}

func (c *Client) Hover(hovered bool) (string, error) {
	return c.Post("/hud/hover", strconv.FormatBool(hovered))
}

// Click sends a click on the HUD. to is either detailed or dismissed.
func (c *Client) Click(to hud.State) (string, error) {
	payload, err := json.Marshal(string(to))
	if err != nil {
		return "", err
	}
	return c.Post("/hud/click", string(payload))
}

// Open shows the HUD with the current battery status.
func (c *Client) Open() (string, error) {
	return c.Post("/hud/open", "")
}

func (c *Client) GetDevices() ([]accessory.Record, error) {
	ret, err := getJSON[[]accessory.Record](c, "/devices", "devices")
	if err != nil {
		return nil, err
	}
	return *ret, nil
}

func (c *Client) GetConnectedDevices() ([]accessory.Record, error) {
	ret, err := getJSON[[]accessory.Record](c, "/devices/connected", "connected devices")
	if err != nil {
		return nil, err
	}
	return *ret, nil
}

// GetBattery returns the latest power sample. It fails with ErrNotFound
// before the daemon has taken one.
func (c *Client) GetBattery() (*power.Sample, error) {
	return getJSON[power.Sample](c, "/battery", "battery sample")
}

func (c *Client) GetPowerTelemetry() (*smc.Telemetry, error) {
	return getJSON[smc.Telemetry](c, "/power-telemetry", "power telemetry")
}

func (c *Client) GetEstimate() (*estimator.Estimate, error) {
	return getJSON[estimator.Estimate](c, "/estimate", "estimate")
}

func (c *Client) GetHealth() (*daemon.Health, error) {
	return getJSON[daemon.Health](c, "/health", "health")
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	return getJSON[config.RawFileConfig](c, "/config", "config")
}

func (c *Client) SetChargeLimit(l int) (string, error) {
	return c.Put("/charge-limit", strconv.Itoa(l))
}

func (c *Client) GetSettings() (*daemon.Settings, error) {
	return getJSON[daemon.Settings](c, "/settings", "settings")
}

func (c *Client) SetSoundEnabled(enabled bool) (string, error) {
	return c.Put("/settings/sound", strconv.FormatBool(enabled))
}

func (c *Client) SetAlertEnabled(kind alert.Kind, enabled bool) (string, error) {
	return c.Put("/settings/alert/"+string(kind), strconv.FormatBool(enabled))
}

func (c *Client) GetVersion() (string, error) {
	ret, err := getJSON[string](c, "/version", "version")
	if err != nil {
		return "", err
	}
	return *ret, nil
}
