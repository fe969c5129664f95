package daemon

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	ginlogrus "github.com/toorop/gin-logrus"

	"github.com/charlie0129/batthud/pkg/alert"
	"github.com/charlie0129/batthud/pkg/config"
	"github.com/charlie0129/batthud/pkg/hud"
	"github.com/charlie0129/batthud/pkg/settings"
	"github.com/charlie0129/batthud/pkg/smc"
	"github.com/charlie0129/batthud/pkg/version"
)

// TelemetrySource reads live power figures.
type TelemetrySource interface {
	GetPowerTelemetry() (*smc.Telemetry, error)
}

// Server exposes the engine over HTTP.
type Server struct {
	engine    *Engine
	conf      config.Config
	prefs     *settings.Preferences
	telemetry TelemetrySource
	ws        *wsHub
}

// NewServer returns a Server. telemetry may be nil when the SMC is not
// available.
func NewServer(engine *Engine, conf config.Config, prefs *settings.Preferences, telemetry TelemetrySource) *Server {
	return &Server{
		engine:    engine,
		conf:      conf,
		prefs:     prefs,
		telemetry: telemetry,
		ws:        newWSHub(),
	}
}

func (s *Server) Routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(ginlogrus.Logger(logrus.StandardLogger()), gin.Recovery())

	router.GET("/hud", s.getHUD)
	router.POST("/hud/hover", s.hover)
	router.POST("/hud/click", s.click)
	router.POST("/hud/open", s.open)
	router.GET("/ws", s.serveWS)

	router.GET("/devices", s.getDevices)
	router.GET("/devices/connected", s.getConnectedDevices)
	router.GET("/battery", s.getBattery)
	router.GET("/estimate", s.getEstimate)
	router.GET("/power-telemetry", s.getPowerTelemetry)
	router.GET("/health", s.getHealth)

	router.GET("/config", s.getConfig)
	router.PUT("/charge-limit", s.setChargeLimit)

	router.GET("/settings", s.getSettings)
	router.PUT("/settings/sound", s.setSound)
	router.PUT("/settings/alert/:kind", s.setAlertEnabled)

	router.GET("/version", getVersion)

	return router
}

func abort(c *gin.Context, code int, err error) {
	c.IndentedJSON(code, err.Error())
	_ = c.AbortWithError(code, err)
}

func (s *Server) getHUD(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.engine.Frame())
}

func (s *Server) hover(c *gin.Context) {
	var hovered bool
	if err := c.BindJSON(&hovered); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	if !s.engine.Hover(hovered) {
		abort(c, http.StatusServiceUnavailable, errors.New("engine is busy"))
		return
	}

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("hovered: %t", hovered))
}

func (s *Server) click(c *gin.Context) {
	var target string
	if err := c.BindJSON(&target); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	to := hud.State(target)
	if to != hud.Detailed && to != hud.Dismissed {
		abort(c, http.StatusBadRequest, fmt.Errorf("click target must be %q or %q, got %q", hud.Detailed, hud.Dismissed, target))
		return
	}

	if !s.engine.Click(to) {
		abort(c, http.StatusServiceUnavailable, errors.New("engine is busy"))
		return
	}

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("clicked: %s", to))
}

func (s *Server) open(c *gin.Context) {
	if !s.engine.Alert(alert.Event{Kind: alert.UserInitiated}) {
		abort(c, http.StatusServiceUnavailable, errors.New("engine is busy"))
		return
	}

	c.IndentedJSON(http.StatusCreated, "opened hud")
}

func (s *Server) getDevices(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.engine.Devices())
}

func (s *Server) getConnectedDevices(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.engine.ConnectedDevices())
}

func (s *Server) getBattery(c *gin.Context) {
	sample := s.engine.LastSample()
	if sample == nil {
		abort(c, http.StatusNotFound, errors.New("no battery sample yet"))
		return
	}
	c.IndentedJSON(http.StatusOK, sample)
}

func (s *Server) getPowerTelemetry(c *gin.Context) {
	if s.telemetry == nil {
		abort(c, http.StatusServiceUnavailable, errors.New("smc is not available"))
		return
	}
	t, err := s.telemetry.GetPowerTelemetry()
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, t)
}

func (s *Server) getEstimate(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.engine.Estimate())
}

func (s *Server) getHealth(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.engine.Health())
}

func (s *Server) getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(s.conf)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func (s *Server) setChargeLimit(c *gin.Context) {
	var l int
	if err := c.BindJSON(&l); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	if err := s.conf.SetChargeLimit(l); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	if err := s.conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		abort(c, http.StatusInternalServerError, err)
		return
	}

	s.engine.SetChargeLimit(l)
	logrus.Infof("set charge limit to %d", l)

	msg := fmt.Sprintf("set charge limit to %d%%", l)
	if sample := s.engine.LastSample(); sample != nil {
		msg += fmt.Sprintf(", current charge: %.0f%%", sample.Percentage)
	}
	if l >= 100 {
		msg = "set charge limit to 100%. charging completes at full charge."
	}

	c.IndentedJSON(http.StatusCreated, msg)
}

// Settings is the user-facing view of the settings store.
type Settings struct {
	SoundEnabled        bool                `json:"soundEnabled"`
	Alerts              map[alert.Kind]bool `json:"alerts"`
	LastLaunchedVersion string              `json:"lastLaunchedVersion,omitempty"`
}

func (s *Server) getSettings(c *gin.Context) {
	ret := Settings{
		SoundEnabled:        s.prefs.SoundEnabled(),
		Alerts:              make(map[alert.Kind]bool),
		LastLaunchedVersion: s.prefs.LastLaunchedVersion(),
	}
	for _, k := range alert.Kinds() {
		ret.Alerts[k] = s.prefs.AlertEnabled(k)
	}
	c.IndentedJSON(http.StatusOK, ret)
}

func (s *Server) setSound(c *gin.Context) {
	var enabled bool
	if err := c.BindJSON(&enabled); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	if err := s.prefs.SetSoundEnabled(enabled); err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}

	logrus.WithField("enabled", enabled).Info("sound setting changed")
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("sound enabled: %t", enabled))
}

func (s *Server) setAlertEnabled(c *gin.Context) {
	kind := alert.Kind(c.Param("kind"))
	if !kind.Valid() {
		abort(c, http.StatusNotFound, fmt.Errorf("unknown alert kind %q", kind))
		return
	}

	var enabled bool
	if err := c.BindJSON(&enabled); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	if err := s.prefs.SetAlertEnabled(kind, enabled); err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"kind":    kind,
		"enabled": enabled,
	}).Info("alert setting changed")
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("%s enabled: %t", kind, enabled))
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}
