package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/batthud/pkg/accessory"
	"github.com/charlie0129/batthud/pkg/alert"
	"github.com/charlie0129/batthud/pkg/config"
	"github.com/charlie0129/batthud/pkg/notify"
	"github.com/charlie0129/batthud/pkg/settings"
	"github.com/charlie0129/batthud/pkg/smc"
	"github.com/charlie0129/batthud/pkg/source"
	"github.com/charlie0129/batthud/pkg/version"
)

func openSettings(path string) settings.Store {
	store, err := settings.OpenSQLite(path)
	if err != nil {
		logrus.WithError(err).WithField("path", path).Warn("failed to open settings database, settings will not persist")
		return settings.NewMemory()
	}
	return store
}

func openPublisher(conf config.Config) *notify.Async {
	if conf.MQTTBroker() == "" {
		return nil
	}

	hostname, _ := os.Hostname()
	pub, err := notify.NewRealPublisher(conf.MQTTBroker(), conf.MQTTTopic(), "batthud-"+hostname)
	if err != nil {
		logrus.WithError(err).WithField("broker", conf.MQTTBroker()).Error("failed to connect to mqtt broker, alerts will not be published")
		return nil
	}

	if err := pub.PublishSystem(notify.SystemEvent{
		Timestamp: time.Now(),
		Event:     "STARTUP",
		Version:   version.Version,
	}); err != nil {
		logrus.WithError(err).Warn("failed to publish startup event")
	}

	return notify.NewAsync(pub, 0)
}

// pollers runs the battery and device sources.
type pollers struct {
	battery *source.Poller
	devices *source.Poller
}

func newPollers(engine *Engine, conf config.Config, sensors source.Sensors) (*pollers, error) {
	bs := source.NewBatterySource(sensors, nil)

	var scanner accessory.Scanner
	if conf.BLEScanWindow() > 0 {
		scanner = accessory.NewBLEScanner()
	}
	ds := source.NewDeviceSource(accessory.NewProfiler(conf.ProfilerTimeout()), scanner, conf.BLEScanWindow(), nil)

	p := &pollers{
		battery: source.NewPoller("battery", func(context.Context) error {
			s, err := bs.Sample()
			if err != nil {
				return err
			}
			engine.SubmitSample(s)
			return nil
		}, func(err error) {
			logrus.WithError(err).Warn("skipping power sample")
		}),
		devices: source.NewPoller("devices", func(ctx context.Context) error {
			s, err := ds.Snapshot(ctx)
			if err != nil {
				return err
			}
			engine.SubmitSnapshot(s)
			return nil
		}, func(err error) {
			logrus.WithError(err).Warn("skipping device snapshot")
		}),
	}

	return p, p.reschedule(conf)
}

func (p *pollers) reschedule(conf config.Config) error {
	if err := p.battery.Every(conf.PowerPollInterval()); err != nil {
		return pkgerrors.Wrap(err, "failed to schedule battery poller")
	}
	if err := p.devices.Every(conf.DevicePollInterval()); err != nil {
		return pkgerrors.Wrap(err, "failed to schedule device poller")
	}
	return nil
}

func (p *pollers) start(ctx context.Context) {
	p.battery.Start(ctx)
	p.devices.Start(ctx)
}

func (p *pollers) stop() {
	p.battery.Stop()
	p.devices.Stop()
}

func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	conf, err := config.NewFile(configPath)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to parse config during startup")
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	store := openSettings(conf.SettingsPath())
	prefs := settings.NewPreferences(store)

	// Open Apple SMC for reading. Without it samples come from the OS
	// battery API alone.
	var (
		sensors   source.Sensors
		telemetry TelemetrySource
	)
	smcConn := smc.New()
	if err := smcConn.Open(); err != nil {
		logrus.WithError(err).Warn("failed to open smc, thermal state will be unavailable")
		smcConn = nil
	} else {
		if missing := smcConn.Probe(); len(missing) > 0 {
			logrus.WithField("missing", missing).Info("some smc keys are unavailable on this machine")
		}
		sensors = smcConn
		telemetry = smcConn
	}

	publisher := openPublisher(conf)

	opts := EngineOptionsFromConfig(conf)
	opts.Preferences = prefs
	if publisher != nil {
		opts.OnAlert = func(ev alert.Event) { publisher.Enqueue(ev) }
	}
	engine, err := NewEngine(opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go engine.Run(ctx)

	server := NewServer(engine, conf, prefs, telemetry)
	go server.ws.Run(ctx)
	go runBroadcaster(ctx, server.ws, engine.Frames().Subscribe(), engine.Decisions().Subscribe())

	p, err := newPollers(engine, conf, sensors)
	if err != nil {
		return err
	}
	p.start(ctx)

	if first, err := prefs.RecordLaunch(version.Version); err != nil {
		logrus.WithError(err).Warn("failed to record launch")
	} else if first {
		logrus.WithField("version", version.Version).Info("first launch of this version")
		engine.Alert(alert.Event{Kind: alert.UserLaunched})
	}

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			if err := conf.Load(); err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			if err := engine.Apply(ctx, ApplyOptionsFromConfig(conf)); err != nil {
				logrus.Errorf("failed to apply reloaded config: %v", err)
				continue
			}
			if err := p.reschedule(conf); err != nil {
				logrus.Errorf("failed to reschedule pollers: %v", err)
				continue
			}
			// Sample right away so new thresholds apply without waiting.
			p.battery.RunNow()
			next, runs, _ := p.battery.Status()
			logrus.WithFields(conf.LogrusFields()).WithFields(logrus.Fields{
				"batteryRuns":    runs,
				"nextBatteryRun": next.Format(time.Kitchen),
			}).Infof("config reloaded")
		}
	}()

	srv := &http.Server{
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// A socket left over from a crashed daemon blocks Listen.
	if _, err := os.Stat(unixSocketPath); err == nil {
		logrus.WithField("path", unixSocketPath).Warn("removing stale socket")
		_ = os.Remove(unixSocketPath)
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to listen on %s", unixSocketPath)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		if err := os.Chmod(unixSocketPath, 0777); err != nil {
			return pkgerrors.Wrapf(err, "failed to change permissions of %s", unixSocketPath)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	shutdownCancel()

	logrus.Info("stopping pollers")
	p.stop()

	cancel()
	<-engine.Done()

	if publisher != nil {
		if err := publisher.PublishSystem(notify.SystemEvent{
			Timestamp: time.Now(),
			Event:     "SHUTDOWN",
			Reason:    sig.String(),
			Version:   version.Version,
		}); err != nil {
			logrus.WithError(err).Warn("failed to publish shutdown event")
		}
		logrus.Info("closing mqtt publisher")
		if err := publisher.Close(); err != nil {
			logrus.Errorf("failed to close mqtt publisher: %v", err)
		}
	}

	if err := store.Close(); err != nil {
		logrus.Errorf("failed to close settings store: %v", err)
	}

	if smcConn != nil {
		logrus.Info("closing smc connection")
		if err := smcConn.Close(); err != nil {
			logrus.Errorf("failed to close smc connection: %v", err)
		}
	}

	logrus.Info("exiting")
	return nil
}
