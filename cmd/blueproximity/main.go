// Command blueproximity locks and unlocks the desktop session based on
// the Bluetooth proximity of paired devices.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"

	"github.com/krt1k/blueproximity-v2/internal/bluetooth"
	"github.com/krt1k/blueproximity-v2/internal/config"
	"github.com/krt1k/blueproximity-v2/internal/led"
	"github.com/krt1k/blueproximity-v2/internal/mqtt"
	"github.com/krt1k/blueproximity-v2/internal/proximity"
	"github.com/krt1k/blueproximity-v2/internal/screenlock"
	"github.com/krt1k/blueproximity-v2/internal/status"
	"github.com/krt1k/blueproximity-v2/internal/web"
)

const defaultBroker = "tcp://localhost:1883"

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to config file")
	envPath := flag.String("env", "", "Path to .env file (defaults to the config directory)")
	broker := flag.String("broker", "", "MQTT broker address (overrides env and config)")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	httpAddr := flag.String("http", ":8750", "HTTP status address (empty to disable)")
	source := flag.String("source", "dbus", `RSSI source: "dbus" or "hcitool"`)
	ledPin := flag.Int("led-pin", -1, "BCM pin for the presence LED (-1 to disable)")
	printState := flag.Bool("print-state", false, "Sample each device once, print RSSI and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Parse()

	if *showVersion {
		fmt.Println(versioninfo.Short())
		return
	}

	if err := run(*configPath, *envPath, *broker, *heartbeat, *httpAddr, *source, *ledPin, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(configPath, envPath, brokerFlag string, heartbeat time.Duration, httpAddr, sourceName string, ledPin int, printState bool) error {
	envExplicit := envPath != ""
	if !envExplicit {
		envPath = config.DefaultEnvPath()
	}
	if err := config.LoadEnv(envPath, envExplicit); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	devices := cfg.DeviceList()
	broker := resolveBroker(brokerFlag, cfg.Broker)

	src, err := newSource(sourceName)
	if err != nil {
		return err
	}
	defer src.Close()

	// Print state mode
	if printState {
		for _, d := range devices {
			if rssi, ok := src.Sample(d.Address); ok {
				fmt.Printf("%s (%s): RSSI %d\n", d.Name, d.Address, rssi)
			} else {
				fmt.Printf("%s (%s): no reading\n", d.Name, d.Address)
			}
		}
		return nil
	}

	// The screensaver service must be reachable at startup; a daemon
	// that can never lock is worse than one that refuses to run.
	lock, err := screenlock.NewGnomeController()
	if err != nil {
		return fmt.Errorf("init screenlock: %w", err)
	}
	defer lock.Close()

	publisher, err := mqtt.NewRealPublisher(broker,
		os.Getenv(config.EnvMQTTUsername), os.Getenv(config.EnvMQTTPassword))
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	var indicator led.Indicator
	if ledPin >= 0 {
		l, err := led.NewRealLED(ledPin)
		if err != nil {
			return fmt.Errorf("init led: %w", err)
		}
		defer l.Close()
		indicator = l
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		ScanIntervalMs:  cfg.ScanInterval().Milliseconds(),
		LockTimeoutMs:   cfg.Settings().LockTimeout.Milliseconds(),
		UnlockTimeoutMs: cfg.Settings().UnlockTimeout.Milliseconds(),
		LockThreshold:   cfg.LockThreshold,
		UnlockThreshold: cfg.UnlockThreshold,
		InitialPresence: cfg.InitialPresence,
		NoReading:       cfg.NoReading,
		Broker:          broker,
		HTTPPort:        httpAddr,
		Source:          sourceName,
	}, versioninfo.Short())

	mon, err := proximity.NewMonitor(cfg.Settings(), devices, proximity.WallScheduler{}, lock, time.Now, func(ev proximity.Event) {
		log.Printf("event: %s", ev.Type)
		if err := publisher.Publish(ev); err != nil {
			log.Printf("publish error: %v", err)
		}
	})
	if err != nil {
		return err
	}
	tracker.Update(mon.Snapshot())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if httpAddr != "" {
		srv := web.New(httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", httpAddr)
	}

	log.Printf("started: devices=%d scan=%v thresholds=%d/%d broker=%s source=%s",
		len(devices), cfg.ScanInterval(), cfg.LockThreshold, cfg.UnlockThreshold, broker, sourceName)

	ticker := time.NewTicker(cfg.ScanInterval())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(src, devices, mon, publisher, publisher, tracker, indicator, heartbeat, time.Now, ticker.C, sigCh)
}

func runLoop(src bluetooth.Source, devices []proximity.Device, mon *proximity.Monitor, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, indicator led.Indicator, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			return shutdown(mon, publisher, mqttStatus, tracker, now, s)

		case <-tick:
			t := now()
			for i, d := range devices {
				// A device already being sampled finishes; the rest of
				// the pass is abandoned when a signal arrives.
				if i > 0 {
					select {
					case s := <-sig:
						log.Printf("signal during scan, abandoning remaining devices")
						return shutdown(mon, publisher, mqttStatus, tracker, now, s)
					default:
					}
				}

				rssi, ok := src.Sample(d.Address)
				event := mon.Observe(d.Name, rssi, ok, t)
				if event == nil {
					continue
				}
				if event.HasRSSI {
					log.Printf("event: %s %s (rssi=%d present=%d)", event.Type, d.Name, event.RSSI, event.PresentDevices)
				} else {
					log.Printf("event: %s %s (no reading, present=%d)", event.Type, d.Name, event.PresentDevices)
				}
				if err := publisher.Publish(*event); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
			}

			// Check for heartbeat
			if hbData := mon.CheckHeartbeat(t, heartbeat); hbData != nil {
				log.Printf("heartbeat: uptime=%v present=%d away=%d locks=%d unlocks=%d",
					hbData.Uptime, hbData.Counts.DevicePresent, hbData.Counts.DeviceAway, hbData.Counts.Locks, hbData.Counts.Unlocks)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					refreshTracker(mon, mqttStatus, tracker)
					hbEvent.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

			// Update status tracker for HTTP/LED consumers
			snap := mon.Snapshot()
			if tracker != nil {
				tracker.Update(snap)
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}
			if indicator != nil {
				present := 0
				for _, d := range snap.Devices {
					if d.Present {
						present++
					}
				}
				if err := indicator.Set(present > 0); err != nil {
					log.Printf("led error: %v", err)
				}
			}
		}
	}
}

// shutdown cancels all pending timers and publishes a retained
// SHUTDOWN event so consumers see the daemon go away cleanly.
func shutdown(mon *proximity.Monitor, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time, s os.Signal) error {
	name := signalName(s)
	log.Printf("received %v, shutting down", s)

	mon.CancelTimers()

	event := mqtt.SystemEvent{
		Timestamp: now(),
		Event:     "SHUTDOWN",
		Reason:    name,
		Retained:  true,
	}
	if tracker != nil {
		tracker.Update(mon.Snapshot())
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
		event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", name)
	}
	if err := publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
	return nil
}

func refreshTracker(mon *proximity.Monitor, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker) {
	tracker.Update(mon.Snapshot())
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
}

func newSource(name string) (bluetooth.Source, error) {
	switch name {
	case "dbus":
		return bluetooth.NewDBusSource()
	case "hcitool":
		return bluetooth.NewHcitoolSource()
	}
	return nil, fmt.Errorf("unknown RSSI source %q (want dbus or hcitool)", name)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// resolveBroker applies the precedence flag > environment > config.
func resolveBroker(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(config.EnvBroker); env != "" {
		return env
	}
	if configValue != "" {
		return configValue
	}
	return defaultBroker
}
