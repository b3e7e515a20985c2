package internal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/krt1k/blueproximity-v2/internal/bluetooth"
	"github.com/krt1k/blueproximity-v2/internal/mqtt"
	"github.com/krt1k/blueproximity-v2/internal/proximity"
	"github.com/krt1k/blueproximity-v2/internal/screenlock"
)

const (
	phoneAddr = "78:02:8B:CE:F6:DF"
	watchAddr = "00:A4:0C:EC:2B:6B"
)

func testSettings() proximity.Settings {
	return proximity.Settings{
		LockThreshold:   -15,
		UnlockThreshold: -10,
		LockTimeout:     15 * time.Second,
		UnlockTimeout:   5 * time.Second,
	}
}

// TestIntegrationFullLockUnlockCycle tests the complete flow from RSSI
// sampling to the screensaver using fakes: the device leaves, the screen
// locks after the timeout, the device returns, the screen unlocks.
func TestIntegrationFullLockUnlockCycle(t *testing.T) {
	src := bluetooth.NewFakeSource(map[string][]bluetooth.Sample{
		phoneAddr: {
			{RSSI: -5, OK: true},  // t=0s   in range
			{RSSI: -6, OK: true},  // t=5s
			{RSSI: -20, OK: true}, // t=10s  leaves
			{RSSI: -22, OK: true}, // t=15s  still away (timer pending)
			{RSSI: -5, OK: true},  // t=20s+ back in range
		},
	})
	sched := proximity.NewFakeScheduler()
	lock := screenlock.NewFakeController()
	publisher := mqtt.NewFakePublisher()

	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	devices := []proximity.Device{{Name: "iPhone", Address: phoneAddr}}
	mon, err := proximity.NewMonitor(testSettings(), devices, sched, lock, func() time.Time { return startTime }, func(ev proximity.Event) {
		if err := publisher.Publish(ev); err != nil {
			t.Errorf("publish: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	scan := func(i int) {
		now := startTime.Add(time.Duration(i) * 5 * time.Second)
		rssi, ok := src.Sample(phoneAddr)
		if ev := mon.Observe("iPhone", rssi, ok, now); ev != nil {
			if err := publisher.Publish(*ev); err != nil {
				t.Fatalf("scan %d: publish: %v", i, err)
			}
		}
	}

	// Two in-range scans, then the departure.
	for i := 0; i < 4; i++ {
		scan(i)
	}
	if lock.LockCalls != 0 {
		t.Fatal("locked before the debounce timer expired")
	}

	// Lock timer expires 15s after the departure.
	sched.Advance(15 * time.Second)
	if !lock.Locked {
		t.Fatal("expected screen to be locked")
	}

	// The device comes back; unlock after 5s sustained presence.
	scan(4)
	sched.Advance(5 * time.Second)
	if lock.Locked {
		t.Fatal("expected screen to be unlocked")
	}
	if lock.LockCalls != 1 || lock.UnlockCalls != 1 {
		t.Errorf("lock calls: %d, unlock calls: %d, want 1 each", lock.LockCalls, lock.UnlockCalls)
	}

	wantTypes := []proximity.EventType{
		proximity.EventDeviceAway,
		proximity.EventScreenLocked,
		proximity.EventDevicePresent,
		proximity.EventScreenUnlocked,
	}
	if len(publisher.Events) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d: %+v", len(wantTypes), len(publisher.Events), publisher.Events)
	}
	for i, want := range wantTypes {
		if publisher.Events[i].Type != want {
			t.Errorf("event %d: expected %s, got %s", i, want, publisher.Events[i].Type)
		}
	}

	// Every payload parses and carries the basics.
	for i, payload := range publisher.Payloads {
		var parsed mqtt.Payload
		if err := json.Unmarshal(payload, &parsed); err != nil {
			t.Errorf("payload %d: invalid JSON: %v", i, err)
		}
		if parsed.Proximity.Timestamp == "" {
			t.Errorf("payload %d: missing timestamp", i)
		}
		if parsed.Proximity.Event == "" {
			t.Errorf("payload %d: missing event", i)
		}
	}
}

// TestIntegrationSecondDeviceHoldsLock verifies the unanimity rule: no
// lock while any configured device is still in range.
func TestIntegrationSecondDeviceHoldsLock(t *testing.T) {
	sched := proximity.NewFakeScheduler()
	lock := screenlock.NewFakeController()
	publisher := mqtt.NewFakePublisher()

	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	devices := []proximity.Device{
		{Name: "iPhone", Address: phoneAddr},
		{Name: "ULT-WEAR", Address: watchAddr},
	}
	mon, err := proximity.NewMonitor(testSettings(), devices, sched, lock, func() time.Time { return startTime }, func(ev proximity.Event) {
		publisher.Publish(ev)
	})
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	now := startTime
	observe := func(name string, rssi int) {
		if ev := mon.Observe(name, rssi, true, now); ev != nil {
			publisher.Publish(*ev)
		}
		now = now.Add(time.Second)
	}

	// Both in range, then the phone leaves.
	observe("iPhone", -5)
	observe("ULT-WEAR", -5)
	observe("iPhone", -20)
	sched.Advance(15 * time.Second)

	if lock.LockCalls != 0 {
		t.Fatal("locked while the watch was still in range")
	}

	// The watch leaves too; now the lock goes through.
	observe("ULT-WEAR", -20)
	sched.Advance(15 * time.Second)

	if !lock.Locked {
		t.Fatal("expected lock once all devices were away")
	}
}

// TestIntegrationBounceDoesNotLock verifies a brief dropout shorter than
// the lock timeout leaves the screen alone.
func TestIntegrationBounceDoesNotLock(t *testing.T) {
	sched := proximity.NewFakeScheduler()
	lock := screenlock.NewFakeController()
	publisher := mqtt.NewFakePublisher()

	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	devices := []proximity.Device{{Name: "iPhone", Address: phoneAddr}}
	mon, err := proximity.NewMonitor(testSettings(), devices, sched, lock, func() time.Time { return startTime }, func(ev proximity.Event) {
		publisher.Publish(ev)
	})
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	mon.Observe("iPhone", -5, true, startTime)
	mon.Observe("iPhone", -20, true, startTime.Add(5*time.Second))
	sched.Advance(10 * time.Second) // lock timer still pending
	mon.Observe("iPhone", -5, true, startTime.Add(15*time.Second))
	sched.Advance(time.Hour)

	if lock.LockCalls != 0 {
		t.Errorf("expected no lock for a bounce, got %d calls", lock.LockCalls)
	}
}

// TestIntegrationManualLockLeftAlone verifies the daemon never unlocks a
// screen it did not lock itself.
func TestIntegrationManualLockLeftAlone(t *testing.T) {
	sched := proximity.NewFakeScheduler()
	lock := screenlock.NewFakeController()
	lock.Locked = true // locked by the user

	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	devices := []proximity.Device{{Name: "iPhone", Address: phoneAddr}}
	mon, err := proximity.NewMonitor(testSettings(), devices, sched, lock, func() time.Time { return startTime }, nil)
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	// Leave and come back; presence is confirmed but the lock was not
	// ours, so no unlock is issued.
	mon.Observe("iPhone", -20, true, startTime)
	mon.Observe("iPhone", -5, true, startTime.Add(time.Second))
	sched.Advance(time.Hour)

	if lock.UnlockCalls != 0 {
		t.Errorf("expected no unlock of a manual lock, got %d calls", lock.UnlockCalls)
	}
	if !lock.Locked {
		t.Error("screen should still be locked")
	}
}

// TestIntegrationPayloadFormat verifies the exact JSON structure.
func TestIntegrationPayloadFormat(t *testing.T) {
	event := proximity.Event{
		Timestamp:      time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:           proximity.EventDeviceAway,
		Device:         "iPhone",
		RSSI:           -21,
		HasRSSI:        true,
		PresentDevices: 0,
	}

	publisher := mqtt.NewFakePublisher()
	publisher.Publish(event)

	expected := `{"proximity":{"timestamp":"2026-02-02T22:18:12Z","event":"DEVICE_AWAY","device":"iPhone","rssi":-21,"present_devices":0}}`

	if string(publisher.Payloads[0]) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(publisher.Payloads[0]), expected)
	}
}

// TestIntegrationShutdownPayloadFormat verifies the exact JSON structure
// for shutdown events without a status snapshot.
func TestIntegrationShutdownPayloadFormat(t *testing.T) {
	publisher := mqtt.NewFakePublisher()

	event := mqtt.SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	publisher.PublishSystem(event)

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`

	if string(publisher.SystemPayloads[0]) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(publisher.SystemPayloads[0]), expected)
	}
}

// TestIntegrationShutdownCancelsPendingLock verifies that a departure
// followed by shutdown does not lock the screen afterwards.
func TestIntegrationShutdownCancelsPendingLock(t *testing.T) {
	sched := proximity.NewFakeScheduler()
	lock := screenlock.NewFakeController()

	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	devices := []proximity.Device{{Name: "iPhone", Address: phoneAddr}}
	mon, err := proximity.NewMonitor(testSettings(), devices, sched, lock, func() time.Time { return startTime }, nil)
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	mon.Observe("iPhone", -20, true, startTime)
	mon.CancelTimers()
	sched.Advance(time.Hour)

	if lock.LockCalls != 0 {
		t.Errorf("expected no lock after shutdown, got %d calls", lock.LockCalls)
	}
}
