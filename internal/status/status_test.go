package status

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/krt1k/blueproximity-v2/internal/proximity"
)

func testSnapshot() proximity.Snapshot {
	return proximity.Snapshot{
		Devices: []proximity.DeviceStatus{
			{
				Name:     "iPhone",
				Address:  "AA:BB:CC:DD:EE:FF",
				Present:  true,
				Observed: true,
				RSSI:     -7,
				LastSeen: time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC),
			},
			{
				Name:    "watch",
				Address: "11:22:33:44:55:66",
			},
		},
		LockedByUs: true,
		Counts:     proximity.Counts{DeviceAway: 2, Locks: 1},
	}
}

func TestTrackerUpdateAndSnapshot(t *testing.T) {
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	tr := NewTracker(start, Config{Broker: "tcp://broker:1883"}, "v1.2.0")

	tr.Update(testSnapshot())
	tr.SetMQTTConnected(true)

	snap := tr.Snapshot()
	if len(snap.Devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(snap.Devices))
	}
	if !snap.LockedByUs {
		t.Error("LockedByUs lost")
	}
	if snap.Counts.Locks != 1 {
		t.Errorf("counts: %+v", snap.Counts)
	}
	if !snap.MQTTConnected {
		t.Error("MQTTConnected lost")
	}
	if snap.Version != "v1.2.0" {
		t.Errorf("version: %q", snap.Version)
	}
	if snap.PresentCount() != 1 {
		t.Errorf("PresentCount: got %d, want 1", snap.PresentCount())
	}
	if snap.Now.IsZero() {
		t.Error("Snapshot must stamp Now")
	}
}

func TestSnapshotUptime(t *testing.T) {
	s := Snapshot{
		StartTime: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 8, 1, 9, 42, 0, 0, time.UTC),
	}
	if s.Uptime() != 42*time.Minute {
		t.Errorf("uptime: got %v", s.Uptime())
	}
}

func TestFormatJSONDeviceStates(t *testing.T) {
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	tr := NewTracker(start, Config{}, "")
	tr.Update(testSnapshot())

	var out StatusJSON
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(out.Status.Devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(out.Status.Devices))
	}
	phone := out.Status.Devices[0]
	if phone.State != "PRESENT" {
		t.Errorf("phone state: %q", phone.State)
	}
	if phone.RSSI == nil || *phone.RSSI != -7 {
		t.Errorf("phone rssi: %v", phone.RSSI)
	}
	if phone.LastSeen != "2026-08-01T09:30:00Z" {
		t.Errorf("phone last_seen: %q", phone.LastSeen)
	}

	// Never-observed devices report UNKNOWN with no sample fields.
	watch := out.Status.Devices[1]
	if watch.State != "UNKNOWN" {
		t.Errorf("watch state: %q", watch.State)
	}
	if watch.RSSI != nil || watch.LastSeen != "" {
		t.Errorf("watch sample fields set without a sample: %+v", watch)
	}

	if !out.Status.Screen.LockedByUs {
		t.Error("locked_by_us lost")
	}
	if out.Status.PresentDevices != 1 {
		t.Errorf("present_devices: %d", out.Status.PresentDevices)
	}
	if out.Status.Event != "" {
		t.Errorf("web JSON must not carry an event field, got %q", out.Status.Event)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	tr := NewTracker(start, Config{}, "")
	tr.Update(testSnapshot())

	var out StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(tr.Snapshot(), "SHUTDOWN", "SIGTERM"), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Status.Event != "SHUTDOWN" || out.Status.Reason != "SIGTERM" {
		t.Errorf("event/reason: got %q/%q", out.Status.Event, out.Status.Reason)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	cfg := Config{
		ScanIntervalMs:  5000,
		LockTimeoutMs:   15000,
		UnlockTimeoutMs: 5000,
		LockThreshold:   -15,
		UnlockThreshold: -10,
		InitialPresence: "assume-present",
		NoReading:       "ignore",
		Broker:          "tcp://broker:1883",
		HTTPPort:        ":8750",
		Source:          "dbus",
	}
	tr := NewTracker(time.Now(), cfg, "")

	var out StatusJSON
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got := out.Status.Config
	if got.LockThreshold != -15 || got.UnlockThreshold != -10 {
		t.Errorf("thresholds: %+v", got)
	}
	if got.ScanIntervalMs != 5000 || got.Source != "dbus" {
		t.Errorf("config fields: %+v", got)
	}
	if out.Status.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("mqtt broker: %q", out.Status.MQTT.Broker)
	}
}
