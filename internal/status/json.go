package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string       `json:"event,omitempty"`
	Reason         string       `json:"reason,omitempty"`
	Devices        []DeviceJSON `json:"devices"`
	PresentDevices int          `json:"present_devices"`
	Screen         ScreenJSON   `json:"screen"`
	UptimeSeconds  int64        `json:"uptime_seconds"`
	StartTime      string       `json:"start_time"`
	Timestamp      string       `json:"timestamp"`
	Version        string       `json:"version,omitempty"`
	MQTT           MQTTStatus   `json:"mqtt"`
	Counts         CountsJSON   `json:"event_counts"`
	Config         ConfigJSON   `json:"config"`
}

// DeviceJSON is the JSON representation of one device's presence state.
type DeviceJSON struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	State    string `json:"state"`
	RSSI     *int   `json:"rssi,omitempty"`
	LastSeen string `json:"last_seen,omitempty"`
}

// ScreenJSON reports the lock bookkeeping.
type ScreenJSON struct {
	LockedByUs bool `json:"locked_by_us"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	DevicePresent int `json:"device_present"`
	DeviceAway    int `json:"device_away"`
	Locks         int `json:"locks"`
	Unlocks       int `json:"unlocks"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	ScanIntervalMs  int64  `json:"scan_interval_ms"`
	LockTimeoutMs   int64  `json:"lock_timeout_ms"`
	UnlockTimeoutMs int64  `json:"unlock_timeout_ms"`
	LockThreshold   int    `json:"lock_threshold_dbm"`
	UnlockThreshold int    `json:"unlock_threshold_dbm"`
	InitialPresence string `json:"initial_presence"`
	NoReading       string `json:"no_reading"`
	Broker          string `json:"broker"`
	HTTPPort        string `json:"http_port"`
	Source          string `json:"source"`
}

func buildInner(snap Snapshot) StatusInner {
	devices := make([]DeviceJSON, 0, len(snap.Devices))
	for _, d := range snap.Devices {
		dj := DeviceJSON{
			Name:    d.Name,
			Address: d.Address,
			State:   "UNKNOWN",
		}
		if d.Observed {
			if d.Present {
				dj.State = "PRESENT"
			} else {
				dj.State = "AWAY"
			}
		}
		if !d.LastSeen.IsZero() {
			rssi := d.RSSI
			dj.RSSI = &rssi
			dj.LastSeen = d.LastSeen.UTC().Format(time.RFC3339)
		}
		devices = append(devices, dj)
	}

	return StatusInner{
		Devices:        devices,
		PresentDevices: snap.PresentCount(),
		Screen:         ScreenJSON{LockedByUs: snap.LockedByUs},
		UptimeSeconds:  int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:      snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:      snap.Now.UTC().Format(time.RFC3339),
		Version:        snap.Version,
		MQTT:           MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			DevicePresent: snap.Counts.DevicePresent,
			DeviceAway:    snap.Counts.DeviceAway,
			Locks:         snap.Counts.Locks,
			Unlocks:       snap.Counts.Unlocks,
		},
		Config: ConfigJSON{
			ScanIntervalMs:  snap.Config.ScanIntervalMs,
			LockTimeoutMs:   snap.Config.LockTimeoutMs,
			UnlockTimeoutMs: snap.Config.UnlockTimeoutMs,
			LockThreshold:   snap.Config.LockThreshold,
			UnlockThreshold: snap.Config.UnlockThreshold,
			InitialPresence: snap.Config.InitialPresence,
			NoReading:       snap.Config.NoReading,
			Broker:          snap.Config.Broker,
			HTTPPort:        snap.Config.HTTPPort,
			Source:          snap.Config.Source,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
