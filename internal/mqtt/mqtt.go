// Package mqtt publishes presence and lifecycle events with abstraction
// for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/krt1k/blueproximity-v2/internal/proximity"
)

// Topic is the MQTT topic for presence transition events.
const Topic = "presence/screenlock/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "presence/screenlock/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a presence event to the broker.
	// Returns error if publishing fails (must not crash the process).
	Publish(event proximity.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (startup, shutdown,
// heartbeat, reconnected).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g. "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g. "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload is the MQTT message envelope for presence events.
type Payload struct {
	Proximity ProximityPayload `json:"proximity"`
}

// ProximityPayload contains the presence event details.
type ProximityPayload struct {
	Timestamp      string `json:"timestamp"`
	Event          string `json:"event"`
	Device         string `json:"device,omitempty"`
	RSSI           *int   `json:"rssi,omitempty"`
	PresentDevices int    `json:"present_devices"`
}

// FormatPayload creates the JSON payload for a presence event.
func FormatPayload(event proximity.Event) ([]byte, error) {
	p := Payload{
		Proximity: ProximityPayload{
			Timestamp:      event.Timestamp.UTC().Format(time.RFC3339),
			Event:          string(event.Type),
			Device:         event.Device,
			PresentDevices: event.PresentDevices,
		},
	}
	if event.HasRSSI {
		rssi := event.RSSI
		p.Proximity.RSSI = &rssi
	}
	return json.Marshal(p)
}

// SystemPayload is the envelope for simple system events that carry no
// full status snapshot, such as RECONNECTED.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event. If
// event.RawPayload is set, it is returned directly (used for full
// status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
