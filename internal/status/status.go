// Package status provides a thread-safe status tracker for the
// proximity daemon. It is read by the HTTP handlers and the LED driver.
package status

import (
	"sync"
	"time"

	"github.com/krt1k/blueproximity-v2/internal/proximity"
)

// Config contains daemon configuration for display.
type Config struct {
	ScanIntervalMs  int64
	LockTimeoutMs   int64
	UnlockTimeoutMs int64
	LockThreshold   int
	UnlockThreshold int
	InitialPresence string
	NoReading       string
	Broker          string
	HTTPPort        string
	Source          string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Devices       []proximity.DeviceStatus
	LockedByUs    bool
	Counts        proximity.Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
	Version       string
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// PresentCount returns the number of devices currently flagged present.
func (s Snapshot) PresentCount() int {
	n := 0
	for _, d := range s.Devices {
		if d.Present {
			n++
		}
	}
	return n
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config, version string) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Version:   version,
		},
	}
}

// Update copies the monitor snapshot in. Called from the scan loop on
// every tick and from the event sink on lock/unlock.
func (t *Tracker) Update(snap proximity.Snapshot) {
	t.mu.Lock()
	t.snap.Devices = snap.Devices
	t.snap.LockedByUs = snap.LockedByUs
	t.snap.Counts = snap.Counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
