// Package proximity contains the presence-detection core: hysteresis
// thresholding of RSSI samples, per-device debounce timers, and the
// aggregation rule that decides when to lock or unlock the screen.
// The package has no I/O dependencies; Bluetooth sampling and the
// screen-lock transport are injected as collaborators.
package proximity

import "time"

// Device identifies a tracked Bluetooth device. The set of devices is
// fixed for the process lifetime.
type Device struct {
	Name    string
	Address string
}

// EventType represents a confirmed state transition.
type EventType string

const (
	// EventDevicePresent / EventDeviceAway mark the instantaneous
	// presence flag flipping for a single device.
	EventDevicePresent EventType = "DEVICE_PRESENT"
	EventDeviceAway    EventType = "DEVICE_AWAY"

	// EventScreenLocked / EventScreenUnlocked mark a debounce timer
	// firing and the lock controller being driven.
	EventScreenLocked   EventType = "SCREEN_LOCKED"
	EventScreenUnlocked EventType = "SCREEN_UNLOCKED"
)

// Event represents a transition to be logged and published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Device    string
	// RSSI is the sample that triggered the transition, valid only
	// when HasRSSI is set (a missing reading can flip the flag under
	// the "away" no-reading policy, and screen events carry no sample).
	RSSI    int
	HasRSSI bool
	// PresentDevices is the number of devices flagged present after
	// applying this event.
	PresentDevices int
}

// InitialPresence selects the presence assumed for a device before its
// first usable sample. The two observed deployments disagree on this,
// so it is a policy knob rather than fixed behavior.
type InitialPresence string

const (
	// AssumePresent treats an unobserved device as present, so the
	// first weak sample counts as a departure. Safer near startup: the
	// user is probably at the keyboard.
	AssumePresent InitialPresence = "assume-present"
	// FirstSample adopts the first usable sample as the baseline, so
	// startup never triggers a transition.
	FirstSample InitialPresence = "first-sample"
)

// NoReadingPolicy selects how a failed RSSI query is interpreted.
type NoReadingPolicy string

const (
	// NoReadingIgnore keeps the last known state: a failed query is
	// "no new information".
	NoReadingIgnore NoReadingPolicy = "ignore"
	// NoReadingAway treats a failed query as an away sample.
	NoReadingAway NoReadingPolicy = "away"
)

// Settings holds the tunables of the presence state machine.
type Settings struct {
	// LockThreshold is the dBm value below which a sample counts as
	// away. UnlockThreshold must be strictly greater; it is validated
	// and reported but the instantaneous presence test uses only
	// LockThreshold, matching the deployed behavior.
	LockThreshold   int
	UnlockThreshold int

	// LockTimeout is how long a device must stay away before the
	// confirm-away timer fires; UnlockTimeout likewise for presence.
	LockTimeout   time.Duration
	UnlockTimeout time.Duration

	InitialPresence InitialPresence
	NoReading       NoReadingPolicy
}

// Counts tracks the number of each event type since startup.
type Counts struct {
	DevicePresent int
	DeviceAway    int
	Locks         int
	Unlocks       int
}

// DeviceStatus is a read-only view of one device's presence state.
type DeviceStatus struct {
	Name     string
	Address  string
	Present  bool
	Observed bool
	RSSI     int
	LastSeen time.Time
}

// Snapshot is a consistent point-in-time view of the monitor state.
type Snapshot struct {
	Devices    []DeviceStatus
	LockedByUs bool
	Counts     Counts
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}

// LockController is the screen-lock surface the monitor drives. All
// methods may fail (session bus down, no screensaver service); failures
// are logged and the operation retried on the next relevant event.
type LockController interface {
	IsLocked() (bool, error)
	Lock() error
	Unlock() error
}
