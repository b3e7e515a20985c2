package proximity

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Monitor owns the presence state of every tracked device and drives
// the lock controller. All state lives behind one mutex: sample
// observations, timer firings and shutdown cancellation serialize on
// it, so a firing decision always sees a consistent view of the full
// device map.
type Monitor struct {
	mu            sync.Mutex
	cfg           Settings
	sched         Scheduler
	lock          LockController
	now           func() time.Time
	onEvent       func(Event) // async lock/unlock events; may be nil
	devices       map[string]*deviceState
	order         []string
	lockedByUs    bool
	counts        Counts
	startTime     time.Time
	lastHeartbeat time.Time
}

// deviceState is the mutable per-device record. At most one debounce
// timer is armed per device: arming one direction cancels the other.
type deviceState struct {
	name     string
	address  string
	present  bool
	observed bool
	rssi     int
	lastSeen time.Time
	timer    Timer
	// timerGen identifies the currently armed timer. Canceling or
	// re-arming bumps it, so a callback that already left the runtime
	// queue finds its generation stale and does nothing.
	timerGen uint64
}

// NewMonitor creates a Monitor for a fixed set of devices. The onEvent
// sink receives SCREEN_LOCKED/SCREEN_UNLOCKED events, which fire on
// scheduler goroutines asynchronously to Observe callers; it is invoked
// without the monitor mutex held. A nil now defaults to time.Now.
func NewMonitor(cfg Settings, devices []Device, sched Scheduler, lock LockController, now func() time.Time, onEvent func(Event)) (*Monitor, error) {
	if len(devices) == 0 {
		return nil, fmt.Errorf("no devices to track")
	}
	if cfg.UnlockThreshold <= cfg.LockThreshold {
		return nil, fmt.Errorf("unlock threshold %d must be greater than lock threshold %d", cfg.UnlockThreshold, cfg.LockThreshold)
	}
	if cfg.InitialPresence == "" {
		cfg.InitialPresence = AssumePresent
	}
	if cfg.NoReading == "" {
		cfg.NoReading = NoReadingIgnore
	}
	if now == nil {
		now = time.Now
	}

	m := &Monitor{
		cfg:       cfg,
		sched:     sched,
		lock:      lock,
		now:       now,
		onEvent:   onEvent,
		devices:   make(map[string]*deviceState, len(devices)),
		startTime: now(),
	}
	m.lastHeartbeat = m.startTime
	for _, d := range devices {
		if _, dup := m.devices[d.Name]; dup {
			return nil, fmt.Errorf("duplicate device name %q", d.Name)
		}
		m.devices[d.Name] = &deviceState{name: d.Name, address: d.Address}
		m.order = append(m.order, d.Name)
	}
	return m, nil
}

// Observe feeds one RSSI sample for the named device. ok=false means no
// reading was obtained (device unreachable or query timed out). Returns
// a DEVICE_PRESENT/DEVICE_AWAY event when the instantaneous presence
// flag flips, nil otherwise.
func (m *Monitor) Observe(name string, rssi int, ok bool, now time.Time) *Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	ds := m.devices[name]
	if ds == nil {
		return nil
	}

	if !ok && m.cfg.NoReading == NoReadingIgnore {
		// No new information: keep the last known state, leave any
		// pending timer running.
		return nil
	}

	current := ok && rssi >= m.cfg.LockThreshold
	if ok {
		ds.rssi = rssi
		ds.lastSeen = now
	}

	if !ds.observed {
		ds.observed = true
		if m.cfg.InitialPresence == FirstSample {
			ds.present = current
		} else {
			ds.present = true
		}
	}

	if current == ds.present {
		return nil
	}

	// The raw flag flips immediately; a reversal before the debounce
	// timer fires cancels the pending action via the generation bump.
	ds.present = current
	m.cancelTimerLocked(ds)

	ev := Event{
		Timestamp:      now,
		Device:         name,
		RSSI:           rssi,
		HasRSSI:        ok,
		PresentDevices: m.presentCountLocked(),
	}
	if current {
		ev.Type = EventDevicePresent
		m.counts.DevicePresent++
		m.armLocked(ds, m.cfg.UnlockTimeout, m.confirmPresent)
	} else {
		ev.Type = EventDeviceAway
		m.counts.DeviceAway++
		m.armLocked(ds, m.cfg.LockTimeout, m.confirmAway)
	}
	return &ev
}

func (m *Monitor) armLocked(ds *deviceState, d time.Duration, fire func(string, uint64)) {
	ds.timerGen++
	gen := ds.timerGen
	name := ds.name
	ds.timer = m.sched.After(d, func() { fire(name, gen) })
}

func (m *Monitor) cancelTimerLocked(ds *deviceState) {
	ds.timerGen++
	if ds.timer != nil {
		ds.timer.Cancel()
		ds.timer = nil
	}
}

func (m *Monitor) presentCountLocked() int {
	n := 0
	for _, ds := range m.devices {
		if ds.present {
			n++
		}
	}
	return n
}

// confirmAway runs when a device's confirm-away timer fires. Locking
// requires unanimous absence: one device still near keeps the screen
// open.
func (m *Monitor) confirmAway(name string, gen uint64) {
	ev := m.lockIfAllAway(name, gen)
	if ev != nil && m.onEvent != nil {
		m.onEvent(*ev)
	}
}

func (m *Monitor) lockIfAllAway(name string, gen uint64) *Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	ds := m.devices[name]
	if ds == nil || gen != ds.timerGen {
		return nil // canceled or superseded before we got the mutex
	}
	ds.timer = nil
	if m.presentCountLocked() > 0 {
		return nil // condition went stale, defined no-op
	}

	locked, err := m.lock.IsLocked()
	if err != nil {
		log.Printf("proximity: lock status check failed: %v", err)
		locked = false // assume unlocked when the probe fails
	}
	if locked {
		return nil // already locked by the user or another component
	}
	if err := m.lock.Lock(); err != nil {
		log.Printf("proximity: lock failed: %v", err)
		return nil
	}
	m.lockedByUs = true
	m.counts.Locks++
	return &Event{
		Timestamp:      m.now(),
		Type:           EventScreenLocked,
		Device:         name,
		PresentDevices: 0,
	}
}

// confirmPresent runs when a device's confirm-present timer fires.
// Unlocking requires only one device present, and only if the lock was
// engaged by this process: a user-initiated lock keeps requiring a
// password.
func (m *Monitor) confirmPresent(name string, gen uint64) {
	ev := m.unlockIfAnyPresent(name, gen)
	if ev != nil && m.onEvent != nil {
		m.onEvent(*ev)
	}
}

func (m *Monitor) unlockIfAnyPresent(name string, gen uint64) *Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	ds := m.devices[name]
	if ds == nil || gen != ds.timerGen {
		return nil
	}
	ds.timer = nil
	present := m.presentCountLocked()
	if present == 0 {
		return nil // stale: the device left again before firing
	}
	if !m.lockedByUs {
		return nil
	}

	locked, err := m.lock.IsLocked()
	if err != nil {
		log.Printf("proximity: lock status check failed: %v", err)
		return nil // retry on the next confirmed-present event
	}
	if !locked {
		// Someone unlocked by hand in the meantime.
		m.lockedByUs = false
		return nil
	}
	if err := m.lock.Unlock(); err != nil {
		log.Printf("proximity: unlock failed: %v", err)
		return nil
	}
	m.lockedByUs = false
	m.counts.Unlocks++
	return &Event{
		Timestamp:      m.now(),
		Type:           EventScreenUnlocked,
		Device:         name,
		PresentDevices: present,
	}
}

// CancelTimers cancels every pending debounce timer. Once it returns no
// timer action can take effect: every callback re-checks its generation
// under the monitor mutex, and the generations are bumped here while
// holding it. Called on shutdown.
func (m *Monitor) CancelTimers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range m.order {
		m.cancelTimerLocked(m.devices[name])
	}
}

// Snapshot returns a consistent copy of the full device map and lock
// bookkeeping, in configuration order.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		Devices:    make([]DeviceStatus, 0, len(m.order)),
		LockedByUs: m.lockedByUs,
		Counts:     m.counts,
	}
	for _, name := range m.order {
		ds := m.devices[name]
		snap.Devices = append(snap.Devices, DeviceStatus{
			Name:     ds.name,
			Address:  ds.address,
			Present:  ds.present,
			Observed: ds.observed,
			RSSI:     ds.rssi,
			LastSeen: ds.lastSeen,
		})
	}
	return snap
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed
// since the last heartbeat (or startup). Returns nil if the interval
// has not elapsed or if interval is <= 0 (disabled).
func (m *Monitor) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if now.Sub(m.lastHeartbeat) < interval {
		return nil
	}
	m.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(m.startTime),
		Counts:    m.counts,
	}
}
