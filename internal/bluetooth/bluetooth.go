// Package bluetooth provides RSSI sampling for tracked devices with
// hardware abstraction. The real implementations read the BlueZ RSSI
// property over the system D-Bus or shell out to hcitool; the fake
// implementation allows testing without an adapter.
package bluetooth

// Source samples signal strength for a device address.
type Source interface {
	// Sample returns the latest RSSI in dBm for the given MAC address.
	// ok is false when no reading could be obtained (device out of
	// range, not connected, or the query timed out); that is not an
	// error, just the absence of information.
	Sample(address string) (rssi int, ok bool)

	// Close releases the underlying transport.
	Close() error
}
