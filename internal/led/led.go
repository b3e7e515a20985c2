// Package led drives an optional presence indicator LED with hardware
// abstraction. The real implementation uses the Linux GPIO character
// device; the fake implementation allows testing without hardware.
package led

// Indicator sets the LED state.
type Indicator interface {
	// Set turns the LED on or off. The scan loop calls this every tick
	// with the aggregate presence, so implementations should tolerate
	// repeated identical values.
	Set(on bool) error

	// Close releases GPIO resources, turning the LED off.
	Close() error
}
