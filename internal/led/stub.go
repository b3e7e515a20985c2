//go:build !linux

package led

import "errors"

// RealLED is not available on non-Linux platforms.
type RealLED struct{}

// NewRealLED returns an error on non-Linux platforms.
func NewRealLED(pin int) (*RealLED, error) {
	return nil, errors.New("led: not supported on this platform (requires Linux)")
}

// Set is not implemented on non-Linux platforms.
func (l *RealLED) Set(on bool) error {
	return errors.New("led: not supported")
}

// Close is not implemented on non-Linux platforms.
func (l *RealLED) Close() error {
	return nil
}
