//go:build linux

package led

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealLED drives an LED on actual hardware using the Linux GPIO
// character device.
type RealLED struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealLED requests the given BCM pin as an output, initially off.
func NewRealLED(pin int) (*RealLED, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request led pin %d: %w", pin, err)
	}

	return &RealLED{chip: chip, line: line}, nil
}

// Set drives the LED.
func (l *RealLED) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := l.line.SetValue(v); err != nil {
		return fmt.Errorf("set led: %w", err)
	}
	return nil
}

// Close turns the LED off and releases the line.
func (l *RealLED) Close() error {
	var errs []error

	if l.line != nil {
		if err := l.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear led: %w", err))
		}
		if err := l.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}
	if l.chip != nil {
		if err := l.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
