// Package screenlock drives the desktop session lock over D-Bus. The
// real implementation talks to org.gnome.ScreenSaver on the session
// bus; the fake implementation allows testing without a desktop.
//
// Both implementations satisfy proximity.LockController.
package screenlock

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	screensaverBusName = "org.gnome.ScreenSaver"
	screensaverPath    = "/org/gnome/ScreenSaver"
	screensaverIface   = "org.gnome.ScreenSaver"

	// callTimeout bounds every screensaver call so a wedged session
	// cannot stall the timer goroutines.
	callTimeout = 4 * time.Second
)

// GnomeController locks and unlocks the screen via the GNOME
// screensaver D-Bus interface. "Unlock" deactivates the screensaver
// overlay; a password prompt still appears if the lock was engaged by
// the user rather than by this process.
type GnomeController struct {
	conn *dbus.Conn
}

// NewGnomeController connects to the session bus and verifies the
// screensaver service is reachable. An unreachable session is a startup
// error: the daemon is useless without it.
func NewGnomeController() (*GnomeController, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}
	c := &GnomeController{conn: conn}
	if _, err := c.IsLocked(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("screensaver not reachable, is this a GNOME session? %w", err)
	}
	return c, nil
}

func (c *GnomeController) object() dbus.BusObject {
	return c.conn.Object(screensaverBusName, dbus.ObjectPath(screensaverPath))
}

// IsLocked reports whether the screensaver is active.
func (c *GnomeController) IsLocked() (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	var active bool
	err := c.object().CallWithContext(ctx, screensaverIface+".GetActive", 0).Store(&active)
	if err != nil {
		return false, fmt.Errorf("get screensaver state: %w", err)
	}
	return active, nil
}

// Lock engages the screensaver.
func (c *GnomeController) Lock() error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	if err := c.object().CallWithContext(ctx, screensaverIface+".Lock", 0).Err; err != nil {
		return fmt.Errorf("lock screen: %w", err)
	}
	return nil
}

// Unlock deactivates the screensaver overlay.
func (c *GnomeController) Unlock() error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	if err := c.object().CallWithContext(ctx, screensaverIface+".SetActive", 0, false).Err; err != nil {
		return fmt.Errorf("unlock screen: %w", err)
	}
	return nil
}

// Close closes the session bus connection.
func (c *GnomeController) Close() error {
	return c.conn.Close()
}
