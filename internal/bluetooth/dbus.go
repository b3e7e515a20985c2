package bluetooth

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	bluezBusName = "org.bluez"
	adapterPath  = "/org/bluez/hci0"
	deviceIface  = "org.bluez.Device1"
	propsIface   = "org.freedesktop.DBus.Properties"

	// sampleTimeout bounds every property read so the scan loop cannot
	// stall on a wedged adapter.
	sampleTimeout = 4 * time.Second
)

// deviceObjectPath converts a MAC address like "AA:BB:CC:DD:EE:FF" to
// "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF".
func deviceObjectPath(addr string) dbus.ObjectPath {
	escaped := strings.ReplaceAll(strings.ToUpper(addr), ":", "_")
	return dbus.ObjectPath(adapterPath + "/dev_" + escaped)
}

// DBusSource reads the RSSI property that BlueZ maintains for connected
// or recently advertising devices.
type DBusSource struct {
	conn *dbus.Conn
}

// NewDBusSource connects to the system bus and verifies BlueZ is
// present. A missing bluetooth service is a startup error, not
// something to retry per sample.
func NewDBusSource() (*DBusSource, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		conn.Close()
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	found := false
	for _, n := range names {
		if n == bluezBusName {
			found = true
			break
		}
	}
	if !found {
		conn.Close()
		return nil, fmt.Errorf("org.bluez not found on system bus, is bluetooth.service running?")
	}
	return &DBusSource{conn: conn}, nil
}

// Sample reads the Device1.RSSI property. BlueZ drops the property when
// the device has not been heard from, which surfaces here as ok=false.
func (s *DBusSource) Sample(address string) (int, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), sampleTimeout)
	defer cancel()

	obj := s.conn.Object(bluezBusName, deviceObjectPath(address))
	var v dbus.Variant
	err := obj.CallWithContext(ctx, propsIface+".Get", 0, deviceIface, "RSSI").Store(&v)
	if err != nil {
		log.Printf("bluetooth: rssi query for %s failed: %v", address, err)
		return 0, false
	}
	rssi, ok := v.Value().(int16)
	if !ok {
		log.Printf("bluetooth: RSSI property for %s is %T, not int16", address, v.Value())
		return 0, false
	}
	return int(rssi), true
}

// Close closes the system bus connection.
func (s *DBusSource) Close() error {
	return s.conn.Close()
}
