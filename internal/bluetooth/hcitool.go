package bluetooth

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// HcitoolSource samples RSSI by shelling out to `hcitool rssi <mac>`.
// It only works for devices with an open Bluetooth Classic connection,
// but needs no BLE advertising and no D-Bus.
type HcitoolSource struct {
	binary  string
	timeout time.Duration
}

// NewHcitoolSource verifies the hcitool binary is available.
func NewHcitoolSource() (*HcitoolSource, error) {
	path, err := exec.LookPath("hcitool")
	if err != nil {
		return nil, fmt.Errorf("hcitool not found in PATH: %w", err)
	}
	return &HcitoolSource{binary: path, timeout: 4 * time.Second}, nil
}

// Sample runs hcitool with a bounded timeout. Any failure (nonzero
// exit, timeout, unparseable output) is reported as no reading.
func (s *HcitoolSource) Sample(address string) (int, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, s.binary, "rssi", address).Output()
	if err != nil {
		log.Printf("bluetooth: hcitool rssi %s failed: %v", address, err)
		return 0, false
	}
	return parseHcitoolRSSI(string(out))
}

// parseHcitoolRSSI extracts the value from output of the form
// "RSSI return value: -7".
func parseHcitoolRSSI(out string) (int, bool) {
	const marker = "RSSI return value:"
	i := strings.Index(out, marker)
	if i < 0 {
		return 0, false
	}
	val := strings.TrimSpace(out[i+len(marker):])
	if j := strings.IndexAny(val, "\r\n"); j >= 0 {
		val = strings.TrimSpace(val[:j])
	}
	rssi, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return rssi, true
}

// Close is a no-op; each sample is a standalone subprocess.
func (s *HcitoolSource) Close() error {
	return nil
}
