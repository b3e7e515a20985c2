// Package config loads and validates the daemon configuration: the
// device name to MAC mapping, signal thresholds and debounce timeouts.
// Configuration is read once at startup; there is no reload.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/krt1k/blueproximity-v2/internal/proximity"
)

// Defaults suit a phone kept at desk distance from the adapter.
const (
	DefaultLockThreshold   = -15
	DefaultUnlockThreshold = -10
	DefaultScanInterval    = 5  // seconds
	DefaultLockTimeout     = 15 // seconds
	DefaultUnlockTimeout   = 5  // seconds
)

// Environment variable names, loadable from a .env file next to the
// config. Secrets belong here rather than in config.json.
const (
	EnvBroker       = "BLUEPROX_BROKER"
	EnvMQTTUsername = "BLUEPROX_MQTT_USERNAME"
	EnvMQTTPassword = "BLUEPROX_MQTT_PASSWORD"
)

var macRe = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)

// Config is the on-disk configuration.
type Config struct {
	// Devices maps a display name to a Bluetooth MAC address.
	Devices map[string]string `json:"devices"`

	// Thresholds in dBm. A sample below LockThreshold counts as away;
	// UnlockThreshold must be strictly greater.
	LockThreshold   int `json:"lock_threshold"`
	UnlockThreshold int `json:"unlock_threshold"`

	ScanIntervalSeconds  int `json:"scan_interval_seconds"`
	LockTimeoutSeconds   int `json:"lock_timeout_seconds"`
	UnlockTimeoutSeconds int `json:"unlock_timeout_seconds"`

	// InitialPresence: "assume-present" (default) or "first-sample".
	InitialPresence string `json:"initial_presence,omitempty"`

	// NoReading: "ignore" (default) or "away".
	NoReading string `json:"no_reading,omitempty"`

	// Broker is the MQTT broker URL; overridable by flag or env.
	Broker string `json:"broker,omitempty"`
}

// Dir returns the configuration directory,
// $XDG_CONFIG_HOME/blueproximity or ~/.config/blueproximity.
func Dir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(dir, "blueproximity")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.json")
}

// DefaultEnvPath returns the default .env file location.
func DefaultEnvPath() string {
	return filepath.Join(Dir(), ".env")
}

// LoadEnv loads environment overrides from the given .env file. A
// missing file at the default location is fine; an explicit path that
// does not exist is reported.
func LoadEnv(path string, explicit bool) error {
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load reads, defaults and validates the config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LockThreshold == 0 && c.UnlockThreshold == 0 {
		c.LockThreshold = DefaultLockThreshold
		c.UnlockThreshold = DefaultUnlockThreshold
	}
	if c.ScanIntervalSeconds == 0 {
		c.ScanIntervalSeconds = DefaultScanInterval
	}
	if c.LockTimeoutSeconds == 0 {
		c.LockTimeoutSeconds = DefaultLockTimeout
	}
	if c.UnlockTimeoutSeconds == 0 {
		c.UnlockTimeoutSeconds = DefaultUnlockTimeout
	}
	if c.InitialPresence == "" {
		c.InitialPresence = string(proximity.AssumePresent)
	}
	if c.NoReading == "" {
		c.NoReading = string(proximity.NoReadingIgnore)
	}
}

// placeholderAddress reports template addresses copied from the sample
// config without being filled in.
func placeholderAddress(addr string) bool {
	u := strings.ToUpper(addr)
	return strings.HasPrefix(u, "XX:") || strings.HasPrefix(u, "YY:")
}

// Validate rejects configurations the daemon cannot run with. These are
// startup errors: the process must exit non-zero rather than scan.
func (c *Config) Validate() error {
	if len(c.Devices) == 0 {
		return fmt.Errorf("config: no devices configured")
	}
	real := 0
	for name, addr := range c.Devices {
		if name == "" {
			return fmt.Errorf("config: device with empty name")
		}
		if placeholderAddress(addr) {
			continue
		}
		if !macRe.MatchString(addr) {
			return fmt.Errorf("config: device %q has invalid address %q", name, addr)
		}
		real++
	}
	if real == 0 {
		return fmt.Errorf("config: no valid device addresses, replace the XX:XX placeholder entries")
	}
	if real != len(c.Devices) {
		return fmt.Errorf("config: placeholder addresses remain next to real ones, remove them")
	}

	if c.UnlockThreshold <= c.LockThreshold {
		return fmt.Errorf("config: unlock_threshold (%d) must be greater than lock_threshold (%d)", c.UnlockThreshold, c.LockThreshold)
	}
	if c.ScanIntervalSeconds <= 0 || c.LockTimeoutSeconds <= 0 || c.UnlockTimeoutSeconds <= 0 {
		return fmt.Errorf("config: intervals and timeouts must be positive")
	}

	switch proximity.InitialPresence(c.InitialPresence) {
	case proximity.AssumePresent, proximity.FirstSample:
	default:
		return fmt.Errorf("config: initial_presence must be %q or %q, got %q", proximity.AssumePresent, proximity.FirstSample, c.InitialPresence)
	}
	switch proximity.NoReadingPolicy(c.NoReading) {
	case proximity.NoReadingIgnore, proximity.NoReadingAway:
	default:
		return fmt.Errorf("config: no_reading must be %q or %q, got %q", proximity.NoReadingIgnore, proximity.NoReadingAway, c.NoReading)
	}
	return nil
}

// DeviceList returns the devices sorted by name, giving the scan loop a
// stable iteration order.
func (c *Config) DeviceList() []proximity.Device {
	names := make([]string, 0, len(c.Devices))
	for name := range c.Devices {
		names = append(names, name)
	}
	sort.Strings(names)

	devices := make([]proximity.Device, 0, len(names))
	for _, name := range names {
		devices = append(devices, proximity.Device{Name: name, Address: c.Devices[name]})
	}
	return devices
}

// Settings converts the file values to monitor settings.
func (c *Config) Settings() proximity.Settings {
	return proximity.Settings{
		LockThreshold:   c.LockThreshold,
		UnlockThreshold: c.UnlockThreshold,
		LockTimeout:     time.Duration(c.LockTimeoutSeconds) * time.Second,
		UnlockTimeout:   time.Duration(c.UnlockTimeoutSeconds) * time.Second,
		InitialPresence: proximity.InitialPresence(c.InitialPresence),
		NoReading:       proximity.NoReadingPolicy(c.NoReading),
	}
}

// ScanInterval returns the inter-scan sleep as a duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSeconds) * time.Second
}
