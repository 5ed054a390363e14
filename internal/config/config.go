// ABOUTME: Capture configuration loaded from YAML with defaults
// ABOUTME: Command line flags override values read from the file
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dabdump/dabdump/internal/channels"
	"github.com/dabdump/dabdump/internal/dab"
	"github.com/dabdump/dabdump/internal/dispatch"
	"github.com/dabdump/dabdump/internal/input"
	"github.com/dabdump/dabdump/internal/monitor"
	"gopkg.in/yaml.v3"
)

// GainAGC selects automatic gain control
const GainAGC = -1

// Config is the complete capture configuration
type Config struct {
	Channel   string `yaml:"channel"`
	DumpDir   string `yaml:"dump_dir"`
	Gain      int    `yaml:"gain"`
	Replay    string `yaml:"replay"`
	PrintTime bool   `yaml:"print_time"`
	NoTUI     bool   `yaml:"no_tui"`

	Frontend FrontendConfig `yaml:"frontend"`
	Startup  StartupConfig  `yaml:"startup"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Log      LogConfig      `yaml:"log"`
}

// FrontendConfig selects and tunes the receiver front-end
type FrontendConfig struct {
	Driver                 string `yaml:"driver"`
	Args                   string `yaml:"args"`
	DisableCoarseCorrector bool   `yaml:"disable_coarse_corrector"`
	DecodeTII              bool   `yaml:"decode_tii"`
}

// StartupConfig bounds the wait for sync and the service list
type StartupConfig struct {
	SyncPoll    time.Duration `yaml:"sync_poll"`
	ListPoll    time.Duration `yaml:"list_poll"`
	SettleDelay time.Duration `yaml:"settle_delay"`
	// Timeout of zero waits forever
	Timeout time.Duration `yaml:"timeout"`
}

// MonitorConfig configures local playback of one service
type MonitorConfig struct {
	Service    string `yaml:"service"`
	DeviceRate int    `yaml:"device_rate"`
	QueueDepth int    `yaml:"queue_depth"`
	Volume     int    `yaml:"volume"`
}

// LogConfig configures the rotated process log
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	return Config{
		Channel: channels.DefaultChannel,
		DumpDir: ".",
		Gain:    GainAGC,
		Frontend: FrontendConfig{
			Driver: input.AutoFrontend,
		},
		Startup: StartupConfig{
			SyncPoll:    dispatch.DefaultSyncPoll,
			ListPoll:    dispatch.DefaultListPoll,
			SettleDelay: dispatch.DefaultSettleDelay,
		},
		Monitor: MonitorConfig{
			DeviceRate: monitor.DefaultDeviceRate,
			QueueDepth: monitor.DefaultQueueDepth,
			Volume:     100,
		},
		Log: LogConfig{
			File:       "dabdump.log",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadFile loads YAML config over the defaults. An empty path returns the
// defaults unchanged.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Validate performs sanity checks on the configuration
func (c Config) Validate() error {
	if _, err := channels.Lookup(c.Channel); err != nil {
		return err
	}
	if strings.TrimSpace(c.DumpDir) == "" {
		return fmt.Errorf("dump_dir must not be empty")
	}
	if c.Gain < GainAGC {
		return fmt.Errorf("gain must be >= %d (AGC)", GainAGC)
	}
	if c.Startup.SyncPoll <= 0 || c.Startup.ListPoll <= 0 {
		return fmt.Errorf("startup poll intervals must be > 0")
	}
	if c.Startup.SettleDelay < 0 || c.Startup.Timeout < 0 {
		return fmt.Errorf("startup delays must not be negative")
	}
	if c.Monitor.Service != "" {
		if _, err := ParseServiceID(c.Monitor.Service); err != nil {
			return fmt.Errorf("monitor.service: %w", err)
		}
	}
	if c.Monitor.Volume < 0 || c.Monitor.Volume > 100 {
		return fmt.Errorf("monitor.volume must be between 0 and 100")
	}
	return nil
}

// ParseServiceID accepts 0x-prefixed hex (as printed in dump paths) or decimal
func ParseServiceID(s string) (dab.ServiceID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid service id %q", s)
	}
	return dab.ServiceID(v), nil
}

// Print logs the effective configuration
func (c Config) Print() {
	source := "frontend " + c.Frontend.Driver
	if c.Replay != "" {
		source = "replay " + c.Replay
	}
	gain := "AGC"
	if c.Gain != GainAGC {
		gain = strconv.Itoa(c.Gain)
	}

	log.Printf("Channel: %s, gain: %s, source: %s", c.Channel, gain, source)
	log.Printf("Dump directory: %s", c.DumpDir)
	if c.Startup.Timeout > 0 {
		log.Printf("Startup timeout: %v", c.Startup.Timeout)
	}
	if c.Monitor.Service != "" {
		log.Printf("Monitoring service %s at %d Hz", c.Monitor.Service, c.Monitor.DeviceRate)
	}
}
