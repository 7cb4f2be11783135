package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for baucam.
type Config struct {
	CapturePath string           `toml:"capture_path"`
	LocalPath   string           `toml:"local_path"`
	ImagePrefix string           `toml:"image_prefix"`
	LogDir      string           `toml:"log_dir"`
	LogLevel    string           `toml:"log_level"` // "debug", "info", "warn" or "error"
	Schedule    ScheduleConfig   `toml:"schedule"`
	Storage     StorageConfig    `toml:"storage"`
	Database    DatabaseConfig   `toml:"database"`
	Remote      RemoteConfig     `toml:"remote"`
	Camera      CameraConfig     `toml:"camera"`
	Power       PowerConfig      `toml:"power"`
	Climate     ClimateConfig    `toml:"climate"`
	Escalation  EscalationConfig `toml:"escalation"`
	Backup      BackupConfig     `toml:"backup"`
}

// ScheduleConfig controls the capture cadence.
// Intervals are in seconds. Weekend days use Go weekday numbering (Sunday=0).
type ScheduleConfig struct {
	PhotoInterval int    `toml:"photo_interval"`
	NightFactor   int    `toml:"night_factor"`
	DayStart      string `toml:"day_start"` // HH:MM
	DayEnd        string `toml:"day_end"`   // HH:MM
	WeekendDays   []int  `toml:"weekend_days"`
	WeekendFactor int    `toml:"weekend_factor"`
	TickMillis    int    `toml:"tick_ms"`
}

// StorageConfig holds local storage settings.
type StorageConfig struct {
	FreeSpace int64 `toml:"free_space"` // watermark in bytes
}

// DatabaseConfig represents configuration for the metadata store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type string `toml:"type"`           // "sqlite" or "memory"
	Path string `toml:"path,omitempty"` // only used for type=sqlite
}

// RemoteConfig represents configuration for the archive target.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type RemoteConfig struct {
	Type   string `toml:"type"`   // "filesystem", "s3" or "memory"
	Marker string `toml:"marker"` // liveness marker file name

	// Filesystem-specific fields (only used when Type == "filesystem")
	Root string `toml:"root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty"`
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`
}

// CameraConfig describes the external imaging tool.
type CameraConfig struct {
	Type    string   `toml:"type"` // "gphoto2"
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
	Timeout int      `toml:"timeout"` // seconds
	Skip    []string `toml:"skip"`    // staged names left uncollected
}

// PowerConfig describes the digital output that powers the camera.
type PowerConfig struct {
	Type         string `toml:"type"` // "gpio" or "none"
	Pin          string `toml:"pin"`
	ActiveHigh   bool   `toml:"active_high"`
	Settle       int    `toml:"settle"` // seconds after each transition
	CycleOnStart bool   `toml:"cycle_on_start"`
}

// ClimateConfig describes the climate sensor.
type ClimateConfig struct {
	Type     string   `toml:"type"` // "iio", "command" or "none"
	Interval int      `toml:"interval"`
	Device   string   `toml:"device,omitempty"`  // only used for type=iio
	Command  []string `toml:"command,omitempty"` // only used for type=command
}

// EscalationConfig controls the reaction to consecutive capture failures.
type EscalationConfig struct {
	RestartAfter   int      `toml:"restart_after"`
	RebootAfter    int      `toml:"reboot_after"`
	RescueCooldown int      `toml:"rescue_cooldown"` // seconds per failure
	NightFailures  string   `toml:"night_failures"`  // "count", "ignore" or "reset"
	RebootCommand  []string `toml:"reboot_command"`
}

// BackupConfig controls the metadata store snapshot copied to the remote.
type BackupConfig struct {
	Enabled        bool   `toml:"enabled"`
	Keep           int    `toml:"keep"`       // newest backups to retain; 0 keeps all
	Encryption     string `toml:"encryption"` // "none" or "age"
	RecipientsPath string `toml:"recipients_path,omitempty"`
}

// NewConfig creates a new Config with defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		CapturePath: filepath.Join(os.TempDir(), "baucam"),
		LocalPath:   filepath.Join(baseDir, "images"),
		ImagePrefix: "img_",
		LogDir:      filepath.Join(baseDir, "log"),
		LogLevel:    "info",
		Schedule: ScheduleConfig{
			PhotoInterval: 600,
			NightFactor:   6,
			DayStart:      "6:00",
			DayEnd:        "21:00",
			WeekendDays:   []int{int(time.Saturday), int(time.Sunday)},
			WeekendFactor: 12,
			TickMillis:    1000,
		},
		Storage: StorageConfig{
			FreeSpace: 1024 * 1024 * 1024,
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: filepath.Join(baseDir, "baucam.db"),
		},
		Remote: RemoteConfig{
			Type:   "filesystem",
			Marker: "canary.txt",
			Root:   filepath.Join(baseDir, "remote"),
		},
		Camera: CameraConfig{
			Type:    "gphoto2",
			Command: "gphoto2",
			Args:    []string{"--capture-image-and-download"},
			Timeout: 20,
			Skip:    []string{".*", "*.part"},
		},
		Power: PowerConfig{
			Type:         "gpio",
			Pin:          "GPIO2",
			ActiveHigh:   true,
			Settle:       5,
			CycleOnStart: true,
		},
		Climate: ClimateConfig{
			Type:     "iio",
			Interval: 120,
			Device:   "/sys/bus/iio/devices/iio:device0",
		},
		Escalation: EscalationConfig{
			RestartAfter:   3,
			RebootAfter:    4,
			RescueCooldown: 30,
			NightFailures:  "reset",
			RebootCommand:  []string{"sudo", "reboot"},
		},
		Backup: BackupConfig{
			Enabled:    true,
			Encryption: "none",
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader on top of the given defaults.
// It reports whether any key present in the defaults was missing from the input.
func (m *Manager) Read(r io.Reader, defaults *Config) (*Config, bool, error) {
	cfg := *defaults
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode config: %w", err)
	}

	keys, err := definedKeys(defaults)
	if err != nil {
		return nil, false, err
	}
	missing := false
	for _, k := range keys {
		if !md.IsDefined(k...) {
			missing = true
			break
		}
	}
	return &cfg, missing, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// definedKeys returns every leaf key that cfg encodes to.
func definedKeys(cfg *Config) ([]toml.Key, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding defaults: %w", err)
	}
	var discard Config
	md, err := toml.Decode(buf.String(), &discard)
	if err != nil {
		return nil, fmt.Errorf("decoding defaults: %w", err)
	}
	var keys []toml.Key
	for _, k := range md.Keys() {
		if md.Type(k...) != "Hash" {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Load reads the config at path, filling absent keys from defaults.
// A missing file is created from defaults, and a file with missing keys is
// rewritten with them populated. Paths are expanded and the result validated.
func Load(path string, defaults *Config) (*Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := writeToFile(path, defaults); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}
		return finish(defaults)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, missing, err := m.Read(f, defaults)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if missing {
		if err := writeToFile(path, cfg); err != nil {
			return nil, fmt.Errorf("populating defaults in %s: %w", path, err)
		}
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	out := *cfg
	for _, p := range []*string{&out.CapturePath, &out.LocalPath, &out.LogDir, &out.Database.Path, &out.Remote.Root, &out.Backup.RecipientsPath} {
		expanded, err := ExpandHome(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &out, nil
}

// ExpandHome replaces a leading "~" with the current user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
