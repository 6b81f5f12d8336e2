// Package config loads the launcher's YAML settings file and applies
// environment and flag overrides. Flags take precedence over environment
// variables, which take precedence over the file.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"
)

// Config is the root of the settings file.
type Config struct {
	Game     GameConfig     `yaml:"game"`
	Modpack  ModpackConfig  `yaml:"modpack"`
	Download DownloadConfig `yaml:"download"`
	Identity IdentityConfig `yaml:"identity"`
	IPC      IPCConfig      `yaml:"ipc"`
	System   SystemConfig   `yaml:"system"`
}

// GameConfig locates the game installation and the version to launch.
type GameConfig struct {
	Dir        string `yaml:"dir"`
	Version    string `yaml:"version"`
	VersionURL string `yaml:"version_url"`
	// Optional loader profile merged over the base version document.
	ProfileURL string `yaml:"profile_url"`
	// Base URL for content-addressed asset objects.
	ResourcesURL string `yaml:"resources_url"`
	JavaPath     string `yaml:"java_path"`
	OS           string `yaml:"os"`
}

// ModpackConfig drives the managed-content sync pass.
type ModpackConfig struct {
	ManifestURL      string   `yaml:"manifest_url"`
	Target           string   `yaml:"target"`
	CleanupDirs      []string `yaml:"cleanup_dirs"`
	Volatile         []string `yaml:"volatile"`
	AdvisorySuffixes []string `yaml:"advisory_suffixes"`
}

// DownloadConfig tunes the transfer engine. Window sizes are per category:
// the game stage moves few large files, assets move thousands of tiny ones.
type DownloadConfig struct {
	Concurrency      int    `yaml:"concurrency"`       // modpack window
	GameConcurrency  int    `yaml:"game_concurrency"`  // client jar + libraries window
	AssetConcurrency int    `yaml:"asset_concurrency"` // asset objects window
	Attempts         int    `yaml:"attempts"`
	BaseDelay        string `yaml:"base_delay"`
	Timeout          string `yaml:"timeout"`
	SpeedLimit       string `yaml:"speed_limit"` // e.g. "8 MB", empty = unlimited
	HTTP3            bool   `yaml:"http3"`

	// Parsed forms, not serialized.
	BaseDelayDuration time.Duration     `yaml:"-"`
	TimeoutDuration   time.Duration     `yaml:"-"`
	SpeedLimitBytes   datasize.ByteSize `yaml:"-"`
}

// IdentityConfig names the offline player.
type IdentityConfig struct {
	PlayerName string `yaml:"player_name"`
}

// IPCConfig controls the progress stream for the desktop shell.
type IPCConfig struct {
	Addr string `yaml:"addr"` // empty disables the IPC server
}

// SystemConfig holds housekeeping paths and logging.
type SystemConfig struct {
	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// Load reads and parses the settings file, fills defaults, and validates.
// A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// fall through to defaults
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(&cfg)
	if err := finalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("EMBERLAUNCH_GAME_DIR"); v != "" {
		cfg.Game.Dir = v
	}
	if v := os.Getenv("EMBERLAUNCH_LOG_LEVEL"); v != "" {
		cfg.System.LogLevel = v
	}
	if v := os.Getenv("EMBERLAUNCH_PLAYER_NAME"); v != "" {
		cfg.Identity.PlayerName = v
	}
	if v := os.Getenv("EMBERLAUNCH_MANIFEST_URL"); v != "" {
		cfg.Modpack.ManifestURL = v
	}
}

// RegisterFlags binds override flags on fs. Call fs.Parse afterwards;
// flags win over both the file and the environment.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Game.Dir, "game-dir", c.Game.Dir, "game installation directory")
	fs.StringVar(&c.Game.Version, "version", c.Game.Version, "game version id")
	fs.StringVar(&c.Game.JavaPath, "java", c.Game.JavaPath, "path to the java executable")
	fs.StringVar(&c.Identity.PlayerName, "player", c.Identity.PlayerName, "offline player name")
	fs.StringVar(&c.Modpack.ManifestURL, "manifest-url", c.Modpack.ManifestURL, "modpack manifest URL (empty skips the modpack pass)")
	fs.StringVar(&c.System.LogLevel, "log-level", c.System.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&c.IPC.Addr, "ipc-addr", c.IPC.Addr, "loopback address for the progress stream (empty disables)")
}

func finalize(cfg *Config) error {
	if cfg.Game.Dir == "" {
		cfg.Game.Dir = "."
	}
	if cfg.Game.JavaPath == "" {
		cfg.Game.JavaPath = "java"
	}
	if cfg.Game.ResourcesURL == "" {
		cfg.Game.ResourcesURL = "https://resources.download.minecraft.net"
	}
	if cfg.Modpack.Target == "" {
		cfg.Modpack.Target = "modpack"
	}
	if len(cfg.Modpack.CleanupDirs) == 0 {
		cfg.Modpack.CleanupDirs = []string{"mods"}
	}

	d := &cfg.Download
	if d.Concurrency <= 0 {
		d.Concurrency = 10
	}
	if d.GameConcurrency <= 0 {
		d.GameConcurrency = 4
	}
	if d.AssetConcurrency <= 0 {
		d.AssetConcurrency = 16
	}
	if d.Attempts <= 0 {
		d.Attempts = 3
	}
	var err error
	if d.BaseDelayDuration, err = parseDuration(d.BaseDelay, 500*time.Millisecond); err != nil {
		return fmt.Errorf("download.base_delay: %w", err)
	}
	if d.TimeoutDuration, err = parseDuration(d.Timeout, 2*time.Minute); err != nil {
		return fmt.Errorf("download.timeout: %w", err)
	}
	if d.SpeedLimit != "" {
		if err := d.SpeedLimitBytes.UnmarshalText([]byte(d.SpeedLimit)); err != nil {
			return fmt.Errorf("download.speed_limit: %w", err)
		}
	}

	if cfg.System.DBPath == "" {
		cfg.System.DBPath = "emberlaunch.db"
	}
	if cfg.System.LogLevel == "" {
		cfg.System.LogLevel = "info"
	}
	return nil
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}
