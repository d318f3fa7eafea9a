package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Directory holding the databases and the state file
	// Default: ~/.local/share/moodplayer
	DataDir string

	// Database and state file names, relative to DataDir unless absolute
	CatalogDB string
	HistoryDB string
	StateFile string

	// Optional TOML track manifest, re-imported whenever it changes
	Manifest string

	// How often the playlist is refreshed from the catalog (in seconds)
	PollInterval int

	// Initial volume (0.0-1.0) and mood when nothing is restored
	Volume float64
	Mood   string

	// External audio player
	Player PlayerConfig

	// Logging
	Log LogConfig

	// Output format template for the now command
	// Default: "{{.Artist}} - {{.Title}}"
	OutputFormat string

	// Fixed output width for the now command (0 = disabled)
	OutputWidth int

	// Marquee scrolling for the now command
	MarqueeEnabled   bool
	MarqueeSpeed     int
	MarqueeSeparator string
}

// PlayerConfig describes how the external player is started
type PlayerConfig struct {
	Command      string
	Args         []string
	VolumeFlag   string
	StartFlag    string
	ProbeCommand string
}

// LogConfig holds log file settings
type LogConfig struct {
	File       string // Empty logs to stderr only
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Config file locations (in order of precedence)
	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)

	// Read config file (optional - don't fail if missing)
	_ = v.ReadInConfig()

	// Read from environment variables
	// Nested keys map to MOODPLAYER_PLAYER_COMMAND and the like
	v.SetEnvPrefix("MOODPLAYER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", getDataDir())
	v.SetDefault("catalog_db", "catalog.db")
	v.SetDefault("history_db", "history.db")
	v.SetDefault("state_file", "state.json")
	v.SetDefault("manifest", "")
	v.SetDefault("poll_interval", 5)
	v.SetDefault("volume", 0.75)
	v.SetDefault("mood", "")

	v.SetDefault("player.command", "mpv")
	v.SetDefault("player.args", []string{"--no-video", "--really-quiet", "--no-terminal"})
	v.SetDefault("player.volume_flag", "--volume=%d")
	v.SetDefault("player.start_flag", "--start=%.3f")
	v.SetDefault("player.probe_command", "ffprobe")

	v.SetDefault("log.file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("output_format", "{{.Artist}} - {{.Title}}")
	v.SetDefault("output_width", 0)
	v.SetDefault("marquee_enabled", false)
	v.SetDefault("marquee_speed", 2)
	v.SetDefault("marquee_separator", " • ")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		DataDir:      v.GetString("data_dir"),
		CatalogDB:    v.GetString("catalog_db"),
		HistoryDB:    v.GetString("history_db"),
		StateFile:    v.GetString("state_file"),
		Manifest:     v.GetString("manifest"),
		PollInterval: v.GetInt("poll_interval"),
		Volume:       v.GetFloat64("volume"),
		Mood:         v.GetString("mood"),
		Player: PlayerConfig{
			Command:      v.GetString("player.command"),
			Args:         v.GetStringSlice("player.args"),
			VolumeFlag:   v.GetString("player.volume_flag"),
			StartFlag:    v.GetString("player.start_flag"),
			ProbeCommand: v.GetString("player.probe_command"),
		},
		Log: LogConfig{
			File:       v.GetString("log.file"),
			Level:      v.GetString("log.level"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
		},
		OutputFormat:     v.GetString("output_format"),
		OutputWidth:      v.GetInt("output_width"),
		MarqueeEnabled:   v.GetBool("marquee_enabled"),
		MarqueeSpeed:     v.GetInt("marquee_speed"),
		MarqueeSeparator: v.GetString("marquee_separator"),
	}
}

// Path resolves a data file name against DataDir
func (c *Config) Path(name string) string {
	if name == "" || filepath.IsAbs(name) || name == ":memory:" {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// PollEvery returns the poll interval as a duration
func (c *Config) PollEvery() time.Duration {
	if c.PollInterval <= 0 {
		return 0
	}
	return time.Duration(c.PollInterval) * time.Second
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "moodplayer")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// getDataDir returns the default data directory path
func getDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share", "moodplayer")
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// Save writes configuration to file
func (c *Config) Save() error {
	return c.SaveAs(filepath.Join(getConfigDir(), "config.yaml"))
}

// SaveAs writes configuration to the given file
func (c *Config) SaveAs(configFile string) error {
	v := viper.New()

	v.Set("data_dir", c.DataDir)
	v.Set("catalog_db", c.CatalogDB)
	v.Set("history_db", c.HistoryDB)
	v.Set("state_file", c.StateFile)
	v.Set("manifest", c.Manifest)
	v.Set("poll_interval", c.PollInterval)
	v.Set("volume", c.Volume)
	v.Set("mood", c.Mood)
	v.Set("player.command", c.Player.Command)
	v.Set("player.args", c.Player.Args)
	v.Set("player.volume_flag", c.Player.VolumeFlag)
	v.Set("player.start_flag", c.Player.StartFlag)
	v.Set("player.probe_command", c.Player.ProbeCommand)
	v.Set("log.file", c.Log.File)
	v.Set("log.level", c.Log.Level)
	v.Set("log.max_size_mb", c.Log.MaxSizeMB)
	v.Set("log.max_backups", c.Log.MaxBackups)
	v.Set("log.max_age_days", c.Log.MaxAgeDays)
	v.Set("output_format", c.OutputFormat)
	v.Set("output_width", c.OutputWidth)
	v.Set("marquee_enabled", c.MarqueeEnabled)
	v.Set("marquee_speed", c.MarqueeSpeed)
	v.Set("marquee_separator", c.MarqueeSeparator)

	// Write to file
	return v.WriteConfigAs(configFile)
}

// LoadFile reads configuration from a specific file, applying defaults
// for missing keys
func LoadFile(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return fromViper(v), nil
}
