// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/skryptik/sift-cli/internal/filter"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Snapshot SnapshotConfig `mapstructure:"snapshot" yaml:"snapshot"`
	Selector SelectorConfig `mapstructure:"selector" yaml:"selector"`
	Runner   RunnerConfig   `mapstructure:"runner" yaml:"runner"`
	Archive  ArchiveConfig  `mapstructure:"archive" yaml:"archive"`
	Scenes   ScenesConfig   `mapstructure:"scenes" yaml:"scenes"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// SnapshotConfig selects and tunes the snapshot backend.
type SnapshotConfig struct {
	// Backend is "chromedp" or "playwright".
	Backend           string        `mapstructure:"backend" yaml:"backend"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	MaxTextLength     int           `mapstructure:"max_text_length" yaml:"max_text_length"`
}

// SelectorConfig configures the downstream decision maker.
type SelectorConfig struct {
	// Provider is "gemini", "openai" or "rule".
	Provider       string        `mapstructure:"provider" yaml:"provider"`
	Model          string        `mapstructure:"model" yaml:"model"`
	APIKeyEnv      string        `mapstructure:"api_key_env" yaml:"api_key_env"`
	APITimeout     time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature    float64       `mapstructure:"temperature" yaml:"temperature"`
	RequestsPerSec float64       `mapstructure:"requests_per_sec" yaml:"requests_per_sec"`
}

// RunnerConfig tunes scene orchestration and recovery.
type RunnerConfig struct {
	// MaxWidenAttempts bounds how many times an empty candidate set may be
	// answered by relaxing the scene's filter before the scene fails.
	MaxWidenAttempts int `mapstructure:"max_widen_attempts" yaml:"max_widen_attempts"`
	// Resnapshot controls whether an empty result triggers one fresh capture
	// before any widening happens.
	Resnapshot bool `mapstructure:"resnapshot" yaml:"resnapshot"`
}

// ArchiveConfig configures the optional Postgres run archive.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
}

// ScenesConfig carries the per-scene filter policies. Scene-scoped configs
// are how situational markers (like the ad middle dot) stay contained to the
// scenes where they are safe.
type ScenesConfig struct {
	FindControl  filter.Config `mapstructure:"find_control" yaml:"find_control"`
	ChooseResult filter.Config `mapstructure:"choose_result" yaml:"choose_result"`
}

// SetDefaults applies default values for anything the config file and
// environment left unset.
func (c *Config) SetDefaults() {
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "console"
	}
	if c.Logger.ServiceName == "" {
		c.Logger.ServiceName = "sift"
	}
	if c.Logger.MaxSize <= 0 {
		c.Logger.MaxSize = 50 // megabytes per rotated file
	}
	if c.Logger.MaxBackups <= 0 {
		c.Logger.MaxBackups = 3
	}
	if c.Logger.MaxAge <= 0 {
		c.Logger.MaxAge = 14 // days
	}

	if c.Snapshot.Backend == "" {
		c.Snapshot.Backend = "chromedp"
	}
	if c.Snapshot.NavigationTimeout <= 0 {
		c.Snapshot.NavigationTimeout = 45 * time.Second
	}
	if c.Snapshot.SettleDelay <= 0 {
		c.Snapshot.SettleDelay = 2 * time.Second
	}
	if c.Snapshot.ViewportWidth <= 0 {
		c.Snapshot.ViewportWidth = 1920
	}
	if c.Snapshot.ViewportHeight <= 0 {
		c.Snapshot.ViewportHeight = 1080
	}
	if c.Snapshot.MaxTextLength <= 0 {
		c.Snapshot.MaxTextLength = 100
	}

	if c.Selector.Provider == "" {
		c.Selector.Provider = "gemini"
	}
	if c.Selector.Model == "" {
		c.Selector.Model = "gemini-2.0-flash"
	}
	if c.Selector.APITimeout <= 0 {
		c.Selector.APITimeout = 60 * time.Second
	}
	if c.Selector.RequestsPerSec <= 0 {
		c.Selector.RequestsPerSec = 0.5
	}

	if c.Runner.MaxWidenAttempts <= 0 {
		c.Runner.MaxWidenAttempts = 2
	}

	// The built-in policies only apply when the scenes section is entirely
	// absent. A scene with any exclusion configured, even markers alone, is
	// an explicit policy and must pass through untouched.
	if sceneUnset(c.Scenes.FindControl) && sceneUnset(c.Scenes.ChooseResult) {
		c.Scenes = DefaultScenes()
	}
}

// sceneUnset reports whether a scene policy carries no exclusions at all.
func sceneUnset(c filter.Config) bool {
	return len(c.ExcludedRoles) == 0 && len(c.ExcludedTextMarkers) == 0 && !c.RequireInteractive
}

// DefaultScenes returns the filter policies for the built-in search task.
// Scene one only needs the search control, so everything decorative or
// navigational goes. Scene three needs organic result links, so the search
// controls go and the ad markers apply. The "·" marker lives only here.
func DefaultScenes() ScenesConfig {
	return ScenesConfig{
		FindControl: filter.Config{
			ExcludedRoles: []string{"img", "button", "link"},
		},
		ChooseResult: filter.Config{
			ExcludedRoles:       []string{"searchbox", "button", "img"},
			ExcludedTextMarkers: []string{"Ad", "Sponsored", "·"},
		},
	}
}

// Validate checks cross-field consistency that SetDefaults cannot repair.
func (c *Config) Validate() error {
	switch c.Snapshot.Backend {
	case "chromedp", "playwright":
	default:
		return fmt.Errorf("unknown snapshot backend %q", c.Snapshot.Backend)
	}

	switch c.Selector.Provider {
	case "gemini", "openai", "rule":
	default:
		return fmt.Errorf("unknown selector provider %q", c.Selector.Provider)
	}

	if c.Archive.Enabled && c.Archive.URL == "" {
		return fmt.Errorf("archive is enabled but archive.url is empty")
	}

	if err := c.Scenes.FindControl.Validate(); err != nil {
		return fmt.Errorf("scenes.find_control: %w", err)
	}
	if err := c.Scenes.ChooseResult.Validate(); err != nil {
		return fmt.Errorf("scenes.choose_result: %w", err)
	}
	return nil
}

// setViperDefaults registers every config key with its default value. Viper
// only consults the environment for keys it knows about, so a key skipped
// here would be invisible to AutomaticEnv and its SIFT_* variable silently
// ignored during Unmarshal.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "sift")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", false)

	v.SetDefault("snapshot.backend", "chromedp")
	v.SetDefault("snapshot.headless", true)
	v.SetDefault("snapshot.navigation_timeout", 45*time.Second)
	v.SetDefault("snapshot.settle_delay", 2*time.Second)
	v.SetDefault("snapshot.viewport_width", 1920)
	v.SetDefault("snapshot.viewport_height", 1080)
	v.SetDefault("snapshot.max_text_length", 100)

	v.SetDefault("selector.provider", "gemini")
	v.SetDefault("selector.model", "gemini-2.0-flash")
	v.SetDefault("selector.api_key_env", "")
	v.SetDefault("selector.api_timeout", 60*time.Second)
	v.SetDefault("selector.temperature", 0.0)
	v.SetDefault("selector.requests_per_sec", 0.5)

	v.SetDefault("runner.max_widen_attempts", 2)
	v.SetDefault("runner.resnapshot", false)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.url", "")

	// Scene policies are structured lists and stay out of the env surface;
	// SetDefaults fills them after unmarshalling when the section is empty.
}

// Load reads the configuration from the given file (or the default search
// path), merges SIFT_* environment variables, applies defaults and validates.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		expanded, err := homedir.Expand(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to expand config path: %w", err)
		}
		v.SetConfigFile(expanded)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("sift")
		v.SetConfigType("yaml")
	}

	setViperDefaults(v)

	v.SetEnvPrefix("SIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars carry the run.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
