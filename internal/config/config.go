// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Surface  SurfaceConfig  `mapstructure:"surface" yaml:"surface"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Batch    BatchConfig    `mapstructure:"batch" yaml:"batch"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls the Chrome process that hosts the chat page.
// UserDataDir and ProfileDirectory point at a persisted profile so that an
// already signed-in identity is reused between runs.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	UserDataDir       string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	ProfileDirectory  string        `mapstructure:"profile_directory" yaml:"profile_directory"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	StartupWait       time.Duration `mapstructure:"startup_wait" yaml:"startup_wait"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
}

// SurfaceConfig identifies the chat page and the DOM markers used to drive it.
type SurfaceConfig struct {
	URL               string `mapstructure:"url" yaml:"url"`
	InputSelector     string `mapstructure:"input_selector" yaml:"input_selector"`
	TurnSelector      string `mapstructure:"turn_selector" yaml:"turn_selector"`
	AssistantSelector string `mapstructure:"assistant_selector" yaml:"assistant_selector"`
}

// SessionConfig tunes the interaction loop.
type SessionConfig struct {
	InputAttempts    int           `mapstructure:"input_attempts" yaml:"input_attempts"`
	InputInterval    time.Duration `mapstructure:"input_interval" yaml:"input_interval"`
	ResponseTimeout  time.Duration `mapstructure:"response_timeout" yaml:"response_timeout"`
	ResponseInterval time.Duration `mapstructure:"response_interval" yaml:"response_interval"`
	SettleInterval   time.Duration `mapstructure:"settle_interval" yaml:"settle_interval"`
	StablePolls      int           `mapstructure:"stable_polls" yaml:"stable_polls"`
	IgnorePriorTurns bool          `mapstructure:"ignore_prior_turns" yaml:"ignore_prior_turns"`
}

// BatchConfig locates the question table and the column layout.
type BatchConfig struct {
	Path           string `mapstructure:"path" yaml:"path"`
	Sheet          string `mapstructure:"sheet" yaml:"sheet"`
	QuestionColumn int    `mapstructure:"question_column" yaml:"question_column"`
	OutputColumn   string `mapstructure:"output_column" yaml:"output_column"`
	Checkpoint     bool   `mapstructure:"checkpoint" yaml:"checkpoint"`
}

// DatabaseConfig holds the optional journal connection. An empty URL disables it.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "askbatch")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	// Sign-in may be manual, so the window is visible by default.
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_data_dir", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.profile_directory", "Default")
	v.SetDefault("browser.startup_wait", "10s")
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.action_timeout", "10s")

	// -- Surface --
	v.SetDefault("surface.url", "")
	v.SetDefault("surface.input_selector", "#prompt-textarea, textarea")
	v.SetDefault("surface.turn_selector", `[data-testid^="conversation-turn"]`)
	v.SetDefault("surface.assistant_selector", `[data-message-author-role="assistant"]`)

	// -- Session --
	v.SetDefault("session.input_attempts", 10)
	v.SetDefault("session.input_interval", "1s")
	v.SetDefault("session.response_timeout", "20s")
	v.SetDefault("session.response_interval", "1s")
	v.SetDefault("session.settle_interval", "3s")
	v.SetDefault("session.stable_polls", 1)
	v.SetDefault("session.ignore_prior_turns", true)

	// -- Batch --
	v.SetDefault("batch.path", "")
	v.SetDefault("batch.sheet", "")
	v.SetDefault("batch.question_column", 3)
	v.SetDefault("batch.output_column", "GPT 응답")
	v.SetDefault("batch.checkpoint", false)

	// -- Database --
	v.SetDefault("database.url", "")
}

// Load creates a new configuration instance from a viper object and validates it.
func Load(v *viper.Viper) (*Config, error) {
	// The journal password usually lives in the URL; keep it out of config files.
	if err := v.BindEnv("database.url", "ASKBATCH_DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind database url: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Surface.URL == "" {
		return fmt.Errorf("surface.url is a required configuration field")
	}
	if c.Batch.Path == "" {
		return fmt.Errorf("batch.path is a required configuration field")
	}
	if c.Batch.QuestionColumn < 0 {
		return fmt.Errorf("batch.question_column must not be negative")
	}
	if c.Batch.OutputColumn == "" {
		return fmt.Errorf("batch.output_column must not be empty")
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session configuration invalid: %w", err)
	}
	if c.Surface.InputSelector == "" || c.Surface.TurnSelector == "" || c.Surface.AssistantSelector == "" {
		return fmt.Errorf("surface selectors must not be empty")
	}
	return nil
}

// Validate checks the SessionConfig settings.
func (s *SessionConfig) Validate() error {
	if s.InputAttempts <= 0 {
		return fmt.Errorf("input_attempts must be greater than 0")
	}
	if s.InputInterval <= 0 || s.ResponseInterval <= 0 {
		return fmt.Errorf("poll intervals must be positive durations")
	}
	if s.ResponseTimeout <= 0 {
		return fmt.Errorf("response_timeout must be a positive duration")
	}
	if s.SettleInterval < 0 {
		return fmt.Errorf("settle_interval must not be negative")
	}
	if s.StablePolls <= 0 {
		return fmt.Errorf("stable_polls must be greater than 0")
	}
	return nil
}
