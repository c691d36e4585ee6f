// Package config handles clawdeck configuration loading and validation.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for clawdeck.
type Config struct {
	Daemon   DaemonConfig   `yaml:"daemon"`
	Agent    AgentConfig    `yaml:"agent"`
	Sessions SessionsConfig `yaml:"sessions"`
	Sweeps   SweepsConfig   `yaml:"sweeps"`
}

// DaemonConfig defines clawdeckd settings.
type DaemonConfig struct {
	Socket    string `yaml:"socket"`
	Database  string `yaml:"database"`
	LogFile   string `yaml:"log_file"`
	LogLevel  string `yaml:"log_level"`
	SentryDSN string `yaml:"sentry_dsn"`
}

// AgentConfig defines how the external agent process is invoked.
type AgentConfig struct {
	Binary    string        `yaml:"binary"`     // agent CLI name or absolute path
	DefaultID string        `yaml:"default_id"` // agent id used for new threads
	Timeout   time.Duration `yaml:"timeout"`    // per-invocation timeout
}

// SessionsConfig defines where session logs live and how they are watched.
type SessionsConfig struct {
	Dir          string        `yaml:"dir"`           // root of the agent's session tree
	PollInterval time.Duration `yaml:"poll_interval"` // session watch cadence
}

// SweepsConfig defines the background sweep schedules.
type SweepsConfig struct {
	FollowUpInterval time.Duration `yaml:"follow_up_interval"` // proactive brain-dump sweep
	TitleRefreshAt   string        `yaml:"title_refresh_at"`   // "HH:MM" local wall-clock time
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Daemon: DaemonConfig{
			Socket:   "/tmp/clawdeck.sock",
			Database: filepath.Join(homeDir, ".local/share/clawdeck/clawdeck.db"),
			LogFile:  filepath.Join(homeDir, ".local/share/clawdeck/clawdeck.log"),
			LogLevel: "info",
		},
		Agent: AgentConfig{
			Binary:    "openclaw",
			DefaultID: "main",
			Timeout:   2 * time.Minute,
		},
		Sessions: SessionsConfig{
			Dir:          filepath.Join(homeDir, ".openclaw"),
			PollInterval: 500 * time.Millisecond,
		},
		Sweeps: SweepsConfig{
			FollowUpInterval: 4 * time.Hour,
			TitleRefreshAt:   "23:55",
		},
	}
}

// Load reads configuration from the default path or creates default config.
func Load() (*Config, error) {
	configPath := DefaultConfigPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.expandEnvVars()
	return cfg, nil
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	if p := os.Getenv("CLAWDECK_CONFIG"); p != "" {
		return p
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config/clawdeck/config.yaml")
}

func (c *Config) expandEnvVars() {
	c.Daemon.SentryDSN = os.ExpandEnv(c.Daemon.SentryDSN)
}
