// Package config provides configuration management for Hound.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/compose-spec/compose-go/v2/dotenv"
)

const (
	ProjectsDir = "projects"
	TmpDir      = "tmp"
	LocksDir    = "locks"
	EnvFile     = ".env"

	// EncryptionKeyVar names the variable holding the fernet key used for state snapshots
	EncryptionKeyVar = "HOUND_ENCRYPTION_KEY"
)

// Version is set at build time via -ldflags
var Version = "dev"

// EnvProvider abstracts environment variable access for testing
type EnvProvider interface {
	Getenv(key string) string
	UserHomeDir() (string, error)
}

// DefaultEnvProvider implements EnvProvider using real OS functions
type DefaultEnvProvider struct{}

func (p *DefaultEnvProvider) Getenv(key string) string {
	return os.Getenv(key)
}

func (p *DefaultEnvProvider) UserHomeDir() (string, error) {
	return os.UserHomeDir()
}

// GetDefaultDataDir returns the default Hound data directory following XDG Base Directory specification
func GetDefaultDataDir() string {
	return getDefaultDataDirWithEnv(&DefaultEnvProvider{})
}

func getDefaultDataDirWithEnv(env EnvProvider) string {
	xdgDataHome := env.Getenv("XDG_DATA_HOME")
	if xdgDataHome != "" {
		return filepath.Join(xdgDataHome, "hound")
	}

	homeDir, _ := env.UserHomeDir()
	return filepath.Join(homeDir, ".local", "share", "hound")
}

// Config holds configuration for all services
type Config struct {
	// Core paths
	DataDir      string
	DatabasePath string
	ProjectsDir  string
	TmpDir       string
	LocksDir     string

	// Logging
	LogLevel     string
	ColorEnabled bool

	// Docker
	DockerHost    string
	DockerCommand string

	// BloodHound bootstrap
	AdminUsername      string
	BootstrapPrefix    string
	BootstrapSuffix    string
	ReadyMarker        string
	ReadyTimeout       time.Duration
	LogPollInterval    time.Duration
	FeatureFlagKey     string
	RequestTimeout     time.Duration
	DeleteGracePeriod  time.Duration
	IngestPollInterval time.Duration
	IngestTimeout      time.Duration
	IngestPageSize     int
	BootstrapTimeout   time.Duration

	// Encryption
	EncryptionKey string

	env EnvProvider
}

// NewConfigForCLI creates a new configuration for CLI usage with optional data directory override
func NewConfigForCLI(cliDataDir string) (*Config, error) {
	return newConfigWithEnv(&DefaultEnvProvider{}, cliDataDir)
}

// NewConfigForCLIWithEnv creates a new configuration with custom environment provider (for testing)
func NewConfigForCLIWithEnv(env EnvProvider, cliDataDir string) (*Config, error) {
	return newConfigWithEnv(env, cliDataDir)
}

func newConfigWithEnv(env EnvProvider, cliDataDir string) (*Config, error) {
	c := &Config{env: env}

	c.setDefaults()
	c.loadFromEnv()

	if cliDataDir != "" {
		c.DataDir = cliDataDir
	}

	c.derivePaths()

	// The .env file in the data directory is only consulted for the key,
	// after the data directory is final.
	if c.EncryptionKey == "" {
		if key := c.readEncryptionKeyFromEnvFile(); key != "" {
			c.EncryptionKey = key
		}
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return c, nil
}

// setDefaults sets sensible default values
func (c *Config) setDefaults() {
	c.DataDir = getDefaultDataDirWithEnv(c.env)
	c.LogLevel = "info"
	c.ColorEnabled = true
	c.DockerHost = "unix:///var/run/docker.sock"
	c.DockerCommand = "docker"
	c.AdminUsername = "admin"
	c.BootstrapPrefix = "Initial Password Set To:"
	c.BootstrapSuffix = `#"}`
	c.ReadyMarker = "Server started successfully"
	c.ReadyTimeout = 5 * time.Minute
	c.LogPollInterval = time.Second
	c.FeatureFlagKey = "clear_graph_data"
	c.RequestTimeout = 2 * time.Minute
	c.DeleteGracePeriod = 5 * time.Second
	c.IngestPollInterval = 5 * time.Second
	c.IngestTimeout = 30 * time.Minute
	c.IngestPageSize = 10
	c.BootstrapTimeout = 90 * time.Second
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if v := c.env.Getenv("HOUND_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := c.env.Getenv("HOUND_DATABASE_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := c.env.Getenv("HOUND_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := c.env.Getenv("HOUND_COLOR_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.ColorEnabled = enabled
		}
	}
	if v := c.env.Getenv("HOUND_DOCKER_HOST"); v != "" {
		c.DockerHost = v
	}
	if v := c.env.Getenv("HOUND_DOCKER_COMMAND"); v != "" {
		c.DockerCommand = v
	}
	if v := c.env.Getenv("HOUND_ADMIN_USERNAME"); v != "" {
		c.AdminUsername = v
	}
	if v := c.env.Getenv("HOUND_READY_MARKER"); v != "" {
		c.ReadyMarker = v
	}
	if v := c.env.Getenv("HOUND_FEATURE_FLAG"); v != "" {
		c.FeatureFlagKey = v
	}
	c.loadDuration("HOUND_BOOTSTRAP_TIMEOUT", &c.BootstrapTimeout)
	c.loadDuration("HOUND_READY_TIMEOUT", &c.ReadyTimeout)
	c.loadDuration("HOUND_LOG_POLL_INTERVAL", &c.LogPollInterval)
	c.loadDuration("HOUND_REQUEST_TIMEOUT", &c.RequestTimeout)
	c.loadDuration("HOUND_DELETE_GRACE_PERIOD", &c.DeleteGracePeriod)
	c.loadDuration("HOUND_INGEST_POLL_INTERVAL", &c.IngestPollInterval)
	c.loadDuration("HOUND_INGEST_TIMEOUT", &c.IngestTimeout)
	if v := c.env.Getenv("HOUND_INGEST_PAGE_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			c.IngestPageSize = size
		}
	}
	if v := c.env.Getenv(EncryptionKeyVar); v != "" {
		c.EncryptionKey = v
	}
}

func (c *Config) loadDuration(key string, target *time.Duration) {
	if v := c.env.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		}
	}
}

// readEncryptionKeyFromEnvFile attempts to read the encryption key from the .env file in data directory
func (c *Config) readEncryptionKeyFromEnvFile() string {
	envVars, err := dotenv.Read(c.EnvFilePath())
	if err != nil {
		// Missing or unreadable .env is fine, the key gets generated on first use
		return ""
	}

	return envVars[EncryptionKeyVar]
}

// derivePaths calculates dependent paths from the base DataDir
func (c *Config) derivePaths() {
	c.ProjectsDir = filepath.Join(c.DataDir, ProjectsDir)
	c.TmpDir = filepath.Join(c.DataDir, TmpDir)
	c.LocksDir = filepath.Join(c.DataDir, LocksDir)

	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(c.DataDir, "hound.db")
	}
}

// validate ensures configuration values are valid
func (c *Config) validate() error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warning": true, "error": true, "silent": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warning, error, or silent)", c.LogLevel)
	}

	if c.DockerCommand == "" {
		return fmt.Errorf("docker command cannot be empty")
	}

	if c.AdminUsername == "" {
		return fmt.Errorf("admin username cannot be empty")
	}

	if c.ReadyMarker == "" {
		return fmt.Errorf("ready marker cannot be empty")
	}

	durations := map[string]time.Duration{
		"bootstrap timeout":    c.BootstrapTimeout,
		"ready timeout":        c.ReadyTimeout,
		"log poll interval":    c.LogPollInterval,
		"request timeout":      c.RequestTimeout,
		"ingest poll interval": c.IngestPollInterval,
		"ingest timeout":       c.IngestTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got: %v", name, d)
		}
	}

	if c.DeleteGracePeriod < 0 {
		return fmt.Errorf("delete grace period cannot be negative, got: %v", c.DeleteGracePeriod)
	}

	if c.IngestPageSize < 1 {
		return fmt.Errorf("ingest page size must be at least 1, got: %d", c.IngestPageSize)
	}

	return nil
}

// EnvFilePath returns the location of the .env file in the data directory
func (c *Config) EnvFilePath() string {
	return filepath.Join(c.DataDir, EnvFile)
}

// GetLogLevel returns the configured log level
func (c *Config) GetLogLevel() string {
	return c.LogLevel
}
