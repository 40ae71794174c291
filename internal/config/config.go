package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/tidwall/gjson"
)

// Config holds all environment-based configuration for cadsync.
type Config struct {
	// API endpoint. The default is the production service; override for
	// staging or local fake-server runs.
	APIURL string `env:"LEO_API_URL" envDefault:"https://api.getleo.ai" validate:"url"`

	// Identity provider endpoint used for access-key exchange.
	IdentityURL string `env:"LEO_IDENTITY_URL" envDefault:"https://api.descope.com" validate:"url"`

	// Path to the JSON auth key file. When empty, the default location
	// under the user's home directory is used.
	AuthKeyPath string `env:"LEO_AUTH_KEY"`

	// Local directory tree to sync. Required.
	VaultDir string `env:"LEO_VAULT_DIR" validate:"required"`

	// SyncOnStart runs a full blocking reconciliation before watching.
	SyncOnStart bool `env:"SYNC_ON_START" envDefault:"true"`

	// DebounceInterval batches bursts of filesystem events before
	// dispatching them.
	DebounceInterval time.Duration `env:"DEBOUNCE_INTERVAL" envDefault:"500ms"`

	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

var validate = validator.New()

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	// Resolve VaultDir to an absolute path at startup. Relative paths are
	// computed against it throughout sync, and those computations only
	// behave predictably with an absolute root.
	absDir, err := filepath.Abs(cfg.VaultDir)
	if err != nil {
		return nil, fmt.Errorf("resolving vault dir to absolute path: %w", err)
	}
	cfg.VaultDir = absDir

	if cfg.AuthKeyPath == "" {
		cfg.AuthKeyPath, err = DefaultAuthKeyPath()
		if err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AuthConfig holds the Descope access-key credentials read from the auth
// key file.
type AuthConfig struct {
	APIKey    string
	ProjectID string
}

// DefaultAuthKeyPath returns the default auth key file location:
// ~/.cadsync/auth.json
func DefaultAuthKeyPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".cadsync", "auth.json"), nil
}

// LoadAuthConfig reads the JSON auth key file at path. The file carries
// two fields, ApiKey and ProjectId, both required.
func LoadAuthConfig(path string) (*AuthConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading auth key file %s: %w", path, err)
	}

	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("auth key file %s is not valid JSON", path)
	}

	auth := &AuthConfig{
		APIKey:    gjson.GetBytes(data, "ApiKey").String(),
		ProjectID: gjson.GetBytes(data, "ProjectId").String(),
	}
	if auth.APIKey == "" || auth.ProjectID == "" {
		return nil, fmt.Errorf("auth key file %s must contain ApiKey and ProjectId", path)
	}

	return auth, nil
}
