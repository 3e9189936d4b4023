// Package config provides application configuration with multi-source
// priority.
//
// Sources (highest to lowest):
//  1. Environment variables (runtime override)
//  2. Config file (~/.cardforge/config.yaml or ./config.yaml)
//  3. Default values
//
// Validation is fail-fast: Load returns an error for any invalid
// value, and command-specific Validate* methods check the credentials
// that command actually needs. Missing required configuration is the
// only condition that terminates the process at startup.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates GEMINI_API_KEY is not set.
	ErrMissingAPIKey = errors.New("missing GEMINI_API_KEY")

	// ErrMissingSignerKey indicates SUI_PRIVATE_KEY is not set.
	ErrMissingSignerKey = errors.New("missing SUI_PRIVATE_KEY")

	// ErrMissingPackageID indicates the card package id is not configured.
	ErrMissingPackageID = errors.New("missing card package id")

	// ErrInvalidRPCURL indicates the Sui fullnode URL is malformed.
	ErrInvalidRPCURL = errors.New("invalid Sui RPC URL")

	// ErrInvalidWalrusURL indicates a Walrus endpoint URL is malformed.
	ErrInvalidWalrusURL = errors.New("invalid Walrus URL")

	// ErrInvalidAttempts indicates the upload attempt budget is out of range.
	ErrInvalidAttempts = errors.New("invalid upload attempt budget")

	// ErrInvalidInterval indicates a polling interval is out of range.
	ErrInvalidInterval = errors.New("invalid poll interval")

	// ErrInvalidEpochs indicates the Walrus storage epoch count is out of range.
	ErrInvalidEpochs = errors.New("invalid storage epochs")
)

// Defaults for the generative models and the Walrus testnet endpoints.
const (
	DefaultTextModel  = "gemini-2.0-flash-exp"
	DefaultImageModel = "gemini-2.5-flash-image"

	DefaultSuiRPCURL          = "https://fullnode.testnet.sui.io:443"
	DefaultWalrusPublisher    = "https://publisher.walrus-testnet.walrus.space"
	DefaultWalrusAggregator   = "https://aggregator.walrus-testnet.walrus.space"
	DefaultUploadMaxAttempts  = 3
	DefaultUploadBackoffUnit  = 5 * time.Second
	DefaultPollInterval       = 3 * time.Second
	DefaultPollErrorInterval  = 5 * time.Second
	DefaultPollLimit          = 10
	DefaultPrimeLimit         = 50
	DefaultWalrusEpochs       = 5
	DefaultServeAddr          = "127.0.0.1:3001"
	DefaultLedgerFile         = "ledger.db"
	DefaultReferenceDirectory = "references"
)

// Config stores application configuration.
//
// Credentials (GeminiAPIKey, SignerKey) come from the environment
// only and are never written back to the config file.
type Config struct {
	// Sui chain access
	SuiRPCURL     string `mapstructure:"sui_rpc_url"`
	CardPackageID string `mapstructure:"card_package_id"`
	SignerKey     string `mapstructure:"signer_key"`

	// Generative service
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	TextModel    string `mapstructure:"text_model"`
	ImageModel   string `mapstructure:"image_model"`

	// Walrus storage
	WalrusPublisherURL  string        `mapstructure:"walrus_publisher_url"`
	WalrusAggregatorURL string        `mapstructure:"walrus_aggregator_url"`
	WalrusEpochs        int           `mapstructure:"walrus_epochs"`
	WalrusDeletable     bool          `mapstructure:"walrus_deletable"`
	UploadMaxAttempts   int           `mapstructure:"upload_max_attempts"`
	UploadBackoffUnit   time.Duration `mapstructure:"upload_backoff_unit"`

	// Event polling
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	PollErrorInterval time.Duration `mapstructure:"poll_error_interval"`
	PollLimit         int           `mapstructure:"poll_limit"`
	PrimeLimit        int           `mapstructure:"prime_limit"`

	// Local state
	LedgerPath   string `mapstructure:"ledger_path"`
	ReferenceDir string `mapstructure:"reference_dir"`

	// HTTP API
	ServeAddr string `mapstructure:"serve_addr"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`

	// FileUsed is the config file Load read, empty when only defaults
	// and environment applied. Informational, set by Load itself.
	FileUsed string `mapstructure:"-"`
}

// Load reads configuration from defaults, an optional config file and
// the environment, then validates the shared settings.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".cardforge")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults(configDir)
	bindEnvVariables()

	// A missing config file is fine, defaults and env cover it. The
	// caller logs FileUsed once the process logger exists; logging
	// here would bypass the configured level and format.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	cfg.FileUsed = viper.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(configDir string) {
	viper.SetDefault("sui_rpc_url", DefaultSuiRPCURL)
	viper.SetDefault("text_model", DefaultTextModel)
	viper.SetDefault("image_model", DefaultImageModel)

	viper.SetDefault("walrus_publisher_url", DefaultWalrusPublisher)
	viper.SetDefault("walrus_aggregator_url", DefaultWalrusAggregator)
	viper.SetDefault("walrus_epochs", DefaultWalrusEpochs)
	viper.SetDefault("walrus_deletable", false)
	viper.SetDefault("upload_max_attempts", DefaultUploadMaxAttempts)
	viper.SetDefault("upload_backoff_unit", DefaultUploadBackoffUnit)

	viper.SetDefault("poll_interval", DefaultPollInterval)
	viper.SetDefault("poll_error_interval", DefaultPollErrorInterval)
	viper.SetDefault("poll_limit", DefaultPollLimit)
	viper.SetDefault("prime_limit", DefaultPrimeLimit)

	viper.SetDefault("ledger_path", filepath.Join(configDir, DefaultLedgerFile))
	viper.SetDefault("reference_dir", DefaultReferenceDirectory)

	viper.SetDefault("serve_addr", DefaultServeAddr)

	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", false)
}

func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("gemini_api_key", "GEMINI_API_KEY")
	mustBind("signer_key", "SUI_PRIVATE_KEY")
	mustBind("card_package_id", "CARD_PACKAGE_ID")
	mustBind("sui_rpc_url", "SUI_RPC_URL")
	mustBind("walrus_publisher_url", "WALRUS_PUBLISHER_URL")
	mustBind("walrus_aggregator_url", "WALRUS_AGGREGATOR_URL")
	mustBind("ledger_path", "CARDFORGE_LEDGER_PATH")
	mustBind("reference_dir", "CARDFORGE_REFERENCE_DIR")
	mustBind("serve_addr", "CARDFORGE_SERVE_ADDR")
	mustBind("log_level", "CARDFORGE_LOG_LEVEL")
	mustBind("log_json", "CARDFORGE_LOG_JSON")
}

// Validate checks settings shared by every command. Credential checks
// live in the command-specific Validate* methods.
func (c *Config) Validate() error {
	if err := validURL(c.SuiRPCURL); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRPCURL, c.SuiRPCURL)
	}
	if err := validURL(c.WalrusPublisherURL); err != nil {
		return fmt.Errorf("%w: publisher %q", ErrInvalidWalrusURL, c.WalrusPublisherURL)
	}
	if err := validURL(c.WalrusAggregatorURL); err != nil {
		return fmt.Errorf("%w: aggregator %q", ErrInvalidWalrusURL, c.WalrusAggregatorURL)
	}
	if c.UploadMaxAttempts < 1 || c.UploadMaxAttempts > 10 {
		return fmt.Errorf("%w: %d (want 1-10)", ErrInvalidAttempts, c.UploadMaxAttempts)
	}
	if c.WalrusEpochs < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidEpochs, c.WalrusEpochs)
	}
	if c.PollInterval <= 0 || c.PollErrorInterval <= 0 {
		return fmt.Errorf("%w: poll=%s error=%s", ErrInvalidInterval, c.PollInterval, c.PollErrorInterval)
	}
	if c.PollLimit < 1 || c.PrimeLimit < 0 {
		return fmt.Errorf("%w: limit=%d prime=%d", ErrInvalidInterval, c.PollLimit, c.PrimeLimit)
	}
	return nil
}

// ValidateWatch checks everything the pipeline daemon needs: chain
// access, the signing key for write-backs, and the Gemini credential.
func (c *Config) ValidateWatch() error {
	if strings.TrimSpace(c.CardPackageID) == "" {
		return ErrMissingPackageID
	}
	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		return ErrMissingAPIKey
	}
	// A missing signer is a hard startup failure. The pipeline never
	// falls back to returning unpersisted placeholder URLs.
	if strings.TrimSpace(c.SignerKey) == "" {
		return ErrMissingSignerKey
	}
	return nil
}

// ValidateForge checks what the one-shot card creation command needs.
func (c *Config) ValidateForge() error {
	return c.ValidateWatch()
}

// ValidateServe checks what the HTTP API needs. The server proxies
// uploads through the Walrus publisher HTTP API and does not sign
// transactions, so no signer key is required.
func (c *Config) ValidateServe() error {
	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func validURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
