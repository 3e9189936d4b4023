package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadClean resets viper and loads config against an isolated HOME
// with only the given environment variables set.
func loadClean(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	viper.Reset()
	t.Setenv("HOME", t.TempDir())

	for _, key := range []string{
		"GEMINI_API_KEY", "SUI_PRIVATE_KEY", "CARD_PACKAGE_ID",
		"SUI_RPC_URL", "WALRUS_PUBLISHER_URL", "WALRUS_AGGREGATOR_URL",
		"CARDFORGE_LEDGER_PATH", "CARDFORGE_SERVE_ADDR",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
	return Load()
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadClean(t, nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultSuiRPCURL, cfg.SuiRPCURL)
	assert.Equal(t, DefaultTextModel, cfg.TextModel)
	assert.Equal(t, DefaultImageModel, cfg.ImageModel)
	assert.Equal(t, DefaultWalrusPublisher, cfg.WalrusPublisherURL)
	assert.Equal(t, DefaultWalrusAggregator, cfg.WalrusAggregatorURL)
	assert.Equal(t, DefaultUploadMaxAttempts, cfg.UploadMaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.UploadBackoffUnit)
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.PollErrorInterval)
	assert.Equal(t, DefaultPollLimit, cfg.PollLimit)
	assert.False(t, cfg.WalrusDeletable)
	assert.Equal(t, filepath.Join(os.Getenv("HOME"), ".cardforge", DefaultLedgerFile), cfg.LedgerPath)
}

func TestLoadEnvOverrides(t *testing.T) {
	cfg, err := loadClean(t, map[string]string{
		"SUI_RPC_URL":     "https://fullnode.mainnet.sui.io:443",
		"CARD_PACKAGE_ID": "0xdead",
		"GEMINI_API_KEY":  "test-key",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://fullnode.mainnet.sui.io:443", cfg.SuiRPCURL)
	assert.Equal(t, "0xdead", cfg.CardPackageID)
	assert.Equal(t, "test-key", cfg.GeminiAPIKey)
}

// FileUsed lets commands log the config source through the process
// logger instead of Load writing to the default slog handler.
func TestLoadReportsConfigFileUsed(t *testing.T) {
	t.Run("defaults only", func(t *testing.T) {
		cfg, err := loadClean(t, nil)
		require.NoError(t, err)
		assert.Empty(t, cfg.FileUsed)
	})

	t.Run("file present", func(t *testing.T) {
		viper.Reset()
		home := t.TempDir()
		t.Setenv("HOME", home)

		dir := filepath.Join(home, ".cardforge")
		require.NoError(t, os.MkdirAll(dir, 0o750))
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o600))

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, path, cfg.FileUsed)
		assert.Equal(t, "debug", cfg.LogLevel)
	})
}

func TestLoadRejectsBadRPCURL(t *testing.T) {
	_, err := loadClean(t, map[string]string{"SUI_RPC_URL": "ftp://nope"})
	require.ErrorIs(t, err, ErrInvalidRPCURL)
}

func TestValidateWatchRequirements(t *testing.T) {
	cfg, err := loadClean(t, nil)
	require.NoError(t, err)

	// Nothing configured: package id is the first missing requirement.
	require.ErrorIs(t, cfg.ValidateWatch(), ErrMissingPackageID)

	cfg.CardPackageID = "0xabc"
	require.ErrorIs(t, cfg.ValidateWatch(), ErrMissingAPIKey)

	cfg.GeminiAPIKey = "key"
	require.ErrorIs(t, cfg.ValidateWatch(), ErrMissingSignerKey)

	cfg.SignerKey = "0x0102"
	require.NoError(t, cfg.ValidateWatch())
}

func TestValidateServeDoesNotNeedSigner(t *testing.T) {
	cfg, err := loadClean(t, map[string]string{"GEMINI_API_KEY": "key"})
	require.NoError(t, err)
	require.NoError(t, cfg.ValidateServe())
}

func TestValidateRanges(t *testing.T) {
	cfg, err := loadClean(t, nil)
	require.NoError(t, err)

	cfg.UploadMaxAttempts = 0
	require.ErrorIs(t, cfg.Validate(), ErrInvalidAttempts)

	cfg.UploadMaxAttempts = 3
	cfg.WalrusEpochs = 0
	require.ErrorIs(t, cfg.Validate(), ErrInvalidEpochs)

	cfg.WalrusEpochs = 5
	cfg.PollInterval = 0
	require.ErrorIs(t, cfg.Validate(), ErrInvalidInterval)
}
