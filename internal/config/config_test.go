package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func TestSettingsStoreCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store := NewSettingsStore(path)

	settings, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "claude", settings["AI_PROVIDER"])

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestSettingsStoreMigratesLegacyKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	legacy := map[string]any{
		"OUTPUT_FILE":   "out.json",
		"USE_CLAUDE_AI": true,
	}
	raw, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	settings, err := NewSettingsStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "out.json", settings["PRODUCT_OUTPUT_FILE"])
	assert.Equal(t, true, settings["USE_AI_ENHANCEMENT"])
	assert.NotContains(t, settings, "OUTPUT_FILE")
	assert.NotContains(t, settings, "USE_CLAUDE_AI")

	reloaded, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(reloaded), "USE_CLAUDE_AI")
}

func TestSettingsStoreYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("SHOPIFY_STORE_URL: demo.myshopify.com\nITEM_DELAY: 0.25\n"), 0o644))

	settings, err := NewSettingsStore(path).Load()
	require.NoError(t, err)

	cfg, err := FromSource(NewSource(settings, noEnv))
	require.NoError(t, err)
	assert.Equal(t, "demo.myshopify.com", cfg.Shopify.ShopDomain)
	assert.Equal(t, 250*time.Millisecond, cfg.Run.ItemDelay)
}

func TestEnvironmentOverridesSettings(t *testing.T) {
	settings := Settings{"SHOPIFY_STORE_URL": "file.myshopify.com", "USE_AI_ENHANCEMENT": false}
	env := map[string]string{"SHOPIFY_STORE_URL": "env.myshopify.com", "MYSQL_PORT": "3307"}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg, err := FromSource(NewSource(settings, lookup))
	require.NoError(t, err)
	assert.Equal(t, "env.myshopify.com", cfg.Shopify.ShopDomain)
	assert.Equal(t, 3307, cfg.Mysql.Port)
	assert.False(t, cfg.AI.Enabled)
	assert.Equal(t, DefaultAPIVersion, cfg.Shopify.APIVer)
	assert.Equal(t, []string{"cdn.shopify.com", "shopify.com"}, cfg.Shopify.AllowedHosts)
}

func TestInvalidNumbersAreRejected(t *testing.T) {
	_, err := FromSource(NewSource(Settings{"MYSQL_PORT": "abc"}, noEnv))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := FromSource(NewSource(Settings{}, noEnv))
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHOPIFY_STORE_URL")
	assert.Contains(t, err.Error(), "SHOPIFY_ACCESS_TOKEN")

	cfg.Shopify.ShopDomain = "demo.myshopify.com"
	cfg.Shopify.Token = "shpat_x"
	assert.NoError(t, cfg.Validate())

	cfg.AI.Enabled = true
	cfg.AI.Provider = "openai"
	assert.ErrorContains(t, cfg.Validate(), "OPENAI_API_KEY")
}

func TestSettingsSetKeepsBooleans(t *testing.T) {
	s := DefaultSettings()
	s.Set("USE_AI_ENHANCEMENT", "true")
	s.Set("INPUT_FILE", "products.json")
	assert.Equal(t, true, s["USE_AI_ENHANCEMENT"])
	assert.Equal(t, "products.json", s["INPUT_FILE"])
	assert.NotContains(t, s.Keys(), "_AI_SETTINGS")
}
