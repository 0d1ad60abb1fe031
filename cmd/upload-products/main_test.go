package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"shopify-uploader/internal/app/usecases"
	"shopify-uploader/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitInterrupted, exitCode(fmt.Errorf("item 3: %w", context.Canceled)))
	assert.Equal(t, exitFatal, exitCode(fmt.Errorf("%w: bad input", usecases.ErrFatal)))
	assert.Equal(t, exitFatal, exitCode(errors.New("boom")))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****abcd", maskSecret("SHOPIFY_ACCESS_TOKEN", "shpat_0123abcd"))
	assert.Equal(t, "****", maskSecret("CLAUDE_API_KEY", "abc"))
	assert.Equal(t, "", maskSecret("OPENAI_API_KEY", ""))
	assert.Equal(t, "my-store.myshopify.com", maskSecret("SHOPIFY_STORE_URL", "my-store.myshopify.com"))
}

func TestApplyFlagsOverridesAndDerivesOutput(t *testing.T) {
	cfg := config.Config{}
	cfg.Run.ItemDelay = 500 * time.Millisecond

	applyFlags(&cfg, &options{
		input:           "data/products.json",
		mode:            "overwrite",
		stateDir:        "/tmp/state",
		skipCollections: true,
		delay:           2 * time.Second,
	})

	assert.Equal(t, "data/products.json", cfg.Paths.InputFile)
	assert.Equal(t, "data/products_processed.json", cfg.Paths.ProductOutputFile)
	assert.Equal(t, "overwrite", cfg.Run.Mode)
	assert.Equal(t, "/tmp/state", cfg.Paths.StateDir)
	assert.True(t, cfg.Run.SkipCollections)
	assert.Equal(t, 2*time.Second, cfg.Run.ItemDelay)
}

func TestApplyFlagsKeepsConfiguredOutput(t *testing.T) {
	cfg := config.Config{}
	cfg.Paths.ProductOutputFile = "out.json"
	applyFlags(&cfg, &options{input: "in.json"})
	assert.Equal(t, "out.json", cfg.Paths.ProductOutputFile)
}

func TestConfigSetAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	o := &options{}
	root := newRootCmd(o)
	root.SetArgs([]string{"--config", path, "config", "set", "shopify_access_token", "shpat_secret9876"})
	root.SetOut(&bytes.Buffer{})
	require.NoError(t, root.Execute())

	_, err := os.Stat(path)
	require.NoError(t, err)

	var out bytes.Buffer
	root = newRootCmd(&options{})
	root.SetArgs([]string{"--config", path, "config", "show"})
	root.SetOut(&out)
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "SHOPIFY_ACCESS_TOKEN=****9876\n")
	assert.NotContains(t, out.String(), "shpat_secret9876")
	assert.NotContains(t, out.String(), "_SYSTEM SETTINGS")
}
