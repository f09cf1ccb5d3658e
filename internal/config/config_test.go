// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "chromedp", cfg.Snapshot.Backend)
	assert.Equal(t, 45*time.Second, cfg.Snapshot.NavigationTimeout)
	assert.Equal(t, 1920, cfg.Snapshot.ViewportWidth)
	assert.Equal(t, "gemini", cfg.Selector.Provider)
	assert.Equal(t, 2, cfg.Runner.MaxWidenAttempts)
	assert.False(t, cfg.Archive.Enabled, "archive is opt-in")

	// The built-in scene policies come from the scripted search task.
	assert.Equal(t, []string{"img", "button", "link"}, cfg.Scenes.FindControl.ExcludedRoles)
	assert.Equal(t, []string{"Ad", "Sponsored", "·"}, cfg.Scenes.ChooseResult.ExcludedTextMarkers)
}

func TestSetDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{}
	cfg.Snapshot.Backend = "playwright"
	cfg.Selector.Provider = "openai"
	cfg.Runner.MaxWidenAttempts = 5
	cfg.SetDefaults()

	assert.Equal(t, "playwright", cfg.Snapshot.Backend)
	assert.Equal(t, "openai", cfg.Selector.Provider)
	assert.Equal(t, 5, cfg.Runner.MaxWidenAttempts)
}

func TestSetDefaultsKeepsMarkersOnlyScene(t *testing.T) {
	// A scene configured with markers alone is an explicit policy; the
	// built-in exclusion sets must not overwrite it.
	cfg := Config{}
	cfg.Scenes.ChooseResult.ExcludedTextMarkers = []string{"Promoted"}
	cfg.SetDefaults()

	assert.Equal(t, []string{"Promoted"}, cfg.Scenes.ChooseResult.ExcludedTextMarkers)
	assert.Empty(t, cfg.Scenes.ChooseResult.ExcludedRoles)
	assert.Empty(t, cfg.Scenes.FindControl.ExcludedRoles)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Snapshot.Backend = "selenium" },
			wantErr: "unknown snapshot backend",
		},
		{
			name:    "unknown selector provider",
			mutate:  func(c *Config) { c.Selector.Provider = "oracle" },
			wantErr: "unknown selector provider",
		},
		{
			name:    "archive enabled without url",
			mutate:  func(c *Config) { c.Archive.Enabled = true },
			wantErr: "archive.url is empty",
		},
		{
			name: "degenerate scene marker",
			mutate: func(c *Config) {
				c.Scenes.ChooseResult.ExcludedTextMarkers = []string{"Ad", ""}
			},
			wantErr: "scenes.choose_result",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var cfg Config
			cfg.SetDefaults()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sift.yaml")
	content := `
logger:
  level: debug
  format: json
snapshot:
  backend: playwright
  headless: true
selector:
  provider: rule
scenes:
  find_control:
    excluded_roles: ["img"]
  choose_result:
    excluded_roles: ["button"]
    excluded_text_markers: ["Sponsored"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "playwright", cfg.Snapshot.Backend)
	assert.True(t, cfg.Snapshot.Headless)
	assert.Equal(t, "rule", cfg.Selector.Provider)
	assert.Equal(t, []string{"Sponsored"}, cfg.Scenes.ChooseResult.ExcludedTextMarkers)
	// Untouched fields still receive defaults.
	assert.Equal(t, 45*time.Second, cfg.Snapshot.NavigationTimeout)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	// Point at a directory that has no sift.yaml; Load must not fail.
	wd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { _ = os.Chdir(wd) }()
	require.NoError(t, os.Chdir(t.TempDir()))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "chromedp", cfg.Snapshot.Backend)
	assert.True(t, cfg.Snapshot.Headless)
}

func TestLoadFromEnvironmentOnly(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { _ = os.Chdir(wd) }()
	require.NoError(t, os.Chdir(t.TempDir()))

	t.Setenv("SIFT_ARCHIVE_URL", "postgres://env-host/sift")
	t.Setenv("SIFT_SELECTOR_PROVIDER", "rule")
	t.Setenv("SIFT_SNAPSHOT_BACKEND", "playwright")
	t.Setenv("SIFT_RUNNER_MAX_WIDEN_ATTEMPTS", "3")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://env-host/sift", cfg.Archive.URL)
	assert.Equal(t, "rule", cfg.Selector.Provider)
	assert.Equal(t, "playwright", cfg.Snapshot.Backend)
	assert.Equal(t, 3, cfg.Runner.MaxWidenAttempts)
	// Keys without an env override still get their defaults.
	assert.Equal(t, "gemini-2.0-flash", cfg.Selector.Model)
	assert.True(t, cfg.Snapshot.Headless)
}

func TestLoadKeepsMarkersOnlySceneConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sift.yaml")
	content := `
scenes:
  choose_result:
    excluded_text_markers: ["Promoted"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Promoted"}, cfg.Scenes.ChooseResult.ExcludedTextMarkers)
	assert.Empty(t, cfg.Scenes.ChooseResult.ExcludedRoles)
	assert.Empty(t, cfg.Scenes.FindControl.ExcludedRoles)
}

func TestLoadRejectsInvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sift.yaml")
	require.NoError(t, os.WriteFile(path, []byte("snapshot:\n  backend: netscape\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown snapshot backend")
}
