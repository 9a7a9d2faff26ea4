package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setCredentials(t *testing.T, model, search, platform string) {
	t.Helper()
	t.Setenv(EnvModelKey, model)
	t.Setenv(EnvSearchKey, search)
	t.Setenv(EnvPlatformKey, platform)
}

func TestLoadCredentials(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		search   string
		platform string
		missing  []string
	}{
		{name: "all present", model: "m", search: "s", platform: "p"},
		{name: "model missing", search: "s", platform: "p", missing: []string{EnvModelKey}},
		{name: "search missing", model: "m", platform: "p", missing: []string{EnvSearchKey}},
		{name: "platform missing", model: "m", search: "s", missing: []string{EnvPlatformKey}},
		{name: "whitespace counts as missing", model: "  ", search: "s", platform: "p", missing: []string{EnvModelKey}},
		{name: "all missing", missing: []string{EnvModelKey, EnvSearchKey, EnvPlatformKey}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setCredentials(t, tt.model, tt.search, tt.platform)

			creds, err := LoadCredentials()
			if len(tt.missing) == 0 {
				require.NoError(t, err)
				assert.Equal(t, &Credentials{ModelKey: "m", SearchKey: "s", PlatformKey: "p"}, creds)
				return
			}

			require.Error(t, err)
			assert.Nil(t, creds)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.missing, cfgErr.Missing)
			for _, name := range tt.missing {
				assert.Contains(t, err.Error(), name)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, "groq", cfg.Model.Provider)
	assert.Equal(t, ":8501", cfg.UI.Addr)
	assert.Equal(t, ":7777", cfg.Playground.Addr)
	assert.Equal(t, 2*time.Minute, cfg.Dispatch.Timeout)
	assert.Empty(t, cfg.Path)
	assert.False(t, cfg.Trace.Enabled())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[model]
id = "llama3-70b-8192"

[dispatch]
timeout = "45s"

[trace]
endpoint = "localhost:4318"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "llama3-70b-8192", cfg.Model.ID)
	assert.Equal(t, "groq", cfg.Model.Provider)
	assert.Equal(t, 45*time.Second, cfg.Dispatch.Timeout)
	assert.Equal(t, path, cfg.Path)
	assert.True(t, cfg.Trace.Enabled())
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[model]\nprovider = \"carrier-pigeon\"\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
	assert.Empty(t, cfgErr.Missing)
}
