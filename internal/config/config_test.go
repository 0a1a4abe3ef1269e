package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logicossoftware/go-iwa/internal/logging"
)

func noEnv(string) (string, bool) { return "", false }

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Credentials, cfg.Credentials)
	assert.Equal(t, "none", cfg.Export.Compression)
}

func TestLoadFormats(t *testing.T) {
	cases := []struct {
		name    string
		file    string
		content string
	}{
		{"toml", "iwa.toml", "[log]\nlevel = \"debug\"\n[limits]\nmax_iterations = 5000\n[export]\ncompression = \"zstd\"\n"},
		{"yaml", "iwa.yaml", "log:\n  level: debug\nlimits:\n  max_iterations: 5000\nexport:\n  compression: zstd\n"},
		{"json", "iwa.json", `{"log":{"level":"debug"},"limits":{"max_iterations":5000},"export":{"compression":"zstd"}}`},
		{"detect", "iwarc", "[log]\nlevel = \"debug\"\n[limits]\nmax_iterations = 5000\n[export]\ncompression = \"zstd\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, tc.file, tc.content))
			require.NoError(t, err)
			assert.Equal(t, "debug", cfg.Log.Level)
			assert.Equal(t, "text", cfg.Log.Format)
			assert.Equal(t, uint32(5000), cfg.IWALimits().MaxIterations)
			assert.Equal(t, "zstd", cfg.Export.Compression)
		})
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	_, err := Load(writeFile(t, "iwa.toml", "[log\n"))
	assert.Error(t, err)
	_, err = Load(writeFile(t, "iwarc", "{{{ ::: ]]"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"IWA_LOG_FORMAT":       "json",
		"IWA_CREDENTIAL_STORE": "memory",
		"IWA_MAX_ATTEMPTS":     "7",
		"IWA_MAX_ITERATIONS":   "42",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnvOverrides(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, StoreMemory, cfg.Credentials.Store)
	assert.Equal(t, 7, cfg.Credentials.MaxAttempts)
	assert.Equal(t, uint32(42), cfg.Limits.MaxIterations)
	assert.Equal(t, logging.FormatJSON, cfg.LoggingConfig().Format)

	bad := Default()
	err := bad.ApplyEnvOverrides(func(k string) (string, bool) {
		if k == "IWA_MAX_ATTEMPTS" {
			return "many", true
		}
		return "", false
	})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnvOverrides(noEnv))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, slog.LevelInfo, cfg.LoggingConfig().Level)

	cfg.Log.Level = "loud"
	cfg.Credentials.Store = "vault"
	cfg.Export.Compression = "rar"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loud")
	assert.Contains(t, err.Error(), "vault")

	cfg = Default()
	cfg.Credentials.Store = StoreSecretService
	cfg.Credentials.Service = ""
	assert.Error(t, cfg.Validate())
}
