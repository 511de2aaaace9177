package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/inconshreveable/log15"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, "wlinspect.toml", `
protocol = " protocols/core.toml "
log_level = "debug"
`)
	cfg, err := loadConfig(path, defaultConfig())
	require.NoError(t, err)
	require.Equal(t, "protocols/core.toml", cfg.protocol)
	require.Equal(t, log15.LvlDebug, cfg.logLevel)
}

func TestLoadConfigKeepsUndefined(t *testing.T) {
	path := writeFile(t, "wlinspect.toml", `log_level = "error"`)
	cfg, err := loadConfig(path, config{protocol: "defs.toml", logLevel: log15.LvlWarn})
	require.NoError(t, err)
	require.Equal(t, "defs.toml", cfg.protocol)
	require.Equal(t, log15.LvlError, cfg.logLevel)
}

func TestLoadConfigInvalid(t *testing.T) {
	for name, content := range map[string]string{
		"bad level":   `log_level = "loud"`,
		"unknown key": `verbose = true`,
		"syntax":      `protocol = `,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := loadConfig(writeFile(t, "wlinspect.toml", content), defaultConfig())
			require.Error(t, err)
		})
	}

	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"), defaultConfig())
	require.Error(t, err)
}
