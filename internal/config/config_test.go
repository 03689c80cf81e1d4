package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "./solus.db", cfg.Database.Path)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Equal(t, time.Second, cfg.Catalog.ParseSwitchDelay())
	assert.Equal(t, []string{".html", ".htm"}, cfg.Upload.ContentExtensions)
	assert.Nil(t, cfg.Catalog.Bundled)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/games.db
server:
  port: 9090
catalog:
  switch_delay: 250ms
  bundled:
    - name: Slope
      url: games/Slope.html
upload:
  content_extensions: [HTML, xhtml]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/games.db", cfg.Database.Path)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
	assert.Equal(t, 250*time.Millisecond, cfg.Catalog.ParseSwitchDelay())
	require.Len(t, cfg.Catalog.Bundled, 1)
	assert.Equal(t, "Slope", cfg.Catalog.Bundled[0].Name)
	assert.Equal(t, []string{".html", ".xhtml"}, cfg.Upload.ContentExtensions)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SOLUS_DB_PATH", "/var/lib/solus.db")
	t.Setenv("SOLUS_PORT", "7000")
	t.Setenv("SOLUS_PERSISTENCE", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/solus.db", cfg.Database.Path)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.True(t, cfg.Database.Disabled)
}

func TestLoad_RejectsBadInput(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "database: ["))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "database:\n  path: \"\"\n"))
	assert.ErrorContains(t, err, "database.path")

	_, err = Load(writeConfig(t, "catalog:\n  bundled:\n    - name: NoURL\n"))
	assert.ErrorContains(t, err, "catalog.bundled[0]")

	t.Setenv("SOLUS_PORT", "eighty")
	_, err = Load("")
	assert.ErrorContains(t, err, "SOLUS_PORT")
}

func TestParseSwitchDelay_FallsBack(t *testing.T) {
	assert.Equal(t, time.Second, CatalogConfig{SwitchDelay: "soon"}.ParseSwitchDelay())
	assert.Equal(t, time.Second, CatalogConfig{SwitchDelay: "-1s"}.ParseSwitchDelay())
	assert.Equal(t, time.Duration(0), CatalogConfig{SwitchDelay: "0s"}.ParseSwitchDelay())
}
