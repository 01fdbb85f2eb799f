package global

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfigDefaults(t *testing.T) {
	require.NoError(t, InitConfig(""))
	assert.Equal(t, 8080, Config.Server.Port)
	assert.Equal(t, "rod", Config.Scraper.Kind)
	assert.Equal(t, 10, Config.Engine.Workers)
}

func TestInitConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
  worker: 3
engine:
  finger_dir: /data/fingers
scraper:
  kind: colly
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	require.NoError(t, InitConfig(configPath))
	assert.Equal(t, 9090, Config.Server.Port)
	assert.Equal(t, 3, Config.Server.Worker)
	assert.Equal(t, "/data/fingers", Config.Engine.FingerDir)
	assert.Equal(t, "colly", Config.Scraper.Kind)
	// 未出现的键保持默认值
	assert.Equal(t, "0.0.0.0", Config.Server.Host)
	assert.Equal(t, 8, Config.Scraper.TimeoutSeconds)
}

func TestInitConfigBrokenFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [broken"), 0o644))

	assert.Error(t, InitConfig(configPath))
}
