package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orrerysim/orrery/internal/core/engine"
	"github.com/orrerysim/orrery/internal/core/state"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.Equal(t, "info", c.Logging.Level)
	assert.Equal(t, state.BackendMemory, c.State.Backend)
	assert.Empty(t, c.Assets.Dir)
	assert.Equal(t, engine.KinematicName, c.Physics.Engine)
	assert.Equal(t, 5555, c.Server.Command.Port)
	assert.Equal(t, 8080, c.Server.Gateway.Port)
	assert.Equal(t, "scripts", c.Scripts.Dir)
}

func TestLoadYAML(t *testing.T) {
	t.Run("partial document keeps defaults elsewhere", func(t *testing.T) {
		doc := `
logging:
  level: debug
state:
  backend: mongo
  database: orrery_test
assets:
  dir: /var/lib/orrery/assets
server:
  command:
    port: 6000
scripts:
  watch: true
`
		c, err := LoadYAML(strings.NewReader(doc))
		require.NoError(t, err)

		assert.Equal(t, "debug", c.Logging.Level)
		assert.Equal(t, state.BackendMongo, c.State.Backend)
		assert.Equal(t, "orrery_test", c.State.Database)
		assert.Equal(t, "mongodb://localhost:27017", c.State.MongoURI)
		assert.Equal(t, "/var/lib/orrery/assets", c.Assets.Dir)
		assert.Equal(t, 6000, c.Server.Command.Port)
		assert.Equal(t, 8080, c.Server.Gateway.Port)
		assert.Equal(t, 50*time.Millisecond, c.Physics.Interval)
		assert.True(t, c.Scripts.Watch)
		assert.Equal(t, "scripts", c.Scripts.Dir)
	})

	t.Run("empty document yields defaults", func(t *testing.T) {
		c, err := LoadYAML(strings.NewReader(""))
		require.NoError(t, err)
		assert.Equal(t, Default(), c)
	})

	t.Run("invalid values fail validation", func(t *testing.T) {
		_, err := LoadYAML(strings.NewReader("physics:\n  substeps: -1\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "physics")
	})

	t.Run("unknown backend fails validation", func(t *testing.T) {
		_, err := LoadYAML(strings.NewReader("state:\n  backend: etcd\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "etcd")
	})
}

func TestLoadJSON(t *testing.T) {
	doc := `{"server": {"gateway": {"port": 9090}}}`
	c, err := LoadJSON(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 9090, c.Server.Gateway.Port)
	assert.Equal(t, 5555, c.Server.Command.Port)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "server.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("logging:\n  level: warn\n"), 0o644))
	c, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "warn", c.Logging.Level)

	jsonPath := filepath.Join(dir, "server.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"logging":{"level":"error"}}`), 0o644))
	c, err = Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "error", c.Logging.Level)

	tomlPath := filepath.Join(dir, "server.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("x = 1"), 0o644))
	_, err = Load(tomlPath)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)
}
