package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 384, cfg.Vector.Dimensions)
	assert.Equal(t, "BasicRAIAgent", cfg.Agent.Name)
	assert.Equal(t, int64(1000), cfg.Redis.MaxEntries)
	assert.False(t, cfg.Neo4j.Enabled)
	assert.Equal(t, ":8080", cfg.Stream.Addr)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	yml := `
log:
  level: debug
  format: json
neo4j:
  enabled: true
  uri: neo4j://graph:7687
vector:
  min_similarity: 0.4
agent:
  recall_limit: 2
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(WithConfigFile(path))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Neo4j.Enabled)
	assert.Equal(t, "neo4j://graph:7687", cfg.Neo4j.URI)
	assert.InDelta(t, 0.4, cfg.Vector.MinSimilarity, 1e-9)
	assert.Equal(t, 2, cfg.Agent.RecallLimit)
	// untouched keys keep their defaults
	assert.Equal(t, "neo4j", cfg.Neo4j.Username)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  model: from-file\n"), 0o600))

	t.Setenv("RAI_AGENT_MODEL", "from-env")
	t.Setenv("RAI_REDIS_ADDR", "cache:6380")

	cfg, err := Load(WithConfigFile(path))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Agent.Model)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
}

func TestEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("RAI_AGENT_NAME=envfile-agent\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("RAI_AGENT_NAME") })

	cfg, err := Load(WithEnvFile(path))
	require.NoError(t, err)
	assert.Equal(t, "envfile-agent", cfg.Agent.Name)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := Load(WithConfigFile(filepath.Join(t.TempDir(), "nope.yml")))
	assert.Error(t, err)
}

func TestValidationRejectsOutOfRangeSimilarity(t *testing.T) {
	t.Setenv("RAI_VECTOR_MIN_SIMILARITY", "1.5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MinSimilarity")
}

func TestValidationRejectsBadLogLevel(t *testing.T) {
	t.Setenv("RAI_LOG_LEVEL", "verbose")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestNeo4jURIRequiredWhenEnabled(t *testing.T) {
	cfg := Default()
	cfg.Neo4j.Enabled = true
	cfg.Neo4j.URI = ""
	assert.Error(t, cfg.Validate())

	cfg.Neo4j.Enabled = false
	assert.NoError(t, cfg.Validate())
}
