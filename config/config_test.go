package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "stepflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesMemoryAdapters(t *testing.T) {
	path := writeConfig(t, `
stepsDir: ./steps
state:
  adapter: memory
stream:
  adapter: memory
`)
	p, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "./steps", p.StepsDir)
	require.Equal(t, AdapterMemory, p.State.Adapter)
	require.Equal(t, AdapterMemory, p.Stream.Adapter)
}

func TestLoadParsesRemoteAdapterFields(t *testing.T) {
	path := writeConfig(t, `
stepsDir: ./steps
state:
  adapter: remote
  host: localhost
  port: 6379
  db: 2
  ttl: 30s
stream:
  adapter: remote
  host: localhost
  port: 6379
`)
	p, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", p.State.Addr())
	require.Equal(t, 2, p.State.DB)
}

func TestLoadRejectsFileAdapterForStream(t *testing.T) {
	path := writeConfig(t, `
stepsDir: ./steps
state:
  adapter: memory
stream:
  adapter: file
  path: /tmp/streams
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMissingStepsDir(t *testing.T) {
	path := writeConfig(t, `
state:
  adapter: memory
stream:
  adapter: memory
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsFileAdapterWithoutPath(t *testing.T) {
	path := writeConfig(t, `
stepsDir: ./steps
state:
  adapter: file
stream:
  adapter: memory
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadReturnsNotFoundForMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBuildStateSelectsMemoryByDefault(t *testing.T) {
	st, err := BuildState(BackendConfig{})
	require.NoError(t, err)
	require.NotNil(t, st)
}

func TestBuildStreamSelectsMemoryByDefault(t *testing.T) {
	reg, err := BuildStream(BackendConfig{})
	require.NoError(t, err)
	require.NotNil(t, reg)
}
