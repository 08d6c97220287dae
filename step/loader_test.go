package step

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeStepFiles(t *testing.T, dir, base, manifest, handlerExt string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, base+".step.json"), []byte(manifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, base+".step."+handlerExt), []byte("# handler\n"), 0o644))
}

func TestLoadPairsManifestWithHandler(t *testing.T) {
	dir := t.TempDir()
	writeStepFiles(t, dir, "greet", `{"kind":"event","event":{"name":"greet","subscribes":["greet.requested"]}}`, "py")

	steps, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	require.Equal(t, "greet", steps[0].Name())
	require.Equal(t, filepath.Join(dir, "greet.step.py"), steps[0].FilePath)
	require.NotEmpty(t, steps[0].Version)
}

func TestLoadIgnoresNonManifestFiles(t *testing.T) {
	dir := t.TempDir()
	writeStepFiles(t, dir, "greet", `{"kind":"event","event":{"name":"greet","subscribes":["greet.requested"]}}`, "py")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o644))

	steps, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, steps, 1)
}

func TestLoadErrorsOnMissingHandler(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orphan.step.json"), []byte(`{"kind":"noop","noop":{"name":"orphan"}}`), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestLoadErrorsOnAmbiguousHandler(t *testing.T) {
	dir := t.TempDir()
	writeStepFiles(t, dir, "dup", `{"kind":"noop","noop":{"name":"dup"}}`, "py")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dup.step.js"), []byte("// handler\n"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestLoadVersionChangesWhenContentChanges(t *testing.T) {
	dir := t.TempDir()
	writeStepFiles(t, dir, "greet", `{"kind":"noop","noop":{"name":"greet"}}`, "py")
	first, err := Load(dir)
	require.NoError(t, err)

	writeStepFiles(t, dir, "greet", `{"kind":"noop","noop":{"name":"greet","flows":["x"]}}`, "py")
	second, err := Load(dir)
	require.NoError(t, err)

	require.NotEqual(t, first[0].Version, second[0].Version)
}
