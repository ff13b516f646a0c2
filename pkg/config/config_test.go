package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Revision int     `toml:"revision"`
	Speed    float64 `toml:"speed"`
	Label    string  `toml:"label"`
}

func (c *testConfig) ConfigRev() int { return c.Revision }

var testDefault = testConfig{Revision: 2, Speed: 5.0, Label: "factory"}

func TestLoadMissingWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.toml")

	var out testConfig
	def := testDefault
	require.NoError(t, Load(path, &def, &out))
	require.Equal(t, testDefault, out)

	// The default landed on disk.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "revision = 2")
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.toml")
	saved := testConfig{Revision: 2, Speed: 7.5, Label: "tuned"}
	require.NoError(t, Save(path, &saved))

	var out testConfig
	def := testDefault
	require.NoError(t, Load(path, &def, &out))
	require.Equal(t, saved, out)
}

func TestLoadRevisionMismatchResets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.toml")
	stale := testConfig{Revision: 1, Speed: 9.9, Label: "old-layout"}
	require.NoError(t, Save(path, &stale))

	var out testConfig
	def := testDefault
	require.NoError(t, Load(path, &def, &out))
	require.Equal(t, testDefault, out)

	// The rewrite is persistent, not just in-memory.
	var again testConfig
	require.NoError(t, Load(path, &def, &again))
	require.Equal(t, testDefault, again)
}

func TestLoadCorruptResets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0644))

	var out testConfig
	def := testDefault
	require.NoError(t, Load(path, &def, &out))
	require.Equal(t, testDefault, out)
}

func TestLoadUnreadableIsHardError(t *testing.T) {
	dir := t.TempDir()
	// A directory where a file is expected fails the read outright.
	var out testConfig
	def := testDefault
	require.Error(t, Load(dir, &def, &out))
}
