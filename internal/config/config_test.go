package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
logger:
  format: json
  level: debug
  log_dir: logs
workspace:
  programs_dir: dsl
  cluster: devnet
  parallelism: 8
compiler:
  emit_idl: true
`)
	c, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, "json", c.LogConf.Format)
	assert.Equal(t, "debug", c.LogConf.Level)
	assert.Equal(t, "logs", c.LogConf.ToLogOption().LogDir)
	assert.Equal(t, "dsl", c.WorkspaceConf.ProgramsDir)
	assert.Equal(t, "programs", c.WorkspaceConf.OutputDir, "untouched keys keep defaults")
	assert.Equal(t, "devnet", c.WorkspaceConf.Cluster)
	assert.Equal(t, 8, c.WorkspaceConf.Parallelism)
	assert.True(t, c.CompilerConf.EmitIDL)
	assert.Equal(t, 32, c.CompilerConf.StringMaxLen)
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	c, err := Load(missing, true)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)

	_, err = Load(missing, false)
	require.ErrorContains(t, err, "read config")
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"workspace:\n  parallelism: 0\n":     "parallelism",
		"logger:\n  format: xml\n":           "logger.format",
		"compiler:\n  string_max_len: -1\n":  "string_max_len",
		"workspace:\n  programs_dir: \"\"\n": "programs_dir",
		"workspace: [1, 2\n":                 "parse config",
	}
	for body, want := range cases {
		_, err := Load(writeConfig(t, body), false)
		require.ErrorContains(t, err, want, body)
	}
}
