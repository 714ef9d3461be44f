package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogsCmd_TailsServerLogByDefault(t *testing.T) {
	storePath, fixtureDir := setupCLIEnv(t)

	debugCmd := NewRootCmd()
	debugCmd.SetArgs([]string{"--store", storePath, "--fixtures", fixtureDir, "--debug", "version"})
	require.NoError(t, debugCmd.Execute())

	logsCmd := NewRootCmd()
	buf := &bytes.Buffer{}
	logsCmd.SetOut(buf)
	logsCmd.SetErr(buf)
	logsCmd.SetArgs([]string{"logs", "--no-color"})

	require.NoError(t, logsCmd.Execute())
	assert.Contains(t, buf.String(), "Log file:")
}

func TestLogsCmd_MissingLogFile_ReturnsError(t *testing.T) {
	setupCLIEnv(t)

	logsCmd := NewRootCmd()
	logsCmd.SetArgs([]string{"logs"})

	err := logsCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no log files found")
}

func TestLogsCmd_ExplicitFile_FiltersByLevel(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	logPath := filepath.Join(tmpDir, "custom.log")
	require.NoError(t, os.WriteFile(logPath, []byte(
		`{"time":"2026-01-01T00:00:00Z","level":"INFO","msg":"indexed 3 docs"}`+"\n"+
			`{"time":"2026-01-01T00:00:01Z","level":"ERROR","msg":"store read failed"}`+"\n",
	), 0o644))

	logsCmd := NewRootCmd()
	buf := &bytes.Buffer{}
	logsCmd.SetOut(buf)
	logsCmd.SetArgs([]string{"logs", "--file", logPath, "--level", "error", "--no-color"})

	require.NoError(t, logsCmd.Execute())
	assert.Contains(t, buf.String(), "store read failed")
	assert.NotContains(t, buf.String(), "indexed 3 docs")
}
