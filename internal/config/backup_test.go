package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withUserConfigHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

func TestBackupUserConfig_NoConfigReturnsEmptyPath(t *testing.T) {
	withUserConfigHome(t)
	path, err := BackupUserConfig()
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBackupUserConfig_CreatesTimestampedCopy(t *testing.T) {
	withUserConfigHome(t)
	require.NoError(t, os.MkdirAll(UserConfigDir(), 0o755))
	require.NoError(t, os.WriteFile(UserConfigPath(), []byte("version: 1\n"), 0o644))

	backupPath, err := BackupUserConfig()
	require.NoError(t, err)
	require.NotEmpty(t, backupPath)

	data, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}

func TestCleanupOldBackups_KeepsOnlyMaxBackups(t *testing.T) {
	withUserConfigHome(t)
	require.NoError(t, os.MkdirAll(UserConfigDir(), 0o755))
	require.NoError(t, os.WriteFile(UserConfigPath(), []byte("version: 1\n"), 0o644))

	for i := 0; i < MaxBackups+2; i++ {
		_, err := BackupUserConfig()
		require.NoError(t, err)
	}

	backups, err := ListUserConfigBackups()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(backups), MaxBackups)
}

func TestRestoreUserConfig_WritesBackupContentBack(t *testing.T) {
	withUserConfigHome(t)
	require.NoError(t, os.MkdirAll(UserConfigDir(), 0o755))
	require.NoError(t, os.WriteFile(UserConfigPath(), []byte("version: 1\n"), 0o644))

	backupPath, err := BackupUserConfig()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(UserConfigPath(), []byte("version: 2\n"), 0o644))
	require.NoError(t, RestoreUserConfig(backupPath))

	data, err := os.ReadFile(UserConfigPath())
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}
