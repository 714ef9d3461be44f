package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutao/search-core/internal/indexer"
)

func setupCLIEnv(t *testing.T) (storePath, fixtureDir string) {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CACHE_HOME", filepath.Join(tmpDir, "cache"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "config"))
	storePath = filepath.Join(tmpDir, "index.db")
	fixtureDir = filepath.Join(tmpDir, "fixtures")
	require.NoError(t, os.MkdirAll(fixtureDir, 0o755))
	return storePath, fixtureDir
}

func writeFixture(t *testing.T, dir string, doc indexer.Document) {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, doc.List+".json"), data, 0o644))
}

func TestExtendThenSearch_FindsFixtureDocument(t *testing.T) {
	storePath, fixtureDir := setupCLIEnv(t)
	writeFixture(t, fixtureDir, indexer.Document{
		TimestampMs: time.Now().Add(-time.Hour).UnixMilli(),
		Text:        "quarterly budget review",
		Attribute:   1,
		List:        "inbox",
	})

	extendCmd := NewRootCmd()
	extendCmd.SetArgs([]string{"--store", storePath, "--fixtures", fixtureDir, "extend", "--since", "1970-01-01T00:00:00Z"})
	require.NoError(t, extendCmd.Execute())

	searchCmd := NewRootCmd()
	buf := &bytes.Buffer{}
	searchCmd.SetOut(buf)
	searchCmd.SetArgs([]string{"--store", storePath, "--fixtures", fixtureDir, "search", "budget", "--json"})
	require.NoError(t, searchCmd.Execute())

	var state struct {
		Results []struct {
			ListID string `json:"listId"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &state))
	require.Len(t, state.Results, 1)
	assert.Equal(t, "inbox", state.Results[0].ListID)
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	storePath, fixtureDir := setupCLIEnv(t)

	rootCmd := NewRootCmd()
	rootCmd.SetArgs([]string{"--store", storePath, "--fixtures", fixtureDir, "search"})
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)

	err := rootCmd.Execute()
	require.Error(t, err)
}

func TestSearchCmd_NoResults_ShowsWarning(t *testing.T) {
	storePath, fixtureDir := setupCLIEnv(t)

	rootCmd := NewRootCmd()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"--store", storePath, "--fixtures", fixtureDir, "search", "nonexistent_xyz_123"})

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "no results")
}

func TestMoreCmd_WithoutPriorSearch_Errors(t *testing.T) {
	storePath, fixtureDir := setupCLIEnv(t)

	rootCmd := NewRootCmd()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"--store", storePath, "--fixtures", fixtureDir, "more"})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no prior search")
}

func TestExtendCmd_RequiresSince(t *testing.T) {
	rootCmd := NewRootCmd()
	extendCmd, _, err := rootCmd.Find([]string{"extend"})
	require.NoError(t, err)

	flag := extendCmd.Flags().Lookup("since")
	require.NotNil(t, flag)
	assert.Equal(t, []string{"true"}, flag.Annotations[cobra.BashCompOneRequiredFlag])
}

func TestSearchCmd_TypeFlagDefaultsToMail(t *testing.T) {
	rootCmd := NewRootCmd()
	searchCmd, _, err := rootCmd.Find([]string{"search"})
	require.NoError(t, err)

	flag := searchCmd.Flags().Lookup("type")
	require.NotNil(t, flag)
	assert.Equal(t, "mail", flag.DefValue)
}
