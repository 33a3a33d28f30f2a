package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgFile, storageDriver, dataDir, logLevel = "", "", "", ""

	out := new(bytes.Buffer)
	root := NewRootCommand()
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

func TestListDomains_EmptyEmbeddedStore(t *testing.T) {
	dir := t.TempDir()

	out, err := runCommand(t, "list-domains", "--storage-driver", "embedded", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "no domains")
}

func TestCreateEdition_RejectsDuplicateName(t *testing.T) {
	dir := t.TempDir()
	root := uuid.New().String()

	_, err := runCommand(t, "create-edition",
		"--storage-driver", "embedded", "--data-dir", dir,
		"--name", "beta",
		"--description", "pilot cohort",
		"--divergence", "orders="+root+":2")
	require.NoError(t, err)

	_, err = runCommand(t, "create-edition",
		"--storage-driver", "embedded", "--data-dir", dir,
		"--name", "beta")
	require.Error(t, err, "creating the same edition twice should fail")
}

func TestCreateEdition_RejectsMainAndMissingName(t *testing.T) {
	dir := t.TempDir()

	_, err := runCommand(t, "create-edition", "--storage-driver", "embedded", "--data-dir", dir)
	require.Error(t, err)

	_, err = runCommand(t, "create-edition", "--storage-driver", "embedded", "--data-dir", dir, "--name", "main")
	require.Error(t, err)
}

func TestCreateEdition_RequiresEmbeddedStorage(t *testing.T) {
	_, err := runCommand(t, "create-edition", "--storage-driver", "memory", "--name", "beta")
	require.Error(t, err)
}

func TestGetEvents_RequiresDomainAndRoot(t *testing.T) {
	dir := t.TempDir()

	_, err := runCommand(t, "get-events", "--storage-driver", "embedded", "--data-dir", dir)
	require.Error(t, err)
}

func TestGetEvents_InvalidRoot(t *testing.T) {
	dir := t.TempDir()

	_, err := runCommand(t, "get-events", "--storage-driver", "embedded", "--data-dir", dir,
		"--domain", "orders", "--root", "not-a-uuid")
	require.Error(t, err)
}

func TestGetEvents_NoEventsForUnknownRoot(t *testing.T) {
	dir := t.TempDir()

	out, err := runCommand(t, "get-events", "--storage-driver", "embedded", "--data-dir", dir,
		"--domain", "orders", "--root", uuid.New().String())
	require.NoError(t, err)
	assert.Contains(t, out, "no events")
}

func TestLoadConfig_YAMLFileLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage_driver: embedded\n"), 0o600))

	cfgFile = path
	defer func() { cfgFile = "" }()

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "embedded", cfg.StorageDriver)
}
