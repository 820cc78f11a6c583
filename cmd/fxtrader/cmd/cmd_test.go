package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/fxtrader/config"
	"github.com/rustyeddy/fxtrader/fxerr"
	"github.com/rustyeddy/fxtrader/journal"
)

// execute runs the root command with fresh option values. The commands
// share package state, so these tests do not run in parallel.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	opts = config.DefaultOptions()
	settingsPath = config.DefaultPath
	accountFlag = string(config.Paper)
	configInitOutput = config.DefaultPath

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "fxtrader version "+version)
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	out, err := execute(t, "config", "init", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	out, err = execute(t, "config", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Settings valid")
	assert.Contains(t, out, "EUR/USD, GBP/USD, USD/JPY")
	assert.Contains(t, out, "Paper_Username is required")
}

func TestConfigValidateRejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Positions": ["EUR/USD"], "Order_Size": 0}`), 0o600))

	_, err := execute(t, "config", "validate", "--config", path)
	require.Error(t, err)
	assert.True(t, fxerr.Is(err, fxerr.Config))
}

func TestBadAccount(t *testing.T) {
	_, err := execute(t, "version", "--account", "DEMO")
	require.Error(t, err)
	assert.True(t, fxerr.IsFatal(err))
}

func TestRunMissingSettings(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "run", "--simulate", "--dir", dir, "--config", filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.True(t, fxerr.Is(err, fxerr.Config))
}

func TestRunUnknownStrategy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, config.Default().SaveToFile(path))

	_, err := execute(t, "run", "--simulate", "--dir", dir, "--config", path, "--strategy", "martingale")
	require.Error(t, err)
	assert.True(t, fxerr.Is(err, fxerr.Config))
	assert.ErrorContains(t, err, "martingale")
}

func TestLiveRunNeedsUsername(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, config.Default().SaveToFile(path))

	_, err := execute(t, "close", "--account", "live", "--dir", dir, "--config", path)
	require.Error(t, err)
	assert.True(t, fxerr.Is(err, fxerr.Config))
	assert.ErrorContains(t, err, "Username is required for LIVE account")
}

func TestCloseSimulated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, config.Default().SaveToFile(path))
	db := filepath.Join(dir, "journal.sqlite")

	_, err := execute(t, "close", "--simulate", "--dir", dir, "--config", path, "--db", db)
	require.NoError(t, err)

	data, err := os.ReadFile(journal.NewStore(dir).ReportPath())
	require.NoError(t, err)
	var r journal.Report
	require.NoError(t, json.Unmarshal(data, &r))
	assert.InDelta(t, 10_000, r.Performance.InitialFunds, 1e-9)
	assert.Empty(t, r.Positions)

	j, err := journal.NewSQLite(db)
	require.NoError(t, err)
	defer j.Close()
	runs, err := j.Runs()
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
