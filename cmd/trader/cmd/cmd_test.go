package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

const cmcStatement = `Date,Type,Trade ID,Product,Units,Price,P/L,Commission,Swap,Amount
06/05/2024 09:00:00,Buy,1,EURUSD,1,100,,,,
06/05/2024 09:30:00,Close Buy,1,EURUSD,1,105,,,,
06/05/2024 11:00:00,Sell,2,GBPUSD,1,1.25,,,,
`

func TestImportReportAndExport(t *testing.T) {
	dir := t.TempDir()
	statement := filepath.Join(dir, "cmc.csv")
	require.NoError(t, os.WriteFile(statement, []byte(cmcStatement), 0o644))

	global := []string{
		"--config", filepath.Join(dir, "missing.yaml"),
		"--db", filepath.Join(dir, "journal.sqlite"),
		"--log-level", "error",
	}
	run := func(args ...string) string {
		t.Helper()
		out, err := execute(t, append(append([]string{}, global...), args...)...)
		require.NoError(t, err, out)
		return out
	}

	out := run("import", "--file", statement, "--format", "cmc", "--account", "demo")
	assert.Contains(t, out, "committed")
	assert.Contains(t, out, "Trades:       2")
	assert.Contains(t, out, "Incomplete:   1")

	out = run("report", "--account", "demo", "--from", "2024-05-06", "--to", "2024-05-06", "--csv")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "2024-05-06,2024-05-07,1,1,0,0,5.00,5.00,0.00,1.0000", lines[1])
	assert.Equal(t, "total,,1,1,0,0,5.00,5.00,0.00,1.0000", lines[2])

	out = run("journal", "export", "--account", "demo")
	assert.Contains(t, out, "trade_id,account_id")
	assert.Contains(t, out, ",demo,1,EURUSD,buy,")
	assert.Contains(t, out, ",demo,2,GBPUSD,sell,")
}

func TestStrictImportStoresNothing(t *testing.T) {
	dir := t.TempDir()
	statement := filepath.Join(dir, "cmc.csv")
	require.NoError(t, os.WriteFile(statement, []byte(cmcStatement), 0o644))
	db := filepath.Join(dir, "journal.sqlite")

	out, err := execute(t,
		"--config", filepath.Join(dir, "missing.yaml"), "--db", db, "--log-level", "error",
		"import", "--file", statement, "--format", "cmc", "--account", "strict", "--policy", "strict")
	require.Error(t, err)
	assert.Contains(t, out, "not stored")

	out, err = execute(t,
		"--config", filepath.Join(dir, "missing.yaml"), "--db", db, "--log-level", "error",
		"journal", "export", "--account", "strict")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(out), "\n")+1, "header only")
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trader.yaml")

	out, err := execute(t, "config", "init", "--output", path)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Contains(t, out, "Created default configuration")

	out, err = execute(t, "config", "validate", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "Journal: sqlite")
}
