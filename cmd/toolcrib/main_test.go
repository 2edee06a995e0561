package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/toolcrib/internal/domain/entity"
)

// isolate points the commands at a fresh sqlite file and away from any
// Redis or collector configured in the developer's environment
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_DRIVER", "sqlite3")
	t.Setenv("DATABASE_PATH", filepath.Join(t.TempDir(), "toolcrib.db"))
	t.Setenv("LOGGER_LEVEL", "error")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := newRootCommand()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "migrate", "catalog", "scan-overdue"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestMigrateCommand(t *testing.T) {
	isolate(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema at version")

	// idempotent
	again, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestCatalogCommand(t *testing.T) {
	isolate(t)

	out, err := run(t, "catalog", "loan", "--json")
	require.NoError(t, err)

	var got map[string][]entity.StatusEntry
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got["loan"], 5)
	assert.Equal(t, "pending", got["loan"][0].Name)

	table, err := run(t, "catalog")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(table, "DOMAIN"))
	assert.Contains(t, table, "under_repair")
	assert.Contains(t, table, "awaiting_parts")

	_, err = run(t, "catalog", "payroll")
	assert.ErrorContains(t, err, "unknown domain")
}

func TestScanOverdueCommand(t *testing.T) {
	isolate(t)

	out, err := run(t, "scan-overdue")
	require.NoError(t, err)
	assert.Equal(t, "0 loans newly flagged overdue\n", out)
}

func TestMissingConfigFile(t *testing.T) {
	isolate(t)

	_, err := run(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "migrate")
	assert.ErrorContains(t, err, "failed to load configuration")
}
