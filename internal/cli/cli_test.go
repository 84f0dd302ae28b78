package cli_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/getout/app/internal/cli"
	"github.com/getout/app/internal/config"
	"github.com/getout/app/internal/database"
)

func writeConfig(t *testing.T, dbPath string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := fmt.Sprintf(`log:
  level: error
server:
  addr: "127.0.0.1:0"
database:
  path: %q
`, dbPath)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(ctx context.Context, args ...string) error {
	cmd := cli.NewRootCommand()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func schemaVersion(t *testing.T, dbPath string) uint {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Path: dbPath, MaxOpenConns: 1})
	require.NoError(t, err)
	defer database.CloseDB(db)

	version, _, err := database.SchemaVersion(db.DB, dbPath)
	require.NoError(t, err)
	return version
}

func TestMigrateUpAndDown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")
	cfgPath := writeConfig(t, dbPath)
	ctx := context.Background()

	require.NoError(t, execute(ctx, "--config", cfgPath, "migrate"))
	require.EqualValues(t, 2, schemaVersion(t, dbPath))

	require.NoError(t, execute(ctx, "--config", cfgPath, "migrate", "up"))
	require.EqualValues(t, 2, schemaVersion(t, dbPath))

	require.NoError(t, execute(ctx, "--config", cfgPath, "migrate", "down"))
	require.Zero(t, schemaVersion(t, dbPath))
}

func TestMigrateRejectsUnknownDirection(t *testing.T) {
	cfgPath := writeConfig(t, filepath.Join(t.TempDir(), "cli.db"))
	require.Error(t, execute(context.Background(), "--config", cfgPath, "migrate", "sideways"))
	require.Error(t, execute(context.Background(), "--config", cfgPath, "migrate", "up", "down"))
}

func TestServeStopsOnCancelledContext(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")
	cfgPath := writeConfig(t, dbPath)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, execute(ctx, "--config", cfgPath, "serve"))
	require.EqualValues(t, 2, schemaVersion(t, dbPath))

	require.NoError(t, execute(ctx, "--config", cfgPath))
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o600))

	require.Error(t, execute(context.Background(), "--config", path, "migrate"))
}

func TestUnknownArgs(t *testing.T) {
	require.Error(t, execute(context.Background(), "bogus"))
}
