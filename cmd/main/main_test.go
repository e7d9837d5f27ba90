package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/matt-steen/taskflow/pkg/accounts"
	"github.com/matt-steen/taskflow/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command. The commands read TASKFLOW_* variables, so these tests do
// not run in parallel.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd()

	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

func TestMigrateCreatesSchema(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "taskflow.sqlite")

	_, err := run(t, "migrate", "--db-path", path, "--log-file", filepath.Join(t.TempDir(), "log"))
	require.NoError(t, err)

	database, err := db.NewDatabase(context.Background(), db.Config{Driver: db.DriverSQLite, Path: path})
	require.NoError(t, err)

	defer database.Close()

	count, err := database.CountAccounts(context.Background())
	assert.NoError(err)
	assert.Zero(count)
}

func TestCreateAdmin(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "taskflow.sqlite")
	logFile := filepath.Join(dir, "log")

	t.Setenv("TASKFLOW_ADMIN_PASSWORD", "admin123!")

	out, err := run(t, "create-admin", "--db-path", path, "--log-file", logFile)
	require.NoError(t, err)
	assert.Contains(out, "created account admin")

	out, err = run(t, "create-admin", "--db-path", path, "--log-file", logFile)
	require.NoError(t, err)
	assert.Contains(out, "nothing to do")

	database, err := db.NewDatabase(context.Background(), db.Config{Driver: db.DriverSQLite, Path: path})
	require.NoError(t, err)

	defer database.Close()

	acc, err := accounts.NewService(database).Authenticate(context.Background(), accounts.AdminUsername, "admin123!")
	require.NoError(t, err)
	assert.Contains(acc.Groups, db.AdminGroup)
}

func TestInvalidConfig(t *testing.T) {
	assert := assert.New(t)

	t.Setenv("TASKFLOW_DB_DRIVER", "postgres")

	_, err := run(t, "migrate")
	assert.ErrorContains(err, "db.driver must be")
}

func TestBoardNeedsAppAndUser(t *testing.T) {
	assert := assert.New(t)

	_, err := run(t, "board", "--db-path", filepath.Join(t.TempDir(), "taskflow.sqlite"), "--app", "PROJ")
	assert.ErrorContains(err, "--app and --user are required")
}
