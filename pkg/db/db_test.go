package db_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/matt-steen/taskflow/pkg/db"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getDB(t *testing.T) *db.Database {
	t.Helper()

	database, err := db.NewDatabase(context.Background(), db.Config{
		Driver: db.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "test.sqlite"),
	})
	require.NoError(t, err)

	t.Cleanup(func() { database.Close() })

	return database
}

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}

	return d
}

func addApp(t *testing.T, database *db.Database, acronym string) *db.Application {
	t.Helper()

	app := &db.Application{
		Acronym:     acronym,
		Description: "an application",
		StartDate:   date("2026-01-01"),
		EndDate:     date("2026-12-31"),
		PermitOpen:  "pm",
	}
	require.NoError(t, database.CreateApplication(context.Background(), app))

	return app
}

func addTask(t *testing.T, database *db.Database, acronym string) *db.Task {
	t.Helper()

	task, err := database.CreateTask(context.Background(), db.NewTask{
		AppAcronym: acronym,
		Name:       "do some work",
		Creator:    "alice",
		Notes:      "created",
		CreateDate: time.Now(),
	})
	require.NoError(t, err)

	return task
}

func TestNewDatabaseBadFile(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	database, err := db.NewDatabase(context.Background(), db.Config{Path: "/alwfkjasfd/asdflkjdsal.sqlite"})
	assert.Nil(database)
	assert.NotNil(err)
	assert.True(strings.HasPrefix(err.Error(), "error running base sql: "))
}

func TestNewDatabaseUnknownDriver(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	database, err := db.NewDatabase(context.Background(), db.Config{Driver: "postgres"})
	assert.Nil(database)
	assert.EqualError(err, `unsupported db driver "postgres"`)
}

func TestNewDatabaseIdempotent(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "test.sqlite")

	database, err := db.NewDatabase(context.Background(), db.Config{Path: path})
	assert.Nil(err)
	addApp(t, database, "PROJ")
	assert.Nil(database.Close())

	database2, err := db.NewDatabase(context.Background(), db.Config{Path: path})
	assert.Nil(err)

	defer database2.Close()

	apps, err := database2.GetApplications(context.Background())
	assert.Nil(err)
	assert.Equal(1, len(apps))

	groups, err := database2.GetGroups(context.Background())
	assert.Nil(err)
	assert.Equal([]string{db.AdminGroup}, groups)
}

func TestMySQLDSN(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	dsn := db.MySQLDSN(db.Config{Host: "localhost", Port: 3306, User: "tms", Password: "secret", Name: "tms"})

	cfg, err := mysql.ParseDSN(dsn)
	assert.Nil(err)
	assert.Equal("tms", cfg.User)
	assert.Equal("secret", cfg.Passwd)
	assert.Equal("localhost:3306", cfg.Addr)
	assert.Equal("tms", cfg.DBName)
	assert.True(cfg.ParseTime)
	assert.True(cfg.ClientFoundRows)
}

func TestApplicationRoundTrip(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()

	database := getDB(t)
	app := addApp(t, database, "PROJ")

	apps, err := database.GetApplications(ctx)
	assert.Nil(err)
	assert.Equal(1, len(apps))

	got := apps[0]
	assert.Equal(app.Acronym, got.Acronym)
	assert.Equal(app.Description, got.Description)
	assert.Equal(0, got.RNumber)
	assert.Equal("2026-01-01", got.StartDate.Format("2006-01-02"))
	assert.Equal("2026-12-31", got.EndDate.Format("2006-01-02"))
	assert.Equal("pm", got.PermitOpen)
	assert.Equal("", got.PermitDone)

	err = database.CreateApplication(ctx, app)
	assert.True(errors.Is(err, db.ErrDuplicate))

	_, err = database.GetApplication(ctx, "NOPE")
	assert.True(errors.Is(err, db.ErrNotFound))
}

func TestCreateTaskNumbering(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()

	database := getDB(t)
	addApp(t, database, "PROJ")

	first := addTask(t, database, "PROJ")
	second := addTask(t, database, "PROJ")

	assert.Equal("PROJ_1", first.ID)
	assert.Equal("PROJ_2", second.ID)
	assert.Equal(db.StateOpen, first.State)
	assert.Equal("alice", first.Creator)
	assert.Equal("alice", first.Owner)

	app, err := database.GetApplication(ctx, "PROJ")
	assert.Nil(err)
	assert.Equal(2, app.RNumber)

	stored, err := database.GetTask(ctx, "PROJ_1")
	assert.Nil(err)
	assert.Equal("do some work", stored.Name)
	assert.Equal("created", stored.Notes)
	assert.Equal("", stored.Plan)
}

func TestCreateTaskUnknownApplication(t *testing.T) {
	t.Parallel()

	database := getDB(t)

	_, err := database.CreateTask(context.Background(), db.NewTask{AppAcronym: "NOPE", Name: "x", Creator: "alice"})
	assert.True(t, errors.Is(err, db.ErrNotFound))
}

func TestCreateTaskConcurrent(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()

	database := getDB(t)
	addApp(t, database, "PROJ")

	const workers = 12

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]bool{}
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			task, err := database.CreateTask(ctx, db.NewTask{
				AppAcronym: "PROJ", Name: "parallel", Creator: "alice", CreateDate: time.Now(),
			})
			if assert.Nil(err) {
				mu.Lock()
				ids[task.ID] = true
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(workers, len(ids))

	for n := 1; n <= workers; n++ {
		assert.True(ids[fmt.Sprintf("PROJ_%d", n)], "missing PROJ_%d", n)
	}

	app, err := database.GetApplication(ctx, "PROJ")
	assert.Nil(err)
	assert.Equal(workers, app.RNumber)
}

func TestChangeTaskState(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()

	database := getDB(t)
	addApp(t, database, "PROJ")
	task := addTask(t, database, "PROJ")

	err := database.ChangeTaskState(ctx, db.StateChange{
		TaskID: task.ID, From: db.StateOpen, To: db.StateToDo, Actor: "bob", NoteBlock: "released",
	})
	assert.Nil(err)

	stored, err := database.GetTask(ctx, task.ID)
	assert.Nil(err)
	assert.Equal(db.StateToDo, stored.State)
	assert.Equal("bob", stored.Owner)
	assert.Equal("alice", stored.Creator)
	assert.Equal("released\n\ncreated", stored.Notes)

	// the same transition again no longer matches the state
	err = database.ChangeTaskState(ctx, db.StateChange{
		TaskID: task.ID, From: db.StateOpen, To: db.StateToDo, Actor: "bob", NoteBlock: "again",
	})
	assert.True(errors.Is(err, db.ErrStateConflict))

	stored, err = database.GetTask(ctx, task.ID)
	assert.Nil(err)
	assert.Equal("released\n\ncreated", stored.Notes)

	err = database.ChangeTaskState(ctx, db.StateChange{
		TaskID: "PROJ_99", From: db.StateOpen, To: db.StateToDo, Actor: "bob", NoteBlock: "x",
	})
	assert.True(errors.Is(err, db.ErrNotFound))
}

func TestChangeTaskStateOwnerAndPlan(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()

	database := getDB(t)
	addApp(t, database, "PROJ")
	task := addTask(t, database, "PROJ")

	err := database.ChangeTaskState(ctx, db.StateChange{
		TaskID: task.ID, From: db.StateOpen, To: db.StateOpen, Actor: "carol", NoteBlock: "n",
		ExpectOwner: "bob",
	})
	assert.True(errors.Is(err, db.ErrStateConflict))

	err = database.ChangeTaskState(ctx, db.StateChange{
		TaskID: task.ID, From: db.StateOpen, To: db.StateOpen, Actor: "alice", NoteBlock: "n",
		ExpectOwner: "alice", SetPlan: true, Plan: "MVP 1",
	})
	assert.Nil(err)

	stored, err := database.GetTask(ctx, task.ID)
	assert.Nil(err)
	assert.Equal("MVP 1", stored.Plan)
}

func TestChangeTaskStateEmptyNotes(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()

	database := getDB(t)
	addApp(t, database, "PROJ")

	task, err := database.CreateTask(ctx, db.NewTask{AppAcronym: "PROJ", Name: "quiet", Creator: "alice"})
	assert.Nil(err)

	err = database.ChangeTaskState(ctx, db.StateChange{
		TaskID: task.ID, From: db.StateOpen, To: db.StateToDo, Actor: "bob", NoteBlock: "first",
	})
	assert.Nil(err)

	stored, err := database.GetTask(ctx, task.ID)
	assert.Nil(err)
	assert.Equal("first", stored.Notes)
}

func TestUpdateApplicationRename(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()

	database := getDB(t)
	app := addApp(t, database, "PROJ")
	addTask(t, database, "PROJ")
	addTask(t, database, "PROJ")
	assert.Nil(database.CreatePlan(ctx, &db.Plan{
		Name: "MVP 1", AppAcronym: "PROJ", StartDate: date("2026-01-01"), EndDate: date("2026-02-01"),
	}))

	renamed := *app
	renamed.Acronym = "NEWP"
	renamed.Description = "renamed"
	assert.Nil(database.UpdateApplication(ctx, "PROJ", &renamed))

	_, err := database.GetApplication(ctx, "PROJ")
	assert.True(errors.Is(err, db.ErrNotFound))

	tasks, err := database.GetTasks(ctx, "NEWP", "")
	assert.Nil(err)
	assert.Equal(2, len(tasks))
	assert.Equal("NEWP_1", tasks[0].ID)
	assert.Equal("NEWP_2", tasks[1].ID)

	plans, err := database.GetPlans(ctx, "NEWP")
	assert.Nil(err)
	assert.Equal(1, len(plans))

	// the counter survives the rename
	task := addTask(t, database, "NEWP")
	assert.Equal("NEWP_3", task.ID)
}

func TestUpdateApplicationRenameCollision(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()

	database := getDB(t)
	app := addApp(t, database, "PROJ")
	addApp(t, database, "TAKEN")
	addTask(t, database, "PROJ")

	renamed := *app
	renamed.Acronym = "TAKEN"
	renamed.Description = "should not stick"

	err := database.UpdateApplication(ctx, "PROJ", &renamed)
	assert.True(errors.Is(err, db.ErrDuplicate))

	stored, err := database.GetApplication(ctx, "PROJ")
	assert.Nil(err)
	assert.Equal("an application", stored.Description)

	task, err := database.GetTask(ctx, "PROJ_1")
	assert.Nil(err)
	assert.Equal("PROJ", task.AppAcronym)
}

func TestUpdateApplicationMissing(t *testing.T) {
	t.Parallel()

	database := getDB(t)
	app := &db.Application{Acronym: "NOPE", StartDate: date("2026-01-01"), EndDate: date("2026-01-02")}

	err := database.UpdateApplication(context.Background(), "NOPE", app)
	assert.True(t, errors.Is(err, db.ErrNotFound))
}

func TestPlans(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()

	database := getDB(t)
	addApp(t, database, "PROJ")

	_, err := database.GetPlans(ctx, "PROJ")
	assert.True(errors.Is(err, db.ErrNotFound))

	plan := &db.Plan{
		Name: "MVP 1", AppAcronym: "PROJ", StartDate: date("2026-01-01"), EndDate: date("2026-02-01"), Color: "#ff0000",
	}
	assert.Nil(database.CreatePlan(ctx, plan))
	assert.True(errors.Is(database.CreatePlan(ctx, plan), db.ErrDuplicate))

	plan.Color = "#00ff00"
	plan.EndDate = date("2026-03-01")
	assert.Nil(database.UpdatePlan(ctx, plan))

	stored, err := database.GetPlan(ctx, "PROJ", "MVP 1")
	assert.Nil(err)
	assert.Equal("#00ff00", stored.Color)
	assert.Equal("2026-03-01", stored.EndDate.Format("2006-01-02"))

	_, err = database.GetPlan(ctx, "PROJ", "MVP 2")
	assert.True(errors.Is(err, db.ErrNotFound))
}

func TestAccountsAndGroups(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()

	database := getDB(t)

	assert.Nil(database.CreateGroup(ctx, "pm"))
	assert.Nil(database.CreateGroup(ctx, "dev"))
	assert.True(errors.Is(database.CreateGroup(ctx, "pm"), db.ErrDuplicate))

	acc := &db.Account{
		Username: "alice", PasswordHash: "hash", Email: "alice@example.com", Status: db.StatusActive,
		Groups: []string{"pm", "dev"},
	}
	assert.Nil(database.CreateAccount(ctx, acc))
	assert.True(errors.Is(database.CreateAccount(ctx, acc), db.ErrDuplicate))

	stored, err := database.GetAccount(ctx, "alice")
	assert.Nil(err)
	assert.Equal([]string{"dev", "pm"}, stored.Groups)
	assert.Equal("alice@example.com", stored.Email)

	member, err := database.IsMember(ctx, "alice", "qa", "pm")
	assert.Nil(err)
	assert.True(member)

	member, err = database.IsMember(ctx, "alice", "")
	assert.Nil(err)
	assert.False(member)

	groups := []string{"dev"}
	disabled := db.StatusDisabled
	assert.Nil(database.UpdateAccount(ctx, db.AccountUpdate{Username: "alice", Groups: &groups}))

	emails, err := database.GroupMemberEmails(ctx, "dev")
	assert.Nil(err)
	assert.Equal([]string{"alice@example.com"}, emails)

	assert.Nil(database.UpdateAccount(ctx, db.AccountUpdate{Username: "alice", Status: &disabled}))

	emails, err = database.GroupMemberEmails(ctx, "dev")
	assert.Nil(err)
	assert.Equal(0, len(emails))

	stored, err = database.GetAccount(ctx, "alice")
	assert.Nil(err)
	assert.Equal([]string{"dev"}, stored.Groups)
	assert.Equal(db.StatusDisabled, stored.Status)

	err = database.UpdateAccount(ctx, db.AccountUpdate{Username: "nobody"})
	assert.True(errors.Is(err, db.ErrNotFound))

	missing, err := database.MissingGroups(ctx, []string{"dev", "qa"})
	assert.Nil(err)
	assert.Equal([]string{"qa"}, missing)

	count, err := database.CountAccounts(ctx)
	assert.Nil(err)
	assert.Equal(1, count)
}

func TestRunInTxRetriesOnlyLockContention(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()
	database := getDB(t)
	addApp(t, database, "PROJ")

	// the work is done when the connection seems to drop: it must not run twice
	for _, lost := range []error{driver.ErrBadConn, mysql.ErrInvalidConn} {
		runs := 0
		err := database.RunInTx(ctx, func(tx *sql.Tx) error {
			runs++

			if _, err := tx.ExecContext(ctx,
				`UPDATE application SET app_rnumber = app_rnumber + 1 WHERE app_acronym = ?`, "PROJ"); err != nil {
				return err
			}

			return fmt.Errorf("error reading reply: %w", lost)
		})
		assert.ErrorIs(err, lost)
		assert.Equal(1, runs)
	}

	app, err := database.GetApplication(ctx, "PROJ")
	require.NoError(t, err)
	assert.Equal(0, app.RNumber)

	runs := 0
	err = database.RunInTx(ctx, func(tx *sql.Tx) error {
		runs++

		return tx.Rollback()
	})
	assert.ErrorIs(err, sql.ErrTxDone)
	assert.ErrorContains(err, "error committing transaction")
	assert.Equal(1, runs)

	for _, busy := range []error{sqlite3.Error{Code: sqlite3.ErrBusy}, &mysql.MySQLError{Number: 1213}} {
		runs = 0
		err = database.RunInTx(ctx, func(tx *sql.Tx) error {
			runs++
			if runs == 1 {
				return fmt.Errorf("error locking: %w", busy)
			}

			return nil
		})
		assert.NoError(err)
		assert.Equal(2, runs)
	}
}
