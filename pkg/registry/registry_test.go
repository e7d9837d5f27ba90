package registry_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matt-steen/taskflow/pkg/apperr"
	"github.com/matt-steen/taskflow/pkg/db"
	"github.com/matt-steen/taskflow/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRegistry(t *testing.T) (*registry.Registry, *db.Database) {
	t.Helper()

	ctx := context.Background()

	database, err := db.NewDatabase(ctx, db.Config{
		Driver: db.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "test.sqlite"),
	})
	require.NoError(t, err)

	t.Cleanup(func() { database.Close() })

	require.NoError(t, database.CreateGroup(ctx, "pm"))
	require.NoError(t, database.CreateAccount(ctx, &db.Account{
		Username: "root", PasswordHash: "x", Status: db.StatusActive, Groups: []string{db.AdminGroup},
	}))
	require.NoError(t, database.CreateAccount(ctx, &db.Account{
		Username: "paula", PasswordHash: "x", Status: db.StatusActive, Groups: []string{"pm"},
	}))

	return registry.New(database), database
}

func projInput() registry.ApplicationInput {
	return registry.ApplicationInput{
		Acronym:     "PROJ",
		Description: "the project",
		StartDate:   "2026-01-01",
		EndDate:     "2026-06-30",
		PermitOpen:  "pm",
		PermitDone:  "pm",
	}
}

func TestCreateApplicationRoundTrip(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()
	reg, _ := getRegistry(t)

	in := projInput()
	in.RNumber = 7

	_, err := reg.CreateApplication(ctx, "root", in)
	require.NoError(t, err)

	apps, err := reg.GetApplications(ctx)
	assert.Nil(err)
	require.Equal(t, 1, len(apps))

	app := apps[0]
	assert.Equal("PROJ", app.Acronym)
	assert.Equal("the project", app.Description)
	assert.Equal(7, app.RNumber)
	assert.Equal("2026-01-01", app.StartDate.Format(time.DateOnly))
	assert.Equal("2026-06-30", app.EndDate.Format(time.DateOnly))
	assert.Equal("pm", app.PermitOpen)
	assert.Equal("", app.PermitCreate)
	assert.Equal("pm", app.PermitDone)
}

func TestCreateApplicationRejected(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()
	reg, _ := getRegistry(t)

	_, err := reg.CreateApplication(ctx, "paula", projInput())
	assert.True(apperr.Is(err, apperr.KindAuthorization))

	bad := projInput()
	bad.EndDate = "2025-12-31"
	_, err = reg.CreateApplication(ctx, "root", bad)
	assert.True(apperr.Is(err, apperr.KindValidation))

	bad = projInput()
	bad.Acronym = "PROJ_X"
	_, err = reg.CreateApplication(ctx, "root", bad)
	assert.True(apperr.Is(err, apperr.KindValidation))

	bad = projInput()
	bad.PermitDoing = "devs"
	_, err = reg.CreateApplication(ctx, "root", bad)
	assert.True(apperr.Is(err, apperr.KindValidation))

	_, err = reg.CreateApplication(ctx, "root", projInput())
	assert.Nil(err)

	_, err = reg.CreateApplication(ctx, "root", projInput())
	assert.True(apperr.Is(err, apperr.KindIntegrity))

	_, err = reg.GetApplication(ctx, "NOPE")
	assert.True(apperr.Is(err, apperr.KindNotFound))
}

func TestUpdateApplicationRename(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()
	reg, database := getRegistry(t)

	_, err := reg.CreateApplication(ctx, "root", projInput())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = database.CreateTask(ctx, db.NewTask{AppAcronym: "PROJ", Name: "t", Creator: "paula", CreateDate: time.Now()})
		require.NoError(t, err)
	}

	other := projInput()
	other.Acronym = "TAKEN"
	_, err = reg.CreateApplication(ctx, "root", other)
	require.NoError(t, err)

	collide := registry.ApplicationUpdate{Original: "PROJ", ApplicationInput: projInput()}
	collide.Acronym = "TAKEN"
	_, err = reg.UpdateApplication(ctx, "root", collide)
	assert.True(apperr.Is(err, apperr.KindIntegrity))

	_, err = reg.GetApplication(ctx, "PROJ")
	assert.Nil(err)

	rename := registry.ApplicationUpdate{Original: "PROJ", ApplicationInput: projInput()}
	rename.Acronym = "NEWP"
	rename.RNumber = 99
	app, err := reg.UpdateApplication(ctx, "root", rename)
	assert.Nil(err)
	assert.Equal("NEWP", app.Acronym)
	assert.Equal(2, app.RNumber)

	tasks, err := database.GetTasks(ctx, "NEWP", "")
	assert.Nil(err)
	require.Equal(t, 2, len(tasks))
	assert.Equal("NEWP_1", tasks[0].ID)
	assert.Equal("NEWP_2", tasks[1].ID)

	missing := registry.ApplicationUpdate{Original: "GONE", ApplicationInput: projInput()}
	_, err = reg.UpdateApplication(ctx, "root", missing)
	assert.True(apperr.Is(err, apperr.KindNotFound))
}

func TestPlans(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()
	reg, _ := getRegistry(t)

	_, err := reg.CreateApplication(ctx, "root", projInput())
	require.NoError(t, err)

	_, err = reg.GetPlans(ctx, "PROJ")
	assert.True(apperr.Is(err, apperr.KindNotFound))

	sprint := registry.PlanInput{
		Name: "Sprint 1", AppAcronym: "PROJ", StartDate: "2026-01-01", EndDate: "2026-01-14", Color: "#FF0000",
	}

	plan, err := reg.CreatePlan(ctx, "paula", sprint)
	assert.Nil(err)
	assert.Equal("#ff0000", plan.Color)

	_, err = reg.CreatePlan(ctx, "paula", sprint)
	assert.True(apperr.Is(err, apperr.KindIntegrity))

	missingApp := sprint
	missingApp.AppAcronym = "NOPE"
	_, err = reg.CreatePlan(ctx, "paula", missingApp)
	assert.True(apperr.Is(err, apperr.KindNotFound))

	badColor := sprint
	badColor.Name = "Sprint 2"
	badColor.Color = "blue"
	_, err = reg.CreatePlan(ctx, "paula", badColor)
	assert.True(apperr.Is(err, apperr.KindValidation))

	_, err = reg.CreatePlan(ctx, "nobody", registry.PlanInput{
		Name: "Sprint 3", AppAcronym: "PROJ", StartDate: "2026-02-01", EndDate: "2026-02-14",
	})
	assert.True(apperr.Is(err, apperr.KindAuthorization))

	moved := sprint
	moved.EndDate = "2026-01-21"
	moved.Color = ""
	_, err = reg.UpdatePlan(ctx, "root", moved)
	assert.Nil(err)

	plans, err := reg.GetPlans(ctx, "PROJ")
	assert.Nil(err)
	require.Equal(t, 1, len(plans))
	assert.Equal("2026-01-21", plans[0].EndDate.Format(time.DateOnly))
	assert.Equal("", plans[0].Color)

	_, err = reg.GetPlan(ctx, "PROJ", "Sprint 9")
	assert.True(apperr.Is(err, apperr.KindNotFound))
}

func TestApplicationFieldRules(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()
	reg, _ := getRegistry(t)

	in := projInput()
	in.Acronym = "  PROJ "
	in.PermitOpen = " pm"

	app, err := reg.CreateApplication(ctx, "root", in)
	require.NoError(t, err)
	assert.Equal("PROJ", app.Acronym)
	assert.Equal("pm", app.PermitOpen)

	remarks := map[string]func(u *registry.ApplicationUpdate){
		"App_endDate must not be before App_startDate":        func(u *registry.ApplicationUpdate) { u.EndDate = "2025-01-01" },
		"App_startDate must be a date formatted as YYYY-MM-DD": func(u *registry.ApplicationUpdate) { u.StartDate = "2026-1-1" },
		"App_Rnumber must be at least 0":                       func(u *registry.ApplicationUpdate) { u.RNumber = -1 },
		"original_App_Acronym may only contain letters, digits and spaces (max 50)": func(u *registry.ApplicationUpdate) {
			u.Original = "PROJ_1"
		},
	}

	for remark, change := range remarks {
		update := registry.ApplicationUpdate{Original: "PROJ", ApplicationInput: projInput()}
		change(&update)

		_, err = reg.UpdateApplication(ctx, "root", update)
		assert.True(apperr.Is(err, apperr.KindValidation), remark)
		assert.Equal(remark, apperr.From(err).Remark)
	}

	_, err = reg.CreatePlan(ctx, "paula", registry.PlanInput{
		Name: "   ", AppAcronym: "PROJ", StartDate: "2026-01-01", EndDate: "2026-01-14",
	})
	assert.Equal("Plan_MVP_name is required", apperr.From(err).Remark)
}
