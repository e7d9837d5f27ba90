// Package registry manages applications and their plans.
package registry

import (
	"context"
	"errors"

	"github.com/matt-steen/taskflow/pkg/apperr"
	"github.com/matt-steen/taskflow/pkg/db"
	"github.com/rs/zerolog/log"
)

// Store is the part of the database the registry needs.
type Store interface {
	CreateApplication(ctx context.Context, app *db.Application) error
	GetApplication(ctx context.Context, acronym string) (*db.Application, error)
	GetApplications(ctx context.Context) ([]*db.Application, error)
	UpdateApplication(ctx context.Context, original string, app *db.Application) error
	CreatePlan(ctx context.Context, plan *db.Plan) error
	GetPlan(ctx context.Context, appAcronym, name string) (*db.Plan, error)
	GetPlans(ctx context.Context, appAcronym string) ([]*db.Plan, error)
	UpdatePlan(ctx context.Context, plan *db.Plan) error
	IsMember(ctx context.Context, username string, groups ...string) (bool, error)
	MissingGroups(ctx context.Context, groups []string) ([]string, error)
}

// Registry is the Application Registry and the Plan Registry.
type Registry struct {
	store Store
}

// New creates a Registry over store.
func New(store Store) *Registry {
	return &Registry{store: store}
}

func (r *Registry) requireMember(ctx context.Context, actor, what string, groups ...string) error {
	ok, err := r.store.IsMember(ctx, actor, groups...)
	if err != nil {
		return apperr.Internal(err)
	}

	if !ok {
		return apperr.Authorization("%s is not allowed to %s", actor, what)
	}

	return nil
}

// CreateApplication validates in and inserts the application. Only administrators may call it.
func (r *Registry) CreateApplication(ctx context.Context, actor string, in ApplicationInput) (*db.Application, error) {
	if err := r.requireMember(ctx, actor, "create applications", db.AdminGroup); err != nil {
		return nil, err
	}

	app, err := in.normalize()
	if err != nil {
		return nil, err
	}

	if err = r.checkPermits(ctx, app); err != nil {
		return nil, err
	}

	if err = r.store.CreateApplication(ctx, app); err != nil {
		return nil, db.Classify(err, "application "+app.Acronym)
	}

	log.Info().Str("actor", actor).Str("app", app.Acronym).Int("rnumber", app.RNumber).Msg("created application")

	return app, nil
}

// UpdateApplication rewrites the application called original. Renaming it moves its plans
// and rewrites the ids of its tasks; a taken acronym leaves everything as it was.
func (r *Registry) UpdateApplication(ctx context.Context, actor string, in ApplicationUpdate) (*db.Application, error) {
	if err := r.requireMember(ctx, actor, "update applications", db.AdminGroup); err != nil {
		return nil, err
	}

	original, app, err := in.normalize()
	if err != nil {
		return nil, err
	}

	if err = r.checkPermits(ctx, app); err != nil {
		return nil, err
	}

	if err = r.store.UpdateApplication(ctx, original, app); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, db.Classify(err, "application "+original)
		}

		return nil, db.Classify(err, "application "+app.Acronym)
	}

	logger := log.Info().Str("actor", actor).Str("app", app.Acronym)
	if original != app.Acronym {
		logger = logger.Str("renamed_from", original)
	}

	logger.Msg("updated application")

	return r.GetApplication(ctx, app.Acronym)
}

// GetApplication returns one application.
func (r *Registry) GetApplication(ctx context.Context, acronym string) (*db.Application, error) {
	app, err := r.store.GetApplication(ctx, acronym)
	if err != nil {
		return nil, db.Classify(err, "application "+acronym)
	}

	return app, nil
}

// GetApplications returns every application ordered by acronym.
func (r *Registry) GetApplications(ctx context.Context) ([]*db.Application, error) {
	apps, err := r.store.GetApplications(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return apps, nil
}

func (r *Registry) checkPermits(ctx context.Context, app *db.Application) error {
	missing, err := r.store.MissingGroups(ctx, []string{
		app.PermitCreate, app.PermitOpen, app.PermitToDo, app.PermitDoing, app.PermitDone,
	})
	if err != nil {
		return apperr.Internal(err)
	}

	if len(missing) > 0 {
		return apperr.Validation("permit group '%s' does not exist", missing[0])
	}

	return nil
}

// CreatePlan adds a plan to an existing application. Administrators and members of the
// application's Open permit group may call it.
func (r *Registry) CreatePlan(ctx context.Context, actor string, in PlanInput) (*db.Plan, error) {
	plan, err := in.normalize()
	if err != nil {
		return nil, err
	}

	app, err := r.GetApplication(ctx, plan.AppAcronym)
	if err != nil {
		return nil, err
	}

	if err = r.requireMember(ctx, actor, "manage plans of "+app.Acronym, db.AdminGroup, app.PermitOpen); err != nil {
		return nil, err
	}

	if err = r.store.CreatePlan(ctx, plan); err != nil {
		return nil, db.Classify(err, "plan '"+plan.Name+"' of "+plan.AppAcronym)
	}

	log.Info().Str("actor", actor).Str("app", plan.AppAcronym).Str("plan", plan.Name).Msg("created plan")

	return plan, nil
}

// UpdatePlan changes the dates and colour of a plan. Its name is immutable.
func (r *Registry) UpdatePlan(ctx context.Context, actor string, in PlanInput) (*db.Plan, error) {
	plan, err := in.normalize()
	if err != nil {
		return nil, err
	}

	app, err := r.GetApplication(ctx, plan.AppAcronym)
	if err != nil {
		return nil, err
	}

	if err = r.requireMember(ctx, actor, "manage plans of "+app.Acronym, db.AdminGroup, app.PermitOpen); err != nil {
		return nil, err
	}

	if err = r.store.UpdatePlan(ctx, plan); err != nil {
		return nil, db.Classify(err, "plan '"+plan.Name+"' of "+plan.AppAcronym)
	}

	return plan, nil
}

// GetPlans returns the plans of an application; an application without plans is a not-found.
func (r *Registry) GetPlans(ctx context.Context, appAcronym string) ([]*db.Plan, error) {
	plans, err := r.store.GetPlans(ctx, appAcronym)
	if err != nil {
		return nil, db.Classify(err, "plans of "+appAcronym)
	}

	return plans, nil
}

// GetPlan returns one plan of an application.
func (r *Registry) GetPlan(ctx context.Context, appAcronym, name string) (*db.Plan, error) {
	plan, err := r.store.GetPlan(ctx, appAcronym, name)
	if err != nil {
		return nil, db.Classify(err, "plan '"+name+"' of "+appAcronym)
	}

	return plan, nil
}
