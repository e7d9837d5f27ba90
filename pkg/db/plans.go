package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const planColumns = `plan_mvp_name, plan_app_acronym, plan_start_date, plan_end_date, plan_color`

func scanPlan(row rowScanner) (*Plan, error) {
	var (
		plan  Plan
		color sql.NullString
	)

	if err := row.Scan(&plan.Name, &plan.AppAcronym, &plan.StartDate, &plan.EndDate, &color); err != nil {
		return nil, err
	}

	plan.Color = color.String

	return &plan, nil
}

// CreatePlan inserts a plan. The (application, name) pair is unique.
func (d *Database) CreatePlan(ctx context.Context, plan *Plan) error {
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO plan (`+planColumns+`) VALUES (?, ?, ?, ?, ?)`,
		plan.Name, plan.AppAcronym, formatDate(plan.StartDate), formatDate(plan.EndDate), nullString(plan.Color),
	)
	if isDuplicate(err) {
		return fmt.Errorf("error adding plan '%s' to %s: %w", plan.Name, plan.AppAcronym, ErrDuplicate)
	}

	if err != nil {
		return fmt.Errorf("error adding plan '%s' to %s: %w", plan.Name, plan.AppAcronym, err)
	}

	return nil
}

// GetPlan returns one plan of an application or ErrNotFound.
func (d *Database) GetPlan(ctx context.Context, appAcronym, name string) (*Plan, error) {
	row := d.conn.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM plan WHERE plan_app_acronym = ? AND plan_mvp_name = ?`,
		appAcronym, name)

	plan, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("error loading plan '%s' of %s: %w", name, appAcronym, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("error loading plan '%s' of %s: %w", name, appAcronym, err)
	}

	return plan, nil
}

// GetPlans returns the plans of an application ordered by start date; none at all is ErrNotFound.
func (d *Database) GetPlans(ctx context.Context, appAcronym string) ([]*Plan, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT `+planColumns+` FROM plan WHERE plan_app_acronym = ?
		  ORDER BY plan_start_date, plan_mvp_name`, appAcronym)
	if err != nil {
		return nil, fmt.Errorf("error loading plans of %s: %w", appAcronym, err)
	}
	defer rows.Close()

	plans := []*Plan{}

	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning plans: %w", err)
		}

		plans = append(plans, plan)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning plans: %w", err)
	}

	if len(plans) == 0 {
		return nil, fmt.Errorf("error loading plans of %s: %w", appAcronym, ErrNotFound)
	}

	return plans, nil
}

// UpdatePlan changes the dates and colour of an existing plan.
func (d *Database) UpdatePlan(ctx context.Context, plan *Plan) error {
	result, err := d.conn.ExecContext(ctx,
		`UPDATE plan SET plan_start_date = ?, plan_end_date = ?, plan_color = ?
		  WHERE plan_app_acronym = ? AND plan_mvp_name = ?`,
		formatDate(plan.StartDate), formatDate(plan.EndDate), nullString(plan.Color), plan.AppAcronym, plan.Name,
	)
	if err != nil {
		return fmt.Errorf("error updating plan '%s' of %s: %w", plan.Name, plan.AppAcronym, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error updating plan '%s' of %s: %w", plan.Name, plan.AppAcronym, err)
	}

	if n == 0 {
		return fmt.Errorf("error updating plan '%s' of %s: %w", plan.Name, plan.AppAcronym, ErrNotFound)
	}

	return nil
}
