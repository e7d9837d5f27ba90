package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const applicationColumns = `app_acronym, app_description, app_rnumber, app_start_date, app_end_date,
	app_permit_create, app_permit_open, app_permit_todolist, app_permit_doing, app_permit_done`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*Application, error) {
	var (
		app                                 Application
		create, open, todo, doing, doneName sql.NullString
	)

	err := row.Scan(&app.Acronym, &app.Description, &app.RNumber, &app.StartDate, &app.EndDate,
		&create, &open, &todo, &doing, &doneName)
	if err != nil {
		return nil, err
	}

	app.PermitCreate = create.String
	app.PermitOpen = open.String
	app.PermitToDo = todo.String
	app.PermitDoing = doing.String
	app.PermitDone = doneName.String

	return &app, nil
}

// CreateApplication inserts a new application; a taken acronym yields ErrDuplicate.
func (d *Database) CreateApplication(ctx context.Context, app *Application) error {
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO application (`+applicationColumns+`)
		     VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		app.Acronym, app.Description, app.RNumber, formatDate(app.StartDate), formatDate(app.EndDate),
		nullString(app.PermitCreate), nullString(app.PermitOpen), nullString(app.PermitToDo),
		nullString(app.PermitDoing), nullString(app.PermitDone),
	)
	if isDuplicate(err) {
		return fmt.Errorf("error adding application %s: %w", app.Acronym, ErrDuplicate)
	}

	if err != nil {
		return fmt.Errorf("error adding application %s: %w", app.Acronym, err)
	}

	return nil
}

// GetApplication returns the application with the given acronym or ErrNotFound.
func (d *Database) GetApplication(ctx context.Context, acronym string) (*Application, error) {
	row := d.conn.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM application WHERE app_acronym = ?`, acronym)

	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("error loading application %s: %w", acronym, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("error loading application %s: %w", acronym, err)
	}

	return app, nil
}

// GetApplications returns all applications ordered by acronym.
func (d *Database) GetApplications(ctx context.Context) ([]*Application, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT `+applicationColumns+` FROM application ORDER BY app_acronym`)
	if err != nil {
		return nil, fmt.Errorf("error loading applications: %w", err)
	}
	defer rows.Close()

	apps := []*Application{}

	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning applications: %w", err)
		}

		apps = append(apps, app)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning applications: %w", err)
	}

	return apps, nil
}

// UpdateApplication rewrites the application identified by original with the values of app.
// The counter is left alone. When the acronym changes, plans and tasks follow through the
// foreign key cascade and every task id prefix is rewritten, all in one transaction: a
// taken target acronym rolls everything back and yields ErrDuplicate.
func (d *Database) UpdateApplication(ctx context.Context, original string, app *Application) error {
	return d.RunInTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE application
			    SET app_acronym = ?, app_description = ?, app_start_date = ?, app_end_date = ?,
			        app_permit_create = ?, app_permit_open = ?, app_permit_todolist = ?,
			        app_permit_doing = ?, app_permit_done = ?
			  WHERE app_acronym = ?`,
			app.Acronym, app.Description, formatDate(app.StartDate), formatDate(app.EndDate),
			nullString(app.PermitCreate), nullString(app.PermitOpen), nullString(app.PermitToDo),
			nullString(app.PermitDoing), nullString(app.PermitDone), original,
		)
		if isDuplicate(err) {
			return fmt.Errorf("error renaming application %s to %s: %w", original, app.Acronym, ErrDuplicate)
		}

		if err != nil {
			return fmt.Errorf("error updating application %s: %w", original, err)
		}

		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("error updating application %s: %w", original, err)
		} else if n == 0 {
			return fmt.Errorf("error updating application %s: %w", original, ErrNotFound)
		}

		if app.Acronym == original {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE task SET task_id = `+d.dialect.concat("?", "SUBSTR(task_id, ?)")+
				` WHERE task_app_acronym = ?`,
			app.Acronym, len(original)+1, app.Acronym,
		)
		if isDuplicate(err) {
			return fmt.Errorf("error rewriting task ids for %s: %w", app.Acronym, ErrDuplicate)
		}

		if err != nil {
			return fmt.Errorf("error rewriting task ids for %s: %w", app.Acronym, err)
		}

		return nil
	})
}
