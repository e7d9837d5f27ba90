package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

func (d *Database) loadGroups(ctx context.Context, username string) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT group_name FROM group_membership WHERE username = ? ORDER BY group_name`, username)
	if err != nil {
		return nil, fmt.Errorf("error loading groups of %s: %w", username, err)
	}
	defer rows.Close()

	groups := []string{}

	for rows.Next() {
		var group string
		if err := rows.Scan(&group); err != nil {
			return nil, fmt.Errorf("error scanning groups: %w", err)
		}

		groups = append(groups, group)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning groups: %w", err)
	}

	return groups, nil
}

func scanAccount(row rowScanner) (*Account, error) {
	var (
		acc   Account
		email sql.NullString
	)

	if err := row.Scan(&acc.Username, &acc.PasswordHash, &email, &acc.Status, &acc.CreatedAt); err != nil {
		return nil, err
	}

	acc.Email = email.String

	return &acc, nil
}

// GetAccount returns the account with its groups, or ErrNotFound.
func (d *Database) GetAccount(ctx context.Context, username string) (*Account, error) {
	row := d.conn.QueryRowContext(ctx,
		`SELECT username, password_hash, email, account_status, created_at FROM accounts WHERE username = ?`,
		username)

	acc, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("error loading account %s: %w", username, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("error loading account %s: %w", username, err)
	}

	if acc.Groups, err = d.loadGroups(ctx, username); err != nil {
		return nil, err
	}

	return acc, nil
}

// GetAccounts returns every account with its groups, ordered by username.
func (d *Database) GetAccounts(ctx context.Context) ([]*Account, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT username, password_hash, email, account_status, created_at FROM accounts ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("error loading accounts: %w", err)
	}

	accounts := []*Account{}

	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			rows.Close()

			return nil, fmt.Errorf("error scanning accounts: %w", err)
		}

		accounts = append(accounts, acc)
	}

	if err = rows.Err(); err != nil {
		rows.Close()

		return nil, fmt.Errorf("error scanning accounts: %w", err)
	}

	rows.Close()

	// groups are loaded after the cursor is closed; sqlite may hand out a single connection
	for _, acc := range accounts {
		if acc.Groups, err = d.loadGroups(ctx, acc.Username); err != nil {
			return nil, err
		}
	}

	return accounts, nil
}

// CountAccounts returns the number of accounts.
func (d *Database) CountAccounts(ctx context.Context) (int, error) {
	var count int
	if err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting accounts: %w", err)
	}

	return count, nil
}

func replaceGroups(ctx context.Context, tx *sql.Tx, username string, groups []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_membership WHERE username = ?`, username); err != nil {
		return fmt.Errorf("error clearing groups of %s: %w", username, err)
	}

	for _, group := range groups {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO group_membership (username, group_name) VALUES (?, ?)`, username, group)
		if err != nil {
			return fmt.Errorf("error adding %s to group '%s': %w", username, group, err)
		}
	}

	return nil
}

// CreateAccount inserts an account and its group memberships in one transaction.
func (d *Database) CreateAccount(ctx context.Context, acc *Account) error {
	return d.RunInTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (username, password_hash, email, account_status) VALUES (?, ?, ?, ?)`,
			acc.Username, acc.PasswordHash, nullString(acc.Email), acc.Status,
		)
		if isDuplicate(err) {
			return fmt.Errorf("error adding account %s: %w", acc.Username, ErrDuplicate)
		}

		if err != nil {
			return fmt.Errorf("error adding account %s: %w", acc.Username, err)
		}

		return replaceGroups(ctx, tx, acc.Username, acc.Groups)
	})
}

// AccountUpdate lists the account fields to change; nil pointers are left alone.
type AccountUpdate struct {
	Username     string
	Email        *string
	PasswordHash *string
	Status       *AccountStatus
	// Groups, when non-nil, replaces the whole membership set.
	Groups *[]string
}

// UpdateAccount applies u in one transaction. Group changes delete every membership of the
// user and insert the new set.
func (d *Database) UpdateAccount(ctx context.Context, u AccountUpdate) error {
	return d.RunInTx(ctx, func(tx *sql.Tx) error {
		sets := []string{}
		args := []interface{}{}

		if u.Email != nil {
			sets = append(sets, "email = ?")
			args = append(args, nullString(*u.Email))
		}

		if u.PasswordHash != nil {
			sets = append(sets, "password_hash = ?")
			args = append(args, *u.PasswordHash)
		}

		if u.Status != nil {
			sets = append(sets, "account_status = ?")
			args = append(args, *u.Status)
		}

		var (
			found bool
			err   error
		)

		if len(sets) > 0 {
			found, err = execAffects(ctx, tx, `UPDATE accounts SET `+strings.Join(sets, ", ")+` WHERE username = ?`,
				append(args, u.Username)...)
		} else {
			found, err = rowExists(ctx, tx, `SELECT 1 FROM accounts WHERE username = ?`, u.Username)
		}

		if err != nil {
			return fmt.Errorf("error updating account %s: %w", u.Username, err)
		}

		if !found {
			return fmt.Errorf("error updating account %s: %w", u.Username, ErrNotFound)
		}

		if u.Groups != nil {
			return replaceGroups(ctx, tx, u.Username, *u.Groups)
		}

		return nil
	})
}

// IsMember reports whether the user belongs to at least one of the groups. Empty group names
// never match.
func (d *Database) IsMember(ctx context.Context, username string, groups ...string) (bool, error) {
	named := []interface{}{username}
	marks := []string{}

	for _, group := range groups {
		if group != "" {
			named = append(named, group)
			marks = append(marks, "?")
		}
	}

	if len(marks) == 0 {
		return false, nil
	}

	var count int

	err := d.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM group_membership WHERE username = ? AND group_name IN (`+strings.Join(marks, ", ")+`)`,
		named...,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("error checking groups of %s: %w", username, err)
	}

	return count > 0, nil
}

// GroupMemberEmails returns the non-empty email addresses of the active members of a group.
func (d *Database) GroupMemberEmails(ctx context.Context, group string) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT a.email FROM accounts a
		   JOIN group_membership m ON m.username = a.username
		  WHERE m.group_name = ? AND a.account_status = ? AND a.email IS NOT NULL AND a.email <> ''
		  ORDER BY a.username`, group, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("error loading emails of group '%s': %w", group, err)
	}
	defer rows.Close()

	emails := []string{}

	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("error scanning emails: %w", err)
		}

		emails = append(emails, email)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning emails: %w", err)
	}

	return emails, nil
}

// CreateGroup adds a group name; an existing name yields ErrDuplicate.
func (d *Database) CreateGroup(ctx context.Context, name string) error {
	_, err := d.conn.ExecContext(ctx, `INSERT INTO user_groups (group_name) VALUES (?)`, name)
	if isDuplicate(err) {
		return fmt.Errorf("error adding group '%s': %w", name, ErrDuplicate)
	}

	if err != nil {
		return fmt.Errorf("error adding group '%s': %w", name, err)
	}

	return nil
}

// GetGroups returns every group name in alphabetical order.
func (d *Database) GetGroups(ctx context.Context) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT group_name FROM user_groups ORDER BY group_name`)
	if err != nil {
		return nil, fmt.Errorf("error loading groups: %w", err)
	}
	defer rows.Close()

	groups := []string{}

	for rows.Next() {
		var group string
		if err := rows.Scan(&group); err != nil {
			return nil, fmt.Errorf("error scanning groups: %w", err)
		}

		groups = append(groups, group)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning groups: %w", err)
	}

	return groups, nil
}

// MissingGroups returns the names among groups that do not exist.
func (d *Database) MissingGroups(ctx context.Context, groups []string) ([]string, error) {
	existing, err := d.GetGroups(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(existing))
	for _, group := range existing {
		known[group] = true
	}

	missing := []string{}

	for _, group := range groups {
		if group != "" && !known[group] {
			missing = append(missing, group)
		}
	}

	return missing, nil
}

func execAffects(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (bool, error) {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}

	n, err := result.RowsAffected()

	return n > 0, err
}

func rowExists(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (bool, error) {
	var one int

	err := tx.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	return err == nil, err
}
