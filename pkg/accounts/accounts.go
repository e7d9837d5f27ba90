// Package accounts is the credential store and group membership store, plus the
// administration operations on both.
package accounts

import (
	"context"
	"errors"
	"strings"

	"github.com/matt-steen/taskflow/pkg/apperr"
	"github.com/matt-steen/taskflow/pkg/db"
	"github.com/matt-steen/taskflow/pkg/validate"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// AdminUsername is the account that can never be disabled nor leave the admin group.
const AdminUsername = "admin"

// Store is the part of the database the service needs.
type Store interface {
	GetAccount(ctx context.Context, username string) (*db.Account, error)
	GetAccounts(ctx context.Context) ([]*db.Account, error)
	CountAccounts(ctx context.Context) (int, error)
	CreateAccount(ctx context.Context, acc *db.Account) error
	UpdateAccount(ctx context.Context, u db.AccountUpdate) error
	IsMember(ctx context.Context, username string, groups ...string) (bool, error)
	GroupMemberEmails(ctx context.Context, group string) ([]string, error)
	CreateGroup(ctx context.Context, name string) error
	GetGroups(ctx context.Context) ([]string, error)
	MissingGroups(ctx context.Context, groups []string) ([]string, error)
}

// Service authenticates users and administers accounts and groups.
type Service struct {
	store Store
	cost  int
}

// Option configures a Service.
type Option func(*Service)

// WithHashCost sets the bcrypt cost; tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

// NewService creates a Service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, cost: bcrypt.DefaultCost}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

var errBadCredentials = apperr.Authentication("invalid username or password")

// Authenticate checks a username and password and returns the active account.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*db.Account, error) {
	acc, err := s.store.GetAccount(ctx, strings.TrimSpace(username))
	if errors.Is(err, db.ErrNotFound) {
		return nil, errBadCredentials
	}

	if err != nil {
		return nil, apperr.Internal(err)
	}

	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
		log.Info().Str("username", acc.Username).Msg("rejected login with wrong password")

		return nil, errBadCredentials
	}

	if acc.Status != db.StatusActive {
		return nil, apperr.Authentication("account %s is disabled", acc.Username)
	}

	return acc, nil
}

// Active returns the account when it still exists and is active. Sessions are re-checked with
// it on every request so that disabling an account takes effect immediately.
func (s *Service) Active(ctx context.Context, username string) (*db.Account, error) {
	acc, err := s.store.GetAccount(ctx, username)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.Authentication("account %s no longer exists", username)
	}

	if err != nil {
		return nil, apperr.Internal(err)
	}

	if acc.Status != db.StatusActive {
		return nil, apperr.Authentication("account %s is disabled", acc.Username)
	}

	return acc, nil
}

// IsMember reports whether username belongs to any of groups.
func (s *Service) IsMember(ctx context.Context, username string, groups ...string) (bool, error) {
	member, err := s.store.IsMember(ctx, username, groups...)
	if err != nil {
		return false, apperr.Internal(err)
	}

	return member, nil
}

// MemberEmails returns the email addresses of the active members of group.
func (s *Service) MemberEmails(ctx context.Context, group string) ([]string, error) {
	emails, err := s.store.GroupMemberEmails(ctx, group)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return emails, nil
}

// RequireAdmin fails with an authorization error unless username is in the admin group.
func (s *Service) RequireAdmin(ctx context.Context, username string) error {
	admin, err := s.IsMember(ctx, username, db.AdminGroup)
	if err != nil {
		return err
	}

	if !admin {
		return apperr.Authorization("%s is not an administrator", username)
	}

	return nil
}

func (s *Service) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", apperr.Internal(err)
	}

	return string(h), nil
}

func (s *Service) checkGroupsExist(ctx context.Context, groups []string) error {
	missing, err := s.store.MissingGroups(ctx, groups)
	if err != nil {
		return apperr.Internal(err)
	}

	if len(missing) > 0 {
		return apperr.Validation("unknown group(s): %s", strings.Join(missing, ", "))
	}

	return nil
}

// statusOf maps a checked accountStatus onto a status; empty means Active.
func statusOf(s string) db.AccountStatus {
	if db.AccountStatus(s) == db.StatusDisabled {
		return db.StatusDisabled
	}

	return db.StatusActive
}

// checkPassword applies the password rule to a password about to be stored.
func checkPassword(password string) error {
	return validate.Var("password", password, "required,password")
}
