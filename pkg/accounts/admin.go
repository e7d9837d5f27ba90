package accounts

import (
	"context"
	"strings"

	"github.com/matt-steen/taskflow/pkg/apperr"
	"github.com/matt-steen/taskflow/pkg/db"
	"github.com/matt-steen/taskflow/pkg/validate"
	"github.com/rs/zerolog/log"
)

// NewUser is the raw input of CreateUser.
type NewUser struct {
	Username string   `json:"username" validate:"required,username"`
	Password string   `json:"password" validate:"required,password"`
	Email    string   `json:"email" validate:"omitempty,max=255,email"`
	Status   string   `json:"accountStatus" validate:"omitempty,oneof=Active Disabled"`
	Groups   []string `json:"groups" validate:"dive,groupname"`
}

func (u NewUser) normalize() (*db.Account, error) {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.TrimSpace(u.Email)
	u.Status = strings.TrimSpace(u.Status)
	u.Groups = validate.Names(u.Groups)

	if err := validate.Struct(u); err != nil {
		return nil, err
	}

	return &db.Account{Username: u.Username, Email: u.Email, Status: statusOf(u.Status), Groups: u.Groups}, nil
}

// CreateUser adds an account. Only administrators may call it.
func (s *Service) CreateUser(ctx context.Context, actor string, u NewUser) (*db.Account, error) {
	if err := s.RequireAdmin(ctx, actor); err != nil {
		return nil, err
	}

	acc, err := u.normalize()
	if err != nil {
		return nil, err
	}

	if err = s.checkGroupsExist(ctx, acc.Groups); err != nil {
		return nil, err
	}

	if acc.PasswordHash, err = s.hash(u.Password); err != nil {
		return nil, err
	}

	if err = s.store.CreateAccount(ctx, acc); err != nil {
		return nil, db.Classify(err, "user "+acc.Username)
	}

	log.Info().Str("actor", actor).Str("username", acc.Username).Strs("groups", acc.Groups).Msg("created user")

	return s.reload(ctx, acc.Username)
}

// UserUpdate is the raw input of UpdateUser. Nil fields are left unchanged; a non-nil
// Groups replaces the whole group set. The pointer fields are checked one by one because an
// empty email clears the address.
type UserUpdate struct {
	Username string    `json:"username" validate:"required,username"`
	Password *string   `json:"password"`
	Email    *string   `json:"email"`
	Status   *string   `json:"accountStatus"`
	Groups   *[]string `json:"groups" validate:"omitempty,dive,groupname"`
}

func (u UserUpdate) normalize() (db.AccountUpdate, error) {
	u.Username = strings.TrimSpace(u.Username)

	if u.Groups != nil {
		groups := validate.Names(*u.Groups)
		u.Groups = &groups
	}

	if err := validate.Struct(u); err != nil {
		return db.AccountUpdate{}, err
	}

	update := db.AccountUpdate{Username: u.Username, Groups: u.Groups}

	if u.Email != nil {
		email := strings.TrimSpace(*u.Email)
		if err := validate.Var("email", email, "omitempty,max=255,email"); err != nil {
			return db.AccountUpdate{}, err
		}

		update.Email = &email
	}

	if u.Status != nil {
		raw := strings.TrimSpace(*u.Status)
		if err := validate.Var("accountStatus", raw, "omitempty,oneof=Active Disabled"); err != nil {
			return db.AccountUpdate{}, err
		}

		status := statusOf(raw)
		update.Status = &status
	}

	if u.Username == AdminUsername {
		if update.Status != nil && *update.Status != db.StatusActive {
			return db.AccountUpdate{}, apperr.Validation("the %s account cannot be disabled", AdminUsername)
		}

		if update.Groups != nil && !contains(*update.Groups, db.AdminGroup) {
			return db.AccountUpdate{}, apperr.Validation("the %s account cannot leave the %s group", AdminUsername, db.AdminGroup)
		}
	}

	return update, nil
}

// UpdateUser changes an account. Only administrators may call it.
func (s *Service) UpdateUser(ctx context.Context, actor string, u UserUpdate) (*db.Account, error) {
	if err := s.RequireAdmin(ctx, actor); err != nil {
		return nil, err
	}

	update, err := u.normalize()
	if err != nil {
		return nil, err
	}

	if u.Password != nil && *u.Password != "" {
		if err = checkPassword(*u.Password); err != nil {
			return nil, err
		}

		hash, err := s.hash(*u.Password)
		if err != nil {
			return nil, err
		}

		update.PasswordHash = &hash
	}

	if update.Groups != nil {
		if err = s.checkGroupsExist(ctx, *update.Groups); err != nil {
			return nil, err
		}
	}

	if err = s.store.UpdateAccount(ctx, update); err != nil {
		return nil, db.Classify(err, "user "+update.Username)
	}

	log.Info().Str("actor", actor).Str("username", update.Username).Msg("updated user")

	return s.reload(ctx, update.Username)
}

// ProfileUpdate is what users may change about themselves.
type ProfileUpdate struct {
	Password *string `json:"password"`
	Email    *string `json:"email"`
}

// UpdateProfile changes the password and/or email of the acting user.
func (s *Service) UpdateProfile(ctx context.Context, actor string, p ProfileUpdate) (*db.Account, error) {
	update := db.AccountUpdate{Username: actor}

	if p.Email != nil {
		email := strings.TrimSpace(*p.Email)
		if err := validate.Var("email", email, "omitempty,max=255,email"); err != nil {
			return nil, err
		}

		update.Email = &email
	}

	if p.Password != nil {
		if err := checkPassword(*p.Password); err != nil {
			return nil, err
		}

		hash, err := s.hash(*p.Password)
		if err != nil {
			return nil, err
		}

		update.PasswordHash = &hash
	}

	if err := s.store.UpdateAccount(ctx, update); err != nil {
		return nil, db.Classify(err, "user "+actor)
	}

	return s.reload(ctx, actor)
}

// ListUsers returns every account. Only administrators may call it.
func (s *Service) ListUsers(ctx context.Context, actor string) ([]*db.Account, error) {
	if err := s.RequireAdmin(ctx, actor); err != nil {
		return nil, err
	}

	accounts, err := s.store.GetAccounts(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return accounts, nil
}

// CreateGroup adds a group. Only administrators may call it.
func (s *Service) CreateGroup(ctx context.Context, actor, name string) (string, error) {
	if err := s.RequireAdmin(ctx, actor); err != nil {
		return "", err
	}

	name = strings.TrimSpace(name)
	if err := validate.Var("group_name", name, "required,groupname"); err != nil {
		return "", err
	}

	if err := s.store.CreateGroup(ctx, name); err != nil {
		return "", db.Classify(err, "group "+name)
	}

	log.Info().Str("actor", actor).Str("group", name).Msg("created group")

	return name, nil
}

// ListGroups returns every group name. Any authenticated user may call it; the application
// forms need the names for the permit fields.
func (s *Service) ListGroups(ctx context.Context) ([]string, error) {
	groups, err := s.store.GetGroups(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return groups, nil
}

// EnsureAdmin creates the admin account with password when there are no accounts at all.
// It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, password string) (bool, error) {
	count, err := s.store.CountAccounts(ctx)
	if err != nil {
		return false, apperr.Internal(err)
	}

	if count > 0 {
		return false, nil
	}

	if err = checkPassword(password); err != nil {
		return false, err
	}

	hash, err := s.hash(password)
	if err != nil {
		return false, err
	}

	acc := &db.Account{
		Username:     AdminUsername,
		PasswordHash: hash,
		Status:       db.StatusActive,
		Groups:       []string{db.AdminGroup},
	}
	if err = s.store.CreateAccount(ctx, acc); err != nil {
		return false, db.Classify(err, "user "+AdminUsername)
	}

	log.Warn().Msg("created initial admin account")

	return true, nil
}

func (s *Service) reload(ctx context.Context, username string) (*db.Account, error) {
	acc, err := s.store.GetAccount(ctx, username)
	if err != nil {
		return nil, db.Classify(err, "user "+username)
	}

	return acc, nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}

	return false
}
