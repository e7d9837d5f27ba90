package accounts_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/matt-steen/taskflow/pkg/accounts"
	"github.com/matt-steen/taskflow/pkg/apperr"
	"github.com/matt-steen/taskflow/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const adminPassword = "admin123!"

func getService(t *testing.T) *accounts.Service {
	t.Helper()

	database, err := db.NewDatabase(context.Background(), db.Config{
		Driver: db.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "test.sqlite"),
	})
	require.NoError(t, err)

	t.Cleanup(func() { database.Close() })

	svc := accounts.NewService(database, accounts.WithHashCost(bcrypt.MinCost))

	created, err := svc.EnsureAdmin(context.Background(), adminPassword)
	require.NoError(t, err)
	require.True(t, created)

	return svc
}

func strPtr(s string) *string {
	return &s
}

func TestEnsureAdminOnlyOnce(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	svc := getService(t)

	created, err := svc.EnsureAdmin(context.Background(), "other12!")
	assert.Nil(err)
	assert.False(created)

	_, err = svc.Authenticate(context.Background(), accounts.AdminUsername, adminPassword)
	assert.Nil(err)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()
	svc := getService(t)

	_, err := svc.CreateUser(ctx, accounts.AdminUsername, accounts.NewUser{
		Username: "bob", Password: "bob123!!", Email: "bob@example.com",
	})
	require.NoError(t, err)

	acc, err := svc.Authenticate(ctx, " bob ", "bob123!!")
	assert.Nil(err)
	assert.Equal("bob", acc.Username)
	assert.Equal(db.StatusActive, acc.Status)

	_, wrongPassword := svc.Authenticate(ctx, "bob", "nope123!")
	_, unknownUser := svc.Authenticate(ctx, "carol", "bob123!!")
	assert.True(apperr.Is(wrongPassword, apperr.KindAuthentication))
	assert.True(apperr.Is(unknownUser, apperr.KindAuthentication))
	assert.Equal(apperr.From(wrongPassword).Remark, apperr.From(unknownUser).Remark)

	_, err = svc.UpdateUser(ctx, accounts.AdminUsername, accounts.UserUpdate{
		Username: "bob", Status: strPtr("Disabled"),
	})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "bob", "bob123!!")
	assert.True(apperr.Is(err, apperr.KindAuthentication))

	_, err = svc.Active(ctx, "bob")
	assert.True(apperr.Is(err, apperr.KindAuthentication))
}

func TestCreateUser(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()
	svc := getService(t)

	_, err := svc.CreateGroup(ctx, accounts.AdminUsername, "pm")
	require.NoError(t, err)

	acc, err := svc.CreateUser(ctx, accounts.AdminUsername, accounts.NewUser{
		Username: "alice", Password: "alice12!", Groups: []string{"pm", "pm"},
	})
	assert.Nil(err)
	assert.Equal([]string{"pm"}, acc.Groups)

	_, err = svc.CreateUser(ctx, accounts.AdminUsername, accounts.NewUser{
		Username: "alice", Password: "alice12!",
	})
	assert.True(apperr.Is(err, apperr.KindIntegrity))

	_, err = svc.CreateUser(ctx, accounts.AdminUsername, accounts.NewUser{
		Username: "dave", Password: "short",
	})
	assert.True(apperr.Is(err, apperr.KindValidation))

	_, err = svc.CreateUser(ctx, accounts.AdminUsername, accounts.NewUser{
		Username: "dave", Password: "dave123!", Groups: []string{"qa"},
	})
	assert.True(apperr.Is(err, apperr.KindValidation))

	_, err = svc.CreateUser(ctx, "alice", accounts.NewUser{
		Username: "dave", Password: "dave123!",
	})
	assert.True(apperr.Is(err, apperr.KindAuthorization))
}

func TestUpdateUserProtectsAdmin(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()
	svc := getService(t)

	_, err := svc.UpdateUser(ctx, accounts.AdminUsername, accounts.UserUpdate{
		Username: accounts.AdminUsername, Status: strPtr("Disabled"),
	})
	assert.True(apperr.Is(err, apperr.KindValidation))

	_, err = svc.UpdateUser(ctx, accounts.AdminUsername, accounts.UserUpdate{
		Username: accounts.AdminUsername, Groups: &[]string{},
	})
	assert.True(apperr.Is(err, apperr.KindValidation))

	_, err = svc.UpdateUser(ctx, accounts.AdminUsername, accounts.UserUpdate{
		Username: "ghost", Email: strPtr("ghost@example.com"),
	})
	assert.True(apperr.Is(err, apperr.KindNotFound))

	acc, err := svc.UpdateUser(ctx, accounts.AdminUsername, accounts.UserUpdate{
		Username: accounts.AdminUsername, Email: strPtr("root@example.com"),
	})
	assert.Nil(err)
	assert.Equal("root@example.com", acc.Email)
	assert.Equal([]string{db.AdminGroup}, acc.Groups)
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()
	svc := getService(t)

	_, err := svc.UpdateProfile(ctx, accounts.AdminUsername, accounts.ProfileUpdate{Password: strPtr("new123!!")})
	assert.Nil(err)

	_, err = svc.Authenticate(ctx, accounts.AdminUsername, adminPassword)
	assert.True(apperr.Is(err, apperr.KindAuthentication))

	_, err = svc.Authenticate(ctx, accounts.AdminUsername, "new123!!")
	assert.Nil(err)

	_, err = svc.UpdateProfile(ctx, accounts.AdminUsername, accounts.ProfileUpdate{Email: strPtr("nope")})
	assert.True(apperr.Is(err, apperr.KindValidation))
}

func TestGroups(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()
	svc := getService(t)

	_, err := svc.CreateGroup(ctx, accounts.AdminUsername, "dev")
	assert.Nil(err)

	_, err = svc.CreateGroup(ctx, accounts.AdminUsername, "dev")
	assert.True(apperr.Is(err, apperr.KindIntegrity))

	_, err = svc.CreateGroup(ctx, accounts.AdminUsername, "bad name")
	assert.True(apperr.Is(err, apperr.KindValidation))

	groups, err := svc.ListGroups(ctx)
	assert.Nil(err)
	assert.Equal([]string{"admin", "dev"}, groups)

	_, err = svc.CreateUser(ctx, accounts.AdminUsername, accounts.NewUser{
		Username: "erin", Password: "erin123!", Email: "erin@example.com", Groups: []string{"dev"},
	})
	require.NoError(t, err)

	member, err := svc.IsMember(ctx, "erin", "dev")
	assert.Nil(err)
	assert.True(member)

	emails, err := svc.MemberEmails(ctx, "dev")
	assert.Nil(err)
	assert.Equal([]string{"erin@example.com"}, emails)

	users, err := svc.ListUsers(ctx, accounts.AdminUsername)
	assert.Nil(err)
	assert.Equal(2, len(users))

	_, err = svc.ListUsers(ctx, "erin")
	assert.True(apperr.Is(err, apperr.KindAuthorization))
}
