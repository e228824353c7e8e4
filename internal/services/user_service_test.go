package services

import (
	"context"
	"strings"
	"testing"

	"github.com/abricot-app/abricot/internal/apperr"
	"github.com/abricot-app/abricot/internal/testutil"
	"github.com/abricot-app/abricot/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_RegisterAndLogin(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	session, err := e.users.Register(ctx, RegisterInput{Name: " Ada ", Email: " Ada@Example.com ", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", session.User.Email)
	assert.Equal(t, "Ada", session.User.Name)
	assert.NotEmpty(t, session.Token)

	login, err := e.users.Login(ctx, LoginInput{Email: "ADA@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, login.User.ID)

	_, err = e.users.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "another one"})
	requireKind(t, err, apperr.KindConflict)
}

func TestUserService_LoginFailuresAreIndistinguishable(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	_, err := e.users.Register(ctx, RegisterInput{Name: "Bob", Email: "bob@example.com", Password: "password1"})
	require.NoError(t, err)

	_, wrongPassword := e.users.Login(ctx, LoginInput{Email: "bob@example.com", Password: "password2"})
	_, unknownEmail := e.users.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "password1"})

	requireKind(t, wrongPassword, apperr.KindUnauthenticated)
	requireKind(t, unknownEmail, apperr.KindUnauthenticated)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestUserService_RegisterValidation(t *testing.T) {
	e := newEnv(t, nil)

	_, err := e.users.Register(context.Background(), RegisterInput{Name: "", Email: "not-an-email", Password: "short"})
	requireKind(t, err, apperr.KindValidation)

	fields := apperr.From(err).Fields
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
}

func TestUserService_PasswordLimitIsInBytes(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	accented := strings.Repeat("é", 40) // 40 runes, 80 bytes

	_, err := e.users.Register(ctx, RegisterInput{Name: "Zoé", Email: "zoe@example.com", Password: accented})
	requireKind(t, err, apperr.KindValidation)
	assert.Contains(t, apperr.From(err).Fields, "password")

	session, err := e.users.Register(ctx, RegisterInput{Name: "Zoé", Email: "zoe@example.com", Password: strings.Repeat("é", 36)})
	require.NoError(t, err)

	err = e.users.ChangePassword(ctx, session.User.ID, ChangePasswordInput{CurrentPassword: strings.Repeat("é", 36), NewPassword: accented})
	requireKind(t, err, apperr.KindValidation)
	assert.Contains(t, apperr.From(err).Fields, "new_password")
}

func TestUserService_SystemIdentityCannotBeClaimed(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	_, err := e.users.Register(ctx, RegisterInput{Name: "Mallory", Email: types.SystemUserEmail, Password: "password1"})
	requireKind(t, err, apperr.KindConflict)

	_, err = e.identity.EnsureID(ctx)
	require.NoError(t, err)

	_, err = e.users.Login(ctx, LoginInput{Email: types.SystemUserEmail, Password: "!"})
	requireKind(t, err, apperr.KindUnauthenticated)
}

func TestUserService_ChangePassword(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	session, err := e.users.Register(ctx, RegisterInput{Name: "Cy", Email: "cy@example.com", Password: "password1"})
	require.NoError(t, err)

	err = e.users.ChangePassword(ctx, session.User.ID, ChangePasswordInput{CurrentPassword: "wrong", NewPassword: "password2"})
	requireKind(t, err, apperr.KindValidation)

	require.NoError(t, e.users.ChangePassword(ctx, session.User.ID, ChangePasswordInput{CurrentPassword: "password1", NewPassword: "password2"}))

	_, err = e.users.Login(ctx, LoginInput{Email: "cy@example.com", Password: "password2"})
	require.NoError(t, err)
}

func TestUserService_UpdateProfile(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	first, err := e.users.Register(ctx, RegisterInput{Name: "Dee", Email: "dee@example.com", Password: "password1"})
	require.NoError(t, err)
	_, err = e.users.Register(ctx, RegisterInput{Name: "Eve", Email: "eve@example.com", Password: "password1"})
	require.NoError(t, err)

	_, err = e.users.UpdateProfile(ctx, first.User.ID, UpdateProfileInput{Email: ptr("EVE@example.com")})
	requireKind(t, err, apperr.KindConflict)

	updated, err := e.users.UpdateProfile(ctx, first.User.ID, UpdateProfileInput{Name: ptr("Dee Dee"), Email: ptr("dd@example.com")})
	require.NoError(t, err)
	assert.Equal(t, "Dee Dee", updated.Name)
	assert.Equal(t, "dd@example.com", updated.Email)
}

func TestUserService_Search(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	caller := testutil.CreateUser(t, e.db, "alice")
	testutil.CreateUser(t, e.db, "alicia")
	testutil.CreateUser(t, e.db, "bob")
	_, err := e.identity.EnsureID(ctx)
	require.NoError(t, err)

	found, err := e.users.Search(ctx, caller.ID, "ALI")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "alicia", found[0].Name)

	found, err = e.users.Search(ctx, caller.ID, "system")
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = e.users.Search(ctx, caller.ID, "a")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestSystemIdentity_ConcurrentFirstUse(t *testing.T) {
	e := newEnv(t, nil)
	other := NewSystemIdentity(e.db)

	ids := make(chan uint, 20)
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		identity := e.identity
		if i%2 == 0 {
			identity = other
		}
		go func() {
			id, err := identity.EnsureID(context.Background())
			ids <- id
			errs <- err
		}()
	}

	var first uint
	for i := 0; i < 20; i++ {
		require.NoError(t, <-errs)
		id := <-ids
		if first == 0 {
			first = id
		}
		assert.Equal(t, first, id)
	}

	var count int64
	require.NoError(t, e.db.Table("users").Where("email = ?", types.SystemUserEmail).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSystemIdentity_CancelledCallerStillProvisions(t *testing.T) {
	e := newEnv(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	id, err := e.identity.EnsureID(ctx)
	require.NoError(t, err)
	assert.NotZero(t, id)

	again, err := NewSystemIdentity(e.db).EnsureID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, again)
}
