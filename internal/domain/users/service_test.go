package users

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Togather-Foundation/checkin/internal/audit"
	"github.com/Togather-Foundation/checkin/internal/auth"
	"github.com/Togather-Foundation/checkin/internal/domain/errs"
	"github.com/Togather-Foundation/checkin/internal/storage"
)

// memRepo is an in-memory Repository that records transaction outcomes.
type memRepo struct {
	mu        sync.Mutex
	users     map[int64]*User
	nextID    int64
	createErr error
	beginErr  error

	commitCalled   bool
	rollbackCalled bool
}

func newMemRepo() *memRepo {
	return &memRepo{users: map[int64]*User{}, nextID: 1}
}

type memCommitter struct {
	repo *memRepo
	done bool
}

func (c *memCommitter) Commit(ctx context.Context) error {
	c.repo.commitCalled = true
	c.done = true
	return nil
}

func (c *memCommitter) Rollback(ctx context.Context) error {
	if c.done {
		return nil
	}
	c.repo.rollbackCalled = true
	return nil
}

func (r *memRepo) BeginTx(ctx context.Context) (Repository, storage.TxCommitter, error) {
	if r.beginErr != nil {
		return nil, nil, r.beginErr
	}
	return r, &memCommitter{repo: r}, nil
}

func (r *memRepo) GetByID(ctx context.Context, id int64) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, ErrUserNotFound
}

func (r *memRepo) find(match func(*User) bool) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *memRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.find(func(u *User) bool { return u.Email == email })
}

func (r *memRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.find(func(u *User) bool { return u.Username == username })
}

func (r *memRepo) List(ctx context.Context) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]User, 0, len(r.users))
	for id := int64(1); id < r.nextID; id++ {
		if u, ok := r.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *memRepo) Create(ctx context.Context, params CreateParams) (*User, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	created := params.CreatedOn
	u := &User{
		ID:           r.nextID,
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		CreatedOn:    &created,
	}
	r.users[u.ID] = u
	r.nextID++
	copied := *u
	return &copied, nil
}

func (r *memRepo) Update(ctx context.Context, id int64, params UpdateParams) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.Username = params.Username
	u.Email = params.Email
	u.PasswordHash = params.PasswordHash
	u.Role = params.Role
	copied := *u
	return &copied, nil
}

func (r *memRepo) Delete(ctx context.Context, id int64) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	delete(r.users, id)
	return u, nil
}

// plainHasher avoids bcrypt cost in unit tests.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", auth.ErrEmptyPassword
	}
	return "hashed:" + password, nil
}

func (plainHasher) Verify(password, hash string) bool {
	return hash == "hashed:"+password
}

func newTestService(repo Repository, allowAdmin bool) (*Service, *auth.JWTManager) {
	tokens := auth.NewJWTManager("test-secret", 2*time.Hour, "test")
	svc := NewService(repo, plainHasher{}, tokens, audit.Nop(), allowAdmin, zerolog.Nop())
	return svc, tokens
}

func TestRegister_Success(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(repo, false)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	svc.now = func() time.Time { return fixed }

	user, err := svc.Register(context.Background(), RegisterParams{
		Username: " alice ",
		Email:    "a@x.com",
		Password: "p",
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, auth.RoleHacker, user.Role)
	require.NotNil(t, user.CreatedOn)
	assert.Equal(t, fixed.UTC(), *user.CreatedOn)
	assert.Equal(t, time.UTC, user.CreatedOn.Location())
	assert.Equal(t, "hashed:p", user.PasswordHash)
	assert.True(t, repo.commitCalled)
}

func TestRegister_InvalidEmail(t *testing.T) {
	svc, _ := newTestService(newMemRepo(), false)

	_, err := svc.Register(context.Background(), RegisterParams{Username: "alice", Email: "not-an-email", Password: "p"})
	assert.ErrorIs(t, err, ErrInvalidEmail)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestRegister_MissingFields(t *testing.T) {
	svc, _ := newTestService(newMemRepo(), false)

	_, err := svc.Register(context.Background(), RegisterParams{Username: "  ", Email: "a@x.com", Password: "p"})
	require.ErrorIs(t, err, errs.ErrValidation)
	assert.Contains(t, err.Error(), "username is required")

	_, err = svc.Register(context.Background(), RegisterParams{Username: "alice", Email: "a@x.com"})
	require.ErrorIs(t, err, errs.ErrValidation)
	assert.Contains(t, err.Error(), "password is required")
}

func TestPasswordByteLimit(t *testing.T) {
	long := strings.Repeat("é", 40)
	ctx := context.Background()

	svc := NewService(newMemRepo(), auth.NewBcryptHasher(bcrypt.MinCost), auth.NewJWTManager("s", time.Hour, "test"), audit.Nop(), false, zerolog.Nop())

	_, err := svc.Register(ctx, RegisterParams{Username: "alice", Email: "a@x.com", Password: long})
	assert.ErrorIs(t, err, ErrPasswordTooLong)
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.CreateUser(ctx, CreateUserParams{Username: "bob", Email: "b@x.com", Password: long})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.EnsureAdmin(ctx, "root", "r@x.com", long)
	assert.ErrorIs(t, err, errs.ErrValidation)

	user, err := svc.Register(ctx, RegisterParams{Username: "carol", Email: "c@x.com", Password: strings.Repeat("é", 36)})
	require.NoError(t, err)

	_, err = svc.UpdateUser(ctx, user.ID, UpdateUserParams{Username: "carol", Email: "c@x.com", Password: long})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestRegister_StripsMarkupFromUsername(t *testing.T) {
	svc, _ := newTestService(newMemRepo(), false)

	user, err := svc.Register(context.Background(), RegisterParams{Username: " <b>alice</b> ", Email: "a@x.com", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = svc.Register(context.Background(), RegisterParams{Username: "<script>x</script>", Email: "b@x.com", Password: "p"})
	require.ErrorIs(t, err, errs.ErrValidation)
	assert.Contains(t, err.Error(), "username is required")
}

func TestRegister_Conflicts(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(repo, false)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterParams{Username: "alice", Email: "a@x.com", Password: "p"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterParams{Username: "bob", Email: "a@x.com", Password: "p"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.ErrorIs(t, err, errs.ErrConflict)
	assert.Contains(t, err.Error(), "email")

	_, err = svc.Register(ctx, RegisterParams{Username: "alice", Email: "b@x.com", Password: "p"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
	assert.Contains(t, err.Error(), "username")
}

func TestRegister_StoreRaceRollsBack(t *testing.T) {
	repo := newMemRepo()
	repo.createErr = ErrDuplicateUser
	svc, _ := newTestService(repo, false)

	_, err := svc.Register(context.Background(), RegisterParams{Username: "alice", Email: "a@x.com", Password: "p"})
	assert.ErrorIs(t, err, ErrDuplicateUser)
	assert.ErrorIs(t, err, errs.ErrConflict)
	assert.False(t, repo.commitCalled)
	assert.True(t, repo.rollbackCalled)
}

func TestRegister_BeginTxFailure(t *testing.T) {
	repo := newMemRepo()
	repo.beginErr = errors.New("pool closed")
	svc, _ := newTestService(repo, false)

	_, err := svc.Register(context.Background(), RegisterParams{Username: "alice", Email: "a@x.com", Password: "p"})
	require.Error(t, err)
	assert.Nil(t, errs.Kind(err))
}

func TestRegister_AdminRole(t *testing.T) {
	svc, _ := newTestService(newMemRepo(), false)
	_, err := svc.Register(context.Background(), RegisterParams{Username: "eve", Email: "e@x.com", Password: "p", Role: "admin"})
	assert.ErrorIs(t, err, ErrAdminSelfAssign)
	assert.ErrorIs(t, err, errs.ErrForbidden)

	permissive, _ := newTestService(newMemRepo(), true)
	user, err := permissive.Register(context.Background(), RegisterParams{Username: "eve", Email: "e@x.com", Password: "p", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, user.Role)
}

func TestRegister_UnknownRole(t *testing.T) {
	svc, _ := newTestService(newMemRepo(), false)
	_, err := svc.Register(context.Background(), RegisterParams{Username: "eve", Email: "e@x.com", Password: "p", Role: "superuser"})
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestLogin(t *testing.T) {
	repo := newMemRepo()
	svc, tokens := newTestService(repo, false)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterParams{Username: "alice", Email: "a@x.com", Password: "p"})
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		token, err := svc.Login(ctx, "a@x.com", "p")
		require.NoError(t, err)
		assert.Equal(t, "bearer", token.TokenType)
		assert.Equal(t, 2*time.Hour, token.ExpiresIn)

		claims, err := tokens.Validate(token.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.Equal(t, "alice", claims.Subject)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "a@x.com", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.ErrorIs(t, err, errs.ErrUnauthorized)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login(ctx, "ghost@x.com", "p")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("blank input", func(t *testing.T) {
		_, err := svc.Login(ctx, "", "")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestAdminCreateUser(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(repo, false)

	user, err := svc.CreateUser(context.Background(), CreateUserParams{Username: "root", Email: "r@x.com", Password: "p", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, user.Role)

	plain, err := svc.CreateUser(context.Background(), CreateUserParams{Username: "h", Email: "h@x.com", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleHacker, plain.Role)

	_, err = svc.CreateUser(context.Background(), CreateUserParams{Username: "root", Email: "other@x.com", Password: "p"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestUpdateUser(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(repo, false)
	ctx := context.Background()

	alice, err := svc.Register(ctx, RegisterParams{Username: "alice", Email: "a@x.com", Password: "p"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterParams{Username: "bob", Email: "b@x.com", Password: "p"})
	require.NoError(t, err)

	t.Run("overwrites fields", func(t *testing.T) {
		updated, err := svc.UpdateUser(ctx, alice.ID, UpdateUserParams{Username: "alice2", Email: "a2@x.com", Password: "new", Role: "admin"})
		require.NoError(t, err)
		assert.Equal(t, "alice2", updated.Username)
		assert.Equal(t, "a2@x.com", updated.Email)
		assert.Equal(t, "hashed:new", updated.PasswordHash)
		assert.Equal(t, auth.RoleAdmin, updated.Role)
	})

	t.Run("keeping own email is allowed", func(t *testing.T) {
		_, err := svc.UpdateUser(ctx, alice.ID, UpdateUserParams{Username: "alice2", Email: "a2@x.com", Password: "new"})
		require.NoError(t, err)
	})

	t.Run("email of another user", func(t *testing.T) {
		_, err := svc.UpdateUser(ctx, alice.ID, UpdateUserParams{Username: "alice2", Email: "b@x.com", Password: "new"})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := svc.UpdateUser(ctx, 999, UpdateUserParams{Username: "x", Email: "x@x.com", Password: "p"})
		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestDeleteUser(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(repo, false)
	ctx := context.Background()

	alice, err := svc.Register(ctx, RegisterParams{Username: "alice", Email: "a@x.com", Password: "p"})
	require.NoError(t, err)

	deleted, err := svc.DeleteUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", deleted.Username)

	_, err = svc.DeleteUser(ctx, alice.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.GetUser(ctx, alice.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestEnsureAdmin(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(repo, false)
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, "root", "root@x.com", "secret")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureAdmin(ctx, "root", "root@x.com", "secret")
	require.NoError(t, err)
	assert.False(t, created)

	list, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, auth.RoleAdmin, list[0].Role)
}
