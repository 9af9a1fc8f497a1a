package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memRepo struct {
	users  map[int64]*User
	nextID int64
}

func newMemRepo() *memRepo {
	return &memRepo{users: map[int64]*User{}, nextID: 1}
}

func (r *memRepo) GetByID(_ context.Context, id int64) (*User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *memRepo) Create(_ context.Context, u *User) error {
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	u.ID = r.nextID
	r.nextID++
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memRepo) Update(_ context.Context, u *User) error {
	if _, ok := r.users[u.ID]; !ok {
		return ErrUserNotFound
	}
	for _, existing := range r.users {
		if existing.ID != u.ID && existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *memRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memRepo) List(_ context.Context, f UserFilter) ([]User, int, error) {
	var out []User
	for _, u := range r.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Status != "" && u.Status != f.Status {
			continue
		}
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (r *memRepo) StampLogin(_ context.Context, id int64, at time.Time) error {
	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.LastLoginAt = &at
	return nil
}

func (r *memRepo) DashboardStats(context.Context, time.Time, time.Time) (*DashboardStats, error) {
	return &DashboardStats{}, nil
}

func seedUser(t *testing.T, repo *memRepo, email, password string, role Role, status Status) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &User{Name: "Test User", Email: email, PasswordHash: string(hash), Role: role, Status: status}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func newTestService(repo *memRepo) *Service {
	svc := NewService(repo, "test-secret", 12*time.Hour, time.UTC)
	return svc.WithClock(func() time.Time {
		return time.Date(2030, 6, 1, 10, 0, 0, 0, time.UTC)
	})
}

func TestLoginIssuesTokenAndStampsLastLogin(t *testing.T) {
	repo := newMemRepo()
	seedUser(t, repo, "agent@careline.lk", "s3cret-pass", RoleCallAgent, StatusActive)
	svc := newTestService(repo)

	sess, err := svc.Login(context.Background(), "  Agent@careline.lk ", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, RoleCallAgent, sess.User.Role)

	stamped, err := repo.GetByID(context.Background(), sess.User.ID)
	require.NoError(t, err)
	require.NotNil(t, stamped.LastLoginAt)

	claims, err := svc.ParseToken(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, claims.UserID)
	assert.Equal(t, RoleCallAgent, claims.Role)
	assert.Equal(t, "agent@careline.lk", claims.Subject)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	repo := newMemRepo()
	seedUser(t, repo, "agent@careline.lk", "s3cret-pass", RoleCallAgent, StatusActive)
	svc := newTestService(repo)

	_, err := svc.Login(context.Background(), "agent@careline.lk", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "nobody@careline.lk", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRejectsSuspendedAccount(t *testing.T) {
	repo := newMemRepo()
	seedUser(t, repo, "agent@careline.lk", "s3cret-pass", RoleCallAgent, StatusSuspended)
	svc := newTestService(repo)

	_, err := svc.Login(context.Background(), "agent@careline.lk", "s3cret-pass")
	assert.ErrorIs(t, err, ErrAccountSuspended)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	repo := newMemRepo()
	seedUser(t, repo, "agent@careline.lk", "s3cret-pass", RoleCallAgent, StatusActive)
	svc := newTestService(repo)

	sess, err := svc.Login(context.Background(), "agent@careline.lk", "s3cret-pass")
	require.NoError(t, err)

	svc.WithClock(func() time.Time {
		return time.Date(2030, 6, 2, 10, 0, 1, 0, time.UTC)
	})
	_, err = svc.ParseToken(sess.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	svc := newTestService(newMemRepo())
	_, err := svc.ParseToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCreateUserHierarchy(t *testing.T) {
	cases := []struct {
		actor  Role
		target Role
		ok     bool
	}{
		{RoleSuperAdmin, RoleAdmin, true},
		{RoleSuperAdmin, RoleCallAgent, true},
		{RoleSuperAdmin, RoleSuperAdmin, false},
		{RoleAdmin, RoleCallAgent, true},
		{RoleAdmin, RoleAdmin, false},
		{RoleAdmin, RoleSuperAdmin, false},
		{RoleCallAgent, RoleCallAgent, false},
	}

	for _, tc := range cases {
		repo := newMemRepo()
		svc := newTestService(repo)
		_, err := svc.CreateUser(context.Background(), tc.actor, CreateUserInput{
			Name:     "New User",
			Email:    "new@careline.lk",
			Password: "long-enough-pass",
			Role:     tc.target,
		})
		if tc.ok {
			assert.NoError(t, err, "%s creating %s", tc.actor, tc.target)
		} else {
			assert.ErrorIs(t, err, ErrForbidden, "%s creating %s", tc.actor, tc.target)
		}
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	repo := newMemRepo()
	seedUser(t, repo, "taken@careline.lk", "s3cret-pass", RoleCallAgent, StatusActive)
	svc := newTestService(repo)

	_, err := svc.CreateUser(context.Background(), RoleSuperAdmin, CreateUserInput{
		Name:     "Dup",
		Email:    "Taken@careline.lk",
		Password: "long-enough-pass",
		Role:     RoleCallAgent,
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestCreateUserWeakPassword(t *testing.T) {
	svc := newTestService(newMemRepo())
	_, err := svc.CreateUser(context.Background(), RoleSuperAdmin, CreateUserInput{
		Name:     "Weak",
		Email:    "weak@careline.lk",
		Password: "short",
		Role:     RoleCallAgent,
	})
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestUpdateUserAdminCannotTouchAdmins(t *testing.T) {
	repo := newMemRepo()
	other := seedUser(t, repo, "admin2@careline.lk", "s3cret-pass", RoleAdmin, StatusActive)
	svc := newTestService(repo)

	name := "Renamed"
	_, err := svc.UpdateUser(context.Background(), RoleAdmin, other.ID, UpdateUserInput{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateUserAdminCannotPromote(t *testing.T) {
	repo := newMemRepo()
	agent := seedUser(t, repo, "agent@careline.lk", "s3cret-pass", RoleCallAgent, StatusActive)
	svc := newTestService(repo)

	promoted := RoleAdmin
	_, err := svc.UpdateUser(context.Background(), RoleAdmin, agent.ID, UpdateUserInput{Role: &promoted})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateUserSuperAdminSuspendsAgent(t *testing.T) {
	repo := newMemRepo()
	agent := seedUser(t, repo, "agent@careline.lk", "s3cret-pass", RoleCallAgent, StatusActive)
	svc := newTestService(repo)

	suspended := StatusSuspended
	u, err := svc.UpdateUser(context.Background(), RoleSuperAdmin, agent.ID, UpdateUserInput{Status: &suspended})
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, u.Status)
}

func TestDeleteUserGuards(t *testing.T) {
	repo := newMemRepo()
	admin := seedUser(t, repo, "admin@careline.lk", "s3cret-pass", RoleAdmin, StatusActive)
	agent := seedUser(t, repo, "agent@careline.lk", "s3cret-pass", RoleCallAgent, StatusActive)
	svc := newTestService(repo)

	err := svc.DeleteUser(context.Background(), admin.ID, RoleAdmin, admin.ID)
	assert.ErrorIs(t, err, ErrSelfDelete)

	err = svc.DeleteUser(context.Background(), agent.ID, RoleCallAgent, admin.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	err = svc.DeleteUser(context.Background(), admin.ID, RoleAdmin, agent.ID)
	require.NoError(t, err)
	_, err = repo.GetByID(context.Background(), agent.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestChangePassword(t *testing.T) {
	repo := newMemRepo()
	u := seedUser(t, repo, "agent@careline.lk", "old-password", RoleCallAgent, StatusActive)
	svc := newTestService(repo)

	err := svc.ChangePassword(context.Background(), u.ID, "wrong", "new-password-1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = svc.ChangePassword(context.Background(), u.ID, "old-password", "tiny")
	assert.ErrorIs(t, err, ErrWeakPassword)

	err = svc.ChangePassword(context.Background(), u.ID, "old-password", "new-password-1")
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "agent@careline.lk", "new-password-1")
	require.NoError(t, err)
}

func TestParseRoleAndStatus(t *testing.T) {
	for _, s := range []string{"CALL_AGENT", "ADMIN", "SUPER_ADMIN"} {
		r, err := ParseRole(s)
		require.NoError(t, err)
		assert.Equal(t, Role(s), r)
	}
	_, err := ParseRole("ROOT")
	assert.Error(t, err)

	_, err = ParseStatus("banned")
	assert.Error(t, err)
}
