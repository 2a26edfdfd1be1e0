package members_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/goliatone/go-members"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := "file:" + uuid.New().String() + "?mode=memory&cache=shared"
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	require.NoError(t, members.Migrate(context.Background(), db))

	return db
}

func seedUser(t *testing.T, repo members.Users, name, email string) *members.User {
	t.Helper()

	user, err := repo.Register(context.Background(), &members.User{
		Name:         name,
		Email:        email,
		PasswordHash: "$2a$10$fakefakefakefakefakefakefakefakefakefakefakefakefakefa",
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, user.ID)

	return user
}

func TestUsersRepositoryRegister(t *testing.T) {
	repo := members.NewUsersRepository(newTestDB(t))

	user := seedUser(t, repo, "Alice", "alice@x.com")

	assert.Equal(t, members.RoleMember, user.Role)

	found, err := repo.GetByEmail(context.Background(), "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "Alice", found.Name)
}

func TestUsersRepositoryDuplicateEmail(t *testing.T) {
	repo := members.NewUsersRepository(newTestDB(t))

	seedUser(t, repo, "Alice", "alice@x.com")

	_, err := repo.Register(context.Background(), &members.User{
		Name:         "Impostor",
		Email:        "alice@x.com",
		PasswordHash: "irrelevant",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, members.ErrDuplicateEmail)
}

func TestUsersRepositoryGetByEmailMissing(t *testing.T) {
	repo := members.NewUsersRepository(newTestDB(t))

	_, err := repo.GetByEmail(context.Background(), "nobody@x.com")
	require.Error(t, err)
}

func TestUsersRepositoryUpdateRole(t *testing.T) {
	repo := members.NewUsersRepository(newTestDB(t))

	user := seedUser(t, repo, "Alice", "alice@x.com")

	updated, err := repo.UpdateRole(context.Background(), user.ID, members.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, members.RoleAdmin, updated.Role)

	found, err := repo.GetByEmail(context.Background(), "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, members.RoleAdmin, found.Role)
}

func TestUsersRepositoryListAll(t *testing.T) {
	repo := members.NewUsersRepository(newTestDB(t))

	seedUser(t, repo, "Zoe", "zoe@x.com")
	seedUser(t, repo, "Alice", "alice@x.com")

	users, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)

	// ordered by name
	assert.Equal(t, "Alice", users[0].Name)
	assert.Equal(t, "Zoe", users[1].Name)
}

func TestSessionsRepository(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	repo := members.NewSessionsRepository(newTestDB(t), members.WithSessionsClock(clock))

	session := members.NewSession(&members.User{
		ID:   uuid.New(),
		Name: "Alice",
		Role: members.RoleMember,
	}, now, members.SessionTTL)

	require.NoError(t, repo.Put(context.Background(), session))

	t.Run("get returns the stored session", func(t *testing.T) {
		found, err := repo.Get(context.Background(), session.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice", found.Name)
		assert.True(t, found.LoggedIn)
	})

	t.Run("put upserts on the same token", func(t *testing.T) {
		session.Role = members.RoleAdmin
		require.NoError(t, repo.Put(context.Background(), session))

		found, err := repo.Get(context.Background(), session.ID)
		require.NoError(t, err)
		assert.Equal(t, members.RoleAdmin, found.Role)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, repo.Delete(context.Background(), session.ID))
		require.NoError(t, repo.Delete(context.Background(), session.ID))

		_, err := repo.Get(context.Background(), session.ID)
		assert.ErrorIs(t, err, members.ErrSessionNotFound)
	})
}

func TestSessionsRepositoryExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	repo := members.NewSessionsRepository(newTestDB(t), members.WithSessionsClock(clock))

	session := members.NewSession(&members.User{
		ID:   uuid.New(),
		Name: "Alice",
		Role: members.RoleMember,
	}, now, members.SessionTTL)

	require.NoError(t, repo.Put(context.Background(), session))

	now = now.Add(members.SessionTTL + time.Minute)

	_, err := repo.Get(context.Background(), session.ID)
	assert.ErrorIs(t, err, members.ErrSessionNotFound)
}

func TestSessionsRepositoryPurgeExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	repo := members.NewSessionsRepository(newTestDB(t), members.WithSessionsClock(clock))

	live := members.NewSession(&members.User{ID: uuid.New(), Name: "Live"}, now, members.SessionTTL)
	stale := members.NewSession(&members.User{ID: uuid.New(), Name: "Stale"}, now.Add(-2*time.Hour), members.SessionTTL)

	require.NoError(t, repo.Put(context.Background(), live))
	require.NoError(t, repo.Put(context.Background(), stale))

	purged, err := repo.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	_, err = repo.Get(context.Background(), live.ID)
	assert.NoError(t, err)
}

func TestRepositoryManager(t *testing.T) {
	manager := members.NewRepositoryManager(newTestDB(t))

	require.NoError(t, manager.Validate())
	require.NotNil(t, manager.Users())
	require.NotNil(t, manager.Sessions())

	err := manager.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := manager.Users().RegisterTx(ctx, tx, &members.User{
			Name:         "Alice",
			Email:        "alice@x.com",
			PasswordHash: "hash",
		})
		return err
	})
	require.NoError(t, err)

	found, err := manager.Users().GetByEmail(context.Background(), "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice", found.Name)
}