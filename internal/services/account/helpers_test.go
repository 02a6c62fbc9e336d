package services_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/magabrotheeeer/blog-auth/internal/cache"
	"github.com/magabrotheeeer/blog-auth/internal/lib/password"
	"github.com/magabrotheeeer/blog-auth/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/blog-auth/internal/models"
	services "github.com/magabrotheeeer/blog-auth/internal/services/account"
	"github.com/magabrotheeeer/blog-auth/internal/storage"
)

// memoryUsers - хранилище в памяти с той же семантикой условного обновления, что у PostgreSQL.
type memoryUsers struct {
	mu       sync.Mutex
	users    map[string]*models.User
	bios     map[string]*string
	writes   int
	profiles int
}

func newMemoryUsers(users ...*models.User) *memoryUsers {
	m := &memoryUsers{users: map[string]*models.User{}, bios: map[string]*string{}}
	for _, u := range users {
		cp := *u
		m.users[u.UUID] = &cp
	}
	return m
}

func (m *memoryUsers) FindUserByID(_ context.Context, uid string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uid]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryUsers) UpdateUserPassword(_ context.Context, uid, oldHash, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	u, ok := m.users[uid]
	if !ok {
		return storage.ErrUserNotFound
	}
	if u.PasswordHash != oldHash {
		return storage.ErrPasswordChanged
	}
	u.PasswordHash = newHash
	return nil
}

func (m *memoryUsers) UpdateUserProfile(_ context.Context, uid string, upd models.ProfileUpdate) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	u, ok := m.users[uid]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	u.Name = upd.Name
	u.Image = upd.Image
	m.bios[uid] = upd.Bio
	cp := *u
	return &cp, nil
}

func (m *memoryUsers) GetProfile(_ context.Context, uid string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles++
	u, ok := m.users[uid]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return &models.Profile{
		UserUUID: u.UUID,
		Email:    u.Email,
		Name:     u.Name,
		Image:    u.Image,
		Role:     u.Role,
		Bio:      m.bios[uid],
	}, nil
}

func (m *memoryUsers) hash(uid string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[uid].PasswordHash
}

// Мок для UserRepository, когда нужно проверить отсутствие обращений к хранилищу.
type UserRepoMock struct {
	mock.Mock
}

func (m *UserRepoMock) FindUserByID(ctx context.Context, uid string) (*models.User, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) UpdateUserPassword(ctx context.Context, uid, oldHash, newHash string) error {
	args := m.Called(ctx, uid, oldHash, newHash)
	return args.Error(0)
}

func (m *UserRepoMock) UpdateUserProfile(ctx context.Context, uid string, upd models.ProfileUpdate) (*models.User, error) {
	args := m.Called(ctx, uid, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) GetProfile(ctx context.Context, uid string) (*models.Profile, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

// Мок для EventPublisher
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, event rabbitmq.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newTestHasher() *password.Hasher {
	return password.NewHasher(bcrypt.MinCost)
}

func newTestCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := &cache.Cache{Db: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func newStoredUser(t *testing.T, h *password.Hasher, uid, plaintext string) *models.User {
	t.Helper()
	hash, err := h.Hash(plaintext)
	require.NoError(t, err)
	return &models.User{
		UUID:         uid,
		Email:        uid + "@example.com",
		PasswordHash: hash,
		Name:         "Writer " + uid,
		Role:         models.RoleUser,
		CreatedAt:    time.Now(),
	}
}

func identityOf(u *models.User) models.Identity {
	return u.Identity()
}

func newService(t *testing.T, users services.UserRepository, events *PublisherMock, revoke bool) (*services.AccountService, *cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	c, mr := newTestCache(t)
	svc := services.NewAccountService(newNoopLogger(), users, newTestHasher(), c, events, services.Options{
		RevokeSessions: revoke,
		SessionTTL:     time.Hour,
		ProfileTTL:     time.Minute,
	})
	return svc, c, mr
}
