package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/magabrotheeeer/blog-auth/internal/lib/password"
	"github.com/magabrotheeeer/blog-auth/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/blog-auth/internal/lib/session"
	"github.com/magabrotheeeer/blog-auth/internal/models"
	services "github.com/magabrotheeeer/blog-auth/internal/services/auth"
	"github.com/magabrotheeeer/blog-auth/internal/storage"
)

// Мок для UserRepository
type UserRepoMock struct {
	mock.Mock
}

func (m *UserRepoMock) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) CreateUser(ctx context.Context, user models.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

// Мок для RevocationStore
type RevocationMock struct {
	mock.Mock
}

func (m *RevocationMock) SessionsRevokedAt(ctx context.Context, userUID string) (time.Time, bool, error) {
	args := m.Called(ctx, userUID)
	return args.Get(0).(time.Time), args.Bool(1), args.Error(2)
}

// Мок для EventPublisher
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, event rabbitmq.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type fixture struct {
	users       *UserRepoMock
	revocations *RevocationMock
	events      *PublisherMock
	hasher      *password.Hasher
	sessions    *session.Manager
	svc         *services.AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:       new(UserRepoMock),
		revocations: new(RevocationMock),
		events:      new(PublisherMock),
		hasher:      password.NewHasher(bcrypt.MinCost),
	}
	var err error
	f.sessions, err = session.NewManager(session.Options{
		CookieName: "blog_session",
		SecretKey:  "0123456789abcdef0123456789abcdef",
		TTL:        time.Hour,
	})
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	f.svc, err = services.NewAuthService(log, f.users, f.hasher, f.sessions, f.revocations, f.events)
	require.NoError(t, err)
	return f
}

func (f *fixture) storedUser(t *testing.T, plaintext string) *models.User {
	t.Helper()
	hash, err := f.hasher.Hash(plaintext)
	require.NoError(t, err)
	img := "https://cdn.example.com/u1.png"
	return &models.User{
		UUID:         "u-1",
		Email:        "writer@example.com",
		PasswordHash: hash,
		Name:         "Writer",
		Image:        &img,
		Role:         models.RoleUser,
	}
}

func TestAuthService_Authenticate(t *testing.T) {
	f := newFixture(t)
	user := f.storedUser(t, "Passw0rd")

	tests := []struct {
		name       string
		creds      services.Credentials
		setupMocks func(r *UserRepoMock)
		wantErr    error
		wantFault  bool
	}{
		{
			name:  "successful sign-in",
			creds: services.Credentials{Email: "writer@example.com", Password: "Passw0rd"},
			setupMocks: func(r *UserRepoMock) {
				r.On("FindUserByEmail", mock.Anything, "writer@example.com").Return(user, nil).Once()
			},
		},
		{
			name:  "wrong password",
			creds: services.Credentials{Email: "writer@example.com", Password: "Passw0rd!"},
			setupMocks: func(r *UserRepoMock) {
				r.On("FindUserByEmail", mock.Anything, "writer@example.com").Return(user, nil).Once()
			},
			wantErr: services.ErrInvalidCredentials,
		},
		{
			name:  "unknown email",
			creds: services.Credentials{Email: "ghost@example.com", Password: "Passw0rd"},
			setupMocks: func(r *UserRepoMock) {
				r.On("FindUserByEmail", mock.Anything, "ghost@example.com").Return(nil, storage.ErrUserNotFound).Once()
			},
			wantErr: services.ErrInvalidCredentials,
		},
		{
			name:  "store fault",
			creds: services.Credentials{Email: "writer@example.com", Password: "Passw0rd"},
			setupMocks: func(r *UserRepoMock) {
				r.On("FindUserByEmail", mock.Anything, "writer@example.com").Return(nil, errors.New("connection refused")).Once()
			},
			wantFault: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.users.ExpectedCalls = nil
			f.users.Calls = nil
			tt.setupMocks(f.users)

			sess, identity, err := f.svc.Authenticate(context.Background(), session.Session{}, tt.creds)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, "invalid email or password", err.Error())
				assert.False(t, sess.Authenticated())
				assert.True(t, identity.IsZero())
			case tt.wantFault:
				require.Error(t, err)
				assert.NotErrorIs(t, err, services.ErrInvalidCredentials)
				assert.False(t, sess.Authenticated())
			default:
				require.NoError(t, err)
				assert.True(t, sess.Authenticated())
				assert.True(t, sess.Modified())
				assert.Equal(t, user.Identity(), identity)
				assert.Equal(t, identity, sess.Identity)
				assert.Equal(t, "https://cdn.example.com/u1.png", identity.Image)
			}
			f.users.AssertExpectations(t)
		})
	}
}

func TestAuthService_Authenticate_FreshSession(t *testing.T) {
	f := newFixture(t)
	user := f.storedUser(t, "Passw0rd")
	f.users.On("FindUserByEmail", mock.Anything, user.Email).Return(user, nil).Twice()

	creds := services.Credentials{Email: user.Email, Password: "Passw0rd"}
	first, _, err := f.svc.Authenticate(context.Background(), session.Session{}, creds)
	require.NoError(t, err)
	second, _, err := f.svc.Authenticate(context.Background(), first, creds)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestAuthService_Register(t *testing.T) {
	tests := []struct {
		name        string
		req         services.RegisterRequest
		setupMocks  func(r *UserRepoMock, p *PublisherMock)
		wantErr     error
		wantFields  []string
		wantSession bool
	}{
		{
			name: "successful registration",
			req:  services.RegisterRequest{Email: "new@example.com", Password: "Passw0rd", Name: "New"},
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {
				r.On("CreateUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
					return u.Email == "new@example.com" &&
						u.Role == models.RoleUser &&
						u.PasswordHash != "Passw0rd" &&
						bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("Passw0rd")) == nil
				})).Return("u-new", nil).Once()
				p.On("Publish", mock.Anything, mock.MatchedBy(func(e rabbitmq.Event) bool {
					return e.Type == rabbitmq.RoutingUserRegistered && e.UserUID == "u-new"
				})).Return(nil).Once()
			},
			wantSession: true,
		},
		{
			name: "publish failure does not fail registration",
			req:  services.RegisterRequest{Email: "new@example.com", Password: "Passw0rd", Name: "New"},
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {
				r.On("CreateUser", mock.Anything, mock.Anything).Return("u-new", nil).Once()
				p.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
			},
			wantSession: true,
		},
		{
			name:       "invalid input",
			req:        services.RegisterRequest{Email: "not-an-email", Password: "password", Name: ""},
			setupMocks: func(*UserRepoMock, *PublisherMock) {},
			wantFields: []string{"email", "password", "name"},
		},
		{
			name:       "multi-byte password over 72 bytes",
			req:        services.RegisterRequest{Email: "new@example.com", Password: strings.Repeat("пароль", 6) + "1", Name: "New"},
			setupMocks: func(*UserRepoMock, *PublisherMock) {},
			wantFields: []string{"password"},
		},
		{
			name: "email taken",
			req:  services.RegisterRequest{Email: "writer@example.com", Password: "Passw0rd", Name: "Dup"},
			setupMocks: func(r *UserRepoMock, _ *PublisherMock) {
				r.On("CreateUser", mock.Anything, mock.Anything).Return("", storage.ErrEmailTaken).Once()
			},
			wantErr: services.ErrEmailTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setupMocks(f.users, f.events)

			sess, identity, err := f.svc.Register(context.Background(), session.Session{}, tt.req)

			switch {
			case tt.wantFields != nil:
				var verr *services.ValidationError
				require.ErrorAs(t, err, &verr)
				for _, field := range tt.wantFields {
					assert.Contains(t, verr.Result.Fields(), field)
				}
				f.users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, sess.Authenticated())
			default:
				require.NoError(t, err)
				assert.True(t, sess.Authenticated())
				assert.Equal(t, "u-new", identity.ID)
				assert.Equal(t, models.RoleUser, identity.Role)
			}
			f.users.AssertExpectations(t)
			f.events.AssertExpectations(t)
		})
	}
}

func TestAuthService_IsAuthenticated(t *testing.T) {
	identity := models.Identity{ID: "u-1", Email: "writer@example.com", Name: "Writer", Role: models.RoleUser}

	tests := []struct {
		name       string
		signedIn   bool
		policy     services.Policy
		revokedAt  time.Duration
		revoked    bool
		revokeErr  error
		wantKind   services.OutcomeKind
		wantTarget string
	}{
		{
			name:     "no session",
			wantKind: services.Unauthenticated,
		},
		{
			name:       "no session with failure redirect",
			policy:     services.Policy{FailureRedirect: "/signin"},
			wantKind:   services.RedirectRequested,
			wantTarget: "/signin",
		},
		{
			name:     "valid session",
			signedIn: true,
			wantKind: services.Authenticated,
		},
		{
			name:       "valid session with success redirect",
			signedIn:   true,
			policy:     services.Policy{SuccessRedirect: "/", FailureRedirect: "/signin"},
			wantKind:   services.RedirectRequested,
			wantTarget: "/",
		},
		{
			name:      "revoked before issue is still valid",
			signedIn:  true,
			revoked:   true,
			revokedAt: -time.Minute,
			wantKind:  services.Authenticated,
		},
		{
			name:      "issued before revocation",
			signedIn:  true,
			revoked:   true,
			revokedAt: time.Minute,
			wantKind:  services.Unauthenticated,
		},
		{
			name:      "revocation store fault",
			signedIn:  true,
			revokeErr: errors.New("redis down"),
			wantKind:  services.CheckFailed,
		},
		{
			name:      "revocation store fault ignores redirects",
			signedIn:  true,
			policy:    services.Policy{SuccessRedirect: "/", FailureRedirect: "/signin"},
			revokeErr: errors.New("redis down"),
			wantKind:  services.CheckFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			var sess session.Session
			if tt.signedIn {
				sess = f.sessions.Set(session.Session{}, identity)
				f.revocations.On("SessionsRevokedAt", mock.Anything, "u-1").
					Return(sess.IssuedAt.Add(tt.revokedAt), tt.revoked, tt.revokeErr).Once()
			}

			out := f.svc.IsAuthenticated(context.Background(), sess, tt.policy)

			assert.Equal(t, tt.wantKind, out.Kind)
			assert.Equal(t, tt.wantTarget, out.Target)
			switch tt.wantKind {
			case services.Authenticated:
				assert.Equal(t, identity, out.Identity)
				assert.NoError(t, out.Err)
			case services.CheckFailed:
				assert.ErrorIs(t, out.Err, tt.revokeErr)
				assert.True(t, out.Identity.IsZero())
			default:
				assert.NoError(t, out.Err)
			}
			f.revocations.AssertExpectations(t)
		})
	}
}

func TestCredentials_LogValue(t *testing.T) {
	creds := services.Credentials{Email: "writer@example.com", Password: "Passw0rd"}
	assert.NotContains(t, creds.LogValue().String(), "Passw0rd")

	req := services.RegisterRequest{Email: "writer@example.com", Password: "Passw0rd", Name: "W"}
	assert.NotContains(t, req.LogValue().String(), "Passw0rd")
}
