// Package services содержит логику аутентификации: вход по паролю,
// регистрацию и проверку текущей сессии.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/blog-auth/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/blog-auth/internal/lib/session"
	"github.com/magabrotheeeer/blog-auth/internal/lib/sl"
	"github.com/magabrotheeeer/blog-auth/internal/lib/validation"
	"github.com/magabrotheeeer/blog-auth/internal/models"
	"github.com/magabrotheeeer/blog-auth/internal/storage"
)

var (
	// ErrInvalidCredentials - общий ответ на неверную почту или пароль.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken - почта уже зарегистрирована.
	ErrEmailTaken = errors.New("email already registered")
)

// dummyPassword хэшируется при старте, чтобы вход с неизвестной почтой
// выполнял такое же сравнение bcrypt, как и с известной.
const dummyPassword = "dummy-password-for-timing-0"

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user models.User) (string, error)
}

// PasswordHasher хэширует и проверяет пароли.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// SessionIssuer выдаёт сессии.
type SessionIssuer interface {
	Set(s session.Session, identity models.Identity) session.Session
}

// RevocationStore хранит отметки отзыва сессий.
type RevocationStore interface {
	SessionsRevokedAt(ctx context.Context, userUID string) (time.Time, bool, error)
}

// EventPublisher публикует события учётных записей.
type EventPublisher interface {
	Publish(ctx context.Context, event rabbitmq.Event) error
}

// Credentials - данные формы входа.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LogValue скрывает пароль в логах.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(slog.String("email", c.Email), sl.Secret("password"))
}

// RegisterRequest - данные формы регистрации.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max_bytes=72,password_policy"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
}

// LogValue скрывает пароль в логах.
func (r RegisterRequest) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("email", r.Email),
		slog.String("name", r.Name),
		sl.Secret("password"),
	)
}

// ValidationError - входные данные не прошли проверку.
type ValidationError struct {
	Result validation.Result
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// AuthService отвечает за вход, регистрацию и проверку сессии.
type AuthService struct {
	log         *slog.Logger
	users       UserRepository
	hasher      PasswordHasher
	sessions    SessionIssuer
	revocations RevocationStore
	events      EventPublisher
	validate    *validator.Validate
	dummyHash   string
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(
	log *slog.Logger,
	users UserRepository,
	hasher PasswordHasher,
	sessions SessionIssuer,
	revocations RevocationStore,
	events EventPublisher,
) (*AuthService, error) {
	const op = "services.auth.NewAuthService"

	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &AuthService{
		log:         log,
		users:       users,
		hasher:      hasher,
		sessions:    sessions,
		revocations: revocations,
		events:      events,
		validate:    validation.New(),
		dummyHash:   dummy,
	}, nil
}

// ValidateCredentials проверяет форму входа.
func (s *AuthService) ValidateCredentials(creds Credentials) validation.Result {
	return validation.Check(s.validate, creds)
}

// Authenticate проверяет почту и пароль и возвращает новую сессию.
//
// Неизвестная почта и неверный пароль дают одну и ту же ошибку ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, sess session.Session, creds Credentials) (session.Session, models.Identity, error) {
	const op = "services.auth.Authenticate"

	user, err := s.users.FindUserByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			s.hasher.Verify(creds.Password, s.dummyHash)
			return sess, models.Identity{}, ErrInvalidCredentials
		}
		return sess, models.Identity{}, fmt.Errorf("%s: %w", op, err)
	}

	if !s.hasher.Verify(creds.Password, user.PasswordHash) {
		return sess, models.Identity{}, ErrInvalidCredentials
	}

	identity := user.Identity()
	return s.sessions.Set(sess, identity), identity, nil
}

// Register создает пользователя с ролью user и возвращает новую сессию.
func (s *AuthService) Register(ctx context.Context, sess session.Session, req RegisterRequest) (session.Session, models.Identity, error) {
	const op = "services.auth.Register"

	if res := validation.Check(s.validate, req); !res.OK() {
		return sess, models.Identity{}, &ValidationError{Result: res}
	}

	hashed, err := s.hasher.Hash(req.Password)
	if err != nil {
		return sess, models.Identity{}, fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: hashed,
		Name:         req.Name,
		Role:         models.RoleUser,
	}
	uid, err := s.users.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			return sess, models.Identity{}, ErrEmailTaken
		}
		return sess, models.Identity{}, fmt.Errorf("%s: %w", op, err)
	}
	user.UUID = uid

	if err := s.events.Publish(ctx, rabbitmq.NewEvent(rabbitmq.RoutingUserRegistered, uid)); err != nil {
		s.log.Warn("failed to publish event",
			slog.String("op", op),
			slog.String("user_uid", uid),
			sl.Err(err),
		)
	}

	identity := user.Identity()
	return s.sessions.Set(sess, identity), identity, nil
}
