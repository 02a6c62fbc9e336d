// Package services содержит логику управления учётной записью:
// смену пароля и редактирование профиля.
package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/blog-auth/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/blog-auth/internal/lib/sl"
	"github.com/magabrotheeeer/blog-auth/internal/lib/validation"
	"github.com/magabrotheeeer/blog-auth/internal/models"
)

var (
	// ErrForbidden - пользователь пытается изменить чужую учётную запись.
	ErrForbidden = errors.New("not allowed to act on another user")
	// ErrUserNotFound - учётная запись не найдена.
	ErrUserNotFound = errors.New("user not found")
	// ErrCurrentPasswordIncorrect - текущий пароль не совпал.
	ErrCurrentPasswordIncorrect = errors.New("current password incorrect")
)

// ValidationError - входные данные не прошли проверку.
type ValidationError struct {
	Result validation.Result
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// UserRepository описывает контракт для работы с учётными записями в базе данных.
type UserRepository interface {
	FindUserByID(ctx context.Context, userUID string) (*models.User, error)
	UpdateUserPassword(ctx context.Context, userUID, oldHash, newHash string) error
	UpdateUserProfile(ctx context.Context, userUID string, upd models.ProfileUpdate) (*models.User, error)
	GetProfile(ctx context.Context, userUID string) (*models.Profile, error)
}

// PasswordHasher хэширует и проверяет пароли.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// Cache - кэш профилей и отметок отзыва сессий.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
	RevokeSessions(ctx context.Context, userUID string, at time.Time, ttl time.Duration) error
}

// EventPublisher публикует события учётных записей.
type EventPublisher interface {
	Publish(ctx context.Context, event rabbitmq.Event) error
}

// Options - настройки AccountService.
type Options struct {
	// RevokeSessions включает отзыв остальных сессий после смены пароля.
	RevokeSessions bool
	// SessionTTL - время жизни отметки отзыва.
	SessionTTL time.Duration
	// ProfileTTL - время жизни профиля в кэше.
	ProfileTTL time.Duration
}

// AccountService управляет паролем и профилем пользователя.
type AccountService struct {
	log    *slog.Logger
	users  UserRepository
	hasher PasswordHasher
	cache  Cache
	events EventPublisher
	opts   Options
	now    func() time.Time
}

// NewAccountService создает новый экземпляр AccountService.
func NewAccountService(
	log *slog.Logger,
	users UserRepository,
	hasher PasswordHasher,
	cache Cache,
	events EventPublisher,
	opts Options,
) *AccountService {
	if opts.ProfileTTL <= 0 {
		opts.ProfileTTL = 10 * time.Minute
	}
	return &AccountService{
		log:    log,
		users:  users,
		hasher: hasher,
		cache:  cache,
		events: events,
		opts:   opts,
		now:    time.Now,
	}
}

// Authorize проверяет, что пользователь действует над своей учётной записью.
// Проверка не обращается к хранилищу.
func Authorize(actor models.Identity, targetUID string) error {
	if actor.IsZero() || actor.ID != targetUID {
		return ErrForbidden
	}
	return nil
}

func (s *AccountService) publish(ctx context.Context, op, eventType, userUID string) {
	if err := s.events.Publish(ctx, rabbitmq.NewEvent(eventType, userUID)); err != nil {
		s.log.Warn("failed to publish event",
			slog.String("op", op),
			slog.String("event", eventType),
			slog.String("user_uid", userUID),
			sl.Err(err),
		)
	}
}
