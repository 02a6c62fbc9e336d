package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/blog-auth/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/blog-auth/internal/lib/sl"
	"github.com/magabrotheeeer/blog-auth/internal/lib/validation"
	"github.com/magabrotheeeer/blog-auth/internal/models"
	"github.com/magabrotheeeer/blog-auth/internal/storage"
)

const profileKeyPrefix = "profile:"

// UpdateProfileRequest - данные формы профиля.
type UpdateProfileRequest struct {
	Name  string  `json:"name" validate:"required,min=1,max=100"`
	Bio   *string `json:"bio,omitempty" validate:"omitempty,max=2000"`
	Image *string `json:"image,omitempty" validate:"omitempty,url,max=2048"`
}

// GetProfile возвращает профиль владельца. Профиль кэшируется в redis.
func (s *AccountService) GetProfile(ctx context.Context, actor models.Identity, targetUID string) (*models.Profile, error) {
	const op = "services.account.GetProfile"

	if err := Authorize(actor, targetUID); err != nil {
		return nil, err
	}

	key := profileKeyPrefix + targetUID
	var cached models.Profile
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("failed to read profile from cache", slog.String("op", op), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	profile, err := s.users.GetProfile(ctx, targetUID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Set(ctx, key, profile, s.opts.ProfileTTL); err != nil {
		s.log.Warn("failed to cache profile", slog.String("op", op), sl.Err(err))
	}
	return profile, nil
}

// UpdateProfile изменяет имя, аватар и биографию владельца и возвращает
// обновлённую идентичность для переиздания сессии.
func (s *AccountService) UpdateProfile(ctx context.Context, actor models.Identity, targetUID string, req UpdateProfileRequest) (models.Identity, error) {
	const op = "services.account.UpdateProfile"

	if err := Authorize(actor, targetUID); err != nil {
		return models.Identity{}, err
	}
	if res := validation.Check(validate, req); !res.OK() {
		return models.Identity{}, &ValidationError{Result: res}
	}

	user, err := s.users.UpdateUserProfile(ctx, targetUID, models.ProfileUpdate{
		Name:  req.Name,
		Image: req.Image,
		Bio:   req.Bio,
	})
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.Identity{}, ErrUserNotFound
		}
		return models.Identity{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Invalidate(ctx, profileKeyPrefix+targetUID); err != nil {
		s.log.Warn("failed to invalidate profile cache", slog.String("op", op), sl.Err(err))
	}
	s.publish(ctx, op, rabbitmq.RoutingProfileUpdated, targetUID)

	return user.Identity(), nil
}
