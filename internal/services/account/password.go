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

var validate = validation.New()

// ChangePasswordRequest - данные формы смены пароля.
type ChangePasswordRequest struct {
	CurrentPassword    string `json:"currentPassword" validate:"required"`
	NewPassword        string `json:"newPassword" validate:"required,min=8,max_bytes=72,password_policy"`
	ConfirmNewPassword string `json:"confirmNewPassword" validate:"required,eqfield=NewPassword"`
}

// LogValue скрывает пароли в логах.
func (r ChangePasswordRequest) LogValue() slog.Value {
	return slog.GroupValue(
		sl.Secret("currentPassword"),
		sl.Secret("newPassword"),
		sl.Secret("confirmNewPassword"),
	)
}

// ValidateChangePassword проверяет форму смены пароля, не обращаясь к хранилищу.
func ValidateChangePassword(req ChangePasswordRequest) validation.Result {
	return validation.Check(validate, req)
}

// ChangePassword заменяет пароль пользователя targetUID после проверки текущего.
//
// Сохранение выполняется условным обновлением: если хэш в базе изменился после
// чтения, запрос считается проигравшим и получает ErrCurrentPasswordIncorrect.
func (s *AccountService) ChangePassword(ctx context.Context, actor models.Identity, targetUID string, req ChangePasswordRequest) error {
	const op = "services.account.ChangePassword"

	if err := Authorize(actor, targetUID); err != nil {
		return err
	}
	if res := ValidateChangePassword(req); !res.OK() {
		return &ValidationError{Result: res}
	}

	user, err := s.users.FindUserByID(ctx, targetUID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if !s.hasher.Verify(req.CurrentPassword, user.PasswordHash) {
		return ErrCurrentPasswordIncorrect
	}

	newHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = s.users.UpdateUserPassword(ctx, targetUID, user.PasswordHash, newHash)
	switch {
	case errors.Is(err, storage.ErrPasswordChanged):
		return ErrCurrentPasswordIncorrect
	case errors.Is(err, storage.ErrUserNotFound):
		return ErrUserNotFound
	case err != nil:
		return fmt.Errorf("%s: %w", op, err)
	}

	if s.opts.RevokeSessions {
		if err := s.cache.RevokeSessions(ctx, targetUID, s.now(), s.opts.SessionTTL); err != nil {
			s.log.Error("failed to revoke sessions",
				slog.String("op", op),
				slog.String("user_uid", targetUID),
				sl.Err(err),
			)
		}
	}
	s.publish(ctx, op, rabbitmq.RoutingPasswordChanged, targetUID)

	return nil
}
