// Package services содержит обработку событий учётных записей для воркера уведомлений:
// письма о смене пароля и приветствие после регистрации.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/magabrotheeeer/blog-auth/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/blog-auth/internal/lib/sl"
	"github.com/magabrotheeeer/blog-auth/internal/lib/smtp"
	"github.com/magabrotheeeer/blog-auth/internal/models"
	"github.com/magabrotheeeer/blog-auth/internal/storage"
)

// UserRepository ищет пользователя, которому адресовано письмо.
type UserRepository interface {
	FindUserByID(ctx context.Context, userUID string) (*models.User, error)
}

// NotifierService превращает события учётных записей в письма.
type NotifierService struct {
	log       *slog.Logger
	users     UserRepository
	transport smtp.TransportInterface
}

// NewNotifierService создает новый экземпляр NotifierService.
func NewNotifierService(log *slog.Logger, users UserRepository, transport smtp.TransportInterface) *NotifierService {
	return &NotifierService{
		log:       log,
		users:     users,
		transport: transport,
	}
}

// HandleEvent обрабатывает одно сообщение из очереди.
//
// Ошибка возвращается только для сбоев, которые имеет смысл повторить:
// недоступность базы или SMTP. Битые сообщения и удалённые пользователи пропускаются.
func (s *NotifierService) HandleEvent(ctx context.Context, body []byte) error {
	const op = "services.notifier.HandleEvent"
	log := s.log.With(slog.String("op", op))

	var event rabbitmq.Event
	if err := json.Unmarshal(body, &event); err != nil {
		log.Error("failed to unmarshal event, dropping", sl.Err(err))
		return nil
	}
	log = log.With(slog.String("event_id", event.ID), slog.String("event_type", event.Type))

	var compose func(u *models.User, at time.Time) (subject, text string)
	switch event.Type {
	case rabbitmq.RoutingPasswordChanged:
		compose = passwordChangedMail
	case rabbitmq.RoutingUserRegistered:
		compose = welcomeMail
	default:
		log.Debug("event type is not notified, skipping")
		return nil
	}

	user, err := s.users.FindUserByID(ctx, event.UserUID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found, dropping event", slog.String("user_uid", event.UserUID))
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	subject, text := compose(user, event.OccurredAt)
	if err := s.sendEmail([]string{user.Email}, subject, text); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("notification sent", slog.String("user_uid", user.UUID))
	return nil
}

func passwordChangedMail(u *models.User, at time.Time) (string, string) {
	subject := "Пароль от вашей учётной записи изменён"
	text := fmt.Sprintf("Здравствуйте, %s!\n\n"+
		"Пароль от вашей учётной записи был изменён %s (UTC).\n\n"+
		"Если это были не вы, немедленно восстановите доступ и свяжитесь с администратором блога.",
		u.Name, at.UTC().Format("02.01.2006 15:04"))
	return subject, text
}

func welcomeMail(u *models.User, _ time.Time) (string, string) {
	subject := "Добро пожаловать в блог"
	text := fmt.Sprintf("Здравствуйте, %s!\n\n"+
		"Учётная запись %s зарегистрирована. Теперь вы можете писать и комментировать.",
		u.Name, u.Email)
	return subject, text
}

func (s *NotifierService) sendEmail(to []string, subject, bodyText string) error {
	const op = "services.notifier.sendEmail"

	from := s.transport.Sender()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + strings.Join(to, ", "),
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		// После успешного Quit соединение уже закрыто, ошибка Close ожидаема.
		_ = client.Close()
	}()

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("%s: mail from: %w", op, err)
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			return fmt.Errorf("%s: rcpt to: %w", op, err)
		}
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("%s: data: %w", op, err)
	}
	if _, err = wc.Write([]byte(msg)); err != nil {
		return fmt.Errorf("%s: write body: %w", op, err)
	}
	if err = wc.Close(); err != nil {
		return fmt.Errorf("%s: close data: %w", op, err)
	}
	if err = client.Quit(); err != nil {
		return fmt.Errorf("%s: quit: %w", op, err)
	}
	return nil
}
