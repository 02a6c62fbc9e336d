package signin

import (
	"context"

	"github.com/magabrotheeeer/blog-auth/internal/lib/session"
	"github.com/magabrotheeeer/blog-auth/internal/lib/validation"
	"github.com/magabrotheeeer/blog-auth/internal/models"
	services "github.com/magabrotheeeer/blog-auth/internal/services/auth"
)

// Service описывает интерфейс бизнес-логики аутентификации.
type Service interface {
	ValidateCredentials(creds services.Credentials) validation.Result
	Authenticate(ctx context.Context, s session.Session, creds services.Credentials) (session.Session, models.Identity, error)
}

// SessionCommitter формирует заголовок Set-Cookie для сессии.
type SessionCommitter interface {
	Commit(s session.Session) (string, error)
}
