package signup

import (
	"context"

	"github.com/magabrotheeeer/blog-auth/internal/lib/session"
	"github.com/magabrotheeeer/blog-auth/internal/models"
	services "github.com/magabrotheeeer/blog-auth/internal/services/auth"
)

// Service описывает регистрацию пользователя.
type Service interface {
	Register(ctx context.Context, s session.Session, req services.RegisterRequest) (session.Session, models.Identity, error)
}

// SessionCommitter формирует заголовок Set-Cookie для сессии.
type SessionCommitter interface {
	Commit(s session.Session) (string, error)
}
