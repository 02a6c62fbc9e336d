package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/blog-auth/internal/lib/session"
	"github.com/magabrotheeeer/blog-auth/internal/lib/sl"
	"github.com/magabrotheeeer/blog-auth/internal/models"
)

// OutcomeKind - вид результата проверки сессии.
type OutcomeKind int

const (
	// Unauthenticated - сессии нет или она недействительна.
	Unauthenticated OutcomeKind = iota
	// Authenticated - сессия действительна.
	Authenticated
	// RedirectRequested - политика требует перенаправить вызывающего.
	RedirectRequested
	// CheckFailed - проверить сессию не удалось из-за сбоя хранилища.
	// Идентичность не заполняется, причина лежит в Outcome.Err.
	CheckFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case Authenticated:
		return "authenticated"
	case RedirectRequested:
		return "redirect"
	case CheckFailed:
		return "failed"
	default:
		return "unauthenticated"
	}
}

// Policy задаёт перенаправления. Пустая строка - без перенаправления.
type Policy struct {
	SuccessRedirect string
	FailureRedirect string
}

// Outcome - результат IsAuthenticated.
//
// Identity заполнено, если пользователь аутентифицирован (в том числе при
// перенаправлении по SuccessRedirect). Target заполнено для RedirectRequested,
// Err для CheckFailed.
type Outcome struct {
	Kind     OutcomeKind
	Identity models.Identity
	Target   string
	Err      error
}

// IsAuthenticated проверяет сессию и применяет политику перенаправлений.
// Сессия не продлевается.
func (s *AuthService) IsAuthenticated(ctx context.Context, sess session.Session, p Policy) Outcome {
	const op = "services.auth.IsAuthenticated"

	ok, err := s.valid(ctx, sess)
	if err != nil {
		s.log.Error("failed to check session revocation",
			slog.String("op", op),
			slog.String("user_uid", sess.Identity.ID),
			sl.Err(err),
		)
		return Outcome{Kind: CheckFailed, Err: fmt.Errorf("%s: %w", op, err)}
	}
	if !ok {
		if p.FailureRedirect != "" {
			return Outcome{Kind: RedirectRequested, Target: p.FailureRedirect}
		}
		return Outcome{Kind: Unauthenticated}
	}

	if p.SuccessRedirect != "" {
		return Outcome{Kind: RedirectRequested, Identity: sess.Identity, Target: p.SuccessRedirect}
	}
	return Outcome{Kind: Authenticated, Identity: sess.Identity}
}

// valid сообщает, что сессия подписана, не истекла и не отозвана.
func (s *AuthService) valid(ctx context.Context, sess session.Session) (bool, error) {
	if !sess.Authenticated() {
		return false, nil
	}
	revokedAt, ok, err := s.revocations.SessionsRevokedAt(ctx, sess.Identity.ID)
	if err != nil {
		return false, err
	}
	return !ok || !sess.IssuedAt.Before(revokedAt), nil
}
