package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/blog-auth/internal/models"
)

const userColumns = `uid, email, password_hash, name, image, role, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var image sql.NullString
	if err := row.Scan(&u.UUID, &u.Email, &u.PasswordHash, &u.Name, &image,
		&u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if image.Valid {
		u.Image = &image.String
	}
	return u, nil
}

// CreateUser сохраняет нового пользователя вместе с пустым профилем и возвращает его ID.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if user.UUID == "" {
		user.UUID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var newID string
	query := `INSERT INTO users (uid, email, password_hash, name, image, role)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING uid`
	if err = tx.QueryRowContext(ctx, query,
		user.UUID, user.Email, user.PasswordHash, user.Name, user.Image, user.Role,
	).Scan(&newID); err != nil {
		return "", fmt.Errorf("%s: %w", op, mapError(err))
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO profiles (user_uid) VALUES ($1)`, newID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// FindUserByEmail возвращает пользователя по email. Сравнение регистрозависимое.
func (s *Storage) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.FindUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return u, nil
}

// FindUserByID возвращает пользователя по его UID.
func (s *Storage) FindUserByID(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.FindUserByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return u, nil
}

// UpdateUserPassword заменяет хэш пароля одним условным UPDATE: запись
// происходит, только если в базе всё ещё лежит oldHash.
//
// Возвращает ErrPasswordChanged, если хэш успели изменить, и ErrUserNotFound,
// если пользователя больше нет.
func (s *Storage) UpdateUserPassword(ctx context.Context, userUID, oldHash, newHash string) error {
	const op = "storage.UpdateUserPassword"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET password_hash = $1, updated_at = NOW()
			  WHERE uid = $2 AND password_hash = $3`
	result, err := s.DB.ExecContext(ctx, query, newHash, userUID, oldHash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 1 {
		return nil
	}

	var exists bool
	if err = s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE uid = $1)`, userUID).Scan(&exists); err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	if !exists {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return fmt.Errorf("%s: %w", op, ErrPasswordChanged)
}

// UpdateUserProfile обновляет имя и аватар пользователя и биографию в профиле
// в одной транзакции.
func (s *Storage) UpdateUserProfile(ctx context.Context, userUID string, upd models.ProfileUpdate) (*models.User, error) {
	const op = "storage.UpdateUserProfile"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `UPDATE users
			  SET name = $1, image = $2, updated_at = NOW()
			  WHERE uid = $3
			  RETURNING ` + userColumns
	u, err := scanUser(tx.QueryRowContext(ctx, query, upd.Name, upd.Image, userUID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}

	query = `INSERT INTO profiles (user_uid, bio, updated_at)
			 VALUES ($1, $2, NOW())
			 ON CONFLICT (user_uid) DO UPDATE
			 SET bio = EXCLUDED.bio, updated_at = NOW()`
	if _, err = tx.ExecContext(ctx, query, userUID, upd.Bio); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetProfile возвращает профиль пользователя.
func (s *Storage) GetProfile(ctx context.Context, userUID string) (*models.Profile, error) {
	const op = "storage.GetProfile"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT u.uid, u.email, u.name, u.image, u.role, p.bio
			  FROM users u
			  LEFT JOIN profiles p ON p.user_uid = u.uid
			  WHERE u.uid = $1`
	p := &models.Profile{}
	var image, bio sql.NullString
	if err := s.DB.QueryRowContext(ctx, query, userUID).Scan(
		&p.UserUUID, &p.Email, &p.Name, &image, &p.Role, &bio); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	if image.Valid {
		p.Image = &image.String
	}
	if bio.Valid {
		p.Bio = &bio.String
	}
	return p, nil
}
