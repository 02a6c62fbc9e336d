// Package storage реализует хранилище учётных записей на основе PostgreSQL:
// пользователи, их профили и хэши паролей.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	// ErrUserNotFound - пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken - email уже занят другим пользователем.
	ErrEmailTaken = errors.New("email already taken")
	// ErrPasswordChanged - хэш пароля изменился между чтением и записью.
	ErrPasswordChanged = errors.New("password hash changed concurrently")
)

// Коды ошибок PostgreSQL.
const (
	pgUniqueViolation    = "23505"
	pgInvalidTextRepr    = "22P02"
	usersEmailConstraint = "users_email_key"
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL и проверяет его.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// Ping проверяет доступность базы данных.
func (s *Storage) Ping(ctx context.Context) error {
	const op = "storage.Ping"
	if err := s.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// mapError переводит ошибки драйвера в доменные.
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == usersEmailConstraint:
			return ErrEmailTaken
		case pgErr.Code == pgInvalidTextRepr:
			// некорректный uuid не может принадлежать существующему пользователю
			return ErrUserNotFound
		}
	}
	return err
}
