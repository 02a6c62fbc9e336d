// Package models содержит доменные модели учётной записи: пользователя,
// его профиль и публичную идентичность, которая хранится в сессии.
package models

import "time"

const (
	// RoleUser - роль по умолчанию для зарегистрированных пользователей.
	RoleUser = "user"
	// RoleAdmin - роль администратора.
	RoleAdmin = "admin"
)

// User представляет зарегистрированного пользователя системы.
type User struct {
	UUID         string    // Уникальный идентификатор пользователя
	Email        string    // Электронная почта (уникальная)
	PasswordHash string    // bcrypt-хэш пароля, никогда не открытый текст
	Name         string    // Отображаемое имя
	Image        *string   // Ссылка на аватар, может отсутствовать
	Role         string    // Роль пользователя, admin или user
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity возвращает минимальное публичное представление пользователя.
func (u *User) Identity() Identity {
	id := Identity{
		ID:    u.UUID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
	if u.Image != nil {
		id.Image = *u.Image
	}
	return id
}

// IsAdmin сообщает, является ли пользователь администратором.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Profile - данные профиля пользователя (1:1 с User).
type Profile struct {
	UserUUID string  `json:"id"`
	Email    string  `json:"email"`
	Name     string  `json:"name"`
	Image    *string `json:"image"`
	Role     string  `json:"role"`
	Bio      *string `json:"bio"`
}

// ProfileUpdate - изменяемые поля профиля.
type ProfileUpdate struct {
	Name  string
	Image *string
	Bio   *string
}
