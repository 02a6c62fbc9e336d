package models

// Identity - публичная запись аутентифицированного пользователя.
// Хранится в подписанной cookie, чтобы не ходить в базу на каждый запрос.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Image string `json:"image,omitempty"`
}

// IsZero сообщает, что идентичность не заполнена.
func (i Identity) IsZero() bool {
	return i.ID == ""
}
