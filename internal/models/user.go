package models

import (
	"time"

	"github.com/google/uuid"
)

// User — учётная запись в хранилище пользователей.
// PasswordHash никогда не покидает сервер: наружу отдаётся только PublicUser.
type User struct {
	ID           uuid.UUID
	Name         string
	Surname      string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser — публичная проекция пользователя для клиента.
type PublicUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
}

// Public возвращает проекцию без пароля и его хэша.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:      u.ID.String(),
		Name:    u.Name,
		Surname: u.Surname,
		Email:   u.Email,
	}
}

// Identity возвращает минимальный набор данных, который зашивается в токен.
func (u *User) Identity() Identity {
	return Identity{
		ID:      u.ID,
		Name:    u.Name,
		Surname: u.Surname,
		Email:   u.Email,
	}
}
