package models

import "github.com/google/uuid"

// Identity — утверждение о личности, которое подписывается в токен.
// После выпуска не меняется; при каждом входе/регистрации формируется заново.
type Identity struct {
	ID      uuid.UUID
	Name    string
	Surname string
	Email   string
}

// Public переводит Identity в формат ответа клиенту.
func (i Identity) Public() PublicUser {
	return PublicUser{
		ID:      i.ID.String(),
		Name:    i.Name,
		Surname: i.Surname,
		Email:   i.Email,
	}
}
