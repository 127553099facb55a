package models

import "time"

// AuthResult — результат успешного входа или регистрации.
//
// Описание:
//   - Token — подписанный bearer-токен, клиент хранит его всю сессию;
//   - ExpiresAt — момент истечения токена (UTC);
//   - User — публичная проекция пользователя.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      PublicUser
}
