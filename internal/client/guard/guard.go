// Package guard решает, что показать на защищённом маршруте,
// по срезу клиентской сессии. Сетевых вызовов не делает.
package guard

import (
	"github.com/pribylovaa/go-session-auth/internal/client/session"
)

// Decision — результат проверки маршрута.
type Decision int

const (
	// Pending — сессия ещё восстанавливается, ничего не показываем.
	Pending Decision = iota
	// RenderProtected — пользователь есть, показываем защищённое содержимое.
	RenderProtected
	// RedirectLogin — пользователя нет, уводим на вход.
	RedirectLogin
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case RenderProtected:
		return "render_protected"
	case RedirectLogin:
		return "redirect_login"
	default:
		return "unknown"
	}
}

// Decide — чистая функция от среза сессии.
func Decide(s session.Snapshot) Decision {
	switch {
	case s.Loading:
		return Pending
	case s.Authenticated():
		return RenderProtected
	default:
		return RedirectLogin
	}
}

// Guard связывает решение с действиями клиента.
type Guard struct {
	// Pending вызывается, пока сессия загружается; может быть nil.
	Pending func()
}

// Render выполняет protected или login в зависимости от решения и возвращает его.
func (g Guard) Render(s session.Snapshot, protected func(session.Snapshot), login func()) Decision {
	d := Decide(s)

	switch d {
	case Pending:
		if g.Pending != nil {
			g.Pending()
		}
	case RenderProtected:
		if protected != nil {
			protected(s)
		}
	case RedirectLogin:
		if login != nil {
			login()
		}
	}

	return d
}

// Watch применяет Render к текущему состоянию store и затем к каждому изменению.
// Возвращённая функция прекращает наблюдение.
func (g Guard) Watch(store *session.Store, protected func(session.Snapshot), login func()) (stop func()) {
	stop = store.Subscribe(func(s session.Snapshot) {
		g.Render(s, protected, login)
	})
	g.Render(store.Snapshot(), protected, login)

	return stop
}
