// Package cli — команды authctl поверх api.Client, session.Store и guard.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/pribylovaa/go-session-auth/internal/client/api"
	"github.com/pribylovaa/go-session-auth/internal/client/guard"
	"github.com/pribylovaa/go-session-auth/internal/client/session"
	"github.com/pribylovaa/go-session-auth/internal/password"
	"github.com/pribylovaa/go-session-auth/internal/transport/http/handlers"
)

// ErrUsage — неверные аргументы команды.
var ErrUsage = errors.New("usage")

const usage = `usage: authctl [flags] <command> [args]

commands:
  signup -name N -surname S -email E   create an account and log in
  login -email E                       log in
  logout                               revoke the token and forget the session
  whoami                               show the locally stored session
  me                                   ask the server who the token belongs to
`

type App struct {
	API   *api.Client
	Store *session.Store
	Out   io.Writer
	In    *bufio.Reader
	// Password читает пароль; по умолчанию — с терминала без эха.
	Password func() (string, error)
}

func NewApp(client *api.Client, store *session.Store, in io.Reader, out io.Writer) *App {
	a := &App{
		API:   client,
		Store: store,
		Out:   out,
		In:    bufio.NewReader(in),
	}
	a.Password = a.promptPassword

	return a
}

// Run выполняет одну команду. Store должен быть уже инициализирован.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.Out, usage)
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "signup":
		return a.signup(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami()
	case "me":
		return a.me(ctx)
	case "help", "-h", "--help":
		fmt.Fprint(a.Out, usage)
		return nil
	default:
		fmt.Fprintf(a.Out, "unknown command %q\n%s", cmd, usage)
		return ErrUsage
	}
}

func (a *App) signup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	fs.SetOutput(a.Out)
	name := fs.String("name", "", "first name")
	surname := fs.String("surname", "", "last name")
	email := fs.String("email", "", "email")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}
	if *email == "" || *name == "" || *surname == "" {
		fmt.Fprintln(a.Out, "signup requires -name, -surname and -email")
		return ErrUsage
	}

	pass, err := a.Password()
	if err != nil {
		return err
	}
	if err := a.checkPassword(pass); err != nil {
		return err
	}

	res, err := a.API.Signup(ctx, handlers.SignupRequest{
		Name:     *name,
		Surname:  *surname,
		Email:    *email,
		Password: pass,
	})
	if err != nil {
		fmt.Fprintln(a.Out, api.Message(err, "Signup failed. Please try again."))
		return err
	}

	return a.adopt(ctx, res)
}

// checkPassword печатает список правил с отметками и не пускает слабый пароль на сервер.
func (a *App) checkPassword(pass string) error {
	res := password.Evaluate(pass)
	if res.Valid() {
		return nil
	}

	for _, f := range password.Facets {
		mark := "[ ]"
		if res.Met(f) {
			mark = "[x]"
		}
		fmt.Fprintf(a.Out, "  %s %s\n", mark, f.Label())
	}
	fmt.Fprintln(a.Out, "Password does not meet the requirements")

	return password.Validate(pass)
}

func (a *App) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.Out)
	email := fs.String("email", "", "email")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}
	if *email == "" {
		fmt.Fprintln(a.Out, "login requires -email")
		return ErrUsage
	}

	pass, err := a.Password()
	if err != nil {
		return err
	}

	res, err := a.API.Login(ctx, *email, pass)
	if err != nil {
		fmt.Fprintln(a.Out, api.Message(err, api.LoginFallback))
		return err
	}

	return a.adopt(ctx, res)
}

func (a *App) adopt(ctx context.Context, res *handlers.AuthResponse) error {
	if err := a.Store.Login(ctx, res.Token, res.User); err != nil {
		return err
	}

	fmt.Fprintf(a.Out, "logged in as %s %s <%s>\n", res.User.Name, res.User.Surname, res.User.Email)
	return nil
}

// logout отзывает токен на сервере (если сервер это поддерживает) и всегда
// забывает локальную сессию.
func (a *App) logout(ctx context.Context) error {
	snap := a.Store.Snapshot()
	if snap.Token != "" {
		if err := a.API.Logout(ctx, snap.Token); err != nil && !api.IsUnauthorized(err) {
			fmt.Fprintf(a.Out, "warning: server logout failed: %v\n", err)
		}
	}

	if err := a.Store.Logout(ctx); err != nil {
		return err
	}

	fmt.Fprintln(a.Out, "logged out")
	return nil
}

// whoami показывает локальную сессию без обращения к серверу.
func (a *App) whoami() error {
	g := guard.Guard{Pending: func() { fmt.Fprintln(a.Out, "session is loading") }}
	g.Render(a.Store.Snapshot(),
		func(s session.Snapshot) {
			fmt.Fprintf(a.Out, "%s %s <%s> (id %s, trust %s)\n",
				s.User.Name, s.User.Surname, s.User.Email, s.User.ID, s.Trust)
		},
		func() { fmt.Fprintln(a.Out, "not logged in") },
	)

	return nil
}

// me проверяет токен на сервере; отвергнутый токен стирает локальную сессию.
func (a *App) me(ctx context.Context) error {
	snap := a.Store.Snapshot()
	if guard.Decide(snap) != guard.RenderProtected {
		fmt.Fprintln(a.Out, "not logged in")
		return nil
	}

	user, err := a.API.Me(ctx, snap.Token)
	if err != nil {
		if api.IsUnauthorized(err) {
			fmt.Fprintln(a.Out, "session expired, please log in again")
			return a.Store.Logout(ctx)
		}
		return err
	}

	fmt.Fprintf(a.Out, "%s %s <%s> (id %s, verified by server)\n", user.Name, user.Surname, user.Email, user.ID)
	return nil
}

// promptPassword читает пароль без эха с терминала или строку из In, если stdin не терминал.
func (a *App) promptPassword() (string, error) {
	fmt.Fprint(a.Out, "Password: ")

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(a.Out)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}

	line, err := a.In.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}
