package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/pribylovaa/go-session-auth/internal/client/api"
	"github.com/pribylovaa/go-session-auth/internal/client/cli"
	"github.com/pribylovaa/go-session-auth/internal/client/session"
)

// clientConfig — настройки authctl из окружения; флаги их перекрывают.
type clientConfig struct {
	Server  string        `env:"AUTHCTL_SERVER" env-default:"http://localhost:4000/api"`
	DB      string        `env:"AUTHCTL_DB"`
	Timeout time.Duration `env:"AUTHCTL_TIMEOUT" env-default:"10s"`
	Debug   bool          `env:"AUTHCTL_DEBUG"`
}

func main() {
	os.Exit(run())
}

func run() int {
	var cfg clientConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "authctl: %v\n", err)
		return 2
	}

	flag.StringVar(&cfg.Server, "server", cfg.Server, "API base URL")
	flag.StringVar(&cfg.DB, "db", cfg.DB, "session database path (default ~/.authctl/session.db)")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "request timeout")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if cfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	path, err := dbPath(cfg.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "authctl: %v\n", err)
		return 1
	}

	st, err := session.OpenSQLite(ctx, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "authctl: open session store: %v\n", err)
		return 1
	}
	defer st.Close()

	store := session.NewStore(st)
	if err := store.Initialize(ctx); err != nil {
		slog.Warn("session_restore_failed", slog.String("err", err.Error()))
	}

	client := api.New(cfg.Server, &http.Client{Timeout: cfg.Timeout})
	app := cli.NewApp(client, store, os.Stdin, os.Stdout)

	if err := app.Run(ctx, flag.Args()); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			return 2
		}
		slog.Debug("command_failed", slog.String("err", err.Error()))
		return 1
	}

	return 0
}

// dbPath возвращает путь к базе сессии и создаёт каталог по умолчанию.
func dbPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}

	dir := filepath.Join(home, ".authctl")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	return filepath.Join(dir, "session.db"), nil
}
