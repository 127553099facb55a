// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
// Конфигурация читается один раз на старте и дальше не меняется.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// DefaultJWTSecret — небезопасный секрет для локальной разработки.
// В env=prod сервис с ним не стартует.
const DefaultJWTSecret = "dev_jwt_secret_change_me"

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

const (
	RevocationNone   = "none"
	RevocationMemory = "memory"
	RevocationRedis  = "redis"
)

// Config — корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
//
// Перед чтением подгружается необязательный .env (godotenv), уже
// выставленные переменные окружения он не перетирает.
type Config struct {
	Env        string           `yaml:"env" env:"ENV" env-default:"local"`
	HTTP       HTTPConfig       `yaml:"http"`
	GRPC       GRPCConfig       `yaml:"grpc"`
	Auth       AuthConfig       `yaml:"auth"`
	DB         DBConfig         `yaml:"db"`
	Revocation RevocationConfig `yaml:"revocation"`
	Verifier   VerifierConfig   `yaml:"verifier"`
	Timeouts   TimeoutConfig    `yaml:"timeouts"`
}

// TimeoutConfig — таймауты сервиса.
type TimeoutConfig struct {
	Service  time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
	Shutdown time.Duration `yaml:"shutdown" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// HTTPConfig — сетевые настройки HTTP-сервера и CORS.
type HTTPConfig struct {
	Host         string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port         string `yaml:"port" env:"PORT" env-default:"4000"`
	ClientOrigin string `yaml:"client_origin" env:"CLIENT_ORIGIN" env-default:"http://localhost:5173"`
}

// GRPCConfig описывает сетевые настройки gRPC-сервера верификации.
type GRPCConfig struct {
	Disabled bool   `yaml:"disabled" env:"GRPC_DISABLED"`
	Host     string `yaml:"host" env:"GRPC_HOST" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"GRPC_PORT" env-default:"50051"`
}

// Addr возвращает адрес в формате host:port.
func (g HTTPConfig) Addr() string {
	return net.JoinHostPort(g.Host, g.Port)
}

// Addr возвращает адрес в формате host:port.
func (g GRPCConfig) Addr() string {
	return net.JoinHostPort(g.Host, g.Port)
}

// AuthConfig содержит параметры выпуска и валидации токенов.
type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"dev_jwt_secret_change_me"`
	TokenTTL   time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"24h"`
	Issuer     string        `yaml:"issuer" env:"ISSUER" env-default:"auth-service"`
	BcryptCost int           `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"10"`
}

// DBConfig — выбор и адрес хранилища пользователей.
type DBConfig struct {
	Driver      string `yaml:"driver" env:"DB_DRIVER" env-default:"mongo"`
	MongoURI    string `yaml:"mongo_uri" env:"MONGO_URI" env-default:"mongodb://127.0.0.1:27017/stomach_cancer_auth"`
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL"`
}

// RevocationConfig — необязательный denylist для logout.
type RevocationConfig struct {
	Driver   string `yaml:"driver" env:"REVOCATION" env-default:"none"`
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
}

// VerifierConfig — необязательная удалённая проверка токенов.
// Если Addr задан, защищённые маршруты проверяют токены через
// authsession.v1.TokenVerifier другого экземпляра.
type VerifierConfig struct {
	Addr    string        `yaml:"addr" env:"VERIFIER_ADDR"`
	Timeout time.Duration `yaml:"timeout" env:"VERIFIER_TIMEOUT" env-default:"2s"`
}

// Remote сообщает, делегирована ли проверка токенов.
func (v VerifierConfig) Remote() bool {
	return v.Addr != ""
}

// Enabled сообщает, включён ли отзыв токенов.
func (r RevocationConfig) Enabled() bool {
	return r.Driver != "" && r.Driver != RevocationNone
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// После чтения файла ENV-переменные накладываются поверх значений из YAML.
func Load(path string) (*Config, error) {
	loadEnvFile()

	cfg, err := read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func read(path string) (*Config, error) {
	var cfg Config

	// чтение файла + overlay ENV.
	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	// 1) Явный путь.
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile подгружает .env из рабочей директории или её родителя.
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env"))
}

// Validate проверяет согласованность настроек.
// В prod запрещены секрет по умолчанию и хранилище в памяти.
func (c *Config) Validate() error {
	var errs []error

	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		errs = append(errs, fmt.Errorf("unknown env %q", c.Env))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}

	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}

	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost))
	}

	switch c.DB.Driver {
	case DriverMemory:
	case DriverMongo:
		if c.DB.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo driver"))
		}
	case DriverPostgres:
		if c.DB.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.DB.Driver))
	}

	switch c.Revocation.Driver {
	case "", RevocationNone, RevocationMemory:
	case RevocationRedis:
		if c.Revocation.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for redis revocation"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown REVOCATION %q", c.Revocation.Driver))
	}

	if c.Verifier.Remote() {
		if c.Verifier.Timeout <= 0 {
			errs = append(errs, errors.New("VERIFIER_TIMEOUT must be positive"))
		}

		// Отзыв в памяти этого процесса удалённый верификатор не увидит.
		if c.Revocation.Driver == RevocationMemory {
			errs = append(errs, errors.New("REVOCATION=memory cannot be combined with VERIFIER_ADDR"))
		}
	}

	if c.Env == EnvProd {
		if c.Auth.JWTSecret == DefaultJWTSecret {
			errs = append(errs, errors.New("JWT_SECRET must be overridden in prod"))
		}

		if c.DB.Driver == DriverMemory {
			errs = append(errs, errors.New("memory user store is not allowed in prod"))
		}
	}

	return errors.Join(errs...)
}
