// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	// EnvLocal - окружение для локальной разработки.
	EnvLocal = "local"
	// EnvDev - тестовый стенд.
	EnvDev = "dev"
	// EnvProd - боевое окружение.
	EnvProd = "prod"
)

// MinSecretKeyLength - минимальная длина ключа подписи сессий.
const MinSecretKeyLength = 32

// ErrWeakSecret возвращается, если ключ подписи сессий слишком короткий.
var ErrWeakSecret = errors.New("session secret key is too short")

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	HTTPServer              `yaml:"http_server"`
	RedisConnection         `yaml:"redis_connection"`
	Session                 `yaml:"session"`
	Hashing                 `yaml:"password"`
	RateLimit               `yaml:"rate_limit"`
	Redirects               `yaml:"redirects"`
	RabbitMQ                `yaml:"rabbitmq"`
	SMTP                    `yaml:"smtp"`
	Notifier                `yaml:"notifier"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db" env-default:"0"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
	ProfileTTL   time.Duration `yaml:"profile_ttl" env-default:"10m"`
}

// Session структура для настройки cookie-сессий
type Session struct {
	CookieName string        `yaml:"cookie_name" env-default:"blog_session"`
	SecretKey  string        `yaml:"secret_key" env:"SESSION_SECRET_KEY" env-required:"true"`
	TTL        time.Duration `yaml:"ttl" env-default:"720h"`
	Secure     bool          `yaml:"secure" env:"SESSION_SECURE"`
	// KeepSessionsOnPasswordChange отключает отзыв остальных сессий пользователя
	// после смены пароля.
	KeepSessionsOnPasswordChange bool `yaml:"keep_sessions_on_password_change"`
}

// Hashing структура для настройки хэширования паролей
type Hashing struct {
	Cost int `yaml:"cost" env-default:"12"`
}

// RateLimit структура для ограничения частоты попыток входа
type RateLimit struct {
	RPS   float64 `yaml:"rps" env-default:"1"`
	Burst int     `yaml:"burst" env-default:"5"`
}

// Redirects задаёт адреса перенаправления для проверки аутентификации.
// Пустое значение означает ответ без перенаправления.
type Redirects struct {
	AfterSignIn string `yaml:"after_sign_in" env-default:"/"`
	SignInPage  string `yaml:"sign_in_page"`
}

// RabbitMQ структура для публикации событий учётной записи.
// Пустой URL отключает публикацию.
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	Exchange   string        `yaml:"exchange" env-default:"account.events"`
	Retries    int           `yaml:"retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// SMTP структура для отправки писем воркером уведомлений
type SMTP struct {
	SMTPHost string `yaml:"host" env:"SMTP_HOST"`
	SMTPPort string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser string `yaml:"user" env:"SMTP_USER"`
	SMTPPass string `yaml:"pass" env:"SMTP_PASS"`
	From     string `yaml:"from" env:"SMTP_FROM"`
}

// Notifier структура для настройки воркера уведомлений
type Notifier struct {
	Queue   string `yaml:"queue" env-default:"account.notifications"`
	Workers int    `yaml:"workers" env-default:"10"`
}

// MustLoad функция для загрузки конфига по пути из CONFIG_PATH.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает конфиг из файла, переменные окружения имеют приоритет.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	var cfg Config

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(cfg.Session.SecretKey) < MinSecretKeyLength {
		return nil, fmt.Errorf("%s: %w", op, ErrWeakSecret)
	}
	return &cfg, nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageConnectionString: %s\n"+
			"MigrationsPath: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  Password: %s\n"+
			"  User: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Session:\n"+
			"  CookieName: %s\n"+
			"  SecretKey: %s\n"+
			"  TTL: %s\n"+
			"  Secure: %t\n"+
			"  KeepSessionsOnPasswordChange: %t\n"+
			"Password:\n"+
			"  Cost: %d\n"+
			"RabbitMQ:\n"+
			"  URL: %s\n"+
			"  Exchange: %s\n"+
			"SMTP:\n"+
			"  Host: %s\n"+
			"  User: %s\n"+
			"  Pass: %s\n"+
			"Notifier:\n"+
			"  Queue: %s\n"+
			"  Workers: %d\n",
		c.Env,
		mask(c.StorageConnectionString),
		c.MigrationsPath,
		c.AddressRedis,
		mask(c.RedisConnection.Password),
		c.RedisConnection.User,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.CookieName,
		mask(c.SecretKey),
		c.Session.TTL,
		c.Secure,
		c.KeepSessionsOnPasswordChange,
		c.Cost,
		mask(c.URL),
		c.Exchange,
		c.SMTPHost,
		c.SMTPUser,
		mask(c.SMTPPass),
		c.Queue,
		c.Workers,
	)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
