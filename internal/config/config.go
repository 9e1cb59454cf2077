// Package config предоставляет структуры и функции для парсинга и загрузки конфига портала.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Gateway                 `yaml:"gateway"`
	Checkout                `yaml:"checkout"`
	Session                 `yaml:"session"`
	RabbitMQ                `yaml:"rabbitmq"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimit   float64       `yaml:"rate_limit" env-default:"20"`
	RateBurst   int           `yaml:"rate_burst" env-default:"40"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// JWTToken общий с шлюзом секрет для проверки токенов пользователей.
type JWTToken struct {
	JWTSecretKey string `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
}

// Gateway настройки HTTP-клиента шлюза активации.
type Gateway struct {
	BaseURL string        `yaml:"base_url" env:"GATEWAY_BASE_URL"`
	Timeout time.Duration `yaml:"timeout" env-default:"15s"`
	RPS     float64       `yaml:"rps" env-default:"50"`
	Burst   int           `yaml:"burst" env-default:"100"`
}

// Checkout параметры опроса статуса платежа.
type Checkout struct {
	PollInterval time.Duration `yaml:"poll_interval" env-default:"3s"`
	MaxPolls     int           `yaml:"max_polls" env-default:"100"`
	Timeout      time.Duration `yaml:"timeout" env-default:"5m"`
}

// Session время жизни сессии портала и периодичность чистки.
// PendingMaxAge срок, после которого незавершённый платёж браузера удаляется.
type Session struct {
	TTL           time.Duration `yaml:"ttl" env-default:"12h"`
	IdleTimeout   time.Duration `yaml:"idle_timeout" env-default:"30m"`
	SweepInterval time.Duration `yaml:"sweep_interval" env-default:"1m"`
	PendingMaxAge time.Duration `yaml:"pending_max_age" env-default:"168h"`
	SecureCookies bool          `yaml:"secure_cookies"`
}

// RabbitMQ настройки публикации событий. Пустой URL отключает публикацию.
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	MaxRetries int           `yaml:"max_retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
	Exchange   string        `yaml:"exchange" env-default:"portal"`
}

// Load читает конфиг из файла path и проверяет обязательные поля.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	if path == "" {
		return nil, fmt.Errorf("%s: CONFIG_PATH is not set", op)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file: %s - does not exist", op, path)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: cannot read config: %w", op, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при ошибке.
func MustLoad() *Config {
	cfg, err := Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

func (c *Config) validate() error {
	switch {
	case c.Gateway.BaseURL == "":
		return errors.New("gateway.base_url is required")
	case c.StorageConnectionString == "":
		return errors.New("storage_connection_string is required")
	case c.Checkout.PollInterval <= 0:
		return errors.New("checkout.poll_interval must be positive")
	case c.Checkout.MaxPolls <= 0:
		return errors.New("checkout.max_polls must be positive")
	case c.Checkout.Timeout <= 0:
		return errors.New("checkout.timeout must be positive")
	case c.Session.SweepInterval <= 0:
		return errors.New("session.sweep_interval must be positive")
	case c.Session.PendingMaxAge <= 0:
		return errors.New("session.pending_max_age must be positive")
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"Gateway:\n"+
			"  BaseURL: %s\n"+
			"  Timeout: %s\n"+
			"Checkout:\n"+
			"  PollInterval: %s\n"+
			"  MaxPolls: %d\n"+
			"  Timeout: %s\n",
		c.Env,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.Gateway.BaseURL,
		c.Gateway.Timeout,
		c.PollInterval,
		c.MaxPolls,
		c.Checkout.Timeout,
	)
}
