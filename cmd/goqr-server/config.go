package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const envPrefix = "GOQR_"

type Config struct {
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"info"`
	HTTP     HTTP       `envPrefix:"HTTP_"`
	Redis    Redis      `envPrefix:"REDIS_"`
	QR       QR         `envPrefix:"QR_"`
	JWT      JWT        `envPrefix:"JWT_"`
	// Users maps a device login name to its password or argon2id hash.
	Users map[string]string `env:"USERS"`
}

type HTTP struct {
	Addr              string        `env:"ADDR" envDefault:":8080"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	TrustForwarded    bool          `env:"TRUST_FORWARDED" envDefault:"false"`
}

// Redis with an empty Addr runs against an embedded miniredis.
type Redis struct {
	Addr           string `env:"ADDR"`
	Password       string `env:"PASSWORD"`
	DB             int    `env:"DB" envDefault:"0"`
	Prefix         string `env:"PREFIX" envDefault:"qr"`
	ConnectRetries uint64 `env:"CONNECT_RETRIES" envDefault:"5"`
}

type QR struct {
	Salt         string            `env:"SALT,required"`
	BaseURL      string            `env:"BASE_URL" envDefault:"http://localhost:8080"`
	DefaultRoute string            `env:"DEFAULT_ROUTE" envDefault:"device-login"`
	Routes       map[string]string `env:"ROUTES" envDefault:"device-login:/qr/confirm,purchase-approve:/qr/purchase-approve/confirm"`
	TTL          time.Duration     `env:"TTL" envDefault:"120s"`
	KeyLength    int               `env:"KEY_LENGTH" envDefault:"50"`
	SingleUse    bool              `env:"SINGLE_USE" envDefault:"false"`
	ImageSize    int               `env:"IMAGE_SIZE" envDefault:"256"`
	Throttle     bool              `env:"THROTTLE" envDefault:"true"`
	Metrics      bool              `env:"METRICS" envDefault:"true"`
	Audit        bool              `env:"AUDIT" envDefault:"true"`
}

type JWT struct {
	Secret    string        `env:"SECRET,required"`
	Issuer    string        `env:"ISSUER" envDefault:"goqr"`
	AccessTTL time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
}

// loadConfig reads an optional .env file and then the GOQR_* environment.
func loadConfig(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if _, ok := cfg.QR.Routes[cfg.QR.DefaultRoute]; !ok {
		return Config{}, fmt.Errorf("default route %q is not in %sQR_ROUTES", cfg.QR.DefaultRoute, envPrefix)
	}
	return cfg, nil
}
