package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"github.com/joho/godotenv"

	pkgconfig "github.com/Skotchmaster/storefront/pkg/config"
)

const (
	DefaultDatabaseURL = "storefront.db"
	DefaultESIndex     = "products"
	DefaultPort        = "8080"
	DefaultAPITimeout  = 10 * time.Second
	DefaultIdleTTL     = 24 * time.Hour
)

type Config struct {
	APIURL     string
	APITimeout time.Duration

	DatabaseURL string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	KafkaBrokers []string

	Port         string
	LogLevel     string
	CookieSecure bool
	// TrustedOrigins are cross-origin front ends allowed to send mutations.
	TrustedOrigins []string

	// IdleTTL is how long an untouched cart or checkout state is kept.
	IdleTTL time.Duration
}

// Load reads the optional .env file named by path, then the process
// environment. Variables already set in the environment win over the file.
func Load(path string) *Config {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("dotenv_load_failed", "path", path, "error", err)
	}

	return &Config{
		APIURL:       pkgconfig.EnvDefault("MARKETPLACE_API_URL", ""),
		APITimeout:   pkgconfig.EnvSecondsDefault("API_TIMEOUT_SECONDS", DefaultAPITimeout),
		DatabaseURL:  pkgconfig.EnvDefault("DATABASE_URL", DefaultDatabaseURL),
		ESURL:        pkgconfig.EnvDefault("ES_URL", ""),
		ESUser:       pkgconfig.EnvDefault("ES_USER", ""),
		ESPassword:   pkgconfig.EnvDefault("ES_PASSWORD", ""),
		ESIndex:      pkgconfig.EnvDefault("ES_INDEX", DefaultESIndex),
		KafkaBrokers: pkgconfig.CSV(pkgconfig.EnvDefault("KAFKA_BROKERS", "")),
		Port:         pkgconfig.EnvDefault("SERVER_PORT", DefaultPort),
		LogLevel:     pkgconfig.EnvDefault("LOG_LEVEL", "info"),
		CookieSecure: pkgconfig.EnvBoolDefault("COOKIE_SECURE", false),
		IdleTTL:      pkgconfig.EnvSecondsDefault("IDLE_TTL_SECONDS", DefaultIdleTTL),

		TrustedOrigins: pkgconfig.CSV(pkgconfig.EnvDefault("TRUSTED_ORIGINS", "")),
	}
}

// MustValidate stops the process when a required value is missing.
func (c *Config) MustValidate() {
	pkgconfig.MustNonEmpty(c.APIURL, "MARKETPLACE_API_URL")
}

func (c *Config) SearchEnabled() bool { return c.ESURL != "" }

func (c *Config) EventsEnabled() bool { return len(c.KafkaBrokers) > 0 }
