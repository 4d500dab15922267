package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MongoURI    string
	MongoDB     string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	JWTSecret   string
	TokenTTL    time.Duration
	EmailDomain string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	MailFrom    string
	MailPerSec  int
	PublicURL   string
	SeedFile    string
	SeedWorkers int
}

func Load() Config {
	// best-effort .env for local development
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MongoURI:    env("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     env("MONGO_DB", "kuex"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		JWTSecret:   env("JWT_SECRET", ""),
		TokenTTL:    time.Duration(atoi("TOKEN_TTL_HOURS", 24*7)) * time.Hour,
		EmailDomain: env("EMAIL_DOMAIN", "korea.ac.kr"),
		SMTPHost:    env("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:    atoi("SMTP_PORT", 587),
		SMTPUser:    env("EMAIL_USER", ""),
		SMTPPass:    env("EMAIL_PASS", ""),
		MailFrom:    env("MAIL_FROM_NAME", "KU:EX"),
		MailPerSec:  atoi("MAIL_PER_SECOND", 2),
		PublicURL:   env("PUBLIC_URL", "http://localhost:3000"),
		SeedFile:    env("SEED_FILE", "seed/schools.json"),
		SeedWorkers: atoi("SEED_WORKERS", 8),
	}
	if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty")
	}
	return c
}

func (c Config) Dev() bool { return c.AppEnv == "dev" || c.AppEnv == "development" }

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
