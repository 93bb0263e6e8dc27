package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	HTTP struct {
		Host string
		Port string
	}

	CORS struct {
		AllowedOrigins []string
	}

	Auth struct {
		// JWTSecret verifies the session tokens minted by the identity
		// bridge after provider sign-in.
		JWTSecret string
		Issuer    string
		// Provider is the only accepted identity-provider sign-in method.
		Provider string
	}

	Consent struct {
		// Gate controls whether addAdmiration requires accepted policies.
		Gate           bool
		PrivacyVersion string
		TermsVersion   string
	}
}

func New() *Config {
	cfg := &Config{}

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "api_server")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.DSN = os.Getenv("MYSQL_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "whisperlink")

		cfg.DB.DSN = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	if dbStr := getEnvDefault("REDIS_DB", "0"); dbStr != "" {
		if dbInt, err := strconv.Atoi(dbStr); err == nil {
			cfg.Redis.DB = dbInt
		}
	}

	// HTTP
	cfg.HTTP.Host = getEnvDefault("HTTP_HOST", "127.0.0.1")
	cfg.HTTP.Port = getEnvDefault("HTTP_PORT", "8080")

	// CORS
	cfg.CORS.AllowedOrigins = splitCSV(getEnvDefault("CORS_ORIGINS", "http://localhost:5173"))

	// Auth
	cfg.Auth.JWTSecret = getEnvDefault("AUTH_JWT_SECRET", "dev-secret-change-me")
	cfg.Auth.Issuer = getEnvDefault("AUTH_ISSUER", "whisperlink")
	cfg.Auth.Provider = getEnvDefault("AUTH_PROVIDER", "twitter.com")

	// Consent
	cfg.Consent.Gate = isTruthy(getEnvDefault("CONSENT_GATE", "true"))
	cfg.Consent.PrivacyVersion = getEnvDefault("CONSENT_PRIVACY_VERSION", "2025-06-01")
	cfg.Consent.TermsVersion = getEnvDefault("CONSENT_TERMS_VERSION", "2025-06-01")

	return cfg
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
