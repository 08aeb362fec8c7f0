// Package config loads service configuration from the environment into an
// explicit struct handed to constructors; nothing reads the environment
// after startup.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Database holds the connection values for the Postgres pool.
type Database struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	Schema   string
	SSLMode  string
}

// DSN assembles the pgx connection string, carrying the schema as the
// session search_path.
func (d Database) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   d.Host + ":" + d.Port,
		Path:   "/" + d.Name,
	}
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	if d.Schema != "" {
		q.Set("options", "-csearch_path="+d.Schema)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Google holds the OAuth client settings for the callback exchange.
type Google struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Keys points at the PEM files of the session-token signing pair. The
// private key lives outside version control; production deployments should
// source it from a secrets manager instead of local disk.
type Keys struct {
	PrivatePath string
	PublicPath  string
}

// Config is the full service configuration.
type Config struct {
	Addr       string
	Env        string
	DB         Database
	Google     Google
	Keys       Keys
	SessionTTL time.Duration
	MapsPath   string
}

// FromEnv reads configuration from PANTRY_* environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr: envOr("PANTRY_ADDR", ":8080"),
		Env:  envOr("PANTRY_ENV", "production"),
		DB: Database{
			User:     os.Getenv("PANTRY_DB_USER"),
			Password: os.Getenv("PANTRY_DB_PASSWORD"),
			Host:     envOr("PANTRY_DB_HOST", "localhost"),
			Port:     envOr("PANTRY_DB_PORT", "5432"),
			Name:     os.Getenv("PANTRY_DB_NAME"),
			Schema:   os.Getenv("PANTRY_DB_SCHEMA"),
			SSLMode:  envOr("PANTRY_DB_SSLMODE", "disable"),
		},
		Google: Google{
			ClientID:     os.Getenv("PANTRY_GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("PANTRY_GOOGLE_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("PANTRY_GOOGLE_REDIRECT_URI"),
		},
		Keys: Keys{
			PrivatePath: envOr("PANTRY_JWT_PRIVATE_KEY", "vault/jwt_private_key.pem"),
			PublicPath:  envOr("PANTRY_JWT_PUBLIC_KEY", "vault/jwt_public_key.pem"),
		},
		SessionTTL: 24 * time.Hour,
		MapsPath:   envOr("PANTRY_MAPS_PATH", "maps.json"),
	}

	if raw := os.Getenv("PANTRY_SESSION_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse PANTRY_SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = ttl
	}

	if cfg.DB.User == "" || cfg.DB.Name == "" {
		return Config{}, errors.New("config: PANTRY_DB_USER and PANTRY_DB_NAME are required")
	}
	if _, err := strconv.Atoi(cfg.DB.Port); err != nil {
		return Config{}, fmt.Errorf("config: invalid PANTRY_DB_PORT %q", cfg.DB.Port)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
