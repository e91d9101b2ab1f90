package server

import (
	"net"
	"strconv"
	"time"

	"github.com/agentstation/worldfeed/internal/config"
)

// Config holds server configuration.
type Config struct {
	Host       string
	Port       int
	PathPrefix string

	// AdminKey guards the admin endpoints. Empty disables them.
	AdminKey    string
	AdminHeader string

	// CORSOrigins enables CORS. A single "*" allows every origin.
	CORSOrigins []string

	RateLimit int // requests per minute per client, 0 disables
	CacheTTL  time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         8080,
		PathPrefix:   "/api/v1",
		AdminHeader:  "X-Admin-Key",
		RateLimit:    100,
		CacheTTL:     time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // streams stay open
		IdleTimeout:  120 * time.Second,
	}
}

// FromSettings maps the process configuration onto server defaults.
func FromSettings(s config.Server) Config {
	cfg := DefaultConfig()
	if s.Host != "" {
		cfg.Host = s.Host
	}
	if s.Port != 0 {
		cfg.Port = s.Port
	}
	if s.PathPrefix != "" {
		cfg.PathPrefix = s.PathPrefix
	}
	if s.CacheTTL > 0 {
		cfg.CacheTTL = s.CacheTTL
	}
	cfg.AdminKey = s.AdminKey
	cfg.CORSOrigins = s.CORSOrigins
	cfg.RateLimit = s.RateLimit
	return cfg
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
