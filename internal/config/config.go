// Package config defines the server configuration structure.
package config

import "time"

// Config is the root configuration for kvmesh-server.
type Config struct {
	Server  ServerSection  `koanf:"server"`
	Metrics MetricsSection `koanf:"metrics"`
	Log     LogSection     `koanf:"log"`
}

// ServerSection configures the RESP listener.
type ServerSection struct {
	// Enabled controls whether the RESP server starts at all.
	Enabled bool `koanf:"enabled"`

	// Host is the bind address. The server binds exactly this
	// address, with no fallback.
	Host string `koanf:"host"`

	// Port is the TCP port.
	Port int `koanf:"port"`

	// ReadTimeout bounds reading a single command.
	ReadTimeout time.Duration `koanf:"read_timeout"`

	// WriteTimeout bounds writing a response.
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// IdleTimeout bounds the wait between commands on a connection.
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	// RateLimit is the maximum commands per second per client IP.
	// 0 disables rate limiting.
	RateLimit int `koanf:"rate_limit"`
}

// MetricsSection configures the optional Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// LogSection configures logging output.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
