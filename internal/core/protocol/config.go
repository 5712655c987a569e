package protocol

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config tunes one transport endpoint. The same struct serves the QUIC
// command port and the websocket gateway; fields a transport has no use for
// are ignored by it.
type Config struct {
	Host           string        `yaml:"host" json:"host"`
	Port           int           `yaml:"port" json:"port"`
	MaxConnections int           `yaml:"max_connections" json:"max_connections"`
	MaxMessageSize uint32        `yaml:"max_message_size" json:"max_message_size"`
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write_timeout"`
	KeepAlive      time.Duration `yaml:"keep_alive" json:"keep_alive"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	WorkerCount    int           `yaml:"worker_count" json:"worker_count"`

	// TLS settings. With TLSEnabled false the QUIC endpoint serves a
	// self-signed development certificate.
	TLSEnabled bool   `yaml:"tls_enabled" json:"tls_enabled"`
	CertFile   string `yaml:"cert_file" json:"cert_file"`
	KeyFile    string `yaml:"key_file" json:"key_file"`
}

// DefaultConfig returns the settings a development endpoint runs with.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           5555,
		MaxConnections: 1024,
		MaxMessageSize: 16 * 1024 * 1024, // 16MB, model payloads travel inline
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   10 * time.Second,
		KeepAlive:      15 * time.Second,
		IdleTimeout:    30 * time.Second,
		WorkerCount:    8,
	}
}

// Validate checks the configuration for values no endpoint can run with.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidConfig, c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("%w: max connections %d", ErrInvalidConfig, c.MaxConnections)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("%w: worker count %d", ErrInvalidConfig, c.WorkerCount)
	}
	if c.TLSEnabled && (c.CertFile == "" || c.KeyFile == "") {
		return fmt.Errorf("%w: TLS enabled without certificate files", ErrInvalidConfig)
	}
	return nil
}

// Addr joins host and port into a dialable address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
