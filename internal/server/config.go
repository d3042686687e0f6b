package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/malbeclabs/pianificatore-mcp/internal/duck"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"

	defaultReadHeaderTimeout = 5 * time.Second
	defaultShutdownTimeout   = 5 * time.Second
)

// Session is the view of the engine session the server needs.
type Session interface {
	Querier
	State() duck.State
}

type Config struct {
	Logger  *slog.Logger
	Session Session

	Name              string
	Version           string
	Transport         string
	ListenAddr        string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	AllowedTokens     []string // Bearer tokens allowed for the HTTP endpoint
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Session == nil {
		return fmt.Errorf("session is required")
	}
	if c.Name == "" {
		c.Name = "pianificatore_ui"
	}
	if c.Transport == "" {
		c.Transport = TransportStdio
	}
	switch c.Transport {
	case TransportStdio:
	case TransportHTTP:
		if c.ListenAddr == "" {
			return fmt.Errorf("listen address is required for the http transport")
		}
	default:
		return fmt.Errorf("unknown transport %q (want %s or %s)", c.Transport, TransportStdio, TransportHTTP)
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	return nil
}
