package duck

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	MemoryLocation = ":memory:"

	tokenOption     = "motherduck_token"
	saasModeOption  = "motherduck_saas_mode"
	accessOption    = "access_mode"
	userAgentOption = "custom_user_agent"
)

type LocationKind int

const (
	LocationMemory LocationKind = iota
	LocationLocal
	LocationRemote
)

func (k LocationKind) String() string {
	switch k {
	case LocationMemory:
		return "memory"
	case LocationLocal:
		return "local"
	case LocationRemote:
		return "motherduck"
	default:
		return fmt.Sprintf("LocationKind(%d)", int(k))
	}
}

// ClassifyLocation picks the connection branch from the shape of the location
// string alone.
func ClassifyLocation(location string) LocationKind {
	switch {
	case location == "" || strings.HasPrefix(location, MemoryLocation):
		return LocationMemory
	case strings.HasPrefix(location, "md:") || strings.HasPrefix(location, "motherduck:"):
		return LocationRemote
	default:
		return LocationLocal
	}
}

// SessionConfig describes how to reach the database engine.
type SessionConfig struct {
	Location  string
	Token     string
	HomeDir   string
	ReadOnly  bool
	SaaSMode  bool
	UserAgent string
}

func (c SessionConfig) Kind() LocationKind {
	return ClassifyLocation(c.Location)
}

func (c SessionConfig) Validate() error {
	switch c.Kind() {
	case LocationRemote:
		if c.Token == "" {
			return ErrMissingToken
		}
	case LocationMemory:
		if c.ReadOnly {
			return ErrReadOnlyMemory
		}
	}
	if strings.Contains(c.Location, "?") {
		return fmt.Errorf("location %q must not carry connection options", c.Location)
	}
	return nil
}

// DSN returns the duckdb-go data source name: the location followed by DuckDB
// configuration options as query parameters.
func (c SessionConfig) DSN() string {
	return c.dsn(c.Token)
}

// RedactedDSN is DSN with the token masked, for logging.
func (c SessionConfig) RedactedDSN() string {
	if c.Token == "" {
		return c.DSN()
	}
	return c.dsn("REDACTED")
}

func (c SessionConfig) dsn(token string) string {
	location := c.Location
	if c.Kind() == LocationMemory && location == "" {
		location = MemoryLocation
	}

	opts := url.Values{}
	if c.Kind() == LocationRemote {
		opts.Set(tokenOption, token)
		if c.SaaSMode {
			opts.Set(saasModeOption, "true")
		}
	}
	if c.ReadOnly {
		opts.Set(accessOption, "read_only")
	}
	if c.UserAgent != "" {
		opts.Set(userAgentOption, c.UserAgent)
	}
	if len(opts) == 0 {
		return location
	}

	return location + "?" + opts.Encode()
}
