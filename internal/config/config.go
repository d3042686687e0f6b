// Package config assembles the server configuration from defaults, an
// optional YAML file, the environment and command-line flags, in that order
// of increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/malbeclabs/pianificatore-mcp/internal/duck"
	"github.com/malbeclabs/pianificatore-mcp/internal/server"
)

const (
	defaultDBPath          = "md:"
	defaultTransport       = server.TransportStdio
	defaultListenAddr      = "0.0.0.0:8010"
	defaultShutdownTimeout = 5 * time.Second

	userAgentPrefix = "pianificatore-mcp"
)

// Environment variables read by Load. The token is also accepted in upper case.
const (
	EnvConfigFile      = "MCP_CONFIG"
	EnvDBPath          = "MCP_DB_PATH"
	EnvMotherDuckToken = "motherduck_token"
	EnvHomeDir         = "MCP_HOME_DIR"
	EnvSaaSMode        = "MCP_SAAS_MODE"
	EnvReadOnly        = "MCP_READ_ONLY"
	EnvTransport       = "MCP_TRANSPORT"
	EnvListenAddr      = "MCP_LISTEN_ADDR"
	EnvMetricsAddr     = "MCP_METRICS_ADDR"
	EnvAllowedTokens   = "MCP_ALLOWED_TOKENS"
)

type Config struct {
	DBPath          string        `yaml:"db_path"`
	MotherDuckToken string        `yaml:"motherduck_token"`
	HomeDir         string        `yaml:"home_dir"`
	SaaSMode        bool          `yaml:"saas_mode"`
	ReadOnly        bool          `yaml:"read_only"`
	Transport       string        `yaml:"transport"`
	ListenAddr      string        `yaml:"listen_addr"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	AllowedTokens   []string      `yaml:"allowed_tokens"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Verbose         bool          `yaml:"verbose"`
}

func Default() *Config {
	return &Config{
		DBPath:          defaultDBPath,
		Transport:       defaultTransport,
		ListenAddr:      defaultListenAddr,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

// Load parses args and merges them over the environment read through getenv,
// the YAML file named by --config (or MCP_CONFIG) and the defaults. It
// returns flag.ErrHelp when help was requested.
func Load(args []string, getenv func(string) string) (*Config, error) {
	fs := flag.NewFlagSet("pianificatore-mcp", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	def := Default()
	configFlag := fs.String("config", "", "path to a YAML configuration file (or set "+EnvConfigFile+")")
	dbPathFlag := fs.String("db-path", def.DBPath, "database location: md:[<db>] for MotherDuck, a file path, or :memory:")
	tokenFlag := fs.String("motherduck-token", "", "MotherDuck access token (or set "+EnvMotherDuckToken+")")
	homeDirFlag := fs.String("home-dir", "", "home directory for the engine (extensions, secrets)")
	saasModeFlag := fs.Bool("saas-mode", false, "connect to MotherDuck in SaaS mode (no local file or extension access)")
	readOnlyFlag := fs.Bool("read-only", false, "open the database in read-only mode")
	transportFlag := fs.String("transport", def.Transport, "transport to serve MCP on (stdio, http)")
	listenAddrFlag := fs.String("listen-addr", def.ListenAddr, "HTTP server listen address")
	metricsAddrFlag := fs.String("metrics-addr", "", "address to listen on for prometheus metrics (disabled when empty)")
	allowedTokensFlag := fs.StringSlice("allowed-tokens", nil, "bearer tokens accepted by the HTTP transport")
	shutdownTimeoutFlag := fs.Duration("shutdown-timeout", def.ShutdownTimeout, "graceful shutdown timeout for the HTTP transport")
	verboseFlag := fs.Bool("verbose", false, "enable verbose (debug) logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	cfg := def

	configPath := *configFlag
	if configPath == "" {
		configPath = getenv(EnvConfigFile)
	}
	if configPath != "" {
		if err := cfg.loadFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	if fs.Changed("db-path") {
		cfg.DBPath = *dbPathFlag
	}
	if fs.Changed("motherduck-token") {
		cfg.MotherDuckToken = *tokenFlag
	}
	if fs.Changed("home-dir") {
		cfg.HomeDir = *homeDirFlag
	}
	if fs.Changed("saas-mode") {
		cfg.SaaSMode = *saasModeFlag
	}
	if fs.Changed("read-only") {
		cfg.ReadOnly = *readOnlyFlag
	}
	if fs.Changed("transport") {
		cfg.Transport = *transportFlag
	}
	if fs.Changed("listen-addr") {
		cfg.ListenAddr = *listenAddrFlag
	}
	if fs.Changed("metrics-addr") {
		cfg.MetricsAddr = *metricsAddrFlag
	}
	if fs.Changed("allowed-tokens") {
		cfg.AllowedTokens = *allowedTokensFlag
	}
	if fs.Changed("shutdown-timeout") {
		cfg.ShutdownTimeout = *shutdownTimeoutFlag
	}
	if fs.Changed("verbose") {
		cfg.Verbose = *verboseFlag
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv(EnvDBPath); v != "" {
		c.DBPath = v
	}
	if v := getenv(EnvMotherDuckToken); v != "" {
		c.MotherDuckToken = v
	} else if v := getenv(strings.ToUpper(EnvMotherDuckToken)); v != "" {
		c.MotherDuckToken = v
	}
	if v := getenv(EnvHomeDir); v != "" {
		c.HomeDir = v
	}
	if v := getenv(EnvSaaSMode); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvSaaSMode, v, err)
		}
		c.SaaSMode = b
	}
	if v := getenv(EnvReadOnly); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvReadOnly, v, err)
		}
		c.ReadOnly = b
	}
	if v := getenv(EnvTransport); v != "" {
		c.Transport = v
	}
	if v := getenv(EnvListenAddr); v != "" {
		c.ListenAddr = v
	}
	if v := getenv(EnvMetricsAddr); v != "" {
		c.MetricsAddr = v
	}
	if v := getenv(EnvAllowedTokens); v != "" {
		c.AllowedTokens = splitList(v)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the server settings. Database settings are checked when the
// session is opened.
func (c *Config) Validate() error {
	switch c.Transport {
	case server.TransportStdio:
	case server.TransportHTTP:
		if c.ListenAddr == "" {
			return fmt.Errorf("listen address is required for the http transport")
		}
	default:
		return fmt.Errorf("unknown transport %q (want %s or %s)", c.Transport, server.TransportStdio, server.TransportHTTP)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown timeout must not be negative")
	}
	for _, token := range c.AllowedTokens {
		if strings.TrimSpace(token) == "" {
			return fmt.Errorf("allowed tokens must not be empty")
		}
	}
	return nil
}

// SessionConfig returns the engine session settings, tagging connections with
// the given build version.
func (c *Config) SessionConfig(version string) duck.SessionConfig {
	return duck.SessionConfig{
		Location:  c.DBPath,
		Token:     c.MotherDuckToken,
		HomeDir:   c.HomeDir,
		ReadOnly:  c.ReadOnly,
		SaaSMode:  c.SaaSMode,
		UserAgent: userAgentPrefix + "/" + version,
	}
}
