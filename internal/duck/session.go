package duck

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/alitto/pond/v2"
	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/pianificatore-mcp/internal/metrics"
)

type State int

const (
	StateUninitialized State = iota
	StateLive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Option func(*Session)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Session) {
		s.clock = clock
	}
}

// Session owns the single engine connection of the process. Statements are
// executed one at a time, in submission order.
type Session struct {
	log   *slog.Logger
	cfg   SessionConfig
	clock clockwork.Clock

	mu    sync.RWMutex
	state State
	db    *sql.DB
	conn  *sql.Conn
	exec  pond.ResultPool[*Result]
}

func NewSession(log *slog.Logger, cfg SessionConfig, opts ...Option) (*Session, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	s := &Session{
		log:   log,
		cfg:   cfg,
		clock: clockwork.NewRealClock(),
		state: StateUninitialized,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open creates a session and initializes it.
func Open(ctx context.Context, log *slog.Logger, cfg SessionConfig, opts ...Option) (*Session, error) {
	s, err := NewSession(log, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) Config() SessionConfig {
	return s.cfg
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Initialize opens the engine connection and moves the session to Live.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		return &InvalidStateError{Op: "initialize", State: s.state}
	}

	connErr := func(err error) error {
		return &ConnectionError{Location: s.cfg.Location, Err: err}
	}

	if err := s.cfg.Validate(); err != nil {
		return connErr(err)
	}

	kind := s.cfg.Kind()
	if kind == LocationLocal && !s.cfg.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(s.cfg.Location), 0755); err != nil {
			return connErr(fmt.Errorf("failed to create database directory: %w", err))
		}
	}

	s.log.Info("duck: opening session",
		"kind", kind.String(),
		"dsn", s.cfg.RedactedDSN(),
		"readOnly", s.cfg.ReadOnly,
		"saasMode", s.cfg.SaaSMode,
		"homeDir", s.cfg.HomeDir,
	)

	db, err := sql.Open("duckdb", s.cfg.DSN())
	if err != nil {
		return connErr(fmt.Errorf("failed to open database: %w", err))
	}
	// One engine connection per process.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return connErr(err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return connErr(err)
	}

	if s.cfg.HomeDir != "" {
		stmt := fmt.Sprintf("SET home_directory = '%s'", strings.ReplaceAll(s.cfg.HomeDir, "'", "''"))
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			conn.Close()
			db.Close()
			return connErr(fmt.Errorf("failed to set home directory: %w", err))
		}
	}

	s.db = db
	s.conn = conn
	s.exec = pond.NewResultPool[*Result](1)
	s.state = StateLive

	s.log.Info("duck: session live", "kind", kind.String())
	return nil
}

// Query executes sqlText and returns its fully materialized result. Engine
// failures are returned as *QueryError; the statement is never retried.
func (s *Session) Query(ctx context.Context, sqlText string) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != StateLive {
		return nil, &InvalidStateError{Op: "query", State: s.state}
	}

	// Statements run to completion once queued.
	ctx = context.WithoutCancel(ctx)

	task := s.exec.SubmitErr(func() (*Result, error) {
		start := s.clock.Now()
		res, err := s.run(ctx, sqlText)
		duration := s.clock.Since(start)

		metrics.QueryDuration.Observe(duration.Seconds())
		if err != nil {
			metrics.QueriesTotal.WithLabelValues("error").Inc()
			s.log.Debug("duck: query failed", "duration", duration, "error", err)
			return nil, err
		}
		metrics.QueriesTotal.WithLabelValues("success").Inc()
		s.log.Debug("duck: query complete", "duration", duration, "rows", res.Count())
		return res, nil
	})

	res, err := task.Wait()
	if err != nil {
		var qerr *QueryError
		if errors.As(err, &qerr) {
			return nil, qerr
		}
		return nil, &QueryError{SQL: sqlText, Err: err}
	}
	return res, nil
}

func (s *Session) run(ctx context.Context, sqlText string) (*Result, error) {
	rows, err := s.conn.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, &QueryError{SQL: sqlText, Err: err}
	}
	defer rows.Close()

	res, err := scanResult(rows)
	if err != nil {
		return nil, &QueryError{SQL: sqlText, Err: err}
	}
	return res, nil
}

// Close releases the engine connection. Closing more than once is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return nil
	case StateUninitialized:
		s.state = StateClosed
		return nil
	}

	s.exec.StopAndWait()
	s.state = StateClosed

	var errs []error
	if err := s.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	s.conn = nil
	s.db = nil

	s.log.Info("duck: session closed")
	return errors.Join(errs...)
}
