package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/psantana5/callstats/pkg/callstats"
)

// Run is one persisted measurement: the merged counters of a workload
// execution.
type Run struct {
	ID        string             `json:"id" yaml:"id"`
	Name      string             `json:"name" yaml:"name"`
	Mode      string             `json:"mode" yaml:"mode"`
	Workers   int                `json:"workers" yaml:"workers"`
	StartedAt time.Time          `json:"started_at" yaml:"started_at"`
	Duration  time.Duration      `json:"duration_ns" yaml:"duration"`
	Entries   callstats.Snapshot `json:"entries" yaml:"entries"`
}

// Store persists runs. Implementations are safe for concurrent use.
type Store interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	// ListRuns returns the most recent runs first. A limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error
	Close() error
}

var (
	ErrRunNotFound         = errors.New("run not found")
	ErrUnsupportedDatabase = errors.New("unsupported database driver")
)

// Config holds database configuration
type Config struct {
	Driver string // "memory", "sqlite" or "postgres"
	DSN    string // file path for sqlite, connection string for postgres

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Drivers lists the accepted Config.Driver values.
var Drivers = []string{"memory", "sqlite", "postgres"}

// Open creates a store based on configuration
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "memory", "":
		return NewMemoryStore(), nil
	case "sqlite", "sqlite3":
		path := cfg.DSN
		if path == "" {
			path = "callstats.db"
		}
		return NewSQLiteStore(path)
	case "postgres", "postgresql":
		return NewPostgresStore(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDatabase, cfg.Driver)
	}
}

// NewRun prepares a run with a fresh id.
func NewRun(name, mode string, workers int, startedAt time.Time, duration time.Duration, entries callstats.Snapshot) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Name:      name,
		Mode:      mode,
		Workers:   workers,
		StartedAt: startedAt.UTC(),
		Duration:  duration,
		Entries:   entries,
	}
}

func validate(run *Run) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	if _, err := uuid.Parse(run.ID); err != nil {
		return fmt.Errorf("invalid run id %q: %w", run.ID, err)
	}
	return nil
}
