package backend

import (
	"fmt"
	"log/slog"

	"tally/internal/amqp"
	"tally/internal/config"
	"tally/internal/storage"
)

// Type represents the storage backend selected by configuration.
type Type string

const (
	SQLiteBackend Type = "sqlite"
	MemoryBackend Type = "memory"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Result contains the opened store, the optional AMQP client, and a
// cleanup function to run at shutdown.
type Result struct {
	Store   storage.Store
	Events  *amqp.Client
	Cleanup CleanupFunc
}

// Open builds the storage backend described by the application config.
// The AMQP client is optional: a missing broker downgrades to a warning
// so the API keeps serving without lifecycle events.
func Open(cfg *config.Config, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backendType := Type(cfg.DataBackend)
	if !backendType.IsValid() {
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.DataBackend)
	}

	var store storage.Store
	switch backendType {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		store = repo
		logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
	case MemoryBackend:
		store = storage.NewMemoryStore()
		logger.Info("Initialized memory backend")
	}

	var events *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			events = client
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	cleanup := func() error {
		if events != nil {
			if err := events.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", "error", err)
			}
		}
		return store.Close()
	}

	return &Result{
		Store:   store,
		Events:  events,
		Cleanup: cleanup,
	}, nil
}
