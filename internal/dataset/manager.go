package dataset

import (
	"context"
	"fmt"
	"log/slog"

	"eventsync/internal/config"
	"eventsync/internal/logging"
)

// Manager unlocks files for writing and saves modifications.
type Manager interface {
	Unlock(ctx context.Context, path string) error
	Save(ctx context.Context, paths []string, message string) error
}

// New builds the manager selected by cfg.Dataset.Manager.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("dataset manager: config required")
	}
	switch cfg.Dataset.Manager {
	case config.ManagerPlain:
		return Plain{}, nil
	case config.ManagerDatalad:
		d, err := NewDatalad(cfg.Paths.DatasetDir, cfg.Dataset.DataladBinary, cfg.Dataset.CommandTimeout,
			append([]Option{WithLogger(logger)}, opts...)...)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("dataset manager: unknown kind %q", cfg.Dataset.Manager)
	}
}

// Plain is a Manager for datasets without version control.
type Plain struct{}

func (Plain) Unlock(context.Context, string) error { return nil }

func (Plain) Save(context.Context, []string, string) error { return nil }

func componentLogger(logger *slog.Logger) *slog.Logger {
	return logging.NewComponentLogger(logger, "dataset")
}
