package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"eventsync/internal/logging"
	"eventsync/internal/services"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

// Option configures the datalad manager.
type Option func(*Datalad)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(d *Datalad) {
		if exec != nil {
			d.exec = exec
		}
	}
}

// WithLogger sets the logger used for command tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Datalad) {
		d.logger = componentLogger(logger)
	}
}

// Datalad drives `datalad unlock` and `datalad save` against one dataset root.
type Datalad struct {
	root    string
	binary  string
	timeout time.Duration
	exec    Executor
	logger  *slog.Logger
}

// NewDatalad constructs a datalad manager for root.
func NewDatalad(root, binary string, timeoutSeconds int, opts ...Option) (*Datalad, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("datalad manager: dataset root required")
	}
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("datalad manager: binary required")
	}
	d := &Datalad{
		root:    root,
		binary:  binary,
		timeout: time.Duration(timeoutSeconds) * time.Second,
		exec:    commandExecutor{},
		logger:  componentLogger(nil),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Unlock makes an annexed file writable. Paths that do not exist yet are
// skipped; there is nothing to unlock.
func (d *Datalad) Unlock(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return services.Wrap(services.ErrValidation, "dataset", "unlock", path, err)
	}
	return d.run(ctx, "unlock", []string{"unlock", "-d", d.root, "--", path})
}

// Save records modifications recursively, limited to paths when given.
func (d *Datalad) Save(ctx context.Context, paths []string, message string) error {
	args := []string{"save", "-d", d.root, "-r", "-m", message}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}
	return d.run(ctx, "save", args)
}

func (d *Datalad) run(ctx context.Context, operation string, args []string) error {
	runCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	start := time.Now()
	output, err := d.exec.Run(runCtx, d.binary, args)
	d.logger.Debug("datalad command finished",
		logging.String("operation", operation),
		logging.Strings("args", args),
		logging.Duration("duration", time.Since(start)),
	)
	if err != nil {
		marker := services.ErrExternalTool
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			marker = services.ErrTimeout
		}
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return services.Wrap(marker, "dataset", "datalad "+operation, strings.Join(args[1:], " "), err)
	}
	return nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	return cmd.CombinedOutput()
}
