package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var commandContext = exec.CommandContext

var (
	// ErrTimeout reports that the classifier exceeded its deadline and was killed.
	ErrTimeout = errors.New("classifier timed out")
	// ErrOutputLimit reports that a stream exceeded the capture limit.
	ErrOutputLimit = errors.New("classifier output exceeded limit")
	// ErrBadOutput reports a zero exit whose stdout was not valid JSON.
	ErrBadOutput = errors.New("classifier output is not valid JSON")
)

// ExitError reports a non-zero classifier exit together with its stderr.
type ExitError struct {
	Code   int
	Stderr string
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return fmt.Sprintf("classifier exited with code %d: %s", e.Code, e.Stderr)
}

// Option configures the CLI runner.
type Option func(*CLI)

// WithArgs sets fixed arguments placed before the image path.
func WithArgs(args ...string) Option {
	return func(c *CLI) {
		c.args = append([]string(nil), args...)
	}
}

// WithTimeout sets the per-invocation deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *CLI) {
		c.timeout = d
	}
}

// WithOutputLimit caps how many bytes of stdout and stderr are captured.
func WithOutputLimit(limit int64) Option {
	return func(c *CLI) {
		if limit > 0 {
			c.outputLimit = limit
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *CLI) {
		if logger != nil {
			c.logger = logger.Named("classifier")
		}
	}
}

// CLI runs the classifier as a subprocess: one spawn per call, the absolute
// image path as the final argument, JSON expected on stdout.
type CLI struct {
	command     string
	args        []string
	timeout     time.Duration
	outputLimit int64
	logger      *zap.Logger
}

// NewCLI constructs a runner for the given command.
func NewCLI(command string, opts ...Option) *CLI {
	cli := &CLI{
		command:     command,
		outputLimit: 1 << 20,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Classify spawns the classifier against imagePath and resolves its outcome.
// stdout and stderr are drained concurrently into bounded buffers; the
// process is killed if it outlives the deadline or floods either stream.
func (c *CLI) Classify(ctx context.Context, imagePath string) (*Result, error) {
	if strings.TrimSpace(imagePath) == "" {
		return nil, errors.New("image path required")
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	// Separate cancel so an overflowing stream can kill the process without
	// tripping the deadline check below.
	killCtx, kill := context.WithCancel(runCtx)
	defer kill()

	args := append(append([]string(nil), c.args...), imagePath)
	cmd := commandContext(killCtx, c.command, args...) //nolint:gosec

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start classifier: %w", err)
	}

	var (
		wg               sync.WaitGroup
		stdout, stderr   []byte
		stdoutOverflowed bool
		stderrOverflowed bool
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		stdout, stdoutOverflowed = drainLimited(stdoutPipe, c.outputLimit, kill)
	}()
	go func() {
		defer wg.Done()
		stderr, stderrOverflowed = drainLimited(stderrPipe, c.outputLimit, kill)
	}()

	// Both streams must be fully drained before Wait closes the pipes.
	wg.Wait()
	waitErr := cmd.Wait()

	if stdoutOverflowed || stderrOverflowed {
		c.logger.Warn("classifier killed after exceeding output limit",
			zap.String("image_path", imagePath),
			zap.Int64("limit_bytes", c.outputLimit))
		return nil, ErrOutputLimit
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		c.logger.Warn("classifier killed after deadline",
			zap.String("image_path", imagePath),
			zap.Duration("timeout", c.timeout))
		return nil, ErrTimeout
	}

	stderrText := strings.TrimSpace(string(stderr))
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			c.logger.Error("classifier failed",
				zap.String("image_path", imagePath),
				zap.Int("exit_code", exitErr.ExitCode()),
				zap.String("stderr", stderrText))
			return nil, &ExitError{Code: exitErr.ExitCode(), Stderr: stderrText}
		}
		return nil, fmt.Errorf("run classifier: %w", waitErr)
	}

	payload := bytes.TrimSpace(stdout)
	if !json.Valid(payload) {
		c.logger.Error("classifier produced unparseable output",
			zap.String("image_path", imagePath),
			zap.ByteString("stdout", payload))
		return nil, ErrBadOutput
	}

	c.logger.Info("classifier completed",
		zap.String("image_path", imagePath),
		zap.Int("exit_code", 0))
	return &Result{Payload: json.RawMessage(payload)}, nil
}

// drainLimited reads r until EOF, keeping at most limit bytes. When the limit
// is exceeded it invokes kill and reports the overflow, continuing to drain
// so the process is never blocked on a full pipe.
func drainLimited(r io.Reader, limit int64, kill func()) ([]byte, bool) {
	data, _ := io.ReadAll(io.LimitReader(r, limit+1))
	if int64(len(data)) > limit {
		kill()
		_, _ = io.Copy(io.Discard, r)
		return data[:limit], true
	}
	return data, false
}

var _ Runner = (*CLI)(nil)
