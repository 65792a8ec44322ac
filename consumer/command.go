package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/input-output-hk/catalyst-forge-libs/splitter/errors"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/event"
)

// Result holds the output of one command run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Attempts int
}

// CommandOptions configures how a Command runs.
type CommandOptions struct {
	// Retry configuration
	MaxRetries int
	RetryDelay time.Duration
	RetryOn    func(error) bool // nil retries every failure

	// Timeout bounds a single attempt. Zero means no limit beyond ctx.
	Timeout time.Duration

	// WorkingDir is the directory the program runs in.
	WorkingDir string

	// Env is appended to the current environment.
	Env map[string]string

	// Extra writers receiving the program's output alongside the capture.
	StdoutWriter io.Writer
	StderrWriter io.Writer

	Clock  clockwork.Clock
	Logger *slog.Logger
}

// CommandOption modifies CommandOptions.
type CommandOption func(*CommandOptions)

// DefaultCommandOptions returns the options used by NewCommand.
func DefaultCommandOptions() *CommandOptions {
	return &CommandOptions{
		MaxRetries: 0,
		RetryDelay: time.Second,
		Env:        make(map[string]string),
		Clock:      clockwork.NewRealClock(),
	}
}

// Command is a Consumer that runs an external program once per item. The
// item is written to the program's stdin as JSON; a non-zero exit status is a
// processing failure.
type Command struct {
	program string
	args    []string
	options *CommandOptions
}

// NewCommand creates a Command running program with args.
func NewCommand(program string, args []string, opts ...CommandOption) *Command {
	options := DefaultCommandOptions()
	for _, opt := range opts {
		opt(options)
	}
	return &Command{program: program, args: args, options: options}
}

// Process implements Consumer.
func (c *Command) Process(ctx context.Context, item event.Item) error {
	input, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}

	result, err := c.Run(ctx, input)
	if err != nil {
		if c.options.Logger != nil {
			c.options.Logger.ErrorContext(ctx, "consumer command failed",
				"program", c.program,
				"item_key", event.ItemKey(item),
				"exit_code", result.ExitCode,
				"attempts", result.Attempts,
				"stderr", result.Stderr,
				"error", err)
		}
		return err
	}

	if c.options.Logger != nil {
		c.options.Logger.DebugContext(ctx, "consumer command finished",
			"program", c.program,
			"item_key", event.ItemKey(item),
			"attempts", result.Attempts)
	}
	return nil
}

// Run executes the program with input on stdin, retrying according to the
// options. The returned Result describes the last attempt and is never nil.
func (c *Command) Run(ctx context.Context, input []byte) (*Result, error) {
	maxAttempts := c.options.MaxRetries + 1

	var result *Result
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err = c.runOnce(ctx, input)
		result.Attempts = attempt

		if err == nil || attempt == maxAttempts {
			return result, err
		}
		if c.options.RetryOn != nil && !c.options.RetryOn(err) {
			return result, err
		}

		select {
		case <-ctx.Done():
			return result, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-c.options.Clock.After(c.options.RetryDelay):
		}
	}
	return result, err
}

func (c *Command) runOnce(ctx context.Context, input []byte) (*Result, error) {
	if c.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.options.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.program, c.args...)
	if c.options.WorkingDir != "" {
		cmd.Dir = c.options.WorkingDir
	}
	if len(c.options.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range c.options.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = withExtra(&stdout, c.options.StdoutWriter)
	cmd.Stderr = withExtra(&stderr, c.options.StderrWriter)

	err := cmd.Run()

	result := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case stderrors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.ExitCode = -1
	}

	if err != nil {
		if c.options.Timeout > 0 && stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return result, errors.WrapWithContext(err, errors.CodeTimeout, "command timed out",
				map[string]any{"program": c.program, "timeout": c.options.Timeout.String()})
		}
		return result, fmt.Errorf("command execution failed: %w", err)
	}
	return result, nil
}

func withExtra(buf *bytes.Buffer, extra io.Writer) io.Writer {
	if extra == nil {
		return buf
	}
	return io.MultiWriter(buf, extra)
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) CommandOption {
	return func(o *CommandOptions) {
		o.MaxRetries = max(maxRetries, 0)
		o.RetryDelay = delay
	}
}

// WithRetryCondition sets a custom retry condition.
func WithRetryCondition(fn func(error) bool) CommandOption {
	return func(o *CommandOptions) {
		o.RetryOn = fn
	}
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) CommandOption {
	return func(o *CommandOptions) {
		o.Timeout = d
	}
}

// WithWorkingDir sets the working directory.
func WithWorkingDir(dir string) CommandOption {
	return func(o *CommandOptions) {
		o.WorkingDir = dir
	}
}

// WithEnv adds environment variables.
func WithEnv(env map[string]string) CommandOption {
	return func(o *CommandOptions) {
		if o.Env == nil {
			o.Env = make(map[string]string)
		}
		maps.Copy(o.Env, env)
	}
}

// WithEnvVar adds a single environment variable.
func WithEnvVar(key, value string) CommandOption {
	return WithEnv(map[string]string{key: value})
}

// WithStdoutWriter sets an extra stdout writer.
func WithStdoutWriter(w io.Writer) CommandOption {
	return func(o *CommandOptions) {
		o.StdoutWriter = w
	}
}

// WithStderrWriter sets an extra stderr writer.
func WithStderrWriter(w io.Writer) CommandOption {
	return func(o *CommandOptions) {
		o.StderrWriter = w
	}
}

// WithCommandClock sets the clock used between retries.
func WithCommandClock(clock clockwork.Clock) CommandOption {
	return func(o *CommandOptions) {
		if clock != nil {
			o.Clock = clock
		}
	}
}

// WithCommandLogger sets the logger. A nil logger disables logging.
func WithCommandLogger(logger *slog.Logger) CommandOption {
	return func(o *CommandOptions) {
		o.Logger = logger
	}
}
