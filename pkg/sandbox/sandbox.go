package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// FaultKind classifies why an execution did not succeed. Faults are carried
// inside the Result, never as a service error.
type FaultKind string

const (
	// FaultNone means the execution completed.
	FaultNone FaultKind = ""

	// FaultUnsupportedLanguage means the language tag is not recognized.
	// No execution is attempted.
	FaultUnsupportedLanguage FaultKind = "unsupported_language"

	// FaultTimeout means the wall-clock bound was exceeded. The result
	// holds whatever output was captured before the bound.
	FaultTimeout FaultKind = "timeout"

	// FaultRuntime means the snippet itself raised an uncaught error,
	// captured into Stderr.
	FaultRuntime FaultKind = "runtime_fault"
)

// Result is the outcome of one execution.
type Result struct {
	OK        bool
	Stdout    string
	Stderr    string
	Duration  time.Duration
	Simulated bool
	Fault     FaultKind
}

// LanguageConfig describes how one language tag executes.
type LanguageConfig struct {
	// Native enables real interpreter execution. When false (the default)
	// the language runs in simulation mode.
	Native bool

	// Command is the interpreter argv prefix for native mode, e.g.
	// ["python3"]. The source file path is appended.
	Command []string

	// Extension is the source file extension for native mode, without dot.
	Extension string
}

// Config holds executor configuration.
type Config struct {
	// Timeout is the wall-clock bound per execution.
	// Default: 10 seconds.
	Timeout time.Duration

	// Languages maps supported language tags to their execution setup.
	// Default: simulation mode for python, javascript, go, c, and cpp.
	Languages map[string]LanguageConfig
}

// DefaultConfig returns a Config with sensible defaults: a 10 second bound
// and simulation mode for every supported language.
func DefaultConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
		Languages: map[string]LanguageConfig{
			"python":     {Extension: "py"},
			"javascript": {Extension: "js"},
			"go":         {Extension: "go"},
			"c":          {Extension: "c"},
			"cpp":        {Extension: "cpp"},
		},
	}
}

// Executor runs submitted snippets. Safe for concurrent use; each call is
// independent.
type Executor struct {
	config *Config
	logger *slog.Logger
	tracer trace.Tracer

	// runFn is the per-language execution body. Swappable in tests.
	runFn func(ctx context.Context, language string, spec LanguageConfig, source string, stdout, stderr *lockedBuffer) error
}

// New creates an Executor with the given configuration.
func New(config *Config, logger *slog.Logger) *Executor {
	if config == nil {
		config = DefaultConfig()
	} else {
		defaults := DefaultConfig()
		if config.Timeout == 0 {
			config.Timeout = defaults.Timeout
		}
		if config.Languages == nil {
			config.Languages = defaults.Languages
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Executor{
		config: config,
		logger: logger.With("component", "sandbox"),
		tracer: otel.Tracer("codesync"),
	}
	e.runFn = e.run
	return e
}

// Supported reports whether the language tag is recognized.
func (e *Executor) Supported(language string) bool {
	_, ok := e.config.Languages[language]
	return ok
}

// Languages returns the supported language tags, sorted.
func (e *Executor) Languages() []string {
	tags := make([]string, 0, len(e.config.Languages))
	for tag := range e.config.Languages {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Execute runs source under the configured wall-clock bound and returns the
// captured output. It never blocks past the bound: an overrunning execution
// yields a FaultTimeout result with the output captured so far, and the
// abandoned run's eventual output is discarded.
func (e *Executor) Execute(ctx context.Context, source, language string) Result {
	spec, ok := e.config.Languages[language]
	if !ok {
		return Result{
			Fault:  FaultUnsupportedLanguage,
			Stderr: fmt.Sprintf("unsupported language %q", language),
		}
	}

	ctx, span := e.tracer.Start(ctx, "sandbox.execute",
		trace.WithAttributes(
			attribute.String("language", language),
			attribute.Bool("native", spec.Native),
		))
	defer span.End()

	runCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	var stdout, stderr lockedBuffer
	done := make(chan error, 1)
	start := time.Now()

	go func() {
		done <- e.runFn(runCtx, language, spec, source, &stdout, &stderr)
	}()

	var res Result
	select {
	case err := <-done:
		res = Result{
			OK:        err == nil,
			Stdout:    stdout.String(),
			Stderr:    stderr.String(),
			Duration:  time.Since(start),
			Simulated: !spec.Native,
		}
		if err != nil {
			res.Fault = FaultRuntime
			if res.Stderr == "" {
				res.Stderr = err.Error()
			}
		}

	case <-runCtx.Done():
		// Abandon the run; whatever it writes from here on is discarded.
		res = Result{
			Stdout:    stdout.String(),
			Stderr:    fmt.Sprintf("execution timed out after %s", e.config.Timeout),
			Duration:  time.Since(start),
			Simulated: !spec.Native,
			Fault:     FaultTimeout,
		}
	}

	if !res.OK {
		span.SetStatus(codes.Error, string(res.Fault))
		e.logger.Warn("execution failed",
			"language", language,
			"fault", string(res.Fault),
			"duration", res.Duration)
	} else {
		e.logger.Debug("execution completed",
			"language", language,
			"simulated", res.Simulated,
			"duration", res.Duration)
	}

	return res
}

func (e *Executor) run(ctx context.Context, language string, spec LanguageConfig, source string, stdout, stderr *lockedBuffer) error {
	if spec.Native && len(spec.Command) > 0 {
		return e.runNative(ctx, spec, source, stdout, stderr)
	}
	return simulate(language, source, stdout)
}

// lockedBuffer is a write-synchronized byte buffer so the executor can take
// a partial-output snapshot while an abandoned run may still be writing.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) WriteString(s string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.WriteString(s)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
