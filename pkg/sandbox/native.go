package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// runNative executes the snippet with the configured interpreter inside a
// throwaway working directory. The child gets a scrubbed environment: no
// inherited variables beyond PATH, with HOME and TMPDIR pinned inside the
// job directory, so the snippet cannot reach the host process's ambient
// state through the usual channels. Operators who need stronger isolation
// should point Command at a container or jail wrapper.
func (e *Executor) runNative(ctx context.Context, spec LanguageConfig, source string, stdout, stderr *lockedBuffer) error {
	dir, err := os.MkdirTemp("", "codesync-exec-*")
	if err != nil {
		return fmt.Errorf("prepare job dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			e.logger.Warn("job dir cleanup failed", "dir", dir, "error", rmErr)
		}
	}()

	sourcePath := filepath.Join(dir, "main."+spec.Extension)
	if err := os.WriteFile(sourcePath, []byte(source), 0o600); err != nil {
		return fmt.Errorf("write source: %w", err)
	}

	args := append(append([]string{}, spec.Command[1:]...), sourcePath)
	cmd := exec.CommandContext(ctx, spec.Command[0], args...)
	cmd.Dir = dir
	cmd.Env = []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=" + dir,
		"TMPDIR=" + dir,
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			// The executor's select reports the timeout; nothing to add.
			return ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("process exited with status %d", exitErr.ExitCode())
		}
		return fmt.Errorf("execution error: %w", err)
	}
	return nil
}
