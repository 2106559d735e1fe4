package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// runner executes an external command and returns its stdout. Factored out
// so adapter tests can substitute canned output.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// runCommand is the production runner. It maps the ways a command can fail
// onto the package error taxonomy.
func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	if errors.Is(err, exec.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, name)
	}
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w: %s", ErrTimeout, name)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%s exited with code %d: %s", name, exitErr.ExitCode(), msg)
	}

	return nil, fmt.Errorf("failed to run %s: %v", name, err)
}
