package worker

import (
	"context"
	"errors"
	"fmt"
	osexec "os/exec"
	"strings"

	"baton/internal/exec"
	"baton/internal/handoff"
	"baton/pkg/models"
)

// ShellHandler runs the "command" entry of the task input through a shell.
// It is the reference worker that makes the CLI usable end to end; real
// specialist handlers are registered by the embedding system.
type ShellHandler struct {
	runner  exec.CommandRunner
	workDir string
}

// NewShellHandler creates a shell handler executing in workDir.
// If workDir is empty, commands run in the process working directory.
func NewShellHandler(runner exec.CommandRunner, workDir string) *ShellHandler {
	return &ShellHandler{runner: runner, workDir: workDir}
}

// Execute runs input["command"] and returns {"stdout": ..., "exit_code": ...}.
func (h *ShellHandler) Execute(ctx context.Context, input models.Payload, snap *handoff.Snapshot) (models.Payload, error) {
	command, _ := input["command"].(string)
	if strings.TrimSpace(command) == "" {
		return nil, errors.New("shell handler requires a non-empty \"command\" input")
	}

	out, err := h.runner.RunShell(ctx, h.workDir, command)
	if err != nil {
		var exitErr *osexec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("command exited with code %d: %s", exitErr.ExitCode(), strings.TrimSpace(string(out)))
		}
		return nil, fmt.Errorf("command failed: %w", err)
	}

	return models.Payload{
		"stdout":    string(out),
		"exit_code": 0,
	}, nil
}

// EchoHandler returns its input unchanged. Useful for plan dry-runs and tests.
type EchoHandler struct{}

// NewEchoHandler creates an echo handler.
func NewEchoHandler() *EchoHandler {
	return &EchoHandler{}
}

// Execute returns a copy of the input payload.
func (h *EchoHandler) Execute(ctx context.Context, input models.Payload, snap *handoff.Snapshot) (models.Payload, error) {
	return input.Clone(), nil
}
