// Package extproc drives the external workspace tooling: the create,
// upgrade, backup, and restore operations live in separate binaries owned
// by the product's storage team, and the worker shells out to them. The
// runner owns argument construction, progress parsing, and exit-code
// mapping; the binaries own the bytes.
//
// Protocol: a tool writes "PROGRESS <percent>" lines to stdout for the
// progress sink; every other stdout/stderr line goes to the phase log. A
// backup tool exits with code 3 to signal "nothing to back up", which is
// not a failure but does not advance the workspace either.
package extproc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/foundry-works/workspace-worker/pkg/phases"
)

// backupNoopExit is the exit code a backup tool uses for "nothing to do".
const backupNoopExit = 3

// Tools names the external binaries, one per operation. Empty entries make
// the corresponding operation fail fast, for workers deployed without that
// capability.
type Tools struct {
	Create  string
	Upgrade string
	Backup  string
	Restore string
}

// Runner implements the phase collaborator interfaces over the external
// tools.
type Runner struct {
	tools  Tools
	logger *slog.Logger
}

// NewRunner creates a runner for the given tool set.
func NewRunner(tools Tools, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{tools: tools, logger: logger}
}

// CreateWorkspace runs the create tool: model init, indices, seed data.
func (r *Runner) CreateWorkspace(ctx context.Context, req phases.CreateRequest) error {
	args := []string{
		"--workspace", req.Workspace.Workspace,
		"--uuid", req.Workspace.UUID,
		"--version", req.Version.String(),
	}
	if len(req.Txes) > 0 {
		args = append(args, "--tx", strings.Join(req.Txes, ","))
	}
	if req.Branding != nil {
		args = append(args, "--branding", req.Branding.Key)
	}
	return r.run(ctx, r.tools.Create, args, req.Logger, req.Progress)
}

// UpgradeWorkspace runs the upgrade tool against an existing workspace.
func (r *Runner) UpgradeWorkspace(ctx context.Context, req phases.UpgradeRequest) error {
	args := []string{
		"--workspace", req.Workspace.Workspace,
		"--uuid", req.Workspace.UUID,
		"--version", req.Version.String(),
	}
	if len(req.Txes) > 0 {
		args = append(args, "--tx", strings.Join(req.Txes, ","))
	}
	if req.Force {
		args = append(args, "--force")
	}
	return r.run(ctx, r.tools.Upgrade, args, req.Logger, req.Progress)
}

// Backup runs the backup tool. It reports false without an error when the
// tool signalled there was nothing to back up.
func (r *Runner) Backup(ctx context.Context, req phases.BackupRequest) (bool, error) {
	args := []string{
		"--workspace", req.Workspace.Workspace,
		"--uuid", req.Workspace.UUID,
		"--db", req.Adapter.URL(),
	}
	if len(req.Txes) > 0 {
		args = append(args, "--tx", strings.Join(req.Txes, ","))
	}
	if req.FullCheck {
		args = append(args, "--full-check")
	}
	args = appendBackupOptions(args, req.Options)

	err := r.run(ctx, r.tools.Backup, args, req.Logger, req.Progress)
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == backupNoopExit {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Restore runs the restore tool.
func (r *Runner) Restore(ctx context.Context, req phases.RestoreRequest) error {
	args := []string{
		"--workspace", req.Workspace.Workspace,
		"--uuid", req.Workspace.UUID,
		"--db", req.Adapter.URL(),
	}
	if req.BlobsOnly {
		args = append(args, "--blobs-only")
	}
	args = appendBackupOptions(args, req.Options)

	return r.run(ctx, r.tools.Restore, args, req.Logger, req.Progress)
}

func appendBackupOptions(args []string, opts *phases.BackupOptions) []string {
	if opts == nil {
		return args
	}
	if opts.Storage != "" {
		args = append(args, "--storage", opts.Storage)
	}
	if opts.Bucket != "" {
		args = append(args, "--bucket", opts.Bucket)
	}
	return args
}

// run executes one tool, streaming its output: PROGRESS lines feed the
// progress sink, everything else goes to the phase log.
func (r *Runner) run(ctx context.Context, tool string, args []string, logger *slog.Logger, progress phases.ProgressFunc) error {
	if tool == "" {
		return errors.New("extproc: no tool configured for this operation")
	}
	if logger == nil {
		logger = r.logger
	}

	cmd := exec.CommandContext(ctx, tool, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("extproc: %s: %w", tool, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("extproc: %s: %w", tool, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("extproc: start %s: %w", tool, err)
	}
	logger.Info("tool started", "tool", tool)

	errLines := make(chan struct{})
	go func() {
		defer close(errLines)
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logger.Warn("tool stderr", "tool", tool, "line", scanner.Text())
		}
	}()

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		if p, ok := parseProgressLine(line); ok {
			if progress != nil {
				progress(p)
			}
			continue
		}
		logger.Info("tool output", "tool", tool, "line", line)
	}
	<-errLines

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("extproc: %s: %w", tool, err)
	}
	return nil
}

// parseProgressLine recognizes "PROGRESS <percent>".
func parseProgressLine(line string) (float64, bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(line), "PROGRESS ")
	if !found {
		return 0, false
	}
	p, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
	if err != nil {
		return 0, false
	}
	return p, true
}
