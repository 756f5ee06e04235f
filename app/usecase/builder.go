package usecase

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"scaffoldgen/internal/domain/entity"
)

type Builder interface {
	Build(ctx context.Context, run *entity.Run) (string, error)
}

// NpmBuilder installs dependencies and runs the production build of an
// exported project. Output of both steps goes to a per-run log file.
type NpmBuilder struct {
	baseDir        string
	bin            string
	installTimeout time.Duration
	buildTimeout   time.Duration
}

func NewNpmBuilder(baseDir string) *NpmBuilder {
	return &NpmBuilder{
		baseDir:        baseDir,
		bin:            "npm",
		installTimeout: 5 * time.Minute,
		buildTimeout:   5 * time.Minute,
	}
}

// WithBinary replaces the npm executable, e.g. with pnpm.
func (b *NpmBuilder) WithBinary(bin string) *NpmBuilder {
	b.bin = bin
	return b
}

func (b *NpmBuilder) Build(parent context.Context, run *entity.Run) (string, error) {
	if run.ID == "" {
		return "", fmt.Errorf("run id is empty")
	}

	dir := filepath.Join(b.baseDir, run.ID)

	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("project directory not found %q: %w", dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project path is not a directory: %s", dir)
	}

	logDir := filepath.Join(b.baseDir, "build-logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", fmt.Errorf("create logs dir: %w", err)
	}
	logPath := filepath.Join(logDir, fmt.Sprintf("%s.log", run.ID))
	f, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("create log file: %w", err)
	}
	defer func() {
		_ = f.Sync()
		_ = f.Close()
	}()

	header := fmt.Sprintf("run_id: %s\nstarted_at: %s\ndir: %s\n\n--- COMMAND OUTPUT ---\n\n",
		run.ID, time.Now().Format(time.RFC3339), dir)
	if _, err := f.WriteString(header); err != nil {
		return logPath, fmt.Errorf("write header to log: %w", err)
	}

	runCmd := func(ctx context.Context, args ...string) error {
		cmd := exec.CommandContext(ctx, b.bin, args...)
		cmd.Dir = dir
		cmd.Stdout = f
		cmd.Stderr = f

		if err := cmd.Start(); err != nil {
			return err
		}

		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		select {
		case <-ctx.Done():
			_ = cmd.Process.Kill()
			<-done
			return ctx.Err()
		case err := <-done:
			return err
		}
	}

	steps := []struct {
		name    string
		args    []string
		timeout time.Duration
	}{
		{"install", []string{"install", "--no-audit", "--no-fund"}, b.installTimeout},
		{"build", []string{"run", "build"}, b.buildTimeout},
	}
	for _, step := range steps {
		if _, err := fmt.Fprintf(f, "\n--- %s %s ---\n", b.bin, step.name); err != nil {
			return logPath, fmt.Errorf("write log: %w", err)
		}
		stepCtx, cancel := context.WithTimeout(parent, step.timeout)
		err := runCmd(stepCtx, step.args...)
		ctxErr := stepCtx.Err()
		cancel()
		if err != nil {
			if ctxErr != nil {
				return logPath, fmt.Errorf("%s %s canceled or timed out: %w", b.bin, step.name, ctxErr)
			}
			return logPath, fmt.Errorf("%s %s failed: %w", b.bin, step.name, err)
		}
	}

	if _, err := f.WriteString("\n--- SUCCESS ---\nended_at: " + time.Now().Format(time.RFC3339) + "\n"); err != nil {
		return logPath, fmt.Errorf("write footer to log: %w", err)
	}

	return logPath, nil
}
