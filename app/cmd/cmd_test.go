package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scaffoldgen/internal/domain/entity"
	"scaffoldgen/internal/infrastructure/store/sqlite"
)

func TestLoadConfig_EnvAndFlags(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("LLM_BASE_DELAY", "250ms")
	t.Setenv("FAIL_ON_VALIDATION", "true")
	t.Setenv("STACK_FILE", "env.hcl")
	t.Setenv("WORKER_POLL_INTERVAL", "not-a-duration")

	cfg := loadConfig(&globalOptions{stackFile: "flag.hcl", logLevel: "debug"})
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.BaseDelay)
	assert.True(t, cfg.Worker.FailOnValidation)
	assert.Equal(t, 5*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, "flag.hcl", cfg.StackFile, "flags win over env")
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestOrchestratorConfig(t *testing.T) {
	stackFile := filepath.Join(t.TempDir(), "stack.hcl")
	require.NoError(t, os.WriteFile(stackFile, []byte(`
stack {
  framework = "react"
  build_tool = "vite"
  styling = "css"
  language = "javascript"
}
fail_on_validation = true
`), 0o644))

	cfg := loadConfig(nil)
	cfg.StackFile = stackFile
	oc, err := orchestratorConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "css", oc.Stack.Styling)
	assert.True(t, oc.FailOnValidation)
	assert.NotNil(t, oc.Catalog)
	assert.Equal(t, cfg.Retry.MaxRetries, oc.Retry.MaxRetries)

	cfg.StackFile = filepath.Join(t.TempDir(), "missing.hcl")
	_, err = orchestratorConfig(cfg)
	assert.Error(t, err)
}

func TestNewCallFunc(t *testing.T) {
	cfg := loadConfig(nil)
	logger := newLogger(&bytes.Buffer{}, "error", false)

	cfg.LLM.APIKey = ""
	call, err := newCallFunc(context.Background(), cfg, logger)
	require.NoError(t, err)
	assert.Nil(t, call)

	cfg.LLM.APIKey = "k"
	cfg.LLM.Provider = "chat"
	call, err = newCallFunc(context.Background(), cfg, logger)
	require.NoError(t, err)
	assert.NotNil(t, call)

	cfg.LLM.Provider = "carrier-pigeon"
	_, err = newCallFunc(context.Background(), cfg, logger)
	assert.ErrorContains(t, err, "unknown LLM provider")
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func TestValidateCommand(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"package.json": `{"name":"a","version":"1.0.0","scripts":{"build":"vite build"},"dependencies":{"react":"18","react-dom":"18"},"devDependencies":{}}`,
		"index.html":   "<!doctype html><html></html>",
	})

	var out bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"validate", dir})

	err := root.Execute()
	assert.ErrorIs(t, err, entity.ErrValidationFailed)
	assert.Contains(t, out.String(), "[required-files] src/main.tsx: required file is missing")
	assert.Contains(t, out.String(), "failed:")
}

func TestValidateCommand_JSON(t *testing.T) {
	dir := writeProject(t, map[string]string{"README.md": "# hi there, nothing else"})

	var out bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"validate", "--json", dir})

	require.Error(t, root.Execute())
	assert.Contains(t, out.String(), `"passed": false`)
}

func TestRunGenerate_NotConfigured(t *testing.T) {
	dir := t.TempDir()
	cfg := loadConfig(nil)
	cfg.LLM.APIKey = ""
	cfg.LogLevel = "error"
	cfg.SQLite.Path = filepath.Join(dir, "runs.db")

	var out bytes.Buffer
	err := runGenerate(context.Background(), &out, cfg, generateOptions{
		name:        "Acme",
		description: "rockets",
		projectType: "landing",
		outDir:      filepath.Join(dir, "out"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), entity.ErrNotConfigured.Error())
	assert.Contains(t, out.String(), "Generation failed")

	store, err := sqlite.Open(cfg.SQLite.Path)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.ListByStatus(context.Background(), entity.RunStatusFailed)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0].Error, "not configured")
}

func TestRunGenerate_RejectsUnknownType(t *testing.T) {
	cfg := loadConfig(nil)
	err := runGenerate(context.Background(), &bytes.Buffer{}, cfg, generateOptions{
		name: "A", description: "B", projectType: "spaceship", outDir: t.TempDir(),
	})
	assert.ErrorContains(t, err, "unknown project type")
}
