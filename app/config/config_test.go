package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scaffoldgen/internal/domain/entity"
)

const stackHCL = `
stack {
  framework = "vue"
  language  = "javascript"
}

token_budgets = {
  "analyze"       = 1500
  "generate-core" = 12000
}

fail_on_validation = true

template "analyze" {
  text = "Analyze {projectName}: {description}"
}
`

func TestParseStack(t *testing.T) {
	cfg, err := ParseStack("stack.hcl", []byte(stackHCL))
	require.NoError(t, err)

	assert.Equal(t, entity.Stack{Framework: "vue", BuildTool: "vite", Styling: "tailwind", Language: "javascript"}, cfg.Stack)
	assert.Equal(t, map[entity.Stage]int{entity.StageAnalyze: 1500, entity.StageGenerateCore: 12000}, cfg.TokenBudgets)
	assert.Equal(t, "Analyze {projectName}: {description}", cfg.Templates[entity.StageAnalyze])
	assert.True(t, cfg.FailOnValidation)
}

func TestParseStack_UnknownStage(t *testing.T) {
	_, err := ParseStack("stack.hcl", []byte(`
template "deploy" {
  text = "x"
}
`))
	assert.ErrorIs(t, err, entity.ErrUnknownStage)
}

func TestParseStack_Invalid(t *testing.T) {
	_, err := ParseStack("stack.hcl", []byte(`stack {`))
	assert.Error(t, err)
}

func TestLoadStack_DefaultsAndFile(t *testing.T) {
	cfg, err := LoadStack("")
	require.NoError(t, err)
	assert.Equal(t, entity.DefaultStack(), cfg.Stack)
	assert.Empty(t, cfg.Templates)

	path := filepath.Join(t.TempDir(), "stack.hcl")
	require.NoError(t, os.WriteFile(path, []byte(stackHCL), 0o644))
	cfg, err = LoadStack(path)
	require.NoError(t, err)
	assert.Equal(t, "vue", cfg.Stack.Framework)

	_, err = LoadStack(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)
}

func TestLoadFeatureCatalog_Embedded(t *testing.T) {
	c, err := LoadFeatureCatalog("")
	require.NoError(t, err)

	require.Contains(t, c.Features, "auth")
	assert.Equal(t, "Authentication", c.Features["auth"].Title)
	assert.Contains(t, c.StylingGuide("tailwind"), "Tailwind")
	assert.Contains(t, c.ProjectGuide(entity.ProjectLanding), "hero")

	g := c.Guidelines([]string{"auth", "custom-widget"})
	assert.Contains(t, g, "- Authentication")
	assert.Contains(t, g, "- custom-widget")
}

func TestParseFeatureCatalog_Invalid(t *testing.T) {
	_, err := ParseFeatureCatalog([]byte("features: [unclosed"))
	assert.Error(t, err)
}
