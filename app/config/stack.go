package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"scaffoldgen/internal/domain/entity"
)

// StackConfig is the decoded stack file: target toolchain, per-stage
// prompt overrides and token budgets.
type StackConfig struct {
	Stack            entity.Stack
	Templates        map[entity.Stage]string
	TokenBudgets     map[entity.Stage]int
	FailOnValidation bool
}

type stackFile struct {
	Stack            *entity.Stack   `hcl:"stack,block"`
	TokenBudgets     map[string]int  `hcl:"token_budgets,optional"`
	FailOnValidation *bool           `hcl:"fail_on_validation,optional"`
	Templates        []templateBlock `hcl:"template,block"`
}

type templateBlock struct {
	Stage string `hcl:"stage,label"`
	Text  string `hcl:"text"`
}

func DefaultStackConfig() *StackConfig {
	return &StackConfig{
		Stack:        entity.DefaultStack(),
		Templates:    map[entity.Stage]string{},
		TokenBudgets: map[entity.Stage]int{},
	}
}

// LoadStack reads an HCL stack file. An empty path yields the defaults.
func LoadStack(path string) (*StackConfig, error) {
	if path == "" {
		return DefaultStackConfig(), nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stack file: %w", err)
	}
	return ParseStack(path, src)
}

// ParseStack decodes src. filename must carry the .hcl extension.
func ParseStack(filename string, src []byte) (*StackConfig, error) {
	var raw stackFile
	if err := hclsimple.Decode(filename, src, nil, &raw); err != nil {
		return nil, fmt.Errorf("decode stack file: %w", err)
	}

	cfg := DefaultStackConfig()
	if raw.Stack != nil {
		cfg.Stack = raw.Stack.WithDefaults()
	}
	if raw.FailOnValidation != nil {
		cfg.FailOnValidation = *raw.FailOnValidation
	}
	for name, budget := range raw.TokenBudgets {
		stage, err := entity.ParseStage(name)
		if err != nil {
			return nil, fmt.Errorf("token_budgets: %w", err)
		}
		if budget <= 0 {
			return nil, fmt.Errorf("token_budgets: %s must be positive", name)
		}
		cfg.TokenBudgets[stage] = budget
	}
	for _, tb := range raw.Templates {
		stage, err := entity.ParseStage(tb.Stage)
		if err != nil {
			return nil, fmt.Errorf("template: %w", err)
		}
		cfg.Templates[stage] = tb.Text
	}
	return cfg, nil
}
