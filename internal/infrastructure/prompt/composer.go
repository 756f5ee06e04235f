package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"scaffoldgen/internal/domain/entity"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z]+)\}`)

// Data is what a prompt is rendered from.
type Data struct {
	ProjectName   string
	Description   string
	ProjectType   entity.ProjectType
	Features      []string
	Context       string
	ExistingFiles []string
	Target        string
}

// Composer renders stage prompts. Stack overrides take precedence over the
// built-in generic templates.
type Composer struct {
	stack     entity.Stack
	overrides map[entity.Stage]string
	catalog   *entity.FeatureCatalog
}

func NewComposer(stack entity.Stack, overrides map[entity.Stage]string, catalog *entity.FeatureCatalog) *Composer {
	ov := make(map[entity.Stage]string, len(overrides))
	for k, v := range overrides {
		ov[k] = v
	}
	return &Composer{
		stack:     stack.WithDefaults(),
		overrides: ov,
		catalog:   catalog,
	}
}

func (c *Composer) Template(stage entity.Stage) (string, error) {
	if !stage.Valid() {
		return "", fmt.Errorf("%w: %q", entity.ErrUnknownStage, stage)
	}
	if t, ok := c.overrides[stage]; ok && strings.TrimSpace(t) != "" {
		return t, nil
	}
	t, ok := genericTemplates[stage]
	if !ok {
		return "", fmt.Errorf("%w: %q has no template", entity.ErrUnknownStage, stage)
	}
	return t, nil
}

// Compose renders the prompt for stage. Placeholders without a value are
// left as they are.
func (c *Composer) Compose(stage entity.Stage, d Data) (string, error) {
	tmpl, err := c.Template(stage)
	if err != nil {
		return "", err
	}
	values := c.values(d)
	out := placeholderPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		if v, ok := values[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
	return strings.TrimSpace(out), nil
}

func (c *Composer) values(d Data) map[string]string {
	features := "none"
	if len(d.Features) > 0 {
		features = strings.Join(d.Features, ", ")
	}
	existing := "none yet"
	if len(d.ExistingFiles) > 0 {
		existing = "- " + strings.Join(d.ExistingFiles, "\n- ")
	}
	ctx := strings.TrimSpace(d.Context)
	if ctx == "" {
		ctx = "No previous stage output."
	}
	return map[string]string{
		"projectName":       d.ProjectName,
		"description":       d.Description,
		"projectType":       string(d.ProjectType),
		"enabledFeatures":   features,
		"featureGuidelines": c.catalog.Guidelines(d.Features),
		"projectGuide":      c.catalog.ProjectGuide(d.ProjectType),
		"stylingGuide":      c.catalog.StylingGuide(c.stack.Styling),
		"framework":         c.stack.Framework,
		"buildTool":         c.stack.BuildTool,
		"styling":           c.stack.Styling,
		"language":          c.stack.Language,
		"context":           ctx,
		"existingFiles":     existing,
		"target":            d.Target,
	}
}
