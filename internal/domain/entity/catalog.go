package entity

import (
	"fmt"
	"sort"
	"strings"
)

// FeatureCatalog holds the descriptive prompt material: per-feature
// guidance, styling conventions and project archetype notes.
type FeatureCatalog struct {
	Features     map[string]FeatureGuide `yaml:"features" json:"features"`
	Styling      map[string]string       `yaml:"styling" json:"styling"`
	ProjectTypes map[string]string       `yaml:"project_types" json:"project_types"`
}

type FeatureGuide struct {
	Title      string   `yaml:"title" json:"title"`
	Guidelines []string `yaml:"guidelines" json:"guidelines"`
	Files      []string `yaml:"files" json:"files"`
}

// Guidelines renders the guidance of the given features as a bullet list.
// Unknown features are listed by name only.
func (c *FeatureCatalog) Guidelines(features []string) string {
	if len(features) == 0 {
		return "No optional features requested."
	}
	names := append([]string(nil), features...)
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		guide, ok := c.feature(name)
		if !ok {
			fmt.Fprintf(&b, "- %s\n", name)
			continue
		}
		title := guide.Title
		if title == "" {
			title = name
		}
		fmt.Fprintf(&b, "- %s\n", title)
		for _, g := range guide.Guidelines {
			fmt.Fprintf(&b, "  - %s\n", g)
		}
		if len(guide.Files) > 0 {
			fmt.Fprintf(&b, "  - expected files: %s\n", strings.Join(guide.Files, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *FeatureCatalog) StylingGuide(styling string) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Styling[strings.ToLower(styling)])
}

func (c *FeatureCatalog) ProjectGuide(pt ProjectType) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.ProjectTypes[string(pt)])
}

func (c *FeatureCatalog) feature(name string) (FeatureGuide, bool) {
	if c == nil {
		return FeatureGuide{}, false
	}
	g, ok := c.Features[name]
	return g, ok
}
