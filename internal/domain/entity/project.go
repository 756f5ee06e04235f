package entity

import (
	"fmt"
	"sort"
	"strings"
)

type ProjectType string

const (
	ProjectLanding   ProjectType = "landing"
	ProjectDashboard ProjectType = "dashboard"
	ProjectECommerce ProjectType = "ecommerce"
	ProjectBlog      ProjectType = "blog"
	ProjectPortfolio ProjectType = "portfolio"
	ProjectSaaS      ProjectType = "saas"
	ProjectWebApp    ProjectType = "webapp"
)

var projectTypes = []ProjectType{
	ProjectLanding,
	ProjectDashboard,
	ProjectECommerce,
	ProjectBlog,
	ProjectPortfolio,
	ProjectSaaS,
	ProjectWebApp,
}

func ProjectTypes() []ProjectType {
	out := make([]ProjectType, len(projectTypes))
	copy(out, projectTypes)
	return out
}

func ParseProjectType(s string) (ProjectType, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for _, pt := range projectTypes {
		if string(pt) == norm {
			return pt, nil
		}
	}
	return "", fmt.Errorf("unknown project type %q", s)
}

// Stack describes the target toolchain of the generated project.
type Stack struct {
	Framework string `json:"framework" hcl:"framework,optional"`
	BuildTool string `json:"build_tool" hcl:"build_tool,optional"`
	Styling   string `json:"styling" hcl:"styling,optional"`
	Language  string `json:"language" hcl:"language,optional"`
}

func DefaultStack() Stack {
	return Stack{
		Framework: "react",
		BuildTool: "vite",
		Styling:   "tailwind",
		Language:  "typescript",
	}
}

// WithDefaults fills empty fields from DefaultStack.
func (s Stack) WithDefaults() Stack {
	d := DefaultStack()
	if s.Framework == "" {
		s.Framework = d.Framework
	}
	if s.BuildTool == "" {
		s.BuildTool = d.BuildTool
	}
	if s.Styling == "" {
		s.Styling = d.Styling
	}
	if s.Language == "" {
		s.Language = d.Language
	}
	return s
}

func (s Stack) TypeScript() bool {
	l := strings.ToLower(s.Language)
	return l == "" || l == "typescript" || l == "ts"
}

// ScriptExt is the extension used for plain modules, ComponentExt for
// files containing markup.
func (s Stack) ScriptExt() string {
	if s.TypeScript() {
		return ".ts"
	}
	return ".js"
}

func (s Stack) ComponentExt() string {
	if s.TypeScript() {
		return ".tsx"
	}
	return ".jsx"
}

// FeatureSet is the set of enabled feature flags of a request.
type FeatureSet map[string]bool

func NewFeatureSet(names ...string) FeatureSet {
	fs := make(FeatureSet, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			fs[n] = true
		}
	}
	return fs
}

func (f FeatureSet) Enabled() []string {
	out := make([]string, 0, len(f))
	for name, on := range f {
		if on {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (f FeatureSet) Clone() FeatureSet {
	out := make(FeatureSet, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
