package validator

import (
	"strings"

	"scaffoldgen/internal/domain/entity"
)

// Manifest partitions the expected project files.
type Manifest struct {
	Required []string
	Optional []string
}

// ManifestFor returns the expected files for a stack.
func ManifestFor(stack entity.Stack) Manifest {
	stack = stack.WithDefaults()
	script := stack.ScriptExt()
	comp := stack.ComponentExt()

	var m Manifest
	m.Required = append(m.Required, "package.json", "index.html")

	switch strings.ToLower(stack.Framework) {
	case "vue":
		m.Required = append(m.Required, "src/main"+script, "src/App.vue")
	case "svelte":
		m.Required = append(m.Required, "src/main"+script, "src/App.svelte")
	default:
		m.Required = append(m.Required, "src/main"+comp, "src/App"+comp)
	}
	m.Required = append(m.Required, "src/index.css")

	if strings.EqualFold(stack.BuildTool, "vite") {
		m.Required = append(m.Required, "vite.config"+script)
	}
	if stack.TypeScript() {
		m.Required = append(m.Required, "tsconfig.json")
		m.Optional = append(m.Optional, "tsconfig.node.json", "src/vite-env.d.ts")
	}
	if strings.EqualFold(stack.Styling, "tailwind") {
		m.Optional = append(m.Optional, "tailwind.config.js", "postcss.config.js")
	}
	m.Optional = append(m.Optional, "README.md")
	return m
}

// All returns required and optional paths.
func (m Manifest) All() []string {
	out := make([]string, 0, len(m.Required)+len(m.Optional))
	out = append(out, m.Required...)
	return append(out, m.Optional...)
}

type checklistItem struct {
	name    string
	pattern string
}

const componentExts = "{tsx,jsx,vue,svelte}"

var enterpriseChecklist = []checklistItem{
	{"error boundary", "src/**/ErrorBoundary." + componentExts},
	{"loading indicator", "src/**/{Loading,LoadingSpinner,Spinner,Loader}." + componentExts},
	{"state store", "src/store/**"},
	{"form validators", "src/utils/validat*.{ts,js}"},
	{"api service", "src/services/**/api.{ts,js}"},
	{"shared types", "src/types/**"},
	{"hooks", "src/hooks/**"},
	{"constants", "src/constants/**"},
	{"helpers", "src/utils/helpers.{ts,js}"},
	{"utilities", "src/utils/**"},
	{"header section", "src/**/Header." + componentExts},
	{"footer section", "src/**/Footer." + componentExts},
	{"hero section", "src/**/Hero." + componentExts},
	{"navigation", "src/**/{Navigation,Navbar,Nav}." + componentExts},
	{"layout", "src/**/Layout." + componentExts},
}

var frameworkEssentials = map[string][]string{
	"react":  {"react", "react-dom"},
	"preact": {"preact"},
	"vue":    {"vue"},
	"svelte": {"svelte"},
	"solid":  {"solid-js"},
}

var vitePlugins = map[string]string{
	"react":  "@vitejs/plugin-react",
	"preact": "@preact/preset-vite",
	"vue":    "@vitejs/plugin-vue",
	"svelte": "@sveltejs/vite-plugin-svelte",
	"solid":  "vite-plugin-solid",
}
