package validator

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"scaffoldgen/internal/domain/entity"
	"scaffoldgen/internal/infrastructure/metrics"
	"scaffoldgen/internal/infrastructure/parser"
)

const (
	CheckRequiredFiles = "required-files"
	CheckChecklist     = "enterprise-checklist"
	CheckPackageJSON   = "package-json"
	CheckConfigFiles   = "config-files"
	CheckSyntax        = "syntax"
	CheckStructure     = "structure"
	CheckDeployment    = "deployment"
)

type check struct {
	name string
	run  func(files map[string]string, r *entity.ValidationReport)
}

// Pipeline runs the ordered project checks. Errors fail the report,
// warnings never do.
type Pipeline struct {
	stack    entity.Stack
	manifest Manifest
	logger   *slog.Logger
	checks   []check
}

func NewPipeline(stack entity.Stack, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		stack:    stack.WithDefaults(),
		manifest: ManifestFor(stack),
		logger:   logger,
	}
	p.checks = []check{
		{CheckRequiredFiles, p.checkRequiredFiles},
		{CheckChecklist, p.checkChecklist},
		{CheckPackageJSON, p.checkPackageJSON},
		{CheckConfigFiles, p.checkConfigFiles},
		{CheckSyntax, p.checkSyntax},
		{CheckStructure, p.checkStructure},
		{CheckDeployment, p.checkDeployment},
	}
	return p
}

func (p *Pipeline) Manifest() Manifest { return p.manifest }

// ValidateProject checks the session artifacts and appends every issue to
// the session error and warning lists.
func (p *Pipeline) ValidateProject(session *entity.Session) (bool, *entity.ValidationReport) {
	report := p.ValidateFiles(session.Artifacts)
	for _, issue := range report.Issues {
		if issue.Severity == entity.SeverityError {
			session.AddError(issue.String())
		} else {
			session.AddWarning(issue.String())
		}
	}
	p.logger.Info("project validated",
		"session_id", session.ID,
		"passed", report.Passed,
		"errors", len(report.Errors()),
		"warnings", len(report.Warnings()),
	)
	return report.Passed, report
}

func (p *Pipeline) ValidateFiles(files map[string]string) *entity.ValidationReport {
	report := entity.NewValidationReport()
	for _, c := range p.checks {
		start := time.Now()
		before := len(report.Issues)
		c.run(files, report)
		metrics.ObserveValidationDuration(c.name, time.Since(start))
		metrics.IncValidationRun(c.name, checkResult(report.Issues[before:]))
	}
	return report
}

func checkResult(issues []entity.ValidationIssue) string {
	result := "pass"
	for _, i := range issues {
		if i.Severity == entity.SeverityError {
			return "fail"
		}
		result = "warn"
	}
	return result
}

func (p *Pipeline) checkRequiredFiles(files map[string]string, r *entity.ValidationReport) {
	for _, f := range p.manifest.Required {
		if _, ok := files[f]; !ok {
			r.AddError(CheckRequiredFiles, f, "required file is missing")
		}
	}
}

func (p *Pipeline) checkChecklist(files map[string]string, r *entity.ValidationReport) {
	paths := sortedPaths(files)
	for _, item := range enterpriseChecklist {
		if !anyMatch(item.pattern, paths) {
			r.AddWarning(CheckChecklist, "", fmt.Sprintf("missing %s (%s)", item.name, item.pattern))
		}
	}
}

type packageManifest struct {
	Name            *string           `json:"name"`
	Version         *string           `json:"version"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func parsePackage(files map[string]string) (*packageManifest, map[string]json.RawMessage, bool) {
	src, ok := files["package.json"]
	if !ok {
		return nil, nil, false
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(src), &raw); err != nil {
		return nil, nil, true
	}
	var pkg packageManifest
	if err := json.Unmarshal([]byte(src), &pkg); err != nil {
		return nil, raw, true
	}
	return &pkg, raw, true
}

func (p *Pipeline) checkPackageJSON(files map[string]string, r *entity.ValidationReport) {
	pkg, raw, present := parsePackage(files)
	if !present {
		return // reported by required-files
	}
	if raw == nil {
		r.AddError(CheckPackageJSON, "package.json", "not valid JSON")
		return
	}
	for _, field := range []string{"name", "version", "scripts", "dependencies", "devDependencies"} {
		if _, ok := raw[field]; !ok {
			r.AddError(CheckPackageJSON, "package.json", fmt.Sprintf("missing %q field", field))
		}
	}
	if pkg == nil {
		r.AddError(CheckPackageJSON, "package.json", "fields have unexpected types")
		return
	}
	for _, dep := range frameworkEssentials[strings.ToLower(p.stack.Framework)] {
		if _, ok := pkg.Dependencies[dep]; ok {
			continue
		}
		if _, ok := pkg.DevDependencies[dep]; ok {
			continue
		}
		r.AddWarning(CheckPackageJSON, "package.json", fmt.Sprintf("missing framework dependency %q", dep))
	}
}

func (p *Pipeline) checkConfigFiles(files map[string]string, r *entity.ValidationReport) {
	for _, f := range sortedPaths(files) {
		content := files[f]
		switch base := path.Base(f); {
		case strings.HasPrefix(base, "vite.config."):
			if !strings.Contains(content, "defineConfig") {
				r.AddError(CheckConfigFiles, f, "does not call defineConfig")
			}
			if plugin, ok := vitePlugins[strings.ToLower(p.stack.Framework)]; ok && !strings.Contains(content, plugin) {
				r.AddError(CheckConfigFiles, f, fmt.Sprintf("does not use %s", plugin))
			}
		case strings.HasPrefix(base, "tailwind.config."):
			if !strings.Contains(content, "content") {
				r.AddError(CheckConfigFiles, f, "has no content globs")
			}
		case strings.HasPrefix(base, "postcss.config."):
			if !strings.Contains(content, "plugins") {
				r.AddError(CheckConfigFiles, f, "declares no plugins")
			}
		case base == "tsconfig.json" && f == base:
			var ts map[string]any
			if err := json.Unmarshal([]byte(parser.RepairJSON(content)), &ts); err != nil {
				r.AddError(CheckConfigFiles, f, "not valid JSON")
				continue
			}
			if _, ok := ts["compilerOptions"]; !ok {
				r.AddError(CheckConfigFiles, f, "missing compilerOptions")
			}
		}
	}
}

var (
	importPattern   = regexp.MustCompile(`(?m)^\s*import\s`)
	exportPattern   = regexp.MustCompile(`\bexport\s`)
	functionPattern = regexp.MustCompile(`\bfunction\b`)
	arrowPattern    = regexp.MustCompile(`=>`)
)

func (p *Pipeline) checkSyntax(files map[string]string, r *entity.ValidationReport) {
	for _, f := range sortedPaths(files) {
		ext := path.Ext(f)
		if !isScript(ext) || strings.HasSuffix(f, ".d.ts") {
			continue
		}
		src := files[f]
		if !importPattern.MatchString(src) && !exportPattern.MatchString(src) &&
			!functionPattern.MatchString(src) && !arrowPattern.MatchString(src) {
			r.AddWarning(CheckSyntax, f, "no import, export or function found")
		}
		if (ext == ".tsx" || ext == ".jsx") && !exportPattern.MatchString(src) {
			r.AddWarning(CheckSyntax, f, "component file exports nothing")
		}
		if open, closed := strings.Count(src, "{"), strings.Count(src, "}"); open != closed {
			r.AddWarning(CheckSyntax, f, fmt.Sprintf("unbalanced braces (%d open, %d close)", open, closed))
		}
	}
}

func (p *Pipeline) checkStructure(files map[string]string, r *entity.ValidationReport) {
	paths := sortedPaths(files)
	if !anyMatch("**/components/**", paths) {
		r.AddWarning(CheckStructure, "", "no components directory")
	}
	if !anyMatch("**/{pages,routes}/**", paths) {
		r.AddWarning(CheckStructure, "", "no pages or routes directory")
	}
}

func (p *Pipeline) checkDeployment(files map[string]string, r *entity.ValidationReport) {
	pkg, _, present := parsePackage(files)
	if !present || pkg == nil {
		return
	}
	if strings.TrimSpace(pkg.Scripts["build"]) == "" {
		r.AddError(CheckDeployment, "package.json", "no build script")
	}
	if strings.TrimSpace(pkg.Scripts["start"]) == "" {
		r.AddWarning(CheckDeployment, "package.json", "no start script")
	}
}

func isScript(ext string) bool {
	switch ext {
	case ".ts", ".tsx", ".js", ".jsx":
		return true
	}
	return false
}

func anyMatch(pattern string, paths []string) bool {
	for _, p := range paths {
		if ok, err := doublestar.Match(pattern, p); err == nil && ok {
			return true
		}
	}
	return false
}

func sortedPaths(files map[string]string) []string {
	out := make([]string, 0, len(files))
	for p := range files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
