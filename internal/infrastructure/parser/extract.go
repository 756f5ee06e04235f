package parser

import (
	"encoding/json"
	"path"
	"regexp"
	"sort"
	"strings"

	"scaffoldgen/internal/infrastructure/metrics"
)

const minContentLength = 10

const (
	StrategyLineHeader = "line-header"
	StrategyFenced     = "fenced"
	StrategyKnownFile  = "known-file"
)

var (
	// src/App.tsx: <optional inline content>
	headerPattern = regexp.MustCompile("^[#>*\\-\\s]*[*`\"']*([\\w@.\\-/\\[\\]]+\\.(?:tsx|ts|jsx|js|html|css|json|md))[*`\"']*\\s*:[*`]*\\s?(.*)$")
	// ```lang:path or ```lang file=path
	fenceOpenPattern = regexp.MustCompile("^```([\\w+#.\\-]*)(?::([^\\s`]+)|\\s+file=([^\\s`]+))?\\s*$")
)

// extensionFixes maps JSON config files models like to emit with a .js
// suffix to their real names.
var extensionFixes = map[string]string{
	"package.js":       "package.json",
	"tsconfig.js":      "tsconfig.json",
	"tsconfig.node.js": "tsconfig.node.json",
	"manifest.js":      "manifest.json",
}

// DefaultKnownFiles are looked up by name when the structured strategies
// miss them.
var DefaultKnownFiles = []string{
	"package.json",
	"index.html",
	"vite.config.ts",
	"vite.config.js",
	"tsconfig.json",
	"tsconfig.node.json",
	"tailwind.config.js",
	"postcss.config.js",
	"src/main.tsx",
	"src/App.tsx",
	"src/index.css",
	"README.md",
}

type candidate struct {
	path    string
	content string
}

// Extraction is the result of scanning one response for files.
type Extraction struct {
	Files      map[string]string
	Sources    map[string]string
	Rejected   int
	Duplicates int
}

func (e Extraction) Paths() []string {
	out := make([]string, 0, len(e.Files))
	for p := range e.Files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ExtractArtifacts pulls path/content pairs out of text. Strategies run in
// order; the first accepted candidate for a path wins.
func ExtractArtifacts(text string, knownFiles []string) Extraction {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	ex := Extraction{
		Files:   make(map[string]string),
		Sources: make(map[string]string),
	}

	ex.merge(StrategyLineHeader, scanHeaders(text))
	ex.merge(StrategyFenced, scanFences(text))
	ex.merge(StrategyKnownFile, scanKnownFiles(text, knownFiles, ex.Files))

	metrics.AddParseOutcome("artifacts", "rejected", ex.Rejected)
	return ex
}

func (e *Extraction) merge(strategy string, cands []candidate) {
	for _, c := range cands {
		p, ok := NormalizePath(c.path)
		if !ok {
			e.Rejected++
			continue
		}
		content := NormalizeContent(c.content)
		p = correctExtension(p, content)
		if !Acceptable(p, content) {
			e.Rejected++
			continue
		}
		if _, seen := e.Files[p]; seen {
			e.Duplicates++
			continue
		}
		e.Files[p] = content
		e.Sources[p] = strategy
		metrics.IncParseOutcome(strategy, "accepted")
	}
}

func scanHeaders(text string) []candidate {
	var out []candidate
	var cur *candidate
	var buf []string

	flush := func() {
		if cur != nil {
			cur.content = strings.Join(buf, "\n")
			out = append(out, *cur)
		}
		cur = nil
		buf = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if m := headerPattern.FindStringSubmatch(line); m != nil {
			flush()
			cur = &candidate{path: m[1]}
			if strings.TrimSpace(m[2]) != "" {
				buf = append(buf, m[2])
			}
			continue
		}
		if cur != nil {
			buf = append(buf, line)
		}
	}
	flush()
	return out
}

func scanFences(text string) []candidate {
	var out []candidate
	var cur *candidate
	var buf []string

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if cur == nil {
			if !strings.HasPrefix(trimmed, "```") {
				continue
			}
			// a fence without a usable path still opens a block; it is
			// dropped on close
			var p string
			if m := fenceOpenPattern.FindStringSubmatch(trimmed); m != nil {
				p = m[2]
				if p == "" {
					p = m[3]
				}
			}
			cur = &candidate{path: p}
			buf = nil
			continue
		}
		if trimmed == "```" {
			if cur.path != "" {
				cur.content = strings.Join(buf, "\n")
				out = append(out, *cur)
			}
			cur = nil
			continue
		}
		buf = append(buf, line)
	}
	// an unterminated block is dropped
	return out
}

func scanKnownFiles(text string, known []string, have map[string]string) []candidate {
	var out []candidate
	for _, name := range known {
		if _, ok := have[name]; ok {
			continue
		}
		re := regexp.MustCompile("(?:^|[^\\w./\\-])" + regexp.QuoteMeta(name) + "[*`\"']*:[*`]*[ \\t]*\\n?")
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		out = append(out, candidate{path: name, content: cutAtHeader(contentAfter(text[loc[1]:]))})
	}
	return out
}

// contentAfter reads a fenced block if rest opens with one, otherwise
// everything up to the first blank line.
func contentAfter(rest string) string {
	lines := strings.Split(rest, "\n")
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "```") {
		for i := 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "```" {
				return strings.Join(lines[:i+1], "\n")
			}
		}
		return rest
	}
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			return strings.Join(lines[:i], "\n")
		}
	}
	return rest
}

// cutAtHeader ends a fallback capture before the first line that opens
// another file with a "path: ..." header.
func cutAtHeader(content string) string {
	lines := strings.Split(content, "\n")
	start := 0
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "```") {
		start = 1
	}
	for i := start; i < len(lines); i++ {
		if headerPattern.MatchString(lines[i]) {
			return strings.Join(lines[:i], "\n")
		}
	}
	return content
}

// NormalizePath cleans a model-written path. It reports false for paths
// that escape the project root.
func NormalizePath(p string) (string, bool) {
	p = strings.TrimSpace(p)
	p = strings.Trim(p, "\"'`* ")
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.HasPrefix(p, "./") {
		p = strings.TrimPrefix(p, "./")
	}
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return "", false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", false
		}
	}
	p = path.Clean(p)
	if p == "." {
		return "", false
	}
	return p, true
}

// NormalizeContent trims the candidate, unifies line endings and removes a
// leading fence marker or a repeated path header.
func NormalizeContent(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}

	lines := strings.Split(s, "\n")
	if m := headerPattern.FindStringSubmatch(lines[0]); m != nil && strings.TrimSpace(m[2]) == "" {
		lines = lines[1:]
		for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
			lines = lines[1:]
		}
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "```") {
		lines = lines[1:]
		for i, l := range lines {
			if strings.TrimSpace(l) == "```" {
				lines = lines[:i]
				break
			}
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func correctExtension(p, content string) string {
	dir, base := path.Split(p)
	fixed, ok := extensionFixes[base]
	if !ok || !strings.HasPrefix(content, "{") {
		return p
	}
	return dir + fixed
}

var scriptMarkers = []string{"import", "export", "function", "const"}

// Acceptable applies the per-extension plausibility filter.
func Acceptable(p, content string) bool {
	if len(content) < minContentLength {
		return false
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".json":
		return json.Valid([]byte(content))
	case ".html":
		lower := strings.ToLower(content)
		return strings.Contains(lower, "<!doctype") || strings.Contains(lower, "<html")
	case ".ts", ".tsx", ".js":
		for _, m := range scriptMarkers {
			if strings.Contains(content, m) {
				return true
			}
		}
		return false
	case ".css":
		return strings.Contains(content, "{") && strings.Contains(content, "}")
	}
	return true
}
