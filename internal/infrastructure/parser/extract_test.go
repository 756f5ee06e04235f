package parser

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scaffoldgen/internal/domain/entity"
)

func TestExtractArtifacts_LineHeaders(t *testing.T) {
	text := "Here are the files.\n" +
		"src/utils/math.ts: export const add = (a: number, b: number) => a + b;\n" +
		"src/App.tsx:\n" +
		"```tsx\n" +
		"import React from 'react';\n" +
		"export default function App() { return <div/>; }\n" +
		"```\n" +
		"This component renders the root.\n"

	ex := ExtractArtifacts(text, nil)

	want := map[string]string{
		"src/utils/math.ts": "export const add = (a: number, b: number) => a + b;",
		"src/App.tsx":       "import React from 'react';\nexport default function App() { return <div/>; }",
	}
	if diff := cmp.Diff(want, ex.Files); diff != "" {
		t.Fatalf("files mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, StrategyLineHeader, ex.Sources["src/App.tsx"])
	assert.Zero(t, ex.Rejected)
}

func TestExtractArtifacts_DuplicatePathKeepsFirst(t *testing.T) {
	text := "src/a.ts: export const a = 1;\n" +
		"src/a.ts: export const a = 2;\n"

	ex := ExtractArtifacts(text, nil)
	require.Len(t, ex.Files, 1)
	assert.Equal(t, "export const a = 1;", ex.Files["src/a.ts"])
	assert.Equal(t, 1, ex.Duplicates)
}

func TestExtractArtifacts_FencedAnnotation(t *testing.T) {
	text := "```ts:src/App.tsx\nexport default function App() { return null }\n```\n"

	ex := ExtractArtifacts(text, nil)
	require.Contains(t, ex.Files, "src/App.tsx")
	assert.Equal(t, "export default function App() { return null }", ex.Files["src/App.tsx"])
	assert.Equal(t, StrategyFenced, ex.Sources["src/App.tsx"])
}

func TestExtractArtifacts_FencedFileAttribute(t *testing.T) {
	text := "```css file=src/index.css\nbody { margin: 0; }\n```\n" +
		"```tsx\nconst orphan = 1\n```\n" +
		"```ts:src/unterminated.ts\nexport const x = 1\n"

	ex := ExtractArtifacts(text, nil)
	assert.Equal(t, map[string]string{"src/index.css": "body { margin: 0; }"}, ex.Files)
}

func TestExtractArtifacts_KnownFileFallback(t *testing.T) {
	text := "The manifest package.json: {\"name\":\"site\",\"version\":\"1.0.0\"}\n\nThat is all."

	ex := ExtractArtifacts(text, []string{"package.json"})
	require.Contains(t, ex.Files, "package.json")
	assert.Equal(t, `{"name":"site","version":"1.0.0"}`, ex.Files["package.json"])
	assert.Equal(t, StrategyKnownFile, ex.Sources["package.json"])
}

func TestExtractArtifacts_KnownFileStopsAtNextHeader(t *testing.T) {
	text := "Styles go in src/index.css: body { margin: 0 }\n" +
		"src/App.tsx: export default function App() {}\n"

	ex := ExtractArtifacts(text, []string{"src/index.css"})
	want := map[string]string{
		"src/index.css": "body { margin: 0 }",
		"src/App.tsx":   "export default function App() {}",
	}
	if diff := cmp.Diff(want, ex.Files); diff != "" {
		t.Fatalf("files mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, StrategyKnownFile, ex.Sources["src/index.css"])
}

func TestExtractArtifacts_UnannotatedFenceKeepsPairing(t *testing.T) {
	text := "```ts src/a.ts\nexport const a = 1\n```\n\n" +
		"```ts:src/b.ts\nexport const b = 2\n```\n"

	ex := ExtractArtifacts(text, nil)
	assert.Equal(t, map[string]string{"src/b.ts": "export const b = 2"}, ex.Files)
}

func TestCutAtHeader(t *testing.T) {
	assert.Equal(t, "a {}", cutAtHeader("a {}\nsrc/b.ts: x"))
	assert.Equal(t, "```css", cutAtHeader("```css\nsrc/x.css: y\n```"))
	assert.Equal(t, "no header here", cutAtHeader("no header here"))
}

func TestExtractArtifacts_ExtensionCorrection(t *testing.T) {
	text := "package.js: {\"name\": \"demo\", \"version\": \"0.1.0\"}\n"

	ex := ExtractArtifacts(text, nil)
	assert.Contains(t, ex.Files, "package.json")
	assert.NotContains(t, ex.Files, "package.js")
}

func TestExtractArtifacts_RejectsImplausibleContent(t *testing.T) {
	text := "package.json: {not valid json at all}\n" +
		"index.html: <div>missing document</div>\n" +
		"src/style.css: just words here\n" +
		"src/x.ts: let y = 2; let z = 3;\n" +
		"src/tiny.tsx: a\n" +
		"README.md: # Demo project\n"

	ex := ExtractArtifacts(text, nil)
	assert.Equal(t, []string{"README.md"}, ex.Paths())
	assert.Equal(t, 5, ex.Rejected)
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"./src/App.tsx":     "src/App.tsx",
		"`src/index.css`":   "src/index.css",
		"/public/robots.md": "public/robots.md",
		"src\\lib\\a.ts":    "src/lib/a.ts",
		"**src/b.ts**":      "src/b.ts",
		"src//c.ts":         "src/c.ts",
	}
	for in, want := range tests {
		got, ok := NormalizePath(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "  ", "../etc/passwd", "src/../../x.ts"} {
		_, ok := NormalizePath(bad)
		assert.False(t, ok, bad)
	}
}

func TestNormalizeContent(t *testing.T) {
	assert.Equal(t, "a\nb", NormalizeContent("\r\n  a\r\nb  \r\n"))
	assert.Equal(t, "body {}", NormalizeContent("```css\nbody {}\n```\ntrailing prose"))
	assert.Equal(t, "x = 1", NormalizeContent("src/x.ts:\n\nx = 1"))
}

func TestAcceptable(t *testing.T) {
	assert.True(t, Acceptable("a.json", `{"ok": true}`))
	assert.False(t, Acceptable("a.json", `{ok: true}`))
	assert.True(t, Acceptable("index.html", "<!DOCTYPE html><html></html>"))
	assert.True(t, Acceptable("src/a.js", "function go() {}"))
	assert.True(t, Acceptable("src/a.jsx", "anything goes here"))
	assert.False(t, Acceptable("src/a.md", "short"))
}

func TestInterpreter(t *testing.T) {
	in := NewInterpreter(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	v, err := in.Structured(entity.StagePlan, `ok {"pages": 3}`)
	require.NoError(t, err)
	assert.Equal(t, float64(3), v["pages"])

	_, err = in.Structured(entity.StageAnalyze, "nothing")
	var uerr *entity.UnparsableResponseError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, entity.StageAnalyze, uerr.Stage)
	assert.Equal(t, "nothing", uerr.Raw)

	ex := in.Artifacts(entity.StageGenerateCore, "```ts:src/main.ts\nimport './app'\n```")
	assert.Equal(t, []string{"src/main.ts"}, ex.Paths())
}
