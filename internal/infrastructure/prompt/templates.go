package prompt

import "scaffoldgen/internal/domain/entity"

const structuredRules = `Respond with a single JSON object and nothing else. No markdown, no commentary.`

const artifactRules = `Output every file as a fenced code block annotated with its path, exactly like:
` + "```tsx:src/App.tsx" + `
...file content...
` + "```" + `
Rules:
1. One fenced block per file, path relative to the project root.
2. Complete file contents only. No placeholders, no "rest of file" notes.
3. Use {language} for all source files and {styling} for styling.
4. Do not repeat files that need no changes.`

var genericTemplates = map[entity.Stage]string{
	entity.StageAnalyze: `You are a senior frontend architect.
Analyze the following request for a {projectType} project named "{projectName}".

Request:
{description}

Archetype notes: {projectGuide}
Requested features:
{featureGuidelines}

Return JSON with the keys: "summary" (string), "audience" (string),
"pages" (array of page names), "components" (array of component names),
"dataModels" (array of strings), "integrations" (array of strings),
"risks" (array of strings).
` + structuredRules,

	entity.StagePlan: `You are planning the file structure of a {framework} + {buildTool} project
named "{projectName}" using {styling} and {language}.

{context}

Requested features:
{featureGuidelines}

Return JSON with the keys: "files" (array of {"path", "purpose"} objects),
"routes" (array of {"path", "page"} objects), "dependencies" (object of
package name to version), "devDependencies" (object), "scripts" (object).
` + structuredRules,

	entity.StageGenerateCore: `Generate the core files of the {framework} + {buildTool} project "{projectName}".
Include package.json, index.html, the {buildTool} config, tsconfig.json when
using typescript, the styling setup for {styling}, the entry point and the root
App component with routing.

{context}

Styling conventions:
{stylingGuide}

` + artifactRules,

	entity.StageGenerateComponents: `Generate the reusable components and pages of "{projectName}" ({projectType}).
Include layout components (Header, Footer, Navigation, Layout), an
ErrorBoundary, a Loading indicator and every page listed in the plan under
src/pages.

{context}

Files that already exist:
{existingFiles}

Requested features:
{featureGuidelines}

` + artifactRules,

	entity.StageGenerateIntegration: `Generate the integration layer of "{projectName}": state store under
src/store, api service under src/services, shared types under src/types,
hooks under src/hooks, utilities and validators under src/utils, and constants
under src/constants. Wire the features into the existing components.

{context}

Files that already exist:
{existingFiles}

Requested features:
{featureGuidelines}

` + artifactRules,

	entity.StageCompose: `Compose the final version of "{projectName}". Make sure every import resolves,
routes point at existing pages, package.json lists every imported dependency
and the build script works. Return only files that must change or are missing.

{context}

Files that already exist:
{existingFiles}

` + artifactRules,

	entity.StageValidate: `Review the generated {framework} project "{projectName}" for production
readiness.

Files:
{existingFiles}

{context}

Return JSON with the keys: "score" (0-100), "issues" (array of
{"file", "severity", "message"} objects), "missingFiles" (array of paths),
"suggestions" (array of strings).
` + structuredRules,

	entity.StageImprove: `Improve the project "{projectName}" by fixing the problems below. Return the
complete corrected files and any missing files.

Problems:
{context}

Files that already exist:
{existingFiles}

` + artifactRules,

	entity.StageGeneratePage: `Generate the page "{target}" for the {projectType} project "{projectName}"
built with {framework}, {styling} and {language}.

{context}

Requested features:
{featureGuidelines}

` + artifactRules,

	entity.StageGenerateComponent: `Generate the reusable component "{target}" for "{projectName}" built with
{framework}, {styling} and {language}. Include prop types and sensible defaults.

{context}

` + artifactRules,
}
