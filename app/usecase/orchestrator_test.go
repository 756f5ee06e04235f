package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scaffoldgen/internal/domain/entity"
	"scaffoldgen/internal/domain/repository"
	"scaffoldgen/internal/infrastructure/llm"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fence(lang, path, body string) string {
	return fmt.Sprintf("```%s:%s\n%s\n```\n", lang, path, body)
}

const pkgJSON = `{
  "name": "acme",
  "version": "0.1.0",
  "scripts": {"dev": "vite", "build": "vite build", "start": "vite preview"},
  "dependencies": {"react": "^18.3.1", "react-dom": "^18.3.1"},
  "devDependencies": {"vite": "^5.4.0", "@vitejs/plugin-react": "^4.3.1"}
}`

func coreResponse() string {
	return "Here is the core.\n" +
		fence("json", "package.json", pkgJSON) +
		fence("html", "index.html", `<!doctype html><html><body><div id="root"></div><script type="module" src="/src/main.tsx"></script></body></html>`) +
		fence("tsx", "src/main.tsx", "import App from './App'\nexport {}") +
		fence("tsx", "src/App.tsx", "export default function App() { return null }") +
		fence("css", "src/index.css", "body { margin: 0; }") +
		fence("ts", "vite.config.ts", "import { defineConfig } from 'vite'\nimport react from '@vitejs/plugin-react'\nexport default defineConfig({ plugins: [react()] })") +
		fence("json", "tsconfig.json", `{"compilerOptions": {"strict": true}}`)
}

func componentsResponse() string {
	return fence("tsx", "src/App.tsx", "import Home from './pages/Home'\nexport default function App() { return <Home/> }") +
		fence("tsx", "src/components/Header.tsx", "export const Header = () => null") +
		fence("tsx", "src/pages/Home.tsx", "export default function Home() { return null }")
}

func integrationResponse() string {
	return "src/store/index.ts: export const store = {}\n" +
		"src/services/api.ts: export async function get() {}\n"
}

type scriptedModel struct {
	mu        sync.Mutex
	responses []string
	errs      map[int]error
	prompts   []string
}

func (m *scriptedModel) call(ctx context.Context, prompt string, budget int) (repository.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.prompts)
	m.prompts = append(m.prompts, prompt)
	if err, ok := m.errs[n]; ok {
		return repository.Completion{}, err
	}
	idx := n
	for k := range m.errs {
		if k < n {
			idx--
		}
	}
	if idx >= len(m.responses) {
		return repository.Completion{}, errors.New("script exhausted")
	}
	return repository.Completion{Output: m.responses[idx], TokensUsed: 10}, nil
}

func happyScript() []string {
	return []string{
		`Sure! {"summary":"rocket landing page","pages":["Home"]}`,
		`{"files":[{"path":"src/App.tsx","purpose":"root"}],}`,
		coreResponse(),
		componentsResponse(),
		integrationResponse(),
		"Everything is already composed.",
		`{"score": 91, "issues": []}`,
		fence("md", "README.md", "# Acme\n\nRun npm install."),
	}
}

type progressRecorder struct {
	mu     sync.Mutex
	events []entity.Progress
}

func (r *progressRecorder) Publish(_ context.Context, p entity.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
}

func request() entity.GenerationRequest {
	return entity.GenerationRequest{
		ProjectName: "Acme",
		Description: "Landing page for a rocket company",
		ProjectType: entity.ProjectLanding,
		Features:    []string{"darkMode"},
	}
}

func TestOrchestrator_HappyPath(t *testing.T) {
	model := &scriptedModel{responses: happyScript()}
	rec := &progressRecorder{}
	o := NewOrchestrator(model.call, OrchestratorConfig{Sink: rec}, quietLogger())

	res := o.Run(context.Background(), request())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, o.Session().ID, res.SessionID)
	assert.Empty(t, res.Error)
	assert.GreaterOrEqual(t, res.TotalTimeSeconds, 0.0)

	assert.Contains(t, res.Files, "package.json")
	assert.Contains(t, res.Files, "README.md")
	assert.Contains(t, res.Files, "src/store/index.ts")
	assert.Contains(t, res.Files["src/App.tsx"], "<Home/>", "later stage must overwrite earlier file")

	require.NotNil(t, res.Validation)
	assert.True(t, res.Validation.Passed)
	assert.NotEmpty(t, res.Warnings)

	s := o.Session()
	assert.Len(t, s.History, 8)
	assert.Equal(t, 80, s.TokensUsed)
	assert.Equal(t, 80, res.TokensUsed)
	assert.Equal(t, entity.StateDone, o.State())
	assert.Contains(t, s.Warnings, "compose produced no files")

	require.Len(t, rec.events, 9)
	for i := 1; i < len(rec.events); i++ {
		assert.GreaterOrEqual(t, rec.events[i].Percent, rec.events[i-1].Percent)
	}
	for _, e := range rec.events[:8] {
		assert.Less(t, e.Percent, 100)
		assert.Equal(t, s.ID, e.RunID)
	}
	last := rec.events[8]
	assert.Equal(t, entity.StateDone, last.State)
	assert.Equal(t, 100, last.Percent)
	assert.Equal(t, entity.StateAnalyzing, rec.events[0].State)
	assert.Equal(t, 0, rec.events[0].Percent)
}

func TestOrchestrator_PromptsFoldContext(t *testing.T) {
	model := &scriptedModel{responses: happyScript()}
	o := NewOrchestrator(model.call, OrchestratorConfig{}, quietLogger())

	res := o.Run(context.Background(), request())
	require.True(t, res.Success, res.Error)
	require.Len(t, model.prompts, 8)

	assert.Contains(t, model.prompts[0], "Landing page for a rocket company")
	assert.Contains(t, model.prompts[1], "rocket landing page", "plan sees analysis")
	assert.Contains(t, model.prompts[3], "- package.json", "components see existing files")
	assert.Contains(t, model.prompts[6], "Automated checks", "review sees pipeline findings")
	assert.Contains(t, model.prompts[7], `"score": 91`, "improve sees review")
}

func TestOrchestrator_UnparsableAnalysisFails(t *testing.T) {
	model := &scriptedModel{responses: []string{"I cannot help with that."}}
	rec := &progressRecorder{}
	o := NewOrchestrator(model.call, OrchestratorConfig{Sink: rec}, quietLogger())

	res := o.Run(context.Background(), request())
	assert.False(t, res.Success)
	assert.Nil(t, res.Files)
	assert.Contains(t, res.Error, string(entity.StateAnalyzing))
	assert.Contains(t, res.Error, "unparsable")
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, entity.StateFailed, o.State())

	require.Len(t, rec.events, 2)
	assert.Equal(t, entity.StateFailed, rec.events[1].State)
	assert.Equal(t, 0, rec.events[1].Percent)
	assert.NotEmpty(t, o.Session().Errors)
}

func TestOrchestrator_RetriesRateLimit(t *testing.T) {
	model := &scriptedModel{
		responses: happyScript(),
		errs:      map[int]error{0: &entity.RateLimitError{StatusCode: 429}, 1: errors.New("429 too many requests")},
	}
	var waited []time.Duration
	o := NewOrchestrator(model.call, OrchestratorConfig{
		Retry: llm.RetryConfig{MaxRetries: 3, BaseDelay: 50 * time.Millisecond},
		Wait: func(ctx context.Context, d time.Duration) error {
			waited = append(waited, d)
			return nil
		},
	}, quietLogger())

	res := o.Run(context.Background(), request())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 100 * time.Millisecond}, waited)
	assert.Len(t, o.Session().History, 8)
}

func TestOrchestrator_TransientFailure(t *testing.T) {
	model := &scriptedModel{
		responses: happyScript(),
		errs:      map[int]error{2: errors.New("connection reset by peer")},
	}
	o := NewOrchestrator(model.call, OrchestratorConfig{}, quietLogger())

	res := o.Run(context.Background(), request())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, string(entity.StateGeneratingCore))
	assert.Contains(t, res.Error, "connection reset")
	assert.Len(t, model.prompts, 3)
}

func TestOrchestrator_NotConfigured(t *testing.T) {
	rec := &progressRecorder{}
	o := NewOrchestrator(nil, OrchestratorConfig{Sink: rec}, quietLogger())

	res := o.Run(context.Background(), request())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, entity.ErrNotConfigured.Error())
	require.Len(t, rec.events, 1)
	assert.Equal(t, entity.StateFailed, rec.events[0].State)
}

func TestOrchestrator_InvalidRequest(t *testing.T) {
	model := &scriptedModel{responses: happyScript()}
	o := NewOrchestrator(model.call, OrchestratorConfig{}, quietLogger())

	req := request()
	req.ProjectType = "spaceship"
	res := o.Run(context.Background(), req)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown project type")
	assert.Empty(t, model.prompts)
}

func TestOrchestrator_Cancelled(t *testing.T) {
	model := &scriptedModel{responses: happyScript()}
	o := NewOrchestrator(model.call, OrchestratorConfig{}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := o.Run(ctx, request())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, context.Canceled.Error())
	assert.Empty(t, model.prompts)
}

func TestOrchestrator_ValidationFailure(t *testing.T) {
	script := happyScript()
	script[2] = strings.Replace(coreResponse(), "```json:package.json", "```json:package.txt", 1)

	t.Run("reported but not fatal by default", func(t *testing.T) {
		model := &scriptedModel{responses: script}
		o := NewOrchestrator(model.call, OrchestratorConfig{}, quietLogger())

		res := o.Run(context.Background(), request())
		require.True(t, res.Success, res.Error)
		require.NotNil(t, res.Validation)
		assert.False(t, res.Validation.Passed)
		assert.NotEmpty(t, res.Errors)
	})

	t.Run("fatal when configured", func(t *testing.T) {
		model := &scriptedModel{responses: script}
		o := NewOrchestrator(model.call, OrchestratorConfig{FailOnValidation: true}, quietLogger())

		res := o.Run(context.Background(), request())
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, entity.ErrValidationFailed.Error())
		require.NotNil(t, res.Validation)
		assert.Equal(t, "package.json", res.Validation.Errors()[0].File)
	})
}

func TestOrchestrator_RunIDBecomesSessionID(t *testing.T) {
	model := &scriptedModel{responses: happyScript()}
	o := NewOrchestrator(model.call, OrchestratorConfig{}, quietLogger())

	req := request()
	req.RunID = "run-123"
	res := o.Run(context.Background(), req)
	assert.Equal(t, "run-123", res.SessionID)
}

func TestPercentOf(t *testing.T) {
	assert.Equal(t, 0, percentOf(0, 0))
	assert.Equal(t, 50, percentOf(5*time.Second, 10*time.Second))
	assert.Equal(t, 99, percentOf(10*time.Second, 10*time.Second))
}
