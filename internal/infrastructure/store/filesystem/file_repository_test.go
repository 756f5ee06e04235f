package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scaffoldgen/internal/domain/entity"
)

func TestFileRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, err := NewFileRepository(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)

	files := map[string]string{
		"package.json":              `{"name":"acme"}`,
		"src/components/Header.tsx": "export const Header = () => null",
	}
	require.NoError(t, repo.SaveFiles(ctx, "run-1", files))

	data, err := os.ReadFile(filepath.Join(repo.GetBasePath(), "run-1", "src", "components", "Header.tsx"))
	require.NoError(t, err)
	assert.Equal(t, files["src/components/Header.tsx"], string(data))

	arts, err := repo.GetFiles(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, files, entity.ArtifactMap(arts))

	runs, err := repo.ListRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, runs)

	require.NoError(t, repo.DeleteRun(ctx, "run-1"))
	_, err = repo.GetFiles(ctx, "run-1")
	assert.ErrorIs(t, err, entity.ErrRunNotFound)
}

func TestFileRepository_RejectsEscapes(t *testing.T) {
	repo, err := NewFileRepository(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, repo.SaveFiles(context.Background(), "run-1", map[string]string{"../evil.sh": "rm -rf"}))
	assert.Error(t, repo.SaveFiles(context.Background(), "../up", map[string]string{"a.md": "hello"}))
}

func TestNewFileRepository_NotADirectory(t *testing.T) {
	p := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	_, err := NewFileRepository(p)
	assert.Error(t, err)
}

func TestReadDir(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	write("package.json", "{}")
	write("src/App.tsx", "export default 1")
	write("node_modules/react/index.js", "module.exports = {}")
	write("dist/index.html", "<html>")
	write(metadataFile, "{}")

	files, err := ReadDir(root)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"package.json": "{}",
		"src/App.tsx":  "export default 1",
	}, files)

	_, err = ReadDir(filepath.Join(root, "missing"))
	assert.Error(t, err)
}
