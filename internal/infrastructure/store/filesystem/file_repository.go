package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"scaffoldgen/internal/domain/entity"
	"scaffoldgen/internal/infrastructure/metrics"
)

const (
	storeName    = "filesystem"
	metadataFile = "metadata.json"
)

// skipDirs are never loaded back from an exported project.
var skipDirs = []string{"node_modules/**", "dist/**", ".git/**", "build-logs/**"}

type FileRepository struct {
	basePath string
}

func (fr *FileRepository) GetBasePath() string {
	return fr.basePath
}

func NewFileRepository(basePath string) (*FileRepository, error) {
	info, err := os.Stat(basePath)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(basePath, 0o755); mkErr != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", basePath, mkErr)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to check directory %s: %w", basePath, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("path %s exists but is not a directory", basePath)
	}

	return &FileRepository{
		basePath: basePath,
	}, nil
}

type metadata struct {
	RunID      string    `json:"run_id"`
	CreatedAt  time.Time `json:"created_at"`
	FilesCount int       `json:"files_count"`
	Files      []string  `json:"files"`
}

// SaveFiles writes every artifact under <base>/<runID>/ together with a
// metadata.json listing them.
func (r *FileRepository) SaveFiles(ctx context.Context, runID string, files map[string]string) error {
	metrics.IncDBFileOp(storeName, "put")

	runDir, err := r.runDir(runID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := within(runDir, p)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", p, err)
		}
		if err := os.WriteFile(target, []byte(files[p]), 0o644); err != nil {
			return fmt.Errorf("failed to write file %s: %w", p, err)
		}
	}

	meta := metadata{
		RunID:      runID,
		CreatedAt:  time.Now(),
		FilesCount: len(paths),
		Files:      paths,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, metadataFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// GetFiles loads the files listed in the run metadata.
func (r *FileRepository) GetFiles(ctx context.Context, runID string) ([]*entity.Artifact, error) {
	metrics.IncDBFileOp(storeName, "get")

	runDir, err := r.runDir(runID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(runDir, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run %s: %w", runID, entity.ErrRunNotFound)
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var meta metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	files := make(map[string]string, len(meta.Files))
	for _, p := range meta.Files {
		target, err := within(runDir, p)
		if err != nil {
			return nil, err
		}
		content, err := os.ReadFile(target)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", p, err)
		}
		files[p] = string(content)
	}
	return entity.NewArtifacts(runID, files), nil
}

func (r *FileRepository) ListRuns(ctx context.Context) ([]string, error) {
	metrics.IncDBFileOp(storeName, "list")

	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read base directory: %w", err)
	}
	var runs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(r.basePath, e.Name(), metadataFile)); err == nil {
			runs = append(runs, e.Name())
		}
	}
	return runs, nil
}

func (r *FileRepository) DeleteRun(ctx context.Context, runID string) error {
	metrics.IncDBFileOp(storeName, "delete")

	runDir, err := r.runDir(runID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(runDir); err != nil {
		return fmt.Errorf("failed to delete run directory: %w", err)
	}
	return nil
}

func (r *FileRepository) runDir(runID string) (string, error) {
	if runID == "" || strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return "", fmt.Errorf("invalid run id %q", runID)
	}
	return filepath.Join(r.basePath, runID), nil
}

// ReadDir loads a project directory into an artifact map keyed by
// slash-separated relative path. Dependency and build output directories
// are skipped, as is the export metadata file.
func ReadDir(root string) (map[string]string, error) {
	files := make(map[string]string)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if skipped(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if rel == metadataFile || skipped(rel) {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		files[rel] = string(data)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	return files, nil
}

func skipped(rel string) bool {
	for _, pattern := range skipDirs {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func within(dir, rel string) (string, error) {
	target := filepath.Join(dir, filepath.FromSlash(rel))
	back, err := filepath.Rel(dir, target)
	if err != nil || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the project directory", rel)
	}
	return target, nil
}
