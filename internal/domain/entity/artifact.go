package entity

import (
	"path"
	"sort"
	"strings"
	"time"
)

// Artifact is a generated project file as persisted by the stores.
type Artifact struct {
	RunID     string    `json:"run_id" bson:"run_id"`
	Path      string    `json:"path" bson:"path"`
	Content   string    `json:"content" bson:"content"`
	Kind      string    `json:"kind" bson:"kind"`
	Size      int       `json:"size" bson:"size"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// NewArtifacts converts an artifact map into a path-sorted slice.
func NewArtifacts(runID string, files map[string]string) []*Artifact {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	now := time.Now().UTC()
	out := make([]*Artifact, 0, len(paths))
	for _, p := range paths {
		out = append(out, &Artifact{
			RunID:     runID,
			Path:      p,
			Content:   files[p],
			Kind:      DetectKind(p),
			Size:      len(files[p]),
			CreatedAt: now,
		})
	}
	return out
}

func ArtifactMap(artifacts []*Artifact) map[string]string {
	out := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		out[a.Path] = a.Content
	}
	return out
}

func DetectKind(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".tsx", ".jsx":
		return "component"
	case ".ts", ".js":
		return "script"
	case ".css":
		return "stylesheet"
	case ".html":
		return "markup"
	case ".json":
		return "config"
	case ".md":
		return "doc"
	}
	return "unknown"
}
