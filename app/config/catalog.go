package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"scaffoldgen/internal/domain/entity"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// LoadFeatureCatalog reads a YAML catalog, falling back to the embedded one
// when path is empty.
func LoadFeatureCatalog(path string) (*entity.FeatureCatalog, error) {
	src := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read feature catalog: %w", err)
		}
		src = b
	}
	return ParseFeatureCatalog(src)
}

func ParseFeatureCatalog(src []byte) (*entity.FeatureCatalog, error) {
	var c entity.FeatureCatalog
	if err := yaml.Unmarshal(src, &c); err != nil {
		return nil, fmt.Errorf("decode feature catalog: %w", err)
	}
	if c.Features == nil {
		c.Features = map[string]entity.FeatureGuide{}
	}
	return &c, nil
}
