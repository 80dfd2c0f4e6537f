package config

import (
	"encoding/json"
	"fmt"
	"go/token"
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"github.com/ohler55/ojg/jp"

	"github.com/agentic-research/dalgen/api"
)

// LoadImports reads every import's JSON file (relative to root) and decodes
// the objects its selector matches into entities, in file then match order.
func LoadImports(root string, imports []api.Import) ([]api.Entity, error) {
	var out []api.Entity
	for _, imp := range imports {
		entities, err := loadImport(root, imp)
		if err != nil {
			return nil, fmt.Errorf("%w: import %s: %v", ErrInvalidManifest, imp.File, err)
		}
		out = append(out, entities...)
	}
	return out, nil
}

func loadImport(root string, imp api.Import) ([]api.Entity, error) {
	if imp.File == "" {
		return nil, fmt.Errorf("missing file")
	}
	selector := imp.Selector
	if selector == "" {
		selector = "$.entities[*]"
	}
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}

	file := imp.File
	if !filepath.IsAbs(file) {
		file = filepath.Join(root, file)
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var data any
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	matches := x.Get(data)
	entities := make([]api.Entity, 0, len(matches))
	for i, m := range matches {
		var e api.Entity
		if err := decodeEntity(m, &e); err != nil {
			return nil, fmt.Errorf("match %d: %w", i, err)
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// decodeEntity accepts either an entity object or a bare name string.
func decodeEntity(v any, e *api.Entity) error {
	if name, ok := v.(string); ok {
		e.Name = name
		return nil
	}
	if _, ok := v.(map[string]any); !ok {
		return fmt.Errorf("expected object or string, got %T", v)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           e,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(v)
}

// Validate rejects entity names that are empty, not Go identifiers, or
// declared more than once.
func Validate(entities []api.Entity) error {
	seen := make(map[string]int, len(entities))
	for i, e := range entities {
		if !token.IsIdentifier(e.Name) {
			return fmt.Errorf("%w: entity %d: name %q is not a Go identifier", ErrInvalidManifest, i, e.Name)
		}
		if j, ok := seen[e.Name]; ok {
			return fmt.Errorf("%w: entity %q declared twice (entities %d and %d)", ErrInvalidManifest, e.Name, j, i)
		}
		seen[e.Name] = i
	}
	return nil
}
