// Layer variable loading and recursive merge.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadVariables merges variables.yaml from every layer in stack order. A
// later layer's scalar replaces an earlier value; a later layer's mapping
// merges recursively into an earlier mapping.
func (m *Manager) LoadVariables(stack []string) (map[string]any, error) {
	merged := map[string]any{}
	for _, layer := range stack {
		layerRoot, err := m.layerRoot(layer)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(layerRoot, "variables.yaml")
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read variables for layer %s: %w", layer, err)
		}
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: layer %s: %v", ErrInvalidVariables, layer, err)
		}
		if raw == nil {
			continue
		}
		merged = MergeVariables(merged, raw)
	}
	return merged, nil
}

// MergeVariables returns base overlaid with override. Mappings merge
// recursively; any other value kind replaces wholesale.
func MergeVariables(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range override {
		if overrideMap, ok := value.(map[string]any); ok {
			if baseMap, ok := merged[key].(map[string]any); ok {
				merged[key] = MergeVariables(baseMap, overrideMap)
				continue
			}
		}
		merged[key] = value
	}
	return merged
}
