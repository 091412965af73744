// Tests for layer variable loading and merging.
package prompt

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestMergeVariablesRecursive(t *testing.T) {
	base := map[string]any{
		"assistant": map[string]any{"name": "SAGA", "tone": "direct"},
		"limit":     10,
	}
	override := map[string]any{
		"assistant": map[string]any{"tone": "formal"},
		"limit":     20,
	}
	merged := MergeVariables(base, override)

	assistant, ok := merged["assistant"].(map[string]any)
	if !ok {
		t.Fatalf("expected assistant mapping, got %T", merged["assistant"])
	}
	// A key absent from the override's mapping survives the merge.
	if assistant["name"] != "SAGA" {
		t.Fatalf("expected name to survive, got %v", assistant["name"])
	}
	if assistant["tone"] != "formal" {
		t.Fatalf("expected tone override, got %v", assistant["tone"])
	}
	if merged["limit"] != 20 {
		t.Fatalf("expected scalar override, got %v", merged["limit"])
	}
}

func TestMergeVariablesScalarReplacesMapping(t *testing.T) {
	merged := MergeVariables(
		map[string]any{"value": map[string]any{"nested": 1}},
		map[string]any{"value": "plain"},
	)
	if merged["value"] != "plain" {
		t.Fatalf("expected wholesale replacement, got %v", merged["value"])
	}
}

func TestLoadVariablesAcrossLayers(t *testing.T) {
	root := t.TempDir()
	writeLayerFile(t, root, "default", "variables.yaml", "assistant:\n  name: SAGA\n  tone: direct\n")
	writeLayerFile(t, root, "fiat", "chat", "system.j2", "body")
	writeLayerFile(t, root, "cars", "variables.yaml", "assistant:\n  tone: playful\n")

	m := NewManager(root)
	variables, err := m.LoadVariables([]string{"default", "fiat", "cars"})
	if err != nil {
		t.Fatalf("LoadVariables: %v", err)
	}
	assistant := variables["assistant"].(map[string]any)
	if assistant["name"] != "SAGA" || assistant["tone"] != "playful" {
		t.Fatalf("unexpected merge result: %v", assistant)
	}
}

func TestLoadVariablesIdempotent(t *testing.T) {
	root := t.TempDir()
	writeLayerFile(t, root, "a", "variables.yaml", "x:\n  y: 1\n")
	writeLayerFile(t, root, "b", "variables.yaml", "x:\n  z: 2\n")

	m := NewManager(root)
	first, err := m.LoadVariables([]string{"a", "b"})
	if err != nil {
		t.Fatalf("LoadVariables: %v", err)
	}
	second, err := m.LoadVariables([]string{"a", "b"})
	if err != nil {
		t.Fatalf("LoadVariables: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("merge not idempotent: %v vs %v", first, second)
	}
}

func TestLoadVariablesInvalidNamesLayer(t *testing.T) {
	root := t.TempDir()
	writeLayerFile(t, root, "good", "variables.yaml", "a: 1\n")
	writeLayerFile(t, root, "broken", "variables.yaml", "- just\n- a list\n")

	_, err := NewManager(root).LoadVariables([]string{"good", "broken"})
	if !errors.Is(err, ErrInvalidVariables) {
		t.Fatalf("expected ErrInvalidVariables, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Fatalf("expected error to name offending layer, got %v", err)
	}
}
