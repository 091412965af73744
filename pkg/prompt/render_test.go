// Tests for template rendering and include scoping.
package prompt

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderComposesFragmentsWithVariables(t *testing.T) {
	root := t.TempDir()
	writeLayerFile(t, root, "base", "variables.yaml", "name: saga\n")
	writeLayerFile(t, root, "base", "chat", "system.prepend.j2", "P {{ name }}\n")
	writeLayerFile(t, root, "base", "chat", "system.j2", "B {{ name }}\n")
	writeLayerFile(t, root, "over", "chat", "system.append.j2", "A {{ name }}\n")

	out, err := NewManager(root).Render([]string{"base", "over"}, "chat", "system", nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "P saga\nB saga\nA saga\n" {
		t.Fatalf("unexpected render output: %q", out)
	}
}

func TestRenderBodyOverrideKeepsEarlierFragments(t *testing.T) {
	root := t.TempDir()
	writeLayerFile(t, root, "base", "chat", "system.prepend.j2", "base-prepend\n")
	writeLayerFile(t, root, "base", "chat", "system.j2", "base-body\n")
	writeLayerFile(t, root, "over", "chat", "system.j2", "over-body\n")

	out, err := NewManager(root).Render([]string{"base", "over"}, "chat", "system", nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "base-prepend\nover-body\n" {
		t.Fatalf("body override dropped earlier fragments: %q", out)
	}
}

// An include resolves within the layer that owns the fragment, not across the
// stack.
func TestRenderIncludeScopedToOwningLayer(t *testing.T) {
	root := t.TempDir()
	writeLayerFile(t, root, "base", "shared", "note.j2", "base-note")
	writeLayerFile(t, root, "base", "chat", "system.j2", "{% include \"shared/note.j2\" %}\n")
	// The later layer shadows the shared snippet but owns no body.
	writeLayerFile(t, root, "over", "shared", "note.j2", "over-note")
	writeLayerFile(t, root, "over", "chat", "system.append.j2", "{% include \"shared/note.j2\" %}\n")

	out, err := NewManager(root).Render([]string{"base", "over"}, "chat", "system", nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "base-note\nover-note\n" {
		t.Fatalf("include leaked across layers: %q", out)
	}
}

func TestRenderWithPrependInsertsLiteralText(t *testing.T) {
	root := t.TempDir()
	writeLayerFile(t, root, "base", "variables.yaml", "name: saga\n")
	writeLayerFile(t, root, "base", "chat", "system.prepend.j2", "P\n")
	writeLayerFile(t, root, "base", "chat", "system.j2", "B\n")

	out, err := NewManager(root).RenderWithPrepend([]string{"base"}, "chat", "system", "runtime {{ name }}\n", nil)
	if err != nil {
		t.Fatalf("RenderWithPrepend: %v", err)
	}
	// The runtime prepend sits between file prepends and the body, and is
	// never run through the template engine.
	if out != "P\nruntime {{ name }}\nB\n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRenderExtraVarsWin(t *testing.T) {
	root := t.TempDir()
	writeLayerFile(t, root, "base", "variables.yaml", "name: layer\n")
	writeLayerFile(t, root, "base", "chat", "system.j2", "{{ name }}")

	out, err := NewManager(root).Render([]string{"base"}, "chat", "system", map[string]any{"name": "extra"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "extra" {
		t.Fatalf("expected extra vars to win, got %q", out)
	}
}

func TestValidateCatchesBrokenTemplate(t *testing.T) {
	root := t.TempDir()
	writeLayerFile(t, root, "base", "chat", "system.j2", "ok")
	writeLayerFile(t, root, "base", "chat", "user.j2", "ok")
	writeLayerFile(t, root, "base", "broken.j2", "{% if %}")

	err := NewManager(root).Validate([]string{"base"})
	if err == nil {
		t.Fatal("expected validation failure for broken template")
	}
	if !strings.Contains(err.Error(), "broken.j2") {
		t.Fatalf("expected error to name the file, got %v", err)
	}
}

// The prompt layer shipped with the repo must pass its own validation:
// every bundle carries both roles and every template parses.
func TestValidateShippedDefaultLayer(t *testing.T) {
	manager := NewManager(filepath.Join("..", "..", "prompts"))
	stack, err := manager.ReadActiveStack()
	if err != nil {
		t.Fatalf("ReadActiveStack: %v", err)
	}
	if err := manager.Validate(stack); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for _, role := range []string{"system", "user"} {
		if _, err := manager.ResolveSources(stack, "chat", role); err != nil {
			t.Fatalf("resolve chat/%s: %v", role, err)
		}
	}
}

func TestValidateRequiresBundles(t *testing.T) {
	root := t.TempDir()
	writeLayerFile(t, root, "empty", "variables.yaml", "a: 1\n")
	if err := NewManager(root).Validate([]string{"empty"}); err == nil {
		t.Fatal("expected validation failure for bundle-less stack")
	}
}
