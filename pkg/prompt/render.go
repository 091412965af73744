// Template rendering over resolved prompt sources.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/flosch/pongo2/v6"
)

// Prompts are plain text, not HTML.
func init() {
	pongo2.SetAutoescape(false)
}

// Render resolves bundle/role against the stack and renders the composed
// prompt with merged layer variables plus extraVars (extras win).
func (m *Manager) Render(stack []string, bundle, role string, extraVars map[string]any) (string, error) {
	return m.RenderWithPrepend(stack, bundle, role, "", extraVars)
}

// RenderWithPrepend renders like Render but inserts runtimePrepend as literal
// text between the prepend fragments and the body.
//
// Each fragment renders through a template set rooted at its owning layer, so
// {% include "shared/x.j2" %} resolves only within that layer.
func (m *Manager) RenderWithPrepend(stack []string, bundle, role, runtimePrepend string, extraVars map[string]any) (string, error) {
	sources, err := m.ResolveSources(stack, bundle, role)
	if err != nil {
		return "", err
	}
	variables, err := m.LoadVariables(stack)
	if err != nil {
		return "", err
	}
	if len(extraVars) > 0 {
		variables = MergeVariables(variables, extraVars)
	}

	var sb strings.Builder
	for _, fragment := range sources.Prepends {
		rendered, err := m.renderFragment(fragment, variables)
		if err != nil {
			return "", err
		}
		sb.WriteString(rendered)
	}
	if runtimePrepend != "" {
		sb.WriteString(runtimePrepend)
	}
	body, err := m.renderFragment(sources.Body, variables)
	if err != nil {
		return "", err
	}
	sb.WriteString(body)
	for _, fragment := range sources.Appends {
		rendered, err := m.renderFragment(fragment, variables)
		if err != nil {
			return "", err
		}
		sb.WriteString(rendered)
	}
	return sb.String(), nil
}

// Validate checks the stack end to end: every bundle/role resolves, the
// merged variables parse, and every .j2 file in every stack layer compiles.
func (m *Manager) Validate(stack []string) error {
	bundles, err := m.ListBundles(stack)
	if err != nil {
		return err
	}
	if len(bundles) == 0 {
		return fmt.Errorf("no prompt bundles found in stack %s", strings.Join(stack, ","))
	}
	for _, bundle := range bundles {
		for _, role := range []string{"system", "user"} {
			if _, err := m.ResolveSources(stack, bundle, role); err != nil {
				return err
			}
		}
	}
	if _, err := m.LoadVariables(stack); err != nil {
		return err
	}
	for _, layer := range stack {
		if err := m.compileLayerTemplates(layer); err != nil {
			return err
		}
	}
	return nil
}

// renderFragment renders one template file scoped to its owning layer.
func (m *Manager) renderFragment(fragment Fragment, variables map[string]any) (string, error) {
	set, layerRoot, err := m.layerTemplateSet(fragment.Layer)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(layerRoot, fragment.Path)
	if err != nil {
		return "", fmt.Errorf("resolve template path %s: %w", fragment.Path, err)
	}
	tpl, err := set.FromFile(filepath.ToSlash(rel))
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", fragment.Path, err)
	}
	rendered, err := tpl.Execute(pongo2.Context(variables))
	if err != nil {
		return "", fmt.Errorf("render template %s: %w", fragment.Path, err)
	}
	return rendered, nil
}

// compileLayerTemplates parses every .j2 under the layer without rendering.
func (m *Manager) compileLayerTemplates(layer string) error {
	set, layerRoot, err := m.layerTemplateSet(layer)
	if err != nil {
		return err
	}
	var paths []string
	err = filepath.WalkDir(layerRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".j2") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk layer %s: %w", layer, err)
	}
	sort.Strings(paths)
	for _, path := range paths {
		rel, err := filepath.Rel(layerRoot, path)
		if err != nil {
			return err
		}
		if _, err := set.FromFile(filepath.ToSlash(rel)); err != nil {
			return fmt.Errorf("parse template %s: %w", path, err)
		}
	}
	return nil
}

// layerTemplateSet builds a pongo2 set whose loader is confined to the layer
// directory.
func (m *Manager) layerTemplateSet(layer string) (*pongo2.TemplateSet, string, error) {
	layerRoot, err := m.layerRoot(layer)
	if err != nil {
		return nil, "", err
	}
	loader, err := pongo2.NewLocalFileSystemLoader(layerRoot)
	if err != nil {
		return nil, "", fmt.Errorf("open layer %s: %w", layer, err)
	}
	return pongo2.NewSet("layer:"+layer, loader), layerRoot, nil
}
