// Package prompt resolves layered prompt templates from a prompts directory.
//
// A layer is a named directory contributing template fragments and variables
// at a precedence position. The active stack orders layers; the last layer
// defining a role body wins, while prepend/append fragments accumulate from
// every layer in stack order.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// Error classes for prompt resolution failures.
var (
	ErrUnknownLayer     = errors.New("unknown prompt layer")
	ErrUnknownBundle    = errors.New("unknown prompt bundle")
	ErrUnresolvedRole   = errors.New("unresolved prompt role")
	ErrInvalidVariables = errors.New("invalid prompt variables")
	ErrEmptyStack       = errors.New("prompt stack must include at least one layer")
)

const activeStackFile = "active_stack.txt"

// Fragment is one template file together with the layer that owns it. The
// owning layer anchors include resolution during rendering.
type Fragment struct {
	Layer string
	Path  string
}

// Sources records which files a bundle/role resolved to for a given stack.
type Sources struct {
	Body     Fragment
	Prepends []Fragment
	Appends  []Fragment
	Stack    []string
}

// Manager reads layers, bundles, and the active stack from a prompts root.
// All state is read fresh from the filesystem per call.
type Manager struct {
	root string
}

// NewManager returns a Manager rooted at the given prompts directory.
func NewManager(root string) *Manager {
	return &Manager{root: root}
}

// Root returns the prompts directory this manager reads from.
func (m *Manager) Root() string {
	return m.root
}

// ListLayers returns all layer directory names, sorted. A missing prompts
// root yields an empty list.
func (m *Manager) ListLayers() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read prompts directory %s: %w", m.root, err)
	}
	var layers []string
	for _, entry := range entries {
		if entry.IsDir() {
			layers = append(layers, entry.Name())
		}
	}
	sort.Strings(layers)
	return layers, nil
}

// ReadActiveStack returns the persisted stack from active_stack.txt, or
// ["default"] when no stack file exists but a default layer does.
func (m *Manager) ReadActiveStack() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(m.root, activeStackFile))
	if err == nil {
		content := strings.TrimSpace(string(data))
		if content == "" {
			return nil, fmt.Errorf("active prompt stack file is empty: %s", filepath.Join(m.root, activeStackFile))
		}
		var stack []string
		for _, item := range strings.Split(content, ",") {
			if item != "" {
				stack = append(stack, item)
			}
		}
		if err := m.validateLayers(stack); err != nil {
			return nil, err
		}
		return stack, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read active stack: %w", err)
	}
	if info, statErr := os.Stat(filepath.Join(m.root, "default")); statErr == nil && info.IsDir() {
		return []string{"default"}, nil
	}
	return nil, fmt.Errorf("no active stack and no %s present", filepath.Join(m.root, "default"))
}

// WriteActiveStack validates and persists the stack to active_stack.txt.
func (m *Manager) WriteActiveStack(stack []string) error {
	if len(stack) == 0 {
		return ErrEmptyStack
	}
	if err := m.validateLayers(stack); err != nil {
		return err
	}
	path := filepath.Join(m.root, activeStackFile)
	if err := os.WriteFile(path, []byte(strings.Join(stack, ",")), 0o644); err != nil {
		return fmt.Errorf("write active stack %s: %w", path, err)
	}
	return nil
}

// ListBundles returns the union of bundle directories across the stack,
// sorted. The shared snippet directory is not a bundle.
func (m *Manager) ListBundles(stack []string) ([]string, error) {
	seen := make(map[string]bool)
	for _, layer := range stack {
		layerRoot, err := m.layerRoot(layer)
		if err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(layerRoot)
		if err != nil {
			return nil, fmt.Errorf("read layer %s: %w", layer, err)
		}
		for _, entry := range entries {
			if entry.IsDir() && entry.Name() != "shared" {
				seen[entry.Name()] = true
			}
		}
	}
	bundles := make([]string, 0, len(seen))
	for bundle := range seen {
		bundles = append(bundles, bundle)
	}
	sort.Strings(bundles)
	return bundles, nil
}

// ResolveSources scans the stack in order and records the body (last layer
// wins) plus every prepend/append fragment for bundle/role.
func (m *Manager) ResolveSources(stack []string, bundle, role string) (Sources, error) {
	if len(stack) == 0 {
		return Sources{}, ErrEmptyStack
	}
	sources := Sources{Stack: append([]string(nil), stack...)}
	bundleSeen := false
	bodyFound := false
	for _, layer := range stack {
		layerRoot, err := m.layerRoot(layer)
		if err != nil {
			return Sources{}, err
		}
		bundleRoot := filepath.Join(layerRoot, bundle)
		if info, err := os.Stat(bundleRoot); err != nil || !info.IsDir() {
			continue
		}
		bundleSeen = true
		if path := filepath.Join(bundleRoot, role+".prepend.j2"); isFile(path) {
			sources.Prepends = append(sources.Prepends, Fragment{Layer: layer, Path: path})
		}
		if path := filepath.Join(bundleRoot, role+".j2"); isFile(path) {
			sources.Body = Fragment{Layer: layer, Path: path}
			bodyFound = true
		}
		if path := filepath.Join(bundleRoot, role+".append.j2"); isFile(path) {
			sources.Appends = append(sources.Appends, Fragment{Layer: layer, Path: path})
		}
	}
	if !bundleSeen {
		return Sources{}, fmt.Errorf("%w: %s", ErrUnknownBundle, bundle)
	}
	if !bodyFound {
		return Sources{}, fmt.Errorf("%w: %s/%s", ErrUnresolvedRole, bundle, role)
	}
	return sources, nil
}

// ComposeText concatenates the raw fragment texts in stack order: prepends,
// optional runtime prepend, body, appends. No variable substitution happens.
func (m *Manager) ComposeText(stack []string, bundle, role, runtimePrepend string) (string, Sources, error) {
	sources, err := m.ResolveSources(stack, bundle, role)
	if err != nil {
		return "", Sources{}, err
	}
	var sb strings.Builder
	for _, fragment := range sources.Prepends {
		text, err := readFragment(fragment)
		if err != nil {
			return "", Sources{}, err
		}
		sb.WriteString(text)
	}
	if runtimePrepend != "" {
		sb.WriteString(runtimePrepend)
	}
	body, err := readFragment(sources.Body)
	if err != nil {
		return "", Sources{}, err
	}
	sb.WriteString(body)
	for _, fragment := range sources.Appends {
		text, err := readFragment(fragment)
		if err != nil {
			return "", Sources{}, err
		}
		sb.WriteString(text)
	}
	return sb.String(), sources, nil
}

// ParseStack parses a comma-separated stack argument. Layer names must be
// non-empty and contain no whitespace.
func ParseStack(raw string) ([]string, error) {
	parts := strings.Split(raw, ",")
	stack := make([]string, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			return nil, errors.New("prompt stack must be a comma-separated list of layer names")
		}
		if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
			return nil, fmt.Errorf("prompt layer name %q must not contain whitespace", name)
		}
		stack = append(stack, name)
	}
	return stack, nil
}

// layerRoot returns the directory for a layer, or ErrUnknownLayer.
func (m *Manager) layerRoot(layer string) (string, error) {
	root := filepath.Join(m.root, layer)
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrUnknownLayer, layer)
	}
	return root, nil
}

// validateLayers confirms every stack entry is an existing layer directory.
func (m *Manager) validateLayers(stack []string) error {
	var missing []string
	for _, layer := range stack {
		if _, err := m.layerRoot(layer); err != nil {
			missing = append(missing, layer)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownLayer, strings.Join(missing, ", "))
	}
	return nil
}

func readFragment(fragment Fragment) (string, error) {
	data, err := os.ReadFile(fragment.Path)
	if err != nil {
		return "", fmt.Errorf("read prompt fragment %s: %w", fragment.Path, err)
	}
	return string(data), nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
