// Package manifest describes a container tree in YAML and builds it.
//
//	name: app
//	installers: [config, logging]
//	children:
//	  - name: admin
//	    installers: [admin-actions]
//
// Installer names are looked up in a Registry; every node becomes a
// container, every child a sub-container of its parent.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/validation"
)

// Manifest is one node of the container tree.
type Manifest struct {
	Name       string      `yaml:"name"`
	Installers []string    `yaml:"installers,omitempty"`
	Children   []*Manifest `yaml:"children,omitempty"`
}

// Parse decodes and validates a manifest. Unknown fields are rejected.
func Parse(data []byte) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("manifest: document is empty")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadFile reads and parses the manifest at path.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest: %s: %w", path, err)
	}
	return m, nil
}

// Validate checks names at every level: each node and installer name must be
// a slug, sibling names must be unique and a node lists an installer once.
func (m *Manifest) Validate() error {
	return m.validate(nil)
}

func (m *Manifest) validate(path []string) error {
	here := append(path[:len(path):len(path)], m.Name)
	where := strings.Join(here, "/")

	data := map[string]string{"name": m.Name}
	rules := validation.Rules{"name": "required|max:64|slug"}
	for i, inst := range m.Installers {
		field := fmt.Sprintf("installers[%d]", i)
		data[field] = inst
		rules[field] = "required|max:64|slug"
	}
	if err := validation.Make(data, rules).Validate(); err != nil {
		return fmt.Errorf("manifest: %s: %w", where, err)
	}

	seen := make(map[string]bool, len(m.Installers))
	for _, inst := range m.Installers {
		if seen[inst] {
			return fmt.Errorf("manifest: %s: installer %q listed twice", where, inst)
		}
		seen[inst] = true
	}

	names := make(map[string]bool, len(m.Children))
	for _, child := range m.Children {
		if child == nil {
			return fmt.Errorf("manifest: %s: empty child", where)
		}
		if names[child.Name] {
			return fmt.Errorf("manifest: %s: duplicate child %q", where, child.Name)
		}
		names[child.Name] = true
		if err := child.validate(here); err != nil {
			return err
		}
	}
	return nil
}

// ── Registry ──────────────────────────────────────────────────────────────────

// Registry maps installer names to constructors.
type Registry struct {
	ctors map[string]func() container.Installer
}

func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]func() container.Installer)}
}

// Register adds a named installer constructor. A fresh installer is built
// for every container that lists the name.
func (r *Registry) Register(name string, ctor func() container.Installer) error {
	if err := validation.Make(map[string]string{"name": name}, validation.Rules{"name": "required|max:64|slug"}).Validate(); err != nil {
		return fmt.Errorf("manifest: register: %w", err)
	}
	if ctor == nil {
		return fmt.Errorf("manifest: register %q: nil constructor", name)
	}
	if _, dup := r.ctors[name]; dup {
		return fmt.Errorf("manifest: register %q: already registered", name)
	}
	r.ctors[name] = ctor
	return nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.ctors[name]
	return ok
}

func (r *Registry) missing(m *Manifest, path []string, out []string) []string {
	here := append(path[:len(path):len(path)], m.Name)
	for _, inst := range m.Installers {
		if !r.Has(inst) {
			out = append(out, strings.Join(here, "/")+": "+inst)
		}
	}
	for _, child := range m.Children {
		out = r.missing(child, here, out)
	}
	return out
}

// ── Build ─────────────────────────────────────────────────────────────────────

// Tree holds the containers built from a manifest. It keeps them reachable;
// parents only reference their children weakly.
type Tree struct {
	Name      string
	Container *container.Container
	Children  []*Tree
}

// Build installs m's installers into root and creates one named
// sub-container per child, recursively. Every installer name is checked
// before anything is installed.
func Build(root *container.Container, m *Manifest, reg *Registry) (*Tree, error) {
	if root == nil || m == nil || reg == nil {
		return nil, errors.New("manifest: build: nil argument")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if missing := reg.missing(m, nil, nil); len(missing) > 0 {
		return nil, fmt.Errorf("manifest: build: unknown installers: %s", strings.Join(missing, ", "))
	}
	return build(root, m, reg, nil)
}

func build(c *container.Container, m *Manifest, reg *Registry, path []string) (*Tree, error) {
	here := append(path[:len(path):len(path)], m.Name)
	for _, name := range m.Installers {
		if err := c.Install(reg.ctors[name]()); err != nil {
			return nil, fmt.Errorf("manifest: %s: install %s: %w", strings.Join(here, "/"), name, err)
		}
	}
	t := &Tree{Name: m.Name, Container: c}
	for _, cm := range m.Children {
		sub, err := c.CreateSubContainer(container.WithName(cm.Name))
		if err != nil {
			return nil, fmt.Errorf("manifest: %s: %w", strings.Join(here, "/"), err)
		}
		ct, err := build(sub, cm, reg, here)
		if err != nil {
			return nil, err
		}
		t.Children = append(t.Children, ct)
	}
	return t, nil
}

// Find returns the node at a slash-separated path of child names relative
// to t, or nil. The empty path is t itself.
//
//	admin := tree.Find("admin/reports")
func (t *Tree) Find(path string) *Tree {
	cur := t
	for _, name := range strings.Split(path, "/") {
		if name == "" {
			continue
		}
		var next *Tree
		for _, child := range cur.Children {
			if child.Name == name {
				next = child
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

// Dispose disposes the tree's containers, deepest first. The root container
// passed to Build is included.
func (t *Tree) Dispose() error {
	var err error
	for _, child := range t.Children {
		err = multierr.Append(err, child.Dispose())
	}
	return multierr.Append(err, t.Container.Dispose())
}
