// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package taxonomy holds the static method-category tree and the
// versioned extraction schema contract shared by all extraction calls.
package taxonomy

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Node is one method category. Top-level nodes are level-1 categories;
// their children are level-2 categories.
type Node struct {
	// Name is the canonical category name.
	Name string `json:"name" yaml:"name"`

	// Aliases are alternative spellings accepted during validation.
	Aliases []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`

	// Children are the subcategories under this node.
	Children []Node `json:"children,omitempty" yaml:"children,omitempty"`
}

// Taxonomy is the read-only category tree for a run.
type Taxonomy struct {
	// Categories are the level-1 nodes.
	Categories []Node `json:"categories" yaml:"categories"`
}

// Load reads a taxonomy YAML file and validates its structure.
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading taxonomy %s: %w", path, err)
	}

	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing taxonomy %s: %w", path, err)
	}

	if err := t.validate(); err != nil {
		return nil, fmt.Errorf("invalid taxonomy %s: %w", path, err)
	}
	return &t, nil
}

func (t *Taxonomy) validate() error {
	if len(t.Categories) == 0 {
		return fmt.Errorf("no categories defined")
	}

	seen := make(map[string]bool)
	for _, l1 := range t.Categories {
		if strings.TrimSpace(l1.Name) == "" {
			return fmt.Errorf("category with empty name")
		}
		key := normalize(l1.Name)
		if seen[key] {
			return fmt.Errorf("duplicate category %q", l1.Name)
		}
		seen[key] = true

		for _, l2 := range l1.Children {
			if strings.TrimSpace(l2.Name) == "" {
				return fmt.Errorf("category %q has a child with empty name", l1.Name)
			}
		}
	}
	return nil
}

// Level1 resolves name to a canonical level-1 node, accepting aliases
// and ignoring case and surrounding whitespace.
func (t *Taxonomy) Level1(name string) (*Node, bool) {
	key := normalize(name)
	for i := range t.Categories {
		if matches(&t.Categories[i], key) {
			return &t.Categories[i], true
		}
	}
	return nil, false
}

// Level2 resolves name to the canonical level-2 name under the given
// level-1 category. It returns false when either level fails to resolve.
func (t *Taxonomy) Level2(level1, name string) (string, bool) {
	parent, ok := t.Level1(level1)
	if !ok {
		return "", false
	}
	key := normalize(name)
	for i := range parent.Children {
		if matches(&parent.Children[i], key) {
			return parent.Children[i].Name, true
		}
	}
	return "", false
}

// Render formats the tree as an indented list for inclusion in the
// extraction prompt.
func (t *Taxonomy) Render() string {
	var b strings.Builder
	for _, l1 := range t.Categories {
		fmt.Fprintf(&b, "- %s\n", l1.Name)
		for _, l2 := range l1.Children {
			fmt.Fprintf(&b, "  - %s\n", l2.Name)
		}
	}
	return b.String()
}

func matches(n *Node, key string) bool {
	if normalize(n.Name) == key {
		return true
	}
	for _, a := range n.Aliases {
		if normalize(a) == key {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
