// Package nav resolves the console's navigation tree. A deployment starts
// from the built-in default tree and may ship a patch that overrides,
// removes, or adds entries; resolution is a pure function so the same inputs
// always produce the same tree.
package nav

import (
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/identity"
)

// Item is a single navigation entry. Path is the client-side route the entry
// links to and doubles as the item's identity for patching: matching is
// literal string comparison, never route-pattern aware.
type Item struct {
	Path      string `json:"path" yaml:"path"`
	Name      string `json:"name" yaml:"name"`
	Icon      string `json:"icon,omitempty" yaml:"icon"`
	Protected bool   `json:"protected,omitempty" yaml:"protected"`
	AdminOnly bool   `json:"adminOnly,omitempty" yaml:"adminOnly"`
}

// Category is an ordered group of items rendered as one navigation section.
type Category struct {
	Name  string `json:"name" yaml:"name"`
	Items []Item `json:"items" yaml:"items"`
}

// Config is the full navigation tree, categories in render order.
type Config struct {
	Categories []Category `json:"categories" yaml:"categories"`
}

// Override adjusts a single default item in place. Zero-valued fields leave
// the item's field untouched; pointer fields distinguish "unset" from an
// explicit false. Hidden is terminal: a hidden item is deleted outright and
// none of the other override fields apply.
type Override struct {
	Name      string `json:"name,omitempty" yaml:"name"`
	Icon      string `json:"icon,omitempty" yaml:"icon"`
	Protected *bool  `json:"protected,omitempty" yaml:"protected"`
	AdminOnly *bool  `json:"adminOnly,omitempty" yaml:"adminOnly"`
	Hidden    bool   `json:"hidden,omitempty" yaml:"hidden"`
}

// Addition appends an item to the named category, creating the category at
// the end of the tree when it does not exist yet.
type Addition struct {
	Category string `json:"category" yaml:"category"`
	Item     Item   `json:"item" yaml:"item"`
}

// Patch is an integrator's adjustment to the default tree.
type Patch struct {
	Overrides map[string]Override `json:"overrides,omitempty" yaml:"overrides"`
	Removals  []string            `json:"removals,omitempty" yaml:"removals"`
	Additions []Addition          `json:"additions,omitempty" yaml:"additions"`
}

// Resolve applies patch to def and returns the resulting tree. def is never
// mutated. The phases run in a fixed order regardless of how the patch is
// written: clone, then overrides, then removals, then additions.
//
// Overrides referencing a path absent from the tree are no-ops. Removals are
// idempotent: removing a path that is already gone changes nothing. Additions
// append as-is with no de-duplication; adding a path that already exists
// yields both entries.
func Resolve(def Config, patch *Patch) Config {
	out := def.clone()
	if patch == nil {
		return out
	}

	for path, ov := range patch.Overrides {
		if ov.Hidden {
			out.remove(path)
			continue
		}
		out.patch(path, ov)
	}

	for _, path := range patch.Removals {
		out.remove(path)
	}

	for _, add := range patch.Additions {
		out.append(add.Category, add.Item)
	}

	return out
}

// VisibleTo filters cfg down to the items the resolved user may see.
// Protected items require any authenticated user; adminOnly items require an
// admin. Categories left empty by filtering are dropped.
func VisibleTo(cfg Config, user *identity.User) Config {
	authenticated := user != nil && user.IsAuthenticated
	admin := authenticated && (user.IsAdmin || user.IsOmniAdmin)

	out := Config{}
	for _, cat := range cfg.Categories {
		var items []Item
		for _, item := range cat.Items {
			if item.AdminOnly && !admin {
				continue
			}
			if item.Protected && !authenticated {
				continue
			}
			items = append(items, item)
		}
		if len(items) > 0 {
			out.Categories = append(out.Categories, Category{Name: cat.Name, Items: items})
		}
	}
	return out
}

// apply shallow-patches the item with the override's set fields.
func (i *Item) apply(ov Override) {
	if ov.Name != "" {
		i.Name = ov.Name
	}
	if ov.Icon != "" {
		i.Icon = ov.Icon
	}
	if ov.Protected != nil {
		i.Protected = *ov.Protected
	}
	if ov.AdminOnly != nil {
		i.AdminOnly = *ov.AdminOnly
	}
}

func (c Config) clone() Config {
	out := Config{Categories: make([]Category, len(c.Categories))}
	for i, cat := range c.Categories {
		items := make([]Item, len(cat.Items))
		copy(items, cat.Items)
		out.Categories[i] = Category{Name: cat.Name, Items: items}
	}
	return out
}

// patch applies ov to every item matching path, scanning the whole tree the
// same way remove does. Paths are unique per category by convention, but a
// path repeated across categories gets every copy patched.
func (c *Config) patch(path string, ov Override) {
	for i := range c.Categories {
		for j := range c.Categories[i].Items {
			if c.Categories[i].Items[j].Path == path {
				c.Categories[i].Items[j].apply(ov)
			}
		}
	}
}

// find returns a pointer to the first item matching path.
func (c *Config) find(path string) *Item {
	for i := range c.Categories {
		for j := range c.Categories[i].Items {
			if c.Categories[i].Items[j].Path == path {
				return &c.Categories[i].Items[j]
			}
		}
	}
	return nil
}

// remove drops every item matching path. Emptied categories stay in the tree
// so later additions can still target them by name.
func (c *Config) remove(path string) {
	for i := range c.Categories {
		items := c.Categories[i].Items[:0]
		for _, item := range c.Categories[i].Items {
			if item.Path != path {
				items = append(items, item)
			}
		}
		c.Categories[i].Items = items
	}
}

func (c *Config) append(category string, item Item) {
	for i := range c.Categories {
		if c.Categories[i].Name == category {
			c.Categories[i].Items = append(c.Categories[i].Items, item)
			return
		}
	}
	c.Categories = append(c.Categories, Category{Name: category, Items: []Item{item}})
}
