package tool

import (
	"sort"
)

// Catalog holds what the robot can do: its tools and the named action groups
// accepted by the run_action tool.
type Catalog struct {
	tools        []*Descriptor
	byName       map[string]*Descriptor
	actionGroups map[string]string
}

// NewCatalog creates a catalog. Both arguments may be empty.
func NewCatalog(tools []*Descriptor, actionGroups map[string]string) *Catalog {
	c := &Catalog{
		tools:        tools,
		byName:       make(map[string]*Descriptor, len(tools)),
		actionGroups: actionGroups,
	}
	for _, t := range tools {
		c.byName[t.Name] = t
	}
	return c
}

// Lookup finds a tool by name
func (c *Catalog) Lookup(name string) (*Descriptor, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// Tools returns the tools in server order
func (c *Catalog) Tools() []*Descriptor {
	return c.tools
}

// ToolLines renders every tool as a prompt bullet
func (c *Catalog) ToolLines() []string {
	lines := make([]string, 0, len(c.tools))
	for _, t := range c.tools {
		lines = append(lines, t.Line())
	}
	return lines
}

// ActionGroupLines renders the action groups sorted by identifier
func (c *Catalog) ActionGroupLines() []string {
	ids := make([]string, 0, len(c.actionGroups))
	for id := range c.actionGroups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		line := "- " + id
		if desc := c.actionGroups[id]; desc != "" {
			line += ": " + desc
		}
		lines = append(lines, line)
	}
	return lines
}
