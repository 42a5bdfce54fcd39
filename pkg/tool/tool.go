package tool

import (
	"fmt"
	"strings"
)

// Descriptor describes one robot action as advertised by the robot server
type Descriptor struct {
	Name        string
	Description string
	Params      []Param
}

// Param is a single input parameter of an action
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// Line renders the descriptor as one bullet of the system prompt
func (d *Descriptor) Line() string {
	var b strings.Builder
	b.WriteString("- ")
	b.WriteString(d.Name)

	desc := d.Description
	if desc == "" {
		desc = "(no description)"
	}
	b.WriteString(": ")
	b.WriteString(desc)

	if len(d.Params) > 0 {
		parts := make([]string, 0, len(d.Params))
		for _, p := range d.Params {
			s := p.Name
			if p.Type != "" {
				s += " " + p.Type
			}
			if !p.Required {
				s += "?"
			}
			parts = append(parts, s)
		}
		fmt.Fprintf(&b, " (params: %s)", strings.Join(parts, ", "))
	}
	return b.String()
}
