package model

// Plan is the structured reply of the language model: a sentence to say and
// an ordered list of robot commands.
type Plan struct {
	Answer   string    `json:"answer"`
	Commands []Command `json:"commands"`

	// Dropped counts command entries rejected during parsing
	Dropped int `json:"-"`
}

// Command is one action the robot should run. Params are passed to the
// action executor untouched.
type Command struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

// Tools returns the tool names of the plan in dispatch order
func (p *Plan) Tools() []string {
	names := make([]string, len(p.Commands))
	for i, c := range p.Commands {
		names[i] = c.Tool
	}
	return names
}
