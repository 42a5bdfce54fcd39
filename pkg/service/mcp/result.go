package mcp

import (
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// DefaultResultText is spoken when an action returns nothing readable
const DefaultResultText = "Command executed successfully"

// ResultText extracts a human-readable sentence from an action result.
// Order: first text content item, a structured mapping with a "text" field,
// a structured plain string, then DefaultResultText.
func ResultText(res *mcp.CallToolResult) string {
	if res == nil {
		return DefaultResultText
	}

	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok && strings.TrimSpace(tc.Text) != "" {
			return tc.Text
		}
	}

	structured := res.StructuredContent
	if raw, ok := structured.(json.RawMessage); ok {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			structured = v
		}
	}

	switch v := structured.(type) {
	case map[string]any:
		if text, ok := v["text"].(string); ok && text != "" {
			return text
		}
	case string:
		if v != "" {
			return v
		}
	}

	return DefaultResultText
}

// parseActionGroups reads the action group listing. The robot answers either
// a JSON object {id: description}, a JSON list of [id, description] pairs, or
// one identifier per line.
func parseActionGroups(res *mcp.CallToolResult) map[string]string {
	groups := make(map[string]string)

	for _, c := range res.Content {
		tc, ok := c.(*mcp.TextContent)
		if !ok {
			continue
		}
		text := strings.TrimSpace(tc.Text)
		if text == "" {
			continue
		}

		var obj map[string]string
		if err := json.Unmarshal([]byte(text), &obj); err == nil {
			for k, v := range obj {
				groups[k] = v
			}
			continue
		}

		var pairs [][]string
		if err := json.Unmarshal([]byte(text), &pairs); err == nil {
			for _, p := range pairs {
				switch len(p) {
				case 0:
				case 1:
					groups[p[0]] = ""
				default:
					groups[p[0]] = p[1]
				}
			}
			continue
		}

		// a bare ["id", "description"] pair, one per content item
		var pair []string
		if err := json.Unmarshal([]byte(text), &pair); err == nil {
			if len(pair) == 2 {
				groups[pair[0]] = pair[1]
			}
			continue
		}

		for _, line := range strings.Split(text, "\n") {
			if id := strings.TrimSpace(line); id != "" {
				groups[id] = ""
			}
		}
	}

	if obj, ok := res.StructuredContent.(map[string]any); ok {
		for k, v := range obj {
			if s, ok := v.(string); ok {
				groups[k] = s
			}
		}
	}

	return groups
}
