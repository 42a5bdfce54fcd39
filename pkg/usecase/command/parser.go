package command

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/brewie/voicegate/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

const fence = "```"

// ParsePlan extracts a plan from the model reply. The reply is decoded as is
// first, then the body of its first fenced code block. Command entries without
// a string tool are dropped and counted in Plan.Dropped.
func ParsePlan(raw string) (*model.Plan, error) {
	text := strings.TrimSpace(raw)

	plan, err := decodePlan(text)
	if err == nil {
		return plan, nil
	}

	if body, ok := fencedBody(text); ok {
		if fenced, fencedErr := decodePlan(body); fencedErr == nil {
			return fenced, nil
		}
	}

	return nil, goerr.Wrap(ErrDecode, "cannot decode plan", goerr.V("raw", raw), goerr.V("cause", err))
}

// fencedBody returns the content of the first ``` block. The language tag
// after the opening marker is skipped; a missing closing marker takes the rest.
func fencedBody(text string) (string, bool) {
	start := strings.Index(text, fence)
	if start < 0 {
		return "", false
	}
	body := text[start+len(fence):]

	if nl := strings.IndexByte(body, '\n'); nl >= 0 && isLanguageTag(body[:nl]) {
		body = body[nl+1:]
	} else if nl < 0 && isLanguageTag(body) {
		return "", false
	}

	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body), true
}

func isLanguageTag(s string) bool {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == '+') {
			return false
		}
	}
	return true
}

type wirePlan struct {
	Answer   string          `json:"answer"`
	Commands json.RawMessage `json:"commands"`
}

type wireCommand struct {
	Tool   any             `json:"tool"`
	Params json.RawMessage `json:"params"`
}

func decodePlan(text string) (*model.Plan, error) {
	if !strings.HasPrefix(text, "{") {
		return nil, goerr.New("plan is not a JSON object")
	}

	var wire wirePlan
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return nil, goerr.Wrap(err, "invalid plan JSON")
	}

	entries, err := commandEntries(wire.Commands)
	if err != nil {
		return nil, err
	}

	plan := &model.Plan{
		Answer:   wire.Answer,
		Commands: make([]model.Command, 0, len(entries)),
	}
	for _, entry := range entries {
		cmd, ok := decodeCommand(entry)
		if !ok {
			plan.Dropped++
			continue
		}
		plan.Commands = append(plan.Commands, cmd)
	}
	return plan, nil
}

// commandEntries promotes a single command object to a one-element list
func commandEntries(raw json.RawMessage) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch raw[0] {
	case '[':
		var entries []json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, goerr.Wrap(err, "invalid commands list")
		}
		return entries, nil
	default:
		return []json.RawMessage{raw}, nil
	}
}

func decodeCommand(raw json.RawMessage) (model.Command, bool) {
	var wire wireCommand
	if err := json.Unmarshal(raw, &wire); err != nil {
		return model.Command{}, false
	}

	name, ok := wire.Tool.(string)
	if !ok || name == "" {
		return model.Command{}, false
	}

	// Params that are not an object are replaced by {}
	params := map[string]any{}
	if p := bytes.TrimSpace(wire.Params); len(p) > 0 && !bytes.Equal(p, []byte("null")) {
		if err := json.Unmarshal(p, &params); err != nil {
			params = map[string]any{}
		}
	}

	return model.Command{Tool: name, Params: params}, true
}
