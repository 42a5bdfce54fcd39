package command_test

import (
	"errors"
	"testing"

	"github.com/brewie/voicegate/pkg/model"
	"github.com/brewie/voicegate/pkg/usecase/command"
	"github.com/m-mizutani/gt"
)

func TestParsePlan(t *testing.T) {
	testCases := []struct {
		name    string
		raw     string
		answer  string
		tools   []string
		dropped int
	}{
		{
			name:   "plain JSON",
			raw:    `{"answer":"Moving","commands":[{"tool":"make_step","params":{"x":0,"z":1}}]}`,
			answer: "Moving",
			tools:  []string{"make_step"},
		},
		{
			name:   "fenced with language tag",
			raw:    "```json\n{\"answer\":\"ok\",\"commands\":[]}\n```",
			answer: "ok",
			tools:  []string{},
		},
		{
			name:   "fenced without language tag",
			raw:    "```\n{\"answer\":\"ok\",\"commands\":[]}\n```",
			answer: "ok",
			tools:  []string{},
		},
		{
			name:   "fenced after prose",
			raw:    "Sure, here is the plan:\n```json\n{\"answer\":\"Waving\",\"commands\":[{\"tool\":\"run_action\",\"params\":{\"action_group_id\":\"wave\"}}]}\n```\nAnything else?",
			answer: "Waving",
			tools:  []string{"run_action"},
		},
		{
			name:   "fence without closing marker",
			raw:    "```json\n{\"answer\":\"ok\",\"commands\":[]}",
			answer: "ok",
			tools:  []string{},
		},
		{
			name:   "single command object is promoted",
			raw:    `{"answer":"Firing","commands":{"tool":"aim-and-fire","params":{}}}`,
			answer: "Firing",
			tools:  []string{"aim-and-fire"},
		},
		{
			name:   "missing commands",
			raw:    `{"answer":"Hello"}`,
			answer: "Hello",
			tools:  []string{},
		},
		{
			name:    "entries without string tool are dropped",
			raw:     `{"answer":"a","commands":[{"tool":"make_step"},{"params":{}},{"tool":3},"defend",{"tool":""},{"tool":"defend","params":[1]},{"tool":"pay","params":null}]}`,
			answer:  "a",
			tools:   []string{"make_step", "defend", "pay"},
			dropped: 4,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := command.ParsePlan(tc.raw)
			gt.NoError(t, err)
			gt.Equal(t, plan.Answer, tc.answer)
			gt.Equal(t, plan.Tools(), tc.tools)
			gt.Equal(t, plan.Dropped, tc.dropped)
		})
	}
}

func TestParsePlanParams(t *testing.T) {
	plan, err := command.ParsePlan(`{"answer":"Moving","commands":[{"tool":"make_step","params":{"x":0,"z":1}},{"tool":"defend"}]}`)
	gt.NoError(t, err)
	gt.Equal(t, plan.Commands[0], model.Command{
		Tool:   "make_step",
		Params: map[string]any{"x": float64(0), "z": float64(1)},
	})
	gt.Equal(t, plan.Commands[1].Params, map[string]any{})
}

func TestParsePlanNonObjectParams(t *testing.T) {
	plan, err := command.ParsePlan(`{"answer":"","commands":[{"tool":"defend","params":[1]},{"tool":"pay","params":"5"}]}`)
	gt.NoError(t, err)
	gt.Equal(t, plan.Dropped, 0)
	gt.Equal(t, plan.Commands, []model.Command{
		{Tool: "defend", Params: map[string]any{}},
		{Tool: "pay", Params: map[string]any{}},
	})
}

func TestParsePlanFencedEmpty(t *testing.T) {
	plan, err := command.ParsePlan("```json\n{\"answer\":\"ok\",\"commands\":[]}\n```")
	gt.NoError(t, err)
	gt.Equal(t, plan.Answer, "ok")
	gt.A(t, plan.Commands).Length(0)
	gt.Equal(t, plan.Dropped, 0)
}

func TestParsePlanError(t *testing.T) {
	for _, raw := range []string{
		"",
		"I will move forward",
		`{"answer": "broken"`,
		"```json\n{not json}\n```",
		`["make_step"]`,
		`{"answer": 42, "commands": []}`,
		`{"answer": "x", "commands": [1, 2`,
	} {
		_, err := command.ParsePlan(raw)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, command.ErrDecode))
	}
}
