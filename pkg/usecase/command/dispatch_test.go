package command_test

import (
	"context"
	"testing"

	"github.com/brewie/voicegate/pkg/model"
	"github.com/brewie/voicegate/pkg/usecase/command"
	"github.com/m-mizutani/gt"
)

func TestDispatchKeepsOrderAfterFailure(t *testing.T) {
	robot := &mockRobot{
		results:  map[string]string{"a": "did a", "c": "did c"},
		failures: map[string]error{"b": errRobotDown},
	}
	sp := &mockSpeaker{}
	p := command.New(&mockLLM{}, robot, sp)

	plan := &model.Plan{
		Answer: "Doing three things",
		Commands: []model.Command{
			{Tool: "a", Params: map[string]any{}},
			{Tool: "b", Params: map[string]any{}},
			{Tool: "c", Params: map[string]any{}},
		},
	}
	report := p.Dispatch(context.Background(), plan, model.AutoAuthorized())

	gt.Equal(t, robot.invoked(), []string{"a", "b", "c"})
	gt.Equal(t, sp.texts(), []string{"did a", "Failed to execute b", "did c", "Doing three things"})
	gt.A(t, report.Commands).Length(3)
	gt.True(t, report.Commands[0].Executed)
	gt.False(t, report.Commands[1].Executed)
	gt.S(t, report.Commands[1].Error).Contains("command execution failed")
	gt.True(t, report.AnswerSpoken)
}

func TestDispatchUnauthorizedNeverInvoked(t *testing.T) {
	robot := &mockRobot{results: map[string]string{"make_step": "one step!"}}
	sp := &mockSpeaker{}
	p := command.New(&mockLLM{}, robot, sp)

	plan := &model.Plan{
		Answer: "Paying and moving",
		Commands: []model.Command{
			{Tool: "pay", Params: map[string]any{"amount": 1}},
			{Tool: "make_step", Params: map[string]any{"x": 0, "z": 1}},
			{Tool: "aim-and-fire", Params: map[string]any{}},
		},
	}
	report := p.Dispatch(context.Background(), plan, model.Authorization{Verified: false, Checked: true})

	gt.Equal(t, robot.invoked(), []string{"make_step"})
	gt.Equal(t, sp.texts(), []string{command.NoticeDenied, "one step!", command.NoticeDenied})
	gt.True(t, report.Denied)
	gt.True(t, report.Privileged)
	gt.False(t, report.AnswerSpoken)
	gt.True(t, report.Commands[0].Denied)
	gt.True(t, report.Commands[2].Denied)
}

func TestDispatchVerifiedPrivilegedSkipsAnswer(t *testing.T) {
	robot := &mockRobot{results: map[string]string{"defend": "Shield up"}}
	sp := &mockSpeaker{}
	p := command.New(&mockLLM{}, robot, sp)

	plan := &model.Plan{
		Answer:   "Defending",
		Commands: []model.Command{{Tool: "defend", Params: map[string]any{}}},
	}
	report := p.Dispatch(context.Background(), plan, model.Authorization{Verified: true, Score: 0.4, Checked: true})

	gt.Equal(t, robot.invoked(), []string{"defend"})
	gt.Equal(t, sp.texts(), []string{"Shield up"})
	gt.False(t, report.AnswerSpoken)
	gt.False(t, report.Denied)
}

func TestDispatchDefaultAnswer(t *testing.T) {
	sp := &mockSpeaker{}
	p := command.New(&mockLLM{}, &mockRobot{}, sp)

	report := p.Dispatch(context.Background(), &model.Plan{}, model.AutoAuthorized())
	gt.Equal(t, sp.texts(), []string{command.NoticeDefaultAnswer})
	gt.True(t, report.AnswerSpoken)
}

func TestDispatchPassesParams(t *testing.T) {
	robot := &mockRobot{}
	p := command.New(&mockLLM{}, robot, &mockSpeaker{})

	params := map[string]any{"x": float64(0), "z": float64(1)}
	p.Dispatch(context.Background(), &model.Plan{Commands: []model.Command{{Tool: "make_step", Params: params}}}, model.AutoAuthorized())

	gt.A(t, robot.calls).Length(1)
	gt.Equal(t, robot.calls[0].Params, params)
}
