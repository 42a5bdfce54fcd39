package command_test

import (
	"context"
	"testing"

	"github.com/brewie/voicegate/pkg/model"
	"github.com/brewie/voicegate/pkg/repository"
	"github.com/brewie/voicegate/pkg/tool"
	"github.com/brewie/voicegate/pkg/usecase/command"
	"github.com/m-mizutani/gt"
)

func TestHandleMoveForward(t *testing.T) {
	ctx := context.Background()
	llm := &mockLLM{reply: `{"answer":"Moving","commands":[{"tool":"make_step","params":{"x":0,"z":1}}]}`}
	robot := &mockRobot{results: map[string]string{"make_step": "one step!"}}
	verifier := &mockVerifier{}
	sp := &mockSpeaker{}
	repo := repository.NewMemory()

	p := command.New(llm, robot, sp,
		command.WithVerifier(verifier),
		command.WithRepository(repo))

	cycle := p.Handle(ctx, &command.Session{}, command.Utterance{Transcript: "move forward", AudioPath: "utt.wav"})

	gt.Equal(t, cycle.Outcome, model.OutcomeDispatched)
	gt.A(t, robot.calls).Length(1)
	gt.Equal(t, robot.calls[0].Tool, "make_step")
	gt.Equal(t, robot.calls[0].Params, map[string]any{"x": float64(0), "z": float64(1)})
	gt.Equal(t, sp.texts(), []string{"one step!", "Moving"})
	gt.A(t, verifier.calls).Length(0)

	gt.A(t, llm.requests).Length(1)
	req := llm.requests[0]
	gt.Equal(t, req.MaxTokens, 800)
	gt.Equal(t, req.Temperature, 0.2)
	gt.Equal(t, req.Stop, []string{"</s>"})
	gt.A(t, req.Messages).Length(2)
	gt.Equal(t, req.Messages[0].Role, model.RoleSystem)
	gt.Equal(t, req.Messages[1], model.Message{Role: model.RoleUser, Content: "move forward"})

	saved, err := repo.GetCycle(ctx, cycle.ID)
	gt.NoError(t, err)
	gt.Equal(t, saved.Transcript, "move forward")
	gt.Equal(t, saved.Answer, "Moving")
	gt.True(t, saved.Verified)
	gt.False(t, saved.Checked)
	gt.A(t, saved.Commands).Length(1)
	gt.Equal(t, saved.Commands[0].Result, "one step!")
}

func TestHandlePrivilegedDenied(t *testing.T) {
	llm := &mockLLM{reply: "```json\n{\"answer\":\"Firing\",\"commands\":[{\"tool\":\"aim-and-fire\",\"params\":{}}]}\n```"}
	robot := &mockRobot{}
	verifier := &mockVerifier{segments: segments(0, 0)}
	sp := &mockSpeaker{}

	p := command.New(llm, robot, sp, command.WithVerifier(verifier))
	cycle := p.Handle(context.Background(), &command.Session{}, command.Utterance{Transcript: "fire at will", AudioPath: "utt.wav"})

	gt.A(t, robot.calls).Length(0)
	gt.Equal(t, sp.texts(), []string{command.NoticeChecking, command.NoticeDenied})
	gt.True(t, cycle.Checked)
	gt.False(t, cycle.Verified)
	gt.True(t, cycle.Denied())
}

func TestHandlePrivilegedVerified(t *testing.T) {
	llm := &mockLLM{reply: `{"answer":"Paying","commands":{"tool":"pay","params":{"amount":5}}}`}
	robot := &mockRobot{results: map[string]string{"pay": "Payment sent"}}
	verifier := &mockVerifier{segments: segments(0, 0.05, 0.2, 0.0)}
	sp := &mockSpeaker{}

	p := command.New(llm, robot, sp, command.WithVerifier(verifier))
	cycle := p.Handle(context.Background(), &command.Session{}, command.Utterance{Transcript: "pay five", AudioPath: "utt.wav"})

	gt.Equal(t, robot.invoked(), []string{"pay"})
	gt.Equal(t, sp.texts(), []string{command.NoticeChecking, command.NoticeVerified, "Payment sent"})
	gt.True(t, cycle.Verified)
	gt.False(t, cycle.Denied())
}

func TestHandleRequestFailed(t *testing.T) {
	llm := &mockLLM{err: errRobotDown}
	robot := &mockRobot{}
	sp := &mockSpeaker{}
	repo := repository.NewMemory()

	p := command.New(llm, robot, sp, command.WithRepository(repo))
	cycle := p.Handle(context.Background(), &command.Session{}, command.Utterance{Transcript: "move forward"})

	gt.Equal(t, cycle.Outcome, model.OutcomeRequestFailed)
	gt.Equal(t, sp.texts(), []string{command.NoticeRequestFailed})
	gt.A(t, robot.calls).Length(0)
	gt.A(t, llm.requests).Length(1)

	saved, err := repo.GetCycle(context.Background(), cycle.ID)
	gt.NoError(t, err)
	gt.Equal(t, saved.Outcome, model.OutcomeRequestFailed)
}

func TestHandleDecodeFailed(t *testing.T) {
	llm := &mockLLM{reply: "Sure, I will move forward now."}
	robot := &mockRobot{}
	sp := &mockSpeaker{}

	p := command.New(llm, robot, sp)
	cycle := p.Handle(context.Background(), &command.Session{}, command.Utterance{Transcript: "move forward"})

	gt.Equal(t, cycle.Outcome, model.OutcomeDecodeFailed)
	gt.Equal(t, sp.texts(), []string{command.NoticeDecodeFailed})
	gt.A(t, robot.calls).Length(0)
}

func TestSystemPromptBuiltOnce(t *testing.T) {
	robot := &mockRobot{
		tools: []*tool.Descriptor{
			{Name: "make_step", Description: "Move the robot one step", Params: []tool.Param{
				{Name: "x", Type: "number", Required: true},
				{Name: "z", Type: "number", Required: true},
			}},
		},
		groups: map[string]string{"wave": "wave the right hand"},
	}
	llm := &mockLLM{reply: `{"answer":"hi","commands":[]}`}
	p := command.New(llm, robot, &mockSpeaker{})

	sess := &command.Session{}
	p.Handle(context.Background(), sess, command.Utterance{Transcript: "hello"})
	p.Handle(context.Background(), sess, command.Utterance{Transcript: "hello again"})

	gt.Equal(t, robot.listCalls, 1)
	gt.Equal(t, robot.groupCalls, 1)
	gt.A(t, llm.requests).Length(2)
	gt.Equal(t, llm.requests[0].Messages[0].Content, llm.requests[1].Messages[0].Content)

	prompt := llm.requests[0].Messages[0].Content
	gt.S(t, prompt).Contains("- make_step: Move the robot one step")
	gt.S(t, prompt).Contains("- wave: wave the right hand")
	gt.S(t, prompt).Contains(`"answer"`)
}

func TestSystemPromptToleratesFailures(t *testing.T) {
	robot := &mockRobot{listErr: errRobotDown, groupsErr: errRobotDown}
	p := command.New(&mockLLM{}, robot, &mockSpeaker{})

	prompt := p.SystemPrompt(context.Background())
	gt.S(t, prompt).Contains("no tools are available")
	gt.S(t, prompt).Contains("no action groups are available")
	gt.S(t, prompt).Contains("Respond ONLY with a JSON object")

	// failures are not retried
	p.SystemPrompt(context.Background())
	gt.Equal(t, robot.listCalls, 1)
	gt.A(t, p.Catalog(context.Background()).Tools()).Length(0)
}

func TestSessionHistory(t *testing.T) {
	llm := &mockLLM{reply: `{"answer":"ok","commands":[]}`}

	t.Run("history mode accumulates", func(t *testing.T) {
		p := command.New(llm, &mockRobot{}, &mockSpeaker{})
		sess := &command.Session{HistoryMode: true}

		p.Handle(context.Background(), sess, command.Utterance{Transcript: "first"})
		p.Handle(context.Background(), sess, command.Utterance{Transcript: "second"})

		gt.A(t, sess.History).Length(4)
		last := llm.requests[len(llm.requests)-1]
		gt.A(t, last.Messages).Length(4)
		gt.Equal(t, last.Messages[1], model.Message{Role: model.RoleUser, Content: "first"})
		gt.Equal(t, last.Messages[2].Role, model.RoleAssistant)
		gt.Equal(t, last.Messages[3].Content, "second")
	})

	t.Run("without history mode every cycle is independent", func(t *testing.T) {
		p := command.New(llm, &mockRobot{}, &mockSpeaker{})
		sess := &command.Session{History: []model.Message{{Role: model.RoleUser, Content: "stale"}}}

		p.Handle(context.Background(), sess, command.Utterance{Transcript: "first"})
		p.Handle(context.Background(), sess, command.Utterance{Transcript: "second"})

		gt.A(t, sess.History).Length(0)
		last := llm.requests[len(llm.requests)-1]
		gt.A(t, last.Messages).Length(2)
	})

	t.Run("failed request is not recorded", func(t *testing.T) {
		failing := &mockLLM{err: errRobotDown}
		p := command.New(failing, &mockRobot{}, &mockSpeaker{})
		sess := &command.Session{HistoryMode: true}

		p.Handle(context.Background(), sess, command.Utterance{Transcript: "first"})
		gt.A(t, sess.History).Length(0)
	})
}
