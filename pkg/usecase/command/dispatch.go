package command

import (
	"context"

	"github.com/brewie/voicegate/pkg/model"
	"github.com/brewie/voicegate/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Report is what happened while dispatching a plan
type Report struct {
	Commands     []model.CommandOutcome
	Privileged   bool
	Denied       bool
	AnswerSpoken bool
}

// Dispatch runs the plan commands one after another and speaks each outcome.
// A refused or failed command does not stop the rest. The plan answer is
// spoken only for plans without privileged commands.
func (p *Pipeline) Dispatch(ctx context.Context, plan *model.Plan, auth model.Authorization) *Report {
	logger := logging.From(ctx)
	report := &Report{
		Commands: make([]model.CommandOutcome, 0, len(plan.Commands)),
	}

	for _, cmd := range plan.Commands {
		outcome := model.CommandOutcome{
			Tool:       cmd.Tool,
			Privileged: p.isPrivileged(ctx, cmd),
		}
		if outcome.Privileged {
			report.Privileged = true
		}

		if outcome.Privileged && !auth.Verified {
			err := goerr.Wrap(ErrAuthorizationDenied, "privileged command refused",
				goerr.V("tool", cmd.Tool),
				goerr.V("score", auth.Score))
			logger.Warn("permission denied", "error", err)

			p.speak(ctx, NoticeDenied)
			outcome.Denied = true
			outcome.Error = err.Error()
			report.Denied = true
			report.Commands = append(report.Commands, outcome)
			continue
		}

		result, err := p.robot.Invoke(ctx, cmd.Tool, cmd.Params)
		if err != nil {
			err = goerr.Wrap(ErrExecution, "robot failed to run command",
				goerr.V("tool", cmd.Tool),
				goerr.V("cause", err))
			logger.Error("command failed", "error", err)

			p.speak(ctx, NoticeFailed(cmd.Tool))
			outcome.Error = err.Error()
			report.Commands = append(report.Commands, outcome)
			continue
		}

		logger.Info("command executed", "tool", cmd.Tool, "result", result)
		p.speak(ctx, result)
		outcome.Executed = true
		outcome.Result = result
		report.Commands = append(report.Commands, outcome)
	}

	if !report.Privileged && !report.Denied {
		answer := plan.Answer
		if answer == "" {
			answer = NoticeDefaultAnswer
		}
		p.speak(ctx, answer)
		report.AnswerSpoken = true
	}

	return report
}
