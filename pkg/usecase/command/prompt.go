package command

import (
	"bytes"
	"context"
	_ "embed"
	"text/template"

	"github.com/brewie/voicegate/pkg/tool"
	"github.com/brewie/voicegate/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/system.md
var systemPromptRaw string

var systemPromptTmpl = template.Must(template.New("system").Parse(systemPromptRaw))

// SystemPrompt returns the process-wide system prompt, building it on first use.
// Robot listing failures leave the affected section empty.
func (p *Pipeline) SystemPrompt(ctx context.Context) string {
	p.promptOnce.Do(func() {
		p.catalog = p.loadCatalog(ctx)

		prompt, err := renderSystemPrompt(p.catalog)
		if err != nil {
			logging.From(ctx).Error("failed to render system prompt", "error", err)
		}
		p.systemPrompt = prompt
	})
	return p.systemPrompt
}

// Catalog returns what the system prompt was built from
func (p *Pipeline) Catalog(ctx context.Context) *tool.Catalog {
	p.SystemPrompt(ctx)
	return p.catalog
}

func (p *Pipeline) loadCatalog(ctx context.Context) *tool.Catalog {
	logger := logging.From(ctx)

	tools, err := p.robot.ListTools(ctx)
	if err != nil {
		logger.Warn("cannot get list of tools", "error", err)
		tools = nil
	}

	groups, err := p.robot.ActionGroups(ctx)
	if err != nil {
		logger.Warn("cannot get list of action groups", "error", err)
		groups = nil
	}

	logger.Debug("robot catalog loaded", "tools", len(tools), "action_groups", len(groups))
	return tool.NewCatalog(tools, groups)
}

func renderSystemPrompt(catalog *tool.Catalog) (string, error) {
	var buf bytes.Buffer
	if err := systemPromptTmpl.Execute(&buf, map[string]any{
		"Tools":        catalog.ToolLines(),
		"ActionGroups": catalog.ActionGroupLines(),
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute system prompt template")
	}
	return buf.String(), nil
}
