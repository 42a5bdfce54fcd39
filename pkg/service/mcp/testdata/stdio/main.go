package main

import (
	"context"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type stepParams struct {
	X float64 `json:"x" jsonschema:"left (1.0) or right (-1.0)"`
	Z float64 `json:"z" jsonschema:"forward (1.0) or back (-1.0)"`
}

func makeStep(ctx context.Context, req *mcp.CallToolRequest, params *stepParams) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "one step!"},
		},
	}, nil, nil
}

func availableActions(ctx context.Context, req *mcp.CallToolRequest, params *struct{}) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: `[["wave","wave the right hand"],["bow","bow politely"]]`},
		},
	}, nil, nil
}

func main() {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "test-robot-stdio",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "make_step",
		Description: "Move the robot by one step",
	}, makeStep)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_available_actions",
		Description: "List action groups",
	}, availableActions)

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
