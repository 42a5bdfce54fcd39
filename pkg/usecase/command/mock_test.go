package command_test

import (
	"context"
	"sync"

	"github.com/brewie/voicegate/pkg/adapter"
	"github.com/brewie/voicegate/pkg/model"
	"github.com/brewie/voicegate/pkg/tool"
	"github.com/m-mizutani/goerr/v2"
)

type mockLLM struct {
	reply    string
	err      error
	requests []*adapter.CompletionRequest
}

func (m *mockLLM) Complete(ctx context.Context, req *adapter.CompletionRequest) (string, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

type invocation struct {
	Tool   string
	Params map[string]any
}

type mockRobot struct {
	tools     []*tool.Descriptor
	groups    map[string]string
	listErr   error
	groupsErr error
	results   map[string]string
	failures  map[string]error

	listCalls  int
	groupCalls int
	calls      []invocation
}

func (m *mockRobot) ListTools(ctx context.Context) ([]*tool.Descriptor, error) {
	m.listCalls++
	return m.tools, m.listErr
}

func (m *mockRobot) ActionGroups(ctx context.Context) (map[string]string, error) {
	m.groupCalls++
	return m.groups, m.groupsErr
}

func (m *mockRobot) Invoke(ctx context.Context, name string, params map[string]any) (string, error) {
	m.calls = append(m.calls, invocation{Tool: name, Params: params})
	if err, ok := m.failures[name]; ok {
		return "", err
	}
	if text, ok := m.results[name]; ok {
		return text, nil
	}
	return "Command executed successfully", nil
}

func (m *mockRobot) invoked() []string {
	names := make([]string, len(m.calls))
	for i, c := range m.calls {
		names[i] = c.Tool
	}
	return names
}

type mockVerifier struct {
	segments []model.Segment
	err      error
	calls    []string
}

func (m *mockVerifier) Verify(ctx context.Context, audioPath string) ([]model.Segment, error) {
	m.calls = append(m.calls, audioPath)
	return m.segments, m.err
}

type mockSpeaker struct {
	mu     sync.Mutex
	spoken []string
}

func (m *mockSpeaker) Speak(ctx context.Context, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spoken = append(m.spoken, text)
}

func (m *mockSpeaker) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.spoken...)
}

var errRobotDown = goerr.New("robot is down")
