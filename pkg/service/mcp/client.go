package mcp

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/brewie/voicegate/pkg/tool"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
)

const (
	// ActionGroupsTool is the reserved tool listing the robot action groups
	ActionGroupsTool = "get_available_actions"

	defaultCallTimeout        = 30 * time.Second
	defaultActionGroupTimeout = 8 * time.Second
)

// ServerConfig represents the robot MCP server configuration
type ServerConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // "stdio" or "http"
	Command   []string          `yaml:"command"`
	URL       string            `yaml:"url"`
	Env       map[string]string `yaml:"env"`

	CallTimeout time.Duration `yaml:"call_timeout"`
}

// Client is a session to the robot MCP server. A session broken by a failed
// call is dropped and re-established on the next call; the failed call itself
// is not retried.
type Client struct {
	cfg    ServerConfig
	client *mcp.Client

	mu      sync.Mutex
	session *mcp.ClientSession
}

// Connect creates a client and opens the first session
func Connect(ctx context.Context, cfg ServerConfig) (*Client, error) {
	if cfg.Name == "" {
		cfg.Name = "robot"
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}

	c := &Client{
		cfg: cfg,
		client: mcp.NewClient(&mcp.Implementation{
			Name:    "voicegate",
			Version: "0.1.0",
		}, nil),
	}

	if _, err := c.ensureSession(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) ensureSession(ctx context.Context) (*mcp.ClientSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return c.session, nil
	}

	transport, err := c.newTransport()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create transport", goerr.V("server", c.cfg.Name))
	}

	session, err := c.client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to MCP server", goerr.V("server", c.cfg.Name))
	}
	c.session = session
	return session, nil
}

func (c *Client) dropSession(broken *mcp.ClientSession) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == broken {
		_ = c.session.Close()
		c.session = nil
	}
}

func (c *Client) newTransport() (mcp.Transport, error) {
	switch c.cfg.Transport {
	case "stdio":
		if len(c.cfg.Command) == 0 {
			return nil, goerr.New("command is required for stdio transport")
		}
		cmd := exec.Command(c.cfg.Command[0], c.cfg.Command[1:]...)
		if len(c.cfg.Env) > 0 {
			env := os.Environ()
			for k, v := range c.cfg.Env {
				env = append(env, k+"="+v)
			}
			cmd.Env = env
		}
		return &mcp.CommandTransport{Command: cmd}, nil

	case "http", "":
		if c.cfg.URL == "" {
			return nil, goerr.New("url is required for http transport")
		}
		return &mcp.StreamableClientTransport{Endpoint: c.cfg.URL}, nil

	default:
		return nil, goerr.New("unsupported transport",
			goerr.V("transport", c.cfg.Transport),
			goerr.V("supported", []string{"stdio", "http"}))
	}
}

// ListTools returns the robot actions as catalog descriptors
func (c *Client) ListTools(ctx context.Context) ([]*tool.Descriptor, error) {
	session, err := c.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	result, err := session.ListTools(ctx, nil)
	if err != nil {
		c.dropSession(session)
		return nil, goerr.Wrap(err, "failed to list tools", goerr.V("server", c.cfg.Name))
	}

	descriptors := make([]*tool.Descriptor, 0, len(result.Tools))
	for _, t := range result.Tools {
		d, err := toDescriptor(t)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert tool", goerr.V("tool", t.Name))
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

// CallTool invokes a robot action and waits for its result
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error) {
	return c.callTool(ctx, name, arguments, c.cfg.CallTimeout)
}

// Invoke calls a tool and returns its result text. A result flagged as an
// error is returned as an error.
func (c *Client) Invoke(ctx context.Context, name string, arguments map[string]any) (string, error) {
	result, err := c.CallTool(ctx, name, arguments)
	if err != nil {
		return "", err
	}
	if result.IsError {
		return "", goerr.New("tool reported an error",
			goerr.V("tool", name),
			goerr.V("result", ResultText(result)))
	}
	return ResultText(result), nil
}

func (c *Client) callTool(ctx context.Context, name string, arguments map[string]any, timeout time.Duration) (*mcp.CallToolResult, error) {
	session, err := c.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	if arguments == nil {
		arguments = map[string]any{}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: arguments,
	})
	if err != nil {
		c.dropSession(session)
		return nil, goerr.Wrap(err, "failed to call tool",
			goerr.V("server", c.cfg.Name),
			goerr.V("tool", name))
	}
	return result, nil
}

// ActionGroups queries the reserved action-group tool. The robot side waits a
// few seconds for the group list and answers empty when nothing arrived.
func (c *Client) ActionGroups(ctx context.Context) (map[string]string, error) {
	result, err := c.callTool(ctx, ActionGroupsTool, nil, defaultActionGroupTimeout)
	if err != nil {
		return nil, err
	}
	if result.IsError {
		return nil, goerr.New("action group query failed", goerr.V("result", ResultText(result)))
	}
	return parseActionGroups(result), nil
}

// Close closes the session
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	if err != nil {
		return goerr.Wrap(err, "failed to close session", goerr.V("server", c.cfg.Name))
	}
	return nil
}

// Config is the robot configuration file structure
type Config struct {
	Robot ServerConfig `yaml:"robot"`
}

// LoadConfig reads the robot server definition from a YAML file
func LoadConfig(configPath string) (*ServerConfig, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve config path", goerr.V("path", configPath))
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read robot config file", goerr.V("path", absPath))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse robot config file", goerr.V("path", absPath))
	}

	if cfg.Robot.URL == "" && len(cfg.Robot.Command) == 0 {
		return nil, goerr.New("robot config has neither url nor command", goerr.V("path", absPath))
	}
	return &cfg.Robot, nil
}
