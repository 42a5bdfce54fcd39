package rosbridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/brewie/voicegate/pkg/utils/logging"
	"github.com/gorilla/websocket"
	"github.com/m-mizutani/goerr/v2"
)

const writeTimeout = 5 * time.Second

// Client publishes messages to ROS topics through a rosbridge websocket.
// Topics are advertised on first publish and unadvertised on Close.
type Client struct {
	conn *websocket.Conn

	mu         sync.Mutex
	advertised map[string]string
	closed     bool
	done       chan struct{}
}

type operation struct {
	Op    string `json:"op"`
	Topic string `json:"topic"`
	Type  string `json:"type,omitempty"`
	Msg   any    `json:"msg,omitempty"`
}

func Dial(ctx context.Context, url string) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to rosbridge", goerr.V("url", url))
	}

	c := &Client{
		conn:       conn,
		advertised: make(map[string]string),
		done:       make(chan struct{}),
	}
	go c.drain(ctx)
	return c, nil
}

// drain reads and discards incoming frames so that control frames are handled
func (c *Client) drain(ctx context.Context) {
	defer close(c.done)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.From(ctx).Warn("rosbridge connection lost", "error", err)
			}
			return
		}
	}
}

// Publish sends msg to topic, advertising the topic with msgType if needed
func (c *Client) Publish(topic, msgType string, msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return goerr.New("rosbridge client is closed", goerr.V("topic", topic))
	}

	if _, ok := c.advertised[topic]; !ok {
		if err := c.send(operation{Op: "advertise", Topic: topic, Type: msgType}); err != nil {
			return err
		}
		c.advertised[topic] = msgType
	}

	return c.send(operation{Op: "publish", Topic: topic, Msg: msg})
}

func (c *Client) send(op operation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal rosbridge operation", goerr.V("op", op.Op))
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return goerr.Wrap(err, "failed to set write deadline")
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return goerr.Wrap(err, "failed to write to rosbridge",
			goerr.V("op", op.Op),
			goerr.V("topic", op.Topic))
	}
	return nil
}

// Close unadvertises every topic and closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	var firstErr error
	for topic := range c.advertised {
		if err := c.send(operation{Op: "unadvertise", Topic: topic}); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.closed = true

	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
	c.mu.Unlock()

	if err := c.conn.Close(); err != nil && firstErr == nil {
		firstErr = goerr.Wrap(err, "failed to close rosbridge connection")
	}
	<-c.done
	return firstErr
}
