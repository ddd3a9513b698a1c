// Package qlab is a small QLab OSC client. Besides listing workspaces and
// cues it can run a cue as a show soundtrack and report its elapsed time.
package qlab

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

const DefaultPort = 53000

type Workspace struct {
	DisplayName string `json:"displayName"`
	UniqueID    string `json:"uniqueID"`
	HasPasscode bool   `json:"hasPasscode"`
}

type Cue struct {
	UniqueID string `json:"uniqueID"`
	Number   string `json:"number"`
	Name     string `json:"name"`
	ListName string `json:"listName"`
	Type     string `json:"type"`
	Armed    bool   `json:"armed"`
	Cues     []Cue  `json:"cues"`
}

type Reply struct {
	WorkspaceID string          `json:"workspace_id"`
	Address     string          `json:"address"`
	Status      string          `json:"status"`
	Data        json.RawMessage `json:"data"`
}

type Client struct {
	conn    net.Conn
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan *Reply
}

func Dial(host string, port int) (*Client, error) {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, fmt.Sprint(port)), 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("qlab: %w", err)
	}
	c := &Client{
		conn:    conn,
		timeout: 5 * time.Second,
		pending: make(map[string]chan *Reply),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// SetTimeout bounds how long a request waits for its reply.
func (c *Client) SetTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	buf := make([]byte, 0, 65536)
	tmp := make([]byte, 4096)
	for {
		n, err := c.conn.Read(tmp)
		if err != nil {
			return
		}
		buf = append(buf, tmp[:n]...)
		for {
			frame, rest, ok := nextFrame(buf)
			if !ok {
				break
			}
			buf = rest
			c.handleFrame(frame)
		}
	}
}

func (c *Client) handleFrame(frame []byte) {
	msg, err := decodeMessage(frame)
	if err != nil || len(msg.args) == 0 {
		return
	}
	addr, ok := strings.CutPrefix(msg.addr, "/reply")
	if !ok {
		return
	}
	body, ok := msg.args[0].(string)
	if !ok {
		return
	}
	var reply Reply
	if err := json.Unmarshal([]byte(body), &reply); err != nil {
		return
	}

	c.mu.Lock()
	ch := c.pending[addr]
	delete(c.pending, addr)
	c.mu.Unlock()
	if ch != nil {
		ch <- &reply
	}
}

func (c *Client) send(addr string, args ...any) error {
	frame := slipEncode(message{addr: addr, args: args}.encode())
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.conn.Write(frame)
	return err
}

func (c *Client) request(addr string, args ...any) (*Reply, error) {
	ch := make(chan *Reply, 1)
	c.mu.Lock()
	c.pending[addr] = ch
	timeout := c.timeout
	c.mu.Unlock()

	forget := func() {
		c.mu.Lock()
		delete(c.pending, addr)
		c.mu.Unlock()
	}
	if err := c.send(addr, args...); err != nil {
		forget()
		return nil, fmt.Errorf("qlab: %s: %w", addr, err)
	}

	select {
	case reply := <-ch:
		if reply.Status != "ok" {
			return reply, fmt.Errorf("qlab: %s: %s", addr, reply.Status)
		}
		return reply, nil
	case <-time.After(timeout):
		forget()
		return nil, fmt.Errorf("qlab: %s: timeout", addr)
	}
}

func (c *Client) requestInto(v any, addr string, args ...any) error {
	reply, err := c.request(addr, args...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(reply.Data, v); err != nil {
		return fmt.Errorf("qlab: %s: %w", addr, err)
	}
	return nil
}

func (c *Client) Version() (string, error) {
	var v string
	err := c.requestInto(&v, "/version")
	return v, err
}

func (c *Client) Workspaces() ([]Workspace, error) {
	var ws []Workspace
	err := c.requestInto(&ws, "/workspaces")
	return ws, err
}

func (c *Client) Connect(workspaceID, passcode string) error {
	addr := fmt.Sprintf("/workspace/%s/connect", workspaceID)
	if passcode != "" {
		_, err := c.request(addr, passcode)
		return err
	}
	_, err := c.request(addr)
	return err
}

func (c *Client) CueLists(workspaceID string) ([]Cue, error) {
	var cues []Cue
	err := c.requestInto(&cues, fmt.Sprintf("/workspace/%s/cueLists", workspaceID))
	return cues, err
}

// Start runs the cue with the given number.
func (c *Client) Start(workspaceID, number string) error {
	return c.send(fmt.Sprintf("/workspace/%s/cue/%s/start", workspaceID, number))
}

func (c *Client) Stop(workspaceID, number string) error {
	return c.send(fmt.Sprintf("/workspace/%s/cue/%s/stop", workspaceID, number))
}

// Property reads one property of a cue by number into v.
func (c *Client) Property(workspaceID, number, property string, v any) error {
	return c.requestInto(v, fmt.Sprintf("/workspace/%s/cue/%s/%s", workspaceID, number, property))
}
