package socketrpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tinytelemetry/cardpop/internal/model"
)

// Client drives a running deck over a Unix domain socket using JSON-RPC 2.0.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	nextID  int
	scanner *bufio.Scanner
	encoder *json.Encoder
}

// Dial connects to the socket RPC server at the given path.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("socketrpc: dial: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	return &Client{
		conn:    conn,
		scanner: scanner,
		encoder: json.NewEncoder(conn),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call performs a JSON-RPC call and unmarshals the result into dest.
func (c *Client) call(method string, params interface{}, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	paramsData, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("socketrpc: marshal params: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  paramsData,
	}

	c.conn.SetDeadline(time.Now().Add(10 * time.Second))
	defer c.conn.SetDeadline(time.Time{})

	if err := c.encoder.Encode(req); err != nil {
		return fmt.Errorf("socketrpc: send: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return fmt.Errorf("socketrpc: read: %w", err)
		}
		return fmt.Errorf("socketrpc: connection closed")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("socketrpc: unmarshal response: %w", err)
	}

	if resp.Error != nil {
		return resp.Error
	}

	if dest != nil {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("socketrpc: unmarshal result: %w", err)
		}
	}
	return nil
}

// Send delivers a runner command and returns the status reported after it.
func (c *Client) Send(cmd model.RunnerCommand) (model.RunnerStatus, error) {
	var method string
	switch cmd {
	case model.CommandPause:
		method = "Pause"
	case model.CommandResume:
		method = "Resume"
	case model.CommandStop:
		method = "Stop"
	default:
		return model.RunnerStatus{}, fmt.Errorf("socketrpc: unknown command %q", cmd)
	}
	var result model.RunnerStatus
	err := c.call(method, map[string]interface{}{}, &result)
	return result, err
}

func (c *Client) Pause() (model.RunnerStatus, error)  { return c.Send(model.CommandPause) }
func (c *Client) Resume() (model.RunnerStatus, error) { return c.Send(model.CommandResume) }
func (c *Client) Stop() (model.RunnerStatus, error)   { return c.Send(model.CommandStop) }

func (c *Client) Status() (model.RunnerStatus, error) {
	var result model.RunnerStatus
	err := c.call("Status", map[string]interface{}{}, &result)
	return result, err
}
