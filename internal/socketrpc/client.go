package socketrpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/CodeFleck/sensorvision-sub002/internal/model"
)

// Client implements model.OpsAPI over a Unix domain socket using JSON-RPC 2.0.
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

	c.conn.SetDeadline(time.Now().Add(30 * time.Second))
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

func (c *Client) TelemetryCount() (int64, error) {
	var result int64
	err := c.call("TelemetryCount", map[string]interface{}{}, &result)
	return result, err
}

func (c *Client) DeviceCount() (int64, error) {
	var result int64
	err := c.call("DeviceCount", map[string]interface{}{}, &result)
	return result, err
}

func (c *Client) ListDevices(limit int) ([]model.Device, error) {
	var result []model.Device
	err := c.call("ListDevices", map[string]interface{}{"Limit": limit}, &result)
	return result, err
}

func (c *Client) ListTrash() ([]model.TrashEntry, error) {
	var result []model.TrashEntry
	err := c.call("ListTrash", map[string]interface{}{}, &result)
	return result, err
}

func (c *Client) RestoreTrash(id int64) error {
	return c.call("RestoreTrash", map[string]interface{}{"ID": id}, nil)
}

func (c *Client) RunRetentionNow() (model.RetentionExecution, error) {
	var result model.RetentionExecution
	err := c.call("RunRetentionNow", map[string]interface{}{}, &result)
	return result, err
}

func (c *Client) RecentNotifications(limit int) ([]model.Notification, error) {
	var result []model.Notification
	err := c.call("RecentNotifications", map[string]interface{}{"Limit": limit}, &result)
	return result, err
}
