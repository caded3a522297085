package socketrpc

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// JSON-RPC 2.0 Method Reference
//
// The socket RPC server exposes model.OpsAPI over a Unix domain socket.
// Each method maps 1:1 to the OpsAPI interface.
//
//   Method                 Params          Result
//   -------------------    ------------    --------------------
//   TelemetryCount         (none)          int64
//   DeviceCount            (none)          int64
//   ListDevices            {Limit: int}    []Device
//   ListTrash              (none)          []TrashEntry
//   RestoreTrash           {ID: int64}     bool
//   RunRetentionNow        (none)          RetentionExecution
//   RecentNotifications    {Limit: int}    []Notification
//
// A Limit of zero or an omitted Limit falls back to the store default.
// RestoreTrash requires params; every other method accepts empty or null
// params gracefully.
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32602  Invalid params
//   -32603  Internal error (marshal failure)
//   -32000  Application error (store failure)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// DefaultSocketPath returns the default Unix socket path.
// It prefers $XDG_RUNTIME_DIR/sensorvision/sensorvisiond.sock, falling back
// to ~/.local/state/sensorvision/sensorvisiond.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "sensorvision", "sensorvisiond.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/sensorvisiond.sock"
	}
	return filepath.Join(home, ".local", "state", "sensorvision", "sensorvisiond.sock")
}
