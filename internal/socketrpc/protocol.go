package socketrpc

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// JSON-RPC 2.0 Method Reference
//
// The socket RPC server exposes model.RunnerController over a Unix domain
// socket so a second process can drive the running deck.
//
//   Method    Params    Result
//   ──────    ──────    ─────────────────────────────
//   Pause     (none)    RunnerStatus after the command
//   Resume    (none)    RunnerStatus after the command
//   Stop      (none)    RunnerStatus after the command
//   Status    (none)    RunnerStatus
//
// Commands are delivered asynchronously, so the status returned by Pause,
// Resume and Stop may not reflect the command yet.
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32602  Invalid params
//   -32603  Internal error (marshal failure)
//   -32000  Application error (command rejected)

// Error codes.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeAppError       = -32000
)

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
// It prefers $XDG_RUNTIME_DIR/cardpop/cardpop.sock, falling back to
// ~/.local/state/cardpop/cardpop.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "cardpop", "cardpop.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/cardpop.sock"
	}
	return filepath.Join(home, ".local", "state", "cardpop", "cardpop.sock")
}
