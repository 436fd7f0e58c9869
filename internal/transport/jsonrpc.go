package transport

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rpggio/packetd/internal/mcp"
)

const maxCommandBytes = 64 << 10

// JSON-RPC 2.0 error codes returned by /v1/commands.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeUnknownCommand = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
	// CodeCommandFailed carries a coded mcp.APIError in Data.
	CodeCommandFailed = -32000
)

// ErrInvalidCommand indicates an envelope without version or method.
var ErrInvalidCommand = errors.New("invalid command envelope")

// CommandRequest is one command call. Method accepts the chat form
// ("/stats") as well as the bare name.
type CommandRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

type commandResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	Result  any           `json:"result,omitempty"`
	Error   *commandError `json:"error,omitempty"`
	ID      any           `json:"id,omitempty"`
}

type commandError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// DecodeCommand reads a command envelope and normalizes its method name.
func DecodeCommand(body io.Reader) (CommandRequest, error) {
	var req CommandRequest
	if err := json.NewDecoder(io.LimitReader(body, maxCommandBytes)).Decode(&req); err != nil {
		return CommandRequest{}, fmt.Errorf("decode command: %w", err)
	}
	req.Method = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(req.Method), "/"))
	if req.JSONRPC != "2.0" || req.Method == "" {
		return CommandRequest{}, ErrInvalidCommand
	}
	return req, nil
}

// commandErrorCode picks the JSON-RPC code for a coded command error.
func commandErrorCode(apiErr *mcp.APIError) int {
	switch apiErr.Code {
	case "UNKNOWN_METHOD":
		return CodeUnknownCommand
	case "INVALID_PARAMS":
		return CodeInvalidParams
	case "NO_CALLER":
		return CodeInvalidRequest
	default:
		return CodeCommandFailed
	}
}

func writeCommandResult(w http.ResponseWriter, id, result any) {
	writeCommand(w, commandResponse{JSONRPC: "2.0", Result: result, ID: id})
}

func writeCommandError(w http.ResponseWriter, id any, code int, message string, data any) {
	writeCommand(w, commandResponse{
		JSONRPC: "2.0",
		Error:   &commandError{Code: code, Message: message, Data: data},
		ID:      id,
	})
}

// Command errors travel in the body; the status is always 200.
func writeCommand(w http.ResponseWriter, resp commandResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
