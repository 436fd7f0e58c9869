package transport

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rpggio/packetd/internal/mcp"
	"github.com/stretchr/testify/require"
)

func TestDecodeCommand(t *testing.T) {
	body := bytes.NewBufferString(`{"jsonrpc":"2.0","method":"get_packet","params":{"packet_id":1},"id":1}`)
	req, err := DecodeCommand(body)
	require.NoError(t, err)
	require.Equal(t, "get_packet", req.Method)
	require.Equal(t, json.RawMessage(`{"packet_id":1}`), req.Params)
}

func TestDecodeCommand_ChatForm(t *testing.T) {
	req, err := DecodeCommand(bytes.NewBufferString(`{"jsonrpc":"2.0","method":" /Stats ","id":"a"}`))
	require.NoError(t, err)
	require.Equal(t, "stats", req.Method)
}

func TestDecodeCommand_Invalid(t *testing.T) {
	cases := map[string]string{
		"no method":     `{"jsonrpc":"2.0","id":1}`,
		"slash only":    `{"jsonrpc":"2.0","method":"/","id":1}`,
		"wrong version": `{"jsonrpc":"1.0","method":"stats","id":1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCommand(bytes.NewBufferString(body))
			require.ErrorIs(t, err, ErrInvalidCommand)
		})
	}

	_, err := DecodeCommand(bytes.NewBufferString(`{"jsonrpc":`))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidCommand)

	oversized := `{"jsonrpc":"2.0","method":"stats","params":"` + strings.Repeat("x", maxCommandBytes) + `"}`
	_, err = DecodeCommand(bytes.NewBufferString(oversized))
	require.Error(t, err)
}

func TestCommandErrorCode(t *testing.T) {
	cases := map[string]int{
		"UNKNOWN_METHOD":   CodeUnknownCommand,
		"INVALID_PARAMS":   CodeInvalidParams,
		"NO_CALLER":        CodeInvalidRequest,
		"FORBIDDEN":        CodeCommandFailed,
		"PACKET_NOT_FOUND": CodeCommandFailed,
	}
	for code, want := range cases {
		require.Equal(t, want, commandErrorCode(&mcp.APIError{Code: code}), code)
	}
}

func TestWriteCommandError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeCommandError(rec, 1, CodeInvalidParams, "bad params", nil)

	require.Equal(t, 200, rec.Code)
	var resp commandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, CodeInvalidParams, resp.Error.Code)
	require.Nil(t, resp.Result)
}
