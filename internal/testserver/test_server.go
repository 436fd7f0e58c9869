package testserver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/packetd/internal/aggregator"
	"github.com/rpggio/packetd/internal/config"
	"github.com/rpggio/packetd/internal/domain/packet"
	"github.com/rpggio/packetd/internal/mcp"
	"github.com/rpggio/packetd/internal/notify"
	"github.com/rpggio/packetd/internal/sqlite"
	"github.com/rpggio/packetd/internal/transport"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	// Idle is the idle threshold the test server windows packets with.
	Idle = 200 * time.Millisecond
	// Sweep is the test server's sweeper tick.
	Sweep = 20 * time.Millisecond
)

// Recorder is a Deliverer that keeps every delivery in memory.
type Recorder struct {
	mu         sync.Mutex
	deliveries []notify.Delivery
}

func (r *Recorder) Deliver(_ context.Context, d notify.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, d)
	return nil
}

// Deliveries returns a copy of the deliveries of kind for userID.
func (r *Recorder) Deliveries(userID int64, kind string) []notify.Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Delivery
	for _, d := range r.deliveries {
		if d.UserID == userID && d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

type TestServer struct {
	Server     *httptest.Server
	DB         *sqlite.DB
	Token      string
	Deliveries *Recorder
	Aggregator *aggregator.Aggregator
}

// New starts the full stack on a shared in-memory database. The listed
// user ids are admins.
func New(t *testing.T, token string, admins ...int64) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	logger := zerolog.Nop()
	packets := sqlite.NewPacketRepository(db)
	users := sqlite.NewUserRepository(db)
	recorder := &Recorder{}

	notifier := notify.NewNotifier(packets, recorder, logger)
	agg := aggregator.New(packets, notifier, aggregator.Config{
		IdleThreshold:       Idle,
		SweepInterval:       Sweep,
		MaxConcurrentCloses: 4,
	}, logger)

	packetSvc := packet.NewService(packets, users, logger)
	handler := mcp.NewHandler(mcp.Services{
		Packets:  packetSvc,
		Sessions: agg,
		Content:  notifier,
		Admins:   config.AdminConfig{IDs: admins},
	}, Idle, logger)
	mcpServer := mcp.NewServer(mcp.Config{Handler: handler, Version: "test", Idle: Idle, Logger: logger})

	server := httptest.NewServer(transport.NewServer(transport.Deps{
		Ingestor: agg,
		Users:    packetSvc,
		Commands: handler,
		MCP: sdkmcp.NewStreamableHTTPHandler(
			func(*http.Request) *sdkmcp.Server { return mcpServer }, nil,
		),
		AuthToken: token,
		Logger:    logger,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- agg.Run(ctx) }()

	t.Cleanup(func() {
		server.Close()
		cancel()
		<-done
		_ = db.Close()
	})

	return &TestServer{
		Server:     server,
		DB:         db,
		Token:      token,
		Deliveries: recorder,
		Aggregator: agg,
	}
}

func (ts *TestServer) do(t *testing.T, path string, body []byte, callerID int64) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if ts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+ts.Token)
	}
	if callerID != 0 {
		req.Header.Set(mcp.CallerHeader, fmt.Sprint(callerID))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// Forward posts a message forwarded by userID from sender and returns the
// packet it was filed into.
func (ts *TestServer) Forward(t *testing.T, userID int64, username, sender, text string) int64 {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"from":         map[string]any{"id": userID, "username": username},
		"date":         time.Now().Unix(),
		"text":         text,
		"forward_from": map[string]any{"id": userID + 1000, "first_name": sender},
	})
	require.NoError(t, err)

	resp := ts.do(t, "/v1/events", body, 0)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode, "event rejected: %s", raw)

	var out transport.EventResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	require.NotZero(t, out.PacketID)
	return out.PacketID
}

// RPCError is a JSON-RPC error returned by /v1/commands.
type RPCError struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Command runs method for callerID over /v1/commands and decodes the result
// into out. A JSON-RPC error is returned instead of failing the test.
func (ts *TestServer) Command(t *testing.T, callerID int64, method string, params, out any) *RPCError {
	t.Helper()
	payload := map[string]any{"jsonrpc": "2.0", "method": method, "id": 1}
	if params != nil {
		payload["params"] = params
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp := ts.do(t, "/v1/commands", body, callerID)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rpc struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpc))
	if rpc.Error != nil {
		return rpc.Error
	}
	if out != nil {
		require.NoError(t, json.Unmarshal(rpc.Result, out))
	}
	return nil
}
