package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rpggio/packetd/internal/aggregator"
	"github.com/rpggio/packetd/internal/domain/packet"
	"github.com/rpggio/packetd/internal/domain/session"
	"github.com/rpggio/packetd/internal/inbound"
	"github.com/rpggio/packetd/internal/mcp"
	"github.com/rs/zerolog"
)

const maxEventBytes = 1 << 20

// Ingestor files decoded messages into packets.
type Ingestor interface {
	Ingest(ctx context.Context, userID int64, eventTime time.Time, draft packet.Draft) (int64, error)
}

// UserRegistrar records ingesting users.
type UserRegistrar interface {
	RegisterUser(ctx context.Context, userID int64, username string) error
}

// CommandHandler handles command dispatch.
type CommandHandler interface {
	Handle(ctx context.Context, callerID int64, method string, params json.RawMessage) (any, error)
}

// StreamServer serves a user's delivery stream.
type StreamServer interface {
	Serve(w http.ResponseWriter, r *http.Request, userID int64)
}

// Deps holds the collaborators routed by the server. Streams and MCP are
// optional.
type Deps struct {
	Ingestor  Ingestor
	Users     UserRegistrar
	Commands  CommandHandler
	Streams   StreamServer
	MCP       http.Handler
	AuthToken string
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Server wires HTTP handlers.
type Server struct {
	ingestor Ingestor
	users    UserRegistrar
	commands CommandHandler
	streams  StreamServer
	logger   zerolog.Logger
	now      func() time.Time
}

// NewServer creates an HTTP server router with middleware.
func NewServer(deps Deps) *chi.Mux {
	srv := &Server{
		ingestor: deps.Ingestor,
		users:    deps.Users,
		commands: deps.Commands,
		streams:  deps.Streams,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	if srv.now == nil {
		srv.now = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(deps.AuthToken))
		r.Use(CallerMiddleware)

		r.Post("/v1/events", srv.handleEvent)
		r.Post("/v1/commands", srv.handleCommand)
		if srv.streams != nil {
			r.Get("/v1/users/{userID}/stream", srv.handleStream)
		}
		if deps.MCP != nil {
			r.Handle("/mcp", deps.MCP)
			r.Handle("/mcp/*", deps.MCP)
		}
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// EventResponse is returned for an accepted event.
type EventResponse struct {
	PacketID int64  `json:"packet_id,omitempty"`
	Ignored  bool   `json:"ignored,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	receivedAt := s.now()

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes))
	if err != nil {
		writeEvent(w, http.StatusBadRequest, EventResponse{Error: "unreadable body"})
		return
	}

	ev, err := inbound.Decode(raw, receivedAt)
	if err != nil {
		writeEvent(w, http.StatusBadRequest, EventResponse{Error: err.Error()})
		return
	}
	if ev.Ignored {
		writeEvent(w, http.StatusAccepted, EventResponse{Ignored: true, Reason: ev.Reason})
		return
	}

	if err := s.users.RegisterUser(r.Context(), ev.UserID, ev.Username); err != nil {
		s.logger.Error().Err(err).Int64("user_id", ev.UserID).Msg("failed to register user")
		writeEvent(w, http.StatusServiceUnavailable, EventResponse{Error: "store unavailable"})
		return
	}

	packetID, err := s.ingestor.Ingest(r.Context(), ev.UserID, ev.Time, ev.Draft)
	if err != nil {
		switch {
		case errors.Is(err, aggregator.ErrStore):
			s.logger.Error().Err(err).Int64("user_id", ev.UserID).Msg("ingest failed")
			writeEvent(w, http.StatusServiceUnavailable, EventResponse{Error: "store unavailable"})
		case errors.Is(err, session.ErrInvalidUser):
			writeEvent(w, http.StatusBadRequest, EventResponse{Error: err.Error()})
		default:
			s.logger.Error().Err(err).Int64("user_id", ev.UserID).Msg("ingest failed")
			writeEvent(w, http.StatusInternalServerError, EventResponse{Error: "internal error"})
		}
		return
	}

	writeEvent(w, http.StatusOK, EventResponse{PacketID: packetID})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	req, err := DecodeCommand(r.Body)
	if err != nil {
		code := CodeInvalidRequest
		if !errors.Is(err, ErrInvalidCommand) {
			code = CodeParseError
		}
		writeCommandError(w, nil, code, err.Error(), nil)
		return
	}

	callerID, ok := mcp.CallerIDFromContext(r.Context())
	if !ok {
		apiErr := mcp.MapError(mcp.ErrNoCaller)
		writeCommandError(w, req.ID, commandErrorCode(apiErr), "missing "+mcp.CallerHeader, apiErr)
		return
	}

	result, err := s.commands.Handle(r.Context(), callerID, req.Method, req.Params)
	if err != nil {
		var apiErr *mcp.APIError
		if !errors.As(err, &apiErr) {
			s.logger.Error().Err(err).Str("method", req.Method).Int64("user_id", callerID).Msg("command failed")
			writeCommandError(w, req.ID, CodeInternal, "internal error", nil)
			return
		}
		writeCommandError(w, req.ID, commandErrorCode(apiErr), apiErr.Message, apiErr)
		return
	}

	writeCommandResult(w, req.ID, result)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID == 0 {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	s.streams.Serve(w, r, userID)
}

func writeEvent(w http.ResponseWriter, status int, resp EventResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
