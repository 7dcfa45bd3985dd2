package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/paperdesk/paperdesk-backend/internal/middleware"
	"github.com/paperdesk/paperdesk-backend/internal/model"
	"github.com/paperdesk/paperdesk-backend/internal/service"
	"github.com/paperdesk/paperdesk-backend/internal/session"
	ws "github.com/paperdesk/paperdesk-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

type connKey struct {
	paperCode   string
	candidateID int
}

// WSHandler handles the live attempt stream: answer capture, navigation,
// countdown resync, and the forced-submission push when the window closes.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader

	mu    sync.Mutex
	conns map[connKey]*websocket.Conn
}

// NewWSHandler creates a new WSHandler and registers itself as the
// auto-submit notifier so deadline-forced submissions reach the client.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	h := &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
		conns:          make(map[connKey]*websocket.Conn),
	}
	attemptService.SetAutoSubmitNotifier(h.notifyAutoSubmit)
	return h
}

// AttemptStream godoc
// WS /ws/v1/portal/papers/:code/stream
// Upgrades to WebSocket for real-time answer capture during an attempt.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	profile := claims.Profile()
	paperCode := c.Param("code")

	// The attempt must be live (or recoverable) before streaming.
	if _, err := h.attemptService.GetState(c.Request.Context(), profile, paperCode); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no attempt in progress for this paper"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	key := connKey{paperCode, profile.ID}
	h.register(key, conn)
	defer h.unregister(key, conn)

	wsLog := h.log.With().
		Int("candidate", profile.ID).
		Str("paper", paperCode).
		Logger()

	wsLog.Info().Msg("Candidate connected")

	for {
		ws.RefreshReadDeadline(conn)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		action := peekAction(raw)
		ctx := context.Background()

		switch action {
		case ws.ActionAnswer:
			h.handleAnswer(ctx, conn, profile, paperCode, raw)
		case ws.ActionNavigate:
			h.handleNavigate(ctx, conn, profile, paperCode, raw)
		case ws.ActionSubmit:
			h.handleSubmit(ctx, conn, wsLog, profile, paperCode)
		case ws.ActionPing:
			h.handlePing(ctx, conn, profile, paperCode)
		default:
			wsLog.Warn().Str("action", string(action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(action))
		}
	}
}

func (h *WSHandler) handleAnswer(ctx context.Context, conn *websocket.Conn, profile model.CandidateProfile, paperCode string, raw []byte) {
	var req ws.AnswerRequest
	if err := unmarshalRequest(raw, &req); err != nil {
		ws.WriteError(conn, "invalid answer payload")
		return
	}
	if req.Option == "" && req.Text == "" {
		ws.WriteError(conn, "option or text is required")
		return
	}

	if err := h.attemptService.RecordAnswer(ctx, profile, paperCode, req.Ordinal, req.Option, req.Text); err != nil {
		ws.WriteError(conn, wsErrMessage(err))
		return
	}

	ws.WriteTyped(conn, ws.AnswerResponse{Event: ws.EventSuccess, Status: "saved"})
}

func (h *WSHandler) handleNavigate(ctx context.Context, conn *websocket.Conn, profile model.CandidateProfile, paperCode string, raw []byte) {
	var req ws.NavigateRequest
	if err := unmarshalRequest(raw, &req); err != nil {
		ws.WriteError(conn, "invalid navigate payload")
		return
	}

	pos, err := h.attemptService.Navigate(ctx, profile, paperCode, req.Delta)
	if err != nil {
		ws.WriteError(conn, wsErrMessage(err))
		return
	}

	ws.WriteTyped(conn, ws.PositionResponse{Event: ws.EventPosition, Current: pos})
}

func (h *WSHandler) handleSubmit(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, profile model.CandidateProfile, paperCode string) {
	if err := h.attemptService.Submit(ctx, profile, paperCode); err != nil {
		ws.WriteError(conn, wsErrMessage(err))
		return
	}

	wsLog.Info().Msg("Attempt submitted over stream")
	ws.WriteTyped(conn, ws.SubmittedResponse{Event: ws.EventSubmitted, Forced: false})
}

func (h *WSHandler) handlePing(ctx context.Context, conn *websocket.Conn, profile model.CandidateProfile, paperCode string) {
	state, err := h.attemptService.GetState(ctx, profile, paperCode)
	if err != nil {
		ws.WriteError(conn, wsErrMessage(err))
		return
	}

	ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong, RemainingSeconds: state.RemainingSeconds})
}

// notifyAutoSubmit pushes the forced-submission event to a connected
// candidate. No-op when the candidate has no live socket.
func (h *WSHandler) notifyAutoSubmit(paperCode string, candidateID int) {
	h.mu.Lock()
	conn := h.conns[connKey{paperCode, candidateID}]
	h.mu.Unlock()

	if conn == nil {
		return
	}
	if err := ws.WriteTyped(conn, ws.SubmittedResponse{Event: ws.EventSubmitted, Forced: true}); err != nil {
		h.log.Debug().Err(err).Int("candidate", candidateID).Msg("auto-submit push failed")
	}
}

func (h *WSHandler) register(key connKey, conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[key] = conn
	h.mu.Unlock()
}

func (h *WSHandler) unregister(key connKey, conn *websocket.Conn) {
	h.mu.Lock()
	if h.conns[key] == conn {
		delete(h.conns, key)
	}
	h.mu.Unlock()
}

// peekAction extracts the action field without committing to a full parse.
func peekAction(raw []byte) ws.Action {
	var env ws.RequestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	return env.Action
}

func unmarshalRequest(raw []byte, v interface{}) error {
	return json.Unmarshal(raw, v)
}

func wsErrMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrNoActiveAttempt):
		return "no attempt in progress"
	case errors.Is(err, session.ErrInvalidState):
		return "attempt is not in progress"
	case errors.Is(err, session.ErrBadOrdinal):
		return "question ordinal out of range"
	case errors.Is(err, session.ErrStoreUnavailable):
		return "store unavailable, please retry"
	default:
		return "operation failed"
	}
}
