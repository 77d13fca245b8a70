package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/scoreveda/scoreveda-backend/internal/attempt"
	"github.com/scoreveda/scoreveda-backend/internal/config"
	"github.com/scoreveda/scoreveda-backend/internal/middleware"
	ws "github.com/scoreveda/scoreveda-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
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

// WSHandler streams attempt events over a WebSocket. All mutations go
// through the attempt engine, so a second connection for the same attempt
// sees the same state machine.
type WSHandler struct {
	engine   *attempt.Engine
	rdb      *redis.Client
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(engine *attempt.Engine, rdb *redis.Client, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		engine:   engine,
		rdb:      rdb,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/student/exams/:exam_id/attempt
// Upgrades to WebSocket for live answer saving, proctoring events, and
// submission.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	userID := claims.UserID

	a, err := h.engine.Load(c.Request.Context(), examID, userID, c.Request.UserAgent())
	if err != nil {
		if errors.Is(err, attempt.ErrAlreadyAttempted) {
			ws.WriteError(conn, "exam already attempted")
		} else {
			ws.WriteError(conn, "failed to load attempt")
		}
		return
	}

	wsLog := h.log.With().
		Int("user_id", userID).
		Str("exam_id", examID.String()).
		Logger()
	wsLog.Info().Msg("Student connected")

	// Initial snapshot so the client can render without a REST round trip.
	if err := ws.WriteTyped(conn, ws.AttemptResponse{Event: ws.EventAttempt, Attempt: a.Overview()}); err != nil {
		return
	}

	for {
		ws.RefreshReadDeadline(conn)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			ws.WriteError(conn, "malformed message")
			continue
		}

		switch envelope.Action {
		case ws.ActionAnswer:
			h.handleAnswer(conn, wsLog, a, raw)
		case ws.ActionReview:
			h.handleReview(conn, a, raw)
		case ws.ActionVisit:
			h.handleVisit(conn, a, raw)
		case ws.ActionViolation:
			h.handleViolation(conn, wsLog, a, raw)
		case ws.ActionSubmit:
			h.handleSubmit(conn, wsLog, a, raw)
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong, RemainingSeconds: a.RemainingSeconds()})
		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(envelope.Action))
		}
	}
}

func (h *WSHandler) handleAnswer(conn *websocket.Conn, wsLog zerolog.Logger, a *attempt.Attempt, raw []byte) {
	var req ws.AnswerRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.Question < 0 {
		ws.WriteError(conn, "invalid answer payload")
		return
	}

	ctx := context.Background()
	if err := a.SaveAnswer(ctx, req.Question, req.Answer); err != nil {
		if errors.Is(err, attempt.ErrNotActive) {
			ws.WriteTyped(conn, ws.TerminatedResponse{Event: ws.EventTerminated})
			return
		}
		wsLog.Error().Err(err).Int("question", req.Question).Msg("Answer save failed")
		ws.WriteError(conn, "save failed")
		return
	}

	h.queuePersist(ctx, config.WorkerKey.PersistAnswersQueue, map[string]interface{}{
		"user_id":  a.UserID(),
		"exam_id":  a.ExamID().String(),
		"question": req.Question,
		"answer":   req.Answer,
	})

	ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, Action: ws.ActionAnswer, Question: req.Question})
}

func (h *WSHandler) handleReview(conn *websocket.Conn, a *attempt.Attempt, raw []byte) {
	var req ws.ReviewRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.Question < 0 {
		ws.WriteError(conn, "invalid review payload")
		return
	}

	marked, err := a.ToggleReview(context.Background(), req.Question)
	if err != nil {
		if errors.Is(err, attempt.ErrNotActive) {
			ws.WriteTyped(conn, ws.TerminatedResponse{Event: ws.EventTerminated})
			return
		}
		ws.WriteError(conn, "save failed")
		return
	}

	ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, Action: ws.ActionReview, Question: req.Question, Marked: marked})
}

func (h *WSHandler) handleVisit(conn *websocket.Conn, a *attempt.Attempt, raw []byte) {
	var req ws.VisitRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.Question < 0 {
		ws.WriteError(conn, "invalid visit payload")
		return
	}

	if err := a.Visit(context.Background(), req.Question); err != nil {
		if errors.Is(err, attempt.ErrNotActive) {
			ws.WriteTyped(conn, ws.TerminatedResponse{Event: ws.EventTerminated})
			return
		}
		ws.WriteError(conn, "save failed")
		return
	}

	ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, Action: ws.ActionVisit, Question: req.Question})
}

func (h *WSHandler) handleViolation(conn *websocket.Conn, wsLog zerolog.Logger, a *attempt.Attempt, raw []byte) {
	var req ws.ViolationRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.Kind == "" {
		ws.WriteError(conn, "invalid violation payload")
		return
	}

	ctx := context.Background()
	verdict, outcome, err := a.RecordViolation(ctx, req.Kind)
	if err != nil {
		if errors.Is(err, attempt.ErrNotActive) {
			ws.WriteTyped(conn, ws.TerminatedResponse{Event: ws.EventTerminated})
			return
		}
		wsLog.Error().Err(err).Str("kind", string(req.Kind)).Msg("Violation record failed")
		ws.WriteError(conn, "save failed")
		return
	}

	if !verdict.Exempt {
		h.queuePersist(ctx, config.WorkerKey.PersistViolationsQueue, map[string]interface{}{
			"user_id": a.UserID(),
			"exam_id": a.ExamID().String(),
			"kind":    verdict.Kind,
			"count":   verdict.Count,
		})
	}

	if outcome != nil {
		wsLog.Info().
			Str("kind", string(req.Kind)).
			Int("total", verdict.Total).
			Msg("Violation threshold reached, attempt terminated")
		ws.WriteTyped(conn, ws.TerminatedResponse{Event: ws.EventTerminated, Reason: attempt.ReasonCheat, Result: outcome.Result})
		return
	}

	ws.WriteTyped(conn, ws.WarningResponse{Event: ws.EventWarning, Verdict: verdict})
}

func (h *WSHandler) handleSubmit(conn *websocket.Conn, wsLog zerolog.Logger, a *attempt.Attempt, raw []byte) {
	var req ws.SubmitRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		ws.WriteError(conn, "invalid submit payload")
		return
	}

	a.MergeAnswers(req.Answers)
	out := a.Submit(context.Background(), attempt.ReasonManual)
	if out.Dropped {
		ws.WriteTyped(conn, ws.TerminatedResponse{Event: ws.EventTerminated})
		return
	}
	if out.Err != nil {
		wsLog.Error().Err(out.Err).Msg("Manual submission failed")
		ws.WriteError(conn, "submission failed, please retry")
		return
	}

	wsLog.Info().Float64("score", out.Result.Score).Msg("Exam submitted")
	ws.WriteTyped(conn, ws.GradedResponse{Event: ws.EventGraded, Result: out.Result})
}

// queuePersist hands a payload to the background persistence workers.
// Queue failures are logged, never surfaced: Redis already holds the
// authoritative attempt state.
func (h *WSHandler) queuePersist(ctx context.Context, queue string, payload map[string]interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := h.rdb.RPush(ctx, queue, data).Err(); err != nil {
		h.log.Warn().Err(err).Str("queue", queue).Msg("Failed to queue persistence job")
	}
}
