package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/domain"
)

// Envelope is the bidirectional wire frame. requestId, when present, is
// echoed verbatim and is the only correlation mechanism: responses are not
// guaranteed to arrive in request order across concurrent requests.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
}

type response struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type errorBody struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type errorEnvelope struct {
	Type      string    `json:"type"`
	Error     string    `json:"error"`
	Data      errorBody `json:"data"`
	RequestID string    `json:"requestId,omitempty"`
}

// dispatch parses one inbound envelope and routes it to its handler.
// Malformed input gets an error envelope, never a closed connection.
func (ctl *SignalController) dispatch(ctx context.Context, connID domain.ConnectionID, conn *wsSignalConn, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("malformed envelope")
		ctl.sendErrorCode(conn, "", "INVALID_MESSAGE", "malformed JSON envelope", nil)
		return
	}

	var (
		result any
		err    error
	)
	switch env.Type {
	case "ping":
		ctl.handlePing(connID, conn, env)
		return
	case "createRoom":
		result, err = ctl.handleCreateRoom(ctx, connID, env)
	case "joinRoom":
		result, err = ctl.handleJoinRoom(ctx, connID, env)
	case "leaveRoom":
		result, err = ctl.handleLeaveRoom(connID)
	case "getRouterRtpCapabilities":
		result, err = ctl.handleRouterCapabilities(connID)
	case "createWebRtcTransport":
		result, err = ctl.handleCreateTransport(ctx, connID, env)
	case "connectWebRtcTransport":
		result, err = ctl.handleConnectTransport(ctx, connID, env)
	case "restartIce":
		result, err = ctl.handleRestartICE(ctx, connID, env)
	case "publish":
		result, err = ctl.handlePublish(ctx, connID, env)
	case "unpublish":
		result, err = ctl.handleUnpublish(connID, env)
	case "subscribe":
		result, err = ctl.handleSubscribe(ctx, connID, env)
	case "unsubscribe":
		result, err = ctl.handleUnsubscribe(connID, env)
	case "pause":
		result, err = ctl.handleSetConsumerPaused(ctx, connID, env, true)
	case "resume":
		result, err = ctl.handleSetConsumerPaused(ctx, connID, env, false)
	case "pauseProducer":
		result, err = ctl.handleSetProducerPaused(ctx, connID, env, true)
	case "resumeProducer":
		result, err = ctl.handleSetProducerPaused(ctx, connID, env, false)
	case "setPreferredLayers":
		result, err = ctl.handleSetPreferredLayers(ctx, connID, env)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown message type")
		ctl.sendErrorCode(conn, env.RequestID, "INVALID_MESSAGE", "unknown message type: "+env.Type, nil)
		return
	}

	if err != nil {
		ctl.sendError(conn, env.RequestID, err)
		return
	}
	ctl.sendJSON(conn, response{Type: env.Type + "Response", Data: result, RequestID: env.RequestID})
}

// decode unmarshals the data payload into out and validates its shape.
func (ctl *SignalController) decode(env Envelope, out any) error {
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return validationError{field: "data", reason: "invalid payload"}
		}
	}
	if err := ctl.validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return validationError{field: verrs[0].Field(), reason: "failed on '" + verrs[0].Tag() + "'"}
		}
		return validationError{field: "data", reason: err.Error()}
	}
	return nil
}

type validationError struct {
	field  string
	reason string
}

func (e validationError) Error() string { return "validation failed: " + e.field + " " + e.reason }

func (ctl *SignalController) sendError(conn *wsSignalConn, requestID string, err error) {
	var verr validationError
	if errors.As(err, &verr) {
		ctl.sendErrorCode(conn, requestID, "VALIDATION_ERROR", verr.Error(), map[string]any{"field": verr.field})
		return
	}
	ctl.sendErrorCode(conn, requestID, domain.CodeOf(err), err.Error(), nil)
}

func (ctl *SignalController) sendErrorCode(conn *wsSignalConn, requestID, code, message string, details any) {
	ctl.sendJSON(conn, errorEnvelope{
		Type:  "error",
		Error: code,
		Data: errorBody{
			Code:      code,
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC(),
		},
		RequestID: requestID,
	})
}

func (ctl *SignalController) sendJSON(conn *wsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := conn.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("sendJSON dropped")
	}
}
