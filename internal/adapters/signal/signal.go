package signal

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/app"
	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/core"
	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// Close codes for connection-level failures. Auth and rate-limit rejections
// close the socket instead of sending an envelope: the connection was never
// fully established.
const (
	CloseReplaced    = 4000
	CloseAuthFailed  = 4001
	CloseRateLimited = 4029
)

const writeWait = 5 * time.Second

// SignalController accepts websocket connections, authenticates them and runs
// the message loop. One instance serves all connections.
type SignalController struct {
	Coord    *app.Coordinator
	Verifier core.TokenVerifier
	Limiter  *ConnectRateLimiter

	ReadLimit        int64
	HeartbeatPeriod  time.Duration
	HeartbeatTimeout time.Duration
	// FailOpen admits connections with guest claims when the identity
	// collaborator errors. Off by default; enabling it trades access control
	// for availability and is only meant for trusted-caller deployments.
	FailOpen bool

	validate *validator.Validate
}

func NewSignalController(coord *app.Coordinator, verifier core.TokenVerifier, limiter *ConnectRateLimiter, readLimit int64, heartbeatPeriod, heartbeatTimeout time.Duration, failOpen bool) *SignalController {
	return &SignalController{
		Coord:            coord,
		Verifier:         verifier,
		Limiter:          limiter,
		ReadLimit:        readLimit,
		HeartbeatPeriod:  heartbeatPeriod,
		HeartbeatTimeout: heartbeatTimeout,
		FailOpen:         failOpen,
		validate:         validator.New(),
	}
}

// wsSignalConn wraps a websocket with a buffered outbound channel.
// The write pump is the only goroutine writing data frames.
type wsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *wsSignalConn) CloseWithStatus(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.Close()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// bearerCredential extracts the token from the Authorization header, falling
// back to the `token` query parameter for clients that cannot set headers.
func bearerCredential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// HandleSignal upgrades the request, authenticates the connection, enforces
// the per-identity connect rate limit and single-active-connection rule, then
// runs the pumps until the connection dies.
func (ctl *SignalController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	conn := &wsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	credential := bearerCredential(c.Request)
	if credential == "" {
		log.Warn().Str("module", "signal").Msg("connection without credential")
		conn.CloseWithStatus(CloseAuthFailed, "AuthTokenMissing")
		return
	}

	claims, err := ctl.Verifier.Verify(ctx, credential)
	if err != nil {
		if !ctl.FailOpen {
			log.Warn().Err(err).Str("module", "signal").Msg("credential rejected")
			conn.CloseWithStatus(CloseAuthFailed, domain.CodeOf(err))
			return
		}
		claims = domain.Claims{UserID: domain.UserID(uuid.NewString()), DisplayName: "guest"}
		log.Warn().Err(err).Str("module", "signal").Str("user", string(claims.UserID)).Msg("verifier failed, admitting guest (fail-open)")
	}

	if !ctl.Limiter.Allow(claims.UserID) {
		log.Warn().Str("module", "signal").Str("user", string(claims.UserID)).Msg("connect rate limit exceeded")
		conn.CloseWithStatus(CloseRateLimited, "RateLimitExceeded")
		return
	}

	connID := domain.ConnectionID(uuid.NewString())
	prev, replaced := ctl.Coord.Registry.Register(connID, claims, conn)
	if replaced {
		// Graceful replacement, not an error: the old connection leaves its
		// room and is told why it is going away.
		log.Info().Str("module", "signal").Str("user", string(claims.UserID)).
			Str("old_conn", string(prev.ID)).Str("new_conn", string(connID)).Msg("replacing live connection")
		ctl.Coord.Disconnect(prev.ID)
		prev.Conn.CloseWithStatus(CloseReplaced, "superseded by newer connection")
	}

	log.Info().Str("module", "signal").Str("conn", string(connID)).
		Str("user", string(claims.UserID)).Msg("connection established")

	ctl.sendJSON(conn, response{Type: "connected", Data: map[string]any{
		"connectionId": connID,
		"user":         claims,
	}})

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go ctl.writePump(connCtx, conn)
	ctl.readPump(connCtx, connID, conn)
}
