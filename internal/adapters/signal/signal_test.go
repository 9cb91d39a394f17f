package signal

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/domain"
)

type staticVerifier struct {
	claims domain.Claims
}

func (v staticVerifier) Verify(ctx context.Context, credential string) (domain.Claims, error) {
	return v.claims, nil
}

func newSignalServer(t *testing.T, ctl *SignalController) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctl.HandleSignal(c.Request.Context(), c) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestConnectionReplacement(t *testing.T) {
	ctl := newTestController(t)
	ctl.Verifier = staticVerifier{claims: domain.Claims{UserID: "user-1", DisplayName: "Alice"}}
	wsURL := newSignalServer(t, ctl) + "?token=any"

	first, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer first.Close()

	var welcome map[string]any
	require.NoError(t, first.ReadJSON(&welcome))
	require.Equal(t, "connected", welcome["type"])

	second, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.ReadJSON(&welcome))
	assert.Equal(t, "connected", welcome["type"])
	secondID := welcome["data"].(map[string]any)["connectionId"].(string)

	// The displaced socket is told why it went away.
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = first.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, CloseReplaced, closeErr.Code)

	// Exactly one live entry remains for the identity, the newer one.
	assert.Equal(t, 1, ctl.Coord.Registry.CountForUser("user-1"))
	snap, ok := ctl.Coord.Registry.Get(domain.ConnectionID(secondID))
	require.True(t, ok)
	assert.Equal(t, domain.UserID("user-1"), snap.Claims.UserID)
}

func TestMissingCredentialClosesSocket(t *testing.T) {
	ctl := newTestController(t)
	ctl.Verifier = staticVerifier{claims: domain.Claims{UserID: "user-1"}}
	wsURL := newSignalServer(t, ctl)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, CloseAuthFailed, closeErr.Code)
}
