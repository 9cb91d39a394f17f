package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendSignsPayload(t *testing.T) {
	secret := "hook-secret"
	var gotBody []byte
	var gotSig string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSender(srv.URL, secret)
	err := s.Send(context.Background(), "participant.joined", map[string]any{"roomId": "room-1"})
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotSig)

	var p payload
	require.NoError(t, json.Unmarshal(gotBody, &p))
	assert.Equal(t, "participant.joined", p.Event)
	assert.Equal(t, "room-1", p.Data["roomId"])
	assert.False(t, p.Timestamp.IsZero())
}

func TestSendReportsEndpointError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewSender(srv.URL, "secret")
	err := s.Send(context.Background(), "room.created", nil)
	assert.Error(t, err)
}

func TestSendNoopWithoutURL(t *testing.T) {
	s := NewSender("", "secret")
	assert.NoError(t, s.Send(context.Background(), "room.created", nil))
}
