// Package mediagw is the thin façade over the external media engine's HTTP
// API. It translates coordination-layer intents into engine calls and hands
// back the identifiers and capability descriptors the engine assigns.
// Transport, codec and RTP work all happen on the engine's side.
package mediagw

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/core"
	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/domain"
)

type Client struct {
	http *resty.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		http: resty.New().SetBaseURL(baseURL).SetTimeout(10 * time.Second),
	}
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Post(path)
	if err != nil {
		return fmt.Errorf("media engine %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("media engine %s: %s", path, resp.Status())
	}
	return nil
}

// closeEntity is fire-and-forget: teardown must not block or fail callers.
func (c *Client) closeEntity(path string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if resp, err := c.http.R().SetContext(ctx).Delete(path); err != nil || resp.IsError() {
		log.Warn().Err(err).Str("module", "mediagw").Str("path", path).Msg("engine close failed")
	}
}

func (c *Client) CreateRouter(ctx context.Context) (core.RouterHandle, error) {
	var out struct {
		ID              string                 `json:"id"`
		RtpCapabilities webrtc.RTPCapabilities `json:"rtpCapabilities"`
	}
	if err := c.post(ctx, "/routers", nil, &out); err != nil {
		return core.RouterHandle{}, err
	}
	return core.RouterHandle{ID: out.ID, RtpCapabilities: out.RtpCapabilities}, nil
}

func (c *Client) CloseRouter(routerID string) {
	c.closeEntity("/routers/" + routerID)
}

func (c *Client) CreateTransport(ctx context.Context, routerID string, dir core.Direction) (core.TransportInfo, error) {
	var out core.TransportInfo
	body := map[string]any{"direction": dir}
	if err := c.post(ctx, "/routers/"+routerID+"/transports", body, &out); err != nil {
		return core.TransportInfo{}, err
	}
	return out, nil
}

func (c *Client) ConnectTransport(ctx context.Context, transportID string, dtls webrtc.DTLSParameters) error {
	return c.post(ctx, "/transports/"+transportID+"/connect", map[string]any{"dtlsParameters": dtls}, nil)
}

func (c *Client) RestartICE(ctx context.Context, transportID string) (webrtc.ICEParameters, error) {
	var out struct {
		ICEParameters webrtc.ICEParameters `json:"iceParameters"`
	}
	if err := c.post(ctx, "/transports/"+transportID+"/restart-ice", nil, &out); err != nil {
		return webrtc.ICEParameters{}, err
	}
	return out.ICEParameters, nil
}

func (c *Client) CloseTransport(transportID string) {
	c.closeEntity("/transports/" + transportID)
}

func (c *Client) CreateProducer(ctx context.Context, transportID string, kind domain.MediaKind, rtpParameters json.RawMessage, appData map[string]any) (core.ProducerInfo, error) {
	var out core.ProducerInfo
	body := map[string]any{"kind": kind, "rtpParameters": rtpParameters, "appData": appData}
	if err := c.post(ctx, "/transports/"+transportID+"/producers", body, &out); err != nil {
		return core.ProducerInfo{}, err
	}
	return out, nil
}

func (c *Client) PauseProducer(ctx context.Context, producerID string) error {
	return c.post(ctx, "/producers/"+producerID+"/pause", nil, nil)
}

func (c *Client) ResumeProducer(ctx context.Context, producerID string) error {
	return c.post(ctx, "/producers/"+producerID+"/resume", nil, nil)
}

func (c *Client) CloseProducer(producerID string) {
	c.closeEntity("/producers/" + producerID)
}

func (c *Client) CanConsume(routerID, producerID string, caps webrtc.RTPCapabilities) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out struct {
		CanConsume bool `json:"canConsume"`
	}
	body := map[string]any{"producerId": producerID, "rtpCapabilities": caps}
	if err := c.post(ctx, "/routers/"+routerID+"/can-consume", body, &out); err != nil {
		log.Warn().Err(err).Str("module", "mediagw").Msg("canConsume check failed")
		return false
	}
	return out.CanConsume
}

func (c *Client) CreateConsumer(ctx context.Context, routerID, transportID, producerID string, caps webrtc.RTPCapabilities, appData map[string]any) (core.ConsumerInfo, error) {
	var out core.ConsumerInfo
	body := map[string]any{
		"transportId":     transportID,
		"producerId":      producerID,
		"rtpCapabilities": caps,
		"appData":         appData,
	}
	if err := c.post(ctx, "/routers/"+routerID+"/consumers", body, &out); err != nil {
		return core.ConsumerInfo{}, err
	}
	return out, nil
}

func (c *Client) PauseConsumer(ctx context.Context, consumerID string) error {
	return c.post(ctx, "/consumers/"+consumerID+"/pause", nil, nil)
}

func (c *Client) ResumeConsumer(ctx context.Context, consumerID string) error {
	return c.post(ctx, "/consumers/"+consumerID+"/resume", nil, nil)
}

func (c *Client) SetPreferredLayers(ctx context.Context, consumerID string, spatial, temporal uint8) error {
	body := map[string]any{"spatialLayer": spatial, "temporalLayer": temporal}
	return c.post(ctx, "/consumers/"+consumerID+"/preferred-layers", body, nil)
}

func (c *Client) CloseConsumer(consumerID string) {
	c.closeEntity("/consumers/" + consumerID)
}
