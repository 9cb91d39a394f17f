package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/domain"
)

// fakeEngine hands out deterministic identifiers and records every close call
// so tests can assert teardown happened exactly once per entity.
type fakeEngine struct {
	mu   sync.Mutex
	seq  int
	deny bool

	closedTransports []string
	closedProducers  []string
	closedConsumers  []string
	closedRouters    []string
}

func (f *fakeEngine) next(prefix string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeEngine) CreateRouter(ctx context.Context) (RouterHandle, error) {
	return RouterHandle{ID: f.next("router")}, nil
}

func (f *fakeEngine) CloseRouter(routerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedRouters = append(f.closedRouters, routerID)
}

func (f *fakeEngine) CreateTransport(ctx context.Context, routerID string, dir Direction) (TransportInfo, error) {
	return TransportInfo{ID: f.next("transport")}, nil
}

func (f *fakeEngine) ConnectTransport(ctx context.Context, transportID string, dtls webrtc.DTLSParameters) error {
	return nil
}

func (f *fakeEngine) RestartICE(ctx context.Context, transportID string) (webrtc.ICEParameters, error) {
	return webrtc.ICEParameters{UsernameFragment: "ufrag"}, nil
}

func (f *fakeEngine) CloseTransport(transportID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedTransports = append(f.closedTransports, transportID)
}

func (f *fakeEngine) CreateProducer(ctx context.Context, transportID string, kind domain.MediaKind, rtpParameters json.RawMessage, appData map[string]any) (ProducerInfo, error) {
	return ProducerInfo{ID: f.next("producer")}, nil
}

func (f *fakeEngine) PauseProducer(ctx context.Context, producerID string) error  { return nil }
func (f *fakeEngine) ResumeProducer(ctx context.Context, producerID string) error { return nil }

func (f *fakeEngine) CloseProducer(producerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedProducers = append(f.closedProducers, producerID)
}

func (f *fakeEngine) CanConsume(routerID, producerID string, caps webrtc.RTPCapabilities) bool {
	return !f.deny
}

func (f *fakeEngine) CreateConsumer(ctx context.Context, routerID, transportID, producerID string, caps webrtc.RTPCapabilities, appData map[string]any) (ConsumerInfo, error) {
	return ConsumerInfo{ID: f.next("consumer"), Kind: domain.KindAudio, Paused: true}, nil
}

func (f *fakeEngine) PauseConsumer(ctx context.Context, consumerID string) error  { return nil }
func (f *fakeEngine) ResumeConsumer(ctx context.Context, consumerID string) error { return nil }

func (f *fakeEngine) SetPreferredLayers(ctx context.Context, consumerID string, spatial, temporal uint8) error {
	return nil
}

func (f *fakeEngine) CloseConsumer(consumerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedConsumers = append(f.closedConsumers, consumerID)
}

func newTestStore(t *testing.T) (*Store, *fakeEngine) {
	t.Helper()
	engine := &fakeEngine{}
	return NewStore("test-instance", 100, true, engine), engine
}

func TestCreateRoomDefaults(t *testing.T) {
	store, _ := newTestStore(t)

	room, err := store.CreateRoom(context.Background(), "standup", "daily sync", 0)
	require.NoError(t, err)

	assert.NotEmpty(t, room.ID)
	assert.Equal(t, "standup", room.Name)
	assert.Equal(t, 100, room.Capacity)
	assert.True(t, room.Active)
	assert.Equal(t, "test-instance", room.Instance)
}

func TestJoinRoomAutoCreates(t *testing.T) {
	store, _ := newTestStore(t)

	p, created, err := store.JoinRoom(context.Background(), "team-abc", "user-1", "Alice", nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.RoomID("team-abc"), p.RoomID)

	room, ok := store.GetRoom("team-abc")
	require.True(t, ok)
	assert.Equal(t, "team-abc", room.Name)
	assert.True(t, room.Active)
}

func TestJoinRoomAutoCreateDisabled(t *testing.T) {
	store := NewStore("test-instance", 100, false, &fakeEngine{})

	_, _, err := store.JoinRoom(context.Background(), "nope", "user-1", "Alice", nil)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestJoinRoomCapacity(t *testing.T) {
	store := NewStore("test-instance", 2, true, &fakeEngine{})
	ctx := context.Background()

	_, _, err := store.JoinRoom(ctx, "small", "user-a", "A", nil)
	require.NoError(t, err)
	_, _, err = store.JoinRoom(ctx, "small", "user-b", "B", nil)
	require.NoError(t, err)

	_, _, err = store.JoinRoom(ctx, "small", "user-c", "C", nil)
	assert.ErrorIs(t, err, domain.ErrRoomFull)

	// A duplicate join of a present user must not hit the capacity check.
	_, created, err := store.JoinRoom(ctx, "small", "user-a", "A", nil)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestJoinRoomIdempotentRefresh(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, created, err := store.JoinRoom(ctx, "room", "user-1", "Alice", map[string]any{"mood": "old"})
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := store.JoinRoom(ctx, "room", "user-1", "Alicia", map[string]any{"mood": "new"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Alicia", second.DisplayName)
	assert.Equal(t, "new", second.Metadata["mood"])
}

func TestJoinRoomConcurrentSameUser(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	const attempts = 16
	type result struct {
		id      domain.ParticipantID
		created bool
	}
	results := make(chan result, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, created, err := store.JoinRoom(ctx, "room", "user-1", "Alice", nil)
			assert.NoError(t, err)
			results <- result{id: p.ID, created: created}
		}()
	}
	wg.Wait()
	close(results)

	createdCount := 0
	ids := make(map[domain.ParticipantID]struct{})
	for r := range results {
		if r.created {
			createdCount++
		}
		ids[r.id] = struct{}{}
	}
	assert.Equal(t, 1, createdCount)
	assert.Len(t, ids, 1)

	roster, err := store.Participants("room")
	require.NoError(t, err)
	assert.Len(t, roster, 1)
}

func TestRejoinMetadataKeepsHiddenStable(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	p, _, err := store.JoinRoom(ctx, "room", "user-1", "Alice", map[string]any{"mood": "calm"})
	require.NoError(t, err)
	require.False(t, p.Hidden)

	// A re-join cannot smuggle the participant into hiding.
	p, created, err := store.JoinRoom(ctx, "room", "user-1", "Alice",
		map[string]any{domain.HiddenMetadataKey: true})
	require.NoError(t, err)
	assert.False(t, created)
	assert.False(t, p.Hidden)
	assert.NotContains(t, p.Metadata, domain.HiddenMetadataKey)

	// And a hidden participant stays marked across metadata refreshes.
	h, _, err := store.JoinRoom(ctx, "room", "user-2", "recorder",
		map[string]any{domain.HiddenMetadataKey: true})
	require.NoError(t, err)
	require.True(t, h.Hidden)
	h, _, err = store.JoinRoom(ctx, "room", "user-2", "recorder", map[string]any{"note": "x"})
	require.NoError(t, err)
	assert.True(t, h.Hidden)
	assert.Equal(t, true, h.Metadata[domain.HiddenMetadataKey])
}

func TestJoinRoomHiddenFlag(t *testing.T) {
	store, _ := newTestStore(t)

	p, _, err := store.JoinRoom(context.Background(), "room", "bot-1", "recorder",
		map[string]any{domain.HiddenMetadataKey: true})
	require.NoError(t, err)
	assert.True(t, p.Hidden)
}

func TestLeaveRoomMarksEmptyRoomInactive(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	p, _, err := store.JoinRoom(ctx, "room", "user-1", "Alice", nil)
	require.NoError(t, err)
	require.NoError(t, store.LeaveRoom("room", p.ID))

	room, ok := store.GetRoom("room")
	require.True(t, ok)
	assert.False(t, room.Active)

	// Rejoining an inactive room reactivates it.
	_, _, err = store.JoinRoom(ctx, "room", "user-2", "Bob", nil)
	require.NoError(t, err)
	room, _ = store.GetRoom("room")
	assert.True(t, room.Active)
}

func TestCreateProducerRequiresSendTransport(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	p, _, err := store.JoinRoom(ctx, "room", "user-1", "Alice", nil)
	require.NoError(t, err)

	_, err = store.CreateProducer(ctx, "room", p.ID, domain.KindAudio, json.RawMessage(`{}`), nil)
	assert.ErrorIs(t, err, domain.ErrTransportNotFound)
}

func TestCreateProducerSetsMediaFlags(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	p, _, err := store.JoinRoom(ctx, "room", "user-1", "Alice", nil)
	require.NoError(t, err)
	_, err = store.CreateTransport(ctx, "room", p.ID, DirectionSend)
	require.NoError(t, err)

	_, err = store.CreateProducer(ctx, "room", p.ID, domain.KindAudio, json.RawMessage(`{}`), nil)
	require.NoError(t, err)
	_, err = store.CreateProducer(ctx, "room", p.ID, domain.KindVideo, json.RawMessage(`{}`),
		map[string]any{"screen": true})
	require.NoError(t, err)

	got, ok := store.Participant("room", p.ID)
	require.True(t, ok)
	assert.True(t, got.AudioEnabled)
	assert.True(t, got.ScreenShare)
	assert.False(t, got.VideoEnabled)
}

func TestTransportRecreateReplacesOld(t *testing.T) {
	store, engine := newTestStore(t)
	ctx := context.Background()

	p, _, err := store.JoinRoom(ctx, "room", "user-1", "Alice", nil)
	require.NoError(t, err)

	first, err := store.CreateTransport(ctx, "room", p.ID, DirectionSend)
	require.NoError(t, err)
	second, err := store.CreateTransport(ctx, "room", p.ID, DirectionSend)
	require.NoError(t, err)

	assert.Contains(t, engine.closedTransports, first.ID)

	// The replaced transport is no longer connectable.
	err = store.ConnectTransport(ctx, "room", p.ID, first.ID, webrtc.DTLSParameters{})
	assert.ErrorIs(t, err, domain.ErrTransportNotFound)
	err = store.ConnectTransport(ctx, "room", p.ID, second.ID, webrtc.DTLSParameters{})
	assert.NoError(t, err)
}

func TestCreateConsumerChecksCapabilities(t *testing.T) {
	engine := &fakeEngine{deny: true}
	store := NewStore("test-instance", 100, true, engine)
	ctx := context.Background()

	alice, _, err := store.JoinRoom(ctx, "room", "user-a", "Alice", nil)
	require.NoError(t, err)
	bob, _, err := store.JoinRoom(ctx, "room", "user-b", "Bob", nil)
	require.NoError(t, err)

	_, err = store.CreateTransport(ctx, "room", alice.ID, DirectionSend)
	require.NoError(t, err)
	prod, err := store.CreateProducer(ctx, "room", alice.ID, domain.KindAudio, json.RawMessage(`{}`), nil)
	require.NoError(t, err)

	_, err = store.CreateTransport(ctx, "room", bob.ID, DirectionRecv)
	require.NoError(t, err)
	_, err = store.CreateConsumer(ctx, "room", bob.ID, prod.ID, webrtc.RTPCapabilities{}, nil)
	assert.ErrorIs(t, err, domain.ErrConsumerCapabilitiesInvalid)
}

func TestCreateConsumerUnknownProducer(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	bob, _, err := store.JoinRoom(ctx, "room", "user-b", "Bob", nil)
	require.NoError(t, err)
	_, err = store.CreateTransport(ctx, "room", bob.ID, DirectionRecv)
	require.NoError(t, err)

	_, err = store.CreateConsumer(ctx, "room", bob.ID, "missing", webrtc.RTPCapabilities{}, nil)
	assert.ErrorIs(t, err, domain.ErrProducerNotFound)
}

func TestCreateConsumerMergesAppData(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	alice, _, err := store.JoinRoom(ctx, "room", "user-a", "Alice", nil)
	require.NoError(t, err)
	bob, _, err := store.JoinRoom(ctx, "room", "user-b", "Bob", nil)
	require.NoError(t, err)

	_, err = store.CreateTransport(ctx, "room", alice.ID, DirectionSend)
	require.NoError(t, err)
	prod, err := store.CreateProducer(ctx, "room", alice.ID, domain.KindVideo, json.RawMessage(`{}`),
		map[string]any{"screen": true, "source": "producer"})
	require.NoError(t, err)

	_, err = store.CreateTransport(ctx, "room", bob.ID, DirectionRecv)
	require.NoError(t, err)
	cons, err := store.CreateConsumer(ctx, "room", bob.ID, prod.ID, webrtc.RTPCapabilities{},
		map[string]any{"source": "consumer"})
	require.NoError(t, err)

	assert.Equal(t, true, cons.AppData["screen"])
	assert.Equal(t, "consumer", cons.AppData["source"])
	assert.True(t, cons.Paused)
}

func TestRemoveProducerCascadesPeerConsumers(t *testing.T) {
	store, engine := newTestStore(t)
	ctx := context.Background()

	alice, _, err := store.JoinRoom(ctx, "room", "user-a", "Alice", nil)
	require.NoError(t, err)
	bob, _, err := store.JoinRoom(ctx, "room", "user-b", "Bob", nil)
	require.NoError(t, err)

	_, err = store.CreateTransport(ctx, "room", alice.ID, DirectionSend)
	require.NoError(t, err)
	prod, err := store.CreateProducer(ctx, "room", alice.ID, domain.KindAudio, json.RawMessage(`{}`), nil)
	require.NoError(t, err)

	_, err = store.CreateTransport(ctx, "room", bob.ID, DirectionRecv)
	require.NoError(t, err)
	cons, err := store.CreateConsumer(ctx, "room", bob.ID, prod.ID, webrtc.RTPCapabilities{}, nil)
	require.NoError(t, err)

	require.NoError(t, store.RemoveProducer("room", alice.ID, prod.ID))

	assert.Equal(t, []string{string(cons.ID)}, engine.closedConsumers)
	assert.Equal(t, []string{string(prod.ID)}, engine.closedProducers)

	// Bob's consumer is gone from the store too.
	err = store.RemoveConsumer("room", bob.ID, cons.ID)
	assert.ErrorIs(t, err, domain.ErrConsumerNotFound)

	got, _ := store.Participant("room", alice.ID)
	assert.False(t, got.AudioEnabled)
}

func TestLeaveRoomTearsDownMedia(t *testing.T) {
	store, engine := newTestStore(t)
	ctx := context.Background()

	alice, _, err := store.JoinRoom(ctx, "room", "user-a", "Alice", nil)
	require.NoError(t, err)
	bob, _, err := store.JoinRoom(ctx, "room", "user-b", "Bob", nil)
	require.NoError(t, err)

	sendT, err := store.CreateTransport(ctx, "room", alice.ID, DirectionSend)
	require.NoError(t, err)
	prod, err := store.CreateProducer(ctx, "room", alice.ID, domain.KindAudio, json.RawMessage(`{}`), nil)
	require.NoError(t, err)

	_, err = store.CreateTransport(ctx, "room", bob.ID, DirectionRecv)
	require.NoError(t, err)
	cons, err := store.CreateConsumer(ctx, "room", bob.ID, prod.ID, webrtc.RTPCapabilities{}, nil)
	require.NoError(t, err)

	require.NoError(t, store.LeaveRoom("room", alice.ID))

	// Exactly one close per entity Alice owned or fed.
	assert.Equal(t, []string{string(cons.ID)}, engine.closedConsumers)
	assert.Equal(t, []string{string(prod.ID)}, engine.closedProducers)
	assert.Equal(t, []string{sendT.ID}, engine.closedTransports)

	_, ok := store.Participant("room", alice.ID)
	assert.False(t, ok)

	roster, err := store.Participants("room")
	require.NoError(t, err)
	assert.Len(t, roster, 1)
}

func TestCloseReleasesRouters(t *testing.T) {
	store, engine := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateRoom(ctx, "one", "", 0)
	require.NoError(t, err)
	_, err = store.CreateRoom(ctx, "two", "", 0)
	require.NoError(t, err)

	store.Close()

	assert.ElementsMatch(t, []string{"router-1", "router-2"}, engine.closedRouters)
}

func TestRoomNameTruncated(t *testing.T) {
	store, _ := newTestStore(t)

	long := make([]byte, domain.MaxRoomNameLen+20)
	for i := range long {
		long[i] = 'x'
	}
	room, err := store.CreateRoom(context.Background(), string(long), "", 0)
	require.NoError(t, err)
	assert.Len(t, room.Name, domain.MaxRoomNameLen)
}
