package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/domain"
)

// Store is the in-memory registry of rooms, participants, producers and
// consumers. It owns all mutation: every operation takes the store lock so
// a check (room not full, transport present) and the insert it guards cannot
// be split by another handler. Media engine calls made while an operation is
// in flight happen under the same lock; the gateway is expected to be fast
// or to enforce its own timeouts.
type Store struct {
	mu              sync.Mutex
	instance        string
	defaultCapacity int
	autoCreate      bool
	media           MediaEngine
	rooms           map[domain.RoomID]*roomState
}

type roomState struct {
	room         domain.Room
	router       RouterHandle
	participants map[domain.ParticipantID]*participantState
	byUser       map[domain.UserID]domain.ParticipantID
}

type participantState struct {
	p               domain.Participant
	sendTransportID string
	recvTransportID string
	producers       map[domain.ProducerID]*domain.Producer
	consumers       map[domain.ConsumerID]*domain.Consumer
}

func NewStore(instance string, defaultCapacity int, autoCreate bool, media MediaEngine) *Store {
	return &Store{
		instance:        instance,
		defaultCapacity: defaultCapacity,
		autoCreate:      autoCreate,
		media:           media,
		rooms:           make(map[domain.RoomID]*roomState),
	}
}

func (s *Store) CreateRoom(ctx context.Context, name, description string, capacity int) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, err := s.createRoomLocked(ctx, domain.RoomID(uuid.NewString()), name, description, capacity)
	if err != nil {
		return domain.Room{}, err
	}
	return rs.room, nil
}

func (s *Store) createRoomLocked(ctx context.Context, id domain.RoomID, name, description string, capacity int) (*roomState, error) {
	if capacity <= 0 {
		capacity = s.defaultCapacity
	}
	if len(name) > domain.MaxRoomNameLen {
		name = name[:domain.MaxRoomNameLen]
	}
	router, err := s.media.CreateRouter(ctx)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}
	now := time.Now()
	rs := &roomState{
		room: domain.Room{
			ID:          id,
			Name:        name,
			Description: description,
			Capacity:    capacity,
			Active:      true,
			Instance:    s.instance,
			RouterID:    router.ID,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		router:       router,
		participants: make(map[domain.ParticipantID]*participantState),
		byUser:       make(map[domain.UserID]domain.ParticipantID),
	}
	s.rooms[id] = rs
	log.Info().Str("module", "core.store").Str("room", string(id)).Str("router", router.ID).Msg("room created")
	return rs, nil
}

func (s *Store) GetRoom(id domain.RoomID) (domain.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.rooms[id]
	if !ok {
		return domain.Room{}, false
	}
	return rs.room, true
}

// JoinRoom inserts a participant for (roomID, userID), creating the room on
// the fly when the identifier is unknown and auto-create is enabled. Joining
// a room the user is already in refreshes displayName/metadata and returns
// the existing participant; created reports whether a new one was inserted.
func (s *Store) JoinRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID, displayName string, metadata map[string]any) (domain.Participant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, ok := s.rooms[roomID]
	if !ok {
		if !s.autoCreate {
			return domain.Participant{}, false, domain.ErrRoomNotFound
		}
		var err error
		rs, err = s.createRoomLocked(ctx, roomID, string(roomID), "", 0)
		if err != nil {
			return domain.Participant{}, false, err
		}
	}
	now := time.Now()
	if !rs.room.Active {
		rs.room.Active = true
		rs.room.UpdatedAt = now
	}

	if pid, ok := rs.byUser[userID]; ok {
		ps := rs.participants[pid]
		if displayName != "" {
			ps.p.DisplayName = displayName
		}
		if metadata != nil {
			// Hidden is fixed at first join; normalize the key so the stored
			// metadata never contradicts the flag.
			if ps.p.Hidden {
				metadata[domain.HiddenMetadataKey] = true
			} else {
				delete(metadata, domain.HiddenMetadataKey)
			}
			ps.p.Metadata = metadata
		}
		ps.p.LastSeenAt = now
		return ps.p, false, nil
	}

	if len(rs.participants) >= rs.room.Capacity {
		return domain.Participant{}, false, domain.ErrRoomFull
	}

	hidden, _ := metadata[domain.HiddenMetadataKey].(bool)
	ps := &participantState{
		p: domain.Participant{
			ID:          domain.ParticipantID(uuid.NewString()),
			UserID:      userID,
			DisplayName: displayName,
			RoomID:      roomID,
			Hidden:      hidden,
			JoinedAt:    now,
			LastSeenAt:  now,
			Metadata:    metadata,
		},
		producers: make(map[domain.ProducerID]*domain.Producer),
		consumers: make(map[domain.ConsumerID]*domain.Consumer),
	}
	rs.participants[ps.p.ID] = ps
	rs.byUser[userID] = ps.p.ID
	rs.room.UpdatedAt = now
	log.Info().Str("module", "core.store").Str("room", string(roomID)).
		Str("participant", string(ps.p.ID)).Str("user", string(userID)).Bool("hidden", hidden).
		Msg("participant joined")
	return ps.p, true, nil
}

// LeaveRoom tears down everything the participant owns (consumers, producers
// with their dependent consumers, transports) and removes it. An empty room
// is marked inactive, never deleted here.
func (s *Store) LeaveRoom(roomID domain.RoomID, participantID domain.ParticipantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ps, err := s.participantLocked(roomID, participantID)
	if err != nil {
		return err
	}

	for id := range ps.consumers {
		s.media.CloseConsumer(string(id))
		delete(ps.consumers, id)
	}
	for _, prod := range ps.producers {
		s.removeProducerLocked(rs, ps, prod)
	}
	if ps.sendTransportID != "" {
		s.media.CloseTransport(ps.sendTransportID)
	}
	if ps.recvTransportID != "" {
		s.media.CloseTransport(ps.recvTransportID)
	}

	delete(rs.participants, participantID)
	delete(rs.byUser, ps.p.UserID)
	rs.room.UpdatedAt = time.Now()
	if len(rs.participants) == 0 {
		rs.room.Active = false
		log.Info().Str("module", "core.store").Str("room", string(roomID)).Msg("room now empty, marked inactive")
	}
	log.Info().Str("module", "core.store").Str("room", string(roomID)).
		Str("participant", string(participantID)).Msg("participant left")
	return nil
}

// removeProducerLocked closes a producer and every consumer in the room that
// reads from it, regardless of owner.
func (s *Store) removeProducerLocked(rs *roomState, owner *participantState, prod *domain.Producer) {
	for _, peer := range rs.participants {
		for cid, c := range peer.consumers {
			if c.ProducerID == prod.ID {
				s.media.CloseConsumer(string(cid))
				delete(peer.consumers, cid)
			}
		}
	}
	s.media.CloseProducer(string(prod.ID))
	delete(owner.producers, prod.ID)
	switch {
	case prod.Kind == domain.KindAudio:
		owner.p.AudioEnabled = false
	case isScreenShare(prod.AppData):
		owner.p.ScreenShare = false
	default:
		owner.p.VideoEnabled = false
	}
}

func (s *Store) CreateTransport(ctx context.Context, roomID domain.RoomID, participantID domain.ParticipantID, dir Direction) (TransportInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ps, err := s.participantLocked(roomID, participantID)
	if err != nil {
		return TransportInfo{}, err
	}
	info, err := s.media.CreateTransport(ctx, rs.router.ID, dir)
	if err != nil {
		return TransportInfo{}, fmt.Errorf("create %s transport: %w", dir, err)
	}
	// At most one transport per direction; a re-create replaces the old one.
	if dir == DirectionSend {
		if ps.sendTransportID != "" {
			s.media.CloseTransport(ps.sendTransportID)
		}
		ps.sendTransportID = info.ID
	} else {
		if ps.recvTransportID != "" {
			s.media.CloseTransport(ps.recvTransportID)
		}
		ps.recvTransportID = info.ID
	}
	return info, nil
}

func (s *Store) ConnectTransport(ctx context.Context, roomID domain.RoomID, participantID domain.ParticipantID, transportID string, dtls webrtc.DTLSParameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ps, err := s.participantLocked(roomID, participantID)
	if err != nil {
		return err
	}
	if transportID != ps.sendTransportID && transportID != ps.recvTransportID {
		return domain.ErrTransportNotFound
	}
	return s.media.ConnectTransport(ctx, transportID, dtls)
}

func (s *Store) RestartICE(ctx context.Context, roomID domain.RoomID, participantID domain.ParticipantID, transportID string) (webrtc.ICEParameters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ps, err := s.participantLocked(roomID, participantID)
	if err != nil {
		return webrtc.ICEParameters{}, err
	}
	if transportID != ps.sendTransportID && transportID != ps.recvTransportID {
		return webrtc.ICEParameters{}, domain.ErrTransportNotFound
	}
	return s.media.RestartICE(ctx, transportID)
}

func (s *Store) RouterCapabilities(roomID domain.RoomID) (webrtc.RTPCapabilities, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.rooms[roomID]
	if !ok {
		return webrtc.RTPCapabilities{}, domain.ErrRoomNotFound
	}
	return rs.router.RtpCapabilities, nil
}

// CreateProducer requires the participant to already hold a send transport.
func (s *Store) CreateProducer(ctx context.Context, roomID domain.RoomID, participantID domain.ParticipantID, kind domain.MediaKind, rtpParameters json.RawMessage, appData map[string]any) (domain.Producer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ps, err := s.participantLocked(roomID, participantID)
	if err != nil {
		return domain.Producer{}, err
	}
	if ps.sendTransportID == "" {
		return domain.Producer{}, domain.ErrTransportNotFound
	}
	info, err := s.media.CreateProducer(ctx, ps.sendTransportID, kind, rtpParameters, appData)
	if err != nil {
		return domain.Producer{}, fmt.Errorf("create producer: %w", err)
	}
	prod := &domain.Producer{
		ID:            domain.ProducerID(info.ID),
		Kind:          kind,
		RtpParameters: rtpParameters,
		Paused:        info.Paused,
		ParticipantID: participantID,
		AppData:       appData,
	}
	ps.producers[prod.ID] = prod
	switch {
	case kind == domain.KindAudio:
		ps.p.AudioEnabled = true
	case isScreenShare(appData):
		ps.p.ScreenShare = true
	default:
		ps.p.VideoEnabled = true
	}
	return *prod, nil
}

func (s *Store) RemoveProducer(roomID domain.RoomID, participantID domain.ParticipantID, producerID domain.ProducerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ps, err := s.participantLocked(roomID, participantID)
	if err != nil {
		return err
	}
	prod, ok := ps.producers[producerID]
	if !ok {
		return domain.ErrProducerNotFound
	}
	s.removeProducerLocked(rs, ps, prod)
	return nil
}

// CreateConsumer requires a recv transport and a capability check against the
// target producer. AppData is inherited from the producer, caller entries on
// top. The engine creates the consumer paused; resuming is the caller's move.
func (s *Store) CreateConsumer(ctx context.Context, roomID domain.RoomID, participantID domain.ParticipantID, producerID domain.ProducerID, caps webrtc.RTPCapabilities, appData map[string]any) (domain.Consumer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ps, err := s.participantLocked(roomID, participantID)
	if err != nil {
		return domain.Consumer{}, err
	}
	if ps.recvTransportID == "" {
		return domain.Consumer{}, domain.ErrTransportNotFound
	}
	prod, ok := findProducerLocked(rs, producerID)
	if !ok {
		return domain.Consumer{}, domain.ErrProducerNotFound
	}
	if !s.media.CanConsume(rs.router.ID, string(producerID), caps) {
		return domain.Consumer{}, domain.ErrConsumerCapabilitiesInvalid
	}
	merged := make(map[string]any, len(prod.AppData)+len(appData))
	for k, v := range prod.AppData {
		merged[k] = v
	}
	for k, v := range appData {
		merged[k] = v
	}
	info, err := s.media.CreateConsumer(ctx, rs.router.ID, ps.recvTransportID, string(producerID), caps, merged)
	if err != nil {
		return domain.Consumer{}, fmt.Errorf("create consumer: %w", err)
	}
	cons := &domain.Consumer{
		ID:            domain.ConsumerID(info.ID),
		ProducerID:    producerID,
		Kind:          info.Kind,
		RtpParameters: info.RtpParameters,
		Paused:        info.Paused,
		ParticipantID: participantID,
		AppData:       merged,
	}
	ps.consumers[cons.ID] = cons
	return *cons, nil
}

func (s *Store) RemoveConsumer(roomID domain.RoomID, participantID domain.ParticipantID, consumerID domain.ConsumerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ps, err := s.participantLocked(roomID, participantID)
	if err != nil {
		return err
	}
	if _, ok := ps.consumers[consumerID]; !ok {
		return domain.ErrConsumerNotFound
	}
	s.media.CloseConsumer(string(consumerID))
	delete(ps.consumers, consumerID)
	return nil
}

func (s *Store) SetProducerPaused(ctx context.Context, roomID domain.RoomID, participantID domain.ParticipantID, producerID domain.ProducerID, paused bool) (domain.Producer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ps, err := s.participantLocked(roomID, participantID)
	if err != nil {
		return domain.Producer{}, err
	}
	prod, ok := ps.producers[producerID]
	if !ok {
		return domain.Producer{}, domain.ErrProducerNotFound
	}
	if paused {
		err = s.media.PauseProducer(ctx, string(producerID))
	} else {
		err = s.media.ResumeProducer(ctx, string(producerID))
	}
	if err != nil {
		return domain.Producer{}, fmt.Errorf("set producer paused: %w", err)
	}
	prod.Paused = paused
	return *prod, nil
}

func (s *Store) SetConsumerPaused(ctx context.Context, roomID domain.RoomID, participantID domain.ParticipantID, consumerID domain.ConsumerID, paused bool) (domain.Consumer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ps, err := s.participantLocked(roomID, participantID)
	if err != nil {
		return domain.Consumer{}, err
	}
	cons, ok := ps.consumers[consumerID]
	if !ok {
		return domain.Consumer{}, domain.ErrConsumerNotFound
	}
	if paused {
		err = s.media.PauseConsumer(ctx, string(consumerID))
	} else {
		err = s.media.ResumeConsumer(ctx, string(consumerID))
	}
	if err != nil {
		return domain.Consumer{}, fmt.Errorf("set consumer paused: %w", err)
	}
	cons.Paused = paused
	return *cons, nil
}

func (s *Store) SetPreferredLayers(ctx context.Context, roomID domain.RoomID, participantID domain.ParticipantID, consumerID domain.ConsumerID, spatial, temporal uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ps, err := s.participantLocked(roomID, participantID)
	if err != nil {
		return err
	}
	if _, ok := ps.consumers[consumerID]; !ok {
		return domain.ErrConsumerNotFound
	}
	return s.media.SetPreferredLayers(ctx, string(consumerID), spatial, temporal)
}

// Participants returns a snapshot of the room roster. Visibility filtering is
// the caller's concern.
func (s *Store) Participants(roomID domain.RoomID) ([]domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	out := make([]domain.Participant, 0, len(rs.participants))
	for _, ps := range rs.participants {
		out = append(out, ps.p)
	}
	return out, nil
}

func (s *Store) Participant(roomID domain.RoomID, participantID domain.ParticipantID) (domain.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.rooms[roomID]
	if !ok {
		return domain.Participant{}, false
	}
	ps, ok := rs.participants[participantID]
	if !ok {
		return domain.Participant{}, false
	}
	return ps.p, true
}

// FindProducer looks a producer up across all participants of a room, used to
// attribute a new consumer to its publisher.
func (s *Store) FindProducer(roomID domain.RoomID, producerID domain.ProducerID) (domain.Producer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.rooms[roomID]
	if !ok {
		return domain.Producer{}, false
	}
	prod, ok := findProducerLocked(rs, producerID)
	if !ok {
		return domain.Producer{}, false
	}
	return *prod, true
}

// Close releases the media engine router of every room. Called on shutdown,
// after live connections have been drained; the store is unusable afterwards.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rs := range s.rooms {
		s.media.CloseRouter(rs.router.ID)
		delete(s.rooms, id)
	}
	log.Info().Str("module", "core.store").Msg("store closed, routers released")
}

func (s *Store) participantLocked(roomID domain.RoomID, participantID domain.ParticipantID) (*roomState, *participantState, error) {
	rs, ok := s.rooms[roomID]
	if !ok {
		return nil, nil, domain.ErrRoomNotFound
	}
	ps, ok := rs.participants[participantID]
	if !ok {
		return nil, nil, domain.ErrParticipantNotFound
	}
	return rs, ps, nil
}

func findProducerLocked(rs *roomState, producerID domain.ProducerID) (*domain.Producer, bool) {
	for _, ps := range rs.participants {
		if prod, ok := ps.producers[producerID]; ok {
			return prod, true
		}
	}
	return nil, false
}

func isScreenShare(appData map[string]any) bool {
	v, _ := appData["screen"].(bool)
	return v
}
