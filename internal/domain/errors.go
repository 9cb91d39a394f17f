package domain

import "errors"

var (
	ErrAuthTokenMissing = errors.New("auth token missing")
	ErrAuthTokenInvalid = errors.New("auth token invalid")
	ErrAuthTokenExpired = errors.New("auth token expired")

	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room full")
	ErrRoomAccessDenied = errors.New("room access denied")

	ErrParticipantNotFound      = errors.New("participant not found")
	ErrParticipantAlreadyJoined = errors.New("participant already joined")
	ErrParticipantNotInRoom     = errors.New("participant not in room")

	ErrProducerNotFound            = errors.New("producer not found")
	ErrConsumerNotFound            = errors.New("consumer not found")
	ErrConsumerCapabilitiesInvalid = errors.New("consumer capabilities invalid")

	ErrTransportNotFound = errors.New("transport not found")
	ErrRouterNotFound    = errors.New("router not found")

	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrInternal          = errors.New("internal error")
)

// CodeOf maps a domain error to its wire code. Unknown errors are reported
// as InternalError so engine failures never leak internals to clients.
func CodeOf(err error) string {
	switch {
	case errors.Is(err, ErrAuthTokenMissing):
		return "AuthTokenMissing"
	case errors.Is(err, ErrAuthTokenInvalid):
		return "AuthTokenInvalid"
	case errors.Is(err, ErrAuthTokenExpired):
		return "AuthTokenExpired"
	case errors.Is(err, ErrRoomNotFound):
		return "RoomNotFound"
	case errors.Is(err, ErrRoomFull):
		return "RoomFull"
	case errors.Is(err, ErrRoomAccessDenied):
		return "RoomAccessDenied"
	case errors.Is(err, ErrParticipantNotFound):
		return "ParticipantNotFound"
	case errors.Is(err, ErrParticipantAlreadyJoined):
		return "ParticipantAlreadyJoined"
	case errors.Is(err, ErrParticipantNotInRoom):
		return "ParticipantNotInRoom"
	case errors.Is(err, ErrProducerNotFound):
		return "ProducerNotFound"
	case errors.Is(err, ErrConsumerNotFound):
		return "ConsumerNotFound"
	case errors.Is(err, ErrConsumerCapabilitiesInvalid):
		return "ConsumerCapabilitiesInvalid"
	case errors.Is(err, ErrTransportNotFound):
		return "TransportNotFound"
	case errors.Is(err, ErrRouterNotFound):
		return "RouterNotFound"
	case errors.Is(err, ErrRateLimitExceeded):
		return "RateLimitExceeded"
	default:
		return "InternalError"
	}
}
