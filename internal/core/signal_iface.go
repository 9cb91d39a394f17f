package core

// Frame is a raw outbound payload, already serialized.
type Frame []byte

// SignalConnection abstracts the system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
	// CloseWithStatus closes the connection with a websocket close code.
	CloseWithStatus(code int, reason string)
}
