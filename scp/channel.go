package scp

// Channel is the transport capability consumed by the engine: a logical byte
// stream dedicated to one remote command execution over an already-secured
// connection. A Channel instance is exclusively owned by one in-flight
// transfer; it is opened and closed within that call and never reused.
type Channel interface {
	// OpenExec requests the channel and starts the given command line on the
	// remote side. A Channel whose OpenExec failed does not need Close.
	OpenExec(command string) error

	// Send writes one frame of bytes to the peer.
	Send(p []byte) error

	// Receive reads the next frame from the peer. It returns io.EOF when the
	// peer has closed its side of the stream.
	Receive() ([]byte, error)

	// MaxPacket reports the negotiated packet limit in bytes, or 0 if the
	// transport does not expose one.
	MaxPacket() int

	// Close releases the channel. Safe to call exactly once per successful
	// OpenExec.
	Close() error
}

// DialFunc produces a fresh Channel for one transfer. The engine calls it
// once per Put/Get invocation.
type DialFunc func() (Channel, error)
