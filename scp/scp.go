// Package scp implements the SCP file transfer protocol.
//
// SCP is a minimal line-and-byte control protocol for copying one file per
// invocation over an already-established, secured channel, commonly an SSH
// session running the remote scp binary in sink (-t) or source (-f) mode.
// This package provides the client-side protocol engine plus a high-level
// client that wraps an SSH connection and provides callback hooks for
// progress tracking.
//
// The engine itself is transport-agnostic: it drives the handshake and the
// payload stream over a narrow Channel interface, so it can be exercised
// against an SSH session, an in-process peer, or anything else that can run
// a remote command and shuttle bytes.
package scp

// Status bytes interleaved with protocol text.
const (
	// StatusOK acknowledges the previous step and invites the next.
	StatusOK byte = 0

	// StatusWarning signals a peer warning. The remainder of the frame is a
	// human-readable message. This engine treats warnings as fatal.
	StatusWarning byte = 1

	// StatusError signals a fatal peer error, message in the remainder of
	// the frame.
	StatusError byte = 2
)

const (
	// DefaultRemoteBinary is the scp binary executed on the remote side.
	DefaultRemoteBinary = "/usr/bin/scp"

	// DefaultMaxPacket is the payload chunk ceiling used when the channel
	// does not report a negotiated packet limit of its own. It matches the
	// default SSH channel maximum packet size.
	DefaultMaxPacket = 32 * 1024

	// frameOverhead is subtracted from the packet limit to leave room for
	// the per-packet protocol framing.
	frameOverhead = 4
)

// statusName returns the human-readable name for a status byte.
func statusName(status byte) string {
	switch status {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "warning"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}
