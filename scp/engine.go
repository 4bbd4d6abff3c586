package scp

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// Engine drives the put and get state machines over one Channel instance per
// call. It holds no transport state of its own: every transfer dials a fresh
// channel, runs one sequential, half-duplex exchange over it, and closes it
// before returning.
//
// An Engine may be reused for sequential transfers; it must not be invoked
// concurrently against the same underlying connection. Peer-signalled
// warnings and errors accumulate in the engine's error log across calls.
type Engine struct {
	dial         DialFunc
	remoteBinary string
	maxPacket    int
	logger       Logger
	errs         *ErrorLog
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for protocol debugging.
func WithLogger(logger Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRemoteBinary sets the path of the scp binary executed on the peer.
func WithRemoteBinary(path string) EngineOption {
	return func(e *Engine) {
		if path != "" {
			e.remoteBinary = path
		}
	}
}

// WithMaxPacket sets the packet limit used when the channel does not report
// one of its own.
func WithMaxPacket(n int) EngineOption {
	return func(e *Engine) {
		if n > frameOverhead {
			e.maxPacket = n
		}
	}
}

// NewEngine creates an engine dialing channels through the given DialFunc.
func NewEngine(dial DialFunc, opts ...EngineOption) *Engine {
	e := &Engine{
		dial:         dial,
		remoteBinary: DefaultRemoteBinary,
		maxPacket:    DefaultMaxPacket,
		logger:       NoopLogger{},
		errs:         &ErrorLog{},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// LastError returns the most recent peer-signalled message, or "" if none
// has been recorded.
func (e *Engine) LastError() string {
	return e.errs.Last()
}

// Errors returns a snapshot of all peer-signalled messages in insertion
// order.
func (e *Engine) Errors() []string {
	return e.errs.All()
}

// Put copies the source's bytes to the remote path, running the peer's scp
// binary in sink mode. The payload size is resolved from the source before
// the header goes on the wire; sources that cannot report their length in
// advance are buffered. mode is masked to permission bits and defaults to
// 0644 when zero.
//
// progress, if non-nil, is invoked after every sent frame with the
// cumulative byte count.
func (e *Engine) Put(remote string, src io.Reader, mode os.FileMode, progress ProgressFunc) error {
	if remote == "" {
		return NewError(ErrArgument, "empty remote path")
	}
	if mode == 0 {
		mode = 0o644
	}
	if mode&^os.ModePerm != 0 {
		return NewError(ErrArgument, fmt.Sprintf("invalid mode %#o", uint32(mode)))
	}

	body, size, err := resolveSource(src)
	if err != nil {
		return err
	}

	ch, err := e.dial()
	if err != nil {
		return NewError(ErrChannel, fmt.Sprintf("dial: %v", err))
	}

	command := e.remoteBinary + " -t " + shellQuote(remote)
	if err := ch.OpenExec(command); err != nil {
		// Channels whose open failed carry no resources to release.
		return NewError(ErrChannel, fmt.Sprintf("open exec %q: %v", command, err))
	}

	err = e.put(ch, remote, body, size, mode, progress)
	e.closeChannel(ch)
	return err
}

func (e *Engine) put(ch Channel, remote string, src io.Reader, size int64, mode os.FileMode, progress ProgressFunc) error {
	if err := e.readAck(ch, "initial ack"); err != nil {
		return err
	}

	hdr := Header{Mode: mode, Size: size, Name: path.Base(remote)}
	line := hdr.Marshal()
	e.logger.Debug("put %s: %s", remote, formatFrameLog("sending header", line))
	if err := ch.Send(line); err != nil {
		return NewError(ErrChannel, fmt.Sprintf("send header: %v", err))
	}

	if err := e.readAck(ch, "header ack"); err != nil {
		return err
	}

	// Chunk length is fixed for the whole transfer; no acknowledgments are
	// exchanged during this phase.
	chunk := e.chunkSize(ch)
	buf := make([]byte, chunk)
	var sent int64
	for sent < size {
		n := chunk
		if remaining := size - sent; remaining < int64(n) {
			n = int(remaining)
		}
		if _, err := io.ReadFull(src, buf[:n]); err != nil {
			return fmt.Errorf("read source after %d of %d bytes: %w", sent, size, err)
		}
		if err := ch.Send(buf[:n]); err != nil {
			return NewError(ErrChannel, fmt.Sprintf("send payload: %v", err))
		}
		sent += int64(n)
		if progress != nil {
			progress(sent, size)
		}
	}

	e.logger.Info("put %s: %d bytes sent", remote, sent)
	return nil
}

// Get copies the remote path's bytes into the sink, running the peer's scp
// binary in source mode. The sink never receives more than the declared size
// even when the terminal frame carries trailing bytes.
//
// progress, if non-nil, is invoked after every accepted frame with the
// cumulative payload byte count.
func (e *Engine) Get(remote string, sink io.Writer, progress ProgressFunc) error {
	if remote == "" {
		return NewError(ErrArgument, "empty remote path")
	}
	if sink == nil {
		return NewError(ErrArgument, "nil sink")
	}

	ch, err := e.dial()
	if err != nil {
		return NewError(ErrChannel, fmt.Sprintf("dial: %v", err))
	}

	command := e.remoteBinary + " -f " + shellQuote(remote)
	if err := ch.OpenExec(command); err != nil {
		return NewError(ErrChannel, fmt.Sprintf("open exec %q: %v", command, err))
	}

	err = e.get(ch, remote, sink, progress)
	e.closeChannel(ch)
	return err
}

// GetBytes is Get without a caller-supplied sink; the accumulated payload is
// returned instead.
func (e *Engine) GetBytes(remote string, progress ProgressFunc) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Get(remote, &buf, progress); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Engine) get(ch Channel, remote string, sink io.Writer, progress ProgressFunc) error {
	// Invite the peer to emit its header.
	if err := ch.Send([]byte{StatusOK}); err != nil {
		return NewError(ErrChannel, fmt.Sprintf("send ready: %v", err))
	}

	frame, err := ch.Receive()
	if err != nil {
		if err == io.EOF {
			return NewError(ErrProtocol, "stream ended before header")
		}
		return NewError(ErrChannel, fmt.Sprintf("receive header: %v", err))
	}
	if len(frame) == 0 {
		return NewError(ErrProtocol, "empty header frame")
	}
	e.logger.Debug("get %s: %s", remote, formatFrameLog("received header frame", frame))

	var rest []byte
	switch frame[0] {
	case StatusOK:
		rest = frame[1:]
	case 'C':
		// Stock scp sources skip the leading OK and open with the C-line.
		rest = frame
	case StatusWarning, StatusError:
		return e.recordStatus(frame[0], frame[1:])
	default:
		return NewError(ErrProtocol, fmt.Sprintf("unexpected status byte %d before header", frame[0]))
	}

	idx := bytes.IndexByte(rest, '\n')
	if idx < 0 {
		return NewError(ErrProtocol, fmt.Sprintf("unterminated header %q", rest))
	}
	hdr, err := ParseHeader(string(rest[:idx]))
	if err != nil {
		return err
	}

	// Payload may share the header frame.
	pending := rest[idx+1:]

	if err := ch.Send([]byte{StatusOK}); err != nil {
		return NewError(ErrChannel, fmt.Sprintf("send header ack: %v", err))
	}

	var received int64
	for {
		if len(pending) == 0 {
			frame, err := ch.Receive()
			if err != nil {
				if err == io.EOF {
					if received < hdr.Size {
						return NewError(ErrProtocol, fmt.Sprintf("stream ended after %d of %d bytes", received, hdr.Size))
					}
					return NewError(ErrProtocol, "missing trailing status byte")
				}
				return NewError(ErrChannel, fmt.Sprintf("receive payload: %v", err))
			}
			if len(frame) == 0 {
				return NewError(ErrProtocol, "empty frame in payload stream")
			}
			pending = frame
		}

		if received < hdr.Size {
			n := int64(len(pending))
			if remaining := hdr.Size - received; remaining < n {
				n = remaining
			}
			if _, err := sink.Write(pending[:n]); err != nil {
				return fmt.Errorf("write sink after %d of %d bytes: %w", received, hdr.Size, err)
			}
			received += n
			pending = pending[n:]
			if progress != nil {
				progress(received, hdr.Size)
			}
			continue
		}

		// The byte at stream offset size is the trailing status byte, not
		// payload.
		if pending[0] == StatusOK {
			e.logger.Info("get %s: %d bytes received", remote, received)
			return nil
		}
		return e.recordStatus(pending[0], pending[1:])
	}
}

// readAck reads exactly one status byte from the peer. Anything but OK,
// read failures included, fails the transfer.
func (e *Engine) readAck(ch Channel, phase string) error {
	frame, err := ch.Receive()
	if err != nil {
		if err == io.EOF {
			return NewError(ErrProtocol, phase+": stream ended")
		}
		return NewError(ErrChannel, fmt.Sprintf("%s: receive: %v", phase, err))
	}
	if len(frame) == 0 {
		return NewError(ErrProtocol, phase+": empty frame")
	}
	if frame[0] == StatusOK {
		return nil
	}
	return e.recordStatus(frame[0], frame[1:])
}

// recordStatus appends a peer-signalled warning or error to the log and
// returns the matching typed error.
func (e *Engine) recordStatus(status byte, rest []byte) error {
	if status != StatusWarning && status != StatusError {
		return NewError(ErrProtocol, fmt.Sprintf("unexpected status byte %d", status))
	}
	msg := strings.TrimRight(string(rest), "\n")
	e.errs.Record(status, msg)
	e.logger.Error("peer %s: %s", statusName(status), msg)
	return newStatusError(status, msg)
}

// closeChannel releases an opened channel. Close failures are logged, never
// allowed to shadow the primary transfer error.
func (e *Engine) closeChannel(ch Channel) {
	if err := ch.Close(); err != nil {
		e.logger.Error("close channel: %v", err)
	}
}

func (e *Engine) chunkSize(ch Channel) int {
	limit := ch.MaxPacket()
	if limit <= frameOverhead {
		limit = e.maxPacket
	}
	return limit - frameOverhead
}

// resolveSource determines the payload size up front: it must be on the wire
// before any payload byte. Sources that cannot report their length in
// advance are buffered.
func resolveSource(src io.Reader) (io.Reader, int64, error) {
	switch s := src.(type) {
	case nil:
		return nil, 0, NewError(ErrArgument, "nil source")
	case *os.File:
		info, err := s.Stat()
		if err != nil {
			return nil, 0, fmt.Errorf("stat source: %w", err)
		}
		if !info.Mode().IsRegular() {
			return nil, 0, NewError(ErrArgument, fmt.Sprintf("source %s is not a regular file", info.Name()))
		}
		return s, info.Size(), nil
	case *bytes.Buffer:
		return s, int64(s.Len()), nil
	case *bytes.Reader:
		return s, int64(s.Len()), nil
	case *strings.Reader:
		return s, int64(s.Len()), nil
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, 0, fmt.Errorf("buffer source: %w", err)
	}
	return bytes.NewReader(data), int64(len(data)), nil
}

// shellQuote wraps a remote path in single quotes so the peer's shell passes
// it through untouched.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
