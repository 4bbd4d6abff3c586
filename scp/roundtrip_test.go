package scp

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"
)

// testPeer simulates the remote side of the protocol: an in-memory store
// served over pipe-backed channels, one goroutine per exec request.
type testPeer struct {
	store map[string][]byte
	group errgroup.Group
}

func newTestPeer() *testPeer {
	return &testPeer{store: make(map[string][]byte)}
}

func (p *testPeer) dial() (Channel, error) {
	toPeerR, toPeerW := io.Pipe()
	fromPeerR, fromPeerW := io.Pipe()
	return &pipeChannel{
		peer:      p,
		in:        fromPeerR,
		out:       toPeerW,
		peerIn:    toPeerR,
		peerOut:   fromPeerW,
		maxPacket: 1024,
	}, nil
}

func (p *testPeer) wait(t *testing.T) {
	t.Helper()
	if err := p.group.Wait(); err != nil {
		t.Fatalf("peer: %v", err)
	}
}

// serve handles one exec request: "<binary> -t|-f '<path>'".
func (p *testPeer) serve(command string, r io.Reader, w io.WriteCloser) error {
	defer w.Close()

	fields := strings.SplitN(command, " ", 3)
	if len(fields) != 3 {
		return fmt.Errorf("unexpected command %q", command)
	}
	mode, path := fields[1], strings.Trim(fields[2], "'")

	switch mode {
	case "-t":
		return p.sink(path, r, w)
	case "-f":
		return p.source(path, r, w)
	default:
		return fmt.Errorf("unexpected scp mode %q in %q", mode, command)
	}
}

// sink receives one file, mirroring "scp -t".
func (p *testPeer) sink(path string, r io.Reader, w io.Writer) error {
	if _, err := w.Write([]byte{StatusOK}); err != nil {
		return err
	}

	br := bufio.NewReader(r)
	line, err := br.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	hdr, err := ParseHeader(line)
	if err != nil {
		return err
	}

	if _, err := w.Write([]byte{StatusOK}); err != nil {
		return err
	}

	data := make([]byte, hdr.Size)
	if _, err := io.ReadFull(br, data); err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	p.store[path] = data
	return nil
}

// source sends one file, mirroring "scp -f".
func (p *testPeer) source(path string, r io.Reader, w io.Writer) error {
	ready := make([]byte, 1)
	if _, err := io.ReadFull(r, ready); err != nil {
		return fmt.Errorf("read ready byte: %w", err)
	}

	data, found := p.store[path]
	if !found {
		_, err := w.Write(append([]byte{StatusError}, []byte("scp: "+path+": no such file or directory\n")...))
		return err
	}

	hdr := Header{Mode: 0o644, Size: int64(len(data)), Name: path}
	if _, err := w.Write(append([]byte{StatusOK}, hdr.Marshal()...)); err != nil {
		return err
	}

	ack := make([]byte, 1)
	if _, err := io.ReadFull(r, ack); err != nil {
		return fmt.Errorf("read header ack: %w", err)
	}
	if ack[0] != StatusOK {
		return fmt.Errorf("header ack = %d, want OK", ack[0])
	}

	if _, err := w.Write(append(data, StatusOK)); err != nil {
		return err
	}
	return nil
}

// pipeChannel connects the engine to the test peer over synchronous pipes.
type pipeChannel struct {
	peer      *testPeer
	in        *io.PipeReader // peer -> engine
	out       *io.PipeWriter // engine -> peer
	peerIn    *io.PipeReader
	peerOut   *io.PipeWriter
	maxPacket int
	buf       []byte
	done      chan struct{}
}

func (c *pipeChannel) OpenExec(command string) error {
	peerIn, peerOut := c.peerIn, c.peerOut
	c.done = make(chan struct{})
	done := c.done
	c.peer.group.Go(func() error {
		defer close(done)
		defer peerIn.Close()
		return c.peer.serve(command, peerIn, peerOut)
	})
	return nil
}

func (c *pipeChannel) Send(p []byte) error {
	_, err := c.out.Write(p)
	return err
}

func (c *pipeChannel) Receive() ([]byte, error) {
	if c.buf == nil {
		c.buf = make([]byte, c.maxPacket)
	}
	n, err := c.in.Read(c.buf)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}
	frame := make([]byte, n)
	copy(frame, c.buf[:n])
	return frame, nil
}

func (c *pipeChannel) MaxPacket() int {
	return c.maxPacket
}

// Close mirrors the SSH adapter: the peer goroutine is drained before the
// channel is considered released, so a following transfer observes its
// effects.
func (c *pipeChannel) Close() error {
	c.out.Close()
	if c.done != nil {
		<-c.done
	}
	return c.in.Close()
}

func TestPutGetRoundTrip(t *testing.T) {
	peer := newTestPeer()
	e := NewEngine(peer.dial)

	// Chunk size is 1020 with the 1024-byte pipe packet limit; sizes
	// straddle the chunk boundary on both sides.
	sizes := []int{0, 1, 10, 1019, 1020, 1021, 3*1020 + 7}

	for _, size := range sizes {
		t.Run(fmt.Sprintf("%d bytes", size), func(t *testing.T) {
			payload := make([]byte, size)
			for i := range payload {
				payload[i] = byte(i * 31)
			}
			remote := fmt.Sprintf("/data/file-%d.bin", size)

			if err := e.Put(remote, bytes.NewReader(payload), 0o644, nil); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			got, err := e.GetBytes(remote, nil)
			if err != nil {
				t.Fatalf("GetBytes failed: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("round trip mismatch: got %d bytes, want %d identical bytes", len(got), len(payload))
			}
		})
	}

	peer.wait(t)
}

func TestPutOverwritesRemoteTarget(t *testing.T) {
	peer := newTestPeer()
	e := NewEngine(peer.dial)

	if err := e.Put("/data/x", strings.NewReader("first version"), 0o644, nil); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	if err := e.Put("/data/x", strings.NewReader("second version"), 0o644, nil); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	got, err := e.GetBytes("/data/x", nil)
	if err != nil {
		t.Fatalf("GetBytes failed: %v", err)
	}
	if string(got) != "second version" {
		t.Errorf("GetBytes = %q, want the re-issued payload", got)
	}

	peer.wait(t)
}

func TestGetMissingFileFromPeer(t *testing.T) {
	peer := newTestPeer()
	e := NewEngine(peer.dial)

	_, err := e.GetBytes("/data/absent", nil)
	if !IsRemote(err) {
		t.Fatalf("GetBytes = %v, want remote error", err)
	}
	if got := e.LastError(); !strings.Contains(got, "no such file") {
		t.Errorf("LastError() = %q, want it to contain %q", got, "no such file")
	}

	peer.wait(t)
}

func TestRoundTripProgress(t *testing.T) {
	peer := newTestPeer()
	e := NewEngine(peer.dial)

	payload := bytes.Repeat([]byte("abcdefgh"), 512) // 4096 bytes, 5 chunks
	var putProgress, getProgress []int64

	err := e.Put("/data/progress.bin", bytes.NewReader(payload), 0o644, collectProgress(t, &putProgress))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if n := len(putProgress); n == 0 || putProgress[n-1] != int64(len(payload)) {
		t.Errorf("put progress = %v, want final value %d", putProgress, len(payload))
	}

	_, err = e.GetBytes("/data/progress.bin", collectProgress(t, &getProgress))
	if err != nil {
		t.Fatalf("GetBytes failed: %v", err)
	}
	if n := len(getProgress); n == 0 || getProgress[n-1] != int64(len(payload)) {
		t.Errorf("get progress = %v, want final value %d", getProgress, len(payload))
	}

	peer.wait(t)
}
