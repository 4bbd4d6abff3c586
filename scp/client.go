package scp

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/ssh"
)

// backend is a single-file transfer implementation: the SCP protocol engine
// or the SFTP fallback.
type backend interface {
	Put(remote string, src io.Reader, mode os.FileMode, progress ProgressFunc) error
	Get(remote string, sink io.Writer, progress ProgressFunc) error
}

// Client is a high-level file transfer client over one SSH connection. It
// owns local file handling; the protocol work is delegated to the engine or,
// when enabled, to an SFTP backend.
type Client struct {
	cli      *ssh.Client
	ownsConn bool

	remoteBinary string
	maxPacket    int
	useSFTP      bool
	logger       Logger

	engine *Engine
	sftp   *sftpBackend
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithSFTP routes transfers through the SFTP subsystem instead of the scp
// binary.
func WithSFTP(enable bool) ClientOption {
	return func(c *Client) {
		c.useSFTP = enable
	}
}

// WithRemoteBinaryPath sets the path of the scp binary on the remote host.
func WithRemoteBinaryPath(path string) ClientOption {
	return func(c *Client) {
		if path != "" {
			c.remoteBinary = path
		}
	}
}

// WithClientLogger sets a logger for protocol debugging.
func WithClientLogger(logger Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClientMaxPacket sets the packet limit assumed for exec channels.
func WithClientMaxPacket(n int) ClientOption {
	return func(c *Client) {
		if n > frameOverhead {
			c.maxPacket = n
		}
	}
}

// Dial connects to addr and returns a client owning the connection.
func Dial(addr string, cfg *ssh.ClientConfig, opts ...ClientOption) (*Client, error) {
	cli, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c := NewClient(cli, opts...)
	c.ownsConn = true
	return c, nil
}

// NewClient wraps an existing SSH connection. The connection remains owned
// by the caller and is not closed by Close.
func NewClient(cli *ssh.Client, opts ...ClientOption) *Client {
	c := &Client{
		cli:          cli,
		remoteBinary: DefaultRemoteBinary,
		maxPacket:    DefaultMaxPacket,
		logger:       NoopLogger{},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.engine = NewEngine(
		DialSSH(cli, c.maxPacket),
		WithLogger(c.logger),
		WithRemoteBinary(c.remoteBinary),
		WithMaxPacket(c.maxPacket),
	)

	return c
}

// Close releases the SFTP backend if one was opened and, for dialed clients,
// the SSH connection.
func (c *Client) Close() error {
	var errs []error

	if c.sftp != nil {
		if err := c.sftp.Close(); err != nil {
			errs = append(errs, err)
		}
		c.sftp = nil
	}

	if c.ownsConn {
		if err := c.cli.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0] // Return first error
	}

	return nil
}

// Upload copies a local file to the remote path, preserving its permission
// bits.
func (c *Client) Upload(local, remote string, progress ProgressFunc) error {
	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("open %s: %w", local, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", local, err)
	}

	b, err := c.backend()
	if err != nil {
		return err
	}
	return b.Put(remote, f, info.Mode(), progress)
}

// UploadBytes writes an in-memory payload to the remote path.
func (c *Client) UploadBytes(remote string, data []byte, mode os.FileMode, progress ProgressFunc) error {
	b, err := c.backend()
	if err != nil {
		return err
	}
	return b.Put(remote, bytes.NewReader(data), mode, progress)
}

// Download copies the remote path into a local file.
func (c *Client) Download(remote, local string, progress ProgressFunc) error {
	f, err := os.Create(local)
	if err != nil {
		return fmt.Errorf("create %s: %w", local, err)
	}

	b, berr := c.backend()
	if berr != nil {
		f.Close()
		return berr
	}

	err = b.Get(remote, f, progress)
	if cerr := f.Close(); cerr != nil {
		if err == nil {
			err = fmt.Errorf("close %s: %w", local, cerr)
		} else {
			c.logger.Error("close %s: %v", local, cerr)
		}
	}
	return err
}

// DownloadBytes returns the remote path's payload.
func (c *Client) DownloadBytes(remote string, progress ProgressFunc) ([]byte, error) {
	b, err := c.backend()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := b.Get(remote, &buf, progress); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LastError returns the most recent peer-signalled message.
func (c *Client) LastError() string {
	return c.engine.LastError()
}

// Errors returns all peer-signalled messages in insertion order.
func (c *Client) Errors() []string {
	return c.engine.Errors()
}

func (c *Client) backend() (backend, error) {
	if !c.useSFTP {
		return c.engine, nil
	}
	if c.sftp == nil {
		b, err := newSFTPBackend(c.cli)
		if err != nil {
			return nil, fmt.Errorf("sftp subsystem: %w", err)
		}
		c.sftp = b
	}
	return c.sftp, nil
}
