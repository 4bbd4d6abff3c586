package scp

import (
	"errors"
	"io"

	"golang.org/x/crypto/ssh"
)

// sshChannel adapts one *ssh.Session with stdin/stdout pipes to the Channel
// interface. Each instance serves exactly one remote scp invocation.
type sshChannel struct {
	client    *ssh.Client
	session   *ssh.Session
	stdin     io.WriteCloser
	stdout    io.Reader
	stderr    io.Reader
	maxPacket int
	buf       []byte
}

// DialSSH returns a DialFunc producing channels over the given SSH client.
// The client connection is owned by the caller; each returned channel only
// owns the session it opens.
func DialSSH(client *ssh.Client, maxPacket int) DialFunc {
	if maxPacket <= 0 {
		maxPacket = DefaultMaxPacket
	}
	return func() (Channel, error) {
		return &sshChannel{client: client, maxPacket: maxPacket}, nil
	}
}

func (c *sshChannel) OpenExec(command string) error {
	session, err := c.client.NewSession()
	if err != nil {
		return err
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return err
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		stdin.Close()
		session.Close()
		return err
	}

	stderr, err := session.StderrPipe()
	if err != nil {
		stdin.Close()
		session.Close()
		return err
	}

	if err := session.Start(command); err != nil {
		stdin.Close()
		session.Close()
		return err
	}

	c.session = session
	c.stdin = stdin
	c.stdout = stdout
	c.stderr = stderr
	return nil
}

func (c *sshChannel) Send(p []byte) error {
	_, err := c.stdin.Write(p)
	return err
}

func (c *sshChannel) Receive() ([]byte, error) {
	if c.buf == nil {
		c.buf = make([]byte, c.maxPacket)
	}
	n, err := c.stdout.Read(c.buf)
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

func (c *sshChannel) MaxPacket() int {
	return c.maxPacket
}

func (c *sshChannel) Close() error {
	var errs []error

	if c.stdin != nil {
		if err := c.stdin.Close(); err != nil && !errors.Is(err, io.EOF) {
			errs = append(errs, err)
		}
	}

	if c.session != nil {
		// The remote scp process normally exits on its own once stdin
		// closes; Wait drains its exit status so Close does not race it.
		_ = c.session.Wait()
		if err := c.session.Close(); err != nil && !errors.Is(err, io.EOF) {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0] // Return first error
	}

	return nil
}

// Stderr returns the stderr reader for monitoring remote command output.
func (c *sshChannel) Stderr() io.Reader {
	return c.stderr
}
