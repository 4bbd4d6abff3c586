package scp

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// sftpBackend transfers single files through the SFTP subsystem instead of
// the remote scp binary. It shares the backend contract with the protocol
// engine, including progress reporting, but needs no handshake of its own.
type sftpBackend struct {
	cli *sftp.Client
}

func newSFTPBackend(sshCli *ssh.Client) (*sftpBackend, error) {
	cli, err := sftp.NewClient(sshCli)
	if err != nil {
		return nil, err
	}
	return &sftpBackend{cli: cli}, nil
}

func (b *sftpBackend) Close() error {
	return b.cli.Close()
}

func (b *sftpBackend) Put(remote string, src io.Reader, mode os.FileMode, progress ProgressFunc) error {
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

	f, err := b.cli.OpenFile(remote, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("open remote %s: %w", remote, err)
	}

	err = copyWithProgress(f, body, size, progress)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close remote %s: %w", remote, cerr)
	}
	if err != nil {
		return err
	}

	return b.cli.Chmod(remote, mode)
}

func (b *sftpBackend) Get(remote string, sink io.Writer, progress ProgressFunc) error {
	if remote == "" {
		return NewError(ErrArgument, "empty remote path")
	}
	if sink == nil {
		return NewError(ErrArgument, "nil sink")
	}

	f, err := b.cli.Open(remote)
	if err != nil {
		return fmt.Errorf("open remote %s: %w", remote, err)
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	return copyWithProgress(sink, f, size, progress)
}

func copyWithProgress(dst io.Writer, src io.Reader, total int64, progress ProgressFunc) error {
	buf := make([]byte, DefaultMaxPacket-frameOverhead)
	var done int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			done += int64(n)
			if progress != nil {
				progress(done, total)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}
