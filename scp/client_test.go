package scp

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ssh"
)

// Live tests run against a real host when TEST_SSH_ADDR, TEST_SSH_USER,
// TEST_SSH_PASSWORD, and TEST_SSH_PATH are set.
var (
	remoteAddr     = os.Getenv("TEST_SSH_ADDR")
	remoteUser     = os.Getenv("TEST_SSH_USER")
	remotePassword = os.Getenv("TEST_SSH_PASSWORD")
	remotePath     = os.Getenv("TEST_SSH_PATH")
)

func liveClient(t *testing.T, opts ...ClientOption) *Client {
	t.Helper()
	if remoteAddr == "" {
		t.Skip("TEST_SSH_ADDR not set")
	}
	client, err := Dial(remoteAddr, &ssh.ClientConfig{
		User:            remoteUser,
		Auth:            []ssh.AuthMethod{ssh.Password(remotePassword)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}, opts...)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClientUploadDownload(t *testing.T) {
	client := liveClient(t)

	payload := bytes.Repeat([]byte("live round trip "), 4096)
	local := filepath.Join(t.TempDir(), "upload.bin")
	if err := os.WriteFile(local, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := client.Upload(local, remotePath, nil); err != nil {
		t.Fatalf("Upload failed: %v (remote: %s)", err, client.LastError())
	}

	got, err := client.DownloadBytes(remotePath, nil)
	if err != nil {
		t.Fatalf("DownloadBytes failed: %v (remote: %s)", err, client.LastError())
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("downloaded %d bytes, want the %d uploaded bytes", len(got), len(payload))
	}
}

func TestClientUploadDownloadSFTP(t *testing.T) {
	client := liveClient(t, WithSFTP(true))

	payload := []byte("sftp backend round trip")
	if err := client.UploadBytes(remotePath, payload, 0o644, nil); err != nil {
		t.Fatalf("UploadBytes failed: %v", err)
	}

	got, err := client.DownloadBytes(remotePath, nil)
	if err != nil {
		t.Fatalf("DownloadBytes failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("downloaded %q, want %q", got, payload)
	}
}
