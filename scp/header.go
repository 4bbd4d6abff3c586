package scp

import (
	"fmt"
	"os"
	"strings"
)

// Header is the textual header line exchanged at transfer start. The
// permission bits and name are informational for the receiving side; the
// declared size governs how many payload bytes follow.
type Header struct {
	Mode os.FileMode
	Size int64
	Name string
}

// Marshal encodes the header as the wire line "C<mode> <size> <name>\n".
// The mode is masked to its permission bits.
func (h Header) Marshal() []byte {
	return []byte(fmt.Sprintf("C%04o %d %s\n", h.Mode&os.ModePerm, h.Size, h.Name))
}

// ParseHeader parses the header line sent by an scp source, without its
// leading stream byte or trailing newline. The expected grammar is
// "<perm> <size> <name>".
func ParseHeader(line string) (Header, error) {
	var h Header
	line = strings.TrimSuffix(line, "\n")
	// Stock scp sources prefix the line with the C stream indicator.
	line = strings.TrimPrefix(line, "C")
	_, err := fmt.Sscanf(line, "%04o %d %s", &h.Mode, &h.Size, &h.Name)
	if err != nil {
		return Header{}, NewError(ErrProtocol, fmt.Sprintf("malformed header %q", line))
	}
	if h.Size < 0 {
		return Header{}, NewError(ErrProtocol, fmt.Sprintf("negative size in header %q", line))
	}
	return h, nil
}
