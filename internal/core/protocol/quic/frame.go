// Package quic carries the command envelope over QUIC. Every request
// occupies one bidirectional stream: the client writes a single frame, the
// server answers on the same stream and closes it. A frame is an 8 byte big
// endian length prefix followed by the JSON envelope.
package quic

import (
	"encoding/binary"
	"io"

	"github.com/orrerysim/orrery/internal/core/protocol"
)

const framePrefixSize = 8

// writeFrame writes one length-prefixed envelope.
func writeFrame(w io.Writer, payload []byte, maxSize uint32) error {
	if maxSize > 0 && uint64(len(payload)) > uint64(maxSize) {
		return protocol.ErrMessageTooLarge
	}

	header := make([]byte, framePrefixSize)
	binary.BigEndian.PutUint64(header, uint64(len(payload)))

	if _, err := w.Write(header); err != nil {
		return protocol.WrapError(err, "failed to write frame header")
	}
	if _, err := w.Write(payload); err != nil {
		return protocol.WrapError(err, "failed to write frame payload")
	}
	return nil
}

// readFrame reads one length-prefixed envelope. A clean end of stream
// before the header surfaces as io.EOF.
func readFrame(r io.Reader, maxSize uint32) ([]byte, error) {
	header := make([]byte, framePrefixSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, protocol.WrapError(err, "failed to read frame header")
	}

	length := binary.BigEndian.Uint64(header)
	if maxSize > 0 && length > uint64(maxSize) {
		return nil, protocol.ErrMessageTooLarge
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, protocol.WrapError(err, "failed to read frame payload")
	}
	return payload, nil
}
