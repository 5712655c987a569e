package quic

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/orrerysim/orrery/internal/core/protocol"
)

func TestFrameRoundtrip(t *testing.T) {
	var buf bytes.Buffer

	payload := []byte(`{"cmd":"ping","data":{}}`)
	if err := writeFrame(&buf, payload, 1024); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	if buf.Len() != framePrefixSize+len(payload) {
		t.Errorf("frame length = %d, want %d", buf.Len(), framePrefixSize+len(payload))
	}

	got, err := readFrame(&buf, 1024)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload = %s, want %s", got, payload)
	}
}

func TestFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer

	if err := writeFrame(&buf, nil, 1024); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	got, err := readFrame(&buf, 1024)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("payload = %v, want empty", got)
	}
}

func TestFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer

	err := writeFrame(&buf, make([]byte, 64), 16)
	if !errors.Is(err, protocol.ErrMessageTooLarge) {
		t.Errorf("write err = %v, want too large", err)
	}
	if buf.Len() != 0 {
		t.Error("oversize frame must not be written")
	}

	if err := writeFrame(&buf, make([]byte, 64), 1024); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	_, err = readFrame(&buf, 16)
	if !errors.Is(err, protocol.ErrMessageTooLarge) {
		t.Errorf("read err = %v, want too large", err)
	}
}

func TestFrameEOF(t *testing.T) {
	// A stream that ends before the header is a clean end of stream.
	if _, err := readFrame(bytes.NewReader(nil), 1024); err != io.EOF {
		t.Errorf("empty stream err = %v, want io.EOF", err)
	}

	// A stream cut mid header or mid payload is a broken frame.
	if _, err := readFrame(bytes.NewReader([]byte{0, 0, 0}), 1024); err == nil || err == io.EOF {
		t.Errorf("truncated header err = %v", err)
	}

	var buf bytes.Buffer
	if err := writeFrame(&buf, []byte("abcdef"), 1024); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()-2]
	if _, err := readFrame(bytes.NewReader(truncated), 1024); err == nil || err == io.EOF {
		t.Errorf("truncated payload err = %v", err)
	}
}
