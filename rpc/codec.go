package rpc

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// maxFrameSize bounds a single frame body to guard against a misbehaving
// worker advertising an unreasonable length prefix and exhausting memory.
const maxFrameSize = 64 << 20 // 64MiB

// Codec encodes and decodes Frames using a 4-byte big-endian length-prefix
// framing. It is isolated from Channel so a newline-delimited variant could
// be substituted without touching dispatch logic.
type Codec struct {
	r *bufio.Reader
	w io.Writer
}

// NewCodec wraps r/w with length-prefixed frame encoding.
func NewCodec(r io.Reader, w io.Writer) *Codec {
	return &Codec{r: bufio.NewReader(r), w: w}
}

// Encode writes a single frame: 4-byte big-endian length followed by its
// JSON body.
func (c *Codec) Encode(f Frame) error {
	body, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("rpc: marshal frame: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := c.w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("rpc: write frame length: %w", err)
	}
	if _, err := c.w.Write(body); err != nil {
		return fmt.Errorf("rpc: write frame body: %w", err)
	}
	return nil
}

// Decode reads the next frame from the stream, blocking until a full frame
// is available or the stream ends.
func (c *Codec) Decode() (Frame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(c.r, lenBuf[:]); err != nil {
		return Frame{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameSize {
		return Frame{}, fmt.Errorf("%w: frame of %d bytes exceeds %d byte limit", ErrProtocolViolation, n, maxFrameSize)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(c.r, body); err != nil {
		return Frame{}, err
	}
	var f Frame
	if err := json.Unmarshal(body, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}
	if f.Type != TypeRequest && f.Type != TypeResponse {
		return Frame{}, fmt.Errorf("%w: unknown frame type %q", ErrProtocolViolation, f.Type)
	}
	return f, nil
}
