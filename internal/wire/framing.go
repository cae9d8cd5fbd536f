// Package wire implements the metaserver's transport framing:
// length-prefixed JSON records over a plain TCP stream. There is no
// protobuf/grpc layer here by design; the fabric's RPC surface is
// small enough that a 4-byte big-endian length prefix plus a JSON
// body keeps the wire debuggable with nothing fancier than nc and
// jq.
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MaxFrameLength bounds a single frame. The reference design leaves
// this effectively unbounded; 64MiB is generous for any path-tree or
// registration payload this fabric will ever carry while still
// catching a corrupt stream quickly.
const MaxFrameLength = 64 << 20

// Writer serialises one frame per call, synchronising concurrent
// writers so interleaved writes never corrupt the length prefix.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (fw *Writer) WriteFrame(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wire: marshal frame: %w", err)
	}
	fw.mu.Lock()
	defer fw.mu.Unlock()
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := fw.w.Write(header[:]); err != nil {
		return fmt.Errorf("wire: write frame header: %w", err)
	}
	if _, err := fw.w.Write(body); err != nil {
		return fmt.Errorf("wire: write frame body: %w", err)
	}
	return nil
}

// Reader reads one length-prefixed JSON frame at a time from a
// buffered stream.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

func (fr *Reader) ReadFrame(v any) error {
	var header [4]byte
	if _, err := io.ReadFull(fr.r, header[:]); err != nil {
		return err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameLength {
		return fmt.Errorf("wire: frame length %d exceeds maximum %d", length, MaxFrameLength)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(fr.r, body); err != nil {
		return fmt.Errorf("wire: read frame body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("wire: unmarshal frame: %w", err)
	}
	return nil
}
