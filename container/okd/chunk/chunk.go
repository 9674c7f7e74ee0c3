/*
NAME
  chunk.go

DESCRIPTION
  chunk.go implements the OKD container's chunk framing: the 8-byte
  id+length header (with de-obfuscation of the ADPCM chunk's disguised
  id/size), even-length payload padding, and the all-zero end-of-file
  marker.

AUTHOR
  Xi80 <xi80@dam-song-tools-oss>

LICENSE
  Copyright (C) 2026 the dam-song-tools-oss authors. All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the dam-song-tools-oss authors.
*/

// Package chunk implements the OKD container's length-prefixed chunk
// framing: peeking, reading, and writing id+payload records, including
// de-obfuscation of the disguised ADPCM chunk header.
package chunk

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// obfuscatedID and obfuscatedSizeMask are the disguise the reference
// format applies to the ADPCM chunk's header: its true id (ID) appears
// on disk as obfuscatedID, and the length that follows is XORed with
// obfuscatedSizeMask.
var obfuscatedID = [4]byte{0x4E, 0x96, 0x53, 0x93}

const obfuscatedSizeMask = 0x17D717D7

// ID is the de-obfuscated ADPCM chunk id.
var ID = [4]byte{'Y', 'A', 'D', 'D'}

// EndMark is the four-byte sentinel that terminates a chunk stream.
var EndMark = [4]byte{0, 0, 0, 0}

// Generic is a chunk as read directly off the wire: an id and its raw,
// already-depadded payload. Typed chunk parsers build on top of this.
type Generic struct {
	ID      [4]byte
	Payload []byte
}

// Reader reads a sequence of chunks from an underlying stream, and
// supports non-destructive look-ahead at the next chunk's header.
type Reader struct {
	r *bufio.Reader
}

// NewReader returns a Reader reading chunks from r.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{r: br}
}

// unmaskHeader undoes the ADPCM chunk's id/size disguise, if present.
func unmaskHeader(id [4]byte, size uint32) ([4]byte, uint32) {
	if id == obfuscatedID {
		return ID, size ^ obfuscatedSizeMask
	}
	return id, size
}

// Next reads the next chunk. It returns io.EOF (not wrapped) when the
// stream ends cleanly -- either a zero-length read at the chunk boundary
// or the literal EndMark sentinel -- which is the normal way chunk
// iteration terminates, not an error condition.
func (c *Reader) Next() (Generic, error) {
	header := make([]byte, 8)
	n, err := io.ReadFull(c.r, header)
	if n == 0 && (err == io.EOF || err == io.ErrUnexpectedEOF) {
		return Generic{}, io.EOF
	}

	var id [4]byte
	copy(id[:], header[:4])
	if n >= 4 && id == EndMark {
		return Generic{}, io.EOF
	}
	if err != nil {
		return Generic{}, errors.Wrap(err, "chunk: read header")
	}

	size := binary.BigEndian.Uint32(header[4:8])
	id, size = unmaskHeader(id, size)

	payload := make([]byte, size)
	if _, err := io.ReadFull(c.r, payload); err != nil {
		return Generic{}, errors.Wrap(err, "chunk: read payload")
	}

	return Generic{ID: id, Payload: payload}, nil
}

// PeekID returns the id of the next chunk without consuming any bytes.
// It returns io.EOF under the same conditions as Next.
func (c *Reader) PeekID() ([4]byte, error) {
	header, err := c.r.Peek(8)
	var id [4]byte
	copy(id[:], header)
	if len(header) >= 4 && id == EndMark {
		return [4]byte{}, io.EOF
	}
	if err != nil {
		if len(header) == 0 {
			return [4]byte{}, io.EOF
		}
		return [4]byte{}, errors.Wrap(err, "chunk: peek header")
	}
	size := binary.BigEndian.Uint32(header[4:8])
	id, _ = unmaskHeader(id, size)
	return id, nil
}

// All reads every remaining chunk until end-of-file.
func (c *Reader) All() ([]Generic, error) {
	var chunks []Generic
	for {
		g, err := c.Next()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, g)
	}
}

// Write writes a single chunk: id, the payload length rounded up to an
// even number, and the payload itself padded with a trailing 0x00 byte
// if its length is odd.
func Write(w io.Writer, id [4]byte, payload []byte) error {
	padded := payload
	if len(padded)%2 != 0 {
		padded = append(append([]byte{}, payload...), 0x00)
	}

	header := make([]byte, 8)
	copy(header[:4], id[:])
	binary.BigEndian.PutUint32(header[4:8], uint32(len(padded)))

	if _, err := w.Write(header); err != nil {
		return errors.Wrap(err, "chunk: write header")
	}
	if _, err := w.Write(padded); err != nil {
		return errors.Wrap(err, "chunk: write payload")
	}
	return nil
}

// WriteAll writes every chunk in chunks followed by the end-of-file
// marker.
func WriteAll(w io.Writer, chunks []Generic) error {
	for _, c := range chunks {
		if err := Write(w, c.ID, c.Payload); err != nil {
			return err
		}
	}
	_, err := w.Write(EndMark[:])
	return errors.Wrap(err, "chunk: write end mark")
}
