/*
NAME
  adpcmchunk.go

DESCRIPTION
  adpcmchunk.go implements the YADD (ADPCM) chunk: a sequence of
  sub-chunks, each tagged YAWV, holding the raw ADPCM-encoded audio for
  one voice track.

AUTHOR
  Xi80 <xi80@dam-song-tools-oss>

LICENSE
  Copyright (C) 2026 the dam-song-tools-oss authors. All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the dam-song-tools-oss authors.
*/

package chunks

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/go-audio/audio"
	"github.com/pkg/errors"

	adpcmcodec "github.com/Xi80/dam-song-tools-oss/codec/adpcm"
	"github.com/Xi80/dam-song-tools-oss/container/okd/chunk"
)

// YAWVID is the sub-chunk id of one ADPCM voice track within a YADD
// chunk.
var YAWVID = [4]byte{'Y', 'A', 'W', 'V'}

// AdpcmChunkTrack is one YAWV sub-chunk: the raw, still-encoded ADPCM
// bytes for a single voice track.
type AdpcmChunkTrack struct {
	Data []byte
}

// Decode decodes this track's ADPCM data into a PCM16 sample buffer.
func (t AdpcmChunkTrack) Decode(sampleRate int) (*audio.IntBuffer, error) {
	return adpcmcodec.DecodeBuffer(bytes.NewReader(t.Data), sampleRate)
}

// AdpcmChunk is the YADD chunk: every voice track bundled into the
// song.
//
// The reference writer drops the YAWV sub-header when re-serializing
// a parsed chunk, writing only the concatenated track payloads -- which
// breaks round-tripping, since a reader can no longer tell where one
// track's data ends and the next begins. This port always re-emits the
// sub-header on write. See DESIGN.md.
type AdpcmChunk struct {
	Tracks []AdpcmChunkTrack
}

// ParseAdpcmChunk parses a YADD chunk payload into its YAWV sub-chunks.
func ParseAdpcmChunk(g chunk.Generic) (AdpcmChunk, error) {
	r := bytes.NewReader(g.Payload)
	var tracks []AdpcmChunkTrack

	for {
		header := make([]byte, 8)
		n, err := io.ReadFull(r, header)
		if n == 0 && err == io.EOF {
			break
		}
		if err != nil {
			return AdpcmChunk{}, errors.Wrap(err, "adpcmchunk: read sub-header")
		}

		var id [4]byte
		copy(id[:], header[:4])
		if id != YAWVID {
			return AdpcmChunk{}, errors.Errorf("adpcmchunk: unknown sub-chunk id %q", id)
		}

		size := binary.BigEndian.Uint32(header[4:8])
		data := make([]byte, size)
		if _, err := io.ReadFull(r, data); err != nil {
			return AdpcmChunk{}, errors.Wrap(err, "adpcmchunk: read sub-chunk data")
		}
		tracks = append(tracks, AdpcmChunkTrack{Data: data})
	}

	return AdpcmChunk{Tracks: tracks}, nil
}

// Payload serializes the chunk back to its wire form, re-emitting each
// track's YAWV sub-header.
func (c AdpcmChunk) Payload() []byte {
	var buf bytes.Buffer
	for _, t := range c.Tracks {
		buf.Write(YAWVID[:])
		var size [4]byte
		binary.BigEndian.PutUint32(size[:], uint32(len(t.Data)))
		buf.Write(size[:])
		buf.Write(t.Data)
	}
	return buf.Bytes()
}

// Generic serializes the chunk to a generic wire chunk under the plain
// YADD id (chunk.ID). The obfuscated id/size disguise is not applied on
// write; only chunk.Reader undoes it on read.
func (c AdpcmChunk) Generic() chunk.Generic {
	return chunk.Generic{ID: chunk.ID, Payload: c.Payload()}
}
