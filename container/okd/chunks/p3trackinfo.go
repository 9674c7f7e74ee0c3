/*
NAME
  p3trackinfo.go

DESCRIPTION
  p3trackinfo.go implements the YP3I (P3-track info) chunk: a single
  routing entry, laid out identically to a non-extended PTrackInfoEntry,
  describing the bonus "P3" performance track.

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

	"github.com/Xi80/dam-song-tools-oss/container/okd/chunk"
)

// YP3IID is the chunk id of the P3-track info chunk.
var YP3IID = [4]byte{'Y', 'P', '3', 'I'}

// P3TrackInfoChunk carries one routing entry at chunk level (it is not
// wrapped in an entry list the way PTrackInfoChunk/ExtendedPTrackInfoChunk
// are).
//
// The reference implementation's P3 reader parses system_ex_ports
// big-endian while its own writer emits it little-endian -- an
// asymmetry that would break this module's read(write(x))=x invariant.
// This port normalizes both directions to little-endian (the direction
// every writer, including the P-track-info writer this entry otherwise
// mirrors byte-for-byte, actually emits). See DESIGN.md.
type P3TrackInfoChunk struct {
	Entry PTrackInfoEntry
}

// ParseP3TrackInfoChunk parses a YP3I chunk payload.
func ParseP3TrackInfoChunk(g chunk.Generic) (P3TrackInfoChunk, error) {
	e, err := readPTrackInfoEntry(bytes.NewReader(g.Payload))
	if err != nil {
		return P3TrackInfoChunk{}, err
	}
	return P3TrackInfoChunk{Entry: e}, nil
}

// Payload serializes the chunk back to its wire form.
func (c P3TrackInfoChunk) Payload() []byte {
	var buf bytes.Buffer
	c.Entry.write(&buf)
	return buf.Bytes()
}

// Generic serializes the chunk to a generic wire chunk.
func (c P3TrackInfoChunk) Generic() chunk.Generic {
	return chunk.Generic{ID: YP3IID, Payload: c.Payload()}
}
