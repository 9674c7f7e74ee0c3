/*
NAME
  dispatch.go

DESCRIPTION
  dispatch.go maps a generic chunk's id to its typed parser, matching
  the chunk id table: YPTI/YPXI/YP3I info chunks, "\xffMR"/"\xffPR"
  tracks, the YADD voice chunk, and a verbatim-kept fallback for
  anything else.

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
	"github.com/Xi80/dam-song-tools-oss/container/okd/chunk"
)

// Typed is implemented by every parsed chunk flavor, letting callers
// serialize a heterogeneous chunk list back to wire form without a type
// switch at the write site.
type Typed interface {
	Generic() chunk.Generic
}

// Parse dispatches a generic chunk to its typed parser by id, returning
// the chunk itself (as chunk.Generic, satisfying Typed) when the id
// isn't one of the recognized flavors.
func Parse(g chunk.Generic) (Typed, error) {
	switch {
	case g.ID == YPTIID:
		c, err := ParsePTrackInfoChunk(g)
		return c, err
	case g.ID == YPXIID:
		c, err := ParseExtendedPTrackInfoChunk(g)
		return c, err
	case g.ID == YP3IID:
		c, err := ParseP3TrackInfoChunk(g)
		return c, err
	case IsMTrackID(g.ID):
		c, err := ParseMTrackChunk(g)
		return c, err
	case IsPTrackID(g.ID):
		c, err := ParsePTrackChunk(g)
		return c, err
	case g.ID == chunk.ID:
		c, err := ParseAdpcmChunk(g)
		return c, err
	default:
		return genericTyped(g), nil
	}
}

// genericTyped adapts chunk.Generic to satisfy Typed.
type genericTyped chunk.Generic

func (g genericTyped) Generic() chunk.Generic { return chunk.Generic(g) }
