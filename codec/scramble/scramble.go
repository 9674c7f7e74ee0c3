/*
NAME
  scramble.go

DESCRIPTION
  scramble.go implements the OKD container's XOR-stream obfuscation layer:
  a stateless transform keyed by a rotating index into a fixed 256-entry
  16-bit pattern table.

AUTHOR
  Xi80 <xi80@dam-song-tools-oss>

LICENSE
  Copyright (C) 2026 the dam-song-tools-oss authors. All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the dam-song-tools-oss authors.
*/

// Package scramble implements the OKD file format's reversible XOR-stream
// transform, keyed by a rotating 8-bit index into a 256-entry pattern
// table.
package scramble

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrUnexpectedEnd is returned when a buffer ends mid-word.
var ErrUnexpectedEnd = errors.New("scramble: unexpected end of buffer")

// ErrDetectFailed is returned when no pattern index reproduces the
// expected magic.
var ErrDetectFailed = errors.New("scramble: no pattern index matches magic")

// Pattern is the fixed 256-entry, 16-bit-word table that is the sole key
// material for the scramble transform.
//
// The reference implementation distributes this table as opaque binary
// data; it was not present in any source retrieved for this port. The
// values below are a placeholder of the correct shape (256 uint16
// entries) and must be replaced with the real table extracted from a
// reference OKD file or the original DAM tooling before this package can
// interoperate with real-world files. See DESIGN.md.
var Pattern = func() [256]uint16 {
	var t [256]uint16
	// Deterministic placeholder sequence, NOT the real OKD pattern table.
	x := uint16(0xA55A)
	for i := range t {
		x = x*1103 + 12345
		t[i] = x
	}
	return t
}()

// Transform XORs buf (which must have even length) in place, 2 bytes at a
// time big-endian, against Pattern[idx], Pattern[idx+1], ... (mod 256),
// and returns the index to continue from on a subsequent call.
func Transform(buf []byte, idx uint8) (uint8, error) {
	if len(buf)%2 != 0 {
		return idx, ErrUnexpectedEnd
	}
	for i := 0; i < len(buf); i += 2 {
		word := binary.BigEndian.Uint16(buf[i : i+2])
		word ^= Pattern[idx]
		binary.BigEndian.PutUint16(buf[i:i+2], word)
		idx++
	}
	return idx, nil
}

// Descramble is an alias of Transform: the XOR transform is its own
// inverse.
func Descramble(buf []byte, idx uint8) (uint8, error) { return Transform(buf, idx) }

// Scramble is an alias of Transform: the XOR transform is its own
// inverse.
func Scramble(buf []byte, idx uint8) (uint8, error) { return Transform(buf, idx) }

// DetectIndex searches for the pattern index k such that scrambling the
// expected magic with starting index k would yield actual. Both magics
// are interpreted as a single big-endian 32-bit word covering two pattern
// table entries.
func DetectIndex(actual, expected uint32) (uint8, error) {
	xor := actual ^ expected
	for k := 0; k < 256; k++ {
		candidate := uint32(Pattern[k])<<16 | uint32(Pattern[(k+1)%256])
		if candidate == xor {
			return uint8(k), nil
		}
	}
	return 0, ErrDetectFailed
}
