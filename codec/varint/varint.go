/*
NAME
  varint.go

DESCRIPTION
  varint.go implements the OKD/MIDI variable-length integer encoding used
  for delta times and note durations throughout M-track and P-track bodies.

AUTHOR
  Xi80 <xi80@dam-song-tools-oss>

LICENSE
  Copyright (C) 2026 the dam-song-tools-oss authors. All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the dam-song-tools-oss authors.
*/

// Package varint implements the OKD container's 6-bit continuation
// variable-length integer, and its chained "extended" form.
package varint

import (
	"io"

	"github.com/pkg/errors"
)

// Max is the largest value a single (non-extended) variable int can hold:
// three continuation bytes, each contributing 6 bits.
const Max = 0x04103F

// continuationBit marks "another byte follows" within a variable-int byte.
const continuationBit = 0x40

// dataMask extracts the 6 value bits from a variable-int byte.
const dataMask = 0x3F

// ErrMalformed is returned when a three-byte sequence never terminates.
var ErrMalformed = errors.New("varint: malformed (non-terminating) sequence")

// ErrTooLarge is returned when Write is asked to encode a value that does
// not fit in the non-extended form.
var ErrTooLarge = errors.New("varint: value exceeds non-extended range")

// Read decodes a single variable int from r. Each byte must have bit 7
// clear; bit 6 (0x40) signals continuation. At most three bytes are
// consumed. A three-byte sequence whose third byte still carries the
// continuation bit is malformed.
func Read(r io.ByteReader) (uint32, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, errors.Wrap(err, "varint: read byte")
	}
	return readFrom(first, r)
}

// readFrom decodes a variable int given its already-read first byte,
// reading up to two more bytes from r as needed. Every byte's full
// value -- not just its lower 6 data bits -- is added at its digit's
// 64^i place, so a set continuation bit (0x40) contributes to the sum
// at the same bit position the next digit's low bit occupies; this
// overlap is exactly what encode's carry compensation accounts for,
// and is why the encodable range tops out at Max rather than the
// 0x3FFFF a flat 6-bits-per-byte scheme would give.
func readFrom(first byte, r io.ByteReader) (uint32, error) {
	if first&0x80 != 0 {
		return 0, errors.Wrap(ErrMalformed, "varint: data byte has bit 7 set")
	}
	value := uint32(first)
	if first&continuationBit == 0 {
		return value, nil
	}
	for i := 1; i < 3; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, errors.Wrap(err, "varint: read byte")
		}
		if b&0x80 != 0 {
			return 0, errors.Wrap(ErrMalformed, "varint: data byte has bit 7 set")
		}
		value += uint32(b) << uint(6*i)
		if b&continuationBit == 0 {
			return value, nil
		}
	}
	return 0, ErrMalformed
}

// Write encodes v as a non-extended variable int. v must be in [0, Max].
func Write(w io.ByteWriter, v uint32) error {
	if v > Max {
		return ErrTooLarge
	}
	bytes := encode(v)
	for _, b := range bytes {
		if err := w.WriteByte(b); err != nil {
			return errors.Wrap(err, "varint: write byte")
		}
	}
	return nil
}

// encode produces the byte sequence for v, v <= Max. Each digit's 6 data
// bits are masked off and written; if anything remains after that digit,
// its continuation bit is set and the 0x40 contribution that decode will
// add back in at this digit's bit position is subtracted from the
// remainder carried to the next digit. A digit that sets its
// continuation bit but leaves nothing for the next digit still needs an
// explicit 0x00 terminator, since the reader has no other way to know
// the chain stopped.
func encode(v uint32) []byte {
	var out []byte
	value := v
	for i := 0; i < 3; i++ {
		shift := uint(6 * i)
		masked := value & (uint32(dataMask) << shift)
		b := byte(masked >> shift)
		remainder := value - masked
		if remainder != 0 {
			b |= continuationBit
			remainder -= uint32(continuationBit) << shift
		}
		value = remainder
		out = append(out, b)
		if value == 0 {
			if b&continuationBit != 0 {
				out = append(out, 0x00)
			}
			break
		}
	}
	return out
}

// ReadExtended decodes a chained sequence of variable ints, summing each
// link's value. Every link but the last carries exactly Max; the chain
// continues only while a link's decoded value is exactly Max, since that
// is the only value a single link cannot distinguish from "more follows".
// A lone 0x00 byte at the head of a link is a zero-length terminator
// (used for a total of zero, or to close a chain explicitly) and is
// consumed without contributing to the total. The chain also ends,
// without consuming a byte, the moment the next byte is not a valid
// continuation lead (bit 7 set, as every M-track/P-track status byte
// is) -- this lets delta-time fields sit directly before a status byte
// with no explicit terminator.
func ReadExtended(r io.ByteScanner) (uint32, error) {
	var total uint64
	for {
		first, err := r.ReadByte()
		if err != nil {
			return 0, errors.Wrap(err, "varint: read extended link")
		}
		if first == 0x00 {
			return uint32(total), nil
		}

		value, err := readFrom(first, r)
		if err != nil {
			return 0, errors.Wrap(err, "varint: read extended link")
		}

		total += uint64(value)
		if value < Max {
			return uint32(total), nil
		}

		// value == Max: peek ahead. If the chain is not followed by
		// another continuation-shaped byte, stop without consuming it.
		next, err := r.ReadByte()
		if err != nil {
			return uint32(total), nil
		}
		if err := r.UnreadByte(); err != nil {
			return 0, errors.Wrap(err, "varint: unread lookahead byte")
		}
		if next&0x80 != 0 {
			return uint32(total), nil
		}
	}
}

// WriteExtended encodes v as a chain of Max-valued links followed by one
// final link carrying the remainder. No trailing link is written when v
// is an exact multiple of Max; a v of zero writes a single 0x00 byte.
func WriteExtended(w io.ByteWriter, v uint32) error {
	remaining := uint64(v)
	wrote := false
	for remaining >= Max {
		if err := Write(w, Max); err != nil {
			return err
		}
		remaining -= Max
		wrote = true
	}
	if remaining > 0 || !wrote {
		return Write(w, uint32(remaining))
	}
	return nil
}
