/*
NAME
  sprc.go

DESCRIPTION
  sprc.go implements the SPRC envelope that optionally wraps an OKD
  file: a 16-byte header carrying a CRC-16/GENIBUS checksum of
  everything that follows it.

AUTHOR
  Xi80 <xi80@dam-song-tools-oss>

LICENSE
  Copyright (C) 2026 the dam-song-tools-oss authors. All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the dam-song-tools-oss authors.
*/

// Package sprc implements the SPRC envelope and its CRC-16/GENIBUS
// checksum.
package sprc

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// MagicBytes is the 4-byte signature that identifies an SPRC envelope.
var MagicBytes = [4]byte{'S', 'P', 'R', 'C'}

// HeaderSize is the fixed size of the SPRC envelope.
const HeaderSize = 16

// Header is the SPRC envelope: revision, the CRC-16/GENIBUS checksum of
// the payload that follows it, a force-processing flag, and 7 reserved
// bytes.
//
// ForceFlag is read, written, and round-tripped, but -- matching both
// ground-truth implementations in the reference corpus -- never
// consulted by Validate or by the OKD file reader; its effect on
// processing is not documented anywhere in the corpus, so this port
// does not invent one.
type Header struct {
	Revision  uint16
	CRCValue  uint16
	ForceFlag byte
	Unknown0  [7]byte
}

// HasHeader peeks at the next 4 bytes of r without consuming them,
// reporting whether they match MagicBytes.
func HasHeader(r *bufio.Reader) (bool, error) {
	peeked, err := r.Peek(4)
	if err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, errors.Wrap(err, "sprc: peek magic bytes")
	}
	var magic [4]byte
	copy(magic[:], peeked)
	return magic == MagicBytes, nil
}

// Read reads an SPRC envelope from r.
func Read(r io.Reader) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, errors.Wrap(err, "sprc: read header")
	}
	var magic [4]byte
	copy(magic[:], buf[0:4])
	if magic != MagicBytes {
		return Header{}, errors.Errorf("sprc: invalid magic bytes %q", magic)
	}
	h := Header{
		Revision:  uint16(buf[4])<<8 | uint16(buf[5]),
		CRCValue:  uint16(buf[6])<<8 | uint16(buf[7]),
		ForceFlag: buf[8],
	}
	copy(h.Unknown0[:], buf[9:16])
	return h, nil
}

// Write writes the envelope.
func (h Header) Write(w io.Writer) error {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], MagicBytes[:])
	buf[4] = byte(h.Revision >> 8)
	buf[5] = byte(h.Revision)
	buf[6] = byte(h.CRCValue >> 8)
	buf[7] = byte(h.CRCValue)
	buf[8] = h.ForceFlag
	copy(buf[9:16], h.Unknown0[:])
	_, err := w.Write(buf)
	return errors.Wrap(err, "sprc: write header")
}

// Validate reports whether the CRC-16/GENIBUS checksum of payload
// matches h.CRCValue.
func (h Header) Validate(payload []byte) bool {
	return CRC16Genibus(payload) == h.CRCValue
}

// NewHeader builds an envelope for payload, computing its checksum.
func NewHeader(payload []byte, revision uint16, forceFlag byte) Header {
	return Header{
		Revision:  revision,
		CRCValue:  CRC16Genibus(payload),
		ForceFlag: forceFlag,
	}
}

// crc16GenibusTable is the lookup table for polynomial 0x1021, built at
// package init.
var crc16GenibusTable [256]uint16

func init() {
	const poly = 0x1021
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		crc16GenibusTable[i] = crc
	}
}

// CRC16Genibus computes the CRC-16/GENIBUS checksum of data: polynomial
// 0x1021, initial value 0xFFFF, no input or output reflection, final
// XOR 0xFFFF.
func CRC16Genibus(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc = (crc << 8) ^ crc16GenibusTable[byte(crc>>8)^b]
	}
	return crc ^ 0xFFFF
}
