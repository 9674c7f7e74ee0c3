/*
NAME
  header.go

DESCRIPTION
  header.go implements the OKD file header family: a common 40-byte
  fixed part followed by a variant-specific optional-data tail whose
  length alone selects which variant (YKS/MMT/MMK/SPR/DIO) it is.

AUTHOR
  Xi80 <xi80@dam-song-tools-oss>

LICENSE
  Copyright (C) 2026 the dam-song-tools-oss authors. All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the dam-song-tools-oss authors.
*/

// Package header implements the OKD file header family.
package header

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// MagicBytes is the 4-byte signature of the fixed header part.
var MagicBytes = [4]byte{'Y', 'K', 'S', '1'}

// FixedPartLength is the size of the header's common fixed part.
const FixedPartLength = 40

// ErrBadMagic is returned when the fixed part's magic bytes don't match
// MagicBytes.
var ErrBadMagic = errors.New("header: invalid magic bytes")

// Common holds the fields shared by every header variant.
type Common struct {
	Length         uint32
	Version        string
	IDKaraoke      uint32
	AdpcmOffset    uint32
	EncryptionMode uint32
}

// Header is implemented by every variant: YKS, MMT, MMK, SPR, DIO, and
// the Generic fallback used when the optional-data length doesn't
// match any known variant.
type Header interface {
	CommonFields() Common
	SetCommonFields(Common)
	OptionalData() []byte
}

// ParseFixedPart parses exactly FixedPartLength bytes (already
// descrambled, if applicable) into Common plus the optional-data length
// that follows it.
func ParseFixedPart(fixed []byte) (Common, uint32, error) {
	if len(fixed) != FixedPartLength {
		return Common{}, 0, errors.Errorf("header: fixed part must be %d bytes", FixedPartLength)
	}
	var magic [4]byte
	copy(magic[:], fixed[0:4])
	if magic != MagicBytes {
		return Common{}, 0, ErrBadMagic
	}

	c := Common{
		Length:         binary.BigEndian.Uint32(fixed[4:8]),
		Version:        strings.TrimRight(string(fixed[8:24]), "\x00"),
		IDKaraoke:      binary.BigEndian.Uint32(fixed[24:28]),
		AdpcmOffset:    binary.BigEndian.Uint32(fixed[28:32]),
		EncryptionMode: binary.BigEndian.Uint32(fixed[32:36]),
	}
	optionalDataLength := binary.BigEndian.Uint32(fixed[36:40])
	return c, optionalDataLength, nil
}

// FromOptionalData builds the variant Header selected by the length of
// optionalData (already descrambled, if applicable).
func FromOptionalData(c Common, optionalData []byte) Header {
	switch len(optionalData) {
	case 0:
		return &YKS{Common: c}
	case 12:
		h := mmtFromOptionalData(c, optionalData)
		return &h
	case 20:
		h := mmkFromOptionalData(c, optionalData)
		return &h
	case 24:
		h := sprFromOptionalData(c, optionalData)
		return &h
	case 32:
		h := dioFromOptionalData(c, optionalData)
		return &h
	default:
		return &Generic{Common: c, OptionalDataBytes: optionalData}
	}
}

func readCommon(r io.Reader) (Common, []byte, error) {
	fixed := make([]byte, FixedPartLength)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return Common{}, nil, errors.Wrap(err, "header: read fixed part")
	}
	c, optionalDataLength, err := ParseFixedPart(fixed)
	if err != nil {
		return Common{}, nil, err
	}

	optionalData := make([]byte, optionalDataLength)
	if _, err := io.ReadFull(r, optionalData); err != nil {
		return Common{}, nil, errors.Wrap(err, "header: read optional data")
	}
	return c, optionalData, nil
}

func writeCommon(w io.Writer, c Common, optionalData []byte) error {
	buf := make([]byte, FixedPartLength)
	copy(buf[0:4], MagicBytes[:])
	binary.BigEndian.PutUint32(buf[4:8], c.Length)
	versionBytes := make([]byte, 16)
	copy(versionBytes, []byte(c.Version))
	copy(buf[8:24], versionBytes)
	binary.BigEndian.PutUint32(buf[24:28], c.IDKaraoke)
	binary.BigEndian.PutUint32(buf[28:32], c.AdpcmOffset)
	binary.BigEndian.PutUint32(buf[32:36], c.EncryptionMode)
	binary.BigEndian.PutUint32(buf[36:40], uint32(len(optionalData)))

	if _, err := w.Write(buf); err != nil {
		return errors.Wrap(err, "header: write fixed part")
	}
	if _, err := w.Write(optionalData); err != nil {
		return errors.Wrap(err, "header: write optional data")
	}
	return nil
}

// Write serializes h: its common fields followed by its variant-specific
// optional data.
func Write(w io.Writer, h Header) error {
	return writeCommon(w, h.CommonFields(), h.OptionalData())
}

// Generic is the fallback variant used when optional data doesn't match
// any known length -- the original payload is kept verbatim so it can
// still round-trip.
type Generic struct {
	Common
	OptionalDataBytes []byte
}

func (g Generic) CommonFields() Common      { return g.Common }
func (g *Generic) SetCommonFields(c Common) { g.Common = c }
func (g Generic) OptionalData() []byte      { return g.OptionalDataBytes }

// YKS is the bare variant: no optional data.
type YKS struct {
	Common
}

func (h YKS) CommonFields() Common      { return h.Common }
func (h *YKS) SetCommonFields(c Common) { h.Common = c }
func (h YKS) OptionalData() []byte      { return nil }

// MMT carries the MMT chunk-length/CRC tail.
type MMT struct {
	Common
	YksChunksLength uint32
	MmtChunksLength uint32
	YksChunksCRC    uint16
	CRC             uint16
}

func (h MMT) CommonFields() Common      { return h.Common }
func (h *MMT) SetCommonFields(c Common) { h.Common = c }

func (h MMT) OptionalData() []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint32(buf[0:4], h.YksChunksLength)
	binary.BigEndian.PutUint32(buf[4:8], h.MmtChunksLength)
	binary.BigEndian.PutUint16(buf[8:10], h.YksChunksCRC)
	binary.BigEndian.PutUint16(buf[10:12], h.CRC)
	return buf
}

func mmtFromOptionalData(c Common, d []byte) MMT {
	return MMT{
		Common:          c,
		YksChunksLength: binary.BigEndian.Uint32(d[0:4]),
		MmtChunksLength: binary.BigEndian.Uint32(d[4:8]),
		YksChunksCRC:    binary.BigEndian.Uint16(d[8:10]),
		CRC:             binary.BigEndian.Uint16(d[10:12]),
	}
}

// MMK carries the MMK chunk-length/CRC tail, with 2 bytes of trailing
// padding.
type MMK struct {
	Common
	YksChunksLength uint32
	MmtChunksLength uint32
	MmkChunksLength uint32
	YksChunksCRC    uint16
	YksMmtChunksCRC uint16
	CRC             uint16
}

func (h MMK) CommonFields() Common      { return h.Common }
func (h *MMK) SetCommonFields(c Common) { h.Common = c }

// OptionalData lays out MMK's fields cumulatively on top of MMT's
// 12-byte layout (YksChunksLength, MmtChunksLength, YksChunksCRC, CRC
// occupy the same first 12 bytes as a plain MMT header), followed by
// the two fields MMK adds and a 2-byte pad.
func (h MMK) OptionalData() []byte {
	buf := make([]byte, 20)
	binary.BigEndian.PutUint32(buf[0:4], h.YksChunksLength)
	binary.BigEndian.PutUint32(buf[4:8], h.MmtChunksLength)
	binary.BigEndian.PutUint16(buf[8:10], h.YksChunksCRC)
	binary.BigEndian.PutUint16(buf[10:12], h.CRC)
	binary.BigEndian.PutUint32(buf[12:16], h.MmkChunksLength)
	binary.BigEndian.PutUint16(buf[16:18], h.YksMmtChunksCRC)
	return buf
}

func mmkFromOptionalData(c Common, d []byte) MMK {
	return MMK{
		Common:          c,
		YksChunksLength: binary.BigEndian.Uint32(d[0:4]),
		MmtChunksLength: binary.BigEndian.Uint32(d[4:8]),
		YksChunksCRC:    binary.BigEndian.Uint16(d[8:10]),
		CRC:             binary.BigEndian.Uint16(d[10:12]),
		MmkChunksLength: binary.BigEndian.Uint32(d[12:16]),
		YksMmtChunksCRC: binary.BigEndian.Uint16(d[16:18]),
	}
}

// SPR carries the SPR chunk-length/CRC tail.
type SPR struct {
	Common
	YksChunksLength    uint32
	MmtChunksLength    uint32
	MmkChunksLength    uint32
	SprChunksLength    uint32
	YksChunksCRC       uint16
	YksMmtChunksCRC    uint16
	YksMmtMmkChunksCRC uint16
	CRC                uint16
}

func (h SPR) CommonFields() Common      { return h.Common }
func (h *SPR) SetCommonFields(c Common) { h.Common = c }

// OptionalData continues MMK's 18-byte unpadded layout (MMK's own
// trailing 2-byte pad is dropped here) with SPR's two new fields; SPR
// carries no trailing pad of its own.
func (h SPR) OptionalData() []byte {
	buf := make([]byte, 24)
	binary.BigEndian.PutUint32(buf[0:4], h.YksChunksLength)
	binary.BigEndian.PutUint32(buf[4:8], h.MmtChunksLength)
	binary.BigEndian.PutUint16(buf[8:10], h.YksChunksCRC)
	binary.BigEndian.PutUint16(buf[10:12], h.CRC)
	binary.BigEndian.PutUint32(buf[12:16], h.MmkChunksLength)
	binary.BigEndian.PutUint16(buf[16:18], h.YksMmtChunksCRC)
	binary.BigEndian.PutUint32(buf[18:22], h.SprChunksLength)
	binary.BigEndian.PutUint16(buf[22:24], h.YksMmtMmkChunksCRC)
	return buf
}

func sprFromOptionalData(c Common, d []byte) SPR {
	return SPR{
		Common:             c,
		YksChunksLength:    binary.BigEndian.Uint32(d[0:4]),
		MmtChunksLength:    binary.BigEndian.Uint32(d[4:8]),
		YksChunksCRC:       binary.BigEndian.Uint16(d[8:10]),
		CRC:                binary.BigEndian.Uint16(d[10:12]),
		MmkChunksLength:    binary.BigEndian.Uint32(d[12:16]),
		YksMmtChunksCRC:    binary.BigEndian.Uint16(d[16:18]),
		SprChunksLength:    binary.BigEndian.Uint32(d[18:22]),
		YksMmtMmkChunksCRC: binary.BigEndian.Uint16(d[22:24]),
	}
}

// DIO carries the DIO chunk-length/CRC tail, with 2 bytes of trailing
// padding.
type DIO struct {
	Common
	YksChunksLength       uint32
	MmtChunksLength       uint32
	MmkChunksLength       uint32
	SprChunksLength       uint32
	DioChunksLength       uint32
	YksChunksCRC          uint16
	YksMmtChunksCRC       uint16
	YksMmtMmkChunksCRC    uint16
	YksMmtMmkSprChunksCRC uint16
	CRC                   uint16
}

func (h DIO) CommonFields() Common      { return h.Common }
func (h *DIO) SetCommonFields(c Common) { h.Common = c }

// OptionalData continues SPR's 24-byte unpadded layout with DIO's two
// new fields and DIO's own trailing 2-byte pad.
func (h DIO) OptionalData() []byte {
	buf := make([]byte, 32)
	binary.BigEndian.PutUint32(buf[0:4], h.YksChunksLength)
	binary.BigEndian.PutUint32(buf[4:8], h.MmtChunksLength)
	binary.BigEndian.PutUint16(buf[8:10], h.YksChunksCRC)
	binary.BigEndian.PutUint16(buf[10:12], h.CRC)
	binary.BigEndian.PutUint32(buf[12:16], h.MmkChunksLength)
	binary.BigEndian.PutUint16(buf[16:18], h.YksMmtChunksCRC)
	binary.BigEndian.PutUint32(buf[18:22], h.SprChunksLength)
	binary.BigEndian.PutUint16(buf[22:24], h.YksMmtMmkChunksCRC)
	binary.BigEndian.PutUint32(buf[24:28], h.DioChunksLength)
	binary.BigEndian.PutUint16(buf[28:30], h.YksMmtMmkSprChunksCRC)
	return buf
}

func dioFromOptionalData(c Common, d []byte) DIO {
	return DIO{
		Common:                c,
		YksChunksLength:       binary.BigEndian.Uint32(d[0:4]),
		MmtChunksLength:       binary.BigEndian.Uint32(d[4:8]),
		YksChunksCRC:          binary.BigEndian.Uint16(d[8:10]),
		CRC:                   binary.BigEndian.Uint16(d[10:12]),
		MmkChunksLength:       binary.BigEndian.Uint32(d[12:16]),
		YksMmtChunksCRC:       binary.BigEndian.Uint16(d[16:18]),
		SprChunksLength:       binary.BigEndian.Uint32(d[18:22]),
		YksMmtMmkChunksCRC:    binary.BigEndian.Uint16(d[22:24]),
		DioChunksLength:       binary.BigEndian.Uint32(d[24:28]),
		YksMmtMmkSprChunksCRC: binary.BigEndian.Uint16(d[28:30]),
	}
}

// Read reads a header from r, dispatching to the variant selected by
// the fixed part's optional_data_length.
func Read(r io.Reader) (Header, error) {
	c, optionalData, err := readCommon(r)
	if err != nil {
		return nil, err
	}
	return FromOptionalData(c, optionalData), nil
}

// ReadBytes is a convenience wrapper around Read for an in-memory
// buffer.
func ReadBytes(b []byte) (Header, int, error) {
	r := bytes.NewReader(b)
	h, err := Read(r)
	if err != nil {
		return nil, 0, err
	}
	return h, len(b) - r.Len(), nil
}
