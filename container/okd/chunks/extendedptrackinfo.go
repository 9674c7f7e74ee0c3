/*
NAME
  extendedptrackinfo.go

DESCRIPTION
  extendedptrackinfo.go implements the YPXI (extended P-track info)
  chunk, used once a song needs more than two P-tracks: wider channel
  info records and unconditional (never bit-gated) channel-group tables.

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

	"github.com/pkg/errors"

	"github.com/Xi80/dam-song-tools-oss/container/okd/chunk"
)

// YPXIID is the chunk id of an extended P-track info chunk.
var YPXIID = [4]byte{'Y', 'P', 'X', 'I'}

// ExtendedChannelInfo is the wider, 8-byte channel info record carried
// by the extended P-track info chunk. Its attribute bit layout differs
// from the non-extended ChannelInfo.
type ExtendedChannelInfo struct {
	Attribute       uint16 // Little-endian on the wire.
	Ports           uint16
	Unknown0        uint16
	ControlChangeAx byte
	ControlChangeCx byte
}

// IsChorus reports whether this channel is a chorus part.
func (c ExtendedChannelInfo) IsChorus() bool { return c.Attribute&0x0080 != 0x0080 }

// IsGuideMelody reports whether this channel is a guide melody part.
func (c ExtendedChannelInfo) IsGuideMelody() bool { return c.Attribute&0x0100 == 0x0100 }

func readExtendedChannelInfo(r *bytes.Reader) (ExtendedChannelInfo, error) {
	var buf [8]byte
	if _, err := r.Read(buf[:]); err != nil {
		return ExtendedChannelInfo{}, errors.Wrap(err, "extendedptrackinfo: read channel info")
	}
	return ExtendedChannelInfo{
		Attribute:       binary.LittleEndian.Uint16(buf[0:2]),
		Ports:           binary.BigEndian.Uint16(buf[2:4]),
		Unknown0:        binary.BigEndian.Uint16(buf[4:6]),
		ControlChangeAx: buf[6],
		ControlChangeCx: buf[7],
	}, nil
}

func (c ExtendedChannelInfo) write(buf *bytes.Buffer) {
	var b [8]byte
	binary.LittleEndian.PutUint16(b[0:2], c.Attribute)
	binary.BigEndian.PutUint16(b[2:4], c.Ports)
	binary.BigEndian.PutUint16(b[4:6], c.Unknown0)
	b[6] = c.ControlChangeAx
	b[7] = c.ControlChangeCx
	buf.Write(b[:])
}

// ExtendedPTrackInfoEntry is the per-track record of an extended
// P-track info chunk: the default-channel-group and channel-group
// tables are always present (unlike the non-extended entry, they are
// never gated by a presence flag).
type ExtendedPTrackInfoEntry struct {
	TrackNumber          byte
	TrackStatus          byte
	Unused0              uint16
	DefaultChannelGroups [16]uint16
	ChannelGroups        [16]uint16
	ChannelInfo          [16]ExtendedChannelInfo
	SystemExPorts        uint16
	Unknown0             uint16
}

// IsLosslessTrack reports whether this track's durations are stored
// without the x4 expansion multiplier.
func (e ExtendedPTrackInfoEntry) IsLosslessTrack() bool { return e.TrackStatus&0x80 == 0x80 }

func readExtendedPTrackInfoEntry(r *bytes.Reader) (ExtendedPTrackInfoEntry, error) {
	var e ExtendedPTrackInfoEntry
	var header [4]byte
	if _, err := r.Read(header[:]); err != nil {
		return e, errors.Wrap(err, "extendedptrackinfo: read entry header")
	}
	e.TrackNumber = header[0]
	e.TrackStatus = header[1]
	e.Unused0 = binary.BigEndian.Uint16(header[2:4])

	for i := 0; i < 16; i++ {
		var b [2]byte
		if _, err := r.Read(b[:]); err != nil {
			return e, errors.Wrap(err, "extendedptrackinfo: read default channel group")
		}
		e.DefaultChannelGroups[i] = binary.BigEndian.Uint16(b[:])
	}
	for i := 0; i < 16; i++ {
		var b [2]byte
		if _, err := r.Read(b[:]); err != nil {
			return e, errors.Wrap(err, "extendedptrackinfo: read channel group")
		}
		e.ChannelGroups[i] = binary.BigEndian.Uint16(b[:])
	}
	for i := 0; i < 16; i++ {
		ci, err := readExtendedChannelInfo(r)
		if err != nil {
			return e, err
		}
		e.ChannelInfo[i] = ci
	}

	var tail [4]byte
	if _, err := r.Read(tail[:]); err != nil {
		return e, errors.Wrap(err, "extendedptrackinfo: read tail")
	}
	e.SystemExPorts = binary.BigEndian.Uint16(tail[0:2])
	e.Unknown0 = binary.BigEndian.Uint16(tail[2:4])

	return e, nil
}

func (e ExtendedPTrackInfoEntry) write(buf *bytes.Buffer) {
	buf.WriteByte(e.TrackNumber)
	buf.WriteByte(e.TrackStatus)
	var unused [2]byte
	binary.BigEndian.PutUint16(unused[:], e.Unused0)
	buf.Write(unused[:])

	for i := 0; i < 16; i++ {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], e.DefaultChannelGroups[i])
		buf.Write(b[:])
	}
	for i := 0; i < 16; i++ {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], e.ChannelGroups[i])
		buf.Write(b[:])
	}
	for i := 0; i < 16; i++ {
		e.ChannelInfo[i].write(buf)
	}
	var tail [4]byte
	binary.BigEndian.PutUint16(tail[0:2], e.SystemExPorts)
	binary.BigEndian.PutUint16(tail[2:4], e.Unknown0)
	buf.Write(tail[:])
}

// ExtendedPTrackInfoChunk is the YPXI chunk.
type ExtendedPTrackInfoChunk struct {
	Unknown0 [8]byte
	TGMode   uint16
	Entries  []ExtendedPTrackInfoEntry
}

// EntryByTrackNumber finds the entry for the given track number.
func (c ExtendedPTrackInfoChunk) EntryByTrackNumber(trackNumber byte) (ExtendedPTrackInfoEntry, error) {
	for _, e := range c.Entries {
		if e.TrackNumber == trackNumber {
			return e, nil
		}
	}
	return ExtendedPTrackInfoEntry{}, errors.Errorf("extendedptrackinfo: no entry for track %d", trackNumber)
}

// ParseExtendedPTrackInfoChunk parses a YPXI chunk payload.
func ParseExtendedPTrackInfoChunk(g chunk.Generic) (ExtendedPTrackInfoChunk, error) {
	r := bytes.NewReader(g.Payload)
	var c ExtendedPTrackInfoChunk

	if _, err := r.Read(c.Unknown0[:]); err != nil {
		return c, errors.Wrap(err, "extendedptrackinfo: read unknown_0")
	}
	var tgModeBuf [2]byte
	if _, err := r.Read(tgModeBuf[:]); err != nil {
		return c, errors.Wrap(err, "extendedptrackinfo: read tg_mode")
	}
	c.TGMode = binary.BigEndian.Uint16(tgModeBuf[:])

	var countBuf [2]byte
	if _, err := r.Read(countBuf[:]); err != nil {
		return c, errors.Wrap(err, "extendedptrackinfo: read entry count")
	}
	count := binary.BigEndian.Uint16(countBuf[:])

	c.Entries = make([]ExtendedPTrackInfoEntry, 0, count)
	for i := uint16(0); i < count; i++ {
		e, err := readExtendedPTrackInfoEntry(r)
		if err != nil {
			return c, err
		}
		c.Entries = append(c.Entries, e)
	}
	return c, nil
}

// Payload serializes the chunk back to its wire form.
func (c ExtendedPTrackInfoChunk) Payload() []byte {
	var buf bytes.Buffer
	buf.Write(c.Unknown0[:])
	var tgModeBuf [2]byte
	binary.BigEndian.PutUint16(tgModeBuf[:], c.TGMode)
	buf.Write(tgModeBuf[:])
	var countBuf [2]byte
	binary.BigEndian.PutUint16(countBuf[:], uint16(len(c.Entries)))
	buf.Write(countBuf[:])
	for _, e := range c.Entries {
		e.write(&buf)
	}
	return buf.Bytes()
}

// Generic serializes the chunk to a generic wire chunk.
func (c ExtendedPTrackInfoChunk) Generic() chunk.Generic {
	return chunk.Generic{ID: YPXIID, Payload: c.Payload()}
}
