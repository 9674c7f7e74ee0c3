/*
NAME
  ptrackinfo.go

DESCRIPTION
  ptrackinfo.go implements the YPTI (P-track info) chunk: per-P-track
  channel routing, grouping, and alternative-CC remap tables consumed by
  the fan-out engine in ptrack.go.

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

// YPTIID is the chunk id of a non-extended P-track info chunk.
var YPTIID = [4]byte{'Y', 'P', 'T', 'I'}

// ChannelInfo is one channel's entry in a PTrackInfoEntry: which ports
// it fans out to, and the alternative-CC remap targets for the 0xA0/0xC0
// compact status forms.
type ChannelInfo struct {
	Attribute       byte
	Ports           uint16
	ControlChangeAx byte
	ControlChangeCx byte
}

// IsChorus reports whether this channel is a chorus part.
func (c ChannelInfo) IsChorus() bool { return c.Attribute&0x01 != 0x01 }

// IsGuideMelody reports whether this channel is a guide melody part.
func (c ChannelInfo) IsGuideMelody() bool { return c.Attribute&0x80 != 0x80 }

func readChannelInfo(r *bytes.Reader) (ChannelInfo, error) {
	var buf [4]byte
	if _, err := r.Read(buf[:]); err != nil {
		return ChannelInfo{}, errors.Wrap(err, "ptrackinfo: read channel info")
	}
	return ChannelInfo{
		Attribute:       buf[0],
		Ports:           uint16(buf[1]),
		ControlChangeAx: buf[2],
		ControlChangeCx: buf[3],
	}, nil
}

func (c ChannelInfo) write(buf *bytes.Buffer) {
	buf.WriteByte(c.Attribute)
	buf.WriteByte(byte(c.Ports))
	buf.WriteByte(c.ControlChangeAx)
	buf.WriteByte(c.ControlChangeCx)
}

// PTrackInfoEntry describes the routing for one logical P-track.
type PTrackInfoEntry struct {
	TrackNumber          byte
	TrackStatus          byte
	UseChannelGroupFlag  uint16
	DefaultChannelGroups [16]uint16
	ChannelGroups        [16]uint16
	ChannelInfo          [16]ChannelInfo
	SystemExPorts        uint16
}

// IsLosslessTrack reports whether this track's durations are stored
// without the x4 expansion multiplier.
func (e PTrackInfoEntry) IsLosslessTrack() bool { return e.TrackStatus&0x80 == 0x80 }

func readPTrackInfoEntry(r *bytes.Reader) (PTrackInfoEntry, error) {
	var e PTrackInfoEntry
	var header [4]byte
	if _, err := r.Read(header[:]); err != nil {
		return e, errors.Wrap(err, "ptrackinfo: read entry header")
	}
	e.TrackNumber = header[0]
	e.TrackStatus = header[1]
	e.UseChannelGroupFlag = binary.BigEndian.Uint16(header[2:4])

	for i := 0; i < 16; i++ {
		if e.UseChannelGroupFlag&(1<<uint(i)) == 0 {
			e.DefaultChannelGroups[i] = 0
			continue
		}
		var b [2]byte
		if _, err := r.Read(b[:]); err != nil {
			return e, errors.Wrap(err, "ptrackinfo: read default channel group")
		}
		e.DefaultChannelGroups[i] = binary.BigEndian.Uint16(b[:])
	}

	for i := 0; i < 16; i++ {
		var b [2]byte
		if _, err := r.Read(b[:]); err != nil {
			return e, errors.Wrap(err, "ptrackinfo: read channel group")
		}
		e.ChannelGroups[i] = binary.BigEndian.Uint16(b[:])
	}

	for i := 0; i < 16; i++ {
		ci, err := readChannelInfo(r)
		if err != nil {
			return e, err
		}
		e.ChannelInfo[i] = ci
	}

	var portsBuf [2]byte
	if _, err := r.Read(portsBuf[:]); err != nil {
		return e, errors.Wrap(err, "ptrackinfo: read system_ex_ports")
	}
	// system_ex_ports is stored little-endian by the reference format,
	// unlike every other multi-byte field in this entry.
	e.SystemExPorts = binary.LittleEndian.Uint16(portsBuf[:])

	return e, nil
}

func (e PTrackInfoEntry) write(buf *bytes.Buffer) {
	buf.WriteByte(e.TrackNumber)
	buf.WriteByte(e.TrackStatus)
	var flagBuf [2]byte
	binary.BigEndian.PutUint16(flagBuf[:], e.UseChannelGroupFlag)
	buf.Write(flagBuf[:])

	for i := 0; i < 16; i++ {
		if e.UseChannelGroupFlag&(1<<uint(i)) == 0 {
			continue
		}
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
	var portsBuf [2]byte
	binary.LittleEndian.PutUint16(portsBuf[:], e.SystemExPorts)
	buf.Write(portsBuf[:])
}

// PTrackInfoChunk is the YPTI chunk: a list of PTrackInfoEntry, indexed
// by track number.
type PTrackInfoChunk struct {
	Entries []PTrackInfoEntry
}

// EntryByTrackNumber finds the entry for the given track number.
func (c PTrackInfoChunk) EntryByTrackNumber(trackNumber byte) (PTrackInfoEntry, error) {
	for _, e := range c.Entries {
		if e.TrackNumber == trackNumber {
			return e, nil
		}
	}
	return PTrackInfoEntry{}, errors.Errorf("ptrackinfo: no entry for track %d", trackNumber)
}

// ParsePTrackInfoChunk parses a YPTI chunk payload.
func ParsePTrackInfoChunk(g chunk.Generic) (PTrackInfoChunk, error) {
	r := bytes.NewReader(g.Payload)
	var countBuf [2]byte
	if _, err := r.Read(countBuf[:]); err != nil {
		return PTrackInfoChunk{}, errors.Wrap(err, "ptrackinfo: read entry count")
	}
	count := binary.BigEndian.Uint16(countBuf[:])

	entries := make([]PTrackInfoEntry, 0, count)
	for i := uint16(0); i < count; i++ {
		e, err := readPTrackInfoEntry(r)
		if err != nil {
			return PTrackInfoChunk{}, err
		}
		entries = append(entries, e)
	}
	return PTrackInfoChunk{Entries: entries}, nil
}

// Payload serializes the chunk back to its wire form.
func (c PTrackInfoChunk) Payload() []byte {
	var buf bytes.Buffer
	var countBuf [2]byte
	binary.BigEndian.PutUint16(countBuf[:], uint16(len(c.Entries)))
	buf.Write(countBuf[:])
	for _, e := range c.Entries {
		e.write(&buf)
	}
	return buf.Bytes()
}

// Generic serializes the chunk to a generic wire chunk.
func (c PTrackInfoChunk) Generic() chunk.Generic {
	return chunk.Generic{ID: YPTIID, Payload: c.Payload()}
}
