/*
NAME
  smf.go

DESCRIPTION
  smf.go implements a Standard MIDI File (SMF format 1) reader and
  writer: the MThd/MTrk chunk framing, standard 7-bit variable-length
  delta times, and the channel-voice/meta/sysex event set the MIDI⇄OKD
  converters exchange with.

AUTHOR
  Xi80 <xi80@dam-song-tools-oss>

LICENSE
  Copyright (C) 2026 the dam-song-tools-oss authors. All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the dam-song-tools-oss authors.
*/

// Package smf implements just enough of the Standard MIDI File format
// to serve as the MIDI⇄OKD conversion layer's exchange format: format-1
// multi-track files, standard delta-time framing, and the
// channel-voice/meta/sysex events the converters produce and consume.
//
// This is the one codec in the module with no teacher-repo analog --
// none of the example repos ship an SMF reader/writer -- so its framing
// loop is modeled on container/okd/chunk's length-prefixed read loop
// (peek the header, read the declared length, hand back a typed
// record) rather than on any third-party MIDI library. See DESIGN.md.
package smf

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"

	"github.com/pkg/errors"
)

// Meta event types used by this package.
const (
	MetaSequenceNumber = 0x00
	MetaText           = 0x01
	MetaTrackName      = 0x03
	MetaMIDIPort       = 0x21
	MetaEndOfTrack     = 0x2F
	MetaSetTempo       = 0x51
	MetaTimeSignature  = 0x58
)

// Event status nibbles for channel-voice messages.
const (
	StatusNoteOff         = 0x80
	StatusNoteOn          = 0x90
	StatusPolyAftertouch  = 0xA0
	StatusControlChange   = 0xB0
	StatusProgramChange   = 0xC0
	StatusChannelPressure = 0xD0
	StatusPitchBend       = 0xE0
	StatusSysEx           = 0xF0
	StatusMeta            = 0xFF
)

// ErrInvalidFile is returned when the MThd/MTrk framing is malformed.
var ErrInvalidFile = errors.New("smf: invalid MIDI file")

// Event is one timed SMF event, either a channel-voice message, a
// SysEx message, or a meta event.
type Event struct {
	DeltaTicks uint32

	// Status is the full status byte for channel-voice events and
	// StatusSysEx/StatusMeta for the other two kinds.
	Status byte

	// Channel-voice fields.
	Data1, Data2 byte

	// MetaType is valid when Status == StatusMeta.
	MetaType byte

	// Bytes carries a SysEx payload (without the leading 0xF0, including
	// the trailing 0xF7) or a meta event's payload.
	Bytes []byte
}

// IsNoteOn reports whether e is a note-on with a non-zero velocity (a
// note-on with velocity 0 is a note-off in disguise, per the standard).
func (e Event) IsNoteOn() bool {
	return e.Status&0xF0 == StatusNoteOn && e.Data2 != 0
}

// IsNoteOff reports whether e is a note-off, including a velocity-0
// note-on.
func (e Event) IsNoteOff() bool {
	return e.Status&0xF0 == StatusNoteOff || (e.Status&0xF0 == StatusNoteOn && e.Data2 == 0)
}

// Channel returns the channel-voice event's channel number (0-15). Only
// meaningful when Status is a channel-voice status.
func (e Event) Channel() int { return int(e.Status & 0x0F) }

// Track is a sequence of events with delta-time framing relative to
// each other.
type Track []Event

// File is a parsed format-1 Standard MIDI File.
type File struct {
	TicksPerBeat uint16
	Tracks       []Track
}

// NewFile returns an empty format-1 file at the given ticks-per-beat
// resolution.
func NewFile(ticksPerBeat uint16) *File {
	return &File{TicksPerBeat: ticksPerBeat}
}

// readVLQ reads one standard 7-bit MIDI variable-length quantity: each
// byte contributes 7 bits, most significant byte first, continuation
// signaled by bit 7.
func readVLQ(r *bytes.Reader) (uint32, error) {
	var value uint32
	for i := 0; i < 4; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, errors.Wrap(err, "smf: read VLQ")
		}
		value = value<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			return value, nil
		}
	}
	return 0, errors.Wrap(ErrInvalidFile, "VLQ longer than 4 bytes")
}

func writeVLQ(w *bytes.Buffer, value uint32) error {
	buf := []byte{byte(value & 0x7F)}
	value >>= 7
	for value > 0 {
		buf = append([]byte{byte(value&0x7F) | 0x80}, buf...)
		value >>= 7
	}
	_, err := w.Write(buf)
	return err
}

// Read parses a format-0 or format-1 SMF stream.
func Read(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "smf: read input")
	}
	br := bytes.NewReader(data)

	if err := expectChunkID(br, "MThd"); err != nil {
		return nil, err
	}
	hdrLen, err := readUint32(br)
	if err != nil {
		return nil, err
	}
	if hdrLen < 6 {
		return nil, errors.Wrap(ErrInvalidFile, "MThd too short")
	}
	hdrBody := make([]byte, hdrLen)
	if _, err := io.ReadFull(br, hdrBody); err != nil {
		return nil, errors.Wrap(err, "smf: read MThd body")
	}
	numTracks := binary.BigEndian.Uint16(hdrBody[2:4])
	ticksPerBeat := binary.BigEndian.Uint16(hdrBody[4:6])

	f := &File{TicksPerBeat: ticksPerBeat}
	for i := uint16(0); i < numTracks; i++ {
		track, err := readTrack(br)
		if err != nil {
			return nil, err
		}
		f.Tracks = append(f.Tracks, track)
	}
	return f, nil
}

func expectChunkID(r *bytes.Reader, want string) error {
	got := make([]byte, 4)
	if _, err := io.ReadFull(r, got); err != nil {
		return errors.Wrapf(err, "smf: read chunk id (want %s)", want)
	}
	if string(got) != want {
		return errors.Wrapf(ErrInvalidFile, "chunk id %q, want %q", got, want)
	}
	return nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, errors.Wrap(err, "smf: read length")
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func readTrack(r *bytes.Reader) (Track, error) {
	if err := expectChunkID(r, "MTrk"); err != nil {
		return nil, err
	}
	length, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errors.Wrap(err, "smf: read MTrk body")
	}
	tr := bytes.NewReader(body)

	var track Track
	var runningStatus byte
	for tr.Len() > 0 {
		delta, err := readVLQ(tr)
		if err != nil {
			return nil, err
		}
		statusByte, err := tr.ReadByte()
		if err != nil {
			return nil, errors.Wrap(err, "smf: read event status")
		}
		if statusByte&0x80 == 0 {
			// Running status: this byte is actually the first data byte.
			if err := tr.UnreadByte(); err != nil {
				return nil, err
			}
			statusByte = runningStatus
		} else {
			runningStatus = statusByte
		}

		e := Event{DeltaTicks: delta, Status: statusByte}
		switch {
		case statusByte == StatusMeta:
			metaType, err := tr.ReadByte()
			if err != nil {
				return nil, errors.Wrap(err, "smf: read meta type")
			}
			metaLen, err := readVLQ(tr)
			if err != nil {
				return nil, err
			}
			payload := make([]byte, metaLen)
			if _, err := io.ReadFull(tr, payload); err != nil {
				return nil, errors.Wrap(err, "smf: read meta payload")
			}
			e.MetaType = metaType
			e.Bytes = payload

		case statusByte == StatusSysEx || statusByte == 0xF7:
			length, err := readVLQ(tr)
			if err != nil {
				return nil, err
			}
			payload := make([]byte, length)
			if _, err := io.ReadFull(tr, payload); err != nil {
				return nil, errors.Wrap(err, "smf: read sysex payload")
			}
			e.Bytes = payload

		default:
			e.Data1, err = tr.ReadByte()
			if err != nil {
				return nil, errors.Wrap(err, "smf: read data1")
			}
			if statusByte&0xF0 != StatusProgramChange && statusByte&0xF0 != StatusChannelPressure {
				e.Data2, err = tr.ReadByte()
				if err != nil {
					return nil, errors.Wrap(err, "smf: read data2")
				}
			}
		}

		track = append(track, e)
	}
	return track, nil
}

// Write serializes f as a format-1 SMF stream, or as format 0 when f
// has at most one track. Every event is written with its full status
// byte; running status is not used on output.
func Write(w io.Writer, f *File) error {
	var hdr bytes.Buffer
	hdr.WriteString("MThd")
	writeBigEndianUint32(&hdr, 6)
	format := uint16(1)
	if len(f.Tracks) <= 1 {
		format = 0
	}
	writeBigEndianUint16(&hdr, format)
	writeBigEndianUint16(&hdr, uint16(len(f.Tracks)))
	writeBigEndianUint16(&hdr, f.TicksPerBeat)
	if _, err := w.Write(hdr.Bytes()); err != nil {
		return errors.Wrap(err, "smf: write header")
	}

	for _, track := range f.Tracks {
		var body bytes.Buffer
		for _, e := range track {
			writeVLQ(&body, e.DeltaTicks)
			switch {
			case e.Status == StatusMeta:
				body.WriteByte(StatusMeta)
				body.WriteByte(e.MetaType)
				writeVLQ(&body, uint32(len(e.Bytes)))
				body.Write(e.Bytes)
			case e.Status == StatusSysEx:
				body.WriteByte(StatusSysEx)
				writeVLQ(&body, uint32(len(e.Bytes)))
				body.Write(e.Bytes)
			default:
				body.WriteByte(e.Status)
				body.WriteByte(e.Data1)
				if e.Status&0xF0 != StatusProgramChange && e.Status&0xF0 != StatusChannelPressure {
					body.WriteByte(e.Data2)
				}
			}
		}

		var trackBuf bytes.Buffer
		trackBuf.WriteString("MTrk")
		writeBigEndianUint32(&trackBuf, uint32(body.Len()))
		trackBuf.Write(body.Bytes())
		if _, err := w.Write(trackBuf.Bytes()); err != nil {
			return errors.Wrap(err, "smf: write track")
		}
	}
	return nil
}

func writeBigEndianUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeBigEndianUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

// AbsoluteEvent pairs an Event with its absolute tick position, the
// form the converters build and sort events in before re-deriving
// delta times per track.
type AbsoluteEvent struct {
	Ticks int64
	Event Event
}

// DeltaEncode stable-sorts events by absolute tick and converts them to
// a delta-time-framed Track.
func DeltaEncode(events []AbsoluteEvent) Track {
	sort.SliceStable(events, func(i, j int) bool { return events[i].Ticks < events[j].Ticks })

	track := make(Track, 0, len(events))
	var last int64
	for _, ae := range events {
		e := ae.Event
		e.DeltaTicks = uint32(ae.Ticks - last)
		last = ae.Ticks
		track = append(track, e)
	}
	return track
}

// AbsoluteTimes walks a Track's delta times and returns each event's
// absolute tick position alongside it.
func AbsoluteTimes(track Track) []AbsoluteEvent {
	out := make([]AbsoluteEvent, 0, len(track))
	var t int64
	for _, e := range track {
		t += int64(e.DeltaTicks)
		out = append(out, AbsoluteEvent{Ticks: t, Event: e})
	}
	return out
}

// TrackPortChannel is a 64-track grid index: each of the four P-track
// ports carries 16 channels, matching spec.md §4.9's "PORTS ×
// CHANNELS_PER_PORT = 64 tracks".
func TrackPortChannel(port, channel int) int { return port*16 + channel }

// MetaTrack returns the first track containing only meta events (no
// channel-voice or sysex messages), the SMF convention this package's
// callers use for the track carrying tempo/time-signature/port-less
// structural data.
func MetaTrack(tracks []Track) (Track, bool) {
	for _, t := range tracks {
		onlyMeta := true
		for _, e := range t {
			if e.Status != StatusMeta {
				onlyMeta = false
				break
			}
		}
		if onlyMeta {
			return t, true
		}
	}
	return nil, false
}

// TrackByPortChannel finds the track whose events declare the given
// MIDI port (via a MetaMIDIPort event) and whose channel-voice events
// use the given channel.
func TrackByPortChannel(tracks []Track, port, channel int) (Track, bool) {
	for _, t := range tracks {
		declaredPort := -1
		matchesChannel := false
		for _, e := range t {
			if e.Status == StatusMeta && e.MetaType == MetaMIDIPort && len(e.Bytes) == 1 {
				declaredPort = int(e.Bytes[0])
			}
			if e.Status >= 0x80 && e.Status < 0xF0 && e.Channel() == channel {
				matchesChannel = true
			}
		}
		if declaredPort == port && matchesChannel {
			return t, true
		}
	}
	return nil, false
}
