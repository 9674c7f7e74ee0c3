/*
NAME
  mtrack.go

DESCRIPTION
  mtrack.go implements the M-track event stream (id "\xffMR<n>") and the
  fold of its absolute-time events into an MTrackInterpretation: the
  tempo map, time signatures, hooks, song section, ADPCM gates, and
  guide-melody delimiters a song carries as structural markers rather
  than audible MIDI.

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
	"bufio"
	"bytes"
	"math"

	"github.com/pkg/errors"

	"github.com/Xi80/dam-song-tools-oss/codec/varint"
	"github.com/Xi80/dam-song-tools-oss/container/okd/chunk"
)

// mtrackDataByteCount reports the fixed data-byte count for M-track
// status bytes that aren't the SysEx-like 0xFF form or the end-of-track
// marker, which are parsed separately.
func mtrackDataByteCount(statusByte byte) (int, bool) {
	switch statusByte {
	case 0xF1, 0xF2, 0xF5:
		return 0, true
	case 0xF3, 0xF4, 0xF6, 0xF8:
		return 1, true
	}
	return 0, false
}

// MTrackEvent is a single stored M-track event.
type MTrackEvent struct {
	DeltaTime  uint32
	StatusByte byte
	DataBytes  []byte
}

// IsEndOfTrack reports whether this is the trailing all-zero marker.
func (e MTrackEvent) IsEndOfTrack() bool { return e.StatusByte == 0x00 }

// ReadMTrackEvent reads one event from r.
func ReadMTrackEvent(r *bufio.Reader) (MTrackEvent, error) {
	deltaTime, err := varint.ReadExtended(r)
	if err != nil {
		return MTrackEvent{}, errors.Wrap(err, "mtrack: read delta time")
	}

	statusByte, err := r.ReadByte()
	if err != nil {
		return MTrackEvent{}, errors.Wrap(err, "mtrack: read status byte")
	}

	event := MTrackEvent{DeltaTime: deltaTime, StatusByte: statusByte}

	switch {
	case statusByte == 0x00:
		tail := make([]byte, 3)
		if _, err := readFullBuf(r, tail); err != nil {
			return MTrackEvent{}, errors.Wrap(err, "mtrack: read end-of-track tail")
		}
		event.DataBytes = tail

	case statusByte == 0xFF:
		data, err := readUntilHighBit(r, 0xFE)
		if err != nil {
			return MTrackEvent{}, err
		}
		event.DataBytes = data

	default:
		n, ok := mtrackDataByteCount(statusByte)
		if !ok {
			return MTrackEvent{}, errors.Wrapf(ErrUnknownStatus, "status=%#x", statusByte)
		}
		data := make([]byte, n)
		if n > 0 {
			if _, err := readFullBuf(r, data); err != nil {
				return MTrackEvent{}, errors.Wrap(err, "mtrack: read data bytes")
			}
		}
		event.DataBytes = data
	}

	return event, nil
}

func readFullBuf(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Write serializes the event back to its stream form.
func (e MTrackEvent) Write(w *bytes.Buffer) error {
	if err := varint.WriteExtended(w, e.DeltaTime); err != nil {
		return err
	}
	w.WriteByte(e.StatusByte)
	w.Write(e.DataBytes)
	if e.StatusByte == 0xFF {
		w.WriteByte(0xFE)
	}
	return nil
}

// MTrackChunk is a "\xffMR<n>" chunk: the master track of structural
// markers.
type MTrackChunk struct {
	ChunkNumber byte
	Events      []MTrackEvent
}

// IsMTrackID reports whether id is an M-track chunk id ("\xffMR...").
func IsMTrackID(id [4]byte) bool { return id[0] == 0xFF && id[1] == 'M' && id[2] == 'R' }

// ParseMTrackChunk parses a "\xffMR<n>" chunk.
func ParseMTrackChunk(g chunk.Generic) (MTrackChunk, error) {
	r := bufio.NewReader(bytes.NewReader(g.Payload))
	var events []MTrackEvent
	for {
		e, err := ReadMTrackEvent(r)
		if err != nil {
			return MTrackChunk{}, err
		}
		events = append(events, e)
		if e.IsEndOfTrack() {
			break
		}
	}
	return MTrackChunk{ChunkNumber: g.ID[3], Events: events}, nil
}

// Generic serializes the chunk back to its wire form.
func (c MTrackChunk) Generic() chunk.Generic {
	var buf bytes.Buffer
	for _, e := range c.Events {
		e.Write(&buf)
	}
	return chunk.Generic{ID: [4]byte{0xFF, 'M', 'R', c.ChunkNumber}, Payload: buf.Bytes()}
}

// TempoChange is one entry of an interpretation's tempo map.
type TempoChange struct {
	TimeMs int64
	BPM    int
}

// TimeSignature is one entry of an interpretation's time-signature map.
type TimeSignature struct {
	TimeMs      int64
	Numerator   int
	Denominator int
}

// Hook is a start/end pair marking a hook (chorus) section.
type Hook struct {
	StartMs int64
	EndMs   int64
}

// GuideMelodyDelimiter marks a visible-guide-melody page boundary.
type GuideMelodyDelimiter struct {
	TimeMs int64
	Kind   byte
}

// ADPCMSection is a start/end pair marking when the ADPCM voice track
// plays.
type ADPCMSection struct {
	StartMs int64
	EndMs   int64
}

// MTrackInterpretation is the derived, never-stored fold of an M-track's
// absolute-time events into the structural tables the MIDI/OKD
// converters consume.
type MTrackInterpretation struct {
	Tempos                       []TempoChange
	TimeSignatures               []TimeSignature
	Hooks                        []Hook
	VisibleGuideMelodyDelimiters []GuideMelodyDelimiter
	TwoChorusFadeoutTime         int64
	HasTwoChorusFadeout          bool
	SongSectionStart             int64
	SongSectionEnd               int64
	HasSongSectionStart          bool
	HasSongSectionEnd            bool
	ADPCMSections                []ADPCMSection
}

// Interpret folds the M-track's event stream into an
// MTrackInterpretation.
//
// Tempo is inferred from consecutive beat markers (0xF1/0xF2): a tempo
// entry is recorded at the *start* of the interval just closed (not the
// beat that closes it), and only when the inferred BPM differs from the
// running one. The running BPM starts at 125, not 120, and the first
// beat marker only seeds current_beat_start -- no entry is recorded
// until a second beat closes an interval. Hook and ADPCM-gate closers
// are recorded even without a matching opener, against whatever start
// time is current (0 for hooks, -1 for ADPCM sections), matching the
// reference implementation's unconditional append.
func (c MTrackChunk) Interpret() MTrackInterpretation {
	var interp MTrackInterpretation
	currentBPM := 125

	var current int64
	var beatStart int64

	var hookStart int64
	var adpcmStart int64 = -1

	seenFirstBeat := false
	for _, e := range c.Events {
		current += int64(e.DeltaTime)

		switch e.StatusByte {
		case 0xF1, 0xF2:
			if !seenFirstBeat {
				seenFirstBeat = true
				beatStart = current
				continue
			}
			beatLength := current - beatStart
			if beatLength == 0 {
				continue
			}
			bpm := int(math.RoundToEven(60000 / float64(beatLength)))
			if bpm != currentBPM {
				interp.Tempos = append(interp.Tempos, TempoChange{TimeMs: beatStart, BPM: bpm})
			}
			currentBPM = bpm
			beatStart = current

		case 0xF3:
			switch e.DataBytes[0] {
			case 0x00, 0x02:
				hookStart = current
			case 0x01, 0x03:
				interp.Hooks = append(interp.Hooks, Hook{StartMs: hookStart, EndMs: current})
			}

		case 0xF4:
			interp.VisibleGuideMelodyDelimiters = append(interp.VisibleGuideMelodyDelimiters, GuideMelodyDelimiter{TimeMs: current, Kind: e.DataBytes[0]})

		case 0xF5:
			interp.TwoChorusFadeoutTime = current
			interp.HasTwoChorusFadeout = true

		case 0xF6:
			switch e.DataBytes[0] {
			case 0x00:
				interp.SongSectionStart = current
				interp.HasSongSectionStart = true
			case 0x01:
				interp.SongSectionEnd = current
				interp.HasSongSectionEnd = true
			}

		case 0xF8:
			switch e.DataBytes[0] {
			case 0x00:
				adpcmStart = current
			case 0x01:
				interp.ADPCMSections = append(interp.ADPCMSections, ADPCMSection{StartMs: adpcmStart, EndMs: current})
			}

		case 0xFF:
			if len(e.DataBytes) == 4 {
				interp.TimeSignatures = append(interp.TimeSignatures, TimeSignature{
					TimeMs:      current,
					Numerator:   int(e.DataBytes[1]),
					Denominator: 1 << e.DataBytes[2],
				})
			}
		}
	}

	return interp
}
