/*
NAME
  ptrack.go

DESCRIPTION
  ptrack.go implements the P-track event stream, its chunk framing
  (id "\xffPR<n>"), and the channel fan-out engine that expands each
  stored event into its destination (port, channel) events.

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
	"io"
	"sort"

	"github.com/pkg/errors"

	"github.com/Xi80/dam-song-tools-oss/codec/varint"
	"github.com/Xi80/dam-song-tools-oss/container/okd/chunk"
)

const (
	// PTrackPorts is the number of output ports a P-track event can be
	// routed to.
	PTrackPorts = 4
	// PTrackChannelsPerPort is the channel width of each port.
	PTrackChannelsPerPort = 16
	// PTrackTotalChannels is PTrackPorts * PTrackChannelsPerPort.
	PTrackTotalChannels = PTrackPorts * PTrackChannelsPerPort
)

// chunkNumberPortMap maps a P-track's chunk number (its position in the
// id, e.g. the "n" in "\xffPR<n>") to its port. Chunk numbers 2 and 3
// both map to port 2, and chunk number 4 maps to port 3.
var chunkNumberPortMap = [5]byte{0, 1, 2, 2, 3}

// ErrUnterminatedSysEx is returned when a P-track SysEx event is not
// terminated by 0xF7.
var ErrUnterminatedSysEx = errors.New("ptrack: sysex not terminated by 0xF7")

// ErrUnknownCompensation is returned when an 0xFE-prefixed event's
// substituted status is not 0xAx or 0xCx.
var ErrUnknownCompensation = errors.New("ptrack: unknown compensation status")

// ErrUnknownStatus is returned for a status byte outside the documented
// set of the P-track or M-track event reader.
var ErrUnknownStatus = errors.New("ptrack: unknown status byte")

// PTrackEvent is a single stored P-track event: a delta-timed status
// byte plus its data bytes, with an optional duration carried alongside
// note-on/note-off-class events (status & 0xF0 in {0x80, 0x90}).
type PTrackEvent struct {
	StatusByte  byte
	DataBytes   []byte
	DeltaTime   uint32
	Duration    uint32
	HasDuration bool
}

// StatusType returns the high nibble of StatusByte.
func (e PTrackEvent) StatusType() byte { return e.StatusByte & 0xF0 }

// ptrackDataByteCount reports the fixed number of data bytes following
// status types that aren't SysEx or compensation-prefixed (which have
// their own parsing paths).
func ptrackDataByteCount(statusType byte) (int, bool) {
	switch statusType {
	case 0x00:
		// The trailing end-of-track marker: delta_time 0x00, status
		// 0x00, and two zero data bytes -- literally "00 00 00 00".
		return 2, true
	case 0x80:
		return 3, true
	case 0x90:
		return 2, true
	case 0xA0:
		return 1, true
	case 0xB0:
		return 2, true
	case 0xC0:
		return 1, true
	case 0xD0:
		return 1, true
	case 0xE0:
		return 2, true
	case 0xF8:
		return 3, true
	case 0xF9, 0xFA:
		return 1, true
	case 0xFD:
		return 0, true
	}
	return 0, false
}

// ReadPTrackEvent reads one event from r. The caller supplies an
// *bufio.Reader so both the extended-varint reader and the SysEx
// terminator scan can peek ahead.
func ReadPTrackEvent(r *bufio.Reader) (PTrackEvent, error) {
	deltaTime, err := varint.ReadExtended(r)
	if err != nil {
		return PTrackEvent{}, errors.Wrap(err, "ptrack: read delta time")
	}

	statusByte, err := r.ReadByte()
	if err != nil {
		return PTrackEvent{}, errors.Wrap(err, "ptrack: read status byte")
	}

	event := PTrackEvent{StatusByte: statusByte, DeltaTime: deltaTime}
	statusType := statusByte & 0xF0

	switch {
	case statusByte == 0xF0:
		data, err := readUntilHighBit(r, 0xF7)
		if err != nil {
			return PTrackEvent{}, err
		}
		event.DataBytes = data

	case statusByte == 0xFE:
		// Compensation prefix: the next byte is the true status, whose
		// own data-byte count then applies; this substitution is
		// resolved for real at fan-out time (relocate), not here --
		// the stored form keeps the 0xFE status and the substituted
		// status as its first data byte, verbatim.
		first, err := r.ReadByte()
		if err != nil {
			return PTrackEvent{}, errors.Wrap(err, "ptrack: read compensation status")
		}
		var n int
		switch first & 0xF0 {
		case 0xA0:
			n = 3
		case 0xC0:
			n = 2
		default:
			return PTrackEvent{}, ErrUnknownCompensation
		}
		rest := make([]byte, n-1)
		if _, err := io.ReadFull(r, rest); err != nil {
			return PTrackEvent{}, errors.Wrap(err, "ptrack: read compensation data")
		}
		event.DataBytes = append([]byte{first}, rest...)

	default:
		n, ok := ptrackDataByteCount(statusType)
		if !ok {
			return PTrackEvent{}, errors.Wrapf(ErrUnknownStatus, "status=%#x", statusByte)
		}
		data := make([]byte, n)
		if n > 0 {
			if _, err := io.ReadFull(r, data); err != nil {
				return PTrackEvent{}, errors.Wrap(err, "ptrack: read data bytes")
			}
		}
		event.DataBytes = data
	}

	if statusType == 0x80 || statusType == 0x90 {
		d, err := varint.Read(r)
		if err != nil {
			return PTrackEvent{}, errors.Wrap(err, "ptrack: read duration")
		}
		event.Duration = d
		event.HasDuration = true
	}

	return event, nil
}

// readUntilHighBit reads bytes until one with bit 7 set is found, which
// must equal terminator, returning the bytes read excluding the
// terminator.
func readUntilHighBit(r *bufio.Reader, terminator byte) ([]byte, error) {
	var data []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, errors.Wrap(err, "ptrack: read sysex")
		}
		if b&0x80 != 0 {
			if b != terminator {
				return nil, ErrUnterminatedSysEx
			}
			return data, nil
		}
		data = append(data, b)
	}
}

// Write serializes the event back to its stream form.
func (e PTrackEvent) Write(w *bytes.Buffer) error {
	if err := varint.WriteExtended(w, e.DeltaTime); err != nil {
		return err
	}
	w.WriteByte(e.StatusByte)
	if e.StatusByte == 0xF0 {
		w.Write(e.DataBytes)
		w.WriteByte(0xF7)
	} else {
		w.Write(e.DataBytes)
	}
	if e.HasDuration {
		if err := varint.Write(w, e.Duration); err != nil {
			return err
		}
	}
	return nil
}

// PTrackChunk is a "\xffPR<n>" chunk: the chunk number n and its stored
// event stream.
type PTrackChunk struct {
	ChunkNumber byte
	Events      []PTrackEvent
}

// IsPTrackID reports whether id is a P-track chunk id ("\xffPR...").
func IsPTrackID(id [4]byte) bool { return id[0] == 0xFF && id[1] == 'P' && id[2] == 'R' }

// ParsePTrackChunk parses a "\xffPR<n>" chunk.
func ParsePTrackChunk(g chunk.Generic) (PTrackChunk, error) {
	r := bufio.NewReader(bytes.NewReader(g.Payload))
	var events []PTrackEvent
	for {
		e, err := ReadPTrackEvent(r)
		if err != nil {
			return PTrackChunk{}, err
		}
		events = append(events, e)
		if e.StatusByte == 0x00 && e.DeltaTime == 0 && allZero(e.DataBytes) {
			break
		}
	}
	return PTrackChunk{ChunkNumber: g.ID[3], Events: events}, nil
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// Generic serializes the chunk back to its wire form.
func (c PTrackChunk) Generic() chunk.Generic {
	var buf bytes.Buffer
	for _, e := range c.Events {
		e.Write(&buf)
	}
	return chunk.Generic{ID: [4]byte{0xFF, 'P', 'R', c.ChunkNumber}, Payload: buf.Bytes()}
}

// routingEntry is a normalized view over PTrackInfoEntry,
// ExtendedPTrackInfoEntry, and P3TrackInfoChunk.Entry, letting the
// fan-out engine work uniformly across all three track-info flavors.
type routingEntry struct {
	isLossless           bool
	systemExPorts        uint16
	defaultChannelGroups [16]uint16
	channelGroups        [16]uint16
	ports                [16]uint16
	controlChangeAx      [16]byte
	controlChangeCx      [16]byte
}

func fromPTrackInfoEntry(e PTrackInfoEntry) routingEntry {
	r := routingEntry{
		isLossless:           e.IsLosslessTrack(),
		systemExPorts:        e.SystemExPorts,
		defaultChannelGroups: e.DefaultChannelGroups,
		channelGroups:        e.ChannelGroups,
	}
	for i, ci := range e.ChannelInfo {
		r.ports[i] = ci.Ports
		r.controlChangeAx[i] = ci.ControlChangeAx
		r.controlChangeCx[i] = ci.ControlChangeCx
	}
	return r
}

func fromExtendedPTrackInfoEntry(e ExtendedPTrackInfoEntry) routingEntry {
	r := routingEntry{
		isLossless:           e.IsLosslessTrack(),
		systemExPorts:        e.SystemExPorts,
		defaultChannelGroups: e.DefaultChannelGroups,
		channelGroups:        e.ChannelGroups,
	}
	for i, ci := range e.ChannelInfo {
		r.ports[i] = ci.Ports
		r.controlChangeAx[i] = ci.ControlChangeAx
		r.controlChangeCx[i] = ci.ControlChangeCx
	}
	return r
}

// TrackInfo is implemented by PTrackInfoChunk, ExtendedPTrackInfoChunk,
// and P3TrackInfoChunk: anything that can resolve routing for a given
// P-track chunk number.
type TrackInfo interface {
	routingEntryFor(trackNumber byte) (routingEntry, error)
}

func (c PTrackInfoChunk) routingEntryFor(trackNumber byte) (routingEntry, error) {
	e, err := c.EntryByTrackNumber(trackNumber)
	if err != nil {
		return routingEntry{}, err
	}
	return fromPTrackInfoEntry(e), nil
}

func (c ExtendedPTrackInfoChunk) routingEntryFor(trackNumber byte) (routingEntry, error) {
	e, err := c.EntryByTrackNumber(trackNumber)
	if err != nil {
		return routingEntry{}, err
	}
	return fromExtendedPTrackInfoEntry(e), nil
}

func (c P3TrackInfoChunk) routingEntryFor(trackNumber byte) (routingEntry, error) {
	if trackNumber != c.Entry.TrackNumber {
		return routingEntry{}, errors.Errorf("ptrack: P3 track info has no entry for track %d", trackNumber)
	}
	return fromPTrackInfoEntry(c.Entry), nil
}

// AbsoluteTimeEvent is one destination event produced by the fan-out
// engine or event-folding pass: a channel-voice or system message at an
// absolute millisecond time, addressed to a specific (port, track).
type AbsoluteTimeEvent struct {
	StatusByte byte
	DataBytes  []byte
	Port       int
	Track      int
	Time       int64 // Milliseconds.
}

// relocate expands a single stored event into its destination events,
// given the routing entry for its P-track and whether channel grouping
// is currently latched.
func relocate(e PTrackEvent, entry routingEntry, groupingEnabled bool, t int64) []AbsoluteTimeEvent {
	statusByte := e.StatusByte
	dataBytes := e.DataBytes
	if statusByte == 0xFE {
		statusByte = dataBytes[0]
		dataBytes = dataBytes[1:]
	}
	statusType := statusByte & 0xF0

	if statusType == 0xF0 {
		var out []AbsoluteTimeEvent
		for p := 0; p < PTrackPorts; p++ {
			if entry.systemExPorts&(1<<uint(p)) == 0 {
				continue
			}
			out = append(out, AbsoluteTimeEvent{
				StatusByte: statusByte,
				DataBytes:  dataBytes,
				Port:       p,
				Track:      p * PTrackChannelsPerPort,
				Time:       t,
			})
		}
		return out
	}

	channel := statusByte & 0x0F
	var groupMask uint16
	if groupingEnabled {
		groupMask = entry.channelGroups[channel]
	} else {
		groupMask = entry.defaultChannelGroups[channel]
		if groupMask == 0 {
			groupMask = 1 << uint(channel)
		}
	}

	var out []AbsoluteTimeEvent
	portMask := entry.ports[channel]
	for p := 0; p < PTrackPorts; p++ {
		if portMask&(1<<uint(p)) == 0 {
			continue
		}
		for c := 0; c < PTrackChannelsPerPort; c++ {
			if groupMask&(1<<uint(c)) == 0 {
				continue
			}
			out = append(out, AbsoluteTimeEvent{
				StatusByte: (statusByte & 0xF0) | byte(c),
				DataBytes:  dataBytes,
				Port:       p,
				Track:      p*PTrackChannelsPerPort + c,
				Time:       t,
			})
		}
	}
	return out
}

// AbsoluteTimeTrack folds this chunk's stored events into their
// absolute-time, fanned-out, destination events: note-on/note-off pairs
// are synthesized from duration-carrying events, 0xA0/0xC0 are remapped
// to control-change via the routing entry's alternative-CC targets, and
// every other event passes through the fan-out engine unchanged.
func (c PTrackChunk) AbsoluteTimeTrack(info TrackInfo) ([]AbsoluteTimeEvent, error) {
	entry, err := info.routingEntryFor(c.ChunkNumber)
	if err != nil {
		return nil, err
	}

	durationScale := int64(4)
	if entry.isLossless {
		durationScale = 1
	}

	var out []AbsoluteTimeEvent
	var current int64
	groupingEnabled := false
	for _, e := range c.Events {
		current += int64(e.DeltaTime)
		t := current
		statusType := e.StatusType()

		if e.StatusByte == 0x00 {
			// End-of-track marker; carries no destination event.
			groupingEnabled = false
			continue
		}

		channel := e.StatusByte & 0x0F

		switch {
		case statusType == 0x80 && e.HasDuration:
			d := int64(e.Duration) * durationScale
			out = append(out, relocate(PTrackEvent{StatusByte: 0x90 | channel, DataBytes: e.DataBytes[:2]}, entry, groupingEnabled, t)...)
			out = append(out, relocate(PTrackEvent{StatusByte: 0x80 | channel, DataBytes: []byte{e.DataBytes[0], e.DataBytes[2]}}, entry, groupingEnabled, t+d)...)

		case statusType == 0x90 && e.HasDuration:
			d := int64(e.Duration) * durationScale
			out = append(out, relocate(PTrackEvent{StatusByte: e.StatusByte, DataBytes: e.DataBytes}, entry, groupingEnabled, t)...)
			out = append(out, relocate(PTrackEvent{StatusByte: 0x80 | channel, DataBytes: []byte{e.DataBytes[0], 0x40}}, entry, groupingEnabled, t+d)...)

		case statusType == 0xA0:
			cc := entry.controlChangeAx[e.StatusByte&0x0F]
			out = append(out, relocate(PTrackEvent{StatusByte: 0xB0 | (e.StatusByte & 0x0F), DataBytes: []byte{cc, e.DataBytes[0]}}, entry, groupingEnabled, t)...)

		case statusType == 0xC0:
			cc := entry.controlChangeCx[e.StatusByte&0x0F]
			out = append(out, relocate(PTrackEvent{StatusByte: 0xB0 | (e.StatusByte & 0x0F), DataBytes: []byte{cc, e.DataBytes[0]}}, entry, groupingEnabled, t)...)

		default:
			out = append(out, relocate(e, entry, groupingEnabled, t)...)
		}

		groupingEnabled = e.StatusByte == 0xFD
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}
