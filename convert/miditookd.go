/*
NAME
  miditookd.go

DESCRIPTION
  miditookd.go implements MidiToOkds: splitting a Standard MIDI File by
  port/channel into a "playing" OKD (M-track, P-track info, and one
  P-track per port with channel-voice content) and a "P3" OKD (P3-track
  info and a single P3-track built from the detected melody track,
  remapped to port 2 channel 14).

AUTHOR
  Xi80 <xi80@dam-song-tools-oss>

LICENSE
  Copyright (C) 2026 the dam-song-tools-oss authors. All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the dam-song-tools-oss authors.
*/

package convert

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/Xi80/dam-song-tools-oss/container/okd"
	"github.com/Xi80/dam-song-tools-oss/container/okd/chunks"
	"github.com/Xi80/dam-song-tools-oss/container/okd/header"
	"github.com/Xi80/dam-song-tools-oss/miditime"
	"github.com/Xi80/dam-song-tools-oss/smf"
)

// ErrNoMetaTrack is returned when the input SMF has no track consisting
// solely of meta events.
var ErrNoMetaTrack = errors.New("convert: meta track not found")

// ErrNoPTrack is returned when no (port, channel) track has any
// channel-voice content at all.
var ErrNoPTrack = errors.New("convert: no P-track content found")

// ErrNoP3Track is returned when the melody track (port 1, channel 8)
// used to seed the P3-track is absent.
var ErrNoP3Track = errors.New("convert: P3-track source (port 1, channel 8) not found")

// guideMelodyPageMs is the threshold the reference implementation uses
// to decide a visible-guide-melody page has run long enough to force a
// break at the next opportunity.
const guideMelodyPageMs = 7000

// melodyPort, melodyChannel identify the SMF track MidiToOkds mines for
// the P3-track and for the M-track's guide-melody page breaks.
const (
	melodyPort    = 1
	melodyChannel = 8
)

// hookTrackPort, hookTrackChannel identify the optional SMF track
// carrying hook-boundary and two-chorus-fadeout markers as note events
// (note 48, note 72).
const (
	hookTrackPort    = 16
	hookTrackChannel = 0
)

// p3DestPort, p3DestChannel are the P3-track's fixed destination, per
// the reference implementation's port1/channel8 -> port2/channel14 remap.
const (
	p3DestPort    = 2
	p3DestChannel = 14
)

// portToPTrackChunkNumber assigns each of the playing OKD's four ports
// its P-track chunk number; chunk number 3 is reserved for the
// P3-track, so port 3's ordinary P-track uses chunk number 4 instead.
var portToPTrackChunkNumber = map[int]byte{0: 0, 1: 1, 2: 2, 3: 4}

// p3TrackNumber is the chunk/track number shared by the P3-track and
// its P3TrackInfoChunk entry.
const p3TrackNumber = 3

// MidiToOkds splits midi into a "playing" OKD (M-track, P-track info,
// and one P-track per port with channel-voice content) and a "P3" OKD
// (P3-track info and a single P3-track sourced from port 1 channel 8,
// remapped to port 2 channel 14).
//
// Program change, polyphonic aftertouch, and raw SysEx on the source
// tracks are dropped rather than synthesized back into the P-track's
// compact 0xA0/0xC0 alternative-CC forms or an 0xFE compensation
// prefix, since both forms are ambiguous to invert without the
// original PTrackInfoEntry the channel was authored against. See
// DESIGN.md.
func MidiToOkds(midi *smf.File, h header.Header) (playing *okd.File, p3 *okd.File, err error) {
	metaTrack, ok := smf.MetaTrack(midi.Tracks)
	if !ok {
		return nil, nil, ErrNoMetaTrack
	}

	conv := converterFromMetaTrack(midi.TicksPerBeat, metaTrack)

	mtrackChunk, err := buildMTrack(midi, metaTrack, conv)
	if err != nil {
		return nil, nil, err
	}

	pTrackChunks, infoEntries, err := buildPTracks(midi, conv)
	if err != nil {
		return nil, nil, err
	}
	if len(pTrackChunks) == 0 {
		return nil, nil, ErrNoPTrack
	}

	p3Info, p3Track, err := buildP3Track(midi, conv)
	if err != nil {
		return nil, nil, err
	}

	playingChunks := []chunks.Typed{mtrackChunk, chunks.PTrackInfoChunk{Entries: infoEntries}}
	for _, pt := range pTrackChunks {
		playingChunks = append(playingChunks, pt)
	}
	playing = &okd.File{Header: h, Chunks: playingChunks}
	p3 = &okd.File{Header: h, Chunks: []chunks.Typed{p3Info, p3Track}}
	return playing, p3, nil
}

// converterFromMetaTrack builds a miditime.Converter by replaying the
// meta track's set_tempo events in order.
func converterFromMetaTrack(ticksPerBeat uint16, metaTrack smf.Track) *miditime.Converter {
	conv := miditime.New()
	var events []miditime.TempoTrackEvent
	for _, e := range metaTrack {
		te := miditime.TempoTrackEvent{DeltaTicks: e.DeltaTicks}
		if e.Status == smf.StatusMeta && e.MetaType == smf.MetaSetTempo && len(e.Bytes) == 3 {
			te.IsSetTempo = true
			te.MicrosecondsPerBeat = uint32(e.Bytes[0])<<16 | uint32(e.Bytes[1])<<8 | uint32(e.Bytes[2])
		}
		events = append(events, te)
	}
	conv.LoadFromMIDI(int(ticksPerBeat), events)
	return conv
}

// buildMTrack derives a master track from the meta track's time
// signatures, the melody track's guide-melody page breaks, and the
// optional hook/fadeout marker track.
func buildMTrack(midi *smf.File, metaTrack smf.Track, conv *miditime.Converter) (chunks.MTrackChunk, error) {
	type rawEvent struct {
		timeMs int64
		status byte
		data   []byte
	}
	var raw []rawEvent

	for _, ae := range smf.AbsoluteTimes(metaTrack) {
		e := ae.Event
		if e.Status != smf.StatusMeta || e.MetaType != smf.MetaTimeSignature || len(e.Bytes) < 2 {
			continue
		}
		ms, err := conv.TicksToMs(ae.Ticks)
		if err != nil {
			return chunks.MTrackChunk{}, err
		}
		raw = append(raw, rawEvent{timeMs: ms, status: 0xFF, data: []byte{0x00, e.Bytes[0], e.Bytes[1], 0x00}})
	}

	if melodyTrack, ok := smf.TrackByPortChannel(midi.Tracks, melodyPort, melodyChannel); ok {
		pageStart := int64(-1)
		lastNoteMs := int64(-1)
		for _, ae := range smf.AbsoluteTimes(melodyTrack) {
			if !ae.Event.IsNoteOn() {
				continue
			}
			ms, err := conv.TicksToMs(ae.Ticks)
			if err != nil {
				return chunks.MTrackChunk{}, err
			}
			if pageStart < 0 {
				pageStart, lastNoteMs = ms, ms
				continue
			}
			void := ms - lastNoteMs
			pageLength := ms - pageStart
			if void > guideMelodyPageMs || pageLength > guideMelodyPageMs {
				raw = append(raw, rawEvent{timeMs: ms, status: 0xF4, data: []byte{0x00}})
				pageStart = ms
			}
			lastNoteMs = ms
		}
	}

	if hookTrack, ok := smf.TrackByPortChannel(midi.Tracks, hookTrackPort, hookTrackChannel); ok {
		for _, ae := range smf.AbsoluteTimes(hookTrack) {
			e := ae.Event
			if !e.IsNoteOn() && !e.IsNoteOff() {
				continue
			}
			ms, err := conv.TicksToMs(ae.Ticks)
			if err != nil {
				return chunks.MTrackChunk{}, err
			}
			switch {
			case e.Data1 == 48 && e.IsNoteOn():
				raw = append(raw, rawEvent{timeMs: ms, status: 0xF3, data: []byte{0x00}})
			case e.Data1 == 48 && e.IsNoteOff():
				raw = append(raw, rawEvent{timeMs: ms, status: 0xF3, data: []byte{0x01}})
			case e.Data1 == 72 && e.IsNoteOn():
				raw = append(raw, rawEvent{timeMs: ms, status: 0xF5, data: nil})
			}
		}
	}

	sort.SliceStable(raw, func(i, j int) bool { return raw[i].timeMs < raw[j].timeMs })

	var events []chunks.MTrackEvent
	var last int64
	for _, r := range raw {
		events = append(events, chunks.MTrackEvent{
			DeltaTime:  uint32(r.timeMs - last),
			StatusByte: r.status,
			DataBytes:  r.data,
		})
		last = r.timeMs
	}
	events = append(events, chunks.MTrackEvent{StatusByte: 0x00, DataBytes: []byte{0, 0, 0}})

	return chunks.MTrackChunk{ChunkNumber: 0, Events: events}, nil
}

// storedEvent is a P-track event before delta-time encoding: an
// absolute time, a full status byte (channel already folded in), its
// data bytes, and an optional duration for note events.
type storedEvent struct {
	timeMs      int64
	status      byte
	data        []byte
	duration    uint32
	hasDuration bool
}

// pendingNote tracks an unmatched note-on while its note-off is awaited.
type pendingNote struct {
	timeMs   int64
	velocity byte
}

// noteEventsForChannel pairs note-on/note-off events on track into
// single duration-carrying 0x90 storedEvents addressed to channel,
// per spec.md's inverse-direction pairing rule. Overlapping notes of
// the same pitch are paired FIFO.
func noteEventsForChannel(track smf.Track, conv *miditime.Converter, channel byte) ([]storedEvent, error) {
	var result []storedEvent
	pending := map[byte][]pendingNote{}

	for _, ae := range smf.AbsoluteTimes(track) {
		e := ae.Event
		if !e.IsNoteOn() && !e.IsNoteOff() {
			continue
		}
		ms, err := conv.TicksToMs(ae.Ticks)
		if err != nil {
			return nil, err
		}
		if e.IsNoteOn() {
			pending[e.Data1] = append(pending[e.Data1], pendingNote{timeMs: ms, velocity: e.Data2})
			continue
		}
		q := pending[e.Data1]
		if len(q) == 0 {
			continue // note-off with no open note-on: drop.
		}
		on := q[0]
		pending[e.Data1] = q[1:]
		duration := ms - on.timeMs
		if duration < 0 {
			duration = 0
		}
		result = append(result, storedEvent{
			timeMs:      on.timeMs,
			status:      0x90 | channel,
			data:        []byte{e.Data1, on.velocity},
			duration:    uint32(duration),
			hasDuration: true,
		})
	}
	return result, nil
}

// channelTrackToStoredEvents folds one (port, channel) SMF track into
// the storedEvents its P-track would carry: paired notes plus direct
// passthrough of control change, pitch bend, and channel pressure.
func channelTrackToStoredEvents(track smf.Track, conv *miditime.Converter, channel byte) ([]storedEvent, error) {
	result, err := noteEventsForChannel(track, conv, channel)
	if err != nil {
		return nil, err
	}

	for _, ae := range smf.AbsoluteTimes(track) {
		e := ae.Event
		var status byte
		var data []byte
		switch e.Status & 0xF0 {
		case smf.StatusControlChange:
			status, data = 0xB0|channel, []byte{e.Data1, e.Data2}
		case smf.StatusPitchBend:
			status, data = 0xE0|channel, []byte{e.Data1, e.Data2}
		case smf.StatusChannelPressure:
			status, data = 0xD0|channel, []byte{e.Data1}
		default:
			continue
		}
		ms, err := conv.TicksToMs(ae.Ticks)
		if err != nil {
			return nil, err
		}
		result = append(result, storedEvent{timeMs: ms, status: status, data: data})
	}

	sort.SliceStable(result, func(i, j int) bool { return result[i].timeMs < result[j].timeMs })
	return result, nil
}

// toDeltaPTrackEvents delta-encodes a time-sorted storedEvent list into
// stream-form PTrackEvents, appending the trailing all-zero end marker.
func toDeltaPTrackEvents(events []storedEvent) []chunks.PTrackEvent {
	result := make([]chunks.PTrackEvent, 0, len(events)+1)
	var last int64
	for _, e := range events {
		result = append(result, chunks.PTrackEvent{
			DeltaTime:   uint32(e.timeMs - last),
			StatusByte:  e.status,
			DataBytes:   e.data,
			Duration:    e.duration,
			HasDuration: e.hasDuration,
		})
		last = e.timeMs
	}
	result = append(result, chunks.PTrackEvent{StatusByte: 0x00, DataBytes: []byte{0, 0}})
	return result
}

// buildPTracks folds every (port, channel) track with channel-voice
// content into one lossless P-track per active port, plus a matching
// PTrackInfoEntry routing each channel straight back to its own
// port/channel (an identity fan-out).
func buildPTracks(midi *smf.File, conv *miditime.Converter) ([]chunks.PTrackChunk, []chunks.PTrackInfoEntry, error) {
	var result []chunks.PTrackChunk
	var entries []chunks.PTrackInfoEntry

	for port := 0; port < chunks.PTrackPorts; port++ {
		var channelInfo [16]chunks.ChannelInfo
		var defaultGroups [16]uint16
		var useFlag uint16
		var stored []storedEvent
		active := false

		for channel := 0; channel < chunks.PTrackChannelsPerPort; channel++ {
			track, ok := smf.TrackByPortChannel(midi.Tracks, port, channel)
			if !ok {
				continue
			}
			events, err := channelTrackToStoredEvents(track, conv, byte(channel))
			if err != nil {
				return nil, nil, err
			}
			if len(events) == 0 {
				continue
			}
			active = true
			stored = append(stored, events...)
			channelInfo[channel] = chunks.ChannelInfo{Attribute: 0x81, Ports: uint16(1) << uint(port)}
			defaultGroups[channel] = 1 << uint(channel)
			useFlag |= 1 << uint(channel)
		}
		if !active {
			continue
		}

		sort.SliceStable(stored, func(i, j int) bool { return stored[i].timeMs < stored[j].timeMs })

		chunkNumber := portToPTrackChunkNumber[port]
		result = append(result, chunks.PTrackChunk{ChunkNumber: chunkNumber, Events: toDeltaPTrackEvents(stored)})
		entries = append(entries, chunks.PTrackInfoEntry{
			TrackNumber:          chunkNumber,
			TrackStatus:          0x80, // lossless: durations are exact milliseconds, no x4 expansion.
			UseChannelGroupFlag:  useFlag,
			DefaultChannelGroups: defaultGroups,
			ChannelInfo:          channelInfo,
			SystemExPorts:        0x000F,
		})
	}

	return result, entries, nil
}

// buildP3Track derives the bonus P3-track from the melody source track
// (port 1, channel 8), keeping only note-on/note-off and remapping the
// destination to port 2 channel 14.
func buildP3Track(midi *smf.File, conv *miditime.Converter) (chunks.P3TrackInfoChunk, chunks.PTrackChunk, error) {
	track, ok := smf.TrackByPortChannel(midi.Tracks, melodyPort, melodyChannel)
	if !ok {
		return chunks.P3TrackInfoChunk{}, chunks.PTrackChunk{}, ErrNoP3Track
	}

	events, err := noteEventsForChannel(track, conv, p3DestChannel)
	if err != nil {
		return chunks.P3TrackInfoChunk{}, chunks.PTrackChunk{}, err
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].timeMs < events[j].timeMs })

	var channelInfo [16]chunks.ChannelInfo
	var defaultGroups [16]uint16
	channelInfo[p3DestChannel] = chunks.ChannelInfo{Attribute: 0x81, Ports: uint16(1) << uint(p3DestPort)}
	defaultGroups[p3DestChannel] = 1 << uint(p3DestChannel)

	entry := chunks.PTrackInfoEntry{
		TrackNumber:          p3TrackNumber,
		TrackStatus:          0x80,
		UseChannelGroupFlag:  1 << uint(p3DestChannel),
		DefaultChannelGroups: defaultGroups,
		ChannelInfo:          channelInfo,
		SystemExPorts:        0x000F,
	}

	trackChunk := chunks.PTrackChunk{ChunkNumber: p3TrackNumber, Events: toDeltaPTrackEvents(events)}
	return chunks.P3TrackInfoChunk{Entry: entry}, trackChunk, nil
}
