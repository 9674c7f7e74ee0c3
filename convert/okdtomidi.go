/*
NAME
  okdtomidi.go

DESCRIPTION
  okdtomidi.go implements OkdToMidi: assembling an OKD file's M-track
  interpretation and fanned-out P-track events into a 64-track Standard
  MIDI File, with SysEx traffic addressed to the virtual MMT-TG
  translated into the CC/PC messages a real sound module would have
  produced.

AUTHOR
  Xi80 <xi80@dam-song-tools-oss>

LICENSE
  Copyright (C) 2026 the dam-song-tools-oss authors. All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the dam-song-tools-oss authors.
*/

// Package convert implements the two top-level MIDI⇄OKD conversion
// entry points: OkdToMidi and MidiToOkds.
package convert

import (
	"sort"

	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"

	"github.com/Xi80/dam-song-tools-oss/container/okd"
	"github.com/Xi80/dam-song-tools-oss/container/okd/chunks"
	"github.com/Xi80/dam-song-tools-oss/miditime"
	"github.com/Xi80/dam-song-tools-oss/mmttg"
	"github.com/Xi80/dam-song-tools-oss/smf"
)

// ErrIncompleteOKD is returned when the input OKD lacks an M-track,
// P-track info, or any P-track.
var ErrIncompleteOKD = errors.New("convert: OKD is missing M-track, P-track info, or P-tracks")

// defaultBPM is the running tempo an M-track interpretation assumes
// before its first inferred tempo entry.
const defaultBPM = 125

// OkdToMidi builds a Standard MIDI File from okd's M-track, P-track
// info, and P-tracks. When sysexToText is set, every raw SysEx message
// the virtual MMT-TG accepts is additionally emitted as a text meta
// event alongside its translated CC/PC messages; a message it rejects
// is logged and dropped.
func OkdToMidi(f *okd.File, sysexToText bool, log logging.Logger) (*smf.File, error) {
	var mtrack *chunks.MTrackChunk
	var trackInfo chunks.TrackInfo
	var pTracks []chunks.PTrackChunk

	for _, c := range f.Chunks {
		switch v := c.(type) {
		case chunks.MTrackChunk:
			mt := v
			mtrack = &mt
		case chunks.PTrackInfoChunk:
			trackInfo = v
		case chunks.ExtendedPTrackInfoChunk:
			trackInfo = v
		case chunks.P3TrackInfoChunk:
			trackInfo = v
		case chunks.PTrackChunk:
			pTracks = append(pTracks, v)
		}
	}
	if mtrack == nil || trackInfo == nil || len(pTracks) == 0 {
		return nil, ErrIncompleteOKD
	}

	interp := mtrack.Interpret()

	conv := miditime.New()
	if len(interp.Tempos) == 0 {
		conv.AddTempoChange(0, defaultBPM)
	} else {
		for _, t := range interp.Tempos {
			conv.AddTempoChange(t.TimeMs, float64(t.BPM))
		}
	}

	var voiceEvents []chunks.AbsoluteTimeEvent
	for _, pt := range pTracks {
		abs, err := pt.AbsoluteTimeTrack(trackInfo)
		if err != nil {
			return nil, err
		}
		voiceEvents = append(voiceEvents, abs...)
	}
	sort.SliceStable(voiceEvents, func(i, j int) bool { return voiceEvents[i].Time < voiceEvents[j].Time })

	midi := smf.NewFile(480)
	midi.Tracks = make([]smf.Track, 1+chunks.PTrackTotalChannels)

	metaAbs := buildMetaTrack(interp, conv)

	device := mmttg.New(log)
	perTrackAbs := make([][]smf.AbsoluteEvent, chunks.PTrackTotalChannels)
	for track := range perTrackAbs {
		port := track / chunks.PTrackChannelsPerPort
		var b []byte
		b = append(b, byte(port))
		perTrackAbs[track] = append(perTrackAbs[track], smf.AbsoluteEvent{
			Ticks: 0,
			Event: smf.Event{Status: smf.StatusMeta, MetaType: smf.MetaMIDIPort, Bytes: b},
		})
	}

	// Seed tracks addressable by the MMT-TG (ports 0-1) with the CC/PC
	// messages that bring a real module from power-on to its literal
	// initial state table.
	zero := mmttg.MultiPartEntry{}
	for part := 0; part < mmttg.Parts; part++ {
		entry := device.MultiPartEntry(part)
		channel := part % chunks.PTrackChannelsPerPort
		port := part / chunks.PTrackChannelsPerPort
		track := port*chunks.PTrackChannelsPerPort + channel
		for _, m := range mmttg.ToMIDIMessages(zero, entry, channel) {
			perTrackAbs[track] = append(perTrackAbs[track], smf.AbsoluteEvent{Ticks: 0, Event: midiMessageToEvent(m)})
		}
	}

	prevEntries := device.MultiPartEntries()

	for _, e := range voiceEvents {
		ticks, err := conv.MsToTicks(e.Time)
		if err != nil {
			return nil, err
		}

		if e.StatusByte&0xF0 == 0xF0 {
			if err := device.ReceiveSysEx(e.StatusByte, e.DataBytes); err != nil {
				logInfo(log, "convert: sysex rejected: %v", err)
				continue
			}
			if sysexToText {
				perTrackAbs[e.Track] = append(perTrackAbs[e.Track], smf.AbsoluteEvent{
					Ticks: ticks,
					Event: smf.Event{Status: smf.StatusMeta, MetaType: smf.MetaText, Bytes: append([]byte{e.StatusByte}, e.DataBytes...)},
				})
			}
			if part, ok := mmttg.EffectingMultiPartNumber(e.StatusByte, e.DataBytes); ok {
				after := device.MultiPartEntry(part)
				channel := part % chunks.PTrackChannelsPerPort
				port := part / chunks.PTrackChannelsPerPort
				track := port*chunks.PTrackChannelsPerPort + channel
				for _, m := range mmttg.ToMIDIMessages(prevEntries[part], after, channel) {
					perTrackAbs[track] = append(perTrackAbs[track], smf.AbsoluteEvent{Ticks: ticks, Event: midiMessageToEvent(m)})
				}
				prevEntries[part] = after
			}
			continue
		}

		perTrackAbs[e.Track] = append(perTrackAbs[e.Track], smf.AbsoluteEvent{
			Ticks: ticks,
			Event: smf.Event{Status: e.StatusByte, Data1: dataByteOrZero(e.DataBytes, 0), Data2: dataByteOrZero(e.DataBytes, 1)},
		})
	}

	midi.Tracks[0] = smf.DeltaEncode(metaAbs)
	for i, abs := range perTrackAbs {
		abs = append(abs, smf.AbsoluteEvent{Ticks: abs[len(abs)-1].Ticks, Event: smf.Event{Status: smf.StatusMeta, MetaType: smf.MetaEndOfTrack}})
		midi.Tracks[1+i] = smf.DeltaEncode(abs)
	}
	midi.Tracks[0] = append(midi.Tracks[0], smf.Event{Status: smf.StatusMeta, MetaType: smf.MetaEndOfTrack})

	return midi, nil
}

func dataByteOrZero(b []byte, i int) byte {
	if i < len(b) {
		return b[i]
	}
	return 0
}

func midiMessageToEvent(m mmttg.MIDIMessage) smf.Event {
	if m.IsProgramChange {
		return smf.Event{Status: smf.StatusProgramChange | byte(m.Channel), Data1: m.Program}
	}
	return smf.Event{Status: smf.StatusControlChange | byte(m.Channel), Data1: m.Control, Data2: m.Value}
}

func buildMetaTrack(interp chunks.MTrackInterpretation, conv *miditime.Converter) []smf.AbsoluteEvent {
	var events []smf.AbsoluteEvent
	for _, t := range interp.Tempos {
		ticks, _ := conv.MsToTicks(t.TimeMs)
		microsecondsPerBeat := uint32(60_000_000 / t.BPM)
		events = append(events, smf.AbsoluteEvent{
			Ticks: ticks,
			Event: smf.Event{
				Status:   smf.StatusMeta,
				MetaType: smf.MetaSetTempo,
				Bytes:    []byte{byte(microsecondsPerBeat >> 16), byte(microsecondsPerBeat >> 8), byte(microsecondsPerBeat)},
			},
		})
	}
	for _, ts := range interp.TimeSignatures {
		ticks, _ := conv.MsToTicks(ts.TimeMs)
		log2Denom := byte(0)
		for d := ts.Denominator; d > 1; d >>= 1 {
			log2Denom++
		}
		events = append(events, smf.AbsoluteEvent{
			Ticks: ticks,
			Event: smf.Event{
				Status:   smf.StatusMeta,
				MetaType: smf.MetaTimeSignature,
				Bytes:    []byte{byte(ts.Numerator), log2Denom, 24, 8},
			},
		})
	}
	return events
}

func logInfo(log logging.Logger, format string, args ...interface{}) {
	if log == nil {
		return
	}
	log.Info(format, args...)
}
