package convert

import (
	"testing"

	"github.com/Xi80/dam-song-tools-oss/container/okd"
	"github.com/Xi80/dam-song-tools-oss/container/okd/chunks"
	"github.com/Xi80/dam-song-tools-oss/container/okd/header"
)

func basicPlayingOkd() *okd.File {
	mtrack := chunks.MTrackChunk{
		ChunkNumber: 0,
		Events: []chunks.MTrackEvent{
			{DeltaTime: 0, StatusByte: 0x00, DataBytes: []byte{0, 0, 0}},
		},
	}

	var channelInfo [16]chunks.ChannelInfo
	var defaultGroups [16]uint16
	channelInfo[0] = chunks.ChannelInfo{Attribute: 0x81, Ports: 0x0001}
	defaultGroups[0] = 0x0001

	info := chunks.PTrackInfoChunk{Entries: []chunks.PTrackInfoEntry{
		{
			TrackNumber:          0,
			TrackStatus:          0x80,
			UseChannelGroupFlag:  0x0001,
			DefaultChannelGroups: defaultGroups,
			ChannelInfo:          channelInfo,
			SystemExPorts:        0x000F,
		},
	}}

	ptrack := chunks.PTrackChunk{
		ChunkNumber: 0,
		Events: []chunks.PTrackEvent{
			{DeltaTime: 0, StatusByte: 0x90, DataBytes: []byte{60, 100}, Duration: 240, HasDuration: true},
			{DeltaTime: 480, StatusByte: 0x00, DataBytes: []byte{0, 0}},
		},
	}

	h := &header.YKS{Common: header.Common{Version: "YKS-1   v6.0v110"}}
	return &okd.File{Header: h, Chunks: []chunks.Typed{mtrack, info, ptrack}}
}

func TestOkdToMidiBasic(t *testing.T) {
	midi, err := OkdToMidi(basicPlayingOkd(), false, nil)
	if err != nil {
		t.Fatalf("OkdToMidi: %v", err)
	}
	if len(midi.Tracks) != 1+chunks.PTrackTotalChannels {
		t.Fatalf("len(midi.Tracks) = %d, want %d", len(midi.Tracks), 1+chunks.PTrackTotalChannels)
	}

	track := midi.Tracks[1] // port 0, channel 0
	var sawNoteOn, sawNoteOff bool
	for _, e := range track {
		if e.IsNoteOn() && e.Data1 == 60 {
			sawNoteOn = true
		}
		if e.IsNoteOff() && e.Data1 == 60 {
			sawNoteOff = true
		}
	}
	if !sawNoteOn || !sawNoteOff {
		t.Errorf("track 1 missing note-on/off pair: on=%v off=%v", sawNoteOn, sawNoteOff)
	}
}

func TestOkdToMidiIncompleteOKD(t *testing.T) {
	h := &header.YKS{Common: header.Common{Version: "YKS-1   v6.0v110"}}
	f := &okd.File{Header: h, Chunks: []chunks.Typed{chunks.MTrackChunk{}}}
	if _, err := OkdToMidi(f, false, nil); err != ErrIncompleteOKD {
		t.Errorf("OkdToMidi with incomplete OKD: got %v, want ErrIncompleteOKD", err)
	}
}

func TestOkdToMidiRoundTripsWithMidiToOkds(t *testing.T) {
	midi := newTestMidi()
	playing, _, err := MidiToOkds(midi, testHeader())
	if err != nil {
		t.Fatalf("MidiToOkds: %v", err)
	}

	back, err := OkdToMidi(playing, false, nil)
	if err != nil {
		t.Fatalf("OkdToMidi(MidiToOkds(midi)): %v", err)
	}
	if len(back.Tracks) != 1+chunks.PTrackTotalChannels {
		t.Errorf("len(back.Tracks) = %d, want %d", len(back.Tracks), 1+chunks.PTrackTotalChannels)
	}

	var sawNoteOn64 bool
	for _, track := range back.Tracks {
		for _, e := range track {
			if e.IsNoteOn() && e.Data1 == 64 {
				sawNoteOn64 = true
			}
		}
	}
	if !sawNoteOn64 {
		t.Errorf("expected note 64 (from port 0 channel 0 source track) to survive the round trip")
	}
}
