package convert

import (
	"testing"

	"github.com/Xi80/dam-song-tools-oss/container/okd/chunks"
	"github.com/Xi80/dam-song-tools-oss/container/okd/header"
	"github.com/Xi80/dam-song-tools-oss/miditime"
	"github.com/Xi80/dam-song-tools-oss/smf"
)

func metaTrackAt120BPM() smf.Track {
	return smf.Track{
		{DeltaTicks: 0, Status: smf.StatusMeta, MetaType: smf.MetaSetTempo, Bytes: []byte{0x07, 0xA1, 0x20}},
		{DeltaTicks: 480, Status: smf.StatusMeta, MetaType: smf.MetaEndOfTrack},
	}
}

func newTestMidi() *smf.File {
	f := smf.NewFile(480)
	melody := smf.Track{
		{DeltaTicks: 0, Status: smf.StatusMeta, MetaType: smf.MetaMIDIPort, Bytes: []byte{melodyPort}},
		{DeltaTicks: 0, Status: smf.StatusNoteOn | melodyChannel, Data1: 60, Data2: 100},
		{DeltaTicks: 240, Status: smf.StatusNoteOff | melodyChannel, Data1: 60, Data2: 0},
	}
	port0chan0 := smf.Track{
		{DeltaTicks: 0, Status: smf.StatusMeta, MetaType: smf.MetaMIDIPort, Bytes: []byte{0x00}},
		{DeltaTicks: 0, Status: smf.StatusNoteOn | 0x00, Data1: 64, Data2: 90},
		{DeltaTicks: 120, Status: smf.StatusControlChange | 0x00, Data1: 7, Data2: 100},
		{DeltaTicks: 120, Status: smf.StatusNoteOff | 0x00, Data1: 64, Data2: 0},
	}
	f.Tracks = []smf.Track{metaTrackAt120BPM(), melody, port0chan0}
	return f
}

func testHeader() header.Header {
	return &header.YKS{Common: header.Common{Version: "YKS-1   v6.0v110"}}
}

func TestMidiToOkdsBasic(t *testing.T) {
	playing, p3, err := MidiToOkds(newTestMidi(), testHeader())
	if err != nil {
		t.Fatalf("MidiToOkds: %v", err)
	}

	var mtrackSeen, infoSeen, ptrackSeen bool
	for _, c := range playing.Chunks {
		switch tc := c.(type) {
		case chunks.MTrackChunk:
			mtrackSeen = true
			last := tc.Events[len(tc.Events)-1]
			if last.StatusByte != 0x00 || len(last.DataBytes) != 3 {
				t.Errorf("MTrackChunk missing 3-byte end marker, got %+v", last)
			}
		case chunks.PTrackInfoChunk:
			infoSeen = true
			if len(tc.Entries) == 0 {
				t.Errorf("PTrackInfoChunk has no entries")
			}
			for _, e := range tc.Entries {
				if e.UseChannelGroupFlag == 0 {
					t.Errorf("entry %d has no UseChannelGroupFlag bits set", e.TrackNumber)
				}
			}
		case chunks.PTrackChunk:
			ptrackSeen = true
			last := tc.Events[len(tc.Events)-1]
			if last.StatusByte != 0x00 || len(last.DataBytes) != 2 {
				t.Errorf("PTrackChunk missing 2-byte end marker, got %+v", last)
			}
		}
	}
	if !mtrackSeen || !infoSeen || !ptrackSeen {
		t.Errorf("playing OKD missing expected chunk kinds: mtrack=%v info=%v ptrack=%v", mtrackSeen, infoSeen, ptrackSeen)
	}

	if len(p3.Chunks) != 2 {
		t.Fatalf("p3 OKD chunk count = %d, want 2", len(p3.Chunks))
	}
	if _, ok := p3.Chunks[0].(chunks.P3TrackInfoChunk); !ok {
		t.Errorf("p3.Chunks[0] is not a P3TrackInfoChunk: %T", p3.Chunks[0])
	}
	ptc, ok := p3.Chunks[1].(chunks.PTrackChunk)
	if !ok {
		t.Fatalf("p3.Chunks[1] is not a PTrackChunk: %T", p3.Chunks[1])
	}
	if ptc.ChunkNumber != p3TrackNumber {
		t.Errorf("p3 track chunk number = %d, want %d", ptc.ChunkNumber, p3TrackNumber)
	}
}

func TestMidiToOkdsNoMetaTrack(t *testing.T) {
	f := smf.NewFile(480)
	f.Tracks = []smf.Track{{{DeltaTicks: 0, Status: smf.StatusNoteOn, Data1: 60, Data2: 90}}}
	if _, _, err := MidiToOkds(f, testHeader()); err != ErrNoMetaTrack {
		t.Errorf("MidiToOkds with no meta track: got %v, want ErrNoMetaTrack", err)
	}
}

func TestMidiToOkdsNoP3Track(t *testing.T) {
	f := smf.NewFile(480)
	port0 := smf.Track{
		{DeltaTicks: 0, Status: smf.StatusMeta, MetaType: smf.MetaMIDIPort, Bytes: []byte{0x00}},
		{DeltaTicks: 0, Status: smf.StatusNoteOn | 0x00, Data1: 60, Data2: 90},
		{DeltaTicks: 10, Status: smf.StatusNoteOff | 0x00, Data1: 60, Data2: 0},
	}
	f.Tracks = []smf.Track{metaTrackAt120BPM(), port0}
	if _, _, err := MidiToOkds(f, testHeader()); err != ErrNoP3Track {
		t.Errorf("MidiToOkds with no melody track: got %v, want ErrNoP3Track", err)
	}
}

func TestNoteEventsForChannelOverlappingFIFO(t *testing.T) {
	conv := miditime.New()
	conv.AddTempoChange(0, 120)
	track := smf.Track{
		{DeltaTicks: 0, Status: smf.StatusNoteOn, Data1: 60, Data2: 10},
		{DeltaTicks: 10, Status: smf.StatusNoteOn, Data1: 60, Data2: 20},
		{DeltaTicks: 10, Status: smf.StatusNoteOff, Data1: 60, Data2: 0},
		{DeltaTicks: 10, Status: smf.StatusNoteOff, Data1: 60, Data2: 0},
	}
	events, err := noteEventsForChannel(track, conv, 0)
	if err != nil {
		t.Fatalf("noteEventsForChannel: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].data[1] != 10 {
		t.Errorf("first note velocity = %d, want 10 (FIFO pairing)", events[0].data[1])
	}
	if events[1].data[1] != 20 {
		t.Errorf("second note velocity = %d, want 20 (FIFO pairing)", events[1].data[1])
	}
}
