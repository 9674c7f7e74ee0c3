package smf

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestVLQRoundTrip(t *testing.T) {
	cases := []struct {
		v    uint32
		want []byte
	}{
		{0x00000000, []byte{0x00}},
		{0x000000C0, []byte{0x81, 0x40}},
		{0x0000007F, []byte{0x7F}},
		{0x00002000, []byte{0xC0, 0x00}},
		{0x001FFFFF, []byte{0xFF, 0xFF, 0x7F}},
	}
	for _, c := range cases {
		var buf bytes.Buffer
		if err := writeVLQ(&buf, c.v); err != nil {
			t.Fatalf("writeVLQ(%#x): %v", c.v, err)
		}
		if !bytes.Equal(buf.Bytes(), c.want) {
			t.Errorf("writeVLQ(%#x) = % X, want % X", c.v, buf.Bytes(), c.want)
		}

		got, err := readVLQ(bytes.NewReader(c.want))
		if err != nil {
			t.Fatalf("readVLQ(% X): %v", c.want, err)
		}
		if got != c.v {
			t.Errorf("readVLQ(% X) = %#x, want %#x", c.want, got, c.v)
		}
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	f := NewFile(480)
	f.Tracks = []Track{
		{
			{DeltaTicks: 0, Status: StatusMeta, MetaType: MetaTrackName, Bytes: []byte("meta")},
			{DeltaTicks: 0, Status: StatusMeta, MetaType: MetaSetTempo, Bytes: []byte{0x07, 0xA1, 0x20}},
			{DeltaTicks: 480, Status: StatusMeta, MetaType: MetaEndOfTrack},
		},
		{
			{DeltaTicks: 0, Status: StatusMeta, MetaType: MetaMIDIPort, Bytes: []byte{0x00}},
			{DeltaTicks: 0, Status: StatusNoteOn | 0x00, Data1: 60, Data2: 100},
			{DeltaTicks: 240, Status: StatusNoteOff | 0x00, Data1: 60, Data2: 0x40},
			{DeltaTicks: 0, Status: StatusMeta, MetaType: MetaEndOfTrack},
		},
	}

	var buf bytes.Buffer
	if err := Write(&buf, f); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff(f, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSameStatusEventsRoundTrip(t *testing.T) {
	f := NewFile(480)
	f.Tracks = []Track{
		{
			{DeltaTicks: 0, Status: StatusNoteOn | 0x01, Data1: 60, Data2: 100},
			{DeltaTicks: 10, Status: StatusNoteOn | 0x01, Data1: 64, Data2: 100},
			{DeltaTicks: 10, Status: StatusMeta, MetaType: MetaEndOfTrack},
		},
	}
	var buf bytes.Buffer
	if err := Write(&buf, f); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff(f.Tracks, got.Tracks); diff != "" {
		t.Errorf("same-status events round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDeltaEncodeAbsoluteTimes(t *testing.T) {
	abs := []AbsoluteEvent{
		{Ticks: 0, Event: Event{Status: StatusNoteOn, Data1: 60, Data2: 100}},
		{Ticks: 100, Event: Event{Status: StatusNoteOff, Data1: 60, Data2: 0}},
		{Ticks: 250, Event: Event{Status: StatusNoteOn, Data1: 64, Data2: 90}},
	}
	track := DeltaEncode(abs)
	wantDeltas := []uint32{0, 100, 150}
	for i, e := range track {
		if e.DeltaTicks != wantDeltas[i] {
			t.Errorf("track[%d].DeltaTicks = %d, want %d", i, e.DeltaTicks, wantDeltas[i])
		}
	}

	roundTripped := AbsoluteTimes(track)
	if diff := cmp.Diff(abs, roundTripped); diff != "" {
		t.Errorf("AbsoluteTimes(DeltaEncode(x)) mismatch (-want +got):\n%s", diff)
	}
}

func TestIsNoteOnOff(t *testing.T) {
	on := Event{Status: StatusNoteOn, Data1: 60, Data2: 100}
	if !on.IsNoteOn() || on.IsNoteOff() {
		t.Errorf("velocity-100 note-on misclassified")
	}
	zeroVelocity := Event{Status: StatusNoteOn, Data1: 60, Data2: 0}
	if zeroVelocity.IsNoteOn() || !zeroVelocity.IsNoteOff() {
		t.Errorf("zero-velocity note-on must classify as note-off")
	}
	off := Event{Status: StatusNoteOff, Data1: 60, Data2: 0x40}
	if !off.IsNoteOff() {
		t.Errorf("0x80 status must classify as note-off")
	}
}

func TestMetaTrackAndTrackByPortChannel(t *testing.T) {
	meta := Track{{DeltaTicks: 0, Status: StatusMeta, MetaType: MetaTrackName, Bytes: []byte("x")}}
	portTrack := Track{
		{DeltaTicks: 0, Status: StatusMeta, MetaType: MetaMIDIPort, Bytes: []byte{0x01}},
		{DeltaTicks: 0, Status: StatusNoteOn | 0x08, Data1: 60, Data2: 90},
	}
	tracks := []Track{meta, portTrack}

	got, ok := MetaTrack(tracks)
	if !ok {
		t.Fatalf("MetaTrack: not found")
	}
	if diff := cmp.Diff(meta, got); diff != "" {
		t.Errorf("MetaTrack mismatch (-want +got):\n%s", diff)
	}

	got, ok = TrackByPortChannel(tracks, 1, 8)
	if !ok {
		t.Fatalf("TrackByPortChannel(1, 8): not found")
	}
	if diff := cmp.Diff(portTrack, got); diff != "" {
		t.Errorf("TrackByPortChannel mismatch (-want +got):\n%s", diff)
	}

	if _, ok := TrackByPortChannel(tracks, 2, 0); ok {
		t.Errorf("TrackByPortChannel(2, 0): expected not found")
	}
}
