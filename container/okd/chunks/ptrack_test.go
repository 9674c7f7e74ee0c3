/*
NAME
  ptrack_test.go

DESCRIPTION
  ptrack_test.go contains tests for the P-track event stream, its chunk
  framing, and the channel fan-out engine.

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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/Xi80/dam-song-tools-oss/container/okd/chunk"
)

func ptrackChunk(number byte, events ...PTrackEvent) PTrackChunk {
	events = append(append([]PTrackEvent{}, events...), PTrackEvent{DataBytes: []byte{0, 0}})
	return PTrackChunk{ChunkNumber: number, Events: events}
}

func TestPTrackChunkRoundTrip(t *testing.T) {
	c := ptrackChunk(0,
		PTrackEvent{DeltaTime: 0, StatusByte: 0x90, DataBytes: []byte{0x3C, 0x64}, Duration: 100, HasDuration: true},
		PTrackEvent{DeltaTime: 10, StatusByte: 0xA0, DataBytes: []byte{0x40}},
		PTrackEvent{DeltaTime: 0, StatusByte: 0xF0, DataBytes: []byte{0x01, 0x02}},
		PTrackEvent{DeltaTime: 0, StatusByte: 0xFD},
		PTrackEvent{DeltaTime: 0, StatusByte: 0xFE, DataBytes: []byte{0xA1, 0x10, 0x20}},
	)

	g := c.Generic()
	got, err := ParsePTrackChunk(g)
	if err != nil {
		t.Fatalf("ParsePTrackChunk: %v", err)
	}
	if diff := cmp.Diff(c, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(g, got.Generic(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("re-serialize mismatch (-want +got):\n%s", diff)
	}
}

func TestPTrackSysExUnterminated(t *testing.T) {
	c := ptrackChunk(0, PTrackEvent{StatusByte: 0xF0, DataBytes: []byte{0x01}})
	g := c.Generic()
	raw := append([]byte{}, g.Payload...)
	for i, b := range raw {
		if b == 0xF7 {
			raw[i] = 0x80
			break
		}
	}
	if _, err := ParsePTrackChunk(chunk.Generic{ID: g.ID, Payload: raw}); err == nil {
		t.Fatalf("expected unterminated sysex error, got nil")
	}
}

func TestPTrackCompensationUnknown(t *testing.T) {
	c := ptrackChunk(0, PTrackEvent{StatusByte: 0xFE, DataBytes: []byte{0xB0, 0x01}})
	if _, err := ParsePTrackChunk(c.Generic()); err == nil {
		t.Fatalf("expected ErrUnknownCompensation, got nil")
	}
}

// entryForChannel0 returns a routing entry fanning channel 0 out to
// ports 0 and 1, group mask covering channels 0 and 1, with distinct
// alternative-CC remap targets.
func entryForChannel0() routingEntry {
	var e routingEntry
	e.ports[0] = 0b0000_0000_0000_0011 // ports 0, 1
	e.defaultChannelGroups[0] = 0b11    // channels 0, 1
	e.channelGroups[0] = 0b01           // channel 0 only, when grouping is on
	e.controlChangeAx[0] = 0x10
	e.controlChangeCx[0] = 0x20
	e.systemExPorts = 0b0101
	return e
}

func TestRelocateFanOut(t *testing.T) {
	entry := entryForChannel0()
	e := PTrackEvent{StatusByte: 0x90, DataBytes: []byte{0x3C, 0x64}}
	got := relocate(e, entry, false, 1000)

	want := []AbsoluteTimeEvent{
		{StatusByte: 0x90, DataBytes: e.DataBytes, Port: 0, Track: 0, Time: 1000},
		{StatusByte: 0x91, DataBytes: e.DataBytes, Port: 0, Track: 1, Time: 1000},
		{StatusByte: 0x90, DataBytes: e.DataBytes, Port: 1, Track: 16, Time: 1000},
		{StatusByte: 0x91, DataBytes: e.DataBytes, Port: 1, Track: 17, Time: 1000},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("relocate mismatch (-want +got):\n%s", diff)
	}
}

func TestRelocateGroupingEnabled(t *testing.T) {
	entry := entryForChannel0()
	e := PTrackEvent{StatusByte: 0x90, DataBytes: []byte{0x3C, 0x64}}
	got := relocate(e, entry, true, 0)

	// channelGroups[0] == 0b01: only channel 0 per destination port.
	want := []AbsoluteTimeEvent{
		{StatusByte: 0x90, DataBytes: e.DataBytes, Port: 0, Track: 0, Time: 0},
		{StatusByte: 0x90, DataBytes: e.DataBytes, Port: 1, Track: 16, Time: 0},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("relocate (grouping) mismatch (-want +got):\n%s", diff)
	}
}

func TestRelocateSystemMessage(t *testing.T) {
	entry := entryForChannel0()
	e := PTrackEvent{StatusByte: 0xF9, DataBytes: []byte{0x7F}}
	got := relocate(e, entry, false, 5)

	want := []AbsoluteTimeEvent{
		{StatusByte: 0xF9, DataBytes: e.DataBytes, Port: 0, Track: 0, Time: 5},
		{StatusByte: 0xF9, DataBytes: e.DataBytes, Port: 2, Track: 32, Time: 5},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("relocate (system) mismatch (-want +got):\n%s", diff)
	}
}

// singleChannelInfo builds a PTrackInfoEntry for track number n fanning
// channel 0 to port 0 only with an identity group mask, and with the
// given lossless flag.
func singleChannelInfo(track byte, lossless bool) PTrackInfoEntry {
	var e PTrackInfoEntry
	e.TrackNumber = track
	if lossless {
		e.TrackStatus = 0x80
	}
	e.ChannelInfo[0] = ChannelInfo{Ports: 0b0001, ControlChangeAx: 0x10, ControlChangeCx: 0x20}
	return e
}

// TestAbsoluteTimeTrackDurationShift is scenario 4 from the spec: a
// stored 90 3C 64 with duration=100 expands to a note-on at t and a
// note-off at t+400ms on a non-lossless track, t+100ms on a lossless one.
func TestAbsoluteTimeTrackDurationShift(t *testing.T) {
	for _, tc := range []struct {
		lossless bool
		wantOff  int64
	}{
		{lossless: false, wantOff: 400},
		{lossless: true, wantOff: 100},
	} {
		entry := singleChannelInfo(0, tc.lossless)
		info := PTrackInfoChunk{Entries: []PTrackInfoEntry{entry}}
		c := PTrackChunk{ChunkNumber: 0, Events: []PTrackEvent{
			{StatusByte: 0x90, DataBytes: []byte{0x3C, 0x64}, Duration: 100, HasDuration: true},
			{DataBytes: []byte{0, 0}},
		}}

		got, err := c.AbsoluteTimeTrack(info)
		if err != nil {
			t.Fatalf("lossless=%v: AbsoluteTimeTrack: %v", tc.lossless, err)
		}

		want := []AbsoluteTimeEvent{
			{StatusByte: 0x90, DataBytes: []byte{0x3C, 0x64}, Port: 0, Track: 0, Time: 0},
			{StatusByte: 0x80, DataBytes: []byte{0x3C, 0x40}, Port: 0, Track: 0, Time: tc.wantOff},
		}
		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("lossless=%v mismatch (-want +got):\n%s", tc.lossless, diff)
		}
	}
}

func TestAbsoluteTimeTrackAlternativeCC(t *testing.T) {
	entry := singleChannelInfo(0, false)
	info := PTrackInfoChunk{Entries: []PTrackInfoEntry{entry}}
	c := PTrackChunk{ChunkNumber: 0, Events: []PTrackEvent{
		{StatusByte: 0xA0, DataBytes: []byte{0x40}},
		{StatusByte: 0xC0, DataBytes: []byte{0x7F}},
		{DataBytes: []byte{0, 0}},
	}}

	got, err := c.AbsoluteTimeTrack(info)
	if err != nil {
		t.Fatalf("AbsoluteTimeTrack: %v", err)
	}

	want := []AbsoluteTimeEvent{
		{StatusByte: 0xB0, DataBytes: []byte{0x10, 0x40}, Port: 0, Track: 0, Time: 0},
		{StatusByte: 0xB0, DataBytes: []byte{0x20, 0x7F}, Port: 0, Track: 0, Time: 0},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

// TestAbsoluteTimeTrackStableSortByTime checks that a long note's
// synthesized note-off -- appended to the output list before a later
// stored event that resolves to an earlier absolute time -- ends up
// sorted after it.
func TestAbsoluteTimeTrackStableSortByTime(t *testing.T) {
	entry := singleChannelInfo(0, false)
	entry.SystemExPorts = 0b0001
	info := PTrackInfoChunk{Entries: []PTrackInfoEntry{entry}}
	c := PTrackChunk{ChunkNumber: 0, Events: []PTrackEvent{
		{DeltaTime: 0, StatusByte: 0x90, DataBytes: []byte{0x3C, 0x64}, Duration: 1000, HasDuration: true},
		{DeltaTime: 100, StatusByte: 0xF9, DataBytes: []byte{0x01}},
		{DataBytes: []byte{0, 0}},
	}}

	got, err := c.AbsoluteTimeTrack(info)
	if err != nil {
		t.Fatalf("AbsoluteTimeTrack: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("AbsoluteTimeTrack() = %d events, want 3: %+v", len(got), got)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Time > got[i].Time {
			t.Fatalf("events not sorted by time: %+v", got)
		}
	}
	if got[0].StatusByte != 0x90 || got[1].StatusByte != 0xF9 || got[2].StatusByte != 0x80 {
		t.Fatalf("unexpected event order: %+v", got)
	}
}
