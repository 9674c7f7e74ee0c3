package miditime

import "testing"

func TestMsToTicksConstantTempo(t *testing.T) {
	c := New()
	c.AddTempoChange(0, 120) // 500000 us/beat, 480 ticks/beat -> 1 tick = 500000/480 us ~= 1.0417 ms

	ticks, err := c.MsToTicks(1000)
	if err != nil {
		t.Fatalf("MsToTicks: %v", err)
	}
	// 1000ms at 120bpm, 480 ppqn: beats = 1000/500 = 2, ticks = 2*480 = 960.
	if ticks != 960 {
		t.Errorf("MsToTicks(1000) = %d, want 960", ticks)
	}
}

func TestTicksToMsIsInverseOfMsToTicks(t *testing.T) {
	c := New()
	c.AddTempoChange(0, 120)
	c.AddTempoChange(2000, 90)

	for _, ms := range []int64{0, 500, 1999, 2000, 3000, 10000} {
		ticks, err := c.MsToTicks(ms)
		if err != nil {
			t.Fatalf("MsToTicks(%d): %v", ms, err)
		}
		back, err := c.TicksToMs(ticks)
		if err != nil {
			t.Fatalf("TicksToMs(%d): %v", ticks, err)
		}
		if diff := back - ms; diff < -1 || diff > 1 {
			t.Errorf("round trip ms=%d -> ticks=%d -> ms=%d, off by more than rounding", ms, ticks, back)
		}
	}
}

func TestNoTempoInformation(t *testing.T) {
	c := New()
	if _, err := c.MsToTicks(0); err != ErrNoTempoInformation {
		t.Errorf("MsToTicks with no tempo: got %v, want ErrNoTempoInformation", err)
	}
	if _, err := c.TicksToMs(0); err != ErrNoTempoInformation {
		t.Errorf("TicksToMs with no tempo: got %v, want ErrNoTempoInformation", err)
	}
}

func TestLoadFromMIDI(t *testing.T) {
	c := New()
	// 480 ppqn, starts at default 120bpm (500000 us/beat); after 480
	// ticks (one beat = 500ms) a set_tempo drops to 60bpm (1000000 us/beat).
	track := []TempoTrackEvent{
		{DeltaTicks: 480},
		{DeltaTicks: 0, IsSetTempo: true, MicrosecondsPerBeat: 1000000},
	}
	c.LoadFromMIDI(480, track)

	if len(c.TempoChanges) != 2 {
		t.Fatalf("TempoChanges = %v, want 2 entries", c.TempoChanges)
	}
	if c.TempoChanges[0].PositionMs != 0 || c.TempoChanges[0].TempoBPM != 120 {
		t.Errorf("first tempo change = %+v, want {0 120}", c.TempoChanges[0])
	}
	if c.TempoChanges[1].PositionMs != 500 {
		t.Errorf("second tempo change position = %d, want 500", c.TempoChanges[1].PositionMs)
	}
	if c.TempoChanges[1].TempoBPM != 60 {
		t.Errorf("second tempo change bpm = %v, want 60", c.TempoChanges[1].TempoBPM)
	}
}

func TestRoundHalfToEven(t *testing.T) {
	// At 120bpm with 2 ticks/beat, one tick is 250ms, so 125ms lands
	// exactly on the 0.5-tick boundary (rounds to 0, the even choice)
	// and 375ms lands on the 1.5-tick boundary (rounds to 2).
	c := &Converter{PPQN: 2, TempoChanges: []TempoChange{{PositionMs: 0, TempoBPM: 120}}}

	if ticks, err := c.MsToTicks(125); err != nil || ticks != 0 {
		t.Errorf("MsToTicks(125) = (%d, %v), want (0, nil)", ticks, err)
	}
	if ticks, err := c.MsToTicks(375); err != nil || ticks != 2 {
		t.Errorf("MsToTicks(375) = (%d, %v), want (2, nil)", ticks, err)
	}
}
