/*
NAME
  miditime.go

DESCRIPTION
  miditime.go implements a piecewise-linear tick⇄millisecond time
  converter driven by an ordered list of tempo changes, used by the
  MIDI⇄OKD conversion layer to translate between a song's absolute
  millisecond timeline and a Standard MIDI File's tick timeline.

AUTHOR
  Xi80 <xi80@dam-song-tools-oss>

LICENSE
  Copyright (C) 2026 the dam-song-tools-oss authors. All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the dam-song-tools-oss authors.
*/

// Package miditime converts between MIDI ticks and milliseconds over a
// song carrying an arbitrary number of tempo changes.
package miditime

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// ErrNoTempoInformation is returned by MsToTicks/TicksToMs when no
// tempo change has been recorded.
var ErrNoTempoInformation = errors.New("miditime: no tempo information available")

// TempoChange is one entry of a Converter's tempo map: the BPM takes
// effect starting at PositionMs.
type TempoChange struct {
	PositionMs int64
	TempoBPM   float64
}

// Converter accumulates tempo changes and converts between ticks and
// milliseconds against them.
type Converter struct {
	PPQN         int
	TempoChanges []TempoChange
}

// New returns a Converter at the default 480 ticks-per-quarter-note
// resolution with no tempo changes recorded.
func New() *Converter {
	return &Converter{PPQN: 480}
}

// AddTempoChange records a tempo change at positionMs, keeping
// TempoChanges sorted by position.
func (c *Converter) AddTempoChange(positionMs int64, tempoBPM float64) {
	c.TempoChanges = append(c.TempoChanges, TempoChange{PositionMs: positionMs, TempoBPM: tempoBPM})
	sort.SliceStable(c.TempoChanges, func(i, j int) bool {
		return c.TempoChanges[i].PositionMs < c.TempoChanges[j].PositionMs
	})
}

// microsecondsPerBeatToBPM converts a set_tempo microseconds-per-quarter
// -note value to BPM, the same conversion mido.tempo2bpm performs.
func microsecondsPerBeatToBPM(microsecondsPerBeat uint32) float64 {
	return 60_000_000.0 / float64(microsecondsPerBeat)
}

// TempoTrackEvent is one event of the tempo-bearing track handed to
// LoadFromMIDI: a delta time in ticks, and an optional set_tempo value.
type TempoTrackEvent struct {
	DeltaTicks     uint32
	IsSetTempo     bool
	MicrosecondsPerBeat uint32
}

// LoadFromMIDI rebuilds the converter's tempo map by walking a single
// tempo-bearing track's events in order, starting at 120 BPM
// (500000 µs/beat) and accumulating ticks to milliseconds at the
// active tempo exactly as the reference player does, so every
// set_tempo's position is its own converted time, not a raw tick
// count.
func (c *Converter) LoadFromMIDI(ppqn int, track []TempoTrackEvent) {
	c.PPQN = ppqn

	currentTimeMs := 0.0
	currentTempo := uint32(500000)

	c.TempoChanges = []TempoChange{{PositionMs: 0, TempoBPM: microsecondsPerBeatToBPM(currentTempo)}}

	for _, e := range track {
		if e.DeltaTicks > 0 {
			msPerTick := float64(currentTempo) / (float64(ppqn) * 1000)
			currentTimeMs += float64(e.DeltaTicks) * msPerTick
		}
		if e.IsSetTempo {
			currentTempo = e.MicrosecondsPerBeat
			c.AddTempoChange(int64(math.RoundToEven(currentTimeMs)), microsecondsPerBeatToBPM(currentTempo))
		}
	}
}

// ticksAtTempo returns the number of ticks a duration (in ms) occupies
// at a constant tempo.
func (c *Converter) ticksAtTempo(durationMs float64, tempoBPM float64) float64 {
	microsecondsPerBeat := 60_000_000.0 / tempoBPM
	microseconds := durationMs * 1000
	return (microseconds / microsecondsPerBeat) * float64(c.PPQN)
}

// MsToTicks converts an absolute millisecond position to ticks,
// summing whole tempo sections up to timeMs. Time before the first
// tempo change is computed at that first tempo. The result is rounded
// half-to-even at the boundary, matching Python's round().
func (c *Converter) MsToTicks(timeMs int64) (int64, error) {
	if len(c.TempoChanges) == 0 {
		return 0, ErrNoTempoInformation
	}

	if timeMs < c.TempoChanges[0].PositionMs {
		return int64(math.RoundToEven(c.ticksAtTempo(float64(timeMs), c.TempoChanges[0].TempoBPM))), nil
	}

	var totalTicks float64
	for i := range c.TempoChanges {
		currentTempo := c.TempoChanges[i].TempoBPM

		sectionEnd := timeMs
		if i < len(c.TempoChanges)-1 {
			sectionEnd = c.TempoChanges[i+1].PositionMs
		}
		if sectionEnd > timeMs {
			sectionEnd = timeMs
		}

		sectionDuration := sectionEnd - c.TempoChanges[i].PositionMs
		if sectionDuration > 0 {
			totalTicks += c.ticksAtTempo(float64(sectionDuration), currentTempo)
		}

		if sectionEnd == timeMs {
			break
		}
	}

	return int64(math.RoundToEven(totalTicks)), nil
}

// TicksToMs converts a tick count to its absolute millisecond
// position, walking tempo sections from the start of the song.
func (c *Converter) TicksToMs(ticks int64) (int64, error) {
	if len(c.TempoChanges) == 0 {
		return 0, ErrNoTempoInformation
	}

	remainingTicks := float64(ticks)
	currentTime := int64(0)

	for i := range c.TempoChanges {
		currentTempo := c.TempoChanges[i].TempoBPM

		var sectionTicks float64
		if i < len(c.TempoChanges)-1 {
			sectionDuration := c.TempoChanges[i+1].PositionMs - c.TempoChanges[i].PositionMs
			sectionTicks = c.ticksAtTempo(float64(sectionDuration), currentTempo)
		} else {
			sectionTicks = remainingTicks
		}

		if remainingTicks <= sectionTicks {
			microsecondsPerBeat := 60_000_000.0 / currentTempo
			ms := (remainingTicks * microsecondsPerBeat) / (float64(c.PPQN) * 1000)
			return currentTime + int64(math.RoundToEven(ms)), nil
		}

		remainingTicks -= sectionTicks
		currentTime = c.TempoChanges[i+1].PositionMs
	}

	return currentTime, nil
}
