/*
NAME
  multipart.go

DESCRIPTION
  multipart.go implements MultiPartEntry: the per-channel voice
  parameter block of the MMT-TG's memory map, and the translation of a
  before/after pair of entries into the subset of fields the reference
  implementation actually turns into CC/PC messages.

AUTHOR
  Xi80 <xi80@dam-song-tools-oss>

LICENSE
  Copyright (C) 2026 the dam-song-tools-oss authors. All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the dam-song-tools-oss authors.
*/

package mmttg

// MultiPartEntry is the complete voice-parameter block for one of the
// device's 32 multi-part entries. Every field the reference
// implementation's MultiPartEntry dataclass defines is carried here,
// even though ToMIDIMessages only currently translates a subset of
// them -- the rest are queryable but untranslated, matching the
// original (spec.md §4 "SUPPLEMENTED FEATURES").
type MultiPartEntry struct {
	BankSelectMSB byte
	BankSelectLSB byte
	ProgramNumber byte

	RcvChannel        byte
	RcvPitchBend      byte
	RcvChAfterTouch   byte
	RcvProgramChange  byte
	RcvControlChange  byte
	RcvPolyAfterTouch byte
	RcvNoteMessage    byte
	RcvRPN            byte
	RcvNRPN           byte
	RcvModulation     byte
	RcvVolume         byte
	RcvPan            byte
	RcvExpression     byte
	RcvHold1          byte
	RcvPortamento     byte
	RcvSostenuto      byte
	RcvSoftPedal      byte

	MonoPolyMode               byte
	SameNoteNumberKeyOnAssign  byte
	PartMode                   byte
	NoteShift                  byte
	Detune                     int
	Volume                     byte
	VelocitySenseDepth         byte
	VelocitySenseOffset        byte
	Pan                        byte
	NoteLimitLow               byte
	NoteLimitHigh              byte
	AC1ControllerNumber        byte
	AC2ControllerNumber        byte
	DryLevel                   byte
	ChorusSend                 byte
	ReverbSend                 byte
	VariationSend              byte

	VibratoRate             byte
	VibratoDepth            byte
	FilterCutoffFrequency   byte
	FilterResonance         byte
	EGAttackTime            byte
	EGDecayTime             byte
	EGReleaseTime           byte
	VibratoDelay            byte

	ScaleTuningC      byte
	ScaleTuningCSharp byte
	ScaleTuningD      byte
	ScaleTuningDSharp byte
	ScaleTuningE      byte
	ScaleTuningF      byte
	ScaleTuningFSharp byte
	ScaleTuningG      byte
	ScaleTuningGSharp byte
	ScaleTuningA      byte
	ScaleTuningASharp byte
	ScaleTuningB      byte

	MWPitchControl       byte
	MWFilterControl      byte
	MWAmplitudeControl   byte
	MWLFOPModDepth       byte
	MWLFOFModDepth       byte

	BendPitchControl     byte
	BendFilterControl    byte
	BendAmplitudeControl byte
	BendLFOPModDepth     byte
	BendLFOFModDepth     byte

	CATPitchControl     byte
	CATFilterControl    byte
	CATAmplitudeControl byte
	CATLFOPModDepth     byte
	CATLFOFModDepth     byte

	PATPitchControl     byte
	PATFilterControl    byte
	PATAmplitudeControl byte
	PATLFOPModDepth     byte
	PATLFOFModDepth     byte

	AC1PitchControl     byte
	AC1FilterControl    byte
	AC1AmplitudeControl byte
	AC1LFOPModDepth     byte
	AC1LFOFModDepth     byte

	AC2PitchControl     byte
	AC2FilterControl    byte
	AC2AmplitudeControl byte
	AC2LFOPModDepth     byte
	AC2LFOFModDepth     byte

	PortamentoSwitch byte
	PortamentoTime   byte
}

// MultiPartEntryFromMemory reconstructs one entry from raw memory for
// the given part number (0..31), translated through
// partNumberToEntryIndex to find its base address.
func MultiPartEntryFromMemory(read func(addr int) byte, partNumber int) MultiPartEntry {
	entryIndex := partNumberToEntryIndex[partNumber]
	a := 0x008000 + (entryIndex << 7)

	return MultiPartEntry{
		BankSelectMSB: read(a + 0x01),
		BankSelectLSB: read(a + 0x02),
		ProgramNumber: read(a + 0x03),

		RcvChannel:        read(a + 0x04),
		RcvPitchBend:      read(a + 0x05),
		RcvChAfterTouch:   read(a + 0x06),
		RcvProgramChange:  read(a + 0x07),
		RcvControlChange:  read(a + 0x08),
		RcvPolyAfterTouch: read(a + 0x09),
		RcvNoteMessage:    read(a + 0x0A),
		RcvRPN:            read(a + 0x0B),
		RcvNRPN:           read(a + 0x0C),
		RcvModulation:     read(a + 0x0D),
		RcvVolume:         read(a + 0x0E),
		RcvPan:            read(a + 0x0F),
		RcvExpression:     read(a + 0x10),
		RcvHold1:          read(a + 0x11),
		RcvPortamento:     read(a + 0x12),
		RcvSostenuto:      read(a + 0x13),
		RcvSoftPedal:      read(a + 0x14),

		MonoPolyMode:              read(a + 0x15),
		SameNoteNumberKeyOnAssign: read(a + 0x16),
		PartMode:                  read(a + 0x17),
		NoteShift:                 read(a + 0x18),
		Detune:                    int(read(a+0x19)&0x0F)<<4 | int(read(a+0x1A)&0x0F),
		Volume:                    read(a + 0x1B),
		VelocitySenseDepth:        read(a + 0x1C),
		VelocitySenseOffset:       read(a + 0x1D),
		Pan:                       read(a + 0x1E),
		NoteLimitLow:              read(a + 0x1F),
		NoteLimitHigh:             read(a + 0x20),
		AC1ControllerNumber:       read(a + 0x21),
		AC2ControllerNumber:       read(a + 0x22),
		DryLevel:                  read(a + 0x23),
		ChorusSend:                read(a + 0x24),
		ReverbSend:                read(a + 0x25),
		VariationSend:             read(a + 0x26),

		VibratoRate:           read(a + 0x27),
		VibratoDepth:          read(a + 0x28),
		FilterCutoffFrequency: read(a + 0x29),
		FilterResonance:       read(a + 0x2A),
		EGAttackTime:          read(a + 0x2B),
		EGDecayTime:           read(a + 0x2C),
		EGReleaseTime:         read(a + 0x2D),
		VibratoDelay:          read(a + 0x2E),

		ScaleTuningC:      read(a + 0x2F),
		ScaleTuningCSharp: read(a + 0x30),
		ScaleTuningD:      read(a + 0x31),
		ScaleTuningDSharp: read(a + 0x32),
		ScaleTuningE:      read(a + 0x33),
		ScaleTuningF:      read(a + 0x34),
		ScaleTuningFSharp: read(a + 0x35),
		ScaleTuningG:      read(a + 0x36),
		ScaleTuningGSharp: read(a + 0x37),
		ScaleTuningA:      read(a + 0x38),
		ScaleTuningASharp: read(a + 0x39),
		ScaleTuningB:      read(a + 0x3A),

		MWPitchControl:     read(a + 0x3B),
		MWFilterControl:    read(a + 0x3C),
		MWAmplitudeControl: read(a + 0x3D),
		MWLFOPModDepth:     read(a + 0x3E),
		MWLFOFModDepth:     read(a + 0x3F),

		BendPitchControl:     read(a + 0x41),
		BendFilterControl:    read(a + 0x42),
		BendAmplitudeControl: read(a + 0x43),
		BendLFOPModDepth:     read(a + 0x44),
		BendLFOFModDepth:     read(a + 0x45),

		CATPitchControl:     read(a + 0x47),
		CATFilterControl:    read(a + 0x48),
		CATAmplitudeControl: read(a + 0x49),
		CATLFOPModDepth:     read(a + 0x4A),
		CATLFOFModDepth:     read(a + 0x4B),

		PATPitchControl:     read(a + 0x4D),
		PATFilterControl:    read(a + 0x4E),
		PATAmplitudeControl: read(a + 0x4F),
		PATLFOPModDepth:     read(a + 0x50),
		PATLFOFModDepth:     read(a + 0x51),

		AC1PitchControl:     read(a + 0x53),
		AC1FilterControl:    read(a + 0x54),
		AC1AmplitudeControl: read(a + 0x55),
		AC1LFOPModDepth:     read(a + 0x56),
		AC1LFOFModDepth:     read(a + 0x57),

		AC2PitchControl:     read(a + 0x59),
		AC2FilterControl:    read(a + 0x5A),
		AC2AmplitudeControl: read(a + 0x5B),
		AC2LFOPModDepth:     read(a + 0x5C),
		AC2LFOFModDepth:     read(a + 0x5D),

		PortamentoSwitch: read(a + 0x5F),
		PortamentoTime:   read(a + 0x60),
	}
}

// MultiPartEntry returns the device's current snapshot for partNumber
// (0..31).
func (d *Device) MultiPartEntry(partNumber int) MultiPartEntry {
	return MultiPartEntryFromMemory(d.read, partNumber)
}

// MultiPartEntries returns all 32 entries' current snapshots, in part
// number order.
func (d *Device) MultiPartEntries() [Parts]MultiPartEntry {
	var out [Parts]MultiPartEntry
	for p := 0; p < Parts; p++ {
		out[p] = d.MultiPartEntry(p)
	}
	return out
}

// MIDIMessage is a minimal standard MIDI channel message: a control
// change or a program change, timestamped by the caller.
type MIDIMessage struct {
	Channel  int
	Control  byte // valid for IsProgramChange == false
	Value    byte
	IsProgramChange bool
	Program  byte // valid for IsProgramChange == true
}

// cc builds a control-change MIDIMessage.
func cc(channel int, control, value byte) MIDIMessage {
	return MIDIMessage{Channel: channel, Control: control, Value: value}
}

// ToMIDIMessages translates the fields that changed from before to
// after into the CC/PC messages a real MMT-TG would have emitted,
// using the field→controller table in spec.md §4.10. Fields with no
// entry in that table are ignored even if changed, matching the
// original's to_mido_messages, which only ever switches on a fixed key
// set.
func ToMIDIMessages(before, after MultiPartEntry, channel int) []MIDIMessage {
	var out []MIDIMessage

	if after.BankSelectMSB != before.BankSelectMSB {
		out = append(out, cc(channel, 0x00, after.BankSelectMSB))
	}
	if after.BankSelectLSB != before.BankSelectLSB {
		out = append(out, cc(channel, 0x20, after.BankSelectLSB))
	}
	if after.ProgramNumber != before.ProgramNumber {
		out = append(out, MIDIMessage{Channel: channel, IsProgramChange: true, Program: after.ProgramNumber})
	}
	if after.Volume != before.Volume {
		out = append(out, cc(channel, 0x07, after.Volume))
	}
	if after.Pan != before.Pan {
		out = append(out, cc(channel, 0x0A, after.Pan))
	}
	if after.ReverbSend != before.ReverbSend {
		out = append(out, cc(channel, 0x5B, after.ReverbSend))
	}
	if after.ChorusSend != before.ChorusSend {
		out = append(out, cc(channel, 0x5D, after.ChorusSend))
	}
	if after.VariationSend != before.VariationSend {
		out = append(out, cc(channel, 0x5E, after.VariationSend))
	}
	if after.VibratoRate != before.VibratoRate {
		out = append(out, cc(channel, 0x4C, after.VibratoRate))
	}
	if after.VibratoDepth != before.VibratoDepth {
		out = append(out, cc(channel, 0x4D, after.VibratoDepth))
	}
	if after.VibratoDelay != before.VibratoDelay {
		out = append(out, cc(channel, 0x4E, after.VibratoDelay))
	}
	if after.BendPitchControl != before.BendPitchControl {
		// Pitch-bend range is RPN 0x0000 (pitch-bend sensitivity): RPN
		// MSB/LSB 0x00, then data entry MSB carrying the semitone range.
		out = append(out,
			cc(channel, 0x65, 0x00),
			cc(channel, 0x64, 0x00),
			cc(channel, 0x06, after.BendPitchControl-0x40),
		)
	}
	if after.PortamentoSwitch != before.PortamentoSwitch {
		v := byte(0x7F)
		if after.PortamentoSwitch == 0x00 {
			v = 0x00
		}
		out = append(out, cc(channel, 0x41, v))
	}
	if after.PortamentoTime != before.PortamentoTime {
		out = append(out, cc(channel, 0x05, after.PortamentoTime))
	}

	return out
}
