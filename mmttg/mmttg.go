/*
NAME
  mmttg.go

DESCRIPTION
  mmttg.go implements the virtual Yamaha MMT-TG multi-timbral tone
  generator: a sparse 2 MiB parameter memory mutated by SysEx messages,
  queried through typed System/MultiPartEntry snapshot views.

AUTHOR
  Xi80 <xi80@dam-song-tools-oss>

LICENSE
  Copyright (C) 2026 the dam-song-tools-oss authors. All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the dam-song-tools-oss authors.
*/

// Package mmttg implements a shadow copy of a Yamaha MMT-TG sound
// module's parameter memory: enough of its SysEx-addressable state to
// reconstruct the CC/PC messages a real module would have produced for
// the same SysEx stream.
package mmttg

import (
	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"
)

// PartsPerPort and Ports mirror the device's fixed two-port, sixteen-
// channel-per-port layout; Parts is their product.
const (
	PartsPerPort = 16
	Ports        = 2
	Parts        = PartsPerPort * Ports
)

// ErrInvalidSysEx is returned when ReceiveSysEx is given a malformed
// message (wrong status byte, missing terminator, or too few data
// bytes for its manufacturer id).
var ErrInvalidSysEx = errors.New("mmttg: invalid sysex message")

// Device is a virtual MMT-TG: its parameter memory and sound-module
// mode, mutated by SysEx and queried by System/MultiPartEntry.
//
// The memory is backed by a sparse map, not a 2 MiB slice: real songs
// touch a small fraction of the address space, and the from-memory
// views already treat an absent key as 0x00, so density never affects
// correctness (spec.md §9).
type Device struct {
	Mode   byte
	memory map[int]byte

	log logging.Logger
}

// New returns a Device with its parameter memory freshly initialized.
func New(log logging.Logger) *Device {
	d := &Device{log: log}
	d.Reset()
	return d
}

func (d *Device) infof(msg string, args ...interface{}) {
	if d.log == nil {
		return
	}
	d.log.Info(msg, args...)
}

func (d *Device) read(addr int) byte { return d.memory[addr] }

func (d *Device) write(addr int, v byte) { d.memory[addr] = v }

// Reset reinitializes the device to its power-on state: mode 0x00, and
// every multi-part entry's literal default-value table. The `rcv_*`
// receive-enable fields default to 0x01 rather than the obvious
// 0x00/0x7F -- an unexplained quirk of the reference implementation's
// own initializer, preserved verbatim per spec.md §9 Open Question (a).
func (d *Device) Reset() {
	d.Mode = 0x00
	d.memory = make(map[int]byte)

	for entryIndex := 0; entryIndex < 0x20; entryIndex++ {
		addr := 0x008000 + (entryIndex << 7)

		d.write(addr+0x01, 0x00)
		d.write(addr+0x02, 0x00)
		d.write(addr+0x03, 0x00)
		d.write(addr+0x04, byte(entryIndex))
		for off := 0x05; off <= 0x14; off++ {
			d.write(addr+off, 0x01)
		}

		d.write(addr+0x15, 0x01)
		d.write(addr+0x16, 0x01)
		d.write(addr+0x17, 0x01)
		d.write(addr+0x18, 0x01)
		d.write(addr+0x19, 0x08)
		d.write(addr+0x1A, 0x00)
		d.write(addr+0x1B, 0x64)
		d.write(addr+0x1C, 0x40)
		d.write(addr+0x1D, 0x40)
		d.write(addr+0x1E, 0x40)
		d.write(addr+0x1F, 0x00)
		d.write(addr+0x20, 0x7F)
		d.write(addr+0x21, 0x10)
		d.write(addr+0x22, 0x11)
		d.write(addr+0x23, 0x7F)
		d.write(addr+0x24, 0x00)
		d.write(addr+0x25, 0x40)
		d.write(addr+0x26, 0x00)

		for off := 0x27; off <= 0x2E; off++ {
			d.write(addr+off, 0x40)
		}
		for off := 0x2F; off <= 0x3A; off++ {
			d.write(addr+off, 0x40)
		}

		d.write(addr+0x3B, 0x40)
		d.write(addr+0x3C, 0x40)
		d.write(addr+0x3D, 0x40)
		d.write(addr+0x3E, 0x0A)
		d.write(addr+0x3F, 0x00)

		d.write(addr+0x41, 0x42)
		d.write(addr+0x42, 0x40)
		d.write(addr+0x43, 0x40)
		d.write(addr+0x44, 0x00)
		d.write(addr+0x45, 0x00)

		d.write(addr+0x47, 0x40)
		d.write(addr+0x48, 0x40)
		d.write(addr+0x49, 0x40)
		d.write(addr+0x4A, 0x00)
		d.write(addr+0x4B, 0x00)

		d.write(addr+0x4D, 0x40)
		d.write(addr+0x4E, 0x40)
		d.write(addr+0x4F, 0x40)
		d.write(addr+0x50, 0x00)
		d.write(addr+0x51, 0x00)

		d.write(addr+0x53, 0x40)
		d.write(addr+0x54, 0x40)
		d.write(addr+0x55, 0x40)
		d.write(addr+0x56, 0x00)
		d.write(addr+0x57, 0x00)

		d.write(addr+0x59, 0x40)
		d.write(addr+0x5A, 0x40)
		d.write(addr+0x5B, 0x40)
		d.write(addr+0x5C, 0x00)
		d.write(addr+0x5D, 0x00)

		d.write(addr+0x5F, 0x00)
		d.write(addr+0x60, 0x00)
	}
}

// sysExPayload validates the common SysEx envelope (status 0xF0, data
// non-empty, terminated by 0xF7) and returns the data bytes with the
// trailing 0xF7 stripped.
func sysExPayload(statusByte byte, dataBytes []byte) ([]byte, error) {
	if statusByte != 0xF0 {
		return nil, errors.Wrapf(ErrInvalidSysEx, "status=%#x", statusByte)
	}
	if len(dataBytes) < 1 {
		return nil, errors.Wrap(ErrInvalidSysEx, "empty data")
	}
	if dataBytes[len(dataBytes)-1] != 0xF7 {
		return nil, errors.Wrap(ErrInvalidSysEx, "missing 0xF7 terminator")
	}
	return dataBytes[:len(dataBytes)-1], nil
}

// ReceiveSysEx applies one SysEx event's effect to the device's
// parameter memory, dispatching on manufacturer id.
func (d *Device) ReceiveSysEx(statusByte byte, dataBytes []byte) error {
	payload, err := sysExPayload(statusByte, dataBytes)
	if err != nil {
		return err
	}

	switch payload[0] {
	case 0x7F:
		return d.receiveUniversalRealtime(payload)
	case 0x7E:
		return d.receiveUniversalNonRealtime(payload)
	case 0x43:
		return d.receiveNativeParameterChange(payload)
	default:
		d.infof("mmttg: unknown manufacturer id %#x", payload[0])
		return nil
	}
}

func (d *Device) receiveUniversalRealtime(payload []byte) error {
	if len(payload) < 6 {
		return errors.Wrap(ErrInvalidSysEx, "universal realtime: short message")
	}
	subID1, subID2 := payload[2], payload[3]
	if subID1 != 0x04 {
		d.infof("mmttg: unknown sub_id_1 %#x", subID1)
	}
	switch subID2 {
	case 0x01: // master volume
		volumeMSB := payload[5]
		d.write(0x000004, volumeMSB)
	case 0x02: // master balance
		balanceMSB := payload[5]
		d.write(0x000006, balanceMSB)
	default:
		d.infof("mmttg: unknown sub_id_2 %#x", subID2)
	}
	return nil
}

func (d *Device) receiveUniversalNonRealtime(payload []byte) error {
	if len(payload) < 5 {
		return errors.Wrap(ErrInvalidSysEx, "universal non-realtime: short message")
	}
	subID1, subID2 := payload[2], payload[3]
	if subID1 != 0x09 {
		d.infof("mmttg: unknown sub_id_1 %#x", subID1)
	}
	if subID2 == 0x01 {
		d.Mode = payload[4]
	} else {
		d.infof("mmttg: unknown sub_id_2 %#x", subID2)
	}
	return nil
}

func (d *Device) receiveNativeParameterChange(payload []byte) error {
	if len(payload) < 8 {
		return errors.Wrap(ErrInvalidSysEx, "native parameter change: short message")
	}
	deviceByte := payload[1]
	if deviceByte&0xF0 != 0x10 {
		return errors.Wrapf(ErrInvalidSysEx, "device byte %#x", deviceByte)
	}

	address := int(payload[3])<<14 | int(payload[4])<<7 | int(payload[5])
	dataLength := len(payload) - 7
	data := payload[6 : 6+dataLength]

	if address == 0x00007F {
		d.Reset()
		return nil
	}
	for i, b := range data {
		d.write(address+i, b)
	}
	return nil
}

// System is a snapshot of the device's global (non-part) parameters.
type System struct {
	MasterTune                      int
	MasterVolume                    byte
	Transpose                       byte
	MasterPan                       byte
	MasterCutoff                    byte
	MasterPitchModulationDepth      byte
	VariationEffectSendControlChange byte
}

// SystemFromMemory reconstructs a System snapshot from raw memory.
func SystemFromMemory(read func(addr int) byte) System {
	return System{
		MasterTune: int(read(0x000000)&0x0F)<<12 |
			int(read(0x000001)&0x0F)<<8 |
			int(read(0x000002)&0x0F)<<4 |
			int(read(0x000003)&0x0F),
		MasterVolume:                      read(0x000004),
		Transpose:                         read(0x000005),
		MasterPan:                         read(0x000006),
		MasterCutoff:                      read(0x000007),
		MasterPitchModulationDepth:        read(0x000008),
		VariationEffectSendControlChange: read(0x000009),
	}
}

// System returns the device's current global snapshot.
func (d *Device) System() System { return SystemFromMemory(d.read) }

// entryIndexToPartNumber maps a 0..31 multi-part entry index to the
// part number (MIDI channel, across both ports) it represents.
var entryIndexToPartNumber = [32]int{
	0x09, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06,
	0x07, 0x08, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F,
	0x19, 0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16,
	0x17, 0x18, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E, 0x1F,
}

// partNumberToEntryIndex is entryIndexToPartNumber's inverse.
var partNumberToEntryIndex = func() [32]int {
	var t [32]int
	for i, p := range entryIndexToPartNumber {
		t[p] = i
	}
	return t
}()

// EffectingMultiPartNumber reports the part number a native-parameter-
// change SysEx message targets, if it addresses a multi-part entry
// (address high byte 0x02) and is otherwise a recognized message.
func EffectingMultiPartNumber(statusByte byte, dataBytes []byte) (int, bool) {
	payload, err := sysExPayload(statusByte, dataBytes)
	if err != nil || len(payload) < 8 || payload[0] != 0x43 {
		return 0, false
	}
	if payload[3] != 0x02 {
		return 0, false
	}
	idx := int(payload[4])
	if idx < 0 || idx >= len(entryIndexToPartNumber) {
		return 0, false
	}
	return entryIndexToPartNumber[idx], true
}
