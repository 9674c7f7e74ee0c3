/*
NAME
  sprc_test.go

DESCRIPTION
  sprc_test.go contains tests for the SPRC envelope and its
  CRC-16/GENIBUS checksum.

AUTHOR
  Xi80 <xi80@dam-song-tools-oss>

LICENSE
  Copyright (C) 2026 the dam-song-tools-oss authors. All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the dam-song-tools-oss authors.
*/

package sprc

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestCRC16GenibusCheckValue checks the CRC-16/GENIBUS algorithm
// against its standard check value: CRC16/GENIBUS("123456789") ==
// 0xD64E.
func TestCRC16GenibusCheckValue(t *testing.T) {
	got := CRC16Genibus([]byte("123456789"))
	if got != 0xD64E {
		t.Errorf("CRC16Genibus(\"123456789\") = %#04x, want 0xd64e", got)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	payload := []byte("some okd file contents")
	h := NewHeader(payload, 1, 0x01)
	copy(h.Unknown0[:], []byte{1, 2, 3, 4, 5, 6, 7})

	var buf bytes.Buffer
	if err := h.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.Len() != HeaderSize {
		t.Fatalf("written length = %d, want %d", buf.Len(), HeaderSize)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff(h, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if !got.Validate(payload) {
		t.Errorf("Validate() = false, want true")
	}
}

func TestHeaderValidateRejectsTamperedPayload(t *testing.T) {
	payload := []byte("some okd file contents")
	h := NewHeader(payload, 1, 0)
	tampered := append([]byte{}, payload...)
	tampered[0] ^= 0xFF
	if h.Validate(tampered) {
		t.Errorf("Validate() = true for tampered payload, want false")
	}
}

func TestReadBadMagic(t *testing.T) {
	buf := make([]byte, HeaderSize)
	copy(buf, []byte("NOPE"))
	if _, err := Read(bytes.NewReader(buf)); err == nil {
		t.Fatalf("expected error for bad magic, got nil")
	}
}

func TestHasHeader(t *testing.T) {
	for _, tc := range []struct {
		name string
		data []byte
		want bool
	}{
		{"present", append([]byte("SPRC"), make([]byte, 12)...), true},
		{"absent", []byte("YKS1 rest of the data here"), false},
		{"empty", nil, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := bufio.NewReader(bytes.NewReader(tc.data))
			got, err := HasHeader(r)
			if err != nil {
				t.Fatalf("HasHeader: %v", err)
			}
			if got != tc.want {
				t.Errorf("HasHeader() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHasHeaderDoesNotConsume(t *testing.T) {
	data := append([]byte("SPRC"), make([]byte, 12)...)
	r := bufio.NewReader(bytes.NewReader(data))
	if _, err := HasHeader(r); err != nil {
		t.Fatalf("HasHeader: %v", err)
	}
	h, err := Read(r)
	if err != nil {
		t.Fatalf("Read after HasHeader: %v", err)
	}
	if h.Revision != 0 {
		t.Errorf("Revision = %d, want 0", h.Revision)
	}
}
