/*
NAME
  okd_test.go

DESCRIPTION
  okd_test.go contains tests for the top-level OKD file reader/writer:
  the scrambled and unscrambled round trips tying the header, chunk
  stream, and SPRC envelope together.

AUTHOR
  Xi80 <xi80@dam-song-tools-oss>

LICENSE
  Copyright (C) 2026 the dam-song-tools-oss authors. All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the dam-song-tools-oss authors.
*/

package okd

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Xi80/dam-song-tools-oss/container/okd/chunk"
	"github.com/Xi80/dam-song-tools-oss/container/okd/chunks"
	"github.com/Xi80/dam-song-tools-oss/container/okd/header"
	"github.com/Xi80/dam-song-tools-oss/container/okd/sprc"
)

func sprcHeaderFor(t *testing.T, payload []byte) sprc.Header {
	t.Helper()
	return sprc.NewHeader(payload, 1, 0)
}

func sampleFile(t *testing.T) *File {
	t.Helper()
	typed, err := chunks.Parse(chunk.Generic{ID: [4]byte{'T', 'E', 'S', 'T'}, Payload: []byte{0x01, 0x02, 0x03, 0x04}})
	if err != nil {
		t.Fatalf("chunks.Parse: %v", err)
	}
	return &File{
		Header: &header.YKS{Common: header.Common{Version: "1.00", IDKaraoke: 1}},
		Chunks: []chunks.Typed{typed},
	}
}

// TestUnscrambledRoundTrip is scenario 1 from spec.md section 8: an
// unscrambled YKS skeleton with a single chunk.
func TestUnscrambledRoundTrip(t *testing.T) {
	f := sampleFile(t)

	var buf bytes.Buffer
	if err := f.Write(&buf, false); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	wantCommon := f.Header.CommonFields()
	gotCommon := got.Header.CommonFields()
	if diff := cmp.Diff(wantCommon, gotCommon); diff != "" {
		t.Errorf("header common fields mismatch (-want +got):\n%s", diff)
	}
	if gotCommon.EncryptionMode != 0 {
		t.Errorf("EncryptionMode = %d, want 0 (unscrambled)", gotCommon.EncryptionMode)
	}
	if len(got.Chunks) != 1 {
		t.Fatalf("len(Chunks) = %d, want 1", len(got.Chunks))
	}
	if diff := cmp.Diff(f.Chunks[0].Generic(), got.Chunks[0].Generic()); diff != "" {
		t.Errorf("chunk mismatch (-want +got):\n%s", diff)
	}
}

func TestScrambledRoundTrip(t *testing.T) {
	f := sampleFile(t)

	var buf bytes.Buffer
	if err := f.Write(&buf, true); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	gotCommon := got.Header.CommonFields()
	if gotCommon.EncryptionMode != 1 {
		t.Errorf("EncryptionMode = %d, want 1 (scrambled)", gotCommon.EncryptionMode)
	}
	if gotCommon.Version != "1.00" || gotCommon.IDKaraoke != 1 {
		t.Errorf("header fields not recovered after descramble: %+v", gotCommon)
	}
	if len(got.Chunks) != 1 {
		t.Fatalf("len(Chunks) = %d, want 1", len(got.Chunks))
	}
	if diff := cmp.Diff(f.Chunks[0].Generic(), got.Chunks[0].Generic()); diff != "" {
		t.Errorf("chunk mismatch after descramble (-want +got):\n%s", diff)
	}
}

func TestReadWithSPRCEnvelope(t *testing.T) {
	f := sampleFile(t)
	var okdBuf bytes.Buffer
	if err := f.Write(&okdBuf, false); err != nil {
		t.Fatalf("Write: %v", err)
	}

	sprcHeader := sprcHeaderFor(t, okdBuf.Bytes())
	var wrapped bytes.Buffer
	if err := sprcHeader.Write(&wrapped); err != nil {
		t.Fatalf("sprc Write: %v", err)
	}
	wrapped.Write(okdBuf.Bytes())

	got, err := Read(&wrapped)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got.Chunks) != 1 {
		t.Fatalf("len(Chunks) = %d, want 1", len(got.Chunks))
	}
}

func TestReadWithSPRCEnvelopeCRCMismatch(t *testing.T) {
	f := sampleFile(t)
	var okdBuf bytes.Buffer
	if err := f.Write(&okdBuf, false); err != nil {
		t.Fatalf("Write: %v", err)
	}

	sprcHeader := sprcHeaderFor(t, okdBuf.Bytes())
	var wrapped bytes.Buffer
	if err := sprcHeader.Write(&wrapped); err != nil {
		t.Fatalf("sprc Write: %v", err)
	}
	// Tamper a byte inside the chunk payload, well past the header's
	// magic bytes, so the file still parses cleanly under WithForce.
	tampered := append([]byte{}, okdBuf.Bytes()...)
	tampered[len(tampered)-6] ^= 0xFF
	wrapped.Write(tampered)

	if _, err := Read(&wrapped); err != ErrCRCMismatch {
		t.Fatalf("Read() err = %v, want ErrCRCMismatch", err)
	}

	var wrapped2 bytes.Buffer
	if err := sprcHeader.Write(&wrapped2); err != nil {
		t.Fatalf("sprc Write: %v", err)
	}
	wrapped2.Write(tampered)
	if _, err := Read(&wrapped2, WithForce()); err != nil {
		t.Fatalf("Read() with WithForce: %v", err)
	}
}
