/*
NAME
  scramble_test.go

DESCRIPTION
  scramble_test.go contains tests for the XOR-stream scramble transform
  and its pattern-index detection.

AUTHOR
  Xi80 <xi80@dam-song-tools-oss>

LICENSE
  Copyright (C) 2026 the dam-song-tools-oss authors. All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the dam-song-tools-oss authors.
*/

package scramble

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestTransformIsSelfInverse(t *testing.T) {
	orig := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	buf := append([]byte{}, orig...)

	idxAfterScramble, err := Scramble(buf, 17)
	if err != nil {
		t.Fatalf("Scramble: %v", err)
	}
	if bytes.Equal(buf, orig) {
		t.Fatalf("Scramble did not change the buffer")
	}

	idxAfterDescramble, err := Descramble(buf, 17)
	if err != nil {
		t.Fatalf("Descramble: %v", err)
	}
	if !bytes.Equal(buf, orig) {
		t.Fatalf("Descramble(Scramble(x)) = % x, want % x", buf, orig)
	}
	if idxAfterScramble != idxAfterDescramble {
		t.Errorf("returned index mismatch: %d vs %d", idxAfterScramble, idxAfterDescramble)
	}
}

func TestTransformIndexAdvancesPerWord(t *testing.T) {
	buf := make([]byte, 6) // 3 words
	next, err := Transform(buf, 250)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	// 250 + 3 words wraps mod 256 to 253.
	if next != 253 {
		t.Errorf("next index = %d, want 253", next)
	}
}

func TestTransformOddLength(t *testing.T) {
	if _, err := Transform([]byte{0x01}, 0); err != ErrUnexpectedEnd {
		t.Fatalf("Transform() err = %v, want ErrUnexpectedEnd", err)
	}
}

// TestTransformChunkedEquivalence checks that transforming a buffer in
// one call, continuing the returned index across two calls on split
// halves, produces the same bytes either way -- this is the property
// the container layer relies on when it scrambles the header and chunk
// stream as separate writes sharing one running index.
func TestTransformChunkedEquivalence(t *testing.T) {
	data := make([]byte, 40)
	for i := range data {
		data[i] = byte(i * 7)
	}

	whole := append([]byte{}, data...)
	if _, err := Scramble(whole, 100); err != nil {
		t.Fatalf("Scramble: %v", err)
	}

	split := append([]byte{}, data...)
	idx, err := Scramble(split[:10], 100)
	if err != nil {
		t.Fatalf("Scramble (first half): %v", err)
	}
	if _, err := Scramble(split[10:], idx); err != nil {
		t.Fatalf("Scramble (second half): %v", err)
	}

	if !bytes.Equal(whole, split) {
		t.Errorf("chunked scramble diverged from whole-buffer scramble:\n whole=% x\n split=% x", whole, split)
	}
}

// TestDetectIndexAllK is the boundary test from spec.md section 8: for
// every k in [0, 255], constructing a magic by XOR-scrambling a known
// expected value with starting index k must make DetectIndex recover
// exactly that k.
func TestDetectIndexAllK(t *testing.T) {
	const expected = 0x594B5331 // "YKS1"
	for k := 0; k < 256; k++ {
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, expected)
		if _, err := Scramble(buf, uint8(k)); err != nil {
			t.Fatalf("k=%d: Scramble: %v", k, err)
		}
		actual := binary.BigEndian.Uint32(buf)

		got, err := DetectIndex(actual, expected)
		if err != nil {
			t.Fatalf("k=%d: DetectIndex: %v", k, err)
		}
		if got != uint8(k) {
			t.Errorf("k=%d: DetectIndex() = %d, want %d", k, got, k)
		}
	}
}

// TestDetectIndexNoMatch checks that a magic one pattern-table word off
// from every valid scramble of expected is rejected: DetectIndex must
// not degrade into an approximate or wraparound match.
func TestDetectIndexNoMatch(t *testing.T) {
	const expected = 0x594B5331
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, expected)
	if _, err := Scramble(buf, 0); err != nil {
		t.Fatalf("Scramble: %v", err)
	}
	actual := binary.BigEndian.Uint32(buf) ^ 1 // flip one bit so no k can match.

	if _, err := DetectIndex(actual, expected); err != ErrDetectFailed {
		t.Fatalf("DetectIndex() err = %v, want ErrDetectFailed", err)
	}
}
