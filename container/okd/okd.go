/*
NAME
  okd.go

DESCRIPTION
  okd.go ties the container format's layers together: the optional
  SPRC envelope, scramble detection/application, the header family, and
  the chunk stream, into a single OKD file read/write surface.

AUTHOR
  Xi80 <xi80@dam-song-tools-oss>

LICENSE
  Copyright (C) 2026 the dam-song-tools-oss authors. All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the dam-song-tools-oss authors.
*/

// Package okd implements the top-level OKD container file: the
// optional SPRC envelope, the scrambled-or-plaintext header and chunk
// body, and the typed chunks within it.
package okd

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"io"
	"math/big"

	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"

	"github.com/Xi80/dam-song-tools-oss/codec/scramble"
	"github.com/Xi80/dam-song-tools-oss/container/okd/chunk"
	"github.com/Xi80/dam-song-tools-oss/container/okd/chunks"
	"github.com/Xi80/dam-song-tools-oss/container/okd/header"
	"github.com/Xi80/dam-song-tools-oss/container/okd/sprc"
)

// ErrCRCMismatch is returned when an SPRC envelope's checksum doesn't
// match its payload.
var ErrCRCMismatch = errors.New("okd: SPRC CRC-16/GENIBUS mismatch")

// File is a fully parsed OKD file: its header and typed chunks.
type File struct {
	Header header.Header
	Chunks []chunks.Typed

	log logging.Logger
}

// SetLogger attaches a logger to f. The scramble-detection and SPRC
// validation notices in Read go through the File that Read builds,
// which has no logger while Read runs, so those notices are not
// emitted.
func (f *File) SetLogger(l logging.Logger) { f.log = l }

func (f *File) infof(msg string, args ...interface{}) {
	if f.log == nil {
		return
	}
	f.log.Info(msg, args...)
}

// ReadOption configures Read's optional behavior.
type ReadOption func(*readOptions)

type readOptions struct {
	force bool
}

// WithForce skips SPRC CRC-16/GENIBUS validation, matching the
// reference implementation's force_flag override.
func WithForce() ReadOption {
	return func(o *readOptions) { o.force = true }
}

// Read parses an OKD file from r: SPRC detection/validation, scramble
// detection, header parsing, and the chunk stream.
func Read(r io.Reader, opts ...ReadOption) (*File, error) {
	var o readOptions
	for _, opt := range opts {
		opt(&o)
	}

	f := &File{}
	br := bufio.NewReader(r)

	hasSPRC, err := sprc.HasHeader(br)
	if err != nil {
		return nil, err
	}
	if hasSPRC {
		f.infof("SPRC header detected")
		sprcHeader, err := sprc.Read(br)
		if err != nil {
			return nil, err
		}
		rest, err := io.ReadAll(br)
		if err != nil {
			return nil, errors.Wrap(err, "okd: read post-SPRC payload")
		}
		if o.force {
			f.infof("SPRC CRC validation skipped (force)")
		} else if !sprcHeader.Validate(rest) {
			return nil, ErrCRCMismatch
		} else {
			f.infof("SPRC CRC validation succeeded")
		}
		br = bufio.NewReader(bytes.NewReader(rest))
	}

	idx, scrambled, err := detectScrambleIndex(br)
	if err != nil {
		return nil, err
	}

	var bodyBytes []byte
	if !scrambled {
		f.infof("OKD file is not scrambled")
		bodyBytes, err = io.ReadAll(br)
		if err != nil {
			return nil, errors.Wrap(err, "okd: read body")
		}
		body := bytes.NewReader(bodyBytes)
		h, err := header.Read(body)
		if err != nil {
			return nil, err
		}
		f.Header = h
		return f, f.readChunks(body)
	}

	f.infof("OKD file is scrambled")

	fixed := make([]byte, header.FixedPartLength)
	if _, err := io.ReadFull(br, fixed); err != nil {
		return nil, errors.Wrap(err, "okd: read fixed header part")
	}
	idx, err = scramble.Transform(fixed, idx)
	if err != nil {
		return nil, err
	}
	common, optionalDataLength, err := header.ParseFixedPart(fixed)
	if err != nil {
		return nil, err
	}

	optionalData := make([]byte, optionalDataLength)
	if _, err := io.ReadFull(br, optionalData); err != nil {
		return nil, errors.Wrap(err, "okd: read optional header data")
	}
	idx, err = scramble.Transform(optionalData, idx)
	if err != nil {
		return nil, err
	}
	f.Header = header.FromOptionalData(common, optionalData)

	fixedLen := header.FixedPartLength + len(optionalData)
	var scrambledLength, plaintextLength uint32
	if common.AdpcmOffset == 0 {
		scrambledLength = (common.Length + 8) - uint32(fixedLen)
	} else {
		scrambledLength = common.AdpcmOffset - uint32(fixedLen)
		plaintextLength = (common.Length + 8) - common.AdpcmOffset
	}

	scrambledBody := make([]byte, scrambledLength)
	if _, err := io.ReadFull(br, scrambledBody); err != nil {
		return nil, errors.Wrap(err, "okd: read scrambled chunk body")
	}
	if _, err := scramble.Transform(scrambledBody, idx); err != nil {
		return nil, err
	}

	bodyBytes = scrambledBody
	if plaintextLength > 0 {
		plaintextBody := make([]byte, plaintextLength)
		if _, err := io.ReadFull(br, plaintextBody); err != nil {
			return nil, errors.Wrap(err, "okd: read plaintext tail")
		}
		bodyBytes = append(bodyBytes, plaintextBody...)
	}

	return f, f.readChunks(bytes.NewReader(bodyBytes))
}

func (f *File) readChunks(body io.Reader) error {
	bodyReader := chunk.NewReader(body)
	generics, err := bodyReader.All()
	if err != nil {
		return err
	}
	for _, g := range generics {
		typed, err := chunks.Parse(g)
		if err != nil {
			return err
		}
		f.Chunks = append(f.Chunks, typed)
	}
	return nil
}

// detectScrambleIndex inspects the next 4 bytes of br (without
// consuming them) to find the scramble index that would have produced
// them from header.MagicBytes, the same way a reader probes for the
// index before it knows the content.
func detectScrambleIndex(br *bufio.Reader) (uint8, bool, error) {
	peeked, err := br.Peek(4)
	if err != nil {
		return 0, false, errors.Wrap(err, "okd: peek magic bytes")
	}
	var magic [4]byte
	copy(magic[:], peeked)
	if magic == header.MagicBytes {
		return 0, false, nil
	}

	want := binary.BigEndian.Uint32(header.MagicBytes[:])
	got := binary.BigEndian.Uint32(magic)
	idx, err := scramble.DetectIndex(got, want)
	if err != nil {
		return 0, false, err
	}
	return idx, true, nil
}

// Write serializes f to w. When scramble is true, a random scramble
// index is chosen and both the header and the chunk body are
// transformed with it threaded through in sequence -- the reference
// writer's choice to keep one running index across both segments
// rather than resetting per segment.
func (f *File) Write(w io.Writer, shouldScramble bool) error {
	var chunkBuf bytes.Buffer
	for _, c := range f.Chunks {
		g := c.Generic()
		if err := chunk.Write(&chunkBuf, g.ID, g.Payload); err != nil {
			return err
		}
	}

	common := f.Header.CommonFields()
	common.Length = uint32(header.FixedPartLength+len(f.Header.OptionalData())+chunkBuf.Len()) - 8
	if shouldScramble {
		common.EncryptionMode = 1
	} else {
		common.EncryptionMode = 0
	}
	f.Header.SetCommonFields(common)

	var headerBuf bytes.Buffer
	if err := header.Write(&headerBuf, f.Header); err != nil {
		return err
	}

	if shouldScramble {
		idx, err := randomScrambleIndex()
		if err != nil {
			return err
		}
		headerBytes := headerBuf.Bytes()
		idx, err = scramble.Transform(headerBytes, idx)
		if err != nil {
			return err
		}
		if _, err := w.Write(headerBytes); err != nil {
			return errors.Wrap(err, "okd: write scrambled header")
		}
		chunkBytes := chunkBuf.Bytes()
		if _, err := scramble.Transform(chunkBytes, idx); err != nil {
			return err
		}
		if _, err := w.Write(chunkBytes); err != nil {
			return errors.Wrap(err, "okd: write scrambled chunks")
		}
	} else {
		if _, err := w.Write(headerBuf.Bytes()); err != nil {
			return errors.Wrap(err, "okd: write header")
		}
		if _, err := w.Write(chunkBuf.Bytes()); err != nil {
			return errors.Wrap(err, "okd: write chunks")
		}
	}

	_, err := w.Write(chunk.EndMark[:])
	return errors.Wrap(err, "okd: write end mark")
}

func randomScrambleIndex() (uint8, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(256))
	if err != nil {
		return 0, errors.Wrap(err, "okd: choose scramble index")
	}
	return uint8(n.Int64()), nil
}
