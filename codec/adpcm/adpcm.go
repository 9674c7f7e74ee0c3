/*
NAME
  adpcm.go

DESCRIPTION
  adpcm.go implements the OKD/MTF bespoke ADPCM variant: an 18-frame
  frame-group, 4-subframe, 28-nibble-per-subframe structure driven by a
  two-tap predictor, with 20 bytes of ignored padding between frame
  groups.

AUTHOR
  Xi80 <xi80@dam-song-tools-oss>

LICENSE
  Copyright (C) 2026 the dam-song-tools-oss authors. All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the dam-song-tools-oss authors.
*/

// Package adpcm decodes the OKD/MTF container format's custom ADPCM
// bitstream into signed 16-bit PCM samples.
package adpcm

import (
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/pkg/errors"
)

const (
	framesPerGroup  = 18
	frameSize       = 128 // 16 bytes of parameters + 112 bytes of packed nibbles.
	paramSize       = 16
	subFrameNibbles = 28
	samplesPerFrame = 4 * 2 * subFrameNibbles // 4 subframes, 2 nibbles, 28 samples each = 224.
	groupPadding    = 20
	shiftLimit      = 12
	indexLimit      = 3
)

// k0 and k1 are the two-tap predictor coefficients, indexed by the
// 2-bit "index" field of a subframe's shift/index parameter byte.
var k0 = [4]float64{0, 15.0 / 16.0, 115.0 / 64.0, 49.0 / 32.0}
var k1 = [4]float64{0, 0, -13.0 / 16.0, -55.0 / 64.0}

// signedNibbles maps a raw 4-bit nibble to its signed value.
var signedNibbles = [16]int32{0, 1, 2, 3, 4, 5, 6, 7, -8, -7, -6, -5, -4, -3, -2, -1}

// ErrBadShift is returned when a subframe's shift parameter exceeds
// shiftLimit.
var ErrBadShift = errors.New("adpcm: shift parameter out of range")

// ErrBadIndex is returned when a subframe's index parameter exceeds
// indexLimit.
var ErrBadIndex = errors.New("adpcm: index parameter out of range")

// Decoder decodes the custom ADPCM bitstream into signed 16-bit PCM
// samples, writing little-endian sample pairs to dst as whole frame
// groups become available.
type Decoder struct {
	// dst is the destination for decoded PCM data.
	dst io.Writer

	prev1, prev2 int32 // Two-tap predictor sample history.

	pending []byte // Bytes accumulated toward the next frame group.
}

// NewDecoder returns a new Decoder writing decoded 16-bit little-endian
// PCM samples to dst.
func NewDecoder(dst io.Writer) *Decoder {
	return &Decoder{dst: dst}
}

// Write accepts an arbitrary-length slice of raw ADPCM bytes, decoding
// and emitting every complete frame group it can assemble. Bytes left
// over (a partial frame group) are buffered for the next call. It never
// returns an error for malformed parameters or a short final frame
// group -- per the format's stop-cleanly semantics, decoding simply
// halts at the first frame group that cannot be fully decoded.
func (d *Decoder) Write(b []byte) (int, error) {
	n := len(b)
	d.pending = append(d.pending, b...)

	groupLen := framesPerGroup*frameSize + groupPadding
	for len(d.pending) >= groupLen {
		samples, ok := d.decodeGroup(d.pending[:framesPerGroup*frameSize])
		if !ok {
			d.pending = nil
			return n, nil
		}
		if err := d.emit(samples); err != nil {
			return n, err
		}
		d.pending = d.pending[groupLen:]
	}
	return n, nil
}

// emit writes samples as little-endian 16-bit PCM to dst.
func (d *Decoder) emit(samples []int16) error {
	buf := make([]byte, 2*len(samples))
	for i, s := range samples {
		buf[2*i] = byte(uint16(s))
		buf[2*i+1] = byte(uint16(s) >> 8)
	}
	_, err := d.dst.Write(buf)
	return err
}

// decodeGroup decodes the framesPerGroup frames packed into data (which
// must be exactly framesPerGroup*frameSize bytes), returning false if any
// frame's parameters are out of range.
func (d *Decoder) decodeGroup(data []byte) ([]int16, bool) {
	out := make([]int16, 0, framesPerGroup*samplesPerFrame)
	for f := 0; f < framesPerGroup; f++ {
		frame := data[f*frameSize : (f+1)*frameSize]
		samples, err := d.decodeFrame(frame)
		if err != nil {
			return out, false
		}
		out = append(out, samples...)
	}
	return out, true
}

// decodeFrame decodes a single 128-byte frame into its 224 samples.
func (d *Decoder) decodeFrame(frame []byte) ([]int16, error) {
	params := frame[:paramSize]
	samples := frame[paramSize:]

	out := make([]int16, 0, samplesPerFrame)
	for i := 0; i < 4; i++ {
		for j := 0; j < 2; j++ {
			paramIndex := j + i*2
			if i >= 2 {
				paramIndex += 4
			}
			sub, err := d.decodeSubFrame(params[paramIndex], samples, i, j)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
	}
	return out, nil
}

// decodeSubFrame decodes the subFrameNibbles samples of subframe subIndex
// using the single shift/index parameter byte param, taking one nibble
// per byte: nibble == 0 selects the low nibble, any other value selects
// the high nibble. Nibble k of this subframe lives in byte
// samples[k*4+subIndex]. A subframe's two nibble types are decoded by
// two separate calls (nibble 0 then nibble 1), each under its own
// parameter byte, not both within a single call.
func (d *Decoder) decodeSubFrame(param byte, samples []byte, subIndex, nibble int) ([]int16, error) {
	shift := param & 0x0F
	index := param >> 4
	if shift > shiftLimit {
		return nil, ErrBadShift
	}
	if index > indexLimit {
		return nil, ErrBadIndex
	}

	out := make([]int16, 0, subFrameNibbles)
	for k := 0; k < subFrameNibbles; k++ {
		su := samples[k*4+subIndex]
		var n byte
		if nibble != 0 {
			n = su >> 4
		} else {
			n = su & 0x0F
		}
		out = append(out, d.decodeSample(n, shift, index))
	}
	return out, nil
}

// decodeSample decodes a single nibble into a signed 16-bit sample and
// advances the predictor state.
func (d *Decoder) decodeSample(nibble byte, shift, index byte) int16 {
	signed := signedNibbles[nibble]
	predicted := float64(signed<<(12-shift)) + k0[index]*float64(d.prev1) + k1[index]*float64(d.prev2)

	sample := clamp16(int32(math.Round(predicted)))
	d.prev2 = d.prev1
	d.prev1 = int32(sample)
	return sample
}

// clamp16 saturates v to the int16 range.
func clamp16(v int32) int16 {
	switch {
	case v < math.MinInt16:
		return math.MinInt16
	case v > math.MaxInt16:
		return math.MaxInt16
	default:
		return int16(v)
	}
}

// Decode decodes every complete frame group readable from r, stopping
// cleanly (without error) at the first short read or malformed
// parameter, and returns the samples decoded so far.
func Decode(r io.Reader) ([]int16, error) {
	var out []int16
	dec := &Decoder{dst: sampleSink{&out}}
	if _, err := io.Copy(writerFunc(dec.Write), r); err != nil {
		return out, errors.Wrap(err, "adpcm: decode")
	}
	return out, nil
}

// DecodeBuffer decodes r the same way Decode does, and wraps the result
// in a go-audio IntBuffer suitable for further processing with the
// go-audio ecosystem (resampling, WAV encoding, and so on).
func DecodeBuffer(r io.Reader, sampleRate int) (*audio.IntBuffer, error) {
	samples, err := Decode(r)
	if err != nil {
		return nil, err
	}
	ints := make([]int, len(samples))
	for i, s := range samples {
		ints[i] = int(s)
	}
	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           ints,
		SourceBitDepth: 16,
	}, nil
}

// sampleSink accumulates little-endian 16-bit PCM samples written to it
// into an []int16 slice, adapting Decoder's io.Writer destination to an
// in-memory sample buffer for Decode/DecodeBuffer.
type sampleSink struct {
	out *[]int16
}

func (s sampleSink) Write(b []byte) (int, error) {
	for i := 0; i+1 < len(b); i += 2 {
		v := int16(uint16(b[i]) | uint16(b[i+1])<<8)
		*s.out = append(*s.out, v)
	}
	return len(b), nil
}

// writerFunc adapts a Write method to the io.Writer interface so
// io.Copy can drive it directly from an io.Reader source.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) { return f(b) }
