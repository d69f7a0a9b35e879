// Package codec converts between decoded sample buffers and encoded audio:
// canonical PCM16 WAV in both directions, raw linear PCM and Ogg Opus on the
// decode side, and a streaming Ogg Opus encoder for microphone capture.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hammamikhairi/voicestudio/internal/domain"
)

const (
	wavHeaderSize  = 44
	formatPCM      = 1
	formatFloat    = 3
	formatExtended = 0xFFFE
)

// EncodeWAV renders buf as a canonical 44-byte-header RIFF/WAVE file with
// interleaved little-endian 16-bit PCM. The output is byte-identical for
// identical input.
func EncodeWAV(buf *domain.SampleBuffer) domain.EncodedAudio {
	numCh := buf.NumChannels()
	frames := buf.Frames()
	dataSize := frames * numCh * 2
	out := make([]byte, wavHeaderSize+dataSize)

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(wavHeaderSize-8+dataSize))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], formatPCM)
	binary.LittleEndian.PutUint16(out[22:24], uint16(numCh))
	binary.LittleEndian.PutUint32(out[24:28], uint32(buf.SampleRate()))
	binary.LittleEndian.PutUint32(out[28:32], uint32(buf.SampleRate()*numCh*2))
	binary.LittleEndian.PutUint16(out[32:34], uint16(numCh*2))
	binary.LittleEndian.PutUint16(out[34:36], 16)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))

	pos := wavHeaderSize
	for i := 0; i < frames; i++ {
		for c := 0; c < numCh; c++ {
			binary.LittleEndian.PutUint16(out[pos:], uint16(FloatToPCM16(buf.Channel(c)[i])))
			pos += 2
		}
	}
	return domain.EncodedAudio{Data: out, MIMEType: domain.MIMEWAV}
}

// FloatToPCM16 clamps s to [-1, 1] and scales it asymmetrically so both
// ends of the range map onto int16 without overflow. NaN encodes as silence.
func FloatToPCM16(s float32) int16 {
	if math.IsNaN(float64(s)) {
		return 0
	}
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}

// PCM16ToFloat is the inverse of FloatToPCM16.
func PCM16ToFloat(v int16) float32 {
	if v < 0 {
		return float32(v) / 32768
	}
	return float32(v) / 32767
}

type wavFormat struct {
	tag        uint16
	channels   int
	sampleRate int
	bits       int
}

// DecodeWAV parses a RIFF/WAVE file holding 16-bit PCM or 32-bit float
// samples, walking chunks so files with LIST or fact chunks decode too.
func DecodeWAV(data []byte) (*domain.SampleBuffer, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE file", domain.ErrDecode)
	}

	var (
		format  *wavFormat
		payload []byte
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		start := pos + 8
		end := start + size
		if end > len(data) || end < start {
			// Streaming writers leave 0 or 0xFFFFFFFF in the data size.
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-start < 16 {
				return nil, fmt.Errorf("%w: fmt chunk too short", domain.ErrDecode)
			}
			f := data[start:end]
			format = &wavFormat{
				tag:        binary.LittleEndian.Uint16(f[0:2]),
				channels:   int(binary.LittleEndian.Uint16(f[2:4])),
				sampleRate: int(binary.LittleEndian.Uint32(f[4:8])),
				bits:       int(binary.LittleEndian.Uint16(f[14:16])),
			}
			if format.tag == formatExtended && len(f) >= 26 {
				format.tag = binary.LittleEndian.Uint16(f[24:26])
			}
		case "data":
			payload = data[start:end]
		}

		pos = end
		// Chunks are word-aligned.
		if size%2 != 0 {
			pos++
		}
	}

	if format == nil {
		return nil, fmt.Errorf("%w: fmt chunk not found", domain.ErrDecode)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: data chunk not found", domain.ErrDecode)
	}
	if format.channels < 1 || format.sampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid format (channels=%d, rate=%d)", domain.ErrDecode, format.channels, format.sampleRate)
	}

	switch {
	case format.tag == formatPCM && format.bits == 16:
		return deinterleavePCM16(payload, format.channels, format.sampleRate)
	case format.tag == formatFloat && format.bits == 32:
		return deinterleaveFloat32(payload, format.channels, format.sampleRate)
	}
	return nil, fmt.Errorf("%w: unsupported wav encoding (tag=%d, bits=%d)", domain.ErrDecode, format.tag, format.bits)
}

func deinterleavePCM16(pcm []byte, numCh, rate int) (*domain.SampleBuffer, error) {
	frames := len(pcm) / (2 * numCh)
	chs := make([][]float32, numCh)
	for c := range chs {
		chs[c] = make([]float32, frames)
	}
	pos := 0
	for i := 0; i < frames; i++ {
		for c := 0; c < numCh; c++ {
			chs[c][i] = PCM16ToFloat(int16(binary.LittleEndian.Uint16(pcm[pos:])))
			pos += 2
		}
	}
	return domain.NewSampleBuffer(rate, chs)
}

func deinterleaveFloat32(raw []byte, numCh, rate int) (*domain.SampleBuffer, error) {
	frames := len(raw) / (4 * numCh)
	chs := make([][]float32, numCh)
	for c := range chs {
		chs[c] = make([]float32, frames)
	}
	pos := 0
	for i := 0; i < frames; i++ {
		for c := 0; c < numCh; c++ {
			bits := binary.LittleEndian.Uint32(raw[pos:])
			chs[c][i] = math.Float32frombits(bits)
			pos += 4
		}
	}
	return domain.NewSampleBuffer(rate, chs)
}
