package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"mime"
	"strconv"
	"strings"

	"github.com/hammamikhairi/voicestudio/internal/domain"
	"github.com/hammamikhairi/voicestudio/internal/logger"
)

// Decoder turns encoded audio into sample buffers. Raw PCM without a rate
// parameter is assumed to be at the decoder's context rate.
type Decoder struct {
	contextRate int
	log         *logger.Logger
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithDecoderLogger sets the logger used for format diagnostics.
func WithDecoderLogger(l *logger.Logger) DecoderOption {
	return func(d *Decoder) { d.log = l }
}

// NewDecoder creates a decoder bound to the given context rate.
func NewDecoder(contextRate int, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		contextRate: contextRate,
		log:         logger.Discard(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Decode sniffs the container from magic bytes, falling back to the MIME
// type for headerless PCM. Every failure wraps domain.ErrDecode.
func (d *Decoder) Decode(audio domain.EncodedAudio) (*domain.SampleBuffer, error) {
	if audio.Empty() {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrDecode)
	}
	data := audio.Data

	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		d.log.Debug("decode: wav container (%d bytes)", len(data))
		return DecodeWAV(data)
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte("OggS")):
		d.log.Debug("decode: ogg container (%d bytes)", len(data))
		return DecodeOggOpus(data)
	}

	base, params, err := mime.ParseMediaType(audio.MIMEType)
	if err != nil {
		return nil, fmt.Errorf("%w: unrecognised payload (mime %q): %v", domain.ErrDecode, audio.MIMEType, err)
	}
	switch strings.ToLower(base) {
	case strings.ToLower(domain.MIMEL16), domain.MIMEPCM:
		rate, channels, err := d.pcmParams(params)
		if err != nil {
			return nil, err
		}
		d.log.Debug("decode: raw pcm rate=%d channels=%d (%d bytes)", rate, channels, len(data))
		return DecodeL16(data, rate, channels)
	}
	return nil, fmt.Errorf("%w: unsupported format %q", domain.ErrDecode, audio.MIMEType)
}

func (d *Decoder) pcmParams(params map[string]string) (rate, channels int, err error) {
	rate, channels = d.contextRate, 1
	if v, ok := params["rate"]; ok {
		if rate, err = strconv.Atoi(v); err != nil || rate <= 0 {
			return 0, 0, fmt.Errorf("%w: bad rate parameter %q", domain.ErrDecode, v)
		}
	}
	if v, ok := params["channels"]; ok {
		if channels, err = strconv.Atoi(v); err != nil || channels < 1 {
			return 0, 0, fmt.Errorf("%w: bad channels parameter %q", domain.ErrDecode, v)
		}
	}
	return rate, channels, nil
}

// DecodeL16 converts headerless interleaved 16-bit PCM. The speech
// provider labels its output audio/L16 but sends little-endian samples,
// so that is the byte order assumed here.
func DecodeL16(data []byte, rate, channels int) (*domain.SampleBuffer, error) {
	if rate <= 0 || channels < 1 {
		return nil, fmt.Errorf("%w: invalid pcm layout (rate=%d, channels=%d)", domain.ErrDecode, rate, channels)
	}
	if len(data) < 2*channels {
		return nil, fmt.Errorf("%w: pcm payload shorter than one frame", domain.ErrDecode)
	}
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	return deinterleavePCM16(data, channels, rate)
}

// PCM16Bytes packs interleaved samples as little-endian bytes.
func PCM16Bytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
