package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"gopkg.in/hraban/opus.v2"

	"github.com/hammamikhairi/voicestudio/internal/domain"
)

const (
	// Ogg Opus granule positions always count 48 kHz samples.
	opusGranuleRate = 48000
	// 20 ms frames.
	opusFramesPerSecond = 50
	// Largest Opus frame (120 ms at 48 kHz) per channel.
	opusMaxFrame = 5760
	opusPayload  = 111
)

// OggOpusEncoder is a streaming Opus encoder that writes an Ogg container
// to w as PCM arrives. Each Ogg page is flushed to w immediately, so a
// writer that records its Write calls sees the stream as a series of
// chunks.
type OggOpusEncoder struct {
	enc       *opus.Encoder
	ogg       *oggwriter.OggWriter
	channels  int
	frameSize int // samples per channel
	tsStep    uint32

	pending []int16
	packet  []byte
	seq     uint16
	ts      uint32
	closed  bool
}

// NewOggOpusEncoder prepares an encoder for interleaved int16 PCM.
// sampleRate must be one Opus supports (8, 12, 16, 24 or 48 kHz).
// A bitrate of 0 keeps the codec default.
func NewOggOpusEncoder(w io.Writer, sampleRate, channels, bitrate int) (*OggOpusEncoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	if bitrate > 0 {
		if err := enc.SetBitrate(bitrate); err != nil {
			return nil, fmt.Errorf("opus bitrate: %w", err)
		}
	}
	ogg, err := oggwriter.NewWith(w, uint32(sampleRate), uint16(channels))
	if err != nil {
		return nil, fmt.Errorf("ogg writer: %w", err)
	}
	frameSize := sampleRate / opusFramesPerSecond
	return &OggOpusEncoder{
		enc:       enc,
		ogg:       ogg,
		channels:  channels,
		frameSize: frameSize,
		tsStep:    uint32(opusGranuleRate / opusFramesPerSecond),
		packet:    make([]byte, 4000),
	}, nil
}

// MIMEType reports the container type of the produced stream.
func (e *OggOpusEncoder) MIMEType() string { return domain.MIMEOgg }

// Write buffers pcm and encodes every complete frame.
func (e *OggOpusEncoder) Write(pcm []int16) error {
	if e.closed {
		return errors.New("opus encoder: write after close")
	}
	e.pending = append(e.pending, pcm...)
	step := e.frameSize * e.channels
	for len(e.pending) >= step {
		if err := e.encodeFrame(e.pending[:step]); err != nil {
			return err
		}
		e.pending = e.pending[step:]
	}
	return nil
}

// Close pads and encodes any partial frame, then finalises the container.
func (e *OggOpusEncoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	var first error
	if len(e.pending) > 0 {
		frame := make([]int16, e.frameSize*e.channels)
		copy(frame, e.pending)
		e.pending = nil
		first = e.encodeFrame(frame)
	}
	if err := e.ogg.Close(); err != nil && first == nil {
		first = fmt.Errorf("ogg close: %w", err)
	}
	return first
}

func (e *OggOpusEncoder) encodeFrame(frame []int16) error {
	n, err := e.enc.Encode(frame, e.packet)
	if err != nil {
		return fmt.Errorf("opus encode: %w", err)
	}
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    opusPayload,
			SequenceNumber: e.seq,
			Timestamp:      e.ts,
		},
		Payload: e.packet[:n],
	}
	e.seq++
	e.ts += e.tsStep
	if err := e.ogg.WriteRTP(pkt); err != nil {
		return fmt.Errorf("ogg page: %w", err)
	}
	return nil
}

// DecodeOggOpus decodes a complete Ogg Opus stream to a 48 kHz buffer.
func DecodeOggOpus(data []byte) (*domain.SampleBuffer, error) {
	_, header, err := oggreader.NewWith(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: ogg header: %v", domain.ErrDecode, err)
	}
	channels := int(header.Channels)
	if channels < 1 {
		return nil, fmt.Errorf("%w: ogg header reports %d channels", domain.ErrDecode, channels)
	}

	stream, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: opus stream: %v", domain.ErrDecode, err)
	}
	defer stream.Close()

	buf := make([]float32, opusMaxFrame*channels)
	var interleaved []float32
	for {
		n, err := stream.ReadFloat32(buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: opus read: %v", domain.ErrDecode, err)
		}
		if n == 0 {
			break
		}
		interleaved = append(interleaved, buf[:n*channels]...)
	}
	if len(interleaved) == 0 {
		return nil, fmt.Errorf("%w: ogg stream carries no audio", domain.ErrDecode)
	}

	frames := len(interleaved) / channels
	chs := make([][]float32, channels)
	for c := range chs {
		chs[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			chs[c][i] = interleaved[i*channels+c]
		}
	}
	return domain.NewSampleBuffer(opusGranuleRate, chs)
}
