package capture

import (
	"io"

	"github.com/hammamikhairi/voicestudio/internal/codec"
)

// OggOpusEncoders returns the production encoder factory: Ogg Opus at the
// given bitrate (0 keeps the codec default).
func OggOpusEncoders(bitrate int) EncoderFactory {
	return func(w io.Writer, sampleRate, channels int) (Encoder, error) {
		enc, err := codec.NewOggOpusEncoder(w, sampleRate, channels, bitrate)
		if err != nil {
			return nil, err
		}
		return enc, nil
	}
}
