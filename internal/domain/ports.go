package domain

import "context"

// SynthesisRequest is everything the speech provider needs for one call.
// Text may contain inline tags; they are passed through verbatim.
type SynthesisRequest struct {
	Text     string
	Voice    VoiceProfile
	Language Language
	Pitch    float64
}

// Synthesizer turns text into encoded audio. Implementations report
// failures as *ServiceError so the studio can surface the provider's message.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (EncodedAudio, error)
}

// Refiner rewrites a script so it reads naturally when spoken in lang.
type Refiner interface {
	Refine(ctx context.Context, text string, lang Language) (string, error)
}
