// Package gemini implements speech synthesis and script refinement on the
// Gemini API. Synthesis returns raw 24 kHz linear PCM labelled audio/L16;
// a cloned voice is sent as an inline reference clip ahead of the script.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hammamikhairi/voicestudio/internal/domain"
	"github.com/hammamikhairi/voicestudio/internal/logger"
)

const (
	DefaultSpeechModel = "gemini-2.5-flash-preview-tts"
	DefaultTextModel   = "gemini-2.5-flash"

	service = "gemini"
)

// Client talks to the Gemini API.
type Client struct {
	api         *genai.Client
	speechModel string
	textModel   string
	temperature float32
	log         *logger.Logger
}

type config struct {
	speechModel string
	textModel   string
	temperature float32
	baseURL     string
}

// Option configures the Client.
type Option func(*config)

// WithSpeechModel overrides the TTS model.
func WithSpeechModel(model string) Option {
	return func(c *config) { c.speechModel = model }
}

// WithTextModel overrides the model used for refinement.
func WithTextModel(model string) Option {
	return func(c *config) { c.textModel = model }
}

// WithTemperature sets the refinement sampling temperature.
func WithTemperature(t float32) Option {
	return func(c *config) { c.temperature = t }
}

// WithBaseURL points the client at a different API host.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// New creates a Gemini client. apiKey must be non-empty.
func New(ctx context.Context, apiKey string, log *logger.Logger, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	cfg := config{
		speechModel: DefaultSpeechModel,
		textModel:   DefaultTextModel,
		temperature: 0.4,
	}
	for _, o := range opts {
		o(&cfg)
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.baseURL}
	}
	api, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: client: %w", err)
	}

	log.Debug("gemini: client ready (speech=%s, text=%s)", cfg.speechModel, cfg.textModel)
	return &Client{
		api:         api,
		speechModel: cfg.speechModel,
		textModel:   cfg.textModel,
		temperature: cfg.temperature,
		log:         log,
	}, nil
}

// Synthesize renders req as speech.
func (c *Client) Synthesize(ctx context.Context, req domain.SynthesisRequest) (domain.EncodedAudio, error) {
	preset := req.Voice.Preset
	if preset == "" {
		preset = domain.DefaultPreset
	}

	parts := []*genai.Part{}
	if req.Voice.IsCloned() {
		ref := req.Voice.Reference
		parts = append(parts, genai.NewPartFromBytes(ref.Data, baseMIME(ref.MIMEType)))
	}
	parts = append(parts, genai.NewPartFromText(SpeechPrompt(req)))

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: preset},
			},
		},
	}

	c.log.Debug("gemini: synthesize %d chars (voice=%s, lang=%s)", len(req.Text), req.Voice.Label(), req.Language)
	resp, err := c.api.Models.GenerateContent(ctx, c.speechModel,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, cfg)
	if err != nil {
		return domain.EncodedAudio{}, serviceError("synthesis request failed", err)
	}

	blob := firstInlineData(resp)
	if blob == nil || len(blob.Data) == 0 {
		return domain.EncodedAudio{}, &domain.ServiceError{Service: service, Err: errors.New("response carried no audio")}
	}
	c.log.Debug("gemini: received %d bytes (%s)", len(blob.Data), blob.MIMEType)
	return domain.EncodedAudio{Data: blob.Data, MIMEType: blob.MIMEType}, nil
}

// Refine rewrites text for natural delivery in lang.
func (c *Client) Refine(ctx context.Context, text string, lang domain.Language) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(c.temperature),
		SystemInstruction: genai.NewContentFromText(RefineInstruction, genai.RoleUser),
	}

	resp, err := c.api.Models.GenerateContent(ctx, c.textModel, genai.Text(RefinePrompt(text, lang)), cfg)
	if err != nil {
		return "", serviceError("refine request failed", err)
	}
	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", &domain.ServiceError{Service: service, Err: errors.New("empty refinement")}
	}
	c.log.Debug("gemini: refined %d -> %d chars", len(text), len(out))
	return out, nil
}

// RefineInstruction is the system prompt for refinement.
const RefineInstruction = "You prepare scripts for a speech synthesizer. " +
	"Rewrite the user's text so it sounds natural when read aloud: fix punctuation, expand abbreviations and numbers, " +
	"and keep the meaning. Keep every bracketed delivery tag such as [calm] exactly where it is. " +
	"Reply with the rewritten script only."

// RefinePrompt builds the user turn for refinement.
func RefinePrompt(text string, lang domain.Language) string {
	return fmt.Sprintf("Language: %s (%s)\n\n%s", lang.Label(), lang, text)
}

// SpeechPrompt builds the text part of a synthesis request. Delivery tags
// stay inline; pitch away from neutral becomes a spoken-style hint.
func SpeechPrompt(req domain.SynthesisRequest) string {
	var b strings.Builder
	if req.Voice.IsCloned() {
		b.WriteString("Match the voice, timbre and accent of the attached reference recording. ")
	}
	fmt.Fprintf(&b, "Read the following in %s", req.Language.Label())
	switch {
	case req.Pitch > 0 && req.Pitch < 0.95:
		fmt.Fprintf(&b, " with a lower pitch (about %.0f%% of normal)", req.Pitch*100)
	case req.Pitch > 1.05:
		fmt.Fprintf(&b, " with a higher pitch (about %.0f%% of normal)", req.Pitch*100)
	}
	b.WriteString(". Bracketed tags describe how to deliver the words that follow them:\n")
	b.WriteString(req.Text)
	return b.String()
}

func firstInlineData(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p != nil && p.InlineData != nil {
				return p.InlineData
			}
		}
	}
	return nil
}

// serviceError keeps the API's own message for display when there is one.
func serviceError(what string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return &domain.ServiceError{Service: service, Message: apiErr.Message, Err: err}
	}
	return &domain.ServiceError{Service: service, Err: fmt.Errorf("%s: %w", what, err)}
}

// baseMIME drops parameters ("audio/ogg; codecs=opus" -> "audio/ogg").
func baseMIME(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.TrimSpace(m)
}
