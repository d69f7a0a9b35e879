// Package azure implements speech synthesis on Azure Cognitive Services.
// It speaks preset voices only; a cloned voice needs the gemini backend.
package azure

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/hammamikhairi/voicestudio/internal/domain"
	"github.com/hammamikhairi/voicestudio/internal/logger"
)

// Audio format requested from Azure. The codec decodes the RIFF header.
const DefaultAudioFormat = "riff-24khz-16bit-mono-pcm"

// Env var names for Azure Speech credentials.
const (
	EnvSpeechKey    = "AZURE_SPEECH_KEY"
	EnvSpeechRegion = "AZURE_SPEECH_REGION"
)

const service = "azure"

// DefaultVoices maps the studio presets to Azure multilingual neural voices
// of the same gender, so every preset can speak every studio language.
var DefaultVoices = map[string]string{
	"Zephyr": "en-US-AndrewMultilingualNeural",
	"Kore":   "en-US-AvaMultilingualNeural",
	"Fenrir": "en-US-BrianMultilingualNeural",
	"Puck":   "de-DE-FlorianMultilingualNeural",
	"Charon": "fr-FR-RemyMultilingualNeural",
}

// Option configures the Azure TTS client.
type Option func(*Client)

// WithVoices replaces the preset to Azure voice mapping.
func WithVoices(voices map[string]string) Option {
	return func(c *Client) { c.voices = voices }
}

// WithAudioFormat sets the audio output format.
func WithAudioFormat(format string) Option {
	return func(c *Client) { c.format = format }
}

// WithHTTPTimeout sets the HTTP client timeout for TTS requests.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithEndpoint overrides the regional endpoint URL.
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// Client handles text-to-speech synthesis via Azure Cognitive Services.
type Client struct {
	subscriptionKey string
	endpoint        string
	voices          map[string]string
	format          string
	httpClient      *http.Client
	log             *logger.Logger
}

// NewClient creates an Azure TTS client with the given credentials.
func NewClient(key, region string, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		subscriptionKey: key,
		endpoint:        fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region),
		voices:          DefaultVoices,
		format:          DefaultAudioFormat,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Synthesize renders req as WAV audio.
func (c *Client) Synthesize(ctx context.Context, req domain.SynthesisRequest) (domain.EncodedAudio, error) {
	if req.Voice.IsCloned() {
		return domain.EncodedAudio{}, &domain.ServiceError{
			Service: service,
			Message: "Cloned voices are not supported by the Azure backend.",
		}
	}
	voice, ok := c.voices[req.Voice.Preset]
	if !ok {
		voice = c.voices[domain.DefaultPreset]
	}

	ssml, err := BuildSSML(req, voice)
	if err != nil {
		return domain.EncodedAudio{}, &domain.ServiceError{Service: service, Err: err}
	}
	c.log.Debug("azure tts: synthesizing %d chars with voice %s", len(req.Text), voice)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(ssml))
	if err != nil {
		return domain.EncodedAudio{}, &domain.ServiceError{Service: service, Err: fmt.Errorf("creating request: %w", err)}
	}
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)
	httpReq.Header.Set("Content-Type", "application/ssml+xml")
	httpReq.Header.Set("X-Microsoft-OutputFormat", c.format)
	httpReq.Header.Set("User-Agent", "VoiceStudio/1.0")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.EncodedAudio{}, &domain.ServiceError{Service: service, Err: fmt.Errorf("tts request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.EncodedAudio{}, &domain.ServiceError{
			Service: service,
			Message: strings.TrimSpace(string(body)),
			Err:     fmt.Errorf("azure tts status %d", resp.StatusCode),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.EncodedAudio{}, &domain.ServiceError{Service: service, Err: fmt.Errorf("reading audio data: %w", err)}
	}

	c.log.Debug("azure tts: got %d bytes of audio", len(data))
	return domain.EncodedAudio{Data: data, MIMEType: domain.MIMEWAV}, nil
}

// BuildSSML creates the SSML document for req. Palette tags are removed
// since Azure would read them aloud; pitch becomes a prosody percentage.
func BuildSSML(req domain.SynthesisRequest, voice string) (string, error) {
	text := req.Text
	for _, t := range domain.Tags {
		text = strings.ReplaceAll(text, t.Markup, "")
	}
	text = strings.Join(strings.Fields(text), " ")

	var esc bytes.Buffer
	if err := xml.EscapeText(&esc, []byte(text)); err != nil {
		return "", fmt.Errorf("escaping text: %w", err)
	}

	lang := req.Language
	if !lang.Valid() {
		lang = domain.English
	}
	pitch := 0
	if req.Pitch > 0 {
		pitch = int(math.Round((req.Pitch - 1) * 100))
	}

	return fmt.Sprintf(
		`<speak version='1.0' xml:lang='%s'><voice xml:lang='%s' name='%s'><lang xml:lang='%s'><prosody pitch='%+d%%'>%s</prosody></lang></voice></speak>`,
		lang, lang, voice, lang, pitch, esc.String(),
	), nil
}
