package domain

import "errors"

// Sentinel errors used across layers. Callers match them with errors.Is;
// producers wrap them with context via fmt.Errorf("...: %w", ...).
var (
	// ErrDeviceUnavailable means the microphone was denied or is absent.
	ErrDeviceUnavailable = errors.New("input device unavailable")
	// ErrDecode means synthesis bytes were malformed or in an unsupported container.
	ErrDecode = errors.New("audio decode failed")
	// ErrServiceFailure wraps a rejected or failed refine/synthesize call.
	ErrServiceFailure = errors.New("external service failure")
	// ErrEmptyInput rejects blank scripts before any external call.
	ErrEmptyInput = errors.New("empty input")
	// ErrAudioUnavailable means the output graph could not be constructed.
	ErrAudioUnavailable = errors.New("audio output unavailable")
	// ErrNoBuffer means an export was requested before anything was generated.
	ErrNoBuffer = errors.New("no generated audio")
	// ErrNoReference means a cloned voice was requested without a capture.
	ErrNoReference = errors.New("no captured reference voice")
	// ErrBusy rejects a second in-flight synthesis.
	ErrBusy = errors.New("operation already in progress")
	// ErrCaptureBusy rejects starting a capture while one is active.
	ErrCaptureBusy = errors.New("capture session already active")
)

// ServiceError carries the message an external collaborator returned, so it
// can be shown to the user verbatim. It unwraps to ErrServiceFailure.
type ServiceError struct {
	Service string // provider name, e.g. "gemini"
	Message string // best available message; may be empty
	Err     error  // underlying transport or API error
}

func (e *ServiceError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		return e.Service + ": " + ErrServiceFailure.Error()
	}
	return e.Service + ": " + msg
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *ServiceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrServiceFailure}
	}
	return []error{ErrServiceFailure, e.Err}
}
