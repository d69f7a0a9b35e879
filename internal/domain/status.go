package domain

import "errors"

// User-facing messages for the error slot.
const (
	MsgEmptyScript    = "Empty script buffer."
	MsgSynthesisFault = "Synthesis engine fault."
	MsgRefineFailed   = "Refinement synchronization failed."
	MsgInputSensors   = "Input sensors unavailable."
	MsgDecodeFailed   = "Unable to decode synthesized audio."
	MsgAudioOffline   = "Audio output unavailable."
	MsgNothingToSave  = "Nothing to export yet."
	MsgNoReference    = "Record a reference voice first."
)

// Status is the busy/error state the presentation layer renders. There is a
// single error slot: each report replaces the previous message.
type Status struct {
	Refining     bool
	Synthesizing bool
	Recording    bool
	Playing      bool
	Error        string
}

// MessageFor maps an error to the text shown in the error slot. Service
// failures show the collaborator's message when it provided one and the
// fallback otherwise.
func MessageFor(err error, fallback string) string {
	var svc *ServiceError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyInput):
		return MsgEmptyScript
	case errors.Is(err, ErrDeviceUnavailable):
		return MsgInputSensors
	case errors.Is(err, ErrDecode):
		return MsgDecodeFailed
	case errors.Is(err, ErrAudioUnavailable):
		return MsgAudioOffline
	case errors.Is(err, ErrNoBuffer):
		return MsgNothingToSave
	case errors.Is(err, ErrNoReference):
		return MsgNoReference
	case errors.As(err, &svc) && svc.Message != "":
		return svc.Message
	}
	if fallback != "" {
		return fallback
	}
	return err.Error()
}
