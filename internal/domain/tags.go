package domain

import "strings"

// Tag is an inline delivery marker. Tags are inserted into the script
// verbatim and passed through to the synthesis request untouched.
type Tag struct {
	ID     string
	Label  string
	Markup string
}

// Tags is the fixed palette, in display order.
var Tags = []Tag{
	{ID: "energetic", Label: "Energetic", Markup: "[energetic]"},
	{ID: "calm", Label: "Calm", Markup: "[calm]"},
	{ID: "sad", Label: "Emotional", Markup: "[sad]"},
	{ID: "loud", Label: "Loud", Markup: "[loud]"},
	{ID: "whisper", Label: "Whisper", Markup: "[whisper]"},
	{ID: "angry", Label: "Intense", Markup: "[angry]"},
	{ID: "professional", Label: "Narrative", Markup: "[professional]"},
}

// IsBlank reports whether a script has nothing but whitespace.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

// ScriptCounts returns the character and word counters shown under the
// editor. Characters are counted in runes; words are whitespace separated.
func ScriptCounts(text string) (chars, words int) {
	chars = len([]rune(text))
	words = len(strings.Fields(text))
	return chars, words
}
