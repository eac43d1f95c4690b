package bridge

// Status lines shown by the viewer.
const (
	StatusLoading  = "Loading model..."
	StatusReady    = "Ready"
	StatusSpeaking = "Speaking"
)

const previewRunes = 22

// SpeakingStatus formats the status for an utterance: the first 22
// characters of text followed by an ellipsis, or just Speaking.
func SpeakingStatus(text string) string {
	if text == "" {
		return StatusSpeaking
	}
	r := []rune(text)
	if len(r) > previewRunes {
		r = r[:previewRunes]
	}
	return StatusSpeaking + ": " + string(r) + "..."
}

// ModelFailedStatus is shown when the model cannot be loaded from path.
func ModelFailedStatus(path string) string {
	return "Model load failed. Check " + path
}
