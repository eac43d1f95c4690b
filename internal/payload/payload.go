// Package payload reads utterance payloads from the outside world and holds
// the latest raw text for the poll bridge.
package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/normanking/lumiavatar/internal/avatar3d"
)

// ErrNullPayload is returned for the JSON literal null.
var ErrNullPayload = errors.New("payload is null")

// Payload is a full utterance snapshot.
type Payload struct {
	Text     string            `json:"text"`
	Emotion  string            `json:"emotion"`
	AudioURL string            `json:"audio_url,omitempty"`
	Visemes  []avatar3d.Viseme `json:"visemes"`
}

// Parse decodes raw leniently. Only malformed JSON and null are errors.
// Any other value that is not an object reads as an empty payload. Missing
// or mistyped fields fall back to their zero values, numeric strings are
// accepted for viseme times and viseme entries that are not objects are
// skipped.
func Parse(raw string) (*Payload, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	if v == nil {
		return nil, ErrNullPayload
	}
	fields, _ := v.(map[string]any)

	p := &Payload{
		Text:     stringField(fields, "text"),
		Emotion:  stringField(fields, "emotion"),
		AudioURL: stringField(fields, "audio_url"),
	}

	if list, ok := fields["visemes"].([]any); ok {
		p.Visemes = make([]avatar3d.Viseme, 0, len(list))
		for _, item := range list {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			p.Visemes = append(p.Visemes, avatar3d.Viseme{
				Phoneme: stringField(obj, "phoneme"),
				Start:   number(obj["start"]),
				End:     number(obj["end"]),
			})
		}
	}

	return p, nil
}

// Encode renders p as compact JSON.
func (p *Payload) Encode() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(data), nil
}

// EmotionOrDefault returns the emotion label, or neutral when unset.
func (p *Payload) EmotionOrDefault() avatar3d.Emotion {
	if p.Emotion == "" {
		return avatar3d.EmotionNeutral
	}
	return avatar3d.Emotion(p.Emotion)
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func number(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	case bool:
		if t {
			f = 1
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
