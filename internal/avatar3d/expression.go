package avatar3d

// ExpressionName identifies an expression preset channel on the avatar model.
// Values follow the VRM 1.0 preset names.
type ExpressionName string

const (
	ExpressionAa ExpressionName = "aa"
	ExpressionIh ExpressionName = "ih"
	ExpressionOu ExpressionName = "ou"
	ExpressionEe ExpressionName = "ee"
	ExpressionOh ExpressionName = "oh"

	ExpressionHappy     ExpressionName = "happy"
	ExpressionAngry     ExpressionName = "angry"
	ExpressionSad       ExpressionName = "sad"
	ExpressionRelaxed   ExpressionName = "relaxed"
	ExpressionSurprised ExpressionName = "surprised"
	ExpressionNeutral   ExpressionName = "neutral"
	ExpressionBlink     ExpressionName = "blink"
)

// LipExpressions are the five mouth-shape presets driven by visemes.
var LipExpressions = [...]ExpressionName{
	ExpressionAa,
	ExpressionIh,
	ExpressionOu,
	ExpressionEe,
	ExpressionOh,
}

// EmotionExpressions are the mutually exclusive emotion presets.
var EmotionExpressions = [...]ExpressionName{
	ExpressionHappy,
	ExpressionAngry,
	ExpressionSad,
}

// Emotion is the emotion label carried by a chat response.
type Emotion string

const (
	EmotionNeutral Emotion = "neutral"
	EmotionHappy   Emotion = "happy"
	EmotionSad     Emotion = "sad"
	EmotionAngry   Emotion = "angry"
)

var emotionIntensity = map[Emotion]struct {
	Expression ExpressionName
	Weight     float32
}{
	EmotionHappy: {ExpressionHappy, 0.8},
	EmotionAngry: {ExpressionAngry, 0.7},
	EmotionSad:   {ExpressionSad, 0.7},
}

// NormalizeEmotion maps any label outside the known set to neutral.
func NormalizeEmotion(label string) Emotion {
	switch e := Emotion(label); e {
	case EmotionHappy, EmotionSad, EmotionAngry:
		return e
	default:
		return EmotionNeutral
	}
}

// ApplyEmotion zeroes every emotion preset and then raises the one matching
// emotion. Neutral and unknown labels leave all of them at zero.
func ApplyEmotion(a *Avatar, emotion Emotion) {
	if !a.HasExpressions() {
		return
	}

	for _, name := range EmotionExpressions {
		a.SetExpression(name, 0)
	}

	if target, ok := emotionIntensity[emotion]; ok {
		a.SetExpression(target.Expression, target.Weight)
	}
}
