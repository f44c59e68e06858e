package app

import "fmt"

// Language is the fixed set of UI languages the backend accepts.
type Language string

const (
	LangEnglish Language = "en"
	LangTamil   Language = "ta"
)

func ParseLanguage(s string) (Language, bool) {
	switch Language(s) {
	case LangEnglish, LangTamil:
		return Language(s), true
	}
	return LangEnglish, false
}

// unavailableNotices is shown as the assistant turn when a production-mode
// send fails; the failure itself is absorbed.
var unavailableNotices = map[Language]string{
	LangEnglish: "The assistant is currently unavailable. Please try again later.",
	LangTamil:   "உதவியாளர் தற்போது கிடைக்கவில்லை. பிறகு மீண்டும் முயற்சிக்கவும்.",
}

func UnavailableNotice(lang Language) string {
	if msg, ok := unavailableNotices[lang]; ok {
		return msg
	}
	return unavailableNotices[LangEnglish]
}

// DevFallbackResponse echoes the input the way the backend's test endpoint
// does, so the UI stays exercisable without a live backend.
func DevFallbackResponse(lang Language, text string) string {
	switch lang {
	case LangTamil:
		return fmt.Sprintf("🧪 சோதனை முறை: உங்கள் செய்தியைப் பெற்றேன் '%s'. பின்தளம் வேலை செய்கிறது! உண்மையான AI பதில்களுக்கு n8n ஐ இணைக்கவும்.", text)
	default:
		return fmt.Sprintf("🧪 Test Mode: Received your message '%s'. The backend is working! Connect n8n for real AI responses.", text)
	}
}
