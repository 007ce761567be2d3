package answer

import (
	"regexp"
	"strings"
)

// InsufficientData replaces answers the sanitizer rejects. It is worded as
// next steps, not as an error.
const InsufficientData = "В моей базе недостаточно данных, чтобы уверенно " +
	"ответить на этот вопрос. Попробуйте уточнить формулировку — например, " +
	"назовите услугу и период — или обратитесь в свою управляющую " +
	"организацию либо в государственную жилищную инспекцию."

// refusalMarkers are phrasings that signal the model refused or is guessing.
// Such answers are replaced rather than shown verbatim.
var refusalMarkers = []string{
	"как языковая модель",
	"как искусственный интеллект",
	"я не могу ответить",
	"не могу предоставить",
	"я не уверен",
	"затрудняюсь ответить",
	"у меня нет информации",
	"as an ai",
	"i cannot answer",
	"i don't have",
}

var (
	urlPattern = regexp.MustCompile(`https?://\S+`)
	// Russian phone formats: +7/8 with optional separators around the
	// area code.
	phonePattern = regexp.MustCompile(`(?:\+7|8)[\s\-(]*\d{3}[\s\-)]*\d{3}[\s\-]*\d{2}[\s\-]*\d{2}`)
)

// Sanitize inspects a generated answer against the context it was built
// from. Refusal phrasing, or URLs and phone numbers that do not appear in
// the context, mark the answer as suspected hallucination: it is replaced
// with the standard insufficient-data response. Returns the final text and
// whether a replacement happened.
func Sanitize(text, contextBlock string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, marker := range refusalMarkers {
		if strings.Contains(lowered, marker) {
			return InsufficientData, true
		}
	}

	for _, u := range urlPattern.FindAllString(text, -1) {
		if !strings.Contains(contextBlock, strings.TrimRight(u, ".,;)")) {
			return InsufficientData, true
		}
	}

	normalizedCtx := digitsOnly(contextBlock)
	for _, p := range phonePattern.FindAllString(text, -1) {
		if !strings.Contains(normalizedCtx, digitsOnly(p)) {
			return InsufficientData, true
		}
	}

	return strings.TrimSpace(text), false
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
