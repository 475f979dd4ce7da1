package content

import (
	"regexp"
	"strings"
)

var subjectLabel = regexp.MustCompile(`(?i)^\s*(\*\*)?\s*subject\s*(line)?\s*:\s*(\*\*)?\s*`)

// ParseResponse splits a raw model reply into subject and body. The first
// non-empty line is the subject, with any "Subject:" label and wrapping
// markdown or quotes removed; the remaining lines form the body.
func ParseResponse(raw string) (subject, body string, err error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), "\r\n", "\n")
	if raw == "" {
		return "", "", ErrEmptyResponse
	}

	lines := strings.Split(raw, "\n")
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	if start == len(lines) {
		return "", "", ErrEmptyResponse
	}

	subject = cleanSubject(lines[start])
	body = strings.TrimSpace(strings.Join(lines[start+1:], "\n"))
	if subject == "" || body == "" {
		return "", "", ErrUnparseable
	}
	return subject, body, nil
}

func cleanSubject(line string) string {
	s := subjectLabel.ReplaceAllString(line, "")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*#_\"'` ")
	return strings.TrimSpace(s)
}

// Values are the real strings substituted for placeholder tokens.
type Values struct {
	SenderName    string
	RecipientName string
	Industry      string
}

var placeholderToken = regexp.MustCompile(`\[[^\[\]]*\]`)

// ScrubPlaceholders replaces bracketed tokens like [Your Name] with the
// matching value and removes any other bracketed token. The result never
// contains a bracketed token.
func ScrubPlaceholders(text string, v Values) string {
	out := placeholderToken.ReplaceAllStringFunc(text, func(tok string) string {
		key := strings.ToLower(strings.TrimSpace(tok[1 : len(tok)-1]))
		switch key {
		case "your name", "sender name", "sender", "my name", "name of sender":
			return v.SenderName
		case "name", "recipient name", "business name", "company", "company name",
			"their company", "recipient", "business":
			return v.RecipientName
		case "industry", "their industry":
			return v.Industry
		}
		return ""
	})
	// Removing an inner token can expose an outer one, and a replacement
	// value could itself contain brackets.
	for placeholderToken.MatchString(out) {
		out = placeholderToken.ReplaceAllString(out, "")
	}
	return tidy(out)
}

var (
	doubleSpace  = regexp.MustCompile(`[ \t]{2,}`)
	spaceBefore  = regexp.MustCompile(` +([,.!?;:])`)
	trailingWS   = regexp.MustCompile(`[ \t]+\n`)
	manyNewlines = regexp.MustCompile(`\n{3,}`)
)

func tidy(s string) string {
	s = doubleSpace.ReplaceAllString(s, " ")
	s = spaceBefore.ReplaceAllString(s, "$1")
	s = trailingWS.ReplaceAllString(s, "\n")
	s = manyNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
