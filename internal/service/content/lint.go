package content

import (
	"fmt"
	"strings"
	"unicode"
)

var spamWords = []string{
	"act now", "buy now", "click here", "free money", "guarantee",
	"limited time", "no obligation", "risk-free", "urgent", "winner",
	"100% free", "cash bonus", "cheap", "earn money", "order now",
}

// Lint returns deliverability warnings for a generated email. Warnings are
// advisory and never block sending.
func Lint(subject, body string) []string {
	var warnings []string

	if n := len([]rune(subject)); n < 10 {
		warnings = append(warnings, "subject is shorter than 10 characters")
	} else if n > 100 {
		warnings = append(warnings, "subject is longer than 100 characters")
	}

	if n := len([]rune(body)); n < 50 {
		warnings = append(warnings, "body is shorter than 50 characters")
	} else if n > 2000 {
		warnings = append(warnings, "body is longer than 2000 characters")
	}

	lower := strings.ToLower(subject + "\n" + body)
	for _, w := range spamWords {
		if strings.Contains(lower, w) {
			warnings = append(warnings, fmt.Sprintf("contains spam trigger phrase %q", w))
		}
	}

	if capsRatio(subject) > 0.5 {
		warnings = append(warnings, "subject is mostly capital letters")
	}
	if strings.Count(subject+body, "!") > 3 {
		warnings = append(warnings, "more than 3 exclamation marks")
	}
	return warnings
}

func capsRatio(s string) float64 {
	var letters, upper int
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters < 5 {
		return 0
	}
	return float64(upper) / float64(letters)
}
