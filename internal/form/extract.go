package form

import (
	"regexp"
	"strings"
)

var (
	extractDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d{1,2}[-/]\d{1,2}[-/]\d{4})`),
		regexp.MustCompile(`(\d{4}[-/]\d{1,2}[-/]\d{1,2})`),
		regexp.MustCompile(`(?i)(\d{1,2}\s+(?:januari|februari|maret|april|mei|juni|juli|agustus|september|oktober|november|desember)\s+\d{4})`),
	}
	extractPhoneStrip = regexp.MustCompile(`[\s\-()]`)
	extractPhoneRe    = regexp.MustCompile(`(0\d{9,13}|\+62\d{9,12})`)
	extractEmailRe    = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)
	labelPrefixRe     = regexp.MustCompile(`^[A-Za-z\s]+:\s*`)
)

// ExtractFieldsSimple is the deterministic fallback extractor used when the
// language-model collaborator returns nothing or times out. It recognizes
// dates, phone numbers, emails, select-option keywords, and
// keyword-labelled numbers. Text fields are deliberately not guessed.
func ExtractFieldsSimple(message string, fields []*FieldConfig) map[string]string {
	result := make(map[string]string)
	for _, field := range fields {
		value := ""

		switch field.Type {
		case FieldTypeSelect:
			value = matchOption(message, field)
		case FieldTypeDate:
			for _, re := range extractDatePatterns {
				if m := re.FindStringSubmatch(message); m != nil {
					value = m[1]
					break
				}
			}
		case FieldTypePhone:
			cleaned := extractPhoneStrip.ReplaceAllString(message, "")
			if m := extractPhoneRe.FindStringSubmatch(cleaned); m != nil {
				value = m[1]
			}
		case FieldTypeEmail:
			value = extractEmailRe.FindString(message)
		case FieldTypeNumber:
			for _, kw := range field.ExtractKeywords {
				re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(kw) + `\s*[:\s]*(\d+)`)
				if err != nil {
					continue
				}
				if m := re.FindStringSubmatch(message); m != nil {
					value = m[1]
					break
				}
			}
		}

		if value != "" {
			value = strings.TrimSpace(labelPrefixRe.ReplaceAllString(value, ""))
			if value != "" {
				result[field.ID] = value
			}
		}
	}
	return result
}

// matchOption returns the canonical option value whose value or alias
// appears as a whole word in the message.
func matchOption(message string, field *FieldConfig) string {
	for _, opt := range field.Options {
		if wordMatch(message, opt.Value) {
			return opt.Value
		}
		for _, alias := range opt.Aliases {
			if wordMatch(message, alias) {
				return opt.Value
			}
		}
	}
	return ""
}

func wordMatch(message, word string) bool {
	if word == "" {
		return false
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(message)
}
