package form

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// indonesianMonths maps lowercase Indonesian and English month names to
// their two-digit numbers for textual date conversion.
var indonesianMonths = map[string]string{
	"januari": "01", "februari": "02", "maret": "03", "april": "04",
	"mei": "05", "juni": "06", "juli": "07", "agustus": "08",
	"september": "09", "oktober": "10", "november": "11", "desember": "12",
	"january": "01", "february": "02", "march": "03", "may": "05",
	"june": "06", "july": "07", "august": "08", "october": "10",
	"december": "12",
}

var (
	phoneCleanRe   = regexp.MustCompile(`[^0-9+]`)
	isoDateRe      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	textualDateRe  = regexp.MustCompile(`^(\d{1,2})\s+(\w+)\s+(\d{4})$`)
	slashedDateRe  = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{4})$`)
	canonicalDate  = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
)

// Normalize runs the normalization pipeline on a raw value: trim,
// type-specific cleanup, option/alias resolution, then pattern-triggered
// format conversion. Normalization never fails; unconvertible input is
// returned as-is for validation to reject.
func (f *FieldConfig) Normalize(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return value
	}

	if f.AutoClean && f.Type == FieldTypePhone {
		value = phoneCleanRe.ReplaceAllString(value, "")
	}

	if len(f.Options) > 0 {
		lower := strings.ToLower(value)
		for _, opt := range f.Options {
			if lower == strings.ToLower(opt.Value) {
				return opt.Value
			}
			for _, alias := range opt.Aliases {
				if lower == strings.ToLower(alias) {
					return opt.Value
				}
			}
		}
	}

	for _, af := range f.AutoFormats {
		if af.Pattern == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + af.Pattern)
		if err != nil {
			continue
		}
		if re.MatchString(value) {
			value = convertFormat(value, af.ConvertTo)
		}
	}

	return value
}

// convertFormat applies a named format conversion. Unknown targets and
// unmatched inputs pass through unchanged.
func convertFormat(value, target string) string {
	if target != "DD/MM/YYYY" {
		return value
	}
	if isoDateRe.MatchString(value) {
		parts := strings.Split(value, "-")
		return fmt.Sprintf("%s/%s/%s", parts[2], parts[1], parts[0])
	}
	if m := textualDateRe.FindStringSubmatch(value); m != nil {
		month, ok := indonesianMonths[strings.ToLower(m[2])]
		if !ok {
			return value
		}
		return fmt.Sprintf("%s/%s/%s", pad2(m[1]), month, m[3])
	}
	if m := slashedDateRe.FindStringSubmatch(value); m != nil {
		return fmt.Sprintf("%s/%s/%s", pad2(m[1]), pad2(m[2]), m[3])
	}
	return value
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// Validate checks a normalized value against the field's rules. Returns
// ok=false with a user-facing message on the first failed check. Order:
// mandatory-empty, pattern, length bounds, then type-specific checks.
func (f *FieldConfig) Validate(value string) (bool, string) {
	if value == "" {
		if f.Mandatory {
			return false, fmt.Sprintf("%s wajib diisi", f.Label)
		}
		return true, ""
	}

	if f.Validation.Pattern != "" {
		re, err := regexp.Compile(f.Validation.Pattern)
		if err == nil && !re.MatchString(value) {
			if f.Validation.ErrorMessage != "" {
				return false, f.Validation.ErrorMessage
			}
			return false, fmt.Sprintf("%s format tidak valid", f.Label)
		}
	}

	if f.Validation.MinLength > 0 && len(value) < f.Validation.MinLength {
		return false, fmt.Sprintf("%s minimal %d karakter", f.Label, f.Validation.MinLength)
	}
	if f.Validation.MaxLength > 0 && len(value) > f.Validation.MaxLength {
		return false, fmt.Sprintf("%s maksimal %d karakter", f.Label, f.Validation.MaxLength)
	}

	if f.Type == FieldTypeDate {
		return validateAge(value, f.Validation.MinAge, f.Validation.MaxAge, time.Now())
	}

	return true, ""
}

// validateAge parses a canonical DD/MM/YYYY date and checks the derived age
// against optional bounds. A date that fails to parse gets a format error,
// distinct from the out-of-range errors.
func validateAge(dateStr string, minAge, maxAge int, now time.Time) (bool, string) {
	m := canonicalDate.FindStringSubmatch(dateStr)
	if m == nil {
		return false, "Format tanggal harus DD/MM/YYYY"
	}
	birth, err := time.Parse("02/01/2006", dateStr)
	if err != nil {
		return false, "Tanggal tidak valid"
	}

	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}

	if minAge > 0 && age < minAge {
		return false, fmt.Sprintf("Usia minimal %d tahun", minAge)
	}
	if maxAge > 0 && age > maxAge {
		return false, fmt.Sprintf("Usia maksimal %d tahun", maxAge)
	}
	return true, ""
}
