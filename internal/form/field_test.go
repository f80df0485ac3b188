package form

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func dateField() *FieldConfig {
	for i := range DefaultSchema().Fields {
		f := DefaultSchema().Fields[i]
		if f.ID == "tanggal_lahir" {
			return &f
		}
	}
	return nil
}

func TestNormalizeTextualDate(t *testing.T) {
	f := dateField()
	got := f.Normalize("15 Mei 2000")
	if got != "15/05/2000" {
		t.Errorf("Normalize(15 Mei 2000) = %q, want 15/05/2000", got)
	}
}

func TestNormalizeDateIdempotent(t *testing.T) {
	f := dateField()
	once := f.Normalize("15 Mei 2000")
	twice := f.Normalize(once)
	if once != twice {
		t.Errorf("normalization not idempotent: %q then %q", once, twice)
	}
}

func TestNormalizeISODate(t *testing.T) {
	f := dateField()
	if got := f.Normalize("2000-05-15"); got != "15/05/2000" {
		t.Errorf("Normalize(2000-05-15) = %q, want 15/05/2000", got)
	}
}

func TestNormalizeSingleDigitDay(t *testing.T) {
	f := dateField()
	if got := f.Normalize("1 Januari 2010"); got != "01/01/2010" {
		t.Errorf("Normalize(1 Januari 2010) = %q, want 01/01/2010", got)
	}
}

func TestNormalizePhoneStripsNoise(t *testing.T) {
	f := &FieldConfig{ID: "nomor_hp", Label: "Nomor HP", Type: FieldTypePhone, AutoClean: true}
	if got := f.Normalize("0812-3456 (7890)"); got != "081234567890" {
		t.Errorf("Normalize phone = %q, want 081234567890", got)
	}
}

func TestNormalizeSelectAlias(t *testing.T) {
	f := &FieldConfig{
		ID: "jenis_kelamin", Label: "Jenis Kelamin", Type: FieldTypeSelect,
		Options: []FieldOption{
			{Value: "L", Aliases: []string{"laki-laki", "pria"}},
			{Value: "P", Aliases: []string{"perempuan", "wanita"}},
		},
	}
	cases := map[string]string{
		"pria":      "L",
		"PEREMPUAN": "P",
		"l":         "L",
		"wanita":    "P",
	}
	for in, want := range cases {
		if got := f.Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateMandatoryEmpty(t *testing.T) {
	f := &FieldConfig{ID: "nama_lengkap", Label: "Nama Lengkap", Type: FieldTypeText, Mandatory: true}
	ok, msg := f.Validate("")
	if ok {
		t.Fatal("empty mandatory field must fail validation")
	}
	if msg == "" {
		t.Fatal("validation failure must carry a message")
	}
	if !strings.Contains(msg, "wajib diisi") {
		t.Errorf("unexpected message: %q", msg)
	}
}

func TestValidateOptionalEmpty(t *testing.T) {
	f := &FieldConfig{ID: "email", Label: "Email", Type: FieldTypeEmail}
	if ok, _ := f.Validate(""); !ok {
		t.Error("empty optional field must pass validation")
	}
}

func TestValidateLengthBounds(t *testing.T) {
	f := &FieldConfig{
		ID: "nama_lengkap", Label: "Nama Lengkap", Type: FieldTypeText,
		Validation: Validation{MinLength: 3, MaxLength: 10},
	}
	if ok, msg := f.Validate("ab"); ok || !strings.Contains(msg, "minimal 3") {
		t.Errorf("short value: ok=%v msg=%q", ok, msg)
	}
	if ok, msg := f.Validate("abcdefghijk"); ok || !strings.Contains(msg, "maksimal 10") {
		t.Errorf("long value: ok=%v msg=%q", ok, msg)
	}
	if ok, _ := f.Validate("abcd"); !ok {
		t.Error("in-bounds value must pass")
	}
}

func TestValidateDateBadFormatDistinctFromOutOfRange(t *testing.T) {
	now := time.Now()

	ok, msg := validateAge("not a date", 3, 25, now)
	if ok || msg != "Format tanggal harus DD/MM/YYYY" {
		t.Errorf("bad format: ok=%v msg=%q", ok, msg)
	}

	tooYoung := fmt.Sprintf("01/01/%d", now.Year())
	ok, msg = validateAge(tooYoung, 3, 25, now)
	if ok || !strings.Contains(msg, "Usia minimal") {
		t.Errorf("too young: ok=%v msg=%q", ok, msg)
	}

	ok, msg = validateAge("01/01/1950", 3, 25, now)
	if ok || !strings.Contains(msg, "Usia maksimal") {
		t.Errorf("too old: ok=%v msg=%q", ok, msg)
	}
}

func TestValidateImpossibleDate(t *testing.T) {
	ok, msg := validateAge("31/02/2000", 0, 0, time.Now())
	if ok {
		t.Fatal("impossible calendar date must fail")
	}
	if msg != "Tanggal tidak valid" {
		t.Errorf("unexpected message: %q", msg)
	}
}

func TestValidatePattern(t *testing.T) {
	f := &FieldConfig{
		ID: "nomor_hp", Label: "Nomor HP", Type: FieldTypePhone,
		Validation: Validation{Pattern: `^(0|\+62)\d{9,13}$`, ErrorMessage: "Nomor HP harus diawali 08 atau +62"},
	}
	if ok, msg := f.Validate("12345"); ok || msg != "Nomor HP harus diawali 08 atau +62" {
		t.Errorf("pattern miss: ok=%v msg=%q", ok, msg)
	}
	if ok, _ := f.Validate("081234567890"); !ok {
		t.Error("valid phone must pass")
	}
}
