package form

import (
	"testing"
)

func fieldsByID(m *Manager, ids ...string) []*FieldConfig {
	var out []*FieldConfig
	for _, id := range ids {
		if f, ok := m.GetField(id); ok {
			out = append(out, f)
		}
	}
	return out
}

func TestExtractFieldsSimpleDate(t *testing.T) {
	m := NewManager(DefaultSchema())
	fields := fieldsByID(m, "tanggal_lahir")

	got := ExtractFieldsSimple("anak saya lahir 15 Mei 2015 di Jakarta", fields)
	if got["tanggal_lahir"] != "15 Mei 2015" {
		t.Errorf("expected textual date extracted, got %q", got["tanggal_lahir"])
	}

	got = ExtractFieldsSimple("tanggal lahirnya 15/05/2015", fields)
	if got["tanggal_lahir"] != "15/05/2015" {
		t.Errorf("expected slashed date extracted, got %q", got["tanggal_lahir"])
	}
}

func TestExtractFieldsSimplePhone(t *testing.T) {
	m := NewManager(DefaultSchema())
	fields := fieldsByID(m, "nomor_hp")

	got := ExtractFieldsSimple("hp saya 0812-3456-7890", fields)
	if got["nomor_hp"] != "081234567890" {
		t.Errorf("expected cleaned phone, got %q", got["nomor_hp"])
	}
}

func TestExtractFieldsSimpleEmail(t *testing.T) {
	m := NewManager(DefaultSchema())
	fields := fieldsByID(m, "email")

	got := ExtractFieldsSimple("email saya budi@example.com ya", fields)
	if got["email"] != "budi@example.com" {
		t.Errorf("expected email extracted, got %q", got["email"])
	}
}

func TestExtractFieldsSimpleSelect(t *testing.T) {
	m := NewManager(DefaultSchema())
	fields := fieldsByID(m, "jenjang_pendidikan")

	got := ExtractFieldsSimple("mau daftar sekolah dasar", fields)
	if got["jenjang_pendidikan"] != "SD" {
		t.Errorf("expected SD from alias, got %q", got["jenjang_pendidikan"])
	}
}

func TestExtractFieldsSimpleNoMatch(t *testing.T) {
	m := NewManager(DefaultSchema())
	fields := fieldsByID(m, "tanggal_lahir", "nomor_hp", "email")

	got := ExtractFieldsSimple("halo apa kabar", fields)
	if len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestExtractFieldsSimpleDoesNotGuessText(t *testing.T) {
	m := NewManager(DefaultSchema())
	fields := fieldsByID(m, "nama_lengkap")

	got := ExtractFieldsSimple("nama saya Ahmad Fauzi", fields)
	if len(got) != 0 {
		t.Errorf("fallback extractor must not guess free text fields, got %v", got)
	}
}
