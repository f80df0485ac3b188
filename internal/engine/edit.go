package engine

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/azhar-edu/regbot/internal/form"
	"github.com/azhar-edu/regbot/internal/models"
	"github.com/azhar-edu/regbot/internal/session"
)

// editKeywords mark a message as an edit request. Edit requests re-extract
// against all fields, not just the current step.
var editKeywords = []string{
	"ubah", "ganti", "koreksi", "perbaiki", "salah", "edit", "update",
	"ralat", "bukan", "harusnya", "seharusnya", "yang benar",
}

// fieldAliases maps conversational field synonyms onto field ids for edit
// detection. Longer aliases are matched before shorter ones.
var fieldAliases = map[string]string{
	"nama":          "nama_lengkap",
	"nama lengkap":  "nama_lengkap",
	"nama siswa":    "nama_lengkap",
	"nama anak":     "nama_lengkap",
	"nama murid":    "nama_lengkap",
	"namanya":       "nama_lengkap",
	"kelamin":       "jenis_kelamin",
	"jenis kelamin": "jenis_kelamin",
	"gender":        "jenis_kelamin",
	"tempat lahir":  "tempat_lahir",
	"kota lahir":    "tempat_lahir",
	"lahir di":      "tempat_lahir",
	"ttl":           "tempat_lahir",
	"tanggal lahir": "tanggal_lahir",
	"tgl lahir":     "tanggal_lahir",
	"dob":           "tanggal_lahir",
	"alamat":        "alamat_lengkap",
	"alamat lengkap": "alamat_lengkap",
	"alamat rumah":  "alamat_lengkap",
	"tempat tinggal": "alamat_lengkap",
	"hp":            "nomor_hp",
	"handphone":     "nomor_hp",
	"no hp":         "nomor_hp",
	"nomor hp":      "nomor_hp",
	"nomer hp":      "nomor_hp",
	"whatsapp":      "nomor_hp",
	"wa":            "nomor_hp",
	"telepon":       "nomor_hp",
	"email":         "email",
	"e-mail":        "email",
	"nama ayah":     "nama_ayah",
	"ayah":          "nama_ayah",
	"bapak":         "nama_ayah",
	"nama ibu":      "nama_ibu",
	"ibu":           "nama_ibu",
	"mama":          "nama_ibu",
	"mamah":         "nama_ibu",
	"pekerjaan ayah": "pekerjaan_ayah",
	"kerja ayah":    "pekerjaan_ayah",
	"kerjaan ayah":  "pekerjaan_ayah",
	"jenjang":       "jenjang_pendidikan",
	"tingkat":       "jenjang_pendidikan",
	"level":         "jenjang_pendidikan",
	"jenjangnya":    "jenjang_pendidikan",
	"tk":            "jenjang_pendidikan",
	"sd":            "jenjang_pendidikan",
	"smp":           "jenjang_pendidikan",
	"sma":           "jenjang_pendidikan",
	"asal sekolah":  "asal_sekolah",
	"sekolah asal":  "asal_sekolah",
	"sekolah sebelumnya": "asal_sekolah",
	"sekolah":       "asal_sekolah",
}

// editValuePatterns extract the new value from an edit message, tried in
// order. The first capture group is the value.
var editValuePatterns = []*regexp.Regexp{
	// "ubah X menjadi/jadi/ke Y"
	regexp.MustCompile(`(?i)(?:ubah|ganti|koreksi|perbaiki|edit|update|ralat)\s+[\w\s]+?\s+(?:menjadi|jadi|ke)\s+(.+?)(?:\s*[,.]|$)`),
	// "yang benar adalah Y" / "seharusnya Y"
	regexp.MustCompile(`(?i)(?:yang\s+benar(?:\s+adalah)?|seharusnya|harusnya)\s+(.+?)(?:\s*[,.]|$)`),
	// "bukan X tapi Y"
	regexp.MustCompile(`(?i)bukan\s+[\w\s]+?\s+(?:tapi|tetapi|melainkan)\s+(.+?)(?:\s*[,.]|$)`),
	// "X: Y" / "X = Y"
	regexp.MustCompile(`(?i)[\w\s]+?[:=]\s*(.+?)(?:\s*[,.]|$)`),
	// trailing remainder after an edit verb and the field word
	regexp.MustCompile(`(?i)(?:ubah|ganti|koreksi|perbaiki)\s+\w+\s+(.+?)(?:\s*[,.]|$)`),
}

var politeSuffixRe = regexp.MustCompile(`(?i)\s+(ya|dong|gan|pak|bu|mas|mbak|nih|deh)$`)

func isEditRequest(message string) bool {
	return matchesAny(message, editKeywords)
}

// detectTargetField finds which field an edit message refers to: label
// mention first, then field id with spaces, then aliases longest-first,
// then configured extract keywords.
func detectTargetField(message string, fields []*form.FieldConfig) string {
	lower := strings.ToLower(message)

	for _, f := range fields {
		label := strings.ToLower(f.Label)
		if len(label) > 2 && strings.Contains(lower, label) {
			return f.ID
		}
	}
	for _, f := range fields {
		if strings.Contains(lower, strings.ReplaceAll(f.ID, "_", " ")) {
			return f.ID
		}
	}

	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.ID] = true
	}
	aliases := make([]string, 0, len(fieldAliases))
	for alias := range fieldAliases {
		aliases = append(aliases, alias)
	}
	sort.Slice(aliases, func(i, j int) bool { return len(aliases[i]) > len(aliases[j]) })
	for _, alias := range aliases {
		if strings.Contains(lower, alias) && known[fieldAliases[alias]] {
			return fieldAliases[alias]
		}
	}

	for _, f := range fields {
		for _, kw := range f.ExtractKeywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return f.ID
			}
		}
	}
	return ""
}

// extractEditValue pulls the new value out of an edit message.
func extractEditValue(message string) string {
	for _, re := range editValuePatterns {
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		value := politeSuffixRe.ReplaceAllString(strings.TrimSpace(m[1]), "")
		if value != "" {
			return value
		}
	}
	return ""
}

// handleEdit re-extracts against all fields, validates, and reports each
// change with its previous value.
func (e *Engine) handleEdit(ctx context.Context, s *models.SessionState, message string) *models.ChatResult {
	var all []*form.FieldConfig
	for _, step := range e.forms.ListSteps() {
		all = append(all, e.forms.ListFields(step.ID)...)
	}

	extracted := map[string]string{}
	if target := detectTargetField(message, all); target != "" {
		if value := extractEditValue(message); value != "" {
			extracted[target] = value
			slog.Debug("Engine.handleEdit: rule-based extraction", "field", target, "sessionID", s.SessionID)
		}
	}
	if len(extracted) == 0 {
		extracted = e.extract(ctx, s, message, all)
	}
	if len(extracted) == 0 {
		extracted = form.ExtractFieldsSimple(message, all)
	}
	if len(extracted) == 0 {
		return e.result(s, e.editHelpReply(s, all))
	}

	type change struct {
		label    string
		oldValue string
		newValue string
	}
	var changes []change
	var errors []string

	for fieldID, raw := range extracted {
		field, ok := e.forms.GetField(fieldID)
		if !ok {
			if mapped, aliased := fieldAliases[strings.ToLower(fieldID)]; aliased {
				field, ok = e.forms.GetField(mapped)
				fieldID = mapped
			}
			if !ok {
				continue
			}
		}
		valid, errMsg, normalized := e.forms.Validate(fieldID, raw)
		if !valid {
			errors = append(errors, fmt.Sprintf("• %s: %s", field.Label, errMsg))
			continue
		}
		old := ""
		if prev, had := s.Values[fieldID]; had {
			old = prev.String()
		}
		session.SetField(s, fieldID, fieldValueFor(field, normalized))
		delete(s.ValidationErrors, fieldID)
		changes = append(changes, change{field.Label, old, normalized})
	}

	if len(changes) > 0 {
		var b strings.Builder
		b.WriteString("✅ **Data berhasil diubah:**\n")
		for _, c := range changes {
			if c.oldValue != "" {
				fmt.Fprintf(&b, "• %s: ~~%s~~ → **%s**\n", c.label, c.oldValue, c.newValue)
			} else {
				fmt.Fprintf(&b, "• %s: **%s** _(baru)_\n", c.label, c.newValue)
			}
		}
		if len(errors) > 0 {
			b.WriteString("\n⚠️ **Tidak valid:**\n" + strings.Join(errors, "\n") + "\n")
		}
		b.WriteString("\nKetik **'summary'** untuk melihat semua data.")
		return e.result(s, b.String())
	}
	if len(errors) > 0 {
		return e.result(s, "⚠️ **Validasi gagal:**\n"+strings.Join(errors, "\n"))
	}
	return e.result(s, "❌ Tidak ada perubahan yang diterapkan.")
}

// editHelpReply explains the edit syntax and lists currently editable data.
func (e *Engine) editHelpReply(s *models.SessionState, all []*form.FieldConfig) string {
	var b strings.Builder
	b.WriteString("🤔 Maaf, saya tidak mengerti data mana yang ingin diubah.\n\n")
	b.WriteString("**Cara mengubah data:**\n")
	b.WriteString("• \"ubah nama menjadi Ahmad Fauzi\"\n")
	b.WriteString("• \"ganti alamat ke Jl. Sudirman No. 10\"\n")
	b.WriteString("• \"koreksi tanggal lahir 15/05/2000\"\n")
	b.WriteString("• \"hp: 081234567890\"\n")

	labels := make(map[string]string, len(all))
	for _, f := range all {
		labels[f.ID] = f.Label
	}
	shown := 0
	for fieldID, v := range s.Values {
		if v.IsZero() || shown >= 10 {
			continue
		}
		if shown == 0 {
			b.WriteString("\n**Data yang bisa diubah:**\n")
		}
		label := labels[fieldID]
		if label == "" {
			label = fieldID
		}
		fmt.Fprintf(&b, "• %s: %s\n", label, v.String())
		shown++
	}
	return strings.TrimRight(b.String(), "\n")
}
