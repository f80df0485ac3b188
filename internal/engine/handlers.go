package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/azhar-edu/regbot/internal/form"
	"github.com/azhar-edu/regbot/internal/genai"
	"github.com/azhar-edu/regbot/internal/models"
	"github.com/azhar-edu/regbot/internal/session"
)

// handleCommand routes a detected command to its handler.
func (e *Engine) handleCommand(ctx context.Context, s *models.SessionState, cmd form.Command, req *models.ChatRequest) *models.ChatResult {
	slog.Debug("Engine.handleCommand: command detected", "command", cmd, "sessionID", s.SessionID)
	switch cmd {
	case form.CommandAdvance:
		return e.handleAdvance(s)
	case form.CommandBack:
		return e.handleBack(s)
	case form.CommandSummary:
		return e.result(s, e.formatSummary(s))
	case form.CommandConfirm:
		return e.handleConfirmRequest(s)
	case form.CommandReset:
		return e.handleResetRequest(s)
	case form.CommandHelp:
		return e.handleHelp(s)
	case form.CommandGreeting:
		return e.handleGreeting(s)
	case form.CommandCheckStatus:
		if number := extractRegistrationNumber(req.Message); number != "" {
			return e.handleStatusLookup(s, number)
		}
		return e.result(s, "📋 Masukkan nomor registrasi Anda.\n\nContoh: `AZHAR-2025-TK-ABC12345`")
	}
	return e.handleDataInput(ctx, s, req.Message)
}

// handleAdvance moves to the next step when the current step's mandatory
// fields are all filled, walking over skippable steps. Landing on the
// documents step switches the phase; running out of steps shows the summary.
func (e *Engine) handleAdvance(s *models.SessionState) *models.ChatResult {
	if !e.forms.CanAdvance(s.CurrentStep, s.Values) {
		missing := e.forms.MissingMandatory(s.CurrentStep, s.Values)
		labels := make([]string, 0, len(missing))
		for _, f := range missing {
			labels = append(labels, f.Label)
		}
		return e.result(s, "⚠️ Untuk melanjutkan, masih diperlukan:\n• "+strings.Join(labels, "\n• "))
	}

	next := e.forms.NextStep(s.CurrentStep)
	for next != "" && e.forms.ShouldSkip(next, s.Values) {
		next = e.forms.NextStep(next)
	}

	if next == "" {
		e.setPhase(s, models.PhasePreConfirm)
		return e.result(s, e.formatSummary(s)+"\n\n---\n\nKetik **'konfirmasi'** untuk menyelesaikan.")
	}

	if next == e.forms.DocumentsStepID() {
		s.CurrentStep = next
		s.DocumentIndex = 0
		e.setPhase(s, models.PhaseUploadingDocuments)
		return e.result(s, "📄 Lanjut ke upload dokumen.\n\n"+e.promptNextDocument(s))
	}

	s.CurrentStep = next
	step, _ := e.forms.GetStep(next)
	return e.result(s, fmt.Sprintf("✅ Lanjut ke tahap **%s**", step.Name))
}

// handleBack lands on the immediately preceding configured step without
// skip-checking and always returns the phase to collecting.
func (e *Engine) handleBack(s *models.SessionState) *models.ChatResult {
	prev := e.forms.PrevStep(s.CurrentStep)
	if prev == "" {
		return e.result(s, "⚠️ Tidak bisa kembali dari tahap ini.")
	}
	s.CurrentStep = prev
	e.setPhase(s, models.PhaseCollecting)
	step, _ := e.forms.GetStep(prev)
	return e.result(s, fmt.Sprintf("⬅️ Kembali ke tahap **%s**", step.Name))
}

// handleConfirmRequest gates the confirm command on global completion and
// moves to AWAITING_CONFIRM with the summary and a final yes/no prompt.
func (e *Engine) handleConfirmRequest(s *models.SessionState) *models.ChatResult {
	ok, completion, minPercent := e.forms.CanConfirm(s.Values)
	if !ok {
		return e.result(s, fmt.Sprintf(
			"❌ Data belum lengkap: %.0f%% terisi, minimal %.0f%% untuk konfirmasi.\n\nKetik **'summary'** untuk melihat data.",
			completion, minPercent))
	}
	e.setPhase(s, models.PhaseAwaitingConfirm)
	return e.result(s, e.formatSummary(s)+"\n\n---\n\n⚠️ **KONFIRMASI FINAL**\n\nKetik **'ya saya yakin'** untuk konfirmasi.")
}

// handleConfirmReply finalizes the registration on an affirmative and
// otherwise returns to collecting with all data intact.
func (e *Engine) handleConfirmReply(s *models.SessionState, message string) *models.ChatResult {
	if !matchesAny(message, confirmAffirmatives) {
		e.setPhase(s, models.PhaseCollecting)
		return e.result(s, "Baik, silakan periksa data Anda.\n\nKetik **'summary'** untuk lihat data atau langsung ubah data yang salah.")
	}

	number := e.newRegistrationNumber(s.Values)
	now := e.now()
	values := make(map[string]models.FieldValue, len(s.Values))
	for id, v := range s.Values {
		values[id] = v
	}
	reg := models.Registration{
		Number:    number,
		SessionID: s.SessionID,
		Values:    values,
		Status:    models.RegistrationStatusSubmitted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.SaveRegistration(reg); err != nil {
		slog.Error("Engine.handleConfirmReply: registration not persisted", "error", err, "number", number)
	}

	s.RegistrationNumber = number
	s.Status = models.SessionStatusCompleted
	e.setPhase(s, models.PhaseConfirmed)
	e.setPhase(s, models.PhaseAskNewRegistration)
	slog.Info("Engine.handleConfirmReply: registration confirmed", "number", number, "sessionID", s.SessionID)

	reply := fmt.Sprintf("🎉 **PENDAFTARAN BERHASIL!**\n\n**Nomor Registrasi:** `%s`\n\n💡 Simpan nomor registrasi untuk cek status.\n\nKetik **'daftar baru'** untuk pendaftaran lain.", number)
	result := e.result(s, reply)
	result.RegistrationStatus = string(models.RegistrationStatusSubmitted)
	return result
}

// handleResetRequest asks for explicit confirmation before clearing data.
func (e *Engine) handleResetRequest(s *models.SessionState) *models.ChatResult {
	e.setPhase(s, models.PhaseAwaitingReset)
	return e.result(s, "⚠️ Anda akan menghapus semua data. Ketik **'ya hapus'** untuk konfirmasi.")
}

// handleResetReply clears field values, validation errors, and documents on
// an affirmative; anything else keeps the session intact.
func (e *Engine) handleResetReply(s *models.SessionState, message string) *models.ChatResult {
	if matchesAny(message, resetAffirmatives) {
		session.ResetData(s, e.forms.FirstStep())
		slog.Info("Engine.handleResetReply: session data cleared", "sessionID", s.SessionID)
		return e.result(s, "🔄 Data berhasil dihapus.\n\n"+e.welcomeMessage())
	}
	e.setPhase(s, models.PhaseCollecting)
	return e.result(s, "✅ Baik, data Anda tetap tersimpan.")
}

// handlePostCompletion serves a session that already holds a registration
// number: it can start over or look up its status.
func (e *Engine) handlePostCompletion(s *models.SessionState, message string) *models.ChatResult {
	if matchesAny(message, []string{"daftar baru", "daftar lagi"}) {
		session.ResetData(s, e.forms.FirstStep())
		return e.result(s, "📝 **PENDAFTARAN BARU**\n\n"+e.welcomeMessage())
	}
	return e.result(s, fmt.Sprintf("✅ Nomor registrasi: `%s`\n\nKetik **'daftar baru'** untuk pendaftaran lain.", s.RegistrationNumber))
}

// handleStatusLookup answers a registration number found anywhere in the
// message, regardless of phase.
func (e *Engine) handleStatusLookup(s *models.SessionState, number string) *models.ChatResult {
	reg, err := e.store.GetRegistration(number)
	if err != nil {
		slog.Error("Engine.handleStatusLookup: lookup failed", "error", err, "number", number)
	}
	if reg == nil {
		return e.result(s, fmt.Sprintf("❌ Nomor `%s` tidak ditemukan.", number))
	}

	name := "-"
	if v, ok := reg.Values["nama_lengkap"]; ok {
		name = v.String()
	}
	label := models.RegistrationStatusLabels[reg.Status]
	if label == "" {
		label = string(reg.Status)
	}
	result := e.result(s, fmt.Sprintf("📋 **STATUS PENDAFTARAN**\n\n**Nomor:** `%s`\n**Nama:** %s\n**Status:** %s", number, name, label))
	result.RegistrationNumber = number
	result.RegistrationStatus = string(reg.Status)
	return result
}

// handleHelp lists available commands and the next required field.
func (e *Engine) handleHelp(s *models.SessionState) *models.ChatResult {
	stepName := s.CurrentStep
	if step, ok := e.forms.GetStep(s.CurrentStep); ok {
		stepName = step.Name
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🆘 **BANTUAN PENDAFTARAN**\n\n📍 **Posisi Anda:** Tahap %s\n\n", stepName)
	b.WriteString("**Perintah yang tersedia:**\n")
	b.WriteString("• **'lanjut'** - Ke tahap berikutnya\n")
	b.WriteString("• **'kembali'** - Kembali ke tahap sebelumnya\n")
	b.WriteString("• **'summary'** - Lihat ringkasan data\n")
	b.WriteString("• **'konfirmasi'** - Selesaikan pendaftaran\n")
	b.WriteString("• **'reset'** - Mulai dari awal\n\n")
	b.WriteString("**Cara mengisi data:**\nCukup ketik data langsung, contoh:\n")
	b.WriteString("• \"nama saya Ahmad Fauzi\"\n• \"lahir di Jakarta 15 Mei 2010\"\n\n")
	b.WriteString("**Mengubah data:**\n• \"ubah nama menjadi Ahmad\"\n• \"ganti alamat ke Jl. Baru\"")

	if missing := e.forms.MissingMandatory(s.CurrentStep, s.Values); len(missing) > 0 {
		fmt.Fprintf(&b, "\n\n**▶️ Selanjutnya dibutuhkan:** %s", missing[0].Label)
	}
	return e.result(s, b.String())
}

// handleGreeting welcomes the user with their current position and the next
// required field.
func (e *Engine) handleGreeting(s *models.SessionState) *models.ChatResult {
	stepName := s.CurrentStep
	if step, ok := e.forms.GetStep(s.CurrentStep); ok {
		stepName = step.Name
	}
	completion := e.forms.CalculateCompletion(s.Values)

	var b strings.Builder
	fmt.Fprintf(&b, "Halo! 👋 Selamat datang di pendaftaran Al-Azhar.\n\n📍 Anda sedang di tahap **%s**\n\n📊 Progress: **%.0f%%** selesai", stepName, completion)

	if missing := e.forms.MissingMandatory(s.CurrentStep, s.Values); len(missing) > 0 {
		fmt.Fprintf(&b, "\n\n▶️ Selanjutnya, mohon berikan **%s**.", missing[0].Label)
		if len(missing[0].Examples) > 0 {
			fmt.Fprintf(&b, "\n\n💡 Contoh: %s", missing[0].Examples[0])
		}
	} else {
		b.WriteString("\n\n✅ Semua data di tahap ini sudah lengkap!\nKetik **'lanjut'** untuk melanjutkan ke tahap berikutnya.")
	}
	return e.result(s, b.String())
}

// handleDataInput extracts field values from a free-form message, validates
// and merges them into the session, and reports per-field outcomes.
func (e *Engine) handleDataInput(ctx context.Context, s *models.SessionState, message string) *models.ChatResult {
	fields := e.forms.ListFields(s.CurrentStep)

	if matchesAny(message, []string{"contoh", "contohnya", "sebutkan contoh", "apa contohnya", "ada contoh"}) {
		return e.handleAskExamples(s, message, fields)
	}

	extracted := e.extract(ctx, s, message, fields)
	if len(extracted) == 0 {
		extracted = form.ExtractFieldsSimple(message, fields)
	}

	type confirmed struct {
		field *form.FieldConfig
		value string
	}
	type rejected struct {
		field  *form.FieldConfig
		errMsg string
	}
	var accepted []confirmed
	var failed []rejected

	// Walk fields in schema declaration order so multi-field replies render
	// their confirmation and error lines deterministically.
	for _, step := range e.forms.ListSteps() {
		for _, field := range e.forms.ListFields(step.ID) {
			raw, present := extracted[field.ID]
			if !present {
				continue
			}
			ok, errMsg, normalized := e.forms.Validate(field.ID, raw)
			if !ok {
				session.SetValidationError(s, field.ID, errMsg)
				failed = append(failed, rejected{field, errMsg})
				continue
			}
			session.SetField(s, field.ID, fieldValueFor(field, normalized))
			delete(s.ValidationErrors, field.ID)
			accepted = append(accepted, confirmed{field, normalized})
		}
	}

	if len(accepted) == 0 && len(failed) == 0 {
		return e.handleUnknownInput(s)
	}

	var b strings.Builder
	for _, c := range accepted {
		fmt.Fprintf(&b, "✓ %s: **%s**\n", c.field.Label, c.value)
	}
	for _, r := range failed {
		fmt.Fprintf(&b, "❌ %s: %s\n", r.field.Label, r.errMsg)
	}

	if e.forms.CanAdvance(s.CurrentStep, s.Values) {
		b.WriteString("\n✅ Data tahap ini sudah cukup! Ketik **'lanjut'** untuk melanjutkan.")
	} else if missing := e.forms.MissingMandatory(s.CurrentStep, s.Values); len(missing) > 0 {
		next := missing[0]
		fmt.Fprintf(&b, "\n▶️ Selanjutnya, **%s**?", next.Label)
		if len(next.Examples) > 0 {
			fmt.Fprintf(&b, " _(Contoh: %s)_", next.Examples[0])
		}
	}
	return e.result(s, strings.TrimRight(b.String(), "\n"))
}

// extract calls the extraction collaborator, tolerating absence, errors, and
// empty results; the caller falls back to the deterministic extractor.
func (e *Engine) extract(ctx context.Context, s *models.SessionState, message string, fields []*form.FieldConfig) map[string]string {
	if e.extractor == nil || len(fields) == 0 {
		return nil
	}
	hints := make([]genai.FieldHint, 0, len(fields))
	for _, f := range fields {
		hint := genai.FieldHint{ID: f.ID, Label: f.Label, Type: string(f.Type), Examples: f.Examples, Tips: f.Tips}
		for _, opt := range f.Options {
			hint.Options = append(hint.Options, opt.Value)
		}
		hints = append(hints, hint)
	}
	extracted, err := e.extractor.ExtractFields(ctx, message, session.RecentHistory(s, 5), hints)
	if err != nil {
		slog.Warn("Engine.extract: collaborator failed, using fallback", "error", err, "sessionID", s.SessionID)
		return nil
	}
	return extracted
}

// handleAskExamples answers "contoh ..." requests from the current step's
// field configs.
func (e *Engine) handleAskExamples(s *models.SessionState, message string, fields []*form.FieldConfig) *models.ChatResult {
	lower := strings.ToLower(message)

	var matched *form.FieldConfig
	var withExamples []*form.FieldConfig
	for _, f := range fields {
		if len(f.Examples) == 0 {
			continue
		}
		withExamples = append(withExamples, f)
		if matched == nil && (strings.Contains(lower, strings.ToLower(f.Label)) || strings.Contains(lower, strings.ReplaceAll(f.ID, "_", " "))) {
			matched = f
		}
	}
	if matched == nil && len(withExamples) == 1 {
		matched = withExamples[0]
	}
	if matched == nil && len(withExamples) > 1 {
		var b strings.Builder
		b.WriteString("📝 Ada beberapa field yang memiliki contoh:\n")
		for _, f := range withExamples {
			fmt.Fprintf(&b, "\n• **%s** - ketik 'contoh %s'", f.Label, strings.ToLower(f.Label))
		}
		return e.result(s, b.String())
	}
	if matched == nil {
		return e.result(s, "Maaf, saya tidak menemukan contoh untuk field ini di tahap saat ini.\n\nKetik **'help'** untuk bantuan.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📝 **Contoh %s:**\n", matched.Label)
	for _, ex := range matched.Examples {
		fmt.Fprintf(&b, "\n• %s", ex)
	}
	return e.result(s, b.String())
}

// handleUnknownInput replies helpfully when nothing could be extracted.
func (e *Engine) handleUnknownInput(s *models.SessionState) *models.ChatResult {
	var b strings.Builder
	b.WriteString("🤔 Hmm, saya belum bisa memproses input tersebut.\n\n")

	if missing := e.forms.MissingMandatory(s.CurrentStep, s.Values); len(missing) > 0 {
		next := missing[0]
		fmt.Fprintf(&b, "Saat ini saya membutuhkan **%s**.\n", next.Label)
		if len(next.Examples) > 0 {
			b.WriteString("\n📝 **Contoh cara mengisi:**")
			for _, ex := range next.Examples[:min(2, len(next.Examples))] {
				fmt.Fprintf(&b, "\n  • \"%s\"", ex)
			}
		}
		if next.Tips != "" {
			fmt.Fprintf(&b, "\n\n💡 **Tips:** %s", next.Tips)
		}
		switch next.Type {
		case form.FieldTypeDate:
			b.WriteString("\n\n📅 Format tanggal: DD/MM/YYYY (contoh: 15/05/2010)")
		case form.FieldTypePhone:
			b.WriteString("\n\n📱 Format telepon: 08xxxxxxxxxx")
		case form.FieldTypeEmail:
			b.WriteString("\n\n📧 Format email: nama@domain.com")
		}
	} else {
		b.WriteString("Semua data di tahap ini sudah lengkap.\n\n✅ Ketik **'lanjut'** untuk melanjutkan atau **'summary'** untuk melihat ringkasan.")
	}
	b.WriteString("\n\n📌 Ketik **'help'** untuk melihat panduan lengkap.")
	return e.result(s, b.String())
}

// fieldValueFor converts a normalized raw string into the typed value union
// for the field's kind. Malformed numbers degrade to text rather than
// corrupting state.
func fieldValueFor(field *form.FieldConfig, normalized string) models.FieldValue {
	switch field.Type {
	case form.FieldTypeDate:
		return models.DateValue(normalized)
	case form.FieldTypeNumber:
		if n, err := strconv.ParseFloat(normalized, 64); err == nil {
			return models.NumberValue(n)
		}
		return models.TextValue(normalized)
	case form.FieldTypeFile:
		return models.FileRefValue(normalized)
	default:
		return models.TextValue(normalized)
	}
}

func (e *Engine) welcomeMessage() string {
	if msg := e.forms.Schema().Messages["welcome"]; msg != "" {
		return msg
	}
	return "Selamat datang di pendaftaran Al-Azhar! Silakan mulai dengan nama lengkap calon siswa."
}
