package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/azhar-edu/regbot/internal/form"
	"github.com/azhar-edu/regbot/internal/models"
	"github.com/azhar-edu/regbot/internal/session"
)

// skipDocumentKeywords let the user decline the remaining optional
// documents. Accepted only when no mandatory document is still missing.
var skipDocumentKeywords = []string{"skip", "lewati", "tidak ada", "kosong"}

// handleDocumentPhase handles every message while the session is uploading
// documents: file batches, skip requests, and the few commands that remain
// available.
func (e *Engine) handleDocumentPhase(ctx context.Context, s *models.SessionState, req *models.ChatRequest) *models.ChatResult {
	trimmed := strings.ToLower(strings.TrimSpace(req.Message))
	for _, kw := range skipDocumentKeywords {
		if trimmed == kw {
			return e.handleSkipDocuments(s)
		}
	}

	switch e.forms.DetectCommand(req.Message) {
	case form.CommandBack:
		e.setPhase(s, models.PhaseCollecting)
		return e.handleBack(s)
	case form.CommandSummary:
		return e.result(s, e.formatSummary(s))
	}

	if len(req.Files) > 0 {
		return e.handleUpload(ctx, s, req.Files)
	}
	return e.result(s, e.promptNextDocument(s))
}

// handleUpload classifies a batch, assigns recognized files to their
// document fields, persists their metadata, and re-prompts for what is
// still outstanding.
func (e *Engine) handleUpload(ctx context.Context, s *models.SessionState, files []models.FileUpload) *models.ChatResult {
	if e.classifier == nil {
		return e.result(s, "❌ Upload dokumen belum tersedia. Silakan coba lagi nanti.")
	}

	results, err := e.classifier.ClassifyBatch(ctx, files)
	if err != nil {
		return e.result(s, uploadRejectionMessage(err))
	}

	docFields := e.forms.DocumentFields()
	known := make(map[string]*form.FieldConfig, len(docFields))
	for _, f := range docFields {
		known[f.ID] = f
	}

	// A lone unrecognized file goes to the sole outstanding mandatory
	// document before we give up and ask the user to rename it.
	if len(results) == 1 && results[0].Type == models.DocumentTypeUnknown {
		if missing := e.forms.MissingMandatoryDocuments(s.Documents); len(missing) == 1 {
			results[0].FieldID = missing[0].ID
		}
	}

	batchID := uuid.NewString()
	var unknown []models.ClassificationResult
	var fieldOrder []string
	perField := map[string]int{}
	firstFile := map[string]models.ClassificationResult{}

	for i, r := range results {
		if r.FieldID == "" || known[r.FieldID] == nil {
			unknown = append(unknown, r)
			continue
		}
		session.SetDocument(s, r.FieldID, r.FileRef, r.Filename, batchID)
		if perField[r.FieldID] == 0 {
			fieldOrder = append(fieldOrder, r.FieldID)
			firstFile[r.FieldID] = r
		}
		perField[r.FieldID]++
		record := models.DocumentRecord{
			SessionID:  s.SessionID,
			FieldID:    r.FieldID,
			BatchID:    batchID,
			Order:      i,
			FileRef:    r.FileRef,
			Filename:   r.Filename,
			UploadedAt: e.now(),
		}
		if err := e.store.SaveDocument(record); err != nil {
			slog.Error("Engine.handleUpload: document metadata not persisted", "error", err, "fileRef", r.FileRef)
		}
	}

	var lines []string
	for _, fieldID := range fieldOrder {
		field := known[fieldID]
		if count := perField[fieldID]; count > 1 {
			lines = append(lines, fmt.Sprintf("✅ **%s:** %d file", field.Label, count))
		} else {
			r := firstFile[fieldID]
			suffix := ""
			if r.Confidence < 0.7 {
				suffix = fmt.Sprintf(" *(confidence: %.0f%%)*", r.Confidence*100)
			}
			lines = append(lines, fmt.Sprintf("✅ **%s:** %s%s", field.Label, r.Filename, suffix))
		}
	}

	var b strings.Builder
	if len(lines) > 0 {
		b.WriteString("📁 **Dokumen berhasil diupload & dikenali:**\n\n")
		b.WriteString(strings.Join(lines, "\n"))
	}
	if len(unknown) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "\n⚠️ **%d file tidak dikenali:**", len(unknown))
		for _, r := range unknown[:min(3, len(unknown))] {
			fmt.Fprintf(&b, "\n  • %s", r.Filename)
		}
		if len(unknown) > 3 {
			fmt.Fprintf(&b, "\n  ... dan %d lainnya", len(unknown)-3)
		}
		b.WriteString("\n\n💡 Coba rename file dengan nama yang lebih jelas, contoh:\n• akta_kelahiran.pdf\n• kartu_keluarga.jpg")
	}
	b.WriteString("\n\n---\n\n")
	b.WriteString(e.promptNextDocument(s))
	return e.result(s, b.String())
}

// uploadRejectionMessage turns a file validation error into a specific
// user-facing rejection.
func uploadRejectionMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrEmptyFile):
		return "❌ File kosong. Silakan upload ulang file yang valid."
	case errors.Is(err, models.ErrFileTooLarge):
		return fmt.Sprintf("❌ File terlalu besar. Maksimal %d MB per file.", models.MaxUploadSizeBytes>>20)
	case errors.Is(err, models.ErrUnsupportedFileType):
		return "❌ Format file tidak didukung. Gunakan: .pdf, .jpg, .jpeg, .png"
	case errors.Is(err, models.ErrTooManyFiles):
		return fmt.Sprintf("❌ Terlalu banyak file sekaligus. Maksimal %d file per pesan.", models.MaxBatchFiles)
	default:
		return "❌ Upload gagal diproses. Silakan coba lagi."
	}
}

// promptNextDocument renders the outstanding-documents prompt, or finishes
// the phase when every mandatory document is in.
func (e *Engine) promptNextDocument(s *models.SessionState) string {
	docFields := e.forms.DocumentFields()
	missing := e.forms.MissingMandatoryDocuments(s.Documents)
	if len(missing) == 0 {
		return e.finishDocuments(s)
	}

	var b strings.Builder
	b.WriteString("📄 **UPLOAD DOKUMEN**\n\n")
	b.WriteString("💡 **Tips:** Upload semua dokumen sekaligus! Sistem akan otomatis mengenali jenisnya.\n\n")
	b.WriteString("**Dokumen yang masih diperlukan:**")
	for _, f := range missing {
		fmt.Fprintf(&b, "\n  ● %s *(wajib)*", f.Label)
	}

	var optional []string
	totalMandatory, uploadedMandatory := 0, 0
	var uploaded []*form.FieldConfig
	for _, f := range docFields {
		doc, has := s.Documents[f.ID]
		filled := has && doc.FileCount > 0
		if f.Mandatory {
			totalMandatory++
			if filled {
				uploadedMandatory++
			}
		} else if !filled {
			optional = append(optional, f.Label)
		}
		if filled {
			uploaded = append(uploaded, f)
		}
	}
	if len(optional) > 0 {
		b.WriteString("\n\n**Opsional:**")
		for _, label := range optional[:min(3, len(optional))] {
			fmt.Fprintf(&b, "\n  ○ %s", label)
		}
	}
	fmt.Fprintf(&b, "\n\n📊 Progress: %d/%d dokumen wajib", uploadedMandatory, totalMandatory)
	if len(uploaded) > 0 {
		b.WriteString("\n\n**Sudah diupload:**")
		for _, f := range uploaded[:min(5, len(uploaded))] {
			if count := s.Documents[f.ID].FileCount; count > 1 {
				fmt.Fprintf(&b, "\n  ✅ %s (%d file)", f.Label, count)
			} else {
				fmt.Fprintf(&b, "\n  ✅ %s", f.Label)
			}
		}
	}
	return b.String()
}

// handleSkipDocuments accepts a skip only when nothing mandatory is missing.
func (e *Engine) handleSkipDocuments(s *models.SessionState) *models.ChatResult {
	missing := e.forms.MissingMandatoryDocuments(s.Documents)
	if len(missing) > 0 {
		labels := make([]string, 0, len(missing))
		for _, f := range missing {
			labels = append(labels, f.Label)
		}
		return e.result(s, "❌ Masih ada dokumen wajib yang belum diupload:\n• "+strings.Join(labels, "\n• "))
	}
	return e.result(s, e.finishDocuments(s))
}

// finishDocuments closes the upload phase: renders the uploaded/skipped
// recap and moves to pre-confirm.
func (e *Engine) finishDocuments(s *models.SessionState) string {
	var uploaded, skipped []string
	for _, f := range e.forms.DocumentFields() {
		if doc, ok := s.Documents[f.ID]; ok && doc.FileCount > 0 {
			if doc.FileCount > 1 {
				uploaded = append(uploaded, fmt.Sprintf("✅ %s (%d file)", f.Label, doc.FileCount))
			} else {
				uploaded = append(uploaded, "✅ "+f.Label)
			}
		} else {
			skipped = append(skipped, "⏭️ "+f.Label)
		}
	}

	e.setPhase(s, models.PhasePreConfirm)
	slog.Info("Engine.finishDocuments: upload phase complete", "sessionID", s.SessionID, "uploaded", len(uploaded))

	var b strings.Builder
	b.WriteString("📋 **Dokumen:**\n" + strings.Join(uploaded, "\n"))
	if len(skipped) > 0 {
		b.WriteString("\n\n**Dilewati:**\n" + strings.Join(skipped, "\n"))
	}
	b.WriteString("\n\n---\n\n✅ Upload selesai!\n\nKetik **'konfirmasi'** untuk menyelesaikan.")
	return b.String()
}
