package engine

import (
	"fmt"
	"strings"

	"github.com/azhar-edu/regbot/internal/form"
	"github.com/azhar-edu/regbot/internal/models"
)

// result assembles the reply envelope from the session's current state.
func (e *Engine) result(s *models.SessionState, reply string) *models.ChatResult {
	steps := e.forms.ListSteps()
	summaries := make([]models.StepSummary, 0, len(steps))
	for _, step := range steps {
		summaries = append(summaries, models.StepSummary{ID: step.ID, Name: step.Name, Icon: step.Icon})
	}

	docFields := e.forms.DocumentFields()
	docs := models.DocumentsStatus{Total: len(docFields)}
	for _, f := range docFields {
		doc, has := s.Documents[f.ID]
		uploaded := has && doc.FileCount > 0
		if f.Mandatory {
			docs.Mandatory++
		}
		if uploaded {
			docs.Uploaded++
		}
		docs.Documents = append(docs.Documents, models.DocumentStatusEntry{
			FieldID:     f.ID,
			Label:       f.Label,
			IsMandatory: f.Mandatory,
			IsUploaded:  uploaded,
			FileCount:   doc.FileCount,
		})
	}

	canConfirm, completion, _ := e.forms.CanConfirm(s.Values)
	return &models.ChatResult{
		SessionID:          s.SessionID,
		Reply:              reply,
		CurrentStep:        s.CurrentStep,
		Phase:              s.Phase,
		CompletionPercent:  completion,
		CanAdvance:         e.forms.CanAdvance(s.CurrentStep, s.Values),
		CanConfirm:         canConfirm,
		CanGoBack:          e.forms.PrevStep(s.CurrentStep) != "",
		IsComplete:         s.Status == models.SessionStatusCompleted,
		RegistrationNumber: s.RegistrationNumber,
		StepInfo: models.StepInfo{
			Current:    s.CurrentStep,
			TotalSteps: len(steps),
			Steps:      summaries,
		},
		DocumentsStatus: docs,
	}
}

// formatSummary renders the full registration recap grouped by step.
func (e *Engine) formatSummary(s *models.SessionState) string {
	var b strings.Builder
	b.WriteString("📋 **RINGKASAN DATA PENDAFTARAN**\n")

	for _, step := range e.forms.ListSteps() {
		var lines []string
		for _, f := range e.forms.ListFields(step.ID) {
			if f.Type == form.FieldTypeFile {
				doc, ok := s.Documents[f.ID]
				if !ok || doc.FileCount == 0 {
					continue
				}
				if doc.FileCount > 1 {
					lines = append(lines, fmt.Sprintf("  • %s: ✓ %d file", f.Label, doc.FileCount))
				} else {
					lines = append(lines, fmt.Sprintf("  • %s: ✓ Terupload", f.Label))
				}
				continue
			}
			v, ok := s.Values[f.ID]
			if !ok || v.IsZero() {
				continue
			}
			lines = append(lines, fmt.Sprintf("  • %s: %s", f.Label, v.String()))
		}
		if len(lines) == 0 {
			continue
		}
		icon := step.Icon
		if icon == "" {
			icon = "📝"
		}
		fmt.Fprintf(&b, "\n%s **%s:**\n%s\n", icon, step.Name, strings.Join(lines, "\n"))
	}

	fmt.Fprintf(&b, "\n📊 **Kelengkapan:** %.0f%%", e.forms.CalculateCompletion(s.Values))
	return b.String()
}
