package form

import (
	"log/slog"
	"sort"

	"github.com/azhar-edu/regbot/internal/models"
)

// Manager provides schema queries, validation, and completion math over one
// loaded Schema. It is safe for concurrent use because the schema is
// read-only after construction.
type Manager struct {
	schema  *Schema
	steps   []StepConfig            // sorted by Order
	fields  map[string]*FieldConfig // by field id
	byStep  map[string][]*FieldConfig
	rules   []CommandRule
}

// NewManager builds a Manager from a schema. Steps are sorted by their
// configured order; fields keep their declaration order within a step.
func NewManager(schema *Schema) *Manager {
	m := &Manager{
		schema: schema,
		fields: make(map[string]*FieldConfig),
		byStep: make(map[string][]*FieldConfig),
		rules:  schema.Commands,
	}
	if len(m.rules) == 0 {
		m.rules = DefaultCommandRules()
	}

	m.steps = make([]StepConfig, len(schema.Steps))
	copy(m.steps, schema.Steps)
	sort.SliceStable(m.steps, func(i, j int) bool { return m.steps[i].Order < m.steps[j].Order })

	for i := range schema.Fields {
		f := &schema.Fields[i]
		m.fields[f.ID] = f
		m.byStep[f.StepID] = append(m.byStep[f.StepID], f)
	}

	slog.Debug("form.NewManager: manager built", "steps", len(m.steps), "fields", len(m.fields))
	return m
}

// Schema returns the underlying schema.
func (m *Manager) Schema() *Schema { return m.schema }

// ListSteps returns all steps in display order.
func (m *Manager) ListSteps() []StepConfig { return m.steps }

// ListFields returns the fields belonging to a step, in declaration order.
func (m *Manager) ListFields(stepID string) []*FieldConfig { return m.byStep[stepID] }

// GetField looks up a field by id.
func (m *Manager) GetField(id string) (*FieldConfig, bool) {
	f, ok := m.fields[id]
	return f, ok
}

// GetStep looks up a step by id.
func (m *Manager) GetStep(id string) (*StepConfig, bool) {
	for i := range m.steps {
		if m.steps[i].ID == id {
			return &m.steps[i], true
		}
	}
	return nil, false
}

// FirstStep returns the id of the first configured step.
func (m *Manager) FirstStep() string {
	if len(m.steps) == 0 {
		return ""
	}
	return m.steps[0].ID
}

// NextStep returns the id of the step after stepID, or "" at the end.
func (m *Manager) NextStep(stepID string) string {
	for i := range m.steps {
		if m.steps[i].ID == stepID && i+1 < len(m.steps) {
			return m.steps[i+1].ID
		}
	}
	return ""
}

// PrevStep returns the id of the step before stepID, or "" at the start.
func (m *Manager) PrevStep(stepID string) string {
	for i := range m.steps {
		if m.steps[i].ID == stepID && i > 0 {
			return m.steps[i-1].ID
		}
	}
	return ""
}

// Validate normalizes and validates a raw value for a field. Unknown fields
// pass through unchanged so extractor noise never aborts a turn.
func (m *Manager) Validate(fieldID, raw string) (ok bool, errMsg string, normalized string) {
	f, found := m.fields[fieldID]
	if !found {
		return true, "", raw
	}
	normalized = f.Normalize(raw)
	ok, errMsg = f.Validate(normalized)
	return ok, errMsg, normalized
}

// AllMandatoryFields returns every mandatory field across all steps, in
// step then declaration order.
func (m *Manager) AllMandatoryFields() []*FieldConfig {
	var out []*FieldConfig
	for _, step := range m.steps {
		for _, f := range m.byStep[step.ID] {
			if f.Mandatory {
				out = append(out, f)
			}
		}
	}
	return out
}

// CalculateCompletion returns the percentage of mandatory fields filled
// across all steps, independent of the current step.
func (m *Manager) CalculateCompletion(values map[string]models.FieldValue) float64 {
	mandatory := m.AllMandatoryFields()
	if len(mandatory) == 0 {
		return 100
	}
	filled := 0
	for _, f := range mandatory {
		if v, ok := values[f.ID]; ok && !v.IsZero() {
			filled++
		}
	}
	return float64(filled) / float64(len(mandatory)) * 100
}

// MissingMandatory returns the mandatory fields of one step that have no
// filled value, in declaration order.
func (m *Manager) MissingMandatory(stepID string, values map[string]models.FieldValue) []*FieldConfig {
	var missing []*FieldConfig
	for _, f := range m.byStep[stepID] {
		if !f.Mandatory {
			continue
		}
		if v, ok := values[f.ID]; !ok || v.IsZero() {
			missing = append(missing, f)
		}
	}
	return missing
}

// CanAdvance reports whether all mandatory fields of one step are filled.
// It is scoped to that step only and never consults global completion.
func (m *Manager) CanAdvance(stepID string, values map[string]models.FieldValue) bool {
	return len(m.MissingMandatory(stepID, values)) == 0
}

// ShouldSkip reports whether a step's skip conditions are satisfied by the
// current values.
func (m *Manager) ShouldSkip(stepID string, values map[string]models.FieldValue) bool {
	step, ok := m.GetStep(stepID)
	if !ok || len(step.SkipConditions) == 0 {
		return false
	}
	for _, cond := range step.SkipConditions {
		v, ok := values[cond.FieldID]
		if !ok || v.IsZero() {
			continue
		}
		current := v.String()
		for _, allowed := range cond.Values {
			if current == allowed {
				return true
			}
		}
	}
	return false
}

// CanConfirm reports whether the session may enter confirmation: global
// completion must meet the configured minimum percentage.
func (m *Manager) CanConfirm(values map[string]models.FieldValue) (bool, float64, float64) {
	minPercent := m.schema.MinConfirmPercent
	if minPercent <= 0 {
		minPercent = 60
	}
	completion := m.CalculateCompletion(values)
	return completion >= minPercent, completion, minPercent
}

// DetectCommand matches a message against the schema's command table.
func (m *Manager) DetectCommand(message string) Command {
	return DetectCommand(message, m.rules)
}

// DocumentFields returns all file-type fields, in step then declaration order.
func (m *Manager) DocumentFields() []*FieldConfig {
	var out []*FieldConfig
	for _, step := range m.steps {
		for _, f := range m.byStep[step.ID] {
			if f.Type == FieldTypeFile {
				out = append(out, f)
			}
		}
	}
	return out
}

// DocumentsStepID returns the id of the first step containing file fields,
// or "" when the schema collects no documents.
func (m *Manager) DocumentsStepID() string {
	for _, step := range m.steps {
		for _, f := range m.byStep[step.ID] {
			if f.Type == FieldTypeFile {
				return step.ID
			}
		}
	}
	return ""
}

// MissingMandatoryDocuments returns the mandatory file fields not yet
// uploaded for a session.
func (m *Manager) MissingMandatoryDocuments(documents map[string]models.DocumentUpload) []*FieldConfig {
	var missing []*FieldConfig
	for _, f := range m.DocumentFields() {
		if !f.Mandatory {
			continue
		}
		if d, ok := documents[f.ID]; !ok || d.FileCount == 0 {
			missing = append(missing, f)
		}
	}
	return missing
}
