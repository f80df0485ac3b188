// Package form implements the schema-driven form model: step and field
// configuration, validation, normalization, completion math, and the
// deterministic fallback extractor.
//
// The schema is loaded once from a YAML source and shared read-only by all
// sessions.
package form

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/azhar-edu/regbot/internal/models"
)

// FieldType enumerates the supported field kinds.
type FieldType string

const (
	FieldTypeText   FieldType = "text"
	FieldTypeDate   FieldType = "date"
	FieldTypePhone  FieldType = "phone"
	FieldTypeEmail  FieldType = "email"
	FieldTypeNumber FieldType = "number"
	FieldTypeSelect FieldType = "select"
	FieldTypeFile   FieldType = "file"
)

// FieldOption is one selectable value for a select field, with the aliases
// a user may type instead of the canonical value.
type FieldOption struct {
	Value   string   `yaml:"value"`
	Label   string   `yaml:"label,omitempty"`
	Aliases []string `yaml:"aliases,omitempty"`
}

// Validation holds the declarative validation rules for a field.
type Validation struct {
	Pattern      string `yaml:"pattern,omitempty"`
	ErrorMessage string `yaml:"error_message,omitempty"`
	MinLength    int    `yaml:"min_length,omitempty"`
	MaxLength    int    `yaml:"max_length,omitempty"`
	MinAge       int    `yaml:"min_age,omitempty"`
	MaxAge       int    `yaml:"max_age,omitempty"`
}

// AutoFormat declares a pattern-triggered format conversion applied during
// normalization, e.g. textual dates to DD/MM/YYYY.
type AutoFormat struct {
	Pattern   string `yaml:"pattern"`
	ConvertTo string `yaml:"convert_to"`
}

// FieldConfig is the immutable configuration of one form field. Many
// sessions read the same FieldConfig set concurrently.
type FieldConfig struct {
	ID              string        `yaml:"id"`
	Label           string        `yaml:"label"`
	StepID          string        `yaml:"step_id"`
	Type            FieldType     `yaml:"type"`
	Mandatory       bool          `yaml:"mandatory"`
	AutoClean       bool          `yaml:"auto_clean,omitempty"`
	Validation      Validation    `yaml:"validation,omitempty"`
	Options         []FieldOption `yaml:"options,omitempty"`
	AutoFormats     []AutoFormat  `yaml:"auto_formats,omitempty"`
	Examples        []string      `yaml:"examples,omitempty"`
	Tips            string        `yaml:"tips,omitempty"`
	ExtractKeywords []string      `yaml:"extract_keywords,omitempty"`
}

// SkipCondition is a field-value predicate: the step is skipped when the
// named field currently holds one of the listed values.
type SkipCondition struct {
	FieldID string   `yaml:"field_id"`
	Values  []string `yaml:"values"`
}

// StepConfig is the immutable configuration of one form step.
type StepConfig struct {
	ID             string          `yaml:"id"`
	Name           string          `yaml:"name"`
	Description    string          `yaml:"description,omitempty"`
	Order          int             `yaml:"order"`
	Mandatory      bool            `yaml:"mandatory"`
	Icon           string          `yaml:"icon,omitempty"`
	SkipConditions []SkipCondition `yaml:"skip_conditions,omitempty"`
}

// Schema is the full form definition: ordered steps, fields, and the
// declarative command and trigger tables that accompany them.
type Schema struct {
	Name              string                 `yaml:"name"`
	RegistrationYear  int                    `yaml:"registration_year,omitempty"`
	MinConfirmPercent float64                `yaml:"min_confirm_percent,omitempty"`
	Steps             []StepConfig           `yaml:"steps"`
	Fields            []FieldConfig          `yaml:"fields"`
	Commands          []CommandRule          `yaml:"commands,omitempty"`
	Messages          map[string]string      `yaml:"messages,omitempty"`
	Triggers          []models.TriggerConfig `yaml:"triggers,omitempty"`
	RatingPrompts     []models.RatingPrompt  `yaml:"rating_prompts,omitempty"`
}

// LoadSchema reads and parses a schema YAML file.
func LoadSchema(path string) (*Schema, error) {
	slog.Debug("form.LoadSchema: loading schema", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("schema %s defines no steps", path)
	}
	slog.Info("form.LoadSchema: schema loaded", "path", path, "steps", len(s.Steps), "fields", len(s.Fields))
	return &s, nil
}
