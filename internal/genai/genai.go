// Package genai provides the language-model collaborator for field
// extraction and document vision, backed by the OpenAI API.
//
// The engine treats this package as best-effort: every call carries a
// bounded timeout and callers fall back to deterministic extraction when a
// call fails or returns nothing.
package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/azhar-edu/regbot/internal/models"
)

// DefaultTimeout bounds a single collaborator call so a slow model can
// never hang the conversation.
const DefaultTimeout = 20 * time.Second

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key explicitly.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// FieldHint describes one candidate field for extraction prompts.
type FieldHint struct {
	ID       string
	Label    string
	Type     string
	Options  []string
	Examples []string
	Tips     string
}

// Client wraps the OpenAI chat completion API.
type Client struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewClient initializes the GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not set via options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	slog.Debug("genai.NewClient: client configured", "model", cfg.Model, "timeout", cfg.Timeout)
	return &Client{
		client:  openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// ExtractFields asks the model to map a free-text message onto the
// candidate fields. It returns raw string values keyed by field id; an
// empty map is a valid answer and the caller's cue to use the deterministic
// fallback extractor.
func (c *Client) ExtractFields(ctx context.Context, message string, recentContext []models.ConversationMessage, fields []FieldHint) (map[string]string, error) {
	if len(fields) == 0 {
		return map[string]string{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(buildExtractionPrompt(fields)),
	}
	for _, m := range recentContext {
		if m.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(m.Content))
		} else {
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	messages = append(messages, openai.UserMessage(message))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		slog.Error("GenAI.ExtractFields: completion failed", "error", err)
		return nil, fmt.Errorf("extraction completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("extraction returned no choices")
	}

	extracted := parseJSONObject(resp.Choices[0].Message.Content)
	result := make(map[string]string, len(extracted))
	for id, raw := range extracted {
		value := scalarToString(raw)
		if value == "" {
			continue
		}
		for _, f := range fields {
			if f.ID == id {
				result[id] = value
				break
			}
		}
	}
	slog.Debug("GenAI.ExtractFields: extraction complete", "candidates", len(fields), "extracted", len(result))
	return result, nil
}

// AnalyzeImage sends an image with an instruction prompt and returns the
// raw model output, typically a JSON classification.
func (c *Client) AnalyzeImage(ctx context.Context, image []byte, mediaType, prompt string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("empty image")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	dataURL := fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(image))
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
	})
	if err != nil {
		slog.Error("GenAI.AnalyzeImage: completion failed", "error", err)
		return "", fmt.Errorf("vision completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// buildExtractionPrompt renders the system prompt listing candidate fields
// with their types, options, and examples.
func buildExtractionPrompt(fields []FieldHint) string {
	var b strings.Builder
	b.WriteString("Kamu adalah asisten ekstraksi data pendaftaran. ")
	b.WriteString("Ekstrak nilai field dari pesan pengguna.\n\n")
	b.WriteString("Field yang dicari:\n")
	for _, f := range fields {
		b.WriteString(fmt.Sprintf("- %s (%s): %s", f.ID, f.Type, f.Label))
		if len(f.Options) > 0 {
			b.WriteString(fmt.Sprintf(" [pilihan: %s]", strings.Join(f.Options, ", ")))
		}
		if len(f.Examples) > 0 {
			b.WriteString(fmt.Sprintf(" [contoh: %s]", strings.Join(f.Examples, ", ")))
		}
		if f.Tips != "" {
			b.WriteString(" (" + f.Tips + ")")
		}
		b.WriteString("\n")
	}
	b.WriteString("\nJawab HANYA dengan objek JSON {\"field_id\": \"nilai\"}. ")
	b.WriteString("Hanya sertakan field yang benar-benar disebut pengguna. ")
	b.WriteString("Jangan sertakan label field di dalam nilai. ")
	b.WriteString("Jika tidak ada field yang cocok, jawab {}.")
	return b.String()
}

// parseJSONObject extracts the first JSON object from model output,
// tolerating code fences and surrounding prose.
func parseJSONObject(content string) map[string]interface{} {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(content[start:end+1]), &out); err != nil {
		slog.Debug("genai.parseJSONObject: unparsable model output", "error", err)
		return nil
	}
	return out
}

func scalarToString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
