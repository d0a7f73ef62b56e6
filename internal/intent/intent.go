// Package intent classifies inbound free text into the known intent labels.
//
// The classifier is a bounded external call: it asks a chat completion model
// for a single label and degrades to keyword matching when the model is
// unreachable, times out, or answers something unexpected. Callers always
// get a valid label back.
package intent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/augustodasneves/supportagent/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultTimeout bounds one classification call.
const DefaultTimeout = 10 * time.Second

const systemPrompt = "Analyze the user's message and determine if they want to update their registration data. Reply with only 'UPDATE_REGISTRATION' or 'OTHER'."

// updateKeywords trigger the update intent when the model is unavailable.
var updateKeywords = []string{"iniciar", "começar", "atualizar", "mudar", "alterar", "cadastro", "start"}

// Classifier labels messages via the OpenAI chat completions API.
type Classifier struct {
	client  openai.Client
	model   openai.ChatModel
	timeout time.Duration
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithModel overrides the chat model used for classification.
func WithModel(model openai.ChatModel) Option {
	return func(c *Classifier) { c.model = model }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Classifier) { c.timeout = timeout }
}

// NewClassifier creates a Classifier with the given API key.
func NewClassifier(apiKey string, opts ...Option) *Classifier {
	c := &Classifier{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   openai.ChatModelGPT4oMini,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the intent label for the text. It never returns an error:
// any model failure falls back to keyword matching.
func (c *Classifier) Classify(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		slog.Warn("Classifier model call failed, falling back to keywords", "error", err)
		return FallbackLabel(text), nil
	}
	if len(resp.Choices) == 0 {
		slog.Warn("Classifier got empty completion, falling back to keywords")
		return FallbackLabel(text), nil
	}

	label := normalizeLabel(resp.Choices[0].Message.Content)
	slog.Debug("Classifier labelled message", "label", label)
	return label, nil
}

// normalizeLabel maps a raw completion to a known label. Anything that does
// not name the update intent is OTHER.
func normalizeLabel(raw string) string {
	if strings.Contains(strings.ToUpper(raw), models.IntentUpdateRegistration) {
		return models.IntentUpdateRegistration
	}
	return models.IntentOther
}

// FallbackLabel classifies by keyword matching alone. Used when the model
// is unreachable so the flow still recognizes obvious update requests.
func FallbackLabel(text string) string {
	lower := strings.ToLower(text)
	for _, kw := range updateKeywords {
		if strings.Contains(lower, kw) {
			return models.IntentUpdateRegistration
		}
	}
	return models.IntentOther
}
