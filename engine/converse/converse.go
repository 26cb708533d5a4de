// Package converse runs the conversational criteria path: a completion call
// over the full chat history that either continues the conversation or
// declares the user ready to search, in which case the natural-language
// summary is converted into structured filter criteria.
package converse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AutoMatchAI/automatch-mvp/engine/domain"
	"github.com/AutoMatchAI/automatch-mvp/pkg/fn"
	"github.com/AutoMatchAI/automatch-mvp/pkg/llm"
)

// Message is one turn of the conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is the handler outcome: either a continuation message to show the
// user, or ready-to-search criteria.
type Reply struct {
	ReadyToSearch bool             `json:"readyToSearch"`
	Message       string           `json:"message,omitempty"`
	Criteria      *domain.Criteria `json:"criteria,omitempty"`
}

// summary is the structured block the completion emits once it has gathered
// enough to search.
type summary struct {
	Budget       string   `json:"budget"`
	UseCases     []string `json:"useCases"`
	BodyTypes    []string `json:"bodyTypes"`
	FuelTypes    []string `json:"fuelTypes"`
	Requirements []string `json:"additionalRequirements"`
}

type readiness struct {
	ReadyToSearch bool     `json:"readyToSearch"`
	Summary       *summary `json:"searchSummary"`
}

// Converter maps natural-language summary fields onto the closed criteria
// vocabulary, consulting the completion collaborator for use-case phrases no
// static mapping covers.
type Converter struct {
	complete llm.Completer
	retry    fn.RetryOpts
	logger   *slog.Logger
}

// NewConverter creates a Converter. Classification calls are retried only on
// transient rate-limit/overload failures.
func NewConverter(complete llm.Completer, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	retry := fn.DefaultRetry
	retry.ShouldRetry = llm.IsRetryable
	return &Converter{complete: complete, retry: retry, logger: logger}
}

// Convert builds structured criteria from a search summary.
func (c *Converter) Convert(ctx context.Context, s summary) *domain.Criteria {
	budget := ConvertBudget(s.Budget)
	tags, requirements := c.ConvertUseCases(ctx, s.UseCases)
	requirements = append(requirements, s.Requirements...)
	return &domain.Criteria{
		Budget:       &budget,
		UseCases:     tags,
		BodyTypes:    ConvertBodyTypes(s.BodyTypes),
		FuelTypes:    ConvertFuelTypes(s.FuelTypes),
		Requirements: fn.Unique(requirements),
	}
}

// Handler drives one conversation turn.
type Handler struct {
	complete  llm.Completer
	converter *Converter
	retry     fn.RetryOpts
	logger    *slog.Logger
}

// NewHandler creates a Handler sharing one completion client between the
// conversation and the converter's classification fallback.
func NewHandler(complete llm.Completer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	retry := fn.DefaultRetry
	retry.ShouldRetry = llm.IsRetryable
	return &Handler{
		complete:  complete,
		converter: NewConverter(complete, logger),
		retry:     retry,
		logger:    logger,
	}
}

// Handle runs the full history through the completion collaborator. When the
// model signals readiness, the summary is converted into criteria; otherwise
// the reply carries the next message for the user.
func (h *Handler) Handle(ctx context.Context, history []Message) (*Reply, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("converse: empty history")
	}

	prompt := buildConversationPrompt(history)
	result := fn.Retry(ctx, h.retry, func(ctx context.Context) fn.Result[string] {
		return fn.FromPair(h.complete.Complete(ctx, prompt))
	})
	raw, err := result.Unwrap()
	if err != nil {
		return nil, fmt.Errorf("converse: completion: %w", err)
	}

	if r, ok := parseReadiness(raw); ok && r.ReadyToSearch && r.Summary != nil {
		criteria := h.converter.Convert(ctx, *r.Summary)
		h.logger.Info("conversation ready to search",
			"use_cases", len(criteria.UseCases), "requirements", len(criteria.Requirements))
		return &Reply{ReadyToSearch: true, Criteria: criteria}, nil
	}

	return &Reply{Message: strings.TrimSpace(raw)}, nil
}

// parseReadiness looks for the structured readiness block in the completion
// text. Plain conversational replies fail the parse, which is the normal
// mid-conversation outcome.
func parseReadiness(raw string) (readiness, bool) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(raw, "```json", ""), "```", ""))
	start := strings.IndexByte(cleaned, '{')
	end := strings.LastIndexByte(cleaned, '}')
	if start < 0 || end <= start {
		return readiness{}, false
	}
	var r readiness
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &r); err != nil {
		return readiness{}, false
	}
	return r, true
}

func buildConversationPrompt(history []Message) string {
	var b strings.Builder
	b.WriteString(`You are a vehicle-buying assistant. Your job is to understand what the user
needs from their next vehicle through a short natural conversation, then hand
off to search.

Gather, in whatever order the conversation allows:
- budget (a number, range, or vague level like "affordable")
- primary use cases (family size, towing, off-road, work)
- body type preferences, if any
- fuel type preferences, if any
- any other specific requirements

Ask at most one question per turn. Once you have budget and at least one use
case, stop asking and return ONLY this JSON, nothing else:
{
  "readyToSearch": true,
  "searchSummary": {
    "budget": "<their budget in their words>",
    "useCases": ["..."],
    "bodyTypes": ["..."],
    "fuelTypes": ["..."],
    "additionalRequirements": ["..."]
  }
}

Until then, reply with plain conversational text only.

CONVERSATION SO FAR:
`)
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(m.Role), m.Content)
	}
	b.WriteString("\nASSISTANT:")
	return b.String()
}
