package estimate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/torqueline/estimator/internal/model"
)

// estimatePrompt frames the task for a reasoning engine and pins the
// response shape so parsing stays mechanical.
const estimatePrompt = `You are an experienced auto repair shop foreman estimating labor time.
Estimate the hands-on labor hours for the task below, assuming a competent
technician with standard shop tooling. Account for access, fasteners, and
fluid work, not parts availability.

Respond with only a JSON object, no prose:
{"low": <hours>, "high": <hours>, "average": <hours>, "reasoning": "<one short sentence>"}`

// TextCompleter is the slice of an LLM client the reasoning capability
// needs: one prompt in, raw text out.
type TextCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to the TextCompleter interface.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ReasoningCapability asks a reasoning engine for a labor estimate and
// parses its JSON answer.
type ReasoningCapability struct {
	name string
	llm  TextCompleter
}

// NewReasoningCapability wraps an LLM client as an estimation
// capability under the given source name.
func NewReasoningCapability(name string, llm TextCompleter) *ReasoningCapability {
	return &ReasoningCapability{name: name, llm: llm}
}

// Name returns the source name the capability reports under.
func (r *ReasoningCapability) Name() string { return r.name }

// EstimateTask prompts the engine and parses the response. Responses
// without a usable estimate wrap ErrUnparseable.
func (r *ReasoningCapability) EstimateTask(ctx context.Context, description string) (model.TaskEstimate, error) {
	raw, err := r.llm.Complete(ctx, fmt.Sprintf("%s\n\nTask: %s", estimatePrompt, description))
	if err != nil {
		return model.TaskEstimate{}, eris.Wrapf(err, "estimate: %s call", r.name)
	}
	return parseTaskEstimate(raw)
}

// parseTaskEstimate pulls the first JSON object out of engine output,
// tolerating prose and code fences around it.
func parseTaskEstimate(raw string) (model.TaskEstimate, error) {
	cleaned := extractJSONObject(raw)
	if cleaned == "" {
		return model.TaskEstimate{}, eris.Wrap(ErrUnparseable, "no JSON object in response")
	}

	var payload struct {
		Low       any    `json:"low"`
		High      any    `json:"high"`
		Average   any    `json:"average"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return model.TaskEstimate{}, eris.Wrap(ErrUnparseable, "malformed JSON in response")
	}

	low, okLow := toFloat64(payload.Low)
	high, okHigh := toFloat64(payload.High)
	if !okLow || !okHigh {
		return model.TaskEstimate{}, eris.Wrap(ErrUnparseable, "estimate bounds missing")
	}
	avg, okAvg := toFloat64(payload.Average)
	if !okAvg {
		avg = (low + high) / 2
	}

	est := model.TaskEstimate{Low: low, High: high, Average: avg, Reasoning: payload.Reasoning}
	if !est.WellFormed() {
		return model.TaskEstimate{}, eris.Wrap(ErrUnparseable, "estimate bounds implausible")
	}
	return est, nil
}

// extractJSONObject returns the outermost brace-delimited span of
// text, or "" if there is none.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// toFloat64 coerces the loosely typed numbers engines emit.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
