package estimate

import (
	"context"
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTaskEstimate(t *testing.T) {
	t.Parallel()

	t.Run("clean JSON", func(t *testing.T) {
		t.Parallel()
		est, err := parseTaskEstimate(`{"low": 1.5, "high": 3.0, "average": 2.2, "reasoning": "accessible from above"}`)
		require.NoError(t, err)
		assert.Equal(t, 1.5, est.Low)
		assert.Equal(t, 3.0, est.High)
		assert.Equal(t, 2.2, est.Average)
		assert.Equal(t, "accessible from above", est.Reasoning)
	})

	t.Run("JSON buried in prose and fences", func(t *testing.T) {
		t.Parallel()
		raw := "Sure, here is my estimate:\n```json\n{\"low\": 2, \"high\": 4, \"average\": 3}\n```\nLet me know if you need anything else."
		est, err := parseTaskEstimate(raw)
		require.NoError(t, err)
		assert.Equal(t, 2.0, est.Low)
		assert.Equal(t, 4.0, est.High)
	})

	t.Run("string numbers tolerated", func(t *testing.T) {
		t.Parallel()
		est, err := parseTaskEstimate(`{"low": "1.5", "high": "2.5", "average": "2.0"}`)
		require.NoError(t, err)
		assert.Equal(t, 2.0, est.Average)
	})

	t.Run("missing average falls back to midpoint", func(t *testing.T) {
		t.Parallel()
		est, err := parseTaskEstimate(`{"low": 2, "high": 4}`)
		require.NoError(t, err)
		assert.Equal(t, 3.0, est.Average)
	})

	t.Run("unusable responses wrap ErrUnparseable", func(t *testing.T) {
		t.Parallel()
		for _, raw := range []string{
			"I cannot estimate this task.",
			`{"high": 4}`,
			`{"low": "soon", "high": 4}`,
			`{"low": 4, "high": 2, "average": 3}`,
			`{"low": 0, "high": 0, "average": 0}`,
			"{broken json",
		} {
			_, err := parseTaskEstimate(raw)
			require.Error(t, err, "raw: %s", raw)
			assert.ErrorIs(t, err, ErrUnparseable, "raw: %s", raw)
		}
	})
}

func TestReasoningCapability(t *testing.T) {
	t.Parallel()

	t.Run("prompts with the task and parses the answer", func(t *testing.T) {
		t.Parallel()
		var seenPrompt string
		llm := CompleterFunc(func(_ context.Context, prompt string) (string, error) {
			seenPrompt = prompt
			return `{"low": 1.0, "high": 2.0, "average": 1.5, "reasoning": "straightforward swap"}`, nil
		})

		cap := NewReasoningCapability("foreman_llm", llm)
		est, err := cap.EstimateTask(context.Background(), "replace alternator on 2014 Camry")
		require.NoError(t, err)

		assert.Equal(t, "foreman_llm", cap.Name())
		assert.Equal(t, 1.5, est.Average)
		assert.Contains(t, seenPrompt, "Task: replace alternator on 2014 Camry")
		assert.Contains(t, seenPrompt, "JSON object")
	})

	t.Run("transport errors pass through", func(t *testing.T) {
		t.Parallel()
		llm := CompleterFunc(func(context.Context, string) (string, error) {
			return "", eris.New("connection refused")
		})

		_, err := NewReasoningCapability("foreman_llm", llm).EstimateTask(context.Background(), "job")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrUnparseable), "transport failure is not a parse failure")
	})
}
