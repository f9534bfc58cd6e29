// Package llm asks an OpenAI-compatible model to review submitted code.
// Reviews are advisory text only and never change a score.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/jsat/internal/llm/prompts"
	"github.com/pavelanni/jsat/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// Review holds the model's feedback on a submission.
type Review struct {
	Feedback    string   `json:"feedback"`
	Suggestions []string `json:"suggestions"`
}

// Text flattens the review into a single block for storage.
func (r Review) Text() string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(r.Feedback))
	for _, s := range r.Suggestions {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		sb.WriteString("\n- " + s)
	}
	return strings.TrimSpace(sb.String())
}

// Submission is what the reviewer sees of a finished attempt.
type Submission struct {
	Question model.Question
	Code     string
	Status   string
	Stdout   string
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api       *openai.Client
	model     string
	variant   prompts.Variant
	templates *prompts.Templates
}

// New creates a new LLM client using the embedded review prompts.
func New(baseURL, apiKey, modelName string, variant prompts.Variant) (*Client, error) {
	if !prompts.IsValidVariant(string(variant)) {
		return nil, fmt.Errorf("invalid prompt variant: %s", variant)
	}
	tmpls, err := prompts.Load(prompts.Embedded)
	if err != nil {
		return nil, err
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:       openai.NewClientWithConfig(config),
		model:     modelName,
		variant:   variant,
		templates: tmpls,
	}, nil
}

// ReviewSubmission sends the candidate's code to the model and returns its feedback.
func (c *Client) ReviewSubmission(ctx context.Context, sub Submission) (*Review, error) {
	prompt, err := c.templates.BuildReviewPrompt(c.variant, reviewData(sub))
	if err != nil {
		return nil, err
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)
	return parseReview(raw)
}

func reviewData(sub Submission) prompts.ReviewData {
	return prompts.ReviewData{
		Title:    sub.Question.Title,
		Body:     sub.Question.Body,
		Tier:     string(sub.Question.Difficulty),
		Expected: sub.Question.ExpectedAnswer,
		Status:   sub.Status,
		Stdout:   sub.Stdout,
		Code:     sub.Code,
	}
}

func parseReview(raw string) (*Review, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var r Review
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	if strings.TrimSpace(r.Feedback) == "" {
		return nil, fmt.Errorf("LLM response has no feedback (raw: %s)", raw)
	}
	return &r, nil
}
