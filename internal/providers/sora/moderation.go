package sora

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// ModerationResult is the normalized outcome of a content-policy check.
type ModerationResult struct {
	Allowed    bool
	Flagged    bool
	Categories map[string]bool
}

type moderationResponse struct {
	Results []struct {
		Flagged    bool            `json:"flagged"`
		Categories map[string]bool `json:"categories"`
	} `json:"results"`
}

// Moderate runs the prompt through the moderation endpoint. Moderation is
// optional: without a configured moderation model the prompt is allowed
// without a network call, and a transport failure is logged but treated as
// allowed rather than blocking submission.
func (c *Client) Moderate(ctx context.Context, text string) (*ModerationResult, error) {
	if c.moderationModel == "" {
		return &ModerationResult{Allowed: true}, nil
	}
	payload := map[string]any{
		"model": c.moderationModel,
		"input": text,
	}
	raw, err := c.do(ctx, http.MethodPost, "/moderations", payload)
	if err != nil {
		c.logger.Warn().Err(err).Msg("sora: moderation check failed, allowing prompt")
		return &ModerationResult{Allowed: true}, nil
	}
	var decoded moderationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("sora: decode moderation response: %w", err)
	}
	if len(decoded.Results) == 0 {
		return &ModerationResult{Allowed: true}, nil
	}
	result := decoded.Results[0]
	return &ModerationResult{
		Allowed:    !result.Flagged,
		Flagged:    result.Flagged,
		Categories: result.Categories,
	}, nil
}
