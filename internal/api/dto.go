package api

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"github.com/samcharles93/castor/internal/session"
)

// GenerateRequest is the wire form of a generation request. Sampling fields
// are pointers so "not set" falls through to the session defaults.
type GenerateRequest struct {
	Prompt        string   `json:"prompt"`
	System        string   `json:"system,omitempty"`
	MaxTokens     int      `json:"max_tokens,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	TopK          *int     `json:"top_k,omitempty"`
	MinP          *float64 `json:"min_p,omitempty"`
	RepeatPenalty *float64 `json:"repeat_penalty,omitempty"`
	Seed          *int64   `json:"seed,omitempty"`
	Stream        bool     `json:"stream,omitempty"`
}

func (r GenerateRequest) toSession() session.Request {
	req := session.Request{
		Prompt:    r.Prompt,
		System:    r.System,
		MaxTokens: r.MaxTokens,
		Seed:      -1,
	}
	if r.Temperature != nil {
		req.Temperature = *r.Temperature
	}
	if r.TopP != nil {
		req.TopP = *r.TopP
	}
	if r.TopK != nil {
		req.TopK = *r.TopK
	}
	if r.MinP != nil {
		req.MinP = *r.MinP
	}
	if r.RepeatPenalty != nil {
		req.RepeatPenalty = *r.RepeatPenalty
	}
	if r.Seed != nil {
		req.Seed = *r.Seed
	}
	return req
}

type GenerateResponse struct {
	ID              string `json:"id"`
	Object          string `json:"object"`
	Text            string `json:"text"`
	StopReason      string `json:"stop_reason"`
	TokensGenerated int    `json:"tokens_generated"`
	DurationMS      int64  `json:"duration_ms"`
}

func toGenerateResponse(id string, res *session.Result) GenerateResponse {
	return GenerateResponse{
		ID:              id,
		Object:          "generation",
		Text:            res.Text,
		StopReason:      string(res.StopReason),
		TokensGenerated: res.Stats.TokensGenerated,
		DurationMS:      res.Stats.Duration.Milliseconds(),
	}
}

type TokenizeRequest struct {
	Text string `json:"text"`
}

type TokenizeResponse struct {
	Tokens []int32 `json:"tokens"`
	Count  int     `json:"count"`
}

type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func decodeJSON[T any](r io.Reader) (*T, error) {
	var v T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode request body: %w", err)
	}
	return &v, nil
}
