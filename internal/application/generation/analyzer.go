package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Analysis is the structured description of one item photo.
type Analysis struct {
	Brand          string     `json:"brand"`
	Category       string     `json:"category"`
	Condition      string     `json:"condition"`
	Size           string     `json:"size"`
	Color          string     `json:"color"`
	Model          string     `json:"model"`
	Description    string     `json:"description"`
	SuggestedTitle string     `json:"suggestedTitle"`
	SuggestedPrice float64    `json:"suggestedPrice"`
	PriceRange     PriceRange `json:"priceRange"`
	Confidence     float64    `json:"confidence"`
	KeyFeatures    []string   `json:"keyFeatures"`
}

type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Analyzer turns a photo URL into an Analysis.
type Analyzer interface {
	Analyze(ctx context.Context, imageURL string) (*Analysis, error)
}

var ErrEmptyAnalysis = errors.New("AI returned an empty analysis")

const analysisPrompt = `You are a resale listing assistant. Look at the item in the photo and answer with one JSON object with these keys:
brand, category, condition (one of: new, like_new, good, fair, poor), size, color, model, description,
suggestedTitle (max 80 characters), suggestedPrice (USD number), priceRange ({"min": number, "max": number}),
confidence (0 to 1), keyFeatures (array of short strings). Use empty strings when unsure.`

// OpenAIAnalyzer calls the chat completions API with the photo as image input.
type OpenAIAnalyzer struct {
	APIKey  string
	Model   string
	BaseURL string
	HTTP    *http.Client
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
	MaxTokens      int               `json:"max_tokens"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []chatContent `json:"content"`
}

type chatContent struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, imageURL string) (*Analysis, error) {
	if a.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}
	client := a.HTTP
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	body, err := json.Marshal(chatRequest{
		Model: a.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatContent{
				{Type: "text", Text: analysisPrompt},
				{Type: "image_url", ImageURL: &imageRef{URL: imageURL}},
			},
		}},
		ResponseFormat: map[string]string{"type": "json_object"},
		MaxTokens:      800,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(a.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis request: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("analysis response: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != nil && out.Error.Message != "" {
			return nil, fmt.Errorf("analysis failed: %s", out.Error.Message)
		}
		return nil, fmt.Errorf("analysis failed: status %d", resp.StatusCode)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyAnalysis
	}
	var an Analysis
	if err := json.Unmarshal([]byte(out.Choices[0].Message.Content), &an); err != nil {
		return nil, fmt.Errorf("analysis is not valid JSON: %w", err)
	}
	return &an, nil
}
