package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"
)

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

type Message struct {
	Role    string        `json:"role"`
	Content []ContentItem `json:"content"`
}

type ContentItem struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// VerificationResult is the verdict of the photo/category relevance check.
// Cautioned is set when the upstream call failed and the check passed by
// default instead of by evidence.
type VerificationResult struct {
	Matches   bool   `json:"matches"`
	Cautioned bool   `json:"cautioned"`
	Reason    string `json:"reason,omitempty"`
}

// ErrRateLimited is returned when the API answers 429.
var ErrRateLimited = fmt.Errorf("openai rate limited")

// Client is an OpenAI chat-completions API client. All uses are advisory;
// callers degrade gracefully on failure.
type Client struct {
	apiKey string
	model  string
	client *http.Client
}

func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// SuggestRejectionReason proposes a short rejection reason for a reviewer.
func (c *Client) SuggestRejectionReason(title, description, category string) (string, error) {
	prompt := fmt.Sprintf(`A municipal reviewer is rejecting a civic issue report.
Title: %s
Category: %s
Description: %s

Suggest a short, polite, one-sentence rejection reason. Output only the sentence.`,
		title, category, description)
	return c.complete(prompt)
}

// SummarizeDescription condenses a long report description.
func (c *Client) SummarizeDescription(description string) (string, error) {
	prompt := fmt.Sprintf(`Summarize this civic issue report description in at most two sentences:

%s`, description)
	return c.complete(prompt)
}

// VerifyImageCategory checks whether the report photo plausibly shows an
// issue of the given category. A rate-limited or failed call is deliberately
// swallowed by the caller and treated as an automatic pass with a caution
// flag.
func (c *Client) VerifyImageCategory(imageURL, category string) (*VerificationResult, error) {
	prompt := fmt.Sprintf(`Does this photo plausibly show a civic issue of category %q?
Output JSON only:
{"matches": true|false, "reason": "<one sentence>"}`, category)

	reqBody := ChatRequest{
		Model: c.model,
		Messages: []Message{
			{
				Role: "user",
				Content: []ContentItem{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
				},
			},
		},
	}
	content, err := c.send(reqBody)
	if err != nil {
		return nil, err
	}

	result := &VerificationResult{}
	if err := json.Unmarshal([]byte(extractJSON(content)), result); err != nil {
		return nil, fmt.Errorf("failed to parse verification response: %w", err)
	}
	return result, nil
}

func (c *Client) complete(prompt string) (string, error) {
	reqBody := ChatRequest{
		Model: c.model,
		Messages: []Message{
			{
				Role:    "user",
				Content: []ContentItem{{Type: "text", Text: prompt}},
			},
		},
	}
	return c.send(reqBody)
}

func (c *Client) send(reqBody ChatRequest) (string, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", openAIEndpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call OpenAI: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		log.Errorf("OpenAI API error %d: %s", resp.StatusCode, string(body))
		return "", fmt.Errorf("openai API returned %d", resp.StatusCode)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

// extractJSON strips markdown code fences the model sometimes wraps around
// JSON output.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
