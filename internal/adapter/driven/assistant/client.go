// Package assistant implements the Classifier and BriefWriter ports
// against a chat-completions style language model API.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ericfisherdev/aide/internal/domain/model"
	"github.com/ericfisherdev/aide/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.Classifier  = (*Client)(nil)
	_ driven.BriefWriter = (*Client)(nil)
)

const classifyInstruction = `You triage email. Reply with a single JSON object and nothing else:
{"category": "<one word>", "needs_reply": <true|false>, "folder": "<destination folder or empty string>"}`

// Client calls a chat-completions endpoint for classification and text
// generation.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewClient creates a Client. baseURL is the API root, e.g.
// "https://api.openai.com/v1".
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Classify asks the model for a triage verdict on one message. A response
// that is not the expected JSON shape is an error; the caller decides
// whether to stop the pass.
func (c *Client) Classify(ctx context.Context, msg model.Message) (*model.Classification, error) {
	user := fmt.Sprintf("From: %s\nSubject: %s\n\n%s", msg.From, msg.Subject, msg.Preview)
	raw, err := c.complete(ctx, classifyInstruction, user)
	if err != nil {
		return nil, fmt.Errorf("classifying message %s: %w", msg.ID, err)
	}

	var verdict struct {
		Category   string `json:"category"`
		NeedsReply bool   `json:"needs_reply"`
		Folder     string `json:"folder"`
	}
	// Models sometimes wrap JSON in a code fence; strip it before decoding.
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(cleaned)), &verdict); err != nil {
		return nil, fmt.Errorf("unparseable verdict for message %s: %w", msg.ID, err)
	}

	return &model.Classification{
		Category:   verdict.Category,
		NeedsReply: verdict.NeedsReply,
		Folder:     verdict.Folder,
	}, nil
}

// WriteBrief generates a short preparation brief for one meeting.
func (c *Client) WriteBrief(ctx context.Context, event model.Event) (string, error) {
	user := fmt.Sprintf("Meeting: %s\nOrganizer: %s\nAttendees: %s\nStarts: %s",
		event.Subject, event.Organizer, strings.Join(event.Attendees, ", "),
		event.Start.Format(time.RFC1123))

	brief, err := c.complete(ctx, "Write a three-sentence preparation brief for this meeting.", user)
	if err != nil {
		return "", fmt.Errorf("writing brief for event %s: %w", event.ID, err)
	}
	return brief, nil
}

// WriteDigest generates a single summary across a batch of messages.
func (c *Client) WriteDigest(ctx context.Context, msgs []model.Message) (string, error) {
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "- From %s: %s\n", m.From, m.Subject)
	}

	digest, err := c.complete(ctx, "Summarize this mailbox activity in one short paragraph.", b.String())
	if err != nil {
		return "", fmt.Errorf("writing digest: %w", err)
	}
	return digest, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("response contained no choices")
	}
	return out.Choices[0].Message.Content, nil
}
