package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/aide/internal/domain/model"
	"github.com/ericfisherdev/aide/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.MailClient     = (*Client)(nil)
	_ driven.CalendarClient = (*Client)(nil)
)

// graphTimeLayout is the provider's datetime rendering: fractional seconds,
// no zone designator, UTC implied by the Prefer header we send.
const graphTimeLayout = "2006-01-02T15:04:05.9999999"

// Client implements the MailClient and CalendarClient ports against a
// Microsoft Graph style REST API. Responses are cached through an
// ETag-aware transport so unchanged list calls cost a 304.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the given API base URL, e.g.
// "https://graph.microsoft.com/v1.0".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Timeout:   30 * time.Second,
		},
	}
}

// NewClientWithHTTPClient creates a Client with a caller-supplied
// http.Client. Intended for tests injecting an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{baseURL: baseURL, http: httpClient}
}

type mailAddress struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type messageResource struct {
	ID               string      `json:"id"`
	From             mailAddress `json:"from"`
	Subject          string      `json:"subject"`
	BodyPreview      string      `json:"bodyPreview"`
	ReceivedDateTime time.Time   `json:"receivedDateTime"`
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type eventResource struct {
	ID        string        `json:"id"`
	Subject   string        `json:"subject"`
	Organizer mailAddress   `json:"organizer"`
	Attendees []mailAddress `json:"attendees"`
	Start     eventTime     `json:"start"`
	End       eventTime     `json:"end"`
}

type listResponse[T any] struct {
	Value []T `json:"value"`
}

// ListUnread returns unread messages received at or after since, newest
// first.
func (c *Client) ListUnread(ctx context.Context, accessSecret string, since time.Time) ([]model.Message, error) {
	q := url.Values{
		"$filter":  {fmt.Sprintf("isRead eq false and receivedDateTime ge %s", since.UTC().Format(time.RFC3339))},
		"$orderby": {"receivedDateTime desc"},
		"$top":     {"50"},
	}
	endpoint := fmt.Sprintf("%s/me/messages?%s", c.baseURL, q.Encode())

	var out listResponse[messageResource]
	if err := c.doJSON(ctx, http.MethodGet, endpoint, accessSecret, nil, &out); err != nil {
		return nil, fmt.Errorf("listing unread messages: %w", err)
	}

	msgs := make([]model.Message, 0, len(out.Value))
	for _, m := range out.Value {
		msgs = append(msgs, model.Message{
			ID:         m.ID,
			From:       m.From.EmailAddress.Address,
			Subject:    m.Subject,
			Preview:    m.BodyPreview,
			ReceivedAt: m.ReceivedDateTime,
		})
	}
	return msgs, nil
}

// MoveToFolder files a message into the named folder.
func (c *Client) MoveToFolder(ctx context.Context, accessSecret, messageID, folder string) error {
	endpoint := fmt.Sprintf("%s/me/messages/%s/move", c.baseURL, url.PathEscape(messageID))
	body := map[string]string{"destinationId": folder}

	if err := c.doJSON(ctx, http.MethodPost, endpoint, accessSecret, body, nil); err != nil {
		return fmt.Errorf("moving message %s: %w", messageID, err)
	}
	return nil
}

// CreateReplyDraft creates a provider-side reply draft on a message. The
// draft stays in the drafts folder for human review; nothing is sent.
func (c *Client) CreateReplyDraft(ctx context.Context, accessSecret, messageID, body string) error {
	endpoint := fmt.Sprintf("%s/me/messages/%s/createReply", c.baseURL, url.PathEscape(messageID))
	payload := map[string]string{"comment": body}

	if err := c.doJSON(ctx, http.MethodPost, endpoint, accessSecret, payload, nil); err != nil {
		return fmt.Errorf("creating reply draft for %s: %w", messageID, err)
	}
	return nil
}

// ListUpcoming returns events starting within the window from now.
func (c *Client) ListUpcoming(ctx context.Context, accessSecret string, window time.Duration) ([]model.Event, error) {
	now := time.Now().UTC()
	q := url.Values{
		"startDateTime": {now.Format(time.RFC3339)},
		"endDateTime":   {now.Add(window).Format(time.RFC3339)},
		"$orderby":      {"start/dateTime"},
	}
	endpoint := fmt.Sprintf("%s/me/calendarView?%s", c.baseURL, q.Encode())

	var out listResponse[eventResource]
	if err := c.doJSON(ctx, http.MethodGet, endpoint, accessSecret, nil, &out); err != nil {
		return nil, fmt.Errorf("listing upcoming events: %w", err)
	}

	events := make([]model.Event, 0, len(out.Value))
	for _, e := range out.Value {
		attendees := make([]string, 0, len(e.Attendees))
		for _, a := range e.Attendees {
			attendees = append(attendees, a.EmailAddress.Address)
		}
		events = append(events, model.Event{
			ID:        e.ID,
			Subject:   e.Subject,
			Organizer: e.Organizer.EmailAddress.Address,
			Attendees: attendees,
			Start:     parseEventTime(e.Start),
			End:       parseEventTime(e.End),
		})
	}
	return events, nil
}

// parseEventTime handles both the provider's zone-less rendering and plain
// RFC3339. An unparseable value yields the zero time rather than an error;
// event times are display data, not control flow.
func parseEventTime(et eventTime) time.Time {
	if t, err := time.Parse(graphTimeLayout, et.DateTime); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, et.DateTime); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

// doJSON performs one authenticated JSON round trip. A non-nil in is sent
// as the request body; a non-nil out receives the decoded response.
func (c *Client) doJSON(ctx context.Context, method, endpoint, accessSecret string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessSecret)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
