package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

const defaultEndpoint = "https://api.line.me"

// Client calls the Messaging API with a channel access token.
type Client struct {
	http     *http.Client
	endpoint string
	token    string
}

// NewClient creates a Client for the given channel access token.
func NewClient(token string) *Client {
	return &Client{
		http:     &http.Client{Timeout: 10 * time.Second},
		endpoint: defaultEndpoint,
		token:    token,
	}
}

// NewClientWithEndpoint overrides the API base URL, for tests.
func NewClientWithEndpoint(token, endpoint string) *Client {
	c := NewClient(token)
	c.endpoint = endpoint
	return c
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Reply sends one text message against a reply token. Reply tokens are
// single-use and expire quickly, so failures are reported, not retried.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	payload := map[string]interface{}{
		"replyToken": replyToken,
		"messages":   []textMessage{{Type: "text", Text: text}},
	}
	return c.post(ctx, "/v2/bot/message/reply", payload)
}

// Push sends one text message to a group, room, or user id without a
// reply token. Used by the reminder trigger.
func (c *Client) Push(ctx context.Context, to, text string) error {
	payload := map[string]interface{}{
		"to":       to,
		"messages": []textMessage{{Type: "text", Text: text}},
	}
	return c.post(ctx, "/v2/bot/message/push", payload)
}

// GroupMemberName looks up a member's display name within a group.
// Returns "" when the profile is not retrievable (the member left, or
// the bot lacks the group).
func (c *Client) GroupMemberName(ctx context.Context, groupID, userID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v2/bot/group/%s/member/%s", c.endpoint, groupID, userID), nil)
	if err != nil {
		return "", fmt.Errorf("building profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching member profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("profile request failed: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("reading profile response: %w", err)
	}
	return gjson.GetBytes(body, "displayName").String(), nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding message payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<12))
		return fmt.Errorf("message request failed: %s: %s", resp.Status, detail)
	}
	return nil
}
