package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultBaseURL = "https://api.telegram.org"

	// Server-side long-poll wait; the client timeout below must stay
	// longer so the request is not cut off mid-poll.
	longPollTimeout = 20
	requestTimeout  = 30 * time.Second
)

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	Text string `json:"text"`
	Chat Chat   `json:"chat"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type apiResponse struct {
	OK          bool     `json:"ok"`
	Description string   `json:"description,omitempty"`
	Result      []Update `json:"result,omitempty"`
}

// API is the remote surface the poller depends on. The token is an
// argument rather than client state because the operator can change it
// at runtime through the settings page.
type API interface {
	GetUpdates(ctx context.Context, token string, offset int64) ([]Update, error)
	SendMessage(ctx context.Context, token string, chatID int64, text string) error
}

// Client talks to the Telegram Bot API over plain HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

func (c *Client) endpoint(token, method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, token, method)
}

// GetUpdates long-polls for message updates at the given offset. Any
// transport failure, malformed body, or non-ok response is an error;
// the caller must not advance its cursor in that case.
func (c *Client) GetUpdates(ctx context.Context, token string, offset int64) ([]Update, error) {
	values := url.Values{}
	values.Set("timeout", strconv.Itoa(longPollTimeout))
	values.Set("offset", strconv.FormatInt(offset, 10))
	values.Set("allowed_updates", `["message"]`)

	endpoint := c.endpoint(token, "getUpdates") + "?" + values.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build getUpdates request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram getUpdates: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read getUpdates response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram getUpdates returned %d: %s", resp.StatusCode, string(body))
	}

	var payload apiResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode getUpdates response: %w", err)
	}
	if !payload.OK {
		return nil, fmt.Errorf("telegram getUpdates api error: %s", payload.Description)
	}
	return payload.Result, nil
}

// SendMessage delivers a text notification. Callers are permitted to
// ignore the returned error: delivery is best effort and never retried.
func (c *Client) SendMessage(ctx context.Context, token string, chatID int64, text string) error {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	raw, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(token, "sendMessage"), bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read sendMessage response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram sendMessage returned %d: %s", resp.StatusCode, string(body))
	}

	var payloadResp apiResponse
	if err := json.Unmarshal(body, &payloadResp); err != nil {
		return fmt.Errorf("decode sendMessage response: %w", err)
	}
	if !payloadResp.OK {
		return fmt.Errorf("telegram sendMessage api error: %s", payloadResp.Description)
	}
	return nil
}
