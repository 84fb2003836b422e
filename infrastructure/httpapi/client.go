// Package httpapi implements the history and persist contracts over the REST API.
package httpapi

import (
	"adoption-chat/contract"
	"adoption-chat/domain/chat"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

var (
	_ contract.HistoryAPI = (*Client)(nil)
	_ contract.PersistAPI = (*Client)(nil)
)

type Client struct {
	log        *slog.Logger
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func NewClient(log *slog.Logger, baseURL, token string, opts ...Option) *Client {
	c := &Client{
		log:        log,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is a non-2xx answer of the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

func (c *Client) FetchMessages(ctx context.Context, conversationID chat.ConversationID) ([]chat.Message, error) {
	var payloads []chat.Payload
	if err := c.do(ctx, http.MethodGet, messagesPath(conversationID), nil, &payloads); err != nil {
		return nil, err
	}
	return lo.Map(payloads, func(p chat.Payload, _ int) chat.Message {
		return p.ToMessage()
	}), nil
}

func (c *Client) SaveMessage(ctx context.Context, message chat.Message) (chat.Message, error) {
	var stored chat.Payload
	if err := c.do(ctx, http.MethodPost, messagesPath(message.ConversationID), chat.ToPayload(message), &stored); err != nil {
		return chat.Message{}, err
	}
	return stored.ToMessage(), nil
}

func messagesPath(conversationID chat.ConversationID) string {
	return "/conversations/" + url.PathEscape(string(conversationID)) + "/messages"
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.log.Debug("API call failed", "method", method, "path", path, "status", resp.StatusCode)
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
