// Package telegram implements the alert channel on top of the Telegram
// Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://api.telegram.org"

// Channel sends alert messages to a preconfigured chat through a bot.
// The token is held privately and never logged.
type Channel struct {
	client *resty.Client
	token  string
	chatID int64
}

type Option func(*Channel)

// WithBaseURL overrides the API endpoint; used in tests.
func WithBaseURL(url string) Option {
	return func(c *Channel) {
		c.client.SetBaseURL(url)
	}
}

func New(token string, chatID int64, timeout time.Duration, opts ...Option) *Channel {
	c := &Channel{
		client: resty.New().
			SetBaseURL(defaultBaseURL).
			SetTimeout(timeout),
		token:  token,
		chatID: chatID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sendResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts one message to the configured chat. A single attempt:
// retry policy belongs to the caller.
func (c *Channel) Send(ctx context.Context, message string) error {
	var body sendResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": strconv.FormatInt(c.chatID, 10),
			"text":    message,
		}).
		SetResult(&body).
		Post(fmt.Sprintf("/bot%s/sendMessage", c.token))
	if err != nil {
		return fmt.Errorf("telegram: send message: %w", c.redact(err))
	}
	if resp.IsError() {
		return fmt.Errorf("telegram: send message: status %s", resp.Status())
	}
	if !body.OK {
		return fmt.Errorf("telegram: send message rejected: %s", body.Description)
	}
	return nil
}

// redact strips the bot token from transport error text. Transport
// errors carry the full request URL, which embeds the token, and the
// callers log what Send returns.
func (c *Channel) redact(err error) error {
	return errors.New(strings.ReplaceAll(err.Error(), c.token, "***"))
}
