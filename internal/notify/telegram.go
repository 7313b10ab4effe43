// Package notify delivers fire-and-forget diagnostic messages. Delivery
// failures are logged and swallowed; they never affect the caller's outcome.
package notify

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const defaultAPIURL = "https://api.telegram.org"

// Telegram posts diagnostic messages to a Telegram channel via the bot API.
type Telegram struct {
	token      string
	channel    string
	apiURL     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewTelegram creates a Telegram notifier for the given bot token and channel
// name (without the leading @).
func NewTelegram(token, channel string, logger *zap.Logger) *Telegram {
	return &Telegram{
		token:   token,
		channel: channel,
		apiURL:  defaultAPIURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Send delivers the message to the configured channel. Errors are logged and
// swallowed.
func (t *Telegram) Send(ctx context.Context, message string) {
	endpoint := t.apiURL + "/bot" + t.token + "/sendMessage"

	params := url.Values{}
	params.Set("chat_id", "@"+t.channel)
	params.Set("text", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		t.logger.Warn("building telegram request", zap.Error(err))
		return
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.Warn("sending telegram message", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		t.logger.Warn("telegram rejected message",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", body),
		)
	}
}

// Nop is the notifier used when notifications are disabled.
type Nop struct{}

// Send discards the message.
func (Nop) Send(context.Context, string) {}
