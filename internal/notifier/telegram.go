package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"WatchSentinel/internal/logger"
	"WatchSentinel/internal/model"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier sends messages via the Telegram Bot API. It serves the
// desktop channel.
type TelegramNotifier struct {
	BaseURL    string
	BotToken   string
	ChatID     string
	Client     *http.Client
	MaxRetries int
	log        *logrus.Entry
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string) *TelegramNotifier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramNotifier{
		BaseURL:    telegramAPI,
		BotToken:   botToken,
		ChatID:     chatID,
		MaxRetries: 3,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		log: logger.Get().WithComponent("telegram"),
	}
}

// Notify implements Sink.
func (t *TelegramNotifier) Notify(ctx context.Context, _ model.Channel, p Payload) error {
	text := fmt.Sprintf("🔔 <b>%s</b> %s\n%s", html.EscapeString(p.Name), html.EscapeString(p.Code), html.EscapeString(p.Message))
	return t.SendWithRetry(ctx, text, t.MaxRetries)
}

// Send sends a message to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.BaseURL, t.BotToken)
	payload := map[string]string{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// SendWithRetry sends a message with exponential backoff retry.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := t.Send(ctx, text)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == maxRetries {
			break
		}
		backoff := time.Duration(1<<uint(i)) * time.Second
		t.log.WithError(err).Warnf("send failed (attempt %d/%d), retrying in %v", i+1, maxRetries+1, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d attempts exhausted: %w", maxRetries+1, lastErr)
}
