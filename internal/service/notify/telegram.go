// Package notify delivers formatted signal messages to humans.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"SignalFlow/internal/domain/repository"
	pkghttp "SignalFlow/pkg/http"
)

const maxTelegramText = 4096

type TelegramConfig struct {
	BaseURL  string
	BotToken string
	ChatID   string
	Timeout  time.Duration
}

// Telegram posts messages through the Bot API sendMessage method.
type Telegram struct {
	cfg    TelegramConfig
	client *pkghttp.Client
}

var _ repository.Notifier = (*Telegram)(nil)

func NewTelegram(cfg TelegramConfig, client *pkghttp.Client) *Telegram {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.telegram.org"
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = pkghttp.NewClient(pkghttp.WithTimeout(timeout), pkghttp.WithUserAgent("signalflow-notify/1.0"))
	}
	return &Telegram{cfg: cfg, client: client}
}

func (t *Telegram) Name() string { return "telegram" }

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) Send(ctx context.Context, text string) error {
	if len(text) > maxTelegramText {
		text = text[:maxTelegramText]
	}
	var resp telegramResponse
	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.cfg.BaseURL, "/"), t.cfg.BotToken)
	err := t.client.PostJSON(ctx, url, map[string]interface{}{
		"chat_id":                  t.cfg.ChatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}, &resp)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("telegram send: %s", resp.Description)
	}
	return nil
}
