package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"aptos-copytrade/internal/domain"
)

// DefaultTelegramURL is the Bot API endpoint.
const DefaultTelegramURL = "https://api.telegram.org"

// Telegram sends event messages to the follower's chat. The follower id is the chat id.
type Telegram struct {
	http  *resty.Client
	token string
}

// TelegramOption configures Telegram.
type TelegramOption func(*Telegram)

// WithTelegramURL overrides the Bot API base URL.
func WithTelegramURL(url string) TelegramOption {
	return func(t *Telegram) {
		t.http.SetBaseURL(strings.TrimSuffix(url, "/"))
	}
}

// NewTelegram creates a Telegram notifier for bot token.
func NewTelegram(token string, opts ...TelegramOption) *Telegram {
	t := &Telegram{
		http: resty.New().
			SetBaseURL(DefaultTelegramURL).
			SetTimeout(10 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond),
		token: token,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ Notifier = (*Telegram)(nil)

// Name implements Named.
func (t *Telegram) Name() string { return "telegram" }

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type botResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify sends the rendered event to the follower.
func (t *Telegram) Notify(ctx context.Context, event domain.Event) error {
	text := FormatTelegram(event)
	if text == "" {
		return nil
	}

	var out botResponse
	resp, err := t.http.R().
		SetContext(ctx).
		SetBody(sendMessageRequest{
			ChatID:    event.Meta().FollowerID,
			Text:      text,
			ParseMode: "HTML",
		}).
		SetResult(&out).
		SetError(&out).
		Post("/bot" + t.token + "/sendMessage")
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	if resp.IsError() || !out.OK {
		return fmt.Errorf("telegram sendMessage: status %d: %s", resp.StatusCode(), out.Description)
	}
	return nil
}

// FormatTelegram renders event as an HTML message. Unknown events render empty.
func FormatTelegram(event domain.Event) string {
	switch e := event.(type) {
	case domain.TradeDetected:
		return "🔄 <b>New Trade Detected!</b>\n\n" +
			"📋 <b>Master Wallet:</b> <code>" + html.EscapeString(domain.ShortAddress(e.MasterAddress)) + "</code>\n" +
			fmt.Sprintf("🔗 <b>Transaction:</b> <code>%d</code>\n\n", e.Version) +
			"⏳ Executing copy trade..."

	case domain.TradeExecuted:
		amount := e.Amount
		if e.AmountHuman != "" {
			amount = e.AmountHuman
		}
		return "✅ <b>Copy Trade Executed!</b>\n\n" +
			"🔄 <b>Trade Details:</b>\n" +
			"📤 <b>From:</b> " + html.EscapeString(domain.AssetName(e.InputAsset)) + "\n" +
			"📥 <b>To:</b> " + html.EscapeString(domain.AssetName(e.OutputAsset)) + "\n" +
			"💰 <b>Amount:</b> " + html.EscapeString(amount) + "\n" +
			"🔗 <b>Tx:</b> <code>" + html.EscapeString(e.TxHash) + "</code>\n\n" +
			"Your wallet has successfully copied the trade!"

	case domain.TradeFailed:
		if e.Terminal {
			return "🛑 <b>Copy Trading Stopped</b>\n\n" +
				"📋 <b>Master Wallet:</b> <code>" + html.EscapeString(domain.ShortAddress(e.MasterAddress)) + "</code>\n" +
				"Error: " + html.EscapeString(e.Reason) + "\n\n" +
				"Please check your default wallet and start copy trading again."
		}
		return "❌ <b>Copy Trade Failed</b>\n\n" +
			"Error: " + html.EscapeString(e.Reason) + "\n\n" +
			"Please check your wallet balance and try again."
	}
	return ""
}
