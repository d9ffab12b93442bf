package notify

import (
	"context"
	"fmt"
	"net/http"
)

// TelegramSender pushes trade alerts through the Telegram Bot API's
// sendMessage endpoint.
type TelegramSender struct {
	token  string
	chatID string
	client *http.Client
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// NewTelegramSender creates a sender that alerts the given chat.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: senderTimeout},
	}
}

// Send delivers one alert: bold title line, detail below. Mint addresses and
// tx refs contain no Markdown metacharacters, so plain Markdown parse mode
// is safe here where MarkdownV2's escaping rules would not be.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	url := "https://api.telegram.org/bot" + t.token + "/sendMessage"
	payload := telegramMessage{
		ChatID:    t.chatID,
		Text:      fmt.Sprintf("*%s*\n%s", title, message),
		ParseMode: "Markdown",
	}
	return postJSON(ctx, t.client, "telegram", url, payload)
}

func (t *TelegramSender) Name() string { return "telegram" }
