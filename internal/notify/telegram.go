package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const telegramAPIURL = "https://api.telegram.org"

// Telegram sends payloads through the Telegram Bot API as MarkdownV2
// messages.
type Telegram struct {
	token  string
	chatID string
	logger *zap.Logger

	// Overridable in tests.
	APIURL     string
	HTTPClient *http.Client
}

func NewTelegram(token, chatID string, logger *zap.Logger) *Telegram {
	return &Telegram{
		token:  token,
		chatID: chatID,
		logger: logger,
		APIURL: telegramAPIURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (t *Telegram) Send(ctx context.Context, p *Payload) error {
	text := p.Body
	if p.Subject != "" {
		text = p.Subject + "\n\n" + p.Body
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:    t.chatID,
		Text:      EscapeMarkdownV2(text),
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.APIURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("post to telegram: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &apiError{status: resp.StatusCode}
	}

	t.logger.Info("telegram message sent",
		zap.String("kind", string(p.Kind)),
		zap.String("subject", p.Subject),
	)
	return nil
}

// EscapeMarkdownV2 escapes the characters Telegram's MarkdownV2 parse mode
// requires to be escaped.
func EscapeMarkdownV2(s string) string {
	const special = `_*[]()~` + "`" + `>#+-=|{}.!`
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
