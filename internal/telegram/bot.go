package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/Stugi/resto-worker/internal/config"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// messageLimit stays under the platform's 4096-character cap so a chunk
// header never pushes a message over it.
const messageLimit = 4000

const downloadTimeout = 60 * time.Second

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

type Bot struct {
	api  *tgbotapi.BotAPI
	log  *zap.Logger
	http *http.Client
}

func New(p Params) (Transport, error) {
	api, err := tgbotapi.NewBotAPI(p.Config.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	p.Log.Named("telegram").Info("bot authorized", zap.String("username", api.Self.UserName))
	return &Bot{
		api:  api,
		log:  p.Log.Named("telegram"),
		http: &http.Client{Timeout: downloadTimeout},
	}, nil
}

func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range splitMessage(text, messageLimit) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		if _, err := b.api.Send(msg); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

func (b *Bot) SendTextWithKeyboard(ctx context.Context, chatID int64, text string, rows [][]Button) error {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		kbRow := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			kbRow = append(kbRow, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
		}
		kbRows = append(kbRows, kbRow)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send keyboard message: %w", err)
	}
	return nil
}

func (b *Bot) RequestContact(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact("Поделиться номером")),
	)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	msg.ReplyMarkup = kb
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("request contact: %w", err)
	}
	return nil
}

func (b *Bot) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(cb); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

func (b *Bot) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	del := tgbotapi.NewDeleteMessage(chatID, messageID)
	if _, err := b.api.Request(del); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (b *Bot) DownloadFile(ctx context.Context, fileID string) ([]byte, string, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, "", fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	return data, path.Base(file.FilePath), nil
}

// splitMessage cuts text into chunks of at most limit runes, preferring
// newline boundaries so reports break between sections.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= limit {
			chunks = append(chunks, string(runes))
			break
		}
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return chunks
}

// NormalizeChatID maps a plain group id to its supergroup form. Telegram
// reports supergroups with a -100 prefix; bound chats are stored that way.
func NormalizeChatID(id int64) int64 {
	if id < 0 {
		return id
	}
	return -1_000_000_000_000 - id
}
