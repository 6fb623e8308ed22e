package telegram

import "context"

// Button is one inline keyboard button. Data is the callback payload the
// bot receives when the button is pressed.
type Button struct {
	Text string
	Data string
}

// Transport is the chat boundary used by services. Implementations must be
// safe for concurrent use.
type Transport interface {
	// SendText delivers text to a chat, splitting messages that exceed
	// the platform limit.
	SendText(ctx context.Context, chatID int64, text string) error

	// SendTextWithKeyboard delivers text with an inline keyboard. Each
	// inner slice is one keyboard row.
	SendTextWithKeyboard(ctx context.Context, chatID int64, text string, rows [][]Button) error

	// RequestContact sends text with a reply keyboard asking the user to
	// share their phone number.
	RequestContact(ctx context.Context, chatID int64, text string) error

	// AnswerCallback acknowledges a pressed inline button.
	AnswerCallback(ctx context.Context, callbackID string, text string) error

	// DeleteMessage removes a message. Callers treat failures as
	// best-effort.
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error

	// DownloadFile fetches file content by its platform file id and
	// returns the bytes plus the remote file name.
	DownloadFile(ctx context.Context, fileID string) ([]byte, string, error)
}
