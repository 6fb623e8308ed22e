package domain

import (
	"context"
	"errors"
)

var (
	ErrChatNotBound   = errors.New("chat_not_bound")
	ErrEmptyTranscript = errors.New("empty_transcript")
)

// IncomingVoice is one voice message as delivered by the chat platform.
type IncomingVoice struct {
	ChatID    int64
	MessageID int
	SenderID  int64
	FileID    string
	Duration  int
	FileSize  int64
	MimeType  string
}

type Service interface {
	// HandleVoice runs the full pipeline for one incoming recording:
	// billing gate, transcription, quota consumption, transcript insert
	// and preview reply. Billing refusals are answered in-chat and do not
	// surface as errors.
	HandleVoice(ctx context.Context, in IncomingVoice) error
}
