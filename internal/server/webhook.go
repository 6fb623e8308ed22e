package server

import (
	"context"
	"net/http"

	"github.com/Stugi/resto-worker/internal/onboarding"
	voicedomain "github.com/Stugi/resto-worker/internal/voice/domain"
	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// handleWebhook receives one bot update. The response is always 200 so the
// platform does not retry an update that failed on our side; failures are
// logged and the user gets an in-chat message from the service layer.
func (s *Server) handleWebhook(c *gin.Context) {
	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed update"})
		return
	}

	ctx := c.Request.Context()

	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		ev := onboarding.CallbackEvent{
			TelegramID: cb.From.ID,
			CallbackID: cb.ID,
			Data:       cb.Data,
		}
		if cb.Message != nil {
			ev.ChatID = cb.Message.Chat.ID
		}
		if err := s.onboardingSvc.Handle(ctx, ev); err != nil {
			s.log.Warn("callback handling failed", zap.Int64("telegram_id", cb.From.ID), zap.Error(err))
		}

	case update.MyChatMember != nil:
		s.dispatchMembership(c, update.MyChatMember)

	case update.Message != nil:
		s.dispatchMessage(c, update.Message)
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// dispatchMembership reacts to the bot being added to a group. The adder is
// treated as a binding attempt, so an owner can skip /bind entirely.
func (s *Server) dispatchMembership(c *gin.Context, upd *tgbotapi.ChatMemberUpdated) {
	if upd.Chat.IsPrivate() {
		return
	}
	member := upd.NewChatMember
	if member.User == nil || !member.User.IsBot || member.User.UserName != s.cfg.TelegramBotUsername {
		return
	}
	if member.Status != "member" && member.Status != "administrator" {
		return
	}

	ev := onboarding.BotAddedEvent{
		TelegramID: upd.From.ID,
		ChatID:     upd.Chat.ID,
		ChatTitle:  upd.Chat.Title,
	}
	if err := s.onboardingSvc.Handle(c.Request.Context(), ev); err != nil {
		s.log.Warn("membership handling failed", zap.Int64("chat_id", upd.Chat.ID), zap.Error(err))
	}
}

func (s *Server) dispatchMessage(c *gin.Context, msg *tgbotapi.Message) {
	ctx := c.Request.Context()

	if msg.Chat.IsPrivate() {
		if msg.From == nil {
			return
		}
		var ev onboarding.Event
		if msg.Contact != nil {
			ev = onboarding.ContactEvent{
				TelegramID: msg.From.ID,
				ChatID:     msg.Chat.ID,
				Phone:      msg.Contact.PhoneNumber,
				FirstName:  msg.Contact.FirstName,
			}
		} else {
			ev = onboarding.TextEvent{
				TelegramID: msg.From.ID,
				ChatID:     msg.Chat.ID,
				Text:       msg.Text,
				FirstName:  msg.From.FirstName,
			}
		}
		if err := s.onboardingSvc.Handle(ctx, ev); err != nil {
			s.log.Warn("onboarding event failed", zap.Int64("telegram_id", msg.From.ID), zap.Error(err))
		}
		return
	}

	// group traffic: voice recordings and the manual /bind fallback
	if msg.Voice != nil {
		in := voicedomain.IncomingVoice{
			ChatID:    msg.Chat.ID,
			MessageID: msg.MessageID,
			FileID:    msg.Voice.FileID,
			Duration:  msg.Voice.Duration,
			FileSize:  int64(msg.Voice.FileSize),
			MimeType:  msg.Voice.MimeType,
		}
		if msg.From != nil {
			in.SenderID = msg.From.ID
		}
		// Ack before the download and transcription finish; a redelivered
		// update dies on the (chat, message) unique index.
		s.tasks.Go("voice_ingest", func(ctx context.Context) error {
			return s.voiceSvc.HandleVoice(ctx, in)
		})
		return
	}

	if msg.IsCommand() && msg.From != nil {
		ev := onboarding.GroupCommandEvent{
			TelegramID: msg.From.ID,
			ChatID:     msg.Chat.ID,
			ChatTitle:  msg.Chat.Title,
			Command:    "/" + msg.Command(),
		}
		if err := s.onboardingSvc.Handle(ctx, ev); err != nil {
			s.log.Warn("group command failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		}
	}
}
