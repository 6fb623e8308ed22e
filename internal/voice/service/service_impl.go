package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Stugi/resto-worker/internal/ai"
	billingdomain "github.com/Stugi/resto-worker/internal/billing/domain"
	"github.com/Stugi/resto-worker/internal/clock"
	"github.com/Stugi/resto-worker/internal/ratelimit"
	"github.com/Stugi/resto-worker/internal/restaurant"
	"github.com/Stugi/resto-worker/internal/telegram"
	"github.com/Stugi/resto-worker/internal/voice/domain"
	pkgdb "github.com/Stugi/resto-worker/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const previewLimit = 200

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	GenID       *snowflake.Node
	Repo        domain.Repository
	Restaurants restaurant.Repository
	Billing     billingdomain.Service
	AI          ai.Client
	Bot         telegram.Transport
	Guard       *ratelimit.IngestGuard `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	genID       *snowflake.Node
	repo        domain.Repository
	restaurants restaurant.Repository
	billing     billingdomain.Service
	ai          ai.Client
	bot         telegram.Transport
	guard       *ratelimit.IngestGuard
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("voice.service"),
		clock:       p.Clock,
		genID:       p.GenID,
		repo:        p.Repo,
		restaurants: p.Restaurants,
		billing:     p.Billing,
		ai:          p.AI,
		bot:         p.Bot,
		guard:       p.Guard,
	}
}

func (s *Service) HandleVoice(ctx context.Context, in domain.IncomingVoice) error {
	rest, err := s.restaurants.FindByChatID(ctx, s.db, in.ChatID)
	if err != nil {
		return fmt.Errorf("find restaurant: %w", err)
	}
	if rest == nil {
		s.log.Debug("voice in unbound chat ignored", zap.Int64("chat_id", in.ChatID))
		return nil
	}

	token, ok, err := s.guard.TryLockChat(ctx, in.ChatID)
	if err != nil {
		s.log.Warn("ingest lock", zap.Int64("chat_id", in.ChatID), zap.Error(err))
	} else if !ok {
		s.reply(ctx, in.ChatID, "Предыдущее сообщение ещё обрабатывается, подождите немного.")
		return nil
	} else if token != "" {
		defer func() {
			if err := s.guard.ReleaseChat(ctx, in.ChatID, token); err != nil {
				s.log.Warn("ingest unlock", zap.Int64("chat_id", in.ChatID), zap.Error(err))
			}
		}()
	}

	if err := s.billing.Gate(ctx, rest.OrganizationID); err != nil {
		if billingdomain.NeedsPurchaseAction(err) {
			s.sendPurchasePrompt(ctx, in.ChatID, err)
			return nil
		}
		return fmt.Errorf("billing gate: %w", err)
	}

	vm := &domain.VoiceMessage{
		ID:                s.genID.Generate(),
		RestaurantID:      rest.ID,
		OrganizationID:    rest.OrganizationID,
		ChatID:            in.ChatID,
		TelegramMessageID: in.MessageID,
		TelegramFileID:    in.FileID,
		SenderID:          in.SenderID,
		Duration:          in.Duration,
		FileSize:          in.FileSize,
		MimeType:          in.MimeType,
		Status:            domain.VoiceReceived,
	}
	if err := s.repo.InsertVoiceMessage(ctx, s.db, vm); err != nil {
		// The platform redelivers updates it did not see acked in time;
		// the (chat, message) unique index makes the replay a no-op.
		if pkgdb.IsDuplicateKeyErr(err) {
			s.log.Info("duplicate voice update ignored",
				zap.Int64("chat_id", in.ChatID),
				zap.Int("message_id", in.MessageID),
			)
			return nil
		}
		return fmt.Errorf("insert voice message: %w", err)
	}

	vm.Status = domain.VoiceTranscribing
	if err := s.repo.UpdateVoiceMessage(ctx, s.db, vm); err != nil {
		return fmt.Errorf("mark transcribing: %w", err)
	}

	text, err := s.transcribe(ctx, in.FileID)
	if err != nil {
		s.fail(ctx, vm, err)
		s.reply(ctx, in.ChatID, "Не удалось распознать голосовое сообщение, попробуйте ещё раз.")
		return nil
	}

	if err := s.billing.ConsumeTranscription(ctx, rest.OrganizationID); err != nil {
		s.fail(ctx, vm, err)
		if err == billingdomain.ErrQuotaExhausted {
			s.sendPurchasePrompt(ctx, in.ChatID, err)
			return nil
		}
		return fmt.Errorf("consume transcription: %w", err)
	}

	t := &domain.Transcript{
		ID:             s.genID.Generate(),
		VoiceMessageID: vm.ID,
		RestaurantID:   rest.ID,
		OrganizationID: rest.OrganizationID,
		Text:           text,
	}
	if err := s.repo.InsertTranscript(ctx, s.db, t); err != nil {
		s.fail(ctx, vm, err)
		return fmt.Errorf("insert transcript: %w", err)
	}

	vm.Status = domain.VoiceTranscribed
	if err := s.repo.UpdateVoiceMessage(ctx, s.db, vm); err != nil {
		return fmt.Errorf("mark transcribed: %w", err)
	}

	s.reply(ctx, in.ChatID, "Записано: "+preview(text))

	// The original recording is noise once the text is stored.
	if err := s.bot.DeleteMessage(ctx, in.ChatID, in.MessageID); err != nil {
		s.log.Debug("delete voice message failed",
			zap.Int64("chat_id", in.ChatID),
			zap.Int("message_id", in.MessageID),
			zap.Error(err),
		)
	}

	s.log.Info("voice transcribed",
		zap.String("voice_id", vm.ID.String()),
		zap.String("restaurant_id", rest.ID.String()),
		zap.Int("chars", len(text)),
	)
	return nil
}

func (s *Service) transcribe(ctx context.Context, fileID string) (string, error) {
	data, name, err := s.bot.DownloadFile(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	text, err := s.ai.Transcribe(ctx, name, data)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.ErrEmptyTranscript
	}
	return text, nil
}

func (s *Service) fail(ctx context.Context, vm *domain.VoiceMessage, cause error) {
	vm.Status = domain.VoiceFailed
	vm.Error = cause.Error()
	if err := s.repo.UpdateVoiceMessage(ctx, s.db, vm); err != nil {
		s.log.Error("mark failed", zap.String("voice_id", vm.ID.String()), zap.Error(err))
	}
}

func (s *Service) sendPurchasePrompt(ctx context.Context, chatID int64, cause error) {
	msg := "Подписка неактивна, распознавание недоступно."
	switch cause {
	case billingdomain.ErrQuotaExhausted:
		msg = "Лимит распознаваний исчерпан."
	case billingdomain.ErrTrialExpired:
		msg = "Пробный период закончился."
	case billingdomain.ErrSubscriptionExpired:
		msg = "Срок подписки истёк."
	}
	if tariff, err := s.billing.CheapestActiveTariff(ctx); err == nil {
		msg += fmt.Sprintf(" Тариф «%s»: %d ₽ за %d дней. Продлить может владелец через бота.",
			tariff.Name, tariff.Price/100, tariff.PeriodDays)
	}
	s.reply(ctx, chatID, msg)
}

func (s *Service) reply(ctx context.Context, chatID int64, text string) {
	if err := s.bot.SendText(ctx, chatID, text); err != nil {
		s.log.Warn("send reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= previewLimit {
		return text
	}
	return string(r[:previewLimit]) + "…"
}
