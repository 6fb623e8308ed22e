package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Stugi/resto-worker/internal/ai"
	billingdomain "github.com/Stugi/resto-worker/internal/billing/domain"
	billingrepo "github.com/Stugi/resto-worker/internal/billing/repository"
	billingservice "github.com/Stugi/resto-worker/internal/billing/service"
	"github.com/Stugi/resto-worker/internal/clock"
	"github.com/Stugi/resto-worker/internal/restaurant"
	"github.com/Stugi/resto-worker/internal/telegram"
	"github.com/Stugi/resto-worker/internal/voice/domain"
	"github.com/Stugi/resto-worker/internal/voice/repository"
	"github.com/Stugi/resto-worker/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// -- Fakes --

type fakeBot struct {
	mu      sync.Mutex
	sent    []string
	deleted []int
	file    []byte
	fileErr error
}

func (f *fakeBot) SendText(_ context.Context, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeBot) SendTextWithKeyboard(context.Context, int64, string, [][]telegram.Button) error {
	return nil
}

func (f *fakeBot) RequestContact(context.Context, int64, string) error { return nil }

func (f *fakeBot) AnswerCallback(context.Context, string, string) error { return nil }

func (f *fakeBot) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeBot) DownloadFile(context.Context, string) ([]byte, string, error) {
	if f.fileErr != nil {
		return nil, "", f.fileErr
	}
	return f.file, "voice.oga", nil
}

func (f *fakeBot) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

type fakeAI struct {
	transcript    string
	transcribeErr error
}

func (f *fakeAI) Transcribe(context.Context, string, []byte) (string, error) {
	return f.transcript, f.transcribeErr
}

func (f *fakeAI) Classify(context.Context, string) (*ai.Classification, error) {
	return &ai.Classification{Sentiment: "neutral"}, nil
}

func (f *fakeAI) ClassifyBatch(_ context.Context, texts map[snowflake.ID]string) (map[snowflake.ID]*ai.Classification, error) {
	out := make(map[snowflake.ID]*ai.Classification, len(texts))
	for id := range texts {
		out[id] = &ai.Classification{Sentiment: "neutral"}
	}
	return out, nil
}

func (f *fakeAI) GenerateReport(context.Context, string) (*ai.ReportResult, error) {
	return &ai.ReportResult{Content: "отчёт", Model: "gpt-4o-mini", TokensUsed: 10}, nil
}

func (f *fakeAI) Summarize(context.Context, string) (string, error) {
	return "кратко", nil
}

// -- Fixture --

type fixture struct {
	svc   domain.Service
	conn  *gorm.DB
	bot   *fakeBot
	ai    *fakeAI
	node  *snowflake.Node
	orgID snowflake.ID
	chat  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&restaurant.Restaurant{}, &billingdomain.Tariff{}, &billingdomain.Billing{},
		&domain.VoiceMessage{}, &domain.Transcript{},
	))

	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	billingSvc := billingservice.New(billingservice.Params{
		DB: conn, Log: log, Clock: fake, Repo: billingrepo.Provide(),
	})

	bot := &fakeBot{file: []byte("ogg")}
	model := &fakeAI{transcript: "Суп был холодный, официант долго не подходил."}

	svc := New(Params{
		DB: conn, Log: log, Clock: fake, GenID: node,
		Repo:        repository.Provide(),
		Restaurants: restaurant.NewRepository(),
		Billing:     billingSvc,
		AI:          model,
		Bot:         bot,
	})

	f := &fixture{svc: svc, conn: conn, bot: bot, ai: model, node: node, chat: -1001234567890}
	f.orgID = f.seedRestaurant(t, fake.Now())
	return f
}

// seedRestaurant creates an organization on an active tariff with a bound
// chat and returns the organization id.
func (f *fixture) seedRestaurant(t *testing.T, now time.Time) snowflake.ID {
	t.Helper()

	tariff := billingdomain.Tariff{
		ID: f.node.Generate(), Name: "Старт", Price: 290000, PeriodDays: 30,
		MaxRestaurants: 1, MaxUsers: 3, MaxTranscriptions: 100, IsActive: true,
	}
	require.NoError(t, f.conn.Create(&tariff).Error)

	orgID := f.node.Generate()
	until := now.Add(30 * 24 * time.Hour)
	require.NoError(t, f.conn.Create(&billingdomain.Billing{
		ID: f.node.Generate(), OrganizationID: orgID,
		Status: billingdomain.StatusActive, TariffID: &tariff.ID, ActiveUntil: &until,
	}).Error)

	require.NoError(t, f.conn.Create(&restaurant.Restaurant{
		ID: f.node.Generate(), OrganizationID: orgID, Name: "Чебуречная", ChatID: &f.chat,
	}).Error)
	return orgID
}

func incoming(chat int64) domain.IncomingVoice {
	return domain.IncomingVoice{
		ChatID: chat, MessageID: 77, SenderID: 500, FileID: "file-1", Duration: 12,
		FileSize: 20480, MimeType: "audio/ogg",
	}
}

// -- Tests --

func TestHandleVoicePipeline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleVoice(ctx, incoming(f.chat)))

	var vm domain.VoiceMessage
	require.NoError(t, f.conn.First(&vm).Error)
	assert.Equal(t, domain.VoiceTranscribed, vm.Status)
	assert.Equal(t, "file-1", vm.TelegramFileID)
	assert.Equal(t, int64(20480), vm.FileSize)
	assert.Equal(t, "audio/ogg", vm.MimeType)

	var tr domain.Transcript
	require.NoError(t, f.conn.First(&tr, "voice_message_id = ?", vm.ID).Error)
	assert.Equal(t, f.ai.transcript, tr.Text)
	assert.Nil(t, tr.ClassifiedAt)

	var b billingdomain.Billing
	require.NoError(t, f.conn.First(&b, "organization_id = ?", f.orgID).Error)
	assert.Equal(t, 1, b.TranscriptionsUsed)

	assert.Contains(t, f.bot.lastText(), "Записано:")
	assert.Equal(t, []int{77}, f.bot.deleted)
}

func TestHandleVoiceRedeliveryIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleVoice(ctx, incoming(f.chat)))
	// The platform redelivers the same update after a slow ack.
	require.NoError(t, f.svc.HandleVoice(ctx, incoming(f.chat)))

	var messages int64
	require.NoError(t, f.conn.Model(&domain.VoiceMessage{}).Count(&messages).Error)
	assert.Equal(t, int64(1), messages)

	var transcripts int64
	require.NoError(t, f.conn.Model(&domain.Transcript{}).Count(&transcripts).Error)
	assert.Equal(t, int64(1), transcripts)

	var b billingdomain.Billing
	require.NoError(t, f.conn.First(&b, "organization_id = ?", f.orgID).Error)
	assert.Equal(t, 1, b.TranscriptionsUsed)
}

func TestHandleVoiceUnboundChatIgnored(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.HandleVoice(context.Background(), incoming(-1009999999999)))

	var count int64
	require.NoError(t, f.conn.Model(&domain.VoiceMessage{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	assert.Empty(t, f.bot.sent)
}

func TestHandleVoiceTranscriptionFailure(t *testing.T) {
	f := newFixture(t)
	f.ai.transcribeErr = errors.New("model unavailable")

	require.NoError(t, f.svc.HandleVoice(context.Background(), incoming(f.chat)))

	var vm domain.VoiceMessage
	require.NoError(t, f.conn.First(&vm).Error)
	assert.Equal(t, domain.VoiceFailed, vm.Status)
	assert.NotEmpty(t, vm.Error)

	// A failed transcription never burns quota.
	var b billingdomain.Billing
	require.NoError(t, f.conn.First(&b, "organization_id = ?", f.orgID).Error)
	assert.Equal(t, 0, b.TranscriptionsUsed)

	assert.Contains(t, f.bot.lastText(), "Не удалось распознать")
}

func TestHandleVoiceEmptyTranscript(t *testing.T) {
	f := newFixture(t)
	f.ai.transcript = "   "

	require.NoError(t, f.svc.HandleVoice(context.Background(), incoming(f.chat)))

	var vm domain.VoiceMessage
	require.NoError(t, f.conn.First(&vm).Error)
	assert.Equal(t, domain.VoiceFailed, vm.Status)

	var count int64
	require.NoError(t, f.conn.Model(&domain.Transcript{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestHandleVoiceQuotaExhausted(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.conn.Model(&billingdomain.Billing{}).
		Where("organization_id = ?", f.orgID).
		Update("transcriptions_used", 100).Error)

	require.NoError(t, f.svc.HandleVoice(context.Background(), incoming(f.chat)))

	// The gate refuses before any work happens; the reply names the tariff.
	var count int64
	require.NoError(t, f.conn.Model(&domain.VoiceMessage{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	assert.Contains(t, f.bot.lastText(), "Лимит распознаваний исчерпан")
	assert.Contains(t, f.bot.lastText(), "2900 ₽")
}

func TestHandleVoiceExpiredTrial(t *testing.T) {
	f := newFixture(t)

	ended := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.conn.Model(&billingdomain.Billing{}).
		Where("organization_id = ?", f.orgID).
		Updates(map[string]any{"status": billingdomain.StatusTrial, "trial_ends_at": ended}).Error)

	require.NoError(t, f.svc.HandleVoice(context.Background(), incoming(f.chat)))
	assert.Contains(t, f.bot.lastText(), "Пробный период закончился")
}

func TestPreviewTruncation(t *testing.T) {
	short := "короткий отзыв"
	assert.Equal(t, short, preview(short))

	long := make([]rune, 0, 300)
	for i := 0; i < 300; i++ {
		long = append(long, 'ы')
	}
	got := preview(string(long))
	assert.Len(t, []rune(got), previewLimit+1)
	assert.Equal(t, '…', []rune(got)[previewLimit])
}
