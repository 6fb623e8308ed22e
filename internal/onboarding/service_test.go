package onboarding

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Stugi/resto-worker/internal/account"
	billingdomain "github.com/Stugi/resto-worker/internal/billing/domain"
	billingrepo "github.com/Stugi/resto-worker/internal/billing/repository"
	billingservice "github.com/Stugi/resto-worker/internal/billing/service"
	"github.com/Stugi/resto-worker/internal/clock"
	"github.com/Stugi/resto-worker/internal/config"
	"github.com/Stugi/resto-worker/internal/groups"
	"github.com/Stugi/resto-worker/internal/lead"
	"github.com/Stugi/resto-worker/internal/organization"
	"github.com/Stugi/resto-worker/internal/ratelimit"
	"github.com/Stugi/resto-worker/internal/restaurant"
	"github.com/Stugi/resto-worker/internal/telegram"
	"github.com/Stugi/resto-worker/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// -- Fakes --

type sentMessage struct {
	ChatID int64
	Text   string
}

type fakeTransport struct {
	mu              sync.Mutex
	sent            []sentMessage
	contactRequests []int64
	keyboards       [][][]telegram.Button
}

func (f *fakeTransport) SendText(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (f *fakeTransport) SendTextWithKeyboard(_ context.Context, chatID int64, text string, rows [][]telegram.Button) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text})
	f.keyboards = append(f.keyboards, rows)
	return nil
}

func (f *fakeTransport) RequestContact(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contactRequests = append(f.contactRequests, chatID)
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (f *fakeTransport) AnswerCallback(context.Context, string, string) error { return nil }

func (f *fakeTransport) DeleteMessage(context.Context, int64, int) error { return nil }

func (f *fakeTransport) DownloadFile(context.Context, string) ([]byte, string, error) {
	return nil, "", nil
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeTransport) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].Text
}

func (f *fakeTransport) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Text
	}
	return out
}

// -- Fixture --

type fixture struct {
	svc   *Service
	conn  *gorm.DB
	bot   *fakeTransport
	clock *clock.FakeClock
	node  *snowflake.Node
	lc    *fxtest.Lifecycle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&lead.Lead{}, &account.Account{}, &organization.Organization{},
		&restaurant.Restaurant{}, &billingdomain.Tariff{}, &billingdomain.Billing{},
		&billingdomain.Payment{},
		&ratelimit.RateLimitLog{}, &ratelimit.SuspiciousActivity{},
		&groups.GroupAction{},
	))

	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()
	bot := &fakeTransport{}

	billingRepo := billingrepo.Provide()
	billingSvc := billingservice.New(billingservice.Params{
		DB: conn, Log: log, Clock: fake, Repo: billingRepo,
	})

	limiter := ratelimit.NewLimiter(ratelimit.LimiterParams{
		DB: conn, Log: log, Clock: fake, GenID: node,
		Repo:   ratelimit.NewRepository(),
		Limits: config.NewStaticLimitsHolder(config.DefaultLimitsConfig()),
	})

	cfg := config.Config{TelegramBotUsername: "resto_feedback_bot"}
	provisioner := groups.NewProvisioner(groups.ProvisionerParams{
		DB: conn, Log: log, Config: cfg, GenID: node,
		Client:      groups.NewClient(groups.ClientParams{Config: cfg, Log: log}),
		Repo:        groups.NewRepository(),
		Restaurants: restaurant.NewRepository(),
		Limiter:     limiter,
	})

	lc := fxtest.NewLifecycle(t)
	svc := New(Params{
		DB: conn, Log: log, Clock: fake, GenID: node,
		Leads:       lead.NewRepository(),
		Accounts:    account.NewRepository(),
		Orgs:        organization.NewRepository(),
		Restaurants: restaurant.NewRepository(),
		Billing:     billingRepo,
		BillingSvc:  billingSvc,
		Bot:         bot,
		Provisioner: provisioner,
		Tasks:       NewTaskRunner(lc, log),
	})
	lc.RequireStart()

	return &fixture{svc: svc, conn: conn, bot: bot, clock: fake, node: node, lc: lc}
}

func (f *fixture) seedTariff(t *testing.T) billingdomain.Tariff {
	t.Helper()
	tariff := billingdomain.Tariff{
		ID:                f.node.Generate(),
		Name:              "Старт",
		Price:             290000,
		PeriodDays:        30,
		MaxRestaurants:    1,
		MaxUsers:          3,
		MaxTranscriptions: 100,
		IsActive:          true,
	}
	require.NoError(t, f.conn.Create(&tariff).Error)
	return tariff
}

// walk drives one user through the whole funnel up to the confirm press.
func (f *fixture) walk(t *testing.T, telegramID int64, phone, orgName string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.svc.Handle(ctx, TextEvent{
		TelegramID: telegramID, ChatID: telegramID, Text: "/start", FirstName: "Анна",
	}))
	require.NoError(t, f.svc.Handle(ctx, ContactEvent{
		TelegramID: telegramID, ChatID: telegramID, Phone: phone,
	}))
	require.NoError(t, f.svc.Handle(ctx, TextEvent{
		TelegramID: telegramID, ChatID: telegramID, Text: orgName,
	}))
	require.NoError(t, f.svc.Handle(ctx, CallbackEvent{
		TelegramID: telegramID, ChatID: telegramID, CallbackID: "cb1", Data: CallbackScalePrefix + ScaleSmall,
	}))
	require.NoError(t, f.svc.Handle(ctx, CallbackEvent{
		TelegramID: telegramID, ChatID: telegramID, CallbackID: "cb2", Data: CallbackConfirm,
	}))
}

func (f *fixture) leadState(t *testing.T, telegramID int64) string {
	t.Helper()
	var l lead.Lead
	require.NoError(t, f.conn.First(&l, "telegram_id = ?", telegramID).Error)
	return l.State
}

// -- Tests --

func TestFunnelHappyPath(t *testing.T) {
	f := newFixture(t)
	tariff := f.seedTariff(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Handle(ctx, TextEvent{
		TelegramID: 500, ChatID: 500, Text: "/start", FirstName: "Анна",
	}))
	assert.Equal(t, lead.StateWaitingContact, f.leadState(t, 500))
	assert.Equal(t, []int64{500}, f.bot.contactRequests)

	require.NoError(t, f.svc.Handle(ctx, ContactEvent{
		TelegramID: 500, ChatID: 500, Phone: "8 (912) 345-67-89",
	}))
	assert.Equal(t, lead.StateWaitingName, f.leadState(t, 500))

	require.NoError(t, f.svc.Handle(ctx, TextEvent{
		TelegramID: 500, ChatID: 500, Text: "Вкусно и точка зрения",
	}))
	assert.Equal(t, lead.StateWaitingScale, f.leadState(t, 500))

	require.NoError(t, f.svc.Handle(ctx, CallbackEvent{
		TelegramID: 500, ChatID: 500, CallbackID: "cb1", Data: CallbackScalePrefix + ScaleSmall,
	}))
	assert.Equal(t, lead.StateWaitingConfirm, f.leadState(t, 500))

	require.NoError(t, f.svc.Handle(ctx, CallbackEvent{
		TelegramID: 500, ChatID: 500, CallbackID: "cb2", Data: CallbackConfirm,
	}))
	assert.Equal(t, lead.StateCompleted, f.leadState(t, 500))

	var l lead.Lead
	require.NoError(t, f.conn.First(&l, "telegram_id = ?", 500).Error)
	assert.True(t, l.Converted)
	assert.Equal(t, "+79123456789", l.Phone)

	var org organization.Organization
	require.NoError(t, f.conn.First(&org, "name = ?", "Вкусно и точка зрения").Error)

	var b billingdomain.Billing
	require.NoError(t, f.conn.First(&b, "organization_id = ?", org.ID).Error)
	assert.Equal(t, billingdomain.StatusTrial, b.Status)
	require.NotNil(t, b.TariffID)
	assert.Equal(t, tariff.ID, *b.TariffID)
	require.NotNil(t, b.TrialEndsAt)
	// One tariff period of trial, not a fixed constant.
	assert.True(t, b.TrialEndsAt.Equal(f.clock.Now().AddDate(0, 0, tariff.PeriodDays)))

	var acc account.Account
	require.NoError(t, f.conn.First(&acc, "telegram_id = ?", 500).Error)
	assert.Equal(t, account.RoleOwner, acc.Role)
	require.NotNil(t, acc.RestaurantID)

	var rest restaurant.Restaurant
	require.NoError(t, f.conn.First(&rest, "id = ?", *acc.RestaurantID).Error)
	assert.Equal(t, org.ID, rest.OrganizationID)
	assert.False(t, rest.Bound())

	// The userbot is disabled in this fixture, so the background task
	// falls back to manual binding instructions. Stopping the lifecycle
	// drains the task runner.
	f.lc.RequireStop()
	assert.Contains(t, f.bot.lastText(), "/bind")
}

func TestConfirmReplayIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.seedTariff(t)
	defer f.lc.RequireStop()

	f.walk(t, 500, "+79123456789", "Чебуречная")

	// A duplicate webhook delivery replays the confirm press.
	require.NoError(t, f.svc.Handle(context.Background(), CallbackEvent{
		TelegramID: 500, ChatID: 500, CallbackID: "cb2", Data: CallbackConfirm,
	}))

	var orgs int64
	require.NoError(t, f.conn.Model(&organization.Organization{}).Count(&orgs).Error)
	assert.Equal(t, int64(1), orgs)

	var accounts int64
	require.NoError(t, f.conn.Model(&account.Account{}).Count(&accounts).Error)
	assert.Equal(t, int64(1), accounts)
}

func TestPhoneTakenByAnotherOrganization(t *testing.T) {
	f := newFixture(t)
	f.seedTariff(t)
	defer f.lc.RequireStop()

	f.walk(t, 500, "+79123456789", "Чебуречная")

	ctx := context.Background()
	require.NoError(t, f.svc.Handle(ctx, TextEvent{
		TelegramID: 600, ChatID: 600, Text: "/start",
	}))
	err := f.svc.Handle(ctx, ContactEvent{
		TelegramID: 600, ChatID: 600, Phone: "+79123456789",
	})
	assert.ErrorIs(t, err, ErrPhoneTaken)
	assert.Equal(t, lead.StateWaitingContact, f.leadState(t, 600))
	assert.Contains(t, f.bot.lastText(), "уже привязан")
}

func TestStartWhenAlreadyRegistered(t *testing.T) {
	f := newFixture(t)
	f.seedTariff(t)
	defer f.lc.RequireStop()

	f.walk(t, 500, "+79123456789", "Чебуречная")

	require.NoError(t, f.svc.Handle(context.Background(), TextEvent{
		TelegramID: 500, ChatID: 500, Text: "/start",
	}))
	assert.Contains(t, f.bot.lastText(), "уже зарегистрированы")
	assert.Equal(t, lead.StateCompleted, f.leadState(t, 500))
}

func TestOutOfOrderEventGetsHint(t *testing.T) {
	f := newFixture(t)
	defer f.lc.RequireStop()

	// A contact share before /start is answered with the expected step.
	require.NoError(t, f.svc.Handle(context.Background(), ContactEvent{
		TelegramID: 500, ChatID: 500, Phone: "+79123456789",
	}))
	assert.Equal(t, lead.StateWaitingStart, f.leadState(t, 500))
	assert.Contains(t, f.bot.lastText(), "/start")
}

func TestRestartClearsCollectedData(t *testing.T) {
	f := newFixture(t)
	defer f.lc.RequireStop()
	ctx := context.Background()

	require.NoError(t, f.svc.Handle(ctx, TextEvent{TelegramID: 500, ChatID: 500, Text: "/start"}))
	require.NoError(t, f.svc.Handle(ctx, ContactEvent{TelegramID: 500, ChatID: 500, Phone: "+79123456789"}))
	require.NoError(t, f.svc.Handle(ctx, TextEvent{TelegramID: 500, ChatID: 500, Text: "Чебуречная"}))
	require.NoError(t, f.svc.Handle(ctx, CallbackEvent{TelegramID: 500, ChatID: 500, Data: CallbackScalePrefix + ScaleSingle}))
	require.NoError(t, f.svc.Handle(ctx, CallbackEvent{TelegramID: 500, ChatID: 500, Data: CallbackRestart}))

	var l lead.Lead
	require.NoError(t, f.conn.First(&l, "telegram_id = ?", 500).Error)
	assert.Equal(t, lead.StateWaitingContact, l.State)
	assert.Empty(t, l.Phone)
	assert.Empty(t, l.OrgName)
	assert.Empty(t, l.ScaleTier)
}

func TestScaleShowsSampleReport(t *testing.T) {
	f := newFixture(t)
	defer f.lc.RequireStop()
	ctx := context.Background()

	require.NoError(t, f.svc.Handle(ctx, TextEvent{TelegramID: 500, ChatID: 500, Text: "/start"}))
	require.NoError(t, f.svc.Handle(ctx, ContactEvent{TelegramID: 500, ChatID: 500, Phone: "+79123456789"}))
	require.NoError(t, f.svc.Handle(ctx, TextEvent{TelegramID: 500, ChatID: 500, Text: "Чебуречная"}))
	require.NoError(t, f.svc.Handle(ctx, CallbackEvent{TelegramID: 500, ChatID: 500, Data: CallbackScalePrefix + ScaleSingle}))

	// The sample precedes the confirm keyboard.
	msgs := f.bot.texts()
	require.GreaterOrEqual(t, len(msgs), 2)
	sample := msgs[len(msgs)-2]
	assert.Contains(t, sample, "будет выглядеть ваш отчёт")
	assert.Contains(t, sample, "Отчёт по «Чебуречная»")
	assert.Contains(t, f.bot.lastText(), "Проверьте данные")
}

func TestTrialLastsOneTariffPeriod(t *testing.T) {
	f := newFixture(t)
	defer f.lc.RequireStop()

	tariff := f.seedTariff(t)
	require.NoError(t, f.conn.Model(&billingdomain.Tariff{}).
		Where("id = ?", tariff.ID).Update("period_days", 90).Error)

	f.walk(t, 500, "+79123456789", "Чебуречная")

	var b billingdomain.Billing
	require.NoError(t, f.conn.First(&b).Error)
	require.NotNil(t, b.TrialEndsAt)
	assert.True(t, b.TrialEndsAt.Equal(f.clock.Now().AddDate(0, 0, 90)))
}

func TestTrialFallbackWithoutTariff(t *testing.T) {
	f := newFixture(t)
	defer f.lc.RequireStop()

	f.walk(t, 500, "+79123456789", "Чебуречная")

	var b billingdomain.Billing
	require.NoError(t, f.conn.First(&b).Error)
	assert.Nil(t, b.TariffID)
	require.NotNil(t, b.TrialEndsAt)
	assert.True(t, b.TrialEndsAt.Equal(f.clock.Now().AddDate(0, 0, 7)))
}

func TestBindCommand(t *testing.T) {
	f := newFixture(t)
	f.seedTariff(t)
	defer f.lc.RequireStop()
	ctx := context.Background()

	f.walk(t, 500, "+79123456789", "Чебуречная")

	require.NoError(t, f.svc.Handle(ctx, GroupCommandEvent{
		TelegramID: 500, ChatID: -1001234567890, ChatTitle: "Чебуречная отзывы", Command: "/bind",
	}))

	rest, err := restaurant.NewRepository().FindByChatID(ctx, f.conn, -1001234567890)
	require.NoError(t, err)
	require.NotNil(t, rest)
	assert.Equal(t, "Чебуречная отзывы", rest.ChatTitle)

	// A second /bind for the same restaurant is refused.
	require.NoError(t, f.svc.Handle(ctx, GroupCommandEvent{
		TelegramID: 500, ChatID: -1009999999999, Command: "/bind",
	}))
	assert.Contains(t, f.bot.lastText(), "уже есть привязанный чат")
}

func TestBotAddedBindsChat(t *testing.T) {
	f := newFixture(t)
	f.seedTariff(t)
	defer f.lc.RequireStop()
	ctx := context.Background()

	f.walk(t, 500, "+79123456789", "Чебуречная")

	require.NoError(t, f.svc.Handle(ctx, BotAddedEvent{
		TelegramID: 500, ChatID: -1001234567890, ChatTitle: "Чебуречная отзывы",
	}))

	rest, err := restaurant.NewRepository().FindByChatID(ctx, f.conn, -1001234567890)
	require.NoError(t, err)
	require.NotNil(t, rest)
	assert.Equal(t, "Чебуречная отзывы", rest.ChatTitle)
	assert.Contains(t, f.bot.lastText(), "Чат привязан")
}

func TestBotAddedByStrangerIsSilent(t *testing.T) {
	f := newFixture(t)
	defer f.lc.RequireStop()
	ctx := context.Background()

	before := f.bot.sentCount()
	require.NoError(t, f.svc.Handle(ctx, BotAddedEvent{
		TelegramID: 700, ChatID: -1001234567890, ChatTitle: "Чужой чат",
	}))
	assert.Equal(t, before, f.bot.sentCount())

	rest, err := restaurant.NewRepository().FindByChatID(ctx, f.conn, -1001234567890)
	require.NoError(t, err)
	assert.Nil(t, rest)
}

func TestBindRequiresOwner(t *testing.T) {
	f := newFixture(t)
	defer f.lc.RequireStop()

	require.NoError(t, f.svc.Handle(context.Background(), GroupCommandEvent{
		TelegramID: 700, ChatID: -1001234567890, Command: "/bind",
	}))
	assert.Contains(t, f.bot.lastText(), "владелец")

	rest, err := restaurant.NewRepository().FindByChatID(context.Background(), f.conn, -1001234567890)
	require.NoError(t, err)
	assert.Nil(t, rest)
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"8 (912) 345-67-89": "+79123456789",
		"+7 912 345 67 89":  "+79123456789",
		"79123456789":       "+79123456789",
		"+380441234567":     "+380441234567",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizePhone(in), "input %q", in)
	}
}
