package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Stugi/resto-worker/internal/account"
	billingdomain "github.com/Stugi/resto-worker/internal/billing/domain"
	"github.com/Stugi/resto-worker/internal/clock"
	"github.com/Stugi/resto-worker/internal/groups"
	"github.com/Stugi/resto-worker/internal/lead"
	"github.com/Stugi/resto-worker/internal/organization"
	"github.com/Stugi/resto-worker/internal/restaurant"
	"github.com/Stugi/resto-worker/internal/telegram"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrPhoneTaken      = errors.New("phone_already_registered")
	ErrAlreadyOnboard  = errors.New("already_onboarded")
	ErrUnexpectedEvent = errors.New("unexpected_event")
)

// defaultTrialDays applies only when no active tariff exists; the trial is
// otherwise one tariff period long.
const defaultTrialDays = 7

// sampleReportTemplate shows the lead what a weekly digest will look like
// before they commit.
const sampleReportTemplate = `Вот так будет выглядеть ваш отчёт:

Отчёт по «%s» за неделю

Всего отзывов: 12 (8 положительных, 3 нейтральных, 1 негативный)

Кухня: гости хвалят чебуреки и борщ, дважды просили вернуть окрошку.
Сервис: один гость ждал заказ 40 минут в пятницу вечером.
Рекомендация: усилить смену в пятницу после 18:00.`

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	GenID       *snowflake.Node
	Leads       lead.Repository
	Accounts    account.Repository
	Orgs        organization.Repository
	Restaurants restaurant.Repository
	Billing     billingdomain.Repository
	BillingSvc  billingdomain.Service
	Bot         telegram.Transport
	Provisioner *groups.Provisioner
	Tasks       *TaskRunner
}

// Service drives the registration funnel. Each lead walks a fixed state
// machine; the transition table pairs the lead's state with the event type
// and everything else is answered with a hint about the expected step.
type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	genID       *snowflake.Node
	leads       lead.Repository
	accounts    account.Repository
	orgs        organization.Repository
	restaurants restaurant.Repository
	billing     billingdomain.Repository
	billingSvc  billingdomain.Service
	bot         telegram.Transport
	provisioner *groups.Provisioner
	tasks       *TaskRunner
}

func New(p Params) *Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("onboarding"),
		clock:       p.Clock,
		genID:       p.GenID,
		leads:       p.Leads,
		accounts:    p.Accounts,
		orgs:        p.Orgs,
		restaurants: p.Restaurants,
		billing:     p.Billing,
		billingSvc:  p.BillingSvc,
		bot:         p.Bot,
		provisioner: p.Provisioner,
		tasks:       p.Tasks,
	}
}

type handler func(ctx context.Context, s *Service, l *lead.Lead, ev Event) error

// transitions maps lead state to the event types it accepts. A missing
// entry means the event is out of order for that state.
var transitions = map[string]map[string]handler{
	lead.StateWaitingStart: {
		"TextEvent": handleStart,
	},
	lead.StateWaitingContact: {
		"TextEvent":    handleStart,
		"ContactEvent": handleContact,
	},
	lead.StateWaitingName: {
		"TextEvent": handleName,
	},
	lead.StateWaitingScale: {
		"CallbackEvent": handleScale,
	},
	lead.StateWaitingConfirm: {
		"CallbackEvent": handleConfirm,
	},
	lead.StateCompleted: {
		"TextEvent": handleCompletedText,
	},
}

func eventKind(ev Event) string {
	switch ev.(type) {
	case TextEvent:
		return "TextEvent"
	case ContactEvent:
		return "ContactEvent"
	case CallbackEvent:
		return "CallbackEvent"
	case GroupCommandEvent:
		return "GroupCommandEvent"
	default:
		return "unknown"
	}
}

// Handle routes one event through the funnel.
func (s *Service) Handle(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case GroupCommandEvent:
		return s.handleGroupCommand(ctx, e)
	case BotAddedEvent:
		return s.handleBotAdded(ctx, e)
	}

	l, err := s.leads.FindByTelegramID(ctx, s.db, ev.ActorID())
	if err != nil {
		return fmt.Errorf("find lead: %w", err)
	}
	if l == nil {
		l = &lead.Lead{
			ID:         s.genID.Generate(),
			TelegramID: ev.ActorID(),
			State:      lead.StateWaitingStart,
		}
		if err := s.leads.Upsert(ctx, s.db, l); err != nil {
			return fmt.Errorf("create lead: %w", err)
		}
	}

	byEvent, ok := transitions[l.State]
	if !ok {
		return fmt.Errorf("%w: lead state %s", ErrUnexpectedEvent, l.State)
	}
	h, ok := byEvent[eventKind(ev)]
	if !ok {
		s.hint(ctx, ev, l.State)
		return nil
	}
	return h(ctx, s, l, ev)
}

func handleStart(ctx context.Context, s *Service, l *lead.Lead, ev Event) error {
	te := ev.(TextEvent)
	if !strings.HasPrefix(te.Text, "/start") {
		s.hint(ctx, ev, l.State)
		return nil
	}

	if acc, err := s.accounts.FindByTelegramID(ctx, s.db, te.TelegramID); err != nil {
		return fmt.Errorf("find account: %w", err)
	} else if acc != nil {
		s.send(ctx, te.ChatID, "Вы уже зарегистрированы. Отправляйте голосовые отзывы в чат ресторана.")
		return nil
	}

	l.FirstName = te.FirstName
	l.State = lead.StateWaitingContact
	if err := s.leads.Update(ctx, s.db, l); err != nil {
		return fmt.Errorf("update lead: %w", err)
	}

	if err := s.bot.RequestContact(ctx, te.ChatID,
		"Здравствуйте! Я помогу собирать отзывы гостей. Для начала поделитесь номером телефона."); err != nil {
		s.log.Warn("request contact", zap.Error(err))
	}
	return nil
}

func handleContact(ctx context.Context, s *Service, l *lead.Lead, ev Event) error {
	ce := ev.(ContactEvent)
	phone := normalizePhone(ce.Phone)

	existing, err := s.accounts.FindByPhoneWithOrg(ctx, s.db, phone)
	if err != nil {
		return fmt.Errorf("check phone: %w", err)
	}
	if existing != nil {
		s.send(ctx, ce.ChatID, "Этот номер уже привязан к организации. Один номер может создать только одну организацию.")
		return ErrPhoneTaken
	}

	l.Phone = phone
	if l.FirstName == "" {
		l.FirstName = ce.FirstName
	}
	l.State = lead.StateWaitingName
	if err := s.leads.Update(ctx, s.db, l); err != nil {
		return fmt.Errorf("update lead: %w", err)
	}

	s.send(ctx, ce.ChatID, "Отлично! Как называется ваш ресторан?")
	return nil
}

func handleName(ctx context.Context, s *Service, l *lead.Lead, ev Event) error {
	te := ev.(TextEvent)
	name := strings.TrimSpace(te.Text)
	if name == "" || strings.HasPrefix(name, "/") {
		s.hint(ctx, ev, l.State)
		return nil
	}

	l.OrgName = name
	l.State = lead.StateWaitingScale
	if err := s.leads.Update(ctx, s.db, l); err != nil {
		return fmt.Errorf("update lead: %w", err)
	}

	err := s.bot.SendTextWithKeyboard(ctx, te.ChatID, "Сколько у вас заведений?", [][]telegram.Button{{
		{Text: "1", Data: CallbackScalePrefix + ScaleSingle},
		{Text: "2-5", Data: CallbackScalePrefix + ScaleSmall},
		{Text: "6+", Data: CallbackScalePrefix + ScaleLarge},
	}})
	if err != nil {
		s.log.Warn("send scale keyboard", zap.Error(err))
	}
	return nil
}

func handleScale(ctx context.Context, s *Service, l *lead.Lead, ev Event) error {
	ce := ev.(CallbackEvent)
	if !strings.HasPrefix(ce.Data, CallbackScalePrefix) {
		s.hint(ctx, ev, l.State)
		return nil
	}
	s.ack(ctx, ce.CallbackID)

	l.ScaleTier = strings.TrimPrefix(ce.Data, CallbackScalePrefix)
	l.State = lead.StateWaitingConfirm
	if err := s.leads.Update(ctx, s.db, l); err != nil {
		return fmt.Errorf("update lead: %w", err)
	}

	s.send(ctx, ce.ChatID, fmt.Sprintf(sampleReportTemplate, l.OrgName))

	summary := fmt.Sprintf("Проверьте данные:\nРесторан: %s\nТелефон: %s\nЗаведений: %s",
		l.OrgName, l.Phone, l.ScaleTier)
	err := s.bot.SendTextWithKeyboard(ctx, ce.ChatID, summary, [][]telegram.Button{{
		{Text: "Всё верно", Data: CallbackConfirm},
		{Text: "Начать заново", Data: CallbackRestart},
	}})
	if err != nil {
		s.log.Warn("send confirm keyboard", zap.Error(err))
	}
	return nil
}

func handleConfirm(ctx context.Context, s *Service, l *lead.Lead, ev Event) error {
	ce := ev.(CallbackEvent)
	s.ack(ctx, ce.CallbackID)

	switch ce.Data {
	case CallbackRestart:
		l.State = lead.StateWaitingContact
		l.Phone = ""
		l.OrgName = ""
		l.ScaleTier = ""
		if err := s.leads.Update(ctx, s.db, l); err != nil {
			return fmt.Errorf("reset lead: %w", err)
		}
		if err := s.bot.RequestContact(ctx, ce.ChatID, "Хорошо, начнём заново. Поделитесь номером телефона."); err != nil {
			s.log.Warn("request contact", zap.Error(err))
		}
		return nil
	case CallbackConfirm:
		return s.provision(ctx, l, ce.ChatID)
	default:
		s.hint(ctx, ev, l.State)
		return nil
	}
}

func handleCompletedText(ctx context.Context, s *Service, l *lead.Lead, ev Event) error {
	te := ev.(TextEvent)
	s.send(ctx, te.ChatID, "Регистрация уже завершена. Отправляйте голосовые отзывы в чат ресторана.")
	return nil
}

// provision converts the lead in one transaction. A replayed confirm after
// completion is a no-op because the lead has already left WAITING_CONFIRM.
func (s *Service) provision(ctx context.Context, l *lead.Lead, chatID int64) error {
	if l.State != lead.StateWaitingConfirm {
		return nil
	}

	now := s.clock.Now()
	restaurantID := s.genID.Generate()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.accounts.FindByPhoneWithOrg(ctx, tx, l.Phone)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrPhoneTaken
		}

		org := &organization.Organization{
			ID:        s.genID.Generate(),
			Name:      l.OrgName,
			CreatedBy: l.TelegramID,
		}
		if err := s.orgs.Insert(ctx, tx, org); err != nil {
			return err
		}

		billing := &billingdomain.Billing{
			ID:             s.genID.Generate(),
			OrganizationID: org.ID,
			Status:         billingdomain.StatusTrial,
			TrialStartsAt:  &now,
		}
		trialDays := defaultTrialDays
		if tariff, err := s.billing.CheapestActiveTariff(ctx, tx); err != nil {
			return err
		} else if tariff != nil {
			billing.TariffID = &tariff.ID
			trialDays = tariff.PeriodDays
		}
		trialEnds := now.AddDate(0, 0, trialDays)
		billing.TrialEndsAt = &trialEnds
		if err := s.billing.InsertBilling(ctx, tx, billing); err != nil {
			return err
		}

		rest := &restaurant.Restaurant{
			ID:             restaurantID,
			OrganizationID: org.ID,
			Name:           l.OrgName,
			CreatedBy:      l.TelegramID,
		}
		if err := s.restaurants.Insert(ctx, tx, rest); err != nil {
			return err
		}

		acc := &account.Account{
			ID:             s.genID.Generate(),
			TelegramID:     l.TelegramID,
			Phone:          l.Phone,
			Name:           l.FirstName,
			Role:           account.RoleOwner,
			State:          lead.StateCompleted,
			OrganizationID: &org.ID,
			RestaurantID:   &restaurantID,
		}
		if err := s.accounts.Insert(ctx, tx, acc); err != nil {
			return err
		}

		l.Converted = true
		l.State = lead.StateCompleted
		return s.leads.Update(ctx, tx, l)
	})
	if err != nil {
		if errors.Is(err, ErrPhoneTaken) {
			s.send(ctx, chatID, "Этот номер уже привязан к организации.")
			return nil
		}
		return fmt.Errorf("provision: %w", err)
	}

	s.send(ctx, chatID, "Готово! Создаю чат для сбора отзывов, это займёт минуту.")

	ownerID := l.TelegramID
	s.tasks.Go("provision_chat", func(taskCtx context.Context) error {
		groupChatID, err := s.provisioner.ProvisionChat(taskCtx, restaurantID, ownerID)
		if err != nil {
			if errors.Is(err, groups.ErrRateLimited) || errors.Is(err, groups.ErrFloodWait) || errors.Is(err, groups.ErrDisabled) {
				s.send(taskCtx, chatID,
					"Не получилось создать чат автоматически. Создайте группу сами, добавьте бота и отправьте в ней команду /bind.")
				return nil
			}
			return err
		}
		s.send(taskCtx, chatID, "Чат создан, вы добавлены в группу. Отзывы из неё попадут в отчёты.")
		s.log.Info("onboarding chat ready",
			zap.String("restaurant_id", restaurantID.String()),
			zap.Int64("group_chat_id", groupChatID),
		)
		return nil
	})

	s.log.Info("lead converted",
		zap.Int64("telegram_id", l.TelegramID),
		zap.String("restaurant_id", restaurantID.String()),
	)
	return nil
}

// handleGroupCommand implements the manual /bind fallback inside a group.
func (s *Service) handleGroupCommand(ctx context.Context, ev GroupCommandEvent) error {
	if !strings.HasPrefix(ev.Command, "/bind") {
		return nil
	}
	return s.bindGroup(ctx, ev.TelegramID, ev.ChatID, ev.ChatTitle, false)
}

// handleBotAdded binds a group when a restaurant owner adds the bot to it.
// Refusals stay silent: the bot is routinely added to chats it has no
// business commenting in.
func (s *Service) handleBotAdded(ctx context.Context, ev BotAddedEvent) error {
	return s.bindGroup(ctx, ev.TelegramID, ev.ChatID, ev.ChatTitle, true)
}

func (s *Service) bindGroup(ctx context.Context, telegramID, chatID int64, chatTitle string, quiet bool) error {
	refuse := func(msg string) {
		if !quiet {
			s.send(ctx, chatID, msg)
		}
	}

	acc, err := s.accounts.FindByTelegramID(ctx, s.db, telegramID)
	if err != nil {
		return fmt.Errorf("find account: %w", err)
	}
	if acc == nil || acc.Role != account.RoleOwner || acc.RestaurantID == nil {
		refuse("Привязать чат может только владелец зарегистрированного ресторана.")
		return nil
	}

	rest, err := s.restaurants.FindByID(ctx, s.db, *acc.RestaurantID)
	if err != nil {
		return fmt.Errorf("find restaurant: %w", err)
	}
	if rest == nil {
		return fmt.Errorf("restaurant %s not found", *acc.RestaurantID)
	}
	if rest.Bound() {
		refuse("У ресторана уже есть привязанный чат.")
		return nil
	}

	if taken, err := s.restaurants.FindByChatID(ctx, s.db, chatID); err != nil {
		return fmt.Errorf("check chat: %w", err)
	} else if taken != nil {
		refuse("Этот чат уже привязан к другому ресторану.")
		return nil
	}

	if err := s.restaurants.BindChat(ctx, s.db, rest.ID, chatID, chatTitle); err != nil {
		return fmt.Errorf("bind chat: %w", err)
	}
	s.send(ctx, chatID, fmt.Sprintf("Чат привязан к ресторану «%s». Отправляйте сюда голосовые отзывы.", rest.Name))
	s.log.Info("chat bound manually",
		zap.String("restaurant_id", rest.ID.String()),
		zap.Int64("chat_id", chatID),
	)
	return nil
}

func (s *Service) hint(ctx context.Context, ev Event, state string) {
	chatID := eventChatID(ev)
	if chatID == 0 {
		return
	}
	msg := "Не понял вас."
	switch state {
	case lead.StateWaitingStart:
		msg = "Отправьте /start, чтобы начать регистрацию."
	case lead.StateWaitingContact:
		msg = "Пожалуйста, поделитесь номером телефона кнопкой ниже."
	case lead.StateWaitingName:
		msg = "Напишите название вашего ресторана."
	case lead.StateWaitingScale:
		msg = "Выберите количество заведений кнопкой."
	case lead.StateWaitingConfirm:
		msg = "Подтвердите данные кнопкой или начните заново."
	}
	s.send(ctx, chatID, msg)
}

func eventChatID(ev Event) int64 {
	switch e := ev.(type) {
	case TextEvent:
		return e.ChatID
	case ContactEvent:
		return e.ChatID
	case CallbackEvent:
		return e.ChatID
	case GroupCommandEvent:
		return e.ChatID
	default:
		return 0
	}
}

func (s *Service) send(ctx context.Context, chatID int64, text string) {
	if err := s.bot.SendText(ctx, chatID, text); err != nil {
		s.log.Warn("send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (s *Service) ack(ctx context.Context, callbackID string) {
	if callbackID == "" {
		return
	}
	if err := s.bot.AnswerCallback(ctx, callbackID, ""); err != nil {
		s.log.Debug("answer callback", zap.Error(err))
	}
}

func normalizePhone(p string) string {
	var b strings.Builder
	for _, r := range p {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	// Russian numbers arrive as 8XXXXXXXXXX or 7XXXXXXXXXX
	if len(digits) == 11 && digits[0] == '8' {
		digits = "7" + digits[1:]
	}
	return "+" + digits
}
