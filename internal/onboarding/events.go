package onboarding

// Event is one user interaction the funnel can react to. The concrete type
// is the discriminant; handlers switch on it per state.
type Event interface {
	isEvent()
	ActorID() int64
}

// TextEvent is a private text message, including commands.
type TextEvent struct {
	TelegramID int64
	ChatID     int64
	Text       string
	FirstName  string
}

// ContactEvent is a shared phone number.
type ContactEvent struct {
	TelegramID int64
	ChatID     int64
	Phone      string
	FirstName  string
}

// CallbackEvent is a pressed inline keyboard button.
type CallbackEvent struct {
	TelegramID int64
	ChatID     int64
	CallbackID string
	Data       string
}

// GroupCommandEvent is a command issued inside a group chat, used for the
// manual /bind fallback.
type GroupCommandEvent struct {
	TelegramID int64
	ChatID     int64
	ChatTitle  string
	Command    string
}

// BotAddedEvent fires when someone adds the bot to a group chat. When the
// adder owns a restaurant without a chat, the group is bound without an
// explicit /bind.
type BotAddedEvent struct {
	TelegramID int64
	ChatID     int64
	ChatTitle  string
}

func (e TextEvent) isEvent()         {}
func (e ContactEvent) isEvent()      {}
func (e CallbackEvent) isEvent()     {}
func (e GroupCommandEvent) isEvent() {}
func (e BotAddedEvent) isEvent()     {}

func (e TextEvent) ActorID() int64         { return e.TelegramID }
func (e ContactEvent) ActorID() int64      { return e.TelegramID }
func (e CallbackEvent) ActorID() int64     { return e.TelegramID }
func (e GroupCommandEvent) ActorID() int64 { return e.TelegramID }
func (e BotAddedEvent) ActorID() int64     { return e.TelegramID }

// Callback payloads used by the funnel keyboards.
const (
	CallbackScalePrefix = "scale:"
	CallbackConfirm     = "onboard:confirm"
	CallbackRestart     = "onboard:restart"
)

// Scale tiers offered during onboarding. The tier is informational and
// never limits anything by itself.
const (
	ScaleSingle = "1"
	ScaleSmall  = "2-5"
	ScaleLarge  = "6+"
)
