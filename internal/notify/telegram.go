// Package notify alerts clinic staff on Telegram about new bookings.
package notify

import (
	"fmt"
	"strings"

	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/booking"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/events"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/model"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramSender is the part of the bot API used for notifications.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends booking summaries to staff chats.
type Notifier struct {
	sender  TelegramSender
	chatIDs []int64
	logger  *zerolog.Logger
}

// NewTelegramSender connects to the Bot API with token.
func NewTelegramSender(token string) (TelegramSender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot api: %w", err)
	}
	return api, nil
}

// NewNotifier sends booking notices to every chat in chatIDs through sender.
// A nil logger disables logging.
func NewNotifier(sender TelegramSender, chatIDs []int64, logger *zerolog.Logger) *Notifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Notifier{sender: sender, chatIDs: chatIDs, logger: logger}
}

// Subscribe registers the notifier on the bus.
func (n *Notifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.TypeBookingCreated, n.HandleCreated)
	bus.Subscribe(events.TypeBookingDegraded, n.HandleDegraded)
}

// HandleCreated notifies staff of a persisted booking.
func (n *Notifier) HandleCreated(ev events.Event) error {
	var b model.Booking
	if err := ev.Decode(&b); err != nil {
		return fmt.Errorf("decode booking: %w", err)
	}
	return n.broadcast(FormatBooking("🆕 حجز جديد", b))
}

// HandleDegraded warns staff that a WhatsApp booking was not saved.
func (n *Notifier) HandleDegraded(ev events.Event) error {
	var d booking.DegradedEvent
	if err := ev.Decode(&d); err != nil {
		return fmt.Errorf("decode degraded booking: %w", err)
	}
	text := FormatBooking("⚠️ حجز واتساب لم يُحفظ", d.Booking) + "\nالخطأ: " + d.Error
	return n.broadcast(text)
}

func (n *Notifier) broadcast(text string) error {
	var failed []string
	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.sender.Send(msg); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send staff notification")
			failed = append(failed, fmt.Sprint(chatID))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("notify chats %s failed", strings.Join(failed, ","))
	}
	return nil
}

// FormatBooking renders a booking for staff.
func FormatBooking(title string, b model.Booking) string {
	var sb strings.Builder
	sb.WriteString(title + "\n\n")
	fmt.Fprintf(&sb, "👨‍⚕️ %s (%s)\n", b.DoctorName, b.SpecialtyName)
	if !b.StartTime.IsZero() {
		fmt.Fprintf(&sb, "📅 %s %s\n", model.FormatArabicDate(b.StartTime), model.FormatArabicTime(b.StartTime.Format("15:04")))
	}
	fmt.Fprintf(&sb, "👤 %s\n📞 %s\n", b.UserName, b.UserPhone)
	if b.UserEmail != "" {
		fmt.Fprintf(&sb, "✉️ %s\n", b.UserEmail)
	}
	if b.Notes != "" {
		fmt.Fprintf(&sb, "📝 %s\n", b.Notes)
	}
	fmt.Fprintf(&sb, "🔖 %s · %s", booking.Reference(b.ID), b.Method)
	return sb.String()
}
