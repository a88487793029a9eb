// Package handoff composes the pre-filled WhatsApp message a patient sends to
// the clinic when booking through the messaging channel.
package handoff

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// Request carries the booking details included in the hand-off message.
type Request struct {
	DoctorName    string
	SpecialtyName string
	Date          string
	Time          string
	Name          string
	Phone         string
	Email         string
	Notes         string
}

// WhatsApp builds wa.me deep links towards the clinic's number.
type WhatsApp struct {
	phone  string
	logger *zerolog.Logger
}

// NewWhatsApp creates a hand-off towards clinicPhone (any formatting; digits are kept).
func NewWhatsApp(clinicPhone string, logger *zerolog.Logger) *WhatsApp {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &WhatsApp{phone: digitsOnly(clinicPhone), logger: logger}
}

// Open returns the deep link the client must open. It never fails: the
// hand-off is the user's primary action and does not depend on any backend.
func (w *WhatsApp) Open(ctx context.Context, req Request) string {
	link := w.Link(req)
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		l = w.logger
	}
	l.Info().
		Str("doctor", req.DoctorName).
		Str("date", req.Date).
		Str("time", req.Time).
		Msg("whatsapp hand-off opened")
	return link
}

// Link builds the deep link without logging.
func (w *WhatsApp) Link(req Request) string {
	text := url.QueryEscape(Message(req))
	text = strings.ReplaceAll(text, "+", "%20")
	return fmt.Sprintf("https://wa.me/%s?text=%s", w.phone, text)
}

// Message composes the pre-filled Arabic message. Email and notes are
// included only when present.
func Message(req Request) string {
	var b strings.Builder
	b.WriteString("مرحباً، أود حجز موعد:\n")
	fmt.Fprintf(&b, "الطبيب: %s\n", req.DoctorName)
	if req.SpecialtyName != "" {
		fmt.Fprintf(&b, "التخصص: %s\n", req.SpecialtyName)
	}
	fmt.Fprintf(&b, "التاريخ: %s\n", req.Date)
	fmt.Fprintf(&b, "الوقت: %s\n", req.Time)
	fmt.Fprintf(&b, "الاسم: %s\n", req.Name)
	fmt.Fprintf(&b, "الهاتف: %s", req.Phone)
	if req.Email != "" {
		fmt.Fprintf(&b, "\nالبريد الإلكتروني: %s", req.Email)
	}
	if req.Notes != "" {
		fmt.Fprintf(&b, "\nملاحظات: %s", req.Notes)
	}
	return b.String()
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
