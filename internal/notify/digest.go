package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/model"
)

// BookingLister reads bookings whose slot starts in [from, to).
type BookingLister interface {
	ListBookings(ctx context.Context, from, to time.Time) ([]model.Booking, error)
}

// Digest sends staff a daily list of the next day's appointments.
type Digest struct {
	notifier *Notifier
	store    BookingLister
	loc      *time.Location
	hour     int
	now      func() time.Time
}

// NewDigest sends tomorrow's bookings from store at hour in loc. An hour
// outside 0-23 falls back to 20.
func NewDigest(n *Notifier, store BookingLister, loc *time.Location, hour int) *Digest {
	if loc == nil {
		loc = time.UTC
	}
	if hour < 0 || hour > 23 {
		hour = 20
	}
	return &Digest{notifier: n, store: store, loc: loc, hour: hour, now: time.Now}
}

// Start waits for the next digest hour, then sends once a day until ctx ends.
func (d *Digest) Start(ctx context.Context) {
	timer := time.NewTimer(untilNextHour(d.now().In(d.loc), d.hour))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := d.SendTomorrow(ctx); err != nil {
				d.notifier.logger.Error().Err(err).Msg("daily digest")
			}
			timer.Reset(untilNextHour(d.now().In(d.loc), d.hour))
		}
	}
}

// SendTomorrow broadcasts the active bookings of the next clinic day.
func (d *Digest) SendTomorrow(ctx context.Context) error {
	now := d.now().In(d.loc)
	start := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, d.loc)
	end := start.AddDate(0, 0, 1)

	bookings, err := d.store.ListBookings(ctx, start, end)
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}
	active := bookings[:0:0]
	for _, b := range bookings {
		if shouldRemindStatus(b.Status) {
			active = append(active, b)
		}
	}
	return d.notifier.broadcast(FormatDigest(start, active, d.loc))
}

func shouldRemindStatus(status string) bool {
	switch status {
	case model.StatusPending, model.StatusConfirmed:
		return true
	}
	return false
}

// FormatDigest renders one line per booking grouped under the day header.
func FormatDigest(day time.Time, bookings []model.Booking, loc *time.Location) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 مواعيد %s\n", model.FormatArabicDate(day))
	if len(bookings) == 0 {
		sb.WriteString("\nلا توجد مواعيد.")
		return sb.String()
	}
	for _, b := range bookings {
		t := b.StartTime.In(loc).Format("15:04")
		fmt.Fprintf(&sb, "\n%s · %s · %s (%s)", model.FormatArabicTime(t), b.DoctorName, b.UserName, b.UserPhone)
	}
	return sb.String()
}

func untilNextHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
