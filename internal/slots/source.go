package slots

import (
	"context"
	"fmt"
	"time"

	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/availability"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/db"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/model"
)

// Store is the part of the database the local source reads.
type Store interface {
	GetDoctorSchedule(ctx context.Context, doctorID int64) (*db.DoctorSchedule, error)
	Holidays(ctx context.Context) (map[string]string, error)
	BookedStarts(ctx context.Context, doctorID int64, from, to time.Time) ([]time.Time, error)
}

// LocalSource serves availability from the clinic's own schedules.
type LocalSource struct {
	store  Store
	loc    *time.Location
	window int
	now    func() time.Time
}

// NewLocalSource creates a source offering windowDays days starting today in loc.
func NewLocalSource(store Store, loc *time.Location, windowDays int) *LocalSource {
	if loc == nil {
		loc = time.UTC
	}
	if windowDays <= 0 {
		windowDays = 14
	}
	return &LocalSource{store: store, loc: loc, window: windowDays, now: time.Now}
}

// FetchAvailability implements availability.Source. Holidays, days off and
// days without a free slot are omitted; a doctor without a schedule has no days.
func (s *LocalSource) FetchAvailability(ctx context.Context, doctorID int64) ([]availability.RawDay, error) {
	sched, err := s.store.GetDoctorSchedule(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	days := make([]availability.RawDay, 0)
	if sched == nil {
		return days, nil
	}

	holidays, err := s.store.Holidays(ctx)
	if err != nil {
		return nil, fmt.Errorf("load holidays: %w", err)
	}

	now := s.now().In(s.loc)
	first := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	last := first.AddDate(0, 0, s.window)

	starts, err := s.store.BookedStarts(ctx, doctorID, first, last)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	booked := make(map[int64]bool, len(starts))
	for _, t := range starts {
		booked[t.Unix()] = true
	}

	info := ScheduleInfo{
		StartTime:    sched.StartTime,
		EndTime:      sched.EndTime,
		LunchStart:   sched.LunchStart,
		LunchEnd:     sched.LunchEnd,
		SlotDuration: sched.SlotDuration,
	}

	for date := first; date.Before(last); date = date.AddDate(0, 0, 1) {
		if _, closed := holidays[date.Format("2006-01-02")]; closed {
			continue
		}
		if sched.IsDayOff(date.Weekday()) {
			continue
		}
		daySlots, err := GenerateSlots(date, info, booked, now)
		if err != nil {
			return nil, fmt.Errorf("generate slots for %s: %w", date.Format("2006-01-02"), err)
		}
		times := AvailableTimes(daySlots)
		if len(times) == 0 {
			continue
		}
		days = append(days, availability.RawDay{
			Date:    date.Format("2006-01-02"),
			DayName: model.ArabicWeekday(date.Weekday()),
			DayCode: model.WeekdayCode(date.Weekday()),
			Times:   times,
		})
	}
	return days, nil
}
