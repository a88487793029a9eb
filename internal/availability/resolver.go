// Package availability turns a doctor's raw schedule into bookable days.
package availability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/metrics"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/model"

	"github.com/rs/zerolog"
)

// ErrNoDoctor is returned when availability is requested without a doctor.
var ErrNoDoctor = errors.New("no doctor selected")

// RawDay is a day as delivered by a schedule source, before normalization.
type RawDay struct {
	Date    string   `json:"date"`
	DayName string   `json:"day_name"`
	DayCode string   `json:"day_code"`
	Times   []string `json:"times"`
}

// Source is the external schedule source.
type Source interface {
	FetchAvailability(ctx context.Context, doctorID int64) ([]RawDay, error)
}

// Error reports a transport or parse failure while fetching availability.
type Error struct {
	DoctorID int64
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch availability for doctor %d: %v", e.DoctorID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable is always true; retry is a user-initiated re-invocation.
func (e *Error) Retryable() bool { return true }

var timeLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04 PM",
	"3:04PM",
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"02/01/2006",
}

// Resolver resolves availability for a doctor through a Source.
type Resolver struct {
	source Source
	loc    *time.Location
	now    func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLocation sets the clinic time zone used to interpret dates.
func WithLocation(loc *time.Location) Option {
	return func(r *Resolver) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithClock overrides the clock used for coercing unusable dates.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver creates a resolver over source.
func NewResolver(source Source, opts ...Option) *Resolver {
	r := &Resolver{
		source: source,
		loc:    time.Local,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches the doctor's upcoming days once and normalizes them.
// Day and time ordering of the source is preserved. An empty, non-nil slice
// means the doctor has no availability.
func (r *Resolver) Resolve(ctx context.Context, doctorID int64) ([]model.DayInfo, error) {
	if doctorID <= 0 {
		return nil, ErrNoDoctor
	}
	l := zerolog.Ctx(ctx)

	raw, err := r.source.FetchAvailability(ctx, doctorID)
	if err != nil {
		metrics.IncAvailabilityFetch("error")
		l.Warn().Err(err).Int64("doctor_id", doctorID).Msg("availability fetch failed")
		return nil, &Error{DoctorID: doctorID, Err: err}
	}

	days := r.normalize(raw, l)
	if len(days) == 0 {
		metrics.IncAvailabilityFetch("empty")
	} else {
		metrics.IncAvailabilityFetch("ok")
	}
	l.Debug().Int64("doctor_id", doctorID).Int("days", len(days)).Msg("availability resolved")
	return days, nil
}

func (r *Resolver) normalize(raw []RawDay, l *zerolog.Logger) []model.DayInfo {
	now := r.now().In(r.loc)
	days := make([]model.DayInfo, 0, len(raw))
	index := make(map[string]int, len(raw))

	for _, rd := range raw {
		date := r.parseDate(rd.Date, now)
		code := strings.ToLower(strings.TrimSpace(rd.DayCode))
		if code == "" {
			code = strings.ToLower(date.Weekday().String()[:3])
		}
		key := model.DayKey{Code: code, Date: date}
		id := key.String()

		if i, ok := index[id]; ok {
			days[i].Times = mergeTimes(days[i].Times, normalizeTimes(rd.Times, l))
			continue
		}

		name := strings.TrimSpace(rd.DayName)
		if name == "" {
			name = date.Weekday().String()
		}
		index[id] = len(days)
		days = append(days, model.DayInfo{
			Date:    date,
			DayName: name,
			DayCode: code,
			Times:   mergeTimes(nil, normalizeTimes(rd.Times, l)),
			Key:     key,
		})
	}
	return days
}

// parseDate coerces a missing or unparseable date to now so the day stays renderable.
func (r *Resolver) parseDate(s string, now time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return now
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, r.loc); err == nil {
			return t
		}
	}
	return now
}

// normalizeTimes renders every slot as "HH:MM". Slots in no known layout are
// dropped since they could never be submitted.
func normalizeTimes(times []string, l *zerolog.Logger) []string {
	out := make([]string, 0, len(times))
	for _, raw := range times {
		s := strings.ToUpper(strings.TrimSpace(raw))
		if s == "" {
			continue
		}
		parsed := false
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				out = append(out, t.Format("15:04"))
				parsed = true
				break
			}
		}
		if !parsed {
			l.Warn().Str("time", raw).Msg("dropping unparseable slot time")
		}
	}
	return out
}

func mergeTimes(dst, src []string) []string {
	if dst == nil {
		dst = make([]string, 0, len(src))
	}
	seen := make(map[string]struct{}, len(dst)+len(src))
	for _, t := range dst {
		seen[t] = struct{}{}
	}
	for _, t := range src {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		dst = append(dst, t)
	}
	return dst
}
