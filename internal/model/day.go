package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DayKey identifies one calendar occurrence of a schedule day.
// A weekday code alone repeats across a multi-week window, so the key pairs it
// with the absolute date.
type DayKey struct {
	Code string
	Date time.Time
}

// String renders the key as "code:unix_millis".
func (k DayKey) String() string {
	return k.Code + ":" + strconv.FormatInt(k.Date.UnixMilli(), 10)
}

// IsZero reports whether the key is unset.
func (k DayKey) IsZero() bool {
	return k.Code == "" && k.Date.IsZero()
}

// ParseDayKey is the inverse of DayKey.String.
func ParseDayKey(s string) (DayKey, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return DayKey{}, fmt.Errorf("invalid day key %q", s)
	}
	ms, err := strconv.ParseInt(s[idx+1:], 10, 64)
	if err != nil {
		return DayKey{}, fmt.Errorf("invalid day key %q: %w", s, err)
	}
	return DayKey{Code: s[:idx], Date: time.UnixMilli(ms)}, nil
}

// DayInfo is one bookable day for a doctor as produced by the availability resolver.
type DayInfo struct {
	Date    time.Time `json:"date"`
	DayName string    `json:"day_name"`
	DayCode string    `json:"day_code"`
	Times   []string  `json:"times"`
	Key     DayKey    `json:"-"`
}

// UniqueID is the stable selection key of the day.
func (d DayInfo) UniqueID() string {
	return d.Key.String()
}

// PrimaryTime returns the first time of the day, the slot offered in the
// collapsed view. Empty when the day has no times.
func (d DayInfo) PrimaryTime() string {
	if len(d.Times) == 0 {
		return ""
	}
	return d.Times[0]
}

// HasTime reports whether t is one of the day's slots.
func (d DayInfo) HasTime(t string) bool {
	for _, v := range d.Times {
		if v == t {
			return true
		}
	}
	return false
}

// SlotStart combines the day's date with an "HH:MM" time.
func (d DayInfo) SlotStart(hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", hhmm, err)
	}
	y, m, day := d.Date.Date()
	return time.Date(y, m, day, t.Hour(), t.Minute(), 0, 0, d.Date.Location()), nil
}
