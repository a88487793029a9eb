package model

import (
	"fmt"
	"strings"
	"time"
)

var arabicWeekdays = [...]string{
	time.Sunday:    "الأحد",
	time.Monday:    "الاثنين",
	time.Tuesday:   "الثلاثاء",
	time.Wednesday: "الأربعاء",
	time.Thursday:  "الخميس",
	time.Friday:    "الجمعة",
	time.Saturday:  "السبت",
}

var arabicMonths = [...]string{
	"يناير", "فبراير", "مارس", "أبريل", "مايو", "يونيو",
	"يوليو", "أغسطس", "سبتمبر", "أكتوبر", "نوفمبر", "ديسمبر",
}

// ArabicWeekday returns the Arabic name of a weekday.
func ArabicWeekday(d time.Weekday) string {
	return arabicWeekdays[d]
}

// WeekdayCode returns the lowercase three-letter code used in schedules ("sun", "mon", ...).
func WeekdayCode(d time.Weekday) string {
	return strings.ToLower(d.String()[:3])
}

// FormatArabicDate renders t as "الأربعاء، 1 مايو 2024".
func FormatArabicDate(t time.Time) string {
	return fmt.Sprintf("%s، %d %s %d", ArabicWeekday(t.Weekday()), t.Day(), arabicMonths[t.Month()-1], t.Year())
}

// FormatArabicTime renders an "HH:MM" slot in 12h format with the ص/م suffix.
// Unparseable input is returned unchanged.
func FormatArabicTime(hhmm string) string {
	t, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		return hhmm
	}
	suffix := "ص"
	if t.Hour() >= 12 {
		suffix = "م"
	}
	h := t.Hour() % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, t.Minute(), suffix)
}
