// Package booking implements the multi-step booking wizard: step validation,
// the per-session state machine and the submission coordinator.
package booking

import (
	"regexp"
	"strings"
	"time"

	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/model"
)

// ValidationError is a user-correctable rejection of a forward step.
type ValidationError string

const (
	ErrMissingSpecialty ValidationError = "missing_specialty"
	ErrMissingDoctor    ValidationError = "missing_doctor"
	ErrMissingSlot      ValidationError = "missing_slot"
	ErrMissingName      ValidationError = "missing_name"
	ErrBadPhone         ValidationError = "bad_phone"
	ErrBadEmail         ValidationError = "bad_email"
	ErrStaleSlot        ValidationError = "stale_slot"
)

func (e ValidationError) Error() string { return string(e) }

// Code returns the stable machine-readable code.
func (e ValidationError) Code() string { return string(e) }

var validationMessages = map[string]map[ValidationError]string{
	"ar": {
		ErrMissingSpecialty: "يرجى اختيار التخصص",
		ErrMissingDoctor:    "يرجى اختيار الطبيب",
		ErrMissingSlot:      "يرجى اختيار اليوم والموعد",
		ErrMissingName:      "يرجى إدخال الاسم",
		ErrBadPhone:         "رقم الهاتف غير صحيح",
		ErrBadEmail:         "البريد الإلكتروني غير صحيح",
		ErrStaleSlot:        "هذا الموعد لم يعد متاحاً، يرجى اختيار موعد آخر",
	},
	"en": {
		ErrMissingSpecialty: "Please choose a specialty",
		ErrMissingDoctor:    "Please choose a doctor",
		ErrMissingSlot:      "Please choose a day and time",
		ErrMissingName:      "Please enter your name",
		ErrBadPhone:         "Invalid phone number",
		ErrBadEmail:         "Invalid email address",
		ErrStaleSlot:        "This slot has already passed, please pick another one",
	},
}

// Message returns the localized text for lang ("ar" or "en"), Arabic by default.
func (e ValidationError) Message(lang string) string {
	msgs, ok := validationMessages[strings.ToLower(lang)]
	if !ok {
		msgs = validationMessages["ar"]
	}
	if m, ok := msgs[e]; ok {
		return m
	}
	return string(e)
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CanAdvance reports whether the draft may leave step going forward. It is
// pure and returns nil or a ValidationError. doctor is the directory record of
// draft.DoctorID when known.
func CanAdvance(step Step, d model.BookingDraft, doctor *model.Doctor) error {
	switch step {
	case StepSpecialty:
		if d.SpecialtyID == nil {
			return ErrMissingSpecialty
		}
	case StepDoctor:
		if d.DoctorID == nil {
			return ErrMissingDoctor
		}
		if d.SpecialtyID != nil && (doctor == nil || doctor.SpecialtyID != *d.SpecialtyID) {
			return ErrMissingDoctor
		}
	case StepAppointment:
		if strings.TrimSpace(d.BookingDay) == "" || strings.TrimSpace(d.BookingTime) == "" {
			return ErrMissingSlot
		}
	case StepContact:
		if strings.TrimSpace(d.UserName) == "" {
			return ErrMissingName
		}
		if !ValidPhone(d.UserPhone) {
			return ErrBadPhone
		}
		if !ValidEmail(d.Email()) {
			return ErrBadEmail
		}
	case StepConfirm:
		for _, s := range []Step{StepSpecialty, StepDoctor, StepAppointment, StepContact} {
			if err := CanAdvance(s, d, doctor); err != nil {
				return err
			}
		}
	}
	return nil
}

// CheckSlotFresh rejects a slot whose start is not after now.
func CheckSlotFresh(day model.DayInfo, hhmm string, now time.Time) error {
	start, err := day.SlotStart(hhmm)
	if err != nil {
		return ErrMissingSlot
	}
	if !start.After(now) {
		return ErrStaleSlot
	}
	return nil
}

// NormalizePhone strips separators (space, "-", ".", "(", ")") and keeps a
// leading "+". Arabic-Indic digits are mapped to ASCII. Any other character
// rejects the number. The result has between 10 and 15 digits or ok is false.
func NormalizePhone(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	plus := strings.HasPrefix(s, "+")
	if plus {
		s = s[1:]
	}
	digits, ok := phoneDigits(s)
	if !ok || len(digits) < 10 || len(digits) > 15 {
		return "", false
	}
	if plus {
		return "+" + digits, true
	}
	return digits, true
}

// ValidPhone reports whether raw normalizes to a 10-15 digit number.
func ValidPhone(raw string) bool {
	_, ok := NormalizePhone(raw)
	return ok
}

// ValidEmail accepts an empty address or a local@domain.tld shape.
func ValidEmail(raw string) bool {
	s := strings.TrimSpace(raw)
	return s == "" || emailRe.MatchString(s)
}

func phoneDigits(s string) (string, bool) {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= '\u0660' && r <= '\u0669':
			b.WriteRune('0' + (r - '\u0660'))
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return "", false
		}
	}
	return b.String(), true
}
