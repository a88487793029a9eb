package model

import (
	"strings"
	"time"
)

// Method is the channel the patient chose to complete the booking.
type Method string

const (
	MethodOnline   Method = "online"
	MethodWhatsApp Method = "whatsapp"
	MethodPhone    Method = "phone"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	switch m {
	case MethodOnline, MethodWhatsApp, MethodPhone:
		return true
	}
	return false
}

// BookingDraft is the in-progress booking held by the wizard.
type BookingDraft struct {
	SpecialtyID   *int64  `json:"specialty_id"`
	DoctorID      *int64  `json:"doctor_id"`
	BookingDay    string  `json:"booking_day"`
	BookingTime   string  `json:"booking_time"`
	UserName      string  `json:"user_name"`
	UserPhone     string  `json:"user_phone"`
	UserEmail     *string `json:"user_email"`
	Notes         *string `json:"notes"`
	BookingMethod Method  `json:"booking_method"`
}

// ClearSlot drops the selected day and time.
func (d *BookingDraft) ClearSlot() {
	d.BookingDay = ""
	d.BookingTime = ""
}

// Email returns the trimmed email or "".
func (d *BookingDraft) Email() string {
	if d.UserEmail == nil {
		return ""
	}
	return strings.TrimSpace(*d.UserEmail)
}

// NotesText returns the trimmed notes or "".
func (d *BookingDraft) NotesText() string {
	if d.Notes == nil {
		return ""
	}
	return strings.TrimSpace(*d.Notes)
}

// Clone returns a deep copy so callers cannot mutate the wizard's draft.
func (d BookingDraft) Clone() BookingDraft {
	out := d
	out.SpecialtyID = cloneInt(d.SpecialtyID)
	out.DoctorID = cloneInt(d.DoctorID)
	out.UserEmail = cloneString(d.UserEmail)
	out.Notes = cloneString(d.Notes)
	return out
}

func cloneInt(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// BookingResult is rendered on the success screen.
type BookingResult struct {
	Reference     string `json:"reference"`
	FormattedDate string `json:"formatted_date"`
	FormattedTime string `json:"formatted_time"`
}

// Booking status values.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Booking is the record handed to the booking store.
type Booking struct {
	ID            string    `json:"id"`
	SpecialtyID   int64     `json:"specialty_id"`
	SpecialtyName string    `json:"specialty_name"`
	DoctorID      int64     `json:"doctor_id"`
	DoctorName    string    `json:"doctor_name"`
	DayID         string    `json:"day_id"`
	StartTime     time.Time `json:"start_time"`
	UserName      string    `json:"user_name"`
	UserPhone     string    `json:"user_phone"`
	UserEmail     string    `json:"user_email,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	Method        Method    `json:"method"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}
