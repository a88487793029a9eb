package booking

import (
	"errors"
	"fmt"

	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/model"
)

var (
	ErrBusy             = errors.New("submission already in progress")
	ErrNotAtConfirm     = errors.New("submit is only allowed from the confirm step")
	ErrSubmitRequired   = errors.New("confirm step is left by submitting")
	ErrFinished         = errors.New("booking already completed")
	ErrNoPreviousStep   = errors.New("no previous step")
	ErrWrongStep        = errors.New("action not allowed in current step")
	ErrUnknownSpecialty = errors.New("unknown specialty")
	ErrUnknownDoctor    = errors.New("unknown doctor")
	ErrUnknownSlot      = errors.New("unknown slot")
	ErrUnknownMethod    = errors.New("unknown booking method")
	ErrSessionNotFound  = errors.New("session not found")
)

// SubmissionKind classifies a hard submission failure.
type SubmissionKind string

const KindPersistenceFailed SubmissionKind = "persistence_failed"

// SubmissionError is a hard failure of the online or phone channel. The draft
// is left intact and the user may retry or switch channel.
type SubmissionError struct {
	Kind    SubmissionKind
	Channel model.Method
	Err     error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit via %s: %s: %v", e.Channel, e.Kind, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Retryable is always true for submission failures.
func (e *SubmissionError) Retryable() bool { return true }

// DegradedSubmission is the warning attached to a WhatsApp outcome whose
// background persistence did not succeed. It is never returned as an error.
type DegradedSubmission struct {
	Err error
}

func (d *DegradedSubmission) Error() string {
	return fmt.Sprintf("booking sent over whatsapp but not saved: %v", d.Err)
}

func (d *DegradedSubmission) Unwrap() error { return d.Err }

// Message returns the user-facing warning for lang ("ar" or "en").
func (d *DegradedSubmission) Message(lang string) string {
	if lang == "en" {
		return "Your request was sent over WhatsApp, but we could not also save it."
	}
	return "تم إرسال طلبك عبر واتساب، لكن تعذر حفظه في النظام."
}
