package booking

import (
	"context"
	"strings"
	"time"

	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/events"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/handoff"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/metrics"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Persister stores a booking and returns the identifier of the created record.
type Persister interface {
	CreateBooking(ctx context.Context, b model.Booking) (string, error)
}

// Handoff launches the external messaging channel and returns its deep link.
type Handoff interface {
	Open(ctx context.Context, req handoff.Request) string
}

// Publisher receives domain events.
type Publisher interface {
	Emit(eventType string, payload any)
}

// Submission is everything the coordinator needs from a validated draft.
type Submission struct {
	Draft     model.BookingDraft
	Specialty model.Specialty
	Doctor    model.Doctor
	Day       model.DayInfo
	StartTime time.Time
}

// Outcome is the result of a successful or soft-successful submission.
type Outcome struct {
	Channel             model.Method        `json:"channel"`
	BookingID           string              `json:"booking_id,omitempty"`
	Reference           string              `json:"reference,omitempty"`
	HandoffURL          string              `json:"handoff_url,omitempty"`
	PersistenceDegraded bool                `json:"persistence_degraded"`
	PersistencePending  bool                `json:"persistence_pending"`
	Warning             *DegradedSubmission `json:"-"`
	// Settled delivers the whatsapp persistence result when Submit returned
	// before it was known. Nil otherwise.
	Settled <-chan PersistResult `json:"-"`
}

// PersistResult is the result of a background whatsapp persistence.
type PersistResult struct {
	BookingID string
	Err       error
}

// Settle records the persistence result on a pending outcome.
func (o *Outcome) Settle(res PersistResult) {
	o.PersistencePending = false
	o.Settled = nil
	if res.Err != nil {
		o.PersistenceDegraded = true
		o.Warning = &DegradedSubmission{Err: res.Err}
		return
	}
	o.BookingID = res.BookingID
	o.Reference = Reference(res.BookingID)
}

// HandoffEvent is the payload of booking.handoff.
type HandoffEvent struct {
	BookingID string `json:"booking_id"`
	Doctor    string `json:"doctor"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	URL       string `json:"url"`
}

// DegradedEvent is the payload of booking.degraded.
type DegradedEvent struct {
	Booking model.Booking `json:"booking"`
	Error   string        `json:"error"`
}

// Coordinator performs channel-specific submission.
type Coordinator struct {
	persister      Persister
	handoff        Handoff
	publisher      Publisher
	persistTimeout time.Duration
	handoffGrace   time.Duration
	newID          func() string
	now            func() time.Time
	logger         *zerolog.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithPublisher attaches an event publisher.
func WithPublisher(p Publisher) CoordinatorOption {
	return func(c *Coordinator) { c.publisher = p }
}

// WithPersistTimeout bounds the background persistence of the whatsapp channel.
func WithPersistTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.persistTimeout = d
		}
	}
}

// WithHandoffGrace sets how long a whatsapp Submit waits for persistence
// before returning the hand-off link with the outcome still pending.
func WithHandoffGrace(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.handoffGrace = d
		}
	}
}

// WithIDGenerator overrides booking id generation.
func WithIDGenerator(fn func() string) CoordinatorOption {
	return func(c *Coordinator) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithCoordinatorClock overrides the clock stamping created_at.
func WithCoordinatorClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCoordinator creates a submission coordinator.
func NewCoordinator(p Persister, h Handoff, logger *zerolog.Logger, opts ...CoordinatorOption) *Coordinator {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	c := &Coordinator{
		persister:      p,
		handoff:        h,
		persistTimeout: 15 * time.Second,
		handoffGrace:   2 * time.Second,
		newID:          uuid.NewString,
		now:            time.Now,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit sends the booking through channel. Online and phone perform exactly
// one persistence call and fail hard. WhatsApp opens the hand-off first and
// then persists on an independent context; a persistence failure only marks
// the outcome as degraded. If persistence has not settled within the hand-off
// grace period the outcome is returned pending and settles through Settled.
func (c *Coordinator) Submit(ctx context.Context, sub Submission, channel model.Method) (*Outcome, error) {
	if channel == "" {
		channel = model.MethodOnline
	}
	if !channel.Valid() {
		return nil, ErrUnknownMethod
	}

	b := c.buildBooking(sub, channel)
	l := c.log(ctx).With().Str("booking_id", b.ID).Str("channel", string(channel)).Logger()

	if channel != model.MethodWhatsApp {
		id, err := c.persister.CreateBooking(ctx, b)
		if err != nil {
			metrics.IncSubmission(string(channel), "failed")
			l.Error().Err(err).Msg("persist booking")
			return nil, &SubmissionError{Kind: KindPersistenceFailed, Channel: channel, Err: err}
		}
		b.ID = id
		metrics.IncSubmission(string(channel), "ok")
		c.emit(events.TypeBookingCreated, b)
		l.Info().Str("reference", Reference(id)).Msg("booking created")
		return &Outcome{Channel: channel, BookingID: id, Reference: Reference(id)}, nil
	}

	link := c.handoff.Open(ctx, handoffRequest(sub))
	c.emit(events.TypeBookingHandoff, HandoffEvent{
		BookingID: b.ID,
		Doctor:    b.DoctorName,
		Date:      sub.Day.Date.Format("2006-01-02"),
		Time:      sub.Draft.BookingTime,
		URL:       link,
	})
	out := &Outcome{Channel: channel, HandoffURL: link}

	done := make(chan PersistResult, 1)
	go c.persistAfterHandoff(ctx, b, l, done)

	timer := time.NewTimer(c.handoffGrace)
	defer timer.Stop()
	select {
	case res := <-done:
		out.Settle(res)
		return out, nil
	case <-timer.C:
	case <-ctx.Done():
	}
	out.PersistencePending = true
	out.Settled = done
	l.Info().Msg("whatsapp hand-off returned before persistence settled")
	return out, nil
}

// persistAfterHandoff stores b on a context detached from the caller and
// reports the real result through events, metrics and done.
func (c *Coordinator) persistAfterHandoff(ctx context.Context, b model.Booking, l zerolog.Logger, done chan<- PersistResult) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.persistTimeout)
	defer cancel()

	id, err := c.persister.CreateBooking(pctx, b)
	if err != nil {
		metrics.IncSubmission(string(model.MethodWhatsApp), "degraded")
		c.emit(events.TypeBookingDegraded, DegradedEvent{Booking: b, Error: err.Error()})
		l.Warn().Err(err).Msg("whatsapp hand-off done, persistence failed")
		done <- PersistResult{Err: err}
		return
	}

	b.ID = id
	metrics.IncSubmission(string(model.MethodWhatsApp), "ok")
	c.emit(events.TypeBookingCreated, b)
	l.Info().Str("reference", Reference(id)).Msg("booking created after whatsapp hand-off")
	done <- PersistResult{BookingID: id}
}

func (c *Coordinator) buildBooking(sub Submission, channel model.Method) model.Booking {
	phone, ok := NormalizePhone(sub.Draft.UserPhone)
	if !ok {
		phone = strings.TrimSpace(sub.Draft.UserPhone)
	}
	return model.Booking{
		ID:            c.newID(),
		SpecialtyID:   sub.Specialty.ID,
		SpecialtyName: sub.Specialty.Name,
		DoctorID:      sub.Doctor.ID,
		DoctorName:    sub.Doctor.Name,
		DayID:         sub.Draft.BookingDay,
		StartTime:     sub.StartTime,
		UserName:      strings.TrimSpace(sub.Draft.UserName),
		UserPhone:     phone,
		UserEmail:     sub.Draft.Email(),
		Notes:         sub.Draft.NotesText(),
		Method:        channel,
		Status:        model.StatusPending,
		CreatedAt:     c.now(),
	}
}

func handoffRequest(sub Submission) handoff.Request {
	return handoff.Request{
		DoctorName:    sub.Doctor.Name,
		SpecialtyName: sub.Specialty.Name,
		Date:          sub.Day.Date.Format("2006-01-02"),
		Time:          sub.Draft.BookingTime,
		Name:          strings.TrimSpace(sub.Draft.UserName),
		Phone:         strings.TrimSpace(sub.Draft.UserPhone),
		Email:         sub.Draft.Email(),
		Notes:         sub.Draft.NotesText(),
	}
}

func (c *Coordinator) emit(eventType string, payload any) {
	if c.publisher != nil {
		c.publisher.Emit(eventType, payload)
	}
}

func (c *Coordinator) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return c.logger
}

// Reference derives the user-facing booking reference from a record id.
func Reference(id string) string {
	s := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(s) > 8 {
		s = s[:8]
	}
	if s == "" {
		return ""
	}
	return "TAF-" + s
}
