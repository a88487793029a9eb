package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/availability"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/metrics"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/model"

	"github.com/rs/zerolog"
)

// Directory looks up reference data. A nil record with a nil error means not found.
type Directory interface {
	GetSpecialty(ctx context.Context, id int64) (*model.Specialty, error)
	GetDoctor(ctx context.Context, id int64) (*model.Doctor, error)
}

// AvailabilityResolver returns the bookable days of a doctor.
type AvailabilityResolver interface {
	Resolve(ctx context.Context, doctorID int64) ([]model.DayInfo, error)
}

// Submitter performs the channel-specific submission.
type Submitter interface {
	Submit(ctx context.Context, sub Submission, channel model.Method) (*Outcome, error)
}

// AvailabilityState is the lifecycle of the appointment step's data.
type AvailabilityState string

const (
	AvailabilityNone    AvailabilityState = "none"
	AvailabilityPending AvailabilityState = "pending"
	AvailabilityReady   AvailabilityState = "ready"
	AvailabilityEmpty   AvailabilityState = "empty"
	AvailabilityFailed  AvailabilityState = "failed"
)

// Seed preselects a specialty and/or doctor for a session started from an
// external link.
type Seed struct {
	SpecialtyID int64 `json:"specialty_id"`
	DoctorID    int64 `json:"doctor_id"`
}

// Contact carries the patient's details as typed.
type Contact struct {
	Name  string  `json:"name"`
	Phone string  `json:"phone"`
	Email *string `json:"email"`
	Notes *string `json:"notes"`
}

// AvailabilityView is a snapshot of the appointment data.
type AvailabilityView struct {
	State         AvailabilityState `json:"state"`
	DoctorID      int64             `json:"doctor_id,omitempty"`
	Days          []model.DayInfo   `json:"days"`
	Err           error             `json:"-"`
	SelectedIndex int               `json:"selected_index"`
}

// View is a read-only snapshot of the wizard.
type View struct {
	Step         Step                 `json:"step"`
	Draft        model.BookingDraft   `json:"draft"`
	Specialty    *model.Specialty     `json:"specialty,omitempty"`
	Doctor       *model.Doctor        `json:"doctor,omitempty"`
	Availability AvailabilityView     `json:"availability"`
	Submitting   bool                 `json:"submitting"`
	LastError    error                `json:"-"`
	Result       *model.BookingResult `json:"result,omitempty"`
	Outcome      *Outcome             `json:"outcome,omitempty"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

type availabilityData struct {
	state    AvailabilityState
	doctorID int64
	gen      uint64
	days     []model.DayInfo
	err      error
}

// Wizard is one booking session. All methods are safe for concurrent use;
// I/O runs with the lock released and results are applied only when they
// still match the selected doctor and the latest fetch generation.
type Wizard struct {
	mu sync.Mutex

	fsm       *FSM
	directory Directory
	resolver  AvailabilityResolver
	submitter Submitter

	now          func() time.Time
	fetchTimeout time.Duration
	logger       *zerolog.Logger
	fetches      sync.WaitGroup
	settles      sync.WaitGroup

	step        Step
	draft       model.BookingDraft
	specialty   *model.Specialty
	doctor      *model.Doctor
	avail       availabilityData
	gen         uint64
	selectedDay *model.DayInfo
	submitting  bool
	lastErr     error
	result      *model.BookingResult
	outcome     *Outcome
	updatedAt   time.Time
}

// WizardOption configures a Wizard.
type WizardOption func(*Wizard)

// WithWizardClock overrides the clock used for slot freshness and activity.
func WithWizardClock(now func() time.Time) WizardOption {
	return func(w *Wizard) {
		if now != nil {
			w.now = now
		}
	}
}

// WithFetchTimeout bounds a single availability fetch.
func WithFetchTimeout(d time.Duration) WizardOption {
	return func(w *Wizard) {
		if d > 0 {
			w.fetchTimeout = d
		}
	}
}

// WithWizardLogger sets the logger used by background fetches.
func WithWizardLogger(l *zerolog.Logger) WizardOption {
	return func(w *Wizard) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWizard creates a wizard at the specialty step.
func NewWizard(dir Directory, resolver AvailabilityResolver, submitter Submitter, opts ...WizardOption) *Wizard {
	nop := zerolog.Nop()
	w := &Wizard{
		fsm:          NewFSM(),
		directory:    dir,
		resolver:     resolver,
		submitter:    submitter,
		now:          time.Now,
		fetchTimeout: 20 * time.Second,
		logger:       &nop,
		step:         StepSpecialty,
		avail:        availabilityData{state: AvailabilityNone},
	}
	for _, opt := range opts {
		opt(w)
	}
	w.updatedAt = w.now()
	return w
}

// Seed starts the wizard past the steps already chosen by the caller: doctor
// when only a specialty is given, appointment when a doctor is given.
func (w *Wizard) Seed(ctx context.Context, seed Seed) error {
	if seed.SpecialtyID <= 0 && seed.DoctorID <= 0 {
		return nil
	}
	var (
		spec *model.Specialty
		doc  *model.Doctor
		err  error
	)
	if seed.DoctorID > 0 {
		if doc, err = w.lookupDoctor(ctx, seed.DoctorID); err != nil {
			return err
		}
		if seed.SpecialtyID > 0 && seed.SpecialtyID != doc.SpecialtyID {
			return ErrUnknownDoctor
		}
		seed.SpecialtyID = doc.SpecialtyID
	}
	if spec, err = w.lookupSpecialty(ctx, seed.SpecialtyID); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
	w.specialty = spec
	w.draft.SpecialtyID = ptr(spec.ID)
	w.step = StepDoctor
	if doc != nil {
		w.doctor = doc
		w.draft.DoctorID = ptr(doc.ID)
		w.step = StepAppointment
		w.startFetchLocked(ctx)
	}
	return nil
}

// SelectSpecialty sets the specialty. Changing it once a doctor step was
// reached clears the doctor and the appointment and returns to the doctor step.
func (w *Wizard) SelectSpecialty(ctx context.Context, id int64) error {
	spec, err := w.lookupSpecialty(ctx, id)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editableLocked(); err != nil {
		return err
	}
	w.touchLocked()
	if w.draft.SpecialtyID != nil && *w.draft.SpecialtyID == spec.ID {
		return nil
	}
	w.specialty = spec
	w.draft.SpecialtyID = ptr(spec.ID)
	if w.step.AtLeast(StepDoctor) || w.draft.DoctorID != nil {
		w.doctor = nil
		w.draft.DoctorID = nil
		w.clearSlotLocked()
		w.invalidateAvailabilityLocked()
		if w.step.AtLeast(StepDoctor) {
			w.step = StepDoctor
		}
	}
	return nil
}

// SelectDoctor sets the doctor. Changing it once the appointment step was
// reached clears the slot, drops the availability result and refetches.
func (w *Wizard) SelectDoctor(ctx context.Context, id int64) error {
	doc, err := w.lookupDoctor(ctx, id)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editableLocked(); err != nil {
		return err
	}
	if w.draft.SpecialtyID != nil && *w.draft.SpecialtyID != doc.SpecialtyID {
		return ErrUnknownDoctor
	}
	w.touchLocked()
	if w.draft.DoctorID != nil && *w.draft.DoctorID == doc.ID {
		return nil
	}
	if w.draft.SpecialtyID == nil {
		w.draft.SpecialtyID = ptr(doc.SpecialtyID)
	}
	w.doctor = doc
	w.draft.DoctorID = ptr(doc.ID)
	w.clearSlotLocked()
	w.invalidateAvailabilityLocked()
	if w.step.AtLeast(StepAppointment) {
		w.step = StepAppointment
		w.startFetchLocked(ctx)
	}
	return nil
}

// SelectSlot picks a day by its unique id and one of its times. An empty
// time selects the day's primary slot.
func (w *Wizard) SelectSlot(dayID, hhmm string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepAppointment {
		return ErrWrongStep
	}
	w.touchLocked()
	if w.avail.state != AvailabilityReady {
		return ErrUnknownSlot
	}
	for i := range w.avail.days {
		day := w.avail.days[i]
		if day.UniqueID() != dayID {
			continue
		}
		if hhmm == "" {
			hhmm = day.PrimaryTime()
		}
		if !day.HasTime(hhmm) {
			return ErrUnknownSlot
		}
		if _, err := day.SlotStart(hhmm); err != nil {
			return ErrUnknownSlot
		}
		w.draft.BookingDay = dayID
		w.draft.BookingTime = hhmm
		w.selectedDay = &day
		w.lastErr = nil
		return nil
	}
	return ErrUnknownSlot
}

// UpdateContact stores the contact details as typed. They are validated when
// leaving the contact step.
func (w *Wizard) UpdateContact(c Contact) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editableLocked(); err != nil {
		return err
	}
	w.touchLocked()
	w.draft.UserName = c.Name
	w.draft.UserPhone = c.Phone
	w.draft.UserEmail = c.Email
	w.draft.Notes = c.Notes
	return nil
}

// SetMethod chooses the submission channel.
func (w *Wizard) SetMethod(m model.Method) error {
	if !m.Valid() {
		return ErrUnknownMethod
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editableLocked(); err != nil {
		return err
	}
	w.touchLocked()
	w.draft.BookingMethod = m
	return nil
}

// Next advances one step when the current step validates. Entering the
// appointment step starts an availability fetch.
func (w *Wizard) Next(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editableLocked(); err != nil {
		return err
	}
	w.touchLocked()
	if w.step == StepConfirm {
		return ErrSubmitRequired
	}
	if err := CanAdvance(w.step, w.draft, w.doctor); err != nil {
		w.rejectLocked(err)
		return err
	}
	to, ok := w.fsm.Next(w.step)
	if !ok {
		return ErrWrongStep
	}
	if w.step == StepContact {
		if phone, ok := NormalizePhone(w.draft.UserPhone); ok {
			w.draft.UserPhone = phone
		}
	}
	w.step = to
	w.lastErr = nil
	if to == StepAppointment {
		w.startFetchLocked(ctx)
	}
	return nil
}

// Previous goes back one step without validation.
func (w *Wizard) Previous() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editableLocked(); err != nil {
		return err
	}
	w.touchLocked()
	to, ok := w.fsm.Previous(w.step)
	if !ok {
		return ErrNoPreviousStep
	}
	w.step = to
	w.lastErr = nil
	return nil
}

// RetryAvailability refetches the selected doctor's days. It is ignored while
// a fetch for the same doctor is pending.
func (w *Wizard) RetryAvailability(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepAppointment {
		return ErrWrongStep
	}
	w.touchLocked()
	w.startFetchLocked(ctx)
	return nil
}

// Reset discards the draft and returns to the specialty step.
func (w *Wizard) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return ErrBusy
	}
	w.touchLocked()
	w.resetLocked()
	return nil
}

// Submit leaves the confirm step through the coordinator. A second call while
// the first is pending returns ErrBusy with no side effect. On a hard failure
// the wizard stays at confirm with the draft intact.
func (w *Wizard) Submit(ctx context.Context) (*Outcome, error) {
	w.mu.Lock()
	if w.step != StepConfirm {
		w.mu.Unlock()
		return nil, ErrNotAtConfirm
	}
	if w.submitting {
		w.mu.Unlock()
		return nil, ErrBusy
	}
	w.touchLocked()
	if err := CanAdvance(StepConfirm, w.draft, w.doctor); err != nil {
		w.rejectLocked(err)
		w.mu.Unlock()
		return nil, err
	}
	if w.selectedDay == nil || w.specialty == nil || w.doctor == nil {
		w.rejectLocked(ErrMissingSlot)
		w.mu.Unlock()
		return nil, ErrMissingSlot
	}
	if err := CheckSlotFresh(*w.selectedDay, w.draft.BookingTime, w.now()); err != nil {
		w.rejectLocked(err)
		w.mu.Unlock()
		return nil, err
	}
	start, _ := w.selectedDay.SlotStart(w.draft.BookingTime)
	sub := Submission{
		Draft:     w.draft.Clone(),
		Specialty: *w.specialty,
		Doctor:    *w.doctor,
		Day:       *w.selectedDay,
		StartTime: start,
	}
	method := w.draft.BookingMethod
	if method == "" {
		method = model.MethodOnline
	}
	w.submitting = true
	w.lastErr = nil
	w.mu.Unlock()

	out, err := w.submitter.Submit(ctx, sub, method)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	w.touchLocked()
	if err != nil {
		w.lastErr = err
		return nil, err
	}
	kept := *out
	w.outcome = &kept
	w.result = &model.BookingResult{
		Reference:     out.Reference,
		FormattedDate: model.FormatArabicDate(sub.Day.Date),
		FormattedTime: model.FormatArabicTime(sub.Draft.BookingTime),
	}
	w.step = StepDone
	if out.Settled != nil {
		w.awaitPersistenceLocked(out.Settled)
	}
	return out, nil
}

// awaitPersistenceLocked attaches a late whatsapp persistence result to the
// outcome and result, unless the wizard was reset in the meantime.
func (w *Wizard) awaitPersistenceLocked(settled <-chan PersistResult) {
	w.settles.Add(1)
	go func() {
		defer w.settles.Done()
		res := <-settled

		w.mu.Lock()
		defer w.mu.Unlock()
		if w.outcome == nil || w.outcome.Settled != settled {
			return
		}
		w.outcome.Settle(res)
		if w.result != nil {
			w.result.Reference = w.outcome.Reference
		}
		w.touchLocked()
	}()
}

// View returns a snapshot safe to hand to a renderer.
func (w *Wizard) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	v := View{
		Step:       w.step,
		Draft:      w.draft.Clone(),
		Submitting: w.submitting,
		LastError:  w.lastErr,
		UpdatedAt:  w.updatedAt,
		Availability: AvailabilityView{
			State:         w.avail.state,
			DoctorID:      w.avail.doctorID,
			Days:          append([]model.DayInfo(nil), w.avail.days...),
			Err:           w.avail.err,
			SelectedIndex: -1,
		},
	}
	if w.specialty != nil {
		s := *w.specialty
		v.Specialty = &s
	}
	if w.doctor != nil {
		d := *w.doctor
		v.Doctor = &d
	}
	for i, d := range w.avail.days {
		if d.UniqueID() == w.draft.BookingDay {
			v.Availability.SelectedIndex = i
			break
		}
	}
	if w.result != nil {
		r := *w.result
		v.Result = &r
	}
	if w.outcome != nil {
		o := *w.outcome
		v.Outcome = &o
	}
	return v
}

// LastActivity returns the time of the last action.
func (w *Wizard) LastActivity() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.updatedAt
}

// Wait blocks until in-flight availability fetches and pending whatsapp
// persistence have returned.
func (w *Wizard) Wait() {
	w.fetches.Wait()
	w.settles.Wait()
}

func (w *Wizard) startFetchLocked(ctx context.Context) {
	if w.draft.DoctorID == nil {
		return
	}
	doctorID := *w.draft.DoctorID
	if w.avail.state == AvailabilityPending && w.avail.doctorID == doctorID {
		return
	}
	w.gen++
	gen := w.gen
	w.avail = availabilityData{state: AvailabilityPending, doctorID: doctorID, gen: gen}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.fetchTimeout)
	w.fetches.Add(1)
	go func() {
		defer w.fetches.Done()
		defer cancel()
		days, err := w.resolver.Resolve(fctx, doctorID)
		w.applyAvailability(doctorID, gen, days, err)
	}()
}

func (w *Wizard) applyAvailability(doctorID int64, gen uint64, days []model.DayInfo, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	current := int64(0)
	if w.draft.DoctorID != nil {
		current = *w.draft.DoctorID
	}
	if gen != w.avail.gen || doctorID != w.avail.doctorID || doctorID != current {
		metrics.IncStaleAvailability()
		w.logger.Debug().Int64("doctor_id", doctorID).Uint64("gen", gen).Msg("discarding stale availability")
		return
	}
	if err != nil {
		w.avail = availabilityData{state: AvailabilityFailed, doctorID: doctorID, gen: gen, err: err}
		var aerr *availability.Error
		if !errors.As(err, &aerr) {
			w.avail.err = &availability.Error{DoctorID: doctorID, Err: err}
		}
		return
	}
	state := AvailabilityReady
	if len(days) == 0 {
		state = AvailabilityEmpty
	}
	w.avail = availabilityData{state: state, doctorID: doctorID, gen: gen, days: days}
	w.reconcileSlotLocked()
}

// reconcileSlotLocked keeps the previous selection only if its day and time
// are still offered.
func (w *Wizard) reconcileSlotLocked() {
	if w.draft.BookingDay == "" {
		return
	}
	for i := range w.avail.days {
		day := w.avail.days[i]
		if day.UniqueID() == w.draft.BookingDay && day.HasTime(w.draft.BookingTime) {
			w.selectedDay = &day
			return
		}
	}
	w.clearSlotLocked()
}

func (w *Wizard) invalidateAvailabilityLocked() {
	w.gen++
	w.avail = availabilityData{state: AvailabilityNone, gen: w.gen}
}

func (w *Wizard) clearSlotLocked() {
	w.draft.ClearSlot()
	w.selectedDay = nil
}

func (w *Wizard) resetLocked() {
	w.step = StepSpecialty
	w.draft = model.BookingDraft{}
	w.specialty = nil
	w.doctor = nil
	w.selectedDay = nil
	w.lastErr = nil
	w.result = nil
	w.outcome = nil
	w.invalidateAvailabilityLocked()
}

func (w *Wizard) editableLocked() error {
	if w.step == StepDone {
		return ErrFinished
	}
	if w.submitting {
		return ErrBusy
	}
	return nil
}

func (w *Wizard) rejectLocked(err error) {
	w.lastErr = err
	var verr ValidationError
	if errors.As(err, &verr) {
		metrics.IncValidationReject(string(w.step), verr.Code())
	}
}

func (w *Wizard) touchLocked() {
	w.updatedAt = w.now()
}

func (w *Wizard) lookupSpecialty(ctx context.Context, id int64) (*model.Specialty, error) {
	if id <= 0 {
		return nil, ErrUnknownSpecialty
	}
	spec, err := w.directory.GetSpecialty(ctx, id)
	if err != nil {
		return nil, err
	}
	if spec == nil {
		return nil, ErrUnknownSpecialty
	}
	return spec, nil
}

func (w *Wizard) lookupDoctor(ctx context.Context, id int64) (*model.Doctor, error) {
	if id <= 0 {
		return nil, ErrUnknownDoctor
	}
	doc, err := w.directory.GetDoctor(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrUnknownDoctor
	}
	return doc, nil
}

func ptr(v int64) *int64 { return &v }
