package booking

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/events"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/handoff"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, s)
}

func (c *callLog) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type mockPersister struct {
	mock.Mock
	log *callLog
}

func (m *mockPersister) CreateBooking(ctx context.Context, b model.Booking) (string, error) {
	if m.log != nil {
		m.log.add("persist")
	}
	args := m.Called(ctx, b)
	return args.String(0), args.Error(1)
}

type recordingHandoff struct {
	log  *callLog
	mu   sync.Mutex
	reqs []handoff.Request
}

func (h *recordingHandoff) Open(_ context.Context, req handoff.Request) string {
	if h.log != nil {
		h.log.add("handoff")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reqs = append(h.reqs, req)
	return "https://wa.me/201000000000?text=x"
}

func (h *recordingHandoff) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.reqs)
}

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Emit(eventType string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, eventType)
}

func (p *recordingPublisher) list() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.types...)
}

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func ahmedSubmission() Submission {
	loc := time.FixedZone("EET", 2*3600)
	date := time.Date(2024, 5, 1, 0, 0, 0, 0, loc)
	day := model.DayInfo{
		Date:    date,
		DayName: "الأربعاء",
		DayCode: "wed",
		Times:   []string{"10:00"},
		Key:     model.DayKey{Code: "wed", Date: date},
	}
	return Submission{
		Draft: model.BookingDraft{
			SpecialtyID: ptr(10),
			DoctorID:    ptr(1),
			BookingDay:  day.UniqueID(),
			BookingTime: "10:00",
			UserName:    " Mona ",
			UserPhone:   "+20 109 100 3965",
			Notes:       strPtr("first visit"),
		},
		Specialty: model.Specialty{ID: 10, Name: "باطنة"},
		Doctor:    model.Doctor{ID: 1, SpecialtyID: 10, Name: "د. أحمد"},
		Day:       day,
		StartTime: time.Date(2024, 5, 1, 10, 0, 0, 0, loc),
	}
}

func TestCoordinator_WhatsAppPersistenceFailureIsSoftSuccess(t *testing.T) {
	log := &callLog{}
	p := &mockPersister{log: log}
	p.On("CreateBooking", mock.Anything, mock.Anything).Return("", errors.New("backend down")).Once()
	h := &recordingHandoff{log: log}
	pub := &recordingPublisher{}

	c := NewCoordinator(p, h, testLogger(), WithPublisher(pub))
	out, err := c.Submit(context.Background(), ahmedSubmission(), model.MethodWhatsApp)

	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, out.PersistenceDegraded)
	require.NotNil(t, out.Warning)
	assert.ErrorContains(t, out.Warning, "backend down")
	assert.Empty(t, out.Reference)
	assert.NotEmpty(t, out.HandoffURL)
	assert.Equal(t, []string{"handoff", "persist"}, log.list())
	assert.Equal(t, 1, h.count())
	assert.Equal(t, "د. أحمد", h.reqs[0].DoctorName)
	assert.Equal(t, "2024-05-01", h.reqs[0].Date)
	assert.Equal(t, "10:00", h.reqs[0].Time)
	assert.Equal(t, []string{events.TypeBookingHandoff, events.TypeBookingDegraded}, pub.list())
	p.AssertNumberOfCalls(t, "CreateBooking", 1)
}

func TestCoordinator_WhatsAppPersistenceSuccessAttachesReference(t *testing.T) {
	p := &mockPersister{}
	p.On("CreateBooking", mock.Anything, mock.Anything).Return("3f2a9c1e-0000-4000-8000-000000000000", nil).Once()
	h := &recordingHandoff{}

	c := NewCoordinator(p, h, testLogger())
	out, err := c.Submit(context.Background(), ahmedSubmission(), model.MethodWhatsApp)

	require.NoError(t, err)
	assert.False(t, out.PersistenceDegraded)
	assert.Nil(t, out.Warning)
	assert.Equal(t, "TAF-3F2A9C1E", out.Reference)
	assert.Equal(t, 1, h.count())
}

func TestCoordinator_WhatsAppPersistenceOutlivesCallerCancel(t *testing.T) {
	release := make(chan struct{})
	var persistCtxErr error

	p := &mockPersister{}
	p.On("CreateBooking", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		<-release
		persistCtxErr = args.Get(0).(context.Context).Err()
	}).Return("3f2a9c1e-0000-4000-8000-000000000000", nil).Once()
	pub := &recordingPublisher{}

	ctx, cancel := context.WithCancel(context.Background())
	c := NewCoordinator(p, &recordingHandoff{}, testLogger(), WithPublisher(pub))

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	out, err := c.Submit(ctx, ahmedSubmission(), model.MethodWhatsApp)
	require.NoError(t, err)
	assert.NotEmpty(t, out.HandoffURL)
	assert.True(t, out.PersistencePending)
	assert.False(t, out.PersistenceDegraded)
	assert.Nil(t, out.Warning)
	require.NotNil(t, out.Settled)
	assert.Equal(t, []string{events.TypeBookingHandoff}, pub.list())

	close(release)
	var res PersistResult
	select {
	case res = <-out.Settled:
	case <-time.After(time.Second):
		t.Fatal("persistence did not settle")
	}
	require.NoError(t, res.Err)
	assert.NoError(t, persistCtxErr)
	assert.Equal(t, []string{events.TypeBookingHandoff, events.TypeBookingCreated}, pub.list())

	out.Settle(res)
	assert.False(t, out.PersistencePending)
	assert.False(t, out.PersistenceDegraded)
	assert.Equal(t, "TAF-3F2A9C1E", out.Reference)
}

func TestCoordinator_WhatsAppReturnsLinkAfterGrace(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	p := &mockPersister{}
	p.On("CreateBooking", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		<-release
	}).Return("id-1", nil).Maybe()
	pub := &recordingPublisher{}

	c := NewCoordinator(p, &recordingHandoff{}, testLogger(),
		WithPublisher(pub),
		WithHandoffGrace(20*time.Millisecond),
	)

	start := time.Now()
	out, err := c.Submit(context.Background(), ahmedSubmission(), model.MethodWhatsApp)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.NotEmpty(t, out.HandoffURL)
	assert.True(t, out.PersistencePending)
	assert.Empty(t, out.Reference)
	assert.NotNil(t, out.Settled)
	assert.Equal(t, []string{events.TypeBookingHandoff}, pub.list())
}

func TestCoordinator_LateWhatsAppFailureEmitsDegraded(t *testing.T) {
	release := make(chan struct{})

	p := &mockPersister{}
	p.On("CreateBooking", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		<-release
	}).Return("", errors.New("backend down")).Once()
	pub := &recordingPublisher{}

	c := NewCoordinator(p, &recordingHandoff{}, testLogger(),
		WithPublisher(pub),
		WithHandoffGrace(10*time.Millisecond),
	)
	out, err := c.Submit(context.Background(), ahmedSubmission(), model.MethodWhatsApp)
	require.NoError(t, err)
	require.True(t, out.PersistencePending)

	close(release)
	res := <-out.Settled
	require.Error(t, res.Err)
	assert.Equal(t, []string{events.TypeBookingHandoff, events.TypeBookingDegraded}, pub.list())

	out.Settle(res)
	assert.True(t, out.PersistenceDegraded)
	require.NotNil(t, out.Warning)
	assert.ErrorContains(t, out.Warning, "backend down")
}

func TestCoordinator_OnlineFailureIsHard(t *testing.T) {
	p := &mockPersister{}
	cause := errors.New("db locked")
	p.On("CreateBooking", mock.Anything, mock.Anything).Return("", cause).Once()
	h := &recordingHandoff{}

	c := NewCoordinator(p, h, testLogger())
	out, err := c.Submit(context.Background(), ahmedSubmission(), model.MethodOnline)

	assert.Nil(t, out)
	var serr *SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, KindPersistenceFailed, serr.Kind)
	assert.True(t, serr.Retryable())
	assert.ErrorIs(t, err, cause)
	assert.Zero(t, h.count())
	p.AssertNumberOfCalls(t, "CreateBooking", 1)
}

func TestCoordinator_OnlineBuildsBooking(t *testing.T) {
	created := time.Date(2024, 4, 28, 9, 0, 0, 0, time.UTC)
	p := &mockPersister{}
	p.On("CreateBooking", mock.Anything, mock.MatchedBy(func(b model.Booking) bool {
		return b.ID == "fixed-id" &&
			b.DoctorName == "د. أحمد" &&
			b.SpecialtyName == "باطنة" &&
			b.UserName == "Mona" &&
			b.UserPhone == "+201091003965" &&
			b.Notes == "first visit" &&
			b.Method == model.MethodPhone &&
			b.Status == model.StatusPending &&
			b.CreatedAt.Equal(created)
	})).Return("abcdef12-3456", nil).Once()

	c := NewCoordinator(p, &recordingHandoff{}, testLogger(),
		WithIDGenerator(func() string { return "fixed-id" }),
		WithCoordinatorClock(func() time.Time { return created }),
	)
	out, err := c.Submit(context.Background(), ahmedSubmission(), model.MethodPhone)

	require.NoError(t, err)
	assert.Equal(t, "TAF-ABCDEF12", out.Reference)
	assert.Equal(t, model.MethodPhone, out.Channel)
	p.AssertExpectations(t)
}

func TestCoordinator_UnknownMethod(t *testing.T) {
	c := NewCoordinator(&mockPersister{}, &recordingHandoff{}, nil)
	_, err := c.Submit(context.Background(), ahmedSubmission(), model.Method("fax"))
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestReference(t *testing.T) {
	assert.Equal(t, "TAF-3F2A9C1E", Reference("3f2a9c1e-1111-2222"))
	assert.Equal(t, "TAF-42", Reference("42"))
	assert.Equal(t, "", Reference(""))
}
