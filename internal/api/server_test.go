package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/booking"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/handoff"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDirectory struct{}

func (stubDirectory) GetSpecialty(_ context.Context, id int64) (*model.Specialty, error) {
	if id != 10 {
		return nil, nil
	}
	return &model.Specialty{ID: 10, Name: "باطنة"}, nil
}

func (stubDirectory) GetDoctor(_ context.Context, id int64) (*model.Doctor, error) {
	if id != 1 {
		return nil, nil
	}
	return &model.Doctor{ID: 1, SpecialtyID: 10, Name: "د. أحمد"}, nil
}

func (stubDirectory) ListSpecialties(context.Context) ([]model.Specialty, error) {
	return []model.Specialty{{ID: 10, Name: "باطنة"}}, nil
}

func (stubDirectory) ListDoctors(_ context.Context, specialtyID int64) ([]model.Doctor, error) {
	if specialtyID == 99 {
		return nil, errors.New("db down")
	}
	return []model.Doctor{{ID: 1, SpecialtyID: 10, Name: "د. أحمد"}}, nil
}

type stubResolver struct {
	day model.DayInfo
}

func (s stubResolver) Resolve(context.Context, int64) ([]model.DayInfo, error) {
	return []model.DayInfo{s.day}, nil
}

type stubPersister struct {
	mu    sync.Mutex
	err   error
	saved []model.Booking
}

func (p *stubPersister) CreateBooking(_ context.Context, b model.Booking) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.saved = append(p.saved, b)
	return b.ID, nil
}

type apiFixture struct {
	t         *testing.T
	srv       *HTTPServer
	store     *booking.SessionStore
	persister *stubPersister
	day       model.DayInfo
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	date := time.Now().AddDate(0, 0, 3).Truncate(24 * time.Hour)
	day := model.DayInfo{
		Date:    date,
		DayName: "الأربعاء",
		DayCode: "wed",
		Times:   []string{"10:00", "10:30"},
		Key:     model.DayKey{Code: "wed", Date: date},
	}
	p := &stubPersister{}
	coord := booking.NewCoordinator(p, handoff.NewWhatsApp("+20 109 100 3960", nil), nil,
		booking.WithIDGenerator(func() string { return "abcdef12-0000-0000" }))
	store := booking.NewSessionStore(time.Hour, func() *booking.Wizard {
		return booking.NewWizard(stubDirectory{}, stubResolver{day: day}, coord)
	})
	srv := NewHTTPServer(":0", store, stubDirectory{}, Options{SubmitPerMinute: 60, SubmitBurst: 2}, nil)
	return &apiFixture{t: t, srv: srv, store: store, persister: p, day: day}
}

func (f *apiFixture) do(method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (f *apiFixture) waitFetch(id string) {
	f.t.Helper()
	wiz, err := f.store.Get(id)
	require.NoError(f.t, err)
	wiz.Wait()
}

func TestWizardFlow_OverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	rec, body := f.do(http.MethodPost, "/api/wizard", map[string]any{"doctor_id": 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := body["session_id"].(string)
	assert.Equal(t, "appointment", body["step"])
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	f.waitFetch(id)
	rec, body = f.do(http.MethodGet, "/api/wizard/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	avail := body["availability"].(map[string]any)
	assert.Equal(t, "ready", avail["state"])
	days := avail["days"].([]any)
	require.Len(t, days, 1)
	dayID := days[0].(map[string]any)["id"].(string)
	assert.Equal(t, f.day.UniqueID(), dayID)
	assert.Equal(t, "10:00", days[0].(map[string]any)["primary_time"])

	rec, _ = f.do(http.MethodPost, "/api/wizard/"+id+"/slot", map[string]any{"day_id": dayID})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = f.do(http.MethodPost, "/api/wizard/"+id+"/next", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(http.MethodPost, "/api/wizard/"+id+"/contact", map[string]any{"name": "Mona", "phone": "0109100396"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, body = f.do(http.MethodPost, "/api/wizard/"+id+"/next", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "confirm", body["step"])

	rec, body = f.do(http.MethodPost, "/api/wizard/"+id+"/submit", map[string]any{"method": "online"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "done", body["step"])
	assert.Equal(t, "TAF-ABCDEF12", body["result"].(map[string]any)["reference"])
	require.Len(t, f.persister.saved, 1)
	assert.Equal(t, "0109100396", f.persister.saved[0].UserPhone)
}

func TestValidationError_Localized(t *testing.T) {
	f := newAPIFixture(t)
	_, body := f.do(http.MethodPost, "/api/wizard", map[string]any{"doctor_id": 1})
	id := body["session_id"].(string)
	f.waitFetch(id)

	rec, body := f.do(http.MethodPost, "/api/wizard/"+id+"/next", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(booking.ErrMissingSlot), body["code"])
	assert.Equal(t, booking.ErrMissingSlot.Message("ar"), body["error"])

	req := httptest.NewRequest(http.MethodPost, "/api/wizard/"+id+"/next", nil)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	rr := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rr, req)
	assert.Contains(t, rr.Body.String(), booking.ErrMissingSlot.Message("en"))
}

func TestErrorMapping(t *testing.T) {
	f := newAPIFixture(t)

	rec, body := f.do(http.MethodGet, "/api/wizard/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["code"])

	rec, _ = f.do(http.MethodPost, "/api/wizard", map[string]any{"doctor_id": 42})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, body = f.do(http.MethodPost, "/api/wizard", nil)
	id := body["session_id"].(string)

	rec, body = f.do(http.MethodPost, "/api/wizard/"+id+"/submit", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_step", body["code"])

	rec, _ = f.do(http.MethodPost, "/api/wizard/"+id+"/method", map[string]any{"method": "fax"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(http.MethodPost, "/api/wizard/"+id+"/specialty", map[string]any{"id": 10, "extra": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitFailure_IsRetryable(t *testing.T) {
	f := newAPIFixture(t)
	f.persister.err = errors.New("disk full")

	_, body := f.do(http.MethodPost, "/api/wizard", map[string]any{"doctor_id": 1})
	id := body["session_id"].(string)
	f.waitFetch(id)
	f.do(http.MethodPost, "/api/wizard/"+id+"/slot", map[string]any{"day_id": f.day.UniqueID(), "time": "10:30"})
	f.do(http.MethodPost, "/api/wizard/"+id+"/next", nil)
	f.do(http.MethodPost, "/api/wizard/"+id+"/contact", map[string]any{"name": "Mona", "phone": "0109100396"})
	f.do(http.MethodPost, "/api/wizard/"+id+"/next", nil)

	rec, body := f.do(http.MethodPost, "/api/wizard/"+id+"/submit", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, true, body["retryable"])

	_, body = f.do(http.MethodGet, "/api/wizard/"+id, nil)
	assert.Equal(t, "confirm", body["step"])
	assert.Equal(t, "10:30", body["draft"].(map[string]any)["booking_time"])
}

func TestSubmitRateLimited(t *testing.T) {
	f := newAPIFixture(t)
	_, body := f.do(http.MethodPost, "/api/wizard", nil)
	id := body["session_id"].(string)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec, _ := f.do(http.MethodPost, "/api/wizard/"+id+"/submit", nil)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusConflict, http.StatusConflict, http.StatusTooManyRequests}, codes)
}

func TestDirectoryEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rec, body := f.do(http.MethodGet, "/api/specialties", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["specialties"], 1)

	rec, body = f.do(http.MethodGet, "/api/doctors?specialty_id=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["doctors"], 1)

	rec, _ = f.do(http.MethodGet, "/api/doctors?specialty_id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(http.MethodGet, "/api/doctors?specialty_id=99", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestEmptyChunkedBody_IsNotBadRequest(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/wizard", io.NopCloser(strings.NewReader("")))
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "specialty", body["step"])
	id := body["session_id"].(string)

	req = httptest.NewRequest(http.MethodPost, "/api/wizard/"+id+"/submit", io.NopCloser(strings.NewReader("")))
	req.ContentLength = -1
	rec = httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_step", body["code"])
}

func TestMalformedBody_IsBadRequest(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/wizard", io.NopCloser(strings.NewReader("{")))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
