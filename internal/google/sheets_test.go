package google

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/events"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAppender struct {
	rows [][]interface{}
	err  error
}

func (f *fakeAppender) Append(_ context.Context, id, rng string, rows [][]interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, rows...)
	return nil
}

func sampleBooking() model.Booking {
	return model.Booking{
		ID:            "abcdef12-0000",
		DoctorName:    "د. أحمد",
		SpecialtyName: "باطنة",
		StartTime:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		UserName:      "Mona",
		UserPhone:     "0109100396",
		Method:        model.MethodWhatsApp,
		Status:        model.StatusPending,
		CreatedAt:     time.Date(2024, 4, 28, 9, 0, 0, 0, time.UTC),
	}
}

func TestBookingRowValues(t *testing.T) {
	values := bookingRowValues(sampleBooking())

	expected := []interface{}{
		"TAF-ABCDEF12", "abcdef12-0000", "2024-05-01", "10:00",
		"د. أحمد", "باطنة", "Mona", "0109100396", "", "",
		"whatsapp", "pending", "2024-04-28 09:00:00",
	}
	assert.Equal(t, expected, values)
}

func TestAppendBooking_OncePerBooking(t *testing.T) {
	app := &fakeAppender{}
	s := NewSheetsService(app, "sheet", "Bookings!A:M", nil)

	require.NoError(t, s.AppendBooking(context.Background(), sampleBooking()))
	require.NoError(t, s.AppendBooking(context.Background(), sampleBooking()))
	assert.Len(t, app.rows, 1)

	s.ClearCache()
	require.NoError(t, s.AppendBooking(context.Background(), sampleBooking()))
	assert.Len(t, app.rows, 2)
}

func TestAppendBooking_FailureNotCached(t *testing.T) {
	app := &fakeAppender{err: errors.New("quota")}
	s := NewSheetsService(app, "sheet", "A:M", nil)

	assert.ErrorContains(t, s.AppendBooking(context.Background(), sampleBooking()), "quota")
	app.err = nil
	require.NoError(t, s.AppendBooking(context.Background(), sampleBooking()))
	assert.Len(t, app.rows, 1)
}

func TestSubscribe_MirrorsCreatedEvents(t *testing.T) {
	app := &fakeAppender{}
	s := NewSheetsService(app, "sheet", "A:M", nil)
	bus := events.NewEventBus(nil)
	s.Subscribe(bus)

	ev, err := events.New(events.TypeBookingCreated, sampleBooking())
	require.NoError(t, err)
	bus.Publish(ev)

	require.Len(t, app.rows, 1)
	assert.Equal(t, "TAF-ABCDEF12", app.rows[0][0])
}
