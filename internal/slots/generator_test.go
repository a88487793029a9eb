package slots

import (
	"context"
	"testing"
	"time"

	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cairo = time.FixedZone("EET", 2*3600)

func TestGenerateSlots(t *testing.T) {
	date := time.Date(2024, 5, 1, 0, 0, 0, 0, cairo)
	past := time.Date(2024, 4, 1, 0, 0, 0, 0, cairo)
	schedule := ScheduleInfo{
		StartTime:    "09:00",
		EndTime:      "18:00",
		LunchStart:   "13:00",
		LunchEnd:     "14:00",
		SlotDuration: 30,
	}

	tests := []struct {
		name          string
		schedule      ScheduleInfo
		booked        map[int64]bool
		now           time.Time
		expectedCount int
		available     int
	}{
		{"full day no bookings", schedule, nil, past, 16, 16},
		{"with some bookings", schedule, map[int64]bool{
			time.Date(2024, 5, 1, 9, 0, 0, 0, cairo).Unix():  true,
			time.Date(2024, 5, 1, 9, 30, 0, 0, cairo).Unix(): true,
		}, past, 16, 14},
		{"partially past", schedule, nil, time.Date(2024, 5, 1, 15, 0, 0, 0, cairo), 16, 5},
		{"closed", ScheduleInfo{IsClosed: true}, nil, past, 0, 0},
		{"default duration", ScheduleInfo{StartTime: "10:00", EndTime: "11:00"}, nil, past, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots, err := GenerateSlots(date, tt.schedule, tt.booked, tt.now)
			require.NoError(t, err)
			assert.Len(t, slots, tt.expectedCount)
			assert.Len(t, AvailableTimes(slots), tt.available)
		})
	}
}

func TestGenerateSlots_InvalidTime(t *testing.T) {
	_, err := GenerateSlots(time.Now(), ScheduleInfo{StartTime: "nine", EndTime: "18:00"}, nil, time.Now())
	assert.Error(t, err)
}

type fakeStore struct {
	schedule *db.DoctorSchedule
	holidays map[string]string
	booked   []time.Time
}

func (f *fakeStore) GetDoctorSchedule(context.Context, int64) (*db.DoctorSchedule, error) {
	return f.schedule, nil
}

func (f *fakeStore) Holidays(context.Context) (map[string]string, error) {
	return f.holidays, nil
}

func (f *fakeStore) BookedStarts(context.Context, int64, time.Time, time.Time) ([]time.Time, error) {
	return f.booked, nil
}

func TestLocalSource_FetchAvailability(t *testing.T) {
	store := &fakeStore{
		schedule: &db.DoctorSchedule{
			DoctorID: 1, StartTime: "10:00", EndTime: "12:00", SlotDuration: 60,
			DaysOff: []int{5}, // Friday
		},
		holidays: map[string]string{"2024-05-02": "holiday"},
		booked:   []time.Time{time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}, // 10:00 Cairo
	}
	src := NewLocalSource(store, cairo, 5)
	// Tuesday 2024-04-30 10:30: only the 11:00 slot is left today
	src.now = func() time.Time { return time.Date(2024, 4, 30, 10, 30, 0, 0, cairo) }

	days, err := src.FetchAvailability(context.Background(), 1)
	require.NoError(t, err)

	// Tue(partial), Wed(10:00 booked), Thu holiday, Fri off, Sat
	require.Len(t, days, 3)
	assert.Equal(t, "2024-04-30", days[0].Date)
	assert.Equal(t, "tue", days[0].DayCode)
	assert.Equal(t, "الثلاثاء", days[0].DayName)
	assert.Equal(t, []string{"11:00"}, days[0].Times)
	assert.Equal(t, "2024-05-01", days[1].Date)
	assert.Equal(t, []string{"11:00"}, days[1].Times)
	assert.Equal(t, "2024-05-04", days[2].Date)
	assert.Equal(t, "sat", days[2].DayCode)
	assert.Equal(t, []string{"10:00", "11:00"}, days[2].Times)
}

func TestLocalSource_NoSchedule(t *testing.T) {
	src := NewLocalSource(&fakeStore{}, cairo, 7)
	days, err := src.FetchAvailability(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, days)
	assert.Empty(t, days)
}
