package config

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDirectory = `
specialties:
  - id: 1
    name: باطنة
  - id: 2
    name: أسنان
doctors:
  - id: 10
    specialty_id: 1
    name: د. أحمد
    rating: 4.8
  - id: 11
    specialty_id: 2
    name: د. سارة
    is_active: false
    schedule:
      start_time: "12:00"
      end_time: "18:00"
      slot_duration_minutes: 20
    days_off: [5, 6]
defaults:
  schedule:
    start_time: "10:00"
    end_time: "16:00"
    slot_duration_minutes: 30
    lunch_start: "13:00"
    lunch_end: "14:00"
  days_off: [5]
holidays:
  - date: "2024-04-10"
    name: عيد الفطر
`

func TestLoadDirectory_AppliesDefaults(t *testing.T) {
	p := writeFile(t, t.TempDir(), "directory.yaml", sampleDirectory)

	cfg, err := LoadDirectory(p)
	require.NoError(t, err)

	ahmed := cfg.Doctor(10)
	require.NotNil(t, ahmed)
	assert.True(t, ahmed.Active())
	require.NotNil(t, ahmed.Schedule)
	assert.Equal(t, "13:00", ahmed.Schedule.LunchStart)
	assert.Equal(t, []int{5}, ahmed.DaysOff)

	sara := cfg.Doctor(11)
	assert.False(t, sara.Active())
	assert.Equal(t, 20, sara.Schedule.SlotDurationMinutes)
	assert.Equal(t, []int{5, 6}, sara.DaysOff)

	ok, name := cfg.IsHoliday(time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC))
	assert.True(t, ok)
	assert.Equal(t, "عيد الفطر", name)
	assert.Nil(t, cfg.Doctor(99))
	assert.Contains(t, cfg.String(), "2 doctors (1 active)")
}

func TestDirectoryValidate(t *testing.T) {
	base := func() DirectoryConfig {
		return DirectoryConfig{
			Specialties: []SpecialtyConfig{{ID: 1, Name: "a"}},
			Doctors:     []DoctorConfig{{ID: 1, SpecialtyID: 1, Name: "d"}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*DirectoryConfig)
		errMsg string
	}{
		{"no specialties", func(c *DirectoryConfig) { c.Specialties = nil }, "no specialties"},
		{"duplicate specialty", func(c *DirectoryConfig) {
			c.Specialties = append(c.Specialties, SpecialtyConfig{ID: 1, Name: "b"})
		}, "duplicate id"},
		{"unknown specialty", func(c *DirectoryConfig) { c.Doctors[0].SpecialtyID = 7 }, "unknown specialty_id"},
		{"doctor without name", func(c *DirectoryConfig) { c.Doctors[0].Name = "" }, "name is required"},
		{"bad rating", func(c *DirectoryConfig) { c.Doctors[0].Rating = 6 }, "rating"},
		{"bad schedule", func(c *DirectoryConfig) {
			c.Doctors[0].Schedule = &ScheduleConfig{StartTime: "16:00", EndTime: "10:00", SlotDurationMinutes: 30}
		}, "end_time must be after"},
		{"lunch outside hours", func(c *DirectoryConfig) {
			c.Defaults.Schedule = &ScheduleConfig{StartTime: "10:00", EndTime: "12:00", SlotDurationMinutes: 30, LunchStart: "12:00", LunchEnd: "13:00"}
		}, "lunch break"},
		{"bad day off", func(c *DirectoryConfig) { c.Defaults.DaysOff = []int{8} }, "invalid day"},
		{"bad holiday", func(c *DirectoryConfig) { c.Holidays = []HolidayConfig{{Date: "10/04/2024"}} }, "invalid date format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			assert.ErrorContains(t, c.Validate(), tt.errMsg)
		})
	}

	c := base()
	assert.NoError(t, c.Validate())
}

func TestIsoWeekday(t *testing.T) {
	assert.Equal(t, 7, IsoWeekday(time.Sunday))
	assert.Equal(t, 5, IsoWeekday(time.Friday))
}

func TestWatchDirectory_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "directory.yaml", sampleDirectory)

	var mu sync.Mutex
	var loads []int
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := WatchDirectory(ctx, p, 10*time.Millisecond, nil, func(c *DirectoryConfig) error {
		mu.Lock()
		defer mu.Unlock()
		loads = append(loads, len(c.Doctors))
		return nil
	})
	require.NoError(t, err)

	writeFile(t, dir, "directory.yaml", "specialties: [{id: 1, name: a}]\ndoctors: [{id: 1, specialty_id: 1, name: d}]\n")
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(p, future, future))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(loads) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []int{2, 1}, loads)
	mu.Unlock()
}

func TestWatchDirectory_InitialLoadError(t *testing.T) {
	p := writeFile(t, t.TempDir(), "directory.yaml", "specialties: []\n")
	err := WatchDirectory(context.Background(), p, time.Second, nil, nil)
	assert.ErrorContains(t, err, "no specialties")
}
