package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayKey_StringAndParse(t *testing.T) {
	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	key := DayKey{Code: "wed", Date: date}

	assert.Equal(t, "wed:1714521600000", key.String())

	parsed, err := ParseDayKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, "wed", parsed.Code)
	assert.True(t, parsed.Date.Equal(date))
}

func TestParseDayKey_Invalid(t *testing.T) {
	_, err := ParseDayKey("wed")
	assert.Error(t, err)

	_, err = ParseDayKey("wed:abc")
	assert.Error(t, err)
}

func TestDayInfo_PrimaryTimeAndSlotStart(t *testing.T) {
	loc := time.FixedZone("EET", 2*60*60)
	d := DayInfo{
		Date:  time.Date(2024, 5, 1, 0, 0, 0, 0, loc),
		Times: []string{"10:00", "10:30"},
	}

	assert.Equal(t, "10:00", d.PrimaryTime())
	assert.True(t, d.HasTime("10:30"))
	assert.False(t, d.HasTime("11:00"))

	start, err := d.SlotStart("10:30")
	require.NoError(t, err)
	assert.Equal(t, 10, start.Hour())
	assert.Equal(t, 30, start.Minute())
	assert.Equal(t, loc, start.Location())

	assert.Equal(t, "", DayInfo{}.PrimaryTime())
}

func TestBookingDraft_CloneIsDeep(t *testing.T) {
	id := int64(7)
	email := "a@b.com"
	d := BookingDraft{DoctorID: &id, UserEmail: &email}

	c := d.Clone()
	*c.DoctorID = 9
	*c.UserEmail = "x@y.com"

	assert.Equal(t, int64(7), *d.DoctorID)
	assert.Equal(t, "a@b.com", d.Email())
}

func TestArabicFormatting(t *testing.T) {
	d := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "الأربعاء، 1 مايو 2024", FormatArabicDate(d))
	assert.Equal(t, "wed", WeekdayCode(d.Weekday()))

	assert.Equal(t, "10:00 ص", FormatArabicTime("10:00"))
	assert.Equal(t, "12:30 م", FormatArabicTime("12:30"))
	assert.Equal(t, "12:05 ص", FormatArabicTime("00:05"))
	assert.Equal(t, "5:15 م", FormatArabicTime("17:15"))
	assert.Equal(t, "soon", FormatArabicTime("soon"))
}
