// Package slots generates bookable appointment times from doctors' weekly
// schedules stored in the local database.
package slots

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Slot represents a time slot.
type Slot struct {
	StartTime time.Time
	EndTime   time.Time
	Available bool
}

// ScheduleInfo contains schedule parameters for a day.
type ScheduleInfo struct {
	StartTime    string // "10:00"
	EndTime      string // "16:00"
	LunchStart   string // "13:00" (optional)
	LunchEnd     string // "14:00" (optional)
	SlotDuration int    // minutes
	IsClosed     bool
}

// GenerateSlots lays out the day's slots. A slot is unavailable when it starts
// at or before now or when its start (unix seconds) is in booked.
func GenerateSlots(date time.Time, schedule ScheduleInfo, booked map[int64]bool, now time.Time) ([]Slot, error) {
	if schedule.IsClosed {
		return nil, nil
	}

	if schedule.SlotDuration <= 0 {
		schedule.SlotDuration = 30
	}

	startTime, err := parseTimeOnDate(date, schedule.StartTime)
	if err != nil {
		return nil, fmt.Errorf("parse start time: %w", err)
	}

	endTime, err := parseTimeOnDate(date, schedule.EndTime)
	if err != nil {
		return nil, fmt.Errorf("parse end time: %w", err)
	}

	var lunchStart, lunchEnd time.Time
	hasLunch := schedule.LunchStart != "" && schedule.LunchEnd != ""
	if hasLunch {
		if lunchStart, err = parseTimeOnDate(date, schedule.LunchStart); err != nil {
			return nil, fmt.Errorf("parse lunch start: %w", err)
		}
		if lunchEnd, err = parseTimeOnDate(date, schedule.LunchEnd); err != nil {
			return nil, fmt.Errorf("parse lunch end: %w", err)
		}
	}

	slotDuration := time.Duration(schedule.SlotDuration) * time.Minute
	var slots []Slot

	for cursor := startTime; !cursor.Add(slotDuration).After(endTime); cursor = cursor.Add(slotDuration) {
		slotStart := cursor
		slotEnd := cursor.Add(slotDuration)

		if hasLunch && isOverlapping(slotStart, slotEnd, lunchStart, lunchEnd) {
			continue
		}

		slots = append(slots, Slot{
			StartTime: slotStart,
			EndTime:   slotEnd,
			Available: !booked[slotStart.Unix()] && slotStart.After(now),
		})
	}

	return slots, nil
}

// AvailableTimes returns the "HH:MM" starts of available slots in order.
func AvailableTimes(slots []Slot) []string {
	var out []string
	for _, s := range slots {
		if s.Available {
			out = append(out, s.StartTime.Format("15:04"))
		}
	}
	return out
}

func parseTimeOnDate(date time.Time, timeStr string) (time.Time, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) < 2 {
		return time.Time{}, fmt.Errorf("invalid time format: %s", timeStr)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid hour: %w", err)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid minute: %w", err)
	}

	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location()), nil
}

func isOverlapping(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && start2.Before(end1)
}
