package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SpecialtyConfig is one specialty in directory.yaml.
type SpecialtyConfig struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
	Icon string `yaml:"icon"`
}

// DoctorConfig is one doctor in directory.yaml.
type DoctorConfig struct {
	ID           int             `yaml:"id"`
	SpecialtyID  int             `yaml:"specialty_id"`
	Name         string          `yaml:"name"`
	Title        string          `yaml:"title"`
	Rating       float64         `yaml:"rating"`
	ReviewsCount int             `yaml:"reviews_count"`
	Bio          string          `yaml:"bio"`
	Image        string          `yaml:"image"`
	IsActive     *bool           `yaml:"is_active,omitempty"`
	Schedule     *ScheduleConfig `yaml:"schedule,omitempty"`
	DaysOff      []int           `yaml:"days_off,omitempty"` // 1=Mon, 7=Sun
}

// Active reports whether the doctor is bookable; doctors are active unless disabled.
func (d DoctorConfig) Active() bool {
	return d.IsActive == nil || *d.IsActive
}

// ScheduleConfig is a doctor's weekly working hours.
type ScheduleConfig struct {
	StartTime           string `yaml:"start_time"`            // "10:00"
	EndTime             string `yaml:"end_time"`              // "16:00"
	SlotDurationMinutes int    `yaml:"slot_duration_minutes"` // 30
	LunchStart          string `yaml:"lunch_start,omitempty"`
	LunchEnd            string `yaml:"lunch_end,omitempty"`
}

// HolidayConfig is a clinic-wide closed date.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2024-04-10"
	Name string `yaml:"name"`
}

// DirectoryDefaults apply to doctors without explicit settings.
type DirectoryDefaults struct {
	Schedule *ScheduleConfig `yaml:"schedule"`
	DaysOff  []int           `yaml:"days_off"`
}

// DirectoryConfig is the root of directory.yaml.
type DirectoryConfig struct {
	Specialties []SpecialtyConfig `yaml:"specialties"`
	Doctors     []DoctorConfig    `yaml:"doctors"`
	Defaults    DirectoryDefaults `yaml:"defaults"`
	Holidays    []HolidayConfig   `yaml:"holidays"`
}

// LoadDirectory loads and validates the clinic directory.
func LoadDirectory(path string) (*DirectoryConfig, error) {
	if path == "" {
		path = "configs/directory.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory config: %w", err)
	}

	var cfg DirectoryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse directory config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate directory config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Validate checks the directory for errors.
func (c *DirectoryConfig) Validate() error {
	if len(c.Specialties) == 0 {
		return fmt.Errorf("no specialties defined")
	}

	specIDs := make(map[int]bool)
	for i, s := range c.Specialties {
		if s.ID <= 0 {
			return fmt.Errorf("specialty[%d]: id must be positive, got %d", i, s.ID)
		}
		if specIDs[s.ID] {
			return fmt.Errorf("specialty[%d]: duplicate id %d", i, s.ID)
		}
		specIDs[s.ID] = true
		if s.Name == "" {
			return fmt.Errorf("specialty[%d]: name is required", i)
		}
	}

	docIDs := make(map[int]bool)
	for i, d := range c.Doctors {
		if d.ID <= 0 {
			return fmt.Errorf("doctor[%d]: id must be positive, got %d", i, d.ID)
		}
		if docIDs[d.ID] {
			return fmt.Errorf("doctor[%d]: duplicate id %d", i, d.ID)
		}
		docIDs[d.ID] = true
		if d.Name == "" {
			return fmt.Errorf("doctor[%d]: name is required", i)
		}
		if !specIDs[d.SpecialtyID] {
			return fmt.Errorf("doctor[%d]: unknown specialty_id %d", i, d.SpecialtyID)
		}
		if d.Rating < 0 || d.Rating > 5 {
			return fmt.Errorf("doctor[%d]: rating must be within 0-5", i)
		}
		if d.Schedule != nil {
			if err := validateSchedule(d.Schedule, fmt.Sprintf("doctor[%d].schedule", i)); err != nil {
				return err
			}
		}
		if err := validateDaysOff(d.DaysOff, fmt.Sprintf("doctor[%d].days_off", i)); err != nil {
			return err
		}
	}

	if c.Defaults.Schedule != nil {
		if err := validateSchedule(c.Defaults.Schedule, "defaults.schedule"); err != nil {
			return err
		}
	}
	if err := validateDaysOff(c.Defaults.DaysOff, "defaults.days_off"); err != nil {
		return err
	}

	for i, h := range c.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holiday[%d]: date is required", i)
		}
		if _, err := time.Parse("2006-01-02", h.Date); err != nil {
			return fmt.Errorf("holiday[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
	}

	return nil
}

func validateDaysOff(days []int, prefix string) error {
	for i, d := range days {
		if d < 1 || d > 7 {
			return fmt.Errorf("%s[%d]: invalid day %d, must be 1-7 (1=Mon, 7=Sun)", prefix, i, d)
		}
	}
	return nil
}

func validateSchedule(s *ScheduleConfig, prefix string) error {
	if s.StartTime == "" {
		return fmt.Errorf("%s.start_time is required", prefix)
	}
	if s.EndTime == "" {
		return fmt.Errorf("%s.end_time is required", prefix)
	}

	startTime, err := time.Parse("15:04", s.StartTime)
	if err != nil {
		return fmt.Errorf("%s.start_time: invalid format '%s', expected HH:MM", prefix, s.StartTime)
	}
	endTime, err := time.Parse("15:04", s.EndTime)
	if err != nil {
		return fmt.Errorf("%s.end_time: invalid format '%s', expected HH:MM", prefix, s.EndTime)
	}
	if !endTime.After(startTime) {
		return fmt.Errorf("%s: end_time must be after start_time", prefix)
	}
	if s.SlotDurationMinutes <= 0 {
		return fmt.Errorf("%s.slot_duration_minutes must be positive", prefix)
	}

	if s.LunchStart != "" && s.LunchEnd != "" {
		lunchStart, err := time.Parse("15:04", s.LunchStart)
		if err != nil {
			return fmt.Errorf("%s.lunch_start: invalid format '%s', expected HH:MM", prefix, s.LunchStart)
		}
		lunchEnd, err := time.Parse("15:04", s.LunchEnd)
		if err != nil {
			return fmt.Errorf("%s.lunch_end: invalid format '%s', expected HH:MM", prefix, s.LunchEnd)
		}
		if !lunchEnd.After(lunchStart) {
			return fmt.Errorf("%s: lunch_end must be after lunch_start", prefix)
		}
		if lunchStart.Before(startTime) || lunchEnd.After(endTime) {
			return fmt.Errorf("%s: lunch break must be within working hours", prefix)
		}
	}
	return nil
}

func (c *DirectoryConfig) applyDefaults() {
	for i := range c.Doctors {
		if c.Doctors[i].Schedule == nil && c.Defaults.Schedule != nil {
			c.Doctors[i].Schedule = c.Defaults.Schedule
		}
		if c.Doctors[i].DaysOff == nil {
			c.Doctors[i].DaysOff = c.Defaults.DaysOff
		}
	}
}

// Doctor returns the doctor config by id.
func (c *DirectoryConfig) Doctor(id int) *DoctorConfig {
	for i := range c.Doctors {
		if c.Doctors[i].ID == id {
			return &c.Doctors[i]
		}
	}
	return nil
}

// IsHoliday checks if a date is a holiday.
func (c *DirectoryConfig) IsHoliday(date time.Time) (bool, string) {
	dateStr := date.Format("2006-01-02")
	for _, h := range c.Holidays {
		if h.Date == dateStr {
			return true, h.Name
		}
	}
	return false, ""
}

// String returns a summary of the directory.
func (c *DirectoryConfig) String() string {
	active := 0
	for _, d := range c.Doctors {
		if d.Active() {
			active++
		}
	}
	return fmt.Sprintf("DirectoryConfig: %d specialties, %d doctors (%d active), %d holidays",
		len(c.Specialties), len(c.Doctors), active, len(c.Holidays))
}

// IsoWeekday converts Go's weekday (0=Sun) to 1=Mon..7=Sun.
func IsoWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}
