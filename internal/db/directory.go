package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/config"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/model"
)

// DoctorSchedule is a doctor's weekly working pattern.
type DoctorSchedule struct {
	DoctorID     int64
	StartTime    string
	EndTime      string
	SlotDuration int
	LunchStart   string
	LunchEnd     string
	DaysOff      []int // 1=Mon, 7=Sun
}

// IsDayOff reports whether the weekday is off for the doctor.
func (s *DoctorSchedule) IsDayOff(d time.Weekday) bool {
	iso := config.IsoWeekday(d)
	for _, off := range s.DaysOff {
		if off == iso {
			return true
		}
	}
	return false
}

// SyncDirectory applies directory.yaml to the database. Specialties and
// doctors are upserted, those missing from the file are marked inactive and
// holidays are replaced.
func (db *DB) SyncDirectory(ctx context.Context, cfg *config.DirectoryConfig) error {
	if cfg == nil {
		return fmt.Errorf("directory config is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sync: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `UPDATE specialties SET is_active = 0, updated_at = ?`, now); err != nil {
		return fmt.Errorf("reset specialties: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE doctors SET is_active = 0, updated_at = ?`, now); err != nil {
		return fmt.Errorf("reset doctors: %w", err)
	}

	for _, s := range cfg.Specialties {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO specialties (id, name, icon, is_active, created_at, updated_at)
			VALUES (?, ?, ?, 1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				icon = excluded.icon,
				is_active = 1,
				updated_at = excluded.updated_at`,
			s.ID, s.Name, s.Icon, now, now,
		)
		if err != nil {
			return fmt.Errorf("sync specialty %d: %w", s.ID, err)
		}
	}

	for _, d := range cfg.Doctors {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO doctors (id, specialty_id, name, title, rating, reviews_count, bio, image, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				specialty_id = excluded.specialty_id,
				name = excluded.name,
				title = excluded.title,
				rating = excluded.rating,
				reviews_count = excluded.reviews_count,
				bio = excluded.bio,
				image = excluded.image,
				is_active = excluded.is_active,
				updated_at = excluded.updated_at`,
			d.ID, d.SpecialtyID, d.Name, d.Title, d.Rating, d.ReviewsCount, d.Bio, d.Image, d.Active(), now, now,
		)
		if err != nil {
			return fmt.Errorf("sync doctor %d: %w", d.ID, err)
		}
		if err := syncSchedule(ctx, tx, d, now); err != nil {
			return fmt.Errorf("sync doctor %d schedule: %w", d.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM holidays`); err != nil {
		return fmt.Errorf("reset holidays: %w", err)
	}
	for _, h := range cfg.Holidays {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO holidays (date, name) VALUES (?, ?)`, h.Date, h.Name); err != nil {
			return fmt.Errorf("sync holiday %s: %w", h.Date, err)
		}
	}

	return tx.Commit()
}

func syncSchedule(ctx context.Context, tx *sql.Tx, d config.DoctorConfig, now time.Time) error {
	if d.Schedule == nil {
		_, err := tx.ExecContext(ctx, `DELETE FROM doctor_schedules WHERE doctor_id = ?`, d.ID)
		return err
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO doctor_schedules (doctor_id, start_time, end_time, slot_duration, lunch_start, lunch_end, days_off, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(doctor_id) DO UPDATE SET
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			slot_duration = excluded.slot_duration,
			lunch_start = excluded.lunch_start,
			lunch_end = excluded.lunch_end,
			days_off = excluded.days_off,
			updated_at = excluded.updated_at`,
		d.ID, d.Schedule.StartTime, d.Schedule.EndTime, d.Schedule.SlotDurationMinutes,
		nullString(d.Schedule.LunchStart), nullString(d.Schedule.LunchEnd), joinInts(d.DaysOff), now,
	)
	return err
}

// ListSpecialties returns active specialties ordered by id.
func (db *DB) ListSpecialties(ctx context.Context) ([]model.Specialty, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, icon FROM specialties WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Specialty, 0)
	for rows.Next() {
		var s model.Specialty
		if err := rows.Scan(&s.ID, &s.Name, &s.Icon); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const doctorColumns = `id, specialty_id, name, title, rating, reviews_count, bio, image`

func scanDoctor(row interface{ Scan(...any) error }) (*model.Doctor, error) {
	var d model.Doctor
	if err := row.Scan(&d.ID, &d.SpecialtyID, &d.Name, &d.Title, &d.Rating, &d.ReviewsCount, &d.Bio, &d.Image); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDoctors returns active doctors, filtered by specialty when specialtyID > 0.
func (db *DB) ListDoctors(ctx context.Context, specialtyID int64) ([]model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE is_active = 1`
	args := []any{}
	if specialtyID > 0 {
		query += ` AND specialty_id = ?`
		args = append(args, specialtyID)
	}
	query += ` ORDER BY rating DESC, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Doctor, 0)
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// GetSpecialty returns an active specialty, or nil when it does not exist.
func (db *DB) GetSpecialty(ctx context.Context, id int64) (*model.Specialty, error) {
	var s model.Specialty
	err := db.QueryRowContext(ctx,
		`SELECT id, name, icon FROM specialties WHERE id = ? AND is_active = 1`, id,
	).Scan(&s.ID, &s.Name, &s.Icon)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetDoctor returns an active doctor, or nil when it does not exist.
func (db *DB) GetDoctor(ctx context.Context, id int64) (*model.Doctor, error) {
	d, err := scanDoctor(db.QueryRowContext(ctx,
		`SELECT `+doctorColumns+` FROM doctors WHERE id = ? AND is_active = 1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

// GetDoctorSchedule returns the weekly schedule, or nil when none is configured.
func (db *DB) GetDoctorSchedule(ctx context.Context, doctorID int64) (*DoctorSchedule, error) {
	var s DoctorSchedule
	var lunchStart, lunchEnd sql.NullString
	var daysOff string
	err := db.QueryRowContext(ctx, `
		SELECT doctor_id, start_time, end_time, slot_duration, lunch_start, lunch_end, days_off
		FROM doctor_schedules WHERE doctor_id = ?`, doctorID,
	).Scan(&s.DoctorID, &s.StartTime, &s.EndTime, &s.SlotDuration, &lunchStart, &lunchEnd, &daysOff)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lunchStart.Valid {
		s.LunchStart = lunchStart.String
	}
	if lunchEnd.Valid {
		s.LunchEnd = lunchEnd.String
	}
	s.DaysOff = splitInts(daysOff)
	return &s, nil
}

// Holidays returns the closed dates keyed by "YYYY-MM-DD".
func (db *DB) Holidays(ctx context.Context) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT date, name FROM holidays`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var date, name string
		if err := rows.Scan(&date, &name); err != nil {
			return nil, err
		}
		out[date] = name
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func joinInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func splitInts(s string) []int {
	if s == "" {
		return nil
	}
	var out []int
	for _, p := range strings.Split(s, ",") {
		if v, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			out = append(out, v)
		}
	}
	return out
}
