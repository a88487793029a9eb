package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/model"

	"github.com/google/uuid"
)

// ErrSlotTaken is returned when the doctor already has an active booking at the same start.
var ErrSlotTaken = errors.New("slot already booked")

// CreateBooking inserts the booking and returns its id. An empty id is
// replaced by a new uuid.
func (db *DB) CreateBooking(ctx context.Context, b model.Booking) (string, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = model.StatusPending
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin booking: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE doctor_id = ? AND start_time = ? AND status != ?`,
		b.DoctorID, b.StartTime.UTC(), model.StatusCancelled,
	).Scan(&count)
	if err != nil {
		return "", fmt.Errorf("check slot: %w", err)
	}
	if count > 0 {
		return "", ErrSlotTaken
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookings (
			id, specialty_id, specialty_name, doctor_id, doctor_name, day_id, start_time,
			user_name, user_phone, user_email, notes, method, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.SpecialtyID, b.SpecialtyName, b.DoctorID, b.DoctorName, b.DayID, b.StartTime.UTC(),
		b.UserName, b.UserPhone, b.UserEmail, b.Notes, string(b.Method), b.Status, b.CreatedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert booking: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit booking: %w", err)
	}
	return b.ID, nil
}

// BookedStarts returns start times of active bookings of a doctor in [from, to).
func (db *DB) BookedStarts(ctx context.Context, doctorID int64, from, to time.Time) ([]time.Time, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT start_time FROM bookings
		WHERE doctor_id = ? AND start_time >= ? AND start_time < ? AND status != ?
		ORDER BY start_time`,
		doctorID, from.UTC(), to.UTC(), model.StatusCancelled,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListBookings returns bookings whose slot starts in [from, to), ordered by start.
func (db *DB) ListBookings(ctx context.Context, from, to time.Time) ([]model.Booking, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, specialty_id, specialty_name, doctor_id, doctor_name, day_id, start_time,
		       user_name, user_phone, user_email, notes, method, status, created_at
		FROM bookings
		WHERE start_time >= ? AND start_time < ?
		ORDER BY start_time, created_at`,
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Booking, 0)
	for rows.Next() {
		var b model.Booking
		var method string
		if err := rows.Scan(
			&b.ID, &b.SpecialtyID, &b.SpecialtyName, &b.DoctorID, &b.DoctorName, &b.DayID, &b.StartTime,
			&b.UserName, &b.UserPhone, &b.UserEmail, &b.Notes, &method, &b.Status, &b.CreatedAt,
		); err != nil {
			return nil, err
		}
		b.Method = model.Method(method)
		out = append(out, b)
	}
	return out, rows.Err()
}
