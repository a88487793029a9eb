// Package export writes booking listings as Excel workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/booking"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/model"

	"github.com/xuri/excelize/v2"
)

// BookingColumns is the header row of the bookings sheet.
var BookingColumns = []string{
	"Reference", "Date", "Time", "Doctor", "Specialty",
	"Patient", "Phone", "Email", "Notes", "Method", "Status", "Created",
}

// Workbook is a thin row-oriented writer over an excelize file.
type Workbook struct {
	file  *excelize.File
	sheet string
	row   int
}

func NewWorkbook() *Workbook {
	return &Workbook{file: excelize.NewFile()}
}

// AddSheet switches to a new sheet. The first call renames the default one.
func (w *Workbook) AddSheet(name string) error {
	if len(name) > 31 {
		name = name[:31]
	}
	if w.sheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	w.sheet = name
	w.row = 1
	return nil
}

// WriteHeader writes a bold header row.
func (w *Workbook) WriteHeader(columns []string) error {
	values := make([]interface{}, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	start := w.row
	if err := w.WriteRow(values); err != nil {
		return err
	}
	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil
	}
	first, _ := excelize.CoordinatesToCellName(1, start)
	last, _ := excelize.CoordinatesToCellName(len(columns), start)
	_ = w.file.SetCellStyle(w.sheet, first, last, style)
	return nil
}

func (w *Workbook) WriteRow(row []interface{}) error {
	if w.sheet == "" {
		return fmt.Errorf("no active sheet")
	}
	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, w.row)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.sheet, cell, val); err != nil {
			return err
		}
	}
	w.row++
	return nil
}

func (w *Workbook) Write(out io.Writer) error {
	return w.file.Write(out)
}

func (w *Workbook) SaveAs(path string) error {
	return w.file.SaveAs(path)
}

func (w *Workbook) Close() error {
	return w.file.Close()
}

// Bookings renders bookings into a single "Bookings" sheet.
// Times are shown in loc.
func Bookings(out io.Writer, bookings []model.Booking, loc *time.Location) error {
	wb := NewWorkbook()
	defer wb.Close()

	if err := wb.AddSheet("Bookings"); err != nil {
		return err
	}
	if err := wb.WriteHeader(BookingColumns); err != nil {
		return err
	}
	for _, b := range bookings {
		if err := wb.WriteRow(bookingRow(b, loc)); err != nil {
			return fmt.Errorf("write booking %s: %w", b.ID, err)
		}
	}
	return wb.Write(out)
}

func bookingRow(b model.Booking, loc *time.Location) []interface{} {
	if loc == nil {
		loc = time.UTC
	}
	start := b.StartTime.In(loc)
	return []interface{}{
		booking.Reference(b.ID),
		start.Format("2006-01-02"),
		start.Format("15:04"),
		b.DoctorName,
		b.SpecialtyName,
		b.UserName,
		b.UserPhone,
		b.UserEmail,
		b.Notes,
		string(b.Method),
		b.Status,
		b.CreatedAt.In(loc).Format("2006-01-02 15:04"),
	}
}
