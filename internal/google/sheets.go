// Package google mirrors persisted bookings into a Google Sheets spreadsheet.
package google

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/booking"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/events"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// RowAppender appends rows to a spreadsheet range.
type RowAppender interface {
	Append(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) error
}

type valuesAPI struct {
	svc *sheets.Service
}

func (a *valuesAPI) Append(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) error {
	_, err := a.svc.Spreadsheets.Values.
		Append(spreadsheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// NewSheetsAppender authenticates with a service account key file.
func NewSheetsAppender(ctx context.Context, credentialsFile string) (RowAppender, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	conf, err := google.JWTConfigFromJSON(data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	svc, err := sheets.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &valuesAPI{svc: svc}, nil
}

// SheetsService appends each created booking once.
type SheetsService struct {
	appender      RowAppender
	spreadsheetID string
	rng           string
	timeout       time.Duration
	logger        *zerolog.Logger

	mu       sync.Mutex
	rowCache map[string]bool
}

func NewSheetsService(appender RowAppender, spreadsheetID, rng string, logger *zerolog.Logger) *SheetsService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SheetsService{
		appender:      appender,
		spreadsheetID: spreadsheetID,
		rng:           rng,
		timeout:       20 * time.Second,
		logger:        logger,
		rowCache:      make(map[string]bool),
	}
}

// Subscribe registers the mirror on the bus.
func (s *SheetsService) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.TypeBookingCreated, func(ev events.Event) error {
		var b model.Booking
		if err := ev.Decode(&b); err != nil {
			return fmt.Errorf("decode booking: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		return s.AppendBooking(ctx, b)
	})
}

// AppendBooking writes the booking row unless it was already mirrored.
func (s *SheetsService) AppendBooking(ctx context.Context, b model.Booking) error {
	if s.isCached(b.ID) {
		return nil
	}
	if err := s.appender.Append(ctx, s.spreadsheetID, s.rng, [][]interface{}{bookingRowValues(b)}); err != nil {
		return fmt.Errorf("append booking %s: %w", b.ID, err)
	}
	s.setCached(b.ID)
	s.logger.Debug().Str("booking_id", b.ID).Msg("booking mirrored to sheets")
	return nil
}

// ClearCache forgets which bookings were mirrored.
func (s *SheetsService) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCache = make(map[string]bool)
}

func (s *SheetsService) isCached(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rowCache[id]
}

func (s *SheetsService) setCached(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCache[id] = true
}

func bookingRowValues(b model.Booking) []interface{} {
	return []interface{}{
		booking.Reference(b.ID),
		b.ID,
		b.StartTime.Format("2006-01-02"),
		b.StartTime.Format("15:04"),
		b.DoctorName,
		b.SpecialtyName,
		b.UserName,
		b.UserPhone,
		b.UserEmail,
		b.Notes,
		string(b.Method),
		b.Status,
		b.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
