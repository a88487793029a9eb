package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/availability"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/booking"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/model"

	"github.com/rs/zerolog"
)

type errorResponse struct {
	Code      string `json:"code"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

type dayResponse struct {
	ID          string   `json:"id"`
	Date        string   `json:"date"`
	DayName     string   `json:"day_name"`
	DayCode     string   `json:"day_code"`
	Times       []string `json:"times"`
	PrimaryTime string   `json:"primary_time"`
}

type availabilityResponse struct {
	State         booking.AvailabilityState `json:"state"`
	DoctorID      int64                     `json:"doctor_id,omitempty"`
	Days          []dayResponse             `json:"days"`
	SelectedIndex int                       `json:"selected_index"`
	Error         *errorResponse            `json:"error,omitempty"`
}

type viewResponse struct {
	SessionID    string               `json:"session_id"`
	Step         booking.Step         `json:"step"`
	Draft        model.BookingDraft   `json:"draft"`
	Specialty    *model.Specialty     `json:"specialty,omitempty"`
	Doctor       *model.Doctor        `json:"doctor,omitempty"`
	Availability availabilityResponse `json:"availability"`
	Submitting   bool                 `json:"submitting"`
	Error        *errorResponse       `json:"error,omitempty"`
	Result       *model.BookingResult `json:"result,omitempty"`
	Outcome      *booking.Outcome     `json:"outcome,omitempty"`
	Warning      string               `json:"warning,omitempty"`
}

func newViewResponse(id string, v booking.View, lang string) viewResponse {
	resp := viewResponse{
		SessionID:  id,
		Step:       v.Step,
		Draft:      v.Draft,
		Specialty:  v.Specialty,
		Doctor:     v.Doctor,
		Submitting: v.Submitting,
		Result:     v.Result,
		Outcome:    v.Outcome,
		Availability: availabilityResponse{
			State:         v.Availability.State,
			DoctorID:      v.Availability.DoctorID,
			Days:          make([]dayResponse, 0, len(v.Availability.Days)),
			SelectedIndex: v.Availability.SelectedIndex,
		},
	}
	for _, d := range v.Availability.Days {
		resp.Availability.Days = append(resp.Availability.Days, dayResponse{
			ID:          d.UniqueID(),
			Date:        d.Date.Format("2006-01-02"),
			DayName:     d.DayName,
			DayCode:     d.DayCode,
			Times:       d.Times,
			PrimaryTime: d.PrimaryTime(),
		})
	}
	if v.Availability.Err != nil {
		_, e := describeError(v.Availability.Err, lang)
		resp.Availability.Error = &e
	}
	if v.LastError != nil {
		_, e := describeError(v.LastError, lang)
		resp.Error = &e
	}
	if v.Outcome != nil && v.Outcome.Warning != nil {
		resp.Warning = v.Outcome.Warning.Message(lang)
	}
	return resp
}

// describeError maps domain errors to a status code and a client payload.
func describeError(err error, lang string) (int, errorResponse) {
	var (
		verr   booking.ValidationError
		aerr   *availability.Error
		suberr *booking.SubmissionError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, errorResponse{Code: verr.Code(), Error: verr.Message(lang)}
	case errors.As(err, &aerr):
		return http.StatusBadGateway, errorResponse{Code: "availability_failed", Error: err.Error(), Retryable: true}
	case errors.As(err, &suberr):
		return http.StatusBadGateway, errorResponse{Code: string(suberr.Kind), Error: err.Error(), Retryable: suberr.Retryable()}
	case errors.Is(err, booking.ErrBusy):
		return http.StatusConflict, errorResponse{Code: "busy", Error: err.Error(), Retryable: true}
	case errors.Is(err, booking.ErrSessionNotFound),
		errors.Is(err, booking.ErrUnknownSpecialty),
		errors.Is(err, booking.ErrUnknownDoctor):
		return http.StatusNotFound, errorResponse{Code: "not_found", Error: err.Error()}
	case errors.Is(err, booking.ErrUnknownSlot),
		errors.Is(err, booking.ErrUnknownMethod):
		return http.StatusBadRequest, errorResponse{Code: "invalid_selection", Error: err.Error()}
	case errors.Is(err, booking.ErrWrongStep),
		errors.Is(err, booking.ErrNotAtConfirm),
		errors.Is(err, booking.ErrSubmitRequired),
		errors.Is(err, booking.ErrFinished),
		errors.Is(err, booking.ErrNoPreviousStep):
		return http.StatusConflict, errorResponse{Code: "invalid_step", Error: err.Error()}
	}
	return http.StatusInternalServerError, errorResponse{Code: "internal", Error: "internal error"}
}

func language(r *http.Request) string {
	if strings.HasPrefix(strings.ToLower(r.Header.Get("Accept-Language")), "en") {
		return "en"
	}
	return "ar"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, msg string, retryable bool) {
	writeJSON(w, status, errorResponse{Code: code, Error: msg, Retryable: retryable})
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := describeError(err, language(r))
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, body)
}

func decodeBody(r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	// Chunked requests report ContentLength -1 even when empty.
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
