package api

import (
	"net/http"

	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/booking"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type idRequest struct {
	ID int64 `json:"id"`
}

type slotRequest struct {
	DayID string `json:"day_id"`
	Time  string `json:"time"`
}

type methodRequest struct {
	Method model.Method `json:"method"`
}

// handleCreateSession starts a wizard, optionally seeded from a deep link.
// POST /api/wizard
func (s *HTTPServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var seed booking.Seed
	if err := decodeBody(r, &seed); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body", false)
		return
	}
	id, wiz, err := s.sessions.Create(r.Context(), seed)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Info().Str("session_id", id).Msg("booking session created")
	writeJSON(w, http.StatusCreated, newViewResponse(id, wiz.View(), language(r)))
}

// GET /api/wizard/{id}
func (s *HTTPServer) handleView(w http.ResponseWriter, r *http.Request) {
	s.withWizard(w, r, func(*booking.Wizard) error { return nil })
}

func (s *HTTPServer) handleSelectSpecialty(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.withWizard(w, r, func(wiz *booking.Wizard) error {
		return wiz.SelectSpecialty(r.Context(), req.ID)
	})
}

func (s *HTTPServer) handleSelectDoctor(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.withWizard(w, r, func(wiz *booking.Wizard) error {
		return wiz.SelectDoctor(r.Context(), req.ID)
	})
}

func (s *HTTPServer) handleSelectSlot(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.withWizard(w, r, func(wiz *booking.Wizard) error {
		return wiz.SelectSlot(req.DayID, req.Time)
	})
}

func (s *HTTPServer) handleContact(w http.ResponseWriter, r *http.Request) {
	var req booking.Contact
	if !s.decode(w, r, &req) {
		return
	}
	s.withWizard(w, r, func(wiz *booking.Wizard) error {
		return wiz.UpdateContact(req)
	})
}

func (s *HTTPServer) handleMethod(w http.ResponseWriter, r *http.Request) {
	var req methodRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.withWizard(w, r, func(wiz *booking.Wizard) error {
		return wiz.SetMethod(req.Method)
	})
}

func (s *HTTPServer) handleNext(w http.ResponseWriter, r *http.Request) {
	s.withWizard(w, r, func(wiz *booking.Wizard) error {
		return wiz.Next(r.Context())
	})
}

func (s *HTTPServer) handlePrevious(w http.ResponseWriter, r *http.Request) {
	s.withWizard(w, r, func(wiz *booking.Wizard) error {
		return wiz.Previous()
	})
}

func (s *HTTPServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	s.withWizard(w, r, func(wiz *booking.Wizard) error {
		return wiz.RetryAvailability(r.Context())
	})
}

// handleSubmit optionally switches the channel, then submits.
// POST /api/wizard/{id}/submit
func (s *HTTPServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req methodRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.withWizard(w, r, func(wiz *booking.Wizard) error {
		if req.Method != "" {
			if err := wiz.SetMethod(req.Method); err != nil {
				return err
			}
		}
		out, err := wiz.Submit(r.Context())
		if err != nil {
			return err
		}
		zerolog.Ctx(r.Context()).Info().
			Str("channel", string(out.Channel)).
			Str("booking_id", out.BookingID).
			Bool("degraded", out.PersistenceDegraded).
			Bool("pending", out.PersistencePending).
			Msg("booking submitted")
		return nil
	})
}

func (s *HTTPServer) handleReset(w http.ResponseWriter, r *http.Request) {
	s.withWizard(w, r, func(wiz *booking.Wizard) error {
		return wiz.Reset()
	})
}

func (s *HTTPServer) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeBody(r, v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body", false)
		return false
	}
	return true
}

// withWizard runs action against the session and answers with the view, or
// with the mapped error when the action failed.
func (s *HTTPServer) withWizard(w http.ResponseWriter, r *http.Request, action func(*booking.Wizard) error) {
	id := chi.URLParam(r, "id")
	wiz, err := s.sessions.Get(id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := action(wiz); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newViewResponse(id, wiz.View(), language(r)))
}
