package api

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
)

// GET /api/specialties
func (s *HTTPServer) handleSpecialties(w http.ResponseWriter, r *http.Request) {
	list, err := s.directory.ListSpecialties(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("list specialties")
		writeError(w, http.StatusInternalServerError, "internal", "failed to load specialties", true)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"specialties": list})
}

// GET /api/doctors?specialty_id=
func (s *HTTPServer) handleDoctors(w http.ResponseWriter, r *http.Request) {
	var specialtyID int64
	if raw := r.URL.Query().Get("specialty_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid specialty_id", false)
			return
		}
		specialtyID = id
	}
	list, err := s.directory.ListDoctors(r.Context(), specialtyID)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("list doctors")
		writeError(w, http.StatusInternalServerError, "internal", "failed to load doctors", true)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doctors": list})
}
