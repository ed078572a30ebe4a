package http

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/seatmap-engine/internal/domain"
	"github.com/robertarktes/seatmap-engine/internal/observability"
)

type errorBody struct {
	Error     string   `json:"error"`
	Message   string   `json:"message,omitempty"`
	Seats     []string `json:"seats,omitempty"`
	Current   *int     `json:"current,omitempty"`
	Requested *int     `json:"requested,omitempty"`
	Max       *int     `json:"max,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors onto status codes. Anything unclassified is
// a store or transport failure and worth retrying.
func writeError(w http.ResponseWriter, logger observability.Logger, err error) {
	var unavailable *domain.SeatUnavailableError
	var quota *domain.QuotaExceededError

	switch {
	case errors.As(err, &unavailable):
		writeJSON(w, http.StatusConflict, errorBody{Error: "seat_unavailable", Seats: unavailable.SeatIDs})
	case errors.As(err, &quota):
		writeJSON(w, http.StatusConflict, errorBody{
			Error:     "quota_exceeded",
			Current:   &quota.Current,
			Requested: &quota.Requested,
			Max:       &quota.Max,
		})
	case errors.Is(err, domain.ErrEventNotBookable):
		writeJSON(w, http.StatusConflict, errorBody{Error: "event_not_bookable", Message: err.Error()})
	case errors.Is(err, domain.ErrDuplicateSeatMap):
		writeJSON(w, http.StatusConflict, errorBody{Error: "seatmap_exists"})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: "conflict", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_input", Message: err.Error()})
	case errors.Is(err, domain.ErrEventNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "event_not_found"})
	case errors.Is(err, domain.ErrSeatMapNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "seatmap_not_found"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found"})
	default:
		logger.WithError(err).Error("request failed")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "unavailable"})
	}
}
