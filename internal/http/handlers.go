package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/seatmap-engine/internal/domain"
	"github.com/robertarktes/seatmap-engine/internal/observability"
	"github.com/robertarktes/seatmap-engine/internal/seating"
)

const (
	maxBodyBytes = 1 << 20

	// defaultMaxPerUser applies when an event is created without max_per_user.
	defaultMaxPerUser = 4

	compensateTimeout = 5 * time.Second
)

type SeatEngine interface {
	CreateSeatMap(ctx context.Context, eventID, venueID uuid.UUID, rows, cols int) (*domain.SeatMap, error)
	GetSeatMap(ctx context.Context, eventID uuid.UUID) (*domain.SeatMap, error)
	Stats(ctx context.Context, eventID uuid.UUID) (domain.Stats, error)
	Hold(ctx context.Context, eventID uuid.UUID, holder string, seatIDs []string, lease time.Duration) (*seating.HoldResult, error)
	Release(ctx context.Context, eventID uuid.UUID, holder string, seatIDs []string) ([]string, error)
	Confirm(ctx context.Context, eventID uuid.UUID, holder string, seatIDs []string) ([]string, error)
	MaxLease() time.Duration
}

type EventCatalog interface {
	CreateEvent(ctx context.Context, ev domain.Event) error
	SetEventStatus(ctx context.Context, id uuid.UUID, status domain.EventStatus) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error
}

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	engine  SeatEngine
	catalog EventCatalog
	checks  map[string]HealthChecker
	logger  observability.Logger
}

func NewHandlers(engine SeatEngine, catalog EventCatalog, checks map[string]HealthChecker, logger observability.Logger) *Handlers {
	return &Handlers{engine: engine, catalog: catalog, checks: checks, logger: logger}
}

func (h *Handlers) log(r *http.Request) observability.Logger {
	return LoggerFrom(r.Context(), h.logger)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrapf(domain.ErrInvalidInput, "malformed body: %v", err)
	}
	return nil
}

func eventIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "eventID"))
	if err != nil {
		return uuid.Nil, errors.Wrap(domain.ErrInvalidInput, "invalid event id")
	}
	return id, nil
}

type createEventRequest struct {
	VenueID    uuid.UUID `json:"venue_id"`
	Rows       int       `json:"rows"`
	Cols       int       `json:"cols"`
	MaxPerUser *int      `json:"max_per_user"`
	Capacity   int       `json:"capacity"`
}

type eventResponse struct {
	ID         uuid.UUID          `json:"id"`
	VenueID    uuid.UUID          `json:"venue_id"`
	Status     domain.EventStatus `json:"status"`
	MaxPerUser int                `json:"max_per_user"`
	Capacity   int                `json:"capacity"`
	Stats      domain.Stats       `json:"seats"`
}

// CreateEvent registers a DRAFT event in the catalog and lays out its seat map.
func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.log(r), err)
		return
	}
	if req.VenueID == uuid.Nil {
		writeError(w, h.log(r), errors.Wrap(domain.ErrInvalidInput, "venue_id is required"))
		return
	}
	maxPerUser := defaultMaxPerUser
	if req.MaxPerUser != nil {
		maxPerUser = *req.MaxPerUser
	}
	if maxPerUser < 0 {
		writeError(w, h.log(r), errors.Wrap(domain.ErrInvalidInput, "max_per_user must not be negative"))
		return
	}
	if req.Capacity <= 0 {
		req.Capacity = req.Rows * req.Cols
	}

	ev := domain.Event{
		ID:         uuid.New(),
		VenueID:    req.VenueID,
		Status:     domain.EventDraft,
		MaxPerUser: maxPerUser,
		Capacity:   req.Capacity,
	}
	if _, err := domain.NewSeatMap(ev.ID, ev.VenueID, req.Rows, req.Cols); err != nil {
		writeError(w, h.log(r), err)
		return
	}
	if err := h.catalog.CreateEvent(r.Context(), ev); err != nil {
		writeError(w, h.log(r), err)
		return
	}
	m, err := h.engine.CreateSeatMap(r.Context(), ev.ID, ev.VenueID, req.Rows, req.Cols)
	if err != nil {
		h.discardEvent(r, ev.ID)
		writeError(w, h.log(r), err)
		return
	}

	writeJSON(w, http.StatusCreated, eventResponse{
		ID:         ev.ID,
		VenueID:    ev.VenueID,
		Status:     ev.Status,
		MaxPerUser: ev.MaxPerUser,
		Capacity:   ev.Capacity,
		Stats:      m.Stats(time.Now()),
	})
}

// discardEvent removes a catalog row whose seat map could not be created, so
// a failed request leaves no DRAFT event behind.
func (h *Handlers) discardEvent(r *http.Request, id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), compensateTimeout)
	defer cancel()
	if err := h.catalog.DeleteEvent(ctx, id); err != nil {
		h.log(r).WithError(err).WithField("event_id", id.String()).Error("failed to discard event without seat map")
	}
}

func (h *Handlers) SetEventStatus(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		writeError(w, h.log(r), err)
		return
	}
	var req struct {
		Status domain.EventStatus `json:"status"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.log(r), err)
		return
	}
	switch req.Status {
	case domain.EventDraft, domain.EventActive, domain.EventClosed:
	default:
		writeError(w, h.log(r), errors.Wrapf(domain.ErrInvalidInput, "unknown status %q", req.Status))
		return
	}
	if err := h.catalog.SetEventStatus(r.Context(), eventID, req.Status); err != nil {
		writeError(w, h.log(r), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": eventID, "status": req.Status})
}

func (h *Handlers) CreateSeatMap(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		writeError(w, h.log(r), err)
		return
	}
	var req struct {
		VenueID uuid.UUID `json:"venue_id"`
		Rows    int       `json:"rows"`
		Cols    int       `json:"cols"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.log(r), err)
		return
	}
	m, err := h.engine.CreateSeatMap(r.Context(), eventID, req.VenueID, req.Rows, req.Cols)
	if err != nil {
		writeError(w, h.log(r), err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handlers) GetSeats(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		writeError(w, h.log(r), err)
		return
	}
	m, err := h.engine.GetSeatMap(r.Context(), eventID)
	if err != nil {
		writeError(w, h.log(r), err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		writeError(w, h.log(r), err)
		return
	}
	stats, err := h.engine.Stats(r.Context(), eventID)
	if err != nil {
		writeError(w, h.log(r), err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type holdResponse struct {
	EventID   uuid.UUID `json:"event_id"`
	Seats     []string  `json:"seats"`
	HoldUntil time.Time `json:"hold_until"`
}

func (h *Handlers) Hold(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		writeError(w, h.log(r), err)
		return
	}
	var req struct {
		Seats        []string `json:"seats"`
		LeaseSeconds int      `json:"lease_seconds"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.log(r), err)
		return
	}
	if req.LeaseSeconds < 0 {
		writeError(w, h.log(r), errors.Wrap(domain.ErrInvalidInput, "lease_seconds must not be negative"))
		return
	}
	if maxSeconds := int64(h.engine.MaxLease() / time.Second); int64(req.LeaseSeconds) > maxSeconds {
		writeError(w, h.log(r), errors.Wrapf(domain.ErrInvalidInput, "lease_seconds must not exceed %d", maxSeconds))
		return
	}

	p, _ := PrincipalFrom(r.Context())
	res, err := h.engine.Hold(r.Context(), eventID, p.ID, req.Seats, time.Duration(req.LeaseSeconds)*time.Second)
	if err != nil {
		writeError(w, h.log(r), err)
		return
	}
	writeJSON(w, http.StatusCreated, holdResponse{EventID: eventID, Seats: res.Seats, HoldUntil: res.HoldUntil})
}

func (h *Handlers) Release(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		writeError(w, h.log(r), err)
		return
	}
	var req struct {
		Seats []string `json:"seats"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.log(r), err)
		return
	}

	p, _ := PrincipalFrom(r.Context())
	released, err := h.engine.Release(r.Context(), eventID, p.ID, req.Seats)
	if err != nil {
		writeError(w, h.log(r), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"released": nonNil(released)})
}

// Confirm sells seats held by the caller. Admin and service callers may
// confirm on behalf of user_id.
func (h *Handlers) Confirm(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		writeError(w, h.log(r), err)
		return
	}
	var req struct {
		Seats  []string `json:"seats"`
		UserID string   `json:"user_id"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.log(r), err)
		return
	}

	p, _ := PrincipalFrom(r.Context())
	holder := p.ID
	if req.UserID != "" && req.UserID != p.ID {
		if p.Role != RoleAdmin && p.Role != RoleService {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden", Message: "cannot confirm for another user"})
			return
		}
		holder = req.UserID
	}

	confirmed, err := h.engine.Confirm(r.Context(), eventID, holder, req.Seats)
	if err != nil {
		writeError(w, h.log(r), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"confirmed": nonNil(confirmed)})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		h.log(r).WithField("failed", failed).Warn("not ready")
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "unavailable", "failed": failed})
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
