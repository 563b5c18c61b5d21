package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/forgo/occasions/api/internal/model"
	"github.com/forgo/occasions/api/internal/service"
)

// OccasionService is the occasion behaviour the handler depends on
type OccasionService interface {
	Create(ctx context.Context, req *model.CreateOccasionRequest) (*model.Occasion, error)
	Get(ctx context.Context, id string) (*model.Occasion, error)
	List(ctx context.Context) ([]*model.Occasion, error)
	ListByStatus(ctx context.Context, statuses []string) ([]*model.Occasion, error)
	ListStartingIn(ctx context.Context, period service.DatePeriod, value string) ([]*model.Occasion, error)
	Update(ctx context.Context, id string, req *model.UpdateOccasionRequest) (*model.Occasion, error)
	Delete(ctx context.Context, id string) error
	ListAttendance(ctx context.Context, occasionID string) ([]*model.Attendance, error)
	GroupEventsByParty(ctx context.Context) ([]service.PartyGroup, error)
}

// OccasionHandler handles occasion HTTP requests
type OccasionHandler struct {
	svc OccasionService
}

// NewOccasionHandler creates a new occasion handler
func NewOccasionHandler(svc OccasionService) *OccasionHandler {
	return &OccasionHandler{svc: svc}
}

// Create handles POST /v1/occasions
func (h *OccasionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateOccasionRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	occasion, err := h.svc.Create(r.Context(), &req)
	if err != nil {
		h.handleError(w, err, "create occasion")
		return
	}

	WriteData(w, http.StatusCreated, occasion, occasionLinks(occasion.ID))
}

// List handles GET /v1/occasions
// Optional ?status=pending,started filters by one or more statuses. One of
// ?date=2026-03-14, ?month=2026-03 or ?year=2026 filters by start date
// instead. Filters cannot be combined.
func (h *OccasionHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	statuses := getStatusFilter(r)
	period, value, filters := getDateFilter(r)
	if len(statuses) > 0 {
		filters++
	}
	if filters > 1 {
		WriteError(w, model.NewBadRequestError("use only one of status, date, month or year"))
		return
	}

	var (
		occasions []*model.Occasion
		err       error
	)
	switch {
	case len(statuses) > 0:
		occasions, err = h.svc.ListByStatus(ctx, statuses)
	case period != "":
		occasions, err = h.svc.ListStartingIn(ctx, period, value)
	default:
		occasions, err = h.svc.List(ctx)
	}
	if err != nil {
		h.handleError(w, err, "list occasions")
		return
	}

	WriteCollection(w, http.StatusOK, occasions, len(occasions), nil)
}

// Get handles GET /v1/occasions/{occasionId}
func (h *OccasionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := occasionID(w, r)
	if !ok {
		return
	}

	occasion, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, err, "get occasion")
		return
	}

	WriteData(w, http.StatusOK, occasion, occasionLinks(occasion.ID))
}

// Update handles PATCH /v1/occasions/{occasionId}
func (h *OccasionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := occasionID(w, r)
	if !ok {
		return
	}

	var req model.UpdateOccasionRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	occasion, err := h.svc.Update(r.Context(), id, &req)
	if err != nil {
		h.handleError(w, err, "update occasion")
		return
	}

	WriteData(w, http.StatusOK, occasion, occasionLinks(occasion.ID))
}

// Delete handles DELETE /v1/occasions/{occasionId}
func (h *OccasionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := occasionID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.handleError(w, err, "delete occasion")
		return
	}

	WriteNoContent(w)
}

// Attendance handles GET /v1/occasions/{occasionId}/attendance
func (h *OccasionHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	id, ok := occasionID(w, r)
	if !ok {
		return
	}

	attendance, err := h.svc.ListAttendance(r.Context(), id)
	if err != nil {
		h.handleError(w, err, "list attendance")
		return
	}

	WriteCollection(w, http.StatusOK, attendance, len(attendance), nil)
}

// GroupByParty handles GET /v1/occasions/groups
func (h *OccasionHandler) GroupByParty(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.GroupEventsByParty(r.Context())
	if err != nil {
		h.handleError(w, err, "group events")
		return
	}

	WriteCollection(w, http.StatusOK, groups, len(groups), nil)
}

// handleError converts service errors to HTTP responses
func (h *OccasionHandler) handleError(w http.ResponseWriter, err error, operation string) {
	WriteError(w, MapServiceErrorWithContext(err, operation))
}

// occasionID reads the path ID, accepting both "occasion:abc" and "abc".
// Any other table prefix is answered with 400 and ok is false.
func occasionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	return recordPathID(w, r, "occasionId", "occasion")
}

func occasionLinks(id string) map[string]string {
	return map[string]string{
		"self":       "/v1/occasions/" + id,
		"attendance": "/v1/occasions/" + id + "/attendance",
	}
}

// getDateFilter returns the start date filter present in the query and how
// many date filters were given.
func getDateFilter(r *http.Request) (service.DatePeriod, string, int) {
	var (
		period service.DatePeriod
		value  string
		n      int
	)
	q := r.URL.Query()
	for _, p := range []service.DatePeriod{service.PeriodDay, service.PeriodMonth, service.PeriodYear} {
		if !q.Has(string(p)) {
			continue
		}
		n++
		period, value = p, q.Get(string(p))
	}
	return period, value, n
}

// getStatusFilter accepts both ?status=a,b and ?status=a&status=b
func getStatusFilter(r *http.Request) []string {
	var statuses []string
	for _, v := range r.URL.Query()["status"] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, s)
			}
		}
	}
	return statuses
}
