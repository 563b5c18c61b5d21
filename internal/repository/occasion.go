package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/forgo/occasions/api/internal/database"
	"github.com/forgo/occasions/api/internal/model"
)

const occasionTable = "occasion"

// OccasionRepository handles occasion data access
type OccasionRepository struct {
	db database.Database
}

// NewOccasionRepository creates a new occasion repository
func NewOccasionRepository(db database.Database) *OccasionRepository {
	return &OccasionRepository{db: db}
}

// Create creates a new occasion. Status defaults to pending.
func (r *OccasionRepository) Create(ctx context.Context, occasion *model.Occasion) error {
	status := occasion.Status
	if status == "" {
		status = model.OccasionStatusPending
	}
	attendees := occasion.Attendees
	if attendees == nil {
		attendees = []string{}
	}
	events := make([]interface{}, 0, len(occasion.Events))
	for _, e := range occasion.Events {
		events = append(events, eventToMap(e))
	}

	query := `
		CREATE occasion CONTENT {
			name: $name,
			description: $description,
			location: $location,
			created_by: $created_by,
			status: $status,
			start_at: <datetime>$start_at,
			ends_at: <datetime>$ends_at,
			attendees: $attendees,
			hijri_date: $hijri_date,
			events: $events,
			created_on: time::now(),
			updated_on: time::now()
		}
	`

	vars := map[string]interface{}{
		"name":        occasion.Name,
		"description": occasion.Description,
		"location":    occasion.Location,
		"created_by":  occasion.CreatedBy,
		"status":      string(status),
		"start_at":    formatTime(occasion.StartAt),
		"ends_at":     formatTime(occasion.EndsAt),
		"attendees":   attendees,
		"hijri_date":  hijriToMap(occasion.HijriDate),
		"events":      events,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return fmt.Errorf("create occasion: %w", err)
	}

	record, err := database.FirstRecord(result)
	if err != nil {
		return fmt.Errorf("create occasion: %w", err)
	}
	created, err := parseOccasionResult(record)
	if err != nil {
		return fmt.Errorf("create occasion: %w", err)
	}

	*occasion = *created
	return nil
}

// GetByID retrieves an occasion by ID. Returns nil, nil when absent or when
// id names a record in another table.
func (r *OccasionRepository) GetByID(ctx context.Context, id string) (*model.Occasion, error) {
	key, ok := recordKey(occasionTable, id)
	if !ok {
		return nil, nil
	}
	query := `SELECT * FROM type::thing($tb, $id)`
	vars := map[string]interface{}{"tb": occasionTable, "id": key}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	occasion, err := parseOccasionResult(result)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return occasion, nil
}

// List retrieves all occasions, newest first
func (r *OccasionRepository) List(ctx context.Context) ([]*model.Occasion, error) {
	query := `SELECT * FROM occasion ORDER BY start_at DESC`

	result, err := r.db.Query(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	return parseOccasionsResult(result)
}

// ListByStatus retrieves occasions in any of the given statuses
func (r *OccasionRepository) ListByStatus(ctx context.Context, statuses []model.OccasionStatus) ([]*model.Occasion, error) {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}

	query := `SELECT * FROM occasion WHERE status IN $statuses ORDER BY start_at DESC`
	vars := map[string]interface{}{"statuses": names}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return parseOccasionsResult(result)
}

// ListStartingBetween retrieves occasions with from <= start_at < to,
// earliest first
func (r *OccasionRepository) ListStartingBetween(ctx context.Context, from, to time.Time) ([]*model.Occasion, error) {
	query := `
		SELECT * FROM occasion
		WHERE start_at >= <datetime>$from AND start_at < <datetime>$to
		ORDER BY start_at ASC
	`
	vars := map[string]interface{}{
		"from": formatTime(from),
		"to":   formatTime(to),
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return parseOccasionsResult(result)
}

// FindOverlappingPending returns a pending occasion whose window intersects
// [start, end), or nil when there is none.
func (r *OccasionRepository) FindOverlappingPending(ctx context.Context, start, end time.Time) (*model.Occasion, error) {
	query := `
		SELECT * FROM occasion
		WHERE status = $status
			AND start_at < <datetime>$end
			AND ends_at > <datetime>$start
		LIMIT 1
	`
	vars := map[string]interface{}{
		"status": string(model.OccasionStatusPending),
		"start":  formatTime(start),
		"end":    formatTime(end),
	}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return parseOccasionResult(result)
}

// Update applies field updates and returns the updated occasion
func (r *OccasionRepository) Update(ctx context.Context, id string, updates map[string]interface{}) (*model.Occasion, error) {
	key, ok := recordKey(occasionTable, id)
	if !ok {
		return nil, nil
	}
	query := `UPDATE occasion SET updated_on = time::now()`
	vars := map[string]interface{}{"tb": occasionTable, "occasion_id": key}

	for _, key := range sortedKeys(updates) {
		switch v := updates[key].(type) {
		case time.Time:
			query += ", " + key + " = <datetime>$" + key
			vars[key] = formatTime(v)
			continue
		case []model.OccasionEvent:
			vars[key] = eventsToValue(v)
		case *model.HijriDate:
			vars[key] = hijriToMap(v)
		default:
			vars[key] = v
		}
		query += ", " + key + " = $" + key
	}

	query += ` WHERE id = type::thing($tb, $occasion_id) RETURN AFTER`

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return parseOccasionResult(result)
}

// AddAttendees adds users to the attendee set without duplicates
func (r *OccasionRepository) AddAttendees(ctx context.Context, id string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	key, ok := recordKey(occasionTable, id)
	if !ok {
		return fmt.Errorf("%w: %s", database.ErrNotFound, id)
	}
	query := `
		UPDATE type::thing($tb, $id) SET
			attendees = array::union(attendees ?? [], $user_ids),
			updated_on = time::now()
	`
	vars := map[string]interface{}{
		"tb":       occasionTable,
		"id":       key,
		"user_ids": userIDs,
	}
	return r.db.Execute(ctx, query, vars)
}

// Delete deletes an occasion. Returns false when it did not exist.
func (r *OccasionRepository) Delete(ctx context.Context, id string) (bool, error) {
	key, ok := recordKey(occasionTable, id)
	if !ok {
		return false, nil
	}
	query := `DELETE type::thing($tb, $id) RETURN BEFORE`
	vars := map[string]interface{}{"tb": occasionTable, "id": key}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return false, err
	}
	return len(database.Records(result)) > 0, nil
}

// TransitionStatus moves every occasion matched by t to t.To in a single
// statement and returns how many were changed. Re-running it with the same
// instant changes nothing, so a retried job cannot double-apply.
func (r *OccasionRepository) TransitionStatus(ctx context.Context, t model.OccasionTransition) (int, error) {
	query := `UPDATE occasion SET status = $to, updated_on = <datetime>$at WHERE status = $from`
	if t.StartedBy {
		query += ` AND start_at <= <datetime>$at`
	}
	if t.EndedBy {
		query += ` AND ends_at <= <datetime>$at`
	} else if t.StartedBy {
		query += ` AND ends_at > <datetime>$at`
	}
	query += ` RETURN AFTER`

	vars := map[string]interface{}{
		"from": string(t.From),
		"to":   string(t.To),
		"at":   formatTime(t.At),
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return 0, fmt.Errorf("transition %s -> %s: %w", t.From, t.To, err)
	}
	return len(database.Records(result)), nil
}

func parseOccasionResult(result interface{}) (*model.Occasion, error) {
	data, err := unwrapRecord(result)
	if err != nil {
		return nil, err
	}

	var occasion model.Occasion
	if err := decodeRecord(data, &occasion); err != nil {
		return nil, fmt.Errorf("decode occasion: %w", err)
	}
	if occasion.Attendees == nil {
		occasion.Attendees = []string{}
	}
	return &occasion, nil
}

func parseOccasionsResult(result []interface{}) ([]*model.Occasion, error) {
	records := database.Records(result)
	occasions := make([]*model.Occasion, 0, len(records))
	for _, rec := range records {
		occasion, err := parseOccasionResult(rec)
		if err != nil {
			return nil, err
		}
		occasions = append(occasions, occasion)
	}
	return occasions, nil
}

func hijriToMap(h *model.HijriDate) interface{} {
	if h == nil {
		return nil
	}
	m := map[string]interface{}{}
	if h.Year != nil {
		m["year"] = *h.Year
	}
	if h.Month != nil {
		m["month"] = *h.Month
	}
	if h.Day != nil {
		m["day"] = *h.Day
	}
	return m
}

func eventToMap(e model.OccasionEvent) map[string]interface{} {
	ratings := make([]interface{}, 0, len(e.Rating))
	for _, r := range e.Rating {
		ratings = append(ratings, map[string]interface{}{
			"score":      r.Score,
			"rating_by":  r.RatingBy,
			"created_on": formatTime(r.CreatedOn),
		})
	}
	return map[string]interface{}{
		"id":     e.ID,
		"type":   e.Type,
		"name":   e.Name,
		"party":  e.Party,
		"rating": ratings,
	}
}

func eventsToValue(events []model.OccasionEvent) []interface{} {
	out := make([]interface{}, 0, len(events))
	for _, e := range events {
		out = append(out, eventToMap(e))
	}
	return out
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
