package repository

import (
	"context"
	"fmt"

	"github.com/forgo/occasions/api/internal/database"
	"github.com/forgo/occasions/api/internal/model"
)

// AttendanceRepository handles attendance data access
type AttendanceRepository struct {
	db database.Database
}

// NewAttendanceRepository creates a new attendance repository
func NewAttendanceRepository(db database.Database) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert records a member's attendance. The record ID is derived from the
// (occasion, user) pair so repeated marks update the same row.
func (r *AttendanceRepository) Upsert(ctx context.Context, a *model.Attendance) error {
	query := `
		UPSERT type::thing("attendance", [$occasion_id, $user_id]) SET
			occasion_id = $occasion_id,
			user_id = $user_id,
			status = $status,
			checked_in_at = IF $checked_in_at != NONE THEN <datetime>$checked_in_at ELSE NONE END,
			notes = $notes,
			created_on = created_on ?? time::now(),
			updated_on = time::now()
		RETURN AFTER
	`

	var checkedIn interface{}
	if a.CheckedInAt != nil {
		checkedIn = formatTime(*a.CheckedInAt)
	}

	vars := map[string]interface{}{
		"occasion_id":   a.OccasionID,
		"user_id":       a.UserID,
		"status":        string(a.Status),
		"checked_in_at": checkedIn,
		"notes":         a.Notes,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}

	record, err := database.FirstRecord(result)
	if err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	data, err := unwrapRecord(record)
	if err != nil {
		return err
	}

	a.ID = convertSurrealID(data["id"])
	a.CreatedOn = parseTime(data["created_on"])
	a.UpdatedOn = parseTime(data["updated_on"])
	return nil
}

// ListByOccasion retrieves every attendance mark for an occasion
func (r *AttendanceRepository) ListByOccasion(ctx context.Context, occasionID string) ([]*model.Attendance, error) {
	query := `SELECT * FROM attendance WHERE occasion_id = $occasion_id ORDER BY updated_on DESC`
	vars := map[string]interface{}{"occasion_id": occasionID}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	records := database.Records(result)
	marks := make([]*model.Attendance, 0, len(records))
	for _, rec := range records {
		data, err := unwrapRecord(rec)
		if err != nil {
			return nil, err
		}
		var a model.Attendance
		if err := decodeRecord(data, &a); err != nil {
			return nil, fmt.Errorf("decode attendance: %w", err)
		}
		marks = append(marks, &a)
	}
	return marks, nil
}
