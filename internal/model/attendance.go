package model

import "time"

// AttendanceStatus represents a member's presence at an occasion
type AttendanceStatus string

const (
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendancePresent AttendanceStatus = "present"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceExcused AttendanceStatus = "excused"
)

// IsValid reports whether s is a known attendance status
func (s AttendanceStatus) IsValid() bool {
	switch s {
	case AttendanceAbsent, AttendancePresent, AttendanceLate, AttendanceExcused:
		return true
	}
	return false
}

// Attendance is unique per (occasion, user)
type Attendance struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	OccasionID  string           `json:"occasion_id"`
	Status      AttendanceStatus `json:"status"`
	CheckedInAt *time.Time       `json:"checked_in_at,omitempty"`
	Notes       string           `json:"notes,omitempty"`
	CreatedOn   time.Time        `json:"created_on"`
	UpdatedOn   time.Time        `json:"updated_on"`
}
