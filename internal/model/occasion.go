package model

import "time"

// OccasionStatus represents the lifecycle stage of an occasion.
// Transitions are linear (pending -> started -> ended) and driven only by
// the lifecycle jobs; pending may also jump straight to ended.
type OccasionStatus string

const (
	OccasionStatusPending OccasionStatus = "pending" // Window has not opened yet
	OccasionStatusStarted OccasionStatus = "started" // Inside start_at..ends_at
	OccasionStatusEnded   OccasionStatus = "ended"   // Window elapsed
)

// OccasionDuration is the fixed length of an occasion window
const OccasionDuration = 6 * time.Hour

// IsValid reports whether s is a known occasion status
func (s OccasionStatus) IsValid() bool {
	switch s {
	case OccasionStatusPending, OccasionStatusStarted, OccasionStatusEnded:
		return true
	}
	return false
}

// HijriDate is the optional lunar calendar date of an occasion
type HijriDate struct {
	Year  *int `json:"year,omitempty"`
	Month *int `json:"month,omitempty"`
	Day   *int `json:"day,omitempty"`
}

// OccasionRating is a single 1-5 score given to a sub-event
type OccasionRating struct {
	Score     int       `json:"score"`
	RatingBy  string    `json:"rating_by"`
	CreatedOn time.Time `json:"created_on"`
}

// OccasionEvent is a programme item inside an occasion
type OccasionEvent struct {
	ID     string           `json:"id,omitempty"`
	Type   string           `json:"type,omitempty"`
	Name   string           `json:"name,omitempty"`
	Party  string           `json:"party,omitempty"`
	Rating []OccasionRating `json:"rating,omitempty"`
}

// Occasion represents a scheduled gathering with a fixed time window
type Occasion struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Location    string          `json:"location,omitempty"`
	CreatedBy   string          `json:"created_by"`
	Status      OccasionStatus  `json:"status"`
	StartAt     time.Time       `json:"start_at"`
	EndsAt      time.Time       `json:"ends_at"`
	Attendees   []string        `json:"attendees"`
	HijriDate   *HijriDate      `json:"hijri_date,omitempty"`
	Events      []OccasionEvent `json:"events,omitempty"`
	CreatedOn   time.Time       `json:"created_on"`
	UpdatedOn   time.Time       `json:"updated_on"`
}

// IsActive reports whether attendance can be taken
func (o *Occasion) IsActive() bool {
	return o.Status == OccasionStatusStarted
}

// Overlaps reports whether o's window intersects [start, end)
func (o *Occasion) Overlaps(start, end time.Time) bool {
	return o.StartAt.Before(end) && o.EndsAt.After(start)
}

// OccasionTransition describes one conditional bulk status update:
// every occasion in status From whose window matches the time bounds is
// moved to To and stamped with At.
type OccasionTransition struct {
	From OccasionStatus
	To   OccasionStatus
	At   time.Time

	// StartedBy requires start_at <= At
	StartedBy bool
	// EndedBy requires ends_at <= At; otherwise ends_at > At is required
	// when StartedBy is set.
	EndedBy bool
}

// Matches applies the transition predicate to a single occasion
func (t OccasionTransition) Matches(o *Occasion) bool {
	if o.Status != t.From {
		return false
	}
	if t.StartedBy && o.StartAt.After(t.At) {
		return false
	}
	if t.EndedBy {
		return !o.EndsAt.After(t.At)
	}
	if t.StartedBy {
		return o.EndsAt.After(t.At)
	}
	return true
}

// StartDueTransition selects pending occasions whose window contains now
func StartDueTransition(now time.Time) OccasionTransition {
	return OccasionTransition{
		From:      OccasionStatusPending,
		To:        OccasionStatusStarted,
		At:        now,
		StartedBy: true,
	}
}

// EndDueTransition selects pending occasions whose window has fully elapsed.
// Occasions that were never started are caught here too.
func EndDueTransition(now time.Time) OccasionTransition {
	return OccasionTransition{
		From:    OccasionStatusPending,
		To:      OccasionStatusEnded,
		At:      now,
		EndedBy: true,
	}
}

// CreateOccasionRequest represents a request to schedule an occasion.
// StartAt supplies the calendar date and Time the time of day.
type CreateOccasionRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Location    string          `json:"location,omitempty"`
	CreatedBy   string          `json:"created_by"`
	StartAt     time.Time       `json:"start_at"`
	Time        time.Time       `json:"time"`
	HijriDate   *HijriDate      `json:"hijri_date,omitempty"`
	Events      []OccasionEvent `json:"events,omitempty"`
}

// AttendanceMark is a single attendance update inside an occasion update
type AttendanceMark struct {
	UserID string           `json:"user_id"`
	Status AttendanceStatus `json:"status"`
}

// UpdateOccasionRequest represents a partial occasion update.
// CreatedBy and StartAt are present only so they can be rejected.
type UpdateOccasionRequest struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Location    *string          `json:"location,omitempty"`
	EndsAt      *time.Time       `json:"ends_at,omitempty"`
	HijriDate   *HijriDate       `json:"hijri_date,omitempty"`
	Events      []OccasionEvent  `json:"events,omitempty"`
	Attendance  []AttendanceMark `json:"attendance,omitempty"`
	CreatedBy   *string          `json:"created_by,omitempty"`
	StartAt     *time.Time       `json:"start_at,omitempty"`
}
