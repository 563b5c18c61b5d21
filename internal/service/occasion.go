package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/forgo/occasions/api/internal/model"
	"github.com/google/uuid"
)

// OccasionRepository defines the interface for occasion storage
type OccasionRepository interface {
	Create(ctx context.Context, occasion *model.Occasion) error
	GetByID(ctx context.Context, id string) (*model.Occasion, error)
	List(ctx context.Context) ([]*model.Occasion, error)
	ListByStatus(ctx context.Context, statuses []model.OccasionStatus) ([]*model.Occasion, error)
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]*model.Occasion, error)
	FindOverlappingPending(ctx context.Context, start, end time.Time) (*model.Occasion, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) (*model.Occasion, error)
	AddAttendees(ctx context.Context, id string, userIDs []string) error
	Delete(ctx context.Context, id string) (bool, error)
}

// AttendanceRepository defines the interface for attendance storage
type AttendanceRepository interface {
	Upsert(ctx context.Context, attendance *model.Attendance) error
	ListByOccasion(ctx context.Context, occasionID string) ([]*model.Attendance, error)
}

// OccasionNotification is the payload of created and updated events
type OccasionNotification struct {
	Occasion *model.Occasion `json:"occasion"`
}

// OccasionDeletedNotification is the payload of the deleted event
type OccasionDeletedNotification struct {
	OccasionID string `json:"occasion_id"`
}

// AttendanceNotification is the payload of the attendance event
type AttendanceNotification struct {
	Attendance *model.Attendance `json:"attendance"`
}

// PartyGroup collects the programme events hosted by one party
type PartyGroup struct {
	Party  string                `json:"party"`
	Count  int                   `json:"count"`
	Events []model.OccasionEvent `json:"events"`
}

// OccasionService handles occasion business logic. Status is never
// changed here; the lifecycle jobs own it.
type OccasionService struct {
	repo       OccasionRepository
	attendance AttendanceRepository
	notifier   Notifier
	location   *time.Location
	now        func() time.Time
}

// OccasionServiceConfig holds configuration for the occasion service
type OccasionServiceConfig struct {
	OccasionRepo   OccasionRepository
	AttendanceRepo AttendanceRepository
	Notifier       Notifier
	// Location is used to combine the start date with the time of day.
	// Defaults to UTC.
	Location *time.Location
	Now      func() time.Time
}

// NewOccasionService creates a new occasion service
func NewOccasionService(cfg OccasionServiceConfig) *OccasionService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &OccasionService{
		repo:       cfg.OccasionRepo,
		attendance: cfg.AttendanceRepo,
		notifier:   cfg.Notifier,
		location:   cfg.Location,
		now:        cfg.Now,
	}
}

// Create schedules an occasion. The window opens on the calendar date of
// req.StartAt at the time of day of req.Time and lasts OccasionDuration.
func (s *OccasionService) Create(ctx context.Context, req *model.CreateOccasionRequest) (*model.Occasion, error) {
	switch {
	case req.Name == "":
		return nil, ErrOccasionNameRequired
	case req.StartAt.IsZero():
		return nil, ErrOccasionStartRequired
	case req.Time.IsZero():
		return nil, ErrOccasionTimeRequired
	}

	startAt := combineDateAndTime(req.StartAt, req.Time, s.location)
	endsAt := startAt.Add(model.OccasionDuration)

	conflict, err := s.repo.FindOverlappingPending(ctx, startAt, endsAt)
	if err != nil {
		return nil, fmt.Errorf("failed to check overlapping occasions: %w", err)
	}
	if conflict != nil {
		return nil, ErrOccasionOverlap
	}

	events, err := mergeEvents(nil, req.Events, s.now())
	if err != nil {
		return nil, err
	}

	occasion := &model.Occasion{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		CreatedBy:   req.CreatedBy,
		Status:      model.OccasionStatusPending,
		StartAt:     startAt,
		EndsAt:      endsAt,
		Attendees:   []string{},
		HijriDate:   req.HijriDate,
		Events:      events,
	}

	if err := s.repo.Create(ctx, occasion); err != nil {
		return nil, fmt.Errorf("failed to create occasion: %w", err)
	}

	s.publish(EventOccasionCreated, OccasionNotification{Occasion: occasion})
	return occasion, nil
}

// Get retrieves an occasion by ID
func (s *OccasionService) Get(ctx context.Context, id string) (*model.Occasion, error) {
	occasion, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get occasion: %w", err)
	}
	if occasion == nil {
		return nil, ErrOccasionNotFound
	}
	return occasion, nil
}

// List retrieves all occasions
func (s *OccasionService) List(ctx context.Context) ([]*model.Occasion, error) {
	return s.repo.List(ctx)
}

// ListByStatus retrieves occasions in any of the given statuses
func (s *OccasionService) ListByStatus(ctx context.Context, statuses []string) ([]*model.Occasion, error) {
	if len(statuses) == 0 {
		return nil, ErrStatusFilterRequired
	}

	filter := make([]model.OccasionStatus, 0, len(statuses))
	for _, raw := range statuses {
		status := model.OccasionStatus(raw)
		if !status.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidOccasionStatus, raw)
		}
		filter = append(filter, status)
	}
	return s.repo.ListByStatus(ctx, filter)
}

// DatePeriod is the calendar unit of a start date filter
type DatePeriod string

const (
	PeriodDay   DatePeriod = "date"
	PeriodMonth DatePeriod = "month"
	PeriodYear  DatePeriod = "year"
)

var periodLayouts = map[DatePeriod]string{
	PeriodDay:   "2006-01-02",
	PeriodMonth: "2006-01",
	PeriodYear:  "2006",
}

// ListStartingIn retrieves occasions whose start falls in the calendar day
// ("2026-05-01"), month ("2026-05") or year ("2026") named by value, read
// in the configured timezone.
func (s *OccasionService) ListStartingIn(ctx context.Context, period DatePeriod, value string) ([]*model.Occasion, error) {
	layout, ok := periodLayouts[period]
	if !ok {
		return nil, fmt.Errorf("%w: unknown period %q", ErrInvalidDateFilter, period)
	}
	from, err := time.ParseInLocation(layout, value, s.location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q must look like %s", ErrInvalidDateFilter, period, value, layout)
	}

	var to time.Time
	switch period {
	case PeriodDay:
		to = from.AddDate(0, 0, 1)
	case PeriodMonth:
		to = from.AddDate(0, 1, 0)
	case PeriodYear:
		to = from.AddDate(1, 0, 0)
	}
	return s.repo.ListStartingBetween(ctx, from, to)
}

// Update applies a partial update. Attendance marks are only accepted
// while the occasion is started; members marked present join the
// attendee set.
func (s *OccasionService) Update(ctx context.Context, id string, req *model.UpdateOccasionRequest) (*model.Occasion, error) {
	if req.CreatedBy != nil {
		return nil, fmt.Errorf("%w: created_by", ErrOccasionFieldImmutable)
	}
	if req.StartAt != nil {
		return nil, fmt.Errorf("%w: start_at", ErrOccasionFieldImmutable)
	}

	occasion, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, mark := range req.Attendance {
		if mark.UserID == "" {
			return nil, ErrAttendanceUserRequired
		}
		if !mark.Status.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAttendance, mark.Status)
		}
	}
	if len(req.Attendance) > 0 && !occasion.IsActive() {
		return nil, ErrOccasionNotActive
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		if *req.Name == "" {
			return nil, ErrOccasionNameRequired
		}
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.EndsAt != nil {
		if !req.EndsAt.After(occasion.StartAt) {
			return nil, ErrInvalidEndTime
		}
		updates["ends_at"] = *req.EndsAt
	}
	if req.HijriDate != nil {
		updates["hijri_date"] = req.HijriDate
	}
	if req.Events != nil {
		merged, err := mergeEvents(occasion.Events, req.Events, s.now())
		if err != nil {
			return nil, err
		}
		updates["events"] = merged
	}

	if err := s.markAttendance(ctx, id, req.Attendance); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to update occasion: %w", err)
	}
	if updated == nil {
		return nil, ErrOccasionNotFound
	}

	s.publish(EventOccasionUpdated, OccasionNotification{Occasion: updated})
	return updated, nil
}

func (s *OccasionService) markAttendance(ctx context.Context, occasionID string, marks []model.AttendanceMark) error {
	if len(marks) == 0 {
		return nil
	}

	now := s.now().UTC()
	present := make([]string, 0, len(marks))
	seen := make(map[string]bool, len(marks))

	for _, mark := range marks {
		checkedIn := now
		attendance := &model.Attendance{
			UserID:      mark.UserID,
			OccasionID:  occasionID,
			Status:      mark.Status,
			CheckedInAt: &checkedIn,
		}
		if err := s.attendance.Upsert(ctx, attendance); err != nil {
			return fmt.Errorf("failed to mark attendance: %w", err)
		}
		s.publish(EventOccasionAttendanceUpdated, AttendanceNotification{Attendance: attendance})

		if mark.Status == model.AttendancePresent && !seen[mark.UserID] {
			seen[mark.UserID] = true
			present = append(present, mark.UserID)
		}
	}

	if err := s.repo.AddAttendees(ctx, occasionID, present); err != nil {
		return fmt.Errorf("failed to add attendees: %w", err)
	}
	return nil
}

// ListAttendance retrieves attendance marks for an occasion
func (s *OccasionService) ListAttendance(ctx context.Context, occasionID string) ([]*model.Attendance, error) {
	if _, err := s.Get(ctx, occasionID); err != nil {
		return nil, err
	}
	return s.attendance.ListByOccasion(ctx, occasionID)
}

// Delete removes an occasion
func (s *OccasionService) Delete(ctx context.Context, id string) error {
	existed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete occasion: %w", err)
	}
	if !existed {
		return ErrOccasionNotFound
	}

	s.publish(EventOccasionDeleted, OccasionDeletedNotification{OccasionID: id})
	return nil
}

// GroupEventsByParty groups the programme events of every occasion by
// hosting party, largest group first
func (s *OccasionService) GroupEventsByParty(ctx context.Context) ([]PartyGroup, error) {
	occasions, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list occasions: %w", err)
	}

	byParty := make(map[string]*PartyGroup)
	for _, o := range occasions {
		for _, e := range o.Events {
			g, ok := byParty[e.Party]
			if !ok {
				g = &PartyGroup{Party: e.Party, Events: []model.OccasionEvent{}}
				byParty[e.Party] = g
			}
			g.Count++
			g.Events = append(g.Events, e)
		}
	}

	groups := make([]PartyGroup, 0, len(byParty))
	for _, g := range byParty {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Party < groups[j].Party
	})

	s.publish(EventOccasionEventsGrouped, map[string]interface{}{"grouped_parties": groups})
	return groups, nil
}

func (s *OccasionService) publish(name string, payload any) {
	if s.notifier != nil {
		s.notifier.Publish(name, payload)
	}
}

// combineDateAndTime takes the calendar date of date and the hour and
// minute of clock, both read in loc
func combineDateAndTime(date, clock time.Time, loc *time.Location) time.Time {
	d := date.In(loc)
	c := clock.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, loc)
}

// mergeEvents applies incoming events onto existing ones. Events are
// matched by ID; unmatched events are appended, and those without an ID
// get a fresh one.
// Ratings on a matched event are merged by rater.
func mergeEvents(existing, incoming []model.OccasionEvent, now time.Time) ([]model.OccasionEvent, error) {
	merged := make([]model.OccasionEvent, len(existing), len(existing)+len(incoming))
	copy(merged, existing)

	index := make(map[string]int, len(merged))
	for i, e := range merged {
		if e.ID != "" {
			index[e.ID] = i
		}
	}

	for _, in := range incoming {
		for _, r := range in.Rating {
			if r.Score < 1 || r.Score > 5 {
				return nil, ErrInvalidRatingScore
			}
		}

		i, ok := index[in.ID]
		if in.ID == "" || !ok {
			if in.ID == "" {
				in.ID = uuid.New().String()
			}
			in.Rating = stampRatings(in.Rating, now)
			index[in.ID] = len(merged)
			merged = append(merged, in)
			continue
		}

		current := merged[i]
		if in.Type != "" {
			current.Type = in.Type
		}
		if in.Name != "" {
			current.Name = in.Name
		}
		if in.Party != "" {
			current.Party = in.Party
		}
		if in.Rating != nil {
			current.Rating = mergeRatings(current.Rating, in.Rating, now)
		}
		merged[i] = current
	}
	return merged, nil
}

func mergeRatings(existing, incoming []model.OccasionRating, now time.Time) []model.OccasionRating {
	out := make([]model.OccasionRating, len(existing), len(existing)+len(incoming))
	copy(out, existing)

	byRater := make(map[string]int, len(out))
	for i, r := range out {
		if r.RatingBy != "" {
			byRater[r.RatingBy] = i
		}
	}

	for _, r := range incoming {
		if r.RatingBy == "" {
			continue
		}
		if i, ok := byRater[r.RatingBy]; ok {
			out[i].Score = r.Score
			continue
		}
		if r.CreatedOn.IsZero() {
			r.CreatedOn = now
		}
		byRater[r.RatingBy] = len(out)
		out = append(out, r)
	}
	return out
}

func stampRatings(ratings []model.OccasionRating, now time.Time) []model.OccasionRating {
	for i := range ratings {
		if ratings[i].CreatedOn.IsZero() {
			ratings[i].CreatedOn = now
		}
	}
	return ratings
}
