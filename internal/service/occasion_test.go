package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/forgo/occasions/api/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Mock Repositories
// ============================================================================

type mockOccasionRepo struct {
	createFunc          func(ctx context.Context, occasion *model.Occasion) error
	getByIDFunc         func(ctx context.Context, id string) (*model.Occasion, error)
	listFunc            func(ctx context.Context) ([]*model.Occasion, error)
	listByStatusFunc    func(ctx context.Context, statuses []model.OccasionStatus) ([]*model.Occasion, error)
	findOverlappingFunc func(ctx context.Context, start, end time.Time) (*model.Occasion, error)
	listBetweenFunc     func(ctx context.Context, from, to time.Time) ([]*model.Occasion, error)
	updateFunc          func(ctx context.Context, id string, updates map[string]interface{}) (*model.Occasion, error)
	addAttendeesFunc    func(ctx context.Context, id string, userIDs []string) error
	deleteFunc          func(ctx context.Context, id string) (bool, error)
}

func (m *mockOccasionRepo) Create(ctx context.Context, occasion *model.Occasion) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, occasion)
	}
	return nil
}

func (m *mockOccasionRepo) GetByID(ctx context.Context, id string) (*model.Occasion, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockOccasionRepo) List(ctx context.Context) ([]*model.Occasion, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

func (m *mockOccasionRepo) ListByStatus(ctx context.Context, statuses []model.OccasionStatus) ([]*model.Occasion, error) {
	if m.listByStatusFunc != nil {
		return m.listByStatusFunc(ctx, statuses)
	}
	return nil, nil
}

func (m *mockOccasionRepo) ListStartingBetween(ctx context.Context, from, to time.Time) ([]*model.Occasion, error) {
	if m.listBetweenFunc != nil {
		return m.listBetweenFunc(ctx, from, to)
	}
	return nil, nil
}

func (m *mockOccasionRepo) FindOverlappingPending(ctx context.Context, start, end time.Time) (*model.Occasion, error) {
	if m.findOverlappingFunc != nil {
		return m.findOverlappingFunc(ctx, start, end)
	}
	return nil, nil
}

func (m *mockOccasionRepo) Update(ctx context.Context, id string, updates map[string]interface{}) (*model.Occasion, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, updates)
	}
	return nil, nil
}

func (m *mockOccasionRepo) AddAttendees(ctx context.Context, id string, userIDs []string) error {
	if m.addAttendeesFunc != nil {
		return m.addAttendeesFunc(ctx, id, userIDs)
	}
	return nil
}

func (m *mockOccasionRepo) Delete(ctx context.Context, id string) (bool, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return false, nil
}

type mockAttendanceRepo struct {
	upsertFunc         func(ctx context.Context, attendance *model.Attendance) error
	listByOccasionFunc func(ctx context.Context, occasionID string) ([]*model.Attendance, error)
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, attendance *model.Attendance) error {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, attendance)
	}
	return nil
}

func (m *mockAttendanceRepo) ListByOccasion(ctx context.Context, occasionID string) ([]*model.Attendance, error) {
	if m.listByOccasionFunc != nil {
		return m.listByOccasionFunc(ctx, occasionID)
	}
	return nil, nil
}

type published struct {
	name    string
	payload any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []published
}

func (n *recordingNotifier) Publish(name string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, published{name: name, payload: payload})
}

func (n *recordingNotifier) names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.name)
	}
	return out
}

// ============================================================================
// Helpers
// ============================================================================

var serviceNow = time.Date(2026, 4, 10, 9, 30, 0, 0, time.UTC)

func newTestOccasionService(repo *mockOccasionRepo, attendance *mockAttendanceRepo, notifier *recordingNotifier) *OccasionService {
	if attendance == nil {
		attendance = &mockAttendanceRepo{}
	}
	return NewOccasionService(OccasionServiceConfig{
		OccasionRepo:   repo,
		AttendanceRepo: attendance,
		Notifier:       notifier,
		Now:            func() time.Time { return serviceNow },
	})
}

func startedOccasion() *model.Occasion {
	return &model.Occasion{
		ID:        "occasion:abc",
		Name:      "Majlis",
		Status:    model.OccasionStatusStarted,
		StartAt:   serviceNow.Add(-time.Hour),
		EndsAt:    serviceNow.Add(5 * time.Hour),
		Attendees: []string{"u1"},
		Events: []model.OccasionEvent{
			{ID: "e1", Name: "Recitation", Party: "Group A", Rating: []model.OccasionRating{
				{Score: 3, RatingBy: "u1", CreatedOn: serviceNow.Add(-time.Hour)},
			}},
		},
	}
}

func strPtr(s string) *string { return &s }

// ============================================================================
// Create
// ============================================================================

func TestOccasionCreate_CombinesDateAndTime(t *testing.T) {
	var created *model.Occasion
	var overlapStart, overlapEnd time.Time
	repo := &mockOccasionRepo{
		findOverlappingFunc: func(ctx context.Context, start, end time.Time) (*model.Occasion, error) {
			overlapStart, overlapEnd = start, end
			return nil, nil
		},
		createFunc: func(ctx context.Context, occasion *model.Occasion) error {
			occasion.ID = "occasion:new"
			created = occasion
			return nil
		},
	}
	notifier := &recordingNotifier{}
	svc := newTestOccasionService(repo, nil, notifier)

	occasion, err := svc.Create(context.Background(), &model.CreateOccasionRequest{
		Name:      "Majlis",
		CreatedBy: "u1",
		StartAt:   time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
		Time:      time.Date(1970, 1, 1, 19, 45, 30, 0, time.UTC),
		Events:    []model.OccasionEvent{{Name: "Recitation", Party: "Group A"}},
	})

	require.NoError(t, err)
	require.NotNil(t, created)
	wantStart := time.Date(2026, 5, 2, 19, 45, 0, 0, time.UTC)
	assert.Equal(t, wantStart, occasion.StartAt)
	assert.Equal(t, wantStart.Add(6*time.Hour), occasion.EndsAt)
	assert.Equal(t, wantStart, overlapStart)
	assert.Equal(t, wantStart.Add(6*time.Hour), overlapEnd)
	assert.Equal(t, model.OccasionStatusPending, occasion.Status)
	assert.Equal(t, []string{}, occasion.Attendees)
	require.Len(t, occasion.Events, 1)
	assert.NotEmpty(t, occasion.Events[0].ID)

	assert.Equal(t, []string{EventOccasionCreated}, notifier.names())
	assert.Equal(t, OccasionNotification{Occasion: occasion}, notifier.events[0].payload)
}

func TestOccasionCreate_RejectsOverlap(t *testing.T) {
	created := false
	repo := &mockOccasionRepo{
		findOverlappingFunc: func(ctx context.Context, start, end time.Time) (*model.Occasion, error) {
			return &model.Occasion{ID: "occasion:other"}, nil
		},
		createFunc: func(ctx context.Context, occasion *model.Occasion) error {
			created = true
			return nil
		},
	}
	notifier := &recordingNotifier{}
	svc := newTestOccasionService(repo, nil, notifier)

	_, err := svc.Create(context.Background(), &model.CreateOccasionRequest{
		Name:    "Majlis",
		StartAt: serviceNow,
		Time:    serviceNow,
	})

	assert.ErrorIs(t, err, ErrOccasionOverlap)
	assert.False(t, created)
	assert.Empty(t, notifier.names())
}

func TestOccasionCreate_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     model.CreateOccasionRequest
		wantErr error
	}{
		{"missing name", model.CreateOccasionRequest{StartAt: serviceNow, Time: serviceNow}, ErrOccasionNameRequired},
		{"missing start", model.CreateOccasionRequest{Name: "x", Time: serviceNow}, ErrOccasionStartRequired},
		{"missing time", model.CreateOccasionRequest{Name: "x", StartAt: serviceNow}, ErrOccasionTimeRequired},
		{"bad rating", model.CreateOccasionRequest{
			Name: "x", StartAt: serviceNow, Time: serviceNow,
			Events: []model.OccasionEvent{{Rating: []model.OccasionRating{{Score: 6, RatingBy: "u1"}}}},
		}, ErrInvalidRatingScore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestOccasionService(&mockOccasionRepo{}, nil, &recordingNotifier{})
			_, err := svc.Create(context.Background(), &tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// ============================================================================
// Update
// ============================================================================

func TestOccasionUpdate_RejectsImmutableFields(t *testing.T) {
	start := serviceNow
	svc := newTestOccasionService(&mockOccasionRepo{}, nil, &recordingNotifier{})

	_, err := svc.Update(context.Background(), "occasion:abc", &model.UpdateOccasionRequest{CreatedBy: strPtr("u2")})
	assert.ErrorIs(t, err, ErrOccasionFieldImmutable)

	_, err = svc.Update(context.Background(), "occasion:abc", &model.UpdateOccasionRequest{StartAt: &start})
	assert.ErrorIs(t, err, ErrOccasionFieldImmutable)
}

func TestOccasionUpdate_NotFound(t *testing.T) {
	svc := newTestOccasionService(&mockOccasionRepo{}, nil, &recordingNotifier{})

	_, err := svc.Update(context.Background(), "occasion:missing", &model.UpdateOccasionRequest{Name: strPtr("x")})

	assert.ErrorIs(t, err, ErrOccasionNotFound)
}

func TestOccasionUpdate_AttendanceRequiresStarted(t *testing.T) {
	pending := startedOccasion()
	pending.Status = model.OccasionStatusPending
	upserted := 0
	repo := &mockOccasionRepo{
		getByIDFunc: func(ctx context.Context, id string) (*model.Occasion, error) { return pending, nil },
	}
	attendance := &mockAttendanceRepo{
		upsertFunc: func(ctx context.Context, a *model.Attendance) error {
			upserted++
			return nil
		},
	}
	svc := newTestOccasionService(repo, attendance, &recordingNotifier{})

	_, err := svc.Update(context.Background(), pending.ID, &model.UpdateOccasionRequest{
		Attendance: []model.AttendanceMark{{UserID: "u2", Status: model.AttendancePresent}},
	})

	assert.ErrorIs(t, err, ErrOccasionNotActive)
	assert.Zero(t, upserted)
}

func TestOccasionUpdate_MarksAttendance(t *testing.T) {
	occasion := startedOccasion()
	var added []string
	var upserts []*model.Attendance
	repo := &mockOccasionRepo{
		getByIDFunc: func(ctx context.Context, id string) (*model.Occasion, error) { return occasion, nil },
		addAttendeesFunc: func(ctx context.Context, id string, userIDs []string) error {
			added = userIDs
			return nil
		},
		updateFunc: func(ctx context.Context, id string, updates map[string]interface{}) (*model.Occasion, error) {
			assert.Empty(t, updates)
			return occasion, nil
		},
	}
	attendance := &mockAttendanceRepo{
		upsertFunc: func(ctx context.Context, a *model.Attendance) error {
			upserts = append(upserts, a)
			return nil
		},
	}
	notifier := &recordingNotifier{}
	svc := newTestOccasionService(repo, attendance, notifier)

	_, err := svc.Update(context.Background(), occasion.ID, &model.UpdateOccasionRequest{
		Attendance: []model.AttendanceMark{
			{UserID: "u2", Status: model.AttendancePresent},
			{UserID: "u3", Status: model.AttendanceLate},
			{UserID: "u2", Status: model.AttendancePresent},
		},
	})

	require.NoError(t, err)
	require.Len(t, upserts, 3)
	assert.Equal(t, occasion.ID, upserts[0].OccasionID)
	require.NotNil(t, upserts[0].CheckedInAt)
	assert.Equal(t, serviceNow, *upserts[0].CheckedInAt)
	assert.Equal(t, []string{"u2"}, added)
	assert.Equal(t, []string{
		EventOccasionAttendanceUpdated,
		EventOccasionAttendanceUpdated,
		EventOccasionAttendanceUpdated,
		EventOccasionUpdated,
	}, notifier.names())
}

func TestOccasionUpdate_InvalidAttendanceStatus(t *testing.T) {
	occasion := startedOccasion()
	repo := &mockOccasionRepo{
		getByIDFunc: func(ctx context.Context, id string) (*model.Occasion, error) { return occasion, nil },
	}
	svc := newTestOccasionService(repo, nil, &recordingNotifier{})

	_, err := svc.Update(context.Background(), occasion.ID, &model.UpdateOccasionRequest{
		Attendance: []model.AttendanceMark{{UserID: "u2", Status: "asleep"}},
	})

	assert.ErrorIs(t, err, ErrInvalidAttendance)
}

func TestOccasionUpdate_MergesEventsAndRatings(t *testing.T) {
	occasion := startedOccasion()
	var updates map[string]interface{}
	repo := &mockOccasionRepo{
		getByIDFunc: func(ctx context.Context, id string) (*model.Occasion, error) { return occasion, nil },
		updateFunc: func(ctx context.Context, id string, u map[string]interface{}) (*model.Occasion, error) {
			updates = u
			return occasion, nil
		},
	}
	svc := newTestOccasionService(repo, nil, &recordingNotifier{})

	_, err := svc.Update(context.Background(), occasion.ID, &model.UpdateOccasionRequest{
		Events: []model.OccasionEvent{
			{ID: "e1", Rating: []model.OccasionRating{
				{Score: 5, RatingBy: "u1"},
				{Score: 4, RatingBy: "u2"},
			}},
			{Name: "Sermon", Party: "Group B"},
		},
	})

	require.NoError(t, err)
	events, ok := updates["events"].([]model.OccasionEvent)
	require.True(t, ok)
	require.Len(t, events, 2)

	assert.Equal(t, "Recitation", events[0].Name, "unset fields keep their value")
	require.Len(t, events[0].Rating, 2)
	assert.Equal(t, 5, events[0].Rating[0].Score)
	assert.Equal(t, serviceNow.Add(-time.Hour), events[0].Rating[0].CreatedOn)
	assert.Equal(t, "u2", events[0].Rating[1].RatingBy)
	assert.Equal(t, serviceNow, events[0].Rating[1].CreatedOn)

	assert.Equal(t, "Sermon", events[1].Name)
	assert.NotEmpty(t, events[1].ID)
}

func TestOccasionUpdate_EndsAtMustFollowStart(t *testing.T) {
	occasion := startedOccasion()
	repo := &mockOccasionRepo{
		getByIDFunc: func(ctx context.Context, id string) (*model.Occasion, error) { return occasion, nil },
	}
	svc := newTestOccasionService(repo, nil, &recordingNotifier{})
	early := occasion.StartAt.Add(-time.Minute)

	_, err := svc.Update(context.Background(), occasion.ID, &model.UpdateOccasionRequest{EndsAt: &early})

	assert.ErrorIs(t, err, ErrInvalidEndTime)
}

// ============================================================================
// Delete / List
// ============================================================================

func TestOccasionDelete(t *testing.T) {
	t.Run("existing", func(t *testing.T) {
		notifier := &recordingNotifier{}
		repo := &mockOccasionRepo{
			deleteFunc: func(ctx context.Context, id string) (bool, error) { return true, nil },
		}
		svc := newTestOccasionService(repo, nil, notifier)

		require.NoError(t, svc.Delete(context.Background(), "occasion:abc"))
		assert.Equal(t, []string{EventOccasionDeleted}, notifier.names())
		assert.Equal(t, OccasionDeletedNotification{OccasionID: "occasion:abc"}, notifier.events[0].payload)
	})

	t.Run("missing", func(t *testing.T) {
		notifier := &recordingNotifier{}
		svc := newTestOccasionService(&mockOccasionRepo{}, nil, notifier)

		assert.ErrorIs(t, svc.Delete(context.Background(), "occasion:abc"), ErrOccasionNotFound)
		assert.Empty(t, notifier.names())
	})

	t.Run("store error", func(t *testing.T) {
		repo := &mockOccasionRepo{
			deleteFunc: func(ctx context.Context, id string) (bool, error) { return false, errors.New("boom") },
		}
		svc := newTestOccasionService(repo, nil, &recordingNotifier{})

		err := svc.Delete(context.Background(), "occasion:abc")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrOccasionNotFound)
	})
}

func TestOccasionListByStatus(t *testing.T) {
	var got []model.OccasionStatus
	repo := &mockOccasionRepo{
		listByStatusFunc: func(ctx context.Context, statuses []model.OccasionStatus) ([]*model.Occasion, error) {
			got = statuses
			return nil, nil
		},
	}
	svc := newTestOccasionService(repo, nil, &recordingNotifier{})

	_, err := svc.ListByStatus(context.Background(), []string{"pending", "started"})
	require.NoError(t, err)
	assert.Equal(t, []model.OccasionStatus{model.OccasionStatusPending, model.OccasionStatusStarted}, got)

	_, err = svc.ListByStatus(context.Background(), nil)
	assert.ErrorIs(t, err, ErrStatusFilterRequired)

	_, err = svc.ListByStatus(context.Background(), []string{"cancelled"})
	assert.ErrorIs(t, err, ErrInvalidOccasionStatus)
}

func TestOccasionListStartingIn(t *testing.T) {
	loc := time.FixedZone("AST", 3*60*60)
	tests := []struct {
		period   DatePeriod
		value    string
		from, to time.Time
	}{
		{PeriodDay, "2026-05-01", time.Date(2026, 5, 1, 0, 0, 0, 0, loc), time.Date(2026, 5, 2, 0, 0, 0, 0, loc)},
		{PeriodMonth, "2026-12", time.Date(2026, 12, 1, 0, 0, 0, 0, loc), time.Date(2027, 1, 1, 0, 0, 0, 0, loc)},
		{PeriodYear, "2026", time.Date(2026, 1, 1, 0, 0, 0, 0, loc), time.Date(2027, 1, 1, 0, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			var from, to time.Time
			repo := &mockOccasionRepo{
				listBetweenFunc: func(ctx context.Context, f, e time.Time) ([]*model.Occasion, error) {
					from, to = f, e
					return []*model.Occasion{startedOccasion()}, nil
				},
			}
			svc := NewOccasionService(OccasionServiceConfig{OccasionRepo: repo, AttendanceRepo: &mockAttendanceRepo{}, Location: loc})

			got, err := svc.ListStartingIn(context.Background(), tt.period, tt.value)

			require.NoError(t, err)
			assert.Len(t, got, 1)
			assert.True(t, tt.from.Equal(from), "from %s", from)
			assert.True(t, tt.to.Equal(to), "to %s", to)
		})
	}
}

func TestOccasionListStartingIn_RejectsMalformedValues(t *testing.T) {
	called := false
	repo := &mockOccasionRepo{
		listBetweenFunc: func(ctx context.Context, from, to time.Time) ([]*model.Occasion, error) {
			called = true
			return nil, nil
		},
	}
	svc := newTestOccasionService(repo, nil, &recordingNotifier{})

	for _, tc := range []struct {
		period DatePeriod
		value  string
	}{
		{PeriodDay, "2026-5-1"},
		{PeriodDay, "2026-02-30"},
		{PeriodMonth, "2026-13"},
		{PeriodYear, "26"},
		{DatePeriod("week"), "2026-W01"},
	} {
		_, err := svc.ListStartingIn(context.Background(), tc.period, tc.value)
		assert.ErrorIs(t, err, ErrInvalidDateFilter, "%s=%s", tc.period, tc.value)
	}
	assert.False(t, called)
}

func TestGroupEventsByParty(t *testing.T) {
	repo := &mockOccasionRepo{
		listFunc: func(ctx context.Context) ([]*model.Occasion, error) {
			return []*model.Occasion{
				{Events: []model.OccasionEvent{{ID: "1", Party: "B"}, {ID: "2", Party: "A"}}},
				{Events: []model.OccasionEvent{{ID: "3", Party: "A"}, {ID: "4", Party: "C"}}},
			}, nil
		},
	}
	notifier := &recordingNotifier{}
	svc := newTestOccasionService(repo, nil, notifier)

	groups, err := svc.GroupEventsByParty(context.Background())

	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, "A", groups[0].Party)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, "B", groups[1].Party)
	assert.Equal(t, "C", groups[2].Party)
	assert.Equal(t, []string{EventOccasionEventsGrouped}, notifier.names())
}

func TestCombineDateAndTime_UsesLocation(t *testing.T) {
	loc := time.FixedZone("AST", 3*60*60)
	date := time.Date(2026, 5, 1, 22, 0, 0, 0, time.UTC) // already 2 May in AST
	clock := time.Date(2000, 1, 1, 17, 15, 0, 0, time.UTC)

	got := combineDateAndTime(date, clock, loc)

	assert.Equal(t, time.Date(2026, 5, 2, 20, 15, 0, 0, loc), got)
}
