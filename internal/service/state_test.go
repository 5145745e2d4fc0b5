package service

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"duet/internal/apperr"
	"duet/internal/models"
)

func TestValidateCoupleAccess(t *testing.T) {
	coupleA, coupleB := int64(1), int64(2)
	tests := []struct {
		name  string
		owner models.User
		actor models.Actor
		want  apperr.Code
	}{
		{
			name:  "owner always allowed",
			owner: models.User{ID: 1, Status: models.UserStatusSingle},
			actor: models.Actor{UserID: 1},
		},
		{
			name:  "partner in same couple",
			owner: models.User{ID: 1, Status: models.UserStatusCoupled, CoupleID: &coupleA},
			actor: models.Actor{UserID: 2, CoupleID: &coupleA},
		},
		{
			name:  "single owner",
			owner: models.User{ID: 1, Status: models.UserStatusSingle},
			actor: models.Actor{UserID: 2, CoupleID: &coupleA},
			want:  apperr.CodeIllegalPartnerStatus,
		},
		{
			name:  "coupled owner without couple id",
			owner: models.User{ID: 1, Status: models.UserStatusCoupled},
			actor: models.Actor{UserID: 2, CoupleID: &coupleA},
			want:  apperr.CodeIllegalPartnerStatus,
		},
		{
			name:  "different couple",
			owner: models.User{ID: 1, Status: models.UserStatusCoupled, CoupleID: &coupleA},
			actor: models.Actor{UserID: 2, CoupleID: &coupleB},
			want:  apperr.CodeCoupleMismatch,
		},
		{
			name:  "actor without couple",
			owner: models.User{ID: 1, Status: models.UserStatusCoupled, CoupleID: &coupleA},
			actor: models.Actor{UserID: 2},
			want:  apperr.CodeCoupleMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoupleAccess(&tt.owner, tt.actor)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("ValidateCoupleAccess() error = %v", err)
				}
				return
			}
			wantCode(t, err, tt.want)
			if !apperr.IsKind(err, apperr.KindAccessDenied) {
				t.Errorf("kind = %s, want access_denied", apperr.KindOf(err))
			}
		})
	}
}

func TestPlanTransition(t *testing.T) {
	live := &models.Schedule{ID: 1}
	deleted := &models.Schedule{ID: 2, Deleted: true}
	start := wall(2026, 5, 1, 9, 0)

	tests := []struct {
		name    string
		current *models.Schedule
		dt      *models.DateTimeInfo
		want    scheduleAction
	}{
		{"memo stays memo", nil, nil, scheduleNone},
		{"memo with null start stays memo", nil, &models.DateTimeInfo{StartTimezone: "UTC"}, scheduleNone},
		{"memo gains start", nil, &models.DateTimeInfo{Start: start, StartTimezone: "UTC"}, scheduleCreate},
		{"deleted occurrence counts as memo", deleted, &models.DateTimeInfo{Start: start, StartTimezone: "UTC"}, scheduleCreate},
		{"schedule keeps start", live, &models.DateTimeInfo{Start: start, StartTimezone: "UTC"}, scheduleUpdate},
		{"schedule loses start", live, &models.DateTimeInfo{StartTimezone: "UTC"}, scheduleRemove},
		{"schedule without timing", live, nil, scheduleRemove},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := planTransition(tt.current, tt.dt)
			if err != nil {
				t.Fatalf("planTransition() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("planTransition() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestResolveTimes(t *testing.T) {
	seoul, _ := time.LoadLocation("Asia/Seoul")
	ny, _ := time.LoadLocation("America/New_York")

	t.Run("end defaults to end of start day in start timezone", func(t *testing.T) {
		got, err := resolveTimes(models.DateTimeInfo{Start: wall(2026, 5, 1, 9, 0), StartTimezone: "Asia/Seoul"})
		if err != nil {
			t.Fatal(err)
		}
		wantStart := time.Date(2026, 5, 1, 9, 0, 0, 0, seoul)
		wantEnd := time.Date(2026, 5, 1, 23, 59, 59, 0, seoul)
		if !got.StartAt.Equal(wantStart) || !got.EndAt.Equal(wantEnd) {
			t.Errorf("times = %v..%v, want %v..%v", got.StartAt, got.EndAt, wantStart, wantEnd)
		}
		if got.EndTimezone != "Asia/Seoul" {
			t.Errorf("EndTimezone = %q, want start timezone", got.EndTimezone)
		}
	})

	t.Run("default end never precedes a start in the last second", func(t *testing.T) {
		start := time.Date(2026, 3, 1, 23, 59, 59, 500_000_000, time.UTC)
		got, err := resolveTimes(models.DateTimeInfo{Start: &start, StartTimezone: "Asia/Seoul"})
		if err != nil {
			t.Fatal(err)
		}
		want := time.Date(2026, 3, 1, 23, 59, 59, 500_000_000, seoul)
		if !got.StartAt.Equal(want) {
			t.Errorf("StartAt = %v, want %v", got.StartAt, want)
		}
		if got.EndAt.Before(got.StartAt) {
			t.Errorf("EndAt %v is before StartAt %v", got.EndAt, got.StartAt)
		}
	})

	t.Run("end is read in its own timezone", func(t *testing.T) {
		got, err := resolveTimes(models.DateTimeInfo{
			Start:         wall(2026, 5, 1, 22, 0),
			StartTimezone: "Asia/Seoul",
			End:           wall(2026, 5, 1, 10, 0),
			EndTimezone:   str("America/New_York"),
		})
		if err != nil {
			t.Fatal(err)
		}
		if want := time.Date(2026, 5, 1, 10, 0, 0, 0, ny); !got.EndAt.Equal(want) {
			t.Errorf("EndAt = %v, want %v", got.EndAt, want)
		}
	})

	tests := []struct {
		name  string
		start *time.Time
		end   *time.Time
		tz    string
		want  apperr.Code
	}{
		{"equal start and end allowed", wall(2026, 5, 1, 9, 0), wall(2026, 5, 1, 9, 0), "UTC", ""},
		{"end after start allowed", wall(2026, 5, 1, 9, 0), wall(2026, 5, 1, 9, 1), "UTC", ""},
		{"end before start rejected", wall(2026, 5, 1, 9, 0), wall(2026, 5, 1, 8, 59), "UTC", apperr.CodeInvalidDuration},
		{"unknown timezone rejected", wall(2026, 5, 1, 9, 0), nil, "Mars/Olympus", apperr.CodeIllegalArgument},
		{"missing timezone rejected", wall(2026, 5, 1, 9, 0), nil, "", apperr.CodeIllegalArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolveTimes(models.DateTimeInfo{Start: tt.start, StartTimezone: tt.tz, End: tt.end})
			if tt.want == "" {
				if err != nil {
					t.Fatalf("resolveTimes() error = %v", err)
				}
				return
			}
			wantCode(t, err, tt.want)
		})
	}
}

func TestDiffTagIDs(t *testing.T) {
	tests := []struct {
		name       string
		existing   []int64
		requested  []int64
		wantAdd    []int64
		wantRemove []int64
	}{
		{"no change", []int64{1, 2}, []int64{2, 1}, nil, nil},
		{"add and remove", []int64{1, 2}, []int64{2, 3}, []int64{3}, []int64{1}},
		{"clear", []int64{1, 2}, nil, nil, []int64{1, 2}},
		{"duplicates requested", nil, []int64{4, 4, 3}, []int64{3, 4}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			add, remove := diffTagIDs(tt.existing, tt.requested)
			if !reflect.DeepEqual(add, tt.wantAdd) || !reflect.DeepEqual(remove, tt.wantRemove) {
				t.Errorf("diffTagIDs() = %v, %v, want %v, %v", add, remove, tt.wantAdd, tt.wantRemove)
			}
		})
	}
}

// memoryTags is an in-memory tagStore that counts writes
type memoryTags struct {
	known  map[int64]bool
	active map[int64]bool
	writes int
}

func (m *memoryTags) ActiveTagIDs(context.Context, int64) ([]int64, error) {
	var ids []int64
	for id := range m.active {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memoryTags) LookupTags(_ context.Context, _ int64, ids []int64) ([]models.Tag, error) {
	var tags []models.Tag
	for _, id := range ids {
		if m.known[id] {
			tags = append(tags, models.Tag{ID: id})
		}
	}
	return tags, nil
}

func (m *memoryTags) AddAssignment(_ context.Context, tagID, _ int64, _ time.Time) (int64, error) {
	if m.active[tagID] {
		return 0, errors.New("duplicate live assignment")
	}
	m.active[tagID] = true
	m.writes++
	return tagID, nil
}

func (m *memoryTags) SoftDeleteAssignments(_ context.Context, _ int64, tagIDs []int64, _ time.Time) error {
	for _, id := range tagIDs {
		delete(m.active, id)
	}
	m.writes++
	return nil
}

func TestReconcileTagsIsIdempotent(t *testing.T) {
	store := &memoryTags{
		known:  map[int64]bool{1: true, 2: true, 3: true},
		active: map[int64]bool{1: true, 2: true},
	}
	content := &models.Content{ID: 10, CoupleID: 1}
	requested := []int64{2, 3, 99}

	first, err := reconcileTags(context.Background(), store, content, requested, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first.Added, []int64{3}) || !reflect.DeepEqual(first.Removed, []int64{1}) {
		t.Errorf("first reconcile = %+v", first)
	}
	writes := store.writes

	second, err := reconcileTags(context.Background(), store, content, requested, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !second.Empty() {
		t.Errorf("second reconcile = %+v, want no changes", second)
	}
	if store.writes != writes {
		t.Errorf("second reconcile wrote %d times", store.writes-writes)
	}
	if !reflect.DeepEqual(store.active, map[int64]bool{2: true, 3: true}) {
		t.Errorf("active = %v, want {2, 3}; unknown id 99 must be skipped", store.active)
	}
}
