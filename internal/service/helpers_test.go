package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"duet/internal/apperr"
	"duet/internal/database"
	"duet/internal/events"
	"duet/internal/models"
	"duet/internal/repository"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) ofType(typ events.Type) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	db     *database.DB
	st     *repository.Store
	rec    *eventRecorder
	deps   Deps
	couple *models.Couple
	alex   *models.User
	sam    *models.User
}

// newFixture opens a migrated sqlite database holding one ACTIVE couple of
// Alex and Sam
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "service.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	if err := db.RunMigrations(ctx); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	f := &fixture{db: db, st: repository.NewStore(db), rec: &eventRecorder{}}
	f.deps = Deps{DB: db, Events: f.rec}
	f.alex = f.user(t, "alex@example.com", "Alex")
	f.sam = f.user(t, "sam@example.com", "Sam")
	f.couple = f.pair(t, f.alex, f.sam)
	return f
}

func (f *fixture) user(t *testing.T, email, name string) *models.User {
	t.Helper()
	u, err := f.st.Users.CreateUser(context.Background(), email, name)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return u
}

// pair puts both users in a new couple and refreshes them
func (f *fixture) pair(t *testing.T, users ...*models.User) *models.Couple {
	t.Helper()
	ctx := context.Background()
	c, err := f.st.Couples.CreateCouple(ctx)
	if err != nil {
		t.Fatalf("CreateCouple() error = %v", err)
	}
	for _, u := range users {
		if err := f.st.Users.SetCouple(ctx, u.ID, &c.ID); err != nil {
			t.Fatalf("SetCouple() error = %v", err)
		}
		f.refresh(t, u)
	}
	return c
}

func (f *fixture) refresh(t *testing.T, u *models.User) {
	t.Helper()
	got, err := f.st.Users.GetUserByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	*u = *got
}

func actorOf(u *models.User) models.Actor {
	return models.Actor{UserID: u.ID, CoupleID: u.CoupleID}
}

func (f *fixture) exec(t *testing.T, query string, args ...interface{}) {
	t.Helper()
	if _, err := f.db.ExecContext(context.Background(), query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func (f *fixture) count(t *testing.T, query string, args ...interface{}) int {
	t.Helper()
	var n int
	if err := f.db.QueryRowContext(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}

func (f *fixture) liveSchedules(t *testing.T, contentID int64) int {
	return f.count(t, "SELECT COUNT(*) FROM schedules WHERE content_id = ? AND deleted = ?", contentID, false)
}

func str(s string) *string { return &s }

func wall(y int, m time.Month, d, h, min int) *time.Time {
	t := time.Date(y, m, d, h, min, 0, 0, time.UTC)
	return &t
}

func detail(title string) models.ContentDetail {
	return models.ContentDetail{Title: str(title)}
}

func wantCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	if !apperr.IsCode(err, code) {
		t.Fatalf("error = %v, want code %s", err, code)
	}
}
