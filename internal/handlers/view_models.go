package handlers

import (
	"strings"
	"time"

	"duet/internal/apperr"
	"duet/internal/models"
)

// wallClockLayouts are the accepted forms of a wall-clock time. The offset
// comes from the accompanying timezone, never from the string.
var wallClockLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04"}

const dateLayout = "2006-01-02"

func parseWallClock(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range wallClockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.IllegalArgument(field + " must look like 2006-01-02T15:04:05")
}

type DateTimeRequest struct {
	Start         string  `json:"start"`
	StartTimezone string  `json:"start_timezone"`
	End           string  `json:"end,omitempty"`
	EndTimezone   *string `json:"end_timezone,omitempty"`
}

func (d *DateTimeRequest) toModel() (*models.DateTimeInfo, error) {
	if d == nil {
		return nil, nil
	}
	start, err := parseWallClock("start", d.Start)
	if err != nil {
		return nil, err
	}
	end, err := parseWallClock("end", d.End)
	if err != nil {
		return nil, err
	}
	return &models.DateTimeInfo{
		Start:         start,
		StartTimezone: d.StartTimezone,
		End:           end,
		EndTimezone:   d.EndTimezone,
	}, nil
}

type ContentRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Completed   bool             `json:"completed"`
	TagIDs      []int64          `json:"tag_ids"`
	Assignee    string           `json:"assignee,omitempty"`
	DateTime    *DateTimeRequest `json:"date_time,omitempty"`
}

func (c ContentRequest) detail() models.ContentDetail {
	return models.ContentDetail{Title: c.Title, Description: c.Description, Completed: c.Completed}
}

func (c ContentRequest) assignee() (models.Assignee, error) {
	if strings.TrimSpace(c.Assignee) == "" {
		return "", nil
	}
	a, err := models.ParseAssignee(c.Assignee)
	if err != nil {
		return "", apperr.IllegalArgument("assignee must be ME or PARTNER")
	}
	return a, nil
}

type ContentSummaryView struct {
	ID   int64              `json:"id"`
	Type models.ContentType `json:"type"`
}

type ScheduleView struct {
	ID            int64  `json:"id"`
	ExternalID    string `json:"external_id"`
	StartAt       string `json:"start_at"`
	StartTimezone string `json:"start_timezone"`
	EndAt         string `json:"end_at"`
	EndTimezone   string `json:"end_timezone"`
	Version       int64  `json:"version"`
}

type ContentView struct {
	ID          int64              `json:"id"`
	OwnerID     int64              `json:"owner_id"`
	Type        models.ContentType `json:"type"`
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Completed   bool               `json:"completed"`
	Assignee    models.Assignee    `json:"assignee"`
	TagIDs      []int64            `json:"tag_ids"`
	Schedule    *ScheduleView      `json:"schedule,omitempty"`
	Version     int64              `json:"version"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// inZone renders an instant in the named zone, falling back to UTC
func inZone(t time.Time, zone string) string {
	if loc, err := time.LoadLocation(zone); err == nil {
		t = t.In(loc)
	} else {
		t = t.UTC()
	}
	return t.Format(time.RFC3339)
}

func newScheduleView(s *models.Schedule) *ScheduleView {
	if s == nil {
		return nil
	}
	return &ScheduleView{
		ID:            s.ID,
		ExternalID:    s.ExternalID,
		StartAt:       inZone(s.StartAt, s.StartTimezone),
		StartTimezone: s.StartTimezone,
		EndAt:         inZone(s.EndAt, s.EndTimezone),
		EndTimezone:   s.EndTimezone,
		Version:       s.Version,
	}
}

func newContentView(v models.ContentView) ContentView {
	tagIDs := v.TagIDs
	if tagIDs == nil {
		tagIDs = []int64{}
	}
	return ContentView{
		ID:          v.ID,
		OwnerID:     v.OwnerID,
		Type:        v.Type,
		Title:       v.Detail.Title,
		Description: v.Detail.Description,
		Completed:   v.Detail.Completed,
		Assignee:    v.Assignee,
		TagIDs:      tagIDs,
		Schedule:    newScheduleView(v.Schedule),
		Version:     v.Version,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}
}

type CreatedScheduleView struct {
	ContentID  int64  `json:"content_id"`
	ScheduleID int64  `json:"schedule_id"`
	ExternalID string `json:"external_id"`
}

type TagRequest struct {
	Label string `json:"label"`
}

type TagView struct {
	ID        int64     `json:"id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

func newTagView(t models.Tag) TagView {
	return TagView{ID: t.ID, Label: t.Label, CreatedAt: t.CreatedAt}
}

type UserView struct {
	ID       int64             `json:"id"`
	Email    string            `json:"email"`
	Name     string            `json:"name"`
	Status   models.UserStatus `json:"status"`
	CoupleID *int64            `json:"couple_id"`
}

func newUserView(u models.User) UserView {
	return UserView{ID: u.ID, Email: u.Email, Name: u.Name, Status: u.Status, CoupleID: u.CoupleID}
}

type CoupleView struct {
	ID            int64               `json:"id"`
	Status        models.CoupleStatus `json:"status"`
	StartDate     *string             `json:"start_date"`
	SharedMessage *string             `json:"shared_message"`
	Members       []UserView          `json:"members"`
	Version       int64               `json:"version"`
}

func newCoupleView(c *models.CoupleWithMembers) CoupleView {
	view := CoupleView{
		ID:            c.ID,
		Status:        c.Status,
		SharedMessage: c.SharedMessage,
		Members:       make([]UserView, 0, len(c.Members)),
		Version:       c.Version,
	}
	if c.StartDate != nil {
		d := c.StartDate.Format(dateLayout)
		view.StartDate = &d
	}
	for _, m := range c.Members {
		view.Members = append(view.Members, newUserView(m))
	}
	return view
}

type StartDateRequest struct {
	Date     string `json:"date"`
	Timezone string `json:"timezone"`
}

type SharedMessageRequest struct {
	Message *string `json:"message"`
}

type RegisterRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type RegisterView struct {
	User  UserView `json:"user"`
	Token string   `json:"token"`
}

type InvitationView struct {
	Code        string    `json:"code"`
	InviterName string    `json:"inviter_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type RedeemRequest struct {
	Code string `json:"code"`
}
