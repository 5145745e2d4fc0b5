package validation

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"duet/internal/apperr"
	"duet/internal/models"
)

const (
	MaxTagLabelLength      = 30
	MaxSharedMessageLength = 200
	MaxNameLength          = 50
)

// ValidateDetail requires at least one of title and description to be
// non-blank after trimming.
func ValidateDetail(detail models.ContentDetail) error {
	if !detail.HasText() {
		return apperr.IllegalArgument("title or description is required")
	}
	return nil
}

// ValidateDuration requires start <= end. Equal instants are allowed.
func ValidateDuration(start, end time.Time) error {
	if end.Before(start) {
		return apperr.InvalidDuration()
	}
	return nil
}

// LoadTimezone resolves an IANA timezone name.
func LoadTimezone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.IllegalArgument("timezone is required")
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, apperr.IllegalArgument("unknown timezone " + name)
	}
	return loc, nil
}

// ValidateTagLabel checks a tag label is present and short.
func ValidateTagLabel(label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return apperr.IllegalArgument("tag label is required")
	}
	if utf8.RuneCountInString(label) > MaxTagLabelLength {
		return apperr.IllegalArgument("tag label is too long")
	}
	return nil
}

// ValidateSharedMessage allows a nil (cleared) message or one within the limit.
func ValidateSharedMessage(message *string) error {
	if message == nil {
		return nil
	}
	if utf8.RuneCountInString(*message) > MaxSharedMessageLength {
		return apperr.IllegalArgument("shared message is too long")
	}
	return nil
}

// ValidateStartDate rejects a couple start date that lies after today in the
// given timezone.
func ValidateStartDate(date time.Time, loc *time.Location, now time.Time) error {
	today := now.In(loc)
	todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	d := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	if d.After(todayDate) {
		return apperr.IllegalArgument("start date cannot be in the future")
	}
	return nil
}

// ValidateEmail checks that email is a bare address.
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.IllegalArgument("invalid email address")
	}
	return nil
}

// ValidateName checks a display name.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < 2 {
		return apperr.IllegalArgument("name must be at least 2 characters")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return apperr.IllegalArgument("name is too long")
	}
	return nil
}
