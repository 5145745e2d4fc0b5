package models

import (
	"fmt"
	"strings"
)

// Assignee says which partner a content item is for. It is persisted relative
// to the item's creator and displayed relative to whoever is viewing it.
type Assignee string

const (
	AssigneeMe      Assignee = "ME"
	AssigneePartner Assignee = "PARTNER"
)

// ParseAssignee accepts ME or PARTNER in any case.
func ParseAssignee(s string) (Assignee, error) {
	switch Assignee(strings.ToUpper(strings.TrimSpace(s))) {
	case AssigneeMe:
		return AssigneeMe, nil
	case AssigneePartner:
		return AssigneePartner, nil
	default:
		return "", fmt.Errorf("unknown assignee %q", s)
	}
}

// Valid reports whether a is ME or PARTNER.
func (a Assignee) Valid() bool {
	return a == AssigneeMe || a == AssigneePartner
}

// Invert swaps ME and PARTNER. Inverting twice is the identity.
func (a Assignee) Invert() Assignee {
	switch a {
	case AssigneeMe:
		return AssigneePartner
	case AssigneePartner:
		return AssigneeMe
	default:
		return a
	}
}

// ToStored converts a viewer-relative assignee into the creator-relative
// value that is persisted.
func ToStored(viewerIsCreator bool, requested Assignee) Assignee {
	if viewerIsCreator {
		return requested
	}
	return requested.Invert()
}

// ToDisplayed converts a persisted creator-relative assignee into the value
// shown to the viewer.
func ToDisplayed(viewerIsCreator bool, stored Assignee) Assignee {
	if viewerIsCreator {
		return stored
	}
	return stored.Invert()
}
