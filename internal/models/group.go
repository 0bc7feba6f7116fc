package models

import (
	"slices"
	"time"
)

// Group is a set of members who share expenses in a single currency.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Work Lunch").
	Name string

	// Currency is the ISO 4217 code every amount in the group is denominated in.
	Currency string

	// Members is the list of participant IDs in this group, sorted ascending.
	Members []string

	// CreatedAt is when the group was created.
	CreatedAt time.Time
}

// HasMember reports whether userID belongs to the group.
func (g *Group) HasMember(userID string) bool {
	return slices.Contains(g.Members, userID)
}
