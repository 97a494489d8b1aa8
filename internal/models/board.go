package models

import (
	"strings"
	"time"
)

// Board is a container of lists. Sub-boards are ordinary boards referenced by
// a project card's SubBoardID.
type Board struct {
	ID        string
	Name      string
	UserID    string
	CreatedAt time.Time
}

type ListType string

const (
	ListTypeRegular ListType = "regular"
	ListTypeProject ListType = "project"
)

type List struct {
	ID        string
	BoardID   string
	Title     string
	Type      ListType
	Position  *int
	Progress  *int
	CreatedAt time.Time
}

// IsDone reports whether cards in the list count as finished work.
func (l List) IsDone() bool {
	return strings.EqualFold(strings.TrimSpace(l.Title), "done")
}

type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// IntPtr is a helper for optional integer fields.
func IntPtr(v int) *int {
	return &v
}
