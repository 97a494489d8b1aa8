package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chxlky/kanban-api/internal/models"
)

// Row types for the relational store. IDs are UUIDv7 strings so that ordering
// by id is ordering by creation.

type userRecord struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
}

func (userRecord) TableName() string { return "users" }

type boardRecord struct {
	ID        string `gorm:"primaryKey"`
	Name      string
	UserID    string `gorm:"index"`
	CreatedAt time.Time
}

func (boardRecord) TableName() string { return "boards" }

type listRecord struct {
	ID        string `gorm:"primaryKey"`
	BoardID   string `gorm:"index;not null"`
	Title     string
	Type      string `gorm:"default:regular"`
	Position  *int
	Progress  *int
	CreatedAt time.Time
}

func (listRecord) TableName() string { return "lists" }

type cardRecord struct {
	ID         string `gorm:"primaryKey"`
	ListID     string `gorm:"index;not null"`
	Title      string
	Type       string `gorm:"default:card"`
	Position   *int
	GithubURL  string
	Progress   int
	SubBoardID *string `gorm:"index"`
	CreatedAt  time.Time
}

func (cardRecord) TableName() string { return "cards" }

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (r *userRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = newID()
	}
	return nil
}

func (r *boardRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = newID()
	}
	return nil
}

func (r *listRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = newID()
	}
	return nil
}

func (r *cardRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = newID()
	}
	return nil
}

func (r userRecord) model() models.User {
	return models.User{ID: r.ID, Username: r.Username, PasswordHash: r.PasswordHash, CreatedAt: r.CreatedAt}
}

func (r boardRecord) model() models.Board {
	return models.Board{ID: r.ID, Name: r.Name, UserID: r.UserID, CreatedAt: r.CreatedAt}
}

func (r listRecord) model() models.List {
	t := models.ListType(r.Type)
	if t == "" {
		t = models.ListTypeRegular
	}
	return models.List{
		ID:        r.ID,
		BoardID:   r.BoardID,
		Title:     r.Title,
		Type:      t,
		Position:  r.Position,
		Progress:  r.Progress,
		CreatedAt: r.CreatedAt,
	}
}

func (r cardRecord) model() models.Card {
	t, err := models.ParseCardType(r.Type)
	if err != nil {
		t = models.CardTypePlain
	}
	sub := ""
	if r.SubBoardID != nil {
		sub = *r.SubBoardID
	}
	return models.Card{
		ID:        r.ID,
		ListID:    r.ListID,
		Title:     r.Title,
		Position:  r.Position,
		Kind:      models.NewCardKind(t, r.GithubURL, r.Progress, sub),
		CreatedAt: r.CreatedAt,
	}
}

func newCardRecord(c *models.Card) cardRecord {
	rec := cardRecord{
		ID:       c.ID,
		ListID:   c.ListID,
		Title:    c.Title,
		Type:     string(c.Type()),
		Position: c.Position,
	}
	switch k := c.Kind.(type) {
	case models.RepoCard:
		rec.GithubURL = k.URL
	case models.ProjectCard:
		rec.GithubURL = k.URL
		rec.Progress = k.Progress
		if k.SubBoardID != "" {
			sub := k.SubBoardID
			rec.SubBoardID = &sub
		}
	}
	return rec
}
