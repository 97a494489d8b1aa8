package models

import (
	"fmt"
	"time"
)

type CardType string

const (
	CardTypePlain   CardType = "card"
	CardTypeRepo    CardType = "github-repo"
	CardTypeProject CardType = "project-card"
)

// CardKind is the type-specific part of a card. The set of kinds is closed:
// PlainCard, RepoCard and ProjectCard.
type CardKind interface {
	Type() CardType
	isCardKind()
}

type PlainCard struct{}

type RepoCard struct {
	URL string
}

// ProjectCard owns a sub-board holding the project's own tasks. Progress is
// derived from that sub-board.
type ProjectCard struct {
	URL        string
	Progress   int
	SubBoardID string
}

func (PlainCard) Type() CardType   { return CardTypePlain }
func (RepoCard) Type() CardType    { return CardTypeRepo }
func (ProjectCard) Type() CardType { return CardTypeProject }

func (PlainCard) isCardKind()   {}
func (RepoCard) isCardKind()    {}
func (ProjectCard) isCardKind() {}

type Card struct {
	ID        string
	ListID    string
	Title     string
	Position  *int
	Kind      CardKind
	CreatedAt time.Time
}

// Type reports the card's kind, treating a card without one as plain.
func (c Card) Type() CardType {
	if c.Kind == nil {
		return CardTypePlain
	}
	return c.Kind.Type()
}

// Project returns the project part of the card, if it is a project card.
func (c Card) Project() (ProjectCard, bool) {
	p, ok := c.Kind.(ProjectCard)
	return p, ok
}

// URL returns the external link carried by repo and project cards.
func (c Card) URL() string {
	switch k := c.Kind.(type) {
	case RepoCard:
		return k.URL
	case ProjectCard:
		return k.URL
	}
	return ""
}

// ParseCardType maps a stored or requested type string onto a CardType. An
// empty string is a plain card, which is how untyped cards were persisted.
func ParseCardType(s string) (CardType, error) {
	switch CardType(s) {
	case "", CardTypePlain:
		return CardTypePlain, nil
	case CardTypeRepo:
		return CardTypeRepo, nil
	case CardTypeProject:
		return CardTypeProject, nil
	}
	return "", fmt.Errorf("unknown card type %q", s)
}

// NewCardKind rebuilds a kind from its flattened storage fields.
func NewCardKind(t CardType, url string, progress int, subBoardID string) CardKind {
	switch t {
	case CardTypeRepo:
		return RepoCard{URL: url}
	case CardTypeProject:
		return ProjectCard{URL: url, Progress: progress, SubBoardID: subBoardID}
	}
	return PlainCard{}
}

// CardUpdate lists the fields a partial card update may change. Nil fields
// are left untouched.
type CardUpdate struct {
	Title    *string
	URL      *string
	Progress *int
}

func (u CardUpdate) Empty() bool {
	return u.Title == nil && u.URL == nil && u.Progress == nil
}
