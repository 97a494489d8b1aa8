package api

import (
	"github.com/chxlky/kanban-api/internal/board"
	"github.com/chxlky/kanban-api/internal/models"
)

// Field names follow what the web client already reads, hence the mix of
// snake and camel case.

type boardView struct {
	ID     string `json:"_id"`
	Title  string `json:"title"`
	Name   string `json:"name"`
	UserID string `json:"user_id"`
}

type createdBoardView struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	UserID string `json:"user_id"`
}

type boardTreeView struct {
	boardView
	Lists []listTreeView `json:"lists"`
}

type listView struct {
	ID       string `json:"_id"`
	BoardID  string `json:"board_id"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	Position *int   `json:"position"`
	Progress *int   `json:"progress,omitempty"`
}

type listTreeView struct {
	listView
	Cards []any `json:"cards"`
}

type cardBase struct {
	ID       string `json:"_id"`
	ListID   string `json:"list_id"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	Position *int   `json:"position"`
}

type plainCardView struct {
	cardBase
}

type repoCardView struct {
	cardBase
	GithubURL string `json:"githubUrl"`
}

type projectCardView struct {
	cardBase
	GithubURL  string `json:"githubUrl"`
	Progress   int    `json:"progress"`
	SubBoardID string `json:"subBoardId"`
}

func newBoardView(b models.Board) boardView {
	return boardView{ID: b.ID, Title: b.Name, Name: b.Name, UserID: b.UserID}
}

func newBoardTreeView(t board.BoardTree) boardTreeView {
	lists := make([]listTreeView, 0, len(t.Lists))
	for _, l := range t.Lists {
		lists = append(lists, newListTreeView(l.List, l.Cards))
	}
	return boardTreeView{boardView: newBoardView(t.Board), Lists: lists}
}

func newListView(l models.List) listView {
	return listView{
		ID:       l.ID,
		BoardID:  l.BoardID,
		Title:    l.Title,
		Type:     string(l.Type),
		Position: l.Position,
		Progress: l.Progress,
	}
}

func newListTreeView(l models.List, cards []models.Card) listTreeView {
	return listTreeView{listView: newListView(l), Cards: newCardViews(cards)}
}

func newCardView(c models.Card) any {
	base := cardBase{
		ID:       c.ID,
		ListID:   c.ListID,
		Title:    c.Title,
		Type:     string(c.Type()),
		Position: c.Position,
	}
	switch k := c.Kind.(type) {
	case models.RepoCard:
		return repoCardView{cardBase: base, GithubURL: k.URL}
	case models.ProjectCard:
		return projectCardView{cardBase: base, GithubURL: k.URL, Progress: k.Progress, SubBoardID: k.SubBoardID}
	}
	return plainCardView{cardBase: base}
}

func newCardViews(cards []models.Card) []any {
	out := make([]any, 0, len(cards))
	for _, c := range cards {
		out = append(out, newCardView(c))
	}
	return out
}
