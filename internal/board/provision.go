package board

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/chxlky/kanban-api/internal/models"
)

const (
	WorkBoardName     = "Work"
	PersonalBoardName = "Personal"
)

type cardSeed struct {
	Title string
	URL   string
	// Project cards get their own task sub-board.
	Project bool
}

type listSeed struct {
	Title string
	Cards []cardSeed
}

func plainCards(titles ...string) []cardSeed {
	out := make([]cardSeed, 0, len(titles))
	for _, t := range titles {
		out = append(out, cardSeed{Title: t})
	}
	return out
}

var workTemplate = []listSeed{
	{Title: "Projects", Cards: []cardSeed{
		{Title: "Trello Clone", URL: "https://github.com/example/trello-clone", Project: true},
		{Title: "DevOps Pipeline", URL: "https://github.com/example/devops-pipeline", Project: true},
	}},
	{Title: "To Do", Cards: plainCards("Write documentation")},
	{Title: "In Progress", Cards: plainCards("Set up CI/CD")},
	{Title: "Done", Cards: plainCards("Initial commit")},
	{Title: "Questions", Cards: plainCards("Clarify backend API schema")},
}

var personalTemplate = []listSeed{
	{Title: "To Do", Cards: plainCards("Buy groceries", "Call mom")},
	{Title: "Grocery", Cards: plainCards("Milk", "Bread", "Eggs")},
	{Title: "Calendar", Cards: plainCards("Doctor appointment")},
	{Title: "Done"},
}

var subBoardTemplate = []listSeed{
	{Title: "To Do"},
	{Title: "In Progress"},
	{Title: "Done"},
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsWorkBoardName reports whether creating a board with this name seeds the
// Work template.
func IsWorkBoardName(name string) bool {
	switch normalizeName(name) {
	case "work", "work board":
		return true
	}
	return false
}

// isMainBoardName matches the boards shown on the landing page.
func isMainBoardName(name string) bool {
	switch normalizeName(name) {
	case "work", "personal":
		return true
	}
	return false
}

func subBoardName(cardTitle string) string {
	return cardTitle + " - Tasks"
}

// ProvisionUser creates and seeds the Work and Personal boards for a new
// user. Writes are not transactional, a failure part way leaves what was
// already created.
func (s *Service) ProvisionUser(ctx context.Context, userID string) error {
	for _, b := range []struct {
		name string
		tmpl []listSeed
	}{
		{WorkBoardName, workTemplate},
		{PersonalBoardName, personalTemplate},
	} {
		board := &models.Board{Name: b.name, UserID: userID}
		if err := s.store.CreateBoard(ctx, board); err != nil {
			return fmt.Errorf("failed to create %s board: %w", b.name, err)
		}
		if err := s.populate(ctx, board, b.tmpl); err != nil {
			return err
		}
	}
	s.log.Info("Provisioned default boards", zap.String("userID", userID))
	return nil
}

// populate creates the template's lists and cards on a freshly created board,
// numbering them in template order.
func (s *Service) populate(ctx context.Context, board *models.Board, tmpl []listSeed) error {
	for i, seed := range tmpl {
		list := &models.List{
			BoardID:  board.ID,
			Title:    seed.Title,
			Type:     models.ListTypeRegular,
			Position: models.IntPtr(i),
		}
		if err := s.store.CreateList(ctx, list); err != nil {
			return fmt.Errorf("failed to create list %q: %w", seed.Title, err)
		}

		for j, cs := range seed.Cards {
			var kind models.CardKind = models.PlainCard{}
			if cs.Project {
				sub, err := s.createSubBoard(ctx, board.UserID, cs.Title)
				if err != nil {
					return err
				}
				kind = models.ProjectCard{URL: cs.URL, SubBoardID: sub.ID}
			} else if cs.URL != "" {
				kind = models.RepoCard{URL: cs.URL}
			}

			card := &models.Card{
				ListID:   list.ID,
				Title:    cs.Title,
				Position: models.IntPtr(j),
				Kind:     kind,
			}
			if err := s.store.CreateCard(ctx, card); err != nil {
				return fmt.Errorf("failed to create card %q: %w", cs.Title, err)
			}
		}
	}
	s.log.Debug("Board populated", zap.String("boardID", board.ID), zap.Int("lists", len(tmpl)))
	return nil
}

// createSubBoard creates the task board behind a project card.
func (s *Service) createSubBoard(ctx context.Context, userID, cardTitle string) (*models.Board, error) {
	sub := &models.Board{Name: subBoardName(cardTitle), UserID: userID}
	if err := s.store.CreateBoard(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create sub-board: %w", err)
	}
	if err := s.populate(ctx, sub, subBoardTemplate); err != nil {
		return nil, err
	}
	return sub, nil
}
