package board

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chxlky/kanban-api/internal/models"
)

// progressPercent is floor(100*done/total), or 0 for an empty board.
func progressPercent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return done * 100 / total
}

// computeProgress counts the cards on a board and how many of them sit in a
// list titled "Done".
func (s *Service) computeProgress(ctx context.Context, boardID string) (int, error) {
	lists, err := s.store.ListsByBoard(ctx, boardID)
	if err != nil {
		return 0, err
	}
	ids := make([]string, 0, len(lists))
	done := make(map[string]bool)
	for _, l := range lists {
		ids = append(ids, l.ID)
		if l.IsDone() {
			done[l.ID] = true
		}
	}
	cards, err := s.store.CardsByLists(ctx, ids)
	if err != nil {
		return 0, err
	}
	finished := 0
	for _, c := range cards {
		if done[c.ListID] {
			finished++
		}
	}
	return progressPercent(finished, len(cards)), nil
}

// Recompute derives the progress of the project card owning subBoardID from
// the sub-board's cards and stores it. It is a no-op when no card owns the
// board.
func (s *Service) Recompute(ctx context.Context, subBoardID string) (int, error) {
	progress, err := s.computeProgress(ctx, subBoardID)
	if err != nil {
		return 0, fmt.Errorf("failed to compute progress: %w", err)
	}
	updated, err := s.store.SetProjectProgress(ctx, subBoardID, progress)
	if err != nil {
		return 0, fmt.Errorf("failed to store progress: %w", err)
	}
	if updated {
		s.log.Debug("Project progress recomputed",
			zap.String("subBoardID", subBoardID),
			zap.Int("progress", progress))
	}
	return progress, nil
}

// MaybeRecompute recomputes progress if boardID is the sub-board of some
// project card.
func (s *Service) MaybeRecompute(ctx context.Context, boardID string) error {
	if boardID == "" {
		return nil
	}
	if _, err := s.store.CardBySubBoard(ctx, boardID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up parent card: %w", err)
	}
	_, err := s.Recompute(ctx, boardID)
	return err
}

// maybeRecomputeAll runs MaybeRecompute once per distinct board.
func (s *Service) maybeRecomputeAll(ctx context.Context, boardIDs ...string) error {
	seen := make(map[string]bool, len(boardIDs))
	for _, id := range boardIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if err := s.MaybeRecompute(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
