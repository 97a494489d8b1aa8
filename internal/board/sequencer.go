package board

import (
	"context"
	"slices"

	"github.com/chxlky/kanban-api/internal/models"
)

// sibling is one member of an ordered scope: a list within a board or a card
// within a list.
type sibling struct {
	id  string
	pos *int
}

func listSiblings(lists []models.List) []sibling {
	out := make([]sibling, 0, len(lists))
	for _, l := range lists {
		out = append(out, sibling{id: l.ID, pos: l.Position})
	}
	return out
}

func cardSiblings(cards []models.Card) []sibling {
	out := make([]sibling, 0, len(cards))
	for _, c := range cards {
		out = append(out, sibling{id: c.ID, pos: c.Position})
	}
	return out
}

// renumber gives every sibling its enumeration index as position and calls
// set for those whose stored position differs. Siblings read back in store
// order, so a missing position heals to where the sibling already sorts.
func renumber(siblings []sibling, set func(id string, pos int) error) (int, error) {
	written := 0
	for i, s := range siblings {
		if s.pos != nil && *s.pos == i {
			continue
		}
		if err := set(s.id, i); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// insertAt removes id from siblings, then inserts it at index clamped to
// [0, len(remaining)]. A negative index appends. The moved sibling has no
// position so renumber always writes it.
func insertAt(siblings []sibling, id string, index int) ([]sibling, int) {
	remaining := slices.DeleteFunc(slices.Clone(siblings), func(s sibling) bool {
		return s.id == id
	})
	if index < 0 || index > len(remaining) {
		index = len(remaining)
	}
	return slices.Insert(remaining, index, sibling{id: id}), index
}

// reorder puts the named ids first, in the given order, followed by every
// other sibling in its current order.
func reorder(siblings []sibling, ids []string) []sibling {
	byID := make(map[string]sibling, len(siblings))
	for _, s := range siblings {
		byID[s.id] = s
	}
	named := make(map[string]bool, len(ids))
	out := make([]sibling, 0, len(siblings))
	for _, id := range ids {
		if s, ok := byID[id]; ok && !named[id] {
			out = append(out, s)
			named[id] = true
		}
	}
	for _, s := range siblings {
		if !named[s.id] {
			out = append(out, s)
		}
	}
	return out
}

// The helpers below run with the relevant scope already locked.

func (s *Service) healLists(ctx context.Context, boardID string) (int, error) {
	lists, err := s.store.ListsByBoard(ctx, boardID)
	if err != nil {
		return 0, err
	}
	if err := s.writeListPositions(ctx, listSiblings(lists)); err != nil {
		return 0, err
	}
	return len(lists), nil
}

func (s *Service) healCards(ctx context.Context, listID string) (int, error) {
	cards, err := s.store.CardsByList(ctx, listID)
	if err != nil {
		return 0, err
	}
	if err := s.writeCardPositions(ctx, listID, cardSiblings(cards)); err != nil {
		return 0, err
	}
	return len(cards), nil
}

func (s *Service) writeListPositions(ctx context.Context, siblings []sibling) error {
	_, err := renumber(siblings, func(id string, pos int) error {
		return s.store.SetListPosition(ctx, id, pos)
	})
	return err
}

// writeCardPositions also rewrites each written card's parent list, which is
// how a moved card changes lists.
func (s *Service) writeCardPositions(ctx context.Context, listID string, siblings []sibling) error {
	_, err := renumber(siblings, func(id string, pos int) error {
		return s.store.PlaceCard(ctx, id, listID, pos)
	})
	return err
}
