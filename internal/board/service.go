// Package board implements boards, lists and cards: ordering of siblings,
// progress rollup from project sub-boards and the default board templates.
package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chxlky/kanban-api/internal/lock"
	"github.com/chxlky/kanban-api/internal/models"
)

const (
	defaultLockWait = 5 * time.Second
	moveAttempts    = 3
	untitled        = "Untitled"
)

type Service struct {
	store  Store
	locker lock.Locker
	wait   time.Duration
	log    *zap.Logger
}

// NewService wires the board service. wait bounds how long a mutation waits
// for its scope lock; zero uses a default.
func NewService(store Store, locker lock.Locker, wait time.Duration, log *zap.Logger) *Service {
	if wait <= 0 {
		wait = defaultLockWait
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, locker: locker, wait: wait, log: log}
}

// ListTree is a list with its cards in order.
type ListTree struct {
	models.List
	Cards []models.Card
}

// BoardTree is a board with its lists and cards in order.
type BoardTree struct {
	models.Board
	Lists []ListTree
}

type NewList struct {
	Title    string
	Type     string
	Progress *int
}

type NewCard struct {
	Title    string
	Type     string
	URL      string
	Progress *int
}

// ListLayout describes one list of a wholesale board replacement.
type ListLayout struct {
	Title string
	Cards []string
}

func boardScope(id string) string { return "board:" + id }
func listScope(id string) string  { return "list:" + id }

// acquire locks scopes, waiting at most s.wait.
func (s *Service) acquire(ctx context.Context, scopes ...string) (func(), error) {
	lctx, cancel := context.WithTimeout(ctx, s.wait)
	defer cancel()
	unlock, err := s.locker.Lock(lctx, scopes...)
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			s.log.Warn("Scope lock timed out", zap.Strings("scopes", scopes))
			return nil, models.Conflict("Resource is busy, please retry")
		}
		return nil, fmt.Errorf("failed to lock %v: %w", scopes, err)
	}
	return unlock, nil
}

// lookup maps a missing record onto a NotFound error carrying msg.
func lookup[T any](v T, err error, msg string) (T, error) {
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return v, models.NotFound(msg)
		}
		return v, err
	}
	return v, nil
}

func (s *Service) getBoard(ctx context.Context, id string) (*models.Board, error) {
	b, err := s.store.GetBoard(ctx, id)
	return lookup(b, err, "Board not found")
}

func (s *Service) getList(ctx context.Context, id string) (*models.List, error) {
	l, err := s.store.GetList(ctx, id)
	return lookup(l, err, "List not found")
}

func (s *Service) getCard(ctx context.Context, id string) (*models.Card, error) {
	c, err := s.store.GetCard(ctx, id)
	return lookup(c, err, "Card not found")
}

// boardOfList returns the board id of listID, or "" if the list is gone.
func (s *Service) boardOfList(ctx context.Context, listID string) (string, error) {
	l, err := s.store.GetList(ctx, listID)
	if errors.Is(err, models.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return l.BoardID, nil
}

// Boards

// ListBoards returns the user's Work and Personal boards, fully expanded.
func (s *Service) ListBoards(ctx context.Context, userID string) ([]BoardTree, error) {
	boards, err := s.store.BoardsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch boards: %w", err)
	}
	out := make([]BoardTree, 0, 2)
	for _, b := range boards {
		if !isMainBoardName(b.Name) {
			continue
		}
		tree, err := s.tree(ctx, b, false)
		if err != nil {
			return nil, err
		}
		out = append(out, *tree)
	}
	return out, nil
}

// CreateBoard creates a board owned by userID. A Work board is seeded with
// the Work template.
func (s *Service) CreateBoard(ctx context.Context, userID, name string) (*models.Board, error) {
	if strings.TrimSpace(name) == "" {
		return nil, models.Validation("Board name is required")
	}
	b := &models.Board{Name: name, UserID: userID}
	if err := s.store.CreateBoard(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to create board: %w", err)
	}
	if IsWorkBoardName(name) {
		if err := s.populate(ctx, b, workTemplate); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// BoardDetail returns a board with its lists and cards. Project card
// progress is computed from the sub-board at read time and not stored.
func (s *Service) BoardDetail(ctx context.Context, id string) (*BoardTree, error) {
	b, err := s.getBoard(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.tree(ctx, *b, true)
}

func (s *Service) tree(ctx context.Context, b models.Board, live bool) (*BoardTree, error) {
	lists, err := s.store.ListsByBoard(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lists: %w", err)
	}
	ids := make([]string, 0, len(lists))
	for _, l := range lists {
		ids = append(ids, l.ID)
	}
	cards, err := s.store.CardsByLists(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cards: %w", err)
	}

	byList := make(map[string][]models.Card, len(lists))
	for _, c := range cards {
		if live {
			if p, ok := c.Project(); ok && p.SubBoardID != "" {
				progress, err := s.computeProgress(ctx, p.SubBoardID)
				if err != nil {
					return nil, fmt.Errorf("failed to compute progress: %w", err)
				}
				p.Progress = progress
				c.Kind = p
			}
		}
		byList[c.ListID] = append(byList[c.ListID], c)
	}

	tree := &BoardTree{Board: b, Lists: make([]ListTree, 0, len(lists))}
	for _, l := range lists {
		cs := byList[l.ID]
		if cs == nil {
			cs = []models.Card{}
		}
		tree.Lists = append(tree.Lists, ListTree{List: l, Cards: cs})
	}
	return tree, nil
}

// ReplaceBoard deletes every list and card of the board and recreates them
// from layouts, in order.
func (s *Service) ReplaceBoard(ctx context.Context, id string, layouts []ListLayout) error {
	if _, err := s.getBoard(ctx, id); err != nil {
		return err
	}
	existing, err := s.store.ListsByBoard(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch lists: %w", err)
	}
	scopes := []string{boardScope(id)}
	for _, l := range existing {
		scopes = append(scopes, listScope(l.ID))
	}
	unlock, err := s.acquire(ctx, scopes...)
	if err != nil {
		return err
	}
	defer unlock()

	for _, l := range existing {
		if err := s.store.DeleteCardsByList(ctx, l.ID); err != nil {
			return fmt.Errorf("failed to delete cards: %w", err)
		}
		if err := s.store.DeleteList(ctx, l.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("failed to delete list: %w", err)
		}
	}

	for i, layout := range layouts {
		list := &models.List{
			BoardID:  id,
			Title:    orUntitled(layout.Title),
			Type:     models.ListTypeRegular,
			Position: models.IntPtr(i),
		}
		if err := s.store.CreateList(ctx, list); err != nil {
			return fmt.Errorf("failed to create list: %w", err)
		}
		for j, title := range layout.Cards {
			card := &models.Card{
				ListID:   list.ID,
				Title:    orUntitled(title),
				Position: models.IntPtr(j),
				Kind:     models.PlainCard{},
			}
			if err := s.store.CreateCard(ctx, card); err != nil {
				return fmt.Errorf("failed to create card: %w", err)
			}
		}
	}
	return s.MaybeRecompute(ctx, id)
}

func orUntitled(title string) string {
	if strings.TrimSpace(title) == "" {
		return untitled
	}
	return title
}

// Lists

func (s *Service) Lists(ctx context.Context, boardID string) ([]models.List, error) {
	if _, err := s.getBoard(ctx, boardID); err != nil {
		return nil, err
	}
	lists, err := s.store.ListsByBoard(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lists: %w", err)
	}
	return lists, nil
}

// CreateList appends a list to the board.
func (s *Service) CreateList(ctx context.Context, boardID string, req NewList) (*models.List, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, models.Validation("List title is required")
	}
	listType := models.ListType(req.Type)
	switch listType {
	case "":
		listType = models.ListTypeRegular
	case models.ListTypeRegular, models.ListTypeProject:
	default:
		return nil, models.Validation(fmt.Sprintf("Invalid list type: %s", req.Type))
	}

	var progress *int
	if listType == models.ListTypeProject {
		progress = models.IntPtr(0)
		if req.Progress != nil {
			if err := validProgress(*req.Progress); err != nil {
				return nil, err
			}
			progress = models.IntPtr(*req.Progress)
		}
	}

	if _, err := s.getBoard(ctx, boardID); err != nil {
		return nil, err
	}
	unlock, err := s.acquire(ctx, boardScope(boardID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	next, err := s.healLists(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to order lists: %w", err)
	}
	list := &models.List{
		BoardID:  boardID,
		Title:    req.Title,
		Type:     listType,
		Position: models.IntPtr(next),
		Progress: progress,
	}
	if err := s.store.CreateList(ctx, list); err != nil {
		return nil, fmt.Errorf("failed to create list: %w", err)
	}
	return list, nil
}

func (s *Service) RenameList(ctx context.Context, id, title string) error {
	if strings.TrimSpace(title) == "" {
		return models.Validation("New title is required")
	}
	if _, err := s.getList(ctx, id); err != nil {
		return err
	}
	_, err := lookup(struct{}{}, s.store.RenameList(ctx, id, title), "List not found")
	return err
}

// DeleteList deletes a list and its cards and closes the gap it leaves.
// Sub-boards of deleted project cards are kept.
func (s *Service) DeleteList(ctx context.Context, id string) error {
	list, err := s.getList(ctx, id)
	if err != nil {
		return err
	}
	unlock, err := s.acquire(ctx, boardScope(list.BoardID), listScope(id))
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.store.DeleteCardsByList(ctx, id); err != nil {
		return fmt.Errorf("failed to delete cards: %w", err)
	}
	if _, err := lookup(struct{}{}, s.store.DeleteList(ctx, id), "List not found"); err != nil {
		return err
	}
	if _, err := s.healLists(ctx, list.BoardID); err != nil {
		return fmt.Errorf("failed to order lists: %w", err)
	}
	return s.MaybeRecompute(ctx, list.BoardID)
}

// ReorderLists sets list positions to their index in ids. All ids must be
// existing lists of one board; lists of that board not named follow in their
// current order.
func (s *Service) ReorderLists(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return models.Validation("reorderedListIds (list) required")
	}
	boardID := ""
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return models.Validation(fmt.Sprintf("Duplicate list id: %s", id))
		}
		seen[id] = true

		l, err := s.store.GetList(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			return models.Forbidden(fmt.Sprintf("Unauthorized or missing list: %s", id))
		}
		if err != nil {
			return fmt.Errorf("failed to fetch list: %w", err)
		}
		if boardID == "" {
			boardID = l.BoardID
		} else if l.BoardID != boardID {
			return models.Validation("All lists must belong to the same board")
		}
	}

	unlock, err := s.acquire(ctx, boardScope(boardID))
	if err != nil {
		return err
	}
	defer unlock()

	lists, err := s.store.ListsByBoard(ctx, boardID)
	if err != nil {
		return fmt.Errorf("failed to fetch lists: %w", err)
	}
	current := make(map[string]bool, len(lists))
	for _, l := range lists {
		current[l.ID] = true
	}
	for _, id := range ids {
		if !current[id] {
			return models.Forbidden(fmt.Sprintf("Unauthorized or missing list: %s", id))
		}
	}
	if err := s.writeListPositions(ctx, reorder(listSiblings(lists), ids)); err != nil {
		return fmt.Errorf("failed to reorder lists: %w", err)
	}
	return nil
}

// Cards

func (s *Service) Cards(ctx context.Context, listID string) ([]models.Card, error) {
	if _, err := s.getList(ctx, listID); err != nil {
		return nil, err
	}
	cards, err := s.store.CardsByList(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cards: %w", err)
	}
	return cards, nil
}

// CreateCard appends a card to the list. A project card gets a fresh
// sub-board owned by userID.
func (s *Service) CreateCard(ctx context.Context, userID, listID string, req NewCard) (*models.Card, error) {
	cardType, err := models.ParseCardType(req.Type)
	if err != nil {
		return nil, models.Validation(fmt.Sprintf("Invalid card type: %s", req.Type))
	}
	if strings.TrimSpace(req.Title) == "" && cardType == models.CardTypePlain {
		return nil, models.Validation("Card title is required for this type")
	}
	if cardType == models.CardTypeRepo && strings.TrimSpace(req.URL) == "" {
		return nil, models.Validation("GitHub URL is required for this card type")
	}
	if req.Progress != nil {
		if err := validProgress(*req.Progress); err != nil {
			return nil, err
		}
	}

	if _, err := s.getList(ctx, listID); err != nil {
		return nil, err
	}

	unlock, err := s.acquire(ctx, listScope(listID))
	if err != nil {
		return nil, err
	}
	// the list may have been deleted while we waited
	list, err := s.getList(ctx, listID)
	if err != nil {
		unlock()
		return nil, err
	}

	var kind models.CardKind
	switch cardType {
	case models.CardTypeRepo:
		kind = models.RepoCard{URL: req.URL}
	case models.CardTypeProject:
		sub, err := s.createSubBoard(ctx, userID, req.Title)
		if err != nil {
			unlock()
			return nil, err
		}
		// the sub-board starts empty, so progress starts at zero
		kind = models.ProjectCard{URL: req.URL, SubBoardID: sub.ID}
	default:
		kind = models.PlainCard{}
	}

	next, err := s.healCards(ctx, listID)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("failed to order cards: %w", err)
	}
	card := &models.Card{
		ListID:   listID,
		Title:    req.Title,
		Position: models.IntPtr(next),
		Kind:     kind,
	}
	err = s.store.CreateCard(ctx, card)
	unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to create card: %w", err)
	}

	if err := s.MaybeRecompute(ctx, list.BoardID); err != nil {
		return nil, err
	}
	return card, nil
}

// UpdateCard applies a partial update. A project card's progress is then
// recomputed from its sub-board, overriding any supplied value.
func (s *Service) UpdateCard(ctx context.Context, id string, u models.CardUpdate) (*models.Card, error) {
	if u.Progress != nil {
		if err := validProgress(*u.Progress); err != nil {
			return nil, err
		}
	}
	if _, err := s.getCard(ctx, id); err != nil {
		return nil, err
	}
	if !u.Empty() {
		if _, err := lookup(struct{}{}, s.store.UpdateCard(ctx, id, u), "Card not found"); err != nil {
			return nil, err
		}
	}

	card, err := s.getCard(ctx, id)
	if err != nil {
		return nil, err
	}
	if p, ok := card.Project(); ok && p.SubBoardID != "" {
		progress, err := s.Recompute(ctx, p.SubBoardID)
		if err != nil {
			return nil, err
		}
		p.Progress = progress
		card.Kind = p
	}

	boardID, err := s.boardOfList(ctx, card.ListID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch list: %w", err)
	}
	if err := s.MaybeRecompute(ctx, boardID); err != nil {
		return nil, err
	}
	return card, nil
}

// MoveCard moves a card to index in targetListID and renumbers the target
// list. A negative index appends; an index past the end is clamped. When the
// card changes lists the source list is compacted as well.
func (s *Service) MoveCard(ctx context.Context, id, targetListID string, index int) (*models.Card, error) {
	if strings.TrimSpace(targetListID) == "" {
		return nil, models.Validation("New list ID is required")
	}
	if _, err := s.getList(ctx, targetListID); err != nil {
		return nil, err
	}

	card, unlock, err := s.lockCard(ctx, id, listScope(targetListID))
	if err != nil {
		return nil, err
	}
	target, err := s.getList(ctx, targetListID)
	if err != nil {
		unlock()
		return nil, err
	}
	sourceListID := card.ListID

	moved, err := s.placeCard(ctx, card, targetListID, index)
	unlock()
	if err != nil {
		return nil, err
	}

	sourceBoardID, err := s.boardOfList(ctx, sourceListID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch list: %w", err)
	}
	if err := s.maybeRecomputeAll(ctx, target.BoardID, sourceBoardID); err != nil {
		return nil, err
	}
	return moved, nil
}

// ReorderCard moves a card to index, within its own list unless
// targetListID is set.
func (s *Service) ReorderCard(ctx context.Context, id string, index int, targetListID string) (*models.Card, error) {
	if index < 0 {
		return nil, models.Validation("A valid new_position integer is required")
	}
	if targetListID == "" {
		card, err := s.getCard(ctx, id)
		if err != nil {
			return nil, err
		}
		targetListID = card.ListID
	}
	return s.MoveCard(ctx, id, targetListID, index)
}

// placeCard does the renumbering of a move. Both lists are locked.
func (s *Service) placeCard(ctx context.Context, card *models.Card, targetListID string, index int) (*models.Card, error) {
	cards, err := s.store.CardsByList(ctx, targetListID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cards: %w", err)
	}
	siblings, at := insertAt(cardSiblings(cards), card.ID, index)
	if err := s.writeCardPositions(ctx, targetListID, siblings); err != nil {
		return nil, fmt.Errorf("failed to move card: %w", err)
	}
	if card.ListID != targetListID {
		if _, err := s.healCards(ctx, card.ListID); err != nil {
			return nil, fmt.Errorf("failed to order source list: %w", err)
		}
	}

	moved := *card
	moved.ListID = targetListID
	moved.Position = models.IntPtr(at)
	return &moved, nil
}

// DeleteCard deletes a card and closes the gap it leaves. A project card's
// sub-board is kept.
func (s *Service) DeleteCard(ctx context.Context, id string) error {
	card, unlock, err := s.lockCard(ctx, id)
	if err != nil {
		return err
	}
	if _, err := lookup(struct{}{}, s.store.DeleteCard(ctx, id), "Card not found"); err != nil {
		unlock()
		return err
	}
	_, err = s.healCards(ctx, card.ListID)
	unlock()
	if err != nil {
		return fmt.Errorf("failed to order cards: %w", err)
	}

	boardID, err := s.boardOfList(ctx, card.ListID)
	if err != nil {
		return fmt.Errorf("failed to fetch list: %w", err)
	}
	return s.MaybeRecompute(ctx, boardID)
}

// lockCard locks the card's current list plus extra scopes and returns the
// card as read under the lock. If the card changed lists while waiting, it
// retries with the new list.
func (s *Service) lockCard(ctx context.Context, id string, extra ...string) (*models.Card, func(), error) {
	for range moveAttempts {
		card, err := s.getCard(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		unlock, err := s.acquire(ctx, append([]string{listScope(card.ListID)}, extra...)...)
		if err != nil {
			return nil, nil, err
		}
		fresh, err := s.getCard(ctx, id)
		if err != nil {
			unlock()
			return nil, nil, err
		}
		if fresh.ListID == card.ListID {
			return fresh, unlock, nil
		}
		unlock()
	}
	return nil, nil, models.Conflict("Card was moved concurrently, please retry")
}

func validProgress(p int) error {
	if p < 0 || p > 100 {
		return models.Validation("Progress must be between 0 and 100")
	}
	return nil
}
