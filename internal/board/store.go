package board

import (
	"context"

	"github.com/chxlky/kanban-api/internal/models"
)

// Store is the persistence the board service needs. Sibling queries
// (ListsByBoard, CardsByList, CardsByLists) return records ordered by
// position, missing positions first, then creation order.
//
// Lookups of a missing record return an error wrapping models.ErrNotFound.
type Store interface {
	CreateBoard(ctx context.Context, b *models.Board) error
	GetBoard(ctx context.Context, id string) (*models.Board, error)
	BoardsByUser(ctx context.Context, userID string) ([]models.Board, error)

	CreateList(ctx context.Context, l *models.List) error
	GetList(ctx context.Context, id string) (*models.List, error)
	ListsByBoard(ctx context.Context, boardID string) ([]models.List, error)
	RenameList(ctx context.Context, id, title string) error
	SetListPosition(ctx context.Context, id string, position int) error
	DeleteList(ctx context.Context, id string) error

	CreateCard(ctx context.Context, c *models.Card) error
	GetCard(ctx context.Context, id string) (*models.Card, error)
	CardsByList(ctx context.Context, listID string) ([]models.Card, error)
	CardsByLists(ctx context.Context, listIDs []string) ([]models.Card, error)
	CardBySubBoard(ctx context.Context, boardID string) (*models.Card, error)
	UpdateCard(ctx context.Context, id string, u models.CardUpdate) error
	PlaceCard(ctx context.Context, id, listID string, position int) error
	SetProjectProgress(ctx context.Context, subBoardID string, progress int) (bool, error)
	DeleteCard(ctx context.Context, id string) error
	DeleteCardsByList(ctx context.Context, listID string) error
}
