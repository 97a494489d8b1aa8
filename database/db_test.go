package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/chxlky/kanban-api/internal/models"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	s, err := OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateUserDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &models.User{Username: "alice", PasswordHash: "x"}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected id to be assigned")
	}
	err := s.CreateUser(ctx, &models.User{Username: "alice", PasswordHash: "y"})
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	got, err := s.UserByName(ctx, "alice")
	if err != nil || got.ID != u.ID {
		t.Fatalf("lookup by name: %v %#v", err, got)
	}
	if _, err := s.UserByID(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListsByBoardOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	board := &models.Board{Name: "Work", UserID: "u1"}
	if err := s.CreateBoard(ctx, board); err != nil {
		t.Fatalf("create board: %v", err)
	}

	// created order: a(pos 1), b(no pos), c(pos 0), d(no pos)
	for _, l := range []models.List{
		{Title: "a", Position: models.IntPtr(1)},
		{Title: "b"},
		{Title: "c", Position: models.IntPtr(0)},
		{Title: "d"},
	} {
		l.BoardID = board.ID
		l.Type = models.ListTypeRegular
		if err := s.CreateList(ctx, &l); err != nil {
			t.Fatalf("create list: %v", err)
		}
	}

	lists, err := s.ListsByBoard(ctx, board.ID)
	if err != nil {
		t.Fatalf("lists: %v", err)
	}
	var titles []string
	for _, l := range lists {
		titles = append(titles, l.Title)
	}
	want := []string{"b", "d", "c", "a"}
	if fmt.Sprint(titles) != fmt.Sprint(want) {
		t.Fatalf("got order %v, want %v", titles, want)
	}
}

func TestCardKindPersistence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	project := &models.Card{
		ListID:   "list-1",
		Title:    "Trello Clone",
		Position: models.IntPtr(0),
		Kind:     models.ProjectCard{URL: "https://github.com/example/trello-clone", SubBoardID: "sub-1"},
	}
	if err := s.CreateCard(ctx, project); err != nil {
		t.Fatalf("create card: %v", err)
	}

	found, err := s.CardBySubBoard(ctx, "sub-1")
	if err != nil {
		t.Fatalf("card by sub-board: %v", err)
	}
	p, ok := found.Project()
	if !ok || p.SubBoardID != "sub-1" || found.URL() != "https://github.com/example/trello-clone" {
		t.Fatalf("unexpected card %#v", found)
	}

	updated, err := s.SetProjectProgress(ctx, "sub-1", 50)
	if err != nil || !updated {
		t.Fatalf("set progress: %v %v", updated, err)
	}
	found, _ = s.GetCard(ctx, project.ID)
	if p, _ := found.Project(); p.Progress != 50 {
		t.Fatalf("expected progress 50, got %d", p.Progress)
	}

	updated, err = s.SetProjectProgress(ctx, "nobody", 10)
	if err != nil || updated {
		t.Fatalf("expected no-op for unknown sub-board, got %v %v", updated, err)
	}

	if _, err := s.CardBySubBoard(ctx, "nobody"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPlaceAndDeleteCards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &models.Card{ListID: "a", Title: "x", Kind: models.PlainCard{}}
	if err := s.CreateCard(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.PlaceCard(ctx, c.ID, "b", 3); err != nil {
		t.Fatalf("place: %v", err)
	}
	got, _ := s.GetCard(ctx, c.ID)
	if got.ListID != "b" || got.Position == nil || *got.Position != 3 {
		t.Fatalf("unexpected placement %#v", got)
	}
	if err := s.PlaceCard(ctx, "missing", "b", 0); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := s.DeleteCardsByList(ctx, "b"); err != nil {
		t.Fatalf("delete by list: %v", err)
	}
	if err := s.DeleteCard(ctx, c.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected card to be gone, got %v", err)
	}
}

func TestGormLoggerSkipsMissingRows(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetBoard(ctx, "missing")
	require.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.UserByName(ctx, "nobody")
	require.ErrorIs(t, err, models.ErrNotFound)
	assert.Zero(t, logs.FilterMessageSnippet("record not found").Len())

	require.Error(t, s.db.WithContext(ctx).Exec("SELECT * FROM no_such_table").Error)
	assert.Equal(t, 1, logs.FilterLoggerName("gorm").FilterMessageSnippet("no_such_table").Len())
}
