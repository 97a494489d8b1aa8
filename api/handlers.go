package api

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chxlky/kanban-api/internal/auth"
	"github.com/chxlky/kanban-api/internal/board"
	"github.com/chxlky/kanban-api/internal/models"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Boards *board.Service
	Auth   *auth.Service
	// Health checks these on GET /health.
	Deps []Pinger
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/signup", h.SignUp)
	r.POST("/login", h.Login)
	r.GET("/health", h.Health)

	authed := r.Group("/", h.RequireAuth())
	{
		authed.GET("/boards", h.ListBoards)
		authed.POST("/boards", h.CreateBoard)
		authed.GET("/boards/:id", h.GetBoard)
		authed.PUT("/boards/:id", h.ReplaceBoard)
		authed.POST("/boards/:id/lists", h.CreateList)

		authed.GET("/lists", h.ListLists)
		authed.PATCH("/lists/reorder", h.ReorderLists)
		authed.PATCH("/lists/:id", h.RenameList)
		authed.DELETE("/lists/:id", h.DeleteList)
		authed.POST("/lists/:id/cards", h.CreateCard)

		authed.GET("/cards", h.ListCards)
		authed.PATCH("/cards/:id", h.UpdateCard)
		authed.PUT("/cards/:id", h.MoveCard)
		authed.PATCH("/cards/:id/reorder", h.ReorderCard)
		authed.DELETE("/cards/:id", h.DeleteCard)
	}
}

// Accounts

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) SignUp(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Username and password are required")
		return
	}
	token, err := h.Auth.SignUp(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, "Error signing up", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *Handler) Login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Username and password are required")
		return
	}
	token, err := h.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, "Error logging in", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	for _, dep := range h.Deps {
		if err := dep.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "message": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Kanban backend is running!"})
}

// Boards

func (h *Handler) ListBoards(c *gin.Context) {
	trees, err := h.Boards.ListBoards(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, "Error fetching boards", err)
		return
	}
	out := make([]boardTreeView, 0, len(trees))
	for _, t := range trees {
		out = append(out, newBoardTreeView(t))
	}
	c.JSON(http.StatusOK, out)
}

type createBoardRequest struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

func (h *Handler) CreateBoard(c *gin.Context) {
	var req createBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Board name is required")
		return
	}
	name := req.Name
	if name == "" {
		name = req.Title
	}
	user := currentUser(c)
	b, err := h.Boards.CreateBoard(c.Request.Context(), user.ID, name)
	if err != nil {
		writeError(c, "Error creating board", err)
		return
	}
	c.JSON(http.StatusCreated, createdBoardView{ID: b.ID, Name: b.Name, UserID: b.UserID})
}

func (h *Handler) GetBoard(c *gin.Context) {
	tree, err := h.Boards.BoardDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, "Error fetching board", err)
		return
	}
	c.JSON(http.StatusOK, newBoardTreeView(*tree))
}

type replaceList struct {
	Title string `json:"title"`
	Cards []struct {
		Title string `json:"title"`
	} `json:"cards"`
}

func (h *Handler) ReplaceBoard(c *gin.Context) {
	var req []replaceList
	if err := c.ShouldBindJSON(&req); err != nil || req == nil {
		badRequest(c, "Invalid payload, expecting a list of lists with cards")
		return
	}
	layouts := make([]board.ListLayout, 0, len(req))
	for _, l := range req {
		layout := board.ListLayout{Title: l.Title}
		for _, card := range l.Cards {
			layout.Cards = append(layout.Cards, card.Title)
		}
		layouts = append(layouts, layout)
	}
	if err := h.Boards.ReplaceBoard(c.Request.Context(), c.Param("id"), layouts); err != nil {
		writeError(c, "Error updating board", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Board structure updated successfully"})
}

// Lists

func (h *Handler) ListLists(c *gin.Context) {
	boardID := c.Query("board_id")
	if boardID == "" {
		badRequest(c, "Missing board_id parameter")
		return
	}
	lists, err := h.Boards.Lists(c.Request.Context(), boardID)
	if err != nil {
		writeError(c, "Error fetching lists", err)
		return
	}
	out := make([]listView, 0, len(lists))
	for _, l := range lists {
		out = append(out, newListView(l))
	}
	c.JSON(http.StatusOK, out)
}

type createListRequest struct {
	Title    string `json:"title"`
	Type     string `json:"type"`
	Progress *int   `json:"progress"`
}

func (h *Handler) CreateList(c *gin.Context) {
	var req createListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "List title is required")
		return
	}
	l, err := h.Boards.CreateList(c.Request.Context(), c.Param("id"), board.NewList{
		Title:    req.Title,
		Type:     req.Type,
		Progress: req.Progress,
	})
	if err != nil {
		writeError(c, "Error creating list", err)
		return
	}
	c.JSON(http.StatusCreated, newListTreeView(*l, nil))
}

type renameListRequest struct {
	Title string `json:"title"`
}

func (h *Handler) RenameList(c *gin.Context) {
	var req renameListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "New title is required")
		return
	}
	if err := h.Boards.RenameList(c.Request.Context(), c.Param("id"), req.Title); err != nil {
		writeError(c, "Error renaming list", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "List renamed successfully"})
}

func (h *Handler) DeleteList(c *gin.Context) {
	if err := h.Boards.DeleteList(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, "Error deleting list", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "List deleted successfully"})
}

type reorderListsRequest struct {
	ReorderedListIDs []string `json:"reorderedListIds"`
}

func (h *Handler) ReorderLists(c *gin.Context) {
	var req reorderListsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "reorderedListIds (list) required")
		return
	}
	if err := h.Boards.ReorderLists(c.Request.Context(), req.ReorderedListIDs); err != nil {
		writeError(c, "Error reordering lists", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Lists reordered successfully"})
}

// Cards

func (h *Handler) ListCards(c *gin.Context) {
	listID := c.Query("list_id")
	if listID == "" {
		badRequest(c, "Missing list_id")
		return
	}
	cards, err := h.Boards.Cards(c.Request.Context(), listID)
	if err != nil {
		writeError(c, "Error fetching cards", err)
		return
	}
	c.JSON(http.StatusOK, newCardViews(cards))
}

type createCardRequest struct {
	Title     string `json:"title"`
	Type      string `json:"type"`
	GithubURL string `json:"githubUrl"`
	Progress  *int   `json:"progress"`
}

func (h *Handler) CreateCard(c *gin.Context) {
	var req createCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON payload")
		return
	}
	card, err := h.Boards.CreateCard(c.Request.Context(), currentUser(c).ID, c.Param("id"), board.NewCard{
		Title:    req.Title,
		Type:     req.Type,
		URL:      req.GithubURL,
		Progress: req.Progress,
	})
	if err != nil {
		writeError(c, "Error adding card", err)
		return
	}
	c.JSON(http.StatusCreated, newCardView(*card))
}

type updateCardRequest struct {
	Title     *string `json:"title"`
	GithubURL *string `json:"githubUrl"`
	Progress  *int    `json:"progress"`
}

func (h *Handler) UpdateCard(c *gin.Context) {
	var req updateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON payload")
		return
	}
	card, err := h.Boards.UpdateCard(c.Request.Context(), c.Param("id"), models.CardUpdate{
		Title:    req.Title,
		URL:      req.GithubURL,
		Progress: req.Progress,
	})
	if err != nil {
		writeError(c, "Error updating card", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Card updated successfully", "card": newCardView(*card)})
}

type moveCardRequest struct {
	NewListID  string `json:"new_list_id"`
	ToPosition any    `json:"to_position"`
}

// MoveCard places the card at to_position in new_list_id. A missing or
// non-integer position appends.
func (h *Handler) MoveCard(c *gin.Context) {
	var req moveCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "New list ID is required")
		return
	}
	index, ok := intValue(req.ToPosition)
	if !ok {
		index = -1
	}
	card, err := h.Boards.MoveCard(c.Request.Context(), c.Param("id"), req.NewListID, index)
	if err != nil {
		writeError(c, "Error moving card", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Card moved successfully and progress updated if applicable",
		"card":    newCardView(*card),
	})
}

type reorderCardRequest struct {
	NewPosition any    `json:"new_position"`
	NewListID   string `json:"new_list_id"`
}

func (h *Handler) ReorderCard(c *gin.Context) {
	var req reorderCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "A valid new_position integer is required")
		return
	}
	index, ok := intValue(req.NewPosition)
	if !ok || index < 0 {
		badRequest(c, "A valid new_position integer is required")
		return
	}
	card, err := h.Boards.ReorderCard(c.Request.Context(), c.Param("id"), index, req.NewListID)
	if err != nil {
		writeError(c, "Error reordering card", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Card reordered and moved successfully",
		"card":    newCardView(*card),
	})
}

func (h *Handler) DeleteCard(c *gin.Context) {
	if err := h.Boards.DeleteCard(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, "Error deleting card", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Card deleted successfully"})
}

// intValue accepts JSON numbers with no fractional part. Values outside the
// int range saturate.
func intValue(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	switch {
	case f >= math.MaxInt:
		return math.MaxInt, true
	case f <= math.MinInt:
		return math.MinInt, true
	}
	return int(f), true
}
