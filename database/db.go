package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/chxlky/kanban-api/internal/models"
)

// GormStore persists boards, lists, cards and users in SQLite through gorm.
type GormStore struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the SQLite database at dbPath and migrates
// the schema.
func OpenSQLite(dbPath string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger:         newGormLogger(),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}
	// SQLite serializes writers anyway; one connection also keeps shared
	// in-memory databases alive and consistent.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&userRecord{}, &boardRecord{}, &listRecord{}, &cardRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	zap.L().Info("Database initialised and migrated successfully", zap.String("path", dbPath))

	return &GormStore{db: db}, nil
}

// newGormLogger writes gorm's warnings through the global zap logger. Missing
// rows are expected lookups and are not logged.
func newGormLogger() gormlogger.Interface {
	return gormlogger.New(zap.NewStdLog(zap.L().Named("gorm")), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return models.ErrConflict
	}
	return err
}

// Users

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) error {
	rec := userRecord{Username: u.Username, PasswordHash: u.PasswordHash}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return translate(err)
	}
	*u = rec.model()
	return nil
}

func (s *GormStore) UserByName(ctx context.Context, username string) (*models.User, error) {
	var rec userRecord
	if err := s.db.WithContext(ctx).First(&rec, "username = ?", username).Error; err != nil {
		return nil, translate(err)
	}
	u := rec.model()
	return &u, nil
}

func (s *GormStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	var rec userRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	u := rec.model()
	return &u, nil
}

// Boards

func (s *GormStore) CreateBoard(ctx context.Context, b *models.Board) error {
	rec := boardRecord{Name: b.Name, UserID: b.UserID}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return translate(err)
	}
	*b = rec.model()
	return nil
}

func (s *GormStore) GetBoard(ctx context.Context, id string) (*models.Board, error) {
	var rec boardRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	b := rec.model()
	return &b, nil
}

func (s *GormStore) BoardsByUser(ctx context.Context, userID string) ([]models.Board, error) {
	var recs []boardRecord
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&recs).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]models.Board, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.model())
	}
	return out, nil
}

// Lists. Sibling queries order by position with missing positions first, then
// by id, which is creation order.

func (s *GormStore) CreateList(ctx context.Context, l *models.List) error {
	rec := listRecord{
		BoardID:  l.BoardID,
		Title:    l.Title,
		Type:     string(l.Type),
		Position: l.Position,
		Progress: l.Progress,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return translate(err)
	}
	*l = rec.model()
	return nil
}

func (s *GormStore) GetList(ctx context.Context, id string) (*models.List, error) {
	var rec listRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	l := rec.model()
	return &l, nil
}

func (s *GormStore) ListsByBoard(ctx context.Context, boardID string) ([]models.List, error) {
	var recs []listRecord
	err := s.db.WithContext(ctx).
		Where("board_id = ?", boardID).
		Order("position IS NOT NULL, position, id").
		Find(&recs).Error
	if err != nil {
		return nil, translate(err)
	}
	out := make([]models.List, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.model())
	}
	return out, nil
}

func (s *GormStore) RenameList(ctx context.Context, id, title string) error {
	return s.updateOne(ctx, &listRecord{}, id, map[string]any{"title": title})
}

func (s *GormStore) SetListPosition(ctx context.Context, id string, position int) error {
	return s.updateOne(ctx, &listRecord{}, id, map[string]any{"position": position})
}

func (s *GormStore) DeleteList(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&listRecord{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Cards

func (s *GormStore) CreateCard(ctx context.Context, c *models.Card) error {
	rec := newCardRecord(c)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return translate(err)
	}
	*c = rec.model()
	return nil
}

func (s *GormStore) GetCard(ctx context.Context, id string) (*models.Card, error) {
	var rec cardRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	c := rec.model()
	return &c, nil
}

func (s *GormStore) CardsByList(ctx context.Context, listID string) ([]models.Card, error) {
	return s.CardsByLists(ctx, []string{listID})
}

func (s *GormStore) CardsByLists(ctx context.Context, listIDs []string) ([]models.Card, error) {
	if len(listIDs) == 0 {
		return []models.Card{}, nil
	}
	var recs []cardRecord
	err := s.db.WithContext(ctx).
		Where("list_id IN ?", listIDs).
		Order("position IS NOT NULL, position, id").
		Find(&recs).Error
	if err != nil {
		return nil, translate(err)
	}
	out := make([]models.Card, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.model())
	}
	return out, nil
}

func (s *GormStore) CardBySubBoard(ctx context.Context, boardID string) (*models.Card, error) {
	var rec cardRecord
	if err := s.db.WithContext(ctx).First(&rec, "sub_board_id = ?", boardID).Error; err != nil {
		return nil, translate(err)
	}
	c := rec.model()
	return &c, nil
}

func (s *GormStore) UpdateCard(ctx context.Context, id string, u models.CardUpdate) error {
	fields := map[string]any{}
	if u.Title != nil {
		fields["title"] = *u.Title
	}
	if u.URL != nil {
		fields["github_url"] = *u.URL
	}
	if u.Progress != nil {
		fields["progress"] = *u.Progress
	}
	if len(fields) == 0 {
		return nil
	}
	return s.updateOne(ctx, &cardRecord{}, id, fields)
}

func (s *GormStore) PlaceCard(ctx context.Context, id, listID string, position int) error {
	return s.updateOne(ctx, &cardRecord{}, id, map[string]any{"list_id": listID, "position": position})
}

func (s *GormStore) SetProjectProgress(ctx context.Context, subBoardID string, progress int) (bool, error) {
	res := s.db.WithContext(ctx).Model(&cardRecord{}).
		Where("sub_board_id = ?", subBoardID).
		Update("progress", progress)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) DeleteCard(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&cardRecord{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteCardsByList(ctx context.Context, listID string) error {
	return translate(s.db.WithContext(ctx).Delete(&cardRecord{}, "list_id = ?", listID).Error)
}

func (s *GormStore) updateOne(ctx context.Context, model any, id string, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}
