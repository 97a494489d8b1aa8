package database

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/chxlky/kanban-api/internal/models"
)

// MongoStore keeps boards, lists, cards and users as documents in four
// collections. References between documents are stored as hex ObjectID
// strings (board_id, list_id, sub_board_id, user_id).
type MongoStore struct {
	client *mongo.Client
	boards *mongo.Collection
	lists  *mongo.Collection
	cards  *mongo.Collection
	users  *mongo.Collection
}

// OpenMongo connects to uri, selects the database dbName and ensures the
// unique username index exists.
func OpenMongo(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(dbName)
	s := &MongoStore{
		client: client,
		boards: db.Collection("boards"),
		lists:  db.Collection("lists"),
		cards:  db.Collection("cards"),
		users:  db.Collection("users"),
	}

	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create username index: %w", err)
	}
	for _, idx := range []struct {
		coll *mongo.Collection
		key  string
	}{{s.lists, "board_id"}, {s.cards, "list_id"}, {s.cards, "sub_board_id"}} {
		if _, err := idx.coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: idx.key, Value: 1}}}); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("failed to create %s index: %w", idx.key, err)
		}
	}

	zap.L().Info("MongoDB connected successfully", zap.String("database", dbName))

	return s, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id"`
	Username     string             `bson:"username"`
	PasswordHash string             `bson:"password"`
}

// boardDoc accepts both "name" and "title": boards seeded at signup were
// historically written with a title.
type boardDoc struct {
	ID     primitive.ObjectID `bson:"_id"`
	Name   string             `bson:"name,omitempty"`
	Title  string             `bson:"title,omitempty"`
	UserID string             `bson:"user_id"`
}

type listDoc struct {
	ID       primitive.ObjectID `bson:"_id"`
	BoardID  string             `bson:"board_id"`
	Title    string             `bson:"title"`
	Type     string             `bson:"type,omitempty"`
	Position bson.RawValue      `bson:"position,omitempty"`
	Progress *int               `bson:"progress,omitempty"`
}

type cardDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	ListID     string             `bson:"list_id"`
	Title      string             `bson:"title"`
	Type       string             `bson:"type,omitempty"`
	GithubURL  string             `bson:"githubUrl,omitempty"`
	Progress   *int               `bson:"progress,omitempty"`
	SubBoardID string             `bson:"sub_board_id,omitempty"`
	Position   bson.RawValue      `bson:"position,omitempty"`
}

func (d userDoc) model() models.User {
	return models.User{ID: d.ID.Hex(), Username: d.Username, PasswordHash: d.PasswordHash, CreatedAt: d.ID.Timestamp()}
}

func (d boardDoc) model() models.Board {
	name := d.Name
	if name == "" {
		name = d.Title
	}
	return models.Board{ID: d.ID.Hex(), Name: name, UserID: d.UserID, CreatedAt: d.ID.Timestamp()}
}

func (d listDoc) model() models.List {
	t := models.ListType(d.Type)
	if t == "" {
		t = models.ListTypeRegular
	}
	return models.List{
		ID:        d.ID.Hex(),
		BoardID:   d.BoardID,
		Title:     d.Title,
		Type:      t,
		Position:  positionFromRaw(d.Position),
		Progress:  d.Progress,
		CreatedAt: d.ID.Timestamp(),
	}
}

func (d cardDoc) model() models.Card {
	t, err := models.ParseCardType(d.Type)
	if err != nil {
		t = models.CardTypePlain
	}
	progress := 0
	if d.Progress != nil {
		progress = *d.Progress
	}
	return models.Card{
		ID:        d.ID.Hex(),
		ListID:    d.ListID,
		Title:     d.Title,
		Position:  positionFromRaw(d.Position),
		Kind:      models.NewCardKind(t, d.GithubURL, progress, d.SubBoardID),
		CreatedAt: d.ID.Timestamp(),
	}
}

// positionFromRaw accepts integral numbers only. Anything else (missing,
// null, fractional, strings) is reported as no position so the sequencer
// heals it.
func positionFromRaw(v bson.RawValue) *int {
	switch v.Type {
	case bsontype.Int32:
		return models.IntPtr(int(v.Int32()))
	case bsontype.Int64:
		return models.IntPtr(int(v.Int64()))
	case bsontype.Double:
		f := v.Double()
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return models.IntPtr(int(f))
		}
	}
	return nil
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, models.ErrNotFound
	}
	return oid, nil
}

func translateMongo(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return models.ErrConflict
	}
	return err
}

var siblingSort = options.Find().SetSort(bson.D{{Key: "position", Value: 1}, {Key: "_id", Value: 1}})

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, translateMongo(err)
	}
	var docs []T
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translateMongo(err)
	}
	return docs, nil
}

func (s *MongoStore) findByID(ctx context.Context, coll *mongo.Collection, id string, out any) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	return translateMongo(coll.FindOne(ctx, bson.M{"_id": oid}).Decode(out))
}

func (s *MongoStore) setByID(ctx context.Context, coll *mongo.Collection, id string, fields bson.M) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": fields})
	if err != nil {
		return translateMongo(err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *MongoStore) deleteByID(ctx context.Context, coll *mongo.Collection, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return translateMongo(err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Users

func (s *MongoStore) CreateUser(ctx context.Context, u *models.User) error {
	oid := primitive.NewObjectID()
	_, err := s.users.InsertOne(ctx, bson.M{"_id": oid, "username": u.Username, "password": u.PasswordHash})
	if err != nil {
		return translateMongo(err)
	}
	u.ID, u.CreatedAt = oid.Hex(), oid.Timestamp()
	return nil
}

func (s *MongoStore) UserByName(ctx context.Context, username string) (*models.User, error) {
	var d userDoc
	if err := s.users.FindOne(ctx, bson.M{"username": username}).Decode(&d); err != nil {
		return nil, translateMongo(err)
	}
	u := d.model()
	return &u, nil
}

func (s *MongoStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	var d userDoc
	if err := s.findByID(ctx, s.users, id, &d); err != nil {
		return nil, err
	}
	u := d.model()
	return &u, nil
}

// Boards

func (s *MongoStore) CreateBoard(ctx context.Context, b *models.Board) error {
	oid := primitive.NewObjectID()
	if _, err := s.boards.InsertOne(ctx, bson.M{"_id": oid, "name": b.Name, "user_id": b.UserID}); err != nil {
		return translateMongo(err)
	}
	b.ID, b.CreatedAt = oid.Hex(), oid.Timestamp()
	return nil
}

func (s *MongoStore) GetBoard(ctx context.Context, id string) (*models.Board, error) {
	var d boardDoc
	if err := s.findByID(ctx, s.boards, id, &d); err != nil {
		return nil, err
	}
	b := d.model()
	return &b, nil
}

func (s *MongoStore) BoardsByUser(ctx context.Context, userID string) ([]models.Board, error) {
	docs, err := findAll[boardDoc](ctx, s.boards, bson.M{"user_id": userID}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := make([]models.Board, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

// Lists

func (s *MongoStore) CreateList(ctx context.Context, l *models.List) error {
	oid := primitive.NewObjectID()
	doc := bson.M{"_id": oid, "board_id": l.BoardID, "title": l.Title, "type": string(l.Type)}
	if l.Position != nil {
		doc["position"] = *l.Position
	}
	if l.Progress != nil {
		doc["progress"] = *l.Progress
	}
	if _, err := s.lists.InsertOne(ctx, doc); err != nil {
		return translateMongo(err)
	}
	l.ID, l.CreatedAt = oid.Hex(), oid.Timestamp()
	if l.Type == "" {
		l.Type = models.ListTypeRegular
	}
	return nil
}

func (s *MongoStore) GetList(ctx context.Context, id string) (*models.List, error) {
	var d listDoc
	if err := s.findByID(ctx, s.lists, id, &d); err != nil {
		return nil, err
	}
	l := d.model()
	return &l, nil
}

func (s *MongoStore) ListsByBoard(ctx context.Context, boardID string) ([]models.List, error) {
	docs, err := findAll[listDoc](ctx, s.lists, bson.M{"board_id": boardID}, siblingSort)
	if err != nil {
		return nil, err
	}
	out := make([]models.List, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

func (s *MongoStore) RenameList(ctx context.Context, id, title string) error {
	return s.setByID(ctx, s.lists, id, bson.M{"title": title})
}

func (s *MongoStore) SetListPosition(ctx context.Context, id string, position int) error {
	return s.setByID(ctx, s.lists, id, bson.M{"position": position})
}

func (s *MongoStore) DeleteList(ctx context.Context, id string) error {
	return s.deleteByID(ctx, s.lists, id)
}

// Cards

func (s *MongoStore) CreateCard(ctx context.Context, c *models.Card) error {
	oid := primitive.NewObjectID()
	doc := bson.M{"_id": oid, "list_id": c.ListID, "title": c.Title, "type": string(c.Type())}
	if c.Position != nil {
		doc["position"] = *c.Position
	}
	switch k := c.Kind.(type) {
	case models.RepoCard:
		doc["githubUrl"] = k.URL
	case models.ProjectCard:
		doc["githubUrl"] = k.URL
		doc["progress"] = k.Progress
		doc["sub_board_id"] = k.SubBoardID
	}
	if _, err := s.cards.InsertOne(ctx, doc); err != nil {
		return translateMongo(err)
	}
	c.ID, c.CreatedAt = oid.Hex(), oid.Timestamp()
	if c.Kind == nil {
		c.Kind = models.PlainCard{}
	}
	return nil
}

func (s *MongoStore) GetCard(ctx context.Context, id string) (*models.Card, error) {
	var d cardDoc
	if err := s.findByID(ctx, s.cards, id, &d); err != nil {
		return nil, err
	}
	c := d.model()
	return &c, nil
}

func (s *MongoStore) CardsByList(ctx context.Context, listID string) ([]models.Card, error) {
	return s.CardsByLists(ctx, []string{listID})
}

func (s *MongoStore) CardsByLists(ctx context.Context, listIDs []string) ([]models.Card, error) {
	if len(listIDs) == 0 {
		return []models.Card{}, nil
	}
	docs, err := findAll[cardDoc](ctx, s.cards, bson.M{"list_id": bson.M{"$in": listIDs}}, siblingSort)
	if err != nil {
		return nil, err
	}
	out := make([]models.Card, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

func (s *MongoStore) CardBySubBoard(ctx context.Context, boardID string) (*models.Card, error) {
	var d cardDoc
	err := s.cards.FindOne(ctx, bson.M{"sub_board_id": boardID}, options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}})).Decode(&d)
	if err != nil {
		return nil, translateMongo(err)
	}
	c := d.model()
	return &c, nil
}

func (s *MongoStore) UpdateCard(ctx context.Context, id string, u models.CardUpdate) error {
	fields := bson.M{}
	if u.Title != nil {
		fields["title"] = *u.Title
	}
	if u.URL != nil {
		fields["githubUrl"] = *u.URL
	}
	if u.Progress != nil {
		fields["progress"] = *u.Progress
	}
	if len(fields) == 0 {
		return nil
	}
	return s.setByID(ctx, s.cards, id, fields)
}

func (s *MongoStore) PlaceCard(ctx context.Context, id, listID string, position int) error {
	return s.setByID(ctx, s.cards, id, bson.M{"list_id": listID, "position": position})
}

func (s *MongoStore) SetProjectProgress(ctx context.Context, subBoardID string, progress int) (bool, error) {
	res, err := s.cards.UpdateOne(ctx, bson.M{"sub_board_id": subBoardID}, bson.M{"$set": bson.M{"progress": progress}})
	if err != nil {
		return false, translateMongo(err)
	}
	return res.MatchedCount > 0, nil
}

func (s *MongoStore) DeleteCard(ctx context.Context, id string) error {
	return s.deleteByID(ctx, s.cards, id)
}

func (s *MongoStore) DeleteCardsByList(ctx context.Context, listID string) error {
	_, err := s.cards.DeleteMany(ctx, bson.M{"list_id": listID})
	return translateMongo(err)
}
