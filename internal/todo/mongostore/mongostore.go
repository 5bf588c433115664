// Package mongostore persists todos in a MongoDB collection. Expiry is delegated
// to a TTL index on expireAt, so the server removes records on its own schedule.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jaxxstorm/atlastodo/internal/todo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"go.uber.org/zap"
)

const (
	DefaultDatabase   = "test"
	DefaultCollection = "todos"
)

type Config struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
	Logger     *zap.Logger
}

type document struct {
	ID        primitive.ObjectID `bson:"_id"`
	Title     string             `bson:"title"`
	Completed bool               `bson:"completed"`
	ExpireAt  *time.Time         `bson:"expireAt"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type Store struct {
	coll   *mongo.Collection
	logger *zap.Logger
	now    func() time.Time
}

// Connect dials the cluster, verifies it with a ping and makes sure the indexes exist.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongodb uri is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Database == "" {
		cfg.Database = DatabaseName(cfg.URI)
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetServerSelectionTimeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := New(client.Database(cfg.Database).Collection(cfg.Collection), cfg.Logger)
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func New(coll *mongo.Collection, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{coll: coll, logger: logger, now: time.Now}
}

// DatabaseName returns the database named in uri, or the driver default.
func DatabaseName(uri string) string {
	cs, err := connstring.Parse(uri)
	if err != nil || cs.Database == "" {
		return DefaultDatabase
	}
	return cs.Database
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expireAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{{Key: "createdAt", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("create todo indexes: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]todo.Todo, error) {
	cursor, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find todos: %w", err)
	}
	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode todos: %w", err)
	}
	out := make([]todo.Todo, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.todo())
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, in todo.CreateInput) (todo.Todo, error) {
	t, err := todo.NewTodo(in, s.now())
	if err != nil {
		return todo.Todo{}, err
	}
	doc, err := fromTodo(t)
	if err != nil {
		return todo.Todo{}, err
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return todo.Todo{}, fmt.Errorf("insert todo: %w", err)
	}
	s.logger.Debug("todo created", zap.String("id", t.ID))
	return t, nil
}

func (s *Store) Get(ctx context.Context, id string) (todo.Todo, error) {
	oid, err := todo.ParseID(id)
	if err != nil {
		return todo.Todo{}, err
	}
	return decodeOne(s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}))
}

func (s *Store) Update(ctx context.Context, id string, in todo.UpdateInput) (todo.Todo, error) {
	oid, err := todo.ParseID(id)
	if err != nil {
		return todo.Todo{}, err
	}
	if err := todo.ValidateUpdate(in); err != nil {
		return todo.Todo{}, err
	}

	set := updateDocument(in, s.now())
	if len(set) == 0 {
		return s.Get(ctx, id)
	}
	res := s.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	return decodeOne(res)
}

func (s *Store) Delete(ctx context.Context, id string) (todo.Todo, error) {
	oid, err := todo.ParseID(id)
	if err != nil {
		return todo.Todo{}, err
	}
	return decodeOne(s.coll.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: oid}}))
}

func (s *Store) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, readpref.Primary())
}

func (s *Store) Disconnect(ctx context.Context) error {
	return s.coll.Database().Client().Disconnect(ctx)
}

func updateDocument(in todo.UpdateInput, now time.Time) bson.D {
	set := bson.D{}
	if in.Title != nil {
		set = append(set, bson.E{Key: "title", Value: strings.TrimSpace(*in.Title)})
	}
	if in.Completed != nil {
		set = append(set, bson.E{Key: "completed", Value: *in.Completed})
	}
	if in.TTLSeconds != nil {
		set = append(set, bson.E{Key: "expireAt", Value: todo.ExpireAt(in.TTLSeconds, now)})
	}
	return set
}

func decodeOne(res *mongo.SingleResult) (todo.Todo, error) {
	var doc document
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return todo.Todo{}, todo.NewNotFoundError()
		}
		return todo.Todo{}, fmt.Errorf("decode todo: %w", err)
	}
	return doc.todo(), nil
}

func fromTodo(t todo.Todo) (document, error) {
	oid, err := todo.ParseID(t.ID)
	if err != nil {
		return document{}, err
	}
	return document{
		ID:        oid,
		Title:     t.Title,
		Completed: t.Completed,
		ExpireAt:  t.ExpireAt,
		CreatedAt: t.CreatedAt,
	}, nil
}

func (d document) todo() todo.Todo {
	t := todo.Todo{
		ID:        d.ID.Hex(),
		Title:     d.Title,
		Completed: d.Completed,
		CreatedAt: d.CreatedAt.UTC(),
	}
	if d.ExpireAt != nil {
		at := d.ExpireAt.UTC()
		t.ExpireAt = &at
	}
	return t
}
