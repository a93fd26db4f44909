package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/flowedit/types"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// MongoCollection is the collection holding workflow documents.
const MongoCollection = "workflows"

// MongoStore keeps one document per workflow, keyed by the workflow id.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *zap.Logger
	now    func() time.Time
}

// NewMongoStore connects to uri and uses the workflows collection of
// database. The store owns the client.
func NewMongoStore(ctx context.Context, uri, database string, logger *zap.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetServerSelectionTimeout(5 * time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := NewMongoStoreFromDatabase(client.Database(database), logger)
	s.client = client
	s.logger.Info("mongo store connected", zap.String("database", database))
	return s, nil
}

// NewMongoStoreFromDatabase uses an existing database handle. The store
// does not own its client.
func NewMongoStoreFromDatabase(db *mongo.Database, logger *zap.Logger) *MongoStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MongoStore{
		coll:   db.Collection(MongoCollection),
		logger: logger.With(zap.String("component", "store_mongo")),
		now:    time.Now,
	}
}

func (s *MongoStore) ListWorkflows(ctx context.Context) ([]types.WorkflowSummary, error) {
	opts := options.Find().
		SetProjection(bson.D{{Key: "name", Value: 1}, {Key: "updated_at", Value: 1}}).
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	var rows []struct {
		ID        string    `bson:"_id"`
		Name      string    `bson:"name"`
		UpdatedAt time.Time `bson:"updated_at"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	out := make([]types.WorkflowSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.WorkflowSummary{ID: r.ID, Name: r.Name, UpdatedAt: r.UpdatedAt.UTC()})
	}
	return out, nil
}

func (s *MongoStore) GetWorkflow(ctx context.Context, id string) (*types.Workflow, error) {
	var wf types.Workflow
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&wf)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrWorkflowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow %s: %w", id, err)
	}
	wf.Normalize()
	wf.UpdatedAt = wf.UpdatedAt.UTC()
	return &wf, nil
}

func (s *MongoStore) SaveWorkflow(ctx context.Context, wf *types.Workflow) (*types.Workflow, error) {
	cp, err := prepare(wf, s.now())
	if err != nil {
		return nil, err
	}
	_, err = s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: cp.ID}}, cp, options.Replace().SetUpsert(true))
	if err != nil {
		return nil, fmt.Errorf("save workflow %s: %w", cp.ID, err)
	}
	s.logger.Debug("workflow saved", zap.String("workflow_id", cp.ID))
	return cp, nil
}

func (s *MongoStore) DeleteWorkflow(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("delete workflow %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrWorkflowNotFound
	}
	return nil
}

// Close disconnects the client when the store owns it.
func (s *MongoStore) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks the primary is reachable. Only stores owning a client can ping.
func (s *MongoStore) Ping(ctx context.Context) error {
	if s.client == nil {
		return errors.New("mongo store has no client")
	}
	return s.client.Ping(ctx, nil)
}
