// Package mongodb implements the repository interfaces on MongoDB. Stage
// lists compile to aggregation pipelines; relation toggles run in session
// transactions, which require a replica set.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vidshare/internal/domain"
	apperrors "vidshare/internal/errors"
	"vidshare/internal/metrics"
	"vidshare/internal/pipeline"
	"vidshare/internal/repository"
)

// Store is the MongoDB backend.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ repository.Backend = (*Store)(nil)

func NewStore(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// Connect opens a client and verifies it with a ping.
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the unique relation index and the lookup indexes
// used by joins.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[domain.Collection][]mongo.IndexModel{
		domain.CollectionRelations: {
			{
				Keys: bson.D{
					{Key: domain.FieldSubjectID, Value: 1},
					{Key: domain.FieldTargetKind, Value: 1},
					{Key: domain.FieldTargetID, Value: 1},
				},
				Options: options.Index().SetUnique(true).SetName("relations_subject_target_key"),
			},
			{Keys: bson.D{{Key: domain.FieldTargetKind, Value: 1}, {Key: domain.FieldTargetID, Value: 1}}},
		},
		domain.CollectionVideos:    {{Keys: bson.D{{Key: domain.FieldOwnerID, Value: 1}, {Key: domain.FieldCreatedAt, Value: -1}}}},
		domain.CollectionComments:  {{Keys: bson.D{{Key: domain.FieldVideoID, Value: 1}, {Key: domain.FieldCreatedAt, Value: -1}}}},
		domain.CollectionTweets:    {{Keys: bson.D{{Key: domain.FieldOwnerID, Value: 1}}}},
		domain.CollectionPlaylists: {{Keys: bson.D{{Key: domain.FieldOwnerID, Value: 1}}}},
	}
	for coll, models := range indexes {
		if _, err := s.db.Collection(string(coll)).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

func (s *Store) collection(coll domain.Collection) (*mongo.Collection, error) {
	if !coll.Valid() {
		return nil, apperrors.Storef(nil, "unknown collection %q", coll)
	}
	return s.db.Collection(string(coll)), nil
}

func (s *Store) Aggregate(ctx context.Context, coll domain.Collection, stages []pipeline.Stage) ([]domain.Document, error) {
	c, err := s.collection(coll)
	if err != nil {
		return nil, err
	}
	pl, err := compile(stages)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	cur, err := c.Aggregate(ctx, pl)
	if err != nil {
		metrics.ObserveQuery("aggregate", start, err)
		return nil, mapError(err, "aggregate "+string(coll))
	}
	var raw []bson.M
	err = cur.All(ctx, &raw)
	metrics.ObserveQuery("aggregate", start, err)
	if err != nil {
		return nil, mapError(err, "aggregate "+string(coll))
	}

	docs := make([]domain.Document, 0, len(raw))
	for _, m := range raw {
		docs = append(docs, toDocument(m))
	}
	return docs, nil
}

func (s *Store) FindByID(ctx context.Context, coll domain.Collection, id string) (domain.Document, error) {
	c, err := s.collection(coll)
	if err != nil {
		return nil, err
	}
	var m bson.M
	err = c.FindOne(ctx, bson.D{{Key: idKey, Value: id}}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "find "+string(coll))
	}
	return toDocument(m), nil
}

func (s *Store) Exists(ctx context.Context, coll domain.Collection, id string) (bool, error) {
	c, err := s.collection(coll)
	if err != nil {
		return false, err
	}
	n, err := c.CountDocuments(ctx, bson.D{{Key: idKey, Value: id}}, options.Count().SetLimit(1))
	if err != nil {
		return false, mapError(err, "exists "+string(coll))
	}
	return n > 0, nil
}

func (s *Store) InsertOne(ctx context.Context, coll domain.Collection, doc domain.Document) error {
	c, err := s.collection(coll)
	if err != nil {
		return err
	}
	start := time.Now()
	_, err = c.InsertOne(ctx, fromDocument(doc))
	metrics.ObserveQuery("insert", start, err)
	return mapError(err, "insert "+string(coll))
}

func (s *Store) DeleteByID(ctx context.Context, coll domain.Collection, id string) (bool, error) {
	c, err := s.collection(coll)
	if err != nil {
		return false, err
	}
	start := time.Now()
	res, err := c.DeleteOne(ctx, bson.D{{Key: idKey, Value: id}})
	metrics.ObserveQuery("delete", start, err)
	if err != nil {
		return false, mapError(err, "delete "+string(coll))
	}
	return res.DeletedCount > 0, nil
}

func (s *Store) UpdateByID(ctx context.Context, coll domain.Collection, id string, patch domain.Patch) (domain.Document, error) {
	c, err := s.collection(coll)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, apperrors.Storef(nil, "empty patch for %s", coll)
	}

	start := time.Now()
	var m bson.M
	err = c.FindOneAndUpdate(ctx, bson.D{{Key: idKey, Value: id}}, patchDoc(patch),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	metrics.ObserveQuery("update", start, err)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFoundf("%s %s not found", coll, id)
	}
	if err != nil {
		return nil, mapError(err, "update "+string(coll))
	}
	return toDocument(m), nil
}

// ==================== RELATIONS ====================

func relationFilter(key domain.RelationKey) bson.D {
	return bson.D{
		{Key: domain.FieldSubjectID, Value: key.SubjectID},
		{Key: domain.FieldTargetKind, Value: string(key.Kind)},
		{Key: domain.FieldTargetID, Value: key.TargetID},
	}
}

func (s *Store) FindRelation(ctx context.Context, key domain.RelationKey) (*domain.Relation, error) {
	var m bson.M
	err := s.db.Collection(string(domain.CollectionRelations)).FindOne(ctx, relationFilter(key)).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "find relation")
	}
	doc := toDocument(m)
	rel := &domain.Relation{
		ID:        doc.String(domain.FieldID),
		SubjectID: doc.String(domain.FieldSubjectID),
		Kind:      domain.TargetKind(doc.String(domain.FieldTargetKind)),
		TargetID:  doc.String(domain.FieldTargetID),
	}
	if ts, ok := doc[domain.FieldCreatedAt].(time.Time); ok {
		rel.CreatedAt = ts
	}
	return rel, nil
}

// InsertRelation relies on the unique index from EnsureIndexes.
func (s *Store) InsertRelation(ctx context.Context, rel *domain.Relation) error {
	return s.InsertOne(ctx, domain.CollectionRelations, rel.Document())
}

func (s *Store) DeleteRelation(ctx context.Context, key domain.RelationKey) (bool, error) {
	res, err := s.db.Collection(string(domain.CollectionRelations)).DeleteOne(ctx, relationFilter(key))
	if err != nil {
		return false, mapError(err, "delete relation")
	}
	return res.DeletedCount > 0, nil
}

func (s *Store) AdjustCounter(ctx context.Context, coll domain.Collection, id, field string, delta int64) error {
	return s.writeCounter(ctx, coll, id, bson.D{{Key: "$inc", Value: bson.D{{Key: field, Value: delta}}}})
}

func (s *Store) SetCounter(ctx context.Context, coll domain.Collection, id, field string, value int64) error {
	return s.writeCounter(ctx, coll, id, bson.D{{Key: "$set", Value: bson.D{{Key: field, Value: value}}}})
}

func (s *Store) writeCounter(ctx context.Context, coll domain.Collection, id string, update bson.D) error {
	c, err := s.collection(coll)
	if err != nil {
		return err
	}
	start := time.Now()
	res, err := c.UpdateOne(ctx, bson.D{{Key: idKey, Value: id}}, update)
	metrics.ObserveQuery("counter", start, err)
	if err != nil {
		return mapError(err, "update counter")
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFoundf("%s %s not found", coll, id)
	}
	return nil
}

// WithinRelationTx runs fn inside a session transaction. Concurrent
// transactions on the same key conflict on the unique index or on the
// counter document, and the loser is aborted.
func (s *Store) WithinRelationTx(ctx context.Context, key domain.RelationKey, fn func(tx repository.RelationStore) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return apperrors.Store(err, "start session")
	}
	defer sess.EndSession(context.Background())

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(&sessionStore{store: s, sc: sc})
	})
	if err != nil {
		return mapError(err, "relation transaction")
	}
	return nil
}

// sessionStore routes every call through the session context, whatever
// context the caller passes.
type sessionStore struct {
	store *Store
	sc    mongo.SessionContext
}

func (t *sessionStore) FindRelation(_ context.Context, key domain.RelationKey) (*domain.Relation, error) {
	return t.store.FindRelation(t.sc, key)
}

func (t *sessionStore) InsertRelation(_ context.Context, rel *domain.Relation) error {
	return t.store.InsertRelation(t.sc, rel)
}

func (t *sessionStore) DeleteRelation(_ context.Context, key domain.RelationKey) (bool, error) {
	return t.store.DeleteRelation(t.sc, key)
}

func (t *sessionStore) AdjustCounter(_ context.Context, coll domain.Collection, id, field string, delta int64) error {
	return t.store.AdjustCounter(t.sc, coll, id, field, delta)
}

func (t *sessionStore) SetCounter(_ context.Context, coll domain.Collection, id, field string, value int64) error {
	return t.store.SetCounter(t.sc, coll, id, field, value)
}

func (t *sessionStore) Aggregate(_ context.Context, coll domain.Collection, stages []pipeline.Stage) ([]domain.Document, error) {
	return t.store.Aggregate(t.sc, coll, stages)
}

func (t *sessionStore) WithinRelationTx(_ context.Context, _ domain.RelationKey, fn func(tx repository.RelationStore) error) error {
	return fn(t)
}

// ==================== CONVERSION ====================

func mapError(err error, operation string) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if mongo.IsDuplicateKeyError(err) {
		return apperrors.Wrap(err, apperrors.CodeAlreadyExists, operation+": duplicate key")
	}
	return apperrors.Storef(err, "%s failed", operation)
}

func fromDocument(doc domain.Document) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[field(k)] = v
	}
	return out
}

// toDocument converts decoded BSON into plain Go values and renames _id.
func toDocument(m bson.M) domain.Document {
	out := make(domain.Document, len(m))
	for k, v := range m {
		if k == idKey {
			k = domain.FieldID
		}
		out[k] = toValue(v)
	}
	return out
}

func toValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		return toDocument(t)
	case bson.D:
		return toDocument(t.Map())
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = toValue(e)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case int32:
		return int64(t)
	}
	return v
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
