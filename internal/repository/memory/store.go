// Package memory is an in-process implementation of the repository
// interfaces. It evaluates pipeline stages directly over Go values and backs
// the test suites and the "memory" store driver.
package memory

import (
	"context"
	"sync"

	"vidshare/internal/domain"
	apperrors "vidshare/internal/errors"
	"vidshare/internal/pipeline"
	"vidshare/internal/repository"
)

// Store keeps every collection in maps guarded by one RWMutex. Relation
// transactions are serialized by txMu, which makes toggles linearizable.
type Store struct {
	mu        sync.RWMutex
	txMu      sync.Mutex
	colls     map[domain.Collection]map[string]domain.Document
	relations map[domain.RelationKey]string
}

var (
	_ repository.Store         = (*Store)(nil)
	_ repository.RelationStore = (*Store)(nil)
)

func New() *Store {
	return &Store{
		colls:     make(map[domain.Collection]map[string]domain.Document),
		relations: make(map[domain.RelationKey]string),
	}
}

func (s *Store) Aggregate(ctx context.Context, coll domain.Collection, stages []pipeline.Stage) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Store(err, "aggregate cancelled")
	}
	if !coll.Valid() {
		return nil, apperrors.Storef(nil, "unknown collection %q", coll)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.Document, 0, len(s.colls[coll]))
	for _, doc := range s.colls[coll] {
		rows = append(rows, cloneDoc(doc))
	}
	return evaluate(rows, stages, s.collection)
}

// collection returns the live documents of coll. Callers hold mu.
func (s *Store) collection(coll domain.Collection) map[string]domain.Document {
	return s.colls[coll]
}

func (s *Store) FindByID(ctx context.Context, coll domain.Collection, id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.colls[coll][id]
	if !ok {
		return nil, nil
	}
	return cloneDoc(doc), nil
}

func (s *Store) Exists(ctx context.Context, coll domain.Collection, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.colls[coll][id]
	return ok, nil
}

func (s *Store) InsertOne(ctx context.Context, coll domain.Collection, doc domain.Document) error {
	id := doc.String(domain.FieldID)
	if id == "" {
		return apperrors.Storef(nil, "insert into %s without id", coll)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(coll, id, doc)
}

func (s *Store) insertLocked(coll domain.Collection, id string, doc domain.Document) error {
	docs := s.colls[coll]
	if docs == nil {
		docs = make(map[string]domain.Document)
		s.colls[coll] = docs
	}
	if _, dup := docs[id]; dup {
		return apperrors.AlreadyExists("document already exists")
	}
	if coll == domain.CollectionRelations {
		key := relationKey(doc)
		if _, dup := s.relations[key]; dup {
			return apperrors.AlreadyExists("relation already exists")
		}
		s.relations[key] = id
	}
	docs[id] = cloneDoc(doc)
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, coll domain.Collection, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.colls[coll][id]
	if !ok {
		return false, nil
	}
	if coll == domain.CollectionRelations {
		delete(s.relations, relationKey(doc))
	}
	delete(s.colls[coll], id)
	return true, nil
}

func (s *Store) UpdateByID(ctx context.Context, coll domain.Collection, id string, patch domain.Patch) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.colls[coll][id]
	if !ok {
		return nil, apperrors.NotFoundf("%s %s not found", coll, id)
	}
	applyPatch(doc, patch)
	return cloneDoc(doc), nil
}

// ==================== RELATIONS ====================

func (s *Store) FindRelation(ctx context.Context, key domain.RelationKey) (*domain.Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.relations[key]
	if !ok {
		return nil, nil
	}
	return relationFromDoc(s.colls[domain.CollectionRelations][id]), nil
}

func (s *Store) InsertRelation(ctx context.Context, rel *domain.Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(domain.CollectionRelations, rel.ID, rel.Document())
}

func (s *Store) DeleteRelation(ctx context.Context, key domain.RelationKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.relations[key]
	if !ok {
		return false, nil
	}
	delete(s.relations, key)
	delete(s.colls[domain.CollectionRelations], id)
	return true, nil
}

func (s *Store) AdjustCounter(ctx context.Context, coll domain.Collection, id, field string, delta int64) error {
	_, err := s.UpdateByID(ctx, coll, id, domain.Patch{Inc: map[string]int64{field: delta}})
	return err
}

func (s *Store) SetCounter(ctx context.Context, coll domain.Collection, id, field string, value int64) error {
	_, err := s.UpdateByID(ctx, coll, id, domain.Patch{Set: map[string]any{field: value}})
	return err
}

// WithinRelationTx serializes fn against every other relation transaction
// and undoes its writes if it fails.
func (s *Store) WithinRelationTx(ctx context.Context, key domain.RelationKey, fn func(tx repository.RelationStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return apperrors.Store(err, "relation transaction cancelled")
	}

	tx := &relationTx{store: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// relationTx records an undo step for every write it performs.
type relationTx struct {
	store *Store
	undo  []func()
}

func (t *relationTx) FindRelation(ctx context.Context, key domain.RelationKey) (*domain.Relation, error) {
	return t.store.FindRelation(ctx, key)
}

func (t *relationTx) InsertRelation(ctx context.Context, rel *domain.Relation) error {
	if err := t.store.InsertRelation(ctx, rel); err != nil {
		return err
	}
	key := rel.Key()
	t.undo = append(t.undo, func() { _, _ = t.store.DeleteRelation(context.Background(), key) })
	return nil
}

func (t *relationTx) DeleteRelation(ctx context.Context, key domain.RelationKey) (bool, error) {
	prev, err := t.store.FindRelation(ctx, key)
	if err != nil || prev == nil {
		return false, err
	}
	removed, err := t.store.DeleteRelation(ctx, key)
	if removed {
		t.undo = append(t.undo, func() { _ = t.store.InsertRelation(context.Background(), prev) })
	}
	return removed, err
}

func (t *relationTx) AdjustCounter(ctx context.Context, coll domain.Collection, id, field string, delta int64) error {
	if err := t.store.AdjustCounter(ctx, coll, id, field, delta); err != nil {
		return err
	}
	t.undo = append(t.undo, func() { _ = t.store.AdjustCounter(context.Background(), coll, id, field, -delta) })
	return nil
}

func (t *relationTx) SetCounter(ctx context.Context, coll domain.Collection, id, field string, value int64) error {
	doc, err := t.store.FindByID(ctx, coll, id)
	if err != nil {
		return err
	}
	if err := t.store.SetCounter(ctx, coll, id, field, value); err != nil {
		return err
	}
	prev := doc.Int64(field)
	t.undo = append(t.undo, func() { _ = t.store.SetCounter(context.Background(), coll, id, field, prev) })
	return nil
}

func (t *relationTx) Aggregate(ctx context.Context, coll domain.Collection, stages []pipeline.Stage) ([]domain.Document, error) {
	return t.store.Aggregate(ctx, coll, stages)
}

func (t *relationTx) WithinRelationTx(ctx context.Context, key domain.RelationKey, fn func(tx repository.RelationStore) error) error {
	return fn(t)
}

func (t *relationTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// ==================== HELPERS ====================

func relationKey(doc domain.Document) domain.RelationKey {
	return domain.RelationKey{
		SubjectID: doc.String(domain.FieldSubjectID),
		Kind:      domain.TargetKind(doc.String(domain.FieldTargetKind)),
		TargetID:  doc.String(domain.FieldTargetID),
	}
}

func relationFromDoc(doc domain.Document) *domain.Relation {
	rel := &domain.Relation{
		ID:        doc.String(domain.FieldID),
		SubjectID: doc.String(domain.FieldSubjectID),
		Kind:      domain.TargetKind(doc.String(domain.FieldTargetKind)),
		TargetID:  doc.String(domain.FieldTargetID),
	}
	if ts, ok := timeOf(doc[domain.FieldCreatedAt]); ok {
		rel.CreatedAt = ts
	}
	return rel
}

func applyPatch(doc domain.Document, patch domain.Patch) {
	for k, v := range patch.Set {
		doc[k] = cloneValue(v)
	}
	for k, d := range patch.Inc {
		n, _ := domain.ToInt64(doc[k])
		doc[k] = n + d
	}
	for k, v := range patch.AddToSet {
		set := stringSlice(doc[k])
		found := false
		for _, e := range set {
			if e == v {
				found = true
				break
			}
		}
		if !found {
			set = append(set, v)
		}
		doc[k] = set
	}
	for k, v := range patch.Pull {
		set := stringSlice(doc[k])
		out := make([]string, 0, len(set))
		for _, e := range set {
			if e != v {
				out = append(out, e)
			}
		}
		doc[k] = out
	}
}

func stringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return append([]string(nil), s...)
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return []string{}
}

func cloneDoc(doc domain.Document) domain.Document {
	if doc == nil {
		return nil
	}
	out := make(domain.Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case domain.Document:
		return cloneDoc(t)
	case map[string]any:
		return map[string]any(cloneDoc(t))
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}
