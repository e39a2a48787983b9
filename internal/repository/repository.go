package repository

import (
	"context"

	"vidshare/internal/domain"
	"vidshare/internal/pipeline"
)

// Store is the document store behind every read and write path. Postgres,
// MongoDB and the in-memory store implement it; each owns a compiler from
// pipeline stages to its native query language.
//
// Errors are *errors.Error values: CodeNotFound when the addressed document
// does not exist, CodeAlreadyExists on a unique violation, CodeStore for
// everything else.
type Store interface {
	// Aggregate runs stages against coll.
	Aggregate(ctx context.Context, coll domain.Collection, stages []pipeline.Stage) ([]domain.Document, error)

	// FindByID returns the raw document with id, or (nil, nil) if absent.
	FindByID(ctx context.Context, coll domain.Collection, id string) (domain.Document, error)

	// InsertOne stores doc, which must carry its id.
	InsertOne(ctx context.Context, coll domain.Collection, doc domain.Document) error

	// DeleteByID removes the document with id and reports whether it existed.
	DeleteByID(ctx context.Context, coll domain.Collection, id string) (bool, error)

	// UpdateByID applies patch atomically and returns the updated document.
	UpdateByID(ctx context.Context, coll domain.Collection, id string, patch domain.Patch) (domain.Document, error)

	// Exists reports whether a document with id exists in coll.
	Exists(ctx context.Context, coll domain.Collection, id string) (bool, error)
}

// RelationStore persists relation rows and the counters they drive.
type RelationStore interface {
	// FindRelation returns the relation with key, or (nil, nil) if absent.
	FindRelation(ctx context.Context, key domain.RelationKey) (*domain.Relation, error)

	// InsertRelation fails with CodeAlreadyExists if key is already present.
	InsertRelation(ctx context.Context, rel *domain.Relation) error

	// DeleteRelation reports whether a row was removed.
	DeleteRelation(ctx context.Context, key domain.RelationKey) (bool, error)

	// AdjustCounter adds delta to field of the document with id.
	AdjustCounter(ctx context.Context, coll domain.Collection, id, field string, delta int64) error

	// SetCounter overwrites field of the document with id.
	SetCounter(ctx context.Context, coll domain.Collection, id, field string, value int64) error

	// Aggregate runs stages against coll. Inside WithinRelationTx it reads
	// through the transaction.
	Aggregate(ctx context.Context, coll domain.Collection, stages []pipeline.Stage) ([]domain.Document, error)

	// WithinRelationTx runs fn with a RelationStore whose operations are
	// applied atomically and serialized against other calls for key. If fn
	// returns an error nothing it did persists.
	WithinRelationTx(ctx context.Context, key domain.RelationKey, fn func(tx RelationStore) error) error
}

// Backend is a complete store implementation.
type Backend interface {
	Store
	RelationStore
}
