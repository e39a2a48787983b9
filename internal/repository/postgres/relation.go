package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"vidshare/internal/domain"
	apperrors "vidshare/internal/errors"
	"vidshare/internal/metrics"
	"vidshare/internal/repository"
)

const (
	findRelationSQL = `SELECT id, subject_id, target_kind, target_id, created_at
		FROM relations
		WHERE subject_id = $1 AND target_kind = $2 AND target_id = $3`

	insertRelationSQL = `INSERT INTO relations (id, subject_id, target_kind, target_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	deleteRelationSQL = `DELETE FROM relations
		WHERE subject_id = $1 AND target_kind = $2 AND target_id = $3`

	// advisoryLockSQL serializes transactions on the same relation key until
	// commit or rollback.
	advisoryLockSQL = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`
)

func (s *Store) FindRelation(ctx context.Context, key domain.RelationKey) (*domain.Relation, error) {
	rel := &domain.Relation{}
	var kind string
	err := s.db.QueryRow(ctx, findRelationSQL, key.SubjectID, string(key.Kind), key.TargetID).
		Scan(&rel.ID, &rel.SubjectID, &kind, &rel.TargetID, &rel.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "find relation")
	}
	rel.Kind = domain.TargetKind(kind)
	return rel, nil
}

// InsertRelation fails with CodeAlreadyExists when the unique index on
// (subject_id, target_kind, target_id) rejects the row.
func (s *Store) InsertRelation(ctx context.Context, rel *domain.Relation) error {
	start := time.Now()
	_, err := s.db.Exec(ctx, insertRelationSQL, rel.ID, rel.SubjectID, string(rel.Kind), rel.TargetID, rel.CreatedAt)
	metrics.ObserveQuery("insert_relation", start, err)
	return mapError(err, "insert relation")
}

func (s *Store) DeleteRelation(ctx context.Context, key domain.RelationKey) (bool, error) {
	start := time.Now()
	tag, err := s.db.Exec(ctx, deleteRelationSQL, key.SubjectID, string(key.Kind), key.TargetID)
	metrics.ObserveQuery("delete_relation", start, err)
	if err != nil {
		return false, mapError(err, "delete relation")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) AdjustCounter(ctx context.Context, coll domain.Collection, id, field string, delta int64) error {
	return s.writeCounter(ctx, coll, id, field, "%[1]s = %[1]s + $1", delta)
}

func (s *Store) SetCounter(ctx context.Context, coll domain.Collection, id, field string, value int64) error {
	return s.writeCounter(ctx, coll, id, field, "%[1]s = $1", value)
}

func (s *Store) writeCounter(ctx context.Context, coll domain.Collection, id, field, assign string, n int64) error {
	if !coll.Valid() {
		return apperrors.Storef(nil, "unknown collection %q", coll)
	}
	if err := checkIdent(field); err != nil {
		return err
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $2", coll, fmt.Sprintf(assign, field))

	start := time.Now()
	tag, err := s.db.Exec(ctx, query, n, id)
	metrics.ObserveQuery("counter", start, err)
	if err != nil {
		return mapError(err, "update counter")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFoundf("%s %s not found", coll, id)
	}
	return nil
}

// WithinRelationTx runs fn in a transaction holding the advisory lock of key.
// Nested calls reuse the open transaction.
func (s *Store) WithinRelationTx(ctx context.Context, key domain.RelationKey, fn func(tx repository.RelationStore) error) error {
	if s.pool == nil {
		return fn(s)
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, advisoryLockSQL, key.String()); err != nil {
			return mapError(err, "lock relation")
		}
		return fn(&Store{db: tx})
	})
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return err
		}
		return apperrors.Store(err, "relation transaction failed")
	}
	return nil
}
