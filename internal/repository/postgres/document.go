package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"vidshare/internal/domain"
	apperrors "vidshare/internal/errors"
	"vidshare/internal/metrics"
	"vidshare/internal/pipeline"
)

// Aggregate compiles stages and returns the resulting documents.
func (s *Store) Aggregate(ctx context.Context, coll domain.Collection, stages []pipeline.Stage) ([]domain.Document, error) {
	query, args, err := compile(coll, stages)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		metrics.ObserveQuery("aggregate", start, err)
		return nil, mapError(err, "aggregate "+string(coll))
	}
	docs, err := collectDocuments(rows)
	metrics.ObserveQuery("aggregate", start, err)
	if err != nil {
		return nil, mapError(err, "aggregate "+string(coll))
	}
	return docs, nil
}

// FindByID returns the row with id as a document, or (nil, nil).
func (s *Store) FindByID(ctx context.Context, coll domain.Collection, id string) (domain.Document, error) {
	if !coll.Valid() {
		return nil, apperrors.Storef(nil, "unknown collection %q", coll)
	}
	query := fmt.Sprintf(`SELECT to_jsonb(t) FROM %s t WHERE t.id = $1`, coll)

	var doc map[string]any
	err := s.db.QueryRow(ctx, query, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "find "+string(coll))
	}
	return domain.Document(doc), nil
}

func (s *Store) Exists(ctx context.Context, coll domain.Collection, id string) (bool, error) {
	if !coll.Valid() {
		return false, apperrors.Storef(nil, "unknown collection %q", coll)
	}
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)`, coll)

	var exists bool
	if err := s.db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, mapError(err, "exists "+string(coll))
	}
	return exists, nil
}

// InsertOne maps the document onto the table's columns with
// jsonb_populate_record; keys without a column are ignored.
func (s *Store) InsertOne(ctx context.Context, coll domain.Collection, doc domain.Document) error {
	if !coll.Valid() {
		return apperrors.Storef(nil, "unknown collection %q", coll)
	}
	query := fmt.Sprintf(`INSERT INTO %[1]s SELECT * FROM jsonb_populate_record(NULL::%[1]s, $1::jsonb)`, coll)

	start := time.Now()
	_, err := s.db.Exec(ctx, query, map[string]any(doc))
	metrics.ObserveQuery("insert", start, err)
	return mapError(err, "insert "+string(coll))
}

func (s *Store) DeleteByID(ctx context.Context, coll domain.Collection, id string) (bool, error) {
	if !coll.Valid() {
		return false, apperrors.Storef(nil, "unknown collection %q", coll)
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, coll)

	start := time.Now()
	tag, err := s.db.Exec(ctx, query, id)
	metrics.ObserveQuery("delete", start, err)
	if err != nil {
		return false, mapError(err, "delete "+string(coll))
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateByID applies patch in a single UPDATE and returns the new row.
func (s *Store) UpdateByID(ctx context.Context, coll domain.Collection, id string, patch domain.Patch) (domain.Document, error) {
	query, args, err := buildUpdate(coll, id, patch)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var doc map[string]any
	err = s.db.QueryRow(ctx, query, args...).Scan(&doc)
	metrics.ObserveQuery("update", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFoundf("%s %s not found", coll, id)
	}
	if err != nil {
		return nil, mapError(err, "update "+string(coll))
	}
	return domain.Document(doc), nil
}

func buildUpdate(coll domain.Collection, id string, patch domain.Patch) (string, []any, error) {
	if !coll.Valid() {
		return "", nil, apperrors.Storef(nil, "unknown collection %q", coll)
	}
	if patch.Empty() {
		return "", nil, apperrors.Storef(nil, "empty patch for %s", coll)
	}

	b := psql.Update(string(coll))
	for _, col := range sortedKeys(patch.Set) {
		if err := checkIdent(col); err != nil {
			return "", nil, err
		}
		b = b.Set(col, patch.Set[col])
	}
	for _, col := range sortedKeys(patch.Inc) {
		if err := checkIdent(col); err != nil {
			return "", nil, err
		}
		b = b.Set(col, sq.Expr(col+" + ?", patch.Inc[col]))
	}
	for _, col := range sortedKeys(patch.AddToSet) {
		if err := checkIdent(col); err != nil {
			return "", nil, err
		}
		b = b.Set(col, sq.Expr(
			fmt.Sprintf("CASE WHEN %[1]s @> jsonb_build_array(?::text) THEN %[1]s ELSE %[1]s || jsonb_build_array(?::text) END", col),
			patch.AddToSet[col], patch.AddToSet[col],
		))
	}
	for _, col := range sortedKeys(patch.Pull) {
		if err := checkIdent(col); err != nil {
			return "", nil, err
		}
		b = b.Set(col, sq.Expr(col+" - ?::text", patch.Pull[col]))
	}

	return b.Where(sq.Eq{"id": id}).
		Suffix(fmt.Sprintf("RETURNING to_jsonb(%s)", coll)).
		ToSql()
}

func collectDocuments(rows pgx.Rows) ([]domain.Document, error) {
	defer rows.Close()

	docs := []domain.Document{}
	for rows.Next() {
		var doc map[string]any
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, domain.Document(doc))
	}
	return docs, rows.Err()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
