package postgres

import (
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"vidshare/internal/domain"
	apperrors "vidshare/internal/errors"
	"vidshare/internal/pipeline"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// compile turns stages over coll into one SELECT returning a single jsonb
// column. The leading run of Filter stages becomes the WHERE clause of the
// base SELECT over the table's own columns, so the indexes apply. Every later
// stage wraps the previous one as subquery "s" carrying
// (doc, sort_key, sort_tie); the sort columns survive later projections so
// the final ORDER BY still sees them.
func compile(coll domain.Collection, stages []pipeline.Stage) (string, []any, error) {
	if !coll.Valid() {
		return "", nil, apperrors.Storef(nil, "unknown collection %q", coll)
	}

	q := psql.Select("to_jsonb(t) AS doc", "NULL::jsonb AS sort_key", "NULL::text AS sort_tie").
		From(string(coll) + " t")
	var order []string

	i := 0
	for ; i < len(stages); i++ {
		f, ok := stages[i].(pipeline.Filter)
		if !ok {
			break
		}
		cond, args, err := predicateSQL(columnsOf("t"), f.Predicate)
		if err != nil {
			return "", nil, err
		}
		q = q.Where(cond, args...)
	}

	for ; i < len(stages); i++ {
		switch st := stages[i].(type) {
		case pipeline.Filter:
			cond, args, err := predicateSQL(docText("s.doc"), st.Predicate)
			if err != nil {
				return "", nil, err
			}
			q = wrap(q).Where(cond, args...)

		case pipeline.Join:
			expr, args, err := joinSQL(st)
			if err != nil {
				return "", nil, err
			}
			q = replaceDoc(q, expr, args...)

		case pipeline.ComputedField:
			expr, err := computedSQL(st)
			if err != nil {
				return "", nil, err
			}
			q = replaceDoc(q, expr)

		case pipeline.Sort:
			if err := checkIdent(st.Field, domain.FieldID); err != nil {
				return "", nil, err
			}
			q = psql.Select("s.doc", fmt.Sprintf("s.doc->'%s' AS sort_key", st.Field), "s.doc->>'id' AS sort_tie").
				FromSelect(q, "s")
			order = orderBy(st.Direction)

		case pipeline.Project:
			expr, err := projectSQL("s.doc", st.Fields)
			if err != nil {
				return "", nil, err
			}
			q = replaceDoc(q, expr)

		case pipeline.Skip, pipeline.Limit:
			page := wrap(q).OrderBy(order...)
			for ; i < len(stages); i++ {
				if s, ok := stages[i].(pipeline.Skip); ok {
					page = page.Offset(uint64(max(s.N, 0)))
				} else if l, ok := stages[i].(pipeline.Limit); ok {
					page = page.Limit(uint64(max(l.N, 0)))
				} else {
					break
				}
			}
			i--
			q = page

		case pipeline.Count:
			if i != len(stages)-1 {
				return "", nil, apperrors.Storef(nil, "count must be the last stage")
			}
			if err := checkIdent(st.As); err != nil {
				return "", nil, err
			}
			return psql.Select(fmt.Sprintf("jsonb_build_object('%s', COUNT(*)) AS doc", st.As)).
				FromSelect(q, "s").
				ToSql()

		default:
			return "", nil, apperrors.Storef(nil, "unsupported stage %T", stages[i])
		}
	}

	return psql.Select("s.doc").FromSelect(q, "s").OrderBy(order...).ToSql()
}

func wrap(q sq.SelectBuilder) sq.SelectBuilder {
	return psql.Select("s.doc", "s.sort_key", "s.sort_tie").FromSelect(q, "s")
}

func replaceDoc(q sq.SelectBuilder, expr string, args ...any) sq.SelectBuilder {
	return psql.Select().
		Column(sq.Alias(sq.Expr(expr, args...), "doc")).
		Columns("s.sort_key", "s.sort_tie").
		FromSelect(q, "s")
}

// orderBy matches the MongoDB ordering: nulls sort lowest in both directions.
func orderBy(dir domain.SortDirection) []string {
	if dir == domain.SortAsc {
		return []string{"s.sort_key ASC NULLS FIRST", "s.sort_tie ASC"}
	}
	return []string{"s.sort_key DESC NULLS LAST", "s.sort_tie DESC"}
}

// operand renders a field reference and its bound value on one side of a
// comparison.
type operand struct {
	field func(name string) string
	value func(v any) any
}

// columnsOf compares the table columns of alias directly.
func columnsOf(alias string) operand {
	return operand{
		field: func(name string) string { return alias + "." + name },
		value: func(v any) any { return v },
	}
}

// docText compares the text rendering of the jsonb fields of doc.
func docText(doc string) operand {
	return operand{
		field: func(name string) string { return fmt.Sprintf("%s->>'%s'", doc, name) },
		value: func(v any) any { return textValue(v) },
	}
}

func predicateSQL(op operand, p pipeline.Predicate) (string, []any, error) {
	switch pr := p.(type) {
	case pipeline.Eq:
		if err := checkIdent(pr.Field); err != nil {
			return "", nil, err
		}
		if pr.Value == nil {
			return op.field(pr.Field) + " IS NULL", nil, nil
		}
		return op.field(pr.Field) + " = ?", []any{op.value(pr.Value)}, nil

	case pipeline.Contains:
		if err := checkIdent(pr.Field); err != nil {
			return "", nil, err
		}
		return op.field(pr.Field) + " ILIKE ?", []any{"%" + escapeLike(pr.Substring) + "%"}, nil

	case pipeline.Or:
		return joinPredicates(op, []pipeline.Predicate(pr), " OR ", "FALSE")

	case pipeline.And:
		return joinPredicates(op, []pipeline.Predicate(pr), " AND ", "TRUE")
	}
	return "", nil, apperrors.Storef(nil, "unsupported predicate %T", p)
}

func joinPredicates(op operand, preds []pipeline.Predicate, sep, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}
	parts := make([]string, 0, len(preds))
	var args []any
	for _, sub := range preds {
		cond, a, err := predicateSQL(op, sub)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, cond)
		args = append(args, a...)
	}
	return "(" + strings.Join(parts, sep) + ")", args, nil
}

// joinSQL aggregates the matching foreign rows into an array under j.As.
// Join keys are uuid columns.
func joinSQL(j pipeline.Join) (string, []any, error) {
	if !j.From.Valid() {
		return "", nil, apperrors.Storef(nil, "unknown collection %q", j.From)
	}
	if err := checkIdent(j.LocalField, j.ForeignField, j.As); err != nil {
		return "", nil, err
	}
	fields, err := projectSQL("to_jsonb(f)", j.Fields)
	if err != nil {
		return "", nil, err
	}

	where := []string{fmt.Sprintf("f.%s = (s.doc->>'%s')::uuid", j.ForeignField, j.LocalField)}
	var args []any
	for _, w := range j.Where {
		cond, a, err := predicateSQL(columnsOf("f"), w)
		if err != nil {
			return "", nil, err
		}
		where = append(where, cond)
		args = append(args, a...)
	}

	expr := fmt.Sprintf(
		"s.doc || jsonb_build_object('%s', COALESCE((SELECT jsonb_agg(%s ORDER BY f.id) FROM %s f WHERE %s), '[]'::jsonb))",
		j.As, fields, j.From, strings.Join(where, " AND "),
	)
	return expr, args, nil
}

func computedSQL(c pipeline.ComputedField) (string, error) {
	if err := checkIdent(c.Name); err != nil {
		return "", err
	}
	var value string
	switch ex := c.Expr.(type) {
	case pipeline.First:
		if err := checkIdent(ex.Field); err != nil {
			return "", err
		}
		value = fmt.Sprintf("s.doc->'%s'->0", ex.Field)
	case pipeline.Size:
		if err := checkIdent(ex.Field); err != nil {
			return "", err
		}
		value = fmt.Sprintf("jsonb_array_length(COALESCE(s.doc->'%s', '[]'::jsonb))", ex.Field)
	case pipeline.Sum:
		if err := checkIdent(ex.Field, ex.Path); err != nil {
			return "", err
		}
		value = fmt.Sprintf(
			"COALESCE((SELECT SUM((e->>'%s')::numeric) FROM jsonb_array_elements(COALESCE(s.doc->'%s', '[]'::jsonb)) e), 0)",
			ex.Path, ex.Field,
		)
	default:
		return "", apperrors.Storef(nil, "unsupported expression %T", c.Expr)
	}
	return fmt.Sprintf("s.doc || jsonb_build_object('%s', %s)", c.Name, value), nil
}

func projectSQL(doc string, fields []string) (string, error) {
	if len(fields) == 0 {
		return "'{}'::jsonb", nil
	}
	if err := checkIdent(fields...); err != nil {
		return "", err
	}
	pairs := make([]string, 0, len(fields))
	for _, f := range fields {
		pairs = append(pairs, fmt.Sprintf("'%s', %s->'%s'", f, doc, f))
	}
	return "jsonb_build_object(" + strings.Join(pairs, ", ") + ")", nil
}

// checkIdent guards every name inlined into SQL text.
func checkIdent(names ...string) error {
	for _, n := range names {
		if !pipeline.ValidIdent(n) {
			return apperrors.Storef(nil, "invalid field name %q", n)
		}
	}
	return nil
}

// textValue renders v the way ->> renders the stored jsonb value.
func textValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case fmt.Stringer:
		return t.String()
	}
	if n, ok := domain.ToInt64(v); ok {
		return strconv.FormatInt(n, 10)
	}
	return fmt.Sprint(v)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s a literal ILIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
