package memory

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"vidshare/internal/domain"
	apperrors "vidshare/internal/errors"
	"vidshare/internal/pipeline"
)

// source resolves a collection for joins.
type source func(coll domain.Collection) map[string]domain.Document

func evaluate(rows []domain.Document, stages []pipeline.Stage, from source) ([]domain.Document, error) {
	for _, stage := range stages {
		switch st := stage.(type) {
		case pipeline.Filter:
			kept := rows[:0]
			for _, doc := range rows {
				if match(doc, st.Predicate) {
					kept = append(kept, doc)
				}
			}
			rows = kept

		case pipeline.Join:
			foreign := from(st.From)
			for _, doc := range rows {
				doc[st.As] = joined(doc, st, foreign)
			}

		case pipeline.ComputedField:
			for _, doc := range rows {
				doc[st.Name] = compute(doc, st.Expr)
			}

		case pipeline.Sort:
			sortRows(rows, st)

		case pipeline.Project:
			for i, doc := range rows {
				rows[i] = project(doc, st.Fields)
			}

		case pipeline.Skip:
			if st.N >= int64(len(rows)) {
				rows = rows[:0]
			} else if st.N > 0 {
				rows = rows[st.N:]
			}

		case pipeline.Limit:
			if st.N >= 0 && st.N < int64(len(rows)) {
				rows = rows[:st.N]
			}

		case pipeline.Count:
			rows = []domain.Document{{st.As: int64(len(rows))}}

		default:
			return nil, apperrors.Storef(nil, "unsupported stage %T", stage)
		}
	}
	return rows, nil
}

func match(doc domain.Document, p pipeline.Predicate) bool {
	switch pr := p.(type) {
	case pipeline.Eq:
		return equal(doc[pr.Field], pr.Value)
	case pipeline.Contains:
		s, ok := doc[pr.Field].(string)
		return ok && strings.Contains(strings.ToLower(s), strings.ToLower(pr.Substring))
	case pipeline.Or:
		for _, sub := range pr {
			if match(doc, sub) {
				return true
			}
		}
		return false
	case pipeline.And:
		for _, sub := range pr {
			if !match(doc, sub) {
				return false
			}
		}
		return true
	}
	return false
}

func joined(doc domain.Document, j pipeline.Join, foreign map[string]domain.Document) []any {
	local := doc.String(j.LocalField)
	out := []any{}
	if local == "" {
		return out
	}
	// sorted ids so joined arrays are deterministic
	ids := make([]string, 0, len(foreign))
	for id := range foreign {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		f := foreign[id]
		if f.String(j.ForeignField) != local {
			continue
		}
		ok := true
		for _, w := range j.Where {
			if !match(f, w) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, project(cloneDoc(f), j.Fields))
		}
	}
	return out
}

func compute(doc domain.Document, e pipeline.Expression) any {
	switch ex := e.(type) {
	case pipeline.First:
		arr, _ := doc[ex.Field].([]any)
		if len(arr) == 0 {
			return nil
		}
		return arr[0]
	case pipeline.Size:
		arr, _ := doc[ex.Field].([]any)
		return int64(len(arr))
	case pipeline.Sum:
		arr, _ := doc[ex.Field].([]any)
		var total int64
		for _, el := range arr {
			if d, ok := el.(domain.Document); ok {
				total += d.Int64(ex.Path)
			}
		}
		return total
	}
	return nil
}

func project(doc domain.Document, fields []string) domain.Document {
	out := make(domain.Document, len(fields))
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}

func sortRows(rows []domain.Document, st pipeline.Sort) {
	desc := st.Direction == domain.SortDesc
	sort.SliceStable(rows, func(i, j int) bool {
		c := compare(rows[i][st.Field], rows[j][st.Field])
		if c == 0 {
			c = strings.Compare(rows[i].String(domain.FieldID), rows[j].String(domain.FieldID))
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

// compare orders nil first, then numbers, strings, times and booleans.
func compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	if x, ok := timeOf(a); ok {
		if y, ok := timeOf(b); ok {
			return x.Compare(y)
		}
	}
	if x, ok := a.(bool); ok {
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func equal(a, b any) bool {
	if x, ok := toFloat(a); ok {
		y, ok := toFloat(b)
		return ok && x == y
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case nil:
		return b == nil
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if i, ok := domain.ToInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func timeOf(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		ts, err := time.Parse(time.RFC3339Nano, t)
		return ts, err == nil
	}
	return time.Time{}, false
}
