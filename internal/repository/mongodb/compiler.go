package mongodb

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"vidshare/internal/domain"
	apperrors "vidshare/internal/errors"
	"vidshare/internal/pipeline"
)

const idKey = "_id"

// field maps a document field to its stored name; only the primary key
// differs.
func field(name string) string {
	if name == domain.FieldID {
		return idKey
	}
	return name
}

// compile turns stages into an aggregation pipeline.
func compile(stages []pipeline.Stage) (mongo.Pipeline, error) {
	out := make(mongo.Pipeline, 0, len(stages))
	for _, stage := range stages {
		var d bson.D
		switch st := stage.(type) {
		case pipeline.Filter:
			m, err := matchDoc(st.Predicate)
			if err != nil {
				return nil, err
			}
			d = bson.D{{Key: "$match", Value: m}}

		case pipeline.Join:
			lookup, err := lookupDoc(st)
			if err != nil {
				return nil, err
			}
			d = bson.D{{Key: "$lookup", Value: lookup}}

		case pipeline.ComputedField:
			expr, err := exprDoc(st.Expr)
			if err != nil {
				return nil, err
			}
			d = bson.D{{Key: "$addFields", Value: bson.D{{Key: field(st.Name), Value: expr}}}}

		case pipeline.Sort:
			dir := 1
			if st.Direction == domain.SortDesc {
				dir = -1
			}
			keys := bson.D{{Key: field(st.Field), Value: dir}}
			if st.Field != domain.FieldID {
				keys = append(keys, bson.E{Key: idKey, Value: dir})
			}
			d = bson.D{{Key: "$sort", Value: keys}}

		case pipeline.Project:
			d = bson.D{{Key: "$project", Value: projection(st.Fields)}}

		case pipeline.Skip:
			d = bson.D{{Key: "$skip", Value: st.N}}

		case pipeline.Limit:
			d = bson.D{{Key: "$limit", Value: st.N}}

		case pipeline.Count:
			d = bson.D{{Key: "$count", Value: st.As}}

		default:
			return nil, apperrors.Storef(nil, "unsupported stage %T", stage)
		}
		out = append(out, d)
	}
	return out, nil
}

func matchDoc(p pipeline.Predicate) (bson.D, error) {
	switch pr := p.(type) {
	case pipeline.Eq:
		return bson.D{{Key: field(pr.Field), Value: pr.Value}}, nil

	case pipeline.Contains:
		return bson.D{{Key: field(pr.Field), Value: bson.D{
			{Key: "$regex", Value: regexp.QuoteMeta(pr.Substring)},
			{Key: "$options", Value: "i"},
		}}}, nil

	case pipeline.Or:
		subs, err := matchList(pr)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$or", Value: subs}}, nil

	case pipeline.And:
		subs, err := matchList(pr)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$and", Value: subs}}, nil
	}
	return nil, apperrors.Storef(nil, "unsupported predicate %T", p)
}

func matchList(preds []pipeline.Predicate) (bson.A, error) {
	out := make(bson.A, 0, len(preds))
	for _, p := range preds {
		m, err := matchDoc(p)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// lookupDoc uses the pipeline form of $lookup so the foreign side can be
// filtered and projected.
func lookupDoc(j pipeline.Join) (bson.D, error) {
	sub := bson.A{
		bson.D{{Key: "$match", Value: bson.D{{Key: "$expr", Value: bson.D{
			{Key: "$eq", Value: bson.A{"$" + field(j.ForeignField), "$$lk"}},
		}}}}},
	}
	for _, w := range j.Where {
		m, err := matchDoc(w)
		if err != nil {
			return nil, err
		}
		sub = append(sub, bson.D{{Key: "$match", Value: m}})
	}
	sub = append(sub, bson.D{{Key: "$project", Value: projection(j.Fields)}})

	return bson.D{
		{Key: "from", Value: string(j.From)},
		{Key: "let", Value: bson.D{{Key: "lk", Value: "$" + field(j.LocalField)}}},
		{Key: "pipeline", Value: sub},
		{Key: "as", Value: j.As},
	}, nil
}

func exprDoc(e pipeline.Expression) (bson.D, error) {
	switch ex := e.(type) {
	case pipeline.First:
		return bson.D{{Key: "$first", Value: "$" + field(ex.Field)}}, nil
	case pipeline.Size:
		return bson.D{{Key: "$size", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$" + field(ex.Field), bson.A{}}}}}}, nil
	case pipeline.Sum:
		return bson.D{{Key: "$sum", Value: "$" + field(ex.Field) + "." + ex.Path}}, nil
	}
	return nil, apperrors.Storef(nil, "unsupported expression %T", e)
}

// projection whitelists fields. _id is always stated since MongoDB keeps it
// unless excluded.
func projection(fields []string) bson.D {
	keepID := 0
	for _, f := range fields {
		if f == domain.FieldID {
			keepID = 1
		}
	}
	out := bson.D{{Key: idKey, Value: keepID}}
	for _, f := range fields {
		if f != domain.FieldID {
			out = append(out, bson.E{Key: f, Value: 1})
		}
	}
	return out
}

// patchDoc converts a patch into an update document.
func patchDoc(p domain.Patch) bson.D {
	var out bson.D
	if len(p.Set) > 0 {
		set := bson.D{}
		for _, k := range sortedKeys(p.Set) {
			set = append(set, bson.E{Key: field(k), Value: p.Set[k]})
		}
		out = append(out, bson.E{Key: "$set", Value: set})
	}
	if len(p.Inc) > 0 {
		inc := bson.D{}
		for _, k := range sortedKeys(p.Inc) {
			inc = append(inc, bson.E{Key: k, Value: p.Inc[k]})
		}
		out = append(out, bson.E{Key: "$inc", Value: inc})
	}
	if len(p.AddToSet) > 0 {
		add := bson.D{}
		for _, k := range sortedKeys(p.AddToSet) {
			add = append(add, bson.E{Key: k, Value: p.AddToSet[k]})
		}
		out = append(out, bson.E{Key: "$addToSet", Value: add})
	}
	if len(p.Pull) > 0 {
		pull := bson.D{}
		for _, k := range sortedKeys(p.Pull) {
			pull = append(pull, bson.E{Key: k, Value: p.Pull[k]})
		}
		out = append(out, bson.E{Key: "$pull", Value: pull})
	}
	return out
}
