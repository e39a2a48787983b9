package pipeline

import (
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/google/uuid"

	"vidshare/internal/domain"
	apperrors "vidshare/internal/errors"
	"vidshare/pkg/validator"
)

// JoinSpec describes a one-to-one foreign-key join of a profile.
type JoinSpec struct {
	From         domain.Collection
	LocalField   string
	ForeignField string
	As           string
	Fields       []string
}

// Profile is the per-resource configuration of a list endpoint. Allowed sort
// keys, searchable fields and the output whitelist live here rather than in
// handlers.
type Profile struct {
	Name       string
	Collection domain.Collection
	// SortFields maps the public sort key to the stored field.
	SortFields map[string]string
	TextFields []string
	// OwnerField is bound by QueryRequest.UserID; the user must exist.
	OwnerField string
	// ScopeField is bound by QueryRequest.ScopeID; the scope parent in
	// ScopeCollection must exist.
	ScopeField      string
	ScopeCollection domain.Collection
	Base            []Predicate
	Joins           []JoinSpec
	Projection      []string
}

// Precondition is an existence check the executor runs before any pipeline.
type Precondition struct {
	Collection domain.Collection
	ID         string
}

// Plan is the output of Build: what to run and where.
type Plan struct {
	Collection    domain.Collection
	Stages        []Stage
	Preconditions []Precondition
	Page          int
	Limit         int
}

// Build translates a list request into a plan for p. It performs no I/O and
// rejects any input outside the profile's allowed sets. Defaults are the
// caller's business, see domain.DefaultQuery.
func Build(req domain.QueryRequest, p Profile) (*Plan, error) {
	if err := validateRequest(req, p); err != nil {
		return nil, err
	}

	var preconditions []Precondition
	var stages []Stage

	for _, pred := range p.Base {
		stages = append(stages, Filter{Predicate: pred})
	}
	if p.ScopeField != "" {
		stages = append(stages, Filter{Predicate: Eq{Field: p.ScopeField, Value: req.ScopeID}})
		preconditions = append(preconditions, Precondition{Collection: p.ScopeCollection, ID: req.ScopeID})
	}
	if req.UserID != "" && p.OwnerField != "" {
		stages = append(stages, Filter{Predicate: Eq{Field: p.OwnerField, Value: req.UserID}})
		preconditions = append(preconditions, Precondition{Collection: domain.CollectionUsers, ID: req.UserID})
	}
	if pred := textPredicate(req.Query, p.TextFields); pred != nil {
		stages = append(stages, Filter{Predicate: pred})
	}

	stages = append(stages, joinStages(p.Joins)...)
	stages = append(stages,
		Sort{Field: p.SortFields[req.SortType], Direction: req.SortBy},
		Project{Fields: cloneFields(p.Projection)},
		Skip{N: req.Skip()},
		Limit{N: int64(req.Limit)},
	)

	return &Plan{
		Collection:    p.Collection,
		Stages:        stages,
		Preconditions: preconditions,
		Page:          req.Page,
		Limit:         req.Limit,
	}, nil
}

// ByID builds the single-document pipeline of p: the resource with id plus
// its joins, projected like a list item.
func ByID(p Profile, id string) ([]Stage, error) {
	if err := ValidateID("id", id); err != nil {
		return nil, err
	}
	stages := []Stage{Filter{Predicate: Eq{Field: domain.FieldID, Value: id}}}
	stages = append(stages, joinStages(p.Joins)...)
	stages = append(stages, Project{Fields: cloneFields(p.Projection)}, Limit{N: 1})
	return stages, nil
}

// ChannelStats builds the dashboard pipeline of a channel: published video
// count, subscriber count and total views over all of its videos.
func ChannelStats(channelID string) ([]Stage, error) {
	if err := ValidateID("channelId", channelID); err != nil {
		return nil, err
	}
	return []Stage{
		Filter{Predicate: Eq{Field: domain.FieldID, Value: channelID}},
		Join{
			From:         domain.CollectionVideos,
			LocalField:   domain.FieldID,
			ForeignField: domain.FieldOwnerID,
			As:           "published_videos",
			Fields:       []string{domain.FieldID},
			Where:        []Predicate{Eq{Field: domain.FieldIsPublished, Value: true}},
		},
		Join{
			From:         domain.CollectionRelations,
			LocalField:   domain.FieldID,
			ForeignField: domain.FieldTargetID,
			As:           "subscribers",
			Fields:       []string{domain.FieldID},
			Where:        []Predicate{Eq{Field: domain.FieldTargetKind, Value: string(domain.TargetChannel)}},
		},
		Join{
			From:         domain.CollectionVideos,
			LocalField:   domain.FieldID,
			ForeignField: domain.FieldOwnerID,
			As:           "video_stats",
			Fields:       []string{domain.FieldID, domain.FieldViews},
		},
		ComputedField{Name: "total_videos", Expr: Size{Field: "published_videos"}},
		ComputedField{Name: "total_subscribers", Expr: Size{Field: "subscribers"}},
		ComputedField{Name: "total_views", Expr: Sum{Field: "video_stats", Path: domain.FieldViews}},
		Project{Fields: []string{
			domain.FieldID, domain.FieldUsername, domain.FieldFullname, domain.FieldAvatar,
			domain.FieldCoverImage, domain.FieldCreatedAt,
			"total_videos", "total_subscribers", "total_views",
		}},
	}, nil
}

// RelationCount builds the count pipeline of the relation set behind a
// target's denormalized counter.
func RelationCount(kind domain.TargetKind, targetID string) []Stage {
	return []Stage{
		Filter{Predicate: And{
			Eq{Field: domain.FieldTargetKind, Value: string(kind)},
			Eq{Field: domain.FieldTargetID, Value: targetID},
		}},
		Count{As: CountField},
	}
}

// ValidateID rejects identifiers that are not well-formed resource ids.
func ValidateID(param, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.Validationf("invalid %s format", param)
	}
	return nil
}

var requestValidator = validator.New()

// validateRequest checks the shared bounds declared on domain.QueryRequest
// and then the rules that depend on the profile.
func validateRequest(req domain.QueryRequest, p Profile) error {
	details := map[string]string{}
	if err := requestValidator.Validate(req); err != nil {
		var appErr *apperrors.Error
		if !apperrors.As(err, &appErr) {
			return err
		}
		if fields, ok := appErr.Details.(map[string]string); ok {
			maps.Copy(details, fields)
		}
	}
	if _, ok := p.SortFields[req.SortType]; !ok {
		details["sortType"] = "must be one of: " + strings.Join(sortKeys(p), ", ")
	}
	if p.ScopeField != "" && req.ScopeID == "" {
		details["id"] = "is required"
	}
	if len(details) > 0 {
		return apperrors.ValidationWithDetails("invalid query parameters", details)
	}
	return nil
}

// textPredicate compiles free text into an OR of literal, case-insensitive
// substring matches. Blank text binds nothing.
func textPredicate(query string, fields []string) Predicate {
	text := strings.TrimSpace(query)
	if text == "" || len(fields) == 0 {
		return nil
	}
	or := make(Or, 0, len(fields))
	for _, f := range fields {
		or = append(or, Contains{Field: f, Substring: text})
	}
	return or
}

func joinStages(joins []JoinSpec) []Stage {
	out := make([]Stage, 0, 2*len(joins))
	for _, j := range joins {
		out = append(out,
			Join{
				From:         j.From,
				LocalField:   j.LocalField,
				ForeignField: j.ForeignField,
				As:           j.As,
				Fields:       cloneFields(j.Fields),
			},
			ComputedField{Name: j.As, Expr: First{Field: j.As}},
		)
	}
	return out
}

func sortKeys(p Profile) []string {
	return slices.Sorted(maps.Keys(p.SortFields))
}

func cloneFields(fields []string) []string {
	return append([]string(nil), fields...)
}

var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidIdent reports whether name can be used verbatim as a column or
// field name by a compiler.
func ValidIdent(name string) bool {
	return identPattern.MatchString(name)
}
