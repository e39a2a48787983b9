// Package pipeline composes paginated aggregation queries as data.
//
// A query is an ordered list of Stage values drawn from a closed set of
// variants. Stores never see request parameters; each store package owns a
// compiler that turns the variants into its native query syntax.
package pipeline

import "vidshare/internal/domain"

// Stage is one step of an aggregation pipeline. The set of implementations is
// closed: only this package can add variants.
type Stage interface {
	isStage()
}

// Filter keeps the documents matching Predicate.
type Filter struct {
	Predicate Predicate
}

// Join attaches the documents of From whose ForeignField equals the local
// document's LocalField, as an array under As. Only Fields are kept on the
// foreign side; Where further restricts the foreign documents.
type Join struct {
	From         domain.Collection
	LocalField   string
	ForeignField string
	As           string
	Fields       []string
	Where        []Predicate
}

// ComputedField sets Name to the value of Expr.
type ComputedField struct {
	Name string
	Expr Expression
}

// Sort orders documents by Field. Compilers break ties by id so pages are
// stable.
type Sort struct {
	Field     string
	Direction domain.SortDirection
}

// Project whitelists the output fields.
type Project struct {
	Fields []string
}

type Skip struct {
	N int64
}

type Limit struct {
	N int64
}

// Count replaces the stream with a single document {As: n}. It only ever
// terminates a count pipeline.
type Count struct {
	As string
}

func (Filter) isStage()        {}
func (Join) isStage()          {}
func (ComputedField) isStage() {}
func (Sort) isStage()          {}
func (Project) isStage()       {}
func (Skip) isStage()          {}
func (Limit) isStage()         {}
func (Count) isStage()         {}

// Predicate is a boolean condition over one document.
type Predicate interface {
	isPredicate()
}

// Eq matches when Field equals Value.
type Eq struct {
	Field string
	Value any
}

// Contains matches when Field contains Substring, ignoring case.
type Contains struct {
	Field     string
	Substring string
}

// Or matches when any operand matches.
type Or []Predicate

// And matches when every operand matches.
type And []Predicate

func (Eq) isPredicate()       {}
func (Contains) isPredicate() {}
func (Or) isPredicate()       {}
func (And) isPredicate()      {}

// Expression computes a value from the current document.
type Expression interface {
	isExpression()
}

// First is the first element of the array at Field, or null.
type First struct {
	Field string
}

// Size is the length of the array at Field.
type Size struct {
	Field string
}

// Sum adds the numeric Path of every element of the array at Field.
type Sum struct {
	Field string
	Path  string
}

func (First) isExpression() {}
func (Size) isExpression()  {}
func (Sum) isExpression()   {}

// CountField is the key the executor reads from a count pipeline.
const CountField = "total"

// CountStages derives the count pipeline of stages: every stage up to the
// first Skip or Limit, followed by a Count.
func CountStages(stages []Stage) []Stage {
	out := make([]Stage, 0, len(stages)+1)
	for _, s := range stages {
		switch s.(type) {
		case Skip, Limit:
			return append(out, Count{As: CountField})
		}
		out = append(out, s)
	}
	return append(out, Count{As: CountField})
}
