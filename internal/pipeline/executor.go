package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"vidshare/internal/domain"
	apperrors "vidshare/internal/errors"
	"vidshare/internal/metrics"
)

// Aggregator runs compiled stage lists against a store.
type Aggregator interface {
	Aggregate(ctx context.Context, coll domain.Collection, stages []Stage) ([]domain.Document, error)
}

// Lookup answers existence checks for plan preconditions.
type Lookup interface {
	Exists(ctx context.Context, coll domain.Collection, id string) (bool, error)
}

// Executor runs plans: preconditions first, then the data and count
// pipelines concurrently.
type Executor struct {
	store  Aggregator
	lookup Lookup
}

// NewExecutor creates an executor over store. lookup serves preconditions;
// it is usually a cache in front of the same store.
func NewExecutor(store Aggregator, lookup Lookup) *Executor {
	return &Executor{store: store, lookup: lookup}
}

// On returns an executor that aggregates through store, typically a
// transaction, and keeps the precondition lookup of e.
func (e *Executor) On(store Aggregator) *Executor {
	return &Executor{store: store, lookup: e.lookup}
}

// Execute runs plan and assembles the page.
func (e *Executor) Execute(ctx context.Context, plan *Plan) (*domain.Page, error) {
	if err := e.checkPreconditions(ctx, plan.Preconditions); err != nil {
		return nil, err
	}

	var (
		rows  []domain.Document
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = e.aggregate(gctx, plan.Collection, plan.Stages, "data")
		return err
	})
	g.Go(func() error {
		var err error
		total, err = e.Count(gctx, plan.Collection, CountStages(plan.Stages))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if rows == nil {
		rows = []domain.Document{}
	}
	return &domain.Page{
		Items:      rows,
		Pagination: Paginate(total, plan.Page, plan.Limit),
	}, nil
}

// Count runs a count pipeline and returns its total. An empty result is a
// count of zero.
func (e *Executor) Count(ctx context.Context, coll domain.Collection, stages []Stage) (int64, error) {
	rows, err := e.aggregate(ctx, coll, stages, "count")
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, ok := domain.ToInt64(rows[0][CountField])
	if !ok {
		return 0, apperrors.Storef(nil, "count pipeline on %s returned %T", coll, rows[0][CountField])
	}
	return n, nil
}

// One runs stages and returns the first document, or a not-found error
// naming what when the pipeline yields nothing.
func (e *Executor) One(ctx context.Context, coll domain.Collection, stages []Stage, what string) (domain.Document, error) {
	rows, err := e.aggregate(ctx, coll, stages, "one")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.NotFoundf("%s not found", what)
	}
	return rows[0], nil
}

func (e *Executor) checkPreconditions(ctx context.Context, preconditions []Precondition) error {
	for _, p := range preconditions {
		ok, err := e.lookup.Exists(ctx, p.Collection, p.ID)
		if err != nil {
			return apperrors.Storef(err, "check %s %s", p.Collection, p.ID)
		}
		if !ok {
			return apperrors.PreconditionNotFoundf("%s not found", p.Collection.Singular())
		}
	}
	return nil
}

func (e *Executor) aggregate(ctx context.Context, coll domain.Collection, stages []Stage, kind string) ([]domain.Document, error) {
	start := time.Now()
	rows, err := e.store.Aggregate(ctx, coll, stages)
	metrics.ObservePipeline(string(coll), kind, time.Since(start), err)
	if err != nil {
		var appErr *apperrors.Error
		if apperrors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.Storef(err, "%s pipeline on %s", kind, coll)
	}
	return rows, nil
}
