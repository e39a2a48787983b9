package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"vidshare/internal/domain"
	apperrors "vidshare/internal/errors"
	"vidshare/internal/metrics"
	"vidshare/internal/pipeline"
	"vidshare/internal/repository"
	"vidshare/pkg/logger"
)

// maxToggleAttempts bounds retries after losing a race on the same key.
const maxToggleAttempts = 3

// errRaceLost means the row seen at the start of the transaction was gone
// by the time it was deleted.
var errRaceLost = errors.New("relation changed concurrently")

// ToggleService flips likes and subscriptions. A toggle is the only way a
// relation row is created or deleted, and the target's counter moves by
// exactly one in the same transaction.
type ToggleService struct {
	store  repository.Backend
	exec   *pipeline.Executor
	logger *logger.Logger
	now    func() time.Time
}

func NewToggleService(store repository.Backend, exec *pipeline.Executor, log *logger.Logger) *ToggleService {
	return &ToggleService{
		store:  store,
		exec:   exec,
		logger: log,
		now:    time.Now,
	}
}

// Toggle makes the relation (principal, kind, targetID) present if it was
// absent and absent if it was present.
func (s *ToggleService) Toggle(ctx context.Context, principal *domain.Principal, rawKind, targetID string) (*domain.ToggleResult, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	kind, err := domain.ParseTargetKind(rawKind)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	if err := pipeline.ValidateID(string(kind)+"Id", targetID); err != nil {
		return nil, err
	}

	target, err := s.store.FindByID(ctx, kind.Collection(), targetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, apperrors.NotFoundf("%s not found", kind)
	}
	if kind.SelfExclusive() && targetID == principal.ID {
		return nil, apperrors.SelfReference("you cannot subscribe to your own channel")
	}

	key := domain.RelationKey{SubjectID: principal.ID, Kind: kind, TargetID: targetID}
	log := s.logger.WithContext(ctx)

	for attempt := 1; ; attempt++ {
		present, err := s.flip(ctx, key)
		if err == nil {
			outcome := "removed"
			if present {
				outcome = "added"
			}
			metrics.RecordToggle(string(kind), outcome)
			log.Debug("relation toggled", "relation", kind.Verb(), "key", key.String(), "present", present, "attempt", attempt)
			return &domain.ToggleResult{Kind: kind, TargetID: targetID, NowPresent: present}, nil
		}

		if !errors.Is(err, errRaceLost) && !errors.Is(err, apperrors.ErrAlreadyExists) {
			metrics.RecordToggle(string(kind), "error")
			return nil, err
		}
		if attempt == maxToggleAttempts {
			metrics.RecordToggle(string(kind), "conflict")
			log.Warn("toggle gave up after concurrent updates", "key", key.String(), "attempts", attempt)
			return nil, apperrors.Conflict("the " + kind.Verb() + " was changed concurrently, try again")
		}
		metrics.RecordToggleRetry(string(kind))
	}
}

// flip runs one read-then-act attempt and reports the new state.
func (s *ToggleService) flip(ctx context.Context, key domain.RelationKey) (bool, error) {
	var present bool
	err := s.store.WithinRelationTx(ctx, key, func(tx repository.RelationStore) error {
		existing, err := tx.FindRelation(ctx, key)
		if err != nil {
			return err
		}

		coll, field := key.Kind.Collection(), key.Kind.CounterField()
		if existing != nil {
			removed, err := tx.DeleteRelation(ctx, key)
			if err != nil {
				return err
			}
			if !removed {
				return errRaceLost
			}
			present = false
			return tx.AdjustCounter(ctx, coll, key.TargetID, field, -1)
		}

		rel := &domain.Relation{
			ID:        uuid.NewString(),
			SubjectID: key.SubjectID,
			Kind:      key.Kind,
			TargetID:  key.TargetID,
			CreatedAt: s.now().UTC(),
		}
		if err := tx.InsertRelation(ctx, rel); err != nil {
			return err
		}
		present = true
		return tx.AdjustCounter(ctx, coll, key.TargetID, field, 1)
	})
	return present, err
}

// Recount rewrites the counter of a target from its relation rows and
// returns the new value. It repairs drift left by stores that cannot make
// the row and counter writes atomic.
//
// Counting and writing share one relation transaction. Taking the counter
// write first (a zero adjustment) locks the target row on PostgreSQL, so a
// toggle either commits before the count sees it or adjusts the rewritten
// value after; MongoDB aborts one side of the write conflict and retries.
func (s *ToggleService) Recount(ctx context.Context, rawKind, targetID string) (int64, error) {
	kind, err := domain.ParseTargetKind(rawKind)
	if err != nil {
		return 0, apperrors.Validation(err.Error())
	}
	if err := pipeline.ValidateID(string(kind)+"Id", targetID); err != nil {
		return 0, err
	}

	exists, err := s.store.Exists(ctx, kind.Collection(), targetID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, apperrors.NotFoundf("%s not found", kind)
	}

	coll, field := kind.Collection(), kind.CounterField()
	var n int64
	err = s.store.WithinRelationTx(ctx, domain.RelationKey{Kind: kind, TargetID: targetID}, func(tx repository.RelationStore) error {
		if err := tx.AdjustCounter(ctx, coll, targetID, field, 0); err != nil {
			return err
		}
		var err error
		n, err = s.exec.On(tx).Count(ctx, domain.CollectionRelations, pipeline.RelationCount(kind, targetID))
		if err != nil {
			return err
		}
		return tx.SetCounter(ctx, coll, targetID, field, n)
	})
	if err != nil {
		return 0, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"kind":      kind,
		"target_id": targetID,
		"field":     field,
	}).Info("counter recomputed", "value", n)
	return n, nil
}
