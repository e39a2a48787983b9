package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vidshare/internal/domain"
	apperrors "vidshare/internal/errors"
)

// ==================== MOCKS ====================

type MockAggregator struct {
	mock.Mock
}

func (m *MockAggregator) Aggregate(ctx context.Context, coll domain.Collection, stages []Stage) ([]domain.Document, error) {
	args := m.Called(ctx, coll, stages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Document), args.Error(1)
}

type MockLookup struct {
	mock.Mock
}

func (m *MockLookup) Exists(ctx context.Context, coll domain.Collection, id string) (bool, error) {
	args := m.Called(ctx, coll, id)
	return args.Bool(0), args.Error(1)
}

func isCount(stages []Stage) bool {
	if len(stages) == 0 {
		return false
	}
	_, ok := stages[len(stages)-1].(Count)
	return ok
}

var (
	countPipeline = mock.MatchedBy(isCount)
	dataPipeline  = mock.MatchedBy(func(s []Stage) bool { return !isCount(s) })
)

// ==================== TESTS ====================

func TestExecute_Success(t *testing.T) {
	store := new(MockAggregator)
	lookup := new(MockLookup)
	exec := NewExecutor(store, lookup)

	plan, err := Build(defaults(domain.QueryRequest{Page: 2, Limit: 2}), VideoList)
	require.NoError(t, err)

	rows := []domain.Document{{"id": "a"}, {"id": "b"}}
	store.On("Aggregate", mock.Anything, domain.CollectionVideos, dataPipeline).Return(rows, nil)
	store.On("Aggregate", mock.Anything, domain.CollectionVideos, countPipeline).
		Return([]domain.Document{{CountField: int64(5)}}, nil)

	page, err := exec.Execute(context.Background(), plan)

	require.NoError(t, err)
	assert.Equal(t, rows, page.Items)
	assert.Equal(t, domain.PageMeta{
		CurrentPage: 2,
		TotalPages:  3,
		TotalCount:  5,
		HasPrevPage: true,
		HasNextPage: true,
	}, page.Pagination)
	store.AssertExpectations(t)
	lookup.AssertNotCalled(t, "Exists")
}

func TestExecute_EmptyResultIsValidPage(t *testing.T) {
	store := new(MockAggregator)
	exec := NewExecutor(store, new(MockLookup))

	plan, err := Build(domain.DefaultQuery(), VideoList)
	require.NoError(t, err)

	store.On("Aggregate", mock.Anything, domain.CollectionVideos, dataPipeline).Return(nil, nil)
	store.On("Aggregate", mock.Anything, domain.CollectionVideos, countPipeline).Return([]domain.Document{}, nil)

	page, err := exec.Execute(context.Background(), plan)

	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.Equal(t, int64(0), page.Pagination.TotalPages)
	assert.False(t, page.Pagination.HasNextPage)
}

func TestExecute_MissingPreconditionRunsNoPipeline(t *testing.T) {
	store := new(MockAggregator)
	lookup := new(MockLookup)
	exec := NewExecutor(store, lookup)

	videoID := uuid.NewString()
	plan, err := Build(defaults(domain.QueryRequest{ScopeID: videoID}), VideoComments)
	require.NoError(t, err)

	lookup.On("Exists", mock.Anything, domain.CollectionVideos, videoID).Return(false, nil)

	page, err := exec.Execute(context.Background(), plan)

	assert.Nil(t, page)
	assert.ErrorIs(t, err, apperrors.ErrPreconditionNotFound)
	assert.EqualError(t, err, "video not found")
	store.AssertNotCalled(t, "Aggregate")
}

func TestExecute_PreconditionLookupFailure(t *testing.T) {
	store := new(MockAggregator)
	lookup := new(MockLookup)
	exec := NewExecutor(store, lookup)

	userID := uuid.NewString()
	plan, err := Build(defaults(domain.QueryRequest{UserID: userID}), VideoList)
	require.NoError(t, err)

	lookup.On("Exists", mock.Anything, domain.CollectionUsers, userID).Return(false, errors.New("connection reset"))

	_, err = exec.Execute(context.Background(), plan)

	assert.ErrorIs(t, err, apperrors.ErrStore)
	store.AssertNotCalled(t, "Aggregate")
}

func TestExecute_StoreFailureFailsCall(t *testing.T) {
	tests := []struct {
		name    string
		failing interface{}
		other   interface{}
	}{
		{name: "data pipeline fails", failing: dataPipeline, other: countPipeline},
		{name: "count pipeline fails", failing: countPipeline, other: dataPipeline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockAggregator)
			exec := NewExecutor(store, new(MockLookup))

			plan, err := Build(domain.DefaultQuery(), VideoList)
			require.NoError(t, err)

			store.On("Aggregate", mock.Anything, domain.CollectionVideos, tt.failing).Return(nil, errors.New("boom"))
			store.On("Aggregate", mock.Anything, domain.CollectionVideos, tt.other).
				Return([]domain.Document{{CountField: int64(1)}}, nil).Maybe()

			page, err := exec.Execute(context.Background(), plan)

			assert.Nil(t, page)
			assert.ErrorIs(t, err, apperrors.ErrStore)
		})
	}
}

func TestExecute_FailureCancelsSibling(t *testing.T) {
	store := new(MockAggregator)
	exec := NewExecutor(store, new(MockLookup))

	plan, err := Build(domain.DefaultQuery(), VideoList)
	require.NoError(t, err)

	cancelled := make(chan struct{})
	store.On("Aggregate", mock.Anything, domain.CollectionVideos, dataPipeline).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
			close(cancelled)
		}).
		Return(nil, context.Canceled)
	store.On("Aggregate", mock.Anything, domain.CollectionVideos, countPipeline).Return(nil, errors.New("boom"))

	_, err = exec.Execute(context.Background(), plan)

	require.Error(t, err)
	<-cancelled
}

func TestCount_UnexpectedShape(t *testing.T) {
	store := new(MockAggregator)
	exec := NewExecutor(store, new(MockLookup))

	store.On("Aggregate", mock.Anything, domain.CollectionRelations, mock.Anything).
		Return([]domain.Document{{CountField: "seven"}}, nil)

	_, err := exec.Count(context.Background(), domain.CollectionRelations, RelationCount(domain.TargetVideo, "v"))

	assert.ErrorIs(t, err, apperrors.ErrStore)
}

func TestOne(t *testing.T) {
	store := new(MockAggregator)
	exec := NewExecutor(store, new(MockLookup))
	id := uuid.NewString()
	stages, err := ByID(VideoList, id)
	require.NoError(t, err)

	store.On("Aggregate", mock.Anything, domain.CollectionVideos, stages).
		Return([]domain.Document{{"id": id}}, nil).Once()
	store.On("Aggregate", mock.Anything, domain.CollectionVideos, stages).
		Return([]domain.Document{}, nil).Once()

	doc, err := exec.One(context.Background(), domain.CollectionVideos, stages, "video")
	require.NoError(t, err)
	assert.Equal(t, id, doc.String("id"))

	_, err = exec.One(context.Background(), domain.CollectionVideos, stages, "video")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
