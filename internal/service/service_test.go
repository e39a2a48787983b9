package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vidshare/internal/domain"
	"vidshare/internal/pipeline"
	"vidshare/internal/repository/memory"
	"vidshare/pkg/logger"
)

// ==================== FIXTURES ====================

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memory.Store
	exec      *pipeline.Executor
	toggles   *ToggleService
	resources *ResourceService
	queries   *QueryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	exec := pipeline.NewExecutor(store, store)
	f := &fixture{
		store:     store,
		exec:      exec,
		toggles:   NewToggleService(store, exec, logger.Discard()),
		resources: NewResourceService(store, nil, logger.Discard()),
		queries:   NewQueryService(exec, store),
	}
	clock := func() time.Time { return epoch }
	f.toggles.now = clock
	f.resources.now = clock
	return f
}

func (f *fixture) user(t *testing.T, name string) *domain.Principal {
	t.Helper()
	id := uuid.NewString()
	require.NoError(t, f.store.InsertOne(context.Background(), domain.CollectionUsers, domain.Document{
		domain.FieldID:               id,
		domain.FieldUsername:         name,
		domain.FieldFullname:         name,
		domain.FieldAvatar:           "https://cdn.example.com/a.png",
		domain.FieldSubscribersCount: int64(0),
	}))
	return &domain.Principal{ID: id, Username: name}
}

func (f *fixture) video(t *testing.T, owner *domain.Principal) string {
	t.Helper()
	doc, err := f.resources.CreateVideo(context.Background(), owner, &domain.NewVideo{
		Title:       "Intro",
		Description: "first video",
		VideoFile:   "https://cdn.example.com/v.mp4",
		Thumbnail:   "https://cdn.example.com/t.png",
		Duration:    42,
	})
	require.NoError(t, err)
	return doc.String(domain.FieldID)
}

func (f *fixture) doc(t *testing.T, coll domain.Collection, id string) domain.Document {
	t.Helper()
	doc, err := f.store.FindByID(context.Background(), coll, id)
	require.NoError(t, err)
	return doc
}

// ==================== MOCKS ====================

// MockInvalidator is a mock implementation of Invalidator
type MockInvalidator struct {
	mock.Mock
}

func (m *MockInvalidator) Invalidate(ctx context.Context, coll domain.Collection, id string) error {
	args := m.Called(ctx, coll, id)
	return args.Error(0)
}

// defaults fills the zero fields of q from domain.DefaultQuery, the way the
// HTTP layer treats omitted parameters.
func defaults(q domain.QueryRequest) domain.QueryRequest {
	d := domain.DefaultQuery()
	if q.Page == 0 {
		q.Page = d.Page
	}
	if q.Limit == 0 {
		q.Limit = d.Limit
	}
	if q.SortBy == "" {
		q.SortBy = d.SortBy
	}
	if q.SortType == "" {
		q.SortType = d.SortType
	}
	return q
}
