package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidshare/internal/domain"
	apperrors "vidshare/internal/errors"
	"vidshare/internal/pipeline"
	"vidshare/internal/repository"
)

var base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, s *Store, name string) string {
	t.Helper()
	id := uuid.NewString()
	require.NoError(t, s.InsertOne(context.Background(), domain.CollectionUsers, domain.Document{
		domain.FieldID:               id,
		domain.FieldUsername:         name,
		domain.FieldFullname:         name + " Doe",
		domain.FieldAvatar:           "https://cdn.example.com/" + name + ".png",
		domain.FieldSubscribersCount: int64(0),
		"password":                   "secret",
	}))
	return id
}

func seedVideo(t *testing.T, s *Store, owner, title string, i int, published bool) string {
	t.Helper()
	v := domain.NewVideo{
		Title:       title,
		Description: "about " + title,
		VideoFile:   "https://cdn.example.com/v.mp4",
		Thumbnail:   "https://cdn.example.com/t.png",
		Duration:    float64(60 + i),
	}
	doc := v.Document(owner, base.Add(time.Duration(i)*time.Minute))
	doc[domain.FieldViews] = int64(i * 10)
	doc[domain.FieldIsPublished] = published
	require.NoError(t, s.InsertOne(context.Background(), domain.CollectionVideos, doc))
	return doc.String(domain.FieldID)
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

func run(t *testing.T, s *Store, req domain.QueryRequest, p pipeline.Profile) (*domain.Page, error) {
	t.Helper()
	plan, err := pipeline.Build(req, p)
	require.NoError(t, err)
	return pipeline.NewExecutor(s, s).Execute(context.Background(), plan)
}

// ==================== CRUD ====================

func TestStore_InsertFindDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	id := seedUser(t, s, "ana")

	doc, err := s.FindByID(ctx, domain.CollectionUsers, id)
	require.NoError(t, err)
	assert.Equal(t, "ana", doc.String(domain.FieldUsername))

	doc[domain.FieldUsername] = "mutated"
	again, _ := s.FindByID(ctx, domain.CollectionUsers, id)
	assert.Equal(t, "ana", again.String(domain.FieldUsername), "returned documents are copies")

	err = s.InsertOne(ctx, domain.CollectionUsers, domain.Document{domain.FieldID: id})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	removed, err := s.DeleteByID(ctx, domain.CollectionUsers, id)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.DeleteByID(ctx, domain.CollectionUsers, id)
	require.NoError(t, err)
	assert.False(t, removed)

	missing, err := s.FindByID(ctx, domain.CollectionUsers, id)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_UpdateByID(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := seedUser(t, s, "ana")
	p := domain.NewPlaylist{Name: "mix", Description: "songs"}
	doc := p.Document(owner, base)
	require.NoError(t, s.InsertOne(ctx, domain.CollectionPlaylists, doc))
	id := doc.String(domain.FieldID)

	updated, err := s.UpdateByID(ctx, domain.CollectionPlaylists, id, domain.Patch{AddToSet: map[string]string{domain.FieldVideos: "v1"}})
	require.NoError(t, err)
	updated, err = s.UpdateByID(ctx, domain.CollectionPlaylists, id, domain.Patch{AddToSet: map[string]string{domain.FieldVideos: "v1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, updated[domain.FieldVideos])

	updated, err = s.UpdateByID(ctx, domain.CollectionPlaylists, id, domain.Patch{
		Pull: map[string]string{domain.FieldVideos: "v1"},
		Set:  map[string]any{domain.FieldName: "renamed"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{}, updated[domain.FieldVideos])
	assert.Equal(t, "renamed", updated.String(domain.FieldName))

	_, err = s.UpdateByID(ctx, domain.CollectionPlaylists, "missing", domain.Patch{Set: map[string]any{"x": 1}})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// ==================== RELATIONS ====================

func TestStore_RelationUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()
	rel := &domain.Relation{ID: uuid.NewString(), SubjectID: "u", Kind: domain.TargetVideo, TargetID: "v", CreatedAt: base}

	require.NoError(t, s.InsertRelation(ctx, rel))

	dup := *rel
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, s.InsertRelation(ctx, &dup), apperrors.ErrAlreadyExists)

	found, err := s.FindRelation(ctx, rel.Key())
	require.NoError(t, err)
	assert.Equal(t, rel.ID, found.ID)
	assert.Equal(t, base, found.CreatedAt)

	removed, err := s.DeleteRelation(ctx, rel.Key())
	require.NoError(t, err)
	assert.True(t, removed)

	found, err = s.FindRelation(ctx, rel.Key())
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestStore_RelationTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()
	video := seedVideo(t, s, seedUser(t, s, "ana"), "clip", 1, true)
	rel := &domain.Relation{ID: uuid.NewString(), SubjectID: "u", Kind: domain.TargetVideo, TargetID: video, CreatedAt: base}

	err := s.WithinRelationTx(ctx, rel.Key(), func(tx repository.RelationStore) error {
		require.NoError(t, tx.InsertRelation(ctx, rel))
		require.NoError(t, tx.AdjustCounter(ctx, domain.CollectionVideos, video, domain.FieldLikesCount, 1))
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")

	found, err := s.FindRelation(ctx, rel.Key())
	require.NoError(t, err)
	assert.Nil(t, found)
	doc, _ := s.FindByID(ctx, domain.CollectionVideos, video)
	assert.Equal(t, int64(0), doc.Int64(domain.FieldLikesCount))
}

// ==================== PIPELINES ====================

func TestAggregate_ListWithJoinSortAndProjection(t *testing.T) {
	s := New()
	ana := seedUser(t, s, "ana")
	bob := seedUser(t, s, "bob")
	for i := 0; i < 5; i++ {
		seedVideo(t, s, ana, fmt.Sprintf("ana video %d", i), i, true)
	}
	seedVideo(t, s, bob, "bob video", 9, false)

	page, err := run(t, s, defaults(domain.QueryRequest{SortType: "views", SortBy: domain.SortAsc, Limit: 2, Page: 2}), pipeline.VideoList)
	require.NoError(t, err)

	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(20), page.Items[0].Int64(domain.FieldViews))
	assert.Equal(t, int64(30), page.Items[1].Int64(domain.FieldViews))
	assert.Equal(t, domain.PageMeta{CurrentPage: 2, TotalPages: 3, TotalCount: 6, HasPrevPage: true, HasNextPage: true}, page.Pagination)

	owner, ok := page.Items[0][domain.FieldOwner].(domain.Document)
	require.True(t, ok)
	assert.Equal(t, "ana", owner.String(domain.FieldUsername))
	assert.NotContains(t, owner, "password")
	assert.NotContains(t, page.Items[0], domain.FieldOwnerID)
}

func TestAggregate_ChannelVideosOnlyPublished(t *testing.T) {
	s := New()
	bob := seedUser(t, s, "bob")
	seedVideo(t, s, bob, "public", 1, true)
	seedVideo(t, s, bob, "draft", 2, false)

	page, err := run(t, s, defaults(domain.QueryRequest{ScopeID: bob}), pipeline.ChannelVideos)
	require.NoError(t, err)

	require.Len(t, page.Items, 1)
	assert.Equal(t, "public", page.Items[0].String(domain.FieldTitle))
}

func TestAggregate_FreeTextIsLiteralAndCaseInsensitive(t *testing.T) {
	s := New()
	ana := seedUser(t, s, "ana")
	seedVideo(t, s, ana, "Learning Go (Part 1)", 1, true)
	seedVideo(t, s, ana, "Learning Gopher", 2, true)
	seedVideo(t, s, ana, "Rust", 3, true)

	page, err := run(t, s, defaults(domain.QueryRequest{Query: "go (part"}), pipeline.VideoList)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Learning Go (Part 1)", page.Items[0].String(domain.FieldTitle))

	page, err = run(t, s, defaults(domain.QueryRequest{Query: ".*"}), pipeline.VideoList)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, int64(0), page.Pagination.TotalCount)
}

func TestAggregate_MissingScopeIsPreconditionError(t *testing.T) {
	s := New()

	_, err := run(t, s, defaults(domain.QueryRequest{ScopeID: uuid.NewString()}), pipeline.VideoComments)

	assert.ErrorIs(t, err, apperrors.ErrPreconditionNotFound)
}

func TestAggregate_CountMatchesUnpagedRows(t *testing.T) {
	s := New()
	ana := seedUser(t, s, "ana")
	bob := seedUser(t, s, "bob")
	for i := 0; i < 23; i++ {
		owner := ana
		if i%3 == 0 {
			owner = bob
		}
		seedVideo(t, s, owner, fmt.Sprintf("clip %d", i), i, i%4 != 0)
	}

	requests := []struct {
		profile pipeline.Profile
		req     domain.QueryRequest
	}{
		{pipeline.VideoList, domain.DefaultQuery()},
		{pipeline.VideoList, defaults(domain.QueryRequest{Query: "clip 1"})},
		{pipeline.VideoList, defaults(domain.QueryRequest{UserID: bob, Limit: 3})},
		{pipeline.ChannelVideos, defaults(domain.QueryRequest{ScopeID: ana, Limit: 4, Page: 2})},
		{pipeline.ChannelVideos, defaults(domain.QueryRequest{ScopeID: bob, Query: "nothing"})},
	}

	for _, r := range requests {
		plan, err := pipeline.Build(r.req, r.profile)
		require.NoError(t, err)

		unpaged := make([]pipeline.Stage, 0, len(plan.Stages))
		for _, st := range plan.Stages {
			switch st.(type) {
			case pipeline.Skip, pipeline.Limit:
				continue
			}
			unpaged = append(unpaged, st)
		}
		all, err := s.Aggregate(context.Background(), plan.Collection, unpaged)
		require.NoError(t, err)

		counted, err := s.Aggregate(context.Background(), plan.Collection, pipeline.CountStages(plan.Stages))
		require.NoError(t, err)
		require.Len(t, counted, 1)
		assert.Equal(t, int64(len(all)), counted[0].Int64(pipeline.CountField))
	}
}

func TestAggregate_ChannelStats(t *testing.T) {
	ctx := context.Background()
	s := New()
	ana := seedUser(t, s, "ana")
	seedVideo(t, s, ana, "a", 1, true)  // 10 views
	seedVideo(t, s, ana, "b", 2, true)  // 20 views
	seedVideo(t, s, ana, "c", 3, false) // 30 views
	for i := 0; i < 3; i++ {
		require.NoError(t, s.InsertRelation(ctx, &domain.Relation{
			ID: uuid.NewString(), SubjectID: uuid.NewString(), Kind: domain.TargetChannel, TargetID: ana, CreatedAt: base,
		}))
	}
	require.NoError(t, s.InsertRelation(ctx, &domain.Relation{
		ID: uuid.NewString(), SubjectID: uuid.NewString(), Kind: domain.TargetVideo, TargetID: ana, CreatedAt: base,
	}))

	stages, err := pipeline.ChannelStats(ana)
	require.NoError(t, err)
	stats, err := pipeline.NewExecutor(s, s).One(ctx, domain.CollectionUsers, stages, "channel")
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.Int64("total_videos"))
	assert.Equal(t, int64(3), stats.Int64("total_subscribers"))
	assert.Equal(t, int64(60), stats.Int64("total_views"))
	assert.NotContains(t, stats, "video_stats")
}

func TestAggregate_ConcurrentReadsAndWrites(t *testing.T) {
	s := New()
	ana := seedUser(t, s, "ana")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			seedVideo(t, s, ana, fmt.Sprintf("v%d", i), i, true)
		}(i)
		go func() {
			defer wg.Done()
			_, err := run(t, s, domain.DefaultQuery(), pipeline.VideoList)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	page, err := run(t, s, defaults(domain.QueryRequest{Limit: 100}), pipeline.VideoList)
	require.NoError(t, err)
	assert.Len(t, page.Items, 8)
}
