package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidshare/internal/domain"
	apperrors "vidshare/internal/errors"
)

func TestGetVideo_CountsViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	videoID := f.video(t, alice)

	for want := int64(1); want <= 2; want++ {
		video, err := f.queries.GetVideo(ctx, videoID)
		require.NoError(t, err)
		assert.Equal(t, want, video.Int64(domain.FieldViews))

		owner, ok := video[domain.FieldOwner].(domain.Document)
		require.True(t, ok, "owner is joined")
		assert.Equal(t, "alice", owner.String(domain.FieldUsername))
	}

	_, err := f.queries.GetVideo(ctx, uuid.NewString())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.queries.GetVideo(ctx, "123")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestVideoComments_Paginated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	videoID := f.video(t, alice)
	for range 25 {
		_, err := f.resources.AddComment(ctx, alice, videoID, &domain.NewComment{Content: "c"})
		require.NoError(t, err)
	}

	page, err := f.queries.VideoComments(ctx, videoID, defaults(domain.QueryRequest{Page: 3, Limit: 10}))
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)
	assert.Equal(t, domain.PageMeta{
		CurrentPage: 3,
		TotalPages:  3,
		TotalCount:  25,
		HasPrevPage: true,
		HasNextPage: false,
	}, page.Pagination)

	_, err = f.queries.VideoComments(ctx, uuid.NewString(), domain.DefaultQuery())
	assert.ErrorIs(t, err, apperrors.ErrPreconditionNotFound)

	_, err = f.queries.VideoComments(ctx, "nope", domain.DefaultQuery())
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestSocialLists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	videoID := f.video(t, alice)

	_, err := f.toggles.Toggle(ctx, bob, "channel", alice.ID)
	require.NoError(t, err)
	_, err = f.toggles.Toggle(ctx, bob, "video", videoID)
	require.NoError(t, err)

	subs, err := f.queries.ChannelSubscribers(ctx, alice.ID, domain.DefaultQuery())
	require.NoError(t, err)
	require.Len(t, subs.Items, 1)
	assert.Equal(t, "bob", subs.Items[0]["subscriber"].(domain.Document).String(domain.FieldUsername))

	channels, err := f.queries.SubscribedChannels(ctx, bob.ID, domain.DefaultQuery())
	require.NoError(t, err)
	require.Len(t, channels.Items, 1)
	channel := channels.Items[0]["channel"].(domain.Document)
	assert.Equal(t, alice.ID, channel.String(domain.FieldID))
	assert.Equal(t, int64(1), channel.Int64(domain.FieldSubscribersCount))

	liked, err := f.queries.LikedVideos(ctx, bob.ID, domain.DefaultQuery())
	require.NoError(t, err)
	require.Len(t, liked.Items, 1)
	assert.Equal(t, videoID, liked.Items[0]["video"].(domain.Document).String(domain.FieldID))

	stats, err := f.queries.ChannelStats(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Int64("total_videos"))
	assert.Equal(t, int64(1), stats.Int64("total_subscribers"))
}

func TestListing_ByOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	f.video(t, alice)
	f.video(t, bob)

	_, err := f.resources.CreateTweet(ctx, alice, &domain.NewTweet{Content: "one"})
	require.NoError(t, err)
	_, err = f.resources.CreatePlaylist(ctx, bob, &domain.NewPlaylist{Name: "n", Description: "d"})
	require.NoError(t, err)

	all, err := f.queries.Videos(ctx, domain.DefaultQuery())
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Pagination.TotalCount)

	mine, err := f.queries.Videos(ctx, defaults(domain.QueryRequest{UserID: alice.ID}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), mine.Pagination.TotalCount)

	tweets, err := f.queries.UserTweets(ctx, alice.ID, domain.DefaultQuery())
	require.NoError(t, err)
	assert.Len(t, tweets.Items, 1)

	playlists, err := f.queries.UserPlaylists(ctx, alice.ID, domain.DefaultQuery())
	require.NoError(t, err)
	assert.Empty(t, playlists.Items)

	channelVideos, err := f.queries.ChannelVideos(ctx, bob.ID, defaults(domain.QueryRequest{SortType: "views", SortBy: domain.SortAsc}))
	require.NoError(t, err)
	assert.Len(t, channelVideos.Items, 1)
}
