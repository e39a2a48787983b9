package service

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
	"vidshare/pkg/logger"
)

// ==================== GUARD ====================

func TestAuthorize(t *testing.T) {
	owner := &domain.Principal{ID: "u1"}
	resource := domain.Document{domain.FieldOwnerID: "u1"}

	tests := []struct {
		name      string
		resource  domain.Document
		principal *domain.Principal
		want      bool
	}{
		{name: "owner", resource: resource, principal: owner, want: true},
		{name: "other principal", resource: resource, principal: &domain.Principal{ID: "u2"}, want: false},
		{name: "nil principal", resource: resource, principal: nil, want: false},
		{name: "empty principal id", resource: domain.Document{domain.FieldOwnerID: ""}, principal: &domain.Principal{}, want: false},
		{name: "ownerless resource", resource: domain.Document{}, principal: owner, want: false},
		{name: "nil resource", resource: nil, principal: owner, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, action := range []domain.Action{domain.ActionUpdate, domain.ActionDelete, domain.ActionPublish, domain.ActionAddChild} {
				assert.Equal(t, tt.want, Authorize(tt.resource, tt.principal, action))
			}
		})
	}
}

// ==================== OWNERSHIP ====================

func TestMutations_CheckOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, mallory := f.user(t, "alice"), f.user(t, "mallory")
	videoID := f.video(t, alice)
	title := "hijacked"

	tests := []struct {
		name      string
		principal *domain.Principal
		videoID   string
		want      error
	}{
		{name: "anonymous", principal: nil, videoID: videoID, want: apperrors.ErrUnauthenticated},
		{name: "malformed id", principal: mallory, videoID: "1", want: apperrors.ErrValidation},
		{name: "missing before forbidden", principal: mallory, videoID: uuid.NewString(), want: apperrors.ErrNotFound},
		{name: "non-owner", principal: mallory, videoID: videoID, want: apperrors.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.resources.UpdateVideo(ctx, tt.principal, tt.videoID, &domain.VideoUpdate{Title: &title})
			assert.ErrorIs(t, err, tt.want)

			_, err = f.resources.TogglePublish(ctx, tt.principal, tt.videoID)
			assert.ErrorIs(t, err, tt.want)

			err = f.resources.DeleteVideo(ctx, tt.principal, tt.videoID)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	video := f.doc(t, domain.CollectionVideos, videoID)
	require.NotNil(t, video)
	assert.Equal(t, "Intro", video.String(domain.FieldTitle))
	assert.True(t, video.Bool(domain.FieldIsPublished))
}

func TestVideo_OwnerFlows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	videoID := f.video(t, alice)

	title := "  Renamed  "
	updated, err := f.resources.UpdateVideo(ctx, alice, videoID, &domain.VideoUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.String(domain.FieldTitle))
	assert.Equal(t, "first video", updated.String(domain.FieldDescription))

	_, err = f.resources.UpdateVideo(ctx, alice, videoID, &domain.VideoUpdate{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	toggled, err := f.resources.TogglePublish(ctx, alice, videoID)
	require.NoError(t, err)
	assert.False(t, toggled.Bool(domain.FieldIsPublished))

	require.NoError(t, f.resources.DeleteVideo(ctx, alice, videoID))
	assert.Nil(t, f.doc(t, domain.CollectionVideos, videoID))
}

func TestCreateVideo_Validation(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")

	_, err := f.resources.CreateVideo(context.Background(), alice, &domain.NewVideo{
		Title:       "x",
		Description: "y",
		VideoFile:   "ftp://files/v.mp4",
		Thumbnail:   "https://cdn.example.com/t.png",
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.resources.CreateVideo(context.Background(), nil, &domain.NewVideo{})
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

// ==================== COMMENTS ====================

func TestComments_CountFollowsCreateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	videoID := f.video(t, alice)

	c1, err := f.resources.AddComment(ctx, bob, videoID, &domain.NewComment{Content: "nice"})
	require.NoError(t, err)
	_, err = f.resources.AddComment(ctx, alice, videoID, &domain.NewComment{Content: "thanks"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.doc(t, domain.CollectionVideos, videoID).Int64(domain.FieldCommentsCount))

	err = f.resources.DeleteComment(ctx, alice, c1.String(domain.FieldID))
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	require.NoError(t, f.resources.DeleteComment(ctx, bob, c1.String(domain.FieldID)))
	assert.Equal(t, int64(1), f.doc(t, domain.CollectionVideos, videoID).Int64(domain.FieldCommentsCount))
}

func TestAddComment_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	videoID := f.video(t, alice)

	_, err := f.resources.AddComment(ctx, alice, uuid.NewString(), &domain.NewComment{Content: "hi"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	long := make([]rune, domain.MaxCommentLength+1)
	for i := range long {
		long[i] = 'é'
	}
	_, err = f.resources.AddComment(ctx, alice, videoID, &domain.NewComment{Content: string(long)})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.resources.AddComment(ctx, alice, videoID, &domain.NewComment{Content: "   "})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	assert.Zero(t, f.doc(t, domain.CollectionVideos, videoID).Int64(domain.FieldCommentsCount))
}

func TestUpdateComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	videoID := f.video(t, alice)
	c, err := f.resources.AddComment(ctx, alice, videoID, &domain.NewComment{Content: "frist"})
	require.NoError(t, err)

	updated, err := f.resources.UpdateComment(ctx, alice, c.String(domain.FieldID), &domain.ContentUpdate{Content: "first"})
	require.NoError(t, err)
	assert.Equal(t, "first", updated.String(domain.FieldContent))
}

// ==================== TWEETS ====================

func TestTweets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	tweet, err := f.resources.CreateTweet(ctx, alice, &domain.NewTweet{Content: "hello"})
	require.NoError(t, err)
	id := tweet.String(domain.FieldID)

	_, err = f.resources.UpdateTweet(ctx, bob, id, &domain.ContentUpdate{Content: "mine now"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	updated, err := f.resources.UpdateTweet(ctx, alice, id, &domain.ContentUpdate{Content: "hello world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", updated.String(domain.FieldContent))
	assert.Equal(t, epoch, updated[domain.FieldUpdatedAt])

	require.NoError(t, f.resources.DeleteTweet(ctx, alice, id))
	assert.ErrorIs(t, f.resources.DeleteTweet(ctx, alice, id), apperrors.ErrNotFound)
}

// ==================== PLAYLISTS ====================

func TestPlaylists_SetSemantics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	videoID := f.video(t, bob)

	pl, err := f.resources.CreatePlaylist(ctx, alice, &domain.NewPlaylist{Name: "Watch later", Description: "stuff"})
	require.NoError(t, err)
	plID := pl.String(domain.FieldID)

	for range 2 {
		_, err = f.resources.AddToPlaylist(ctx, alice, videoID, plID)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{videoID}, f.doc(t, domain.CollectionPlaylists, plID)[domain.FieldVideos])

	_, err = f.resources.AddToPlaylist(ctx, bob, videoID, plID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.resources.AddToPlaylist(ctx, alice, uuid.NewString(), plID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	for range 2 {
		_, err = f.resources.RemoveFromPlaylist(ctx, alice, videoID, plID)
		require.NoError(t, err)
	}
	assert.Empty(t, f.doc(t, domain.CollectionPlaylists, plID)[domain.FieldVideos])

	_, err = f.resources.CreatePlaylist(ctx, alice, &domain.NewPlaylist{Name: "only name"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestPlaylistVideo_CheckOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	pl, err := f.resources.CreatePlaylist(ctx, alice, &domain.NewPlaylist{Name: "mix", Description: "favs"})
	require.NoError(t, err)
	plID := pl.String(domain.FieldID)
	missingVideo := uuid.NewString()

	// Playlist existence, then ownership, then the video.
	_, err = f.resources.AddToPlaylist(ctx, bob, missingVideo, uuid.NewString())
	assert.EqualError(t, err, "playlist not found")

	_, err = f.resources.AddToPlaylist(ctx, bob, missingVideo, plID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.resources.RemoveFromPlaylist(ctx, alice, missingVideo, plID)
	assert.EqualError(t, err, "video not found")
}

func TestDelete_InvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	cache := new(MockInvalidator)
	svc := NewResourceService(f.store, cache, logger.Discard())

	pl, err := svc.CreatePlaylist(ctx, alice, &domain.NewPlaylist{Name: "a", Description: "b"})
	require.NoError(t, err)
	id := pl.String(domain.FieldID)

	cache.On("Invalidate", mock.Anything, domain.CollectionPlaylists, id).Return(errors.New("redis down")).Once()

	require.NoError(t, svc.DeletePlaylist(ctx, alice, id))
	cache.AssertExpectations(t)
}
