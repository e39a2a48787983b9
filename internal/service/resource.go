package service

import (
	"context"
	"time"

	"vidshare/internal/domain"
	apperrors "vidshare/internal/errors"
	"vidshare/internal/metrics"
	"vidshare/internal/pipeline"
	"vidshare/internal/repository"
	"vidshare/pkg/logger"
)

// Invalidator drops cached existence answers for deleted resources.
type Invalidator interface {
	Invalidate(ctx context.Context, coll domain.Collection, id string) error
}

// ResourceService owns the mutating flows on videos, comments, tweets and
// playlists. Each mutation of an existing resource checks, in order: a
// principal is present, the resource exists, the principal owns it.
type ResourceService struct {
	store  repository.Backend
	cache  Invalidator
	logger *logger.Logger
	now    func() time.Time
}

// NewResourceService creates the service. cache may be nil.
func NewResourceService(store repository.Backend, cache Invalidator, log *logger.Logger) *ResourceService {
	return &ResourceService{
		store:  store,
		cache:  cache,
		logger: log,
		now:    time.Now,
	}
}

// ==================== VIDEOS ====================

func (s *ResourceService) CreateVideo(ctx context.Context, principal *domain.Principal, in *domain.NewVideo) (domain.Document, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	return s.create(ctx, domain.CollectionVideos, in.Document(principal.ID, s.now()))
}

func (s *ResourceService) UpdateVideo(ctx context.Context, principal *domain.Principal, videoID string, in *domain.VideoUpdate) (domain.Document, error) {
	if _, err := ownedResource(ctx, s.store, principal, domain.CollectionVideos, "videoId", videoID, domain.ActionUpdate); err != nil {
		return nil, err
	}
	patch, err := in.Patch()
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	return s.store.UpdateByID(ctx, domain.CollectionVideos, videoID, patch.Touch(s.now()))
}

func (s *ResourceService) DeleteVideo(ctx context.Context, principal *domain.Principal, videoID string) error {
	if _, err := ownedResource(ctx, s.store, principal, domain.CollectionVideos, "videoId", videoID, domain.ActionDelete); err != nil {
		return err
	}
	return s.delete(ctx, domain.CollectionVideos, videoID)
}

// TogglePublish flips is_published and returns the updated video.
func (s *ResourceService) TogglePublish(ctx context.Context, principal *domain.Principal, videoID string) (domain.Document, error) {
	video, err := ownedResource(ctx, s.store, principal, domain.CollectionVideos, "videoId", videoID, domain.ActionPublish)
	if err != nil {
		return nil, err
	}
	patch := domain.Patch{Set: map[string]any{domain.FieldIsPublished: !video.Bool(domain.FieldIsPublished)}}
	return s.store.UpdateByID(ctx, domain.CollectionVideos, videoID, patch.Touch(s.now()))
}

// ==================== COMMENTS ====================

// AddComment stores the comment, then increments the video's
// comments_count. A failed increment is reported; the comment stays.
func (s *ResourceService) AddComment(ctx context.Context, principal *domain.Principal, videoID string, in *domain.NewComment) (domain.Document, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if err := pipeline.ValidateID("videoId", videoID); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	exists, err := s.store.Exists(ctx, domain.CollectionVideos, videoID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperrors.NotFound("video not found")
	}

	doc, err := s.create(ctx, domain.CollectionComments, in.Document(videoID, principal.ID, s.now()))
	if err != nil {
		return nil, err
	}
	if err := s.store.AdjustCounter(ctx, domain.CollectionVideos, videoID, domain.FieldCommentsCount, 1); err != nil {
		s.logger.WithContext(ctx).Error("comment stored but comments_count not incremented",
			"video_id", videoID, "comment_id", doc.String(domain.FieldID), "error", err)
		return nil, err
	}
	return doc, nil
}

func (s *ResourceService) UpdateComment(ctx context.Context, principal *domain.Principal, commentID string, in *domain.ContentUpdate) (domain.Document, error) {
	if _, err := ownedResource(ctx, s.store, principal, domain.CollectionComments, "commentId", commentID, domain.ActionUpdate); err != nil {
		return nil, err
	}
	patch, err := in.Patch(domain.MaxCommentLength)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	return s.store.UpdateByID(ctx, domain.CollectionComments, commentID, patch.Touch(s.now()))
}

// DeleteComment removes the comment and decrements its video's
// comments_count.
func (s *ResourceService) DeleteComment(ctx context.Context, principal *domain.Principal, commentID string) error {
	comment, err := ownedResource(ctx, s.store, principal, domain.CollectionComments, "commentId", commentID, domain.ActionDelete)
	if err != nil {
		return err
	}
	if err := s.delete(ctx, domain.CollectionComments, commentID); err != nil {
		return err
	}

	videoID := comment.String(domain.FieldVideoID)
	err = s.store.AdjustCounter(ctx, domain.CollectionVideos, videoID, domain.FieldCommentsCount, -1)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		// The video went first.
		return nil
	}
	return err
}

// ==================== TWEETS ====================

func (s *ResourceService) CreateTweet(ctx context.Context, principal *domain.Principal, in *domain.NewTweet) (domain.Document, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	return s.create(ctx, domain.CollectionTweets, in.Document(principal.ID, s.now()))
}

func (s *ResourceService) UpdateTweet(ctx context.Context, principal *domain.Principal, tweetID string, in *domain.ContentUpdate) (domain.Document, error) {
	if _, err := ownedResource(ctx, s.store, principal, domain.CollectionTweets, "tweetId", tweetID, domain.ActionUpdate); err != nil {
		return nil, err
	}
	patch, err := in.Patch(0)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	return s.store.UpdateByID(ctx, domain.CollectionTweets, tweetID, patch.Touch(s.now()))
}

func (s *ResourceService) DeleteTweet(ctx context.Context, principal *domain.Principal, tweetID string) error {
	if _, err := ownedResource(ctx, s.store, principal, domain.CollectionTweets, "tweetId", tweetID, domain.ActionDelete); err != nil {
		return err
	}
	return s.delete(ctx, domain.CollectionTweets, tweetID)
}

// ==================== PLAYLISTS ====================

func (s *ResourceService) CreatePlaylist(ctx context.Context, principal *domain.Principal, in *domain.NewPlaylist) (domain.Document, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	return s.create(ctx, domain.CollectionPlaylists, in.Document(principal.ID, s.now()))
}

func (s *ResourceService) DeletePlaylist(ctx context.Context, principal *domain.Principal, playlistID string) error {
	if _, err := ownedResource(ctx, s.store, principal, domain.CollectionPlaylists, "playlistId", playlistID, domain.ActionDelete); err != nil {
		return err
	}
	return s.delete(ctx, domain.CollectionPlaylists, playlistID)
}

// AddToPlaylist adds videoID to the playlist; adding it twice is a no-op.
func (s *ResourceService) AddToPlaylist(ctx context.Context, principal *domain.Principal, videoID, playlistID string) (domain.Document, error) {
	if err := s.checkPlaylistVideo(ctx, principal, videoID, playlistID, domain.ActionAddChild); err != nil {
		return nil, err
	}
	patch := domain.Patch{AddToSet: map[string]string{domain.FieldVideos: videoID}}
	return s.store.UpdateByID(ctx, domain.CollectionPlaylists, playlistID, patch.Touch(s.now()))
}

// RemoveFromPlaylist removes videoID; removing an absent video is a no-op.
func (s *ResourceService) RemoveFromPlaylist(ctx context.Context, principal *domain.Principal, videoID, playlistID string) (domain.Document, error) {
	if err := s.checkPlaylistVideo(ctx, principal, videoID, playlistID, domain.ActionRemoveChild); err != nil {
		return nil, err
	}
	patch := domain.Patch{Pull: map[string]string{domain.FieldVideos: videoID}}
	return s.store.UpdateByID(ctx, domain.CollectionPlaylists, playlistID, patch.Touch(s.now()))
}

// checkPlaylistVideo guards playlist membership changes. The playlist is
// checked for existence and ownership before the video is looked up, so a
// non-owner gets 403 even for a video that does not exist.
func (s *ResourceService) checkPlaylistVideo(ctx context.Context, principal *domain.Principal, videoID, playlistID string, action domain.Action) error {
	if err := requirePrincipal(principal); err != nil {
		return err
	}
	if err := pipeline.ValidateID("videoId", videoID); err != nil {
		return err
	}
	if _, err := ownedResource(ctx, s.store, principal, domain.CollectionPlaylists, "playlistId", playlistID, action); err != nil {
		return err
	}
	exists, err := s.store.Exists(ctx, domain.CollectionVideos, videoID)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.NotFound("video not found")
	}
	return nil
}

// ==================== HELPERS ====================

func (s *ResourceService) create(ctx context.Context, coll domain.Collection, doc domain.Document) (domain.Document, error) {
	if err := s.store.InsertOne(ctx, coll, doc); err != nil {
		return nil, err
	}
	metrics.RecordCreated(string(coll))
	s.logger.WithContext(ctx).Debug("resource created", "collection", coll, "id", doc.String(domain.FieldID))
	return doc, nil
}

func (s *ResourceService) delete(ctx context.Context, coll domain.Collection, id string) error {
	removed, err := s.store.DeleteByID(ctx, coll, id)
	if err != nil {
		return err
	}
	if !removed {
		return apperrors.NotFoundf("%s not found", coll.Singular())
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, coll, id); err != nil {
			s.logger.WithContext(ctx).Warn("failed to invalidate existence cache", "collection", coll, "id", id, "error", err)
		}
	}
	return nil
}
