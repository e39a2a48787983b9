package service

import (
	"context"

	"vidshare/internal/domain"
	apperrors "vidshare/internal/errors"
	"vidshare/internal/pipeline"
	"vidshare/internal/repository"
)

// QueryService serves every read endpoint. Lists go through a profile;
// single documents through ByID or a dedicated builder.
type QueryService struct {
	exec  *pipeline.Executor
	store repository.Store
}

func NewQueryService(exec *pipeline.Executor, store repository.Store) *QueryService {
	return &QueryService{exec: exec, store: store}
}

// List builds and runs the list plan of profile.
func (s *QueryService) List(ctx context.Context, profile pipeline.Profile, req domain.QueryRequest) (*domain.Page, error) {
	plan, err := pipeline.Build(req, profile)
	if err != nil {
		return nil, err
	}
	return s.exec.Execute(ctx, plan)
}

func (s *QueryService) Videos(ctx context.Context, req domain.QueryRequest) (*domain.Page, error) {
	return s.List(ctx, pipeline.VideoList, req)
}

// ChannelVideos lists the published videos of a channel.
func (s *QueryService) ChannelVideos(ctx context.Context, channelID string, req domain.QueryRequest) (*domain.Page, error) {
	return s.scoped(ctx, pipeline.ChannelVideos, "channelId", channelID, req)
}

func (s *QueryService) VideoComments(ctx context.Context, videoID string, req domain.QueryRequest) (*domain.Page, error) {
	return s.scoped(ctx, pipeline.VideoComments, "videoId", videoID, req)
}

func (s *QueryService) UserTweets(ctx context.Context, userID string, req domain.QueryRequest) (*domain.Page, error) {
	return s.scoped(ctx, pipeline.UserTweets, "userId", userID, req)
}

func (s *QueryService) UserPlaylists(ctx context.Context, userID string, req domain.QueryRequest) (*domain.Page, error) {
	return s.scoped(ctx, pipeline.UserPlaylists, "userId", userID, req)
}

func (s *QueryService) ChannelSubscribers(ctx context.Context, channelID string, req domain.QueryRequest) (*domain.Page, error) {
	return s.scoped(ctx, pipeline.ChannelSubscribers, "channelId", channelID, req)
}

func (s *QueryService) SubscribedChannels(ctx context.Context, subscriberID string, req domain.QueryRequest) (*domain.Page, error) {
	return s.scoped(ctx, pipeline.SubscribedChannels, "subscriberId", subscriberID, req)
}

func (s *QueryService) LikedVideos(ctx context.Context, userID string, req domain.QueryRequest) (*domain.Page, error) {
	return s.scoped(ctx, pipeline.LikedVideos, "userId", userID, req)
}

func (s *QueryService) scoped(ctx context.Context, profile pipeline.Profile, param, id string, req domain.QueryRequest) (*domain.Page, error) {
	if err := pipeline.ValidateID(param, id); err != nil {
		return nil, err
	}
	req.ScopeID = id
	return s.List(ctx, profile, req)
}

// GetVideo returns a video with its owner and counts the view.
func (s *QueryService) GetVideo(ctx context.Context, videoID string) (domain.Document, error) {
	if err := pipeline.ValidateID("videoId", videoID); err != nil {
		return nil, err
	}
	if _, err := s.store.UpdateByID(ctx, domain.CollectionVideos, videoID, domain.Patch{
		Inc: map[string]int64{domain.FieldViews: 1},
	}); err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("video not found")
		}
		return nil, err
	}

	stages, err := pipeline.ByID(pipeline.VideoList, videoID)
	if err != nil {
		return nil, err
	}
	return s.exec.One(ctx, domain.CollectionVideos, stages, "video")
}

// ChannelStats returns the dashboard totals of a channel.
func (s *QueryService) ChannelStats(ctx context.Context, channelID string) (domain.Document, error) {
	stages, err := pipeline.ChannelStats(channelID)
	if err != nil {
		return nil, err
	}
	return s.exec.One(ctx, domain.CollectionUsers, stages, "channel")
}
