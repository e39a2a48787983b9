package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"vidshare/internal/domain"
	apperrors "vidshare/internal/errors"
	"vidshare/pkg/logger"
	"vidshare/pkg/validator"
)

// QueryService defines the read operations needed by the handler
type QueryService interface {
	Videos(ctx context.Context, req domain.QueryRequest) (*domain.Page, error)
	ChannelVideos(ctx context.Context, channelID string, req domain.QueryRequest) (*domain.Page, error)
	VideoComments(ctx context.Context, videoID string, req domain.QueryRequest) (*domain.Page, error)
	UserTweets(ctx context.Context, userID string, req domain.QueryRequest) (*domain.Page, error)
	UserPlaylists(ctx context.Context, userID string, req domain.QueryRequest) (*domain.Page, error)
	ChannelSubscribers(ctx context.Context, channelID string, req domain.QueryRequest) (*domain.Page, error)
	SubscribedChannels(ctx context.Context, subscriberID string, req domain.QueryRequest) (*domain.Page, error)
	LikedVideos(ctx context.Context, userID string, req domain.QueryRequest) (*domain.Page, error)
	GetVideo(ctx context.Context, videoID string) (domain.Document, error)
	ChannelStats(ctx context.Context, channelID string) (domain.Document, error)
}

// ToggleService flips likes and subscriptions
type ToggleService interface {
	Toggle(ctx context.Context, principal *domain.Principal, kind, targetID string) (*domain.ToggleResult, error)
}

// ResourceService defines the mutating operations needed by the handler
type ResourceService interface {
	CreateVideo(ctx context.Context, principal *domain.Principal, in *domain.NewVideo) (domain.Document, error)
	UpdateVideo(ctx context.Context, principal *domain.Principal, videoID string, in *domain.VideoUpdate) (domain.Document, error)
	DeleteVideo(ctx context.Context, principal *domain.Principal, videoID string) error
	TogglePublish(ctx context.Context, principal *domain.Principal, videoID string) (domain.Document, error)

	AddComment(ctx context.Context, principal *domain.Principal, videoID string, in *domain.NewComment) (domain.Document, error)
	UpdateComment(ctx context.Context, principal *domain.Principal, commentID string, in *domain.ContentUpdate) (domain.Document, error)
	DeleteComment(ctx context.Context, principal *domain.Principal, commentID string) error

	CreateTweet(ctx context.Context, principal *domain.Principal, in *domain.NewTweet) (domain.Document, error)
	UpdateTweet(ctx context.Context, principal *domain.Principal, tweetID string, in *domain.ContentUpdate) (domain.Document, error)
	DeleteTweet(ctx context.Context, principal *domain.Principal, tweetID string) error

	CreatePlaylist(ctx context.Context, principal *domain.Principal, in *domain.NewPlaylist) (domain.Document, error)
	DeletePlaylist(ctx context.Context, principal *domain.Principal, playlistID string) error
	AddToPlaylist(ctx context.Context, principal *domain.Principal, videoID, playlistID string) (domain.Document, error)
	RemoveFromPlaylist(ctx context.Context, principal *domain.Principal, videoID, playlistID string) (domain.Document, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	queries   QueryService
	toggles   ToggleService
	resources ResourceService
	validate  *validator.Validator
	logger    *logger.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(queries QueryService, toggles ToggleService, resources ResourceService, log *logger.Logger) *Handler {
	return &Handler{
		queries:   queries,
		toggles:   toggles,
		resources: resources,
		validate:  validator.New(),
		logger:    log,
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	respondError(w, r, h.logger, err)
}

// bind decodes and validates a JSON body.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		h.fail(w, r, err)
		return false
	}
	if err := h.validate.Validate(dst); err != nil {
		h.fail(w, r, err)
		return false
	}
	return true
}

// parseQueryRequest reads the list parameters over domain.DefaultQuery.
// Omitted parameters keep their default; only malformed numbers are
// rejected here.
func parseQueryRequest(r *http.Request) (domain.QueryRequest, error) {
	q := r.URL.Query()
	req := domain.DefaultQuery()
	if v := q.Get("sortBy"); v != "" {
		req.SortBy = domain.SortDirection(v)
	}
	if v := q.Get("sortType"); v != "" {
		req.SortType = v
	}
	req.Query = q.Get("query")
	req.UserID = q.Get("userId")

	// An explicit page or limit, zero included, is the caller's value and is
	// range checked by the pipeline builder.
	details := map[string]string{}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &req.Page}, {"limit", &req.Limit}} {
		if !q.Has(p.name) {
			continue
		}
		n, err := strconv.Atoi(q.Get(p.name))
		if err != nil {
			details[p.name] = "must be an integer"
			continue
		}
		*p.dst = n
	}
	if len(details) > 0 {
		return req, apperrors.ValidationWithDetails("invalid query parameters", details)
	}
	return req, nil
}

type listFunc func(ctx context.Context, scopeID string, req domain.QueryRequest) (*domain.Page, error)

// list serves a paginated endpoint whose scope comes from the path param.
func (h *Handler) list(param string, fn listFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseQueryRequest(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		page, err := fn(r.Context(), chi.URLParam(r, param), req)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		respondSuccess(w, http.StatusOK, page, "")
	}
}

// ==================== VIDEOS ====================

// ListVideos handles GET /videos
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	h.list("", func(ctx context.Context, _ string, req domain.QueryRequest) (*domain.Page, error) {
		return h.queries.Videos(ctx, req)
	})(w, r)
}

// GetVideo handles GET /videos/{videoId}
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	video, err := h.queries.GetVideo(r.Context(), chi.URLParam(r, "videoId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, video, "")
}

// CreateVideo handles POST /videos
func (h *Handler) CreateVideo(w http.ResponseWriter, r *http.Request) {
	var in domain.NewVideo
	if !h.bind(w, r, &in) {
		return
	}
	video, err := h.resources.CreateVideo(r.Context(), PrincipalFromContext(r.Context()), &in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, video, "video published")
}

// UpdateVideo handles PATCH /videos/{videoId}
func (h *Handler) UpdateVideo(w http.ResponseWriter, r *http.Request) {
	var in domain.VideoUpdate
	if !h.bind(w, r, &in) {
		return
	}
	video, err := h.resources.UpdateVideo(r.Context(), PrincipalFromContext(r.Context()), chi.URLParam(r, "videoId"), &in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, video, "video updated")
}

// DeleteVideo handles DELETE /videos/{videoId}
func (h *Handler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	if err := h.resources.DeleteVideo(r.Context(), PrincipalFromContext(r.Context()), chi.URLParam(r, "videoId")); err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, nil, "video deleted")
}

// TogglePublish handles PATCH /videos/toggle/publish/{videoId}
func (h *Handler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	video, err := h.resources.TogglePublish(r.Context(), PrincipalFromContext(r.Context()), chi.URLParam(r, "videoId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, video, "publish status toggled")
}

// ==================== COMMENTS ====================

// ListComments handles GET /comments/{videoId}
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	h.list("videoId", h.queries.VideoComments)(w, r)
}

// AddComment handles POST /comments/{videoId}
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	var in domain.NewComment
	if !h.bind(w, r, &in) {
		return
	}
	comment, err := h.resources.AddComment(r.Context(), PrincipalFromContext(r.Context()), chi.URLParam(r, "videoId"), &in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, comment, "comment added")
}

// UpdateComment handles PATCH /comments/c/{commentId}
func (h *Handler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	var in domain.ContentUpdate
	if !h.bind(w, r, &in) {
		return
	}
	comment, err := h.resources.UpdateComment(r.Context(), PrincipalFromContext(r.Context()), chi.URLParam(r, "commentId"), &in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, comment, "comment updated")
}

// DeleteComment handles DELETE /comments/c/{commentId}
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.resources.DeleteComment(r.Context(), PrincipalFromContext(r.Context()), chi.URLParam(r, "commentId")); err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, nil, "comment deleted")
}

// ==================== TWEETS ====================

// CreateTweet handles POST /tweets
func (h *Handler) CreateTweet(w http.ResponseWriter, r *http.Request) {
	var in domain.NewTweet
	if !h.bind(w, r, &in) {
		return
	}
	tweet, err := h.resources.CreateTweet(r.Context(), PrincipalFromContext(r.Context()), &in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, tweet, "tweet created")
}

// ListUserTweets handles GET /tweets/user/{userId}
func (h *Handler) ListUserTweets(w http.ResponseWriter, r *http.Request) {
	h.list("userId", h.queries.UserTweets)(w, r)
}

// UpdateTweet handles PATCH /tweets/{tweetId}
func (h *Handler) UpdateTweet(w http.ResponseWriter, r *http.Request) {
	var in domain.ContentUpdate
	if !h.bind(w, r, &in) {
		return
	}
	tweet, err := h.resources.UpdateTweet(r.Context(), PrincipalFromContext(r.Context()), chi.URLParam(r, "tweetId"), &in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, tweet, "tweet updated")
}

// DeleteTweet handles DELETE /tweets/{tweetId}
func (h *Handler) DeleteTweet(w http.ResponseWriter, r *http.Request) {
	if err := h.resources.DeleteTweet(r.Context(), PrincipalFromContext(r.Context()), chi.URLParam(r, "tweetId")); err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, nil, "tweet deleted")
}

// ==================== LIKES & SUBSCRIPTIONS ====================

// likeKinds maps the short path segment of the like routes to a target kind.
var likeKinds = map[string]domain.TargetKind{
	"v": domain.TargetVideo,
	"c": domain.TargetComment,
	"t": domain.TargetTweet,
}

// ToggleLike handles POST /likes/toggle/{kind}/{targetId}
func (h *Handler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	kind, ok := likeKinds[chi.URLParam(r, "kind")]
	if !ok {
		h.fail(w, r, apperrors.Validation("like target must be one of: v, c, t"))
		return
	}
	h.toggle(w, r, kind, chi.URLParam(r, "targetId"))
}

// ToggleSubscription handles POST /subscriptions/c/{channelId}
func (h *Handler) ToggleSubscription(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, domain.TargetChannel, chi.URLParam(r, "channelId"))
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, kind domain.TargetKind, targetID string) {
	res, err := h.toggles.Toggle(r.Context(), PrincipalFromContext(r.Context()), string(kind), targetID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	message := kind.Verb() + " removed"
	if res.NowPresent {
		message = kind.Verb() + " added"
	}
	respondSuccess(w, http.StatusOK, res, message)
}

// ListLikedVideos handles GET /likes/videos/u/{userId}
func (h *Handler) ListLikedVideos(w http.ResponseWriter, r *http.Request) {
	h.list("userId", h.queries.LikedVideos)(w, r)
}

// ListSubscribers handles GET /subscriptions/c/{channelId}
func (h *Handler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	h.list("channelId", h.queries.ChannelSubscribers)(w, r)
}

// ListSubscribedChannels handles GET /subscriptions/u/{subscriberId}
func (h *Handler) ListSubscribedChannels(w http.ResponseWriter, r *http.Request) {
	h.list("subscriberId", h.queries.SubscribedChannels)(w, r)
}

// ==================== PLAYLISTS ====================

// CreatePlaylist handles POST /playlists
func (h *Handler) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var in domain.NewPlaylist
	if !h.bind(w, r, &in) {
		return
	}
	playlist, err := h.resources.CreatePlaylist(r.Context(), PrincipalFromContext(r.Context()), &in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, playlist, "playlist created")
}

// ListUserPlaylists handles GET /playlists/user/{userId}
func (h *Handler) ListUserPlaylists(w http.ResponseWriter, r *http.Request) {
	h.list("userId", h.queries.UserPlaylists)(w, r)
}

// DeletePlaylist handles DELETE /playlists/{playlistId}
func (h *Handler) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	if err := h.resources.DeletePlaylist(r.Context(), PrincipalFromContext(r.Context()), chi.URLParam(r, "playlistId")); err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, nil, "playlist deleted")
}

// AddToPlaylist handles PATCH /playlists/add/{videoId}/{playlistId}
func (h *Handler) AddToPlaylist(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.resources.AddToPlaylist(r.Context(), PrincipalFromContext(r.Context()),
		chi.URLParam(r, "videoId"), chi.URLParam(r, "playlistId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, playlist, "video added to playlist")
}

// RemoveFromPlaylist handles PATCH /playlists/remove/{videoId}/{playlistId}
func (h *Handler) RemoveFromPlaylist(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.resources.RemoveFromPlaylist(r.Context(), PrincipalFromContext(r.Context()),
		chi.URLParam(r, "videoId"), chi.URLParam(r, "playlistId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, playlist, "video removed from playlist")
}

// ==================== DASHBOARD ====================

// ChannelStats handles GET /dashboard/stats/c/{channelId}
func (h *Handler) ChannelStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queries.ChannelStats(r.Context(), chi.URLParam(r, "channelId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, stats, "")
}

// ChannelVideos handles GET /dashboard/videos/c/{channelId}
func (h *Handler) ChannelVideos(w http.ResponseWriter, r *http.Request) {
	h.list("channelId", h.queries.ChannelVideos)(w, r)
}

// HealthCheck handles GET /health/live
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
