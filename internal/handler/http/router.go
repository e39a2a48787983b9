package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vidshare/pkg/logger"
)

// RouterOptions configures the cross-cutting parts of the router.
type RouterOptions struct {
	Auth           *Authenticator
	Logger         *logger.Logger
	Limiter        RateLimiter // nil disables rate limiting
	AllowedOrigins []string
	RequestTimeout time.Duration
	EnableMetrics  bool
}

// NewRouter mounts every endpoint under /api/v1. Reads are public; every
// mutation requires a bearer token.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(Chain(
		RecoveryMiddleware(opts.Logger),
		RequestIDMiddleware,
		LoggingMiddleware(opts.Logger),
		MetricsMiddleware,
	))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	r.Get("/health/live", h.HealthCheck)
	if opts.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		if opts.Limiter != nil {
			api.Use(RateLimitMiddleware(opts.Limiter, opts.Logger))
		}
		api.Use(PrincipalMiddleware(opts.Auth, opts.Logger))

		// Public reads.
		api.Get("/videos", h.ListVideos)
		api.Get("/videos/{videoId}", h.GetVideo)
		api.Get("/comments/{videoId}", h.ListComments)
		api.Get("/tweets/user/{userId}", h.ListUserTweets)
		api.Get("/playlists/user/{userId}", h.ListUserPlaylists)
		api.Get("/likes/videos/u/{userId}", h.ListLikedVideos)
		api.Get("/subscriptions/c/{channelId}", h.ListSubscribers)
		api.Get("/subscriptions/u/{subscriberId}", h.ListSubscribedChannels)
		api.Get("/dashboard/stats/c/{channelId}", h.ChannelStats)
		api.Get("/dashboard/videos/c/{channelId}", h.ChannelVideos)

		api.Group(func(auth chi.Router) {
			auth.Use(RequireAuth(opts.Logger))

			auth.Post("/videos", h.CreateVideo)
			auth.Patch("/videos/{videoId}", h.UpdateVideo)
			auth.Delete("/videos/{videoId}", h.DeleteVideo)
			auth.Patch("/videos/toggle/publish/{videoId}", h.TogglePublish)

			auth.Post("/comments/{videoId}", h.AddComment)
			auth.Patch("/comments/c/{commentId}", h.UpdateComment)
			auth.Delete("/comments/c/{commentId}", h.DeleteComment)

			auth.Post("/tweets", h.CreateTweet)
			auth.Patch("/tweets/{tweetId}", h.UpdateTweet)
			auth.Delete("/tweets/{tweetId}", h.DeleteTweet)

			auth.Post("/playlists", h.CreatePlaylist)
			auth.Delete("/playlists/{playlistId}", h.DeletePlaylist)
			auth.Patch("/playlists/add/{videoId}/{playlistId}", h.AddToPlaylist)
			auth.Patch("/playlists/remove/{videoId}/{playlistId}", h.RemoveFromPlaylist)

			auth.Post("/likes/toggle/{kind}/{targetId}", h.ToggleLike)
			auth.Post("/subscriptions/c/{channelId}", h.ToggleSubscription)
		})
	})

	return r
}
