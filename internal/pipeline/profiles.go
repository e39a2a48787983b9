package pipeline

import "vidshare/internal/domain"

var (
	ownerJoin = JoinSpec{
		From:         domain.CollectionUsers,
		LocalField:   domain.FieldOwnerID,
		ForeignField: domain.FieldID,
		As:           domain.FieldOwner,
		Fields:       domain.OwnerSummaryFields,
	}

	videoFields = []string{
		domain.FieldID, domain.FieldTitle, domain.FieldDescription, domain.FieldVideoFile,
		domain.FieldThumbnail, domain.FieldDuration, domain.FieldViews, domain.FieldIsPublished,
		domain.FieldLikesCount, domain.FieldCommentsCount, domain.FieldCreatedAt,
		domain.FieldUpdatedAt, domain.FieldOwner,
	}

	dateSort = map[string]string{"date": domain.FieldCreatedAt}
)

// VideoList is the public video listing, optionally narrowed to one owner.
var VideoList = Profile{
	Name:       "videos",
	Collection: domain.CollectionVideos,
	SortFields: map[string]string{
		"date":      domain.FieldCreatedAt,
		"views":     domain.FieldViews,
		"duration":  domain.FieldDuration,
		"mostLikes": domain.FieldLikesCount,
	},
	TextFields: []string{domain.FieldTitle, domain.FieldDescription},
	OwnerField: domain.FieldOwnerID,
	Joins:      []JoinSpec{ownerJoin},
	Projection: videoFields,
}

// ChannelVideos lists the published videos of the channel in ScopeID.
var ChannelVideos = Profile{
	Name:       "channel_videos",
	Collection: domain.CollectionVideos,
	SortFields: map[string]string{
		"date":  domain.FieldCreatedAt,
		"views": domain.FieldViews,
	},
	TextFields:      []string{domain.FieldTitle, domain.FieldDescription},
	ScopeField:      domain.FieldOwnerID,
	ScopeCollection: domain.CollectionUsers,
	Base:            []Predicate{Eq{Field: domain.FieldIsPublished, Value: true}},
	Joins:           []JoinSpec{ownerJoin},
	Projection:      videoFields,
}

// VideoComments lists the comments of the video in ScopeID.
var VideoComments = Profile{
	Name:       "video_comments",
	Collection: domain.CollectionComments,
	SortFields: map[string]string{
		"date":      domain.FieldCreatedAt,
		"mostLikes": domain.FieldLikesCount,
	},
	ScopeField:      domain.FieldVideoID,
	ScopeCollection: domain.CollectionVideos,
	Joins:           []JoinSpec{ownerJoin},
	Projection: []string{
		domain.FieldID, domain.FieldContent, domain.FieldVideoID, domain.FieldLikesCount,
		domain.FieldCreatedAt, domain.FieldUpdatedAt, domain.FieldOwner,
	},
}

// UserTweets lists the tweets of the user in ScopeID.
var UserTweets = Profile{
	Name:       "user_tweets",
	Collection: domain.CollectionTweets,
	SortFields: map[string]string{
		"date":      domain.FieldCreatedAt,
		"mostLikes": domain.FieldLikesCount,
	},
	TextFields:      []string{domain.FieldContent},
	ScopeField:      domain.FieldOwnerID,
	ScopeCollection: domain.CollectionUsers,
	Joins:           []JoinSpec{ownerJoin},
	Projection: []string{
		domain.FieldID, domain.FieldContent, domain.FieldLikesCount,
		domain.FieldCreatedAt, domain.FieldUpdatedAt, domain.FieldOwner,
	},
}

// UserPlaylists lists the playlists of the user in ScopeID.
var UserPlaylists = Profile{
	Name:       "user_playlists",
	Collection: domain.CollectionPlaylists,
	SortFields: map[string]string{
		"date": domain.FieldCreatedAt,
		"name": domain.FieldName,
	},
	TextFields:      []string{domain.FieldName, domain.FieldDescription},
	ScopeField:      domain.FieldOwnerID,
	ScopeCollection: domain.CollectionUsers,
	Joins:           []JoinSpec{ownerJoin},
	Projection: []string{
		domain.FieldID, domain.FieldName, domain.FieldDescription, domain.FieldVideos,
		domain.FieldCreatedAt, domain.FieldUpdatedAt, domain.FieldOwner,
	},
}

// ChannelSubscribers lists who subscribes to the channel in ScopeID.
var ChannelSubscribers = Profile{
	Name:            "channel_subscribers",
	Collection:      domain.CollectionRelations,
	SortFields:      dateSort,
	ScopeField:      domain.FieldTargetID,
	ScopeCollection: domain.CollectionUsers,
	Base:            []Predicate{Eq{Field: domain.FieldTargetKind, Value: string(domain.TargetChannel)}},
	Joins: []JoinSpec{{
		From:         domain.CollectionUsers,
		LocalField:   domain.FieldSubjectID,
		ForeignField: domain.FieldID,
		As:           "subscriber",
		Fields:       domain.OwnerSummaryFields,
	}},
	Projection: []string{domain.FieldID, "subscriber", domain.FieldCreatedAt},
}

// SubscribedChannels lists the channels the user in ScopeID subscribes to.
var SubscribedChannels = Profile{
	Name:            "subscribed_channels",
	Collection:      domain.CollectionRelations,
	SortFields:      dateSort,
	ScopeField:      domain.FieldSubjectID,
	ScopeCollection: domain.CollectionUsers,
	Base:            []Predicate{Eq{Field: domain.FieldTargetKind, Value: string(domain.TargetChannel)}},
	Joins: []JoinSpec{{
		From:         domain.CollectionUsers,
		LocalField:   domain.FieldTargetID,
		ForeignField: domain.FieldID,
		As:           "channel",
		Fields:       append(append([]string(nil), domain.OwnerSummaryFields...), domain.FieldSubscribersCount),
	}},
	Projection: []string{domain.FieldID, "channel", domain.FieldCreatedAt},
}

// LikedVideos lists the videos the user in ScopeID has liked.
var LikedVideos = Profile{
	Name:            "liked_videos",
	Collection:      domain.CollectionRelations,
	SortFields:      dateSort,
	ScopeField:      domain.FieldSubjectID,
	ScopeCollection: domain.CollectionUsers,
	Base:            []Predicate{Eq{Field: domain.FieldTargetKind, Value: string(domain.TargetVideo)}},
	Joins: []JoinSpec{{
		From:         domain.CollectionVideos,
		LocalField:   domain.FieldTargetID,
		ForeignField: domain.FieldID,
		As:           "video",
		Fields: []string{
			domain.FieldID, domain.FieldTitle, domain.FieldThumbnail, domain.FieldDuration,
			domain.FieldViews, domain.FieldOwnerID, domain.FieldCreatedAt,
		},
	}},
	Projection: []string{domain.FieldID, "video", domain.FieldCreatedAt},
}
