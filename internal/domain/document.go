package domain

import (
	"fmt"
	"time"
)

// Collection names a set of documents. Postgres maps it to a table, MongoDB
// to a collection.
type Collection string

const (
	CollectionUsers     Collection = "users"
	CollectionVideos    Collection = "videos"
	CollectionComments  Collection = "comments"
	CollectionTweets    Collection = "tweets"
	CollectionPlaylists Collection = "playlists"
	CollectionRelations Collection = "relations"
)

// Valid reports whether c is one of the known collections.
func (c Collection) Valid() bool {
	switch c {
	case CollectionUsers, CollectionVideos, CollectionComments,
		CollectionTweets, CollectionPlaylists, CollectionRelations:
		return true
	}
	return false
}

// Singular names one document of c in messages ("video not found").
func (c Collection) Singular() string {
	switch c {
	case CollectionUsers:
		return "user"
	case CollectionVideos:
		return "video"
	case CollectionComments:
		return "comment"
	case CollectionTweets:
		return "tweet"
	case CollectionPlaylists:
		return "playlist"
	case CollectionRelations:
		return "relation"
	}
	return string(c)
}

// Field names shared by every store. Stores persist documents under exactly
// these keys, so a stage never needs per-store field mapping (except the
// MongoDB primary key, handled by its compiler).
const (
	FieldID               = "id"
	FieldOwnerID          = "owner_id"
	FieldOwner            = "owner"
	FieldCreatedAt        = "created_at"
	FieldUpdatedAt        = "updated_at"
	FieldTitle            = "title"
	FieldDescription      = "description"
	FieldVideoFile        = "video_file"
	FieldThumbnail        = "thumbnail"
	FieldDuration         = "duration"
	FieldViews            = "views"
	FieldIsPublished      = "is_published"
	FieldLikesCount       = "likes_count"
	FieldCommentsCount    = "comments_count"
	FieldContent          = "content"
	FieldVideoID          = "video_id"
	FieldName             = "name"
	FieldVideos           = "videos"
	FieldUsername         = "username"
	FieldFullname         = "fullname"
	FieldAvatar           = "avatar"
	FieldCoverImage       = "cover_image"
	FieldSubscribersCount = "subscribers_count"
	FieldSubjectID        = "subject_id"
	FieldTargetKind       = "target_kind"
	FieldTargetID         = "target_id"
)

// OwnerSummaryFields is the minimal user projection embedded by joins.
var OwnerSummaryFields = []string{FieldID, FieldUsername, FieldFullname, FieldAvatar}

// Document is a schemaless row as returned by an aggregation pipeline.
type Document map[string]any

// String returns the string value stored under key, or "".
func (d Document) String(key string) string {
	switch v := d[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the numeric value stored under key, converting the number
// types the different drivers decode into.
func (d Document) Int64(key string) int64 {
	n, _ := ToInt64(d[key])
	return n
}

// Bool returns the boolean stored under key.
func (d Document) Bool(key string) bool {
	b, _ := d[key].(bool)
	return b
}

// OwnerID returns the owning principal of a resource document.
func (d Document) OwnerID() string {
	return d.String(FieldOwnerID)
}

// ToInt64 converts the numeric representations produced by pgx (json),
// the mongo driver and the memory store into an int64.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

// Patch describes a partial update applied by UpdateByID.
type Patch struct {
	Set      map[string]any
	Inc      map[string]int64
	AddToSet map[string]string
	Pull     map[string]string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return len(p.Set) == 0 && len(p.Inc) == 0 && len(p.AddToSet) == 0 && len(p.Pull) == 0
}

// Touch returns a copy of the patch that also sets updated_at.
func (p Patch) Touch(now time.Time) Patch {
	set := make(map[string]any, len(p.Set)+1)
	for k, v := range p.Set {
		set[k] = v
	}
	set[FieldUpdatedAt] = now.UTC()
	p.Set = set
	return p
}
