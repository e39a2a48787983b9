package domain

import (
	"fmt"
	"time"
)

// TargetKind is the kind of resource a relation row points at. The kind also
// implies the relation: video, comment and tweet targets are likes, channel
// targets are subscriptions.
type TargetKind string

const (
	TargetVideo   TargetKind = "video"
	TargetComment TargetKind = "comment"
	TargetTweet   TargetKind = "tweet"
	TargetChannel TargetKind = "channel"
)

// ParseTargetKind validates a raw kind string.
func ParseTargetKind(s string) (TargetKind, error) {
	k := TargetKind(s)
	switch k {
	case TargetVideo, TargetComment, TargetTweet, TargetChannel:
		return k, nil
	}
	return "", fmt.Errorf("unknown relation target kind %q", s)
}

// Collection returns where targets of this kind live.
func (k TargetKind) Collection() Collection {
	switch k {
	case TargetVideo:
		return CollectionVideos
	case TargetComment:
		return CollectionComments
	case TargetTweet:
		return CollectionTweets
	default:
		return CollectionUsers
	}
}

// CounterField returns the denormalized counter on the target that mirrors the
// cardinality of the relation set.
func (k TargetKind) CounterField() string {
	if k == TargetChannel {
		return FieldSubscribersCount
	}
	return FieldLikesCount
}

// SelfExclusive reports whether a subject may not relate to itself.
func (k TargetKind) SelfExclusive() bool {
	return k == TargetChannel
}

// Verb names the relation for logs and metrics.
func (k TargetKind) Verb() string {
	if k == TargetChannel {
		return "subscription"
	}
	return "like"
}

// RelationKey identifies a relation row. At most one row exists per key.
type RelationKey struct {
	SubjectID string
	Kind      TargetKind
	TargetID  string
}

func (k RelationKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.SubjectID, k.Kind, k.TargetID)
}

// Relation is a persisted fact that a principal likes or subscribes to a target.
type Relation struct {
	ID        string     `json:"id"`
	SubjectID string     `json:"subject_id"`
	Kind      TargetKind `json:"target_kind"`
	TargetID  string     `json:"target_id"`
	CreatedAt time.Time  `json:"created_at"`
}

// Key returns the uniqueness key of the row.
func (r *Relation) Key() RelationKey {
	return RelationKey{SubjectID: r.SubjectID, Kind: r.Kind, TargetID: r.TargetID}
}

// Document renders the row with the shared field vocabulary.
func (r *Relation) Document() Document {
	return Document{
		FieldID:         r.ID,
		FieldSubjectID:  r.SubjectID,
		FieldTargetKind: string(r.Kind),
		FieldTargetID:   r.TargetID,
		FieldCreatedAt:  r.CreatedAt,
	}
}

// ToggleResult is the outcome of flipping a relation.
type ToggleResult struct {
	Kind       TargetKind `json:"kind"`
	TargetID   string     `json:"target_id"`
	NowPresent bool       `json:"now_present"`
}
