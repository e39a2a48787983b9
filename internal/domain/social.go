package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxCommentLength bounds comment content, counted in characters.
const MaxCommentLength = 500

var (
	ErrContentRequired = errors.New("content is required")
	ErrCommentTooLong  = errors.New("comment cannot exceed 500 characters")
	ErrNameRequired    = errors.New("name and description are required")
)

// NewComment is the input of commenting on a video.
type NewComment struct {
	Content string `json:"content"`
}

func (c *NewComment) Validate() error {
	content := strings.TrimSpace(c.Content)
	if content == "" {
		return ErrContentRequired
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return ErrCommentTooLong
	}
	return nil
}

// Document builds the stored comment on videoID owned by ownerID.
func (c *NewComment) Document(videoID, ownerID string, now time.Time) Document {
	now = now.UTC()
	return Document{
		FieldID:         uuid.NewString(),
		FieldVideoID:    videoID,
		FieldOwnerID:    ownerID,
		FieldContent:    strings.TrimSpace(c.Content),
		FieldLikesCount: int64(0),
		FieldCreatedAt:  now,
		FieldUpdatedAt:  now,
	}
}

// NewTweet is the input of posting a tweet. Tweets share the content rules of
// comments except for the length cap.
type NewTweet struct {
	Content string `json:"content" validate:"max=1000"`
}

func (t *NewTweet) Validate() error {
	if strings.TrimSpace(t.Content) == "" {
		return ErrContentRequired
	}
	return nil
}

func (t *NewTweet) Document(ownerID string, now time.Time) Document {
	now = now.UTC()
	return Document{
		FieldID:         uuid.NewString(),
		FieldOwnerID:    ownerID,
		FieldContent:    strings.TrimSpace(t.Content),
		FieldLikesCount: int64(0),
		FieldCreatedAt:  now,
		FieldUpdatedAt:  now,
	}
}

// ContentUpdate edits the content of a comment or tweet.
type ContentUpdate struct {
	Content string `json:"content"`
}

func (u *ContentUpdate) Patch(maxLen int) (Patch, error) {
	content := strings.TrimSpace(u.Content)
	if content == "" {
		return Patch{}, ErrContentRequired
	}
	if maxLen > 0 && utf8.RuneCountInString(content) > maxLen {
		return Patch{}, ErrCommentTooLong
	}
	return Patch{Set: map[string]any{FieldContent: content}}, nil
}

// NewPlaylist is the input of creating a playlist.
type NewPlaylist struct {
	Name        string `json:"name" validate:"max=200"`
	Description string `json:"description" validate:"max=2000"`
}

func (p *NewPlaylist) Validate() error {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Description) == "" {
		return ErrNameRequired
	}
	return nil
}

func (p *NewPlaylist) Document(ownerID string, now time.Time) Document {
	now = now.UTC()
	return Document{
		FieldID:          uuid.NewString(),
		FieldOwnerID:     ownerID,
		FieldName:        strings.TrimSpace(p.Name),
		FieldDescription: strings.TrimSpace(p.Description),
		FieldVideos:      []string{},
		FieldCreatedAt:   now,
		FieldUpdatedAt:   now,
	}
}
