package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"vidshare/pkg/validator"
)

// Domain validation errors for video input.
var (
	ErrTitleRequired       = errors.New("title is required")
	ErrDescriptionRequired = errors.New("description is required")
	ErrMediaURLInvalid     = errors.New("video file and thumbnail must be absolute http(s) URLs")
	ErrNoFieldsToUpdate    = errors.New("at least one field is required")
)

// NewVideo is the input of publishing a video. Media files are uploaded by
// the blob service beforehand; only their URLs reach this layer.
type NewVideo struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"required,max=5000"`
	VideoFile   string  `json:"videoFile" validate:"required,mediaurl"`
	Thumbnail   string  `json:"thumbnail" validate:"required,mediaurl"`
	Duration    float64 `json:"duration" validate:"gte=0"`
}

// Validate applies the rules the struct tags cannot express.
func (v *NewVideo) Validate() error {
	if strings.TrimSpace(v.Title) == "" {
		return ErrTitleRequired
	}
	if strings.TrimSpace(v.Description) == "" {
		return ErrDescriptionRequired
	}
	if validator.ValidateURL(v.VideoFile) != nil || validator.ValidateURL(v.Thumbnail) != nil {
		return ErrMediaURLInvalid
	}
	return nil
}

// Document builds the stored form of the video owned by ownerID.
func (v *NewVideo) Document(ownerID string, now time.Time) Document {
	now = now.UTC()
	return Document{
		FieldID:            uuid.NewString(),
		FieldOwnerID:       ownerID,
		FieldTitle:         strings.TrimSpace(v.Title),
		FieldDescription:   strings.TrimSpace(v.Description),
		FieldVideoFile:     v.VideoFile,
		FieldThumbnail:     v.Thumbnail,
		FieldDuration:      v.Duration,
		FieldViews:         int64(0),
		FieldIsPublished:   true,
		FieldLikesCount:    int64(0),
		FieldCommentsCount: int64(0),
		FieldCreatedAt:     now,
		FieldUpdatedAt:     now,
	}
}

// VideoUpdate changes the editable metadata of a video.
type VideoUpdate struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
}

// Patch converts the update into a store patch.
func (u *VideoUpdate) Patch() (Patch, error) {
	set := map[string]any{}
	if u.Title != nil && strings.TrimSpace(*u.Title) != "" {
		set[FieldTitle] = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil && strings.TrimSpace(*u.Description) != "" {
		set[FieldDescription] = strings.TrimSpace(*u.Description)
	}
	if len(set) == 0 {
		return Patch{}, ErrNoFieldsToUpdate
	}
	return Patch{Set: set}, nil
}
