package feed

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MediaKind enumerates the supported media asset kinds.
type MediaKind string

const (
	// MediaKindVideo marks a regular video asset.
	MediaKindVideo MediaKind = "video"
	// MediaKindAnimation marks a looping animation (GIF-style) asset.
	MediaKindAnimation MediaKind = "animation"
)

const (
	maxIdentifierLength = 190
	maxCaptionLength    = 280
	maxCommentLength    = 280

	// DefaultCommentLimit bounds comment listings when the caller does not
	// supply a positive limit.
	DefaultCommentLimit = 10
)

var (
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("feed: invalid user id")
	// ErrInvalidMediaKind indicates an unrecognized media kind value.
	ErrInvalidMediaKind = errors.New("feed: invalid media kind")
	// ErrInvalidAssetRef indicates a blank media asset reference.
	ErrInvalidAssetRef = errors.New("feed: invalid asset ref")
	// ErrDuplicateAsset indicates the physical asset is already in the catalog.
	ErrDuplicateAsset = errors.New("feed: duplicate asset")
	// ErrVideoNotFound indicates that no video exists at the requested position or id.
	ErrVideoNotFound = errors.New("feed: video not found")
)

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// ParseMediaKind validates raw input and returns a MediaKind.
func ParseMediaKind(rawInput string) (MediaKind, error) {
	switch MediaKind(strings.ToLower(strings.TrimSpace(rawInput))) {
	case MediaKindVideo:
		return MediaKindVideo, nil
	case MediaKindAnimation:
		return MediaKindAnimation, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMediaKind, rawInput)
	}
}

// clipText trims surrounding whitespace and truncates to limit characters.
// Truncation counts runes, not bytes, so multi-byte captions are never split
// mid-character.
func clipText(value string, limit int) string {
	trimmed := strings.TrimSpace(value)
	runes := []rune(trimmed)
	if len(runes) <= limit {
		return trimmed
	}
	return string(runes[:limit])
}

// VideoRecord models one catalog entry. Records are totally ordered by id
// ascending; positional reads are offsets into that order.
type VideoRecord struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	AssetRef       string    `gorm:"column:asset_ref;size:512;not null"`
	AssetUniqueRef string    `gorm:"column:asset_unique_ref;size:256;not null;uniqueIndex:idx_videos_asset_unique"`
	MediaKind      MediaKind `gorm:"column:media_kind;size:16;not null"`
	Caption        string    `gorm:"column:caption;size:280;not null;default:''"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
	AddedBy        string    `gorm:"column:added_by;size:190;not null"`
}

// TableName provides the explicit table binding for GORM.
func (VideoRecord) TableName() string {
	return "videos"
}

// LikeFact records that a user liked a video. The composite primary key is
// the storage-level guarantee that a (video, user) pair likes at most once.
type LikeFact struct {
	VideoID int64     `gorm:"column:video_id;primaryKey;autoIncrement:false"`
	UserID  string    `gorm:"column:user_id;primaryKey;size:190"`
	LikedAt time.Time `gorm:"column:liked_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (LikeFact) TableName() string {
	return "likes"
}

// CommentFact records one comment on a video.
type CommentFact struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	VideoID   int64     `gorm:"column:video_id;not null;index:idx_comments_video"`
	UserID    string    `gorm:"column:user_id;size:190;not null"`
	Text      string    `gorm:"column:text;size:280;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (CommentFact) TableName() string {
	return "comments"
}

// UserNavState holds a user's cursor into the catalog and the armed
// comment target, if any. Rows are created lazily on first access.
type UserNavState struct {
	UserID         string `gorm:"column:user_id;primaryKey;size:190"`
	CursorIndex    int64  `gorm:"column:cursor_idx;not null;default:0"`
	PendingVideoID *int64 `gorm:"column:pending_video_id"`
}

// TableName provides the explicit table binding for GORM.
func (UserNavState) TableName() string {
	return "user_nav_state"
}

// InteractionCounts aggregates the ledger for one video.
type InteractionCounts struct {
	Likes    int64
	Comments int64
}
