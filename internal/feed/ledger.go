package feed

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordLike stores a like fact for the (video, user) pair. It reports
// whether the like was newly recorded; false means the pair had already
// liked. The conflict-ignoring insert against the composite primary key is
// what makes concurrent calls for the identical pair admit exactly one
// winner; there is no read-then-write window.
func (s *Service) RecordLike(ctx context.Context, videoID int64, userID UserID) (bool, error) {
	fact := LikeFact{
		VideoID: videoID,
		UserID:  userID.String(),
		LikedAt: s.clock().UTC(),
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "video_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&fact)
	if result.Error != nil {
		s.logError(opRecordLike, "insert_failed", result.Error,
			zap.Int64("video_id", videoID),
			zap.String("user_id", userID.String()))
		return false, newServiceError(opRecordLike, "insert_failed", result.Error)
	}

	return result.RowsAffected > 0, nil
}

// RecordComment appends a comment fact. Blank text (after trimming) is
// silently dropped; longer text is truncated to the storage bound. It
// reports whether a fact was stored.
func (s *Service) RecordComment(ctx context.Context, videoID int64, userID UserID, text string) (bool, error) {
	return s.recordComment(s.db.WithContext(ctx), videoID, userID, text)
}

func (s *Service) recordComment(tx *gorm.DB, videoID int64, userID UserID, text string) (bool, error) {
	clipped := clipText(text, maxCommentLength)
	if clipped == "" {
		return false, nil
	}

	fact := CommentFact{
		VideoID:   videoID,
		UserID:    userID.String(),
		Text:      clipped,
		CreatedAt: s.clock().UTC(),
	}
	if err := tx.Create(&fact).Error; err != nil {
		s.logError(opRecordComment, "insert_failed", err,
			zap.Int64("video_id", videoID),
			zap.String("user_id", userID.String()))
		return false, newServiceError(opRecordComment, "insert_failed", err)
	}
	return true, nil
}

// Counts returns the like and comment aggregates for a video. The two reads
// are independent; each reflects the ledger as of call time.
func (s *Service) Counts(ctx context.Context, videoID int64) (InteractionCounts, error) {
	var counts InteractionCounts
	if err := s.db.WithContext(ctx).
		Model(&LikeFact{}).
		Where("video_id = ?", videoID).
		Count(&counts.Likes).Error; err != nil {
		s.logError(opCounts, "like_count_failed", err, zap.Int64("video_id", videoID))
		return InteractionCounts{}, newServiceError(opCounts, "like_count_failed", err)
	}
	if err := s.db.WithContext(ctx).
		Model(&CommentFact{}).
		Where("video_id = ?", videoID).
		Count(&counts.Comments).Error; err != nil {
		s.logError(opCounts, "comment_count_failed", err, zap.Int64("video_id", videoID))
		return InteractionCounts{}, newServiceError(opCounts, "comment_count_failed", err)
	}
	return counts, nil
}

// RecentComments returns up to limit comment facts for a video, most recent
// first. A non-positive limit falls back to DefaultCommentLimit.
func (s *Service) RecentComments(ctx context.Context, videoID int64, limit int) ([]CommentFact, error) {
	if limit <= 0 {
		limit = DefaultCommentLimit
	}

	var facts []CommentFact
	if err := s.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("id DESC").
		Limit(limit).
		Find(&facts).Error; err != nil {
		s.logError(opRecentComments, "query_failed", err, zap.Int64("video_id", videoID))
		return nil, newServiceError(opRecentComments, "query_failed", err)
	}
	return facts, nil
}
